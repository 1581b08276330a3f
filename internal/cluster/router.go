package cluster

import (
	"fmt"

	"github.com/phamduclong/aerogo/pkg/policy"
)

// GetNodeForPartition picks the node serving a partition under the
// given replica policy. sequence advances across retries so Sequence
// and PreferRack walk the replica list instead of hammering one node.
func (c *Cluster) GetNodeForPartition(ns string, pid int, replica policy.Replica, sequence int) (*Node, error) {
	pmap := c.Partitions()
	count := pmap.replicaCount(ns)
	if count == 0 {
		return nil, fmt.Errorf("cluster: no partition table for namespace %q: %w",
			ns, ErrNoAvailableNodes)
	}

	switch replica {
	case policy.ReplicaMaster:
		if n := pmap.nodeFor(ns, pid, 0); n != nil && n.Healthy() {
			return n, nil
		}
		return nil, fmt.Errorf("cluster: partition %d of %q has no master: %w",
			pid, ns, ErrNoAvailableNodes)

	case policy.ReplicaPreferRack:
		if n := c.rackNode(pmap, ns, pid, count, sequence); n != nil {
			return n, nil
		}
		fallthrough

	default: // ReplicaSequence
		for i := 0; i < count; i++ {
			n := pmap.nodeFor(ns, pid, (sequence+i)%count)
			if n != nil && n.Active() {
				return n, nil
			}
		}
		// Every breaker open; settle for any live replica.
		for i := 0; i < count; i++ {
			n := pmap.nodeFor(ns, pid, (sequence+i)%count)
			if n != nil && n.Healthy() {
				return n, nil
			}
		}
		return nil, fmt.Errorf("cluster: partition %d of %q unreachable: %w",
			pid, ns, ErrNoAvailableNodes)
	}
}

// rackNode returns a replica in one of the configured racks, nil when
// none qualifies.
func (c *Cluster) rackNode(pmap PartitionMap, ns string, pid, count, sequence int) *Node {
	for _, rackID := range c.policy.RackIDs {
		for i := 0; i < count; i++ {
			n := pmap.nodeFor(ns, pid, (sequence+i)%count)
			if n == nil || !n.Active() {
				continue
			}
			if id, ok := n.Rack(ns); ok && id == rackID {
				return n
			}
		}
	}
	return nil
}

// MasterNode returns the master replica regardless of policy; scans
// and queries always address masters.
func (c *Cluster) MasterNode(ns string, pid int) (*Node, error) {
	pmap := c.Partitions()
	if n := pmap.nodeFor(ns, pid, 0); n != nil && n.Healthy() {
		return n, nil
	}
	return nil, fmt.Errorf("cluster: partition %d of %q has no master: %w",
		pid, ns, ErrNoAvailableNodes)
}
