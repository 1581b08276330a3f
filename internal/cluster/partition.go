package cluster

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/phamduclong/aerogo/pkg/query"
)

// PartitionMap holds, per namespace, the owning node of every
// partition for each replica index. Instances are immutable once
// published; the tender swaps whole maps.
type PartitionMap map[string]*NamespacePartitions

// NamespacePartitions is the replica table of one namespace.
type NamespacePartitions struct {
	// Replicas[r][pid] is the node holding replica r of partition pid.
	Replicas [][]*Node

	// Regime is the strong-consistency cluster regime the table was
	// read under; higher regimes win on merge.
	Regimes []int
}

func newNamespacePartitions(replicaCount int) *NamespacePartitions {
	np := &NamespacePartitions{
		Replicas: make([][]*Node, replicaCount),
		Regimes:  make([]int, query.PartitionCount),
	}
	for i := range np.Replicas {
		np.Replicas[i] = make([]*Node, query.PartitionCount)
	}
	return np
}

// clone copies the table so the tender can mutate before publishing.
func (m PartitionMap) clone() PartitionMap {
	out := make(PartitionMap, len(m))
	for ns, np := range m {
		cp := &NamespacePartitions{
			Replicas: make([][]*Node, len(np.Replicas)),
			Regimes:  append([]int(nil), np.Regimes...),
		}
		for i, r := range np.Replicas {
			cp.Replicas[i] = append([]*Node(nil), r...)
		}
		out[ns] = cp
	}
	return out
}

// updateReplicas merges one node's "replicas" info response into the
// map. Format per namespace: "ns:regime,replica-count,b64,b64,...",
// namespaces separated by ';'. Each base64 blob is a 4096-bit
// ownership bitmap.
func (m PartitionMap) updateReplicas(node *Node, resp string) error {
	for _, entry := range strings.Split(resp, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ns, spec, found := strings.Cut(entry, ":")
		if !found {
			return fmt.Errorf("cluster: bad replicas entry %q", entry)
		}
		parts := strings.Split(spec, ",")
		if len(parts) < 3 {
			return fmt.Errorf("cluster: bad replicas spec for %q", ns)
		}
		regime, err := strconv.Atoi(parts[0])
		if err != nil {
			return fmt.Errorf("cluster: bad regime in %q: %w", entry, err)
		}
		replicaCount, err := strconv.Atoi(parts[1])
		if err != nil || replicaCount < 1 || replicaCount != len(parts)-2 {
			return fmt.Errorf("cluster: bad replica count in %q", entry)
		}

		np := m[ns]
		if np == nil || len(np.Replicas) != replicaCount {
			np = newNamespacePartitions(replicaCount)
			m[ns] = np
		}

		for r := 0; r < replicaCount; r++ {
			bitmap, err := base64.StdEncoding.DecodeString(parts[2+r])
			if err != nil {
				return fmt.Errorf("cluster: bad bitmap for %q replica %d: %w", ns, r, err)
			}
			for pid := 0; pid < query.PartitionCount && pid/8 < len(bitmap); pid++ {
				if bitmap[pid/8]&(0x80>>uint(pid&7)) == 0 {
					continue
				}
				// Regime guards against stale tables during migration.
				if regime >= np.Regimes[pid] {
					if regime > np.Regimes[pid] {
						np.Regimes[pid] = regime
					}
					np.Replicas[r][pid] = node
				}
			}
		}
	}
	return nil
}

// nodeFor returns the owner of a partition replica, nil when unknown.
func (m PartitionMap) nodeFor(ns string, pid, replica int) *Node {
	np := m[ns]
	if np == nil || replica >= len(np.Replicas) || pid >= query.PartitionCount {
		return nil
	}
	return np.Replicas[replica][pid]
}

// replicaCount returns the table width for a namespace.
func (m PartitionMap) replicaCount(ns string) int {
	np := m[ns]
	if np == nil {
		return 0
	}
	return len(np.Replicas)
}
