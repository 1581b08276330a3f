package cluster

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anthanhphan/gosdk/logger"

	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/policy"
)

// ErrClusterClosed is returned on use after Close.
var ErrClusterClosed = errors.New("cluster: closed")

// ErrNoAvailableNodes is returned when no node can serve a command.
var ErrNoAvailableNodes = errors.New("cluster: no available nodes")

// tend info keys requested every cycle.
var tendKeys = []string{"node", "peers-generation", "partition-generation", "rebalance-generation"}

// Cluster tracks the live membership and the partition table. A
// background tender refreshes both every TendInterval.
type Cluster struct {
	policy *policy.ClientPolicy
	seeds  []*Host

	mu      sync.RWMutex
	nodes   map[string]*Node
	aliases map[string]*Node

	pmap atomic.Pointer[PartitionMap]

	closeOnce sync.Once
	closed    chan struct{}
	done      sync.WaitGroup

	tendCount atomic.Int64
}

// NewCluster seeds from the hosts and starts the tender. At least one
// seed must validate, or the constructor fails.
func NewCluster(ctx context.Context, seeds []*Host, p *policy.ClientPolicy) (*Cluster, error) {
	if p == nil {
		p = policy.NewClientPolicy()
	}
	c := &Cluster{
		policy:  p,
		seeds:   seeds,
		nodes:   map[string]*Node{},
		aliases: map[string]*Node{},
		closed:  make(chan struct{}),
	}
	empty := make(PartitionMap)
	c.pmap.Store(&empty)

	if err := c.seed(ctx); err != nil {
		return nil, err
	}
	c.refresh(ctx)

	c.done.Add(1)
	go c.tendLoop()
	return c, nil
}

// StaticMember describes one member of a cluster assembled without
// seeding.
type StaticMember struct {
	Name    string
	Host    *Host
	Version wire.Version
}

// NewStatic builds a cluster with a fixed membership and no tender.
// Nothing is dialed; membership-driven logic such as version gating
// works against it, command routing fails until a partition table
// exists.
func NewStatic(p *policy.ClientPolicy, members ...StaticMember) *Cluster {
	if p == nil {
		p = policy.NewClientPolicy()
	}
	c := &Cluster{
		policy:  p,
		nodes:   map[string]*Node{},
		aliases: map[string]*Node{},
		closed:  make(chan struct{}),
	}
	empty := make(PartitionMap)
	c.pmap.Store(&empty)
	for _, m := range members {
		c.addNode(newNode(c, m.Name, m.Host, m.Version))
	}
	return c
}

func (c *Cluster) seed(ctx context.Context) error {
	var lastErr error
	for _, seed := range c.seeds {
		hosts, err := seed.Resolve(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		for _, h := range hosts {
			node, err := c.validateSeed(ctx, h)
			if err != nil {
				logger.Warnw("seed validation failed", "host", h.String(), "error", err.Error())
				lastErr = err
				continue
			}
			c.addNode(node)
		}
	}
	if len(c.nodes) == 0 {
		if lastErr != nil {
			return fmt.Errorf("cluster: no seed validated: %w", lastErr)
		}
		return fmt.Errorf("cluster: no seed validated")
	}
	return nil
}

// validateSeed checks name, build version, cluster name and partition
// readiness before admitting a node.
func (c *Cluster) validateSeed(ctx context.Context, h *Host) (*Node, error) {
	conn, err := Dial(ctx, h, c.policy.TLS, c.policy.Timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.policy.Timeout)
	if c.policy.RequiresAuthentication() {
		if _, _, err := login(conn, c.policy, deadline); err != nil {
			return nil, err
		}
	}

	keys := []string{"node", "build", "partition-generation"}
	if c.policy.ClusterName != "" {
		keys = append(keys, "cluster-name")
	}
	m, err := requestInfo(conn, keys, deadline)
	if err != nil {
		return nil, err
	}

	name := m["node"]
	if name == "" {
		return nil, fmt.Errorf("cluster: seed %s did not report a node name", h)
	}
	if c.policy.ClusterName != "" && m["cluster-name"] != c.policy.ClusterName {
		return nil, fmt.Errorf("cluster: seed %s is in cluster %q, want %q",
			h, m["cluster-name"], c.policy.ClusterName)
	}
	if gen, err := strconv.Atoi(m["partition-generation"]); err != nil || gen < 0 {
		return nil, fmt.Errorf("cluster: seed %s not fully initialized (partition-generation %q)",
			h, m["partition-generation"])
	}
	version, err := wire.ParseVersion(m["build"])
	if err != nil {
		return nil, fmt.Errorf("cluster: seed %s: %w", h, err)
	}
	if !version.SupportsPartitionScan() {
		return nil, fmt.Errorf("cluster: seed %s runs unsupported server %s", h, version)
	}

	return newNode(c, name, c.translate(h), version), nil
}

// translate applies the configured IP map to a node-announced address.
func (c *Cluster) translate(h *Host) *Host {
	if len(c.policy.IPMap) == 0 {
		return h
	}
	if mapped, ok := c.policy.IPMap[h.Name]; ok {
		return &Host{Name: mapped, Port: h.Port, TLSName: h.TLSName}
	}
	return h
}

func (c *Cluster) addNode(n *Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.nodes[n.name]; ok {
		existing.addAlias(n.host)
		n.Retire()
		return
	}
	c.nodes[n.name] = n
	c.aliases[n.host.String()] = n
	logger.Infow("node added", "node", n.name, "host", n.host.String(),
		"version", n.version.String())
}

func (c *Cluster) removeNode(n *Node) {
	c.mu.Lock()
	delete(c.nodes, n.name)
	delete(c.aliases, n.host.String())
	c.mu.Unlock()
	n.Retire()
	logger.Infow("node retired", "node", n.name, "host", n.host.String())
}

func (c *Cluster) tendLoop() {
	defer c.done.Done()
	ticker := time.NewTicker(c.policy.TendInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.policy.Timeout)
			c.refresh(ctx)
			cancel()
		}
	}
}

// refresh runs one tend cycle: per-node generation probes, peer
// discovery, partition table updates and idle connection sweeping.
func (c *Cluster) refresh(ctx context.Context) {
	c.tendCount.Add(1)
	pmapDirty := false
	next := c.pmap.Load().clone()

	for _, node := range c.Nodes() {
		m, err := node.RequestInfo(ctx, tendKeys...)
		if err != nil {
			failures := node.failedTends.Add(1)
			logger.Warnw("tend failed", "node", node.name, "failures", failures,
				"error", err.Error())
			if int(failures) >= c.policy.MaxFailedTends {
				c.removeNode(node)
			}
			continue
		}
		node.failedTends.Store(0)

		if m["node"] != node.name {
			// The address now answers as a different node.
			c.removeNode(node)
			continue
		}

		if gen := parseGen(m["peers-generation"]); gen != node.peersGen.Load() {
			if err := c.refreshPeers(ctx, node); err != nil {
				logger.Warnw("peer refresh failed", "node", node.name, "error", err.Error())
			} else {
				node.peersGen.Store(gen)
			}
		}

		partGen := parseGen(m["partition-generation"])
		rebGen := parseGen(m["rebalance-generation"])
		if partGen != node.partitionGen.Load() || rebGen != node.rebalanceGen.Load() {
			if err := c.refreshPartitions(ctx, node, next); err != nil {
				logger.Warnw("partition refresh failed", "node", node.name,
					"error", err.Error())
			} else {
				node.partitionGen.Store(partGen)
				node.rebalanceGen.Store(rebGen)
				pmapDirty = true
			}
		}

		node.SweepIdleConnections()
	}

	if len(c.policy.RackIDs) > 0 {
		c.refreshRacks(ctx)
	}
	if pmapDirty {
		c.pmap.Store(&next)
	}
}

func parseGen(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return -1
	}
	return v
}

func (c *Cluster) peersCommand() string {
	switch {
	case c.policy.TLS != nil && c.policy.UseServicesAlternate:
		return "peers-tls-alt"
	case c.policy.TLS != nil:
		return "peers-tls-std"
	case c.policy.UseServicesAlternate:
		return "peers-clear-alt"
	default:
		return "peers-clear-std"
	}
}

func (c *Cluster) refreshPeers(ctx context.Context, node *Node) error {
	cmd := c.peersCommand()
	m, err := node.RequestInfo(ctx, cmd)
	if err != nil {
		return err
	}
	_, peers, err := parsePeers(m[cmd])
	if err != nil {
		return err
	}

	for _, peer := range peers {
		if c.GetNodeByName(peer.NodeName) != nil {
			continue
		}
		for _, h := range peer.Hosts {
			h = c.translate(h)
			candidate, err := c.validateSeed(ctx, h)
			if err != nil {
				logger.Debugw("peer validation failed", "peer", peer.NodeName,
					"host", h.String(), "error", err.Error())
				continue
			}
			if candidate.name != peer.NodeName {
				candidate.Retire()
				continue
			}
			c.addNode(candidate)
			break
		}
	}
	return nil
}

func (c *Cluster) refreshPartitions(ctx context.Context, node *Node, pmap PartitionMap) error {
	m, err := node.RequestInfo(ctx, "replicas")
	if err != nil {
		return err
	}
	return pmap.updateReplicas(node, m["replicas"])
}

func (c *Cluster) refreshRacks(ctx context.Context) {
	node := c.RandomNode()
	if node == nil {
		return
	}
	m, err := node.RequestInfo(ctx, "racks:")
	if err != nil {
		logger.Debugw("rack refresh failed", "node", node.name, "error", err.Error())
		return
	}
	byNS := parseRacks(m["racks:"])
	for ns, nodeRacks := range byNS {
		for nodeName, rackID := range nodeRacks {
			if n := c.GetNodeByName(nodeName); n != nil {
				n.setRack(ns, rackID)
			}
		}
	}
}

// Nodes snapshots the current membership.
func (c *Cluster) Nodes() []*Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		out = append(out, n)
	}
	return out
}

// GetNodeByName returns a member by node name, nil when unknown.
func (c *Cluster) GetNodeByName(name string) *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nodes[name]
}

// RandomNode returns a healthy node, preferring ones whose breaker is
// closed.
func (c *Cluster) RandomNode() *Node {
	nodes := c.Nodes()
	if len(nodes) == 0 {
		return nil
	}
	start := rand.Intn(len(nodes))
	for i := 0; i < len(nodes); i++ {
		n := nodes[(start+i)%len(nodes)]
		if n.Active() {
			return n
		}
	}
	return nodes[start]
}

// Partitions returns the current partition table.
func (c *Cluster) Partitions() PartitionMap {
	if p := c.pmap.Load(); p != nil {
		return *p
	}
	return nil
}

// MinVersion returns the oldest server version in the membership.
// Feature gating uses it: a mixed-version cluster can only serve what
// its weakest node supports.
func (c *Cluster) MinVersion() (wire.Version, bool) {
	nodes := c.Nodes()
	if len(nodes) == 0 {
		return wire.Version{}, false
	}
	min := nodes[0].version
	for _, n := range nodes[1:] {
		if !n.version.AtLeast(min) {
			min = n.version
		}
	}
	return min, true
}

// TendCount reports completed tend cycles, for tests and diagnostics.
func (c *Cluster) TendCount() int64 { return c.tendCount.Load() }

// IsConnected reports whether at least one node is live.
func (c *Cluster) IsConnected() bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	for _, n := range c.Nodes() {
		if n.Healthy() {
			return true
		}
	}
	return false
}

// Close stops the tender and closes every pooled connection.
func (c *Cluster) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.done.Wait()
		for _, n := range c.Nodes() {
			c.removeNode(n)
		}
	})
}
