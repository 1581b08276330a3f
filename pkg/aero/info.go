package aero

import (
	"context"
	"fmt"
	"time"

	"github.com/phamduclong/aerogo/internal/cluster"
	"github.com/phamduclong/aerogo/pkg/policy"
)

const defaultInfoTimeout = time.Second

func infoTimeout(p *policy.InfoPolicy) time.Duration {
	if p == nil || p.Timeout <= 0 {
		return defaultInfoTimeout
	}
	return time.Duration(p.Timeout) * time.Millisecond
}

// Info runs info commands on a random node.
func (c *Client) Info(ctx context.Context, p *policy.InfoPolicy, commands ...string) (map[string]string, error) {
	node := c.cluster.RandomNode()
	if node == nil {
		return nil, cluster.ErrNoAvailableNodes
	}
	return c.infoOn(ctx, p, node, commands...)
}

// InfoOnNode runs info commands on the named node.
func (c *Client) InfoOnNode(ctx context.Context, p *policy.InfoPolicy, nodeName string, commands ...string) (map[string]string, error) {
	node := c.cluster.GetNodeByName(nodeName)
	if node == nil {
		return nil, fmt.Errorf("aero: unknown node %q", nodeName)
	}
	return c.infoOn(ctx, p, node, commands...)
}

// InfoOnAllNodes runs the commands on every active node, keyed by node
// name. The first node error aborts.
func (c *Client) InfoOnAllNodes(ctx context.Context, p *policy.InfoPolicy, commands ...string) (map[string]map[string]string, error) {
	nodes := c.cluster.Nodes()
	if len(nodes) == 0 {
		return nil, cluster.ErrNoAvailableNodes
	}
	out := make(map[string]map[string]string, len(nodes))
	for _, node := range nodes {
		m, err := c.infoOn(ctx, p, node, commands...)
		if err != nil {
			return nil, fmt.Errorf("aero: info on %s: %w", node.Name(), err)
		}
		out[node.Name()] = m
	}
	return out, nil
}

func (c *Client) infoOn(ctx context.Context, p *policy.InfoPolicy, node *cluster.Node, commands ...string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, infoTimeout(p))
	defer cancel()
	return node.RequestInfo(ctx, commands...)
}
