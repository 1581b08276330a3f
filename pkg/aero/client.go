package aero

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthanhphan/gosdk/logger"

	"github.com/phamduclong/aerogo/internal/cluster"
	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/cdt"
	"github.com/phamduclong/aerogo/pkg/policy"
)

// Client is the application-facing handle to a cluster. All methods
// are safe for concurrent use.
type Client struct {
	cluster *cluster.Cluster

	// Defaults apply when the per-call policy is nil.
	DefaultPolicy      *policy.BasePolicy
	DefaultWritePolicy *policy.WritePolicy
	DefaultScanPolicy  *policy.ScanPolicy
	DefaultQueryPolicy *policy.QueryPolicy
	DefaultBatchPolicy *policy.BatchPolicy
	DefaultInfoPolicy  *policy.InfoPolicy
	DefaultAdminPolicy *policy.AdminPolicy
}

// NewClient connects to the cluster behind the seed string
// ("host1:3000,host2") and starts the background tender.
func NewClient(ctx context.Context, seeds string, p *policy.ClientPolicy) (*Client, error) {
	hosts, err := cluster.ParseHosts(seeds, cluster.DefaultPort)
	if err != nil {
		return nil, err
	}
	cl, err := cluster.NewCluster(ctx, hosts, p)
	if err != nil {
		return nil, err
	}
	logger.Infow("connected", "seeds", seeds, "nodes", len(cl.Nodes()))
	return &Client{
		cluster:            cl,
		DefaultPolicy:      policy.NewBasePolicy(),
		DefaultWritePolicy: policy.NewWritePolicy(),
		DefaultScanPolicy:  policy.NewScanPolicy(),
		DefaultQueryPolicy: policy.NewQueryPolicy(),
		DefaultBatchPolicy: policy.NewBatchPolicy(),
		DefaultInfoPolicy:  policy.NewInfoPolicy(),
		DefaultAdminPolicy: policy.NewAdminPolicy(),
	}, nil
}

// Close stops the tender and releases every connection.
func (c *Client) Close() { c.cluster.Close() }

// IsConnected reports whether at least one node is reachable.
func (c *Client) IsConnected() bool { return c.cluster.IsConnected() }

// NodeNames lists the current cluster members.
func (c *Client) NodeNames() []string {
	nodes := c.cluster.Nodes()
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name())
	}
	return out
}

// checkFeature refuses a command up front when the oldest cluster
// member cannot serve it. An empty membership passes; the command will
// fail on routing instead.
func (c *Client) checkFeature(name string, supported func(wire.Version) bool) error {
	if c.cluster == nil {
		return nil
	}
	v, ok := c.cluster.MinVersion()
	return featureError(name, v, ok, supported)
}

func featureError(name string, v wire.Version, ok bool, supported func(wire.Version) bool) error {
	if !ok || supported(v) {
		return nil
	}
	return fmt.Errorf("%w: %s (cluster minimum is %s)", ErrUnsupportedFeature, name, v)
}

func (c *Client) basePolicy(p *policy.BasePolicy) *policy.BasePolicy {
	if p == nil {
		return c.DefaultPolicy
	}
	return p
}

func (c *Client) writePolicy(p *policy.WritePolicy) *policy.WritePolicy {
	if p == nil {
		return c.DefaultWritePolicy
	}
	return p
}

// Get reads the named bins, or the whole record when none are given.
func (c *Client) Get(ctx context.Context, p *policy.BasePolicy, key *Key, binNames ...string) (*Record, error) {
	p = c.basePolicy(p)
	request, err := buildGet(key, p, binNames, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	var rec *Record
	err = c.execute(ctx, p, key.namespace, key.PartitionID(), true, request,
		func(h wire.MessageHeader, body []byte, _ *cluster.Node) error {
			rec, err = parseRecord(key, h, body)
			return err
		})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetHeader reads generation and expiration without bin data.
func (c *Client) GetHeader(ctx context.Context, p *policy.BasePolicy, key *Key) (*Record, error) {
	p = c.basePolicy(p)
	request, err := buildGet(key, p, nil, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	var rec *Record
	err = c.execute(ctx, p, key.namespace, key.PartitionID(), true, request,
		func(h wire.MessageHeader, body []byte, _ *cluster.Node) error {
			rec = &Record{Key: key, Generation: h.Generation, Expiration: h.Expiration}
			return nil
		})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Exists reports whether the record is present.
func (c *Client) Exists(ctx context.Context, p *policy.BasePolicy, key *Key) (bool, error) {
	_, err := c.GetHeader(ctx, p, key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Put writes the bins.
func (c *Client) Put(ctx context.Context, p *policy.WritePolicy, key *Key, bins ...Bin) error {
	return c.write(ctx, p, key, wire.OpWrite, bins)
}

// Add increments integer or float bins.
func (c *Client) Add(ctx context.Context, p *policy.WritePolicy, key *Key, bins ...Bin) error {
	return c.write(ctx, p, key, wire.OpAdd, bins)
}

// Append appends to string or blob bins.
func (c *Client) Append(ctx context.Context, p *policy.WritePolicy, key *Key, bins ...Bin) error {
	return c.write(ctx, p, key, wire.OpAppend, bins)
}

// Prepend prepends to string or blob bins.
func (c *Client) Prepend(ctx context.Context, p *policy.WritePolicy, key *Key, bins ...Bin) error {
	return c.write(ctx, p, key, wire.OpPrepend, bins)
}

func (c *Client) write(ctx context.Context, p *policy.WritePolicy, key *Key, op wire.OpType, bins []Bin) error {
	if len(bins) == 0 {
		return fmt.Errorf("%w: no bins", ErrInvalidArgument)
	}
	p = c.writePolicy(p)
	request, err := buildPut(key, p, op, bins)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return c.execute(ctx, &p.BasePolicy, key.namespace, key.PartitionID(), false, request,
		func(wire.MessageHeader, []byte, *cluster.Node) error { return nil })
}

// Delete removes the record, reporting whether it existed.
func (c *Client) Delete(ctx context.Context, p *policy.WritePolicy, key *Key) (bool, error) {
	p = c.writePolicy(p)
	request, err := buildDelete(key, p)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	err = c.execute(ctx, &p.BasePolicy, key.namespace, key.PartitionID(), false, request,
		func(wire.MessageHeader, []byte, *cluster.Node) error { return nil })
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Touch resets the record TTL per the policy expiration.
func (c *Client) Touch(ctx context.Context, p *policy.WritePolicy, key *Key) error {
	p = c.writePolicy(p)
	request, err := buildTouch(key, p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return c.execute(ctx, &p.BasePolicy, key.namespace, key.PartitionID(), false, request,
		func(wire.MessageHeader, []byte, *cluster.Node) error { return nil })
}

// Operate runs the operations atomically against one record and
// returns the read results.
func (c *Client) Operate(ctx context.Context, p *policy.WritePolicy, key *Key, ops ...*cdt.Operation) (*Record, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: no operations", ErrInvalidArgument)
	}
	p = c.writePolicy(p)
	request, err := buildOperate(key, p, ops)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	isRead := true
	hasExpOps := false
	for _, op := range ops {
		switch op.OpType() {
		case wire.OpRead, wire.OpCDTRead, wire.OpBitRead, wire.OpHLLRead,
			wire.OpReadHeader:
		case wire.OpExpRead:
			hasExpOps = true
		case wire.OpExpModify:
			hasExpOps = true
			isRead = false
		default:
			isRead = false
		}
	}
	if hasExpOps {
		if err := c.checkFeature("expression operations", wire.Version.SupportsExpressionOps); err != nil {
			return nil, err
		}
	}

	var rec *Record
	err = c.execute(ctx, &p.BasePolicy, key.namespace, key.PartitionID(), isRead, request,
		func(h wire.MessageHeader, body []byte, _ *cluster.Node) error {
			rec, err = parseRecord(key, h, body)
			return err
		})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
