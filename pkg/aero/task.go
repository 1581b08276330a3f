package aero

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/policy"
)

// Task is a server-side job that can be polled to completion.
type Task interface {
	// IsDone reports whether every node finished the job.
	IsDone(ctx context.Context) (bool, error)
}

const taskPollInterval = 250 * time.Millisecond

// WaitTillComplete polls the task until it finishes or the context
// expires.
func WaitTillComplete(ctx context.Context, t Task) error {
	ticker := time.NewTicker(taskPollInterval)
	defer ticker.Stop()
	for {
		done, err := t.IsDone(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type baseTask struct {
	client *Client
	policy *policy.InfoPolicy
}

// IndexTask tracks secondary-index build progress.
type IndexTask struct {
	baseTask
	namespace string
	indexName string
}

// IsDone checks load_pct on every node; an index a node no longer
// reports counts as done there.
func (t *IndexTask) IsDone(ctx context.Context) (bool, error) {
	cmd := fmt.Sprintf("sindex/%s/%s", t.namespace, t.indexName)
	values, err := t.client.infoPoll(ctx, t.policy, cmd)
	if err != nil {
		return false, err
	}
	for _, val := range values {
		if msg, failed := wire.ParseInfoError(val); failed {
			if strings.Contains(msg, "not found") || strings.Contains(msg, "201") {
				continue
			}
			return false, fmt.Errorf("aero: index status: %s", msg)
		}
		kv := wire.ParseKeyValueList(val)
		if kv["load_pct"] != "100" {
			return false, nil
		}
	}
	return true, nil
}

// RegisterTask tracks UDF module distribution.
type RegisterTask struct {
	baseTask
	filename string
}

func (t *RegisterTask) IsDone(ctx context.Context) (bool, error) {
	values, err := t.client.infoPoll(ctx, t.policy, "udf-list")
	if err != nil {
		return false, err
	}
	for _, val := range values {
		if !strings.Contains(val, "filename="+t.filename) {
			return false, nil
		}
	}
	return true, nil
}

// RemoveTask tracks UDF module removal.
type RemoveTask struct {
	baseTask
	filename string
}

func (t *RemoveTask) IsDone(ctx context.Context) (bool, error) {
	values, err := t.client.infoPoll(ctx, t.policy, "udf-list")
	if err != nil {
		return false, err
	}
	for _, val := range values {
		if strings.Contains(val, "filename="+t.filename) {
			return false, nil
		}
	}
	return true, nil
}

// ExecuteTask tracks a background scan or query job by its task id.
type ExecuteTask struct {
	baseTask
	taskID uint64
	isScan bool
}

// NewExecuteTask tracks the job behind a recordset.
func (c *Client) NewExecuteTask(rs *Recordset, isScan bool) *ExecuteTask {
	return &ExecuteTask{
		baseTask: baseTask{client: c, policy: c.DefaultInfoPolicy},
		taskID:   rs.TaskID(),
		isScan:   isScan,
	}
}

func (t *ExecuteTask) IsDone(ctx context.Context) (bool, error) {
	if err := t.client.checkFeature("job status polling", wire.Version.SupportsQueryShow); err != nil {
		return false, err
	}
	module := "query"
	if t.isScan {
		module = "scan"
	}
	cmd := fmt.Sprintf("%s-show:trid=%d", module, t.taskID)

	values, err := t.client.infoPoll(ctx, t.policy, cmd)
	if err != nil {
		return false, err
	}
	for _, val := range values {
		if msg, failed := wire.ParseInfoError(val); failed {
			// A node that no longer knows the transaction finished it.
			if strings.Contains(strings.ToLower(msg), "not found") {
				continue
			}
			return false, fmt.Errorf("aero: job status: %s", msg)
		}
		kv := wire.ParseKeyValueList(val)
		switch status := kv["status"]; {
		case status == "":
			continue
		case strings.HasPrefix(status, "done"):
		case strings.HasPrefix(status, "active"):
			return false, nil
		default:
			return false, nil
		}
	}
	return true, nil
}
