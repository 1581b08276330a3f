package aero

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/exp"
	"github.com/phamduclong/aerogo/pkg/policy"
	"github.com/phamduclong/aerogo/pkg/query"
)

// CreateIndex builds a secondary index over a bin. The returned task
// completes when every node reports the index fully loaded.
func (c *Client) CreateIndex(ctx context.Context, p *policy.InfoPolicy,
	namespace, set, indexName, binName string, it query.IndexType, cit ...query.CollectionIndexType) (*IndexTask, error) {

	params := []string{"ns=" + namespace}
	if set != "" {
		params = append(params, "set="+set)
	}
	params = append(params, "indexname="+indexName)
	if len(cit) > 0 && cit[0] != query.CollectionDefault {
		params = append(params, "indextype="+collectionTypeName(cit[0]))
	}
	params = append(params, fmt.Sprintf("indexdata=%s,%s", binName, it))

	cmd := wire.FormatInfoCommand("sindex-create", params...)
	res, err := c.Info(ctx, p, cmd)
	if err != nil {
		return nil, err
	}
	if err := indexError(res[cmd]); err != nil {
		return nil, err
	}
	return &IndexTask{
		baseTask:  baseTask{client: c, policy: p},
		namespace: namespace,
		indexName: indexName,
	}, nil
}

// CreateIndexUsingExpression builds a secondary index over the value
// of a filter expression instead of a bin.
func (c *Client) CreateIndexUsingExpression(ctx context.Context, p *policy.InfoPolicy,
	namespace, set, indexName string, filter *exp.Expression,
	it query.IndexType, cit ...query.CollectionIndexType) (*IndexTask, error) {

	if filter == nil {
		return nil, fmt.Errorf("%w: index expression required", ErrInvalidArgument)
	}
	packed, err := filter.Pack()
	if err != nil {
		return nil, err
	}
	collection := query.CollectionDefault
	if len(cit) > 0 {
		collection = cit[0]
	}
	params := expressionIndexParams(namespace, set, indexName,
		base64.StdEncoding.EncodeToString(packed), it, collection)

	cmd := wire.FormatInfoCommand("sindex-create", params...)
	res, err := c.Info(ctx, p, cmd)
	if err != nil {
		return nil, err
	}
	if err := indexError(res[cmd]); err != nil {
		return nil, err
	}
	return &IndexTask{
		baseTask:  baseTask{client: c, policy: p},
		namespace: namespace,
		indexName: indexName,
	}, nil
}

// expressionIndexParams assembles the sindex-create parameters of an
// expression index; the expression rides base64-encoded in exp.
func expressionIndexParams(namespace, set, indexName, encodedExp string,
	it query.IndexType, cit query.CollectionIndexType) []string {

	params := []string{"ns=" + namespace}
	if set != "" {
		params = append(params, "set="+set)
	}
	params = append(params, "indexname="+indexName, "exp="+encodedExp)
	if cit != query.CollectionDefault {
		params = append(params, "indextype="+collectionTypeName(cit))
	}
	return append(params, fmt.Sprintf("type=%s", it))
}

// DropIndex removes a secondary index.
func (c *Client) DropIndex(ctx context.Context, p *policy.InfoPolicy, namespace, set, indexName string) error {
	params := []string{"ns=" + namespace}
	if set != "" {
		params = append(params, "set="+set)
	}
	params = append(params, "indexname="+indexName)

	cmd := wire.FormatInfoCommand("sindex-delete", params...)
	res, err := c.Info(ctx, p, cmd)
	if err != nil {
		return err
	}
	err = indexError(res[cmd])
	// Dropping an index that is already gone is not a failure.
	if err != nil && !strings.Contains(err.Error(), "not found") {
		return err
	}
	return nil
}

func collectionTypeName(cit query.CollectionIndexType) string {
	switch cit {
	case query.CollectionList:
		return "LIST"
	case query.CollectionMapKeys:
		return "MAPKEYS"
	case query.CollectionMapValues:
		return "MAPVALUES"
	default:
		return "DEFAULT"
	}
}

// indexError decodes sindex command responses, which signal errors as
// "FAIL:<code>:<message>" with the usual result codes.
func indexError(val string) error {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" || strings.EqualFold(trimmed, "OK") {
		return nil
	}
	parts := strings.SplitN(trimmed, ":", 3)
	if len(parts) >= 2 {
		var code int
		if _, err := fmt.Sscanf(parts[1], "%d", &code); err == nil {
			return serverError(ResultCode(code), "", false)
		}
	}
	return fmt.Errorf("aero: sindex command failed: %s", trimmed)
}

// Truncate removes all records of a set (or the whole namespace when
// set is empty) whose last-update-time is before beforeNanos; zero
// truncates everything present at the time of the call.
func (c *Client) Truncate(ctx context.Context, p *policy.InfoPolicy, namespace, set string, beforeNanos int64) error {
	var cmd string
	params := []string{"namespace=" + namespace}
	if set != "" {
		params = append(params, "set="+set)
		cmd = "truncate"
	} else {
		cmd = "truncate-namespace"
	}
	if beforeNanos > 0 {
		params = append(params, fmt.Sprintf("lut=%d", beforeNanos))
	}

	full := wire.FormatInfoCommand(cmd, params...)
	res, err := c.Info(ctx, p, full)
	if err != nil {
		return err
	}
	if err := infoError(res[full]); err != nil {
		return fmt.Errorf("aero: truncate %s/%s: %w", namespace, set, err)
	}
	return nil
}

// SetXDRFilter installs a filter expression on a cross-datacenter
// shipping lane; a nil expression clears it.
func (c *Client) SetXDRFilter(ctx context.Context, p *policy.InfoPolicy, datacenter, namespace string, filter *exp.Expression) error {
	encoded := "null"
	if filter != nil {
		packed, err := filter.Pack()
		if err != nil {
			return err
		}
		encoded = base64.StdEncoding.EncodeToString(packed)
	}
	cmd := wire.FormatInfoCommand("xdr-set-filter",
		"dc="+datacenter, "namespace="+namespace, "exp="+encoded)

	res, err := c.Info(ctx, p, cmd)
	if err != nil {
		return err
	}
	if err := infoError(res[cmd]); err != nil {
		return fmt.Errorf("aero: xdr filter %s/%s: %w", datacenter, namespace, err)
	}
	return nil
}
