package aero

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/phamduclong/aerogo/internal/cluster"
	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/policy"
	"github.com/phamduclong/aerogo/pkg/value"
)

// UDFLanguage is the runtime of a registered module.
type UDFLanguage string

const LuaLanguage UDFLanguage = "LUA"

// UDFModule describes one registered module.
type UDFModule struct {
	Filename string
	Hash     string
	Language UDFLanguage
}

// RegisterUDF uploads a module under the given filename. The returned
// task completes when every node reports the module.
func (c *Client) RegisterUDF(ctx context.Context, p *policy.InfoPolicy, content []byte, filename string, language UDFLanguage) (*RegisterTask, error) {
	encoded := base64.StdEncoding.EncodeToString(content)
	cmd := wire.FormatInfoCommand("udf-put",
		"filename="+filename,
		"content="+encoded,
		"content-len="+strconv.Itoa(len(encoded)),
		"udf-type="+string(language))

	res, err := c.Info(ctx, p, cmd)
	if err != nil {
		return nil, err
	}
	if err := infoError(res[cmd]); err != nil {
		return nil, fmt.Errorf("aero: register udf %s: %w", filename, err)
	}
	return &RegisterTask{baseTask: baseTask{client: c, policy: p}, filename: filename}, nil
}

// RegisterUDFFromFile uploads a module read from disk, registered
// under the file's base name.
func (c *Client) RegisterUDFFromFile(ctx context.Context, p *policy.InfoPolicy, path string, language UDFLanguage) (*RegisterTask, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("aero: read udf module: %w", err)
	}
	return c.RegisterUDF(ctx, p, content, filepath.Base(path), language)
}

// RemoveUDF deletes a registered module. The returned task completes
// when every node dropped it.
func (c *Client) RemoveUDF(ctx context.Context, p *policy.InfoPolicy, filename string) (*RemoveTask, error) {
	cmd := wire.FormatInfoCommand("udf-remove", "filename="+filename)
	res, err := c.Info(ctx, p, cmd)
	if err != nil {
		return nil, err
	}
	if err := infoError(res[cmd]); err != nil {
		return nil, fmt.Errorf("aero: remove udf %s: %w", filename, err)
	}
	return &RemoveTask{baseTask: baseTask{client: c, policy: p}, filename: filename}, nil
}

// ListUDF returns the registered modules.
func (c *Client) ListUDF(ctx context.Context, p *policy.InfoPolicy) ([]*UDFModule, error) {
	const cmd = "udf-list"
	res, err := c.Info(ctx, p, cmd)
	if err != nil {
		return nil, err
	}
	return parseUDFList(res[cmd]), nil
}

func parseUDFList(val string) []*UDFModule {
	var out []*UDFModule
	for _, entry := range strings.Split(val, ";") {
		if entry == "" {
			continue
		}
		kv := wire.ParseKeyValueList(strings.ReplaceAll(entry, ",", ";"))
		if kv["filename"] == "" {
			continue
		}
		out = append(out, &UDFModule{
			Filename: kv["filename"],
			Hash:     kv["hash"],
			Language: UDFLanguage(strings.ToUpper(kv["type"])),
		})
	}
	return out
}

// ExecuteUDF applies a record UDF to one key and returns the function
// result, nil for void functions.
func (c *Client) ExecuteUDF(ctx context.Context, p *policy.WritePolicy, key *Key,
	packageName, functionName string, args ...value.Value) (value.Value, error) {

	p = c.writePolicy(p)
	request, err := buildExecuteUDF(key, p, packageName, functionName, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	var result value.Value = value.NilValue{}
	err = c.execute(ctx, &p.BasePolicy, key.namespace, key.PartitionID(), false, request,
		func(h wire.MessageHeader, body []byte, _ *cluster.Node) error {
			rec, err := parseRecord(key, h, body)
			if err != nil {
				return err
			}
			return parseUDFResult(rec, &result)
		})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// parseUDFResult extracts SUCCESS or FAILURE from the response bins.
func parseUDFResult(rec *Record, result *value.Value) error {
	for name, v := range rec.Bins {
		if name == "SUCCESS" || strings.HasSuffix(name, ":SUCCESS") {
			*result = v
			return nil
		}
	}
	for name, v := range rec.Bins {
		if name == "FAILURE" || strings.HasSuffix(name, ":FAILURE") {
			return fmt.Errorf("aero: udf failed: %s", v)
		}
	}
	return nil
}

func buildExecuteUDF(key *Key, p *policy.WritePolicy, packageName, functionName string, args []value.Value) ([]byte, error) {
	buf := wire.GetBuffer()
	defer buf.Release()

	wire.BeginMessage(buf)
	fieldCount, err := writeKeyFields(buf, key, p.SendKey, p.FilterExpression)
	if err != nil {
		return nil, err
	}
	wire.WriteFieldString(buf, wire.FieldUDFPackageName, packageName)
	wire.WriteFieldString(buf, wire.FieldUDFFunction, functionName)
	argBytes, err := packValueList(args)
	if err != nil {
		return nil, err
	}
	wire.WriteFieldBytes(buf, wire.FieldUDFArgList, argBytes)
	fieldCount += 3

	_, info2, info3 := writePolicyFlags(p)
	wire.EndMessage(buf, wire.MessageHeader{
		Info2:          info2,
		Info3:          info3,
		Generation:     p.Generation,
		Expiration:     uint32(p.Expiration),
		TransactionTTL: transactionTTL(&p.BasePolicy),
		FieldCount:     fieldCount,
	})
	return append([]byte(nil), buf.Bytes()...), nil
}

// infoError converts an info response value into an error when the
// server reported one.
func infoError(val string) error {
	if msg, failed := wire.ParseInfoError(val); failed {
		return fmt.Errorf("server error: %s", strings.TrimSpace(msg))
	}
	return nil
}

// infoPoll is a shared helper for task polling: runs one info command
// on every node and returns the per-node values.
func (c *Client) infoPoll(ctx context.Context, p *policy.InfoPolicy, cmd string) (map[string]string, error) {
	all, err := c.InfoOnAllNodes(ctx, p, cmd)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(all))
	for node, m := range all {
		out[node] = m[cmd]
	}
	return out, nil
}
