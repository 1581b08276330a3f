package wire

import (
	"fmt"
	"strings"
)

// The info sub-protocol is newline-delimited text framed by the usual
// 8-byte proto header with message type 1. Each request line is a
// command; each response line is "command\tvalue".

// BuildInfoRequest frames the given commands into an info request.
func BuildInfoRequest(commands []string) []byte {
	var sb strings.Builder
	for _, cmd := range commands {
		sb.WriteString(cmd)
		sb.WriteByte('\n')
	}
	body := sb.String()

	buf := GetBuffer()
	defer buf.Release()
	buf.WriteUint64(uint64(ProtoVersion)<<56 | uint64(MsgTypeInfo)<<48 | uint64(len(body)))
	buf.WriteString(body)
	return append([]byte(nil), buf.Bytes()...)
}

// ParseInfoResponse splits an info response body into a command→value
// map. Commands the server does not recognize are simply absent.
func ParseInfoResponse(body []byte) (map[string]string, error) {
	res := make(map[string]string)
	for _, line := range strings.Split(string(body), "\n") {
		if line == "" {
			continue
		}
		name, val, found := strings.Cut(line, "\t")
		if !found {
			// Single-token line: command echoed with no value.
			res[name] = ""
			continue
		}
		res[name] = val
	}
	return res, nil
}

// ParseInfoError extracts the error description from an info response
// value of the form "ERROR:<code>:<message>" or "FAIL:...".
func ParseInfoError(val string) (string, bool) {
	upper := strings.ToUpper(val)
	if strings.HasPrefix(upper, "ERROR") || strings.HasPrefix(upper, "FAIL") {
		parts := strings.SplitN(val, ":", 3)
		return parts[len(parts)-1], true
	}
	return "", false
}

// ParseKeyValueList parses an info value of ";"-separated "k=v" pairs.
func ParseKeyValueList(val string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(val, ";") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		out[k] = v
	}
	return out
}

// FormatInfoCommand joins a command name with "k=v" parameters, e.g.
// "truncate:namespace=test;set=demo".
func FormatInfoCommand(name string, params ...string) string {
	if len(params) == 0 {
		return name
	}
	return fmt.Sprintf("%s:%s", name, strings.Join(params, ";"))
}
