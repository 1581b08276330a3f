// Package cluster maintains the live view of an Aerospike cluster:
// seed resolution, pooled connections, node discovery through the info
// sub-protocol and partition-to-node routing.
package cluster

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is used when a seed omits the port.
const DefaultPort = 3000

// Host is one cluster address. TLSName, when set, is the expected
// server certificate name.
type Host struct {
	Name    string
	Port    int
	TLSName string
}

func NewHost(name string, port int) *Host {
	return &Host{Name: name, Port: port}
}

func (h *Host) String() string {
	return net.JoinHostPort(h.Name, strconv.Itoa(h.Port))
}

func (h *Host) Equals(other *Host) bool {
	return h.Name == other.Name && h.Port == other.Port
}

// IsIP reports whether the host name is a literal address.
func (h *Host) IsIP() bool {
	return net.ParseIP(h.Name) != nil
}

// IsLoopback reports whether the host resolves trivially to loopback.
func (h *Host) IsLoopback() bool {
	if h.Name == "localhost" {
		return true
	}
	ip := net.ParseIP(h.Name)
	return ip != nil && ip.IsLoopback()
}

// Resolve expands the host into one entry per DNS address. Literal IPs
// pass through untouched.
func (h *Host) Resolve(ctx context.Context) ([]*Host, error) {
	if h.IsIP() {
		return []*Host{h}, nil
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, h.Name)
	if err != nil {
		return nil, fmt.Errorf("cluster: resolving %q: %w", h.Name, err)
	}
	out := make([]*Host, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, &Host{Name: a, Port: h.Port, TLSName: h.TLSName})
	}
	return out, nil
}

// ParseHosts splits a seed string of the form
// "host1:3000,host2:3100,host3". Entries without a port get
// defaultPort; IPv6 literals use brackets.
func ParseHosts(seeds string, defaultPort int) ([]*Host, error) {
	if defaultPort == 0 {
		defaultPort = DefaultPort
	}
	var hosts []*Host
	for _, part := range strings.Split(seeds, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := parseHost(part, defaultPort)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("cluster: no seed hosts in %q", seeds)
	}
	return hosts, nil
}

func parseHost(s string, defaultPort int) (*Host, error) {
	if strings.HasPrefix(s, "[") {
		// [v6]:port
		end := strings.Index(s, "]")
		if end < 0 {
			return nil, fmt.Errorf("cluster: unterminated IPv6 literal %q", s)
		}
		h := &Host{Name: s[1:end], Port: defaultPort}
		rest := s[end+1:]
		if strings.HasPrefix(rest, ":") {
			p, err := strconv.Atoi(rest[1:])
			if err != nil {
				return nil, fmt.Errorf("cluster: bad port in %q: %w", s, err)
			}
			h.Port = p
		}
		return h, nil
	}

	name, port, found := strings.Cut(s, ":")
	if name == "" {
		return nil, fmt.Errorf("cluster: empty host in %q", s)
	}
	h := &Host{Name: name, Port: defaultPort}
	if found {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("cluster: bad port in %q: %w", s, err)
		}
		h.Port = p
	}
	return h, nil
}
