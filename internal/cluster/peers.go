package cluster

import (
	"fmt"
	"strconv"
	"strings"
)

// Peer is one entry of a peers-* info response.
type Peer struct {
	NodeName string
	TLSName  string
	Hosts    []*Host
}

// parsePeers decodes a "peers-clear-std" / "peers-tls-std" response:
// "generation,defaultPort,[[name,tlsName,[addr,...]],...]".
func parsePeers(resp string) (generation int, peers []Peer, err error) {
	parts := strings.SplitN(resp, ",", 3)
	if len(parts) != 3 {
		return 0, nil, fmt.Errorf("cluster: bad peers response %q", resp)
	}
	generation, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, nil, fmt.Errorf("cluster: bad peers generation: %w", err)
	}
	defaultPort := DefaultPort
	if parts[1] != "" {
		defaultPort, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, nil, fmt.Errorf("cluster: bad peers port: %w", err)
		}
	}

	list := strings.TrimSpace(parts[2])
	if !strings.HasPrefix(list, "[") || !strings.HasSuffix(list, "]") {
		return 0, nil, fmt.Errorf("cluster: bad peers list %q", list)
	}
	list = list[1 : len(list)-1]

	for len(list) > 0 {
		entry, rest, perr := cutBracketed(list)
		if perr != nil {
			return 0, nil, perr
		}
		list = rest

		peer, perr := parsePeer(entry, defaultPort)
		if perr != nil {
			return 0, nil, perr
		}
		peers = append(peers, peer)
	}
	return generation, peers, nil
}

// cutBracketed splits "[...],tail" into the bracket contents and tail.
func cutBracketed(s string) (inner, rest string, err error) {
	if !strings.HasPrefix(s, "[") {
		return "", "", fmt.Errorf("cluster: expected '[' in peers list at %q", s)
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				rest = s[i+1:]
				rest = strings.TrimPrefix(rest, ",")
				return s[1:i], rest, nil
			}
		}
	}
	return "", "", fmt.Errorf("cluster: unbalanced brackets in peers list %q", s)
}

// parsePeer decodes "name,tlsName,[addr1,addr2]".
func parsePeer(entry string, defaultPort int) (Peer, error) {
	name, rest, found := strings.Cut(entry, ",")
	if !found {
		return Peer{}, fmt.Errorf("cluster: bad peer entry %q", entry)
	}
	tlsName, rest, found := strings.Cut(rest, ",")
	if !found {
		return Peer{}, fmt.Errorf("cluster: bad peer entry %q", entry)
	}
	addrs, _, err := cutBracketed(rest)
	if err != nil {
		return Peer{}, err
	}

	p := Peer{NodeName: name, TLSName: tlsName}
	for _, a := range strings.Split(addrs, ",") {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		h, err := parseHost(a, defaultPort)
		if err != nil {
			return Peer{}, err
		}
		h.TLSName = tlsName
		p.Hosts = append(p.Hosts, h)
	}
	return p, nil
}

// parseRacks decodes a "racks:" response into node-name → rack id per
// namespace: "ns=test:rack_1=nodeA,nodeB:rack_2=nodeC;ns=...".
func parseRacks(resp string) map[string]map[string]int {
	out := map[string]map[string]int{}
	for _, entry := range strings.Split(resp, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.Split(entry, ":")
		ns := ""
		for _, f := range fields {
			k, v, found := strings.Cut(f, "=")
			if !found {
				continue
			}
			switch {
			case k == "ns":
				ns = v
			case strings.HasPrefix(k, "rack_") && ns != "":
				id, err := strconv.Atoi(strings.TrimPrefix(k, "rack_"))
				if err != nil {
					continue
				}
				if out[ns] == nil {
					out[ns] = map[string]int{}
				}
				for _, nodeName := range strings.Split(v, ",") {
					out[ns][nodeName] = id
				}
			}
		}
	}
	return out
}
