package btcgraph

import (
	"fmt"
	"io"
)

// AddressGroup clusters addresses that co-sign inputs. All input addresses
// of one transaction are assumed to belong to the same entity, so they
// merge into the group of the first already-known member.
type AddressGroup struct {
	addrs   map[string]map[string]struct{} // group address -> members
	reverse map[string]string              // member -> group address
	order   []string                       // members in first-seen order
}

// NewAddressGroup creates an empty grouping.
func NewAddressGroup() *AddressGroup {
	return &AddressGroup{
		addrs:   make(map[string]map[string]struct{}),
		reverse: make(map[string]string),
	}
}

func (g *AddressGroup) register(addr, group string) {
	if _, seen := g.reverse[addr]; !seen {
		g.order = append(g.order, addr)
	}
	g.reverse[addr] = group
}

// Add merges the addresses into an existing group when any of them is
// known, otherwise starts a new group keyed by the first address.
func (g *AddressGroup) Add(addrs []string) {
	if len(addrs) == 0 {
		return
	}

	groupAddr := ""
	for _, addr := range addrs {
		if existing, ok := g.reverse[addr]; ok {
			groupAddr = existing
			for _, a := range addrs {
				g.addrs[groupAddr][a] = struct{}{}
			}
			break
		}
	}
	if groupAddr == "" {
		groupAddr = addrs[0]
		members := make(map[string]struct{}, len(addrs))
		for _, a := range addrs {
			members[a] = struct{}{}
		}
		g.addrs[groupAddr] = members
	}
	for _, addr := range addrs {
		g.register(addr, groupAddr)
	}
}

// GroupAddr returns the group address for addr, registering a singleton
// group for unknown addresses.
func (g *AddressGroup) GroupAddr(addr string) string {
	if group, ok := g.reverse[addr]; ok {
		return group
	}
	g.register(addr, addr)
	g.addrs[addr] = map[string]struct{}{addr: {}}
	return addr
}

// Write emits the member-to-group mapping, one "member group" line each,
// in first-seen order.
func (g *AddressGroup) Write(w io.Writer) error {
	for _, member := range g.order {
		if _, err := fmt.Fprintf(w, "%s %s\n", member, g.reverse[member]); err != nil {
			return err
		}
	}
	return nil
}
