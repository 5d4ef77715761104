// Package netset wraps go4.org/netipx with the small set algebra the
// rule engine needs: parsing CIDR literals, union, intersection, and
// containment over immutable IP sets.
package netset

import (
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

// Parse builds an IP set from a CIDR literal ("10.0.0.0/24") or a bare
// address ("10.0.0.5").
func Parse(s string) (*netipx.IPSet, error) {
	var b netipx.IPSetBuilder
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("parse cidr %q: %w", s, err)
		}
		b.AddPrefix(p.Masked())
	} else {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("parse address %q: %w", s, err)
		}
		b.Add(a)
	}
	return b.IPSet()
}

// ParseAll unions a list of CIDR or address literals into one set.
func ParseAll(items []string) (*netipx.IPSet, error) {
	var b netipx.IPSetBuilder
	for _, item := range items {
		s, err := Parse(item)
		if err != nil {
			return nil, err
		}
		b.AddSet(s)
	}
	return b.IPSet()
}

// MustParse is ParseAll for known-good literals. It panics on error and
// exists for tests and fixed configuration defaults.
func MustParse(items ...string) *netipx.IPSet {
	s, err := ParseAll(items)
	if err != nil {
		panic(err)
	}
	return s
}

// FromPrefixes rebuilds a set from its canonical prefix form.
func FromPrefixes(prefixes []netip.Prefix) (*netipx.IPSet, error) {
	var b netipx.IPSetBuilder
	for _, p := range prefixes {
		if !p.IsValid() {
			return nil, fmt.Errorf("invalid prefix %v", p)
		}
		b.AddPrefix(p)
	}
	return b.IPSet()
}

// Empty returns the empty set.
func Empty() *netipx.IPSet {
	var b netipx.IPSetBuilder
	s, _ := b.IPSet()
	return s
}

// Single returns the set holding exactly one address.
func Single(a netip.Addr) *netipx.IPSet {
	var b netipx.IPSetBuilder
	b.Add(a)
	s, _ := b.IPSet()
	return s
}

// Union returns the union of the given sets. Nil inputs are treated as
// empty.
func Union(sets ...*netipx.IPSet) *netipx.IPSet {
	var b netipx.IPSetBuilder
	for _, s := range sets {
		if s != nil {
			b.AddSet(s)
		}
	}
	out, _ := b.IPSet()
	return out
}

// Intersect returns the intersection of a and b.
func Intersect(a, b *netipx.IPSet) *netipx.IPSet {
	if a == nil || b == nil {
		return Empty()
	}
	var bld netipx.IPSetBuilder
	bld.AddSet(a)
	bld.Intersect(b)
	out, _ := bld.IPSet()
	return out
}

// ContainsSet reports whether inner is a subset of outer.
func ContainsSet(outer, inner *netipx.IPSet) bool {
	if inner == nil {
		return true
	}
	if outer == nil {
		return IsEmpty(inner)
	}
	for _, r := range inner.Ranges() {
		if !outer.ContainsRange(r) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the set holds no addresses.
func IsEmpty(s *netipx.IPSet) bool {
	return s == nil || len(s.Ranges()) == 0
}

// Format renders the set as its canonical comma-joined prefix list.
// Equal sets always format identically, so the result doubles as a map
// key.
func Format(s *netipx.IPSet) string {
	if s == nil {
		return ""
	}
	prefixes := s.Prefixes()
	parts := make([]string, len(prefixes))
	for i, p := range prefixes {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}
