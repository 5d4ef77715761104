// Package engine holds the rule derivation pipeline: subnet
// classification, security-group expansion, simplification, and
// cross-scope combination. All operations are pure transformations over
// one immutable inventory snapshot.
package engine

import (
	"net/netip"
	"sort"

	"go4.org/netipx"

	"github.com/eleven-am/perimeter/internal/domain"
	"github.com/eleven-am/perimeter/internal/netset"
)

// Subnet is one classified subnet. Dynamic subnets host interchangeable
// pool members and are aggregated as one logical destination; static
// subnets keep each host as a distinct destination.
type Subnet struct {
	Prefix  netip.Prefix
	ID      string
	Name    string
	Region  string
	Dynamic bool
}

// SubnetIndex answers address-to-subnet lookups by binary search over
// subnets sorted by range start. Ranges must be disjoint; Classify
// rejects inventories where they are not.
type SubnetIndex struct {
	subnets []Subnet
	byID    map[string]Subnet
	pools   map[string]*netipx.IPSet
}

// Classify builds the subnet index for one derivation run. A subnet is
// dynamic when its name or ID appears in the dynamic set. Multiple
// subnets sharing a dynamic name form one pool whose destination set is
// the union of their ranges.
func Classify(subnets []domain.SubnetData, dynamic map[string]bool) (*SubnetIndex, error) {
	index := &SubnetIndex{
		byID:  make(map[string]Subnet, len(subnets)),
		pools: make(map[string]*netipx.IPSet),
	}

	poolBuilders := make(map[string]*netipx.IPSetBuilder)
	for _, sd := range subnets {
		prefix, err := netip.ParsePrefix(sd.CIDRBlock)
		if err != nil {
			return nil, domain.NewConfigError("subnet %s has unparsable range %q: %v", sd.ID, sd.CIDRBlock, err)
		}
		name := sd.Name
		if name == "" {
			name = sd.ID
		}
		subnet := Subnet{
			Prefix:  prefix.Masked(),
			ID:      sd.ID,
			Name:    name,
			Region:  sd.Region,
			Dynamic: dynamic[name] || dynamic[sd.ID],
		}
		index.subnets = append(index.subnets, subnet)
		index.byID[subnet.ID] = subnet

		if subnet.Dynamic {
			b, ok := poolBuilders[subnet.Name]
			if !ok {
				b = &netipx.IPSetBuilder{}
				poolBuilders[subnet.Name] = b
			}
			b.AddPrefix(subnet.Prefix)
		}
	}

	sort.Slice(index.subnets, func(i, j int) bool {
		return index.subnets[i].Prefix.Addr().Compare(index.subnets[j].Prefix.Addr()) < 0
	})

	// Disjoint ranges mean a sorted scan needs only adjacent pairs to
	// prove no overlap exists anywhere.
	for i := 1; i < len(index.subnets); i++ {
		prev, cur := index.subnets[i-1], index.subnets[i]
		if netipx.RangeOfPrefix(prev.Prefix).To().Compare(cur.Prefix.Addr()) >= 0 {
			return nil, domain.NewConfigError(
				"subnet ranges overlap: %s (%s) and %s (%s)",
				prev.ID, prev.Prefix, cur.ID, cur.Prefix)
		}
	}

	for name, b := range poolBuilders {
		set, err := b.IPSet()
		if err != nil {
			return nil, domain.NewConfigError("build pool %s: %v", name, err)
		}
		index.pools[name] = set
	}
	return index, nil
}

// Lookup resolves an address to the unique subnet containing it.
func (ix *SubnetIndex) Lookup(addr netip.Addr) (Subnet, bool) {
	// Rightmost subnet whose range start is <= addr.
	i := sort.Search(len(ix.subnets), func(i int) bool {
		return ix.subnets[i].Prefix.Addr().Compare(addr) > 0
	})
	if i == 0 {
		return Subnet{}, false
	}
	candidate := ix.subnets[i-1]
	if !candidate.Prefix.Contains(addr) {
		return Subnet{}, false
	}
	return candidate, true
}

// ByID resolves a subnet identifier.
func (ix *SubnetIndex) ByID(id string) (Subnet, bool) {
	s, ok := ix.byID[id]
	return s, ok
}

// PoolSet returns the destination set of a dynamic pool: the union of
// the ranges of every subnet sharing the pool name.
func (ix *SubnetIndex) PoolSet(name string) *netipx.IPSet {
	if s, ok := ix.pools[name]; ok {
		return s
	}
	return netset.Empty()
}
