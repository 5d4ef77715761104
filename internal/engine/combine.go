package engine

import (
	"sort"

	"github.com/eleven-am/perimeter/internal/domain"
	"github.com/eleven-am/perimeter/internal/netset"
)

// Combine merges rule sets derived for independently declared address
// spaces. A scope's rules are first restricted to its own declared
// space on both source and destination, so no scope can claim
// reachability for addresses it does not own; rules whose restriction
// is empty on either side are dropped. Declared spaces must be
// non-empty and disjoint. The concatenated result is simplified before
// return.
func Combine(scopes map[string]domain.AddressSpaceScope) ([]domain.Rule, error) {
	names := make([]string, 0, len(scopes))
	for name := range scopes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if netset.IsEmpty(scopes[name].IPSpace) {
			return nil, domain.NewConfigError(
				"scope %s declares an empty address space", name)
		}
	}
	for i, a := range names {
		for _, b := range names[i+1:] {
			if scopes[a].IPSpace.Overlaps(scopes[b].IPSpace) {
				return nil, domain.NewConfigError(
					"declared address spaces overlap: %s and %s", a, b)
			}
		}
	}

	var merged []domain.Rule
	for _, name := range names {
		scope := scopes[name]
		for _, rule := range scope.Rules {
			src := netset.Intersect(rule.Src, scope.IPSpace)
			dst := netset.Intersect(rule.Dst, scope.IPSpace)
			if netset.IsEmpty(src) || netset.IsEmpty(dst) {
				continue
			}
			merged = append(merged, domain.Rule{
				Src:  src,
				Dst:  dst,
				App:  rule.App,
				Name: rule.Name,
			})
		}
	}
	return Simplify(merged), nil
}
