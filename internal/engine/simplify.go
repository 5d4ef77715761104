package engine

import (
	"sort"

	"github.com/eleven-am/perimeter/internal/domain"
	"github.com/eleven-am/perimeter/internal/netset"
)

// Simplify returns a rule set permitting exactly the same
// (source, destination, application) triples with no redundant rules:
// identical rules collapse to one, and rules narrower than another rule
// in all three dimensions are dropped. When identical rules merge, the
// lexicographically earliest name survives. Simplify is idempotent and
// its output order is deterministic.
func Simplify(rules []domain.Rule) []domain.Rule {
	type keyed struct {
		rule   domain.Rule
		srcKey string
		dstKey string
	}

	byKey := make(map[string]int)
	var unique []keyed
	for _, rule := range rules {
		srcKey := netset.Format(rule.Src)
		dstKey := netset.Format(rule.Dst)
		key := rule.App + "|" + srcKey + "|" + dstKey
		if i, ok := byKey[key]; ok {
			if rule.Name < unique[i].rule.Name {
				unique[i].rule.Name = rule.Name
			}
			continue
		}
		byKey[key] = len(unique)
		unique = append(unique, keyed{rule: rule, srcKey: srcKey, dstKey: dstKey})
	}

	// A rule is redundant when another rule with the same app covers at
	// least its source and destination sets. Distinct entries cannot
	// cover each other mutually, and coverage is transitive, so a
	// single pairwise pass is safe.
	subsumed := make([]bool, len(unique))
	for j := range unique {
		for i := range unique {
			if i == j || unique[i].rule.App != unique[j].rule.App {
				continue
			}
			if netset.ContainsSet(unique[i].rule.Src, unique[j].rule.Src) &&
				netset.ContainsSet(unique[i].rule.Dst, unique[j].rule.Dst) {
				subsumed[j] = true
				break
			}
		}
	}

	out := make([]domain.Rule, 0, len(unique))
	keys := make([]keyed, 0, len(unique))
	for i, k := range unique {
		if !subsumed[i] {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.rule.App != b.rule.App {
			return a.rule.App < b.rule.App
		}
		if a.srcKey != b.srcKey {
			return a.srcKey < b.srcKey
		}
		if a.dstKey != b.dstKey {
			return a.dstKey < b.dstKey
		}
		return a.rule.Name < b.rule.Name
	})
	for _, k := range keys {
		out = append(out, k.rule)
	}
	return out
}
