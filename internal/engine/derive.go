package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sort"

	"go4.org/netipx"

	"github.com/eleven-am/perimeter/internal/domain"
	"github.com/eleven-am/perimeter/internal/netset"
)

// GroupResolver resolves a security group identifier to its rule
// detail. Implementations return *domain.NotFoundError for groups that
// do not exist; any other error aborts the run.
type GroupResolver interface {
	ResolveSecurityGroup(ctx context.Context, id domain.SecurityGroupID) (*domain.SecurityGroupData, error)
}

// SkipReason codes why an inventory record contributed no rules.
type SkipReason string

const (
	SkipNotLive              SkipReason = "not-live"
	SkipNoPrivateAddress     SkipReason = "no-private-address"
	SkipInvalidAddress       SkipReason = "invalid-address"
	SkipNoMatchingSubnet     SkipReason = "no-matching-subnet"
	SkipUnknownSubnetID      SkipReason = "unknown-subnet-id"
	SkipUnknownSecurityGroup SkipReason = "unknown-security-group"
	SkipGroupGrant           SkipReason = "security-group-grant"
	SkipPrefixListGrant      SkipReason = "prefix-list-grant"
	SkipInvalidGrant         SkipReason = "invalid-grant"
)

// Skip records one excluded record and why. Skips are expected in real
// inventories and never abort a run.
type Skip struct {
	Subject string
	Reason  SkipReason
	Detail  string
}

// aggregate is one rule target after the aggregation pass: a label for
// provenance, the destination set rules will point at, and the security
// groups whose grants apply to it.
type aggregate struct {
	label  string
	dst    *netipx.IPSet
	groups map[domain.SecurityGroupID]bool
}

// Deriver expands an inventory snapshot into reachability rules.
type Deriver struct {
	index    *SubnetIndex
	resolver GroupResolver
	log      *slog.Logger
}

func NewDeriver(index *SubnetIndex, resolver GroupResolver, log *slog.Logger) *Deriver {
	if log == nil {
		log = slog.Default()
	}
	return &Deriver{index: index, resolver: resolver, log: log}
}

// Derive aggregates hosts and pools into destination sets, then expands
// each aggregate's security groups into rules. Hosts in dynamic subnets
// merge into one aggregate per pool; hosts in static subnets each keep
// their own address as destination. The returned rules are raw; callers
// pass them through Simplify.
func (d *Deriver) Derive(ctx context.Context, hosts []domain.HostData, pools []domain.PoolData) ([]domain.Rule, []Skip, error) {
	aggregates := make(map[string]*aggregate)
	var skipped []Skip

	skip := func(subject string, reason SkipReason, detail string) {
		skipped = append(skipped, Skip{Subject: subject, Reason: reason, Detail: detail})
	}

	for _, host := range hosts {
		if host.State == "terminated" || host.State == "shutting-down" {
			skip(host.ID, SkipNotLive, host.State)
			continue
		}
		if host.PrivateIP == "" {
			d.log.Debug("ignoring host with no private address", "host", host.ID)
			skip(host.ID, SkipNoPrivateAddress, "")
			continue
		}
		addr, err := netip.ParseAddr(host.PrivateIP)
		if err != nil {
			d.log.Debug("ignoring host with unparsable address", "host", host.ID, "address", host.PrivateIP)
			skip(host.ID, SkipInvalidAddress, host.PrivateIP)
			continue
		}
		subnet, ok := d.index.Lookup(addr)
		if !ok {
			d.log.Debug("ignoring host with no matching subnet", "host", host.ID, "address", host.PrivateIP)
			skip(host.ID, SkipNoMatchingSubnet, host.PrivateIP)
			continue
		}

		var label string
		var dst *netipx.IPSet
		if subnet.Dynamic {
			label = "subnet=" + subnet.Name
			dst = d.index.PoolSet(subnet.Name)
		} else {
			name := host.Name
			if name == "" {
				name = host.ID
			}
			label = "host=" + name
			dst = netset.Single(addr)
		}

		agg, ok := aggregates[label]
		if !ok {
			agg = &aggregate{label: label, dst: dst, groups: make(map[domain.SecurityGroupID]bool)}
			aggregates[label] = agg
		} else {
			// Two static hosts can share a name tag; their aggregate
			// covers both addresses rather than dropping one.
			agg.dst = netset.Union(agg.dst, dst)
		}
		for _, groupID := range host.SecurityGroups {
			agg.groups[domain.SecurityGroupID{ID: groupID, Region: host.Region}] = true
		}
	}

	for _, pool := range pools {
		var b netipx.IPSetBuilder
		matched := false
		for _, subnetID := range pool.SubnetIDs {
			subnet, ok := d.index.ByID(subnetID)
			if !ok {
				d.log.Debug("pool references unknown subnet", "pool", pool.Label, "subnet", subnetID)
				skip(pool.Label, SkipUnknownSubnetID, subnetID)
				continue
			}
			b.AddPrefix(subnet.Prefix)
			matched = true
		}
		if !matched {
			skip(pool.Label, SkipNoMatchingSubnet, "")
			continue
		}
		dst, err := b.IPSet()
		if err != nil {
			return nil, nil, fmt.Errorf("build destination set for %s: %w", pool.Label, err)
		}

		agg, ok := aggregates[pool.Label]
		if !ok {
			agg = &aggregate{label: pool.Label, dst: dst, groups: make(map[domain.SecurityGroupID]bool)}
			aggregates[pool.Label] = agg
		} else {
			agg.dst = netset.Union(agg.dst, dst)
		}
		for _, groupID := range pool.SecurityGroups {
			agg.groups[domain.SecurityGroupID{ID: groupID, Region: pool.Region}] = true
		}
	}

	rules, expandSkips, err := d.expand(ctx, aggregates)
	if err != nil {
		return nil, nil, err
	}
	return rules, append(skipped, expandSkips...), nil
}

// expand resolves each aggregate's security groups and emits one rule
// per literal inbound grant.
func (d *Deriver) expand(ctx context.Context, aggregates map[string]*aggregate) ([]domain.Rule, []Skip, error) {
	labels := make([]string, 0, len(aggregates))
	for label := range aggregates {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var rules []domain.Rule
	var skipped []Skip

	for _, label := range labels {
		agg := aggregates[label]

		groupIDs := make([]domain.SecurityGroupID, 0, len(agg.groups))
		for id := range agg.groups {
			groupIDs = append(groupIDs, id)
		}
		sort.Slice(groupIDs, func(i, j int) bool {
			if groupIDs[i].Region != groupIDs[j].Region {
				return groupIDs[i].Region < groupIDs[j].Region
			}
			return groupIDs[i].ID < groupIDs[j].ID
		})

		for _, groupID := range groupIDs {
			group, err := d.resolver.ResolveSecurityGroup(ctx, groupID)
			if err != nil {
				var notFound *domain.NotFoundError
				if errors.As(err, &notFound) {
					d.log.Warn("no such security group", "group", groupID.ID, "region", groupID.Region)
					skipped = append(skipped, Skip{Subject: agg.label, Reason: SkipUnknownSecurityGroup, Detail: groupID.String()})
					continue
				}
				return nil, nil, fmt.Errorf("resolve security group %s: %w", groupID, err)
			}

			groupName := group.Name
			if groupName == "" {
				groupName = group.ID
			}
			ruleName := agg.label + "/sg=" + groupName

			for _, sgRule := range group.InboundRules {
				app := sgRule.App()
				for _, cidr := range append(append([]string{}, sgRule.CIDRBlocks...), sgRule.IPv6CIDRBlocks...) {
					src, err := netset.Parse(cidr)
					if err != nil {
						d.log.Warn("unparsable grant range", "group", group.ID, "cidr", cidr)
						skipped = append(skipped, Skip{Subject: group.ID, Reason: SkipInvalidGrant, Detail: cidr})
						continue
					}
					rules = append(rules, domain.Rule{
						Src:  src,
						Dst:  agg.dst,
						App:  app,
						Name: ruleName,
					})
				}
				for _, ref := range sgRule.ReferencedSecurityGroups {
					d.log.Warn("grants to other security groups are unsupported", "group", group.ID, "referenced", ref)
					skipped = append(skipped, Skip{Subject: group.ID, Reason: SkipGroupGrant, Detail: ref})
				}
				for _, prefixList := range sgRule.PrefixListIDs {
					d.log.Warn("prefix list grants are unsupported", "group", group.ID, "prefix_list", prefixList)
					skipped = append(skipped, Skip{Subject: group.ID, Reason: SkipPrefixListGrant, Detail: prefixList})
				}
			}
		}
	}
	return rules, skipped, nil
}
