package domain

import "context"

// InventorySource supplies one immutable snapshot of a cloud
// environment. Implementations own authentication, pagination, and
// retry policy.
type InventorySource interface {
	ListRegions(ctx context.Context) ([]string, error)
	ListSubnets(ctx context.Context, regions []string) ([]SubnetData, error)
	ListHosts(ctx context.Context, regions []string) ([]HostData, error)
	ListPools(ctx context.Context, regions []string) ([]PoolData, error)
	ResolveSecurityGroup(ctx context.Context, id SecurityGroupID) (*SecurityGroupData, error)
}

// RuleStore persists derived scopes keyed by scope name. A Save
// followed by a Load must reproduce the scope exactly.
type RuleStore interface {
	Save(scope AddressSpaceScope) error
	Load(name string) (AddressSpaceScope, error)
	List() ([]string, error)
}
