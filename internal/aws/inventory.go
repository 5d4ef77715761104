package aws

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"golang.org/x/sync/errgroup"

	"github.com/eleven-am/perimeter/internal/domain"
)

// Options selects which service families join host and pool
// enumeration beyond EC2.
type Options struct {
	IncludeRDS           bool
	IncludeLambda        bool
	IncludeLoadBalancers bool
	IncludeElastiCache   bool
	CacheTTL             time.Duration
}

// Inventory implements domain.InventorySource for one AWS account,
// building per-region clients on demand.
type Inventory struct {
	cfg     aws.Config
	opts    Options
	mu      sync.Mutex
	clients map[string]*client
	groups  *groupCache
}

func NewInventory(cfg aws.Config, opts Options) *Inventory {
	return &Inventory{
		cfg:     cfg,
		opts:    opts,
		clients: make(map[string]*client),
		groups:  newGroupCache(opts.CacheTTL),
	}
}

func (inv *Inventory) regionClient(region string) *client {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if c, ok := inv.clients[region]; ok {
		return c
	}
	c := newClient(inv.cfg, region)
	inv.clients[region] = c
	return c
}

// collectRegions fans one fetch out across regions and flattens the
// results in region order, so output ordering is stable.
func collectRegions[T any](ctx context.Context, inv *Inventory, regions []string, fetch func(*client, context.Context) ([]T, error)) ([]T, error) {
	g, ctx := errgroup.WithContext(ctx)
	results := make([][]T, len(regions))
	for i, region := range regions {
		c := inv.regionClient(region)
		g.Go(func() error {
			items, err := fetch(c, ctx)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var flat []T
	for _, items := range results {
		flat = append(flat, items...)
	}
	return flat, nil
}

func (inv *Inventory) ListRegions(ctx context.Context) ([]string, error) {
	region := inv.cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return inv.regionClient(region).listRegions(ctx)
}

func (inv *Inventory) ListSubnets(ctx context.Context, regions []string) ([]domain.SubnetData, error) {
	return collectRegions(ctx, inv, regions, (*client).listSubnets)
}

func (inv *Inventory) ListHosts(ctx context.Context, regions []string) ([]domain.HostData, error) {
	hosts, err := collectRegions(ctx, inv, regions, (*client).listInstances)
	if err != nil {
		return nil, err
	}
	if inv.opts.IncludeRDS {
		dbHosts, err := collectRegions(ctx, inv, regions, (*client).listDatabaseHosts)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, dbHosts...)
	}
	return hosts, nil
}

func (inv *Inventory) ListPools(ctx context.Context, regions []string) ([]domain.PoolData, error) {
	var pools []domain.PoolData
	if inv.opts.IncludeLambda {
		lambdaPools, err := collectRegions(ctx, inv, regions, (*client).listLambdaPools)
		if err != nil {
			return nil, err
		}
		pools = append(pools, lambdaPools...)
	}
	if inv.opts.IncludeLoadBalancers {
		lbPools, err := collectRegions(ctx, inv, regions, (*client).listLoadBalancerPools)
		if err != nil {
			return nil, err
		}
		pools = append(pools, lbPools...)
	}
	if inv.opts.IncludeElastiCache {
		cachePools, err := collectRegions(ctx, inv, regions, (*client).listCachePools)
		if err != nil {
			return nil, err
		}
		pools = append(pools, cachePools...)
	}
	return pools, nil
}

func (inv *Inventory) ResolveSecurityGroup(ctx context.Context, id domain.SecurityGroupID) (*domain.SecurityGroupData, error) {
	if group, ok := inv.groups.get(id); ok {
		return group, nil
	}
	group, err := inv.regionClient(id.Region).getSecurityGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.groups.set(id, group)
	return group, nil
}
