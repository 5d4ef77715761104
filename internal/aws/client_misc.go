package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	elasticachetypes "github.com/aws/aws-sdk-go-v2/service/elasticache/types"

	"github.com/eleven-am/perimeter/internal/domain"
)

// listCachePools enumerates ElastiCache clusters as pools over the
// subnets of their cache subnet groups.
func (c *client) listCachePools(ctx context.Context) ([]domain.PoolData, error) {
	paginator := elasticache.NewDescribeCacheClustersPaginator(c.elasticacheClient, &elasticache.DescribeCacheClustersInput{})
	clusters, err := CollectPages(ctx,
		paginator.HasMorePages,
		func(ctx context.Context) (*elasticache.DescribeCacheClustersOutput, error) {
			return paginator.NextPage(ctx)
		},
		func(out *elasticache.DescribeCacheClustersOutput) []elasticachetypes.CacheCluster {
			return out.CacheClusters
		},
	)
	if err != nil {
		return nil, fmt.Errorf("describe cache clusters in %s: %w", c.region, err)
	}

	subnetsByGroup := make(map[string][]string)
	var pools []domain.PoolData
	for i := range clusters {
		cluster := &clusters[i]
		groupName := derefString(cluster.CacheSubnetGroupName)
		if groupName == "" {
			continue
		}
		subnets, ok := subnetsByGroup[groupName]
		if !ok {
			subnets, err = c.cacheSubnetGroupSubnets(ctx, groupName)
			if err != nil {
				return nil, err
			}
			subnetsByGroup[groupName] = subnets
		}
		if len(subnets) == 0 {
			continue
		}

		var sgs []string
		for _, membership := range cluster.SecurityGroups {
			if membership.SecurityGroupId != nil {
				sgs = append(sgs, *membership.SecurityGroupId)
			}
		}
		pools = append(pools, domain.PoolData{
			Label:          "cache=" + derefString(cluster.CacheClusterId),
			Region:         c.region,
			SubnetIDs:      subnets,
			SecurityGroups: sgs,
		})
	}
	return pools, nil
}

func (c *client) cacheSubnetGroupSubnets(ctx context.Context, groupName string) ([]string, error) {
	out, err := c.elasticacheClient.DescribeCacheSubnetGroups(ctx, &elasticache.DescribeCacheSubnetGroupsInput{
		CacheSubnetGroupName: aws.String(groupName),
	})
	if err != nil {
		return nil, fmt.Errorf("describe cache subnet group %s: %w", groupName, err)
	}
	var subnets []string
	for _, group := range out.CacheSubnetGroups {
		for _, subnet := range group.Subnets {
			if subnet.SubnetIdentifier != nil {
				subnets = append(subnets, *subnet.SubnetIdentifier)
			}
		}
	}
	return subnets, nil
}
