package aws

import (
	"context"
	"fmt"

	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/eleven-am/perimeter/internal/domain"
)

// listLoadBalancerPools enumerates ALBs, NLBs, and classic load
// balancers. Balancer node addresses churn, so each balancer is a pool
// over its subnets rather than a set of host endpoints.
func (c *client) listLoadBalancerPools(ctx context.Context) ([]domain.PoolData, error) {
	v2Paginator := elbv2.NewDescribeLoadBalancersPaginator(c.elbv2Client, &elbv2.DescribeLoadBalancersInput{})
	pools, err := CollectPages(ctx,
		v2Paginator.HasMorePages,
		func(ctx context.Context) (*elbv2.DescribeLoadBalancersOutput, error) {
			return v2Paginator.NextPage(ctx)
		},
		func(out *elbv2.DescribeLoadBalancersOutput) []domain.PoolData {
			var pools []domain.PoolData
			for i := range out.LoadBalancers {
				if pool, ok := c.toLoadBalancerPool(&out.LoadBalancers[i]); ok {
					pools = append(pools, pool)
				}
			}
			return pools
		},
	)
	if err != nil {
		return nil, fmt.Errorf("describe load balancers in %s: %w", c.region, err)
	}

	classicPaginator := elb.NewDescribeLoadBalancersPaginator(c.elbClient, &elb.DescribeLoadBalancersInput{})
	classic, err := CollectPages(ctx,
		classicPaginator.HasMorePages,
		func(ctx context.Context) (*elb.DescribeLoadBalancersOutput, error) {
			return classicPaginator.NextPage(ctx)
		},
		func(out *elb.DescribeLoadBalancersOutput) []domain.PoolData {
			var pools []domain.PoolData
			for _, lb := range out.LoadBalancerDescriptions {
				if len(lb.Subnets) == 0 {
					continue
				}
				pools = append(pools, domain.PoolData{
					Label:          "clb=" + derefString(lb.LoadBalancerName),
					Region:         c.region,
					SubnetIDs:      lb.Subnets,
					SecurityGroups: lb.SecurityGroups,
				})
			}
			return pools
		},
	)
	if err != nil {
		return nil, fmt.Errorf("describe classic load balancers in %s: %w", c.region, err)
	}
	return append(pools, classic...), nil
}

func (c *client) toLoadBalancerPool(lb *elbv2types.LoadBalancer) (domain.PoolData, bool) {
	var prefix string
	switch lb.Type {
	case elbv2types.LoadBalancerTypeEnumApplication:
		prefix = "alb="
	case elbv2types.LoadBalancerTypeEnumNetwork:
		prefix = "nlb="
	default:
		// Gateway load balancers are traffic-inspection transit, not
		// reachable service endpoints.
		return domain.PoolData{}, false
	}

	var subnets []string
	for _, az := range lb.AvailabilityZones {
		if az.SubnetId != nil {
			subnets = append(subnets, *az.SubnetId)
		}
	}
	if len(subnets) == 0 {
		return domain.PoolData{}, false
	}
	return domain.PoolData{
		Label:          prefix + derefString(lb.LoadBalancerName),
		Region:         c.region,
		SubnetIDs:      subnets,
		SecurityGroups: lb.SecurityGroups,
	}, true
}
