// Package aws implements the inventory source against the AWS APIs:
// region, subnet, host, and pool enumeration plus cached security-group
// resolution, for one account across many regions.
package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/ratelimit"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
)

// ec2API is the EC2 surface the inventory calls.
type ec2API interface {
	ec2.DescribeSubnetsAPIClient
	ec2.DescribeInstancesAPIClient
	ec2.DescribeNetworkInterfacesAPIClient
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
}

// client bundles the per-region service clients the inventory walks.
type client struct {
	ec2Client         ec2API
	rdsClient         *rds.Client
	lambdaClient      *lambda.Client
	elbClient         *elb.Client
	elbv2Client       *elbv2.Client
	elasticacheClient *elasticache.Client
	region            string
}

func newRetryer() aws.Retryer {
	return retry.NewStandard(func(o *retry.StandardOptions) {
		o.MaxAttempts = 5
		o.MaxBackoff = 30 * time.Second
		o.Backoff = retry.NewExponentialJitterBackoff(o.MaxBackoff)
		o.RateLimiter = ratelimit.None
	})
}

func newClient(cfg aws.Config, region string) *client {
	cfg = cfg.Copy()
	cfg.Region = region
	retryer := newRetryer()
	return &client{
		ec2Client:         ec2.NewFromConfig(cfg, func(o *ec2.Options) { o.Retryer = retryer }),
		rdsClient:         rds.NewFromConfig(cfg, func(o *rds.Options) { o.Retryer = retryer }),
		lambdaClient:      lambda.NewFromConfig(cfg, func(o *lambda.Options) { o.Retryer = retryer }),
		elbClient:         elb.NewFromConfig(cfg, func(o *elb.Options) { o.Retryer = retryer }),
		elbv2Client:       elbv2.NewFromConfig(cfg, func(o *elbv2.Options) { o.Retryer = retryer }),
		elasticacheClient: elasticache.NewFromConfig(cfg, func(o *elasticache.Options) { o.Retryer = retryer }),
		region:            region,
	}
}
