package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/eleven-am/perimeter/internal/domain"
)

func (c *client) listInstances(ctx context.Context) ([]domain.HostData, error) {
	paginator := ec2.NewDescribeInstancesPaginator(c.ec2Client, &ec2.DescribeInstancesInput{})
	hosts, err := CollectPages(ctx,
		paginator.HasMorePages,
		func(ctx context.Context) (*ec2.DescribeInstancesOutput, error) {
			return paginator.NextPage(ctx)
		},
		func(out *ec2.DescribeInstancesOutput) []domain.HostData {
			var hosts []domain.HostData
			for _, reservation := range out.Reservations {
				for i := range reservation.Instances {
					hosts = append(hosts, toHostData(&reservation.Instances[i], c.region))
				}
			}
			return hosts
		},
	)
	if err != nil {
		return nil, fmt.Errorf("describe instances in %s: %w", c.region, err)
	}
	return hosts, nil
}

func (c *client) listDatabaseHosts(ctx context.Context) ([]domain.HostData, error) {
	paginator := rds.NewDescribeDBInstancesPaginator(c.rdsClient, &rds.DescribeDBInstancesInput{})
	dbInstances, err := CollectPages(ctx,
		paginator.HasMorePages,
		func(ctx context.Context) (*rds.DescribeDBInstancesOutput, error) {
			return paginator.NextPage(ctx)
		},
		func(out *rds.DescribeDBInstancesOutput) []rdsInstance {
			instances := make([]rdsInstance, 0, len(out.DBInstances))
			for i := range out.DBInstances {
				instances = append(instances, toRDSInstance(&out.DBInstances[i]))
			}
			return instances
		},
	)
	if err != nil {
		return nil, fmt.Errorf("describe rds instances in %s: %w", c.region, err)
	}

	hosts := make([]domain.HostData, 0, len(dbInstances))
	for _, db := range dbInstances {
		// RDS does not report the endpoint's private address; find it
		// through the ENI the service provisioned for the instance.
		privateIP, err := c.findRDSPrivateIP(ctx, db.id)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, domain.HostData{
			ID:             db.id,
			Name:           db.id,
			State:          db.status,
			PrivateIP:      privateIP,
			Region:         c.region,
			SecurityGroups: db.securityGroups,
		})
	}
	return hosts, nil
}

func (c *client) findRDSPrivateIP(ctx context.Context, dbInstanceID string) (string, error) {
	out, err := c.ec2Client.DescribeNetworkInterfaces(ctx, &ec2.DescribeNetworkInterfacesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("requester-id"), Values: []string{"amazon-rds"}},
			{Name: aws.String("description"), Values: []string{fmt.Sprintf("*%s*", dbInstanceID)}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("describe network interfaces for rds instance %s: %w", dbInstanceID, err)
	}
	if len(out.NetworkInterfaces) == 0 {
		return "", nil
	}
	return derefString(out.NetworkInterfaces[0].PrivateIpAddress), nil
}

func (c *client) listLambdaPools(ctx context.Context) ([]domain.PoolData, error) {
	paginator := lambda.NewListFunctionsPaginator(c.lambdaClient, &lambda.ListFunctionsInput{})
	pools, err := CollectPages(ctx,
		paginator.HasMorePages,
		func(ctx context.Context) (*lambda.ListFunctionsOutput, error) {
			return paginator.NextPage(ctx)
		},
		func(out *lambda.ListFunctionsOutput) []domain.PoolData {
			var pools []domain.PoolData
			for _, fn := range out.Functions {
				// Functions outside a VPC have no subnet placement and
				// no reachable private address.
				if fn.VpcConfig == nil || len(fn.VpcConfig.SubnetIds) == 0 {
					continue
				}
				pools = append(pools, domain.PoolData{
					Label:          "lambda=" + derefString(fn.FunctionName),
					Region:         c.region,
					SubnetIDs:      fn.VpcConfig.SubnetIds,
					SecurityGroups: fn.VpcConfig.SecurityGroupIds,
				})
			}
			return pools
		},
	)
	if err != nil {
		return nil, fmt.Errorf("list lambda functions in %s: %w", c.region, err)
	}
	return pools, nil
}
