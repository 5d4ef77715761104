package aws

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/smithy-go"

	"github.com/eleven-am/perimeter/internal/domain"
)

func (c *client) listRegions(ctx context.Context) ([]string, error) {
	out, err := c.ec2Client.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return nil, fmt.Errorf("describe regions: %w", err)
	}
	var regions []string
	for _, region := range out.Regions {
		if region.RegionName != nil {
			regions = append(regions, *region.RegionName)
		}
	}
	sort.Strings(regions)
	return regions, nil
}

func (c *client) listSubnets(ctx context.Context) ([]domain.SubnetData, error) {
	paginator := ec2.NewDescribeSubnetsPaginator(c.ec2Client, &ec2.DescribeSubnetsInput{})
	pages, err := CollectPages(ctx,
		paginator.HasMorePages,
		func(ctx context.Context) (*ec2.DescribeSubnetsOutput, error) {
			return paginator.NextPage(ctx)
		},
		func(out *ec2.DescribeSubnetsOutput) []domain.SubnetData {
			subnets := make([]domain.SubnetData, 0, len(out.Subnets))
			for i := range out.Subnets {
				subnets = append(subnets, toSubnetData(&out.Subnets[i], c.region))
			}
			return subnets
		},
	)
	if err != nil {
		return nil, fmt.Errorf("describe subnets in %s: %w", c.region, err)
	}
	return pages, nil
}

func (c *client) getSecurityGroup(ctx context.Context, id domain.SecurityGroupID) (*domain.SecurityGroupData, error) {
	out, err := c.ec2Client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{id.ID},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidGroup.NotFound" {
			return nil, &domain.NotFoundError{Kind: "security group", ID: id.ID}
		}
		return nil, fmt.Errorf("describe security group %s: %w", id.ID, err)
	}
	if len(out.SecurityGroups) == 0 {
		return nil, &domain.NotFoundError{Kind: "security group", ID: id.ID}
	}
	return toSecurityGroupData(&out.SecurityGroups[0], c.region), nil
}
