package aws

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
)

func TestToHostData(t *testing.T) {
	inst := &ec2types.Instance{
		InstanceId:       aws.String("i-0abc"),
		PrivateIpAddress: aws.String("10.0.0.5"),
		State:            &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
		Tags: []ec2types.Tag{
			{Key: aws.String("env"), Value: aws.String("prod")},
			{Key: aws.String("Name"), Value: aws.String("web-1")},
		},
		SecurityGroups: []ec2types.GroupIdentifier{
			{GroupId: aws.String("sg-1")},
			{GroupId: aws.String("sg-2")},
		},
	}

	host := toHostData(inst, "us-east-1")
	if host.ID != "i-0abc" {
		t.Errorf("expected ID i-0abc, got %q", host.ID)
	}
	if host.Name != "web-1" {
		t.Errorf("expected Name tag web-1, got %q", host.Name)
	}
	if host.State != "running" {
		t.Errorf("expected state running, got %q", host.State)
	}
	if host.PrivateIP != "10.0.0.5" {
		t.Errorf("expected private IP 10.0.0.5, got %q", host.PrivateIP)
	}
	if host.Region != "us-east-1" {
		t.Errorf("expected region us-east-1, got %q", host.Region)
	}
	if len(host.SecurityGroups) != 2 || host.SecurityGroups[0] != "sg-1" {
		t.Errorf("unexpected security groups %v", host.SecurityGroups)
	}
}

func TestToHostData_MissingFields(t *testing.T) {
	host := toHostData(&ec2types.Instance{InstanceId: aws.String("i-1")}, "eu-west-1")
	if host.Name != "" || host.State != "" || host.PrivateIP != "" {
		t.Errorf("expected empty optional fields, got %+v", host)
	}
	if len(host.SecurityGroups) != 0 {
		t.Errorf("expected no security groups, got %v", host.SecurityGroups)
	}
}

func TestToSubnetData(t *testing.T) {
	subnet := &ec2types.Subnet{
		SubnetId:  aws.String("subnet-1"),
		VpcId:     aws.String("vpc-1"),
		CidrBlock: aws.String("10.0.1.0/24"),
		Tags:      []ec2types.Tag{{Key: aws.String("Name"), Value: aws.String("pool-a")}},
	}

	data := toSubnetData(subnet, "us-east-1")
	if data.ID != "subnet-1" || data.VPCID != "vpc-1" {
		t.Errorf("unexpected identifiers %+v", data)
	}
	if data.CIDRBlock != "10.0.1.0/24" {
		t.Errorf("expected CIDR 10.0.1.0/24, got %q", data.CIDRBlock)
	}
	if data.Name != "pool-a" {
		t.Errorf("expected name pool-a, got %q", data.Name)
	}
}

func TestToSecurityGroupRules(t *testing.T) {
	perms := []ec2types.IpPermission{
		{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(443),
			ToPort:     aws.Int32(443),
			IpRanges: []ec2types.IpRange{
				{CidrIp: aws.String("0.0.0.0/0")},
				{CidrIp: aws.String("10.0.0.0/8")},
			},
			Ipv6Ranges: []ec2types.Ipv6Range{
				{CidrIpv6: aws.String("::/0")},
			},
			UserIdGroupPairs: []ec2types.UserIdGroupPair{
				{GroupId: aws.String("sg-other")},
			},
			PrefixListIds: []ec2types.PrefixListId{
				{PrefixListId: aws.String("pl-1")},
			},
		},
		{
			IpProtocol: aws.String("-1"),
		},
	}

	rules := toSecurityGroupRules(perms)
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}

	first := rules[0]
	if first.Protocol != "tcp" || first.FromPort != 443 || first.ToPort != 443 {
		t.Errorf("unexpected protocol/ports %+v", first)
	}
	if len(first.CIDRBlocks) != 2 || first.CIDRBlocks[0] != "0.0.0.0/0" {
		t.Errorf("unexpected IPv4 ranges %v", first.CIDRBlocks)
	}
	if len(first.IPv6CIDRBlocks) != 1 || first.IPv6CIDRBlocks[0] != "::/0" {
		t.Errorf("unexpected IPv6 ranges %v", first.IPv6CIDRBlocks)
	}
	if len(first.ReferencedSecurityGroups) != 1 || first.ReferencedSecurityGroups[0] != "sg-other" {
		t.Errorf("unexpected group references %v", first.ReferencedSecurityGroups)
	}
	if len(first.PrefixListIDs) != 1 || first.PrefixListIDs[0] != "pl-1" {
		t.Errorf("unexpected prefix lists %v", first.PrefixListIDs)
	}

	second := rules[1]
	if second.Protocol != "-1" || second.FromPort != 0 || second.ToPort != 0 {
		t.Errorf("unexpected all-traffic rule %+v", second)
	}
}

func TestToSecurityGroupData(t *testing.T) {
	sg := &ec2types.SecurityGroup{
		GroupId:   aws.String("sg-1"),
		GroupName: aws.String("web"),
		VpcId:     aws.String("vpc-1"),
		IpPermissions: []ec2types.IpPermission{
			{IpProtocol: aws.String("tcp"), FromPort: aws.Int32(80), ToPort: aws.Int32(80)},
		},
	}

	data := toSecurityGroupData(sg, "us-east-1")
	if data.ID != "sg-1" || data.Name != "web" || data.Region != "us-east-1" {
		t.Errorf("unexpected group data %+v", data)
	}
	if len(data.InboundRules) != 1 || len(data.OutboundRules) != 0 {
		t.Errorf("unexpected rule counts in %+v", data)
	}
}

func TestToRDSInstance(t *testing.T) {
	db := &rdstypes.DBInstance{
		DBInstanceIdentifier: aws.String("orders-db"),
		DBInstanceStatus:     aws.String("available"),
		VpcSecurityGroups: []rdstypes.VpcSecurityGroupMembership{
			{VpcSecurityGroupId: aws.String("sg-db")},
		},
	}

	inst := toRDSInstance(db)
	if inst.id != "orders-db" || inst.status != "available" {
		t.Errorf("unexpected instance %+v", inst)
	}
	if len(inst.securityGroups) != 1 || inst.securityGroups[0] != "sg-db" {
		t.Errorf("unexpected security groups %v", inst.securityGroups)
	}
}

func TestNameTag(t *testing.T) {
	tags := []ec2types.Tag{
		{Key: aws.String("team"), Value: aws.String("infra")},
		{Key: aws.String("Name"), Value: aws.String("bastion")},
	}
	if got := nameTag(tags); got != "bastion" {
		t.Errorf("expected bastion, got %q", got)
	}
	if got := nameTag(nil); got != "" {
		t.Errorf("expected empty name for no tags, got %q", got)
	}
}
