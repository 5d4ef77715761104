package aws

import (
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/eleven-am/perimeter/internal/domain"
)

func toSubnetData(subnet *ec2types.Subnet, region string) domain.SubnetData {
	return domain.SubnetData{
		ID:        derefString(subnet.SubnetId),
		Region:    region,
		VPCID:     derefString(subnet.VpcId),
		CIDRBlock: derefString(subnet.CidrBlock),
		Name:      nameTag(subnet.Tags),
	}
}

func toHostData(inst *ec2types.Instance, region string) domain.HostData {
	var sgs []string
	for _, sg := range inst.SecurityGroups {
		if sg.GroupId != nil {
			sgs = append(sgs, *sg.GroupId)
		}
	}
	var state string
	if inst.State != nil {
		state = string(inst.State.Name)
	}
	return domain.HostData{
		ID:             derefString(inst.InstanceId),
		Name:           nameTag(inst.Tags),
		State:          state,
		PrivateIP:      derefString(inst.PrivateIpAddress),
		Region:         region,
		SecurityGroups: sgs,
	}
}

// rdsInstance is the slice of DBInstance the host listing needs before
// the separate ENI address lookup completes it.
type rdsInstance struct {
	id             string
	status         string
	securityGroups []string
}

func toRDSInstance(db *rdstypes.DBInstance) rdsInstance {
	var sgs []string
	for _, sg := range db.VpcSecurityGroups {
		if sg.VpcSecurityGroupId != nil {
			sgs = append(sgs, *sg.VpcSecurityGroupId)
		}
	}
	return rdsInstance{
		id:             derefString(db.DBInstanceIdentifier),
		status:         derefString(db.DBInstanceStatus),
		securityGroups: sgs,
	}
}

func toSecurityGroupData(sg *ec2types.SecurityGroup, region string) *domain.SecurityGroupData {
	return &domain.SecurityGroupData{
		ID:            derefString(sg.GroupId),
		Name:          derefString(sg.GroupName),
		Region:        region,
		VPCID:         derefString(sg.VpcId),
		InboundRules:  toSecurityGroupRules(sg.IpPermissions),
		OutboundRules: toSecurityGroupRules(sg.IpPermissionsEgress),
	}
}

func toSecurityGroupRules(perms []ec2types.IpPermission) []domain.SecurityGroupRule {
	var rules []domain.SecurityGroupRule
	for _, perm := range perms {
		var ipv4Cidrs []string
		for _, r := range perm.IpRanges {
			if r.CidrIp != nil {
				ipv4Cidrs = append(ipv4Cidrs, *r.CidrIp)
			}
		}

		var ipv6Cidrs []string
		for _, r := range perm.Ipv6Ranges {
			if r.CidrIpv6 != nil {
				ipv6Cidrs = append(ipv6Cidrs, *r.CidrIpv6)
			}
		}

		var referencedSGs []string
		for _, pair := range perm.UserIdGroupPairs {
			if pair.GroupId != nil {
				referencedSGs = append(referencedSGs, *pair.GroupId)
			}
		}

		var prefixListIDs []string
		for _, pl := range perm.PrefixListIds {
			if pl.PrefixListId != nil {
				prefixListIDs = append(prefixListIDs, *pl.PrefixListId)
			}
		}

		rules = append(rules, domain.SecurityGroupRule{
			Protocol:                 derefString(perm.IpProtocol),
			FromPort:                 int(derefInt32(perm.FromPort)),
			ToPort:                   int(derefInt32(perm.ToPort)),
			CIDRBlocks:               ipv4Cidrs,
			IPv6CIDRBlocks:           ipv6Cidrs,
			ReferencedSecurityGroups: referencedSGs,
			PrefixListIDs:            prefixListIDs,
		})
	}
	return rules
}

func nameTag(tags []ec2types.Tag) string {
	for _, tag := range tags {
		if derefString(tag.Key) == "Name" {
			return derefString(tag.Value)
		}
	}
	return ""
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt32(i *int32) int32 {
	if i == nil {
		return 0
	}
	return *i
}
