package domain

import "fmt"

// SubnetData is one subnet as reported by the inventory source. Name is
// the Name tag when present, otherwise the subnet ID.
type SubnetData struct {
	ID        string
	Region    string
	VPCID     string
	CIDRBlock string
	Name      string
}

// HostData is an addressable, individually significant endpoint: an EC2
// instance or a database instance. Name falls back to ID when the
// inventory carries no human name.
type HostData struct {
	ID             string
	Name           string
	State          string
	PrivateIP      string
	Region         string
	SecurityGroups []string
}

// PoolData is a service endpoint whose members are interchangeable and
// ephemeral (Lambda ENIs, load balancer nodes, cache nodes). It is
// aggregated over the ranges of its subnets rather than any member
// address.
type PoolData struct {
	Label          string
	Region         string
	SubnetIDs      []string
	SecurityGroups []string
}

// SecurityGroupData is the resolved detail of one security group.
type SecurityGroupData struct {
	ID            string
	Name          string
	Region        string
	VPCID         string
	InboundRules  []SecurityGroupRule
	OutboundRules []SecurityGroupRule
}

// SecurityGroupRule is one permission entry. Each CIDR block is a
// literal grant; referenced groups and prefix lists are grants the rule
// deriver reports as unsupported.
type SecurityGroupRule struct {
	Protocol                 string
	FromPort                 int
	ToPort                   int
	CIDRBlocks               []string
	IPv6CIDRBlocks           []string
	ReferencedSecurityGroups []string
	PrefixListIDs            []string
}

// App renders the rule's protocol/port as an application descriptor.
func (r SecurityGroupRule) App() string {
	if r.Protocol == "" || r.Protocol == "-1" {
		return "*"
	}
	if r.FromPort == r.ToPort {
		return fmt.Sprintf("%s/%d", r.Protocol, r.FromPort)
	}
	return fmt.Sprintf("%s/%d-%d", r.Protocol, r.FromPort, r.ToPort)
}
