package domain

import (
	"fmt"

	"go4.org/netipx"
)

// Rule states that addresses in Src may reach addresses in Dst for the
// application App ("tcp/443", "udp/500-510", "*"). Name is a provenance
// label for audit output and is never part of rule identity.
type Rule struct {
	Src  *netipx.IPSet
	Dst  *netipx.IPSet
	App  string
	Name string
}

// AddressSpaceScope is one independently analyzed environment: its
// declared address coverage and the simplified rules derived for it.
type AddressSpaceScope struct {
	Name    string
	IPSpace *netipx.IPSet
	Rules   []Rule
}

// SecurityGroupID identifies a security group within a region. It is an
// opaque lookup key; resolution is owned by the inventory source.
type SecurityGroupID struct {
	ID     string
	Region string
}

func (id SecurityGroupID) String() string {
	return fmt.Sprintf("%s@%s", id.ID, id.Region)
}
