package perimeter

import (
	internalaws "github.com/eleven-am/perimeter/internal/aws"
	"github.com/eleven-am/perimeter/internal/domain"
	"github.com/eleven-am/perimeter/internal/engine"
	"github.com/eleven-am/perimeter/internal/store"
)

// Rule is a single permitted flow: a source address set, a destination
// address set, an application label like "tcp/443", and a name recording
// where the rule came from.
type Rule = domain.Rule

// AddressSpaceScope is a named slice of the network, its declared IP
// space, and the rules derived within it.
type AddressSpaceScope = domain.AddressSpaceScope

// SecurityGroupID identifies a security group within a region.
type SecurityGroupID = domain.SecurityGroupID

type SubnetData = domain.SubnetData

type HostData = domain.HostData

type PoolData = domain.PoolData

type SecurityGroupData = domain.SecurityGroupData

type SecurityGroupRule = domain.SecurityGroupRule

// InventorySource supplies the raw network inventory a derivation runs
// over. The AWS implementation is returned by NewInventory.
type InventorySource = domain.InventorySource

// RuleStore persists derived scopes. NewFileStore returns the
// file-backed implementation.
type RuleStore = domain.RuleStore

// Skip records an inventory item the deriver left out and why.
type Skip = engine.Skip

type SkipReason = engine.SkipReason

const (
	SkipNotLive              = engine.SkipNotLive
	SkipNoPrivateAddress     = engine.SkipNoPrivateAddress
	SkipInvalidAddress       = engine.SkipInvalidAddress
	SkipNoMatchingSubnet     = engine.SkipNoMatchingSubnet
	SkipUnknownSubnetID      = engine.SkipUnknownSubnetID
	SkipUnknownSecurityGroup = engine.SkipUnknownSecurityGroup
	SkipGroupGrant           = engine.SkipGroupGrant
	SkipPrefixListGrant      = engine.SkipPrefixListGrant
	SkipInvalidGrant         = engine.SkipInvalidGrant
)

// ConfigError reports a misconfiguration the caller must fix, such as
// overlapping subnets or overlapping declared address spaces.
type ConfigError = domain.ConfigError

// NotFoundError reports a referenced resource that does not exist.
type NotFoundError = domain.NotFoundError

// Inventory is the AWS-backed InventorySource.
type Inventory = internalaws.Inventory

// InventoryOptions selects which AWS services contribute inventory.
type InventoryOptions = internalaws.Options

// AccountContext manages cross-account access via STS role assumption.
type AccountContext = internalaws.AccountContext

// FileStore persists scopes as one deterministic file per scope name.
type FileStore = store.FileStore
