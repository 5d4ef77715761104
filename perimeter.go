package perimeter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go4.org/netipx"

	internalaws "github.com/eleven-am/perimeter/internal/aws"
	"github.com/eleven-am/perimeter/internal/engine"
	"github.com/eleven-am/perimeter/internal/netset"
	"github.com/eleven-am/perimeter/internal/store"
)

// NewInventory creates an AWS-backed inventory source from a loaded AWS
// config. Options select which services beyond EC2 contribute hosts and
// pools.
func NewInventory(cfg aws.Config, opts InventoryOptions) *Inventory {
	return internalaws.NewInventory(cfg, opts)
}

// NewAccountContext creates an account context for cross-account AWS
// access. The roleARNPattern should contain %s as a placeholder for the
// account ID. Example: "arn:aws:iam::%s:role/PerimeterAuditRole"
func NewAccountContext(cfg aws.Config, roleARNPattern string, opts InventoryOptions) *AccountContext {
	return internalaws.NewAccountContext(cfg, roleARNPattern, opts)
}

// NewFileStore creates a rule store that writes one file per scope
// under dir.
func NewFileStore(dir string) *FileStore {
	return store.NewFileStore(dir)
}

// ParseAddressSpace parses CIDR blocks into the address set form used
// by AddressSpaceScope.IPSpace and rule endpoints.
func ParseAddressSpace(cidrs []string) (*netipx.IPSet, error) {
	return netset.ParseAll(cidrs)
}

// DeriveOptions controls a derivation run.
type DeriveOptions struct {
	// Regions limits the run to the named regions. Empty means every
	// region the source reports.
	Regions []string

	// DynamicSubnets names the subnets whose hosts are treated as an
	// interchangeable pool rather than individual endpoints. Entries
	// match subnet Name tags, or subnet IDs for unnamed subnets.
	DynamicSubnets []string

	// Logger receives progress and skip diagnostics. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// DeriveResult is the outcome of a derivation run: the simplified rules
// and a record of every inventory item that was skipped.
type DeriveResult struct {
	Rules []Rule
	Skips []Skip
}

// DeriveRules runs a full derivation over the source's inventory:
// subnets are classified, hosts and pools are aggregated into rule
// endpoints, security group grants are expanded into rules, and the
// result is deduplicated and ordered deterministically.
func DeriveRules(ctx context.Context, src InventorySource, opts DeriveOptions) (DeriveResult, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	regions := opts.Regions
	if len(regions) == 0 {
		var err error
		regions, err = src.ListRegions(ctx)
		if err != nil {
			return DeriveResult{}, fmt.Errorf("list regions: %w", err)
		}
	}
	log.Info("deriving rules", "regions", regions)

	subnets, err := src.ListSubnets(ctx, regions)
	if err != nil {
		return DeriveResult{}, fmt.Errorf("list subnets: %w", err)
	}

	hosts, err := src.ListHosts(ctx, regions)
	if err != nil {
		return DeriveResult{}, fmt.Errorf("list hosts: %w", err)
	}

	pools, err := src.ListPools(ctx, regions)
	if err != nil {
		return DeriveResult{}, fmt.Errorf("list pools: %w", err)
	}
	log.Info("inventory collected",
		"subnets", len(subnets), "hosts", len(hosts), "pools", len(pools))

	dynamic := make(map[string]bool, len(opts.DynamicSubnets))
	for _, name := range opts.DynamicSubnets {
		dynamic[name] = true
	}

	index, err := engine.Classify(subnets, dynamic)
	if err != nil {
		return DeriveResult{}, fmt.Errorf("classify subnets: %w", err)
	}

	deriver := engine.NewDeriver(index, src, log)
	rules, skips, err := deriver.Derive(ctx, hosts, pools)
	if err != nil {
		return DeriveResult{}, err
	}

	simplified := engine.Simplify(rules)
	log.Info("derivation complete",
		"rules", len(simplified), "raw_rules", len(rules), "skips", len(skips))
	return DeriveResult{Rules: simplified, Skips: skips}, nil
}

// Combine merges independently derived scopes into one rule set. Each
// scope's rules are restricted to its declared IP space; overlapping
// declared spaces are a configuration error.
func Combine(scopes map[string]AddressSpaceScope) ([]Rule, error) {
	return engine.Combine(scopes)
}

// Simplify deduplicates a rule set, removes rules subsumed by broader
// rules with the same application, and orders the result
// deterministically.
func Simplify(rules []Rule) []Rule {
	return engine.Simplify(rules)
}

var _ InventorySource = (*Inventory)(nil)

var _ RuleStore = (*FileStore)(nil)
