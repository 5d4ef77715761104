package main

import (
	"fmt"
	"os"

	"go4.org/netipx"
	"gopkg.in/yaml.v3"

	"github.com/eleven-am/perimeter"
)

// Config is the audit configuration loaded from --config. One file
// declares every scope: which account and regions to inventory, the IP
// space the scope owns, and which subnets hold interchangeable pools.
type Config struct {
	// Store is the directory rule files are written to and read from.
	Store string `yaml:"store"`

	// RolePattern is the IAM role ARN assumed for scopes that name an
	// account, with %s as the account ID placeholder.
	RolePattern string `yaml:"role_pattern"`

	Scopes []ScopeConfig `yaml:"scopes"`
}

// ScopeConfig declares one address-space scope.
type ScopeConfig struct {
	Name string `yaml:"name"`

	// Account is the AWS account ID to assume into. Empty means the
	// ambient credentials.
	Account string `yaml:"account"`

	// Regions limits inventory collection. Empty means every region.
	Regions []string `yaml:"regions"`

	// IPSpace is the CIDR blocks this scope owns. Rules derived here
	// are clipped to this space when scopes are combined.
	IPSpace []string `yaml:"ip_space"`

	// DynamicSubnets names subnets whose hosts are pooled rather than
	// tracked individually.
	DynamicSubnets []string `yaml:"dynamic_subnets"`

	Include IncludeConfig `yaml:"include"`
}

// IncludeConfig toggles inventory sources beyond EC2 instances.
type IncludeConfig struct {
	RDS           bool `yaml:"rds"`
	Lambda        bool `yaml:"lambda"`
	LoadBalancers bool `yaml:"load_balancers"`
	ElastiCache   bool `yaml:"elasticache"`
}

// LoadConfig reads and validates the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Store == "" {
		c.Store = "rules"
	}
	if len(c.Scopes) == 0 {
		return fmt.Errorf("no scopes declared")
	}
	seen := make(map[string]bool, len(c.Scopes))
	for i, scope := range c.Scopes {
		if scope.Name == "" {
			return fmt.Errorf("scope %d has no name", i)
		}
		if seen[scope.Name] {
			return fmt.Errorf("scope %q declared twice", scope.Name)
		}
		seen[scope.Name] = true
		if len(scope.IPSpace) == 0 {
			return fmt.Errorf("scope %q declares no ip_space", scope.Name)
		}
		if _, err := scope.ipSpace(); err != nil {
			return fmt.Errorf("scope %q: %w", scope.Name, err)
		}
		if scope.Account != "" && c.RolePattern == "" {
			return fmt.Errorf("scope %q names an account but no role_pattern is set", scope.Name)
		}
	}
	return nil
}

func (c *Config) scope(name string) (ScopeConfig, bool) {
	for _, scope := range c.Scopes {
		if scope.Name == name {
			return scope, true
		}
	}
	return ScopeConfig{}, false
}

func (s ScopeConfig) ipSpace() (*netipx.IPSet, error) {
	set, err := perimeter.ParseAddressSpace(s.IPSpace)
	if err != nil {
		return nil, fmt.Errorf("parse ip_space: %w", err)
	}
	return set, nil
}

func (s ScopeConfig) inventoryOptions() perimeter.InventoryOptions {
	return perimeter.InventoryOptions{
		IncludeRDS:           s.Include.RDS,
		IncludeLambda:        s.Include.Lambda,
		IncludeLoadBalancers: s.Include.LoadBalancers,
		IncludeElastiCache:   s.Include.ElastiCache,
	}
}
