package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
	"go4.org/netipx"

	"github.com/eleven-am/perimeter"
)

var (
	configFile string
	logLevel   string
	logFile    string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "perimeter",
		Short: "Derive and audit network reachability rules from cloud inventory",
		Long: `perimeter reads cloud network inventory (instances, subnets, security
groups, managed services) and derives the set of permitted flows as
explicit rules. Each address-space scope is derived on its own and the
per-scope rule sets are combined into one auditable view.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(setupLogger(logLevel, logFile))
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "perimeter.yaml", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path (default: stderr)")

	rootCmd.AddCommand(newDeriveCmd())
	rootCmd.AddCommand(newCombineCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newRegionsCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newDeriveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "derive [scope...]",
		Short: "Derive rules for the named scopes (default: all) and write them to the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return err
			}

			targets := cfg.Scopes
			if len(args) > 0 {
				var selected []ScopeConfig
				for _, name := range args {
					scope, ok := cfg.scope(name)
					if !ok {
						return fmt.Errorf("scope %q not declared in %s", name, configFile)
					}
					selected = append(selected, scope)
				}
				targets = selected
			}

			st := perimeter.NewFileStore(cfg.Store)
			for _, scope := range targets {
				if err := deriveScope(cmd, cfg, scope, st); err != nil {
					return fmt.Errorf("derive scope %q: %w", scope.Name, err)
				}
			}
			return nil
		},
	}
}

func deriveScope(cmd *cobra.Command, cfg *Config, scope ScopeConfig, st perimeter.RuleStore) error {
	ctx := cmd.Context()
	log := slog.Default().With("scope", scope.Name)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	var inv *perimeter.Inventory
	if scope.Account != "" {
		accounts := perimeter.NewAccountContext(awsCfg, cfg.RolePattern, scope.inventoryOptions())
		inv, err = accounts.GetInventory(ctx, scope.Account)
		if err != nil {
			return fmt.Errorf("assume role for account %s: %w", scope.Account, err)
		}
	} else {
		inv = perimeter.NewInventory(awsCfg, scope.inventoryOptions())
	}

	result, err := perimeter.DeriveRules(ctx, inv, perimeter.DeriveOptions{
		Regions:        scope.Regions,
		DynamicSubnets: scope.DynamicSubnets,
		Logger:         log,
	})
	if err != nil {
		return err
	}
	for _, skip := range result.Skips {
		log.Warn("skipped inventory item",
			"subject", skip.Subject, "reason", skip.Reason, "detail", skip.Detail)
	}

	ipSpace, err := scope.ipSpace()
	if err != nil {
		return err
	}
	if err := st.Save(perimeter.AddressSpaceScope{
		Name:    scope.Name,
		IPSpace: ipSpace,
		Rules:   result.Rules,
	}); err != nil {
		return fmt.Errorf("save scope: %w", err)
	}
	log.Info("scope saved", "rules", len(result.Rules), "skips", len(result.Skips))
	return nil
}

func newCombineCmd() *cobra.Command {
	var outScope string
	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Combine every stored scope into one rule set and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return err
			}

			st := perimeter.NewFileStore(cfg.Store)
			scopes := make(map[string]perimeter.AddressSpaceScope, len(cfg.Scopes))
			for _, declared := range cfg.Scopes {
				scope, err := st.Load(declared.Name)
				if err != nil {
					return fmt.Errorf("load scope %q (run derive first): %w", declared.Name, err)
				}
				scopes[declared.Name] = scope
			}

			rules, err := perimeter.Combine(scopes)
			if err != nil {
				return err
			}
			printRules(cmd.OutOrStdout(), rules)

			if outScope != "" {
				var spaces []*netipx.IPSet
				for _, scope := range scopes {
					spaces = append(spaces, scope.IPSpace)
				}
				merged := perimeter.AddressSpaceScope{
					Name:    outScope,
					IPSpace: unionSets(spaces),
					Rules:   rules,
				}
				if err := st.Save(merged); err != nil {
					return fmt.Errorf("save combined scope %q: %w", outScope, err)
				}
			}
			slog.Info("scopes combined", "scopes", len(scopes), "rules", len(rules))
			return nil
		},
	}
	cmd.Flags().StringVar(&outScope, "out", "", "Store the combined rules under this scope name")
	return cmd
}

func unionSets(sets []*netipx.IPSet) *netipx.IPSet {
	var b netipx.IPSetBuilder
	for _, set := range sets {
		if set != nil {
			b.AddSet(set)
		}
	}
	union, _ := b.IPSet()
	return union
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <scope>",
		Short: "Print the stored rules for one scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return err
			}
			scope, err := perimeter.NewFileStore(cfg.Store).Load(args[0])
			if err != nil {
				return err
			}
			printRules(cmd.OutOrStdout(), scope.Rules)
			return nil
		},
	}
}

func newRegionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List the regions available to the ambient credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return fmt.Errorf("load aws config: %w", err)
			}
			regions, err := perimeter.NewInventory(awsCfg, perimeter.InventoryOptions{}).ListRegions(ctx)
			if err != nil {
				return err
			}
			for _, region := range regions {
				fmt.Fprintln(cmd.OutOrStdout(), region)
			}
			return nil
		},
	}
}

func printRules(w io.Writer, rules []perimeter.Rule) {
	for _, rule := range rules {
		fmt.Fprintf(w, "%s\t%s\t%s -> %s\n",
			rule.Name, rule.App, formatSet(rule.Src), formatSet(rule.Dst))
	}
}

func formatSet(set *netipx.IPSet) string {
	prefixes := set.Prefixes()
	parts := make([]string, len(prefixes))
	for i, p := range prefixes {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}

func setupLogger(level, logFilePath string) *slog.Logger {
	var logWriter io.Writer = os.Stderr
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			logWriter = f
		}
		// Fall back to stderr silently, the logger is not set up yet.
	}

	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "INFO":
		lvl = slog.LevelInfo
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: lvl}))
}
