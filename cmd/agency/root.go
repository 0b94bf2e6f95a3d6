package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ravituringworks/agency"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agency",
	Short: "Agency runs a step orchestrated AI agent with saga transactions",
	Long: `Agency hosts an agent orchestrator: pluggable steps decide what happens each round,
tools and memories are resolved by the runner, and multi-step side effects run as
compensating sagas with a persisted ledger.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file (AGENCY_ env vars override it)")
	rootCmd.PersistentFlags().String("log-level", "", "Override log.level (debug, info, warn, error)")
}

// loadConfig reads --config and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*agency.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := agency.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newAgent loads the configuration and wires an agent for cmd.
func newAgent(ctx context.Context, cmd *cobra.Command, opts ...agency.Option) (*agency.Agent, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return agency.New(ctx, cfg, opts...)
}
