// Package main provides the organsim command: the three organ services and
// the orchestrator share one binary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/devrev/organsim/internal/config"
	"github.com/devrev/organsim/internal/model"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "organsim",
		Short:        "Synthetic organ vitals services and orchestrator",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(organCmd(&configPath))
	root.AddCommand(orchestratorCmd(&configPath))
	root.AddCommand(configCmd(&configPath))
	return root
}

func organCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "organ <cardiac|respiratory|neural>",
		Short:     "Run one organ service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: organNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := config.ParseRole(args[0])
			if err != nil {
				return err
			}
			if _, ok := role.Organ(); !ok {
				return fmt.Errorf("%q is not an organ", args[0])
			}
			return runOrgan(cmd.Context(), role, *configPath)
		},
	}
}

func orchestratorCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "orchestrator",
		Short: "Run the orchestration aggregator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrchestrator(cmd.Context(), *configPath)
		},
	}
}

func configCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config <role>",
		Short: "Print the effective configuration of a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := config.ParseRole(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load(role, *configPath)
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func organNames() []string {
	names := make([]string, 0, len(model.Organs))
	for _, o := range model.Organs {
		names = append(names, string(o))
	}
	return names
}
