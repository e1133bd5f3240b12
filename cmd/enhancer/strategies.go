package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/go-clarity/inference"
)

func newStrategiesCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the available enhancement strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			// Listing never loads a model.
			cfg.Strategy = ""
			registry, closer, err := buildRegistry(cfg, zerolog.Nop())
			if err != nil {
				return err
			}
			defer closer()

			for _, name := range registry.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (requires --onnx-model)\n", inference.StrategyName)
			return nil
		},
	}
}
