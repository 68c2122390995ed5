package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/persistorai/dashport/internal/bundle"
	"github.com/persistorai/dashport/internal/models"
	"github.com/persistorai/dashport/internal/resolver"
)

func newPlanCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "plan <bundle>",
		Short: "Show what importing a bundle would do, without a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := flags.targets(models.MergeTargets{})
			if err != nil {
				return err
			}

			b, err := bundle.Loader{}.Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("loading bundle: %w", err)
			}

			opts := resolver.Options{Policy: resolver.Selective}
			if flags.merge {
				opts = resolver.Options{Policy: resolver.Consolidate, Targets: targets}
			}

			plan, err := resolver.Resolve(b.Archive, opts)
			if err != nil {
				return fmt.Errorf("planning import: %w", err)
			}

			return output(cmd.OutOrStdout(), plan.Report())
		},
	}

	flags.bindMerge(cmd)

	return cmd
}
