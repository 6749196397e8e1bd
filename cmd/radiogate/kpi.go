package main

import (
	"github.com/spf13/cobra"

	"github.com/nkhelifi/radiogate/internal/audit"
	"github.com/nkhelifi/radiogate/internal/config"
)

func newKpiCmd(cfg *config.Config) *cobra.Command {
	var showAll bool

	cmd := &cobra.Command{
		Use:   "kpi",
		Short: "Audit identifier and counter coverage across the archive",
		Long: `Kpi scans every archived clean table, extracts Cell IDs and
performance counters, and prints the cross-file presence matrix with
coverage percentages, orphan flags, and naming conflicts.

Counters seen in only a single file are hidden by default; --show-all
includes them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			matrix, err := audit.Scan(ctx, store)
			if err != nil {
				return err
			}

			cmd.Print(matrix.Render(audit.RenderOptions{ShowAll: showAll}))
			cmd.Println(matrix.Summary())
			return nil
		},
	}

	cmd.Flags().BoolVar(&showAll, "show-all", false, "include counters seen in only one file")
	return cmd
}
