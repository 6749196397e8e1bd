package main

import (
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nkhelifi/radiogate/internal/archive"
	"github.com/nkhelifi/radiogate/internal/config"
)

func newListCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list [category]",
		Short: "List archived entries",
		Long: `List prints the archived entries of one category, or of all
categories when no argument is given, ordered by ingestion index.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cats := archive.Categories
			if len(args) == 1 {
				cat, err := parseCategoryArg(args[0])
				if err != nil {
					return err
				}
				cats = []archive.Category{cat}
			}

			ctx := cmd.Context()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()
			w.Write([]byte("REF\tFILE\tVERSION\tINGESTED\tCLEAN\tNOTE\n"))

			total := 0
			for _, cat := range cats {
				entries, err := store.List(ctx, cat)
				if err != nil {
					return err
				}
				for _, e := range entries {
					clean := "yes"
					if !e.HasClean {
						clean = "no"
					}
					note := e.Failure
					w.Write([]byte(string(cat) + "/" + strconv.Itoa(e.Index) + "\t" +
						e.Filename + "\t" +
						strconv.Itoa(e.Version) + "\t" +
						e.IngestedAt.Format("2006-01-02 15:04") + "\t" +
						clean + "\t" +
						note + "\n"))
					total++
				}
			}
			if total == 0 {
				cmd.Println("archive is empty")
			}
			return nil
		},
	}
}
