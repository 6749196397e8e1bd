package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nkhelifi/radiogate/internal/archive"
	"github.com/nkhelifi/radiogate/internal/config"
	"github.com/nkhelifi/radiogate/internal/normalize"
)

func newShowCmd(cfg *config.Config) *cobra.Command {
	var (
		showRaw bool
		showAll bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "show <category> [index]",
		Short: "Show archived entries",
		Long: `Show prints an entry's metadata, the format decisions made during
normalization, and a preview of the clean rows. Without an index every
entry in the category is shown. With --raw the byte-exact raw copy is
written to stdout instead.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := parseCategoryArg(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) < 2 {
				if showRaw {
					return fmt.Errorf("--raw needs an entry index")
				}
				entries, err := store.List(ctx, cat)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					cmd.Printf("no %s entries archived\n", cat)
					return nil
				}
				for i, entry := range entries {
					if i > 0 {
						cmd.Println()
					}
					if err := showEntry(ctx, cmd, store, cat, &entry, showAll, limit); err != nil {
						return err
					}
				}
				return nil
			}

			idx, err := strconv.Atoi(args[1])
			if err != nil || idx < 0 {
				return fmt.Errorf("index must be a non-negative integer, got %q", args[1])
			}

			if showRaw {
				raw, err := store.Raw(ctx, cat, idx)
				if err != nil {
					return err
				}
				cmd.OutOrStdout().Write(raw)
				return nil
			}

			entry, err := store.Get(ctx, cat, idx)
			if err != nil {
				return err
			}
			return showEntry(ctx, cmd, store, cat, entry, showAll, limit)
		},
	}

	cmd.Flags().BoolVar(&showRaw, "raw", false, "write the byte-exact raw copy to stdout")
	cmd.Flags().BoolVar(&showAll, "all", false, "print every clean row")
	cmd.Flags().IntVar(&limit, "limit", 5, "clean rows to preview")
	return cmd
}

func showEntry(ctx context.Context, cmd *cobra.Command, store archive.Store, cat archive.Category, entry *archive.Entry, showAll bool, limit int) error {
	cmd.Printf("%s/%d  %s  version %d  ingested %s\n",
		cat, entry.Index, entry.Filename, entry.Version,
		entry.IngestedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("sha256 %s\n", entry.SHA256)
	if entry.Failure != "" {
		cmd.Printf("raw only: %s\n", entry.Failure)
	}
	if !entry.HasClean {
		return nil
	}

	doc, err := store.Clean(ctx, cat, entry.Index)
	if err != nil {
		return err
	}
	table, err := normalize.Decode(doc)
	if err != nil {
		return err
	}

	d := table.Decisions
	cmd.Printf("format: delimiter=%s (%q) decimal=%s encoding=%s header_row=%d",
		d.DelimiterRule, d.Delimiter, d.Decimal, d.Encoding, d.HeaderRow)
	if d.Synthetic {
		cmd.Printf(" (synthetic header)")
	}
	cmd.Println()
	if len(table.Skipped) > 0 {
		cmd.Printf("%d malformed row(s) skipped\n", len(table.Skipped))
	}
	if len(table.CellErrors) > 0 {
		cmd.Printf("%d cell(s) failed coercion and were nulled\n", len(table.CellErrors))
	}

	n := len(table.Rows)
	if !showAll && n > limit {
		n = limit
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	header := ""
	for i, col := range table.Columns {
		if i > 0 {
			header += "\t"
		}
		header += col
	}
	w.Write([]byte(header + "\n"))
	for i := 0; i < n; i++ {
		line := ""
		for j := range table.Columns {
			if j > 0 {
				line += "\t"
			}
			line += table.Rows[i][j].Display()
		}
		w.Write([]byte(line + "\n"))
	}
	w.Flush()

	if hidden := len(table.Rows) - n; hidden > 0 {
		cmd.Printf("... %d more row(s). Use --all to print everything.\n", hidden)
	}
	return nil
}
