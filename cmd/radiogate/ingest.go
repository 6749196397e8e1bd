package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nkhelifi/radiogate/internal/archive"
	"github.com/nkhelifi/radiogate/internal/config"
	"github.com/nkhelifi/radiogate/internal/ingest"
)

func newIngestCmd(cfg *config.Config) *cobra.Command {
	var fromDir bool

	cmd := &cobra.Command{
		Use:   "ingest <category> [path...]",
		Short: "Archive export files under a category",
		Long: `Ingest runs each file through format detection and normalization,
then archives the byte-exact raw copy and (when parsing succeeds) the
normalized clean copy. Files with data problems are still archived raw and
reported, never rejected.

A path may be a directory, in which case every CSV, TXT and XLSX file in it
is ingested. With --dir and no path arguments, the category subdirectory of
the configured input directory is used.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := parseCategoryArg(args[0])
			if err != nil {
				return err
			}
			if !fromDir && len(args) < 2 {
				return fmt.Errorf("no files given; pass file paths or use --dir")
			}

			ctx := cmd.Context()
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			svc, err := newIngestService(cfg, store)
			if err != nil {
				return err
			}

			var results []*ingest.Result
			if fromDir {
				dir := filepath.Join(cfg.Ingest.InputDir, string(cat))
				results, err = svc.IngestDir(ctx, cat, dir)
				if err != nil {
					return err
				}
			}
			for _, path := range args[1:] {
				info, err := os.Stat(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				if info.IsDir() {
					dirResults, err := svc.IngestDir(ctx, cat, path)
					if err != nil {
						return err
					}
					results = append(results, dirResults...)
					continue
				}
				raw, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				if int64(len(raw)) > cfg.Ingest.MaxFileSize {
					return fmt.Errorf("%s exceeds the %d byte limit", path, cfg.Ingest.MaxFileSize)
				}
				res, err := svc.Ingest(ctx, cat, filepath.Base(path), raw)
				if err != nil {
					return err
				}
				results = append(results, res)
			}

			printIngestResults(cmd, cat, results)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromDir, "dir", false, "ingest every file in the category's input subdirectory")
	return cmd
}

func printIngestResults(cmd *cobra.Command, cat archive.Category, results []*ingest.Result) {
	for _, res := range results {
		switch {
		case res.Duplicate:
			cmd.Printf("%s/%d  %s  duplicate, skipped\n", cat, res.Entry.Index, res.Entry.Filename)
		case res.CleanOK:
			cmd.Printf("%s/%d  %s  %d rows", cat, res.Entry.Index, res.Entry.Filename, res.Rows)
			if res.Skipped > 0 {
				cmd.Printf("  (%d rows skipped)", res.Skipped)
			}
			if res.CellErrs > 0 {
				cmd.Printf("  (%d cell errors)", res.CellErrs)
			}
			cmd.Println()
		default:
			cmd.Printf("%s/%d  %s  raw only: %s\n", cat, res.Entry.Index, res.Entry.Filename, res.Failure)
		}
	}
	cmd.Printf("ingested %d file(s)\n", len(results))
}
