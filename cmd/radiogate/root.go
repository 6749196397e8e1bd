package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nkhelifi/radiogate/internal/archive"
	"github.com/nkhelifi/radiogate/internal/config"
	"github.com/nkhelifi/radiogate/internal/ingest"
	"github.com/nkhelifi/radiogate/internal/sniff"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "radiogate",
		Short: "Data-quality gate for telecom network exports",
		Long: `radiogate ingests heterogeneous telecom CSV and XLSX exports
(PM counters, CM config, site design, RF drive-test logs), archives both the
byte-exact raw copy and a normalized clean copy, and audits identifier and
counter coverage across all archived files.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newIngestCmd(cfg),
		newListCmd(cfg),
		newShowCmd(cfg),
		newKpiCmd(cfg),
		newServeCmd(cfg),
	)
	return root
}

// openStore opens the archive backend selected by configuration.
func openStore(ctx context.Context, cfg *config.Config) (archive.Store, error) {
	switch strings.ToLower(cfg.Archive.Driver) {
	case "postgres":
		return archive.OpenPostgres(ctx, cfg.Archive.DatabaseURL, cfg.Archive.MaxConns)
	default:
		return archive.OpenSQLite(cfg.Archive.SQLitePath)
	}
}

// newIngestService builds the pipeline service from configuration.
func newIngestService(cfg *config.Config, store archive.Store) (*ingest.Service, error) {
	policy, err := ingest.ParseDuplicatePolicy(cfg.Archive.DuplicatePolicy)
	if err != nil {
		return nil, err
	}
	return ingest.NewService(store, policy, sniffOptions(cfg), nil), nil
}

func sniffOptions(cfg *config.Config) sniff.Options {
	return sniff.Options{SampleLines: cfg.Sniff.SampleLines}
}

// parseCategoryArg resolves a category CLI argument with a helpful error.
func parseCategoryArg(arg string) (archive.Category, error) {
	cat, err := archive.ParseCategory(arg)
	if err != nil {
		return "", fmt.Errorf("unknown category %q (use one of: pm, cm, site, rf)", arg)
	}
	return cat, nil
}
