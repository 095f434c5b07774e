package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gyeh/claimcheck/internal/catalogimport"
	"github.com/gyeh/claimcheck/internal/db"
	"github.com/gyeh/claimcheck/internal/exitcode"
	"github.com/gyeh/claimcheck/internal/logging"
	"github.com/gyeh/claimcheck/internal/model"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage catalog versions",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a Parquet catalog file into the database",
	RunE:  runCatalogImport,
}

var catalogPlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run validation and stats (no writes)",
	RunE:  runCatalogPlan,
}

func init() {
	f := catalogImportCmd.Flags()
	f.StringVar(&opts.FilePath, "file", "", "Path to Parquet catalog file (required)")
	f.StringVar(&opts.Label, "label", "", "Version label (default: file name)")
	f.BoolVar(&opts.Activate, "activate", false, "Make this version the active catalog")
	f.BoolVar(&opts.Force, "force", false, "Re-import even if file SHA already exists")
	f.BoolVar(&opts.KeepStaging, "keep-staging", false, "Keep staging rows after promote")
	f.BoolVar(&opts.DryRun, "dry-run", false, "Validate the file and print the plan without writing")
	_ = catalogImportCmd.MarkFlagRequired("file")

	catalogPlanCmd.Flags().StringVar(&opts.FilePath, "file", "", "Path to Parquet catalog file (required)")
	_ = catalogPlanCmd.MarkFlagRequired("file")

	catalogCmd.AddCommand(catalogImportCmd, catalogPlanCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	if opts.DryRun {
		return runCatalogPlan(cmd, args)
	}
	log := logging.Setup(opts.LogFormat, logLevel)
	ctx := context.Background()

	if err := opts.ValidateWithDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, opts.DSN, db.PoolOptions{})
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	summary, err := catalogimport.Run(ctx, pool, log, &opts)
	if err != nil {
		var pe *catalogimport.PipelineError
		if errors.As(err, &pe) {
			log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("catalog import failed")
			switch pe.Phase {
			case "preflight":
				os.Exit(exitcode.ValidationError)
			case "stage":
				os.Exit(exitcode.CopyError)
			default:
				os.Exit(exitcode.PromoteError)
			}
		}
		log.Error().Err(err).Msg("catalog import failed")
		os.Exit(exitcode.PromoteError)
	}

	if summary.Skipped {
		fmt.Printf("Catalog already imported as version %d (use --force to re-import)\n", summary.VersionID)
		return nil
	}
	fmt.Printf("Import complete: version %d (%s), %d rows staged, %d entries promoted, %d rejected (%.1fs)\n",
		summary.VersionID, summary.VersionLabel, summary.RowsStaged, summary.RowsPromoted,
		summary.RowsRejected, summary.DurationTotal.Seconds())
	if summary.RowsRejected > 0 {
		os.Exit(exitcode.PartialSuccess)
	}
	return nil
}

func runCatalogPlan(cmd *cobra.Command, args []string) error {
	log := logging.Setup(opts.LogFormat, logLevel)

	if err := opts.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	report, err := catalogimport.Plan(opts.FilePath)
	if err != nil {
		log.Error().Err(err).Msg("plan failed")
		os.Exit(exitcode.ValidationError)
	}

	fmt.Println("=== claimcheck catalog plan ===")
	fmt.Printf("File:       %s\n", report.FilePath)
	fmt.Printf("SHA-256:    %s\n", report.FileSHA256)
	fmt.Printf("Size:       %d bytes\n", report.FileSize)
	fmt.Printf("Total rows: %d\n", report.RowsRead)
	fmt.Printf("Valid:      %d\n", report.RowsValid)
	fmt.Printf("Rejected:   %d\n", report.RowsRejected)
	fmt.Printf("Duplicates: %d (last row wins)\n", report.Duplicates)
	fmt.Println()
	fmt.Println("Entries by kind:")

	kinds := make([]string, 0, len(report.RowsByKind))
	for k := range report.RowsByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("  %-10s %d\n", k, report.RowsByKind[model.CatalogKind(k)])
	}

	if len(report.Rejections) > 0 {
		fmt.Println("\nRejected rows:")
		for _, r := range report.Rejections {
			fmt.Printf("  row %-6d %s\n", r.Row, r.Reason)
		}
	}
	fmt.Println("Schema validation: OK")
	return nil
}
