package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/claimcheck/internal/config"
)

var (
	opts     config.ImportOptions
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "claimcheck",
	Short: "Health-insurance claim prevalidation engine",
	Long:  "Adjudicates claims against the catalog and policy rules, serves the claims API and loads Parquet catalogs into Postgres via the COPY protocol.",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.DSN, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string (or set DATABASE_URL)")
	pf.StringVar(&opts.LogFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}
