package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gyeh/claimcheck/internal/claims"
	"github.com/gyeh/claimcheck/internal/config"
	"github.com/gyeh/claimcheck/internal/db"
	"github.com/gyeh/claimcheck/internal/exitcode"
	"github.com/gyeh/claimcheck/internal/insurer"
	"github.com/gyeh/claimcheck/internal/logging"
	"github.com/gyeh/claimcheck/internal/server"
	"github.com/gyeh/claimcheck/internal/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var serveFlags struct {
	configPath string
	migrate    bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the claims HTTP API",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.configPath, "config", "", "Path to service config file (YAML, JSON or .env)")
	f.String("port", "", "Listen port (overrides PORT)")
	f.BoolVar(&serveFlags.migrate, "migrate", false, "Apply migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveFlags.configPath, cmd.Flags())
	if err != nil {
		l := logging.Setup(opts.LogFormat, logLevel)
		l.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:         cfg.DBMaxConns,
		StatementTimeout: cfg.DBTimeout,
	})
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	if serveFlags.migrate {
		if err := db.ApplyMigrations(ctx, pool, log); err != nil {
			log.Error().Err(err).Msg("migration failed")
			os.Exit(exitcode.ServerError)
		}
	}

	st := store.New(pool, store.WithPatientTTL(cfg.PatientCacheTTL))
	src := claims.SourcesFromConfig(cfg, st.Catalogs)
	snapshots, err := claims.Load(ctx, src)
	if err != nil {
		log.Error().Err(err).Msg("initial policy/catalog load failed")
		os.Exit(exitcode.ValidationError)
	}
	snap := snapshots.Current()
	log.Info().
		Str("rules_version", snap.Rules.Version).
		Str("catalog_version", snap.Catalog.Version()).
		Int("catalog_entries", snap.Catalog.Len()).
		Str("catalog_source", cfg.CatalogSource).
		Msg("policy and catalog loaded")

	go claims.PrunePatients(ctx, st.Patients, cfg.PatientCacheTTL, cfg.PatientPruneInterval,
		log.With().Str("component", "patient-prune").Logger())

	deps := claims.Deps{
		Snapshots: snapshots,
		History:   st.History,
		Balances:  st.Patients,
		Patients:  st.Patients,
		Claims:    st.Claims,
	}
	if cfg.InsurerEnabled() {
		deps.Insurer = insurer.New(insurer.Options{
			BaseURL:    cfg.InsurerBaseURL,
			Username:   cfg.InsurerUsername,
			Password:   cfg.InsurerPassword,
			RemoteUser: cfg.InsurerRemoteUser,
			Timeout:    cfg.InsurerTimeout,
			RetryMax:   cfg.InsurerRetries,
		}, log.With().Str("component", "insurer").Logger())
	} else {
		log.Warn().Msg("INSURER_BASE_URL not set, /claims/validate and /insurer/claims are disabled")
	}

	srv := server.New(server.Options{
		Claims:   claims.New(deps, log),
		Reloader: claims.NewReloader(src, snapshots, log),
		APIKeys:  cfg.APIKeys,
		Version:  version,
		Log:      log,
	})
	if err := srv.Run(ctx, ":"+cfg.Port, cfg.ShutdownTimeout); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(exitcode.ServerError)
	}
	return nil
}
