package catalogimport_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gyeh/claimcheck/internal/catalogimport"
	"github.com/gyeh/claimcheck/internal/config"
	"github.com/gyeh/claimcheck/internal/db"
	"github.com/gyeh/claimcheck/internal/logging"
	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/parquetread"
	"github.com/gyeh/claimcheck/internal/store"
)

const (
	testPort     = 15434
	testDB       = "catalogtest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var testDSN string

func TestMain(m *testing.M) {
	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			RuntimePath(os.TempDir() + "/claimcheck-catalog-pg").
			StartTimeout(30 * time.Second),
	)
	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}
	os.Exit(code)
}

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, testDSN)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	for _, stmt := range []string{
		"DROP SCHEMA IF EXISTS claims CASCADE",
		"DROP SCHEMA IF EXISTS catalog CASCADE",
		"DROP TABLE IF EXISTS public.claimcheck_migrations",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	if err := db.ApplyMigrations(ctx, pool, setupLog()); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func setupLog() zerolog.Logger { return logging.Setup("text", "warn") }

func int32Ptr(v int32) *int32 { return &v }

func fixtureRows() []model.CatalogRow {
	return []model.CatalogRow{
		{Code: "med001", Name: "Paracetamol 500mg", Kind: "item", Class: "standard", RatePaisa: 10000, MaxPerVisit: int32Ptr(10)},
		{Code: "SRG01", Name: "Appendectomy", Kind: "item", Class: "surgery", RatePaisa: 10000000},
		{Code: "LAB01", Name: "CBC", Kind: "item", RatePaisa: 50000, WindowMaxUnits: int32Ptr(2), WindowDays: int32Ptr(30)},
		{Code: "OPD01", Name: "OPD consultation", Kind: "service", RatePaisa: 20000},
		{Code: "BAD01", Name: "Unknown kind", Kind: "device", RatePaisa: 100},
		{Code: "NEG01", Name: "Negative rate", Kind: "item", RatePaisa: -5},
		{Code: " ", Name: "Blank code", Kind: "item", RatePaisa: 100},
		// Later duplicate wins.
		{Code: "MED001", Name: "Paracetamol 500mg", Kind: "item", Class: "standard", RatePaisa: 12000, MaxPerVisit: int32Ptr(10)},
	}
}

func writeFixture(t *testing.T, name string, rows []model.CatalogRow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := parquetread.WriteFile(path, rows); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestEndToEnd_ImportAndActivate(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	path := writeFixture(t, "catalog-2024.parquet", fixtureRows())

	summary, err := catalogimport.Run(ctx, pool, setupLog(), &config.ImportOptions{
		FilePath: path,
		Activate: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	t.Run("summary_metrics", func(t *testing.T) {
		if summary.RowsRead != 8 {
			t.Errorf("RowsRead: got %d, want 8", summary.RowsRead)
		}
		if summary.RowsStaged != 5 {
			t.Errorf("RowsStaged: got %d, want 5", summary.RowsStaged)
		}
		if summary.RowsRejected != 3 {
			t.Errorf("RowsRejected: got %d, want 3", summary.RowsRejected)
		}
		if summary.RowsPromoted != 4 {
			t.Errorf("RowsPromoted: got %d, want 4", summary.RowsPromoted)
		}
		if summary.RowsByKind[model.KindService] != 1 {
			t.Errorf("service rows: got %d, want 1", summary.RowsByKind[model.KindService])
		}
		if summary.VersionLabel != "catalog-2024" || !summary.Activated || summary.Skipped {
			t.Errorf("summary = %+v", summary)
		}
	})

	t.Run("staging_cleaned", func(t *testing.T) {
		var count int64
		if err := pool.QueryRow(ctx, "SELECT count(*) FROM catalog.stage_entries").Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 0 {
			t.Errorf("staging rows left: %d", count)
		}
	})

	t.Run("active_catalog", func(t *testing.T) {
		cat, err := store.New(pool).Catalogs.LoadActive(ctx)
		if err != nil {
			t.Fatalf("LoadActive: %v", err)
		}
		if cat.Len() != 4 {
			t.Errorf("Len: got %d, want 4", cat.Len())
		}
		med, ok := cat.LookupItem("MED001")
		if !ok {
			t.Fatal("MED001 missing")
		}
		if !med.Rate.Equal(decimal.NewFromInt(120)) {
			t.Errorf("MED001 rate: got %s, want 120 (last row wins)", med.Rate)
		}
		lab, _ := cat.LookupItem("LAB01")
		if !lab.Capping.HasWindow() || lab.Capping.WindowDays != 30 {
			t.Errorf("LAB01 capping = %+v", lab.Capping)
		}
		srg, _ := cat.LookupItem("SRG01")
		if srg.Class != model.ClassSurgery {
			t.Errorf("SRG01 class = %s", srg.Class)
		}
		if _, ok := cat.LookupService("OPD01"); !ok {
			t.Error("OPD01 service missing")
		}
	})
}

func TestEndToEnd_Idempotency(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	path := writeFixture(t, "catalog.parquet", fixtureRows())
	opts := &config.ImportOptions{FilePath: path, Activate: true}

	first, err := catalogimport.Run(ctx, pool, setupLog(), opts)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := catalogimport.Run(ctx, pool, setupLog(), opts)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !second.Skipped || second.VersionID != first.VersionID {
		t.Errorf("second run should skip: %+v", second)
	}

	opts.Force = true
	third, err := catalogimport.Run(ctx, pool, setupLog(), opts)
	if err != nil {
		t.Fatalf("forced Run: %v", err)
	}
	if third.Skipped || third.RowsPromoted != 4 {
		t.Errorf("forced run = %+v", third)
	}

	var versions int64
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM catalog.versions").Scan(&versions); err != nil {
		t.Fatal(err)
	}
	if versions != 1 {
		t.Errorf("versions: got %d, want 1", versions)
	}
}

func TestEndToEnd_ActivationSupersedes(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	log := setupLog()

	v1 := writeFixture(t, "v1.parquet", fixtureRows()[:4])
	v2 := writeFixture(t, "v2.parquet", []model.CatalogRow{
		{Code: "MED001", Name: "Paracetamol 500mg", Kind: "item", RatePaisa: 15000},
	})

	if _, err := catalogimport.Run(ctx, pool, log, &config.ImportOptions{FilePath: v1, Activate: true}); err != nil {
		t.Fatalf("import v1: %v", err)
	}

	// Loading without activation leaves v1 serving.
	s2, err := catalogimport.Run(ctx, pool, log, &config.ImportOptions{FilePath: v2})
	if err != nil {
		t.Fatalf("import v2: %v", err)
	}
	cat, err := store.New(pool).Catalogs.LoadActive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cat.Len() != 4 {
		t.Errorf("active catalog should still be v1, Len = %d", cat.Len())
	}

	var status string
	if err := pool.QueryRow(ctx, "SELECT status FROM catalog.versions WHERE version_id = $1", s2.VersionID).Scan(&status); err != nil {
		t.Fatal(err)
	}
	if status != catalogimport.StatusLoaded {
		t.Errorf("v2 status: got %s, want %s", status, catalogimport.StatusLoaded)
	}

	// A loaded version is skipped unless forced; force with activation.
	if _, err := catalogimport.Run(ctx, pool, log, &config.ImportOptions{FilePath: v2, Activate: true, Force: true}); err != nil {
		t.Fatalf("activate v2: %v", err)
	}
	cat, err = store.New(pool).Catalogs.LoadActive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	med, _ := cat.LookupItem("MED001")
	if cat.Len() != 1 || !med.Rate.Equal(decimal.NewFromInt(150)) {
		t.Errorf("active catalog after switch: len=%d rate=%s", cat.Len(), med.Rate)
	}

	var active, superseded int64
	err = pool.QueryRow(ctx, `SELECT count(*) FILTER (WHERE is_active), count(*) FILTER (WHERE status = 'superseded') FROM catalog.versions`).
		Scan(&active, &superseded)
	if err != nil {
		t.Fatal(err)
	}
	if active != 1 || superseded != 1 {
		t.Errorf("active=%d superseded=%d, want 1/1", active, superseded)
	}
}

func TestEndToEnd_NoValidRows(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	path := writeFixture(t, "bad.parquet", []model.CatalogRow{
		{Code: "X", Kind: "device", RatePaisa: 1},
	})

	_, err := catalogimport.Run(ctx, pool, setupLog(), &config.ImportOptions{FilePath: path, Activate: true})
	var perr *catalogimport.PipelineError
	if !errors.As(err, &perr) || perr.Phase != "stage" {
		t.Fatalf("expected stage PipelineError, got %v", err)
	}

	var status string
	if err := pool.QueryRow(ctx, "SELECT status FROM catalog.versions").Scan(&status); err != nil {
		t.Fatal(err)
	}
	if status != catalogimport.StatusFailed {
		t.Errorf("status: got %s, want failed", status)
	}
	if _, err := store.New(pool).Catalogs.LoadActive(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("LoadActive: got %v, want ErrNotFound", err)
	}
}

func TestKeepStaging(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	path := writeFixture(t, "keep.parquet", fixtureRows())

	summary, err := catalogimport.Run(ctx, pool, setupLog(), &config.ImportOptions{FilePath: path, KeepStaging: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var count int64
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM catalog.stage_entries WHERE import_batch_id = $1::uuid", summary.ImportBatchID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Errorf("staged rows kept: got %d, want 5", count)
	}
}
