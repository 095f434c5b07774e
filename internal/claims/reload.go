package claims

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gyeh/claimcheck/internal/catalog"
	"github.com/gyeh/claimcheck/internal/config"
	"github.com/gyeh/claimcheck/internal/normalize"
	"github.com/gyeh/claimcheck/internal/parquetread"
	"github.com/gyeh/claimcheck/internal/policy"
)

// ActiveCatalogLoader loads the active catalog version from the database.
type ActiveCatalogLoader interface {
	LoadActive(ctx context.Context) (*catalog.Catalog, error)
}

// Sources says where the rule set and the catalog are read from.
type Sources struct {
	RulesFile     string
	CatalogSource string
	ItemsFile     string
	ServicesFile  string
	ParquetFile   string
	Active        ActiveCatalogLoader
}

// SourcesFromConfig maps the service configuration onto Sources.
func SourcesFromConfig(cfg *config.Config, active ActiveCatalogLoader) *Sources {
	return &Sources{
		RulesFile:     cfg.RulesFile,
		CatalogSource: cfg.CatalogSource,
		ItemsFile:     cfg.CatalogItemsFile,
		ServicesFile:  cfg.CatalogServicesFile,
		ParquetFile:   cfg.CatalogParquetFile,
		Active:        active,
	}
}

// LoadPolicy parses the rules file.
func (s *Sources) LoadPolicy() (*policy.RuleSet, error) {
	return policy.Load(s.RulesFile)
}

// LoadCatalog builds a catalog from the configured source.
func (s *Sources) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	switch s.CatalogSource {
	case config.CatalogSourceJSON:
		return catalog.LoadJSON(s.ItemsFile, s.ServicesFile)
	case config.CatalogSourceParquet:
		sha, err := normalize.FileHash(s.ParquetFile)
		if err != nil {
			return nil, fmt.Errorf("hash catalog file: %w", err)
		}
		rows, err := parquetread.ReadAll(s.ParquetFile)
		if err != nil {
			return nil, err
		}
		return catalog.FromRows(normalize.Short(sha), rows)
	default:
		if s.Active == nil {
			return nil, fmt.Errorf("no database catalog loader configured")
		}
		return s.Active.LoadActive(ctx)
	}
}

// ReloadInfo describes the snapshots published by a reload.
type ReloadInfo struct {
	RulesVersion   string `json:"rules_version"`
	CatalogVersion string `json:"catalog_version"`
	CatalogEntries int    `json:"catalog_entries"`
}

// Reloader re-reads the policy and catalog and publishes both as one
// Snapshot. Reloads are serialised; a failed reload publishes nothing.
type Reloader struct {
	src       *Sources
	snapshots *SnapshotHolder
	log       zerolog.Logger

	mu sync.Mutex
}

// NewReloader returns a Reloader publishing into h.
func NewReloader(src *Sources, h *SnapshotHolder, log zerolog.Logger) *Reloader {
	return &Reloader{src: src, snapshots: h, log: log}
}

// Load reads both halves and returns a holder publishing them.
func Load(ctx context.Context, src *Sources) (*SnapshotHolder, error) {
	snap, err := read(ctx, src)
	if err != nil {
		return nil, err
	}
	return NewSnapshotHolder(snap.Rules, snap.Catalog), nil
}

func read(ctx context.Context, src *Sources) (*Snapshot, error) {
	rs, err := src.LoadPolicy()
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	cat, err := src.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return &Snapshot{Rules: rs, Catalog: cat}, nil
}

// Reload replaces the published policy and catalog.
func (r *Reloader) Reload(ctx context.Context) (*ReloadInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := read(ctx, r.src)
	if err != nil {
		return nil, err
	}
	old := r.snapshots.Swap(snap)

	info := &ReloadInfo{
		RulesVersion:   snap.Rules.Version,
		CatalogVersion: snap.Catalog.Version(),
		CatalogEntries: snap.Catalog.Len(),
	}
	ev := r.log.Info().
		Str("rules_version", info.RulesVersion).
		Str("catalog_version", info.CatalogVersion).
		Int("catalog_entries", info.CatalogEntries)
	if old != nil {
		ev = ev.Str("previous_rules_version", old.Rules.Version).
			Str("previous_catalog_version", old.Catalog.Version())
	}
	ev.Msg("policy and catalog reloaded")
	return info, nil
}
