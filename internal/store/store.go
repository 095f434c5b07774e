// Package store persists patients, claims and catalog versions in Postgres.
package store

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// ErrStale marks a cached row older than the configured TTL.
var ErrStale = errors.New("cached row is stale")

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Store groups the repositories that share one pool.
type Store struct {
	Patients *PatientRepo
	History  *HistoryRepo
	Claims   *ClaimRepo
	Catalogs *CatalogRepo
}

// Option configures a Store.
type Option func(*Store)

// WithPatientTTL makes cached eligibility older than ttl count as missing.
// Zero keeps cached rows forever.
func WithPatientTTL(ttl time.Duration) Option {
	return func(s *Store) { s.Patients.ttl = ttl }
}

// New returns repositories backed by pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		Patients: &PatientRepo{pool: pool, now: time.Now},
		History:  &HistoryRepo{pool: pool},
		Claims:   &ClaimRepo{pool: pool},
		Catalogs: &CatalogRepo{pool: pool},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}
