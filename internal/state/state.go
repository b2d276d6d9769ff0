package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/samvad-hq/metalpal/internal/config"
	"github.com/samvad-hq/metalpal/internal/domain"
)

// Package state persists the release history and user settings between runs.

// State is everything carried from one run to the next.
type State struct {
	LastUpdate time.Time
	Releases   []domain.Release
	Settings   config.Settings
}

// Stale reports whether the calendar should be fetched again.
func (s *State) Stale(now time.Time, interval time.Duration) bool {
	if s == nil || s.LastUpdate.IsZero() {
		return true
	}
	return now.Sub(s.LastUpdate) >= interval
}

// Store loads and saves State.
type Store interface {
	// Load returns ErrNotFound when nothing has been saved yet.
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, st *State) error
	Close() error
}

// ErrNotFound is returned by Load on first use.
var ErrNotFound = errors.New("state not found")

// PersistenceError wraps any failure to read or write the state. It is fatal
// for the run.
type PersistenceError struct {
	Backend string
	Op      string
	Path    string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s state %s %s: %v", e.Backend, e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Options controls retention for concrete store implementations.
type Options struct {
	// Retention drops releases dated more than this long ago on save. Zero
	// keeps everything.
	Retention time.Duration
	// Now is used to compute the retention cutoff; defaults to time.Now.
	Now func() time.Time
}

const (
	TypeJSON   = "json"
	TypeBolt   = "bbolt"
	TypeSQLite = "sqlite"
	TypeMemory = "memory"
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var (
		store Store
		err   error
	)
	switch typ {
	case "", TypeJSON:
		store, err = openJSON(path)
	case TypeBolt, "bolt":
		store, err = openBolt(path)
	case TypeSQLite:
		store, err = openSQLite(path)
	case TypeMemory:
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported state type %q", typ)
	}
	if err != nil {
		return nil, err
	}

	if opts.Retention <= 0 {
		return store, nil
	}
	return &retainingStore{Store: store, retention: opts.Retention, now: opts.Now}, nil
}

// retainingStore prunes old releases before delegating Save.
type retainingStore struct {
	Store
	retention time.Duration
	now       func() time.Time
}

func (r *retainingStore) Save(ctx context.Context, st *State) error {
	if st == nil {
		return r.Store.Save(ctx, st)
	}
	pruned := *st
	pruned.Releases = prune(st.Releases, civil.DateOf(r.now().Add(-r.retention)))
	return r.Store.Save(ctx, &pruned)
}

func prune(releases []domain.Release, cutoff civil.Date) []domain.Release {
	out := make([]domain.Release, 0, len(releases))
	for _, rel := range releases {
		if rel.Date.Before(cutoff) {
			continue
		}
		out = append(out, rel)
	}
	return out
}

func requirePath(backend, path string) error {
	if strings.TrimSpace(path) == "" {
		return &PersistenceError{Backend: backend, Op: "open", Err: errors.New("path is empty")}
	}
	return nil
}
