package state

import (
	"context"
	"sync"

	"github.com/samvad-hq/metalpal/internal/domain"
)

// MemoryStore keeps state in process. It is handy for dry runs and tests.
type MemoryStore struct {
	mu    sync.Mutex
	st    *State
	saves int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st == nil {
		return nil, ErrNotFound
	}
	return copyState(m.st), nil
}

func (m *MemoryStore) Save(ctx context.Context, st *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = copyState(st)
	m.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryStore) Close() error { return nil }

func copyState(st *State) *State {
	if st == nil {
		return &State{Releases: []domain.Release{}}
	}
	out := *st
	out.Releases = make([]domain.Release, len(st.Releases))
	for i, r := range st.Releases {
		out.Releases[i] = r.Clone()
	}
	out.Settings.SlackChannels = append([]string(nil), st.Settings.SlackChannels...)
	out.Settings.WhitelistedGenreKeywords = append([]string(nil), st.Settings.WhitelistedGenreKeywords...)
	out.Settings.BlacklistedGenreKeywords = append([]string(nil), st.Settings.BlacklistedGenreKeywords...)
	return &out
}
