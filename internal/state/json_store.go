package state

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/samvad-hq/metalpal/internal/config"
	"github.com/samvad-hq/metalpal/internal/domain"
)

// jsonDocument is the on-disk layout: settings sit at the top level next to
// the history.
type jsonDocument struct {
	LastUpdate time.Time        `json:"last_update"`
	Releases   []domain.Release `json:"releases"`
	config.Settings
}

// jsonStore keeps the state in a single human-readable file. Saves are
// written to a temp file in the same directory and renamed into place.
type jsonStore struct {
	path string
}

func openJSON(path string) (Store, error) {
	if err := requirePath(TypeJSON, path); err != nil {
		return nil, err
	}
	return &jsonStore{path: path}, nil
}

func (j *jsonStore) Load(ctx context.Context) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, j.fail("read", err)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}

	var doc jsonDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, j.fail("decode", err)
	}
	return &State{
		LastUpdate: doc.LastUpdate,
		Releases:   normalizeReleases(doc.Releases),
		Settings:   doc.Settings,
	}, nil
}

func (j *jsonStore) Save(ctx context.Context, st *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if st == nil {
		return j.fail("encode", errors.New("state is nil"))
	}

	doc := jsonDocument{
		LastUpdate: st.LastUpdate,
		Releases:   normalizeReleases(st.Releases),
		Settings:   st.Settings,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return j.fail("encode", err)
	}

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return j.fail("create directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(j.path)+"-*.tmp")
	if err != nil {
		return j.fail("create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return j.fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return j.fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		return j.fail("close", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return j.fail("chmod", err)
	}
	if err := os.Rename(tmpName, j.path); err != nil {
		return j.fail("rename", err)
	}
	return nil
}

func (j *jsonStore) Close() error { return nil }

func (j *jsonStore) fail(op string, err error) error {
	return &PersistenceError{Backend: TypeJSON, Op: op, Path: j.path, Err: err}
}

// normalizeReleases guarantees a non-nil history and non-nil reason lists
// so files always serialize them as arrays.
func normalizeReleases(in []domain.Release) []domain.Release {
	out := make([]domain.Release, len(in))
	for i, r := range in {
		if r.SkipReasons == nil {
			r.SkipReasons = []string{}
		}
		out[i] = r
	}
	return out
}
