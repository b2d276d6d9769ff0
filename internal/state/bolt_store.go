package state

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/samvad-hq/metalpal/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const (
	metaBucket     = "meta"
	releasesBucket = "releases"

	metaLastUpdate = "last_update"
	metaSettings   = "settings"
)

// boltStore implements a Store backed by BoltDB. Releases are keyed by their
// big-endian position so a cursor walk returns them in history order.
type boltStore struct {
	db   *bolt.DB
	path string
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string) (Store, error) {
	if err := requirePath(TypeBolt, path); err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &PersistenceError{Backend: TypeBolt, Op: "create directory", Path: path, Err: err}
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, &PersistenceError{Backend: TypeBolt, Op: "open", Path: path, Err: err}
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{metaBucket, releasesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, &PersistenceError{Backend: TypeBolt, Op: "init buckets", Path: path, Err: err}
	}

	return &boltStore{db: db, path: path}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *boltStore) Load(ctx context.Context) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := &State{Releases: []domain.Release{}}
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(metaBucket))
		releases := tx.Bucket([]byte(releasesBucket))
		if meta == nil || releases == nil {
			return errors.New("state buckets missing")
		}

		if raw := meta.Get([]byte(metaLastUpdate)); raw != nil {
			found = true
			if err := st.LastUpdate.UnmarshalText(raw); err != nil {
				return fmt.Errorf("decode last update: %w", err)
			}
		}
		if raw := meta.Get([]byte(metaSettings)); raw != nil {
			found = true
			if err := json.Unmarshal(raw, &st.Settings); err != nil {
				return fmt.Errorf("decode settings: %w", err)
			}
		}

		return releases.ForEach(func(k, v []byte) error {
			found = true
			var r domain.Release
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode release %d: %w", decodePosition(k), err)
			}
			st.Releases = append(st.Releases, r)
			return nil
		})
	})
	if err != nil {
		return nil, b.fail("load", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	st.Releases = normalizeReleases(st.Releases)
	return st, nil
}

// Save replaces the stored history in a single transaction.
func (b *boltStore) Save(ctx context.Context, st *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if st == nil {
		return b.fail("save", errors.New("state is nil"))
	}

	lastUpdate, err := st.LastUpdate.MarshalText()
	if err != nil {
		return b.fail("encode last update", err)
	}
	settings, err := json.Marshal(st.Settings)
	if err != nil {
		return b.fail("encode settings", err)
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(releasesBucket)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		releases, err := tx.CreateBucket([]byte(releasesBucket))
		if err != nil {
			return err
		}
		for i, r := range normalizeReleases(st.Releases) {
			payload, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encode release %d: %w", i, err)
			}
			if err := releases.Put(encodePosition(uint64(i)), payload); err != nil {
				return err
			}
		}

		meta, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		if err != nil {
			return err
		}
		if err := meta.Put([]byte(metaLastUpdate), lastUpdate); err != nil {
			return err
		}
		return meta.Put([]byte(metaSettings), settings)
	})
	if err != nil {
		return b.fail("save", err)
	}
	return nil
}

func (b *boltStore) fail(op string, err error) error {
	return &PersistenceError{Backend: TypeBolt, Op: op, Path: b.path, Err: err}
}

func encodePosition(i uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, i)
	return buf
}

func decodePosition(k []byte) uint64 {
	if len(k) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(k)
}
