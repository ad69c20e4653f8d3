// Package kv implements the Local KV Store variant: a single bbolt file per
// directory, used for the "here", "my", and "system" well-known layers.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	bolt "go.etcd.io/bbolt"

	"github.com/basepair/resourcereg/internal/store"
	"github.com/basepair/resourcereg/internal/types"
)

// DotfileName is the bbolt file created in each registered directory.
const DotfileName = ".resourcereg.db"

var (
	bucketResources = []byte("resources")
	bucketDocs       = []byte("docs")
	bucketSchema     = []byte("schema")
	bucketMeta       = []byte("meta")
)

// Store is a bbolt-backed Local KV Store.
type Store struct {
	db       *bolt.DB
	path     string
	layer    string
	readOnly bool
}

// Open opens (creating if necessary) the bbolt file at dir/.resourcereg.db.
// layer is the default layer name this Store would like to be
// auto-registered under (one of "here", "my", "system").
func Open(dir, layer string, readOnly bool) (*Store, error) {
	if !readOnly {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("kv: create dir %s: %w", dir, err)
		}
	}
	dbPath := filepath.Join(dir, DotfileName)

	opts := &bolt.Options{ReadOnly: readOnly}
	db, err := bolt.Open(dbPath, 0o600, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: kv: open %s: %v", types.ErrStoreIO, dbPath, err)
	}

	s := &Store{db: db, path: dbPath, layer: layer, readOnly: readOnly}
	if !readOnly {
		if err := s.init(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) init() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketResources, bucketDocs, bucketSchema, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("kv: create bucket %s: %w", b, err)
			}
		}
		meta := tx.Bucket(bucketMeta)
		if meta.Get([]byte(types.VersionKey)) == nil {
			vb, _ := json.Marshal(types.CurrentVersion)
			if err := meta.Put([]byte(types.VersionKey), vb); err != nil {
				return err
			}
		}
		if meta.Get([]byte(types.RootSetKey)) == nil {
			rb, _ := json.Marshal([]string{})
			if err := meta.Put([]byte(types.RootSetKey), rb); err != nil {
				return err
			}
		}
		return nil
	})
}

func recordKey(id, locationKey string) []byte {
	return []byte(id + "\x00" + locationKey)
}

func splitRecordKey(k []byte) (id, locationKey string) {
	parts := strings.SplitN(string(k), "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// Get returns the first matching (id, locationKey) record found while
// scanning the resources bucket's keys with prefix id+"\x00".
func (s *Store) Get(_ context.Context, id string) (store.Record, bool, error) {
	var payload []byte
	var m types.Meta
	found := false

	err := s.db.View(func(tx *bolt.Tx) error {
		rb := tx.Bucket(bucketResources)
		db := tx.Bucket(bucketDocs)
		c := rb.Cursor()
		prefix := []byte(id + "\x00")
		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			payload = append([]byte(nil), v...)
			if raw := db.Get(k); raw != nil {
				_ = json.Unmarshal(raw, &m)
			}
			_, m.LocationKey = splitRecordKey(k)
			found = true
			return nil
		}
		return nil
	})
	if err != nil {
		return store.Record{}, false, fmt.Errorf("%w: kv get %s: %v", types.ErrStoreIO, id, err)
	}
	if !found {
		return store.Record{}, false, nil
	}
	return store.Record{Payload: payload, Meta: m}, true, nil
}

// Put writes the payload and metadata for (id, meta.LocationKey), recording
// id's root prefix in the append-only root set on first use.
func (s *Store) Put(_ context.Context, id string, payload []byte, m types.Meta) error {
	if s.readOnly {
		return types.ErrImmutableStore
	}
	m.PayloadSize = len(payload)
	docBytes, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("kv: marshal meta: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		rb := tx.Bucket(bucketResources)
		db := tx.Bucket(bucketDocs)
		meta := tx.Bucket(bucketMeta)

		key := recordKey(id, m.LocationKey)
		if err := rb.Put(key, payload); err != nil {
			return err
		}
		if err := db.Put(key, docBytes); err != nil {
			return err
		}
		return addRoot(meta, types.Root(id))
	})
}

func addRoot(meta *bolt.Bucket, root string) error {
	var roots []string
	if raw := meta.Get([]byte(types.RootSetKey)); raw != nil {
		_ = json.Unmarshal(raw, &roots)
	}
	for _, r := range roots {
		if r == root {
			return nil
		}
	}
	roots = append(roots, root)
	sort.Strings(roots)
	rb, err := json.Marshal(roots)
	if err != nil {
		return err
	}
	return meta.Put([]byte(types.RootSetKey), rb)
}

// Delete removes every (id, locationKey) record for id. Root tracking is
// append-only: this never removes id's root from the root set, even if it
// was the last resource under that root.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	if s.readOnly {
		return false, types.ErrImmutableStore
	}
	removed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		rb := tx.Bucket(bucketResources)
		db := tx.Bucket(bucketDocs)
		c := rb.Cursor()
		prefix := []byte(id + "\x00")
		var keys [][]byte
		for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			removed = true
			if err := rb.Delete(k); err != nil {
				return err
			}
			if err := db.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	return removed, err
}

// ListPrefix lists ids whose resource-bucket keys match prefix lexically.
func (s *Store) ListPrefix(_ context.Context, prefix string, withMeta bool) ([]string, []types.Meta, error) {
	var ids []string
	var metas []types.Meta
	seen := map[string]bool{}

	err := s.db.View(func(tx *bolt.Tx) error {
		rb := tx.Bucket(bucketResources)
		db := tx.Bucket(bucketDocs)
		c := rb.Cursor()
		for k, _ := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			id, _ := splitRecordKey(k)
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
			if withMeta {
				var m types.Meta
				if raw := db.Get(k); raw != nil {
					_ = json.Unmarshal(raw, &m)
				}
				metas = append(metas, m)
			}
		}
		return nil
	})
	sort.Strings(ids)
	return ids, metas, err
}

// GetSchema returns the decoded schema entry stored under SCHEMA.<id>.
func (s *Store) GetSchema(_ context.Context, id string) (types.SchemaEntry, bool, error) {
	var entry types.SchemaEntry
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		sb := tx.Bucket(bucketSchema)
		raw := sb.Get([]byte(types.SchemaKey(id)))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &entry)
	})
	return entry, found, err
}

// PutSchema sets a single attribute's descriptor on id's schema entry.
func (s *Store) PutSchema(_ context.Context, id, attr string, descriptor types.RawDescriptor) error {
	if s.readOnly {
		return types.ErrImmutableStore
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		sb := tx.Bucket(bucketSchema)
		key := []byte(types.SchemaKey(id))
		entry := types.SchemaEntry{}
		if raw := sb.Get(key); raw != nil {
			if err := json.Unmarshal(raw, &entry); err != nil {
				return err
			}
		}
		entry[attr] = descriptor
		raw, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return sb.Put(key, raw)
	})
}

// DelSchema removes a single attribute from id's schema entry.
func (s *Store) DelSchema(_ context.Context, id, attr string) error {
	if s.readOnly {
		return types.ErrImmutableStore
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		sb := tx.Bucket(bucketSchema)
		key := []byte(types.SchemaKey(id))
		raw := sb.Get(key)
		if raw == nil {
			return nil
		}
		entry := types.SchemaEntry{}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return err
		}
		delete(entry, attr)
		if len(entry) == 0 {
			return sb.Delete(key)
		}
		nb, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return sb.Put(key, nb)
	})
}

// RegisterServices bulk-registers services under locationKey in one
// transaction.
func (s *Store) RegisterServices(ctx context.Context, locationKey string, services map[string]store.Record) error {
	if s.readOnly {
		return types.ErrImmutableStore
	}
	for id, rec := range services {
		rec.Meta.LocationKey = locationKey
		if err := s.Put(ctx, id, rec.Payload, rec.Meta); err != nil {
			return err
		}
	}
	return nil
}

// Roots returns the append-only set of known root prefixes.
func (s *Store) Roots(_ context.Context) ([]string, error) {
	var roots []string
	err := s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		raw := meta.Get([]byte(types.RootSetKey))
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &roots)
	})
	return roots, err
}

// LayerName returns the layer this Store would like to be auto-registered
// under.
func (s *Store) LayerName() string { return s.layer }

// ReadOnly reports whether this Store rejects mutating calls.
func (s *Store) ReadOnly() bool { return s.readOnly }

// Version returns the version stamped into this Store file on creation.
func (s *Store) Version(_ context.Context) (types.Version, error) {
	var v types.Version
	err := s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		raw := meta.Get([]byte(types.VersionKey))
		if raw == nil {
			return errors.New("kv: no version stamped")
		}
		return json.Unmarshal(raw, &v)
	})
	return v, err
}

// Close closes the underlying bbolt file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the on-disk path of the bbolt file backing this Store.
func (s *Store) Path() string { return s.path }
