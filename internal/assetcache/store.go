// Package assetcache keeps the static application shell available without
// network access. A versioned bbolt store holds one bucket per cache
// generation; the gateway in front of it serves cached responses immediately
// and refreshes them from the origin in the background.
package assetcache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"net/http"

	"go.etcd.io/bbolt"
)

// Entry is one stored response: status, headers, and body, keyed by
// "METHOD URL" inside a version bucket.
type Entry struct {
	Status int
	Header http.Header
	Body   []byte
}

// Store is the on-disk cache. Asset bodies are immutable per version, so
// concurrent writes of the same key are harmless (last write wins).
type Store struct {
	db *bbolt.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open asset cache: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EntryKey builds the request identity an entry is stored under.
func EntryKey(method, url string) string {
	return method + " " + url
}

// Put stores one entry under the given version bucket, creating the bucket
// if needed.
func (s *Store) Put(version, key string, e Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(version))
		if err != nil {
			return fmt.Errorf("create version bucket: %w", err)
		}
		data, err := encodeEntry(e)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// PutAll stores every entry in one transaction. Used by install: either the
// whole manifest lands in the version bucket or none of it does.
func (s *Store) PutAll(version string, entries map[string]Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(version))
		if err != nil {
			return fmt.Errorf("create version bucket: %w", err)
		}
		for key, e := range entries {
			data, err := encodeEntry(e)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(key), data); err != nil {
				return fmt.Errorf("put %s: %w", key, err)
			}
		}
		return nil
	})
}

// Get retrieves an entry from the version bucket.
func (s *Store) Get(version, key string) (Entry, bool, error) {
	var e Entry
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(version))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		decoded, err := decodeEntry(data)
		if err != nil {
			return err
		}
		e = decoded
		found = true
		return nil
	})
	return e, found, err
}

// Keys lists the request identities stored under a version.
func (s *Store) Keys(version string) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(version))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Versions lists every cache generation currently on disk.
func (s *Store) Versions() ([]string, error) {
	var versions []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			versions = append(versions, string(name))
			return nil
		})
	})
	return versions, err
}

// DropVersion deletes a whole cache generation. Entries are never deleted
// individually.
func (s *Store) DropVersion(version string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(version)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(version))
	})
}

func encodeEntry(e Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (Entry, error) {
	var e Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil {
		return Entry{}, fmt.Errorf("decode entry: %w", err)
	}
	return e, nil
}
