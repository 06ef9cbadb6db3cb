package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/redkeeper/pkg/types"
)

var (
	// Bucket names
	bucketSecrets = []byte("secrets")
	bucketState   = []byte("state")
	bucketDatabag = []byte("databag")
)

// openTimeout bounds the wait for the bolt file lock. The daemon holds the
// store open for its lifetime, so a one-shot action or hook racing it must
// give up and report the store unavailable rather than block on the flock.
const openTimeout = 3 * time.Second

// BoltStore implements Store using BoltDB. The database file lives on the
// application's attached storage, so every read-modify-write is serialized
// by a single bolt transaction.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the store under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "redkeeper.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("database %s is locked by another process: %w",
				dbPath, types.ErrSecretStoreUnavailable)
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{bucketSecrets, bucketState, bucketDatabag}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) PutSecret(key string, value []byte) error {
	return s.put(bucketSecrets, []byte(key), value)
}

// GetSecret returns nil without error when the key is absent.
func (s *BoltStore) GetSecret(key string) ([]byte, error) {
	return s.get(bucketSecrets, []byte(key))
}

func (s *BoltStore) GetOrPutSecret(key string, gen func() ([]byte, error)) ([]byte, bool, error) {
	var value []byte
	var created bool

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSecrets)
		if existing := b.Get([]byte(key)); existing != nil {
			value = append([]byte(nil), existing...)
			return nil
		}

		generated, err := gen()
		if err != nil {
			return fmt.Errorf("failed to generate value for %s: %w", key, err)
		}
		if err := b.Put([]byte(key), generated); err != nil {
			return fmt.Errorf("failed to store %s: %w", key, err)
		}
		value = generated
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, created, nil
}

func (s *BoltStore) PutState(key, value string) error {
	return s.put(bucketState, []byte(key), []byte(value))
}

// GetState returns the empty string when the key is absent.
func (s *BoltStore) GetState(key string) (string, error) {
	value, err := s.get(bucketState, []byte(key))
	if err != nil {
		return "", err
	}
	return string(value), nil
}

func (s *BoltStore) PutDatabag(key string, value []byte) error {
	return s.put(bucketDatabag, []byte(key), value)
}

func (s *BoltStore) GetDatabag(key string) ([]byte, error) {
	return s.get(bucketDatabag, []byte(key))
}

func (s *BoltStore) put(bucket, key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucket).Put(key, value); err != nil {
			return fmt.Errorf("failed to write %s/%s: %w", bucket, key, err)
		}
		return nil
	})
}

func (s *BoltStore) get(bucket, key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucket).Get(key); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", bucket, key, err)
	}
	return value, nil
}
