package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/itrek/trekd/params"
	"github.com/itrek/trekd/types/route"
	"github.com/jellydator/ttlcache/v3"
	"go.etcd.io/bbolt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

var allBuckets = [][]byte{
	params.BucketUsers,
	params.BucketUsernames,
	params.BucketEmails,
	params.BucketTokens,
	params.BucketRoutes,
	params.BucketShares,
	params.BucketRatings,
	params.BucketComments,
}

// Store is the trekd database: a single bbolt file with one bucket per record kind.
// Values are JSON, keys are big-endian ids unless noted otherwise.
// Routes are cached in an LRU, token lookups in a TTL cache.
type Store struct {
	DB *bbolt.DB

	routes *lru.Cache[uint64, *route.Route]
	tokens *ttlcache.Cache[string, uint64]
}

// Open opens (or creates) the store under config.DataDir.
// Opening a writable bbolt file takes a file lock; a second Open of the same
// directory waits up to config.OpenTimeout and then fails.
func Open(config *params.StoreConfig) (*Store, error) {
	if config.DataDir == "" {
		return nil, fmt.Errorf("store: empty data dir")
	}
	if err := os.MkdirAll(config.DataDir, 0770); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(filepath.Join(config.DataDir, params.StoreDBName),
		0600, &bbolt.Options{
			Timeout: config.OpenTimeout,
		})
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	size := config.RouteCacheSize
	if size <= 0 {
		size = 1
	}
	routes, err := lru.New[uint64, *route.Route](size)
	if err != nil {
		db.Close()
		return nil, err
	}
	tokens := ttlcache.New[string, uint64](
		ttlcache.WithTTL[string, uint64](config.TokenCacheTTL),
		ttlcache.WithDisableTouchOnHit[string, uint64](),
	)
	go tokens.Start()

	slog.Debug("Opened store", "path", db.Path())
	return &Store{
		DB:     db,
		routes: routes,
		tokens: tokens,
	}, nil
}

func (s *Store) Close() error {
	s.tokens.Stop()
	s.routes.Purge()
	return s.DB.Close()
}

// NextID returns the next value of the bucket's sequence.
func (s *Store) NextID(bucket []byte) (id uint64, err error) {
	err = s.DB.Update(func(tx *bbolt.Tx) error {
		id, err = tx.Bucket(bucket).NextSequence()
		return err
	})
	return id, err
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// pairKey joins two ids so that a prefix scan on the first finds all pairs.
func pairKey(a, b uint64) []byte {
	return append(itob(a), itob(b)...)
}

func putJSON(tx *bbolt.Tx, bucket, key []byte, v any) error {
	if key == nil {
		return fmt.Errorf("putJSON: nil key")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put(key, data)
}

// getJSON decodes the value at key into v.
// The value returned by Get is only valid in the scope of the transaction,
// which is fine, since Unmarshal copies.
func getJSON(tx *bbolt.Tx, bucket, key []byte, v any) error {
	got := tx.Bucket(bucket).Get(key)
	if got == nil {
		return ErrNotFound
	}
	return json.Unmarshal(got, v)
}

// scanJSON decodes every value under prefix, or all values for a nil prefix, and hands each to fn.
func scanJSON[T any](tx *bbolt.Tx, bucket, prefix []byte, fn func(*T) error) error {
	c := tx.Bucket(bucket).Cursor()
	var k, v []byte
	if prefix == nil {
		k, v = c.First()
	} else {
		k, v = c.Seek(prefix)
	}
	for ; k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		t := new(T)
		if err := json.Unmarshal(v, t); err != nil {
			return fmt.Errorf("decode %s/%x: %w", bucket, k, err)
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
