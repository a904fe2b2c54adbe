// Package store implements the durable store adapter: per-entity
// repositories over a single Pebble database. The store is the
// authoritative slow path consulted on cache miss and written
// asynchronously by queue workers. "Not found" is a sentinel (ErrNotFound
// for singletons, empty slices for collections), mirroring the cache so
// handlers can use one fallback check.
package store

import (
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/cockroachdb/pebble"

	"chirpd/pkg/apperr"
	"chirpd/pkg/logger"
)

// ErrNotFound marks a singleton lookup that matched nothing. It carries
// the NotFound kind so a durable miss surfaces to clients as an absent
// entity rather than an internal failure.
var ErrNotFound = apperr.New(apperr.NotFound, "not found")

const lockStripes = 64

// Store wraps an open Pebble database. Construct with Open and inject the
// handle; lifecycle is owned by the process entry point.
type Store struct {
	db   *pebble.DB
	path string

	// keyLocks serializes read-modify-write counter updates per key so
	// increments are never lost (I3 on the durable side).
	keyLocks [lockStripes]sync.Mutex
}

// Open opens (or creates) a Pebble database at path.
func Open(path string) (*Store, error) {
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	logger.Info("pebble_closed")
	return err
}

// Ready reports whether the store is opened.
func (s *Store) Ready() bool { return s != nil && s.db != nil }

func (s *Store) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.keyLocks[h.Sum32()%lockStripes]
}

// putJSON marshals v and writes it under key. Writes are keyed by IDs the
// request handlers minted, so re-applying the same job is idempotent (I2).
func (s *Store) putJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.db.Set([]byte(key), data, pebble.Sync); err != nil {
		opErrors.WithLabelValues("set").Inc()
		return err
	}
	opTotal.WithLabelValues("set").Inc()
	return nil
}

// getJSON reads key into v, returning ErrNotFound when absent.
func (s *Store) getJSON(key string, v any) error {
	data, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		opErrors.WithLabelValues("get").Inc()
		return err
	}
	defer closer.Close()
	opTotal.WithLabelValues("get").Inc()
	return json.Unmarshal(data, v)
}

func (s *Store) delete(key string) error {
	if err := s.db.Delete([]byte(key), pebble.Sync); err != nil {
		opErrors.WithLabelValues("delete").Inc()
		return err
	}
	opTotal.WithLabelValues("delete").Inc()
	return nil
}

// mutateJSON applies fn to the JSON document at key under a per-key lock.
// fn receives the zero value when the key is absent and absent==true.
func (s *Store) mutateJSON(key string, v any, fn func(absent bool) error) error {
	mu := s.lockFor(key)
	mu.Lock()
	defer mu.Unlock()
	absent := false
	if err := s.getJSON(key, v); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		absent = true
	}
	if err := fn(absent); err != nil {
		return err
	}
	return s.putJSON(key, v)
}

// scanPrefix collects every value under prefix in key order.
func (s *Store) scanPrefix(prefix string) ([][]byte, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound([]byte(prefix)),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		out = append(out, append([]byte(nil), iter.Value()...))
	}
	opTotal.WithLabelValues("scan").Inc()
	return out, iter.Error()
}

// deletePrefix removes every key under prefix.
func (s *Store) deletePrefix(prefix string) error {
	if err := s.db.DeleteRange([]byte(prefix), prefixUpperBound([]byte(prefix)), pebble.Sync); err != nil {
		opErrors.WithLabelValues("delete_range").Inc()
		return err
	}
	opTotal.WithLabelValues("delete_range").Inc()
	return nil
}

// prefixUpperBound returns the smallest key greater than every key with
// the given prefix.
func prefixUpperBound(prefix []byte) []byte {
	ub := append([]byte(nil), prefix...)
	for i := len(ub) - 1; i >= 0; i-- {
		if ub[i] < 0xff {
			ub[i]++
			return ub[:i+1]
		}
	}
	return nil
}

// page applies newest-first ordering plus skip/limit to a slice of raw
// documents whose keys were written in time-sortable ascending order.
func page(raw [][]byte, skip, limit int) [][]byte {
	// reverse: newest first
	for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
		raw[i], raw[j] = raw[j], raw[i]
	}
	if skip < 0 {
		skip = 0
	}
	if skip >= len(raw) {
		return nil
	}
	raw = raw[skip:]
	if limit > 0 && limit < len(raw) {
		raw = raw[:limit]
	}
	return raw
}

func decodeAll[T any](raw [][]byte) ([]T, error) {
	out := make([]T, 0, len(raw))
	for _, b := range raw {
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// hasKey reports raw key existence without decoding.
func (s *Store) hasKey(key string) (bool, error) {
	_, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	_ = closer.Close()
	return true, nil
}
