// Package keyval implements the in-process volatile store backing the
// entity caches: string-field hashes, ordered lists and score-sorted sets
// under a single mutable namespace. All commands are safe for concurrent
// use; Multi applies a batch of writes under one lock so a concurrent
// reader never observes a partially written entity.
package keyval

import (
	"errors"
	"sync"
)

// ErrClosed is returned by every command once the store has been closed.
var ErrClosed = errors.New("keyval: store closed")

// Store is the volatile key-value store. Construct with New and inject the
// handle into each entity cache; lifecycle is owned by the process entry
// point.
type Store struct {
	mu     sync.RWMutex
	closed bool

	hashes map[string]map[string]string
	lists  map[string][]string
	zsets  map[string]*zset
}

// New returns an empty open Store.
func New() *Store {
	return &Store{
		hashes: make(map[string]map[string]string),
		lists:  make(map[string][]string),
		zsets:  make(map[string]*zset),
	}
}

// Close marks the store closed. Subsequent commands fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.hashes, s.lists, s.zsets = nil, nil, nil
	return nil
}

// Ready reports whether the store is open.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// HSet sets a single hash field.
func (s *Store) HSet(key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.hset(key, field, value)
	return nil
}

// HGet returns a single hash field; ok is false when the key or field is
// absent.
func (s *Store) HGet(key, field string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	h, ok := s.hashes[key]
	if !ok {
		return "", false, nil
	}
	v, ok := h[field]
	return v, ok, nil
}

// HGetAll returns a copy of all fields of a hash. An absent key yields an
// empty map, mirroring the durable store's empty-singleton convention.
func (s *Store) HGetAll(key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	h := s.hashes[key]
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

// HIncrBy atomically adds delta to an integer hash field, creating it at
// zero if absent, and returns the new value.
func (s *Store) HIncrBy(key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.hincrby(key, field, delta), nil
}

// Del removes keys from every namespace.
func (s *Store) Del(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, k := range keys {
		s.del(k)
	}
	return nil
}

// Exists reports whether key is present in any namespace.
func (s *Store) Exists(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}
	if _, ok := s.hashes[key]; ok {
		return true, nil
	}
	if _, ok := s.lists[key]; ok {
		return true, nil
	}
	_, ok := s.zsets[key]
	return ok, nil
}

// LPush prepends values to a list, creating it if absent.
func (s *Store) LPush(key string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.lpush(key, values...)
	return nil
}

// LPushUnique prepends value only when the list does not already contain
// it, reporting whether the list changed. The check and the push happen
// under one lock, so concurrent duplicate pushes collapse into one entry.
func (s *Store) LPushUnique(key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	for _, v := range s.lists[key] {
		if v == value {
			return false, nil
		}
	}
	s.lpush(key, value)
	return true, nil
}

// RPush appends values to a list, creating it if absent.
func (s *Store) RPush(key string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.rpush(key, values...)
	return nil
}

// LRange returns list elements between start and stop inclusive. Negative
// indices count from the tail; out-of-range bounds are clamped.
func (s *Store) LRange(key string, start, stop int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	l := s.lists[key]
	lo, hi, ok := clampRange(start, stop, int64(len(l)))
	if !ok {
		return []string{}, nil
	}
	out := make([]string, hi-lo+1)
	copy(out, l[lo:hi+1])
	return out, nil
}

// LRem removes up to count occurrences of value from the head of the list
// and returns how many were removed. count <= 0 removes all occurrences.
func (s *Store) LRem(key string, count int64, value string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.lrem(key, count, value), nil
}

// LIndex returns the element at idx (negatives from the tail); ok is false
// when out of range.
func (s *Store) LIndex(key string, idx int64) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	l := s.lists[key]
	n := int64(len(l))
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return "", false, nil
	}
	return l[idx], true, nil
}

// LSet replaces the element at idx; it fails quietly (ok=false) when idx is
// out of range so an optimistic replace can detect a shrunk list.
func (s *Store) LSet(key string, idx int64, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	l := s.lists[key]
	n := int64(len(l))
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return false, nil
	}
	l[idx] = value
	return true, nil
}

// LCompareAndSet replaces the element at idx only when it still equals
// old. It returns false when the element changed or the index is out of
// range, letting an optimistic in-place replace detect a stale read and
// retry instead of silently losing a concurrent update.
func (s *Store) LCompareAndSet(key string, idx int64, old, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	l := s.lists[key]
	n := int64(len(l))
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n || l[idx] != old {
		return false, nil
	}
	l[idx] = value
	return true, nil
}

// LLen returns the list length.
func (s *Store) LLen(key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return int64(len(s.lists[key])), nil
}

// ZAdd inserts or updates member with score in a sorted set.
func (s *Store) ZAdd(key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.zadd(key, score, member)
	return nil
}

// ZRem removes member from a sorted set.
func (s *Store) ZRem(key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if z, ok := s.zsets[key]; ok {
		z.remove(member)
	}
	return nil
}

// ZRevRange returns members between start and stop inclusive in descending
// score order.
func (s *Store) ZRevRange(key string, start, stop int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	z, ok := s.zsets[key]
	if !ok {
		return []string{}, nil
	}
	return z.revRange(start, stop), nil
}

// ZCard returns the cardinality of a sorted set.
func (s *Store) ZCard(key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	z, ok := s.zsets[key]
	if !ok {
		return 0, nil
	}
	return int64(len(z.sorted)), nil
}

// ZRandMember returns up to count distinct random members of a sorted set.
func (s *Store) ZRandMember(key string, count int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	z, ok := s.zsets[key]
	if !ok {
		return []string{}, nil
	}
	return z.randMembers(count), nil
}

// internal mutators, called with s.mu held for writing.

func (s *Store) hset(key, field, value string) {
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	h[field] = value
}

func (s *Store) hincrby(key, field string, delta int64) int64 {
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	cur := parseInt64(h[field])
	cur += delta
	h[field] = formatInt64(cur)
	return cur
}

func (s *Store) del(key string) {
	delete(s.hashes, key)
	delete(s.lists, key)
	delete(s.zsets, key)
}

func (s *Store) lpush(key string, values ...string) {
	l := s.lists[key]
	for _, v := range values {
		l = append([]string{v}, l...)
	}
	s.lists[key] = l
}

func (s *Store) rpush(key string, values ...string) {
	s.lists[key] = append(s.lists[key], values...)
}

func (s *Store) lrem(key string, count int64, value string) int64 {
	l := s.lists[key]
	if len(l) == 0 {
		return 0
	}
	if count <= 0 {
		count = int64(len(l))
	}
	var removed int64
	out := l[:0]
	for _, v := range l {
		if v == value && removed < count {
			removed++
			continue
		}
		out = append(out, v)
	}
	s.lists[key] = out
	return removed
}

func (s *Store) zadd(key string, score float64, member string) {
	z, ok := s.zsets[key]
	if !ok {
		z = newZset()
		s.zsets[key] = z
	}
	z.add(score, member)
}

// clampRange maps Redis-style inclusive start/stop (negatives from the
// tail) onto [lo, hi] within a collection of length n.
func clampRange(start, stop, n int64) (lo, hi int64, ok bool) {
	if n == 0 {
		return 0, 0, false
	}
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}
