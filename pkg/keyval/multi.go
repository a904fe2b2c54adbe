package keyval

// Multi is a queued batch of write commands applied atomically by Exec.
// It is the store's native multi-command transaction primitive: no reader
// can observe a subset of a batch's effects. A Multi is not safe for
// concurrent use; build it on one goroutine and Exec once.
type Multi struct {
	s   *Store
	ops []func(s *Store)
}

// Multi starts an empty batch against the store.
func (s *Store) Multi() *Multi {
	return &Multi{s: s}
}

// HSet queues a hash field write.
func (m *Multi) HSet(key, field, value string) *Multi {
	m.ops = append(m.ops, func(s *Store) { s.hset(key, field, value) })
	return m
}

// HSetMap queues writes for every field in fields.
func (m *Multi) HSetMap(key string, fields map[string]string) *Multi {
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	m.ops = append(m.ops, func(s *Store) {
		for k, v := range cp {
			s.hset(key, k, v)
		}
	})
	return m
}

// HIncrBy queues an atomic counter increment.
func (m *Multi) HIncrBy(key, field string, delta int64) *Multi {
	m.ops = append(m.ops, func(s *Store) { s.hincrby(key, field, delta) })
	return m
}

// LPush queues a list prepend.
func (m *Multi) LPush(key string, values ...string) *Multi {
	cp := append([]string(nil), values...)
	m.ops = append(m.ops, func(s *Store) { s.lpush(key, cp...) })
	return m
}

// RPush queues a list append.
func (m *Multi) RPush(key string, values ...string) *Multi {
	cp := append([]string(nil), values...)
	m.ops = append(m.ops, func(s *Store) { s.rpush(key, cp...) })
	return m
}

// LRem queues removal of up to count occurrences of value.
func (m *Multi) LRem(key string, count int64, value string) *Multi {
	m.ops = append(m.ops, func(s *Store) { s.lrem(key, count, value) })
	return m
}

// ZAdd queues a sorted-set insert.
func (m *Multi) ZAdd(key string, score float64, member string) *Multi {
	m.ops = append(m.ops, func(s *Store) { s.zadd(key, score, member) })
	return m
}

// ZRem queues a sorted-set removal.
func (m *Multi) ZRem(key, member string) *Multi {
	m.ops = append(m.ops, func(s *Store) {
		if z, ok := s.zsets[key]; ok {
			z.remove(member)
		}
	})
	return m
}

// Del queues key deletion across all namespaces.
func (m *Multi) Del(keys ...string) *Multi {
	cp := append([]string(nil), keys...)
	m.ops = append(m.ops, func(s *Store) {
		for _, k := range cp {
			s.del(k)
		}
	})
	return m
}

// Exec applies every queued command under one write lock.
func (m *Multi) Exec() error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.closed {
		return ErrClosed
	}
	for _, op := range m.ops {
		op(m.s)
	}
	m.ops = nil
	return nil
}
