package keyval

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSetGet(t *testing.T) {
	s := New()
	defer s.Close()

	require.NoError(t, s.HSet("users:1", "username", "danny"))
	v, ok, err := s.HGet("users:1", "username")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "danny", v)

	_, ok, err = s.HGet("users:1", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := s.HGetAll("users:1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"username": "danny"}, all)

	all, err = s.HGetAll("users:nope")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHIncrByConcurrent(t *testing.T) {
	s := New()
	defer s.Close()

	const incs, decs = 100, 40
	var wg sync.WaitGroup
	for i := 0; i < incs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.HIncrBy("users:1", "followersCount", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	for i := 0; i < decs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.HIncrBy("users:1", "followersCount", -1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	v, ok, err := s.HGet("users:1", "followersCount")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("%d", incs-decs), v)
}

func TestListOps(t *testing.T) {
	s := New()
	defer s.Close()

	require.NoError(t, s.RPush("comments:p1", "a", "b", "c"))
	require.NoError(t, s.LPush("comments:p1", "z"))

	got, err := s.LRange("comments:p1", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "b", "c"}, got)

	got, err = s.LRange("comments:p1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	n, err := s.LRem("comments:p1", 1, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	v, ok, err := s.LIndex("comments:p1", -1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c", v)

	ok, err = s.LSet("comments:p1", 0, "y")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.LSet("comments:p1", 99, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	ln, err := s.LLen("comments:p1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), ln)
}

func TestLPushUnique(t *testing.T) {
	s := New()
	defer s.Close()

	added, err := s.LPushUnique("followers:u2", "u1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.LPushUnique("followers:u2", "u1")
	require.NoError(t, err)
	assert.False(t, added, "duplicate push must not change the list")

	got, err := s.LRange("followers:u2", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, got)
}

func TestZSetRevRange(t *testing.T) {
	s := New()
	defer s.Close()

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.ZAdd("post", float64(i*10), fmt.Sprintf("p%d", i)))
	}
	got, err := s.ZRevRange("post", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"p5", "p4", "p3", "p2", "p1"}, got)

	got, err = s.ZRevRange("post", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"p4", "p3", "p2"}, got)

	// updating a member's score moves it
	require.NoError(t, s.ZAdd("post", 99, "p1"))
	got, err = s.ZRevRange("post", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, got)

	card, err := s.ZCard("post")
	require.NoError(t, err)
	assert.Equal(t, int64(5), card)
}

func TestZRandMember(t *testing.T) {
	s := New()
	defer s.Close()
	for i := 0; i < 10; i++ {
		require.NoError(t, s.ZAdd("user", float64(i), fmt.Sprintf("u%d", i)))
	}
	got, err := s.ZRandMember("user", 4)
	require.NoError(t, err)
	assert.Len(t, got, 4)
	seen := map[string]bool{}
	for _, m := range got {
		assert.False(t, seen[m], "duplicate member %s", m)
		seen[m] = true
	}

	got, err = s.ZRandMember("user", 50)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestMultiAtomicVisibility(t *testing.T) {
	s := New()
	defer s.Close()

	// A batch writing several fields must never be half-visible: readers
	// see either no fields or all of them.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			m := s.Multi()
			m.HSetMap("posts:1", map[string]string{
				"post":    fmt.Sprintf("body-%d", i),
				"privacy": "public",
				"seq":     fmt.Sprintf("%d", i),
			})
			m.HIncrBy("users:1", "postsCount", 1)
			assert.NoError(t, m.Exec())
		}
	}()
	for i := 0; i < 200; i++ {
		all, err := s.HGetAll("posts:1")
		assert.NoError(t, err)
		if len(all) != 0 {
			assert.Len(t, all, 3, "partially visible batch: %v", all)
		}
	}
	<-done
}

func TestClosedStore(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	assert.False(t, s.Ready())

	err := s.HSet("k", "f", "v")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.LRange("k", 0, -1)
	assert.ErrorIs(t, err, ErrClosed)
	err = s.Multi().HSet("k", "f", "v").Exec()
	assert.ErrorIs(t, err, ErrClosed)
}
