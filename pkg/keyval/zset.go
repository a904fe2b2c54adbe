package keyval

import (
	"math/rand"
	"sort"
	"strconv"
)

type zentry struct {
	member string
	score  float64
}

// zset keeps members sorted by ascending score, ties broken by member.
type zset struct {
	byMember map[string]float64
	sorted   []zentry
}

func newZset() *zset {
	return &zset{byMember: make(map[string]float64)}
}

func (z *zset) add(score float64, member string) {
	if _, ok := z.byMember[member]; ok {
		z.remove(member)
	}
	z.byMember[member] = score
	i := sort.Search(len(z.sorted), func(i int) bool {
		e := z.sorted[i]
		return e.score > score || (e.score == score && e.member >= member)
	})
	z.sorted = append(z.sorted, zentry{})
	copy(z.sorted[i+1:], z.sorted[i:])
	z.sorted[i] = zentry{member: member, score: score}
}

func (z *zset) remove(member string) {
	score, ok := z.byMember[member]
	if !ok {
		return
	}
	delete(z.byMember, member)
	i := sort.Search(len(z.sorted), func(i int) bool {
		e := z.sorted[i]
		return e.score > score || (e.score == score && e.member >= member)
	})
	if i < len(z.sorted) && z.sorted[i].member == member {
		z.sorted = append(z.sorted[:i], z.sorted[i+1:]...)
	}
}

// revRange returns members between start and stop inclusive counted from
// the highest score downwards.
func (z *zset) revRange(start, stop int64) []string {
	n := int64(len(z.sorted))
	lo, hi, ok := clampRange(start, stop, n)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, z.sorted[n-1-i].member)
	}
	return out
}

// randMembers draws up to count distinct members uniformly.
func (z *zset) randMembers(count int) []string {
	n := len(z.sorted)
	if count <= 0 || n == 0 {
		return []string{}
	}
	if count > n {
		count = n
	}
	idx := rand.Perm(n)[:count]
	out := make([]string, 0, count)
	for _, i := range idx {
		out = append(out, z.sorted[i].member)
	}
	return out
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func formatInt64(v int64) string {
	return strconv.FormatInt(v, 10)
}
