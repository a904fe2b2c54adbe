package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chirpd/pkg/keyval"
	"chirpd/pkg/models"
)

func newTestStore(t *testing.T) *keyval.Store {
	t.Helper()
	kv := keyval.New()
	t.Cleanup(func() { kv.Close() })
	return kv
}

func testUser(id, uid, username string) models.User {
	return models.User{
		ID:          id,
		UID:         uid,
		Username:    username,
		Email:       username + "@example.com",
		AvatarColor: "#ff9800",
		CreatedAt:   1700000000,
	}
}

func TestUserCacheSaveGetRoundTrip(t *testing.T) {
	uc := NewUserCache(newTestStore(t))
	u := testUser("u1", "100001", "dana")
	u.Blocked = []string{"u9"}
	u.Social = models.SocialLinks{Twitter: "dana"}
	u.PostsCount = 3

	require.NoError(t, uc.Save(u))
	got, err := uc.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestUserCacheMissIsExplicit(t *testing.T) {
	uc := NewUserCache(newTestStore(t))
	_, err := uc.Get("absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserCacheRangeNewestUIDFirst(t *testing.T) {
	uc := NewUserCache(newTestStore(t))
	for i := 0; i < 25; i++ {
		u := testUser(fmt.Sprintf("u%02d", i), fmt.Sprintf("%06d", 100000+i), fmt.Sprintf("user%02d", i))
		require.NoError(t, uc.Save(u))
	}

	page, err := uc.Range(0, 9)
	require.NoError(t, err)
	require.Len(t, page, 10)
	assert.Equal(t, "u24", page[0].ID)
	assert.Equal(t, "u15", page[9].ID)

	next, err := uc.Range(10, 19)
	require.NoError(t, err)
	require.Len(t, next, 10)
	assert.Equal(t, "u14", next[0].ID)

	last, err := uc.Range(20, 29)
	require.NoError(t, err)
	assert.Len(t, last, 5)

	total, err := uc.Total()
	require.NoError(t, err)
	assert.Equal(t, 25, total)
}

func TestUserCacheRandomSuggestionsFiltersSelfAndFollowees(t *testing.T) {
	uc := NewUserCache(newTestStore(t))
	for i := 0; i < 10; i++ {
		require.NoError(t, uc.Save(testUser(fmt.Sprintf("u%d", i), fmt.Sprintf("%d", 100+i), fmt.Sprintf("user%d", i))))
	}

	got, err := uc.RandomSuggestions("u0", 10, []string{"u1", "u2"})
	require.NoError(t, err)
	for _, u := range got {
		assert.NotEqual(t, "u0", u.ID)
		assert.NotContains(t, []string{"u1", "u2"}, u.ID)
	}
}

func testPost(id, userID, uid, username string) models.Post {
	return models.Post{
		ID:        id,
		UserID:    userID,
		Username:  username,
		Post:      "hello from " + username,
		Privacy:   "Public",
		CreatedAt: 1700000100,
	}
}

func TestPostCacheSaveBumpsAuthorCounter(t *testing.T) {
	kv := newTestStore(t)
	uc := NewUserCache(kv)
	pc := NewPostCache(kv)

	require.NoError(t, uc.Save(testUser("u1", "100001", "dana")))
	require.NoError(t, pc.Save("u1", "100001", testPost("p1", "u1", "100001", "dana")))

	u, err := uc.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, 1, u.PostsCount)

	got, err := pc.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "hello from dana", got.Post)
}

func TestPostCacheDeleteRestoresCounterAndClearsDependents(t *testing.T) {
	kv := newTestStore(t)
	uc := NewUserCache(kv)
	pc := NewPostCache(kv)
	cc := NewCommentCache(kv)

	require.NoError(t, uc.Save(testUser("u1", "100001", "dana")))
	require.NoError(t, pc.Save("u1", "100001", testPost("p1", "u1", "100001", "dana")))
	require.NoError(t, cc.Save(models.Comment{ID: "c1", PostID: "p1", Username: "lee", Comment: "nice"}))

	require.NoError(t, pc.Delete("p1", "u1"))

	u, err := uc.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, 0, u.PostsCount)

	_, err = pc.Get("p1")
	assert.ErrorIs(t, err, ErrNotFound)

	comments, err := cc.List("p1")
	require.NoError(t, err)
	assert.Empty(t, comments)

	total, err := pc.Total()
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCommentCacheSaveIncrementsCount(t *testing.T) {
	kv := newTestStore(t)
	pc := NewPostCache(kv)
	cc := NewCommentCache(kv)

	require.NoError(t, pc.Save("u1", "100001", testPost("p1", "u1", "100001", "dana")))
	require.NoError(t, cc.Save(models.Comment{ID: "c1", PostID: "p1", Username: "lee", Comment: "first"}))
	require.NoError(t, cc.Save(models.Comment{ID: "c2", PostID: "p1", Username: "kim", Comment: "second"}))

	p, err := pc.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.CommentsCount)

	count, names, err := cc.Names("p1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.ElementsMatch(t, []string{"lee", "kim"}, names)

	got, err := cc.Single("p1", "c2")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Comment)
}

func TestReactionCacheSwapKeepsOneEntryPerUser(t *testing.T) {
	kv := newTestStore(t)
	pc := NewPostCache(kv)
	rc := NewReactionCache(kv)

	require.NoError(t, pc.Save("u1", "100001", testPost("p1", "u1", "100001", "dana")))

	like := models.Reaction{ID: "r1", PostID: "p1", Username: "lee", Type: "like"}
	var tallies models.Reactions
	tallies.Add("like", 1)
	require.NoError(t, rc.Save(like, tallies, ""))

	love := models.Reaction{ID: "r2", PostID: "p1", Username: "lee", Type: "love"}
	tallies.Add("like", -1)
	tallies.Add("love", 1)
	require.NoError(t, rc.Save(love, tallies, "like"))

	list, count, err := rc.List("p1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "love", list[0].Type)

	p, err := pc.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Reactions.Like)
	assert.Equal(t, 1, p.Reactions.Love)
}

func TestReactionCacheRemove(t *testing.T) {
	kv := newTestStore(t)
	pc := NewPostCache(kv)
	rc := NewReactionCache(kv)

	require.NoError(t, pc.Save("u1", "100001", testPost("p1", "u1", "100001", "dana")))

	var tallies models.Reactions
	tallies.Add("wow", 1)
	require.NoError(t, rc.Save(models.Reaction{ID: "r1", PostID: "p1", Username: "lee", Type: "wow"}, tallies, ""))

	tallies.Add("wow", -1)
	require.NoError(t, rc.Remove("p1", "lee", tallies))

	_, count, err := rc.List("p1")
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = rc.SingleByUsername("p1", "lee")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFollowerCacheAddThenRemoveIsNetZero(t *testing.T) {
	kv := newTestStore(t)
	uc := NewUserCache(kv)
	fc := NewFollowerCache(kv, uc)

	require.NoError(t, uc.Save(testUser("u1", "100001", "dana")))
	require.NoError(t, uc.Save(testUser("u2", "100002", "lee")))

	require.NoError(t, fc.Add("u1", "u2"))

	followee, err := uc.Get("u2")
	require.NoError(t, err)
	assert.Equal(t, 1, followee.FollowersCount)

	follower, err := uc.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, 1, follower.FollowingCount)

	list, err := fc.Followers("u2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "dana", list[0].Username)

	require.NoError(t, fc.Remove("u1", "u2"))

	followee, err = uc.Get("u2")
	require.NoError(t, err)
	assert.Zero(t, followee.FollowersCount)

	follower, err = uc.Get("u1")
	require.NoError(t, err)
	assert.Zero(t, follower.FollowingCount)

	ids, err := fc.FollowingIDs("u1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFollowerCacheReplayedEdgesKeepCountersExact(t *testing.T) {
	kv := newTestStore(t)
	uc := NewUserCache(kv)
	fc := NewFollowerCache(kv, uc)

	require.NoError(t, uc.Save(testUser("u1", "100001", "dana")))
	require.NoError(t, uc.Save(testUser("u2", "100002", "lee")))

	require.NoError(t, fc.Add("u1", "u2"))
	require.NoError(t, fc.Add("u1", "u2"))

	followee, err := uc.Get("u2")
	require.NoError(t, err)
	assert.Equal(t, 1, followee.FollowersCount, "duplicate follow must not double-count")

	list, err := fc.Followers("u2")
	require.NoError(t, err)
	assert.Len(t, list, 1, "duplicate follow must not duplicate the list entry")

	require.NoError(t, fc.Remove("u1", "u2"))
	require.NoError(t, fc.Remove("u1", "u2"))

	followee, err = uc.Get("u2")
	require.NoError(t, err)
	assert.Zero(t, followee.FollowersCount, "duplicate unfollow must not go negative")

	follower, err := uc.Get("u1")
	require.NoError(t, err)
	assert.Zero(t, follower.FollowingCount)
}

func TestFollowerCacheBlockUnblock(t *testing.T) {
	kv := newTestStore(t)
	uc := NewUserCache(kv)
	fc := NewFollowerCache(kv, uc)

	require.NoError(t, uc.Save(testUser("u1", "100001", "dana")))
	require.NoError(t, uc.Save(testUser("u2", "100002", "lee")))

	require.NoError(t, fc.Block("u1", "u2"))
	require.NoError(t, fc.Block("u1", "u2"))

	u1, err := uc.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, u1.Blocked)

	u2, err := uc.Get("u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, u2.BlockedBy)

	require.NoError(t, fc.Unblock("u1", "u2"))

	u1, err = uc.Get("u1")
	require.NoError(t, err)
	assert.Empty(t, u1.Blocked)
}

func testMessage(id, convID, senderID, receiverID string) models.Message {
	return models.Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Body:           "hey",
		CreatedAt:      1700000200,
	}
}

func TestMessageCacheConversationFlow(t *testing.T) {
	mc := NewMessageCache(newTestStore(t))
	conv := models.Conversation{ConversationID: "conv1", ReceiverID: "u2"}

	require.NoError(t, mc.AddConversation("u1", conv))
	require.NoError(t, mc.AddConversation("u1", conv))
	require.NoError(t, mc.AddConversation("u2", models.Conversation{ConversationID: "conv1", ReceiverID: "u1"}))

	require.NoError(t, mc.AddMessage(testMessage("m1", "conv1", "u1", "u2")))
	m2 := testMessage("m2", "conv1", "u2", "u1")
	m2.Body = "hi back"
	require.NoError(t, mc.AddMessage(m2))

	list, err := mc.ConversationList("u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "m2", list[0].ID)

	msgs, err := mc.Messages("u1", "u2")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestMessageCacheMarkReadBumpsVersion(t *testing.T) {
	mc := NewMessageCache(newTestStore(t))
	require.NoError(t, mc.AddConversation("u1", models.Conversation{ConversationID: "conv1", ReceiverID: "u2"}))
	require.NoError(t, mc.AddMessage(testMessage("m1", "conv1", "u2", "u1")))
	require.NoError(t, mc.AddMessage(testMessage("m2", "conv1", "u2", "u1")))

	last, err := mc.MarkRead("u1", "u2")
	require.NoError(t, err)
	assert.True(t, last.IsRead)
	assert.Equal(t, int64(1), last.Version)

	msgs, err := mc.Messages("u1", "u2")
	require.NoError(t, err)
	for _, m := range msgs {
		assert.True(t, m.IsRead)
	}
}

func TestMessageCacheMarkReadLeavesOwnMessagesUnread(t *testing.T) {
	mc := NewMessageCache(newTestStore(t))
	require.NoError(t, mc.AddConversation("u1", models.Conversation{ConversationID: "conv1", ReceiverID: "u2"}))
	require.NoError(t, mc.AddMessage(testMessage("m1", "conv1", "u2", "u1")))
	require.NoError(t, mc.AddMessage(testMessage("m2", "conv1", "u1", "u2")))

	_, err := mc.MarkRead("u1", "u2")
	require.NoError(t, err)

	msgs, err := mc.Messages("u1", "u2")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsRead, "peer message flips to read")
	assert.False(t, msgs[1].IsRead, "reader's own message keeps its state")
}

func TestMessageCacheReactionReplacesSameSender(t *testing.T) {
	mc := NewMessageCache(newTestStore(t))
	require.NoError(t, mc.AddConversation("u1", models.Conversation{ConversationID: "conv1", ReceiverID: "u2"}))
	require.NoError(t, mc.AddMessage(testMessage("m1", "conv1", "u1", "u2")))

	got, err := mc.AddMessageReaction("conv1", "m1", "lee", "like")
	require.NoError(t, err)
	require.Len(t, got.Reaction, 1)

	got, err = mc.AddMessageReaction("conv1", "m1", "lee", "love")
	require.NoError(t, err)
	require.Len(t, got.Reaction, 1)
	assert.Equal(t, "love", got.Reaction[0].Type)
	assert.Equal(t, int64(2), got.Version)

	got, err = mc.RemoveMessageReaction("conv1", "m1", "lee")
	require.NoError(t, err)
	assert.Empty(t, got.Reaction)
}

func TestMessageCacheMarkDeletedTombstones(t *testing.T) {
	mc := NewMessageCache(newTestStore(t))
	require.NoError(t, mc.AddConversation("u1", models.Conversation{ConversationID: "conv1", ReceiverID: "u2"}))
	require.NoError(t, mc.AddMessage(testMessage("m1", "conv1", "u1", "u2")))
	require.NoError(t, mc.AddMessage(testMessage("m2", "conv1", "u1", "u2")))

	got, err := mc.MarkDeleted("conv1", "m1")
	require.NoError(t, err)
	assert.True(t, got.Deleted)

	msgs, err := mc.Messages("u1", "u2")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].Deleted)
	assert.False(t, msgs[1].Deleted)
}

func TestRepopulatorCollapsesConcurrentMisses(t *testing.T) {
	var r Repopulator
	calls := 0
	err := r.Do("users:u1", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
