package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chirpd/pkg/apperr"
	"chirpd/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAuthRoundTripAndAliases(t *testing.T) {
	s := newTestStore(t)
	a := models.Auth{ID: "u1", UID: "100001", Username: "aria", Email: "aria@example.com", PasswordHash: "x"}
	require.NoError(t, s.SaveAuth(a))

	byName, err := s.GetAuthByUsername("aria")
	require.NoError(t, err)
	assert.Equal(t, "u1", byName.ID)

	byMail, err := s.GetAuthByEmail("aria@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byMail.ID)

	_, err = s.GetAuthByUsername("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err), "a miss is an absent entity, not an internal failure")
}

func TestSaveAuthPasswordKeepsAliasesInSync(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveAuth(models.Auth{ID: "u1", Username: "aria", Email: "aria@example.com", PasswordHash: "old"}))
	require.NoError(t, s.SaveAuthPassword("u1", "new"))

	byName, err := s.GetAuthByUsername("aria")
	require.NoError(t, err)
	assert.Equal(t, "new", byName.PasswordHash)
	byMail, err := s.GetAuthByEmail("aria@example.com")
	require.NoError(t, err)
	assert.Equal(t, "new", byMail.PasswordHash)
}

func TestUserFieldWhitelist(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveUser(models.User{ID: "u1", Username: "aria"}))

	require.NoError(t, s.UpdateUserField("u1", "quote", "onward"))
	u, err := s.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "onward", u.Quote)

	assert.Error(t, s.UpdateUserField("u1", "username", "evil"), "immutable fields are rejected")
}

func TestSavePostIsIdempotentByKey(t *testing.T) {
	s := newTestStore(t)
	p := models.Post{ID: "p1", UserID: "u1", Post: "hello"}
	require.NoError(t, s.SavePost(p))
	require.NoError(t, s.SavePost(p))

	n, err := s.CountPosts()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListPostsPagesNewestFirst(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 25; i++ {
		require.NoError(t, s.SavePost(models.Post{
			ID:   fmt.Sprintf("p%03d", i),
			Post: fmt.Sprintf("post %d", i),
		}))
	}

	first, err := s.ListPosts(0, 10)
	require.NoError(t, err)
	require.Len(t, first, 10)
	assert.Equal(t, "p024", first[0].ID)

	last, err := s.ListPosts(20, 10)
	require.NoError(t, err)
	assert.Len(t, last, 5)
	assert.Equal(t, "p000", last[4].ID)
}

func TestSaveCommentReplaySafe(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SavePost(models.Post{ID: "p1"}))
	c := models.Comment{ID: "c1", PostID: "p1", Comment: "nice"}

	require.NoError(t, s.SaveComment(c))
	require.NoError(t, s.SaveComment(c))

	p, err := s.GetPost("p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.CommentsCount, "replay must not double-count")
}

func TestReactionSwapAdjustsTallies(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SavePost(models.Post{ID: "p1"}))

	require.NoError(t, s.SaveReaction(models.Reaction{ID: "r1", PostID: "p1", Username: "aria", Type: "like"}))
	require.NoError(t, s.SaveReaction(models.Reaction{ID: "r2", PostID: "p1", Username: "aria", Type: "love"}))

	p, err := s.GetPost("p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Reactions.Like)
	assert.Equal(t, 1, p.Reactions.Love)

	list, err := s.ListReactions("p1")
	require.NoError(t, err)
	assert.Len(t, list, 1, "one reaction row per user per post")

	require.NoError(t, s.DeleteReaction("p1", "aria"))
	p, err = s.GetPost("p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Reactions.Love)
	require.NoError(t, s.DeleteReaction("p1", "aria"), "removing twice is a no-op")
}

func TestFollowerEdgeReplaySafe(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveUser(models.User{ID: "u1"}))
	require.NoError(t, s.SaveUser(models.User{ID: "u2"}))
	edge := models.Follower{ID: "f1", FollowerID: "u1", FolloweeID: "u2"}

	require.NoError(t, s.SaveFollower(edge))
	require.NoError(t, s.SaveFollower(edge))

	followee, err := s.GetUser("u2")
	require.NoError(t, err)
	assert.Equal(t, 1, followee.FollowersCount)

	require.NoError(t, s.DeleteFollower("u1", "u2"))
	require.NoError(t, s.DeleteFollower("u1", "u2"))
	followee, err = s.GetUser("u2")
	require.NoError(t, err)
	assert.Equal(t, 0, followee.FollowersCount)
}

func TestDeletePostRemovesDependents(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SavePost(models.Post{ID: "p1"}))
	require.NoError(t, s.SaveComment(models.Comment{ID: "c1", PostID: "p1"}))
	require.NoError(t, s.SaveReaction(models.Reaction{ID: "r1", PostID: "p1", Username: "aria", Type: "like"}))

	require.NoError(t, s.DeletePost("p1"))

	_, err := s.GetPost("p1")
	assert.ErrorIs(t, err, ErrNotFound)
	comments, err := s.ListComments("p1")
	require.NoError(t, err)
	assert.Empty(t, comments)
	reactions, err := s.ListReactions("p1")
	require.NoError(t, err)
	assert.Empty(t, reactions)
}

func TestDeadLetterLifecycle(t *testing.T) {
	s := newTestStore(t)
	dl, err := s.AppendDeadLetter("post.create", "p1", []byte(`{"id":"p1"}`), errors.New("boom"), 1)
	require.NoError(t, err)
	assert.NotEmpty(t, dl.ID)
	assert.Equal(t, 1, dl.Attempts)

	letters, err := s.ListDeadLetters(10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, "boom", letters[0].Error)
	assert.Equal(t, []byte(`{"id":"p1"}`), letters[0].Payload)

	require.NoError(t, s.DeleteDeadLetter(dl.ID))
	letters, err = s.ListDeadLetters(10)
	require.NoError(t, err)
	assert.Empty(t, letters)
}

func TestNotificationLifecycle(t *testing.T) {
	s := newTestStore(t)
	n := models.Notification{ID: "n1", UserTo: "u1", Message: "hi"}
	require.NoError(t, s.SaveNotification(n))

	list, err := s.ListNotifications("u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Read)

	require.NoError(t, s.MarkNotificationRead("u1", "n1"))
	list, err = s.ListNotifications("u1")
	require.NoError(t, err)
	assert.True(t, list[0].Read)

	require.NoError(t, s.DeleteNotification("u1", "n1"))
	list, err = s.ListNotifications("u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMarkMessagesReadSkipsReaderOwnMessages(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveMessage(models.Message{ID: "m1", ConversationID: "c1", SenderID: "u2"}))
	require.NoError(t, s.SaveMessage(models.Message{ID: "m2", ConversationID: "c1", SenderID: "u1"}))

	require.NoError(t, s.MarkMessagesRead("c1", "u1"))

	msgs, err := s.ListMessages("c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		if m.SenderID == "u1" {
			assert.False(t, m.IsRead, "reader's own message keeps its state")
		} else {
			assert.True(t, m.IsRead)
		}
	}
}

func TestImageGalleryLifecycle(t *testing.T) {
	s := newTestStore(t)
	img := models.Image{ID: "i1", UserID: "u1", ImgID: "raw1", ImgVersion: "v1"}
	require.NoError(t, s.SaveImage(img))
	require.NoError(t, s.SaveImage(img))

	list, err := s.ListImages("u1")
	require.NoError(t, err)
	require.Len(t, list, 1, "replayed save keeps one record")
	assert.Equal(t, "raw1", list[0].ImgID)

	require.NoError(t, s.DeleteImage("u1", "i1"))
	list, err = s.ListImages("u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConversationSavedOncePerUser(t *testing.T) {
	s := newTestStore(t)
	cv := models.Conversation{ConversationID: "c1", ReceiverID: "u2"}
	require.NoError(t, s.SaveConversation("u1", cv))
	require.NoError(t, s.SaveConversation("u1", cv))

	list, err := s.ListConversations("u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
