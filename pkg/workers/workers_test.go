package workers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chirpd/pkg/models"
	"chirpd/pkg/queue"
	"chirpd/pkg/store"
)

func newTestWorkers(t *testing.T) (*workers, *store.Store) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return &workers{store: s, mail: recordingSender{}}, s
}

type recordingSender struct{}

func (recordingSender) Send(to, subject, html string) error { return nil }

func job(t *testing.T, typ queue.JobType, key string, payload any) *queue.Job {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Job{Type: typ, Key: key, Payload: b}
}

func seedUser(t *testing.T, s *store.Store, id, username string) {
	t.Helper()
	require.NoError(t, s.SaveUser(models.User{ID: id, UID: "100001", Username: username}))
}

func TestUserCreatePersistsAuthAndProfile(t *testing.T) {
	w, s := newTestWorkers(t)
	payload := SignupPayload{
		User: models.User{ID: "u1", UID: "100001", Username: "dana", Email: "dana@example.com"},
		Auth: models.Auth{ID: "u1", UID: "100001", Username: "dana", Email: "dana@example.com", PasswordHash: "x"},
	}
	require.NoError(t, w.userCreate(context.Background(), job(t, queue.JobUserCreate, "u1", payload)))

	u, err := s.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "dana", u.Username)

	a, err := s.GetAuthByEmail("dana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", a.ID)
}

func TestUserUpdateAppliesPartialChanges(t *testing.T) {
	w, s := newTestWorkers(t)
	seedUser(t, s, "u1", "dana")

	payload := UserUpdatePayload{
		UserID: "u1",
		Fields: map[string]string{"work": "chirpd", "quote": "hi"},
		Social: &models.SocialLinks{Twitter: "dana"},
	}
	require.NoError(t, w.userUpdate(context.Background(), job(t, queue.JobUserUpdate, "u1", payload)))

	u, err := s.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "chirpd", u.Work)
	assert.Equal(t, "hi", u.Quote)
	assert.Equal(t, "dana", u.Social.Twitter)
}

func TestPostCreateReplayBumpsCounterOnce(t *testing.T) {
	w, s := newTestWorkers(t)
	seedUser(t, s, "u1", "dana")

	p := models.Post{ID: "p1", UserID: "u1", Username: "dana", Post: "hello"}
	require.NoError(t, w.postCreate(context.Background(), job(t, queue.JobPostCreate, "p1", p)))
	// re-drive delivers the same job again
	require.NoError(t, w.postCreate(context.Background(), job(t, queue.JobPostCreate, "p1", p)))

	u, err := s.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, 1, u.PostsCount)

	got, err := s.GetPost("p1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Post)
}

func TestPostDeleteIsIdempotent(t *testing.T) {
	w, s := newTestWorkers(t)
	seedUser(t, s, "u1", "dana")
	require.NoError(t, w.postCreate(context.Background(), job(t, queue.JobPostCreate, "p1", models.Post{ID: "p1", UserID: "u1"})))

	del := PostDeletePayload{PostID: "p1", UserID: "u1"}
	require.NoError(t, w.postDelete(context.Background(), job(t, queue.JobPostDelete, "p1", del)))
	require.NoError(t, w.postDelete(context.Background(), job(t, queue.JobPostDelete, "p1", del)))

	u, err := s.GetUser("u1")
	require.NoError(t, err)
	assert.Zero(t, u.PostsCount)

	_, err = s.GetPost("p1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReactionSwapAdjustsTallies(t *testing.T) {
	w, s := newTestWorkers(t)
	require.NoError(t, s.SavePost(models.Post{ID: "p1", UserID: "u1"}))

	require.NoError(t, w.reactionAdd(context.Background(), job(t, queue.JobReactionAdd, "p1:lee",
		models.Reaction{ID: "r1", PostID: "p1", Username: "lee", Type: "like"})))
	require.NoError(t, w.reactionAdd(context.Background(), job(t, queue.JobReactionAdd, "p1:lee",
		models.Reaction{ID: "r2", PostID: "p1", Username: "lee", Type: "love"})))

	p, err := s.GetPost("p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Reactions.Like)
	assert.Equal(t, 1, p.Reactions.Love)

	require.NoError(t, w.reactionRemove(context.Background(), job(t, queue.JobReactionRemove, "p1:lee",
		ReactionRemovePayload{PostID: "p1", Username: "lee"})))

	p, err = s.GetPost("p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Reactions.Love)
}

func TestFollowerAddRemoveNetZeroCounters(t *testing.T) {
	w, s := newTestWorkers(t)
	seedUser(t, s, "u1", "dana")
	seedUser(t, s, "u2", "lee")

	f := models.Follower{ID: "f1", FollowerID: "u1", FolloweeID: "u2"}
	require.NoError(t, w.followerAdd(context.Background(), job(t, queue.JobFollowerAdd, "f1", f)))
	// replay must not double the counters
	require.NoError(t, w.followerAdd(context.Background(), job(t, queue.JobFollowerAdd, "f1", f)))

	u2, err := s.GetUser("u2")
	require.NoError(t, err)
	assert.Equal(t, 1, u2.FollowersCount)

	require.NoError(t, w.followerRemove(context.Background(), job(t, queue.JobFollowerRemove, "f1",
		FollowerRemovePayload{FollowerID: "u1", FolloweeID: "u2"})))

	u2, err = s.GetUser("u2")
	require.NoError(t, err)
	assert.Zero(t, u2.FollowersCount)

	u1, err := s.GetUser("u1")
	require.NoError(t, err)
	assert.Zero(t, u1.FollowingCount)
}

func TestChatFlowPersistsConversationAndMessages(t *testing.T) {
	w, s := newTestWorkers(t)

	require.NoError(t, w.chatConversation(context.Background(), job(t, queue.JobChatConversation, "conv1",
		ConversationPayload{ConversationID: "conv1", SenderID: "u1", ReceiverID: "u2"})))

	m := models.Message{ID: "m1", ConversationID: "conv1", SenderID: "u1", ReceiverID: "u2", Body: "hey"}
	require.NoError(t, w.chatMessage(context.Background(), job(t, queue.JobChatMessage, "m1", m)))

	convs, err := s.ListConversations("u2")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "u1", convs[0].ReceiverID)

	require.NoError(t, w.chatReactionAdd(context.Background(), job(t, queue.JobChatReactionAdd, "m1",
		ChatReactionPayload{ConversationID: "conv1", MessageID: "m1", SenderName: "lee", Type: "love"})))
	require.NoError(t, w.chatRead(context.Background(), job(t, queue.JobChatRead, "conv1",
		ChatReadPayload{ConversationID: "conv1"})))

	msgs, err := s.ListMessages("conv1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsRead)
	require.Len(t, msgs[0].Reaction, 1)
	assert.Equal(t, "love", msgs[0].Reaction[0].Type)
}

func TestNotificationLifecycle(t *testing.T) {
	w, s := newTestWorkers(t)

	n := models.Notification{ID: "n1", UserTo: "u2", UserFrom: "u1", Type: "follows"}
	require.NoError(t, w.notificationCreate(context.Background(), job(t, queue.JobNotificationCreate, "n1", n)))
	require.NoError(t, w.notificationRead(context.Background(), job(t, queue.JobNotificationRead, "n1",
		NotificationFlagPayload{UserTo: "u2", ID: "n1"})))

	list, err := s.ListNotifications("u2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)

	require.NoError(t, w.notificationDelete(context.Background(), job(t, queue.JobNotificationDelete, "n1",
		NotificationFlagPayload{UserTo: "u2", ID: "n1"})))

	list, err = s.ListNotifications("u2")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	w, _ := newTestWorkers(t)
	err := w.postCreate(context.Background(), &queue.Job{Type: queue.JobPostCreate, Payload: []byte("{")})
	assert.Error(t, err)
}
