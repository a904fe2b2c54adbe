// Package workers holds the durable persistence handlers the queue
// dispatches to. Each handler applies one job to the durable store; all
// of them tolerate replay (at-least-once delivery) because entity keys
// are minted before enqueue and counters are only bumped on first write.
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chirpd/pkg/mail"
	"chirpd/pkg/models"
	"chirpd/pkg/queue"
	"chirpd/pkg/store"
)

// Deps are the collaborators handlers write to.
type Deps struct {
	Store *store.Store
	Mail  mail.Sender
}

// Register binds every job type to its handler on the processor.
func Register(p *queue.Processor, deps Deps) {
	w := &workers{store: deps.Store, mail: deps.Mail}

	p.Register(queue.JobUserCreate, w.userCreate)
	p.Register(queue.JobUserUpdate, w.userUpdate)
	p.Register(queue.JobImageAdd, w.imageAdd)
	p.Register(queue.JobImageRemove, w.imageRemove)

	p.Register(queue.JobPostCreate, w.postCreate)
	p.Register(queue.JobPostUpdate, w.postUpdate)
	p.Register(queue.JobPostDelete, w.postDelete)

	p.Register(queue.JobCommentCreate, w.commentCreate)

	p.Register(queue.JobReactionAdd, w.reactionAdd)
	p.Register(queue.JobReactionRemove, w.reactionRemove)

	p.Register(queue.JobFollowerAdd, w.followerAdd)
	p.Register(queue.JobFollowerRemove, w.followerRemove)
	p.Register(queue.JobBlockAdd, w.blockAdd)
	p.Register(queue.JobBlockRemove, w.blockRemove)

	p.Register(queue.JobChatConversation, w.chatConversation)
	p.Register(queue.JobChatMessage, w.chatMessage)
	p.Register(queue.JobChatRead, w.chatRead)
	p.Register(queue.JobChatReactionAdd, w.chatReactionAdd)
	p.Register(queue.JobChatReactionRemove, w.chatReactionRemove)
	p.Register(queue.JobChatDelete, w.chatDelete)

	p.Register(queue.JobNotificationCreate, w.notificationCreate)
	p.Register(queue.JobNotificationRead, w.notificationRead)
	p.Register(queue.JobNotificationDelete, w.notificationDelete)

	p.Register(queue.JobEmailSend, w.emailSend)
}

type workers struct {
	store *store.Store
	mail  mail.Sender
}

func decode[T any](job *queue.Job) (T, error) {
	var v T
	if err := json.Unmarshal(job.Payload, &v); err != nil {
		return v, fmt.Errorf("decode %s payload: %w", job.Type, err)
	}
	return v, nil
}

func (w *workers) userCreate(ctx context.Context, job *queue.Job) error {
	p, err := decode[SignupPayload](job)
	if err != nil {
		return err
	}
	if err := w.store.SaveAuth(p.Auth); err != nil {
		return err
	}
	return w.store.SaveUser(p.User)
}

func (w *workers) userUpdate(ctx context.Context, job *queue.Job) error {
	p, err := decode[UserUpdatePayload](job)
	if err != nil {
		return err
	}
	for field, value := range p.Fields {
		if err := w.store.UpdateUserField(p.UserID, field, value); err != nil {
			return err
		}
	}
	if p.Social != nil {
		if err := w.store.UpdateUserSocial(p.UserID, *p.Social); err != nil {
			return err
		}
	}
	if p.Notifications != nil {
		if err := w.store.UpdateUserNotifications(p.UserID, *p.Notifications); err != nil {
			return err
		}
	}
	if p.PasswordHash != "" {
		if err := w.store.SaveAuthPassword(p.UserID, p.PasswordHash); err != nil {
			return err
		}
	}
	return nil
}

func (w *workers) imageAdd(ctx context.Context, job *queue.Job) error {
	img, err := decode[models.Image](job)
	if err != nil {
		return err
	}
	return w.store.SaveImage(img)
}

func (w *workers) imageRemove(ctx context.Context, job *queue.Job) error {
	p, err := decode[ImageRemovePayload](job)
	if err != nil {
		return err
	}
	return w.store.DeleteImage(p.UserID, p.ImageID)
}

func (w *workers) postCreate(ctx context.Context, job *queue.Job) error {
	p, err := decode[models.Post](job)
	if err != nil {
		return err
	}
	_, lookupErr := w.store.GetPost(p.ID)
	replay := lookupErr == nil
	if lookupErr != nil && !errors.Is(lookupErr, store.ErrNotFound) {
		return lookupErr
	}
	if err := w.store.SavePost(p); err != nil {
		return err
	}
	if replay {
		return nil
	}
	err = w.store.IncrUserCounter(p.UserID, "postsCount", 1)
	if errors.Is(err, store.ErrNotFound) {
		// profile not durably persisted yet; its create job carries the count
		return nil
	}
	return err
}

func (w *workers) postUpdate(ctx context.Context, job *queue.Job) error {
	p, err := decode[models.Post](job)
	if err != nil {
		return err
	}
	return w.store.UpdatePost(p.ID, func(cur *models.Post) {
		cur.Post = p.Post
		cur.BgColor = p.BgColor
		cur.Feelings = p.Feelings
		cur.Privacy = p.Privacy
		cur.GifURL = p.GifURL
		cur.ProfilePicture = p.ProfilePicture
		cur.ImgVersion = p.ImgVersion
		cur.ImgID = p.ImgID
	})
}

func (w *workers) postDelete(ctx context.Context, job *queue.Job) error {
	p, err := decode[PostDeletePayload](job)
	if err != nil {
		return err
	}
	_, lookupErr := w.store.GetPost(p.PostID)
	if errors.Is(lookupErr, store.ErrNotFound) {
		// replayed job; post and counter already settled
		return nil
	}
	if lookupErr != nil {
		return lookupErr
	}
	if err := w.store.DeletePost(p.PostID); err != nil {
		return err
	}
	err = w.store.IncrUserCounter(p.UserID, "postsCount", -1)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func (w *workers) commentCreate(ctx context.Context, job *queue.Job) error {
	c, err := decode[models.Comment](job)
	if err != nil {
		return err
	}
	return w.store.SaveComment(c)
}

func (w *workers) reactionAdd(ctx context.Context, job *queue.Job) error {
	r, err := decode[models.Reaction](job)
	if err != nil {
		return err
	}
	return w.store.SaveReaction(r)
}

func (w *workers) reactionRemove(ctx context.Context, job *queue.Job) error {
	p, err := decode[ReactionRemovePayload](job)
	if err != nil {
		return err
	}
	return w.store.DeleteReaction(p.PostID, p.Username)
}

func (w *workers) followerAdd(ctx context.Context, job *queue.Job) error {
	f, err := decode[models.Follower](job)
	if err != nil {
		return err
	}
	return w.store.SaveFollower(f)
}

func (w *workers) followerRemove(ctx context.Context, job *queue.Job) error {
	p, err := decode[FollowerRemovePayload](job)
	if err != nil {
		return err
	}
	return w.store.DeleteFollower(p.FollowerID, p.FolloweeID)
}

func (w *workers) blockAdd(ctx context.Context, job *queue.Job) error {
	p, err := decode[BlockPayload](job)
	if err != nil {
		return err
	}
	return w.store.SaveBlock(p.BlockerID, p.BlockedID)
}

func (w *workers) blockRemove(ctx context.Context, job *queue.Job) error {
	p, err := decode[BlockPayload](job)
	if err != nil {
		return err
	}
	return w.store.DeleteBlock(p.BlockerID, p.BlockedID)
}

func (w *workers) chatConversation(ctx context.Context, job *queue.Job) error {
	p, err := decode[ConversationPayload](job)
	if err != nil {
		return err
	}
	if err := w.store.SaveConversation(p.SenderID, models.Conversation{
		ConversationID: p.ConversationID,
		ReceiverID:     p.ReceiverID,
	}); err != nil {
		return err
	}
	return w.store.SaveConversation(p.ReceiverID, models.Conversation{
		ConversationID: p.ConversationID,
		ReceiverID:     p.SenderID,
	})
}

func (w *workers) chatMessage(ctx context.Context, job *queue.Job) error {
	m, err := decode[models.Message](job)
	if err != nil {
		return err
	}
	return w.store.SaveMessage(m)
}

func (w *workers) chatRead(ctx context.Context, job *queue.Job) error {
	p, err := decode[ChatReadPayload](job)
	if err != nil {
		return err
	}
	return w.store.MarkMessagesRead(p.ConversationID, p.ReaderID)
}

func (w *workers) chatReactionAdd(ctx context.Context, job *queue.Job) error {
	p, err := decode[ChatReactionPayload](job)
	if err != nil {
		return err
	}
	return w.store.UpdateMessage(p.ConversationID, p.MessageID, func(m *models.Message) {
		m.Reaction = dropSenderReaction(m.Reaction, p.SenderName)
		m.Reaction = append(m.Reaction, models.MessageReaction{SenderName: p.SenderName, Type: p.Type})
	})
}

func (w *workers) chatReactionRemove(ctx context.Context, job *queue.Job) error {
	p, err := decode[ChatReactionPayload](job)
	if err != nil {
		return err
	}
	return w.store.UpdateMessage(p.ConversationID, p.MessageID, func(m *models.Message) {
		m.Reaction = dropSenderReaction(m.Reaction, p.SenderName)
	})
}

func (w *workers) chatDelete(ctx context.Context, job *queue.Job) error {
	p, err := decode[ChatDeletePayload](job)
	if err != nil {
		return err
	}
	return w.store.UpdateMessage(p.ConversationID, p.MessageID, func(m *models.Message) {
		m.Deleted = true
	})
}

func (w *workers) notificationCreate(ctx context.Context, job *queue.Job) error {
	n, err := decode[models.Notification](job)
	if err != nil {
		return err
	}
	return w.store.SaveNotification(n)
}

func (w *workers) notificationRead(ctx context.Context, job *queue.Job) error {
	p, err := decode[NotificationFlagPayload](job)
	if err != nil {
		return err
	}
	return w.store.MarkNotificationRead(p.UserTo, p.ID)
}

func (w *workers) notificationDelete(ctx context.Context, job *queue.Job) error {
	p, err := decode[NotificationFlagPayload](job)
	if err != nil {
		return err
	}
	return w.store.DeleteNotification(p.UserTo, p.ID)
}

func (w *workers) emailSend(ctx context.Context, job *queue.Job) error {
	p, err := decode[EmailPayload](job)
	if err != nil {
		return err
	}
	return w.mail.Send(p.To, p.Subject, p.HTML)
}

func dropSenderReaction(rs []models.MessageReaction, senderName string) []models.MessageReaction {
	out := rs[:0]
	for _, r := range rs {
		if r.SenderName != senderName {
			out = append(out, r)
		}
	}
	return out
}
