package conversation

import (
	"context"
	"strings"

	"aidiary/internal/apperr"
	"aidiary/internal/chat"
)

// Merge replaces the message with the same id in place, or appends it.
// The input slice is not modified.
func Merge(messages []chat.Message, msg chat.Message) []chat.Message {
	out := make([]chat.Message, len(messages), len(messages)+1)
	copy(out, messages)
	for i := range out {
		if out[i].ID == msg.ID {
			out[i] = msg
			return out
		}
	}
	return append(out, msg)
}

// AddMessage durably appends msg to the target conversation, or replaces
// the message with the same id. The target comes from the policy; when it
// asks for a new record one is created with msg as its first entry. The
// target becomes current. Metadata is recomputed from scratch.
func (r *Repository) AddMessage(ctx context.Context, msg chat.Message) (chat.Conversation, error) {
	if err := chat.ValidateMessage(msg); err != nil {
		return chat.Conversation{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return chat.Conversation{}, err
	}

	now := r.clock.Now()
	if strings.TrimSpace(msg.Timestamp) == "" {
		msg.Timestamp = chat.FormatTimestamp(now)
	}

	var current *chat.Conversation
	if idx := r.currentIndex(); idx >= 0 {
		current = &r.convs[idx]
	}
	targetID, create := r.policy(now, current, r.convs)

	idx := -1
	var updated chat.Conversation
	if create {
		updated = r.newConversation("")
	} else {
		idx = r.indexOf(targetID)
		if idx < 0 {
			return chat.Conversation{}, apperr.NotFound("add message", "conversation", targetID)
		}
		updated = r.convs[idx].Clone()
	}

	updated.Messages = Merge(updated.Messages, msg)
	updated.Metadata = chat.ComputeMetadata(updated.Messages)
	updated.UpdatedAt = chat.FormatTimestamp(now)

	if err := r.persist(ctx, idx, updated); err != nil {
		return chat.Conversation{}, err
	}
	r.currentID = updated.ID
	return updated.Clone(), nil
}

// UpdateMessageContent changes only the content of a message in the current
// conversation, in memory. Nothing is persisted and neither metadata nor
// updatedAt change; the finalizing AddMessage makes the content durable.
func (r *Repository) UpdateMessageContent(messageID, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return err
	}
	idx := r.currentIndex()
	if idx < 0 {
		return apperr.NotFound("update content", "current conversation", "")
	}
	mi := r.convs[idx].IndexOf(messageID)
	if mi < 0 {
		return apperr.NotFound("update content", "message", messageID)
	}
	r.convs[idx].Messages[mi].Content = content
	return nil
}

// DeleteMessage durably removes a message from the current conversation.
func (r *Repository) DeleteMessage(ctx context.Context, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return err
	}
	idx := r.currentIndex()
	if idx < 0 {
		return apperr.NotFound("delete message", "current conversation", "")
	}
	updated := r.convs[idx].Clone()
	mi := updated.IndexOf(messageID)
	if mi < 0 {
		return apperr.NotFound("delete message", "message", messageID)
	}
	updated.Messages = append(updated.Messages[:mi:mi], updated.Messages[mi+1:]...)
	updated.Metadata = chat.ComputeMetadata(updated.Messages)
	updated.UpdatedAt = r.now()
	return r.persist(ctx, idx, updated)
}
