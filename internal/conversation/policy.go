package conversation

import (
	"time"

	"aidiary/internal/chat"
	"aidiary/internal/datekey"

	"github.com/google/uuid"
)

// TargetPolicy picks the conversation a new message is written to. It
// returns the target id, or create=true to start a new record. current is
// nil when no conversation is current.
type TargetPolicy func(now time.Time, current *chat.Conversation, all []chat.Conversation) (id string, create bool)

// CurrentOrCreate writes to the current conversation, creating one when
// none is current.
func CurrentOrCreate(_ time.Time, current *chat.Conversation, _ []chat.Conversation) (string, bool) {
	if current != nil {
		return current.ID, false
	}
	return "", true
}

// TodayOrCreate writes to today's record regardless of what is current.
// With several records for today the most recently updated one wins.
func TodayOrCreate(now time.Time, current *chat.Conversation, all []chat.Conversation) (string, bool) {
	today := datekey.ToKey(now)
	if current != nil && current.Date == today {
		return current.ID, false
	}
	candidates := make([]chat.Conversation, 0, 1)
	for _, c := range all {
		if c.Date == today {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return "", true
	}
	chat.SortNewestFirst(candidates)
	return candidates[0].ID, false
}

// PolicyByName maps a config value to a policy. Unknown names select
// CurrentOrCreate.
func PolicyByName(name string) TargetPolicy {
	if name == "today" {
		return TodayOrCreate
	}
	return CurrentOrCreate
}

// NewConversationID returns a unique id scoped by date.
func NewConversationID(dateKey string) string {
	return "conv-" + dateKey + "-" + uuid.NewString()
}

// NewMessageID returns a unique message id.
func NewMessageID() string {
	return "msg-" + uuid.NewString()
}
