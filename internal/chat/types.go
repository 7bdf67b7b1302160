package chat

import "encoding/json"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one utterance in a conversation. Timestamp is RFC 3339.
type Message struct {
	ID        string `json:"id" validate:"required"`
	Role      Role   `json:"role" validate:"oneof=user assistant"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Metadata is derived from Messages and recomputed on every durable append.
type Metadata struct {
	WordCount       int   `json:"wordCount"`
	MessageCount    int   `json:"messageCount"`
	DurationSeconds int64 `json:"durationSeconds"`
}

// UnmarshalJSON also accepts the field names written by the browser
// version of the diary (conversationCount, duration).
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var aux struct {
		WordCount         int      `json:"wordCount"`
		MessageCount      *int     `json:"messageCount"`
		DurationSeconds   *int64   `json:"durationSeconds"`
		ConversationCount *int     `json:"conversationCount"`
		Duration          *float64 `json:"duration"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Metadata{WordCount: aux.WordCount}
	switch {
	case aux.MessageCount != nil:
		m.MessageCount = *aux.MessageCount
	case aux.ConversationCount != nil:
		m.MessageCount = *aux.ConversationCount
	}
	switch {
	case aux.DurationSeconds != nil:
		m.DurationSeconds = *aux.DurationSeconds
	case aux.Duration != nil:
		m.DurationSeconds = int64(*aux.Duration)
	}
	return nil
}

// DiaryData is the summarizer output attached to a conversation.
type DiaryData struct {
	Summary  string   `json:"summary"`
	Emotion  []string `json:"emotion"`
	Keywords []string `json:"keywords"`
	Content  string   `json:"content,omitempty"`
}

// Conversation is the persisted record for one conversation. Date is a
// YYYY-MM-DD local date key.
type Conversation struct {
	ID        string     `json:"id" validate:"required"`
	Date      string     `json:"date" validate:"required,datekey"`
	Title     string     `json:"title,omitempty"`
	Messages  []Message  `json:"messages" validate:"required,dive"`
	Diary     *DiaryData `json:"diary,omitempty"`
	Metadata  Metadata   `json:"metadata"`
	CreatedAt string     `json:"createdAt"`
	UpdatedAt string     `json:"updatedAt"`
}

// UnmarshalJSON accepts the legacy "conversations" key for the message list.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	type plain Conversation
	aux := struct {
		*plain
		Legacy []Message `json:"conversations"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.Messages == nil && aux.Legacy != nil {
		c.Messages = aux.Legacy
	}
	return nil
}

// DiaryEntry is a read-only projection of a conversation carrying a diary.
type DiaryEntry struct {
	ID       string   `json:"id"`
	Date     string   `json:"date"`
	Summary  string   `json:"summary"`
	Emotion  []string `json:"emotion"`
	Keywords []string `json:"keywords"`
	Content  string   `json:"content,omitempty"`
}
