package chat

import (
	"strings"
	"time"
)

// WordCount counts whitespace-delimited tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// ComputeMetadata derives metadata from scratch. Duration spans the first
// and last parseable message timestamps.
func ComputeMetadata(messages []Message) Metadata {
	md := Metadata{MessageCount: len(messages)}
	var first, last time.Time
	for _, m := range messages {
		md.WordCount += WordCount(m.Content)
		ts, err := time.Parse(time.RFC3339Nano, m.Timestamp)
		if err != nil {
			continue
		}
		if first.IsZero() || ts.Before(first) {
			first = ts
		}
		if last.IsZero() || ts.After(last) {
			last = ts
		}
	}
	if !first.IsZero() && last.After(first) {
		md.DurationSeconds = int64(last.Sub(first) / time.Second)
	}
	return md
}

// Clone returns a deep copy so callers can never alias cached state.
func (c Conversation) Clone() Conversation {
	out := c
	if c.Messages != nil {
		out.Messages = append(make([]Message, 0, len(c.Messages)), c.Messages...)
	}
	if c.Diary != nil {
		d := c.Diary.Clone()
		out.Diary = &d
	}
	return out
}

func (d DiaryData) Clone() DiaryData {
	out := d
	if d.Emotion != nil {
		out.Emotion = append([]string(nil), d.Emotion...)
	}
	if d.Keywords != nil {
		out.Keywords = append([]string(nil), d.Keywords...)
	}
	return out
}

// IndexOf returns the position of the message with id, or -1.
func (c Conversation) IndexOf(id string) int {
	for i, m := range c.Messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// DiaryEntries flattens every conversation carrying a diary, preserving order.
func DiaryEntries(convs []Conversation) []DiaryEntry {
	out := make([]DiaryEntry, 0)
	for _, c := range convs {
		if c.Diary == nil {
			continue
		}
		d := c.Diary.Clone()
		out = append(out, DiaryEntry{
			ID:       c.ID,
			Date:     c.Date,
			Summary:  d.Summary,
			Emotion:  d.Emotion,
			Keywords: d.Keywords,
			Content:  d.Content,
		})
	}
	return out
}
