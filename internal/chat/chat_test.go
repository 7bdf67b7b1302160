package chat

import (
	"encoding/json"
	"errors"
	"testing"

	"aidiary/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeMetadata(t *testing.T) {
	msgs := []Message{
		{ID: "1", Role: RoleUser, Content: "hello there  friend", Timestamp: "2024-06-01T10:00:00Z"},
		{ID: "2", Role: RoleAssistant, Content: "こんにちは", Timestamp: "2024-06-01T10:02:30Z"},
		{ID: "3", Role: RoleUser, Content: "   ", Timestamp: "not a time"},
	}
	md := ComputeMetadata(msgs)
	assert.Equal(t, 3, md.MessageCount)
	assert.Equal(t, 4, md.WordCount)
	assert.Equal(t, int64(150), md.DurationSeconds)

	assert.Equal(t, Metadata{}, ComputeMetadata(nil))
}

func TestCloneDoesNotAlias(t *testing.T) {
	orig := Conversation{
		ID:       "c1",
		Messages: []Message{{ID: "1", Role: RoleUser, Content: "a"}},
		Diary:    &DiaryData{Summary: "s", Emotion: []string{"嬉しい"}},
	}
	cp := orig.Clone()
	cp.Messages[0].Content = "changed"
	cp.Diary.Emotion[0] = "悲しい"

	assert.Equal(t, "a", orig.Messages[0].Content)
	assert.Equal(t, "嬉しい", orig.Diary.Emotion[0])
}

func TestConversationLegacyFields(t *testing.T) {
	raw := `{
		"id": "conv-2024-06-01-1717200000000",
		"date": "2024-06-01",
		"conversations": [{"id":"1","role":"user","content":"今日は晴れ","timestamp":"2024-06-01T09:00:00Z"}],
		"metadata": {"wordCount": 1, "conversationCount": 1, "duration": 12}
	}`
	var c Conversation
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	require.Len(t, c.Messages, 1)
	assert.Equal(t, "今日は晴れ", c.Messages[0].Content)
	assert.Equal(t, 1, c.Metadata.MessageCount)
	assert.Equal(t, int64(12), c.Metadata.DurationSeconds)

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"messages"`)
	assert.NotContains(t, string(out), `"conversations"`)
}

func TestConversationPrefersCanonicalMessages(t *testing.T) {
	raw := `{"id":"c","date":"2024-06-01","messages":[],"conversations":[{"id":"x","role":"user"}]}`
	var c Conversation
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	assert.NotNil(t, c.Messages)
	assert.Empty(t, c.Messages)
}

func TestValidateConversation(t *testing.T) {
	good := Conversation{ID: "c1", Date: "2024-06-01", Messages: []Message{}}
	require.NoError(t, ValidateConversation(good))

	bad := Conversation{Date: "2024-6-1", Messages: []Message{{Role: "system"}}}
	err := ValidateConversation(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	problems := Problems(bad)
	assert.Contains(t, problems, "id is required")
	assert.Contains(t, problems, `date must be a YYYY-MM-DD date, got "2024-6-1"`)
	assert.Contains(t, problems, "messages[0].id is required")
	assert.Contains(t, problems, "messages[0].role must be one of: user assistant")

	missing := Conversation{ID: "c2", Date: "2024-06-01"}
	assert.Contains(t, Problems(missing), "messages is required")
}

func TestValidateMessage(t *testing.T) {
	require.NoError(t, ValidateMessage(Message{ID: "m", Role: RoleAssistant}))
	assert.Error(t, ValidateMessage(Message{ID: "m"}))
}

func TestDiaryEntriesProjection(t *testing.T) {
	convs := []Conversation{
		{ID: "a", Date: "2024-06-02", Diary: &DiaryData{Summary: "散歩した", Keywords: []string{"散歩"}}},
		{ID: "b", Date: "2024-06-01"},
		{ID: "c", Date: "2024-05-31", Diary: &DiaryData{Summary: "雨", Content: "本文"}},
	}
	entries := DiaryEntries(convs)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "散歩した", entries[0].Summary)
	assert.Equal(t, "本文", entries[1].Content)

	assert.Empty(t, DiaryEntries(nil))
}
