package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"aidiary/internal/apperr"
	"aidiary/internal/chat"
	"aidiary/internal/settings"
	"aidiary/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id, date string, contents ...string) chat.Conversation {
	msgs := make([]chat.Message, 0, len(contents))
	for i, c := range contents {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		msgs = append(msgs, chat.Message{
			ID:        id + "-m" + string(rune('0'+i)),
			Role:      role,
			Content:   c,
			Timestamp: date + "T09:00:0" + string(rune('0'+i)) + ".000Z",
		})
	}
	return chat.Conversation{
		ID:        id,
		Date:      date,
		Title:     date + "の会話",
		Messages:  msgs,
		Metadata:  chat.ComputeMetadata(msgs),
		CreatedAt: date + "T09:00:00.000Z",
		UpdatedAt: date + "T09:00:09.000Z",
	}
}

func seed(t *testing.T, store storage.Store) {
	t.Helper()
	ctx := context.Background()
	withDiary := record("conv-2", "2024-06-02", "散歩した", "いいですね <3", "楽しかった", "よかった")
	withDiary.Diary = &chat.DiaryData{Summary: "散歩の日", Emotion: []string{"楽しい"}, Keywords: []string{"散歩"}}
	for _, c := range []chat.Conversation{record("conv-1", "2024-06-01", "こんにちは", "こんにちは！"), withDiary} {
		require.NoError(t, store.Put(ctx, c))
	}
	require.NoError(t, store.PutSetting(ctx, settings.KeyAgent,
		json.RawMessage(`{"agentName":"ハル","personality":"優しい","apiProvider":"openai","createdAt":"a","lastUpdated":"b"}`)))
	require.NoError(t, store.PutSetting(ctx, "theme", json.RawMessage(`"dark"`)))
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := storage.NewMemStore()
	seed(t, src)

	exported, err := New(src, nil).Export(ctx)
	require.NoError(t, err)
	require.Len(t, exported.Conversations, 2)
	assert.Equal(t, "conv-2", exported.Conversations[0].ID)

	path := filepath.Join(t.TempDir(), "out", DefaultFileName("2024-06-02"))
	require.NoError(t, WriteFile(path, exported))
	loaded, err := ReadFile(path)
	require.NoError(t, err)

	dst, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "diary.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dst.Close() })
	require.NoError(t, dst.Put(ctx, record("stale", "2020-01-01", "old")))

	engine := New(dst, nil)
	require.NoError(t, engine.Import(ctx, loaded))

	again, err := engine.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, exported, again)

	raw, err := dst.GetSetting(ctx, settings.KeyAgent)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"apiProvider":"openai"`)
	_, err = dst.Get(ctx, "stale")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEncodeKeepsTextLiteral(t *testing.T) {
	data, err := Encode(Snapshot{Conversations: []chat.Conversation{record("c", "2024-06-01", "こんにちは <b>&")}})
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, "こんにちは <b>&")
	assert.Contains(t, s, "\n  \"conversations\"")
	assert.Contains(t, s, `"settings": {}`)
}

func TestMalformedImportLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	seed(t, store)
	engine := New(store, nil)
	before, err := engine.Export(ctx)
	require.NoError(t, err)

	bad := Snapshot{Conversations: []chat.Conversation{
		record("dup", "2024-06-01", "a"),
		record("dup", "2024-06-02", "b"),
		record("baddate", "2024/06/03", "c"),
		{ID: "noStamps", Date: "2024-06-04", Messages: []chat.Message{{Role: "system"}}},
	}}
	err = engine.Import(ctx, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrImportIntegrity)

	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	joined := strings.Join(ae.Problems, "\n")
	assert.Contains(t, joined, `conversations[1].id "dup" duplicates conversations[0]`)
	assert.Contains(t, joined, "conversations[2].date")
	assert.Contains(t, joined, "conversations[3].createdAt is required")
	assert.Contains(t, joined, "conversations[3].messages[0].id is required")
	assert.Contains(t, joined, "conversations[3].messages[0].role")

	after, err := engine.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDecodeRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"conversations": [`,
		"missing list":      `{"settings": {}}`,
		"record without id": `{"conversations": [{"date": "2024-06-01", "messages": []}]}`,
		"bad role":          `{"conversations": [{"id": "a", "date": "2024-06-01", "messages": [{"id": "1", "role": "system", "content": ""}]}]}`,
		"no messages":       `{"conversations": [{"id": "a", "date": "2024-06-01"}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrImportIntegrity)
			var ae *apperr.Error
			require.True(t, errors.As(err, &ae))
			assert.NotEmpty(t, ae.Problems)
		})
	}
}

func TestDecodeLegacyBackup(t *testing.T) {
	doc := `{
  "conversations": [{
    "id": "conv-1700000000000",
    "date": "2023-11-14",
    "conversations": [
      {"id": "1", "role": "user", "content": "今日は疲れた", "timestamp": "2023-11-14T12:00:00.000Z"},
      {"id": "2", "role": "assistant", "content": "お疲れさまです", "timestamp": "2023-11-14T12:00:04.000Z"}
    ],
    "metadata": {"wordCount": 2, "conversationCount": 2, "duration": 4},
    "createdAt": "2023-11-14T12:00:00.000Z",
    "updatedAt": "2023-11-14T12:00:04.000Z"
  }],
  "settings": {"agent": {"agentName": "ミナ", "personality": "明るい", "apiProvider": "openai"}}
}`
	s, err := Decode([]byte(doc))
	require.NoError(t, err)
	require.Len(t, s.Conversations, 1)
	c := s.Conversations[0]
	assert.Len(t, c.Messages, 2)
	assert.Equal(t, 2, c.Metadata.MessageCount)
	assert.Equal(t, int64(4), c.Metadata.DurationSeconds)
	require.NotNil(t, s.Settings.Agent)
	assert.Equal(t, "ミナ", s.Settings.Agent.AgentName)

	store := storage.NewMemStore()
	require.NoError(t, New(store, nil).Import(context.Background(), s))
	got, err := store.Get(context.Background(), "conv-1700000000000")
	require.NoError(t, err)
	assert.Equal(t, "お疲れさまです", got.Messages[1].Content)
}

func TestImportReportsPartialWrite(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	puts := 0
	store.FailOn = func(op string) error {
		if op != "put" {
			return nil
		}
		puts++
		if puts > 1 {
			return errors.New("quota exceeded")
		}
		return nil
	}
	snap := Snapshot{Conversations: []chat.Conversation{
		record("a", "2024-06-01", "x"),
		record("b", "2024-06-02", "y"),
	}}
	err := New(store, nil).Import(ctx, snap)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrStorage)
	assert.Contains(t, err.Error(), "after 1 of 2")
}

func TestWipeAll(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	seed(t, store)
	engine := New(store, nil)
	require.NoError(t, engine.WipeAll(ctx))

	s, err := engine.Export(ctx)
	require.NoError(t, err)
	assert.Empty(t, s.Conversations)
	assert.Empty(t, s.Settings.Keys())
}

func TestImportRejectsWhatTheStoreWouldRefuse(t *testing.T) {
	blankID := record("conv-x", "2024-06-05", "a")
	blankID.ID = " "

	cases := map[string]struct {
		snapshot func(t *testing.T) Snapshot
		problem  string
	}{
		"blank setting key": {
			snapshot: func(t *testing.T) Snapshot {
				s, err := Decode([]byte(`{"conversations":[],"settings":{"":1}}`))
				require.NoError(t, err)
				return s
			},
			problem: `settings key "" is blank`,
		},
		"whitespace conversation id": {
			snapshot: func(*testing.T) Snapshot {
				return Snapshot{Conversations: []chat.Conversation{blankID}}
			},
			problem: "conversations[0].id is blank",
		},
		"setting value not json": {
			snapshot: func(*testing.T) Snapshot {
				return Snapshot{Settings: settings.Set{Unknown: map[string]json.RawMessage{"theme": json.RawMessage(`{bad`)}}}
			},
			problem: `settings["theme"] is not valid JSON`,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewMemStore()
			seed(t, store)
			engine := New(store, nil)

			err := engine.Import(ctx, tc.snapshot(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrImportIntegrity)
			var ae *apperr.Error
			require.True(t, errors.As(err, &ae))
			assert.Contains(t, strings.Join(ae.Problems, "\n"), tc.problem)

			convs, err := store.GetAll(ctx)
			require.NoError(t, err)
			assert.Len(t, convs, 2)
			raw, err := store.Settings(ctx)
			require.NoError(t, err)
			assert.Contains(t, raw, "theme")
		})
	}
}

func TestValidateSnapshotDuplicateMessageIDs(t *testing.T) {
	c := record("conv-1", "2024-06-01", "一回目", "二回目", "三回目")
	c.Messages[2].ID = c.Messages[0].ID

	err := ValidateSnapshot(Snapshot{Conversations: []chat.Conversation{c}})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrImportIntegrity)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, []string{"conversations[0].messages[2].id duplicates messages[0]"}, ae.Problems)

	c.Messages[2].ID = "conv-1-m2"
	assert.NoError(t, ValidateSnapshot(Snapshot{Conversations: []chat.Conversation{c}}))
}
