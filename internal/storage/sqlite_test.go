package storage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"aidiary/internal/apperr"
	"aidiary/internal/chat"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleConversation(id, date, updatedAt string) chat.Conversation {
	msgs := []chat.Message{
		{ID: "1", Role: chat.RoleUser, Content: "こんにちは", Timestamp: "2024-06-01T09:00:00.000Z"},
		{ID: "2", Role: chat.RoleAssistant, Content: "こんにちは！今日は元気ですか？", Timestamp: "2024-06-01T09:00:05.000Z"},
	}
	return chat.Conversation{
		ID:        id,
		Date:      date,
		Title:     date + "の会話",
		Messages:  msgs,
		Metadata:  chat.ComputeMetadata(msgs),
		CreatedAt: "2024-06-01T09:00:00.000Z",
		UpdatedAt: updatedAt,
	}
}

func TestSQLiteStore_ConversationCRUD(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	conv := sampleConversation("conv-1", "2024-06-01", "2024-06-01T09:00:05.000Z")
	if err := store.Put(ctx, conv); err != nil {
		t.Fatalf("Put: %v", err)
	}

	loaded, err := store.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(loaded, conv) {
		t.Fatalf("Get=%+v, want %+v", loaded, conv)
	}

	// Update
	conv.Title = "散歩の話"
	if err := store.Put(ctx, conv); err != nil {
		t.Fatalf("Put update: %v", err)
	}
	loaded, _ = store.Get(ctx, "conv-1")
	if loaded.Title != "散歩の話" {
		t.Fatalf("Title=%q after update, want %q", loaded.Title, "散歩の話")
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("GetAll count=%d, want 1", len(all))
	}

	if err := store.Delete(ctx, "conv-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "conv-1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Get after delete err=%v, want not found", err)
	}
	if err := store.Delete(ctx, "conv-1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Delete missing err=%v, want not found", err)
	}
}

func TestSQLiteStore_PutRejectsEmptyID(t *testing.T) {
	store := newTestStore(t)
	err := store.Put(context.Background(), chat.Conversation{Date: "2024-06-01"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Put empty id err=%v, want validation", err)
	}
}

func TestSQLiteStore_GetByDateDuplicates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	older := sampleConversation("conv-a", "2024-06-01", "2024-06-01T09:00:00.000Z")
	newer := sampleConversation("conv-b", "2024-06-01", "2024-06-01T21:30:00.000Z")
	other := sampleConversation("conv-c", "2024-06-02", "2024-06-02T08:00:00.000Z")
	for _, c := range []chat.Conversation{older, newer, other} {
		if err := store.Put(ctx, c); err != nil {
			t.Fatalf("Put %s: %v", c.ID, err)
		}
	}

	got, err := store.GetByDate(ctx, "2024-06-01")
	if err != nil {
		t.Fatalf("GetByDate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetByDate count=%d, want 2", len(got))
	}
	if got[0].ID != "conv-b" || got[1].ID != "conv-a" {
		t.Fatalf("GetByDate order=%s,%s, want conv-b,conv-a", got[0].ID, got[1].ID)
	}

	none, err := store.GetByDate(ctx, "2024-01-01")
	if err != nil || len(none) != 0 {
		t.Fatalf("GetByDate empty=%v err=%v", none, err)
	}
}

func TestSQLiteStore_Settings(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.GetSetting(ctx, "agent"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("GetSetting missing err=%v, want not found", err)
	}

	value := json.RawMessage(`{"agentName":"ハル","personality":"優しい"}`)
	if err := store.PutSetting(ctx, "agent", value); err != nil {
		t.Fatalf("PutSetting: %v", err)
	}
	if err := store.PutSetting(ctx, "fontSize", json.RawMessage(`14`)); err != nil {
		t.Fatalf("PutSetting: %v", err)
	}
	got, err := store.GetSetting(ctx, "agent")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if string(got) != string(value) {
		t.Fatalf("GetSetting=%s, want %s", got, value)
	}

	all, err := store.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if len(all) != 2 || string(all["fontSize"]) != "14" {
		t.Fatalf("Settings=%v", all)
	}

	if err := store.PutSetting(ctx, "bad", json.RawMessage(`{oops`)); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("PutSetting invalid err=%v, want validation", err)
	}
}

func TestSQLiteStore_ClearWipesBothFamilies(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_ = store.Put(ctx, sampleConversation("conv-1", "2024-06-01", "2024-06-01T09:00:00.000Z"))
	_ = store.PutSetting(ctx, "agent", json.RawMessage(`{"agentName":"ハル"}`))

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	all, _ := store.GetAll(ctx)
	settings, _ := store.Settings(ctx)
	if len(all) != 0 || len(settings) != 0 {
		t.Fatalf("after Clear conversations=%d settings=%d, want 0/0", len(all), len(settings))
	}
}

func TestSQLiteStore_LazyInitIsSingleFlight(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.GetAll(ctx); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent GetAll: %v", err)
	}
	if store.opens != 1 {
		t.Fatalf("opens=%d, want 1", store.opens)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init after lazy open: %v", err)
	}
	if store.opens != 1 {
		t.Fatalf("opens=%d after explicit Init, want 1", store.opens)
	}
}

func TestSQLiteStore_ReopenKeepsDataAndSchemaVersion(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "diary.db")

	first, err := NewSQLiteStore(dbPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	conv := sampleConversation("conv-1", "2024-06-01", "2024-06-01T09:00:00.000Z")
	if err := first.Put(ctx, conv); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := first.Put(ctx, conv); !errors.Is(err, apperr.ErrStorage) {
		t.Fatalf("Put after Close err=%v, want storage error", err)
	}

	second, err := NewSQLiteStore(dbPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = second.Close() })
	got, err := second.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Messages[1].Content != "こんにちは！今日は元気ですか？" {
		t.Fatalf("content=%q", got.Messages[1].Content)
	}

	db, err := second.handle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Fatalf("schema_migrations rows=%d, want 1", n)
	}
}

func TestMemStore_FailOnLeavesDataUntouched(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	conv := sampleConversation("conv-1", "2024-06-01", "2024-06-01T09:00:00.000Z")
	if err := store.Put(ctx, conv); err != nil {
		t.Fatalf("Put: %v", err)
	}

	store.FailOn = func(op string) error {
		if op == "put" {
			return errors.New("quota exceeded")
		}
		return nil
	}
	changed := conv
	changed.Title = "changed"
	if err := store.Put(ctx, changed); !errors.Is(err, apperr.ErrStorage) {
		t.Fatalf("Put err=%v, want storage error", err)
	}
	got, err := store.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != conv.Title {
		t.Fatalf("Title=%q, want %q", got.Title, conv.Title)
	}
}
