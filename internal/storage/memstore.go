package storage

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"aidiary/internal/apperr"
	"aidiary/internal/chat"
)

// MemStore is an in-memory Store with the same semantics as SQLiteStore.
// Records are kept as encoded documents so reads never alias writes.
type MemStore struct {
	mu       sync.RWMutex
	convs    map[string][]byte
	settings map[string]json.RawMessage
	closed   bool

	// FailOn, when set, is consulted before every operation; a non-nil
	// result is returned as a storage error. Used to simulate outages.
	FailOn func(op string) error
}

func NewMemStore() *MemStore {
	return &MemStore{
		convs:    make(map[string][]byte),
		settings: make(map[string]json.RawMessage),
	}
}

func (m *MemStore) fail(op string) error {
	if m.closed {
		return apperr.Storage(op, ErrClosed)
	}
	if m.FailOn != nil {
		if err := m.FailOn(op); err != nil {
			return apperr.Storage(op, err)
		}
	}
	return nil
}

func (m *MemStore) Init(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fail("init")
}

func (m *MemStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemStore) Put(_ context.Context, conv chat.Conversation) error {
	if strings.TrimSpace(conv.ID) == "" {
		return apperr.Validation("put", "conversation id is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("put"); err != nil {
		return err
	}
	doc, err := json.Marshal(conv)
	if err != nil {
		return apperr.Storage("put", err)
	}
	m.convs[conv.ID] = doc
	return nil
}

func (m *MemStore) Get(_ context.Context, id string) (chat.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("get"); err != nil {
		return chat.Conversation{}, err
	}
	doc, ok := m.convs[id]
	if !ok {
		return chat.Conversation{}, apperr.NotFound("get", "conversation", id)
	}
	return decodeDoc(string(doc))
}

func (m *MemStore) GetByDate(_ context.Context, dateKey string) ([]chat.Conversation, error) {
	all, err := m.all("get by date")
	if err != nil {
		return nil, err
	}
	out := make([]chat.Conversation, 0)
	for _, c := range all {
		if c.Date == dateKey {
			out = append(out, c)
		}
	}
	chat.SortNewestFirst(out)
	return out, nil
}

func (m *MemStore) GetAll(context.Context) ([]chat.Conversation, error) {
	return m.all("get all")
}

func (m *MemStore) all(op string) ([]chat.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail(op); err != nil {
		return nil, err
	}
	out := make([]chat.Conversation, 0, len(m.convs))
	for _, doc := range m.convs {
		c, err := decodeDoc(string(doc))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *MemStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete"); err != nil {
		return err
	}
	if _, ok := m.convs[id]; !ok {
		return apperr.NotFound("delete", "conversation", id)
	}
	delete(m.convs, id)
	return nil
}

func (m *MemStore) PutSetting(_ context.Context, key string, value json.RawMessage) error {
	if strings.TrimSpace(key) == "" {
		return apperr.Validation("put setting", "setting key is empty")
	}
	if !json.Valid(value) {
		return apperr.Validation("put setting", "value for %q is not valid JSON", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("put setting"); err != nil {
		return err
	}
	m.settings[key] = append(json.RawMessage(nil), value...)
	return nil
}

func (m *MemStore) GetSetting(_ context.Context, key string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("get setting"); err != nil {
		return nil, err
	}
	v, ok := m.settings[key]
	if !ok {
		return nil, apperr.NotFound("get setting", "setting", key)
	}
	return append(json.RawMessage(nil), v...), nil
}

func (m *MemStore) Settings(context.Context) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail("settings"); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(m.settings))
	for k, v := range m.settings {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out, nil
}

func (m *MemStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("clear"); err != nil {
		return err
	}
	m.convs = make(map[string][]byte)
	m.settings = make(map[string]json.RawMessage)
	return nil
}
