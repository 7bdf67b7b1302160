// Package transfer moves the whole store in and out as one snapshot
// document: {"conversations": [...], "settings": {...}}.
//
// Import validates everything before it clears anything. Once the clear
// has happened there is no rollback; a failure part way through the
// writes reports how many records made it.
package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"aidiary/internal/apperr"
	"aidiary/internal/chat"
	"aidiary/internal/settings"
	"aidiary/internal/storage"

	"go.uber.org/zap"
)

// Snapshot is the full contents of the store.
type Snapshot struct {
	Conversations []chat.Conversation `json:"conversations"`
	Settings      settings.Set        `json:"settings"`
}

type Engine struct {
	store storage.Store
	log   *zap.Logger
}

func New(store storage.Store, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, log: log}
}

// Export reads every record and setting from the store. The in-memory
// repository cache is not consulted, so unpersisted streaming content is
// not included.
func (e *Engine) Export(ctx context.Context) (Snapshot, error) {
	convs, err := e.store.GetAll(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	chat.SortNewestFirst(convs)
	raw, err := e.store.Settings(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	set, err := settings.FromRaw(raw)
	if err != nil {
		return Snapshot{}, apperr.Storage("export", err)
	}
	return Snapshot{Conversations: convs, Settings: set}, nil
}

// Import replaces the store contents with s. Nothing is touched when s
// fails validation.
func (e *Engine) Import(ctx context.Context, s Snapshot) error {
	raw, err := validate(s)
	if err != nil {
		return err
	}

	if err := e.store.Clear(ctx); err != nil {
		return err
	}
	written := 0
	for _, c := range s.Conversations {
		if err := e.store.Put(ctx, c); err != nil {
			return fmt.Errorf("import stopped after %d of %d conversations: %w", written, len(s.Conversations), err)
		}
		written++
	}
	for _, key := range s.Settings.Keys() {
		if err := e.store.PutSetting(ctx, key, raw[key]); err != nil {
			return fmt.Errorf("import stopped at setting %q: %w", key, err)
		}
	}
	e.log.Info("snapshot imported", zap.Int("conversations", written), zap.Int("settings", len(raw)))
	return nil
}

// WipeAll clears both record families. Callers reload their repository
// afterwards.
func (e *Engine) WipeAll(ctx context.Context) error {
	if err := e.store.Clear(ctx); err != nil {
		return err
	}
	e.log.Info("store wiped")
	return nil
}

// ValidateSnapshot collects every integrity problem in s. It covers what the
// store itself would refuse, so an import that passes here can clear safely.
func ValidateSnapshot(s Snapshot) error {
	_, err := validate(s)
	return err
}

func validate(s Snapshot) (map[string]json.RawMessage, error) {
	var problems []string
	seen := make(map[string]int, len(s.Conversations))
	for i, c := range s.Conversations {
		prefix := fmt.Sprintf("conversations[%d]", i)
		for _, p := range chat.Problems(c) {
			problems = append(problems, prefix+"."+p)
		}
		if strings.TrimSpace(c.CreatedAt) == "" {
			problems = append(problems, prefix+".createdAt is required")
		}
		if strings.TrimSpace(c.UpdatedAt) == "" {
			problems = append(problems, prefix+".updatedAt is required")
		}
		problems = append(problems, messageIDProblems(prefix, c.Messages)...)
		if strings.TrimSpace(c.ID) == "" {
			if c.ID != "" {
				problems = append(problems, prefix+".id is blank")
			}
			continue
		}
		if first, dup := seen[c.ID]; dup {
			problems = append(problems, fmt.Sprintf("%s.id %q duplicates conversations[%d]", prefix, c.ID, first))
			continue
		}
		seen[c.ID] = i
	}

	raw, err := s.Settings.Raw()
	if err != nil {
		problems = append(problems, fmt.Sprintf("settings: %v", err))
	}
	for _, key := range s.Settings.Keys() {
		if strings.TrimSpace(key) == "" {
			problems = append(problems, fmt.Sprintf("settings key %q is blank", key))
			continue
		}
		if raw != nil && !json.Valid(raw[key]) {
			problems = append(problems, fmt.Sprintf("settings[%q] is not valid JSON", key))
		}
	}

	if len(problems) > 0 {
		return nil, apperr.ImportIntegrity("validate snapshot", problems)
	}
	return raw, nil
}

// 同一会话内消息 id 必须唯一 / message ids are unique within a conversation
func messageIDProblems(prefix string, msgs []chat.Message) []string {
	var problems []string
	seen := make(map[string]int, len(msgs))
	for j, m := range msgs {
		if strings.TrimSpace(m.ID) == "" {
			if m.ID != "" {
				problems = append(problems, fmt.Sprintf("%s.messages[%d].id is blank", prefix, j))
			}
			continue
		}
		if k, dup := seen[m.ID]; dup {
			problems = append(problems, fmt.Sprintf("%s.messages[%d].id duplicates messages[%d]", prefix, j, k))
			continue
		}
		seen[m.ID] = j
	}
	return problems
}

// Decode checks data against the snapshot schema, then decodes it. Legacy
// field names from the browser version are accepted.
func Decode(data []byte) (Snapshot, error) {
	if err := checkSchema(data); err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, apperr.ImportIntegrity("decode", []string{err.Error()})
	}
	if s.Conversations == nil {
		s.Conversations = []chat.Conversation{}
	}
	return s, nil
}

// Encode renders s as indented JSON with non-ASCII text left literal.
func Encode(s Snapshot) ([]byte, error) {
	if s.Conversations == nil {
		s.Conversations = []chat.Conversation{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func WriteFile(path string, s Snapshot) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperr.Storage("create export dir", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return apperr.Storage("write snapshot", err)
	}
	return nil
}

func ReadFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, apperr.NotFound("read snapshot", "file", path)
	}
	if err != nil {
		return Snapshot{}, apperr.Storage("read snapshot", err)
	}
	return Decode(data)
}

// DefaultFileName is the suggested export file name for a day.
func DefaultFileName(dateKey string) string {
	return "diary-backup-" + dateKey + ".json"
}
