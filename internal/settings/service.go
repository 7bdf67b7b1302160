package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"aidiary/internal/apperr"
	"aidiary/internal/datekey"
)

// Backend is the slice of the record store the settings service needs.
type Backend interface {
	PutSetting(ctx context.Context, key string, value json.RawMessage) error
	GetSetting(ctx context.Context, key string) (json.RawMessage, error)
}

// Service reads and writes typed settings.
type Service struct {
	backend  Backend
	clock    datekey.Clock
	defaults AgentSettings
}

// NewService returns a Service. defaults is returned by Agent until the
// user saves a persona.
func NewService(backend Backend, clock datekey.Clock, defaults AgentSettings) *Service {
	if clock == nil {
		clock = datekey.SystemClock{}
	}
	return &Service{backend: backend, clock: clock, defaults: defaults}
}

// Agent returns the stored persona, or the defaults when none is stored.
// The bool reports whether a stored value was found.
func (s *Service) Agent(ctx context.Context) (AgentSettings, bool, error) {
	raw, err := s.backend.GetSetting(ctx, KeyAgent)
	if errors.Is(err, apperr.ErrNotFound) {
		return s.defaults, false, nil
	}
	if err != nil {
		return AgentSettings{}, false, err
	}
	a, err := DecodeAgent(raw)
	if err != nil {
		return AgentSettings{}, false, apperr.Validation("settings", "stored agent setting: %v", err)
	}
	return a, true, nil
}

// SaveAgent persists a, stamping lastUpdated and createdAt on first save.
// Fields of the stored object this build does not model are kept.
func (s *Service) SaveAgent(ctx context.Context, a AgentSettings) (AgentSettings, error) {
	if a.AgentName == "" {
		return AgentSettings{}, apperr.Validation("settings", "agentName is required")
	}
	now := s.clock.Now().UTC().Format(time.RFC3339)
	if a.CreatedAt == "" {
		a.CreatedAt = now
	}
	a.LastUpdated = now

	var set Set
	raw, err := s.backend.GetSetting(ctx, KeyAgent)
	switch {
	case err == nil:
		// A malformed stored value is simply replaced.
		_ = set.put(KeyAgent, raw)
	case !errors.Is(err, apperr.ErrNotFound):
		return AgentSettings{}, err
	}
	set.Agent = &a

	encoded, err := encodeAgent(a, set.agentExtra)
	if err != nil {
		return AgentSettings{}, err
	}
	if err := s.backend.PutSetting(ctx, KeyAgent, encoded); err != nil {
		return AgentSettings{}, err
	}
	return a, nil
}
