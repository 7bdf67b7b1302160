// Package settings models the keyed settings family as a closed set of
// known kinds. Keys this build does not know about are carried as raw JSON
// so they survive export and import untouched.
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// KeyAgent stores the persona used to build the system prompt.
const KeyAgent = "agent"

// AgentSettings is the AI persona configuration.
type AgentSettings struct {
	AgentName   string `json:"agentName"`
	Personality string `json:"personality"`
	APIKey      string `json:"apiKey,omitempty"`
	CreatedAt   string `json:"createdAt"`
	LastUpdated string `json:"lastUpdated"`
}

var agentFields = []string{"agentName", "personality", "apiKey", "createdAt", "lastUpdated"}

// Set is every setting in the store. Agent is nil when unset.
type Set struct {
	Agent   *AgentSettings
	Unknown map[string]json.RawMessage

	// agentExtra keeps fields of the stored agent object this build does
	// not model, e.g. apiProvider from the browser version.
	agentExtra map[string]json.RawMessage
}

// FromRaw sorts raw key/value pairs into known kinds.
func FromRaw(raw map[string]json.RawMessage) (Set, error) {
	var s Set
	for key, value := range raw {
		if err := s.put(key, value); err != nil {
			return Set{}, err
		}
	}
	return s, nil
}

func (s *Set) put(key string, value json.RawMessage) error {
	switch key {
	case KeyAgent:
		var a AgentSettings
		if err := decodeStrict(value, &a); err != nil {
			return fmt.Errorf("setting %q: %w", key, err)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(value, &fields); err != nil {
			return fmt.Errorf("setting %q: %w", key, err)
		}
		for _, f := range agentFields {
			delete(fields, f)
		}
		s.Agent = &a
		s.agentExtra = fields
	default:
		if s.Unknown == nil {
			s.Unknown = make(map[string]json.RawMessage)
		}
		s.Unknown[key] = append(json.RawMessage(nil), value...)
	}
	return nil
}

// Raw flattens the set back to key/value pairs for the store.
func (s Set) Raw() (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(s.Unknown)+1)
	for k, v := range s.Unknown {
		out[k] = append(json.RawMessage(nil), v...)
	}
	if s.Agent != nil {
		b, err := encodeAgent(*s.Agent, s.agentExtra)
		if err != nil {
			return nil, err
		}
		out[KeyAgent] = b
	}
	return out, nil
}

// Keys returns the keys present, sorted.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s.Unknown)+1)
	if s.Agent != nil {
		keys = append(keys, KeyAgent)
	}
	for k := range s.Unknown {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s Set) MarshalJSON() ([]byte, error) {
	raw, err := s.Raw()
	if err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

func (s *Set) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		*s = Set{}
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromRaw(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// DecodeAgent parses a stored agent value.
func DecodeAgent(value json.RawMessage) (AgentSettings, error) {
	var a AgentSettings
	if err := decodeStrict(value, &a); err != nil {
		return AgentSettings{}, err
	}
	return a, nil
}

func encodeAgent(a AgentSettings, extra map[string]json.RawMessage) (json.RawMessage, error) {
	b, err := json.Marshal(a)
	if err != nil || len(extra) == 0 {
		return b, err
	}
	merged := make(map[string]json.RawMessage, len(extra)+len(agentFields))
	for k, v := range extra {
		merged[k] = v
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(b, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// decodeStrict rejects values of the wrong JSON type. Unknown fields are
// tolerated since the browser version stored extra keys like apiProvider.
func decodeStrict(value json.RawMessage, dst any) error {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("expected a JSON object")
	}
	return json.Unmarshal(trimmed, dst)
}
