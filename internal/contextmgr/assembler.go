// Package contextmgr turns a stored conversation into what is sent to the
// model: the persona system prompt and a history window that fits the
// configured token limit.
package contextmgr

import (
	"strings"

	"aidiary/internal/chat"
	"aidiary/internal/settings"
)

// SystemPrompt builds the persona prompt from the agent settings.
func SystemPrompt(a settings.AgentSettings) string {
	return "あなたの名前は" + strings.TrimSpace(a.AgentName) + "です。" + strings.TrimSpace(a.Personality)
}

type Assembler struct {
	Tokenizer  *Tokenizer
	TokenLimit int
}

// New returns an Assembler. A non-positive tokenLimit disables trimming.
func New(tok *Tokenizer, tokenLimit int) *Assembler {
	if tok == nil {
		tok = DefaultTokenizer()
	}
	return &Assembler{Tokenizer: tok, TokenLimit: tokenLimit}
}

// Build returns the system prompt and the newest slice of history that fits
// the token limit together with it. Messages without content (streaming
// placeholders) are left out. The last message is always kept.
func (a *Assembler) Build(agent settings.AgentSettings, history []chat.Message) (string, []chat.Message) {
	prompt := SystemPrompt(agent)
	return prompt, a.Window(prompt, history)
}

func (a *Assembler) Window(systemPrompt string, history []chat.Message) []chat.Message {
	msgs := make([]chat.Message, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		msgs = append(msgs, m)
	}
	if a.TokenLimit <= 0 || len(msgs) == 0 {
		return msgs
	}

	budget := a.TokenLimit - a.Tokenizer.CountText(systemPrompt) - 4
	start := len(msgs) - 1
	budget -= a.Tokenizer.countMessage(msgs[start])
	for start > 0 {
		cost := a.Tokenizer.countMessage(msgs[start-1])
		if cost > budget {
			break
		}
		budget -= cost
		start--
	}
	return msgs[start:]
}
