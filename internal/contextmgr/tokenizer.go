package contextmgr

import (
	"strings"
	"sync"

	"aidiary/internal/chat"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// 每条消息的角色与分隔开销 / per-message framing overhead
const messageOverhead = 4

// Tokenizer counts prompt tokens for the history window. Without BPE ranks
// (offline first run) it estimates from character classes instead.
type Tokenizer struct {
	encoder *tiktoken.Tiktoken
}

var (
	defaultOnce sync.Once
	defaultTok  *Tokenizer
)

// DefaultTokenizer 默认 cl100k_base，进程内共享
func DefaultTokenizer() *Tokenizer {
	defaultOnce.Do(func() { defaultTok = NewTokenizerForModel("") })
	return defaultTok
}

// NewTokenizerForModel picks o200k_base for the 4o/o-series models and
// cl100k_base otherwise.
func NewTokenizerForModel(model string) *Tokenizer {
	enc, err := tiktoken.GetEncoding(modelToEncoding(model))
	if err != nil {
		return &Tokenizer{}
	}
	return &Tokenizer{encoder: enc}
}

// Count sums CountText over content and role plus the framing overhead.
func (t *Tokenizer) Count(messages []chat.Message) int {
	total := 0
	for _, m := range messages {
		total += t.countMessage(m)
	}
	return total
}

func (t *Tokenizer) countMessage(m chat.Message) int {
	return messageOverhead + t.CountText(m.Content) + t.CountText(string(m.Role))
}

func (t *Tokenizer) CountText(text string) int {
	if text == "" {
		return 0
	}
	if t.encoder == nil {
		return estimateTokens(text)
	}
	return len(t.encoder.Encode(text, nil, nil))
}

// IsPrecise reports whether counts come from tiktoken.
func (t *Tokenizer) IsPrecise() bool {
	return t.encoder != nil
}

// 日文假名/汉字约 1.5 token，其余约 4 字符 1 token
func estimateTokens(text string) int {
	var wide, narrow int
	for _, r := range text {
		if wideRune(r) {
			wide++
		} else {
			narrow++
		}
	}
	n := int(float64(wide)*1.5 + float64(narrow)*0.25)
	if n < 1 && text != "" {
		n = 1
	}
	return n
}

func wideRune(r rune) bool {
	switch {
	case r >= 0x3000 && r <= 0x30FF: // punctuation, kana
		return true
	case r >= 0x3400 && r <= 0x4DBF, r >= 0x4E00 && r <= 0x9FFF:
		return true
	case r >= 0xFF00 && r <= 0xFFEF: // fullwidth
		return true
	}
	return false
}

func modelToEncoding(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	for _, p := range []string{"gpt-4o", "chatgpt-4o", "gpt-4.1", "o1", "o3", "o4"} {
		if strings.HasPrefix(m, p) {
			return "o200k_base"
		}
	}
	return "cl100k_base"
}
