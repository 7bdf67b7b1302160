package contextmgr

import (
	"testing"

	"aidiary/internal/chat"
)

func TestEstimateWithoutEncoder(t *testing.T) {
	tok := &Tokenizer{}
	if tok.IsPrecise() {
		t.Fatal("tokenizer without encoder reports precise")
	}
	if tok.CountText("") != 0 {
		t.Fatal("empty text should count 0")
	}
	en := tok.CountText("Hello world")
	ja := tok.CountText("こんにちは世界")
	if en <= 0 || ja <= 0 {
		t.Fatalf("en=%d ja=%d", en, ja)
	}
	if ja <= en {
		t.Fatalf("japanese estimate %d should exceed short english %d", ja, en)
	}
}

func TestCountIncludesOverhead(t *testing.T) {
	tok := &Tokenizer{}
	messages := []chat.Message{
		{Role: chat.RoleUser, Content: "hello"},
		{Role: chat.RoleAssistant, Content: "hi there"},
	}
	if got := tok.Count(messages); got <= 2*messageOverhead {
		t.Fatalf("Count=%d, want more than framing alone", got)
	}
	if tok.Count(nil) != 0 {
		t.Fatal("no messages should count 0")
	}
}

func TestModelToEncoding(t *testing.T) {
	tests := map[string]string{
		"gpt-3.5-turbo": "cl100k_base",
		"gpt-4":         "cl100k_base",
		"GPT-4o-mini":   "o200k_base",
		"o1-preview":    "o200k_base",
		"o3-mini":       "o200k_base",
		"":              "cl100k_base",
	}
	for model, want := range tests {
		if got := modelToEncoding(model); got != want {
			t.Errorf("modelToEncoding(%q) = %q, want %q", model, got, want)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	for _, s := range []string{"a", "今日はいい天気ですね。", "Mixed 混合 text テキスト"} {
		if estimateTokens(s) < 1 {
			t.Errorf("estimateTokens(%q) < 1", s)
		}
	}
}
