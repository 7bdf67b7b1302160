package contextmgr

import (
	"strings"
	"testing"

	"aidiary/internal/chat"
	"aidiary/internal/settings"
)

func heuristic() *Tokenizer {
	return &Tokenizer{}
}

func TestSystemPrompt(t *testing.T) {
	got := SystemPrompt(settings.AgentSettings{AgentName: " ハル ", Personality: "優しく話を聞いてくれる友達です。"})
	want := "あなたの名前はハルです。優しく話を聞いてくれる友達です。"
	if got != want {
		t.Fatalf("SystemPrompt=%q, want %q", got, want)
	}
}

func TestWindowSkipsPlaceholders(t *testing.T) {
	a := New(heuristic(), 0)
	msgs := []chat.Message{
		{ID: "1", Role: chat.RoleUser, Content: "hello"},
		{ID: "2", Role: chat.RoleAssistant, Content: ""},
	}
	got := a.Window("", msgs)
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("Window=%+v, want only message 1", got)
	}
}

func TestWindowKeepsNewestWithinLimit(t *testing.T) {
	tok := heuristic()
	var msgs []chat.Message
	for i := 0; i < 10; i++ {
		msgs = append(msgs, chat.Message{ID: string(rune('a' + i)), Role: chat.RoleUser, Content: strings.Repeat("word ", 20)})
	}
	per := tok.countMessage(msgs[0])
	a := New(tok, 4+3*per)

	got := a.Window("", msgs)
	if len(got) != 3 {
		t.Fatalf("window len=%d, want 3", len(got))
	}
	if got[2].ID != "j" || got[0].ID != "h" {
		t.Fatalf("window ids=%s..%s, want h..j", got[0].ID, got[2].ID)
	}
}

func TestWindowAlwaysKeepsLastMessage(t *testing.T) {
	a := New(heuristic(), 1)
	msgs := []chat.Message{
		{ID: "1", Role: chat.RoleUser, Content: "first"},
		{ID: "2", Role: chat.RoleUser, Content: strings.Repeat("長い文章", 100)},
	}
	got := a.Window("system", msgs)
	if len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("Window=%+v, want only the last message", got)
	}
}

func TestBuildReturnsPromptAndWindow(t *testing.T) {
	a := New(heuristic(), 0)
	prompt, window := a.Build(settings.AgentSettings{AgentName: "ミナ", Personality: "明るい"}, []chat.Message{
		{ID: "1", Role: chat.RoleUser, Content: "おはよう"},
	})
	if prompt != "あなたの名前はミナです。明るい" {
		t.Fatalf("prompt=%q", prompt)
	}
	if len(window) != 1 {
		t.Fatalf("window len=%d, want 1", len(window))
	}
}
