package provider

import (
	"context"

	"aidiary/internal/chat"
)

// TurnStream 单次回复的增量文本流，结束时 Recv 返回 io.EOF
// TurnStream yields incremental reply text; Recv returns io.EOF when done.
// Cancelling the context passed to Stream aborts it.
type TurnStream interface {
	Recv() (string, error)
	Close() error
}

// Provider 对话 AI 后端接口
// Provider is the conversational AI backend
type Provider interface {
	// SendTurn 发送历史并返回完整回复
	// SendTurn sends the history and returns the whole reply
	SendTurn(ctx context.Context, history []chat.Message, systemPrompt string) (string, error)

	// Stream 发送历史并以流的形式返回回复
	// Stream sends the history and returns the reply as a stream
	Stream(ctx context.Context, history []chat.Message, systemPrompt string) (TurnStream, error)

	// Summarize 将对话整理成日记
	// Summarize condenses a conversation into a diary entry
	Summarize(ctx context.Context, history []chat.Message) (chat.DiaryData, error)

	// ValidateKey 检查当前 API key 是否可用
	// ValidateKey checks that the current API key is accepted
	ValidateKey(ctx context.Context) error

	Name() string
	CurrentModel() string
	SetModel(model string) error
	SetAPIKey(key string)
}
