package orchestrator

import (
	"errors"
	"time"

	"aidiary/internal/contextmgr"
	"aidiary/internal/conversation"
	"aidiary/internal/datekey"
	"aidiary/internal/provider"
	"aidiary/internal/settings"
	"aidiary/internal/transfer"

	"go.uber.org/zap"
)

// TextChunkFunc 文本流式回调
// TextChunkFunc receives every streamed text increment
type TextChunkFunc = func(chunk string)

// OnContextUpdate 上下文 token 使用更新回调（REPL 用于提示符，TUI 用于侧栏）
// OnContextUpdate is called before each request; REPL shows it in the prompt, TUI in the sidebar.
type OnContextUpdate = func(tokens, limit int, percent float64)

// ErrExit is returned by RunInput for /exit.
var ErrExit = errors.New("exit requested")

const (
	ansiReset  = "\x1b[0m"
	ansiCyan   = "\x1b[36m"
	ansiYellow = "\x1b[33m"
	ansiGreen  = "\x1b[32m"
	ansiGray   = "\x1b[90m"
	ansiBold   = "\x1b[1m"
)

const (
	defaultMinDiaryMessages = 4
	defaultWriteRetries     = 3
	defaultRetryInitial     = 200 * time.Millisecond
)

type Options struct {
	Provider   provider.Provider
	Repository *conversation.Repository
	Settings   *settings.Service
	Transfer   *transfer.Engine
	Assembler  *contextmgr.Assembler
	Clock      datekey.Clock
	Logger     *zap.Logger

	MinDiaryMessages int           // messages required before /diary (default 4)
	WriteRetries     uint          // attempts per durable write on storage errors (default 3)
	RetryInitial     time.Duration // first backoff interval
	ExportDir        string        // default directory for /export and /markdown
	NewMessageID     func() string
	PersistModel     func(model string) error // optional; called after /model switches

	OnTextChunk     TextChunkFunc
	OnContextUpdate OnContextUpdate
}

type ContextStats struct {
	EstimatedTokens int
	ContextLimit    int
	UsagePercent    float64
	MessageCount    int
	Precise         bool
}
