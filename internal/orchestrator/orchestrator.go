// Package orchestrator is the caller layer over the conversation core: it
// runs streamed turns, regenerates answers, writes diaries and dispatches
// the slash commands shared by the REPL and the TUI.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"aidiary/internal/apperr"
	"aidiary/internal/chat"
	"aidiary/internal/contextmgr"
	"aidiary/internal/conversation"
	"aidiary/internal/datekey"
	"aidiary/internal/i18n"
	"aidiary/internal/provider"
	"aidiary/internal/settings"
	"aidiary/internal/transfer"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

type Orchestrator struct {
	provider  provider.Provider
	repo      *conversation.Repository
	settings  *settings.Service
	transfer  *transfer.Engine
	assembler *contextmgr.Assembler
	clock     datekey.Clock
	log       *zap.Logger

	minDiaryMessages int
	writeRetries     uint
	retryInitial     time.Duration
	exportDir        string
	newMessageID     func() string
	persistModel     func(model string) error

	onTextChunk     TextChunkFunc
	onContextUpdate OnContextUpdate

	mu    sync.RWMutex
	agent settings.AgentSettings
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		provider:         opts.Provider,
		repo:             opts.Repository,
		settings:         opts.Settings,
		transfer:         opts.Transfer,
		assembler:        opts.Assembler,
		clock:            opts.Clock,
		log:              opts.Logger,
		minDiaryMessages: opts.MinDiaryMessages,
		writeRetries:     opts.WriteRetries,
		retryInitial:     opts.RetryInitial,
		exportDir:        strings.TrimSpace(opts.ExportDir),
		newMessageID:     opts.NewMessageID,
		persistModel:     opts.PersistModel,
		onTextChunk:      opts.OnTextChunk,
		onContextUpdate:  opts.OnContextUpdate,
	}
	if o.assembler == nil {
		o.assembler = contextmgr.New(nil, 0)
	}
	if o.clock == nil {
		o.clock = datekey.SystemClock{}
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.minDiaryMessages <= 0 {
		o.minDiaryMessages = defaultMinDiaryMessages
	}
	if o.writeRetries == 0 {
		o.writeRetries = defaultWriteRetries
	}
	if o.retryInitial <= 0 {
		o.retryInitial = defaultRetryInitial
	}
	if o.newMessageID == nil {
		o.newMessageID = conversation.NewMessageID
	}
	return o
}

// Start 加载会话与人设；存储的 API key 覆盖配置中的 key
// Start loads conversations and the persona. A stored API key overrides the configured one.
func (o *Orchestrator) Start(ctx context.Context) error {
	if _, err := durable(ctx, o, "load", func() (struct{}, error) {
		return struct{}{}, o.repo.Load(ctx)
	}); err != nil {
		return err
	}
	return o.reloadAgent(ctx)
}

func (o *Orchestrator) reloadAgent(ctx context.Context) error {
	if o.settings == nil {
		return nil
	}
	a, _, err := o.settings.Agent(ctx)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.agent = a
	o.mu.Unlock()
	if a.APIKey != "" && o.provider != nil {
		o.provider.SetAPIKey(a.APIKey)
	}
	return nil
}

// Agent returns the persona used for the system prompt.
func (o *Orchestrator) Agent() settings.AgentSettings {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.agent
}

func (o *Orchestrator) Repository() *conversation.Repository {
	return o.repo
}

func (o *Orchestrator) CurrentModel() string {
	if o.provider == nil {
		return ""
	}
	return o.provider.CurrentModel()
}

func (o *Orchestrator) SetTextStreamCallback(fn TextChunkFunc) {
	o.onTextChunk = fn
}

func (o *Orchestrator) SetContextUpdateCallback(fn OnContextUpdate) {
	o.onContextUpdate = fn
}

// CurrentContextStats 估算当前会话发送给模型的 token 数
// CurrentContextStats estimates the tokens the current conversation would send.
func (o *Orchestrator) CurrentContextStats() ContextStats {
	conv, _ := o.repo.Current()
	prompt, window := o.assembler.Build(o.Agent(), conv.Messages)
	return o.stats(prompt, window)
}

func (o *Orchestrator) stats(prompt string, window []chat.Message) ContextStats {
	tok := o.assembler.Tokenizer
	estimated := tok.CountText(prompt) + tok.Count(window)
	limit := o.assembler.TokenLimit
	percent := 0.0
	if limit > 0 {
		percent = (float64(estimated) / float64(limit)) * 100
	}
	return ContextStats{
		EstimatedTokens: estimated,
		ContextLimit:    limit,
		UsagePercent:    percent,
		MessageCount:    len(window),
		Precise:         tok.IsPrecise(),
	}
}

func (o *Orchestrator) emitContextUpdate(s ContextStats) {
	if o.onContextUpdate != nil {
		o.onContextUpdate(s.EstimatedTokens, s.ContextLimit, s.UsagePercent)
	}
}

// RunInput 处理一行输入：斜杠命令或一次对话
// RunInput handles one line of input: a slash command or a conversation turn.
func (o *Orchestrator) RunInput(ctx context.Context, input string, out io.Writer) (string, error) {
	trimmed := strings.TrimSpace(input)
	if cmd, args, ok := parseSlashCommand(trimmed); ok {
		result, err := o.runSlashCommand(ctx, cmd, args, out)
		if out != nil && result != "" {
			fmt.Fprintln(out, result)
		}
		return result, err
	}
	return o.RunTurn(ctx, input, out)
}

// ErrorText 将错误转换为面向用户的提示
// ErrorText renders err for the user in the active locale.
func (o *Orchestrator) ErrorText(err error) string {
	var short *DiaryTooShortError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &short):
		return i18n.T("diary.too_short", short.Need, short.Have)
	case errors.Is(err, conversation.ErrNotLoaded):
		return i18n.T("error.not_loaded")
	case errors.Is(err, context.Canceled):
		return i18n.T("status.interrupted")
	}
	return i18n.Global().Error(err)
}

// durable 对持久化写入做调用方重试：只重试存储错误，其余错误立即返回
// durable retries a durable write on storage errors only; every other kind fails at once.
func durable[T any](ctx context.Context, o *Orchestrator, op string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.retryInitial
	attempt := 0
	v, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, apperr.ErrStorage) {
			return v, backoff.Permanent(err)
		}
		o.log.Debug("durable write failed, retrying", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(o.writeRetries))
	if err != nil {
		o.log.Warn("durable write failed", zap.String("op", op), zap.Int("attempts", attempt), zap.Error(err))
	}
	return v, err
}
