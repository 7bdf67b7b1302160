package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"aidiary/internal/chat"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	DefaultModel       = "gpt-3.5-turbo"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 800

	summaryTemperature = 0.5
	summaryMaxTokens   = 500
)

// OpenAIProvider 使用 go-openai SDK 的 Provider 实现
// OpenAIProvider implements Provider using the go-openai SDK
type OpenAIProvider struct {
	mu      sync.RWMutex
	client  *openai.Client
	model   string
	cfg     OpenAIConfig
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger

	retryBase time.Duration
}

// OpenAIConfig SDK provider 配置
// OpenAIConfig is the SDK provider configuration
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	TimeoutMS   int
	MaxRetries  int
	Temperature float64
	MaxTokens   int
	Logger      *zap.Logger
}

// NewOpenAIProvider 创建基于 SDK 的 provider
// NewOpenAIProvider creates an SDK-based provider
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	p := &OpenAIProvider{
		model:     cfg.Model,
		cfg:       cfg,
		log:       log,
		retryBase: 150 * time.Millisecond,
	}
	p.client = p.newClient(cfg.APIKey)
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
		// 用户取消不算后端故障 / A user cancel is not a backend failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return p
}

func (p *OpenAIProvider) newClient(apiKey string) *openai.Client {
	config := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if base := strings.TrimRight(strings.TrimSpace(p.cfg.BaseURL), "/"); base != "" {
		config.BaseURL = base
	}
	httpClient := &http.Client{}
	if p.cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(p.cfg.TimeoutMS) * time.Millisecond
	}
	config.HTTPClient = httpClient
	return openai.NewClientWithConfig(config)
}

func (p *OpenAIProvider) sdk() *openai.Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) CurrentModel() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

func (p *OpenAIProvider) SetModel(model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("model is empty")
	}
	p.mu.Lock()
	p.model = model
	p.mu.Unlock()
	return nil
}

// SetAPIKey 替换 API key，后续请求立即生效
// SetAPIKey swaps the API key for subsequent calls
func (p *OpenAIProvider) SetAPIKey(key string) {
	client := p.newClient(key)
	p.mu.Lock()
	p.cfg.APIKey = strings.TrimSpace(key)
	p.client = client
	p.mu.Unlock()
}

func (p *OpenAIProvider) SendTurn(ctx context.Context, history []chat.Message, systemPrompt string) (string, error) {
	req := p.turnRequest(history, systemPrompt)
	resp, err := call(ctx, p, func() (openai.ChatCompletionResponse, error) {
		return p.sdk().CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("send turn: %w", err)
	}
	return firstContent(resp), nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, history []chat.Message, systemPrompt string) (TurnStream, error) {
	req := p.turnRequest(history, systemPrompt)
	req.Stream = true
	stream, err := call(ctx, p, func() (*openai.ChatCompletionStream, error) {
		return p.sdk().CreateChatCompletionStream(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}
	return &sdkStream{stream: stream}, nil
}

// Summarize 请求日记摘要；回复不是 JSON 时原文作为摘要
// Summarize asks for a diary summary; a non-JSON reply becomes the summary verbatim
func (p *OpenAIProvider) Summarize(ctx context.Context, history []chat.Message) (chat.DiaryData, error) {
	req := openai.ChatCompletionRequest{
		Model: p.CurrentModel(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: SummaryPrompt(history)},
		},
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	}
	resp, err := call(ctx, p, func() (openai.ChatCompletionResponse, error) {
		return p.sdk().CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return chat.DiaryData{}, fmt.Errorf("summarize: %w", err)
	}
	return ParseSummary(firstContent(resp)), nil
}

func (p *OpenAIProvider) ValidateKey(ctx context.Context) error {
	if _, err := p.sdk().ListModels(ctx); err != nil {
		return fmt.Errorf("validate api key: %w", err)
	}
	return nil
}

func (p *OpenAIProvider) turnRequest(history []chat.Message, systemPrompt string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       p.CurrentModel(),
		Messages:    convertMessages(history, systemPrompt),
		Temperature: float32(p.cfg.Temperature),
		MaxTokens:   p.cfg.MaxTokens,
	}
}

// call 经熔断器执行 fn，可重试错误按 150ms*2^(n-1) 退避
// call runs fn through the breaker and retries transient errors with
// exponential backoff.
func call[T any](ctx context.Context, p *OpenAIProvider, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := p.retryBase * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
		}

		out, err := p.breaker.Execute(func() (interface{}, error) {
			return fn()
		})
		if err == nil {
			return out.(T), nil
		}
		lastErr = err
		if !retryable(err) {
			return zero, err
		}
		p.log.Debug("provider call failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return zero, fmt.Errorf("failed after %d retries: %w", p.cfg.MaxRetries, lastErr)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500 || code == 0
}

type sdkStream struct {
	stream *openai.ChatCompletionStream
}

func (s *sdkStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("recv stream: %w", err)
		}
		var b strings.Builder
		for _, choice := range resp.Choices {
			b.WriteString(choice.Delta.Content)
		}
		if b.Len() > 0 {
			return b.String(), nil
		}
	}
}

func (s *sdkStream) Close() error {
	return s.stream.Close()
}

func firstContent(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}

// --- Message conversion ---

func convertMessages(history []chat.Message, systemPrompt string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if strings.TrimSpace(systemPrompt) != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == chat.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// --- Diary summary ---

const summarySystemPrompt = "あなたは日記作成アシスタントです。会話を分析して、簡潔な日記と感情分析を行います。"

// SummaryPrompt 构造日记摘要的用户提示
// SummaryPrompt builds the user prompt for a diary summary.
func SummaryPrompt(history []chat.Message) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		speaker := "AI"
		if m.Role == chat.RoleUser {
			speaker = "ユーザー"
		}
		lines = append(lines, speaker+": "+m.Content)
	}
	return `以下の会話を日記形式で要約してください。
また、会話から読み取れる感情とキーワードを抽出してください。

会話:
` + strings.Join(lines, "\n") + `

以下のJSON形式で回答してください:
{
  "summary": "日記形式の要約（100文字程度）",
  "emotion": ["感情1", "感情2"],
  "keywords": ["キーワード1", "キーワード2", "キーワード3"]
}`
}

// ParseSummary 解析模型返回的 JSON；允许外层代码块
// ParseSummary decodes the model's JSON reply, tolerating a surrounding
// code fence. Anything else is kept whole as the summary.
func ParseSummary(content string) chat.DiaryData {
	fallback := chat.DiaryData{Summary: content, Emotion: []string{}, Keywords: []string{}}
	body := strings.TrimSpace(content)
	start, end := strings.IndexByte(body, '{'), strings.LastIndexByte(body, '}')
	if start < 0 || end <= start {
		return fallback
	}
	var parsed struct {
		Summary  string   `json:"summary"`
		Emotion  []string `json:"emotion"`
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(body[start:end+1]), &parsed); err != nil {
		return fallback
	}
	out := chat.DiaryData{Summary: parsed.Summary, Emotion: parsed.Emotion, Keywords: parsed.Keywords}
	if out.Emotion == nil {
		out.Emotion = []string{}
	}
	if out.Keywords == nil {
		out.Keywords = []string{}
	}
	return out
}
