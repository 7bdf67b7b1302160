package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-runewidth"

	"aidiary/internal/bootstrap"
	"aidiary/internal/i18n"
	"aidiary/internal/orchestrator"
)

const (
	ansiReset = "\x1b[0m"
	ansiDim   = "\x1b[90m"
	ansiGreen = "\x1b[32m"

	promptTitleWidth = 24
)

// Loop holds REPL state: orchestrator, prompt info and the line reader.
// Loop 持有 REPL 状态：编排器、提示符信息与行输入。
type Loop struct {
	orch *orchestrator.Orchestrator
	in   lineInput
	out  io.Writer

	// prompt state (updated by SetContextUpdateCallback before each request)
	tokens int
	limit  int

	// turnContext 为单次对话派生可被 Ctrl+C 取消的 context
	turnContext func(context.Context) (context.Context, context.CancelFunc)
}

// NewLoop builds a REPL loop from a BuildResult. Input history is kept in
// <base_dir>/history when readline is available.
func NewLoop(res *bootstrap.BuildResult, historyDir string) (*Loop, error) {
	if res == nil || res.Orch == nil {
		return nil, fmt.Errorf("orchestrator is nil")
	}
	historyPath := ""
	if strings.TrimSpace(historyDir) != "" {
		historyPath = filepath.Join(historyDir, "history")
	}
	in, err := newLineInput(historyPath)
	if err != nil {
		res.Logger.Warn("readline unavailable, using plain input")
	}
	return newLoop(res.Orch, in, os.Stdout), nil
}

func newLoop(orch *orchestrator.Orchestrator, in lineInput, out io.Writer) *Loop {
	return &Loop{
		orch: orch,
		in:   in,
		out:  out,
		turnContext: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
}

// Close releases the line reader.
func (l *Loop) Close() error {
	return l.in.Close()
}

// Run 读取输入并交给编排器，直到 /exit 或输入结束
// Run reads input and hands it to the orchestrator until /exit or end of input.
func (l *Loop) Run(ctx context.Context) error {
	l.orch.SetContextUpdateCallback(func(tokens, limit int, _ float64) {
		l.tokens = tokens
		l.limit = limit
	})

	fmt.Fprintln(l.out, i18n.T("app.welcome", l.orch.Agent().AgentName))
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		l.updatePromptState()
		l.printStatusLine()

		line, err := l.in.ReadLine(l.prompt())
		if err != nil {
			switch {
			case errors.Is(err, readline.ErrInterrupt):
				fmt.Fprintln(l.out)
				continue
			case errors.Is(err, io.EOF):
				fmt.Fprintln(l.out)
				fmt.Fprintln(l.out, i18n.T("app.bye"))
				return nil
			default:
				return fmt.Errorf("read input: %w", err)
			}
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		turnCtx, cancel := l.turnContext(ctx)
		_, err = l.orch.RunInput(turnCtx, input, l.out)
		cancel()
		if errors.Is(err, orchestrator.ErrExit) {
			return nil
		}
		if err != nil {
			orchestrator.RenderWarning(l.out, l.orch.ErrorText(err))
		}
	}
}

func (l *Loop) updatePromptState() {
	if l.limit == 0 {
		stats := l.orch.CurrentContextStats()
		l.tokens = stats.EstimatedTokens
		l.limit = stats.ContextLimit
	}
}

// printStatusLine 提示符第一行：context: N tokens · model: xxx
func (l *Loop) printStatusLine() {
	line := fmt.Sprintf("context: %d tokens · model: %s", l.tokens, l.orch.CurrentModel())
	if useColor() {
		fmt.Fprintf(l.out, "%s%s%s\n", ansiDim, line, ansiReset)
		return
	}
	fmt.Fprintln(l.out, line)
}

// prompt 第二行：[会话标题] >
func (l *Loop) prompt() string {
	title := "-"
	if conv, ok := l.orch.Repository().Current(); ok && conv.Title != "" {
		title = runewidth.Truncate(conv.Title, promptTitleWidth, "…")
	}
	p := fmt.Sprintf("[%s] > ", title)
	if useColor() {
		return ansiGreen + p + ansiReset
	}
	return p
}

func useColor() bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("DIARY_NO_COLOR")) != "" {
		return false
	}
	return strings.ToLower(strings.TrimSpace(os.Getenv("TERM"))) != "dumb"
}
