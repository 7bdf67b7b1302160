package orchestrator

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// answerStreamRenderer 将流式回复逐字输出，合并多余空行
// answerStreamRenderer prints a streamed reply as it arrives, collapsing runs of blank lines.
type answerStreamRenderer struct {
	out             io.Writer
	started         bool
	lineStart       bool
	pendingNewlines int
	hasVisibleText  bool
}

func newAnswerStreamRenderer(out io.Writer) *answerStreamRenderer {
	return &answerStreamRenderer{out: out, lineStart: true}
}

func (r *answerStreamRenderer) start() {
	if r == nil || r.out == nil || r.started {
		return
	}
	r.started = true
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintf(r.out, "%s %s\n", style("[AI]", ansiCyan+";"+ansiBold), style(strings.Repeat("─", 40), ansiCyan))
}

func (r *answerStreamRenderer) Append(chunk string) {
	if r == nil || r.out == nil || chunk == "" {
		return
	}
	r.start()
	normalized := strings.ReplaceAll(strings.ReplaceAll(chunk, "\r\n", "\n"), "\r", "\n")
	for _, ch := range normalized {
		if ch == '\n' {
			r.pendingNewlines++
			continue
		}
		r.flushPendingNewlines()
		r.lineStart = false
		_, _ = fmt.Fprint(r.out, string(ch))
		r.hasVisibleText = true
	}
}

func (r *answerStreamRenderer) Finish() {
	if r == nil || r.out == nil || !r.started {
		return
	}
	r.pendingNewlines = 0
	if !r.lineStart {
		_, _ = fmt.Fprintln(r.out)
		r.lineStart = true
	}
	_, _ = fmt.Fprintln(r.out)
	r.started = false
	r.hasVisibleText = false
}

func (r *answerStreamRenderer) flushPendingNewlines() {
	if r.pendingNewlines == 0 {
		return
	}
	if !r.hasVisibleText {
		r.pendingNewlines = 0
		return
	}
	newlineCount := r.pendingNewlines
	if newlineCount > 2 {
		newlineCount = 2
	}
	for i := 0; i < newlineCount; i++ {
		_, _ = fmt.Fprint(r.out, "\n")
	}
	r.pendingNewlines = 0
	r.lineStart = true
}

// RenderUserLine echoes a user message in the REPL transcript style.
func RenderUserLine(out io.Writer, label, text string) {
	if out == nil {
		return
	}
	_, _ = fmt.Fprintf(out, "%s %s\n", style("["+label+"]", ansiGreen+";"+ansiBold), text)
}

// RenderNotice prints command output in gray.
func RenderNotice(out io.Writer, text string) {
	if out == nil || text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		_, _ = fmt.Fprintln(out, style(line, ansiGray))
	}
}

// RenderWarning prints an error line in yellow.
func RenderWarning(out io.Writer, text string) {
	if out == nil || text == "" {
		return
	}
	_, _ = fmt.Fprintf(out, "%s %s\n", style("!", ansiYellow+";"+ansiBold), style(text, ansiYellow))
}

func style(text, codes string) string {
	if text == "" || !enableColor() {
		return text
	}
	segments := strings.Split(codes, ";")
	var builder strings.Builder
	for _, segment := range segments {
		code := strings.TrimSpace(segment)
		if code == "" {
			continue
		}
		builder.WriteString(code)
	}
	if builder.Len() == 0 {
		return text
	}
	return builder.String() + text + ansiReset
}

func enableColor() bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("DIARY_NO_COLOR")) != "" {
		return false
	}
	return strings.ToLower(strings.TrimSpace(os.Getenv("TERM"))) != "dumb"
}
