// Package diaryexport renders diaries as a Markdown document.
package diaryexport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"aidiary/internal/chat"
	"aidiary/internal/datekey"
)

var weekdays = [...]string{"日", "月", "火", "水", "木", "金", "土"}

// FormatDate renders a date key as 2024年06月01日（土）. Malformed keys are
// returned unchanged.
func FormatDate(key string) string {
	t, err := datekey.FromKey(key)
	if err != nil {
		return key
	}
	return fmt.Sprintf("%d年%02d月%02d日（%s）", t.Year(), int(t.Month()), t.Day(), weekdays[t.Weekday()])
}

func formatTime(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ""
	}
	return t.In(time.Local).Format("15:04")
}

// Markdown renders every conversation that carries a diary, in the given
// order, with its summary, emotions, keywords and conversation log.
func Markdown(convs []chat.Conversation, exportedAt time.Time) string {
	var b strings.Builder
	b.WriteString("# My AI Diary\n\n")

	n := 0
	for _, c := range convs {
		if c.Diary != nil {
			n++
		}
	}
	if n == 0 {
		b.WriteString("日記がまだありません。")
		return b.String()
	}

	fmt.Fprintf(&b, "エクスポート日時: %s\n\n---\n\n", exportedAt.In(time.Local).Format("2006/01/02 15:04:05"))
	for _, c := range convs {
		d := c.Diary
		if d == nil {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", FormatDate(c.Date))
		if c.Title != "" {
			fmt.Fprintf(&b, "**タイトル:** %s\n\n", c.Title)
		}

		fmt.Fprintf(&b, "### 📝 今日の日記\n\n%s\n\n", d.Summary)
		if d.Content != "" {
			fmt.Fprintf(&b, "%s\n\n", d.Content)
		}

		if len(d.Emotion) > 0 {
			b.WriteString("### 😊 今日の感情\n\n")
			for _, e := range d.Emotion {
				fmt.Fprintf(&b, "- %s\n", e)
			}
			b.WriteString("\n")
		}

		if len(d.Keywords) > 0 {
			b.WriteString("### 🏷️ キーワード\n\n")
			quoted := make([]string, len(d.Keywords))
			for i, k := range d.Keywords {
				quoted[i] = "`" + k + "`"
			}
			fmt.Fprintf(&b, "%s\n\n", strings.Join(quoted, ", "))
		}

		if len(c.Messages) > 0 {
			b.WriteString("### 💬 会話ログ\n\n")
			for _, m := range c.Messages {
				role := "AIアシスタント"
				if m.Role == chat.RoleUser {
					role = "私"
				}
				fmt.Fprintf(&b, "**%s** (%s)  \n%s\n\n", role, formatTime(m.Timestamp), m.Content)
			}
		}
		b.WriteString("---\n\n")
	}
	return b.String()
}

// WriteFile renders convs and writes the document to path.
func WriteFile(path string, convs []chat.Conversation, exportedAt time.Time) (int, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create markdown dir: %w", err)
		}
	}
	n := 0
	for _, c := range convs {
		if c.Diary != nil {
			n++
		}
	}
	if err := os.WriteFile(path, []byte(Markdown(convs, exportedAt)), 0o644); err != nil {
		return 0, fmt.Errorf("write markdown: %w", err)
	}
	return n, nil
}

// DefaultFileName is the suggested Markdown export name for a day.
func DefaultFileName(dateKey string) string {
	return "diary-" + dateKey + ".md"
}
