package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"aidiary/internal/chat"
	"aidiary/internal/diaryexport"
	"aidiary/internal/i18n"
)

// RenderMarkdown 使用 Glamour 渲染 markdown 文本
// RenderMarkdown renders markdown text using Glamour
func RenderMarkdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content
	}

	return strings.TrimRight(rendered, "\n")
}

// RenderMessages 渲染会话消息；流式中的空回复显示为省略号
// RenderMessages renders a conversation transcript. An empty reply still streaming shows as an ellipsis.
func RenderMessages(messages []chat.Message, agentName string, theme Theme) string {
	if len(messages) == 0 {
		return theme.MutedStyle.Render("  " + i18n.T("conv.no_current"))
	}
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		content := m.Content
		if m.Role == chat.RoleUser {
			b.WriteString(theme.UserStyle.Render(i18n.T("role.user")) + "\n")
		} else {
			b.WriteString(theme.AssistantStyle.Render(agentName) + "\n")
			if content == "" {
				content = "…"
			}
		}
		b.WriteString(content + "\n")
	}
	return b.String()
}

// RenderConversationList 渲染会话列表，当前会话加粗标记
// RenderConversationList renders the conversation list with the current one highlighted.
func RenderConversationList(convs []chat.Conversation, currentID string, theme Theme) string {
	if len(convs) == 0 {
		return theme.MutedStyle.Render("  " + i18n.T("conv.none"))
	}
	lines := make([]string, 0, len(convs))
	for i, c := range convs {
		title := c.Title
		if title == "" {
			title = "-"
		}
		if c.Diary != nil {
			title += " 📝"
		}
		line := fmt.Sprintf("%2d. %s  %s  %s", i+1, c.Date, title,
			theme.MutedStyle.Render(i18n.T("conv.messages", len(c.Messages))))
		if c.ID == currentID {
			line = theme.CurrentStyle.Render("* ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// RenderDiaries 将带日记的会话转为 Markdown 后用 Glamour 渲染
// RenderDiaries renders every diary as Markdown through Glamour.
func RenderDiaries(convs []chat.Conversation, now time.Time, width int) string {
	return RenderMarkdown(diaryexport.Markdown(convs, now), width)
}
