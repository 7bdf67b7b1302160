package tui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"aidiary/internal/datekey"
	"aidiary/internal/i18n"
	"aidiary/internal/orchestrator"
)

// PanelID 面板标识
// PanelID identifies a panel
type PanelID int

const (
	PanelChat PanelID = iota
	PanelConversations
	PanelDiary
	panelCount
)

// --- Tea Messages ---

// TextChunkMsg 流式文本块
// TextChunkMsg is a streaming text chunk
type TextChunkMsg struct{ Text string }

// TurnDoneMsg 一次输入（对话或命令）处理完成
// TurnDoneMsg reports that one input, a turn or a command, has finished
type TurnDoneMsg struct {
	Output string
	Err    error
}

// ContextUpdateMsg 上下文信息更新
// ContextUpdateMsg carries updated context info
type ContextUpdateMsg struct {
	Tokens  int
	Limit   int
	Percent float64
}

// App Bubble Tea 主 Model
// App is the main Bubble Tea model
type App struct {
	// 布局 / Layout
	width  int
	height int

	// 面板 / Panels
	activePanel PanelID
	chatView    viewport.Model
	convView    viewport.Model
	diaryView   viewport.Model

	// 输入 / Input
	input textarea.Model

	// 侧边栏数据 / Sidebar data
	tokens     int
	tokenLimit int
	tokenPct   float64

	// 状态 / State
	orch      *orchestrator.Orchestrator
	ctx       context.Context
	cancel    context.CancelFunc
	busy      bool
	streaming bool
	notice    string
	lastError string
	clock     datekey.Clock

	// 配置 / Config
	theme  Theme
	keys   KeyMap
	locale *i18n.I18n
}

// NewApp 创建 TUI 应用；orch 必须已经 Start
// NewApp creates the TUI application. orch must already be started.
func NewApp(ctx context.Context, orch *orchestrator.Orchestrator) App {
	ta := textarea.New()
	ta.Placeholder = i18n.T("input.placeholder")
	ta.CharLimit = 8192
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.Focus()

	stats := orch.CurrentContextStats()
	a := App{
		activePanel: PanelChat,
		input:       ta,
		tokens:      stats.EstimatedTokens,
		tokenLimit:  stats.ContextLimit,
		tokenPct:    stats.UsagePercent,
		orch:        orch,
		ctx:         ctx,
		clock:       datekey.SystemClock{},
		theme:       DarkTheme(),
		keys:        DefaultKeyMap(),
		locale:      i18n.Global(),
	}
	a.relayout()
	return a
}

func (a App) Init() tea.Cmd {
	return textarea.Blink
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			if a.cancel != nil {
				a.cancel()
			}
			return a, tea.Quit
		case key.Matches(msg, a.keys.SwitchPanel):
			a.activePanel = (a.activePanel + 1) % panelCount
			return a, nil
		case key.Matches(msg, a.keys.Cancel):
			if a.busy && a.cancel != nil {
				a.cancel()
			}
			return a, nil
		case key.Matches(msg, a.keys.NewConv):
			return a.submit("/new")
		case key.Matches(msg, a.keys.Diary):
			return a.submit("/diary")
		case key.Matches(msg, a.keys.Regenerate):
			return a.submit("/regen")
		case key.Matches(msg, a.keys.PageUp), key.Matches(msg, a.keys.PageDown):
			view := a.activeView()
			var cmd tea.Cmd
			*view, cmd = view.Update(msg)
			return a, cmd
		case key.Matches(msg, a.keys.Submit):
			text := strings.TrimSpace(a.input.Value())
			if text == "" {
				return a, nil
			}
			a.input.Reset()
			return a.submit(text)
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.relayout()
		return a, nil

	case TextChunkMsg:
		a.streaming = true
		a.refreshChat()
		return a, nil

	case TurnDoneMsg:
		a.busy = false
		a.streaming = false
		a.cancel = nil
		a.notice = strings.TrimSpace(msg.Output)
		a.lastError = ""
		if errors.Is(msg.Err, orchestrator.ErrExit) {
			return a, tea.Quit
		}
		if msg.Err != nil {
			a.lastError = a.orch.ErrorText(msg.Err)
		}
		a.refreshAll()
		return a, nil

	case ContextUpdateMsg:
		a.tokens = msg.Tokens
		a.tokenLimit = msg.Limit
		a.tokenPct = msg.Percent
		return a, nil
	}

	// 更新输入区 / Update input area
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

// submit 在后台执行一次输入；斜杠命令的输出收集后显示在状态区
// submit runs one input in the background. Slash command output is collected for the notice line.
func (a App) submit(text string) (App, tea.Cmd) {
	if a.busy {
		return a, nil
	}
	ctx, cancel := context.WithCancel(a.ctx)
	a.cancel = cancel
	a.busy = true
	a.notice = ""
	a.lastError = ""
	slash := strings.HasPrefix(text, "/")
	orch := a.orch
	return a, func() tea.Msg {
		defer cancel()
		var buf bytes.Buffer
		if slash {
			_, err := orch.RunInput(ctx, text, &buf)
			return TurnDoneMsg{Output: buf.String(), Err: err}
		}
		_, err := orch.RunInput(ctx, text, nil)
		return TurnDoneMsg{Err: err}
	}
}

func (a *App) activeView() *viewport.Model {
	switch a.activePanel {
	case PanelConversations:
		return &a.convView
	case PanelDiary:
		return &a.diaryView
	default:
		return &a.chatView
	}
}

func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Initializing..."
	}

	sidebarWidth := a.sidebarWidth()
	mainWidth := a.width - sidebarWidth
	if sidebarWidth > 0 {
		mainWidth-- // border
	}

	inputHeight := 5
	statusHeight := 1
	tabHeight := 1
	panelHeight := a.height - inputHeight - statusHeight - tabHeight
	if panelHeight < 3 {
		panelHeight = 3
	}

	tabs := a.renderTabs()
	panel := a.renderActivePanel(mainWidth, panelHeight)
	inputBox := a.theme.InputStyle.Width(mainWidth).Render(a.input.View())
	statusBar := a.renderStatusBar(a.width)

	main := lipgloss.JoinVertical(lipgloss.Left, tabs, panel, inputBox)
	if sidebarWidth > 0 {
		sidebar := a.renderSidebar(sidebarWidth, a.height-statusHeight)
		main = lipgloss.JoinHorizontal(lipgloss.Top, main, sidebar)
	}
	return lipgloss.JoinVertical(lipgloss.Left, main, statusBar)
}

// --- 内部方法 / Internal methods ---

func (a App) sidebarWidth() int {
	if a.width < 80 {
		return 0
	}
	w := a.width * 25 / 100
	if w < 20 {
		w = 20
	}
	if w > 40 {
		w = 40
	}
	return w
}

func (a *App) relayout() {
	mainWidth := a.width - a.sidebarWidth()
	if mainWidth < 20 {
		mainWidth = 20
	}
	panelHeight := a.height - 8
	if panelHeight < 3 {
		panelHeight = 3
	}

	a.chatView = viewport.New(mainWidth, panelHeight)
	a.convView = viewport.New(mainWidth, panelHeight)
	a.diaryView = viewport.New(mainWidth, panelHeight)
	a.input.SetWidth(mainWidth - 4)
	a.refreshAll()
}

func (a *App) refreshAll() {
	a.refreshChat()
	conv, _ := a.orch.Repository().Current()
	all := a.orch.Repository().List()
	a.convView.SetContent(RenderConversationList(all, conv.ID, a.theme))
	a.diaryView.SetContent(RenderDiaries(all, a.clock.Now(), a.diaryView.Width))
}

func (a *App) refreshChat() {
	conv, _ := a.orch.Repository().Current()
	a.chatView.SetContent(RenderMessages(conv.Messages, a.orch.Agent().AgentName, a.theme))
	a.chatView.GotoBottom()
}

// --- 渲染方法 / Render methods ---

func (a App) renderTabs() string {
	tabs := []struct {
		id   PanelID
		name string
	}{
		{PanelChat, a.locale.T("panel.chat")},
		{PanelConversations, a.locale.T("panel.conversations")},
		{PanelDiary, a.locale.T("panel.diary")},
	}

	parts := make([]string, 0, len(tabs))
	for _, tab := range tabs {
		style := a.theme.InactiveTabStyle
		if tab.id == a.activePanel {
			style = a.theme.ActiveTabStyle
		}
		parts = append(parts, style.Render(tab.name))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (a App) renderActivePanel(width, height int) string {
	style := lipgloss.NewStyle().
		Width(width).
		Height(height)

	var content string
	switch a.activePanel {
	case PanelConversations:
		content = a.convView.View()
	case PanelDiary:
		content = a.diaryView.View()
	default:
		content = a.chatView.View()
	}
	return style.Render(content)
}

func (a App) renderSidebar(width, height int) string {
	var parts []string

	parts = append(parts, a.theme.TitleStyle.Render(" AI Diary"))
	parts = append(parts, "")

	parts = append(parts, a.theme.TitleStyle.Render(" "+a.locale.T("sidebar.today")))
	parts = append(parts, "  "+datekey.Today(a.clock))
	parts = append(parts, "")

	parts = append(parts, a.theme.TitleStyle.Render(" "+a.locale.T("sidebar.context")))
	parts = append(parts, "  "+renderProgressBar(a.tokenPct, width-4))
	parts = append(parts, fmt.Sprintf("  %d / %d", a.tokens, a.tokenLimit))
	parts = append(parts, fmt.Sprintf("  %.1f%%", a.tokenPct))
	parts = append(parts, "")

	parts = append(parts, a.theme.TitleStyle.Render(" "+a.locale.T("sidebar.agent")))
	parts = append(parts, "  "+a.orch.Agent().AgentName)
	parts = append(parts, "")

	parts = append(parts, a.theme.TitleStyle.Render(" "+a.locale.T("sidebar.model")))
	parts = append(parts, "  "+a.orch.CurrentModel())

	style := a.theme.SidebarStyle.
		Width(width).
		Height(height)
	return style.Render(strings.Join(parts, "\n"))
}

func (a App) statusText() string {
	switch {
	case a.lastError != "":
		return a.theme.ErrorStyle.Render(firstLine(a.lastError))
	case a.streaming:
		return a.locale.T("status.streaming")
	case a.busy:
		return a.locale.T("status.summarizing")
	case a.notice != "":
		return firstLine(a.notice)
	}
	return a.locale.T("status.ready")
}

func (a App) renderStatusBar(width int) string {
	left := " " + a.statusText()
	right := a.locale.T("keys.hint") + " "

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		right = ""
		gap = 0
	}
	bar := left + strings.Repeat(" ", gap) + right
	return a.theme.StatusBarStyle.Width(width).Render(bar)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func renderProgressBar(percent float64, width int) string {
	if width < 4 {
		width = 4
	}
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Run 启动 Bubble Tea TUI；流式文本和上下文更新通过 Program.Send 送入
// Run starts the Bubble Tea TUI. Streamed text and context updates reach it through Program.Send.
func Run(ctx context.Context, orch *orchestrator.Orchestrator) error {
	app := NewApp(ctx, orch)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	orch.SetTextStreamCallback(func(chunk string) {
		p.Send(TextChunkMsg{Text: chunk})
	})
	orch.SetContextUpdateCallback(func(tokens, limit int, percent float64) {
		p.Send(ContextUpdateMsg{Tokens: tokens, Limit: limit, Percent: percent})
	})
	defer orch.SetTextStreamCallback(nil)
	defer orch.SetContextUpdateCallback(nil)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
