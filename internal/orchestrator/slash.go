package orchestrator

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"aidiary/internal/apperr"
	"aidiary/internal/chat"
	"aidiary/internal/datekey"
	"aidiary/internal/diaryexport"
	"aidiary/internal/i18n"
	"aidiary/internal/settings"
	"aidiary/internal/transfer"

	"go.uber.org/zap"
)

// parseSlashCommand 解析 "/" 命令：返回 command 与 args（剩余部分）
// parseSlashCommand parses a "/" command: returns command and args (rest of line)
func parseSlashCommand(input string) (command string, args string, ok bool) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "/") {
		return "", "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "/"))
	if rest == "" {
		return "", "", true
	}
	parts := strings.SplitN(rest, " ", 2)
	command = strings.ToLower(strings.TrimSpace(parts[0]))
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}
	return command, args, true
}

// HelpText lists every slash command in the active locale.
func HelpText() string {
	keys := []string{
		"cmd.new", "cmd.list", "cmd.switch", "cmd.rename", "cmd.delete", "cmd.clear",
		"cmd.search", "cmd.regen", "cmd.diary", "cmd.diaries", "cmd.range",
		"cmd.export", "cmd.import", "cmd.markdown", "cmd.wipe",
		"cmd.agent", "cmd.key", "cmd.model", "cmd.exit",
	}
	lines := make([]string, 0, len(keys)+1)
	lines = append(lines, i18n.T("help.title"))
	for _, k := range keys {
		lines = append(lines, "  "+i18n.T(k))
	}
	return strings.Join(lines, "\n")
}

// runSlashCommand 处理 "/" 内建命令；失败以提示文本返回
// runSlashCommand handles "/" built-in commands. Failures come back as text;
// only ErrExit is returned as an error.
func (o *Orchestrator) runSlashCommand(ctx context.Context, command, args string, out io.Writer) (string, error) {
	switch command {
	case "", "help":
		return HelpText(), nil
	case "exit", "quit":
		return i18n.T("app.bye"), ErrExit
	case "new":
		conv, err := durable(ctx, o, "create conversation", func() (chat.Conversation, error) {
			return o.repo.CreateNew(ctx, args)
		})
		if err != nil {
			return o.ErrorText(err), nil
		}
		o.emitContextUpdate(o.CurrentContextStats())
		return i18n.T("conv.created", conv.Title), nil
	case "list":
		return o.renderConversationList(o.repo.List()), nil
	case "switch":
		if args == "" {
			return i18n.T("cmd.usage", i18n.T("cmd.switch")), nil
		}
		conv, err := o.resolveConversation(args)
		if err == nil {
			err = o.repo.SwitchTo(conv.ID)
		}
		if err != nil {
			return o.ErrorText(err), nil
		}
		o.emitContextUpdate(o.CurrentContextStats())
		return i18n.T("conv.switched", conv.Title), nil
	case "rename":
		if args == "" {
			return i18n.T("cmd.usage", i18n.T("cmd.rename")), nil
		}
		conv, ok := o.repo.Current()
		if !ok {
			return i18n.T("conv.no_current"), nil
		}
		if _, err := durable(ctx, o, "rename", func() (struct{}, error) {
			return struct{}{}, o.repo.RenameTitle(ctx, conv.ID, args)
		}); err != nil {
			return o.ErrorText(err), nil
		}
		return i18n.T("conv.renamed", args), nil
	case "delete":
		if args == "" {
			return i18n.T("cmd.usage", i18n.T("cmd.delete")), nil
		}
		conv, err := o.resolveConversation(args)
		if err == nil {
			_, err = durable(ctx, o, "delete", func() (struct{}, error) {
				return struct{}{}, o.repo.Delete(ctx, conv.ID)
			})
		}
		if err != nil {
			return o.ErrorText(err), nil
		}
		return i18n.T("conv.deleted", conv.Title), nil
	case "clear":
		if _, ok := o.repo.Current(); !ok {
			return i18n.T("conv.no_current"), nil
		}
		if _, err := durable(ctx, o, "clear", func() (struct{}, error) {
			return struct{}{}, o.repo.ClearMessages(ctx)
		}); err != nil {
			return o.ErrorText(err), nil
		}
		o.emitContextUpdate(o.CurrentContextStats())
		return i18n.T("conv.cleared"), nil
	case "search":
		found, err := o.repo.Search(args)
		if err != nil {
			return o.ErrorText(err), nil
		}
		if len(found) == 0 {
			return i18n.T("search.none", args), nil
		}
		return o.renderConversationList(found), nil
	case "range":
		fields := strings.Fields(args)
		if len(fields) != 2 {
			return i18n.T("cmd.usage", i18n.T("cmd.range")), nil
		}
		found, err := o.repo.ByDateRange(fields[0], fields[1])
		if err != nil {
			return o.ErrorText(err), nil
		}
		return o.renderConversationList(found), nil
	case "regen":
		if _, err := o.Regenerate(ctx, out); err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				return i18n.T("regen.none"), nil
			}
			return o.ErrorText(err), nil
		}
		return "", nil
	case "diary":
		conv, err := o.GenerateDiary(ctx)
		if err != nil {
			return o.ErrorText(err), nil
		}
		return i18n.T("diary.saved", diaryexport.FormatDate(conv.Date)) + "\n" + RenderDiary(*conv.Diary), nil
	case "diaries":
		return renderDiaryList(o.repo.DiaryEntries()), nil
	case "export":
		return o.exportSnapshot(ctx, args), nil
	case "import":
		if args == "" {
			return i18n.T("cmd.usage", i18n.T("cmd.import")), nil
		}
		return o.importSnapshot(ctx, args), nil
	case "markdown":
		path := o.exportPath(args, diaryexport.DefaultFileName)
		n, err := diaryexport.WriteFile(path, o.repo.List(), o.clock.Now())
		if err != nil {
			return o.ErrorText(err), nil
		}
		return i18n.T("markdown.done", n, path), nil
	case "wipe":
		if strings.ToLower(args) != "yes" {
			return i18n.T("wipe.confirm"), nil
		}
		if err := o.transfer.WipeAll(ctx); err != nil {
			return o.ErrorText(err), nil
		}
		if err := o.Start(ctx); err != nil {
			return o.ErrorText(err), nil
		}
		o.emitContextUpdate(o.CurrentContextStats())
		return i18n.T("wipe.done"), nil
	case "agent":
		return o.runAgentCommand(ctx, args), nil
	case "key":
		if args == "" {
			return i18n.T("cmd.usage", i18n.T("cmd.key")), nil
		}
		return o.setAPIKey(ctx, args), nil
	case "model":
		if args == "" {
			return i18n.T("model.current", o.CurrentModel()), nil
		}
		if err := o.provider.SetModel(args); err != nil {
			return o.ErrorText(err), nil
		}
		if o.persistModel != nil {
			if err := o.persistModel(args); err != nil {
				o.log.Warn("model not persisted", zap.String("model", args), zap.Error(err))
			}
		}
		return i18n.T("model.set", args), nil
	default:
		return i18n.T("cmd.unknown", command), nil
	}
}

// resolveConversation 按列表序号、完整 id 或唯一前缀查找会话
// resolveConversation finds a conversation by list number, full id or unique id prefix.
func (o *Orchestrator) resolveConversation(ref string) (chat.Conversation, error) {
	all := o.repo.List()
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(all) {
		return all[n-1], nil
	}
	var match []chat.Conversation
	for _, c := range all {
		if c.ID == ref {
			return c, nil
		}
		if strings.HasPrefix(c.ID, ref) {
			match = append(match, c)
		}
	}
	if len(match) == 1 {
		return match[0], nil
	}
	return chat.Conversation{}, apperr.NotFound("resolve", "conversation", ref)
}

func (o *Orchestrator) exportPath(arg string, defaultName func(string) string) string {
	if arg != "" {
		return arg
	}
	return filepath.Join(o.exportDir, defaultName(datekey.Today(o.clock)))
}

func (o *Orchestrator) exportSnapshot(ctx context.Context, arg string) string {
	snap, err := o.transfer.Export(ctx)
	if err != nil {
		return o.ErrorText(err)
	}
	path := o.exportPath(arg, transfer.DefaultFileName)
	if err := transfer.WriteFile(path, snap); err != nil {
		return o.ErrorText(err)
	}
	return i18n.T("export.done", len(snap.Conversations), path)
}

// importSnapshot 导入后重新加载仓库与人设
// importSnapshot replaces all data from the file, then reloads the repository and persona.
func (o *Orchestrator) importSnapshot(ctx context.Context, path string) string {
	snap, err := transfer.ReadFile(path)
	if err != nil {
		return o.ErrorText(err)
	}
	importErr := o.transfer.Import(ctx, snap)
	// Reload even after a partial import so the cache matches the store.
	if err := o.Start(ctx); err != nil && importErr == nil {
		importErr = err
	}
	if importErr != nil {
		return o.ErrorText(importErr)
	}
	o.emitContextUpdate(o.CurrentContextStats())
	return i18n.T("import.done", len(snap.Conversations), path)
}

func (o *Orchestrator) runAgentCommand(ctx context.Context, args string) string {
	a := o.Agent()
	if args == "" {
		return i18n.T("agent.show", a.AgentName, a.Personality)
	}
	field, value, _ := strings.Cut(args, " ")
	value = strings.TrimSpace(value)
	if value == "" {
		return i18n.T("cmd.usage", i18n.T("cmd.agent"))
	}
	switch strings.ToLower(field) {
	case "name":
		a.AgentName = value
	case "personality":
		a.Personality = value
	default:
		return i18n.T("cmd.usage", i18n.T("cmd.agent"))
	}
	if err := o.saveAgent(ctx, a); err != nil {
		return o.ErrorText(err)
	}
	return i18n.T("agent.saved")
}

func (o *Orchestrator) setAPIKey(ctx context.Context, key string) string {
	a := o.Agent()
	a.APIKey = key
	if err := o.saveAgent(ctx, a); err != nil {
		return o.ErrorText(err)
	}
	o.provider.SetAPIKey(key)
	if err := o.provider.ValidateKey(ctx); err != nil {
		return i18n.T("key.unverified", err.Error())
	}
	return i18n.T("key.saved")
}

func (o *Orchestrator) saveAgent(ctx context.Context, a settings.AgentSettings) error {
	saved, err := durable(ctx, o, "save agent", func() (settings.AgentSettings, error) {
		return o.settings.SaveAgent(ctx, a)
	})
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.agent = saved
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) renderConversationList(convs []chat.Conversation) string {
	if len(convs) == 0 {
		return i18n.T("conv.none")
	}
	current, _ := o.repo.Current()
	lines := make([]string, 0, len(convs))
	for i, c := range convs {
		marker := " "
		if c.ID == current.ID {
			marker = "*"
		}
		title := c.Title
		if title == "" {
			title = "-"
		}
		line := fmt.Sprintf("%s %2d. %s  %s  (%s)", marker, i+1, c.Date, title, i18n.T("conv.messages", len(c.Messages)))
		if c.Diary != nil {
			line += " 📝"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// RenderDiary formats one diary as plain text.
func RenderDiary(d chat.DiaryData) string {
	lines := []string{
		style(i18n.T("diary.summary"), ansiBold) + ": " + d.Summary,
	}
	if len(d.Emotion) > 0 {
		lines = append(lines, style(i18n.T("diary.emotion"), ansiBold)+": "+strings.Join(d.Emotion, ", "))
	}
	if len(d.Keywords) > 0 {
		lines = append(lines, style(i18n.T("diary.keywords"), ansiBold)+": "+strings.Join(d.Keywords, ", "))
	}
	return strings.Join(lines, "\n")
}

func renderDiaryList(entries []chat.DiaryEntry) string {
	if len(entries) == 0 {
		return i18n.T("diary.none")
	}
	lines := make([]string, 0, len(entries)*2)
	for _, e := range entries {
		lines = append(lines, style(diaryexport.FormatDate(e.Date), ansiCyan+";"+ansiBold))
		lines = append(lines, "  "+e.Summary)
	}
	return strings.Join(lines, "\n")
}
