package i18n

// EnMessages English message catalog
var EnMessages = map[string]string{
	// UI (TUI/REPL) - Panel titles
	"panel.chat":          "Chat",
	"panel.conversations": "Conversations",
	"panel.diary":         "Diary",

	// UI (TUI sidebar)
	"sidebar.context": "Context",
	"sidebar.agent":   "Agent",
	"sidebar.model":   "Model",
	"sidebar.today":   "Today",

	// UI - Status bar
	"status.ready":       "Ready",
	"status.streaming":   "Streaming...",
	"status.summarizing": "Writing diary...",
	"status.interrupted": "Generation interrupted",

	// UI - Input
	"input.placeholder": "Type a message... (/help for commands)",
	"keys.hint":         "enter send · ctrl+n new · ctrl+d diary · esc interrupt · ctrl+c quit",

	// Roles
	"role.user": "You",

	// Commands
	"help.title":    "Commands:",
	"cmd.new":       "/new [title]           start a new conversation",
	"cmd.list":      "/list                  list conversations",
	"cmd.switch":    "/switch <n|id>         switch conversation",
	"cmd.rename":    "/rename <title>        rename the current conversation",
	"cmd.delete":    "/delete <n|id>         delete a conversation",
	"cmd.clear":     "/clear                 remove all messages from the current conversation",
	"cmd.search":    "/search <text>         search titles and messages",
	"cmd.regen":     "/regen                 regenerate the last answer",
	"cmd.diary":     "/diary                 write today's diary from the conversation",
	"cmd.diaries":   "/diaries               list diaries",
	"cmd.range":     "/range <from> <to>     conversations between two dates",
	"cmd.export":    "/export [path]         back up everything to JSON",
	"cmd.import":    "/import <path>         restore from a JSON backup (replaces all data)",
	"cmd.markdown":  "/markdown [path]       export diaries as Markdown",
	"cmd.wipe":      "/wipe yes              delete all data",
	"cmd.agent":     "/agent [name|personality <text>]  show or change the persona",
	"cmd.key":       "/key <api-key>         set and verify the API key",
	"cmd.model":     "/model [name]          show or change the model",
	"cmd.exit":      "/exit                  quit",
	"cmd.unknown":   "Unknown command: /%s (try /help)",
	"cmd.usage":     "Usage: %s",
	"cmd.cancelled": "Cancelled",

	// Conversations
	"conv.created":    "New conversation: %s",
	"conv.switched":   "Switched to %s",
	"conv.renamed":    "Renamed to %s",
	"conv.deleted":    "Deleted %s",
	"conv.cleared":    "Cleared the current conversation",
	"conv.none":       "No conversations yet.",
	"conv.no_current": "No current conversation. Type a message to start one.",
	"conv.messages":   "%d messages",
	"search.none":     "No matches for %q",

	// Diary
	"diary.saved":     "Diary saved for %s",
	"diary.none":      "No diaries yet.",
	"diary.too_short": "At least %d messages are needed to write a diary (have %d).",
	"diary.summary":   "Summary",
	"diary.emotion":   "Emotions",
	"diary.keywords":  "Keywords",
	"regen.none":      "Nothing to regenerate.",

	// Transfer
	"export.done":   "Exported %d conversations to %s",
	"import.done":   "Imported %d conversations from %s",
	"markdown.done": "Wrote %d diary entries to %s",
	"wipe.confirm":  "This deletes every conversation and setting. Run /wipe yes to confirm.",
	"wipe.done":     "All data deleted.",

	// Agent / provider
	"agent.show":        "Agent: %s\nPersonality: %s",
	"agent.saved":       "Agent settings saved.",
	"key.saved":         "API key saved and verified.",
	"key.unverified":    "API key saved, but verification failed: %s",
	"key.missing":       "No API key configured. Set one with /key <api-key>.",
	"model.current":     "Current model: %s",
	"model.set":         "Model set to %s",
	"context.tokens":    "Tokens: %d / %d (%.1f%%)",
	"context.precise":   "precise",
	"context.estimated": "estimated",

	// Errors
	"error.validation": "Invalid input: %s",
	"error.storage":    "Could not save: %s",
	"error.not_found":  "Not found: %s",
	"error.import":     "The backup file is invalid:\n%s",
	"error.provider":   "AI error: %s",
	"error.not_loaded": "Still loading conversations, try again.",

	// Startup
	"app.welcome": "AI Diary: talking with %s. /help for commands.",
	"app.bye":     "See you tomorrow.",
}
