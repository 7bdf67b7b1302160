package i18n

// JaMessages 日本語メッセージ
var JaMessages = map[string]string{
	"panel.chat":          "会話",
	"panel.conversations": "会話一覧",
	"panel.diary":         "日記",

	"sidebar.context": "コンテキスト",
	"sidebar.agent":   "エージェント",
	"sidebar.model":   "モデル",
	"sidebar.today":   "今日",

	"status.ready":       "準備完了",
	"status.streaming":   "応答中...",
	"status.summarizing": "日記を作成中...",
	"status.interrupted": "生成を中断しました",

	"input.placeholder": "メッセージを入力...（/help でコマンド一覧）",
	"keys.hint":         "enter 送信 · ctrl+n 新規 · ctrl+d 日記 · esc 中断 · ctrl+c 終了",

	"role.user": "あなた",

	"help.title":    "コマンド:",
	"cmd.new":       "/new [タイトル]        新しい会話を始める",
	"cmd.list":      "/list                  会話の一覧",
	"cmd.switch":    "/switch <番号|id>      会話を切り替える",
	"cmd.rename":    "/rename <タイトル>     現在の会話の名前を変更",
	"cmd.delete":    "/delete <番号|id>      会話を削除",
	"cmd.clear":     "/clear                 現在の会話のメッセージを消去",
	"cmd.search":    "/search <文字列>       タイトルとメッセージを検索",
	"cmd.regen":     "/regen                 最後の応答を再生成",
	"cmd.diary":     "/diary                 会話から今日の日記を作成",
	"cmd.diaries":   "/diaries               日記の一覧",
	"cmd.range":     "/range <開始> <終了>   期間内の会話",
	"cmd.export":    "/export [パス]         すべてを JSON にバックアップ",
	"cmd.import":    "/import <パス>         JSON バックアップから復元（全データを置き換え）",
	"cmd.markdown":  "/markdown [パス]       日記を Markdown で書き出し",
	"cmd.wipe":      "/wipe yes              全データを削除",
	"cmd.agent":     "/agent [name|personality <内容>]  ペルソナの表示・変更",
	"cmd.key":       "/key <APIキー>         API キーを設定して確認",
	"cmd.model":     "/model [名前]          モデルの表示・変更",
	"cmd.exit":      "/exit                  終了",
	"cmd.unknown":   "不明なコマンドです: /%s（/help を参照）",
	"cmd.usage":     "使い方: %s",
	"cmd.cancelled": "キャンセルしました",

	"conv.created":    "新しい会話: %s",
	"conv.switched":   "%s に切り替えました",
	"conv.renamed":    "%s に名前を変更しました",
	"conv.deleted":    "%s を削除しました",
	"conv.cleared":    "現在の会話を消去しました",
	"conv.none":       "まだ会話がありません。",
	"conv.no_current": "現在の会話がありません。メッセージを入力すると始まります。",
	"conv.messages":   "%d件",
	"search.none":     "%q に一致する会話はありません",

	"diary.saved":     "%s の日記を保存しました",
	"diary.none":      "まだ日記がありません。",
	"diary.too_short": "日記の作成には %d 件以上のメッセージが必要です（現在 %d 件）。",
	"diary.summary":   "要約",
	"diary.emotion":   "感情",
	"diary.keywords":  "キーワード",
	"regen.none":      "再生成できる応答がありません。",

	"export.done":   "%d 件の会話を %s に書き出しました",
	"import.done":   "%d 件の会話を %s から読み込みました",
	"markdown.done": "%d 件の日記を %s に書き出しました",
	"wipe.confirm":  "すべての会話と設定を削除します。/wipe yes で実行します。",
	"wipe.done":     "すべてのデータを削除しました。",

	"agent.show":        "エージェント: %s\n性格: %s",
	"agent.saved":       "エージェント設定を保存しました。",
	"key.saved":         "API キーを保存し、確認しました。",
	"key.unverified":    "API キーを保存しましたが、確認に失敗しました: %s",
	"key.missing":       "API キーが設定されていません。/key <APIキー> で設定してください。",
	"model.current":     "現在のモデル: %s",
	"model.set":         "モデルを %s に変更しました",
	"context.tokens":    "トークン: %d / %d (%.1f%%)",
	"context.precise":   "正確",
	"context.estimated": "推定",

	"error.validation": "入力が正しくありません: %s",
	"error.storage":    "保存に失敗しました: %s",
	"error.not_found":  "見つかりません: %s",
	"error.import":     "バックアップファイルが不正です:\n%s",
	"error.provider":   "AI エラー: %s",
	"error.not_loaded": "会話を読み込み中です。もう一度お試しください。",

	"app.welcome": "AI日記: %s と話しています。/help でコマンド一覧。",
	"app.bye":     "また明日。",
}
