package orchestrator

import (
	"context"
	"errors"
	"io"
	"strings"

	"aidiary/internal/apperr"
	"aidiary/internal/chat"

	"go.uber.org/zap"
)

// RunTurn 保存用户消息，流式生成回复并在完成后持久化
// RunTurn stores the user message, streams the reply into an assistant
// placeholder and persists the final text once the stream completes.
//
// A stream that fails before producing any text removes the placeholder.
// One that fails midway keeps the partial text in memory only, so a reload
// shows the last durable state.
func (o *Orchestrator) RunTurn(ctx context.Context, userInput string, out io.Writer) (string, error) {
	if strings.TrimSpace(userInput) == "" {
		return "", apperr.Validation("turn", "message is empty")
	}
	if o.provider == nil {
		return "", errors.New("provider unavailable")
	}

	userMsg := chat.Message{ID: o.newMessageID(), Role: chat.RoleUser, Content: userInput}
	conv, err := durable(ctx, o, "add user message", func() (chat.Conversation, error) {
		return o.repo.AddMessage(ctx, userMsg)
	})
	if err != nil {
		return "", err
	}
	history := conv.Messages

	placeholder := chat.Message{
		ID:        o.newMessageID(),
		Role:      chat.RoleAssistant,
		Timestamp: chat.FormatTimestamp(o.clock.Now()),
	}
	if _, err := durable(ctx, o, "add placeholder", func() (chat.Conversation, error) {
		return o.repo.AddMessage(ctx, placeholder)
	}); err != nil {
		return "", err
	}

	text, err := o.streamReply(ctx, history, placeholder.ID, out)
	if err != nil {
		o.log.Warn("turn failed", zap.String("message", placeholder.ID), zap.Int("partial", len(text)), zap.Error(err))
		if text == "" {
			o.dropPlaceholder(ctx, placeholder.ID)
		}
		return text, err
	}
	return text, o.finalize(ctx, placeholder, text)
}

// Regenerate 重新生成当前会话最后一条回复，沿用其 id 以原位替换
// Regenerate replaces the last assistant answer of the current conversation
// in place. On failure the previous answer is restored.
func (o *Orchestrator) Regenerate(ctx context.Context, out io.Writer) (string, error) {
	if o.provider == nil {
		return "", errors.New("provider unavailable")
	}
	conv, ok := o.repo.Current()
	if !ok {
		return "", apperr.NotFound("regenerate", "current conversation", "")
	}
	last := -1
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Role == chat.RoleAssistant {
			last = i
			break
		}
	}
	if last < 0 {
		return "", apperr.NotFound("regenerate", "assistant message", "")
	}
	prev := conv.Messages[last]
	history := conv.Messages[:last]

	if err := o.repo.UpdateMessageContent(prev.ID, ""); err != nil {
		return "", err
	}
	text, err := o.streamReply(ctx, history, prev.ID, out)
	if err == nil && text == "" {
		err = errors.New("empty reply")
	}
	if err != nil {
		o.log.Warn("regenerate failed", zap.String("message", prev.ID), zap.Error(err))
		_ = o.repo.UpdateMessageContent(prev.ID, prev.Content)
		return "", err
	}
	reply := prev
	reply.Timestamp = chat.FormatTimestamp(o.clock.Now())
	return text, o.finalize(ctx, reply, text)
}

// streamReply 将流式增量写入 replyID 的临时内容
// streamReply feeds stream increments into the ephemeral content of replyID
// and returns the accumulated text.
func (o *Orchestrator) streamReply(ctx context.Context, history []chat.Message, replyID string, out io.Writer) (string, error) {
	prompt, window := o.assembler.Build(o.Agent(), history)
	o.emitContextUpdate(o.stats(prompt, window))

	stream, err := o.provider.Stream(ctx, window, prompt)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	renderer := newAnswerStreamRenderer(out)
	defer renderer.Finish()

	var text strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return text.String(), nil
		}
		if err != nil {
			return text.String(), err
		}
		if chunk == "" {
			continue
		}
		text.WriteString(chunk)
		if err := o.repo.UpdateMessageContent(replyID, text.String()); err != nil {
			return text.String(), err
		}
		renderer.Append(chunk)
		if o.onTextChunk != nil {
			o.onTextChunk(chunk)
		}
	}
}

// finalize 一次性持久化完整回复
// finalize makes the streamed text durable with a single replace.
func (o *Orchestrator) finalize(ctx context.Context, reply chat.Message, text string) error {
	final := reply
	final.Content = text
	conv, err := durable(ctx, o, "finalize reply", func() (chat.Conversation, error) {
		return o.repo.AddMessage(ctx, final)
	})
	if err != nil {
		return err
	}
	o.emitContextUpdate(o.stats(o.assembler.Build(o.Agent(), conv.Messages)))
	return nil
}

// dropPlaceholder removes an empty placeholder even when ctx was cancelled.
func (o *Orchestrator) dropPlaceholder(ctx context.Context, id string) {
	bg := context.WithoutCancel(ctx)
	if _, err := durable(bg, o, "drop placeholder", func() (struct{}, error) {
		return struct{}{}, o.repo.DeleteMessage(bg, id)
	}); err != nil {
		o.log.Warn("placeholder not removed", zap.String("message", id), zap.Error(err))
	}
}
