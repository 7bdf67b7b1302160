package orchestrator

import (
	"context"
	"strings"

	"aidiary/internal/apperr"
	"aidiary/internal/chat"

	"go.uber.org/zap"
)

// DiaryTooShortError reports a conversation too short to summarize.
type DiaryTooShortError struct {
	Need int
	Have int
}

func (e *DiaryTooShortError) Error() string {
	return apperr.Validation("diary", "need at least %d messages, have %d", e.Need, e.Have).Error()
}

// Is lets errors.Is(err, apperr.ErrValidation) match.
func (e *DiaryTooShortError) Is(target error) bool {
	return target == apperr.ErrValidation
}

// GenerateDiary 汇总当前会话并将日记附加到该会话
// GenerateDiary summarizes the current conversation and attaches the result.
// The conversation needs at least MinDiaryMessages messages with content.
func (o *Orchestrator) GenerateDiary(ctx context.Context) (chat.Conversation, error) {
	conv, ok := o.repo.Current()
	if !ok {
		return chat.Conversation{}, apperr.NotFound("diary", "current conversation", "")
	}
	history := make([]chat.Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		if strings.TrimSpace(m.Content) != "" {
			history = append(history, m)
		}
	}
	if len(history) < o.minDiaryMessages {
		return chat.Conversation{}, &DiaryTooShortError{Need: o.minDiaryMessages, Have: len(history)}
	}

	d, err := o.provider.Summarize(ctx, history)
	if err != nil {
		o.log.Warn("summarize failed", zap.String("conversation", conv.ID), zap.Error(err))
		return chat.Conversation{}, err
	}
	return durable(ctx, o, "attach diary", func() (chat.Conversation, error) {
		return o.repo.AttachDiary(ctx, d)
	})
}
