package conversation

import (
	"context"

	"aidiary/internal/apperr"
	"aidiary/internal/chat"
)

// AttachDiary stores d on the current conversation. Any input is accepted;
// the minimum-message rule belongs to whoever generated d.
func (r *Repository) AttachDiary(ctx context.Context, d chat.DiaryData) (chat.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return chat.Conversation{}, err
	}
	idx := r.currentIndex()
	if idx < 0 {
		return chat.Conversation{}, apperr.NotFound("attach diary", "current conversation", "")
	}
	updated := r.convs[idx].Clone()
	diary := d.Clone()
	updated.Diary = &diary
	updated.UpdatedAt = r.now()
	if err := r.persist(ctx, idx, updated); err != nil {
		return chat.Conversation{}, err
	}
	return updated.Clone(), nil
}

// DiaryEntries is the diary projection of the cache, recomputed per call.
func (r *Repository) DiaryEntries() []chat.DiaryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return chat.DiaryEntries(r.convs)
}
