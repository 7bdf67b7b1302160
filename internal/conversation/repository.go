// Package conversation owns the in-memory list of conversation records and
// the "current conversation" pointer, and keeps both consistent with the
// record store.
//
// Durable operations build an updated copy, persist it, and swap it into
// the cache only after the store accepted it, so a failed write never
// leaves the cache ahead of the disk. Values handed to callers are deep
// copies; the cache is only ever mutated through Repository methods.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"aidiary/internal/apperr"
	"aidiary/internal/chat"
	"aidiary/internal/datekey"
	"aidiary/internal/storage"

	"go.uber.org/zap"
)

// State is the load state of a Repository.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// ErrNotLoaded is returned by every operation invoked before the first
// successful Load. Calls made while a Load is running wait for it instead.
var ErrNotLoaded = errors.New("conversation repository is not loaded")

// Options configures a Repository. Zero values select the defaults.
type Options struct {
	Clock  datekey.Clock
	Policy TargetPolicy
	NewID  func(dateKey string) string
	Logger *zap.Logger
}

type Repository struct {
	store  storage.Store
	clock  datekey.Clock
	policy TargetPolicy
	newID  func(string) string
	log    *zap.Logger

	state atomic.Int32

	mu        sync.RWMutex
	convs     []chat.Conversation
	currentID string
}

func New(store storage.Store, opts Options) *Repository {
	r := &Repository{
		store:  store,
		clock:  opts.Clock,
		policy: opts.Policy,
		newID:  opts.NewID,
		log:    opts.Logger,
	}
	if r.clock == nil {
		r.clock = datekey.SystemClock{}
	}
	if r.policy == nil {
		r.policy = CurrentOrCreate
	}
	if r.newID == nil {
		r.newID = NewConversationID
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	return r
}

// State reports the load state without waiting for an in-flight Load.
func (r *Repository) State() State {
	return State(r.state.Load())
}

// Load replaces the cache with every stored record, newest date first, and
// points current at today's record when there is one. With several records
// for today the most recently updated wins. Load is also the way to refresh
// after a wipe or import.
func (r *Repository) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.State()
	r.state.Store(int32(StateLoading))
	all, err := r.store.GetAll(ctx)
	if err != nil {
		r.state.Store(int32(prev))
		return err
	}
	chat.SortNewestFirst(all)

	r.convs = all
	r.currentID = ""
	today := datekey.Today(r.clock)
	for _, c := range all {
		if c.Date == today {
			r.currentID = c.ID
			break
		}
	}
	r.state.Store(int32(StateReady))
	r.log.Debug("conversations loaded", zap.Int("count", len(all)), zap.String("current", r.currentID))
	return nil
}

// ready must be called with r.mu held.
func (r *Repository) ready() error {
	if r.State() != StateReady {
		return ErrNotLoaded
	}
	return nil
}

func (r *Repository) indexOf(id string) int {
	for i := range r.convs {
		if r.convs[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Repository) currentIndex() int {
	if r.currentID == "" {
		return -1
	}
	return r.indexOf(r.currentID)
}

func (r *Repository) now() string {
	return chat.FormatTimestamp(r.clock.Now())
}

func (r *Repository) newConversation(title string) chat.Conversation {
	now := r.clock.Now()
	date := datekey.ToKey(now)
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle(date)
	}
	ts := chat.FormatTimestamp(now)
	return chat.Conversation{
		ID:        r.newID(date),
		Date:      date,
		Title:     title,
		Messages:  []chat.Message{},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// DefaultTitle is the title given to conversations created without one.
func DefaultTitle(dateKey string) string {
	return dateKey + "の会話"
}

// persist writes conv and, on success, replaces it in the cache at idx
// (or prepends it when idx is -1). Must be called with r.mu held.
func (r *Repository) persist(ctx context.Context, idx int, conv chat.Conversation) error {
	if err := r.store.Put(ctx, conv); err != nil {
		return err
	}
	if idx < 0 {
		r.convs = append([]chat.Conversation{conv}, r.convs...)
		return nil
	}
	r.convs[idx] = conv
	return nil
}

// CreateNew stores a fresh record for today, prepends it and makes it
// current. It does not look for an existing record for today.
func (r *Repository) CreateNew(ctx context.Context, title string) (chat.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return chat.Conversation{}, err
	}
	conv := r.newConversation(title)
	if err := r.persist(ctx, -1, conv); err != nil {
		return chat.Conversation{}, err
	}
	r.currentID = conv.ID
	r.log.Debug("conversation created", zap.String("id", conv.ID))
	return conv.Clone(), nil
}

// SwitchTo makes id current. Only the cache is consulted.
func (r *Repository) SwitchTo(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return err
	}
	if r.indexOf(id) < 0 {
		return apperr.NotFound("switch", "conversation", id)
	}
	r.currentID = id
	return nil
}

func (r *Repository) RenameTitle(ctx context.Context, id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return err
	}
	idx := r.indexOf(id)
	if idx < 0 {
		return apperr.NotFound("rename", "conversation", id)
	}
	updated := r.convs[idx].Clone()
	updated.Title = title
	updated.UpdatedAt = r.now()
	return r.persist(ctx, idx, updated)
}

// Delete removes the record from the store and the cache. Deleting the
// current record leaves no current conversation.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return err
	}
	idx := r.indexOf(id)
	if idx < 0 {
		return apperr.NotFound("delete", "conversation", id)
	}
	// Already gone from the store still means gone.
	if err := r.store.Delete(ctx, id); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	r.convs = append(r.convs[:idx:idx], r.convs[idx+1:]...)
	if r.currentID == id {
		r.currentID = ""
	}
	r.log.Debug("conversation deleted", zap.String("id", id))
	return nil
}

// ClearMessages empties the current record, keeping its id, date and title.
func (r *Repository) ClearMessages(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return err
	}
	idx := r.currentIndex()
	if idx < 0 {
		return apperr.NotFound("clear", "current conversation", "")
	}
	updated := r.convs[idx].Clone()
	updated.Messages = []chat.Message{}
	updated.Metadata = chat.Metadata{}
	updated.UpdatedAt = r.now()
	return r.persist(ctx, idx, updated)
}

// Search filters the cache by a case-insensitive substring of the title or
// of any message. A blank query returns everything. Unpersisted streaming
// content is searched too.
func (r *Repository) Search(query string) ([]chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ready(); err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]chat.Conversation, 0, len(r.convs))
	for _, c := range r.convs {
		if q == "" || matches(c, q) {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func matches(c chat.Conversation, lowered string) bool {
	if strings.Contains(strings.ToLower(c.Title), lowered) {
		return true
	}
	for _, m := range c.Messages {
		if strings.Contains(strings.ToLower(m.Content), lowered) {
			return true
		}
	}
	return false
}

// ByDateRange returns cached records with from <= date <= to.
func (r *Repository) ByDateRange(from, to string) ([]chat.Conversation, error) {
	if _, err := datekey.FromKey(from); err != nil {
		return nil, err
	}
	if _, err := datekey.FromKey(to); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.ready(); err != nil {
		return nil, err
	}
	out := make([]chat.Conversation, 0)
	for _, c := range r.convs {
		if datekey.InRange(c.Date, from, to) {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

// Current returns a copy of the current record.
func (r *Repository) Current() (chat.Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.ready() != nil {
		return chat.Conversation{}, false
	}
	idx := r.currentIndex()
	if idx < 0 {
		return chat.Conversation{}, false
	}
	return r.convs[idx].Clone(), true
}

// List returns a copy of every cached record in display order.
func (r *Repository) List() []chat.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]chat.Conversation, 0, len(r.convs))
	for _, c := range r.convs {
		out = append(out, c.Clone())
	}
	return out
}
