package storage

import (
	"context"
	"encoding/json"

	"aidiary/internal/chat"
)

// Store 持久化接口：会话记录 + 设置两类数据，按日期建二级索引
// Store is the persistence interface for two record families (conversations
// and settings) with a secondary index by date.
//
// Every method initializes the store on first use. Missing records are
// reported as apperr NotFound, driver failures as apperr Storage.
type Store interface {
	// 会话记录 / Conversation records
	Put(ctx context.Context, conv chat.Conversation) error
	Get(ctx context.Context, id string) (chat.Conversation, error)
	// GetByDate 返回同一日期的全部记录，最近更新的在前
	// GetByDate returns every record for the date, most recently updated first.
	GetByDate(ctx context.Context, dateKey string) ([]chat.Conversation, error)
	GetAll(ctx context.Context) ([]chat.Conversation, error)
	Delete(ctx context.Context, id string) error

	// 设置 / Settings
	PutSetting(ctx context.Context, key string, value json.RawMessage) error
	GetSetting(ctx context.Context, key string) (json.RawMessage, error)
	Settings(ctx context.Context) (map[string]json.RawMessage, error)

	// Clear 原子地清空两类数据
	// Clear wipes both families atomically with respect to each other.
	Clear(ctx context.Context) error

	// 生命周期 / Lifecycle
	Init(ctx context.Context) error
	Close() error
}
