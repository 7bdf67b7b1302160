package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"aidiary/internal/apperr"
	"aidiary/internal/chat"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrClosed is returned (wrapped as a storage error) after Close.
var ErrClosed = errors.New("store is closed")

// SQLiteStore 基于 SQLite (WAL 模式) 的持久化实现，首次使用时惰性初始化
// SQLiteStore implements Store on SQLite in WAL mode. The database is opened
// lazily on first use; concurrent first callers share a single open.
type SQLiteStore struct {
	path string
	log  *zap.Logger

	mu     sync.Mutex
	db     *sql.DB
	opens  int
	closed bool
}

// NewSQLiteStore 创建 store 句柄，不打开数据库
// NewSQLiteStore returns a handle; nothing touches the disk until Init or
// the first operation.
func NewSQLiteStore(dbPath string, log *zap.Logger) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLiteStore{path: dbPath, log: log}, nil
}

// Init 显式初始化，幂等
// Init opens the database and applies migrations. It is idempotent.
func (s *SQLiteStore) Init(ctx context.Context) error {
	_, err := s.handle(ctx)
	return err
}

// Close 关闭数据库连接 / Close the database connection
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) handle(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, apperr.Storage("init", ErrClosed)
	}
	if s.db != nil {
		return s.db, nil
	}
	db, err := openSQLite(ctx, s.path, s.log)
	if err != nil {
		return nil, apperr.Storage("init", err)
	}
	s.db = db
	s.opens++
	return db, nil
}

func openSQLite(ctx context.Context, dbPath string, log *zap.Logger) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// 单连接：SQLite 单写者 / one connection, SQLite has a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}
	if err := runMigrations(ctx, db, log); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func runMigrations(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		body, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := applyMigration(ctx, db, version, name, string(body)); err != nil {
			return err
		}
		log.Info("applied migration", zap.Int("version", version), zap.String("file", name))
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int, name, body string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	desc := strings.TrimSuffix(strings.SplitN(name, "_", 2)[1], ".sql")
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
		version, desc, nowUTC()); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	return tx.Commit()
}

// --- Conversation Operations ---

func (s *SQLiteStore) Put(ctx context.Context, conv chat.Conversation) error {
	if strings.TrimSpace(conv.ID) == "" {
		return apperr.Validation("put", "conversation id is empty")
	}
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(conv)
	if err != nil {
		return apperr.Storage("put", fmt.Errorf("encode %s: %w", conv.ID, err))
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO conversations (id, date, updated_at, doc) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			updated_at = excluded.updated_at,
			doc = excluded.doc`,
		conv.ID, conv.Date, conv.UpdatedAt, string(doc))
	return apperr.Storage("put", err)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (chat.Conversation, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return chat.Conversation{}, err
	}
	var doc string
	err = db.QueryRowContext(ctx, `SELECT doc FROM conversations WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Conversation{}, apperr.NotFound("get", "conversation", id)
	}
	if err != nil {
		return chat.Conversation{}, apperr.Storage("get", err)
	}
	return decodeDoc(doc)
}

func (s *SQLiteStore) GetByDate(ctx context.Context, dateKey string) ([]chat.Conversation, error) {
	convs, err := s.query(ctx, "get by date", `SELECT doc FROM conversations WHERE date = ?`, dateKey)
	if err != nil {
		return nil, err
	}
	chat.SortNewestFirst(convs)
	return convs, nil
}

func (s *SQLiteStore) GetAll(ctx context.Context) ([]chat.Conversation, error) {
	return s.query(ctx, "get all", `SELECT doc FROM conversations ORDER BY date DESC, id ASC`)
}

func (s *SQLiteStore) query(ctx context.Context, op, q string, args ...any) ([]chat.Conversation, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	defer rows.Close()

	out := make([]chat.Conversation, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, apperr.Storage(op, err)
		}
		conv, err := decodeDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(op, err)
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return apperr.Storage("delete", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("delete", "conversation", id)
	}
	return nil
}

// --- Settings Operations ---

func (s *SQLiteStore) PutSetting(ctx context.Context, key string, value json.RawMessage) error {
	if strings.TrimSpace(key) == "" {
		return apperr.Validation("put setting", "setting key is empty")
	}
	if !json.Valid(value) {
		return apperr.Validation("put setting", "value for %q is not valid JSON", key)
	}
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), nowUTC())
	return apperr.Storage("put setting", err)
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (json.RawMessage, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	var value string
	err = db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("get setting", "setting", key)
	}
	if err != nil {
		return nil, apperr.Storage("get setting", err)
	}
	return json.RawMessage(value), nil
}

func (s *SQLiteStore) Settings(ctx context.Context) (map[string]json.RawMessage, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, apperr.Storage("settings", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, apperr.Storage("settings", err)
		}
		out[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("settings", err)
	}
	return out, nil
}

// Clear 在单个事务中清空两张表
// Clear empties both tables inside one transaction.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("clear", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{`DELETE FROM conversations`, `DELETE FROM settings`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return apperr.Storage("clear", err)
		}
	}
	return apperr.Storage("clear", tx.Commit())
}

func decodeDoc(doc string) (chat.Conversation, error) {
	var conv chat.Conversation
	if err := json.Unmarshal([]byte(doc), &conv); err != nil {
		return chat.Conversation{}, apperr.Storage("decode", err)
	}
	return conv, nil
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
