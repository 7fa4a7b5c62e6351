// Package session はAPIサーバーに対するクライアント側のセッション管理を提供する。
//
// トークンとユーザー情報を永続ストレージに保持し、認証状態の変化を購読者に通知する。
// 認証が必要なリクエストには保存済みトークンをBearer認証として付与する。
package session

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// 永続ストレージのキー。
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// Storage はセッション情報を保持するキー・バリューストア。
// Setは渡されたすべての値を一括で反映する。
type Storage interface {
	// Get はキーの値を返す。存在しない場合はnilを返す。
	Get(ctx context.Context, key string) ([]byte, error)
	// Set は複数のキーを一括で保存する。
	Set(ctx context.Context, values map[string][]byte) error
	// Delete は指定キーを削除する。存在しないキーは無視する。
	Delete(ctx context.Context, keys ...string) error
}

// MemoryStorage はプロセス内で完結するStorage実装。テストや一時利用向け。
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStorage はMemoryStorageを生成する。
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string][]byte)}
}

// Get はキーの値のコピーを返す。
func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Set は複数のキーを一括で保存する。
func (m *MemoryStorage) Set(_ context.Context, values map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.values[k] = append([]byte(nil), v...)
	}
	return nil
}

// Delete は指定キーを削除する。
func (m *MemoryStorage) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// SQLiteStorage はSQLiteファイルに保存するStorage実装。
type SQLiteStorage struct {
	db *sql.DB
}

// OpenSQLiteStorage はpathのSQLiteデータベースを開き、テーブルを作成する。
// pathに":memory:"を指定するとインメモリDBになる。
func OpenSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	// :memory: は接続ごとに別DBになるため1接続に固定する
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS session (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session table: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Get はキーの値を返す。
func (s *SQLiteStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session[%s]: %w", key, err)
	}
	return value, nil
}

// Set は複数のキーを1トランザクションで保存する。
func (s *SQLiteStorage) Set(ctx context.Context, values map[string][]byte) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for k, v := range values {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO session (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value
			`, k, v); err != nil {
				return fmt.Errorf("failed to set session[%s]: %w", k, err)
			}
		}
		return nil
	})
}

// Delete は指定キーを1トランザクションで削除する。
func (s *SQLiteStorage) Delete(ctx context.Context, keys ...string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM session WHERE key = ?`, k); err != nil {
				return fmt.Errorf("failed to delete session[%s]: %w", k, err)
			}
		}
		return nil
	})
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
