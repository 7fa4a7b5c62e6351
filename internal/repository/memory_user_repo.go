package repository

import (
	"context"
	"sync"

	"github.com/hitoshi/invman/internal/model"
)

// MemoryUserRepo はプロセスメモリ上でユーザーを保持するリポジトリ。
// DATABASE_URL未設定時のデモ用途。再起動でデータは失われる。
type MemoryUserRepo struct {
	mu      sync.RWMutex
	byID    map[string]*model.User
	byEmail map[string]string // email -> id
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]string),
	}
}

// Create はユーザーを作成する。
// メールアドレスの一意性チェックと挿入は同一ロック内で行う。
func (r *MemoryUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return ErrConflict
	}
	if _, exists := r.byID[user.ID]; exists {
		return ErrConflict
	}

	u := *user
	r.byID[u.ID] = &u
	r.byEmail[u.Email] = u.ID
	return nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	u := *r.byID[id]
	return &u, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	u := *user
	return &u, nil
}

// compile-time interface check
var _ UserRepository = (*MemoryUserRepo)(nil)
