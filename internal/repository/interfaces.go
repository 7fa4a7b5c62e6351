// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/invman/internal/model"
)

// ErrConflict は一意制約違反（メールアドレス、SKU）を表す。
// サービス層でドメインエラーに変換される。
var ErrConflict = errors.New("unique constraint violation")

// UserRepository はユーザーデータの永続化インターフェース。
// インメモリ実装とPostgreSQL実装を差し替え可能にするための抽象化。
type UserRepository interface {
	// Create はユーザーを作成する。
	// 同一メールアドレスのユーザーが存在する場合はErrConflictを返す。
	// 一意性チェックと挿入はアトミックに行われなければならない。
	Create(ctx context.Context, user *model.User) error

	// FindByEmail はメールアドレス（大文字小文字を区別）でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// ProductRepository は商品データの永続化インターフェース。
type ProductRepository interface {
	// List は全商品を登録順（作成日時の昇順）で返す。
	List(ctx context.Context) ([]*model.Product, error)

	// ListLatest は作成日時の降順で最大limit件の商品を返す。
	ListLatest(ctx context.Context, limit int) ([]*model.Product, error)

	// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Product, error)

	// Create は商品を作成する。SKUが重複する場合はErrConflictを返す。
	Create(ctx context.Context, product *model.Product) error

	// Update は商品を上書き更新する。
	// 存在しない場合はfalse、SKUが他の商品と重複する場合はErrConflictを返す。
	Update(ctx context.Context, product *model.Product) (bool, error)

	// Delete は指定IDの商品を削除する。存在しなかった場合はfalseを返す。
	Delete(ctx context.Context, id string) (bool, error)

	// ListImagePaths は商品が参照している画像パスの一覧を返す。
	// 孤立画像のクリーンアップで使用する。
	ListImagePaths(ctx context.Context) ([]string, error)
}
