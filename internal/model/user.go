// Package model はドメインモデルを定義する。
package model

import "time"

// User は登録済みユーザー（Identity）を表す。
// PasswordHashはbcryptハッシュであり、平文パスワードは保持しない。
// 登録後にIDが変わることはない。
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserSummary はAPIレスポンスおよびクライアント側で保持するユーザー情報。
// パスワードハッシュを含まない。
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Summary はUserからUserSummaryを生成する。
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}
