package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost はパスワードハッシュのbcryptコスト。
const DefaultBcryptCost = 10

// ErrPasswordTooLong はbcryptが扱えない長さ（72バイト超）のパスワードを表す。
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// PasswordHasher はパスワードのハッシュ化と照合を提供する。
type PasswordHasher interface {
	// Hash はパスワードのソルト付きハッシュを生成する。
	Hash(password string) (string, error)
	// Compare はパスワードがハッシュと一致するかを返す。
	// 不一致は(false, nil)、ハッシュ形式の異常はerrorを返す。
	Compare(hash, password string) (bool, error)
}

// BcryptHasher はbcryptによるPasswordHasherの実装。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はBcryptHasherを生成する。
// 範囲外のコストが指定された場合はDefaultBcryptCostを使用する。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Cost は使用するbcryptコストを返す。
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash はパスワードのbcryptハッシュを生成する。
func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Compare はパスワードとbcryptハッシュを照合する。
func (h *BcryptHasher) Compare(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, fmt.Errorf("failed to compare password: %w", err)
	}
}

// compile-time interface check
var _ PasswordHasher = (*BcryptHasher)(nil)
