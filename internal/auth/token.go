package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/invman/internal/model"
)

// DefaultTokenTTL はアクセストークンの有効期間。
const DefaultTokenTTL = 24 * time.Hour

var (
	// ErrInvalidToken は署名不一致・形式不正・期限切れのトークンを表す。
	ErrInvalidToken = errors.New("invalid token")
	// ErrEmptySecret は署名鍵が未設定であることを表す。
	ErrEmptySecret = errors.New("token secret must not be empty")
)

// Claims はアクセストークンに埋め込むクレーム。
// iat/expは登録済みクレームとして保持する。
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService はHS256署名のアクセストークンを発行・検証する。
// 状態を持たないため、失効は有効期限によってのみ行われる。
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption はTokenServiceの設定を変更する。
type TokenOption func(*TokenService)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// WithTTL はトークンの有効期間を変更する。0以下は無視する。
func WithTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewTokenService はTokenServiceを生成する。
func NewTokenService(secret []byte, opts ...TokenOption) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	s := &TokenService{
		secret: secret,
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL はトークンの有効期間を返す。
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue はユーザーのIDとメールアドレスを埋め込んだトークンを発行する。
func (s *TokenService) Issue(user *model.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、クレームを返す。
// 現在時刻が有効期限と同時刻以降の場合は期限切れとして扱う。
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
