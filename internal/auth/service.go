// Package auth はパスワード認証とアクセストークンの発行・検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/invman/internal/metrics"
	"github.com/hitoshi/invman/internal/model"
	"github.com/hitoshi/invman/internal/repository"
)

// dummyPassword は未登録メールアドレスでのログイン時に照合するダミーのパスワード。
// 登録済みかどうかで応答時間が変わらないようにする。
const dummyPassword = "invman-dummy-password"

// Service はユーザーの登録とパスワード照合を担う認証情報ストア。
type Service struct {
	users   repository.UserRepository
	hasher  PasswordHasher
	metrics metrics.MetricsCollector
	now     func() time.Time
	newID   func() string

	dummyOnce sync.Once
	dummyHash string
}

// ServiceOption はServiceの設定を変更する。
type ServiceOption func(*Service)

// WithMetrics はメトリクス収集先を設定する。
func WithMetrics(m metrics.MetricsCollector) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithServiceClock は作成日時に使う時刻関数を差し替える。
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator はユーザーID生成関数を差し替える。
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *Service) {
		s.newID = newID
	}
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, hasher PasswordHasher, opts ...ServiceOption) *Service {
	s := &Service{
		users:   users,
		hasher:  hasher,
		metrics: metrics.Nop{},
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register は新しいユーザーを登録する。
// いずれかの項目が空の場合はVALIDATION_ERROR、メールアドレスが登録済みの場合はDUPLICATE_EMAILを返す。
func (s *Service) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || password == "" {
		s.metrics.RecordRegister(metrics.ResultInvalid)
		return nil, model.NewValidationError("All fields are required")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		s.metrics.RecordRegister(metrics.ResultError)
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		s.metrics.RecordRegister(metrics.ResultDuplicate)
		return nil, model.NewDuplicateEmailError()
	}

	start := time.Now()
	hash, err := s.hasher.Hash(password)
	s.metrics.RecordPasswordHash(time.Since(start))
	if errors.Is(err, ErrPasswordTooLong) {
		s.metrics.RecordRegister(metrics.ResultInvalid)
		return nil, model.NewValidationError("Password must be at most 72 bytes")
	}
	if err != nil {
		s.metrics.RecordRegister(metrics.ResultError)
		return nil, err
	}

	user := &model.User{
		ID:           s.newID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}

	// 検索と作成の間に同一メールアドレスが登録された場合はストア側の一意制約で検出する
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.metrics.RecordRegister(metrics.ResultDuplicate)
			return nil, model.NewDuplicateEmailError()
		}
		s.metrics.RecordRegister(metrics.ResultError)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.RecordRegister(metrics.ResultSuccess)
	slog.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// Verify はメールアドレスとパスワードを照合する。
// 未登録のメールアドレスとパスワード不一致はどちらも同一のINVALID_CREDENTIALSを返す。
func (s *Service) Verify(ctx context.Context, email, password string) (*model.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		s.metrics.RecordLogin(metrics.ResultInvalid)
		return nil, model.NewValidationError("Email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		s.metrics.RecordLogin(metrics.ResultError)
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	hash := s.dummyPasswordHash()
	if user != nil {
		hash = user.PasswordHash
	}

	ok := false
	if hash != "" {
		start := time.Now()
		ok, err = s.hasher.Compare(hash, password)
		s.metrics.RecordPasswordHash(time.Since(start))
		if err != nil {
			s.metrics.RecordLogin(metrics.ResultError)
			return nil, err
		}
	}

	if user == nil || !ok {
		s.metrics.RecordLogin(metrics.ResultInvalidCredentials)
		return nil, model.NewInvalidCredentialsError()
	}

	s.metrics.RecordLogin(metrics.ResultSuccess)
	slog.Info("user logged in", slog.String("user_id", user.ID))
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// dummyPasswordHash はダミー照合用のハッシュを初回利用時に生成して返す。
func (s *Service) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			slog.Error("failed to prepare dummy password hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
