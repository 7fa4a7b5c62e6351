package handler

import (
	"context"
	"fmt"

	"github.com/hitoshi/invman/internal/auth"
	"github.com/hitoshi/invman/internal/model"
)

// AuthServiceAdapter は auth.Service と auth.TokenService を AuthServiceInterface に適合させるアダプタ。
type AuthServiceAdapter struct {
	credentials *auth.Service
	tokens      *auth.TokenService
}

// NewAuthServiceAdapter はAuthServiceAdapterを生成する。
func NewAuthServiceAdapter(credentials *auth.Service, tokens *auth.TokenService) *AuthServiceAdapter {
	return &AuthServiceAdapter{
		credentials: credentials,
		tokens:      tokens,
	}
}

// Register はユーザーを登録し、トークンを発行する。
func (a *AuthServiceAdapter) Register(ctx context.Context, name, email, password string) (*model.User, string, error) {
	user, err := a.credentials.Register(ctx, name, email, password)
	if err != nil {
		return nil, "", err
	}
	return a.issue(user)
}

// Login は資格情報を照合し、トークンを発行する。
func (a *AuthServiceAdapter) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, err := a.credentials.Verify(ctx, email, password)
	if err != nil {
		return nil, "", err
	}
	return a.issue(user)
}

// Profile はユーザーIDからユーザーを取得する。
func (a *AuthServiceAdapter) Profile(ctx context.Context, userID string) (*model.User, error) {
	return a.credentials.FindByID(ctx, userID)
}

func (a *AuthServiceAdapter) issue(user *model.User) (*model.User, string, error) {
	token, err := a.tokens.Issue(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}
	return user, token, nil
}
