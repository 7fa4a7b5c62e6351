// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/invman/internal/auth"
	"github.com/hitoshi/invman/internal/metrics"
	"github.com/hitoshi/invman/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey = contextKey("user_id")
	emailContextKey  = contextKey("email")
)

// TokenVerifier はアクセストークンの検証に必要なインターフェース。
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// トークン未指定は401、署名不正・形式不正・期限切れは403を返す。
// 検証済みのユーザーIDとメールアドレスをリクエストコンテキストに注入する。
// 判定はリクエストごとに行い、結果をキャッシュしない。
func NewAuthMiddleware(verifier TokenVerifier, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				collector.RecordTokenRejected(metrics.ReasonMissing)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewTokenRequiredError())
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				collector.RecordTokenRejected(metrics.ReasonInvalid)
				slog.Debug("token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewInvalidTokenError())
				return
			}

			recordUserID(r.Context(), claims.UserID)
			ctx := context.WithValue(r.Context(), userIDContextKey, claims.UserID)
			ctx = context.WithValue(ctx, emailContextKey, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーが無い、またはBearer形式でない場合は空文字を返す。
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// EmailFromContext はリクエストコンテキストからトークンのメールアドレスを取得する。
func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(emailContextKey).(string)
	return email
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
