package middleware

import "net/http"

// corsHeaders はSPAからのAPI呼び出しに必要なCORSヘッダー。
// 認証はBearerトークンで行うため、Cookieを伴う資格情報は許可しない。
var corsHeaders = map[string]string{
	"Access-Control-Allow-Methods":  "GET, POST, PUT, DELETE, OPTIONS",
	"Access-Control-Allow-Headers":  "Authorization, Content-Type",
	"Access-Control-Expose-Headers": "Retry-After",
	"Access-Control-Max-Age":        "86400",
}

// NewCORSMiddleware はallowedOriginからのリクエストを許可するミドルウェアを返す。
// プリフライト（OPTIONS）は後続に渡さず204で応答する。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowedOrigin)
			h.Add("Vary", "Origin")
			for k, v := range corsHeaders {
				h.Set(k, v)
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
