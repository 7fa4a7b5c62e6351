package middleware

import (
	"net/http"
	"strings"
)

var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Cross-Origin-Resource-Policy", "same-site"},
}

// NewSecurityHeadersMiddleware は全レスポンスに共通のセキュリティヘッダーを付与する。
// トークンを含みうるレスポンス（/api/auth/ 配下と、Authorization付きリクエスト）は
// Cache-Control: no-store でキャッシュを禁止する。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range securityHeaders {
				h.Set(kv[0], kv[1])
			}
			if carriesCredentials(r) {
				h.Set("Cache-Control", "no-store")
				h.Set("Pragma", "no-cache")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func carriesCredentials(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/auth/") || r.Header.Get("Authorization") != ""
}
