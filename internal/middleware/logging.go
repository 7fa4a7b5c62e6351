package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// responseRecorder は最初に書き込まれたステータスコードと送信バイト数を記録する。
type responseRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int
	settled bool
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rr *responseRecorder) WriteHeader(code int) {
	if !rr.settled {
		rr.status = code
		rr.settled = true
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.settled = true
	n, err := rr.ResponseWriter.Write(b)
	rr.bytes += n
	return n, err
}

// requestLogFields は下流のミドルウェアがアクセスログに値を書き戻す先。
type requestLogFields struct {
	userID string
}

type logFieldsKey struct{}

// recordUserID は認証済みユーザーIDをアクセスログ用に記録する。
// ロギングミドルウェアの内側でない場合は何もしない。
func recordUserID(ctx context.Context, userID string) {
	if f, ok := ctx.Value(logFieldsKey{}).(*requestLogFields); ok {
		f.userID = userID
	}
}

// NewLoggingMiddleware はリクエストごとに http_request ログを1行出力するミドルウェアを返す。
// 出力項目は method, path, status, bytes, duration_ms と、認証済みなら user_id。
// ログレベルは5xxでError、4xxでWarn、それ以外はInfo。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			fields := &requestLogFields{}
			rec := newResponseRecorder(w)

			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), logFieldsKey{}, fields)))

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Int("bytes", rec.bytes),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			}
			userID := fields.userID
			if userID == "" {
				userID, _ = UserIDFromContext(r.Context())
			}
			if userID != "" {
				args = append(args, slog.String("user_id", userID))
			}

			logger.Log(r.Context(), levelForStatus(rec.status), "http_request", args...)
		})
	}
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
