package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/invman/internal/middleware"
	"github.com/hitoshi/invman/internal/model"
)

// maxJSONBodySize はJSONリクエストボディの上限サイズ。
const maxJSONBodySize = 1 << 20

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをJSONとして読み込む。
// 解析できない場合はVALIDATION_ERRORを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return model.NewValidationError("Invalid request body")
	}
	return nil
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIError以外は内部エラーとしてログに記録し、一般的なメッセージのみを返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation,
		model.ErrCodeDuplicateEmail,
		model.ErrCodeInvalidCredentials,
		model.ErrCodeDuplicateSKU,
		model.ErrCodeInvalidImage,
		model.ErrCodeImageTooLarge:
		return http.StatusBadRequest
	case model.ErrCodeTokenRequired:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidToken:
		return http.StatusForbidden
	case model.ErrCodeUserNotFound, model.ErrCodeProductNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
