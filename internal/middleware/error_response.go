package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/invman/internal/model"
)

// ErrorResponseBody はエラーレスポンスのJSON形式。
// messageはクライアントがそのまま表示する文言。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

func newErrorResponseBody(apiErr *model.APIError) ErrorResponseBody {
	return ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
}

// WriteErrorResponse はapiErrをstatusで書き込む。
// apiErrがnilの場合は500の内部エラーとして書き込む。
func WriteErrorResponse(w http.ResponseWriter, status int, apiErr *model.APIError) {
	if apiErr == nil {
		status, apiErr = http.StatusInternalServerError, model.NewInternalError()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(newErrorResponseBody(apiErr))
}

// WriteInternalServerError は詳細を含まない500レスポンスを書き込む。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
