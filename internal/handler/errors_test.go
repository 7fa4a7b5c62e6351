package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/invman/internal/model"
)

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewValidationError("x"), http.StatusBadRequest},
		{model.NewDuplicateEmailError(), http.StatusBadRequest},
		{model.NewInvalidCredentialsError(), http.StatusBadRequest},
		{model.NewDuplicateSKUError(), http.StatusBadRequest},
		{model.NewInvalidImageError(), http.StatusBadRequest},
		{model.NewImageTooLargeError(10), http.StatusBadRequest},
		{model.NewTokenRequiredError(), http.StatusUnauthorized},
		{model.NewInvalidTokenError(), http.StatusForbidden},
		{model.NewUserNotFoundError(), http.StatusNotFound},
		{model.NewProductNotFoundError(), http.StatusNotFound},
		{model.NewRateLimitedError(), http.StatusTooManyRequests},
		{model.NewInternalError(), http.StatusInternalServerError},
		{&model.APIError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}

func TestHandleServiceError_HidesInternalDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	w := httptest.NewRecorder()

	handleServiceError(w, req, errSecret)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "10.0.0.5") {
		t.Errorf("internal details leaked: %s", w.Body.String())
	}
}

var errSecret = &wrappedErr{msg: "dial tcp 10.0.0.5:5432: connection refused"}

type wrappedErr struct{ msg string }

func (e *wrappedErr) Error() string { return e.msg }
