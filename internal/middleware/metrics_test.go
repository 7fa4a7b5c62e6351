package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/invman/internal/metrics"
)

type statusCollector struct {
	metrics.Nop
	statuses []int
}

func (c *statusCollector) RecordHTTPStatus(code int) {
	c.statuses = append(c.statuses, code)
}

func TestMetricsMiddleware_RecordsStatus(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    int
	}{
		{
			name:    "明示的なWriteHeader",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) },
			want:    http.StatusCreated,
		},
		{
			name:    "Writeのみは200",
			handler: func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) },
			want:    http.StatusOK,
		},
		{
			name:    "何も書かない場合は200",
			handler: func(w http.ResponseWriter, r *http.Request) {},
			want:    http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &statusCollector{}
			NewMetricsMiddleware(c)(tt.handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
			if len(c.statuses) != 1 || c.statuses[0] != tt.want {
				t.Errorf("statuses = %v, want [%d]", c.statuses, tt.want)
			}
		})
	}
}
