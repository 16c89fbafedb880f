package http

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "stacksight/internal/log"
)

func TestLogFailure(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		want    []string
		notWant string
	}{
		{"server error", http.StatusInternalServerError, []string{"level=ERROR", "Request failed", "component=http", "operation=read", "error=boom"}, "status_code"},
		{"client error", http.StatusUnprocessableEntity, []string{"level=INFO", "Request rejected", "status_code=422", "error=boom"}, "Request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := applog.NewWriter(&buf, slog.LevelDebug, applog.ComponentTrace)
			r := httptest.NewRequest(http.MethodGet, "/tables", nil)
			r = r.WithContext(applog.WithLogger(r.Context(), logger))

			logFailure(r, tt.status, applog.OpRead, errors.New("boom"))

			out := buf.String()
			for _, part := range tt.want {
				if !strings.Contains(out, part) {
					t.Errorf("log missing %q: %s", part, out)
				}
			}
			if strings.Contains(out, tt.notWant) {
				t.Errorf("log unexpectedly contains %q: %s", tt.notWant, out)
			}
		})
	}
}
