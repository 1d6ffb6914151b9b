package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PublicLifeLab/gehl-backend/internal/utils"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutcome(t *testing.T) {
	cases := map[string]error{
		"ok":        nil,
		"invalid":   fmt.Errorf("%w: bad label", utils.ErrValidation),
		"not_found": fmt.Errorf("survey: %w", utils.ErrNotFound),
		"conflict":  utils.ErrConflict,
		"error":     errors.New("connection refused"),
	}
	for want, err := range cases {
		if got := Outcome(err); got != want {
			t.Errorf("Outcome(%v): expected %q, got %q", err, want, got)
		}
	}
}

func TestObserveCountsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(operations.WithLabelValues("test_op", "not_found"))

	err := fmt.Errorf("x: %w", utils.ErrNotFound)
	Observe("test_op", time.Now(), &err)

	after := testutil.ToFloat64(operations.WithLabelValues("test_op", "not_found"))
	if after != before+1 {
		t.Errorf("expected counter to increase by 1, got %v -> %v", before, after)
	}
}

func TestHandlerServesCounters(t *testing.T) {
	var err error
	Observe("handler_op", time.Now(), &err)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `gehl_operations_total{operation="handler_op",outcome="ok"}`) {
		t.Errorf("expected handler_op counter in output")
	}
}
