package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quizit-service/internal/app"
	"quizit-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCountsEngineEvents(t *testing.T) {
	c := New()
	c.SubmissionObserved(domain.TriggerProctoring, app.OutcomeAccepted)
	c.SubmissionObserved(domain.TriggerManual, app.OutcomeConflict)
	c.SubmissionObserved(domain.TriggerManual, app.OutcomeConflict)
	c.ViolationObserved(app.VerdictWarning)
	c.SessionStarted(true)

	if got := testutil.ToFloat64(c.submissions.WithLabelValues("manual", "conflict")); got != 2 {
		t.Fatalf("expected 2 conflicts, got %v", got)
	}
	if got := testutil.ToFloat64(c.violations.WithLabelValues("warning")); got != 1 {
		t.Fatalf("expected 1 warning, got %v", got)
	}
	if got := testutil.ToFloat64(c.sessions.WithLabelValues("resumed")); got != 1 {
		t.Fatalf("expected 1 resumed session, got %v", got)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := New()
	router := gin.New()
	router.Use(c.Middleware())
	router.GET("/ping", func(ctx *gin.Context) { ctx.String(http.StatusOK, "pong") })
	router.GET("/metrics", c.Handler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `http_requests_total{endpoint="/ping",method="GET",status="200"} 1`) {
		t.Fatalf("expected request counter in exposition, got:\n%s", body)
	}
}
