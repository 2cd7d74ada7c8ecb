package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"saferag/internal/service"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetrics_Outcomes(t *testing.T) {
	m := New()
	m.ObserveAnswer(&service.Answer{Outcome: service.OutcomeUnsafe, Text: "See a doctor.", Completed: true}, 10*time.Millisecond)
	m.ObserveAnswer(&service.Answer{Outcome: service.OutcomeAugmented, Text: service.NotConfiguredAnswer}, time.Millisecond)
	m.ObserveError(&service.Error{Stage: service.StageEmbed, Err: errors.New("boom")})
	m.ObserveError(service.ErrEmptyQuery)
	m.SetSnapshotSizes(12, 4)

	out := scrape(t, m)
	for _, want := range []string{
		`saferag_answers_total{outcome="unsafe"} 1`,
		`saferag_answers_total{outcome="not_configured"} 1`,
		`saferag_errors_total{stage="embed"} 1`,
		`saferag_errors_total{stage="other"} 1`,
		`saferag_snapshot_records{snapshot="chunks"} 12`,
		`saferag_snapshot_records{snapshot="intents"} 4`,
		`saferag_answer_duration_seconds_count 2`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
