package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptapal/experimental-psychology/internal/card"
	"github.com/ptapal/experimental-psychology/internal/session"
)

func trial(choice *int, correct bool, streak int) session.Trial {
	var rt *time.Duration
	if choice != nil {
		d := 1500 * time.Millisecond
		rt = &d
	}
	return session.Trial{
		ActiveRule:    card.RuleColor,
		NextRule:      card.RuleColor,
		Choice:        choice,
		ResponseTime:  rt,
		Correct:       correct,
		StreakAtStart: streak,
	}
}

func TestObserveTrialCountsOutcomes(t *testing.T) {
	m := New()
	zero, one := 0, 1

	m.ObserveTrial(trial(&zero, true, 0))
	m.ObserveTrial(trial(&zero, true, 1))
	m.ObserveTrial(trial(&one, false, 2))
	m.ObserveTrial(trial(nil, false, 0))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.trials.WithLabelValues("correct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.trials.WithLabelValues("incorrect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.trials.WithLabelValues("no_response")))
	var pb dto.Metric
	require.NoError(t, m.responseTime.Write(&pb))
	assert.Equal(t, uint64(3), pb.GetHistogram().GetSampleCount(), "answered trials only")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.streak))
}

func TestObserveTrialStreakAndRuleChange(t *testing.T) {
	m := New()
	zero := 0

	m.ObserveTrial(trial(&zero, true, 8))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.streak))

	changed := trial(&zero, true, 9)
	changed.RuleChanged = true
	changed.NextRule = card.RuleShape
	m.ObserveTrial(changed)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.streak))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ruleChanges.WithLabelValues("color", "shape")))
}

func TestSessionFinishedAndHandler(t *testing.T) {
	m := New()
	m.SessionFinished("completed")
	m.SessionFinished("aborted")
	m.SessionFinished("completed")

	expected := `
# HELP wcst_sessions_total Finished sessions by final status
# TYPE wcst_sessions_total counter
wcst_sessions_total{status="aborted"} 1
wcst_sessions_total{status="completed"} 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "wcst_sessions_total"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "wcst_sessions_total")
}
