package eval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptapal/experimental-psychology/internal/card"
	"github.com/ptapal/experimental-psychology/internal/session"
)

// Target 12 (4 blue triangles) against 25, 2, 55, 48: color picks 0,
// shape picks 1, count picks 3, and 55 shares nothing.
var correctSlot = map[card.Rule]int{card.RuleColor: 0, card.RuleShape: 1, card.RuleCount: 3}

func makeTrial(index int, active card.Rule, choice int, streak int) session.Trial {
	t := session.Trial{
		Index:  index,
		Target: card.MustAttributesOf(12),
		References: [4]card.Card{
			card.MustAttributesOf(25), card.MustAttributesOf(2),
			card.MustAttributesOf(55), card.MustAttributesOf(48),
		},
		ActiveRule:    active,
		CorrectIndex:  correctSlot[active],
		StreakAtStart: streak,
		NextRule:      active,
	}
	if choice >= 0 {
		rt := 500 * time.Millisecond
		t.Choice = &choice
		t.ResponseTime = &rt
		t.Correct = choice == t.CorrectIndex
	}
	return t
}

// sampleSession: one color category, then a shape run with a perseverative
// error, a plain error, a timeout and a lapse after six correct.
func sampleSession() []session.Trial {
	var trials []session.Trial
	for i := 0; i < 10; i++ {
		trials = append(trials, makeTrial(i, card.RuleColor, 0, i))
	}
	trials[9].RuleChanged = true
	trials[9].NextRule = card.RuleShape

	trials = append(trials,
		makeTrial(10, card.RuleShape, 0, 0),
		makeTrial(11, card.RuleShape, 2, 0),
		makeTrial(12, card.RuleShape, -1, 0),
	)
	for i := 0; i < 6; i++ {
		trials = append(trials, makeTrial(13+i, card.RuleShape, 1, i))
	}
	trials = append(trials, makeTrial(19, card.RuleShape, 3, 6))
	return trials
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleSession())

	assert.Equal(t, 20, s.Trials)
	assert.Equal(t, 16, s.Correct)
	assert.Equal(t, 3, s.Incorrect)
	assert.Equal(t, 1, s.NoResponse)
	assert.Equal(t, 1, s.CategoriesCompleted)
	assert.Equal(t, 10, s.TrialsToFirst)
	assert.Equal(t, 1, s.PerseverativeErrors)
	assert.Equal(t, 1, s.FailureToMaintain)
	assert.Equal(t, 500*time.Millisecond, s.MeanResponseTime)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, Summary{}, s)
}

func TestSummarizeNoPerseverationBeforeFirstChange(t *testing.T) {
	// Choosing the shape match while color is active is an error but has no
	// previous rule to persevere on.
	trials := []session.Trial{makeTrial(0, card.RuleColor, 1, 0)}
	s := Summarize(trials)
	assert.Equal(t, 1, s.Incorrect)
	assert.Zero(t, s.PerseverativeErrors)
	assert.Zero(t, s.TrialsToFirst)
}

func TestEvalPassesOnSampleSession(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	result := h.Run(sampleSession())

	require.True(t, result.Passed, result.Reason)
	assert.Equal(t, "all checks passed", result.Reason)
	require.NotEmpty(t, result.Metrics)

	byName := map[string]EvalMetric{}
	for _, m := range result.Metrics {
		byName[m.Name] = m
	}
	assert.InDelta(t, 0.05, byName["no_response_rate"].Value, 1e-9)
	assert.InDelta(t, 0.8, byName["accuracy"].Value, 1e-9)
	assert.InDelta(t, 500, byName["mean_rt_ms"].Value, 1e-9)
}

func TestEvalFailsOnUnansweredSession(t *testing.T) {
	var trials []session.Trial
	for i := 0; i < 5; i++ {
		trials = append(trials, makeTrial(i, card.RuleCount, -1, 0))
	}
	result := NewEvalHarness(DefaultEvalConfig()).Run(trials)

	assert.False(t, result.Passed)
	assert.Contains(t, result.Reason, "2 checks")
	assert.Contains(t, result.Reason, "no-response rate")
}

func TestEvalPerseverationIsInformational(t *testing.T) {
	config := DefaultEvalConfig()
	config.MaxPerseverative = 0
	result := NewEvalHarness(config).Run(sampleSession())

	assert.True(t, result.Passed)
	for _, m := range result.Metrics {
		if m.Name == "perseverative_rate" {
			assert.False(t, m.Pass)
			return
		}
	}
	t.Fatal("perseverative_rate metric missing")
}
