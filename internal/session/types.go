package session

import (
	"context"
	"errors"
	"time"

	"github.com/ptapal/experimental-psychology/internal/card"
	"github.com/ptapal/experimental-psychology/internal/foil"
	"github.com/ptapal/experimental-psychology/internal/rule"
)

// ErrAbortRequested signals a cooperative session abort. Collaborators may
// return it from AwaitResponse; the runner never reports it as a failure.
var ErrAbortRequested = errors.New("abort requested")

// #region feedback
// Feedback is the outcome shown to the participant after a trial.
type Feedback string

const (
	FeedbackCorrect    Feedback = "correct"
	FeedbackIncorrect  Feedback = "incorrect"
	FeedbackNoResponse Feedback = "no_response"
)

// FeedbackFor maps a scored outcome to its feedback class.
func FeedbackFor(out rule.Outcome) Feedback {
	switch {
	case !out.Responded:
		return FeedbackNoResponse
	case out.Correct:
		return FeedbackCorrect
	default:
		return FeedbackIncorrect
	}
}

// #endregion feedback

// #region response
// Response is what the input side returns from a response window.
// Chosen is false on timeout.
type Response struct {
	Chosen  bool
	Index   int
	Elapsed time.Duration
}

// #endregion response

// #region trial
// Trial is one fully resolved trial. It is built once and never mutated.
type Trial struct {
	Index         int                            `json:"index"`
	Target        card.Card                      `json:"target"`
	References    [foil.ReferenceCount]card.Card `json:"references"`
	ActiveRule    card.Rule                      `json:"active_rule"`
	CorrectIndex  int                            `json:"correct_index"`
	Choice        *int                           `json:"choice,omitempty"`
	ResponseTime  *time.Duration                 `json:"response_time,omitempty"`
	Correct       bool                           `json:"correct"`
	StreakAtStart int                            `json:"streak_at_start"`
	RuleChanged   bool                           `json:"rule_changed"`
	NextRule      card.Rule                      `json:"next_rule"`
	PresentedAt   time.Time                      `json:"presented_at"`
}

// Outcome returns the feedback class the trial produced.
func (t Trial) Outcome() Feedback {
	switch {
	case t.Choice == nil:
		return FeedbackNoResponse
	case t.Correct:
		return FeedbackCorrect
	default:
		return FeedbackIncorrect
	}
}

// #endregion trial

// #region collaborators
// Presenter renders a trial. The target is shown with its references in order.
type Presenter interface {
	Present(ctx context.Context, target card.Card, refs [foil.ReferenceCount]card.Card) error
}

// Responder blocks until a reference is chosen, the timeout elapses, or ctx is done.
// A timeout is reported as Response{Chosen: false} with a nil error.
type Responder interface {
	AwaitResponse(ctx context.Context, timeout time.Duration) (Response, error)
}

// FeedbackEmitter shows the trial outcome. It cannot influence scoring.
type FeedbackEmitter interface {
	EmitFeedback(ctx context.Context, fb Feedback) error
}

// Recorder is the append-only trial sink.
type Recorder interface {
	Record(ctx context.Context, t Trial) error
}

// AbortSignal is polled on every response-wait tick, from a goroutine other
// than the one calling AwaitResponse, so implementations must be safe for
// concurrent reads.
type AbortSignal interface {
	Aborted() bool
}

// Observer receives every recorded trial, e.g. for metrics.
type Observer interface {
	ObserveTrial(t Trial)
}

// Collaborators bundles the external side of a session.
// Feedback, Abort and Observer are optional.
type Collaborators struct {
	Presenter Presenter
	Responder Responder
	Feedback  FeedbackEmitter
	Recorder  Recorder
	Abort     AbortSignal
	Observer  Observer
}

// #endregion collaborators

// #region config
// Config holds the trial count and response-window timing. ResponseGrace
// extends the window past ResponseTimeout for responders that answer over a
// network; the responder is still asked for ResponseTimeout.
type Config struct {
	Trials          int
	ResponseTimeout time.Duration
	ResponseGrace   time.Duration
	PollInterval    time.Duration
}

// DefaultConfig returns the reference deployment: 128 trials, 10s window, 10ms polling.
func DefaultConfig() Config {
	return Config{
		Trials:          128,
		ResponseTimeout: 10 * time.Second,
		PollInterval:    10 * time.Millisecond,
	}
}

// #endregion config

// #region result
// Result summarizes a finished or aborted session.
type Result struct {
	Trials     []Trial
	Aborted    bool
	FinalState rule.RuleState
}

// #endregion result
