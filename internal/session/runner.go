package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ptapal/experimental-psychology/internal/card"
	"github.com/ptapal/experimental-psychology/internal/foil"
	"github.com/ptapal/experimental-psychology/internal/rule"
)

// #region runner
// Runner drives trials one at a time. The engine is only touched from the
// goroutine calling Run, which keeps it the single writer of the rule state.
type Runner struct {
	config   Config
	engine   *rule.Engine
	selector *foil.Selector
	rng      *rand.Rand
	io       Collaborators
	logger   *zap.Logger
	now      func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithClock replaces time.Now for trial timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner wires a runner. rng draws the target cards and should be the same
// source the selector and engine use so a seed reproduces a whole session.
func NewRunner(config Config, engine *rule.Engine, selector *foil.Selector, rng *rand.Rand, io Collaborators, opts ...Option) (*Runner, error) {
	if config.Trials <= 0 {
		return nil, fmt.Errorf("trials must be positive, got %d", config.Trials)
	}
	if config.ResponseTimeout <= 0 || config.PollInterval <= 0 {
		return nil, fmt.Errorf("response timeout and poll interval must be positive")
	}
	if config.ResponseGrace < 0 {
		return nil, fmt.Errorf("response grace must not be negative, got %s", config.ResponseGrace)
	}
	if engine == nil || selector == nil || rng == nil {
		return nil, errors.New("engine, selector and rng are required")
	}
	if io.Presenter == nil || io.Responder == nil || io.Recorder == nil {
		return nil, errors.New("presenter, responder and recorder are required")
	}
	r := &Runner{
		config:   config,
		engine:   engine,
		selector: selector,
		rng:      rng,
		io:       io,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// seedStream is the fixed PCG stream selector for session RNGs.
const seedStream = 0x5eed

// NewRand returns the session RNG for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seedStream))
}

// NewSeeded builds the engine, selector and runner on one RNG derived from
// seed. The engine draws its initial rule first, so two sessions with the
// same seed and the same responses produce identical trials.
func NewSeeded(config Config, ruleConfig rule.Config, seed uint64, io Collaborators, opts ...Option) (*Runner, error) {
	if ruleConfig.Threshold <= 0 {
		return nil, fmt.Errorf("streak threshold must be positive, got %d", ruleConfig.Threshold)
	}
	rng := NewRand(seed)
	engine := rule.NewEngine(ruleConfig, rng)
	return NewRunner(config, engine, foil.NewSelector(rng), rng, io, opts...)
}

// ActiveRule exposes the engine's published rule for display purposes.
func (r *Runner) ActiveRule() card.Rule {
	return r.engine.ActiveRule()
}

// #endregion runner

// #region run
// Run executes the configured trials. An abort ends the session early with
// Result.Aborted set and a nil error; trials recorded so far stay recorded.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var res Result
	r.logger.Info("session started",
		zap.Int("trials", r.config.Trials),
		zap.String("rule", string(r.engine.ActiveRule())))

	for i := 1; i <= r.config.Trials; i++ {
		if r.abortRequested(ctx) {
			res.Aborted = true
			break
		}
		trial, err := r.runTrial(ctx, i)
		if errors.Is(err, ErrAbortRequested) {
			res.Aborted = true
			break
		}
		if err != nil {
			res.FinalState = r.engine.State()
			return res, fmt.Errorf("trial %d: %w", i, err)
		}
		res.Trials = append(res.Trials, trial)
	}

	res.FinalState = r.engine.State()
	if res.Aborted {
		r.logger.Info("session aborted", zap.Int("completed_trials", len(res.Trials)))
	} else {
		r.logger.Info("session completed",
			zap.Int("trials", len(res.Trials)),
			zap.Int("rule_changes", res.FinalState.TotalRuleChanges))
	}
	return res, nil
}

// #endregion run

// #region run-trial
func (r *Runner) runTrial(ctx context.Context, index int) (Trial, error) {
	target, err := card.AttributesOf(r.rng.IntN(card.DeckSize) + card.MinID)
	if err != nil {
		return Trial{}, err
	}
	refIDs, err := r.selector.SelectReferences(target)
	if err != nil {
		return Trial{}, fmt.Errorf("select references: %w", err)
	}
	var refs [foil.ReferenceCount]card.Card
	for i, id := range refIDs {
		if refs[i], err = card.AttributesOf(id); err != nil {
			return Trial{}, err
		}
	}

	presentedAt := r.now()
	if err := r.io.Presenter.Present(ctx, target, refs); err != nil {
		if r.abortRequested(ctx) {
			return Trial{}, ErrAbortRequested
		}
		return Trial{}, fmt.Errorf("present: %w", err)
	}

	resp, err := r.await(ctx)
	if err != nil {
		return Trial{}, err
	}

	var choice *int
	var rt *time.Duration
	if resp.Chosen {
		if resp.Index < 0 || resp.Index >= foil.ReferenceCount {
			return Trial{}, fmt.Errorf("response index %d out of range", resp.Index)
		}
		idx, elapsed := resp.Index, resp.Elapsed
		choice, rt = &idx, &elapsed
	}

	out := r.engine.Score(target, refs, choice)
	trial := Trial{
		Index:         index,
		Target:        target,
		References:    refs,
		ActiveRule:    out.RuleBefore,
		CorrectIndex:  out.CorrectIndex,
		Choice:        choice,
		ResponseTime:  rt,
		Correct:       out.Correct,
		StreakAtStart: out.StreakBefore,
		RuleChanged:   out.RuleChanged,
		NextRule:      out.RuleAfter,
		PresentedAt:   presentedAt,
	}

	if r.io.Feedback != nil {
		if err := r.io.Feedback.EmitFeedback(ctx, FeedbackFor(out)); err != nil && !r.abortRequested(ctx) {
			r.logger.Warn("feedback failed", zap.Int("trial", index), zap.Error(err))
		}
	}

	// A scored trial is complete; an abort raised after scoring still keeps it.
	if err := r.io.Recorder.Record(context.WithoutCancel(ctx), trial); err != nil {
		if r.abortRequested(ctx) {
			return Trial{}, ErrAbortRequested
		}
		return Trial{}, fmt.Errorf("record: %w", err)
	}
	if r.io.Observer != nil {
		r.io.Observer.ObserveTrial(trial)
	}

	r.logger.Debug("trial scored",
		zap.Int("trial", index),
		zap.Int("target", target.ID),
		zap.Ints("references", refIDs[:]),
		zap.String("rule", string(out.RuleBefore)),
		zap.String("outcome", string(trial.Outcome())),
		zap.Int("streak", out.StreakAfter))
	if out.RuleChanged {
		r.logger.Info("rule changed",
			zap.Int("trial", index),
			zap.String("from", string(out.RuleBefore)),
			zap.String("to", string(out.RuleAfter)))
	}
	return trial, nil
}

// #endregion run-trial

// #region await
// await runs the response window while a watcher polls the abort signal every
// PollInterval. The window is bounded by ResponseTimeout plus ResponseGrace
// through the context deadline, so a responder that overruns is still scored
// as a non-response.
func (r *Runner) await(ctx context.Context) (Response, error) {
	windowCtx, cancel := context.WithTimeout(ctx, r.config.ResponseTimeout+r.config.ResponseGrace)
	defer cancel()

	var aborted atomic.Bool
	stop := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		ticker := time.NewTicker(r.config.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-windowCtx.Done():
				return
			case <-ticker.C:
				if r.io.Abort != nil && r.io.Abort.Aborted() {
					aborted.Store(true)
					cancel()
					return
				}
			}
		}
	}()

	start := r.now()
	resp, err := r.io.Responder.AwaitResponse(windowCtx, r.config.ResponseTimeout)
	close(stop)
	<-watcherDone

	if aborted.Load() || r.abortRequested(ctx) || errors.Is(err, ErrAbortRequested) {
		return Response{}, ErrAbortRequested
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Response{}, nil
		}
		return Response{}, fmt.Errorf("await response: %w", err)
	}
	if resp.Chosen && resp.Elapsed <= 0 {
		resp.Elapsed = r.now().Sub(start)
	}
	return resp, nil
}

func (r *Runner) abortRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return r.io.Abort != nil && r.io.Abort.Aborted()
}

// #endregion await
