package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ptapal/experimental-psychology/internal/card"
	"github.com/ptapal/experimental-psychology/internal/foil"
	"github.com/ptapal/experimental-psychology/internal/session"
)

// #region terminal
// Terminal is a line-oriented local display. It presents cards on out and
// reads one answer per line from in.
type Terminal struct {
	out      io.Writer
	keys     chan string
	feedback time.Duration
	abort    session.AbortFlag
	now      func() time.Time
}

// New starts reading lines from in. The reader goroutine ends at EOF.
func New(in io.Reader, out io.Writer, feedbackDuration time.Duration) *Terminal {
	t := &Terminal{
		out:      out,
		keys:     make(chan string, 16),
		feedback: feedbackDuration,
		now:      time.Now,
	}
	go t.readLines(in)
	return t
}

func (t *Terminal) readLines(in io.Reader) {
	defer close(t.keys)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		t.keys <- strings.TrimSpace(sc.Text())
	}
}

// Collaborators returns the session wiring backed by this terminal.
func (t *Terminal) Collaborators(rec session.Recorder) session.Collaborators {
	return session.Collaborators{Presenter: t, Responder: t, Feedback: t, Recorder: rec, Abort: t}
}

// #endregion terminal

// #region present
// Present draws the trial. Keys typed before the cards appear are dropped.
func (t *Terminal) Present(_ context.Context, target card.Card, refs [foil.ReferenceCount]card.Card) error {
	t.drain()
	if _, err := fmt.Fprintln(t.out, renderTrial(target, refs)); err != nil {
		return fmt.Errorf("render trial: %w", err)
	}
	return nil
}

func (t *Terminal) drain() {
	for {
		select {
		case _, ok := <-t.keys:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// #endregion present

// #region await-response
// AwaitResponse returns the first valid key. q or end of input raises the
// abort flag.
func (t *Terminal) AwaitResponse(ctx context.Context, _ time.Duration) (session.Response, error) {
	start := t.now()
	for {
		select {
		case <-ctx.Done():
			return session.Response{}, ctx.Err()
		case key, ok := <-t.keys:
			if !ok || strings.EqualFold(key, "q") {
				t.abort.Raise()
				return session.Response{}, session.ErrAbortRequested
			}
			n, err := strconv.Atoi(key)
			if err != nil || n < 1 || n > foil.ReferenceCount {
				fmt.Fprintf(t.out, "%s\n", hintStyle.Render("choose 1-4, or q to quit"))
				continue
			}
			return session.Response{Chosen: true, Index: n - 1, Elapsed: t.now().Sub(start)}, nil
		}
	}
}

// #endregion await-response

// #region feedback
// EmitFeedback prints the outcome and holds it on screen.
func (t *Terminal) EmitFeedback(ctx context.Context, fb session.Feedback) error {
	if _, err := fmt.Fprintln(t.out, renderFeedback(fb)); err != nil {
		return fmt.Errorf("render feedback: %w", err)
	}
	if t.feedback <= 0 {
		return nil
	}
	timer := time.NewTimer(t.feedback)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// #endregion feedback

// Aborted reports whether the participant quit.
func (t *Terminal) Aborted() bool {
	return t.abort.Aborted()
}
