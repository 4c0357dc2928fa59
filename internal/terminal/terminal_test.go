package terminal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptapal/experimental-psychology/internal/card"
	"github.com/ptapal/experimental-psychology/internal/foil"
	"github.com/ptapal/experimental-psychology/internal/session"
)

// syncBuffer guards the output buffer shared with the terminal.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func sampleCards() (card.Card, [foil.ReferenceCount]card.Card) {
	return card.MustAttributesOf(12), [foil.ReferenceCount]card.Card{
		card.MustAttributesOf(25), card.MustAttributesOf(2),
		card.MustAttributesOf(55), card.MustAttributesOf(48),
	}
}

func newPiped(t *testing.T) (*Terminal, *io.PipeWriter, *syncBuffer) {
	t.Helper()
	pr, pw := io.Pipe()
	out := &syncBuffer{}
	term := New(pr, out, 0)
	t.Cleanup(func() { pw.Close() })
	return term, pw, out
}

func TestPresentRendersCards(t *testing.T) {
	term, _, out := newPiped(t)
	target, refs := sampleCards()

	require.NoError(t, term.Present(context.Background(), target, refs))
	text := out.String()
	assert.Contains(t, text, "▲▲▲▲", "target is four triangles")
	assert.Contains(t, text, "✚✚✚", "card 55 is three crosses")
	assert.Contains(t, text, "press 1-4")
}

func TestAwaitResponseReadsChoice(t *testing.T) {
	term, pw, out := newPiped(t)
	go io.WriteString(pw, "x\n7\n3\n")

	resp, err := term.AwaitResponse(context.Background(), time.Second)
	require.NoError(t, err)
	assert.True(t, resp.Chosen)
	assert.Equal(t, 2, resp.Index)
	assert.Equal(t, 2, strings.Count(out.String(), "choose 1-4"), "two invalid keys")
	assert.False(t, term.Aborted())
}

func TestAwaitResponseTimeout(t *testing.T) {
	term, _, _ := newPiped(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := term.AwaitResponse(ctx, 20*time.Millisecond)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestQuitRaisesAbort(t *testing.T) {
	term, pw, _ := newPiped(t)
	go io.WriteString(pw, "Q\n")

	_, err := term.AwaitResponse(context.Background(), time.Second)
	assert.ErrorIs(t, err, session.ErrAbortRequested)
	assert.True(t, term.Aborted())
}

func TestEndOfInputRaisesAbort(t *testing.T) {
	term := New(strings.NewReader(""), io.Discard, 0)
	_, err := term.AwaitResponse(context.Background(), time.Second)
	assert.ErrorIs(t, err, session.ErrAbortRequested)
	assert.True(t, term.Aborted())
}

func TestPresentDropsEarlyKeys(t *testing.T) {
	term, pw, _ := newPiped(t)
	_, err := io.WriteString(pw, "1\n")
	require.NoError(t, err)
	// The write returns once the reader has consumed it; wait for the line to be queued.
	require.Eventually(t, func() bool { return len(term.keys) == 1 }, time.Second, time.Millisecond)

	target, refs := sampleCards()
	require.NoError(t, term.Present(context.Background(), target, refs))
	assert.Empty(t, term.keys)
}

func TestEmitFeedback(t *testing.T) {
	out := &syncBuffer{}
	term := New(strings.NewReader(""), out, 0)

	require.NoError(t, term.EmitFeedback(context.Background(), session.FeedbackNoResponse))
	assert.Contains(t, out.String(), "No response")
}

func TestEmitFeedbackHoldsAndHonoursContext(t *testing.T) {
	term := New(strings.NewReader(""), io.Discard, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, term.EmitFeedback(ctx, session.FeedbackCorrect), context.DeadlineExceeded)
}

func TestCollaborators(t *testing.T) {
	term := New(strings.NewReader(""), io.Discard, 0)
	c := term.Collaborators(&session.MemoryLog{})
	assert.NotNil(t, c.Presenter)
	assert.NotNil(t, c.Abort)
	assert.NotNil(t, c.Recorder)
}
