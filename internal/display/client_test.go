package display

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ptapal/experimental-psychology/internal/card"
	"github.com/ptapal/experimental-psychology/internal/foil"
	"github.com/ptapal/experimental-psychology/internal/rule"
	"github.com/ptapal/experimental-psychology/internal/session"
)

// #region mock
type mockConn struct {
	methods  []string
	requests []*structpb.Struct
	deadline time.Time

	reply *structpb.Struct
	err   error
	// awaitDelay holds AwaitResponse replies back like a slow network.
	awaitDelay time.Duration
}

func (m *mockConn) Invoke(ctx context.Context, method string, args, reply any, _ ...grpc.CallOption) error {
	m.methods = append(m.methods, method)
	m.requests = append(m.requests, args.(*structpb.Struct))
	m.deadline, _ = ctx.Deadline()
	if m.err != nil {
		return m.err
	}
	if method == methodAwaitResponse && m.awaitDelay > 0 {
		timer := time.NewTimer(m.awaitDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		}
	}
	if m.reply != nil {
		proto.Merge(reply.(*structpb.Struct), m.reply)
	}
	return nil
}

func (m *mockConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("streams not supported")
}

func sampleCards() (card.Card, [foil.ReferenceCount]card.Card) {
	return card.MustAttributesOf(12), [foil.ReferenceCount]card.Card{
		card.MustAttributesOf(25), card.MustAttributesOf(2),
		card.MustAttributesOf(55), card.MustAttributesOf(48),
	}
}

// #endregion mock

// #region constructor-tests
func TestNewRemoteDisplayLazyDial(t *testing.T) {
	d, err := NewRemoteDisplay("localhost:0", time.Second)
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	defer d.Close()
}

func TestNewRemoteDisplayWithConn(t *testing.T) {
	d := NewRemoteDisplayWithConn(&mockConn{})
	if d.grace != DefaultGrace {
		t.Fatalf("expected default grace, got %s", d.grace)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close without owned conn: %v", err)
	}
	io := d.Collaborators(&session.MemoryLog{})
	if io.Presenter == nil || io.Responder == nil || io.Feedback == nil || io.Abort == nil {
		t.Fatal("expected all collaborators wired")
	}
}

// #endregion constructor-tests

// #region present-tests
func TestPresent_EncodesCards(t *testing.T) {
	mock := &mockConn{}
	d := NewRemoteDisplayWithConn(mock)
	target, refs := sampleCards()

	if err := d.Present(context.Background(), target, refs); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if mock.methods[0] != "/cardsort.display.v1.Display/Present" {
		t.Fatalf("unexpected method %s", mock.methods[0])
	}
	gotTarget, gotRefs, err := decodePresent(mock.requests[0])
	if err != nil {
		t.Fatalf("decodePresent: %v", err)
	}
	if gotTarget != target || gotRefs != refs {
		t.Fatalf("cards did not survive the wire: %v %v", gotTarget, gotRefs)
	}
	if s := mock.requests[0].Fields["target"].GetStructValue().Fields["color"].GetStringValue(); s != "blue" {
		t.Errorf("expected color blue on the wire, got %q", s)
	}
}

func TestPresent_Error(t *testing.T) {
	d := NewRemoteDisplayWithConn(&mockConn{err: status.Error(codes.Unavailable, "display offline")})
	target, refs := sampleCards()
	if err := d.Present(context.Background(), target, refs); err == nil {
		t.Fatal("expected error")
	}
}

// #endregion present-tests

// #region await-tests
func TestAwaitResponse_Choice(t *testing.T) {
	mock := &mockConn{reply: encodeResponse(session.Response{Chosen: true, Index: 2, Elapsed: 640 * time.Millisecond}, false)}
	d := NewRemoteDisplayWithConn(mock)

	start := time.Now()
	resp, err := d.AwaitResponse(context.Background(), 3*time.Second)
	if err != nil {
		t.Fatalf("AwaitResponse: %v", err)
	}
	if !resp.Chosen || resp.Index != 2 || resp.Elapsed != 640*time.Millisecond {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got := mock.requests[0].Fields["timeout_ms"].GetNumberValue(); got != 3000 {
		t.Errorf("expected timeout_ms 3000, got %v", got)
	}
	if mock.deadline.Before(start.Add(3*time.Second + DefaultGrace - 100*time.Millisecond)) {
		t.Errorf("deadline %s should include the grace period", mock.deadline)
	}
	if d.Aborted() {
		t.Error("should not be aborted")
	}
}

func TestAwaitResponse_DeadlineIsNoResponse(t *testing.T) {
	d := NewRemoteDisplayWithConn(&mockConn{err: status.Error(codes.DeadlineExceeded, "too slow")})
	resp, err := d.AwaitResponse(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("deadline should not be an error: %v", err)
	}
	if resp.Chosen {
		t.Fatal("expected no response")
	}
}

func TestAwaitResponse_AbortLatches(t *testing.T) {
	d := NewRemoteDisplayWithConn(&mockConn{reply: encodeResponse(session.Response{}, true)})
	_, err := d.AwaitResponse(context.Background(), time.Second)
	if !errors.Is(err, session.ErrAbortRequested) {
		t.Fatalf("expected ErrAbortRequested, got %v", err)
	}
	if !d.Aborted() {
		t.Fatal("abort should latch")
	}
}

func TestAwaitResponse_CancelledParent(t *testing.T) {
	d := NewRemoteDisplayWithConn(&mockConn{err: status.Error(codes.Canceled, "cancelled")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.AwaitResponse(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAwaitResponse_OtherError(t *testing.T) {
	d := NewRemoteDisplayWithConn(&mockConn{err: status.Error(codes.Internal, "boom")})
	if _, err := d.AwaitResponse(context.Background(), time.Second); err == nil {
		t.Fatal("expected error")
	}
}

// #endregion await-tests

// #region feedback-tests
func TestEmitFeedback(t *testing.T) {
	mock := &mockConn{}
	d := NewRemoteDisplayWithConn(mock)
	if err := d.EmitFeedback(context.Background(), session.FeedbackNoResponse); err != nil {
		t.Fatalf("EmitFeedback: %v", err)
	}
	if got := mock.requests[0].Fields["feedback"].GetStringValue(); got != "no_response" {
		t.Fatalf("expected no_response, got %q", got)
	}
}

// #endregion feedback-tests

// #region grace-tests
func TestRunnerScoresReplyArrivingWithinGrace(t *testing.T) {
	conn := &mockConn{
		reply:      encodeResponse(session.Response{Chosen: true, Index: 2, Elapsed: 95 * time.Millisecond}, false),
		awaitDelay: 140 * time.Millisecond,
	}
	d := NewRemoteDisplayWithConn(conn)
	log := &session.MemoryLog{}
	cfg := session.Config{
		Trials:          1,
		ResponseTimeout: 100 * time.Millisecond,
		ResponseGrace:   d.grace,
		PollInterval:    5 * time.Millisecond,
	}
	r, err := session.NewSeeded(cfg, rule.DefaultConfig(), 3, d.Collaborators(log))
	if err != nil {
		t.Fatalf("NewSeeded: %v", err)
	}
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := log.Trials()
	if len(got) != 1 {
		t.Fatalf("expected 1 trial, got %d", len(got))
	}
	if got[0].Choice == nil || *got[0].Choice != 2 {
		t.Fatalf("late reply inside the grace period should be scored, got %+v", got[0])
	}
	if got[0].ResponseTime == nil || *got[0].ResponseTime != 95*time.Millisecond {
		t.Fatalf("expected display-reported elapsed time, got %v", got[0].ResponseTime)
	}
}

// #endregion grace-tests
