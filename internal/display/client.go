package display

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ptapal/experimental-psychology/internal/card"
	"github.com/ptapal/experimental-psychology/internal/foil"
	"github.com/ptapal/experimental-psychology/internal/session"
)

// DefaultGrace is added to the response timeout for the AwaitResponse deadline.
const DefaultGrace = 2 * time.Second

// #region client-struct
// RemoteDisplay drives a participant-facing display over gRPC. It serves as
// presenter, responder, feedback sink and abort signal for one session.
type RemoteDisplay struct {
	conn    *grpc.ClientConn
	cc      grpc.ClientConnInterface
	grace   time.Duration
	aborted atomic.Bool
}

// #endregion client-struct

// #region constructor
// NewRemoteDisplay connects to a display server.
func NewRemoteDisplay(addr string, grace time.Duration) (*RemoteDisplay, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &RemoteDisplay{conn: conn, cc: conn, grace: grace}, nil
}

// NewRemoteDisplayWithConn creates a RemoteDisplay over an existing connection.
// Used for testing without a real gRPC connection.
func NewRemoteDisplayWithConn(cc grpc.ClientConnInterface) *RemoteDisplay {
	return &RemoteDisplay{cc: cc, grace: DefaultGrace}
}

// Collaborators returns the session wiring backed by this display.
func (d *RemoteDisplay) Collaborators(rec session.Recorder) session.Collaborators {
	return session.Collaborators{Presenter: d, Responder: d, Feedback: d, Recorder: rec, Abort: d}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection if this display owns it.
func (d *RemoteDisplay) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// #endregion close

// #region present
// Present shows the target and the four reference cards.
func (d *RemoteDisplay) Present(ctx context.Context, target card.Card, refs [foil.ReferenceCount]card.Card) error {
	req, err := encodePresent(target, refs)
	if err != nil {
		return fmt.Errorf("encode present: %w", err)
	}
	if err := d.cc.Invoke(ctx, methodPresent, req, new(structpb.Struct)); err != nil {
		return fmt.Errorf("present rpc: %w", err)
	}
	return nil
}

// #endregion present

// #region await-response
// AwaitResponse blocks until the display reports a choice, a timeout or an
// abort. An expired deadline is a non-response, not an error.
func (d *RemoteDisplay) AwaitResponse(ctx context.Context, timeout time.Duration) (session.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout+d.grace)
	defer cancel()

	out := new(structpb.Struct)
	err := d.cc.Invoke(callCtx, methodAwaitResponse, encodeAwait(timeout), out)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return session.Response{}, ctx.Err()
		case status.Code(err) == codes.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded):
			return session.Response{}, nil
		default:
			return session.Response{}, fmt.Errorf("await response rpc: %w", err)
		}
	}

	resp, abort := decodeResponse(out)
	if abort {
		d.aborted.Store(true)
		return session.Response{}, session.ErrAbortRequested
	}
	return resp, nil
}

// #endregion await-response

// #region feedback
// EmitFeedback shows the trial outcome on the display.
func (d *RemoteDisplay) EmitFeedback(ctx context.Context, fb session.Feedback) error {
	if err := d.cc.Invoke(ctx, methodFeedback, encodeFeedback(fb), new(structpb.Struct)); err != nil {
		return fmt.Errorf("feedback rpc: %w", err)
	}
	return nil
}

// #endregion feedback

// Aborted reports whether the display has asked to end the session.
func (d *RemoteDisplay) Aborted() bool {
	return d.aborted.Load()
}
