package display

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ptapal/experimental-psychology/internal/session"
)

// #region server
// Server exposes a local display (such as the terminal) to a remote runner.
type Server struct {
	presenter session.Presenter
	responder session.Responder
	feedback  session.FeedbackEmitter
	abort     session.AbortSignal
}

// NewServer wraps local collaborators. feedback and abort may be nil.
func NewServer(p session.Presenter, r session.Responder, f session.FeedbackEmitter, abort session.AbortSignal) *Server {
	return &Server{presenter: p, responder: r, feedback: f, abort: abort}
}

func (s *Server) aborted() bool {
	return s.abort != nil && s.abort.Aborted()
}

// Present implements DisplayServer.
func (s *Server) Present(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	target, refs, err := decodePresent(in)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode present: %v", err)
	}
	if err := s.presenter.Present(ctx, target, refs); err != nil {
		return nil, status.Errorf(codes.Internal, "present: %v", err)
	}
	return &structpb.Struct{}, nil
}

// AwaitResponse implements DisplayServer. The local window is bounded by the
// requested timeout; an abort is reported in the reply, not as an error.
func (s *Server) AwaitResponse(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	timeout := time.Duration(in.GetFields()["timeout_ms"].GetNumberValue()) * time.Millisecond
	if timeout <= 0 {
		return nil, status.Error(codes.InvalidArgument, "timeout_ms must be positive")
	}
	if s.aborted() {
		return encodeResponse(session.Response{}, true), nil
	}

	windowCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := s.responder.AwaitResponse(windowCtx, timeout)
	switch {
	case errors.Is(err, session.ErrAbortRequested) || s.aborted():
		return encodeResponse(session.Response{}, true), nil
	case ctx.Err() != nil:
		return nil, status.FromContextError(ctx.Err()).Err()
	case errors.Is(err, context.DeadlineExceeded):
		return encodeResponse(session.Response{}, false), nil
	case err != nil:
		return nil, status.Errorf(codes.Internal, "await response: %v", err)
	}
	return encodeResponse(resp, false), nil
}

// Feedback implements DisplayServer.
func (s *Server) Feedback(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.feedback == nil {
		return &structpb.Struct{}, nil
	}
	fb := session.Feedback(in.GetFields()["feedback"].GetStringValue())
	if err := s.feedback.EmitFeedback(ctx, fb); err != nil {
		return nil, status.Errorf(codes.Internal, "feedback: %v", err)
	}
	return &structpb.Struct{}, nil
}

// #endregion server
