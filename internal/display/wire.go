package display

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ptapal/experimental-psychology/internal/card"
	"github.com/ptapal/experimental-psychology/internal/foil"
	"github.com/ptapal/experimental-psychology/internal/session"
)

// #region methods
const (
	serviceName         = "cardsort.display.v1.Display"
	methodPresent       = "/" + serviceName + "/Present"
	methodAwaitResponse = "/" + serviceName + "/AwaitResponse"
	methodFeedback      = "/" + serviceName + "/Feedback"
)

// #endregion methods

// #region encode
func encodeCard(c card.Card) map[string]any {
	return map[string]any{
		"id":    c.ID,
		"shape": string(c.Shape),
		"color": string(c.Color),
		"count": c.Count,
	}
}

func encodePresent(target card.Card, refs [foil.ReferenceCount]card.Card) (*structpb.Struct, error) {
	list := make([]any, len(refs))
	for i, r := range refs {
		list[i] = encodeCard(r)
	}
	return structpb.NewStruct(map[string]any{
		"target":     encodeCard(target),
		"references": list,
	})
}

func encodeAwait(timeout time.Duration) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"timeout_ms": structpb.NewNumberValue(float64(timeout.Milliseconds())),
	}}
}

func encodeResponse(resp session.Response, abort bool) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"chosen":     structpb.NewBoolValue(resp.Chosen),
		"index":      structpb.NewNumberValue(float64(resp.Index)),
		"elapsed_ms": structpb.NewNumberValue(float64(resp.Elapsed) / float64(time.Millisecond)),
		"abort":      structpb.NewBoolValue(abort),
	}}
}

func encodeFeedback(fb session.Feedback) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"feedback": structpb.NewStringValue(string(fb)),
	}}
}

// #endregion encode

// #region decode
// decodeCard trusts only the id; attributes are rebuilt from the catalog.
func decodeCard(v *structpb.Value) (card.Card, error) {
	s := v.GetStructValue()
	if s == nil {
		return card.Card{}, fmt.Errorf("card is not an object")
	}
	return card.AttributesOf(int(s.Fields["id"].GetNumberValue()))
}

func decodePresent(in *structpb.Struct) (card.Card, [foil.ReferenceCount]card.Card, error) {
	var refs [foil.ReferenceCount]card.Card
	target, err := decodeCard(in.Fields["target"])
	if err != nil {
		return card.Card{}, refs, fmt.Errorf("target: %w", err)
	}
	list := in.Fields["references"].GetListValue().GetValues()
	if len(list) != foil.ReferenceCount {
		return card.Card{}, refs, fmt.Errorf("expected %d references, got %d", foil.ReferenceCount, len(list))
	}
	for i, v := range list {
		if refs[i], err = decodeCard(v); err != nil {
			return card.Card{}, refs, fmt.Errorf("reference %d: %w", i, err)
		}
	}
	return target, refs, nil
}

func decodeResponse(out *structpb.Struct) (session.Response, bool) {
	f := out.GetFields()
	resp := session.Response{
		Chosen:  f["chosen"].GetBoolValue(),
		Index:   int(f["index"].GetNumberValue()),
		Elapsed: time.Duration(f["elapsed_ms"].GetNumberValue() * float64(time.Millisecond)),
	}
	return resp, f["abort"].GetBoolValue()
}

// #endregion decode

// #region service-desc
// DisplayServer is the server side of the display service.
type DisplayServer interface {
	Present(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AwaitResponse(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Feedback(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterDisplayServer registers srv on s.
func RegisterDisplayServer(s grpc.ServiceRegistrar, srv DisplayServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*DisplayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Present", Handler: unaryHandler(methodPresent, DisplayServer.Present)},
		{MethodName: "AwaitResponse", Handler: unaryHandler(methodAwaitResponse, DisplayServer.AwaitResponse)},
		{MethodName: "Feedback", Handler: unaryHandler(methodFeedback, DisplayServer.Feedback)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cardsort/display/v1/display.proto",
}

func unaryHandler(fullMethod string, call func(DisplayServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DisplayServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DisplayServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// #endregion service-desc
