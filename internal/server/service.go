package server

import (
	"context"

	"google.golang.org/grpc"

	"github.com/triage-ai/palisade/services/intent_guard/internal/registry"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "intentguard.v1.IntentGuardService"

const (
	PreToolUseFullMethod  = "/" + ServiceName + "/PreToolUse"
	PostToolUseFullMethod = "/" + ServiceName + "/PostToolUse"
	EndSessionFullMethod  = "/" + ServiceName + "/EndSession"
)

type PreToolUseRequest struct {
	SessionID     string        `json:"session_id"`
	ToolName      string        `json:"tool_name"`
	ToolArgs      registry.Args `json:"tool_args,omitempty"`
	UserConfirmed bool          `json:"user_confirmed,omitempty"`
	ClientTraceID string        `json:"client_trace_id,omitempty"`
}

type PreToolUseResponse struct {
	// Decision is "continue", "blocked" or "handled".
	Decision   string `json:"decision"`
	ToolResult string `json:"tool_result,omitempty"`
	Check      string `json:"check,omitempty"`
	// Enforced is false when a shadow-mode workspace turned a block into
	// continue. ShadowResult then holds the suppressed message.
	Enforced     bool    `json:"enforced"`
	ShadowResult string  `json:"shadow_result,omitempty"`
	RequestID    string  `json:"request_id"`
	LatencyMs    float32 `json:"latency_ms"`
}

type PostToolUseRequest struct {
	SessionID  string        `json:"session_id"`
	ModelID    string        `json:"model_id,omitempty"`
	ToolName   string        `json:"tool_name"`
	ToolArgs   registry.Args `json:"tool_args,omitempty"`
	ToolResult string        `json:"tool_result,omitempty"`
}

type PostToolUseResponse struct {
	RequestID string `json:"request_id"`
	Snapshots int32  `json:"snapshots"`
	TraceID   string `json:"trace_id,omitempty"`
}

type EndSessionRequest struct {
	SessionID string `json:"session_id"`
}

type EndSessionResponse struct {
	ClearedSnapshots int32 `json:"cleared_snapshots"`
}

// IntentGuardServiceServer is the server API for IntentGuardService.
type IntentGuardServiceServer interface {
	PreToolUse(context.Context, *PreToolUseRequest) (*PreToolUseResponse, error)
	PostToolUse(context.Context, *PostToolUseRequest) (*PostToolUseResponse, error)
	EndSession(context.Context, *EndSessionRequest) (*EndSessionResponse, error)
}

// RegisterIntentGuardServiceServer registers srv on s.
func RegisterIntentGuardServiceServer(s grpc.ServiceRegistrar, srv IntentGuardServiceServer) {
	s.RegisterService(&IntentGuardService_ServiceDesc, srv)
}

// IntentGuardService_ServiceDesc describes the service for grpc.Server.
var IntentGuardService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IntentGuardServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PreToolUse", Handler: preToolUseHandler},
		{MethodName: "PostToolUse", Handler: postToolUseHandler},
		{MethodName: "EndSession", Handler: endSessionHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "intentguard/v1/intent_guard.json",
}

func preToolUseHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PreToolUseRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IntentGuardServiceServer).PreToolUse(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PreToolUseFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IntentGuardServiceServer).PreToolUse(ctx, req.(*PreToolUseRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func postToolUseHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PostToolUseRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IntentGuardServiceServer).PostToolUse(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PostToolUseFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IntentGuardServiceServer).PostToolUse(ctx, req.(*PostToolUseRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func endSessionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(EndSessionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IntentGuardServiceServer).EndSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EndSessionFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IntentGuardServiceServer).EndSession(ctx, req.(*EndSessionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls IntentGuardService over the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) PreToolUse(ctx context.Context, in *PreToolUseRequest, opts ...grpc.CallOption) (*PreToolUseResponse, error) {
	out := new(PreToolUseResponse)
	if err := c.cc.Invoke(ctx, PreToolUseFullMethod, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PostToolUse(ctx context.Context, in *PostToolUseRequest, opts ...grpc.CallOption) (*PostToolUseResponse, error) {
	out := new(PostToolUseResponse)
	if err := c.cc.Invoke(ctx, PostToolUseFullMethod, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) EndSession(ctx context.Context, in *EndSessionRequest, opts ...grpc.CallOption) (*EndSessionResponse, error) {
	out := new(EndSessionResponse)
	if err := c.cc.Invoke(ctx, EndSessionFullMethod, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withJSON(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
