package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"github.com/mnemo-db/mnemo/pkg/query"
)

// Remember inserts a new memory (spec §4.8.1).
func (s *Server) Remember(ctx context.Context, req *query.RememberRequest) (*query.RememberResult, error) {
	result, err := s.Engine.Remember(ctx, *req)
	if err != nil {
		return nil, grpcError(s.logger(), err)
	}
	return result, nil
}

// Recall runs retrieval fusion over stored memories (spec §4.8.2).
func (s *Server) Recall(ctx context.Context, req *query.RecallRequest) (*query.RecallResult, error) {
	result, err := s.Engine.Recall(ctx, *req)
	if err != nil {
		return nil, grpcError(s.logger(), err)
	}
	return result, nil
}

// GetMemory fetches a single record by id, bypassing the engine the
// same way pkg/api.handleGetMemory does.
func (s *Server) GetMemory(ctx context.Context, req *GetMemoryRequest) (*GetMemoryResponse, error) {
	record, err := s.Storage.GetMemory(ctx, req.ID)
	if err != nil {
		return nil, grpcError(s.logger(), err)
	}
	return &GetMemoryResponse{Record: record}, nil
}

// Forget resolves and forgets target memories under the requested
// strategy (spec §4.8.3).
func (s *Server) Forget(ctx context.Context, req *query.ForgetRequest) (*query.ForgetResult, error) {
	result, err := s.Engine.Forget(ctx, *req)
	if err != nil {
		return nil, grpcError(s.logger(), err)
	}
	return result, nil
}

// Share grants permission on a memory to other agents (spec §4.8.4).
func (s *Server) Share(ctx context.Context, req *query.ShareRequest) (*query.ShareResult, error) {
	result, err := s.Engine.Share(ctx, *req)
	if err != nil {
		return nil, grpcError(s.logger(), err)
	}
	return result, nil
}

// Checkpoint snapshots an agent's active state on a branch (spec
// §4.8.5).
func (s *Server) Checkpoint(ctx context.Context, req *query.CheckpointRequest) (*CheckpointResponse, error) {
	checkpoint, err := s.Engine.Checkpoint(ctx, *req)
	if err != nil {
		return nil, grpcError(s.logger(), err)
	}
	return &CheckpointResponse{Checkpoint: checkpoint}, nil
}

// Branch forks a new branch from a source checkpoint (spec §4.8.6).
func (s *Server) Branch(ctx context.Context, req *query.BranchRequest) (*CheckpointResponse, error) {
	checkpoint, err := s.Engine.Branch(ctx, *req)
	if err != nil {
		return nil, grpcError(s.logger(), err)
	}
	return &CheckpointResponse{Checkpoint: checkpoint}, nil
}

// Merge combines a source branch into a target branch (spec §4.8.7).
func (s *Server) Merge(ctx context.Context, req *query.MergeRequest) (*CheckpointResponse, error) {
	checkpoint, err := s.Engine.Merge(ctx, *req)
	if err != nil {
		return nil, grpcError(s.logger(), err)
	}
	return &CheckpointResponse{Checkpoint: checkpoint}, nil
}

// Replay reconstructs the state referenced by a checkpoint (spec
// §4.8.8).
func (s *Server) Replay(ctx context.Context, req *query.ReplayRequest) (*query.ReplayResult, error) {
	result, err := s.Engine.Replay(ctx, *req)
	if err != nil {
		return nil, grpcError(s.logger(), err)
	}
	return result, nil
}

// Verify runs chain verification over an agent's memory and event
// chains (spec §4.8.9).
func (s *Server) Verify(ctx context.Context, req *query.VerifyRequest) (*VerifyResponse, error) {
	memories, events, err := s.Engine.Verify(ctx, *req)
	if err != nil {
		return nil, grpcError(s.logger(), err)
	}
	return &VerifyResponse{Memories: memories, Events: events}, nil
}

// Delegate grants a transitive capability from one agent to another
// (spec §4.8.10).
func (s *Server) Delegate(ctx context.Context, req *query.DelegateRequest) (*DelegationResponse, error) {
	delegation, err := s.Engine.Delegate(ctx, *req)
	if err != nil {
		return nil, grpcError(s.logger(), err)
	}
	return &DelegationResponse{Delegation: delegation}, nil
}

// ──────────────────────────────────────────────────────────────────
// Hand-written service descriptor, the part protoc-gen-go-grpc would
// otherwise generate from a .proto file.
// ──────────────────────────────────────────────────────────────────

const serviceName = "mnemo.v1.MemoryService"

// ServiceDesc is mnemo's gRPC service descriptor, registered against a
// *grpc.Server the same way a generated _grpc.pb.go file's
// xxx_ServiceDesc would be.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Remember", Handler: rememberHandler},
		{MethodName: "Recall", Handler: recallHandler},
		{MethodName: "GetMemory", Handler: getMemoryHandler},
		{MethodName: "Forget", Handler: forgetHandler},
		{MethodName: "Share", Handler: shareHandler},
		{MethodName: "Checkpoint", Handler: checkpointHandler},
		{MethodName: "Branch", Handler: branchHandler},
		{MethodName: "Merge", Handler: mergeHandler},
		{MethodName: "Replay", Handler: replayHandler},
		{MethodName: "Verify", Handler: verifyHandler},
		{MethodName: "Delegate", Handler: delegateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pkg/grpcapi/service.go",
}

// RegisterMemoryServiceServer attaches srv to s under ServiceDesc,
// mirroring the RegisterXxxServer function a generated stub exports.
func RegisterMemoryServiceServer(s *grpc.Server, srv *Server) {
	s.RegisterService(&ServiceDesc, srv)
}

func rememberHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(query.RememberRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Remember(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Remember"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Remember(ctx, req.(*query.RememberRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func recallHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(query.RecallRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Recall(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Recall"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Recall(ctx, req.(*query.RecallRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getMemoryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetMemoryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).GetMemory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetMemory"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).GetMemory(ctx, req.(*GetMemoryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func forgetHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(query.ForgetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Forget(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Forget"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Forget(ctx, req.(*query.ForgetRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func shareHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(query.ShareRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Share(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Share"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Share(ctx, req.(*query.ShareRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func checkpointHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(query.CheckpointRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Checkpoint(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Checkpoint"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Checkpoint(ctx, req.(*query.CheckpointRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func branchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(query.BranchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Branch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Branch"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Branch(ctx, req.(*query.BranchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func mergeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(query.MergeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Merge(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Merge"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Merge(ctx, req.(*query.MergeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func replayHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(query.ReplayRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Replay(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Replay"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Replay(ctx, req.(*query.ReplayRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func verifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(query.VerifyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Verify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Verify"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Verify(ctx, req.(*query.VerifyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func delegateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(query.DelegateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Delegate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Delegate"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).Delegate(ctx, req.(*query.DelegateRequest))
	}
	return interceptor(ctx, in, info, handler)
}
