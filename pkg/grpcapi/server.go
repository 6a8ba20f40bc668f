// Package grpcapi exposes mnemo's ten query-engine operations (spec
// §6) as a gRPC service, grounded on the same collaborator wiring
// pkg/api uses for REST — a thin Server wrapping *query.Engine, with
// errors mapped from the shared mnemoerr taxonomy instead of HTTP
// status codes. No .proto file backs this service: the ServiceDesc in
// service.go is written out by hand and messages travel over the
// hand-rolled JSON codec in codec.go, in place of protoc-generated
// stubs and protobuf wire encoding.
package grpcapi

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/query"
	"github.com/mnemo-db/mnemo/pkg/storage"
)

// Server implements the MemoryService methods declared in service.go.
type Server struct {
	Engine  *query.Engine
	Storage storage.Backend
	Logger  *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// NewGRPCServer builds a *grpc.Server with the mnemo service
// registered and the JSON codec forced for every call, so it never
// attempts protobuf wire decoding.
func NewGRPCServer(engine *query.Engine, backend storage.Backend, logger *slog.Logger) *grpc.Server {
	srv := grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	RegisterMemoryServiceServer(srv, &Server{Engine: engine, Storage: backend, Logger: logger})
	return srv
}

// grpcError maps a mnemoerr.Kind to the matching gRPC status code,
// mirroring pkg/api.writeError's Kind switch (spec §7): Validation,
// PermissionDenied, and NotFound carry their message through; every
// other kind is logged and replaced with a generic Internal status so
// internals never leak to a caller.
func grpcError(logger *slog.Logger, err error) error {
	if err == nil {
		return nil
	}
	switch mnemoerr.KindOf(err) {
	case mnemoerr.KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case mnemoerr.KindPermissionDenied:
		return status.Error(codes.PermissionDenied, err.Error())
	case mnemoerr.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	default:
		logger.Error("internal error serving grpc request", "error", err)
		return status.Error(codes.Internal, "internal server error")
	}
}
