// Package grpcserver implements the marketplace.v1.JobService gRPC server.
//
// It delegates all business logic to marketplace.Service and handles only
// the gRPC transport concerns: metadata extraction, error mapping, and
// conversion between the domain model and google.protobuf.Struct messages.
// Using Struct keeps the wire contract self-describing without generated
// stubs; every method takes and returns a Struct.
package grpcserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"jobmate/marketplace-service/internal/marketplace"
	"jobmate/marketplace-service/internal/ratelimit"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "marketplace.v1.JobService"

// jobServiceServer is the method set registered under ServiceName.
type jobServiceServer interface {
	Apply(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Accept(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Complete(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PostComment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*jobServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Apply", Handler: unary("Apply", jobServiceServer.Apply)},
		{MethodName: "Accept", Handler: unary("Accept", jobServiceServer.Accept)},
		{MethodName: "Reject", Handler: unary("Reject", jobServiceServer.Reject)},
		{MethodName: "Complete", Handler: unary("Complete", jobServiceServer.Complete)},
		{MethodName: "PostComment", Handler: unary("PostComment", jobServiceServer.PostComment)},
		{MethodName: "GetJob", Handler: unary("GetJob", jobServiceServer.GetJob)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "marketplace/v1/job_service.proto",
}

func unary(method string, call func(jobServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(jobServiceServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*structpb.Struct))
		})
	}
}

// Server implements the JobService methods.
type Server struct {
	svc *marketplace.Service
}

// NewServer constructs a Server backed by the given marketplace.Service.
func NewServer(svc *marketplace.Service) *Server {
	return &Server{svc: svc}
}

// Register mounts the JobService and the standard health service on gs.
func (s *Server) Register(gs *grpc.Server) *health.Server {
	gs.RegisterService(&serviceDesc, s)
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return hs
}

// NewGRPCServer builds a grpc.Server with logging and per-identity rate
// limiting interceptors, with the JobService registered.
func NewGRPCServer(svc *marketplace.Service, limiter *ratelimit.Limiter, logger *slog.Logger) *grpc.Server {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		loggingInterceptor(logger),
		rateLimitInterceptor(limiter),
	))
	NewServer(svc).Register(gs)
	return gs
}

// ─── RPC implementations ──────────────────────────────────────────────────────

// Apply registers the caller as an applicant.
func (s *Server) Apply(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	who, err := identityFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	job, err := s.svc.Apply(ctx, field(req, "jobId"), who)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(job)
}

// Accept engages one applicant.
func (s *Server) Accept(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	who, err := identityFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	job, err := s.svc.Accept(ctx, field(req, "jobId"), field(req, "applicantId"), who)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(job)
}

// Reject declines one applicant.
func (s *Server) Reject(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	who, err := identityFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	job, err := s.svc.Reject(ctx, field(req, "jobId"), field(req, "applicantId"), who)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(job)
}

// Complete closes an in-progress job.
func (s *Server) Complete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	who, err := identityFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	job, err := s.svc.Complete(ctx, field(req, "jobId"), who)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(job)
}

// PostComment appends a comment.
func (s *Server) PostComment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	who, err := identityFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.svc.PostComment(ctx, field(req, "jobId"), who, field(req, "text"))
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(c)
}

// GetJob returns a job with its owner resolved. No identity is required.
func (s *Server) GetJob(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	job, err := s.svc.GetJob(ctx, field(req, "jobId"))
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(job)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// identityFromCtx extracts x-user-id / x-user-role forwarded by the Gateway
// via gRPC metadata.
func identityFromCtx(ctx context.Context) (marketplace.Identity, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return marketplace.Identity{}, status.Error(codes.Unauthenticated, "missing metadata")
	}
	ids := md.Get("x-user-id")
	if len(ids) == 0 || ids[0] == "" {
		return marketplace.Identity{}, status.Error(codes.Unauthenticated, "missing x-user-id metadata")
	}
	roles := md.Get("x-user-role")
	if len(roles) == 0 {
		return marketplace.Identity{}, status.Error(codes.Unauthenticated, "missing x-user-role metadata")
	}
	role, err := marketplace.ParseRole(roles[0])
	if err != nil {
		return marketplace.Identity{}, status.Error(codes.Unauthenticated, err.Error())
	}
	return marketplace.Identity{ID: ids[0], Role: role}, nil
}

// toGRPCError maps domain errors to gRPC status errors.
func toGRPCError(err error) error {
	switch marketplace.KindOf(err) {
	case marketplace.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case marketplace.KindForbidden:
		return status.Error(codes.PermissionDenied, err.Error())
	case marketplace.KindConflict:
		return status.Error(codes.FailedPrecondition, err.Error())
	case marketplace.KindInvalidInput:
		return status.Error(codes.InvalidArgument, err.Error())
	case marketplace.KindUnauthenticated:
		return status.Error(codes.Unauthenticated, err.Error())
	default:
		return status.Error(codes.Unavailable, "service unavailable")
	}
}

func field(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

// toStruct converts any JSON-encodable value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

// ─── Interceptors ─────────────────────────────────────────────────────────────

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
		)
		return resp, err
	}
}

func rateLimitInterceptor(limiter *ratelimit.Limiter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get("x-user-id"); len(ids) > 0 {
				if ok, wait := limiter.Allow(ids[0], time.Now()); !ok {
					return nil, status.Errorf(codes.ResourceExhausted, "too many requests, retry in %s", wait.Round(time.Millisecond))
				}
			}
		}
		return handler(ctx, req)
	}
}
