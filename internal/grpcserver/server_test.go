package grpcserver_test

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"jobmate/marketplace-service/internal/grpcserver"
	"jobmate/marketplace-service/internal/marketplace"
	"jobmate/marketplace-service/internal/store/memory"
)

type fixture struct {
	conn  *grpc.ClientConn
	svc   *marketplace.Service
	jobID string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	svc := marketplace.NewService(store, marketplace.WithLogger(slog.New(slog.DiscardHandler)))

	job, err := svc.CreateJob(context.Background(),
		marketplace.Identity{ID: "client-1", Role: marketplace.RoleClient},
		marketplace.JobInput{Title: "Landing page", Description: "Static site", Budget: 300, Deadline: time.Now().Add(72 * time.Hour)},
	)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	gs := grpcserver.NewGRPCServer(svc, nil, slog.New(slog.DiscardHandler))
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &fixture{conn: conn, svc: svc, jobID: job.ID}
}

func (f *fixture) call(t *testing.T, method, userID, role string, fields map[string]any) (*structpb.Struct, error) {
	t.Helper()
	req, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	ctx := context.Background()
	if userID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-user-id", userID, "x-user-role", role)
	}
	resp := new(structpb.Struct)
	err = f.conn.Invoke(ctx, "/"+grpcserver.ServiceName+"/"+method, req, resp)
	return resp, err
}

func TestApplyAcceptFlow(t *testing.T) {
	f := setup(t)

	if _, err := f.call(t, "Apply", "free-1", "freelancer", map[string]any{"jobId": f.jobID}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	resp, err := f.call(t, "Accept", "client-1", "client", map[string]any{"jobId": f.jobID, "applicantId": "free-1"})
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got := resp.GetFields()["status"].GetStringValue(); got != "in-progress" {
		t.Errorf("status = %q, want in-progress", got)
	}
}

func TestErrorMapping(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name   string
		method string
		user   string
		role   string
		fields map[string]any
		want   codes.Code
	}{
		{"no metadata", "Apply", "", "", map[string]any{"jobId": f.jobID}, codes.Unauthenticated},
		{"unknown role", "Apply", "u1", "admin", map[string]any{"jobId": f.jobID}, codes.Unauthenticated},
		{"client cannot apply", "Apply", "client-2", "client", map[string]any{"jobId": f.jobID}, codes.PermissionDenied},
		{"malformed id", "Apply", "free-1", "freelancer", map[string]any{"jobId": "nope"}, codes.InvalidArgument},
		{"unknown applicant", "Accept", "client-1", "client", map[string]any{"jobId": f.jobID, "applicantId": "ghost"}, codes.NotFound},
		{"complete open job", "Complete", "client-1", "client", map[string]any{"jobId": f.jobID}, codes.FailedPrecondition},
		{"blank comment", "PostComment", "free-1", "freelancer", map[string]any{"jobId": f.jobID, "text": "   "}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.call(t, tt.method, tt.user, tt.role, tt.fields)
			if got := status.Code(err); got != tt.want {
				t.Errorf("code = %v, want %v (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestGetJobAndComment(t *testing.T) {
	f := setup(t)

	c, err := f.call(t, "PostComment", "free-1", "freelancer", map[string]any{"jobId": f.jobID, "text": "Is hosting included?"})
	if err != nil {
		t.Fatalf("PostComment: %v", err)
	}
	if c.GetFields()["text"].GetStringValue() != "Is hosting included?" {
		t.Errorf("comment = %v", c)
	}

	job, err := f.call(t, "GetJob", "", "", map[string]any{"jobId": f.jobID})
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if n := len(job.GetFields()["comments"].GetListValue().GetValues()); n != 1 {
		t.Errorf("comments = %d, want 1", n)
	}
}

func TestHealthService(t *testing.T) {
	f := setup(t)
	resp, err := healthpb.NewHealthClient(f.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: grpcserver.ServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.GetStatus())
	}
}
