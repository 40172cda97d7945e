package admin

import (
	"context"
	"errors"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"net"
	"time"
)

const (
	ServiceName   = "world.admin.v1.Admin"
	executeMethod = "/" + ServiceName + "/Execute"
)

// AdminServer 管理接口, 请求与响应都是 structpb.Struct
// 请求: {"command": "...", "author": "..."}, 响应: {"status": "...", "message": "..."}
type AdminServer interface {
	Execute(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: executeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServer).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: executeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "world/admin/v1/admin.proto",
}

func RegisterAdminServer(registrar grpc.ServiceRegistrar, srv AdminServer) {
	registrar.RegisterService(&serviceDesc, srv)
}

type GRPCService struct {
	submitter Submitter
	timeout   time.Duration
}

func NewGRPCService(submitter Submitter, timeout time.Duration) *GRPCService {
	return &GRPCService{submitter: submitter, timeout: timeout}
}

func (s *GRPCService) Execute(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	fields := request.GetFields()
	line := fields["command"].GetStringValue()
	author := fields["author"].GetStringValue()
	if line == "" {
		return nil, status.Error(codes.InvalidArgument, "command is required")
	}
	if author == "" {
		author = "grpc"
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	logger.InfoF("Admin command from %s: %s", author, line)
	result := Execute(ctx, s.submitter, line, author)
	return resultToStruct(result)
}

func resultToStruct(result Result) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"status":  result.Status.String(),
		"message": result.Message,
	})
}

func resultFromStruct(response *structpb.Struct) Result {
	fields := response.GetFields()
	result := Result{Message: fields["message"].GetStringValue()}
	result.Status, _ = ParseStatus(fields["status"].GetStringValue())
	return result
}

// Server 托管管理接口和健康检查
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
}

func NewServer(listener net.Listener, service AdminServer) *Server {
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	RegisterAdminServer(grpcServer, service)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return &Server{listener: listener, grpcServer: grpcServer, health: healthServer}
}

func Listen(addr string, service AdminServer) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return NewServer(listener, service), nil
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve 阻塞直到 ctx 取消或服务出错
func (s *Server) Serve(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		logger.InfoF("Admin gRPC server listening on %s", s.Addr())
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func (s *Server) Invoke(_ context.Context) error {
	s.health.Shutdown()
	s.grpcServer.Stop()
	return nil
}

// Client world-ctl 使用的客户端
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) Execute(ctx context.Context, line string, author string) (Result, error) {
	request, err := structpb.NewStruct(map[string]any{"command": line, "author": author})
	if err != nil {
		return Result{}, err
	}
	response := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, executeMethod, request, response); err != nil {
		return Result{}, err
	}
	return resultFromStruct(response), nil
}
