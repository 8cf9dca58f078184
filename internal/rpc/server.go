package rpc

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ASHISH26940/heliokv/internal/service"
)

const (
	serviceName         = "heliokv.KeyValue"
	methodUpdate        = "/" + serviceName + "/Update"
	methodRead          = "/" + serviceName + "/Read"
	methodHandleRequest = "/" + serviceName + "/HandleRequest"
)

// keyValueServer is the handler set registered with grpc.
type keyValueServer interface {
	Update(context.Context, *UpdateRequest) (*UpdateResponse, error)
	Read(context.Context, *ReadRequest) (*ReadResponse, error)
	HandleRequest(context.Context, *LineRequest) (*LineResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*keyValueServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Update", Handler: updateHandler},
		{MethodName: "Read", Handler: readHandler},
		{MethodName: "HandleRequest", Handler: handleRequestHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "heliokv.proto",
}

func updateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(UpdateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(keyValueServer).Update(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodUpdate}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(keyValueServer).Update(ctx, req.(*UpdateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func readHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ReadRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(keyValueServer).Read(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRead}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(keyValueServer).Read(ctx, req.(*ReadRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleRequestHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LineRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(keyValueServer).HandleRequest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodHandleRequest}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(keyValueServer).HandleRequest(ctx, req.(*LineRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Server serves a KeyValueService over gRPC.
type Server struct {
	svc  service.KeyValueService
	lg   *zap.Logger
	grpc *grpc.Server
}

// NewServer creates a gRPC server for svc.
func NewServer(svc service.KeyValueService, lg *zap.Logger) *Server {
	s := &Server{svc: svc, lg: lg}
	s.grpc = grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.ChainUnaryInterceptor(s.recoveryInterceptor, s.loggingInterceptor),
	)
	s.grpc.RegisterService(&serviceDesc, s)
	return s
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.lg.Info("serving gRPC", zap.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return errors.Wrap(err, "serve gRPC")
	}
	return nil
}

// Stop waits for in-flight calls to finish and stops the server.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

func (s *Server) Update(ctx context.Context, _ *UpdateRequest) (*UpdateResponse, error) {
	if err := s.svc.Update(); err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return &UpdateResponse{}, nil
}

func (s *Server) Read(ctx context.Context, _ *ReadRequest) (*ReadResponse, error) {
	v, err := s.svc.Read()
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return &ReadResponse{Counter: v}, nil
}

func (s *Server) HandleRequest(ctx context.Context, req *LineRequest) (*LineResponse, error) {
	return &LineResponse{Response: s.svc.HandleRequest(req.Line)}, nil
}

// recoveryInterceptor turns a panic inside a handler into an Internal status.
func (s *Server) recoveryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.lg.Error("recovered from panic", zap.String("method", info.FullMethod), zap.Any("panic", r), zap.Stack("stack"))
			resp, err = nil, status.Errorf(codes.Internal, "internal error: %v", r)
		}
	}()
	return handler(ctx, req)
}

func (s *Server) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.lg.Debug("rpc",
		zap.String("method", info.FullMethod),
		zap.Duration("took", time.Since(start)),
		zap.Stringer("code", status.Code(err)))
	return resp, err
}
