package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/dtroode/smartbank-server/internal/logger"
	"github.com/dtroode/smartbank-server/internal/model"
)

var _ model.Server = (*GRPCServer)(nil)

// GRPCServer binds a gRPC server to a listen address.
type GRPCServer struct {
	server *grpc.Server
	addr   string
	logger *logger.Logger
}

func NewGRPCServer(server *grpc.Server, addr string, logger *logger.Logger) *GRPCServer {
	return &GRPCServer{server: server, addr: addr, logger: logger}
}

// Start listens through securityLayer and serves until Stop is called.
func (s *GRPCServer) Start(securityLayer model.SecurityLayer) error {
	listener, err := securityLayer.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.logger.Info("gRPC server: listening", "address", listener.Addr().String())

	if err := s.server.Serve(listener); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop drains in-flight calls. When ctx ends first the remaining calls are cut off.
func (s *GRPCServer) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		<-done
		return fmt.Errorf("graceful stop interrupted: %w", ctx.Err())
	}
}

func (s *GRPCServer) Address() string {
	return s.addr
}
