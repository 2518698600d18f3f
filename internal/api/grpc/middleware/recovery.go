package middleware

import (
	"context"
	"runtime/debug"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/smartbank-server/internal/logger"
)

// Recovery converts handler panics into Internal errors.
type Recovery struct {
	logger *logger.Logger
}

func NewRecovery(logger *logger.Logger) *Recovery {
	return &Recovery{logger: logger}
}

func (r *Recovery) handle(_ context.Context, p any) error {
	r.logger.Error("gRPC handler panicked", "panic", p, "stack", string(debug.Stack()))
	return status.Error(codes.Internal, "internal server error")
}

// UnaryServerInterceptor returns the recovery interceptor.
func (r *Recovery) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return recovery.UnaryServerInterceptor(recovery.WithRecoveryHandlerContext(r.handle))
}
