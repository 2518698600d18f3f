package router

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"

	"github.com/dtroode/smartbank-server/internal/api/grpc/handler"
	"github.com/dtroode/smartbank-server/internal/api/grpc/middleware"
	"github.com/dtroode/smartbank-server/internal/api/grpc/rpc"
	"github.com/dtroode/smartbank-server/internal/logger"
	"github.com/dtroode/smartbank-server/internal/model"
)

// AuthService is everything the router needs from the auth coordinator.
type AuthService interface {
	handler.AuthService
	handler.ProfileService
	middleware.Authenticator
}

// Router wires handlers and interceptors into a gRPC server.
type Router struct {
	authService    AuthService
	ledgerService  handler.LedgerService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// New creates new gRPC Router instance.
func New(
	authService AuthService,
	ledgerService handler.LedgerService,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Router {
	return &Router{
		authService:    authService,
		ledgerService:  ledgerService,
		contextManager: contextManager,
		logger:         logger,
	}
}

// requiresSession is false for the public smartbank.Auth service.
func requiresSession(_ context.Context, c interceptors.CallMeta) bool {
	return !strings.HasPrefix(c.FullMethod(), "/"+rpc.AuthServiceName+"/")
}

// Register builds the gRPC server with recovery, request logging and
// bearer-session authentication, and registers all smartbank services.
func (r *Router) Register(opts ...grpc.ServerOption) *grpc.Server {
	recovery := middleware.NewRecovery(r.logger)
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.authService, r.contextManager, r.logger)

	opts = append(opts, grpc.ChainUnaryInterceptor(
		recovery.UnaryServerInterceptor(),
		logging.HandleGRPC,
		selector.UnaryServerInterceptor(
			auth.UnaryServerInterceptor(authenticate.AuthFunc),
			selector.MatchFunc(requiresSession),
		),
	))

	s := grpc.NewServer(opts...)
	rpc.RegisterAuthServer(s, handler.NewAuth(r.authService, r.logger))
	rpc.RegisterLedgerServer(s, handler.NewLedger(r.ledgerService, r.contextManager, r.logger))
	rpc.RegisterProfileServer(s, handler.NewProfile(r.authService, r.contextManager, r.logger))

	return s
}
