package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcctx "github.com/dtroode/smartbank-server/internal/api/grpc/context"
	"github.com/dtroode/smartbank-server/internal/api/grpc/router"
	grpcServer "github.com/dtroode/smartbank-server/internal/api/grpc/server"
	"github.com/dtroode/smartbank-server/internal/auth"
	"github.com/dtroode/smartbank-server/internal/config"
	"github.com/dtroode/smartbank-server/internal/events"
	"github.com/dtroode/smartbank-server/internal/ledger"
	"github.com/dtroode/smartbank-server/internal/logger"
	"github.com/dtroode/smartbank-server/internal/model"
	"github.com/dtroode/smartbank-server/internal/repository/memory"
	"github.com/dtroode/smartbank-server/internal/repository/postgres"
	"github.com/dtroode/smartbank-server/internal/repository/redis"
	"github.com/dtroode/smartbank-server/internal/server"
	"github.com/dtroode/smartbank-server/internal/service"
	storage "github.com/dtroode/smartbank-server/internal/storage/minio"
	"github.com/dtroode/smartbank-server/internal/token"
	"github.com/dtroode/smartbank-server/internal/transfer"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

// ledgerStore is implemented by both the postgres and the in-memory repository.
type ledgerStore interface {
	model.LedgerStore
	model.EventOutbox
}

// closers are released in reverse order on shutdown.
type closers []func() error

func (c *closers) add(f func() error) { *c = append(*c, f) }

func (c closers) closeAll(logger *logger.Logger) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			logger.Error("failed to release resource", "error", err)
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel, cfg.LogFormat)

	logAppVersion()

	var resources closers
	defer resources.closeAll(logger)

	ledgerCfg, err := cfg.Ledger.Build()
	if err != nil {
		logger.Fatal("invalid ledger configuration", "error", err)
	}
	authCfg, err := cfg.Auth.ServiceConfig()
	if err != nil {
		logger.Fatal("invalid auth configuration", "error", err)
	}

	ledgerRepo, profileRepo, err := openStores(ctx, cfg, &resources, logger)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	sessionRepo, err := openSessionStore(ctx, cfg, &resources, logger)
	if err != nil {
		logger.Fatal("failed to initialize session store", "error", err)
	}

	payouts, payoutPublishers := newFundsTransfer(cfg, &resources, logger)
	bankLedger, err := ledger.New(ledgerCfg, ledgerRepo, payouts, logger)
	if err != nil {
		logger.Fatal("failed to create ledger", "error", err)
	}

	publishers, err := newPublishers(ctx, cfg, &resources, logger)
	if err != nil {
		logger.Fatal("failed to initialize event publishers", "error", err)
	}
	publishers = append(publishers, payoutPublishers...)
	relay, err := events.NewRelay(ledgerRepo, publishers, cfg.Relay.Build(), logger)
	if err != nil {
		logger.Fatal("failed to create event relay", "error", err)
	}

	tokenManager, err := token.NewJWT(cfg.JWT.Secret)
	if err != nil {
		logger.Fatal("failed to create token manager", "error", err)
	}
	nonces, err := auth.NewNonceRegistry(cfg.Auth.NonceConfig())
	if err != nil {
		logger.Fatal("failed to create nonce registry", "error", err)
	}
	sessions := auth.NewSessionManager(cfg.Auth.SessionConfig(), sessionRepo, tokenManager, logger)

	authService := service.NewAuth(authCfg, profileRepo, nonces, auth.NewVerifier(), sessions, time.Now, logger)
	bankService := service.NewBank(bankLedger, time.Now, logger)

	gs := router.New(authService, bankService, grpcctx.NewManager(), logger).Register()
	healthpb.RegisterHealthServer(gs, health.NewServer())
	reflection.Register(gs)
	srv := grpcServer.NewGRPCServer(gs, fmt.Sprintf(":%s", cfg.GRPC.Port), logger)
	sl := server.NewSecurityLayer(cfg.GRPC.EnableHTTPS, cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(sl)
	})
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		sweepNonces(gctx, nonces, cfg.Auth.NonceSweep, logger)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "address", srv.Address())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GRPC.ShutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped with error", "error", err)
	}

	// deliver whatever was committed during shutdown
	flushCtx, cancel := context.WithTimeout(context.Background(), cfg.GRPC.ShutdownTimeout)
	defer cancel()
	if n, err := relay.Flush(flushCtx); err != nil {
		logger.Error("final event flush failed", "error", err)
	} else if n > 0 {
		logger.Info("final event flush", "count", n)
	}

	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}

func openStores(ctx context.Context, cfg *config.Config, resources *closers, logger *logger.Logger) (ledgerStore, model.ProfileStore, error) {
	if cfg.Database.DSN == "" {
		logger.Warn("DATABASE_DSN is empty, ledger and profiles are kept in memory")
		return memory.NewLedgerRepository(), memory.NewProfileRepository(), nil
	}

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	resources.add(db.Close)

	return postgres.NewLedgerRepository(db), postgres.NewProfileRepository(db), nil
}

func openSessionStore(ctx context.Context, cfg *config.Config, resources *closers, logger *logger.Logger) (model.SessionStore, error) {
	if cfg.Redis.URL == "" {
		logger.Warn("REDIS_URL is empty, sessions are kept in memory")
		return memory.NewSessionRepository(), nil
	}

	client, err := redis.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	resources.add(client.Close)

	return redis.NewSessionRepository(client, cfg.Redis.KeyPrefix), nil
}

// newFundsTransfer returns the in-commit transfer and, when payouts go to Kafka,
// the relay publisher that delivers them after commit.
func newFundsTransfer(cfg *config.Config, resources *closers, logger *logger.Logger) (model.FundsTransfer, []model.EventPublisher) {
	if !cfg.Kafka.Enabled() || cfg.Kafka.PayoutsTopic == "" {
		logger.Warn("no payout broker configured, transfers are only logged")
		return transfer.NewLog(logger), nil
	}

	w := events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.PayoutsTopic)
	resources.add(w.Close)
	return transfer.NewQueued(logger), []model.EventPublisher{transfer.NewKafkaPayouts(w, logger)}
}

func newPublishers(ctx context.Context, cfg *config.Config, resources *closers, logger *logger.Logger) ([]model.EventPublisher, error) {
	var publishers []model.EventPublisher

	if cfg.Kafka.Enabled() {
		w := events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		resources.add(w.Close)
		publishers = append(publishers, events.NewKafkaPublisher(w, logger))
	}

	if cfg.Storage.Endpoint != "" {
		client, err := storage.NewClient(ctx, storage.Config{
			Endpoint:    cfg.Storage.Endpoint,
			AccessKey:   cfg.Storage.AccessKey,
			SecretKey:   cfg.Storage.SecretKey,
			UseSSL:      cfg.Storage.UseSSL,
			Bucket:      cfg.Storage.Bucket,
			ContentType: "application/x-ndjson",
		})
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, events.NewArchiver(client, cfg.Storage.Prefix, logger))
	}

	if len(publishers) == 0 {
		publishers = append(publishers, events.NewLogPublisher(logger))
	}
	return publishers, nil
}

func sweepNonces(ctx context.Context, nonces *auth.NonceRegistry, every time.Duration, logger *logger.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := nonces.Sweep(now); n > 0 {
				logger.Debug("expired nonces removed", "count", n)
			}
		}
	}
}
