package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dtroode/smartbank-server/internal/auth"
	"github.com/dtroode/smartbank-server/internal/events"
	"github.com/dtroode/smartbank-server/internal/ledger"
	"github.com/dtroode/smartbank-server/internal/model"
	"github.com/dtroode/smartbank-server/internal/service"
)

// Config contains server configuration parameters.
type Config struct {
	LogLevel  int      `env:"LOG_LEVEL" envDefault:"0"`
	LogFormat string   `env:"LOG_FORMAT" envDefault:"text"`
	GRPC      GRPC     `envPrefix:"GRPC_"`
	Database  Database `envPrefix:"DATABASE_"`
	Redis     Redis    `envPrefix:"REDIS_"`
	Kafka     Kafka    `envPrefix:"KAFKA_"`
	Storage   Storage  `envPrefix:"MINIO_"`
	JWT       JWT      `envPrefix:"JWT_"`
	Ledger    Ledger   `envPrefix:"LEDGER_"`
	Auth      Auth     `envPrefix:"AUTH_"`
	Relay     Relay    `envPrefix:"RELAY_"`
}

// GRPC contains gRPC server parameters.
type GRPC struct {
	Port               string        `env:"PORT" envDefault:"50051"`
	EnableHTTPS        bool          `env:"ENABLE_HTTPS" envDefault:"false"`
	CertFileName       string        `env:"CERT_FILE_NAME" envDefault:"cert.pem"`
	PrivateKeyFileName string        `env:"PRIVATE_KEY_FILE_NAME" envDefault:"key.pem"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Database contains database connection parameters. An empty DSN selects in-memory stores.
type Database struct {
	DSN string `env:"DSN"`
}

// Redis holds the session store location. An empty URL keeps sessions in memory.
type Redis struct {
	URL       string `env:"URL"`
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"smartbank"`
}

// Kafka configures event delivery and payout instructions.
type Kafka struct {
	Brokers      []string `env:"BROKERS" envSeparator:","`
	EventsTopic  string   `env:"EVENTS_TOPIC" envDefault:"smartbank.ledger-events"`
	PayoutsTopic string   `env:"PAYOUTS_TOPIC" envDefault:"smartbank.payouts"`
}

// Enabled reports whether any broker is configured.
func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

// Storage contains the event archive bucket. An empty endpoint disables archiving.
type Storage struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY" envDefault:"smartbank-access-key"`
	SecretKey string `env:"SECRET_KEY" envDefault:"smartbank-secret-key"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"smartbank-events"`
	Prefix    string `env:"PREFIX" envDefault:"events"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// JWT contains JWT-related parameters.
type JWT struct {
	Secret string `env:"SECRET" envDefault:"devsecret"`
}

// Ledger holds the bank constants. Amounts are in wei.
type Ledger struct {
	InterestRateBP   uint64 `env:"INTEREST_RATE_BP" envDefault:"500"`
	PerformanceFeeBP uint64 `env:"PERFORMANCE_FEE_BP" envDefault:"1000"`
	SecondsPerYear   uint64 `env:"SECONDS_PER_YEAR" envDefault:"31536000"`
	MinDeposit       string `env:"MIN_DEPOSIT_WEI" envDefault:"1000000000000000"`
	TreasuryOwner    string `env:"TREASURY_OWNER"`
	LockStripes      int    `env:"LOCK_STRIPES" envDefault:"256"`
}

// Build converts the settings to a ledger.Config.
func (l Ledger) Build() (ledger.Config, error) {
	owner, err := model.ParseAddress(l.TreasuryOwner)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("invalid treasury owner: %w", err)
	}
	minDeposit, err := model.ParseAmount(l.MinDeposit)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("invalid minimum deposit: %w", err)
	}

	return ledger.Config{
		InterestRateBP:   l.InterestRateBP,
		PerformanceFeeBP: l.PerformanceFeeBP,
		SecondsPerYear:   l.SecondsPerYear,
		MinDeposit:       minDeposit,
		TreasuryOwner:    owner,
		LockStripes:      l.LockStripes,
	}, nil
}

// Auth contains nonce, session and registration policy.
type Auth struct {
	NonceWindow       time.Duration `env:"NONCE_WINDOW" envDefault:"30m"`
	MaxPendingNonces  int           `env:"MAX_PENDING_NONCES" envDefault:"10000"`
	MaxConsumedNonces int           `env:"MAX_CONSUMED_NONCES" envDefault:"1000"`
	NonceSweep        time.Duration `env:"NONCE_SWEEP_INTERVAL" envDefault:"1m"`
	SessionTimeout    time.Duration `env:"SESSION_TIMEOUT" envDefault:"30m"`
	RenewalThreshold  time.Duration `env:"SESSION_RENEWAL_THRESHOLD" envDefault:"5m"`
	AutoProvision     bool          `env:"AUTO_PROVISION" envDefault:"false"`
	BootstrapAdmins   []string      `env:"BOOTSTRAP_ADMINS" envSeparator:","`
}

func (a Auth) NonceConfig() auth.NonceConfig {
	return auth.NonceConfig{
		Window:      a.NonceWindow,
		MaxPending:  a.MaxPendingNonces,
		MaxConsumed: a.MaxConsumedNonces,
	}
}

func (a Auth) SessionConfig() auth.SessionConfig {
	return auth.SessionConfig{
		Timeout:          a.SessionTimeout,
		RenewalThreshold: a.RenewalThreshold,
	}
}

// ServiceConfig parses the bootstrap admin addresses.
func (a Auth) ServiceConfig() (service.AuthConfig, error) {
	admins := make([]model.Address, 0, len(a.BootstrapAdmins))
	for _, raw := range a.BootstrapAdmins {
		addr, err := model.ParseAddress(raw)
		if err != nil {
			return service.AuthConfig{}, fmt.Errorf("invalid bootstrap admin: %w", err)
		}
		admins = append(admins, addr)
	}
	return service.AuthConfig{
		AutoProvision:   a.AutoProvision,
		BootstrapAdmins: admins,
	}, nil
}

// Relay controls the outbox relay.
type Relay struct {
	Interval  time.Duration `env:"INTERVAL" envDefault:"1s"`
	BatchSize int           `env:"BATCH_SIZE" envDefault:"100"`
}

func (r Relay) Build() events.RelayConfig {
	return events.RelayConfig{Interval: r.Interval, BatchSize: r.BatchSize}
}

// NewConfig loads configuration from environment variables. Values from the
// given env files (".env" when none are given) fill in variables that are not
// already set; missing files are ignored.
func NewConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
