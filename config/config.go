package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Black-And-White-Club/quickdraw/internal/observability"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	Redis         RedisConfig         `yaml:"redis"`
	HTTP          HTTPConfig          `yaml:"http"`
	Auth          AuthConfig          `yaml:"auth"`
	Game          GameConfig          `yaml:"game"`
	Treasury      TreasuryConfig      `yaml:"treasury"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Exchange      ExchangeConfig      `yaml:"exchange"`
	Settlement    SettlementConfig    `yaml:"settlement"`
	Lease         LeaseConfig         `yaml:"lease"`
	Queue         QueueConfig         `yaml:"queue"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Archive       ArchiveConfig       `yaml:"archive"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration. An empty URL publishes events in-process.
type NATSConfig struct {
	URL      string `yaml:"url"`
	NKeySeed string `yaml:"nkey_seed"`
}

// RedisConfig holds Redis configuration for the redis lease backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`
}

// AuthConfig holds operator token settings. An empty secret disables the admin routes.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// GameConfig holds match rules and timing.
type GameConfig struct {
	MaxPlayers               int           `yaml:"max_players"`
	EntryFeeLamports         int64         `yaml:"entry_fee_lamports"`
	CountdownDuration        time.Duration `yaml:"countdown_duration"`
	RoundDuration            time.Duration `yaml:"round_duration"`
	RoundBuffer              time.Duration `yaml:"round_buffer"`
	LockTTL                  time.Duration `yaml:"lock_ttl"`
	GraceWindow              time.Duration `yaml:"grace_window"`
	PaymentToleranceBps      int           `yaml:"payment_tolerance_bps"`
	FixedTransferFeeLamports int64         `yaml:"fixed_transfer_fee_lamports"`
	MaxClientLatencyCredit   time.Duration `yaml:"max_client_latency_credit"`
	StaleLobbyAfter          time.Duration `yaml:"stale_lobby_after"`
	TokenSymbol              string        `yaml:"token_symbol"`
	PayoutAssetMint          string        `yaml:"payout_asset_mint"`
	PayoutAssetDecimals      int           `yaml:"payout_asset_decimals"`
}

// TreasuryConfig identifies the custody wallet holding the pools.
type TreasuryConfig struct {
	Address string `yaml:"address"`
}

// LedgerConfig holds the custody gateway connection.
type LedgerConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// ExchangeConfig holds the swap aggregator connection.
type ExchangeConfig struct {
	URL         string        `yaml:"url"`
	APIKey      string        `yaml:"api_key"`
	SlippageBps int           `yaml:"slippage_bps"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SettlementConfig holds payout retry behaviour.
type SettlementConfig struct {
	TransferAttempts int           `yaml:"transfer_attempts"`
	BackoffStep      time.Duration `yaml:"backoff_step"`
	HouseFeeBps      int           `yaml:"house_fee_bps"`
}

// LeaseConfig selects the advisory lease backend: memory, redis or postgres.
type LeaseConfig struct {
	Backend string `yaml:"backend"`
}

// QueueConfig toggles the river job queue.
type QueueConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SchedulerConfig holds the maintenance sweep intervals. Zero disables a sweep.
type SchedulerConfig struct {
	TickInterval     time.Duration `yaml:"tick_interval"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval"`
	TransferInterval time.Duration `yaml:"transfer_interval"`
}

// ArchiveConfig holds the S3-compatible bucket receiving payment summaries.
// An empty bucket disables archiving.
type ArchiveConfig struct {
	AccountID       string `yaml:"account_id"`
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	ServiceName    string `yaml:"service_name"`
	Version        string `yaml:"version"`
	Environment    string `yaml:"environment"`
	MetricsAddress string `yaml:"metrics_address"`
}

// Default returns a configuration with every tunable at its production default.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:      ":8080",
			RateLimit: 10,
			RateBurst: 20,
		},
		Auth: AuthConfig{TokenTTL: 24 * time.Hour},
		Game: GameConfig{
			MaxPlayers:               8,
			EntryFeeLamports:         100_000_000,
			CountdownDuration:        15 * time.Second,
			RoundDuration:            10 * time.Second,
			RoundBuffer:              5 * time.Second,
			LockTTL:                  30 * time.Second,
			GraceWindow:              10 * time.Second,
			PaymentToleranceBps:      9500,
			FixedTransferFeeLamports: 5_000,
			MaxClientLatencyCredit:   time.Second,
			StaleLobbyAfter:          30 * time.Minute,
			TokenSymbol:              "SOL",
			PayoutAssetMint:          "So11111111111111111111111111111111111111112",
			PayoutAssetDecimals:      9,
		},
		Ledger:   LedgerConfig{Timeout: 15 * time.Second},
		Exchange: ExchangeConfig{SlippageBps: 50, Timeout: 30 * time.Second},
		Settlement: SettlementConfig{
			TransferAttempts: 3,
			BackoffStep:      2 * time.Second,
		},
		Lease: LeaseConfig{Backend: "postgres"},
		Queue: QueueConfig{Enabled: true},
		Scheduler: SchedulerConfig{
			TickInterval:     5 * time.Second,
			CleanupInterval:  time.Minute,
			TransferInterval: 5 * time.Minute,
		},
		Archive: ArchiveConfig{Prefix: "quickdraw"},
		Observability: ObservabilityConfig{
			ServiceName:    "quickdraw",
			Version:        "dev",
			Environment:    "production",
			MetricsAddress: ":9090",
		},
	}
}

// LoadConfig loads the configuration from a YAML file layered over the
// defaults, then applies environment overrides. A missing file means
// environment-only configuration. A .env file in the working directory is
// loaded first when present.
func LoadConfig(filename string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envOverrides binds environment variables to config fields.
type envOverrides struct {
	errs []error
}

func (e *envOverrides) str(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (e *envOverrides) list(key string, dst *[]string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (e *envOverrides) integer(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("invalid %s value: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *envOverrides) int64(key string, dst *int64) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("invalid %s value: %w", key, err))
			return
		}
		*dst = n
	}
}

func (e *envOverrides) float(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("invalid %s value: %w", key, err))
			return
		}
		*dst = f
	}
}

func (e *envOverrides) boolean(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true"
	}
}

func (e *envOverrides) duration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("invalid %s value: %w", key, err))
			return
		}
		*dst = d
	}
}

func applyEnv(cfg *Config) error {
	e := &envOverrides{}

	e.str("DATABASE_URL", &cfg.Postgres.DSN)
	e.str("NATS_URL", &cfg.NATS.URL)
	e.str("NATS_NKEY_SEED", &cfg.NATS.NKeySeed)
	e.str("REDIS_ADDR", &cfg.Redis.Addr)
	e.str("REDIS_PASSWORD", &cfg.Redis.Password)
	e.integer("REDIS_DB", &cfg.Redis.DB)

	e.str("HTTP_ADDR", &cfg.HTTP.Addr)
	e.list("HTTP_ALLOWED_ORIGINS", &cfg.HTTP.AllowedOrigins)
	e.float("HTTP_RATE_LIMIT", &cfg.HTTP.RateLimit)
	e.integer("HTTP_RATE_BURST", &cfg.HTTP.RateBurst)

	e.str("JWT_SECRET", &cfg.Auth.JWTSecret)
	e.duration("JWT_TOKEN_TTL", &cfg.Auth.TokenTTL)

	e.integer("GAME_MAX_PLAYERS", &cfg.Game.MaxPlayers)
	e.int64("GAME_ENTRY_FEE_LAMPORTS", &cfg.Game.EntryFeeLamports)
	e.duration("GAME_COUNTDOWN_DURATION", &cfg.Game.CountdownDuration)
	e.duration("GAME_ROUND_DURATION", &cfg.Game.RoundDuration)
	e.duration("GAME_ROUND_BUFFER", &cfg.Game.RoundBuffer)
	e.duration("GAME_LOCK_TTL", &cfg.Game.LockTTL)
	e.duration("GAME_GRACE_WINDOW", &cfg.Game.GraceWindow)
	e.integer("GAME_PAYMENT_TOLERANCE_BPS", &cfg.Game.PaymentToleranceBps)
	e.int64("GAME_FIXED_TRANSFER_FEE_LAMPORTS", &cfg.Game.FixedTransferFeeLamports)
	e.duration("GAME_MAX_CLIENT_LATENCY_CREDIT", &cfg.Game.MaxClientLatencyCredit)
	e.duration("GAME_STALE_LOBBY_AFTER", &cfg.Game.StaleLobbyAfter)
	e.str("GAME_TOKEN_SYMBOL", &cfg.Game.TokenSymbol)
	e.str("GAME_PAYOUT_ASSET_MINT", &cfg.Game.PayoutAssetMint)
	e.integer("GAME_PAYOUT_ASSET_DECIMALS", &cfg.Game.PayoutAssetDecimals)

	e.str("TREASURY_ADDRESS", &cfg.Treasury.Address)

	e.str("LEDGER_URL", &cfg.Ledger.URL)
	e.str("LEDGER_API_KEY", &cfg.Ledger.APIKey)
	e.duration("LEDGER_TIMEOUT", &cfg.Ledger.Timeout)

	e.str("EXCHANGE_URL", &cfg.Exchange.URL)
	e.str("EXCHANGE_API_KEY", &cfg.Exchange.APIKey)
	e.integer("EXCHANGE_SLIPPAGE_BPS", &cfg.Exchange.SlippageBps)
	e.duration("EXCHANGE_TIMEOUT", &cfg.Exchange.Timeout)

	e.integer("SETTLEMENT_TRANSFER_ATTEMPTS", &cfg.Settlement.TransferAttempts)
	e.duration("SETTLEMENT_BACKOFF_STEP", &cfg.Settlement.BackoffStep)
	e.integer("SETTLEMENT_HOUSE_FEE_BPS", &cfg.Settlement.HouseFeeBps)

	e.str("LEASE_BACKEND", &cfg.Lease.Backend)
	e.boolean("QUEUE_ENABLED", &cfg.Queue.Enabled)

	e.duration("SCHEDULER_TICK_INTERVAL", &cfg.Scheduler.TickInterval)
	e.duration("SCHEDULER_CLEANUP_INTERVAL", &cfg.Scheduler.CleanupInterval)
	e.duration("SCHEDULER_TRANSFER_INTERVAL", &cfg.Scheduler.TransferInterval)

	e.str("R2_ACCOUNT_ID", &cfg.Archive.AccountID)
	e.str("R2_ACCESS_KEY_ID", &cfg.Archive.AccessKeyID)
	e.str("R2_ACCESS_KEY_SECRET", &cfg.Archive.AccessKeySecret)
	e.str("R2_BUCKET", &cfg.Archive.Bucket)
	e.str("R2_ENDPOINT", &cfg.Archive.Endpoint)
	e.str("R2_PREFIX", &cfg.Archive.Prefix)

	e.str("ENV", &cfg.Observability.Environment)
	e.str("METRICS_ADDRESS", &cfg.Observability.MetricsAddress)
	e.str("SERVICE_VERSION", &cfg.Observability.Version)

	return errors.Join(e.errs...)
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Postgres.DSN != "", "postgres.dsn (DATABASE_URL) is required")
	check(c.Treasury.Address != "", "treasury.address (TREASURY_ADDRESS) is required")
	check(c.Ledger.URL != "", "ledger.url (LEDGER_URL) is required")

	g := c.Game
	check(g.MaxPlayers >= 2, "game.max_players must be at least 2, got %d", g.MaxPlayers)
	check(g.EntryFeeLamports > 0, "game.entry_fee_lamports must be positive")
	check(g.FixedTransferFeeLamports >= 0 && g.FixedTransferFeeLamports < g.EntryFeeLamports,
		"game.fixed_transfer_fee_lamports must be below the entry fee")
	check(g.CountdownDuration > 0, "game.countdown_duration must be positive")
	check(g.RoundDuration > 0, "game.round_duration must be positive")
	check(g.RoundBuffer >= 0, "game.round_buffer must not be negative")
	check(g.LockTTL > 0, "game.lock_ttl must be positive")
	check(g.GraceWindow >= 0, "game.grace_window must not be negative")
	check(g.PaymentToleranceBps > 0 && g.PaymentToleranceBps <= 10_000,
		"game.payment_tolerance_bps must be in (0, 10000], got %d", g.PaymentToleranceBps)
	check(g.PayoutAssetMint != "", "game.payout_asset_mint is required")
	check(g.PayoutAssetDecimals >= 0 && g.PayoutAssetDecimals <= 18,
		"game.payout_asset_decimals must be in [0, 18]")

	check(c.Settlement.TransferAttempts >= 1, "settlement.transfer_attempts must be at least 1")
	check(c.Settlement.HouseFeeBps >= 0 && c.Settlement.HouseFeeBps < 10_000,
		"settlement.house_fee_bps must be in [0, 10000)")
	check(c.Exchange.SlippageBps >= 0 && c.Exchange.SlippageBps <= 10_000,
		"exchange.slippage_bps must be in [0, 10000]")

	switch c.Lease.Backend {
	case "memory", "postgres":
	case "redis":
		check(c.Redis.Addr != "", "redis.addr is required for the redis lease backend")
	default:
		errs = append(errs, fmt.Errorf("lease.backend must be memory, redis or postgres, got %q", c.Lease.Backend))
	}

	if c.Auth.JWTSecret != "" {
		check(len(c.Auth.JWTSecret) >= 32, "auth.jwt_secret must be at least 32 characters")
	}
	if c.Archive.Bucket != "" {
		check(c.Archive.AccessKeyID != "" && c.Archive.AccessKeySecret != "",
			"archive credentials are required when archive.bucket is set")
		check(c.Archive.AccountID != "" || c.Archive.Endpoint != "",
			"archive.account_id or archive.endpoint is required when archive.bucket is set")
	}

	return errors.Join(errs...)
}

// ToObsConfig maps the observability section.
func ToObsConfig(appCfg *Config) observability.Config {
	return observability.Config{
		ServiceName: appCfg.Observability.ServiceName,
		Environment: appCfg.Observability.Environment,
		Version:     appCfg.Observability.Version,
	}
}
