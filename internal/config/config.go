package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type PaymentConfig struct {
	PID       string
	Key       string
	APIURL    string
	NotifyURL string
	ReturnURL string
	OrderTTL  time.Duration
	// SettleWindow is how long an unpaid order stays pending before the sweep fails it.
	SettleWindow time.Duration
	Timeout      time.Duration
}

type TelegramConfig struct {
	Token       string
	AlertChatID int64
}

type Config struct {
	HTTPAddr      string
	StoreDriver   string
	PostgresDSN   string
	CacheDriver   string
	Redis         RedisConfig
	JWTSecret     string
	Payment       PaymentConfig
	PointsPerUnit int64
	Renewal       string
	SweepSpec     string
	Telegram      TelegramConfig
	NotifyWorkers int
	LogLevel      slog.Level
	PlansFile     string
}

// Load reads the service configuration from the environment.
func Load() (*Config, error) {
	var errs []string
	fail := func(key string, err error) {
		errs = append(errs, fmt.Sprintf("%s: %v", key, err))
	}

	cfg := &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		CacheDriver: strings.ToLower(getEnv("CACHE_DRIVER", DriverRedis)),
		Redis: RedisConfig{
			Addr:     fmt.Sprintf("%s:%s", getEnv("REDIS_HOST", "localhost"), getEnv("REDIS_PORT", "6379")),
			Password: os.Getenv("REDIS_PASSWORD"),
			Prefix:   getEnv("REDIS_PREFIX", "inkpay"),
		},
		JWTSecret: os.Getenv("JWT_SECRET"),
		Payment: PaymentConfig{
			PID:       os.Getenv("PAY_PID"),
			Key:       os.Getenv("PAY_KEY"),
			APIURL:    getEnv("PAY_API_URL", "https://zpayz.cn/mapi.php"),
			NotifyURL: os.Getenv("PAY_NOTIFY_URL"),
			ReturnURL: os.Getenv("PAY_RETURN_URL"),
		},
		Renewal:   strings.ToLower(getEnv("MEMBERSHIP_RENEWAL", "non_stacking")),
		SweepSpec: getEnv("SWEEP_SPEC", "@every 5m"),
		Telegram: TelegramConfig{
			Token: os.Getenv("TELEGRAM_BOT_TOKEN"),
		},
		PlansFile: os.Getenv("PLANS_FILE"),
	}

	var err error
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		fail("REDIS_DB", err)
	}
	if cfg.Payment.OrderTTL, err = getDuration("PAY_ORDER_TTL", 30*time.Minute); err != nil {
		fail("PAY_ORDER_TTL", err)
	}
	if cfg.Payment.SettleWindow, err = getDuration("PAY_SETTLE_WINDOW", 2*time.Hour); err != nil {
		fail("PAY_SETTLE_WINDOW", err)
	}
	if cfg.Payment.Timeout, err = getDuration("PAY_TIMEOUT", 10*time.Second); err != nil {
		fail("PAY_TIMEOUT", err)
	}
	perUnit, err := getInt("POINTS_PER_UNIT", 10)
	if err != nil {
		fail("POINTS_PER_UNIT", err)
	}
	cfg.PointsPerUnit = int64(perUnit)
	if cfg.NotifyWorkers, err = getInt("NOTIFY_WORKERS", 2); err != nil {
		fail("NOTIFY_WORKERS", err)
	}
	if raw := os.Getenv("TELEGRAM_ALERT_CHAT_ID"); raw != "" {
		if cfg.Telegram.AlertChatID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			fail("TELEGRAM_ALERT_CHAT_ID", err)
		}
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		fail("LOG_LEVEL", err)
	}

	switch cfg.StoreDriver {
	case DriverPostgres, DriverMemory:
	default:
		fail("STORE_DRIVER", fmt.Errorf("unsupported driver %q", cfg.StoreDriver))
	}
	switch cfg.CacheDriver {
	case DriverRedis, DriverMemory:
	default:
		fail("CACHE_DRIVER", fmt.Errorf("unsupported driver %q", cfg.CacheDriver))
	}
	switch cfg.Renewal {
	case "stacking", "non_stacking":
	default:
		fail("MEMBERSHIP_RENEWAL", fmt.Errorf("expected stacking or non_stacking, got %q", cfg.Renewal))
	}
	if cfg.PointsPerUnit <= 0 {
		fail("POINTS_PER_UNIT", fmt.Errorf("must be positive"))
	}
	if cfg.Payment.OrderTTL <= 0 {
		fail("PAY_ORDER_TTL", fmt.Errorf("must be positive"))
	}
	if cfg.Payment.SettleWindow < cfg.Payment.OrderTTL {
		fail("PAY_SETTLE_WINDOW", fmt.Errorf("must not be shorter than PAY_ORDER_TTL"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// ValidateServe checks the settings the HTTP server cannot run without.
func (c *Config) ValidateServe() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Payment.PID == "" {
		missing = append(missing, "PAY_PID")
	}
	if c.Payment.Key == "" {
		missing = append(missing, "PAY_KEY")
	}
	if c.Payment.NotifyURL == "" {
		missing = append(missing, "PAY_NOTIFY_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}
