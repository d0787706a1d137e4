package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "STORE_DRIVER", "CACHE_DRIVER", "PAY_ORDER_TTL", "PAY_SETTLE_WINDOW", "POINTS_PER_UNIT", "MEMBERSHIP_RENEWAL", "LOG_LEVEL", "REDIS_DB", "NOTIFY_WORKERS", "PAY_TIMEOUT", "TELEGRAM_ALERT_CHAT_ID"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, DriverPostgres, cfg.StoreDriver)
	require.Equal(t, 30*time.Minute, cfg.Payment.OrderTTL)
	require.Equal(t, 2*time.Hour, cfg.Payment.SettleWindow)
	require.EqualValues(t, 10, cfg.PointsPerUnit)
	require.Equal(t, "non_stacking", cfg.Renewal)
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("CACHE_DRIVER", "memory")
	t.Setenv("PAY_ORDER_TTL", "1800")
	t.Setenv("PAY_TIMEOUT", "3s")
	t.Setenv("MEMBERSHIP_RENEWAL", "stacking")
	t.Setenv("TELEGRAM_ALERT_CHAT_ID", "-100123")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverMemory, cfg.StoreDriver)
	require.Equal(t, 30*time.Minute, cfg.Payment.OrderTTL)
	require.Equal(t, 3*time.Second, cfg.Payment.Timeout)
	require.Equal(t, "stacking", cfg.Renewal)
	require.EqualValues(t, -100123, cfg.Telegram.AlertChatID)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("POINTS_PER_UNIT", "abc")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "STORE_DRIVER")
	require.Contains(t, err.Error(), "POINTS_PER_UNIT")
}

func TestLoadRejectsSettleWindowShorterThanTTL(t *testing.T) {
	t.Setenv("PAY_ORDER_TTL", "1h")
	t.Setenv("PAY_SETTLE_WINDOW", "10m")

	_, err := Load()
	require.ErrorContains(t, err, "PAY_SETTLE_WINDOW")
}

func TestValidateServe(t *testing.T) {
	cfg := &Config{}
	err := cfg.ValidateServe()
	require.ErrorContains(t, err, "JWT_SECRET")

	cfg.JWTSecret = "s"
	cfg.Payment = PaymentConfig{PID: "1", Key: "k", NotifyURL: "http://x/cb"}
	require.NoError(t, cfg.ValidateServe())
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.env")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nexport INKPAY_A=1\nINKPAY_B=\"two words\"\nINKPAY_C=x # trailing\n"), 0o600))

	t.Setenv("INKPAY_A", "")
	os.Unsetenv("INKPAY_A")
	t.Setenv("INKPAY_B", "kept")
	t.Setenv("INKPAY_C", "")
	os.Unsetenv("INKPAY_C")

	require.NoError(t, LoadEnvFile(path))
	require.Equal(t, "1", os.Getenv("INKPAY_A"))
	require.Equal(t, "kept", os.Getenv("INKPAY_B"))
	require.Equal(t, "x", os.Getenv("INKPAY_C"))

	require.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}

func TestLoadEnvFileRejectsMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.env")
	require.NoError(t, os.WriteFile(path, []byte("GOOD=1\nnot a pair\n"), 0o600))

	err := LoadEnvFile(path)
	require.ErrorContains(t, err, ":2:")
}

func TestLoadPlans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`plans:
  - id: monthly
    name: Monthly
    price: "19.90"
    duration_days: 30
  - id: legacy
    name: Legacy
    price: "5"
    duration_days: 7
    active: false
`), 0o600))

	plans, err := LoadPlans(path)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	require.Equal(t, "19.9", plans[0].Price.String())
	require.True(t, plans[0].IsActive)
	require.Equal(t, 30, plans[0].DurationDays)
	require.False(t, plans[1].IsActive)
}
