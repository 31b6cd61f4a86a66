package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_ReadsFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "billing.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
stripe:
  secret_key: sk_test_123
  webhook_secret: whsec_abc
billing:
  site_url: https://studygenius.example/
  plans:
    basic: price_basic
    pro: price_pro
`), 0o600))
	t.Setenv("APP_CONFIG_FILE", file)

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, "sk_test_123", cfg.Stripe.SecretKey)
	require.Equal(t, "whsec_abc", cfg.Stripe.WebhookSecret)
	require.Equal(t, "https://studygenius.example", cfg.Billing.SiteURL)
	require.Equal(t, 8888, cfg.Server.Port)
	require.True(t, cfg.Billing.AutomaticTax)
	require.False(t, cfg.Billing.DiscardStaleEvents)

	price, ok := cfg.PriceForPlan("Pro")
	require.True(t, ok)
	require.Equal(t, "price_pro", price)

	_, ok = cfg.PriceForPlan("enterprise")
	require.False(t, ok)
}

func TestPriceForPlan_NilSafety(t *testing.T) {
	var c *Config
	_, ok := c.PriceForPlan("basic")
	require.False(t, ok)
}

func TestNew_RejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
env: staging
server:
  port: 70000
`), 0o600))
	t.Setenv("APP_CONFIG_FILE", file)

	_, err := New()
	require.Error(t, err)
	require.Contains(t, err.Error(), "Env")
	require.Contains(t, err.Error(), "Port")
}

func TestNew_EnvOverridesAndRedisDefaults(t *testing.T) {
	t.Setenv("APP_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := New()
	require.Error(t, err, "an explicit config file must exist")

	t.Setenv("APP_CONFIG_FILE", "")
	t.Setenv("APP_CONFIG_NAME", "no-such-config")
	t.Setenv("APP_BILLING_SITE_URL", "https://app.example.com")
	t.Setenv("APP_REDIS_ADDR", "localhost:6379")
	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, "https://app.example.com", cfg.Billing.SiteURL)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, 72*time.Hour, cfg.Redis.EventTTL)
	require.Equal(t, []string{"https://app.example.com"}, cfg.AllowedOrigins())

	cfg.Server.CORSOrigins = []string{"https://a.example", "https://b.example"}
	require.Equal(t, cfg.Server.CORSOrigins, cfg.AllowedOrigins())
}

func TestNew_PlanPricesFromEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "billing.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
billing:
  plans:
    year: price_year_file
`), 0o600))
	t.Setenv("APP_CONFIG_FILE", file)
	t.Setenv("BASIC_PRICE_ID", "price_basic_legacy")
	t.Setenv("APP_BILLING_PLANS_PRO", "price_pro_env")
	t.Setenv("PRO_PRICE_ID", "price_pro_legacy")

	cfg, err := New()
	require.NoError(t, err)

	price, ok := cfg.PriceForPlan("basic")
	require.True(t, ok)
	require.Equal(t, "price_basic_legacy", price)

	price, ok = cfg.PriceForPlan("pro")
	require.True(t, ok)
	require.Equal(t, "price_pro_env", price, "the prefixed name wins over the legacy one")

	price, ok = cfg.PriceForPlan("year")
	require.True(t, ok)
	require.Equal(t, "price_year_file", price)

	_, ok = cfg.PriceForPlan("month")
	require.False(t, ok)
}
