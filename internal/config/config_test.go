package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_OverdraftWholeUnitAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "MAX_ALLOWED_OVERDRAFT_CENTAVOS")
	setEnvWithCleanup(t, "MAX_ALLOWED_OVERDRAFT", "-250.50")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.MaxAllowedOverdraft != -25050 {
		t.Fatalf("expected MaxAllowedOverdraft of -25050 centavos, got %d", cfg.MaxAllowedOverdraft)
	}
}

func TestLoadConfig_DefaultOverdraftIsZero(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "MAX_ALLOWED_OVERDRAFT")
	unsetEnvWithCleanup(t, "MAX_ALLOWED_OVERDRAFT_CENTAVOS")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.MaxAllowedOverdraft != 0 {
		t.Fatalf("expected default MaxAllowedOverdraft to be 0, got %d", cfg.MaxAllowedOverdraft)
	}
}

func TestLoadConfig_PedidoServiceURLAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "ORDER_SERVICE_URL")
	setEnvWithCleanup(t, "PEDIDO_SERVICE_URL", "http://pedido-service:8080")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.OrderServiceURL != "http://pedido-service:8080" {
		t.Fatalf("expected OrderServiceURL from alias env var, got %q", cfg.OrderServiceURL)
	}
}

func TestLoadConfig_LedgerFetchDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "LEDGER_FETCH_TIMEOUT_SECONDS")
	unsetEnvWithCleanup(t, "LEDGER_FETCH_RETRIES")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.LedgerFetchTimeoutSecs != 5 {
		t.Fatalf("expected default ledger fetch timeout of 5s, got %d", cfg.LedgerFetchTimeoutSecs)
	}
	if cfg.LedgerFetchRetries != 2 {
		t.Fatalf("expected default ledger fetch retries of 2, got %d", cfg.LedgerFetchRetries)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
