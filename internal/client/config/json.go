package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/lendkeeper/internal/flagx"
	"github.com/dmitrijs2005/lendkeeper/internal/timex"
)

// JsonConfig is a DTO used only for JSON unmarshalling. Durations accept
// strings like "3s" or integer nanoseconds.
type JsonConfig struct {
	Network             string         `json:"network"`
	Host                string         `json:"host"`
	IdentityProviderURL string         `json:"identity_provider_url"`
	IdentityProviderKey string         `json:"identity_provider_key"`
	LendingCanisterID   string         `json:"lending_canister_id"`
	LegacyLedgerID      string         `json:"legacy_ledger_id"`
	TrackedLedgers      []string       `json:"tracked_ledgers"`
	DatabasePath        string         `json:"database_path"`
	RootKeyAttempts     int            `json:"root_key_attempts"`
	RootKeyRetryDelay   timex.Duration `json:"root_key_retry_delay"`
	QueryRateLimit      float64        `json:"query_rate_limit"`
	BalancePollInterval timex.Duration `json:"balance_poll_interval"`
	LogLevel            string         `json:"log_level"`
	KeystorePassphrase  string         `json:"keystore_passphrase"`
}

// parseJSON overlays cfg with the non-zero values of the file named by
// -c/-config (or $LENDKEEPER_CONFIG). No file means no changes.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.Network, jc.Network)
	setString(&cfg.Host, jc.Host)
	setString(&cfg.IdentityProviderURL, jc.IdentityProviderURL)
	setString(&cfg.IdentityProviderKey, jc.IdentityProviderKey)
	setString(&cfg.LendingCanisterID, jc.LendingCanisterID)
	setString(&cfg.LegacyLedgerID, jc.LegacyLedgerID)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.KeystorePassphrase, jc.KeystorePassphrase)

	if jc.TrackedLedgers != nil {
		cfg.TrackedLedgers = jc.TrackedLedgers
	}
	if jc.RootKeyAttempts != 0 {
		cfg.RootKeyAttempts = jc.RootKeyAttempts
	}
	if jc.RootKeyRetryDelay.Duration != 0 {
		cfg.RootKeyRetryDelay = jc.RootKeyRetryDelay.Duration
	}
	if jc.QueryRateLimit != 0 {
		cfg.QueryRateLimit = jc.QueryRateLimit
	}
	if jc.BalancePollInterval.Duration != 0 {
		cfg.BalancePollInterval = jc.BalancePollInterval.Duration
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
