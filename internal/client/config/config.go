package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/lendkeeper/internal/common"
	"github.com/dmitrijs2005/lendkeeper/internal/principal"
)

// PassphraseEnv names the environment variable that supplies the keystore
// passphrase when the config file does not.
const PassphraseEnv = "LENDKEEPER_PASSPHRASE"

// Per-network endpoints used when the host or provider URL is not set.
const (
	LocalHost             = "127.0.0.1:4943"
	LocalIdentityProvider = "http://localhost:4943/?canisterId=rdmx6-jaaaa-aaaaa-aaadq-cai"
	ICHost                = "icp-api.io:443"
	ICIdentityProvider    = "https://identity.ic0.app"
	DefaultLegacyLedgerID = "ryjl3-tyaaa-aaaaa-aaaba-cai"
)

// Config holds runtime settings for the lendkeeper CLI.
type Config struct {
	Network             string
	Host                string
	IdentityProviderURL string
	IdentityProviderKey string
	LendingCanisterID   string
	LegacyLedgerID      string
	TrackedLedgers      []string
	DatabasePath        string
	RootKeyAttempts     int
	RootKeyRetryDelay   time.Duration
	QueryRateLimit      float64
	BalancePollInterval time.Duration
	LogLevel            string
	KeystorePassphrase  string
}

// LoadDefaults populates c with defaults for a local replica.
func (c *Config) LoadDefaults() {
	c.Network = common.NetworkLocal
	c.LegacyLedgerID = DefaultLegacyLedgerID
	c.TrackedLedgers = []string{DefaultLegacyLedgerID}
	c.DatabasePath = defaultDatabasePath()
	c.RootKeyAttempts = 3
	c.RootKeyRetryDelay = time.Second
	c.BalancePollInterval = 30 * time.Second
	c.LogLevel = "info"
}

func defaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".lendkeeper", "session.db")
	}
	return filepath.Join(dir, "lendkeeper", "session.db")
}

// LoadConfig builds a Config from defaults, then the JSON file named by
// -c/-config, then flags. Later sources take precedence. Endpoints left
// empty are filled in for the selected network.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if cfg.KeystorePassphrase == "" {
		cfg.KeystorePassphrase = os.Getenv(PassphraseEnv)
	}
	cfg.fillNetworkDefaults()
	return cfg, nil
}

func (c *Config) fillNetworkDefaults() {
	switch c.Network {
	case common.NetworkLocal:
		if c.Host == "" {
			c.Host = LocalHost
		}
		if c.IdentityProviderURL == "" {
			c.IdentityProviderURL = LocalIdentityProvider
		}
	case common.NetworkIC:
		if c.Host == "" {
			c.Host = ICHost
		}
		if c.IdentityProviderURL == "" {
			c.IdentityProviderURL = ICIdentityProvider
		}
	}
}

// IsLocal reports whether the target is a local/test replica. Such targets
// need their root key fetched and are reached without TLS.
func (c *Config) IsLocal() bool {
	return c.Network != common.NetworkIC
}

// Validate reports configuration that makes startup impossible. All errors
// wrap common.ErrConfigInvalid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", common.ErrConfigInvalid, fmt.Sprintf(format, args...))
	}

	switch c.Network {
	case common.NetworkLocal, common.NetworkIC:
	default:
		return invalid("unknown network %q", c.Network)
	}
	if c.Host == "" {
		return invalid("host is empty")
	}
	if c.IdentityProviderURL == "" {
		return invalid("identity provider url is empty")
	}
	if c.Network == common.NetworkIC && c.IdentityProviderKey == "" {
		return invalid("identity provider key is required on %s", c.Network)
	}
	if c.LendingCanisterID == "" {
		return invalid("lending canister id is empty")
	}
	if _, err := principal.FromText(c.LendingCanisterID); err != nil {
		return invalid("lending canister id: %v", err)
	}
	if c.LegacyLedgerID != "" {
		if _, err := principal.FromText(c.LegacyLedgerID); err != nil {
			return invalid("legacy ledger id: %v", err)
		}
	}
	for _, id := range c.TrackedLedgers {
		if _, err := principal.FromText(id); err != nil {
			return invalid("tracked ledger %q: %v", id, err)
		}
	}
	if c.DatabasePath == "" {
		return invalid("database path is empty")
	}
	if c.RootKeyAttempts < 1 {
		return invalid("root key attempts must be at least 1")
	}
	if c.RootKeyRetryDelay < 0 || c.QueryRateLimit < 0 {
		return invalid("negative retry delay or rate limit")
	}
	if c.BalancePollInterval <= 0 {
		return invalid("balance poll interval must be positive")
	}
	return nil
}
