package config

import (
	"flag"
	"io"
	"strings"

	"github.com/dmitrijs2005/lendkeeper/internal/flagx"
)

var knownFlags = []string{"-n", "-a", "-p", "-k", "-l", "-g", "-t", "-d", "-r", "-i", "-v"}

// parseFlags overlays cfg with command-line flags. Only the flags listed in
// knownFlags are looked at so other loaders can share args.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("lendkeeper", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Network, "n", cfg.Network, "network: local or ic")
	fs.StringVar(&cfg.Host, "a", cfg.Host, "replica host:port")
	fs.StringVar(&cfg.IdentityProviderURL, "p", cfg.IdentityProviderURL, "identity provider url")
	fs.StringVar(&cfg.IdentityProviderKey, "k", cfg.IdentityProviderKey, "identity provider public key (hex)")
	fs.StringVar(&cfg.LendingCanisterID, "l", cfg.LendingCanisterID, "lending pool canister id")
	fs.StringVar(&cfg.LegacyLedgerID, "g", cfg.LegacyLedgerID, "account-identifier ledger id")
	tracked := fs.String("t", strings.Join(cfg.TrackedLedgers, ","), "comma separated ledger ids to watch")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "session database path")
	fs.Float64Var(&cfg.QueryRateLimit, "r", cfg.QueryRateLimit, "max calls per second, 0 for unlimited")
	fs.DurationVar(&cfg.BalancePollInterval, "i", cfg.BalancePollInterval, "balance poll interval")
	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.TrackedLedgers = splitList(*tracked)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
