// Package config loads runtime configuration for the lendkeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config, or $LENDKEEPER_CONFIG.
//  3. Command-line flags, which override earlier values.
//
// Host and identity provider URL fall back to per-network values when none
// of the sources sets them. The keystore passphrase may also come from
// $LENDKEEPER_PASSPHRASE.
//
// Supported flags
//
//	-n string     network: local or ic
//	-a string     replica host:port
//	-p string     identity provider url
//	-k string     identity provider public key (hex)
//	-l string     lending pool canister id
//	-g string     account-identifier ledger id
//	-t string     comma separated ledger ids to watch
//	-d string     session database path
//	-r float      max calls per second (0 disables)
//	-i duration   balance poll interval
//	-v string     log level
//
// # JSON schema
//
//	{
//	  "network": "ic",
//	  "lending_canister_id": "be2us-64aaa-aaaaa-qaabq-cai",
//	  "identity_provider_key": "…",
//	  "tracked_ledgers": ["ryjl3-tyaaa-aaaaa-aaaba-cai"],
//	  "root_key_retry_delay": "1s",
//	  "balance_poll_interval": "30s"
//	}
//
// Validate reports unusable settings as common.ErrConfigInvalid.
package config
