// Package cli provides the interactive lendkeeper command-line client.
//
// It wires configuration, the local session database, the identity
// provider, the session manager and the ledger gateway into a REPL. Typical
// flow: restore or create an anonymous session, start a background balance
// watcher, and execute user commands.
//
// Key features:
//   - Login / Logout through the identity provider
//   - whoami and account identifier derivation
//   - Balances and token metadata across tracked ledgers
//   - Lending-pool positions and deposits
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, StartBalanceWatcher, and runREPL for details.
package cli
