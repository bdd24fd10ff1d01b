package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	AccountID(ctx context.Context, args []string) error
	Balance(ctx context.Context, args []string) error
	Balances(ctx context.Context) error
	Metadata(ctx context.Context, args []string) error
	Positions(ctx context.Context) error
	Deposit(ctx context.Context, args []string) error
}

// runREPL reads commands from reader and dispatches them to a until EOF or
// "exit"/"quit". The prompt shows statusFn(). Handler errors are printed and
// never end the loop.
//
//	Always:
//	  - help                       - show available commands
//	  - whoami                     - show the current principal
//	  - accountid [sub-hex]        - derive the account identifier
//	  - balance <ledger> [sub-hex] - balance on one ledger
//	  - balances                   - balances on all tracked ledgers
//	  - metadata <ledger>          - token metadata of a ledger
//	  - exit | quit                - leave the program
//
//	Not logged in:
//	  - login                      - authenticate via the identity provider
//
//	Logged in:
//	  - positions                  - earn and borrow positions
//	  - deposit <amount>           - update the lending-pool balance
//	  - login                      - reconnect and re-check registration
//	  - logout                     - return to the anonymous session
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("lk %s> ", statusFn()))
		line, ok := readCommand(reader)
		if !ok {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, accountid, balance, balances, metadata, positions, deposit, login, logout, exit")
			} else {
				printlnFn("Available commands: login, whoami, accountid, balance, balances, metadata, exit")
			}

		case "login":
			err = a.Login(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "whoami":
			err = a.WhoAmI(ctx)

		case "accountid":
			err = a.AccountID(ctx, args)

		case "balance":
			if len(args) == 0 {
				printlnFn("Usage: balance <ledger> [subaccount-hex]")
				continue
			}
			err = a.Balance(ctx, args)

		case "balances":
			err = a.Balances(ctx)

		case "metadata":
			if len(args) == 0 {
				printlnFn("Usage: metadata <ledger>")
				continue
			}
			err = a.Metadata(ctx, args)

		case "positions":
			err = a.Positions(ctx)

		case "deposit":
			if len(args) == 0 {
				printlnFn("Usage: deposit <amount>")
				continue
			}
			err = a.Deposit(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("error:", err)
		}
	}
}

// readCommand reads one line from reader. Commands that prompt for more
// input read from the same reader, so nothing is buffered ahead of them.
func readCommand(reader *bufio.Reader) (string, bool) {
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return line, true
}
