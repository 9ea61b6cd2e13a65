package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/picsou-app/picsou/ledger"
	"github.com/picsou-app/picsou/session"
	"github.com/picsou-app/picsou/telemetry"
)

// Globals defines global flags available to all commands.
type Globals struct {
	File      string `help:"Database file (.psdb). Falls back to the configured default." short:"f" type:"path"`
	Telemetry bool   `help:"Show timing telemetry for operations."`
	Verbose   bool   `help:"Enable debug logging."`
}

type Commands struct {
	Globals

	Init        InitCmd        `cmd:"" help:"Create a new database file."`
	Show        ShowCmd        `cmd:"" help:"Show the users, accounts and budgets of a database."`
	Add         AddCmd         `cmd:"" help:"Record a single operation."`
	Search      SearchCmd      `cmd:"" help:"Search operations matching a filter."`
	Import      ImportCmd      `cmd:"" help:"Import operations from a CSV, XML or JSON file."`
	Export      ExportCmd      `cmd:"" help:"Export operations matching a filter."`
	Materialize MaterializeCmd `cmd:"" help:"Insert the concrete operations recurring templates owe."`
}

// databasePath resolves the database file from the flag or the config.
func (g *Globals) databasePath() (string, error) {
	if g.File != "" {
		return g.File, nil
	}
	if path := configuredFile(); path != "" {
		return path, nil
	}
	return "", fmt.Errorf("no database file given, pass --file or set %q in the config", keyFile)
}

func (g *Globals) logger() *slog.Logger {
	level := slog.LevelWarn
	if g.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// runContext prepares the command context with an optional telemetry
// collector. The returned report function is a no-op when telemetry is off.
func (g *Globals) runContext(name string) (context.Context, func(io.Writer)) {
	ctx := context.Background()
	if !g.Telemetry {
		return ctx, func(io.Writer) {}
	}

	collector := telemetry.NewTimingCollector()
	ctx = telemetry.WithCollector(ctx, collector)
	timer := collector.Start(name)

	return ctx, func(w io.Writer) {
		timer.End()
		_, _ = fmt.Fprintln(w)
		collector.Report(w)
	}
}

func (g *Globals) openSession(ctx context.Context) (*session.Session, error) {
	path, err := g.databasePath()
	if err != nil {
		return nil, err
	}
	return session.Open(ctx, path, session.WithLogger(g.logger()), session.WithoutWatch())
}

func findUser(db *ledger.Database, name string) (*ledger.User, error) {
	if name == "" {
		users := db.Users()
		if len(users) == 1 {
			return users[0], nil
		}
		return nil, fmt.Errorf("database has %d users, pass --user", len(users))
	}
	user, ok := db.UserByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown user %q", name)
	}
	return user, nil
}

func findAccount(user *ledger.User, name string) (*ledger.Account, error) {
	if name == "" {
		accounts := user.SortedAccounts()
		if len(accounts) == 1 {
			return accounts[0], nil
		}
		return nil, fmt.Errorf("user %q has %d accounts, pass --account", user.Name, len(accounts))
	}
	for _, acc := range user.SortedAccounts() {
		if acc.Name == name {
			return acc, nil
		}
	}
	return nil, fmt.Errorf("unknown account %q for user %q", name, user.Name)
}
