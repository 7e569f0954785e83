// Package cli implements the ledger command line. A main package calls
// Register and then Execute on the user-selected subcommand.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"core-ledger/config"
	"core-ledger/internal/app"
	"core-ledger/pkg/apperror"
	"core-ledger/pkg/logger"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

// Env carries what every command shares: where the config lives, where
// output goes and how hard to retry.
type Env struct {
	ConfigPath string
	Verbose    bool
	Retries    int
	RetryBase  time.Duration

	Out io.Writer
	Err io.Writer
}

// NewEnv writes to the process's stdout and stderr.
func NewEnv() *Env {
	return &Env{Retries: 3, RetryBase: 100 * time.Millisecond, Out: os.Stdout, Err: os.Stderr}
}

// SetFlags registers the global flags on the top-level flag set.
func (e *Env) SetFlags(f *flag.FlagSet) {
	f.StringVar(&e.ConfigPath, "config", "", "Path to the config file. Defaults to ./config.yaml or ./config/config.yaml.")
	f.BoolVar(&e.Verbose, "v", false, "Log at the configured level instead of warnings only.")
	f.IntVar(&e.Retries, "retries", e.Retries, "Attempts for operations that fail with a retryable storage error.")
}

// Register the subcommands.
func Register(c *subcommands.Commander, env *Env) {
	c.Register(&createAccountCmd{env: env}, "accounts")
	c.Register(&deleteAccountCmd{env: env}, "accounts")
	c.Register(&showCmd{env: env}, "accounts")
	c.Register(&accountsCmd{env: env}, "accounts")
	c.Register(&historyCmd{env: env}, "accounts")

	c.Register(&movementCmd{env: env, withdraw: false}, "transactions")
	c.Register(&movementCmd{env: env, withdraw: true}, "transactions")
	c.Register(&transferCmd{env: env}, "transactions")

	c.Register(&reportCmd{env: env}, "reports")
	c.Register(&exportCmd{env: env}, "reports")
	c.Register(&verifyCmd{env: env}, "reports")

	c.Register(&simulateCmd{env: env}, "admin")
	c.Register(&migrateCmd{env: env}, "admin")
	c.Register(&tokenCmd{env: env}, "admin")
}

func (e *Env) loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(e.ConfigPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	level := "warn"
	if e.Verbose {
		level = cfg.Log.Level
	}
	// Logs go to stderr so command output stays clean.
	return cfg, logger.New(level, cfg.Log.Pretty, e.Err), nil
}

// run opens the ledger, hands it to fn and closes it again.
func (e *Env) run(ctx context.Context, fn func(ctx context.Context, a *app.App) error) subcommands.ExitStatus {
	cfg, log, err := e.loadConfig()
	if err != nil {
		return e.fail(err)
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return e.fail(err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("closing ledger")
		}
	}()

	if err := fn(ctx, a); err != nil {
		return e.fail(err)
	}
	return subcommands.ExitSuccess
}

// retry runs fn until it succeeds, fails with a non-retryable error or the
// attempts run out, sleeping base*2^n with full jitter in between.
func (e *Env) retry(ctx context.Context, fn func() error) error {
	attempts := max(e.Retries, 1)
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil || !apperror.IsRetryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		delay := e.RetryBase << attempt
		if delay > 0 {
			delay = rand.N(delay)
		}
		fmt.Fprintf(e.Err, "retrying after %v: %v\n", delay.Round(time.Millisecond), err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (e *Env) fail(err error) subcommands.ExitStatus {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		fmt.Fprintf(e.Err, "Error [%s]: %s\n", appErr.Code, appErr.Message)
	} else {
		fmt.Fprintf(e.Err, "Error: %v\n", err)
	}
	return subcommands.ExitFailure
}

func (e *Env) usage(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(e.Err, format+"\n", args...)
	return subcommands.ExitUsageError
}

// printMarkdown renders md for the terminal, or prints it as is when raw.
func (e *Env) printMarkdown(md string, raw bool) error {
	if raw {
		_, err := io.WriteString(e.Out, md)
		return err
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(e.Out, out)
	return err
}
