package cli

import (
	"context"
	"flag"
	"fmt"

	"core-ledger/config"
	"core-ledger/internal/adapter/storage/postgres"
	"core-ledger/internal/app"
	"core-ledger/internal/core/ports"
	"core-ledger/internal/service"

	"github.com/google/subcommands"
)

type simulateCmd struct {
	env *Env
	n   int
	raw bool
}

func (*simulateCmd) Name() string     { return "simulate" }
func (*simulateCmd) Synopsis() string { return "generate random activity between existing accounts" }
func (*simulateCmd) Usage() string {
	return `ledger simulate [-n <count>] [-raw]

  Issues random deposits, withdrawals and transfers through the engine.
  Needs at least two accounts.
`
}

func (c *simulateCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.n, "n", 10, fmt.Sprintf("Number of operations, 1 to %d.", service.MaxSimulationSize))
	f.BoolVar(&c.raw, "raw", false, "Print markdown without rendering it.")
}

func (c *simulateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		result, err := a.Simulator.Run(ctx, c.n)
		if err != nil {
			return err
		}
		return c.env.printMarkdown(simulationMarkdown(result), c.raw)
	})
}

type migrateCmd struct {
	env  *Env
	down bool
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply or roll back the PostgreSQL schema" }
func (*migrateCmd) Usage() string {
	return `ledger migrate [-down]

  Applies the embedded migrations to the configured database. Only
  meaningful with storage.driver: postgres.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.down, "down", false, "Roll back every migration instead. Drops all ledger data.")
}

func (c *migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, log, err := c.env.loadConfig()
	if err != nil {
		return c.env.fail(err)
	}
	if cfg.Storage.Driver != config.DriverPostgres {
		fmt.Fprintf(c.env.Out, "Nothing to migrate: storage driver is %q.\n", cfg.Storage.Driver)
		return subcommands.ExitSuccess
	}

	if c.down {
		err = postgres.MigrateDown(cfg.Database.MigrateURL(), log)
	} else {
		err = postgres.Migrate(cfg.Database.MigrateURL(), log)
	}
	if err != nil {
		return c.env.fail(err)
	}
	if c.down {
		fmt.Fprintln(c.env.Out, "Schema rolled back.")
	} else {
		fmt.Fprintln(c.env.Out, "Schema is up to date.")
	}
	return subcommands.ExitSuccess
}

type tokenCmd struct {
	env     *Env
	subject string
	write   bool
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "issue an API bearer token" }
func (*tokenCmd) Usage() string {
	return `ledger token [-sub <subject>] [-write]

  Signs a token with auth.jwt_secret. Tokens grant ledger:read, plus
  ledger:write with -write.
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.subject, "sub", "cli", "Token subject, recorded in the audit log.")
	f.BoolVar(&c.write, "write", false, "Also grant ledger:write.")
}

func (c *tokenCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, _, err := c.env.loadConfig()
	if err != nil {
		return c.env.fail(err)
	}
	if !cfg.Auth.Enabled() {
		return c.env.usage("Error: auth.jwt_secret is not set, the API is open.")
	}

	scopes := []string{ports.ScopeRead}
	if c.write {
		scopes = append(scopes, ports.ScopeWrite)
	}
	tokens := service.NewJWTTokenService(cfg.Auth.JWTSecret, cfg.Auth.Expiry, cfg.Auth.Issuer)
	token, expiry, err := tokens.Generate(c.subject, scopes)
	if err != nil {
		return c.env.fail(err)
	}
	fmt.Fprintln(c.env.Out, token)
	fmt.Fprintf(c.env.Err, "expires %s\n", expiry.Local().Format(timeLayout))
	return subcommands.ExitSuccess
}
