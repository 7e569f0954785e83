package cli

import (
	"context"
	"flag"
	"fmt"

	"core-ledger/internal/app"
	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/ports"

	"github.com/google/subcommands"
)

type createAccountCmd struct {
	env     *Env
	name    string
	initial string
}

func (*createAccountCmd) Name() string     { return "create-account" }
func (*createAccountCmd) Synopsis() string { return "open a new account" }
func (*createAccountCmd) Usage() string {
	return `ledger create-account -name <name> [-initial <amount>]

  Opens an account. A positive initial balance is recorded as a deposit.
`
}

func (c *createAccountCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Account name, unique among open accounts.")
	f.StringVar(&c.initial, "initial", "0", "Opening balance.")
}

func (c *createAccountCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.name == "" {
		return c.env.usage("Error: -name is required.")
	}
	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		var account *domain.Account
		err := c.env.retry(ctx, func() (err error) {
			account, err = a.Ledger.CreateAccount(ctx, ports.CreateAccountRequest{Name: c.name, InitialBalance: c.initial})
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.env.Out, "Created account %d %q with balance %s\n", account.ID, account.Name, account.Balance.Display(a.Money.Currency))
		return nil
	})
}

type deleteAccountCmd struct {
	env     *Env
	account int64
}

func (*deleteAccountCmd) Name() string     { return "delete-account" }
func (*deleteAccountCmd) Synopsis() string { return "close an account with a zero balance" }
func (*deleteAccountCmd) Usage() string {
	return `ledger delete-account -account <id>

  Closes the account. Its balance must be zero; its history stays in the log.
`
}

func (c *deleteAccountCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.account, "account", 0, "Account ID.")
}

func (c *deleteAccountCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account <= 0 {
		return c.env.usage("Error: -account is required.")
	}
	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		if err := c.env.retry(ctx, func() error { return a.Ledger.DeleteAccount(ctx, c.account) }); err != nil {
			return err
		}
		fmt.Fprintf(c.env.Out, "Deleted account %d\n", c.account)
		return nil
	})
}

type showCmd struct {
	env     *Env
	account int64
	name    string
	raw     bool
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "show one account" }
func (*showCmd) Usage() string {
	return `ledger show (-account <id> | -name <name>) [-raw]
`
}

func (c *showCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.account, "account", 0, "Account ID.")
	f.StringVar(&c.name, "name", "", "Exact account name, instead of -account.")
	f.BoolVar(&c.raw, "raw", false, "Print markdown without rendering it.")
}

func (c *showCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if (c.account <= 0) == (c.name == "") {
		return c.env.usage("Error: exactly one of -account or -name is required.")
	}
	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		var (
			account *domain.Account
			err     error
		)
		if c.name != "" {
			account, err = a.Ledger.GetAccountByName(ctx, c.name)
		} else {
			account, err = a.Ledger.GetAccount(ctx, c.account)
		}
		if err != nil {
			return err
		}
		return c.env.printMarkdown(accountMarkdown(account, a.Money.Currency), c.raw)
	})
}

type accountsCmd struct {
	env *Env
	raw bool
}

func (*accountsCmd) Name() string     { return "accounts" }
func (*accountsCmd) Synopsis() string { return "list open accounts" }
func (*accountsCmd) Usage() string {
	return `ledger accounts [-raw]
`
}

func (c *accountsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.raw, "raw", false, "Print markdown without rendering it.")
}

func (c *accountsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		accounts, err := a.Ledger.ListAccounts(ctx)
		if err != nil {
			return err
		}
		return c.env.printMarkdown(accountsMarkdown(accounts, a.Money.Currency), c.raw)
	})
}

type historyCmd struct {
	env     *Env
	account int64
	order   string
	raw     bool
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list the transactions touching an account" }
func (*historyCmd) Usage() string {
	return `ledger history -account <id> [-order desc|asc] [-raw]

  Lists the account's transactions, newest first unless -order asc.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.account, "account", 0, "Account ID.")
	f.StringVar(&c.order, "order", "desc", "desc for newest first, asc for chronological.")
	f.BoolVar(&c.raw, "raw", false, "Print markdown without rendering it.")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account <= 0 {
		return c.env.usage("Error: -account is required.")
	}
	order, ok := domain.ParseHistoryOrder(c.order)
	if !ok {
		return c.env.usage("Error: -order must be desc or asc, got %q.", c.order)
	}
	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		account, err := a.Ledger.GetAccount(ctx, c.account)
		if err != nil {
			return err
		}
		history, err := a.Ledger.GetHistory(ctx, c.account, order)
		if err != nil {
			return err
		}
		accounts, err := a.Ledger.ListAccounts(ctx)
		if err != nil {
			return err
		}
		md := historyMarkdown(account, history, domain.AccountsByID(accounts), a.Money.Currency)
		return c.env.printMarkdown(md, c.raw)
	})
}
