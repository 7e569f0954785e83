package cli

import (
	"context"
	"flag"

	"core-ledger/internal/app"
	"core-ledger/internal/core/ports"

	"github.com/google/subcommands"
)

// movementCmd is both deposit and withdraw.
type movementCmd struct {
	env         *Env
	withdraw    bool
	account     int64
	amount      string
	description string
	raw         bool
}

func (c *movementCmd) Name() string {
	if c.withdraw {
		return "withdraw"
	}
	return "deposit"
}

func (c *movementCmd) Synopsis() string {
	if c.withdraw {
		return "take money out of an account"
	}
	return "put money into an account"
}

func (c *movementCmd) Usage() string {
	return "ledger " + c.Name() + " -account <id> -amount <amount> [-desc <text>] [-raw]\n"
}

func (c *movementCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.account, "account", 0, "Account ID.")
	f.StringVar(&c.amount, "amount", "", "Positive decimal amount.")
	f.StringVar(&c.description, "desc", "", "Description. A default one is generated when empty.")
	f.BoolVar(&c.raw, "raw", false, "Print markdown without rendering it.")
}

func (c *movementCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account <= 0 || c.amount == "" {
		return c.env.usage("Error: -account and -amount are required.")
	}
	req := ports.MovementRequest{AccountID: c.account, Amount: c.amount, Description: c.description}
	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		op := a.Ledger.Deposit
		if c.withdraw {
			op = a.Ledger.Withdraw
		}
		var receipt *ports.Receipt
		err := c.env.retry(ctx, func() (err error) {
			receipt, err = op(ctx, req)
			return err
		})
		if err != nil {
			return err
		}
		return c.env.printMarkdown(receiptMarkdown(receipt, a.Money.Currency), c.raw)
	})
}

type transferCmd struct {
	env         *Env
	from, to    int64
	amount      string
	description string
	raw         bool
}

func (*transferCmd) Name() string     { return "transfer" }
func (*transferCmd) Synopsis() string { return "move money between two accounts" }
func (*transferCmd) Usage() string {
	return `ledger transfer -from <id> -to <id> -amount <amount> [-desc <text>] [-raw]
`
}

func (c *transferCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.from, "from", 0, "Source account ID.")
	f.Int64Var(&c.to, "to", 0, "Destination account ID.")
	f.StringVar(&c.amount, "amount", "", "Positive decimal amount.")
	f.StringVar(&c.description, "desc", "", "Description. A default one is generated when empty.")
	f.BoolVar(&c.raw, "raw", false, "Print markdown without rendering it.")
}

func (c *transferCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.from <= 0 || c.to <= 0 || c.amount == "" {
		return c.env.usage("Error: -from, -to and -amount are required.")
	}
	req := ports.TransferRequest{FromAccountID: c.from, ToAccountID: c.to, Amount: c.amount, Description: c.description}
	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		var receipt *ports.Receipt
		err := c.env.retry(ctx, func() (err error) {
			receipt, err = a.Ledger.Transfer(ctx, req)
			return err
		})
		if err != nil {
			return err
		}
		return c.env.printMarkdown(receiptMarkdown(receipt, a.Money.Currency), c.raw)
	})
}
