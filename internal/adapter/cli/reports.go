package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"core-ledger/internal/app"

	"github.com/google/subcommands"
)

type reportCmd struct {
	env *Env
	raw bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "print the dashboard, key figures and monthly summary" }
func (*reportCmd) Usage() string {
	return `ledger report [-raw]
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.raw, "raw", false, "Print markdown without rendering it.")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		dashboard, err := a.Reporting.Dashboard(ctx)
		if err != nil {
			return err
		}
		kpis, err := a.Reporting.KPIs(ctx)
		if err != nil {
			return err
		}
		monthly, err := a.Reporting.MonthlySummary(ctx)
		if err != nil {
			return err
		}
		return c.env.printMarkdown(dashboardMarkdown(dashboard, kpis, monthly), c.raw)
	})
}

type exportCmd struct {
	env *Env
	dir string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the ledger as CSV tables" }
func (*exportCmd) Usage() string {
	return `ledger export [-dir <directory>]

  Writes accounts.csv, transactions.csv, monthly_summary.csv, cashflow.csv
  and kpis.csv for spreadsheet and BI tools.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dir, "dir", "exports", "Output directory, created if missing.")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		files, err := a.Exporter.Export(ctx, c.dir)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintf(c.env.Out, "%s\t%d rows\n", f.Path, f.Rows)
		}
		return nil
	})
}

type verifyCmd struct {
	env *Env
	raw bool
}

func (*verifyCmd) Name() string     { return "verify" }
func (*verifyCmd) Synopsis() string { return "check stored balances against the transaction log" }
func (*verifyCmd) Usage() string {
	return `ledger verify [-raw]

  Recomputes every balance from the log. Exits non-zero on any mismatch.
`
}

func (c *verifyCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.raw, "raw", false, "Print markdown without rendering it.")
}

func (c *verifyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(ctx context.Context, a *app.App) error {
		rec, err := a.Reporting.Reconcile(ctx)
		if err != nil {
			return err
		}
		if err := c.env.printMarkdown(reconciliationMarkdown(rec, a.Money.Currency), c.raw); err != nil {
			return err
		}
		if !rec.Consistent {
			return errors.New("ledger is inconsistent")
		}
		return nil
	})
}
