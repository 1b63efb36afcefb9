package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/ledger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// ledgerError maps ledger errors to exit codes.
func ledgerError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidInput),
		errors.Is(err, ledger.ErrPlanNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound):
		return WrapExitError(ExitCommandError, "rejected", err)
	default:
		return WrapExitError(ExitFailure, "refused", err)
	}
}

func parseDate(flag, value string) (civil.Date, error) {
	d, err := civil.ParseDate(value)
	if err != nil || !d.IsValid() {
		return civil.Date{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid --%s %q: expected YYYY-MM-DD", flag, value))
	}
	return d, nil
}

func parseAmount(value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, NewExitError(ExitCommandError, fmt.Sprintf("invalid --amount %q", value))
	}
	return amount, nil
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "snapshot",
		Short:         "Show current and projected balance for the viewed billing period",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(opts, cmd, func(ctx context.Context, env *Env, out *OutputFormatter) error {
				snap := env.Ledger.Snapshot()
				view := env.Ledger.ViewDate()
				data := map[string]interface{}{
					"snapshot":      snap,
					"viewDate":      view,
					"cycleStartDay": env.Ledger.State().Dataset.CycleStartDay,
				}
				return out.Success(data, func(w io.Writer) {
					fmt.Fprintf(w, "Period:     %s .. %s (viewing %s)\n", snap.PeriodStart, snap.PeriodEnd, view)
					fmt.Fprintf(w, "Balance:    %s\n", snap.CurrentBalance.StringFixed(2))
					fmt.Fprintf(w, "Income due: %s\n", snap.UpcomingIncome.StringFixed(2))
					fmt.Fprintf(w, "Bills due:  %s\n", snap.UpcomingExpenses.StringFixed(2))
					fmt.Fprintf(w, "Projected:  %s\n", snap.ProjectedBalance.StringFixed(2))
				})
			})
		},
	}
}

// TransactionOptions holds flags for tx add.
type TransactionOptions struct {
	*RootOptions
	Date        string
	Description string
	Amount      string
	Type        string
	Category    string
}

// NewTransactionCommand creates the tx command group.
func NewTransactionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Manage transactions",
	}

	opts := &TransactionOptions{RootOptions: rootOpts}
	add := &cobra.Command{
		Use:           "add",
		Short:         "Record a paid transaction",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransactionAdd(opts, cmd)
		},
	}
	add.Flags().StringVar(&opts.Date, "date", "", "transaction date (YYYY-MM-DD)")
	add.Flags().StringVarP(&opts.Description, "description", "d", "", "description")
	add.Flags().StringVarP(&opts.Amount, "amount", "a", "", "amount, always positive")
	add.Flags().StringVarP(&opts.Type, "type", "t", string(domain.Expense), "income|expense")
	add.Flags().StringVarP(&opts.Category, "category", "c", "", "category")
	_ = add.MarkFlagRequired("date")
	_ = add.MarkFlagRequired("amount")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List transactions, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *Env, out *OutputFormatter) error {
				txs := env.Ledger.Transactions()
				return out.Success(txs, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "DATE\tAMOUNT\tCATEGORY\tDESCRIPTION\tPAID\tID")
					for _, tx := range txs {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
							tx.Date, tx.SignedAmount().StringFixed(2), tx.Category, tx.Description, tx.IsPaid, tx.ID)
					}
					tw.Flush()
				})
			})
		},
	}

	del := &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a transaction",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *Env, out *OutputFormatter) error {
				if err := env.Ledger.DeleteTransaction(args[0]); err != nil {
					return ledgerError(err)
				}
				return out.Success(map[string]string{"deleted": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted transaction %s\n", args[0])
				})
			})
		},
	}

	cmd.AddCommand(add, list, del)
	return cmd
}

func runTransactionAdd(opts *TransactionOptions, cmd *cobra.Command) error {
	date, err := parseDate("date", opts.Date)
	if err != nil {
		return err
	}
	amount, err := parseAmount(opts.Amount)
	if err != nil {
		return err
	}

	return withEnv(opts.RootOptions, cmd, func(ctx context.Context, env *Env, out *OutputFormatter) error {
		tx, err := env.Ledger.AddTransaction(ledger.TransactionInput{
			Date:        date,
			Description: opts.Description,
			Amount:      amount,
			Type:        domain.EntryType(opts.Type),
			Category:    opts.Category,
		})
		if err != nil {
			return ledgerError(err)
		}
		return out.Success(tx, func(w io.Writer) {
			fmt.Fprintf(w, "Added transaction %s (%s on %s)\n", tx.ID, tx.SignedAmount().StringFixed(2), tx.Date)
		})
	})
}

// NewCycleDayCommand creates the cycle-day command.
func NewCycleDayCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "cycle-day <1-31>",
		Short:         "Set the day of month on which billing periods start",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var day int
			if _, err := fmt.Sscanf(args[0], "%d", &day); err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid day %q", args[0]))
			}
			return withEnv(opts, cmd, func(ctx context.Context, env *Env, out *OutputFormatter) error {
				if err := env.Ledger.SetCycleStartDay(day); err != nil {
					return ledgerError(err)
				}
				period := env.Ledger.Period()
				return out.Success(map[string]interface{}{"cycleStartDay": day, "period": period}, func(w io.Writer) {
					fmt.Fprintf(w, "Cycle starts on day %d; current period %s .. %s\n", day, period.Start, period.End)
				})
			})
		},
	}
}
