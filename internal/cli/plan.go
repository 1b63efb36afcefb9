package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/ledger"
	"github.com/spf13/cobra"
)

// PlanOptions holds flags for plan add.
type PlanOptions struct {
	*RootOptions
	Description string
	Amount      string
	Type        string
	Category    string
	Frequency   string
	Start       string
	End         string
	Max         int
}

// NewPlanCommand creates the plan command group.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage recurring plans",
	}

	opts := &PlanOptions{RootOptions: rootOpts}
	add := &cobra.Command{
		Use:           "add",
		Short:         "Add a recurring or one-time plan",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanAdd(opts, cmd)
		},
	}
	add.Flags().StringVarP(&opts.Description, "description", "d", "", "description")
	add.Flags().StringVarP(&opts.Amount, "amount", "a", "", "amount per occurrence, always positive")
	add.Flags().StringVarP(&opts.Type, "type", "t", string(domain.Expense), "income|expense")
	add.Flags().StringVarP(&opts.Category, "category", "c", "", "category")
	add.Flags().StringVarP(&opts.Frequency, "frequency", "f", string(domain.Monthly), "one-time|weekly|monthly|yearly")
	add.Flags().StringVar(&opts.Start, "start", "", "first occurrence (YYYY-MM-DD)")
	add.Flags().StringVar(&opts.End, "end", "", "no occurrence after this date (YYYY-MM-DD)")
	add.Flags().IntVar(&opts.Max, "max", 0, "maximum number of occurrences (0 = unlimited)")
	_ = add.MarkFlagRequired("amount")
	_ = add.MarkFlagRequired("start")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List plans with their next due date",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *Env, out *OutputFormatter) error {
				plans := env.Ledger.Plans()
				return out.Success(plans, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "NEXT DUE\tAMOUNT\tFREQUENCY\tDESCRIPTION\tDONE\tID")
					for _, p := range plans {
						next := "-"
						if p.NextDue != nil {
							next = p.NextDue.String()
						}
						done := fmt.Sprintf("%d", p.OccurrencesGenerated)
						if p.MaxOccurrences != nil {
							done += fmt.Sprintf("/%d", *p.MaxOccurrences)
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
							next, p.Type.Signed(p.Amount).StringFixed(2), p.Frequency, p.Description, done, p.ID)
					}
					tw.Flush()
				})
			})
		},
	}

	del := &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a plan; transactions it produced are kept",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *Env, out *OutputFormatter) error {
				if err := env.Ledger.DeletePlan(args[0]); err != nil {
					return ledgerError(err)
				}
				return out.Success(map[string]string{"deleted": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted plan %s\n", args[0])
				})
			})
		},
	}

	var applyDate string
	apply := &cobra.Command{
		Use:           "apply <id>",
		Short:         "Record the next occurrence as an unpaid transaction on a chosen date",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate("date", applyDate)
			if err != nil {
				return err
			}
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *Env, out *OutputFormatter) error {
				tx, err := env.Ledger.ApplyPlan(args[0], date)
				if err != nil {
					return ledgerError(err)
				}
				return printApplied(out, tx)
			})
		},
	}
	apply.Flags().StringVar(&applyDate, "date", "", "transaction date (YYYY-MM-DD)")
	_ = apply.MarkFlagRequired("date")

	var cycle string
	applyNow := &cobra.Command{
		Use:   "apply-now <id>",
		Short: "Record the next occurrence on its due date",
		Long: `Record the next occurrence on its due date.

An occurrence due in the next billing period needs --cycle:
  shift  start the billing cycle on the due date and view it
  keep   record it without touching the cycle`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cycle != "" && cycle != "shift" && cycle != "keep" {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid --cycle %q: must be shift or keep", cycle))
			}
			return withEnv(rootOpts, cmd, func(ctx context.Context, env *Env, out *OutputFormatter) error {
				tx, err := env.Ledger.ApplyNow(args[0])
				var decision *ledger.CycleDecisionError
				if errors.As(err, &decision) && cycle != "" {
					tx, err = env.Ledger.ConfirmApplyNow(args[0], cycle == "shift")
				}
				if errors.As(err, &decision) {
					return WrapExitError(ExitFailure,
						fmt.Sprintf("occurrence due %s is in the next period; rerun with --cycle shift or --cycle keep", decision.DueDate), err)
				}
				if err != nil {
					return ledgerError(err)
				}
				return printApplied(out, tx)
			})
		},
	}
	applyNow.Flags().StringVar(&cycle, "cycle", "", "decision for an occurrence in the next period (shift|keep)")

	cmd.AddCommand(add, list, del, apply, applyNow)
	return cmd
}

func printApplied(out *OutputFormatter, tx domain.Transaction) error {
	return out.Success(tx, func(w io.Writer) {
		fmt.Fprintf(w, "Applied plan %s: transaction %s (%s on %s)\n",
			tx.RelatedPlanID, tx.ID, tx.SignedAmount().StringFixed(2), tx.Date)
	})
}

func runPlanAdd(opts *PlanOptions, cmd *cobra.Command) error {
	amount, err := parseAmount(opts.Amount)
	if err != nil {
		return err
	}
	start, err := parseDate("start", opts.Start)
	if err != nil {
		return err
	}

	in := ledger.PlanInput{
		Description: opts.Description,
		Amount:      amount,
		Type:        domain.EntryType(opts.Type),
		Category:    opts.Category,
		Frequency:   domain.Frequency(opts.Frequency),
		StartDate:   start,
	}
	if opts.End != "" {
		end, err := parseDate("end", opts.End)
		if err != nil {
			return err
		}
		in.EndDate = &end
	}
	if opts.Max > 0 {
		limit := opts.Max
		in.MaxOccurrences = &limit
	}

	return withEnv(opts.RootOptions, cmd, func(ctx context.Context, env *Env, out *OutputFormatter) error {
		plan, err := env.Ledger.AddPlan(in)
		if err != nil {
			return ledgerError(err)
		}
		return out.Success(plan, func(w io.Writer) {
			fmt.Fprintf(w, "Added %s plan %s starting %s\n", plan.Frequency, plan.ID, plan.StartDate)
		})
	})
}
