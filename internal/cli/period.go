package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dvloznov/cashflow-planner/internal/ledger"
	"github.com/spf13/cobra"
)

// PeriodOptions holds flags for period change.
type PeriodOptions struct {
	*RootOptions
	Resolve []string
	All     string
	Force   bool
}

// periodResult is the outcome of period change.
type periodResult struct {
	ViewDate   string               `json:"viewDate"`
	Advanced   bool                 `json:"advanced"`
	Resolved   map[string]string    `json:"resolved,omitempty"`
	Unresolved []ledger.PendingItem `json:"unresolved,omitempty"`
}

// NewPeriodCommand creates the period command group.
func NewPeriodCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Move between billing periods",
	}

	opts := &PeriodOptions{RootOptions: rootOpts}
	change := &cobra.Command{
		Use:   "change <YYYY-MM-DD>",
		Short: "View another date, closing the current period if needed",
		Long: `View another date. Moving past the end of the current billing period starts
a new cycle on that date. Plans with occurrences still open in the period being
closed must be resolved first:

  --resolve <plan-id>=paid|cancel|move   resolve one occurrence
  --all paid|cancel|move                 resolve every remaining occurrence
  --force                                close the period leaving the rest open

Without enough resolutions nothing changes and the open occurrences are listed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPeriodChange(opts, cmd, args[0])
		},
	}
	change.Flags().StringArrayVar(&opts.Resolve, "resolve", nil, "plan-id=action for one open occurrence (repeatable)")
	change.Flags().StringVar(&opts.All, "all", "", "action for every remaining open occurrence")
	change.Flags().BoolVar(&opts.Force, "force", false, "close the period even if occurrences stay open")

	cmd.AddCommand(change)
	return cmd
}

func parseResolutions(specs []string, all string) (map[string]ledger.Action, error) {
	out := make(map[string]ledger.Action, len(specs))
	for _, spec := range specs {
		id, action, ok := strings.Cut(spec, "=")
		if !ok || id == "" || !ledger.Action(action).Valid() {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --resolve %q: expected plan-id=paid|cancel|move", spec))
		}
		out[id] = ledger.Action(action)
	}
	if all != "" && !ledger.Action(all).Valid() {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --all %q: must be paid, cancel or move", all))
	}
	return out, nil
}

func runPeriodChange(opts *PeriodOptions, cmd *cobra.Command, date string) error {
	target, err := parseDate("date", date)
	if err != nil {
		return err
	}
	resolutions, err := parseResolutions(opts.Resolve, opts.All)
	if err != nil {
		return err
	}

	return withEnv(opts.RootOptions, cmd, func(ctx context.Context, env *Env, out *OutputFormatter) error {
		l := env.Ledger
		before := l.Period()

		t, err := l.ChangeViewDate(target)
		if err != nil {
			return ledgerError(err)
		}

		res := periodResult{Resolved: map[string]string{}}
		if t != nil {
			for _, item := range t.Items {
				action, ok := resolutions[item.PlanID]
				if !ok && opts.All != "" {
					action, ok = ledger.Action(opts.All), true
				}
				if !ok {
					continue
				}
				if _, err := l.Resolve(item.PlanID, action); err != nil {
					out.VerboseLog("resolve %s: %v", item.PlanID, err)
					continue
				}
				res.Resolved[item.PlanID] = string(action)
			}

			remaining := l.Pending().Items
			if len(remaining) > 0 && !opts.Force {
				_ = l.Cancel()
				res.Unresolved = remaining
				res.ViewDate = l.ViewDate().String()
				if err := out.Success(res, func(w io.Writer) { printPending(w, remaining) }); err != nil {
					return err
				}
				return NewExitError(ExitFailure, fmt.Sprintf("%d open occurrence(s) in %s .. %s", len(remaining), before.Start, before.End))
			}
			if err := l.Finish(); err != nil {
				return ledgerError(err)
			}
		}

		after := l.Period()
		res.ViewDate = l.ViewDate().String()
		res.Advanced = after != before
		return out.Success(res, func(w io.Writer) {
			for id, action := range res.Resolved {
				fmt.Fprintf(w, "Resolved %s: %s\n", id, action)
			}
			fmt.Fprintf(w, "Viewing %s; period %s .. %s\n", res.ViewDate, after.Start, after.End)
		})
	})
}

func printPending(w io.Writer, items []ledger.PendingItem) {
	fmt.Fprintln(w, "Open occurrences must be resolved before closing the period:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DUE\tAMOUNT\tDESCRIPTION\tOVERDUE\tPLAN ID")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n",
			item.DueDate, item.Type.Signed(item.Amount).StringFixed(2), item.Description, item.Overdue, item.PlanID)
	}
	tw.Flush()
}
