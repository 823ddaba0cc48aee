package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/routinely/routine-engine/calendar"
	"github.com/routinely/routine-engine/factory"
	"github.com/routinely/routine-engine/routine"
	"github.com/routinely/routine-engine/routine/store"
	"github.com/routinely/routine-engine/schedule"
)

const defaultHorizonDays = 30

var (
	okLabel   = color.New(color.FgGreen).SprintFunc()
	failLabel = color.New(color.FgRed).SprintFunc()
	dimLabel  = color.New(color.FgHiBlack).SprintFunc()
)

// cliContext carries the flags shared by every subcommand.
type cliContext struct {
	today string
}

func (c *cliContext) todayDate() (calendar.Date, error) {
	if c.today == "" {
		return calendar.Today(), nil
	}
	d, err := calendar.ParseDate(c.today)
	if err != nil {
		return calendar.Date{}, fmt.Errorf("--today: %w", err)
	}
	return d, nil
}

func rootCmd() *cobra.Command {
	cc := &cliContext{}

	root := &cobra.Command{
		Use:   "routinectl",
		Short: "Inspect routine schedules offline",
		Long: `routinectl reads schedule documents (the "schedule" object of the HTTP API)
from files, or from stdin when the file is "-", and answers schedule queries
without a server or database.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cc.today, "today", "", "Reference date YYYY-MM-DD (default: current UTC date)")

	root.AddCommand(validateCmd())
	root.AddCommand(dueCmd(cc))
	root.AddCommand(countCmd(cc))
	root.AddCommand(replayCmd(cc))
	return root
}

// =============================================================================
// VALIDATE
// =============================================================================

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check that schedule documents are well formed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				s, err := readSchedule(cmd, path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s %s: %v\n", failLabel("FAIL"), path, err)
					continue
				}
				fmt.Fprintf(out, "%s   %s (%s)\n", okLabel("OK"), path, s.Kind())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d schedules invalid", failed, len(args))
			}
			return nil
		},
	}
}

// =============================================================================
// DUE
// =============================================================================

func dueCmd(cc *cliContext) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "due FILE",
		Short: "List due dates in a range",
		Long: `List the dates a schedule is due on. The range defaults to today through
the next 30 days.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := readSchedule(cmd, args[0])
			if err != nil {
				return err
			}
			today, err := cc.todayDate()
			if err != nil {
				return err
			}
			fromDate, err := dateFlag("from", from, today)
			if err != nil {
				return err
			}
			toDate, err := dateFlag("to", to, fromDate.AddDays(defaultHorizonDays))
			if err != nil {
				return err
			}
			if toDate.Before(fromDate) {
				return fmt.Errorf("--to %s is before --from %s", toDate, fromDate)
			}

			out := cmd.OutOrStdout()
			dates := s.DueDatesInRange(fromDate, toDate)
			for _, d := range dates {
				line := fmt.Sprintf("%s  %s", d, d.Weekday().String()[:3])
				if d.Equal(today) {
					line += "  " + okLabel("today")
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, dimLabel(fmt.Sprintf("%d due between %s and %s", len(dates), fromDate, toDate)))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First date (default: today)")
	cmd.Flags().StringVar(&to, "to", "", "Last date (default: from + 30 days)")
	return cmd
}

// =============================================================================
// COUNT
// =============================================================================

func countCmd(cc *cliContext) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "count FILE",
		Short: "Count how many times a schedule is due in a window",
		Long: `Print the number of times the schedule is due between --from and --to.
Either bound may be omitted: the window then starts at the schedule start
and ends at today (or the end date).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := readSchedule(cmd, args[0])
			if err != nil {
				return err
			}
			today, err := cc.todayDate()
			if err != nil {
				return err
			}
			minDate, err := optionalDateFlag("from", from)
			if err != nil {
				return err
			}
			maxDate, err := optionalDateFlag("to", to)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.NumOfTimesDueInPeriod(minDate, maxDate, today).String())
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Lower bound (default: schedule start)")
	cmd.Flags().StringVar(&to, "to", "", "Upper bound (default: today)")
	return cmd
}

// =============================================================================
// REPLAY
// =============================================================================

func replayCmd(cc *cliContext) *cobra.Command {
	var done, skipped []string

	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Replay a completion history and print each day's state",
		Long: `Apply the given completions and skips to a fresh routine, then print the
state of every day from the schedule start through today along with the
resulting schedule deviation and progress.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := readSchedule(cmd, args[0])
			if err != nil {
				return err
			}
			today, err := cc.todayDate()
			if err != nil {
				return err
			}

			var records []routine.CompletionRecord
			for _, raw := range done {
				d, err := calendar.ParseDate(raw)
				if err != nil {
					return fmt.Errorf("--done: %w", err)
				}
				records = append(records, routine.Completed(d))
			}
			for _, raw := range skipped {
				d, err := calendar.ParseDate(raw)
				if err != nil {
					return fmt.Errorf("--skipped: %w", err)
				}
				records = append(records, routine.Skipped(d))
			}

			return replay(cmd.Context(), cmd.OutOrStdout(), s, records, today)
		},
	}
	cmd.Flags().StringSliceVar(&done, "done", nil, "Completed dates, comma separated")
	cmd.Flags().StringSliceVar(&skipped, "skipped", nil, "Skipped dates, comma separated")
	return cmd
}

func replay(ctx context.Context, out io.Writer, s schedule.Schedule, records []routine.CompletionRecord, today calendar.Date) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mem := store.NewMemory()
	acc := routine.NewAccountant(mem, nil, nil)
	acc.Today = func() calendar.Date { return today }

	rt := routine.Routine{ID: "cli", Name: "cli", Schedule: s}
	if err := mem.SaveRoutine(ctx, rt); err != nil {
		return err
	}

	var err error
	for _, rec := range records {
		if rt, err = acc.ApplyCompletion(ctx, rt, rec); err != nil {
			return err
		}
	}
	if rt, err = acc.Reconcile(ctx, rt); err != nil {
		return err
	}

	if !today.Before(s.StartDate) {
		states, err := acc.DayStates(ctx, rt, s.StartDate, today)
		if err != nil {
			return err
		}
		for _, st := range states {
			fmt.Fprintf(out, "%s  %s  %s\n", st.Date, st.Date.Weekday().String()[:3], statusLabel(st))
		}
	}
	fmt.Fprintf(out, "deviation %d, progress %s\n", rt.ScheduleDeviation, rt.Progress.String())
	return nil
}

func statusLabel(st routine.DayState) string {
	label := string(st.Status)
	switch st.Status {
	case routine.DayCompleted, routine.DayAlreadyCompleted:
		label = okLabel(label)
	case routine.DayFailed:
		label = failLabel(label)
	case routine.DayNotDue:
		label = dimLabel(label)
	}
	if st.Vacation {
		label += " (vacation)"
	}
	if st.Backlog {
		label += " (backlog)"
	}
	return label
}

// =============================================================================
// HELPERS
// =============================================================================

func readSchedule(cmd *cobra.Command, path string) (schedule.Schedule, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return schedule.Schedule{}, err
	}
	return factory.NewScheduleFactory().ParseSchedule(string(data))
}

func dateFlag(name, raw string, fallback calendar.Date) (calendar.Date, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return calendar.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

func optionalDateFlag(name, raw string) (*calendar.Date, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &d, nil
}
