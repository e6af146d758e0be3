package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"carwash/internal/db"
	"carwash/internal/types"
)

const rule = "============================================================"

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect persisted reminder jobs",
	}
	cmd.AddCommand(newJobsListCmd())
	return cmd
}

func newJobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled reminder jobs with their timing",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			jobs, err := db.NewScheduledJobRepository(e.pool).List(ctx)
			if err != nil {
				return err
			}
			printJobs(cmd.OutOrStdout(), jobs, types.RealClock{}.Now(), e.loc)
			return nil
		},
	}
}

// printJobs writes one block per job, marking jobs whose fire time has
// passed as overdue. Times are shown in loc.
func printJobs(w io.Writer, jobs []types.ScheduledJob, now time.Time, loc *time.Location) {
	const layout = "2006-01-02 15:04:05"

	fmt.Fprintf(w, "\n%s\nCurrent time: %s\n%s\n\n", rule, now.In(loc).Format(layout), rule)

	if len(jobs) == 0 {
		fmt.Fprintln(w, "No scheduled jobs found.")
		fmt.Fprintln(w, "\nThis is normal if:")
		fmt.Fprintln(w, "- All bookings are closer than the lead time (reminders sent immediately)")
		fmt.Fprintln(w, "- No bookings have been created yet")
		fmt.Fprintln(w, "- All reminders have already been sent")
		fmt.Fprintf(w, "\n%s\n\n", rule)
		return
	}

	fmt.Fprintf(w, "Scheduled Jobs: %d\n\n", len(jobs))

	for _, job := range jobs {
		v := types.ViewOf(job, now)
		minutes := v.Remaining.Minutes()
		fireAt := v.FireAt.In(loc).Format(layout)

		var b strings.Builder
		switch v.Status {
		case types.JobStatusPending:
			fmt.Fprintf(&b, "[PENDING] Job: booking %s\n", v.BookingID)
			fmt.Fprintf(&b, "  Next run: %s\n", fireAt)
			fmt.Fprintf(&b, "  In: %.1f minutes\n", minutes)
			if minutes > 60 {
				fmt.Fprintf(&b, "       (%.1f hours)\n", minutes/60)
			}
		default:
			fmt.Fprintf(&b, "[OVERDUE] Job: booking %s\n", v.BookingID)
			fmt.Fprintf(&b, "  Should have run at: %s\n", fireAt)
			fmt.Fprintf(&b, "  Overdue by: %.1f minutes\n", math.Abs(minutes))
			fmt.Fprintln(&b, "  (Will run when reminderd starts)")
		}
		if v.AttemptCount > 0 {
			fmt.Fprintf(&b, "  Attempts: %d\n", v.AttemptCount)
		}
		if v.LastError != "" {
			fmt.Fprintf(&b, "  Last error: %s\n", v.LastError)
		}
		fmt.Fprintln(w, b.String())
	}

	fmt.Fprintf(w, "%s\n\n", rule)
}
