package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"carwash/internal/api"
	"carwash/internal/bootstrap"
	"carwash/internal/db"
	"carwash/internal/reminder"
	"carwash/internal/types"
)

func newSweepCmd() *cobra.Command {
	var (
		minutes int
		hours   int
		dryRun  bool
		server  string
	)

	c := &cobra.Command{
		Use:   "sweep",
		Short: "Send reminders for every upcoming booking inside a time window",
		Long: "Sends reminders for bookings scheduled between now and now plus the window,\n" +
			"skipping cancelled, past and already reminded bookings.\n\n" +
			"With --server the sweep runs inside the reminderd at that address and every\n" +
			"reminder is queued on its scheduler. Without it the sweep sends directly and\n" +
			"must only be used while reminderd is down; a running reminderd would race it\n" +
			"and may send a second reminder for the same booking.",
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := sweepWindow(minutes, hours, cmd.Flags().Changed("minutes"), cmd.Flags().Changed("hours"))
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if server != "" {
				res, err := remoteSweep(ctx, http.DefaultClient, server, window, dryRun)
				if err != nil {
					return err
				}
				printSweepResult(out, res, dryRun)
				return nil
			}

			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			bookings := db.NewBookingRepository(e.pool, e.loc)
			notifier, closeNotifier, err := bootstrap.BuildNotifier(ctx, bootstrap.NotifierDeps{
				Config:   e.cfg,
				Contacts: bookings,
				Logger:   e.logger,
			})
			if err != nil {
				return err
			}
			defer closeNotifier()

			clock := types.RealClock{}
			now := clock.Now().In(e.loc)
			fmt.Fprintf(out, "Now(local)=%s window_to=%s (window_seconds=%d)\n",
				now.Format(time.RFC3339), now.Add(window).Format(time.RFC3339), int64(window/time.Second))

			// Persisted jobs are left alone: reminderd owns reminder_jobs and its
			// fire-time guard drops a job once reminder_sent is set.
			sweeper := reminder.NewSweeper(reminder.SweeperConfig{
				Bookings: bookings,
				Store:    bookings,
				Notifier: notifier,
				Clock:    clock,
				Logger:   bootstrap.SlogAdapter{Logger: e.logger},
			})
			res, err := sweeper.Sweep(ctx, reminder.SweepInput{Window: window, DryRun: dryRun})
			if err != nil {
				return err
			}
			printSweepResult(out, res, dryRun)
			return nil
		},
	}

	c.Flags().IntVar(&minutes, "minutes", 0, "window size in minutes (takes precedence over --hours)")
	c.Flags().IntVar(&hours, "hours", 0, "window size in hours, at most 24")
	c.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be sent without sending or writing")
	c.Flags().StringVar(&server, "server", "", "base URL of a running reminderd, e.g. http://localhost:8080")
	return c
}

// sweepWindow resolves the window flags. --minutes wins when both are set.
func sweepWindow(minutes, hours int, minutesSet, hoursSet bool) (time.Duration, error) {
	switch {
	case minutesSet:
		if minutes <= 0 {
			return 0, fmt.Errorf("--minutes must be positive")
		}
		return time.Duration(minutes) * time.Minute, nil
	case hoursSet:
		if hours <= 0 {
			return 0, fmt.Errorf("--hours must be positive")
		}
		if hours > 24 {
			return 0, fmt.Errorf("--hours must be less than or equal to 24")
		}
		return time.Duration(hours) * time.Hour, nil
	default:
		return 0, fmt.Errorf("specify --minutes or --hours")
	}
}

type remoteSweepResult struct {
	Checked int `json:"checked"`
	Sent    int `json:"sent"`
	Queued  int `json:"queued"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// remoteSweep asks the reminderd at baseURL to run the sweep.
func remoteSweep(ctx context.Context, client *http.Client, baseURL string, window time.Duration, dryRun bool) (reminder.SweepResult, error) {
	body, err := json.Marshal(api.SweepRequest{Minutes: int(window / time.Minute), DryRun: dryRun})
	if err != nil {
		return reminder.SweepResult{}, err
	}

	url := strings.TrimRight(baseURL, "/") + "/v1/reminders/sweep"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return reminder.SweepResult{}, fmt.Errorf("building sweep request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return reminder.SweepResult{}, fmt.Errorf("calling reminderd: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr api.APIErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error.Code == "" {
			return reminder.SweepResult{}, fmt.Errorf("reminderd returned HTTP %d", resp.StatusCode)
		}
		return reminder.SweepResult{}, fmt.Errorf("reminderd returned HTTP %d: %s: %s",
			resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
	}

	var envelope struct {
		Data remoteSweepResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return reminder.SweepResult{}, fmt.Errorf("decoding sweep response: %w", err)
	}
	d := envelope.Data
	return reminder.SweepResult{
		Checked: d.Checked,
		Sent:    d.Sent,
		Queued:  d.Queued,
		Failed:  d.Failed,
		Skipped: d.Skipped,
	}, nil
}

func printSweepResult(w io.Writer, res reminder.SweepResult, dryRun bool) {
	mode := ""
	if dryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "Done%s. checked=%d sent=%d queued=%d failed=%d skipped=%d\n",
		mode, res.Checked, res.Sent, res.Queued, res.Failed, res.Skipped)
}
