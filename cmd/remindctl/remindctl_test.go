package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carwash/internal/reminder"
	"carwash/internal/types"
)

func TestSweepWindow(t *testing.T) {
	tests := []struct {
		name       string
		minutes    int
		hours      int
		minutesSet bool
		hoursSet   bool
		want       time.Duration
		wantErr    string
	}{
		{name: "minutes", minutes: 90, minutesSet: true, want: 90 * time.Minute},
		{name: "hours", hours: 2, hoursSet: true, want: 2 * time.Hour},
		{name: "minutes win", minutes: 15, hours: 3, minutesSet: true, hoursSet: true, want: 15 * time.Minute},
		{name: "24 hours", hours: 24, hoursSet: true, want: 24 * time.Hour},
		{name: "too many hours", hours: 25, hoursSet: true, wantErr: "less than or equal to 24"},
		{name: "zero minutes", minutes: 0, minutesSet: true, wantErr: "--minutes must be positive"},
		{name: "negative hours", hours: -1, hoursSet: true, wantErr: "--hours must be positive"},
		{name: "none", wantErr: "specify --minutes or --hours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sweepWindow(tt.minutes, tt.hours, tt.minutesSet, tt.hoursSet)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintJobs_Empty(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2026, 1, 4, 13, 30, 0, 0, time.UTC)

	printJobs(&buf, nil, now, time.UTC)

	out := buf.String()
	assert.Contains(t, out, "Current time: 2026-01-04 13:30:00")
	assert.Contains(t, out, "No scheduled jobs found.")
	assert.NotContains(t, out, "Scheduled Jobs:")
}

func TestPrintJobs_PendingAndOverdue(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2026, 1, 4, 13, 30, 0, 0, time.UTC)
	jobs := []types.ScheduledJob{
		{BookingID: "124", FireAt: now.Add(-5 * time.Minute), AttemptCount: 1, LastError: "smtp down"},
		{BookingID: "125", FireAt: now.Add(30 * time.Minute)},
		{BookingID: "126", FireAt: now.Add(1110 * time.Minute)},
	}

	printJobs(&buf, jobs, now, time.UTC)

	out := buf.String()
	assert.Contains(t, out, "Scheduled Jobs: 3")

	assert.Contains(t, out, "[OVERDUE] Job: booking 124")
	assert.Contains(t, out, "Should have run at: 2026-01-04 13:25:00")
	assert.Contains(t, out, "Overdue by: 5.0 minutes")
	assert.Contains(t, out, "Attempts: 1")
	assert.Contains(t, out, "Last error: smtp down")

	assert.Contains(t, out, "[PENDING] Job: booking 125")
	assert.Contains(t, out, "In: 30.0 minutes")

	assert.Contains(t, out, "[PENDING] Job: booking 126")
	assert.Contains(t, out, "In: 1110.0 minutes")
	assert.Contains(t, out, "(18.5 hours)")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("hours)")))
}

func TestPrintJobs_Location(t *testing.T) {
	var buf bytes.Buffer
	tunis := time.FixedZone("CET", 3600)
	now := time.Date(2026, 1, 4, 13, 30, 0, 0, time.UTC)

	printJobs(&buf, []types.ScheduledJob{{BookingID: "7", FireAt: now.Add(time.Hour)}}, now, tunis)

	assert.Contains(t, buf.String(), "Current time: 2026-01-04 14:30:00")
	assert.Contains(t, buf.String(), "Next run: 2026-01-04 15:30:00")
}

func TestPrintSweepResult(t *testing.T) {
	var buf bytes.Buffer
	printSweepResult(&buf, reminder.SweepResult{Checked: 5, Sent: 2, Failed: 1, Skipped: 2}, true)
	assert.Equal(t, "Done (dry run). checked=5 sent=2 queued=0 failed=1 skipped=2\n", buf.String())
}

func TestRemoteSweep(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/reminders/sweep", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"dry_run":false,"checked":4,"sent":0,"queued":2,"failed":0,"skipped":2}}`))
	}))
	defer srv.Close()

	res, err := remoteSweep(context.Background(), srv.Client(), srv.URL+"/", 2*time.Hour, false)
	require.NoError(t, err)

	assert.Equal(t, reminder.SweepResult{Checked: 4, Queued: 2, Skipped: 2}, res)
	assert.Equal(t, float64(120), got["minutes"])
	assert.Equal(t, false, got["dry_run"])
}

func TestRemoteSweep_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"validation_sweep_window_invalid","message":"bad window","request_id":"r1"}}`))
	}))
	defer srv.Close()

	_, err := remoteSweep(context.Background(), srv.Client(), srv.URL, time.Hour, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400")
	assert.Contains(t, err.Error(), "validation_sweep_window_invalid")
}

func TestRemoteSweep_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := remoteSweep(context.Background(), srv.Client(), srv.URL, time.Hour, false)
	require.Error(t, err)
	assert.Equal(t, "reminderd returned HTTP 502", err.Error())
}

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "remindctl dev (commit=none, built=unknown)\n", buf.String())
}

func TestSweepCmd_RejectsBadWindowBeforeConnecting(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"sweep", "--hours", "48"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "less than or equal to 24")
}
