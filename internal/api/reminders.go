package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"carwash/internal/reminder"
	"carwash/internal/types"
)

type jobsResponse struct {
	Now  time.Time       `json:"now"`
	Jobs []types.JobView `json:"jobs"`
}

// HandleListJobs returns every pending job with its PENDING/OVERDUE status.
func (s *Server) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	now := s.Clock.Now()
	jobs := s.Jobs.Pending(now)
	if jobs == nil {
		jobs = []types.JobView{}
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: jobsResponse{Now: now, Jobs: jobs}})
}

// HandleSyncBooking re-evaluates one booking and applies the outcome. The
// booking system calls it after every create or update.
func (s *Server) HandleSyncBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := strings.TrimSpace(chi.URLParam(r, "bookingID"))
	if bookingID == "" {
		Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "booking id is required", nil))
		return
	}

	outcome, err := s.Bookings.Sync(r.Context(), bookingID)
	if err != nil {
		s.Logger.WarnContext(r.Context(), "booking sync failed", "booking_id", bookingID, "error", err)
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: outcome})
}

// SweepRequest selects the sweep window. Exactly one of Minutes or Hours is
// expected; Minutes wins when both are set.
type SweepRequest struct {
	Minutes int  `json:"minutes" validate:"gte=0,lte=1440"`
	Hours   int  `json:"hours" validate:"gte=0,lte=24"`
	DryRun  bool `json:"dry_run"`
}

// Window converts the request into a duration. Zero means unset.
func (req SweepRequest) Window() time.Duration {
	if req.Minutes > 0 {
		return time.Duration(req.Minutes) * time.Minute
	}
	return time.Duration(req.Hours) * time.Hour
}

type sweepResponse struct {
	DryRun  bool `json:"dry_run"`
	Checked int  `json:"checked"`
	Sent    int  `json:"sent"`
	Queued  int  `json:"queued"`
	Failed  int  `json:"failed"`
	Skipped int  `json:"skipped"`
}

// HandleSweep runs a manual sweep over the requested window. An empty body
// or one without a window sweeps the next 60 minutes.
func (s *Server) HandleSweep(w http.ResponseWriter, r *http.Request) {
	if s.Sweeper == nil {
		Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "sweep is not configured", nil))
		return
	}

	var req SweepRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if req.Minutes == 0 && req.Hours == 0 {
		req.Minutes = 60
	}
	if err := s.Validator.Struct(req, types.ErrCodeValidationSweepWindow); err != nil {
		Error(w, r, err)
		return
	}

	res, err := s.Sweeper.Sweep(r.Context(), reminder.SweepInput{Window: req.Window(), DryRun: req.DryRun})
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: sweepResponse{
		DryRun:  req.DryRun,
		Checked: res.Checked,
		Sent:    res.Sent,
		Queued:  res.Queued,
		Failed:  res.Failed,
		Skipped: res.Skipped,
	}})
}

// LeadTimeRequest carries a Go duration string such as "6h" or "90m".
type LeadTimeRequest struct {
	LeadTime string `json:"lead_time" validate:"required"`
}

type leadTimeResponse struct {
	LeadTime        string `json:"lead_time"`
	LeadTimeSeconds int64  `json:"lead_time_seconds"`
}

func leadTimeBody(d time.Duration) APIResponse {
	return APIResponse{Data: leadTimeResponse{LeadTime: d.String(), LeadTimeSeconds: int64(d / time.Second)}}
}

// HandleGetLeadTime returns the lead time used for new decisions.
func (s *Server) HandleGetLeadTime(w http.ResponseWriter, r *http.Request) {
	if s.LeadTime == nil {
		Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "lead time is not configurable", nil))
		return
	}
	JSON(w, r, http.StatusOK, leadTimeBody(s.LeadTime.LeadTime()))
}

// HandleSetLeadTime replaces the lead time. Jobs that are already scheduled
// keep their fire time until their booking is synced again.
func (s *Server) HandleSetLeadTime(w http.ResponseWriter, r *http.Request) {
	if s.LeadTime == nil {
		Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "lead time is not configurable", nil))
		return
	}

	var req LeadTimeRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := s.Validator.Struct(req, types.ErrCodeValidationLeadTime); err != nil {
		Error(w, r, err)
		return
	}
	d, err := time.ParseDuration(req.LeadTime)
	if err != nil {
		Error(w, r, types.NewAppError(types.ErrCodeValidationLeadTime, "lead_time must be a duration such as 6h or 90m", err))
		return
	}
	if err := s.LeadTime.Set(d); err != nil {
		Error(w, r, err)
		return
	}

	s.Logger.InfoContext(r.Context(), "reminder lead time changed", "lead_time", d.String())
	JSON(w, r, http.StatusOK, leadTimeBody(d))
}
