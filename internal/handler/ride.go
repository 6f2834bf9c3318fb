package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/ridedesk/autobook/internal/errors"
	"github.com/ridedesk/autobook/internal/model"
)

// Accepted in order for the request "time" field. Layouts without an offset
// are read in the service timezone.
var requestTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

type RideService interface {
	Decide(ctx context.Context, req model.RideRequest) (*model.BookingResult, error)
	GetStatus(ctx context.Context, rideID string) (*model.Ride, error)
}

type RideHandler struct {
	rides RideService
	loc   *time.Location
}

func NewRideHandler(rides RideService, loc *time.Location) *RideHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &RideHandler{rides: rides, loc: loc}
}

type rideRequestBody struct {
	RideID            string `json:"rideId"`
	DriverPhone       string `json:"driverPhone"`
	RiderPhone        string `json:"riderPhone"`
	From              string `json:"from"`
	To                string `json:"to"`
	Time              string `json:"time"`
	EstimatedDuration int    `json:"estimatedDuration"`
}

// Request decides a ride. Rejections are answered with 409 and the full
// decision body.
func (h *RideHandler) Request(w http.ResponseWriter, r *http.Request) {
	var body rideRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	req := model.RideRequest{
		RideID:            body.RideID,
		DriverPhone:       body.DriverPhone,
		RiderPhone:        body.RiderPhone,
		From:              body.From,
		To:                body.To,
		EstimatedDuration: body.EstimatedDuration,
	}
	if body.Time != "" {
		t, ok := h.parseRequestTime(body.Time)
		if !ok {
			writeError(w, apperrors.InvalidInput("time", "expected an ISO 8601 date-time"))
			return
		}
		req.Time = t
	}

	res, err := h.rides.Decide(r.Context(), req)
	if err != nil {
		if !apperrors.IsValidation(err) {
			log.Error().Err(err).Str("rideId", body.RideID).Msg("ride request failed")
		}
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if !res.Success {
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

func (h *RideHandler) Status(w http.ResponseWriter, r *http.Request) {
	rideID := chi.URLParam(r, "rideId")

	ride, err := h.rides.GetStatus(r.Context(), rideID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"ride":    model.NewRideStatusView(ride),
	})
}

func (h *RideHandler) parseRequestTime(s string) (time.Time, bool) {
	for _, layout := range requestTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, h.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
