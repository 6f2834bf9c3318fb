package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ridedesk/autobook/internal/calendar"
	"github.com/ridedesk/autobook/internal/config"
	"github.com/ridedesk/autobook/internal/model"
)

type StatsProvider interface {
	Stats(ctx context.Context) (*model.Stats, error)
}

// CheckFunc probes one dependency; nil means healthy.
type CheckFunc func(ctx context.Context) error

type HealthHandler struct {
	Database CheckFunc
	Redis    CheckFunc
	Calendar CheckFunc
	Stats    StatsProvider

	Mode         string
	TwilioMocked bool
}

type healthStatus struct {
	Status    string       `json:"status"`
	Mode      string       `json:"mode"`
	Database  string       `json:"database"`
	Redis     string       `json:"redis"`
	Calendar  string       `json:"calendar"`
	Twilio    string       `json:"twilio"`
	Stats     *model.Stats `json:"stats,omitempty"`
	Timestamp string       `json:"timestamp"`
}

// ServeHTTP reports dependency status. The database and redis are
// required; a missing calendar only degrades auto-booking.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
	defer cancel()

	res := healthStatus{
		Mode:      h.Mode,
		Twilio:    "real",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.TwilioMocked {
		res.Twilio = "mock"
	}

	var dbErr, redisErr, calErr error
	var g errgroup.Group
	g.Go(func() error { dbErr = probe(ctx, h.Database); return nil })
	g.Go(func() error { redisErr = probe(ctx, h.Redis); return nil })
	g.Go(func() error { calErr = probe(ctx, h.Calendar); return nil })
	g.Wait()

	res.Database = connState(dbErr)
	res.Redis = connState(redisErr)
	switch {
	case calErr == nil:
		res.Calendar = "connected"
	case errors.Is(calErr, calendar.ErrDisabled):
		res.Calendar = "disabled"
	default:
		res.Calendar = "error"
		log.Warn().Err(calErr).Msg("calendar health check failed")
	}

	status := http.StatusOK
	res.Status = "ok"
	if dbErr != nil || redisErr != nil {
		status = http.StatusServiceUnavailable
		res.Status = "degraded"
		log.Warn().AnErr("database", dbErr).AnErr("redis", redisErr).Msg("health check degraded")
	}

	if dbErr == nil && h.Stats != nil {
		stats, err := h.Stats.Stats(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("failed to collect stats for health check")
		} else {
			res.Stats = stats
		}
	}

	writeJSON(w, status, res)
}

func probe(ctx context.Context, check CheckFunc) error {
	if check == nil {
		return nil
	}
	return check(ctx)
}

func connState(err error) string {
	if err != nil {
		return "disconnected"
	}
	return "connected"
}
