package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	original := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = original })
	return &buf
}

func TestLog(t *testing.T) {
	buf := captureLogs(t)

	Log(context.Background(), Event{
		Type:    EventRideDecided,
		Phone:   "+923001234567",
		RideID:  "ride_1",
		Details: map[string]interface{}{"status": "auto_accepted", "conflicts": 0},
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ride_decided", entry["event_type"])
	assert.Equal(t, "+923001234567", entry["phone"])
	assert.Equal(t, "ride_1", entry["ride_id"])
	assert.Equal(t, "auto_accepted", entry["status"])
	assert.EqualValues(t, 0, entry["conflicts"])
}

func TestClientIP(t *testing.T) {
	t.Run("prefers forwarded header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Forwarded-For", "10.0.0.1, 172.16.0.4")
		r.Header.Set("X-Real-IP", "10.0.0.2")
		assert.Equal(t, "10.0.0.1", ClientIP(r))
	})

	t.Run("falls back to remote addr", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		assert.Equal(t, "192.0.2.1", ClientIP(r))
	})
}
