package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var base = time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC)

func TestSearchWindow(t *testing.T) {
	tests := []struct {
		name     string
		duration int
	}{
		{"default duration", 60},
		{"minimum duration", 15},
		{"maximum duration", 480},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := SearchWindow(base, tc.duration)
			assert.Equal(t, base.Add(-30*time.Minute), w.Start)
			assert.Equal(t, base.Add(time.Duration(tc.duration)*time.Minute+30*time.Minute), w.End)
			assert.Equal(t, time.Duration(tc.duration)*time.Minute+time.Hour, w.End.Sub(w.Start))
		})
	}
}

func TestRequested(t *testing.T) {
	w := Requested(base, 90)
	assert.Equal(t, base, w.Start)
	assert.Equal(t, base.Add(90*time.Minute), w.End)
}

func TestContainsBoundaries(t *testing.T) {
	w := SearchWindow(base, 60)

	assert.True(t, w.Contains(w.Start), "start bound is inclusive")
	assert.True(t, w.Contains(w.End), "end bound is inclusive")
	assert.True(t, w.Contains(base))
	assert.False(t, w.Contains(w.Start.Add(-time.Second)))
	assert.False(t, w.Contains(w.End.Add(time.Second)))
}
