package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"+923001234567", true},
		{"+14155238886", true},
		{"+12", true},
		{"+1", false},
		{"+0123456789", false},
		{"923001234567", false},
		{"+1234567890123456", false},
		{"+92 300 1234567", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, IsValidPhone(tc.input))
		})
	}
}

func TestExtractPhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare number", "+923001234567", "+923001234567"},
		{"prefixed chatter", "driver is +923001234567 thanks", "+923001234567"},
		{"separated digits", "call +92 300-123 4567", "+923001234567"},
		{"no number returns trimmed input", "  my driver  ", "my driver"},
		{"missing plus returns input", "03001234567", "03001234567"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractPhone(tc.input))
		})
	}
}

func TestStripChannelPrefix(t *testing.T) {
	assert.Equal(t, "+923001234567", StripChannelPrefix("whatsapp:+923001234567"))
	assert.Equal(t, "+923001234567", StripChannelPrefix("sms:+923001234567"))
	assert.Equal(t, "+923001234567", StripChannelPrefix("+923001234567"))
}
