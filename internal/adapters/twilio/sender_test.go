package twilio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"whatsapp:+15551234567", "whatsapp:+15551234567"},
		{"+15551234567", "whatsapp:+15551234567"},
		{"15551234567", "whatsapp:+15551234567"},
		{"  +15551234567 ", "whatsapp:+15551234567"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, canonicalize(tc.input), "input %q", tc.input)
	}
}

func TestNewSenderValidation(t *testing.T) {
	_, err := NewSender("", "token", "+15550000000")
	assert.Error(t, err)

	_, err = NewSender("AC123", "", "+15550000000")
	assert.Error(t, err)

	_, err = NewSender("AC123", "token", "")
	assert.Error(t, err)

	sender, err := NewSender("AC123", "token", "15550000000")
	assert.NoError(t, err)
	assert.Equal(t, "whatsapp:+15550000000", sender.from)
}
