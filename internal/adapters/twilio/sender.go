package twilio

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClareAI/astra-lead-service/pkg/logger"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// Sender sends WhatsApp messages through the Twilio API. It is the alternate
// outbound provider, selected with MESSAGING_PROVIDER=twilio.
type Sender struct {
	client *twilio.RestClient
	from   string
}

// NewSender creates a Twilio WhatsApp sender.
func NewSender(accountSID, authToken, fromNumber string) (*Sender, error) {
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if fromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &Sender{
		client: client,
		from:   canonicalize(fromNumber),
	}, nil
}

// canonicalize ensures the number carries the whatsapp: prefix Twilio expects.
func canonicalize(number string) string {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	if !strings.HasPrefix(number, "+") {
		number = "+" + number
	}
	return "whatsapp:" + number
}

// SendSessionMessage sends a WhatsApp text message and returns the Twilio
// message SID as the delivery receipt.
func (s *Sender) SendSessionMessage(ctx context.Context, phoneNumber, text string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(canonicalize(phoneNumber))
	params.SetFrom(s.from)
	params.SetBody(text)

	message, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to send message to %s: %w", phoneNumber, err)
	}

	var sid string
	if message.Sid != nil {
		sid = *message.Sid
	}

	logger.Base().Debug("Message sent via Twilio",
		zap.String("phone_number", phoneNumber),
		zap.String("message_sid", sid))
	return sid, nil
}
