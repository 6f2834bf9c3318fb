// Package notify delivers outbound chat messages to riders and drivers.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/ridedesk/autobook/internal/util"
)

const (
	ChannelWhatsApp = "whatsapp"
	ChannelSMS      = "sms"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Twilio sends messages through the Twilio Messages API.
type Twilio struct {
	api     messageCreator
	from    string
	channel string
}

func NewTwilio(accountSID, authToken, fromNumber, channel string) *Twilio {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Twilio{api: client.Api, from: fromNumber, channel: channel}
}

func (t *Twilio) Send(ctx context.Context, phone, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(t.address(phone))
	params.SetFrom(t.address(t.from))
	params.SetBody(message)

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	log.Debug().
		Str("to", util.MaskPhone(phone)).
		Str("messageSid", sid).
		Msg("message sent")
	return nil
}

func (t *Twilio) address(phone string) string {
	if t.channel == ChannelWhatsApp {
		return "whatsapp:" + util.StripChannelPrefix(phone)
	}
	return util.StripChannelPrefix(phone)
}

// Log only writes messages to the log.
type Log struct{}

func (Log) Send(ctx context.Context, phone, message string) error {
	log.Info().
		Str("to", phone).
		Str("body", message).
		Msg("mock message")
	return nil
}
