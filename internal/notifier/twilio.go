package notifier

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"
)

const twimletEchoURL = "https://twimlets.com/echo"

type callCreator interface {
	CreateCall(params *twilioapi.CreateCallParams) (*twilioapi.ApiV2010Call, error)
}

// Twilio reads the alert out loud in a phone call.
type Twilio struct {
	From     string
	To       string
	Language string
	Loop     int

	calls callCreator
}

// NewTwilio builds a voice notifier authenticated with an account SID and
// auth token.
func NewTwilio(account, token, from, to string) *Twilio {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: account,
		Password: token,
	})
	return &Twilio{
		From:     from,
		To:       to,
		Language: "en-AU",
		Loop:     10,
		calls:    client.Api,
	}
}

func (t *Twilio) Notify(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := t.voiceResponse(message)
	if err != nil {
		return fmt.Errorf("building voice response: %w", err)
	}

	params := &twilioapi.CreateCallParams{}
	params.SetFrom(t.From)
	params.SetTo(t.To)
	params.SetUrl(echoURL(doc))

	if _, err := t.calls.CreateCall(params); err != nil {
		return fmt.Errorf("%w: creating call: %w", ErrDeliveryFailed, err)
	}
	return nil
}

func (t *Twilio) voiceResponse(message string) (string, error) {
	say := &twiml.VoiceSay{
		Message:  message,
		Language: t.Language,
	}
	if t.Loop > 0 {
		say.Loop = strconv.Itoa(t.Loop)
	}
	return twiml.Voice([]twiml.Element{say})
}

// echoURL hands the TwiML document to the twimlet echo service so no
// publicly reachable endpoint is needed.
func echoURL(doc string) string {
	return twimletEchoURL + "?" + url.Values{"Twiml": {doc}}.Encode()
}
