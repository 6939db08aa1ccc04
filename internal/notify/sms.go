package notify

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/emilythestrangee/stackit/backend/internal/models"
)

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// SMSSink texts notifications to users who saved a phone number.
type SMSSink struct {
	api     messageCreator
	from    string
	baseURL string
}

// NewSMSSink builds a Twilio-backed sink. baseURL prefixes notification
// links in the message body and may be empty.
func NewSMSSink(accountSID, authToken, from, baseURL string) *SMSSink {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &SMSSink{api: client.Api, from: from, baseURL: baseURL}
}

func (s *SMSSink) Name() string { return "sms" }

func (s *SMSSink) Deliver(_ context.Context, to Recipient, n models.Notification) error {
	if to.Phone == "" {
		return nil
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to.Phone)
	params.SetFrom(s.from)
	params.SetBody(s.body(n))

	if _, err := s.api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send sms to user %d: %w", to.ID, err)
	}
	return nil
}

func (s *SMSSink) body(n models.Notification) string {
	body := fmt.Sprintf("%s: %s", n.Title, n.Message)
	if n.Link != "" {
		body += " " + s.baseURL + n.Link
	}
	return body
}
