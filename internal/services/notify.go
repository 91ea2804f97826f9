package services

import (
	"fmt"
	"log"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/insectica-ai/insectica-backend/internal/config"
	"github.com/insectica-ai/insectica-backend/internal/models"
)

// NotifyService sends operator alerts over Twilio SMS when a conversation
// escalates to a human. The whole feature is optional: without credentials
// the constructor returns nil and callers skip alerting.
type NotifyService struct {
	client  *twilio.RestClient
	from    string
	alertTo string
}

// NewNotifyService creates the alert sender, or nil when Twilio is not
// configured.
func NewNotifyService(cfg *config.Config) *NotifyService {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFrom == "" || cfg.EscalationAlertTo == "" {
		log.Println("⚠️  Twilio credentials not found - escalation alerts disabled")
		return nil
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})

	return &NotifyService{
		client:  client,
		from:    cfg.TwilioFrom,
		alertTo: cfg.EscalationAlertTo,
	}
}

// SendEscalationAlert notifies the operator that a conversation needs a
// human callback.
func (n *NotifyService) SendEscalationAlert(convo *models.Conversation) error {
	body := fmt.Sprintf("Insectica: conversation %d escalated.", convo.ID)
	if convo.CustomerName != "" || convo.Phone != "" {
		body = fmt.Sprintf("Insectica: conversation %d escalated. Caller: %s %s", convo.ID, convo.CustomerName, convo.Phone)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(n.from)
	params.SetTo(n.alertTo)
	params.SetBody(body)

	resp, err := n.client.Api.CreateMessage(params)
	if err != nil {
		log.Printf("❌ Failed to send escalation alert: %v", err)
		return err
	}

	log.Printf("✅ Escalation alert sent! SID: %s", *resp.Sid)
	return nil
}
