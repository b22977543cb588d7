package notify

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/multiauth/eventbus"
	"github.com/MrEthical07/multiauth/identifier"
	"github.com/MrEthical07/multiauth/verification"
)

// EventVerificationRequested is the event type of delivery requests.
const EventVerificationRequested = "verification.requested"

// DeliveryRequest is the payload a downstream SMS or email worker consumes.
type DeliveryRequest struct {
	Destination string `json:"destination"`
	Channel     string `json:"channel"`
	Purpose     string `json:"purpose"`
	TemplateID  string `json:"template_id"`
	Code        string `json:"code"`
	Body        string `json:"body"`
}

// KafkaConfig configures a KafkaNotifier.
type KafkaConfig struct {
	Topic     string
	Source    string
	Templates Templates
}

// DefaultKafkaConfig publishes to multiauth.verification.requested.
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Topic:     eventbus.Topic("verification", "requested"),
		Source:    "multiauth",
		Templates: DefaultTemplates(),
	}
}

// KafkaNotifier hands delivery off to an out-of-process worker by
// publishing a DeliveryRequest. Success means the broker acknowledged the
// request, not that the code reached the user.
type KafkaNotifier struct {
	publisher eventbus.Publisher
	cfg       KafkaConfig
	logger    *slog.Logger
}

func NewKafkaNotifier(p eventbus.Publisher, cfg KafkaConfig, logger *slog.Logger) *KafkaNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaNotifier{publisher: p, cfg: cfg, logger: logger}
}

func (n *KafkaNotifier) Send(ctx context.Context, msg verification.Message) verification.Result {
	tplID, ok := n.cfg.Templates.ID(msg.Purpose)
	if !ok {
		return verification.Result{Success: false, Message: "no template for purpose", Code: CodeTemplateMissing}
	}
	body, err := n.cfg.Templates.Render(msg)
	if err != nil {
		n.logger.ErrorContext(ctx, "render delivery body", slog.String("error", err.Error()))
		return verification.Result{Success: false, Message: "no template for purpose", Code: CodeTemplateMissing}
	}

	event, err := eventbus.NewEvent(EventVerificationRequested, msg.Destination, msg.Channel.String(), n.cfg.Source, DeliveryRequest{
		Destination: msg.Destination,
		Channel:     msg.Channel.String(),
		Purpose:     string(msg.Purpose),
		TemplateID:  tplID,
		Code:        msg.Code,
		Body:        body,
	})
	if err != nil {
		return verification.Result{Success: false, Message: "encode delivery request", Code: CodePublishFailed}
	}

	if err := n.publisher.Publish(ctx, n.cfg.Topic, event); err != nil {
		n.logger.WarnContext(ctx, "delivery request not published",
			slog.String("destination", identifier.Mask(msg.Destination)),
			slog.String("error", err.Error()),
		)
		return verification.Result{Success: false, Message: "delivery service unavailable", Code: CodePublishFailed}
	}
	return verification.Result{Success: true, Message: "queued"}
}
