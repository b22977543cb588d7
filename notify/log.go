package notify

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/multiauth/identifier"
	"github.com/MrEthical07/multiauth/verification"
)

// LogNotifier "delivers" codes by logging them. Destinations are masked.
// The code itself is only logged when IncludeCode is set.
type LogNotifier struct {
	logger      *slog.Logger
	templates   Templates
	IncludeCode bool
}

func NewLogNotifier(logger *slog.Logger, templates Templates) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger, templates: templates}
}

func (n *LogNotifier) Send(ctx context.Context, msg verification.Message) verification.Result {
	tplID, ok := n.templates.ID(msg.Purpose)
	if !ok {
		n.logger.ErrorContext(ctx, "no template for purpose", slog.String("purpose", string(msg.Purpose)))
		return verification.Result{Success: false, Message: "no template for purpose", Code: CodeTemplateMissing}
	}

	attrs := []any{
		slog.String("destination", identifier.Mask(msg.Destination)),
		slog.String("channel", msg.Channel.String()),
		slog.String("purpose", string(msg.Purpose)),
		slog.String("template", tplID),
	}
	if n.IncludeCode {
		attrs = append(attrs, slog.String("code", msg.Code))
	}
	n.logger.InfoContext(ctx, "verification code dispatched", attrs...)
	return verification.Result{Success: true, Message: "logged"}
}
