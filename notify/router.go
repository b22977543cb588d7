package notify

import (
	"context"

	"github.com/MrEthical07/multiauth/identifier"
	"github.com/MrEthical07/multiauth/verification"
)

// Router sends email codes through Email and phone codes through SMS.
type Router struct {
	Email verification.Notifier
	SMS   verification.Notifier
}

func NewRouter(email, sms verification.Notifier) *Router {
	return &Router{Email: email, SMS: sms}
}

func (r *Router) Send(ctx context.Context, msg verification.Message) verification.Result {
	var next verification.Notifier
	switch msg.Channel {
	case identifier.KindEmail:
		next = r.Email
	case identifier.KindPhone:
		next = r.SMS
	}
	if next == nil {
		return verification.Result{Success: false, Message: "no notifier for channel " + msg.Channel.String(), Code: CodeNoRoute}
	}
	return next.Send(ctx, msg)
}
