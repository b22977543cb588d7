package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/MrEthical07/multiauth/verification"
)

// Result codes reported by the notifiers in this package.
const (
	CodeTemplateMissing = "TEMPLATE_NOT_FOUND"
	CodePublishFailed   = "PUBLISH_ERROR"
	CodeCircuitOpen     = "CIRCUIT_OPEN"
	CodeNoRoute         = "NO_ROUTE"
)

// Templates maps each purpose to a provider template id and a message body.
// Bodies are text/template sources rendered with the Message.
type Templates struct {
	IDs    map[verification.Purpose]string
	Bodies map[verification.Purpose]string
}

// DefaultTemplates returns one template per purpose.
func DefaultTemplates() Templates {
	return Templates{
		IDs: map[verification.Purpose]string{
			verification.PurposeRegister:      "tpl_register",
			verification.PurposeLogin:         "tpl_login",
			verification.PurposeResetPassword: "tpl_reset_password",
			verification.PurposeVerifyEmail:   "tpl_verify_email",
			verification.PurposeVerifyPhone:   "tpl_verify_phone",
		},
		Bodies: map[verification.Purpose]string{
			verification.PurposeRegister:      "Your registration code is {{.Code}}.",
			verification.PurposeLogin:         "Your login code is {{.Code}}. Do not share it.",
			verification.PurposeResetPassword: "Use {{.Code}} to reset your password.",
			verification.PurposeVerifyEmail:   "Your email verification code is {{.Code}}.",
			verification.PurposeVerifyPhone:   "Your phone verification code is {{.Code}}.",
		},
	}
}

// ID returns the provider template id for p.
func (t Templates) ID(p verification.Purpose) (string, bool) {
	id, ok := t.IDs[p]
	return id, ok && id != ""
}

// Render fills in the body template for msg.Purpose.
func (t Templates) Render(msg verification.Message) (string, error) {
	src, ok := t.Bodies[msg.Purpose]
	if !ok {
		return "", fmt.Errorf("no template for purpose %s", msg.Purpose)
	}
	tpl, err := template.New(string(msg.Purpose)).Option("missingkey=error").Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", msg.Purpose, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, msg); err != nil {
		return "", fmt.Errorf("render template %s: %w", msg.Purpose, err)
	}
	return buf.String(), nil
}
