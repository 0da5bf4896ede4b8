// Package notifxconsole logs emails instead of sending them. Development only.
package notifxconsole

import (
	"context"
	"strings"

	"github.com/klubhub/klubhub/pkg/logx"
	"github.com/klubhub/klubhub/pkg/notifx"
)

// ConsoleProvider implements notifx.EmailSender by printing via logx.
type ConsoleProvider struct{}

// NewConsoleProvider creates a console email provider.
func NewConsoleProvider() *ConsoleProvider { return &ConsoleProvider{} }

// SendEmail logs the email details instead of sending.
func (p *ConsoleProvider) SendEmail(_ context.Context, msg notifx.EmailMessage) error {
	logx.WithFields(logx.Fields{
		"from":    msg.From,
		"to":      strings.Join(msg.To, ", "),
		"subject": msg.Subject,
	}).Info("notifx/console: email sent (dev mode)")

	if msg.HTMLBody != "" {
		logx.Debugf("notifx/console: html body:\n%s", msg.HTMLBody)
	}
	return nil
}
