// Package mail is the outbound email collaborator. Delivery always runs
// through the job queue, never inline on a request.
package mail

import (
	"chirpd/pkg/logger"
)

// Sender delivers one email.
type Sender interface {
	Send(to, subject, html string) error
}

// LogSender writes the email to the structured log instead of delivering
// it. Used when no SMTP relay is configured.
type LogSender struct{}

// Send logs the email envelope.
func (LogSender) Send(to, subject, html string) error {
	logger.Info("mail_logged", "to", to, "subject", subject, "bytes", len(html))
	return nil
}
