package mail

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LogSender writes messages to the log instead of delivering them.
type LogSender struct{}

// NewLogSender constructs a LogSender.
func NewLogSender() *LogSender { return &LogSender{} }

// Send logs the message.
func (LogSender) Send(_ context.Context, msg Message) error {
	if errValidate := validate(msg); errValidate != nil {
		return errValidate
	}
	log.WithFields(log.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info(msg.Body)
	return nil
}
