package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// SMTPSender sends mail through an authenticated SMTP relay.
type SMTPSender struct {
	addr     string
	host     string
	username string
	password string
	from     string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender constructs an SMTPSender.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	if strings.TrimSpace(from) == "" {
		from = username
	}
	return &SMTPSender{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		host:     host,
		username: username,
		password: password,
		from:     from,
		send:     smtp.SendMail,
	}
}

// Send delivers the message. net/smtp has no context support; ctx is checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if errValidate := validate(msg); errValidate != nil {
		return errValidate
	}
	if errCtx := ctx.Err(); errCtx != nil {
		return errCtx
	}
	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if errSend := s.send(s.addr, auth, s.from, []string{msg.To}, buildMessage(s.from, msg)); errSend != nil {
		return fmt.Errorf("mail: smtp send: %w", errSend)
	}
	return nil
}

func buildMessage(from string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
