package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/clearlabel/transparency/internal/config"
)

func TestSMTPSender_BuildsMessage(t *testing.T) {
	sender := NewSMTPSender("smtp.example.com", 587, "sender@example.com", "secret", "")

	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte
	sender.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		return nil
	}

	err := sender.Send(context.Background(), Message{To: "jane@x.com", Subject: "Your OTP Code", Body: "Your OTP is 123456."})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("unexpected addr %q", gotAddr)
	}
	if gotFrom != "sender@example.com" || len(gotTo) != 1 || gotTo[0] != "jane@x.com" {
		t.Fatalf("unexpected envelope from=%q to=%v", gotFrom, gotTo)
	}
	body := string(gotBody)
	if !strings.Contains(body, "Subject: Your OTP Code\r\n") || !strings.HasSuffix(body, "Your OTP is 123456.\r\n") {
		t.Fatalf("unexpected message:\n%s", body)
	}
}

func TestSMTPSender_WrapsTransportError(t *testing.T) {
	sender := NewSMTPSender("smtp.example.com", 587, "u", "p", "u")
	boom := errors.New("connection refused")
	sender.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	if err := sender.Send(context.Background(), Message{To: "a@b.c", Subject: "s"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestValidateRejectsHeaderInjection(t *testing.T) {
	if err := NewLogSender().Send(context.Background(), Message{To: "a@b.c\r\nBcc: x@y.z", Subject: "s"}); err == nil {
		t.Fatalf("expected header injection to be rejected")
	}
	if err := NewLogSender().Send(context.Background(), Message{To: " "}); err == nil {
		t.Fatalf("expected missing recipient to be rejected")
	}
}

type fakeSES struct {
	input *ses.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	return &ses.SendEmailOutput{}, nil
}

func TestSESSender_Send(t *testing.T) {
	fake := &fakeSES{}
	sender := &SESSender{client: fake, from: "no-reply@example.com"}

	if err := sender.Send(context.Background(), Message{To: "jane@x.com", Subject: "Your OTP Code", Body: "code"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if fake.input == nil || *fake.input.Source != "no-reply@example.com" {
		t.Fatalf("expected source to be set")
	}
	if got := fake.input.Destination.ToAddresses; len(got) != 1 || got[0] != "jane@x.com" {
		t.Fatalf("unexpected destination %v", got)
	}
	if *fake.input.Message.Body.Text.Data != "code" {
		t.Fatalf("unexpected body")
	}
}

func TestNewSender_LogProvider(t *testing.T) {
	sender, err := NewSender(context.Background(), config.MailConfig{Provider: config.MailProviderLog})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if _, ok := sender.(*LogSender); !ok {
		t.Fatalf("expected LogSender, got %T", sender)
	}
	if _, err := NewSender(context.Background(), config.MailConfig{Provider: "pigeon"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestOTPMessage(t *testing.T) {
	msg := OTPMessage("jane@x.com", "123456", 10*time.Minute)
	if msg.Subject != "Your OTP Code" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if msg.Body != "Your OTP is 123456. It will expire in 10 minutes." {
		t.Fatalf("unexpected body %q", msg.Body)
	}
}
