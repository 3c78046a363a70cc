package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clearlabel/transparency/internal/mail"
	"github.com/clearlabel/transparency/internal/security"
	"github.com/clearlabel/transparency/internal/store"
)

// OTPTTL is how long an emailed code stays valid.
const OTPTTL = 10 * time.Minute

// OTPService issues and checks emailed verification codes.
type OTPService struct {
	users    store.UserStore
	mailer   mail.Sender
	now      func() time.Time
	generate func() (string, error)
}

// NewOTPService constructs an OTPService.
func NewOTPService(users store.UserStore, mailer mail.Sender) *OTPService {
	return &OTPService{
		users:    users,
		mailer:   mailer,
		now:      time.Now,
		generate: security.GenerateOTPCode,
	}
}

func (s *OTPService) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Send stores a fresh code for the account and emails it. A previous code is replaced.
func (s *OTPService) Send(ctx context.Context, email string) error {
	user, err := s.users.FindUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("send otp: %w", err)
	}

	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	expiry := s.clock().Add(OTPTTL)
	if errSet := s.users.SetOTP(ctx, user.ID, code, expiry); errSet != nil {
		return fmt.Errorf("send otp: %w", errSet)
	}
	if s.mailer == nil {
		return fmt.Errorf("send otp: no mail transport configured")
	}
	if errMail := s.mailer.Send(ctx, mail.OTPMessage(user.Email, code, OTPTTL)); errMail != nil {
		return fmt.Errorf("send otp: %w", errMail)
	}
	return nil
}

// Verify confirms the account when code matches the stored, unexpired code.
func (s *OTPService) Verify(ctx context.Context, email, code string) error {
	user, err := s.users.FindUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("verify otp: %w", err)
	}
	if user.OTP == nil || *user.OTP != code {
		return ErrInvalidOTP
	}
	if user.OTPExpiry == nil || s.clock().After(*user.OTPExpiry) {
		return ErrOTPExpired
	}
	if errMark := s.users.MarkVerified(ctx, user.ID); errMark != nil {
		return fmt.Errorf("verify otp: %w", errMark)
	}
	return nil
}
