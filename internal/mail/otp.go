package mail

import (
	"fmt"
	"time"
)

// OTPSubject is the subject line of verification code emails.
const OTPSubject = "Your OTP Code"

// OTPMessage builds the verification email carrying code.
func OTPMessage(to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: OTPSubject,
		Body:    fmt.Sprintf("Your OTP is %s. It will expire in %d minutes.", code, int(ttl.Minutes())),
	}
}
