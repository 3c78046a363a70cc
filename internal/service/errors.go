// Package service holds the account, verification and product catalog operations
// behind the HTTP API.
package service

import "errors"

// Business failures. Handlers map them to status codes with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOTP         = errors.New("invalid otp")
	ErrOTPExpired         = errors.New("otp expired")
	ErrProductNotFound    = errors.New("product not found")
	ErrAnswersNotArray    = errors.New("answers must be an array")
)
