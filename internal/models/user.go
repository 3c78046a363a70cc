package models

import "time"

// User represents an account that signs in to manage product listings.
type User struct {
	ID string `gorm:"primaryKey;type:varchar(36)"` // Primary key (UUID).

	Fullname string `gorm:"type:text;not null"`                     // Display name.
	Email    string `gorm:"type:varchar(320);not null;uniqueIndex"` // Unique login email.
	Password string `gorm:"type:text;not null"`                     // Bcrypt password hash.

	OTP        *string    `gorm:"type:varchar(6)"` // Pending one-time code.
	OTPExpiry  *time.Time // Expiry of the pending one-time code.
	IsVerified bool       `gorm:"not null;default:false"` // Whether the email was confirmed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
