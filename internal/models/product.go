package models

import (
	"time"

	"gorm.io/datatypes"
)

// Product statuses.
const (
	// ProductStatusDraft is the model-level default status.
	ProductStatusDraft = "Draft"
	// ProductStatusActive is assigned to products created through question generation.
	ProductStatusActive = "Active"
)

// QuestionsPerProduct is the fixed number of questions held by every product.
const QuestionsPerProduct = 8

// Question is a generated question and the owner's answer to it.
type Question struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Product represents a product listing and its transparency questionnaire.
type Product struct {
	ID string `gorm:"primaryKey;type:varchar(36)"` // Primary key (UUID).

	ProductName string                        `gorm:"type:text;not null"`                        // Product display name.
	Category    string                        `gorm:"type:varchar(255);not null;index"`          // Category used for fallback questions.
	Questions   datatypes.JSONSlice[Question] `gorm:"not null"`                                  // Ordered questions and answers.
	Status      string                        `gorm:"type:varchar(32);not null;default:'Draft'"` // Listing status.

	CreatedAt time.Time `gorm:"not null;index"`          // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
