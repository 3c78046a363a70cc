// Package store persists users and products. The GORM backend serves
// PostgreSQL and SQLite; the Mongo backend stores the same records as documents.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/clearlabel/transparency/internal/models"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique field is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// UserStore persists accounts and their OTP state.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	SetOTP(ctx context.Context, userID string, code string, expiry time.Time) error
	MarkVerified(ctx context.Context, userID string) error
}

// ProductFilter narrows product listings. Empty fields match everything.
type ProductFilter struct {
	Category string
	Search   string
}

// ProductStats summarizes the catalog.
type ProductStats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	ThisMonth int64 `json:"thisMonth"`
}

// ProductStore persists product listings.
type ProductStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	CountProducts(ctx context.Context, since time.Time) (ProductStats, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ReplaceQuestions(ctx context.Context, id string, questions []models.Question) (*models.Product, error)
	Ping(ctx context.Context) error
}
