package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dbutil "github.com/clearlabel/transparency/internal/db"
	"github.com/clearlabel/transparency/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormStore persists users and products to PostgreSQL or SQLite via GORM.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (s *GormStore) ready() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store: not initialized")
	}
	return nil
}

func (s *GormStore) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

// CreateUser inserts a new account. A taken email yields ErrDuplicate.
func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.ready(); err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("gorm store: user is nil")
	}

	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", user.Email).
		Count(&count).Error; errCount != nil {
		return fmt.Errorf("gorm store: check email: %w", errCount)
	}
	if count > 0 {
		return ErrDuplicate
	}

	now := s.clock()
	user.CreatedAt = now
	user.UpdatedAt = now
	if errCreate := s.db.WithContext(ctx).Create(user).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("gorm store: create user: %w", errCreate)
	}
	return nil
}

// FindUserByEmail loads an account by email.
func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var user models.User
	if errFind := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("gorm store: find user: %w", errFind)
	}
	return &user, nil
}

// FindUserByID loads an account by id.
func (s *GormStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var user models.User
	if errFind := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("gorm store: find user: %w", errFind)
	}
	return &user, nil
}

// SetOTP stores a pending code and its expiry.
func (s *GormStore) SetOTP(ctx context.Context, userID string, code string, expiry time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"otp": code, "otp_expiry": expiry.UTC(), "updated_at": s.clock()})
	if res.Error != nil {
		return fmt.Errorf("gorm store: set otp: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkVerified flags the account as verified and clears the pending code.
func (s *GormStore) MarkVerified(ctx context.Context, userID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"is_verified": true, "otp": nil, "otp_expiry": nil, "updated_at": s.clock()})
	if res.Error != nil {
		return fmt.Errorf("gorm store: mark verified: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateProduct inserts a product, stamping its timestamps.
func (s *GormStore) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := s.ready(); err != nil {
		return err
	}
	if product == nil {
		return fmt.Errorf("gorm store: product is nil")
	}
	if product.Status == "" {
		product.Status = models.ProductStatusDraft
	}
	if product.Questions == nil {
		product.Questions = []models.Question{}
	}
	now := s.clock()
	product.CreatedAt = now
	product.UpdatedAt = now
	if errCreate := s.db.WithContext(ctx).Create(product).Error; errCreate != nil {
		return fmt.Errorf("gorm store: create product: %w", errCreate)
	}
	return nil
}

// ListProducts returns products, most recent first.
func (s *GormStore) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(&models.Product{})
	if category := strings.TrimSpace(filter.Category); category != "" {
		q = q.Where("category = ?", category)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		clause, pattern := dbutil.ContainsFold(s.db, "product_name", search)
		q = q.Where(clause, pattern)
	}

	var rows []models.Product
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("gorm store: list products: %w", errFind)
	}
	return rows, nil
}

// CountProducts returns the total, active and created-since counts.
func (s *GormStore) CountProducts(ctx context.Context, since time.Time) (ProductStats, error) {
	if err := s.ready(); err != nil {
		return ProductStats{}, err
	}
	var stats ProductStats
	base := func() *gorm.DB { return s.db.WithContext(ctx).Model(&models.Product{}) }
	if errCount := base().Count(&stats.Total).Error; errCount != nil {
		return ProductStats{}, fmt.Errorf("gorm store: count products: %w", errCount)
	}
	if errCount := base().Where("status = ?", models.ProductStatusActive).Count(&stats.Active).Error; errCount != nil {
		return ProductStats{}, fmt.Errorf("gorm store: count active products: %w", errCount)
	}
	if errCount := base().Where("created_at >= ?", since.UTC()).Count(&stats.ThisMonth).Error; errCount != nil {
		return ProductStats{}, fmt.Errorf("gorm store: count recent products: %w", errCount)
	}
	return stats, nil
}

// GetProduct loads a product by id.
func (s *GormStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var product models.Product
	if errFind := s.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("gorm store: get product: %w", errFind)
	}
	return &product, nil
}

// ReplaceQuestions overwrites the questions array and returns the updated product.
func (s *GormStore) ReplaceQuestions(ctx context.Context, id string, questions []models.Question) (*models.Product, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"questions":  datatypes.JSONSlice[models.Question](questions),
			"updated_at": s.clock(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("gorm store: replace questions: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetProduct(ctx, id)
}

// Ping checks the database connection.
func (s *GormStore) Ping(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
