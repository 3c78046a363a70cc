package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clearlabel/transparency/internal/models"
	"github.com/clearlabel/transparency/internal/questions"
	"github.com/clearlabel/transparency/internal/store"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// CreateResult is a stored product plus how its questions were produced.
type CreateResult struct {
	Product *models.Product
	Source  questions.Source
	Warning string
}

// ProductService manages the product catalog.
type ProductService struct {
	products  store.ProductStore
	generator questions.Generator
	now       func() time.Time
	location  *time.Location
}

// NewProductService constructs a ProductService. Monthly stats use the server's local time zone.
func NewProductService(products store.ProductStore, generator questions.Generator) *ProductService {
	return &ProductService{
		products:  products,
		generator: generator,
		now:       time.Now,
		location:  time.Local,
	}
}

// Create stores a new active product with generated questions. Generation never
// fails the request; a degraded outcome is reported through the warning.
func (s *ProductService) Create(ctx context.Context, productName, category string) (*CreateResult, error) {
	productName = strings.TrimSpace(productName)
	category = strings.TrimSpace(category)
	if productName == "" || category == "" {
		return nil, fmt.Errorf("%w: product name and category are required", ErrValidation)
	}

	var outcome questions.Outcome
	if s.generator != nil {
		outcome = s.generator.Generate(ctx, productName, category)
	} else {
		outcome = questions.Outcome{
			Questions: questions.Normalize(questions.Fallback(category)),
			Source:    questions.SourceFallbackUnavailable,
			Warning:   questions.UnavailableWarning,
		}
	}
	texts := questions.Normalize(outcome.Questions)

	items := make([]models.Question, 0, len(texts))
	for _, text := range texts {
		items = append(items, models.Question{Question: text, Answer: ""})
	}
	product := &models.Product{
		ID:          uuid.NewString(),
		ProductName: productName,
		Category:    category,
		Questions:   items,
		Status:      models.ProductStatusActive,
	}
	if errCreate := s.products.CreateProduct(ctx, product); errCreate != nil {
		return nil, fmt.Errorf("create product: %w", errCreate)
	}
	return &CreateResult{Product: product, Source: outcome.Source, Warning: outcome.Warning}, nil
}

// List returns products matching filter, most recent first.
func (s *ProductService) List(ctx context.Context, filter store.ProductFilter) ([]models.Product, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Search = strings.TrimSpace(filter.Search)
	products, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Stats counts all products, active products, and products created since the start of the month.
func (s *ProductService) Stats(ctx context.Context) (store.ProductStats, error) {
	stats, err := s.products.CountProducts(ctx, s.monthStart())
	if err != nil {
		return store.ProductStats{}, fmt.Errorf("product stats: %w", err)
	}
	return stats, nil
}

func (s *ProductService) monthStart() time.Time {
	loc := s.location
	if loc == nil {
		loc = time.Local
	}
	clock := s.now
	if clock == nil {
		clock = time.Now
	}
	now := clock().In(loc)
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
}

// Get loads a product by id.
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.products.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// UpdateAnswers overwrites every answer positionally. Missing entries clear the
// answer and extra entries are ignored.
func (s *ProductService) UpdateAnswers(ctx context.Context, id string, answers []string) (*models.Product, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.products.ReplaceQuestions(ctx, product.ID, ApplyAnswers(product.Questions, answers))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update answers: %w", err)
	}
	return updated, nil
}

// ApplyAnswers returns a copy of qs with answers assigned by index.
func ApplyAnswers(qs []models.Question, answers []string) []models.Question {
	out := make([]models.Question, len(qs))
	for i, q := range qs {
		out[i] = models.Question{Question: q.Question}
		if i < len(answers) {
			out[i].Answer = answers[i]
		}
	}
	return out
}

// ParseAnswers reads the "answers" array from a request body. Empty-like values
// (false, 0, null, "") become "", other numbers and booleans are stringified, and
// nested values keep their JSON text.
func ParseAnswers(body []byte) ([]string, error) {
	if !json.Valid(body) {
		return nil, ErrAnswersNotArray
	}
	field := gjson.GetBytes(body, "answers")
	if !field.IsArray() {
		return nil, ErrAnswersNotArray
	}
	items := field.Array()
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, answerText(item))
	}
	return out, nil
}

func answerText(item gjson.Result) string {
	switch item.Type {
	case gjson.String:
		return item.Str
	case gjson.Number:
		if item.Num == 0 {
			return ""
		}
		return strconv.FormatFloat(item.Num, 'f', -1, 64)
	case gjson.True:
		return "true"
	case gjson.JSON:
		return item.Raw
	default:
		return ""
	}
}
