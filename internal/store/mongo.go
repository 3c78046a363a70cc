package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/clearlabel/transparency/internal/models"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultMongoDatabase = "transparency"
	mongoConnectTimeout  = 10 * time.Second
	usersCollection      = "users"
	productsCollection   = "products"
)

// userDocument is the MongoDB shape of a user.
type userDocument struct {
	ID         string     `bson:"_id"`
	Fullname   string     `bson:"fullname"`
	Email      string     `bson:"email"`
	Password   string     `bson:"password"`
	OTP        *string    `bson:"otp"`
	OTPExpiry  *time.Time `bson:"otpExpiry"`
	IsVerified bool       `bson:"isVerified"`
	CreatedAt  time.Time  `bson:"createdAt"`
	UpdatedAt  time.Time  `bson:"updatedAt"`
}

type questionDocument struct {
	Question string `bson:"question"`
	Answer   string `bson:"answer"`
}

// productDocument is the MongoDB shape of a product.
type productDocument struct {
	ID          string             `bson:"_id"`
	ProductName string             `bson:"productName"`
	Category    string             `bson:"category"`
	Questions   []questionDocument `bson:"questions"`
	Status      string             `bson:"status"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

// MongoStore persists users and products as MongoDB documents.
type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	products *mongo.Collection
	now      func() time.Time
}

// OpenMongoStore connects to MongoDB, pings it and ensures indexes.
func OpenMongoStore(ctx context.Context, uri string, database string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo store: connect: %w", err)
	}
	if errPing := client.Ping(connectCtx, nil); errPing != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo store: ping: %w", errPing)
	}

	name := strings.TrimSpace(database)
	if name == "" {
		name = databaseFromURI(uri)
	}
	db := client.Database(name)
	s := &MongoStore{
		client:   client,
		users:    db.Collection(usersCollection),
		products: db.Collection(productsCollection),
		now:      time.Now,
	}
	if errIndex := s.ensureIndexes(connectCtx); errIndex != nil {
		_ = client.Disconnect(context.Background())
		return nil, errIndex
	}
	log.Infof("mongo store: connected to database %s", name)
	return s, nil
}

// databaseFromURI returns the database named in the URI path, or the default.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return defaultMongoDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return defaultMongoDatabase
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("mongo store: users email index: %w", err)
	}
	if _, err := s.products.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	}); err != nil {
		return fmt.Errorf("mongo store: products createdAt index: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

// CreateUser inserts a new account. A taken email yields ErrDuplicate.
func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("mongo store: user is nil")
	}
	now := s.clock()
	user.CreatedAt = now
	user.UpdatedAt = now
	if _, err := s.users.InsertOne(ctx, toUserDocument(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("mongo store: create user: %w", err)
	}
	return nil
}

// FindUserByEmail loads an account by email.
func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

// FindUserByID loads an account by id.
func (s *MongoStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo store: find user: %w", err)
	}
	return fromUserDocument(doc), nil
}

// SetOTP stores a pending code and its expiry.
func (s *MongoStore) SetOTP(ctx context.Context, userID string, code string, expiry time.Time) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{
		"otp":       code,
		"otpExpiry": expiry.UTC(),
		"updatedAt": s.clock(),
	}})
	if err != nil {
		return fmt.Errorf("mongo store: set otp: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkVerified flags the account as verified and clears the pending code.
func (s *MongoStore) MarkVerified(ctx context.Context, userID string) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{
		"isVerified": true,
		"otp":        nil,
		"otpExpiry":  nil,
		"updatedAt":  s.clock(),
	}})
	if err != nil {
		return fmt.Errorf("mongo store: mark verified: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateProduct inserts a product, stamping its timestamps.
func (s *MongoStore) CreateProduct(ctx context.Context, product *models.Product) error {
	if product == nil {
		return fmt.Errorf("mongo store: product is nil")
	}
	if product.Status == "" {
		product.Status = models.ProductStatusDraft
	}
	now := s.clock()
	product.CreatedAt = now
	product.UpdatedAt = now
	if _, err := s.products.InsertOne(ctx, toProductDocument(product)); err != nil {
		return fmt.Errorf("mongo store: create product: %w", err)
	}
	return nil
}

// ListProducts returns products, most recent first.
func (s *MongoStore) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	query := bson.M{}
	if category := strings.TrimSpace(filter.Category); category != "" {
		query["category"] = category
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query["productName"] = primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
	}
	cursor, err := s.products.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo store: list products: %w", err)
	}
	var docs []productDocument
	if errAll := cursor.All(ctx, &docs); errAll != nil {
		return nil, fmt.Errorf("mongo store: decode products: %w", errAll)
	}
	out := make([]models.Product, 0, len(docs))
	for _, doc := range docs {
		out = append(out, *fromProductDocument(doc))
	}
	return out, nil
}

// CountProducts returns the total, active and created-since counts.
func (s *MongoStore) CountProducts(ctx context.Context, since time.Time) (ProductStats, error) {
	var stats ProductStats
	var err error
	if stats.Total, err = s.products.CountDocuments(ctx, bson.M{}); err != nil {
		return ProductStats{}, fmt.Errorf("mongo store: count products: %w", err)
	}
	if stats.Active, err = s.products.CountDocuments(ctx, bson.M{"status": models.ProductStatusActive}); err != nil {
		return ProductStats{}, fmt.Errorf("mongo store: count active products: %w", err)
	}
	if stats.ThisMonth, err = s.products.CountDocuments(ctx, bson.M{"createdAt": bson.M{"$gte": since.UTC()}}); err != nil {
		return ProductStats{}, fmt.Errorf("mongo store: count recent products: %w", err)
	}
	return stats, nil
}

// GetProduct loads a product by id.
func (s *MongoStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var doc productDocument
	if err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo store: get product: %w", err)
	}
	return fromProductDocument(doc), nil
}

// ReplaceQuestions overwrites the questions array and returns the updated product.
func (s *MongoStore) ReplaceQuestions(ctx context.Context, id string, questions []models.Question) (*models.Product, error) {
	var doc productDocument
	err := s.products.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"questions": toQuestionDocuments(questions), "updatedAt": s.clock()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo store: replace questions: %w", err)
	}
	return fromProductDocument(doc), nil
}

// Ping checks the server connection.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func toUserDocument(u *models.User) userDocument {
	return userDocument{
		ID:         u.ID,
		Fullname:   u.Fullname,
		Email:      u.Email,
		Password:   u.Password,
		OTP:        u.OTP,
		OTPExpiry:  u.OTPExpiry,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func fromUserDocument(doc userDocument) *models.User {
	return &models.User{
		ID:         doc.ID,
		Fullname:   doc.Fullname,
		Email:      doc.Email,
		Password:   doc.Password,
		OTP:        doc.OTP,
		OTPExpiry:  doc.OTPExpiry,
		IsVerified: doc.IsVerified,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}

func toQuestionDocuments(questions []models.Question) []questionDocument {
	out := make([]questionDocument, 0, len(questions))
	for _, q := range questions {
		out = append(out, questionDocument{Question: q.Question, Answer: q.Answer})
	}
	return out
}

func toProductDocument(p *models.Product) productDocument {
	return productDocument{
		ID:          p.ID,
		ProductName: p.ProductName,
		Category:    p.Category,
		Questions:   toQuestionDocuments(p.Questions),
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromProductDocument(doc productDocument) *models.Product {
	questions := make([]models.Question, 0, len(doc.Questions))
	for _, q := range doc.Questions {
		questions = append(questions, models.Question{Question: q.Question, Answer: q.Answer})
	}
	return &models.Product{
		ID:          doc.ID,
		ProductName: doc.ProductName,
		Category:    doc.Category,
		Questions:   questions,
		Status:      doc.Status,
		CreatedAt:   doc.CreatedAt.UTC(),
		UpdatedAt:   doc.UpdatedAt.UTC(),
	}
}
