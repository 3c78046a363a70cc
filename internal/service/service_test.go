package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/clearlabel/transparency/internal/config"
	"github.com/clearlabel/transparency/internal/db"
	"github.com/clearlabel/transparency/internal/mail"
	"github.com/clearlabel/transparency/internal/questions"
	"github.com/clearlabel/transparency/internal/store"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type stubGenerator struct {
	outcome questions.Outcome
}

func (g stubGenerator) Generate(context.Context, string, string) questions.Outcome {
	return g.outcome
}

func newTestStore(t *testing.T) *store.GormStore {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "service-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(conn) })
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return store.NewGormStore(conn)
}

func newAuthFixture(t *testing.T, mailer mail.Sender) (*AuthService, *OTPService, *store.GormStore) {
	t.Helper()
	st := newTestStore(t)
	otp := NewOTPService(st, mailer)
	otp.generate = func() (string, error) { return "123456", nil }
	auth := NewAuthService(st, otp, config.JWTConfig{Secret: "test-secret", Expiry: time.Hour})
	auth.dispatch = func(fn func()) { fn() }
	return auth, otp, st
}

func TestSignupMailsCodeAndVerifySucceeds(t *testing.T) {
	mailer := &recordingMailer{}
	auth, otp, st := newAuthFixture(t, mailer)
	ctx := context.Background()

	session, err := auth.Signup(ctx, SignupInput{Fullname: "Jane", Email: "jane@x.com", Password: "pw"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if session.Token == "" || session.User.IsVerified {
		t.Fatalf("expected token and unverified user, got %+v", session.User)
	}
	if session.User.Password == "pw" {
		t.Fatalf("expected password to be hashed")
	}
	if len(mailer.sent) != 1 || mailer.sent[0].To != "jane@x.com" {
		t.Fatalf("expected one otp email, got %+v", mailer.sent)
	}
	if mailer.sent[0].Body != "Your OTP is 123456. It will expire in 10 minutes." {
		t.Fatalf("unexpected email body %q", mailer.sent[0].Body)
	}

	if errVerify := otp.Verify(ctx, "jane@x.com", "123456"); errVerify != nil {
		t.Fatalf("verify: %v", errVerify)
	}
	user, err := st.FindUserByEmail(ctx, "jane@x.com")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if !user.IsVerified || user.OTP != nil || user.OTPExpiry != nil {
		t.Fatalf("expected verified user with cleared otp, got %+v", user)
	}
}

func TestVerifyRejectsExpiredAndWrongCodes(t *testing.T) {
	auth, otp, _ := newAuthFixture(t, &recordingMailer{})
	ctx := context.Background()
	start := time.Now()
	otp.now = func() time.Time { return start }

	if _, err := auth.Signup(ctx, SignupInput{Fullname: "Jane", Email: "jane@x.com", Password: "pw"}); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if err := otp.Verify(ctx, "jane@x.com", "000000"); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected ErrInvalidOTP, got %v", err)
	}
	if err := otp.Verify(ctx, "ghost@x.com", "123456"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	otp.now = func() time.Time { return start.Add(11 * time.Minute) }
	if err := otp.Verify(ctx, "jane@x.com", "123456"); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
}

func TestSignupSurvivesMailFailure(t *testing.T) {
	auth, _, _ := newAuthFixture(t, &recordingMailer{err: errors.New("smtp down")})

	if _, err := auth.Signup(context.Background(), SignupInput{Fullname: "Jane", Email: "jane@x.com", Password: "pw"}); err != nil {
		t.Fatalf("expected signup to succeed despite mail failure, got %v", err)
	}
}

func TestSignupValidationAndDuplicate(t *testing.T) {
	auth, _, _ := newAuthFixture(t, &recordingMailer{})
	ctx := context.Background()

	if _, err := auth.Signup(ctx, SignupInput{Email: "a@b.c", Password: "pw"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := auth.Signup(ctx, SignupInput{Fullname: "A", Email: "a@b.c", Password: "pw"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := auth.Signup(ctx, SignupInput{Fullname: "B", Email: "a@b.c", Password: "pw2"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	auth, _, _ := newAuthFixture(t, &recordingMailer{})
	ctx := context.Background()
	if _, err := auth.Signup(ctx, SignupInput{Fullname: "Jane", Email: "jane@x.com", Password: "pw"}); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := auth.Login(ctx, "nobody@x.com", "pw"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := auth.Login(ctx, "jane@x.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	session, err := auth.Login(ctx, "jane@x.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	user, err := auth.Authenticate(ctx, session.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Email != "jane@x.com" {
		t.Fatalf("expected token to resolve to jane, got %q", user.Email)
	}
	if _, err := auth.Authenticate(ctx, session.Token+"x"); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}
}

func degradedGenerator(category string) stubGenerator {
	return stubGenerator{outcome: questions.Outcome{
		Questions: questions.Fallback(category),
		Source:    questions.SourceFallbackUnavailable,
		Warning:   questions.UnavailableWarning,
	}}
}

func TestCreateProductWithFallback(t *testing.T) {
	svc := NewProductService(newTestStore(t), degradedGenerator("home"))

	result, err := svc.Create(context.Background(), "Desk Lamp", "home")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if result.Warning != questions.UnavailableWarning {
		t.Fatalf("expected warning, got %q", result.Warning)
	}
	product := result.Product
	if product.Status != "Active" || product.ID == "" {
		t.Fatalf("unexpected product: %+v", product)
	}
	if len(product.Questions) != 8 {
		t.Fatalf("expected 8 questions, got %d", len(product.Questions))
	}
	home := questions.Fallback("home")
	for i, q := range product.Questions {
		if q.Question != home[i] || q.Answer != "" {
			t.Fatalf("question %d: unexpected %+v", i, q)
		}
	}
}

func TestCreateProductPadsShortAIList(t *testing.T) {
	svc := NewProductService(newTestStore(t), stubGenerator{outcome: questions.Outcome{
		Questions: []string{"Only one?"},
		Source:    questions.SourceAI,
	}})

	result, err := svc.Create(context.Background(), "Widget", "gadgets")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if result.Warning != "" || len(result.Product.Questions) != 8 {
		t.Fatalf("unexpected result: warning=%q questions=%d", result.Warning, len(result.Product.Questions))
	}
	if result.Product.Questions[1].Question != "What is the price range?" {
		t.Fatalf("expected padding, got %q", result.Product.Questions[1].Question)
	}
}

func TestCreateProductRequiresNameAndCategory(t *testing.T) {
	svc := NewProductService(newTestStore(t), degradedGenerator(""))
	if _, err := svc.Create(context.Background(), "Lamp", " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUpdateAnswersPositional(t *testing.T) {
	svc := NewProductService(newTestStore(t), degradedGenerator("home"))
	ctx := context.Background()
	created, err := svc.Create(ctx, "Desk Lamp", "home")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.UpdateAnswers(ctx, created.Product.ID, []string{"Yes", "No"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := []string{"Yes", "No", "", "", "", "", "", ""}
	for i, q := range updated.Questions {
		if q.Answer != want[i] {
			t.Fatalf("answer %d: expected %q, got %q", i, want[i], q.Answer)
		}
	}

	long := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}
	updated, err = svc.UpdateAnswers(ctx, created.Product.ID, long)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Questions) != 8 || updated.Questions[7].Answer != "8" {
		t.Fatalf("expected extra answers to be ignored, got %+v", updated.Questions)
	}

	if _, err := svc.UpdateAnswers(ctx, "missing", nil); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	svc := NewProductService(newTestStore(t), degradedGenerator("toys"))
	ctx := context.Background()

	empty, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if empty != (store.ProductStats{}) {
		t.Fatalf("expected zero stats, got %+v", empty)
	}

	for _, name := range []string{"Robot", "Blocks"} {
		if _, errCreate := svc.Create(ctx, name, "toys"); errCreate != nil {
			t.Fatalf("create: %v", errCreate)
		}
	}
	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.Active != 2 || stats.ThisMonth != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestMonthStartUsesServerZone(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	svc := &ProductService{
		location: loc,
		now:      func() time.Time { return time.Date(2025, 3, 31, 21, 0, 0, 0, time.UTC) },
	}
	want := time.Date(2025, 4, 1, 0, 0, 0, 0, loc)
	if got := svc.monthStart(); !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestParseAnswers(t *testing.T) {
	got, err := ParseAnswers([]byte(`{"answers":["Yes",0,false,null,"",12.5,true,{"a":1}]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"Yes", "", "", "", "", "12.5", "true", `{"a":1}`}
	if len(got) != len(want) {
		t.Fatalf("expected %d answers, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("answer %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	for _, body := range []string{`{}`, `{"answers":"Yes"}`, `{"answers":null}`, `not json`} {
		if _, err := ParseAnswers([]byte(body)); !errors.Is(err, ErrAnswersNotArray) {
			t.Fatalf("body %s: expected ErrAnswersNotArray, got %v", body, err)
		}
	}
}
