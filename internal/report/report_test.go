package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/clearlabel/transparency/internal/config"
	"github.com/clearlabel/transparency/internal/models"
)

func sampleProduct(answer string) *models.Product {
	qs := make([]models.Question, 0, models.QuestionsPerProduct)
	for i := 0; i < models.QuestionsPerProduct; i++ {
		qs = append(qs, models.Question{Question: "What are the dimensions?", Answer: answer})
	}
	return &models.Product{
		ID:          "p-1",
		ProductName: "Desk Lamp",
		Category:    "home",
		Status:      models.ProductStatusActive,
		Questions:   qs,
		CreatedAt:   time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestRenderShortProductIsOnePage(t *testing.T) {
	doc, err := Render(sampleProduct(""))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if doc.Pages != 1 {
		t.Fatalf("expected 1 page, got %d", doc.Pages)
	}
	if !bytes.HasPrefix(doc.Bytes, []byte("%PDF-")) {
		t.Fatalf("expected PDF header")
	}
	if doc.FileName != "Desk Lamp_Review.pdf" {
		t.Fatalf("unexpected file name %q", doc.FileName)
	}
}

func TestRenderLongAnswersSpanPages(t *testing.T) {
	long := strings.Repeat("The shade is made from recycled aluminium and the base is weighted steel. ", 12)
	doc, err := Render(sampleProduct(long))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if doc.Pages < 2 {
		t.Fatalf("expected more than one page, got %d", doc.Pages)
	}
}

func TestRenderNonLatinText(t *testing.T) {
	product := sampleProduct("Ja, natürlich")
	product.ProductName = "Café Chair"
	if _, err := Render(product); err != nil {
		t.Fatalf("render: %v", err)
	}
}

func TestFileNameSanitizes(t *testing.T) {
	if got := FileName(`A/B "C"`); got != "A_B _C__Review.pdf" {
		t.Fatalf("unexpected file name %q", got)
	}
	if got := FileName("  "); got != "Product_Review.pdf" {
		t.Fatalf("unexpected file name %q", got)
	}
}

type fakeS3 struct {
	key  string
	body []byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = *params.Key
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) PresignGetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://bucket.example.com/" + *params.Key + "?sig=1"}, nil
}

func TestArchivePublish(t *testing.T) {
	fake := &fakeS3{}
	archive := &Archive{client: fake, presigner: fake, bucket: "reports", prefix: "reports/", expiry: time.Minute}
	doc := &Document{FileName: "Desk Lamp_Review.pdf", Pages: 1, Bytes: []byte("%PDF-1.3")}

	url, err := archive.Publish(context.Background(), "p-1", doc)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if fake.key != "reports/p-1/Desk Lamp_Review.pdf" {
		t.Fatalf("unexpected key %q", fake.key)
	}
	if string(fake.body) != "%PDF-1.3" {
		t.Fatalf("unexpected uploaded body")
	}
	if !strings.HasPrefix(url, "https://bucket.example.com/reports/p-1/") {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestArchivePublishUploadError(t *testing.T) {
	boom := errors.New("access denied")
	fake := &fakeS3{err: boom}
	archive := &Archive{client: fake, presigner: fake, bucket: "reports"}

	if _, err := archive.Publish(context.Background(), "p-1", &Document{FileName: "x.pdf"}); !errors.Is(err, boom) {
		t.Fatalf("expected upload error, got %v", err)
	}
}

func TestNewArchiveDisabledWithoutBucket(t *testing.T) {
	archive, err := NewArchive(context.Background(), config.ArchiveConfig{})
	if err != nil || archive != nil {
		t.Fatalf("expected nil archive without bucket, got %v err=%v", archive, err)
	}
}
