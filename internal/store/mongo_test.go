package store

import (
	"testing"
	"time"

	"github.com/clearlabel/transparency/internal/models"
)

func TestDatabaseFromURI(t *testing.T) {
	cases := map[string]string{
		"mongodb://localhost:27017":                     defaultMongoDatabase,
		"mongodb://localhost:27017/":                    defaultMongoDatabase,
		"mongodb://user:pw@localhost:27017/catalog":     "catalog",
		"mongodb+srv://cluster.example.net/app?w=major": "app",
	}
	for uri, want := range cases {
		if got := databaseFromURI(uri); got != want {
			t.Fatalf("databaseFromURI(%q) = %q, want %q", uri, got, want)
		}
	}
}

func TestProductDocumentMapping(t *testing.T) {
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	product := &models.Product{
		ID:          "p-1",
		ProductName: "Desk Lamp",
		Category:    "home",
		Questions:   []models.Question{{Question: "What are the dimensions?", Answer: "30cm"}},
		Status:      models.ProductStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	doc := toProductDocument(product)
	if doc.ID != "p-1" || len(doc.Questions) != 1 || doc.Questions[0].Answer != "30cm" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	back := fromProductDocument(doc)
	if back.ProductName != product.ProductName || back.Questions[0].Question != "What are the dimensions?" {
		t.Fatalf("unexpected product: %+v", back)
	}
	if !back.CreatedAt.Equal(now) {
		t.Fatalf("expected createdAt preserved")
	}
}
