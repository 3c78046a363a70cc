package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/clearlabel/transparency/internal/models"
	"github.com/clearlabel/transparency/internal/report"
	"github.com/clearlabel/transparency/internal/service"
	"github.com/clearlabel/transparency/internal/store"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ReportPublisher stores a rendered report and returns a download URL for it.
type ReportPublisher interface {
	Publish(ctx context.Context, productID string, doc *report.Document) (string, error)
}

// ProductHandler serves the product catalog endpoints.
type ProductHandler struct {
	products *service.ProductService
	archive  ReportPublisher
}

// NewProductHandler constructs a ProductHandler. archive may be nil.
func NewProductHandler(products *service.ProductService, archive ReportPublisher) *ProductHandler {
	return &ProductHandler{products: products, archive: archive}
}

// List returns products, newest first, optionally filtered by category and name search.
func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.products.List(c.Request.Context(), store.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
	})
	if err != nil {
		log.WithError(err).Error("list products failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}
	out := make([]gin.H, 0, len(products))
	for i := range products {
		out = append(out, productJSON(&products[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Stats returns catalog counters.
func (h *ProductHandler) Stats(c *gin.Context) {
	stats, err := h.products.Stats(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("product stats failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

type createBasicRequest struct {
	ProductName string `json:"productName"`
	Category    string `json:"category"`
}

// CreateBasic creates a product with generated questions. Generation problems
// degrade to fallback questions instead of failing the request.
func (h *ProductHandler) CreateBasic(c *gin.Context) {
	var body createBasicRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Product name and category are required"})
		return
	}
	result, err := h.products.Create(c.Request.Context(), body.ProductName, body.Category)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Product name and category are required"})
			return
		}
		log.WithError(err).Error("create product failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	out := productJSON(result.Product)
	if result.Warning != "" {
		out["warning"] = result.Warning
	}
	c.JSON(http.StatusCreated, out)
}

// Get returns a single product.
func (h *ProductHandler) Get(c *gin.Context) {
	product, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, productJSON(product))
}

// UpdateAnswers overwrites the answers of a product by position.
func (h *ProductHandler) UpdateAnswers(c *gin.Context) {
	raw, errRead := c.GetRawData()
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Answers must be an array"})
		return
	}
	answers, errParse := service.ParseAnswers(raw)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Answers must be an array"})
		return
	}
	product, err := h.products.UpdateAnswers(c.Request.Context(), c.Param("id"), answers)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		log.WithError(err).Error("update answers failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Answers saved successfully!",
		"product": productJSON(product),
	})
}

// PDF renders the product report. Clients asking for JSON get report metadata
// with a download URL instead of the document.
func (h *ProductHandler) PDF(c *gin.Context) {
	product, ok := h.load(c)
	if !ok {
		return
	}
	doc, err := report.Render(product)
	if err != nil {
		log.WithError(err).WithField("product", product.ID).Error("render report failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error generating PDF"})
		return
	}

	if !wantsJSON(c) {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
		c.Data(http.StatusOK, "application/pdf", doc.Bytes)
		return
	}

	downloadURL := "/api/products/" + product.ID + "/pdf"
	if h.archive != nil {
		url, errPublish := h.archive.Publish(c.Request.Context(), product.ID, doc)
		if errPublish != nil {
			log.WithError(errPublish).WithField("product", product.ID).Warn("archive report failed, serving direct link")
		} else {
			downloadURL = url
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "PDF generated",
		"productName": product.ProductName,
		"fileName":    doc.FileName,
		"pages":       doc.Pages,
		"downloadUrl": downloadURL,
	})
}

func (h *ProductHandler) load(c *gin.Context) (*models.Product, bool) {
	product, err := h.products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return nil, false
		}
		log.WithError(err).Error("load product failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return nil, false
	}
	return product, true
}

func wantsJSON(c *gin.Context) bool {
	if strings.EqualFold(strings.TrimSpace(c.Query("format")), "json") {
		return true
	}
	accept := strings.ToLower(c.GetHeader("Accept"))
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "application/pdf")
}
