// Package report renders a product's questionnaire as a PDF and optionally archives it in S3.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/clearlabel/transparency/internal/models"
	"github.com/go-pdf/fpdf"
)

const (
	marginLeft   = 10.0
	answerIndent = 12.0
	marginRight  = 10.0
	pageTop      = 20.0
	pageBottom   = 280.0
	lineHeight   = 7.0
	blockGap     = 3.0
	fontFamily   = "Helvetica"
	dateLayout   = "2006-01-02"
)

// Document is a rendered report.
type Document struct {
	FileName string
	Pages    int
	Bytes    []byte
}

// FileName returns the download name for a product report.
func FileName(productName string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == '"' || r == ':':
			return '_'
		case unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(productName))
	if name == "" {
		name = "Product"
	}
	return name + "_Review.pdf"
}

// Render lays out the product as an A4 document. Each question block moves to a new
// page when it would run past the bottom margin.
func Render(product *models.Product) (*Document, error) {
	if product == nil {
		return nil, fmt.Errorf("report: product is nil")
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginLeft, pageTop, marginRight)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Product Review: "+product.ProductName, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageWidth, _ := pdf.GetPageSize()

	pdf.AddPage()
	pdf.SetFont(fontFamily, "B", 16)
	pdf.Text(marginLeft, 20, tr("Product Review: "+product.ProductName))

	pdf.SetFont(fontFamily, "", 12)
	pdf.Text(marginLeft, 30, tr("Category: "+product.Category))
	pdf.Text(marginLeft, 37, tr("Status: "+product.Status))
	if !product.CreatedAt.IsZero() {
		pdf.Text(marginLeft, 44, "Created: "+product.CreatedAt.Format(dateLayout))
	}
	pdf.SetFont(fontFamily, "B", 12)
	pdf.Text(marginLeft, 54, "Questions & Answers:")

	pdf.SetFont(fontFamily, "", 12)
	y := 64.0
	for i, q := range product.Questions {
		answer := q.Answer
		if strings.TrimSpace(answer) == "" {
			answer = "-"
		}
		questionLines := wrap(pdf, tr, fmt.Sprintf("%d. %s", i+1, q.Question), pageWidth-marginLeft-marginRight)
		answerLines := wrap(pdf, tr, "Answer: "+answer, pageWidth-answerIndent-marginRight)

		height := float64(len(questionLines)+len(answerLines))*lineHeight + blockGap
		if y+height > pageBottom && y > pageTop {
			pdf.AddPage()
			y = pageTop
		}
		for _, line := range questionLines {
			y = writeLine(pdf, marginLeft, y, line)
		}
		for _, line := range answerLines {
			y = writeLine(pdf, answerIndent, y, line)
		}
		y += blockGap
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("report: render pdf: %w", err)
	}
	return &Document{
		FileName: FileName(product.ProductName),
		Pages:    pdf.PageCount(),
		Bytes:    buf.Bytes(),
	}, nil
}

// wrap breaks text into translated lines no wider than width. Words wider than a
// line are split by rune.
func wrap(pdf *fpdf.Fpdf, tr func(string) string, text string, width float64) []string {
	fits := func(s string) bool { return pdf.GetStringWidth(tr(s)) <= width }

	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if fits(candidate) {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, tr(current))
			current = ""
		}
		for !fits(word) && len([]rune(word)) > 1 {
			runes := []rune(word)
			cut := len(runes) - 1
			for cut > 1 && !fits(string(runes[:cut])) {
				cut--
			}
			lines = append(lines, tr(string(runes[:cut])))
			word = string(runes[cut:])
		}
		current = word
	}
	if current != "" || len(lines) == 0 {
		lines = append(lines, tr(current))
	}
	return lines
}

// writeLine prints one line, continuing on a new page if a single block is taller than a page.
func writeLine(pdf *fpdf.Fpdf, x, y float64, line string) float64 {
	if y > pageBottom {
		pdf.AddPage()
		y = pageTop
	}
	pdf.Text(x, y, line)
	return y + lineHeight
}
