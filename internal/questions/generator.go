// Package questions produces the clarifying questions attached to a new product.
// Questions come from Gemini when it answers with a usable JSON array; otherwise
// a per-category fallback bank is used.
package questions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clearlabel/transparency/internal/config"
	"github.com/clearlabel/transparency/internal/models"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Count is the number of questions every product carries.
const Count = models.QuestionsPerProduct

// UnavailableWarning is attached to products created while the AI service was unreachable.
const UnavailableWarning = "Created with fallback questions due to AI service unavailability"

const (
	defaultTimeout   = 20 * time.Second
	maxOutputTokens  = 500
	temperature      = 0.7
	maxResponseBytes = 1 << 20
)

// Source records where a question set came from.
type Source string

const (
	SourceAI                  Source = "ai"
	SourceFallbackMalformed   Source = "fallback-malformed"
	SourceFallbackUnavailable Source = "fallback-unavailable"
)

// Outcome is the result of a generation attempt. It always carries Count questions.
type Outcome struct {
	Questions []string
	Source    Source
	Warning   string
}

// Degraded reports whether the upstream service could not be used at all.
func (o Outcome) Degraded() bool {
	return o.Source == SourceFallbackUnavailable
}

// Generator produces questions for a product. It never fails.
type Generator interface {
	Generate(ctx context.Context, productName, category string) Outcome
}

var (
	errUnavailable = errors.New("questions: ai service unavailable")
	errMalformed   = errors.New("questions: malformed ai response")
)

// GeminiGenerator asks Gemini's generateContent endpoint for questions.
type GeminiGenerator struct {
	apiKey   string
	model    string
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

// NewGeminiGenerator constructs a generator from config.
func NewGeminiGenerator(cfg config.GeminiConfig) *GeminiGenerator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &GeminiGenerator{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		model:    strings.TrimSpace(cfg.Model),
		endpoint: strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
	}
}

// Generate returns Count questions for the product, falling back to the category bank
// when Gemini is unreachable or answers with something other than a JSON array.
func (g *GeminiGenerator) Generate(ctx context.Context, productName, category string) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	text, err := g.complete(ctx, buildPrompt(productName, category))
	if err != nil {
		log.WithError(err).WithField("category", category).Warn("questions: using fallback questions")
		return Outcome{
			Questions: Normalize(Fallback(category)),
			Source:    SourceFallbackUnavailable,
			Warning:   UnavailableWarning,
		}
	}

	parsed, err := ParseQuestions(text)
	if err != nil {
		log.WithError(err).WithField("category", category).Warn("questions: ai returned invalid JSON, using fallback questions")
		return Outcome{
			Questions: Normalize(Fallback(category)),
			Source:    SourceFallbackMalformed,
		}
	}
	return Outcome{Questions: Normalize(parsed), Source: SourceAI}
}

func (g *GeminiGenerator) complete(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.apiKey == "" {
		return "", fmt.Errorf("%w: missing api key", errUnavailable)
	}
	if g.endpoint == "" || g.model == "" {
		return "", fmt.Errorf("%w: endpoint or model not configured", errUnavailable)
	}
	client := g.client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	timeout := g.timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			MaxOutputTokens: maxOutputTokens,
			Temperature:     temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", errUnavailable, err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.endpoint, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", errUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %v", errUnavailable, redactKey(err, g.apiKey))
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("questions: close response body failed")
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: unexpected status %d", errUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", errUnavailable, err)
	}

	text := gjson.GetBytes(body, "candidates.0.content.parts.0.text")
	if text.Type != gjson.String {
		return "", fmt.Errorf("%w: response has no candidate text", errUnavailable)
	}
	return text.Str, nil
}

// redactKey keeps the API key out of logged transport errors, which quote the request URL.
func redactKey(err error, key string) string {
	msg := err.Error()
	if key == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, url.QueryEscape(key), "REDACTED")
	return strings.ReplaceAll(msg, key, "REDACTED")
}

// ParseQuestions extracts question strings from model output. The text may be wrapped
// in a markdown code fence. Array elements are either objects with a string
// "question" field or bare strings; anything else is skipped.
func ParseQuestions(text string) ([]string, error) {
	raw := StripFence(text)
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: not valid JSON", errMalformed)
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("%w: response is not an array", errMalformed)
	}

	out := make([]string, 0, Count)
	parsed.ForEach(func(_, item gjson.Result) bool {
		var q string
		switch {
		case item.IsObject():
			field := item.Get("question")
			if field.Type == gjson.String {
				q = field.Str
			}
		case item.Type == gjson.String:
			q = item.Str
		}
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
		return true
	})
	return out, nil
}

// StripFence removes a surrounding ```json or ``` markdown fence.
func StripFence(text string) string {
	raw := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(raw, "```json"):
		raw = strings.TrimPrefix(raw, "```json")
	case strings.HasPrefix(raw, "```"):
		raw = strings.TrimPrefix(raw, "```")
	default:
		return raw
	}
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}

func buildPrompt(productName, category string) string {
	return fmt.Sprintf(`Generate 8 unique, clear, and specific questions that a customer might ask about a product.
The product details are:
- Name: %q
- Category: %q

Format the output as a JSON array of objects, each object containing a "question" field.
Only output valid JSON without any additional text or formatting.

Example format:
[
  {"question": "What are the dimensions of this product?"},
  {"question": "What materials is it made from?"}
]`, productName, category)
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}
