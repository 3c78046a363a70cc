// Package client drives the transparency API from the user side: the REST
// calls, the persisted session, and the per-product editing workflow.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// User is the public user projection.
type User struct {
	ID         string `json:"id"`
	Fullname   string `json:"fullname"`
	Email      string `json:"email"`
	IsVerified bool   `json:"isVerified"`
}

// Question is one question/answer pair of a product.
type Question struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Product mirrors the server's product projection.
type Product struct {
	ID          string     `json:"id"`
	ProductName string     `json:"productName"`
	Category    string     `json:"category"`
	Questions   []Question `json:"questions"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Warning     string     `json:"warning,omitempty"`
}

// Stats are the catalog counters.
type Stats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	ThisMonth int64 `json:"thisMonth"`
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Report is a downloaded PDF.
type Report struct {
	FileName string
	Bytes    []byte
}

// Client is a REST client for the transparency API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New constructs a Client for baseURL. httpClient may be nil.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"), http: httpClient}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) { c.token = token }

// Signup creates an account; the server mails an OTP to the address.
func (c *Client) Signup(ctx context.Context, fullname, email, password string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"fullname": fullname, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the user behind the current token.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// VerifyOTP confirms the emailed code.
func (c *Client) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	return c.message(ctx, "/api/otp/verify-otp", map[string]string{"email": email, "otp": code})
}

// SendOTP asks the server to mail a fresh code.
func (c *Client) SendOTP(ctx context.Context, email string) (string, error) {
	return c.message(ctx, "/api/otp/send-otp", map[string]string{"email": email})
}

func (c *Client) message(ctx context.Context, path string, body any) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// CreateProduct submits basic product info and returns the product with its questions.
func (c *Client) CreateProduct(ctx context.Context, productName, category string) (*Product, error) {
	var out Product
	body := map[string]string{"productName": productName, "category": category}
	if err := c.do(ctx, http.MethodPost, "/api/products/basic", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProducts returns products, newest first.
func (c *Client) ListProducts(ctx context.Context, category, search string) ([]Product, error) {
	query := url.Values{}
	if category != "" {
		query.Set("category", category)
	}
	if search != "" {
		query.Set("search", search)
	}
	path := "/api/products"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	out := make([]Product, 0)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns catalog counters.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.do(ctx, http.MethodGet, "/api/products/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProduct fetches one product.
func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAnswers replaces the answers of a product by position.
func (c *Client) UpdateAnswers(ctx context.Context, id string, answers []string) (*Product, error) {
	if answers == nil {
		answers = []string{}
	}
	var out struct {
		Product Product `json:"product"`
	}
	body := map[string][]string{"answers": answers}
	if err := c.do(ctx, http.MethodPut, "/api/products/"+url.PathEscape(id), body, &out); err != nil {
		return nil, err
	}
	return &out.Product, nil
}

// DownloadReport fetches the rendered PDF of a product.
func (c *Client) DownloadReport(ctx context.Context, id string) (*Report, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id)+"/pdf", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/pdf")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download report: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(resp.StatusCode, data)
	}
	return &Report{FileName: attachmentName(resp.Header.Get("Content-Disposition")), Bytes: data}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if errDecode := json.Unmarshal(data, out); errDecode != nil {
		return fmt.Errorf("decode response: %w", errDecode)
	}
	return nil
}

// apiError picks the human readable text out of either error body shape.
func apiError(status int, data []byte) *APIError {
	message := ""
	if gjson.ValidBytes(data) {
		parsed := gjson.ParseBytes(data)
		message = parsed.Get("message").String()
		if message == "" {
			message = parsed.Get("error").String()
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &APIError{Status: status, Message: message}
}

func attachmentName(disposition string) string {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
