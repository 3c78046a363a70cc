package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clearlabel/transparency/internal/client"
	"github.com/stretchr/testify/require"
)

func init() {
	isTerminal = func(int) bool { return false }
}

type fakeBackend struct {
	mu      sync.Mutex
	answers []string
	tokens  []string
}

func (b *fakeBackend) handler(t *testing.T) http.Handler {
	product := func(answers []string) map[string]any {
		questions := make([]map[string]string, 8)
		for i := range questions {
			a := ""
			if i < len(answers) {
				a = answers[i]
			}
			questions[i] = map[string]string{"question": "Question?", "answer": a}
		}
		return map[string]any{"id": "p1", "productName": "Desk Lamp", "category": "home", "status": "Active", "questions": questions}
	}
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/signup", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"token": "signup-tok", "user": map[string]any{"id": "u1", "email": "ada@example.com"}})
	})
	mux.HandleFunc("POST /api/otp/verify-otp", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "ada@example.com" || body["otp"] != "123456" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid OTP"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "OTP verified successfully"})
	})
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"token": "tok", "user": map[string]any{"id": "u1", "fullname": "Ada", "email": "ada@example.com"}})
	})
	mux.HandleFunc("POST /api/products/basic", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.tokens = append(b.tokens, r.Header.Get("Authorization"))
		b.mu.Unlock()
		out := product(nil)
		out["warning"] = "AI service unavailable, using fallback questions"
		writeJSON(w, http.StatusCreated, out)
	})
	mux.HandleFunc("PUT /api/products/p1", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Answers []string `json:"answers"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		b.mu.Lock()
		b.answers = body.Answers
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"message": "Answers saved successfully!", "product": product(body.Answers)})
	})
	mux.HandleFunc("GET /api/products/p1/pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="Desk Lamp_Review.pdf"`)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, "%PDF-fake")
	})
	mux.HandleFunc("GET /api/products", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []any{product([]string{"Yes"})})
	})
	return mux
}

func newTestApp(t *testing.T, input string) (*App, *bytes.Buffer, *fakeBackend, Config) {
	t.Helper()
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := Config{
		ServerURL:   srv.URL,
		SessionPath: filepath.Join(dir, "session.json"),
		ExportDir:   filepath.Join(dir, "reports"),
		Workflow:    client.WorkflowOptions{AutosaveDelay: time.Hour},
	}
	out := &bytes.Buffer{}
	app, err := NewApp(cfg, strings.NewReader(input), out)
	require.NoError(t, err)
	return app, out, backend, cfg
}

func TestApp_FullFlow(t *testing.T) {
	input := strings.Join([]string{
		"new",
		"signup", "Ada", "ada@example.com", "secret1",
		"new",
		"verify", "123456",
		"login", "ada@example.com", "secret1",
		"new", "Desk Lamp", "home",
		"Yes", "No", "", "", "", "", "", "",
		"y",
		"list",
		"exit",
	}, "\n") + "\n"
	app, out, backend, cfg := newTestApp(t, input)

	require.NoError(t, app.Run(context.Background()))
	text := out.String()

	require.Contains(t, text, "please log in first")
	require.Contains(t, text, "verify your email first")
	require.Contains(t, text, "OTP verified successfully. Please log in.")
	require.Contains(t, text, "Welcome, Ada!")
	require.Contains(t, text, "Note: AI service unavailable")
	require.Contains(t, text, "Not answered")
	require.Contains(t, text, "1/8")
	require.Contains(t, text, "Bye!")

	require.Equal(t, []string{"Yes", "No", "", "", "", "", "", ""}, backend.answers)
	require.Equal(t, []string{"Bearer tok"}, backend.tokens)

	raw, err := os.ReadFile(filepath.Join(cfg.ExportDir, "Desk Lamp_Review.pdf"))
	require.NoError(t, err)
	require.Equal(t, "%PDF-fake", string(raw))

	session, err := client.LoadSession(cfg.SessionPath)
	require.NoError(t, err)
	require.Equal(t, client.StateAuthenticated, session.State())
}

func TestApp_UnknownCommandAndEOF(t *testing.T) {
	app, out, _, _ := newTestApp(t, "bogus\nhelp")

	require.NoError(t, app.Run(context.Background()))
	require.Contains(t, out.String(), "Unknown command: bogus")
	require.Contains(t, out.String(), "Products:")
}

func TestApp_VerifyRejectsWrongCode(t *testing.T) {
	app, out, _, cfg := newTestApp(t, "signup\nAda\nada@example.com\nsecret1\nverify\n000000\nexit\n")

	require.NoError(t, app.Run(context.Background()))
	require.Contains(t, out.String(), "Error: api error 400: Invalid OTP")

	session, err := client.LoadSession(cfg.SessionPath)
	require.NoError(t, err)
	require.Equal(t, client.StatePendingVerification, session.State())
}
