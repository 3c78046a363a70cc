// Package cli is the interactive terminal front end of the transparency client.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/clearlabel/transparency/internal/client"
)

// Config configures the terminal client.
type Config struct {
	ServerURL   string
	SessionPath string
	ExportDir   string
	Workflow    client.WorkflowOptions
}

// App holds the REST client, the persisted session and the terminal streams.
type App struct {
	api       *client.Client
	session   *client.Session
	reader    *bufio.Reader
	out       io.Writer
	exportDir string
	workflow  client.WorkflowOptions
}

// NewApp loads the session and prepares the REST client.
func NewApp(cfg Config, in io.Reader, out io.Writer) (*App, error) {
	session, err := client.LoadSession(cfg.SessionPath)
	if err != nil {
		return nil, err
	}
	api := client.New(cfg.ServerURL, nil)
	api.SetToken(session.Token())

	exportDir := cfg.ExportDir
	if exportDir == "" {
		exportDir = "."
	}
	wf := cfg.Workflow
	if wf.OnError == nil {
		wf.OnError = func(err error) {
			_, _ = fmt.Fprintf(out, "autosave failed: %v\n", err)
		}
	}
	return &App{
		api:       api,
		session:   session,
		reader:    bufio.NewReader(in),
		out:       out,
		exportDir: exportDir,
		workflow:  wf,
	}, nil
}

// Status describes the session for the prompt.
func (a *App) Status() string {
	switch a.session.State() {
	case client.StateAuthenticated:
		if u := a.session.User(); u != nil {
			return u.Email
		}
		return "logged in"
	case client.StatePendingVerification:
		return "verify " + a.session.PendingEmail()
	default:
		return "not logged in"
	}
}

func (a *App) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

// guard applies the session gate for route and explains a redirect.
func (a *App) guard(route client.Route) error {
	switch a.session.Gate(route) {
	case route:
		return nil
	case client.RouteVerifyOTP:
		return errors.New("verify your email first (verify)")
	default:
		return errors.New("please log in first (login)")
	}
}

// Signup creates an account and waits for OTP verification.
func (a *App) Signup(ctx context.Context) error {
	fullname, err := readLine(a.reader, a.out, "Full name")
	if err != nil {
		return err
	}
	email, err := readLine(a.reader, a.out, "Email")
	if err != nil {
		return err
	}
	password, err := readSecret(a.reader, a.out, "Password")
	if err != nil {
		return err
	}
	if _, errSignup := a.api.Signup(ctx, fullname, email, password); errSignup != nil {
		return errSignup
	}
	if errSession := a.session.SignedUp(email); errSession != nil {
		return errSession
	}
	a.api.SetToken("")
	a.printf("Account created. An OTP was sent to %s, run 'verify' to confirm it.\n", email)
	return nil
}

// Verify confirms the emailed OTP.
func (a *App) Verify(ctx context.Context) error {
	email := a.session.PendingEmail()
	if email == "" {
		var err error
		if email, err = readLine(a.reader, a.out, "Email"); err != nil {
			return err
		}
	}
	code, err := readLine(a.reader, a.out, "OTP")
	if err != nil {
		return err
	}
	message, err := a.api.VerifyOTP(ctx, email, code)
	if err != nil {
		return err
	}
	if errSession := a.session.Verified(); errSession != nil {
		return errSession
	}
	a.printf("%s. Please log in.\n", message)
	return nil
}

// Resend mails a fresh OTP.
func (a *App) Resend(ctx context.Context) error {
	email := a.session.PendingEmail()
	if email == "" {
		var err error
		if email, err = readLine(a.reader, a.out, "Email"); err != nil {
			return err
		}
	}
	message, err := a.api.SendOTP(ctx, email)
	if err != nil {
		return err
	}
	a.printf("%s\n", message)
	return nil
}

// Login starts an authenticated session.
func (a *App) Login(ctx context.Context) error {
	email, err := readLine(a.reader, a.out, "Email")
	if err != nil {
		return err
	}
	password, err := readSecret(a.reader, a.out, "Password")
	if err != nil {
		return err
	}
	res, err := a.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if errSession := a.session.LoggedIn(res.Token, res.User); errSession != nil {
		return errSession
	}
	a.api.SetToken(res.Token)
	a.printf("Welcome, %s!\n", res.User.Fullname)
	return nil
}

// Logout forgets the session.
func (a *App) Logout(context.Context) error {
	a.api.SetToken("")
	if err := a.session.Logout(); err != nil {
		return err
	}
	a.printf("Logged out.\n")
	return nil
}

// Me shows the current user.
func (a *App) Me(ctx context.Context) error {
	if err := a.guard(client.RouteDashboard); err != nil {
		return err
	}
	user, err := a.api.Me(ctx)
	if err != nil {
		return err
	}
	a.printf("%s <%s> verified=%t\n", user.Fullname, user.Email, user.IsVerified)
	return nil
}

// List prints products, optionally filtered by category.
func (a *App) List(ctx context.Context, category string) error {
	if err := a.guard(client.RouteView); err != nil {
		return err
	}
	products, err := a.api.ListProducts(ctx, category, "")
	if err != nil {
		return err
	}
	if len(products) == 0 {
		a.printf("No products yet.\n")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tSTATUS\tANSWERED")
	for _, p := range products {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\n", p.ID, p.ProductName, p.Category, p.Status, answered(p), len(p.Questions))
	}
	return tw.Flush()
}

func answered(p client.Product) int {
	n := 0
	for _, q := range p.Questions {
		if strings.TrimSpace(q.Answer) != "" {
			n++
		}
	}
	return n
}

// Stats prints catalog counters.
func (a *App) Stats(ctx context.Context) error {
	if err := a.guard(client.RouteDashboard); err != nil {
		return err
	}
	stats, err := a.api.Stats(ctx)
	if err != nil {
		return err
	}
	a.printf("Total: %d  Active: %d  This month: %d\n", stats.Total, stats.Active, stats.ThisMonth)
	return nil
}

// New walks a new product through basic info, answers, review and export.
func (a *App) New(ctx context.Context) error {
	if err := a.guard(client.RouteBasic); err != nil {
		return err
	}
	name, err := readLine(a.reader, a.out, "Product name")
	if err != nil {
		return err
	}
	category, err := readLine(a.reader, a.out, "Category")
	if err != nil {
		return err
	}
	wf := client.NewWorkflow(a.api, a.workflow)
	defer wf.Close()
	product, err := wf.SubmitBasicInfo(ctx, name, category)
	if err != nil {
		return err
	}
	if product.Warning != "" {
		a.printf("Note: %s\n", product.Warning)
	}
	return a.answerAndReview(ctx, wf)
}

// Edit resumes answering an existing product.
func (a *App) Edit(ctx context.Context, id string) error {
	if err := a.guard(client.RouteProductDetail); err != nil {
		return err
	}
	if id == "" {
		return errors.New("usage: edit <product-id>")
	}
	wf, err := client.ResumeWorkflow(ctx, a.api, id, a.workflow)
	if err != nil {
		return err
	}
	defer wf.Close()
	return a.answerAndReview(ctx, wf)
}

func (a *App) answerAndReview(ctx context.Context, wf *client.Workflow) error {
	product := wf.Product()
	a.printf("Answer the questions below. Press Enter to keep the current answer.\n")
	for i, q := range product.Questions {
		current := wf.Answers()[i]
		prompt := fmt.Sprintf("%d. %s", i+1, q.Question)
		if current != "" {
			prompt += fmt.Sprintf(" [%s]", current)
		}
		text, err := readLine(a.reader, a.out, prompt)
		if err != nil {
			return err
		}
		if text == "" {
			continue
		}
		if errSet := wf.SetAnswer(i, text); errSet != nil {
			return errSet
		}
	}

	saved, err := wf.SubmitAnswers(ctx)
	if err != nil {
		return err
	}
	a.printf("Answers saved successfully!\n\n%s (%s)\n", saved.ProductName, saved.Category)
	for i, q := range saved.Questions {
		answer := q.Answer
		if answer == "" {
			answer = "Not answered"
		}
		a.printf("%d. %s\n   %s\n", i+1, q.Question, answer)
	}

	confirm, err := readLine(a.reader, a.out, "Export PDF report? (y/N)")
	if err != nil {
		return err
	}
	if !strings.EqualFold(confirm, "y") && !strings.EqualFold(confirm, "yes") {
		return nil
	}
	path, err := wf.Export(ctx, a.exportDir)
	if err != nil {
		return err
	}
	a.printf("Report written to %s\n", path)
	return nil
}

// Export downloads the report of a product.
func (a *App) Export(ctx context.Context, id string) error {
	if err := a.guard(client.RouteView); err != nil {
		return err
	}
	if id == "" {
		return errors.New("usage: export <product-id>")
	}
	doc, err := a.api.DownloadReport(ctx, id)
	if err != nil {
		return err
	}
	name := filepath.Base(doc.FileName)
	if name == "" || name == "." {
		name = id + "_Review.pdf"
	}
	if errDir := os.MkdirAll(a.exportDir, 0o755); errDir != nil {
		return errDir
	}
	path := filepath.Join(a.exportDir, name)
	if errWrite := os.WriteFile(path, doc.Bytes, 0o644); errWrite != nil {
		return errWrite
	}
	a.printf("Report written to %s\n", path)
	return nil
}
