package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Step is the position of a product in the editing workflow.
type Step string

const (
	StepBasicInfo       Step = "basic-info"
	StepQuestionsLoaded Step = "questions-loaded"
	StepReviewing       Step = "reviewing"
	StepDone            Step = "done"
)

// DefaultAutosaveDelay is the quiet period after the last edit before answers are saved.
const DefaultAutosaveDelay = time.Second

const saveTimeout = 15 * time.Second

var (
	// ErrWrongStep is returned when an action does not fit the current step.
	ErrWrongStep = errors.New("action not allowed in current step")
	// ErrMissingFields is returned when basic info is incomplete.
	ErrMissingFields = errors.New("product name and category are required")
	// ErrAnswerIndex is returned for an answer index outside the question list.
	ErrAnswerIndex = errors.New("answer index out of range")
)

// ProductAPI is the part of the REST client the workflow needs.
type ProductAPI interface {
	CreateProduct(ctx context.Context, productName, category string) (*Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	UpdateAnswers(ctx context.Context, id string, answers []string) (*Product, error)
	DownloadReport(ctx context.Context, id string) (*Report, error)
}

// WorkflowOptions tunes a Workflow.
type WorkflowOptions struct {
	// AutosaveDelay defaults to DefaultAutosaveDelay.
	AutosaveDelay time.Duration
	// OnError receives autosave failures.
	OnError func(error)
}

// Workflow walks one product from basic info to an exported report.
type Workflow struct {
	mu       sync.Mutex
	api      ProductAPI
	step     Step
	product  *Product
	answers  []string
	closed   bool
	autosave *Debouncer
	onError  func(error)

	// saveMu orders writes: a save holds it across the API call, so a later
	// save always reaches the server after an earlier one.
	saveMu sync.Mutex
}

// errAutosaveSkipped means the workflow left the question step before the
// autosave got its turn.
var errAutosaveSkipped = errors.New("autosave skipped")

// NewWorkflow starts a workflow for a new product.
func NewWorkflow(api ProductAPI, opts WorkflowOptions) *Workflow {
	delay := opts.AutosaveDelay
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	return &Workflow{
		api:      api,
		step:     StepBasicInfo,
		autosave: NewDebouncer(delay),
		onError:  opts.OnError,
	}
}

// ResumeWorkflow loads an existing product and continues at the question step.
func ResumeWorkflow(ctx context.Context, api ProductAPI, id string, opts WorkflowOptions) (*Workflow, error) {
	product, err := api.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	w := NewWorkflow(api, opts)
	w.load(product)
	return w, nil
}

// Step returns the current step.
func (w *Workflow) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Product returns a copy of the product as last seen from the server.
func (w *Workflow) Product() *Product {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.product == nil {
		return nil
	}
	p := *w.product
	p.Questions = append([]Question(nil), w.product.Questions...)
	return &p
}

// Answers returns the local answer set.
func (w *Workflow) Answers() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.answers...)
}

// SubmitBasicInfo creates the product and loads its questions. The returned
// product carries the server warning when fallback questions were used.
func (w *Workflow) SubmitBasicInfo(ctx context.Context, productName, category string) (*Product, error) {
	productName = strings.TrimSpace(productName)
	category = strings.TrimSpace(category)
	if productName == "" || category == "" {
		return nil, ErrMissingFields
	}
	if w.Step() != StepBasicInfo {
		return nil, ErrWrongStep
	}
	product, err := w.api.CreateProduct(ctx, productName, category)
	if err != nil {
		return nil, err
	}
	if product.Warning != "" {
		log.WithField("product", product.ID).Warn(product.Warning)
	}
	w.load(product)
	return w.Product(), nil
}

func (w *Workflow) load(product *Product) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.product = product
	w.answers = make([]string, len(product.Questions))
	for i, q := range product.Questions {
		w.answers[i] = q.Answer
	}
	w.step = StepQuestionsLoaded
}

// SetAnswer records an answer locally and schedules an autosave of the full set.
func (w *Workflow) SetAnswer(index int, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.step != StepQuestionsLoaded {
		return ErrWrongStep
	}
	if index < 0 || index >= len(w.answers) {
		return ErrAnswerIndex
	}
	w.answers[index] = text
	w.autosave.Trigger(w.autosaveNow)
	return nil
}

// AutosavePending reports whether an autosave is scheduled.
func (w *Workflow) AutosavePending() bool {
	return w.autosave.Pending()
}

func (w *Workflow) autosaveNow() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if _, err := w.save(ctx, false); err != nil {
		if errors.Is(err, errAutosaveSkipped) {
			return
		}
		log.WithError(err).Warn("autosave failed")
		if w.onError != nil {
			w.onError(err)
		}
	}
}

// save writes the full answer set. A final save moves the workflow to review
// while still holding saveMu, so an autosave queued behind it is skipped.
func (w *Workflow) save(ctx context.Context, final bool) (*Product, error) {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	w.mu.Lock()
	if w.product == nil || w.step != StepQuestionsLoaded {
		w.mu.Unlock()
		if final {
			return nil, ErrWrongStep
		}
		return nil, errAutosaveSkipped
	}
	if !final && w.closed {
		w.mu.Unlock()
		return nil, errAutosaveSkipped
	}
	id := w.product.ID
	answers := append([]string(nil), w.answers...)
	w.mu.Unlock()

	product, err := w.api.UpdateAnswers(ctx, id, answers)
	if err != nil {
		return nil, fmt.Errorf("save answers: %w", err)
	}
	w.mu.Lock()
	w.product = product
	if final {
		w.step = StepReviewing
	}
	w.mu.Unlock()
	return product, nil
}

// SubmitAnswers cancels any pending autosave, waits for one already in
// flight, saves immediately and moves to review.
func (w *Workflow) SubmitAnswers(ctx context.Context) (*Product, error) {
	if w.Step() != StepQuestionsLoaded {
		return nil, ErrWrongStep
	}
	w.autosave.Cancel()
	return w.save(ctx, true)
}

// Export downloads the report into dir and finishes the workflow. It returns the written path.
func (w *Workflow) Export(ctx context.Context, dir string) (string, error) {
	w.mu.Lock()
	if w.step != StepReviewing {
		w.mu.Unlock()
		return "", ErrWrongStep
	}
	id := w.product.ID
	name := w.product.ProductName
	w.mu.Unlock()

	doc, err := w.api.DownloadReport(ctx, id)
	if err != nil {
		return "", err
	}
	fileName := filepath.Base(doc.FileName)
	if fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		fileName = strings.NewReplacer("/", "_", `\`, "_").Replace(name) + "_Review.pdf"
	}
	if errDir := os.MkdirAll(dir, 0o755); errDir != nil {
		return "", fmt.Errorf("create export dir: %w", errDir)
	}
	path := filepath.Join(dir, fileName)
	if errWrite := os.WriteFile(path, doc.Bytes, 0o644); errWrite != nil {
		return "", fmt.Errorf("write report: %w", errWrite)
	}

	w.mu.Lock()
	w.step = StepDone
	w.mu.Unlock()
	return path, nil
}

// Close drops any pending autosave. Later edits are rejected.
func (w *Workflow) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.autosave.Cancel()
}
