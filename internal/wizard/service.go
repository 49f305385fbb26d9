package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"cehpoint/project-portal/project-portal-backend/internal/auth"
	"cehpoint/project-portal/project-portal-backend/internal/docs"
	"cehpoint/project-portal/project-portal-backend/internal/projects"
	"cehpoint/project-portal/project-portal-backend/internal/quotation"
	"cehpoint/project-portal/project-portal-backend/pkg/metrics"
	"cehpoint/project-portal/project-portal-backend/pkg/pdf"
	"cehpoint/project-portal/project-portal-backend/pkg/storage"
	"cehpoint/project-portal/project-portal-backend/pkg/workflows"
)

const (
	submitScope = "submit"

	// DefaultStaleUpload is how long a draft may stay uploading before it is
	// treated as idle again
	DefaultStaleUpload = 10 * time.Minute

	detachedTimeout = 10 * time.Second
)

var (
	ErrNoQuotation      = errors.New("no quotation has been generated yet")
	ErrNoDocumentation  = errors.New("no documentation has been provided yet")
	ErrSubmissionFailed = errors.New("failed to submit project")
	ErrUploadFailed     = errors.New("failed to store document")
	ErrDocumentMissing  = errors.New("hosted document is unavailable")
)

// ValidationError carries the field messages of a failed validation
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// DocumentationService produces documentation for the third step
type DocumentationService interface {
	GenerateFromTemplate(name, overview string, areas []string) (string, error)
	Improve(ctx context.Context, owner, fileName string, content []byte) (*docs.Improved, error)
}

// ProjectCreator persists submitted projects
type ProjectCreator interface {
	Create(ctx context.Context, project *projects.Project) error
}

// SubmitGuard rejects duplicate submissions across instances
type SubmitGuard interface {
	AcquireOnce(ctx context.Context, scope, id string) bool
	Release(ctx context.Context, scope, id string)
}

// ProfileSource looks up the signed-in user for prefilling the client fields
type ProfileSource interface {
	Me(ctx context.Context, uid string) (*auth.User, error)
}

// Dependencies wires a Service. Ledger, Guard and Profiles are optional.
// StaleUploadAfter defaults to DefaultStaleUpload.
type Dependencies struct {
	Drafts        Repository
	Quotations    *quotation.Generator
	Documentation DocumentationService
	Files         docs.FileHost
	Extractor     docs.TextExtractor
	Renderer      pdf.Generator
	Projects      ProjectCreator
	Ledger        quotation.Ledger
	Guard         SubmitGuard
	Profiles      ProfileSource
	Logger        *zap.Logger

	StaleUploadAfter time.Duration
}

// Service runs the wizard for each user on top of persisted drafts
type Service struct {
	drafts     Repository
	quotations *quotation.Generator
	docs       DocumentationService
	files      docs.FileHost
	extractor  docs.TextExtractor
	renderer   pdf.Generator
	projects   ProjectCreator
	ledger     quotation.Ledger
	guard      SubmitGuard
	profiles   ProfileSource
	logger     *zap.Logger
	now        func() time.Time

	staleUpload time.Duration

	// serialises requests of the same user within this instance; an entry
	// lives only while a request of that user holds or waits for it
	locksMu sync.Mutex
	locks   map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Ledger == nil {
		deps.Ledger = quotation.NewNoopLedger()
	}
	if deps.Extractor == nil {
		deps.Extractor = docs.NewExtractor()
	}
	if deps.StaleUploadAfter <= 0 {
		deps.StaleUploadAfter = DefaultStaleUpload
	}
	return &Service{
		drafts:     deps.Drafts,
		quotations: deps.Quotations,
		docs:       deps.Documentation,
		files:      deps.Files,
		extractor:  deps.Extractor,
		renderer:   deps.Renderer,
		projects:   deps.Projects,
		ledger:     deps.Ledger,
		guard:      deps.Guard,
		profiles:   deps.Profiles,
		logger:     deps.Logger,
		now:        time.Now,

		staleUpload: deps.StaleUploadAfter,
		locks:       make(map[string]*userLock),
	}
}

// ============================================================================
// Draft access
// ============================================================================

func (s *Service) lock(userID string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, userID)
		}
		s.locksMu.Unlock()
	}
}

// load returns the user's draft, starting a fresh one when none is stored
func (s *Service) load(ctx context.Context, userID string) (*Store, error) {
	store := NewStore(s.quotations)

	snap, err := s.drafts.Load(ctx, userID)
	switch {
	case errors.Is(err, ErrDraftNotFound):
		s.prefill(ctx, store, userID)
		return store, nil
	case err != nil:
		return nil, err
	}

	if err := store.Restore(*snap); err != nil {
		s.logger.Warn("Discarding unreadable wizard draft", zap.String("user_id", userID), zap.Error(err))
		store = NewStore(s.quotations)
		s.prefill(ctx, store, userID)
		return store, nil
	}

	if store.ExpireUpload(s.now(), s.staleUpload) {
		s.logger.Warn("Releasing stale wizard submission",
			zap.String("user_id", userID),
			zap.Duration("stale_after", s.staleUpload),
		)
	}
	return store, nil
}

func (s *Service) prefill(ctx context.Context, store *Store, userID string) {
	if s.profiles == nil {
		return
	}
	user, err := s.profiles.Me(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to load profile for wizard", zap.String("user_id", userID), zap.Error(err))
		return
	}
	store.SyncUserData(&Profile{Name: user.Name, Email: user.Email, Phone: user.Phone})
}

func (s *Service) save(ctx context.Context, userID string, store *Store) error {
	if err := s.drafts.Save(ctx, userID, store.Snapshot()); err != nil {
		s.logger.Error("Failed to save wizard draft", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

// edit loads the draft, applies fn and saves the result. Validation errors
// returned by fn are saved along with the draft.
func (s *Service) edit(ctx context.Context, userID string, fn func(*Store) error) (Snapshot, error) {
	unlock := s.lock(userID)
	defer unlock()

	store, err := s.load(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := editable(store); err != nil {
		return store.Snapshot(), err
	}

	fnErr := fn(store)
	var vErr *ValidationError
	if fnErr != nil && !errors.As(fnErr, &vErr) {
		return store.Snapshot(), fnErr
	}

	if err := s.save(ctx, userID, store); err != nil {
		return Snapshot{}, err
	}
	return store.Snapshot(), fnErr
}

func editable(store *Store) error {
	switch store.SubmissionState() {
	case workflows.SubmissionUploading:
		return ErrSubmissionInProgress
	case workflows.SubmissionUploaded:
		return ErrAlreadySubmitted
	}
	return nil
}

// ============================================================================
// Form operations
// ============================================================================

// Get returns the current draft
func (s *Service) Get(ctx context.Context, userID string) (Snapshot, error) {
	unlock := s.lock(userID)
	defer unlock()

	store, err := s.load(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	return store.Snapshot(), nil
}

// Update merges patch into the form
func (s *Service) Update(ctx context.Context, userID string, patch FormPatch) (Snapshot, error) {
	return s.edit(ctx, userID, func(store *Store) error {
		store.UpdateFormData(patch)
		return nil
	})
}

// Validate checks the current step and records its errors
func (s *Service) Validate(ctx context.Context, userID string) (Snapshot, error) {
	return s.edit(ctx, userID, func(store *Store) error {
		if !store.ValidateCurrentStep(ctx) {
			return &ValidationError{Fields: store.Errors()}
		}
		return nil
	})
}

// Next validates the current step and advances. Entering the documentation
// step issues the quotation.
func (s *Service) Next(ctx context.Context, userID string) (Snapshot, error) {
	return s.edit(ctx, userID, func(store *Store) error {
		if !store.ValidateCurrentStep(ctx) {
			return &ValidationError{Fields: store.Errors()}
		}
		store.NextStep()
		if store.Step() == StepDocumentation {
			if _, err := store.GenerateQuotation(s.now()); err != nil {
				return err
			}
		}
		return nil
	})
}

// Prev goes back one step
func (s *Service) Prev(ctx context.Context, userID string) (Snapshot, error) {
	return s.edit(ctx, userID, func(store *Store) error {
		store.PrevStep()
		return nil
	})
}

// Quotation re-issues the quotation from the current team
func (s *Service) Quotation(ctx context.Context, userID string) (Snapshot, error) {
	return s.edit(ctx, userID, func(store *Store) error {
		return store.RegenerateQuotation(s.now())
	})
}

// Reset discards the draft, including a submitted one
func (s *Service) Reset(ctx context.Context, userID string) (Snapshot, error) {
	unlock := s.lock(userID)
	defer unlock()

	store, err := s.load(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if store.SubmissionState() == workflows.SubmissionUploading {
		return store.Snapshot(), ErrSubmissionInProgress
	}

	store.ResetForm()
	s.prefill(ctx, store, userID)
	if err := s.save(ctx, userID, store); err != nil {
		return Snapshot{}, err
	}
	return store.Snapshot(), nil
}

// ============================================================================
// Documentation
// ============================================================================

// GenerateDocumentation fills the documentation from the project details
func (s *Service) GenerateDocumentation(ctx context.Context, userID string) (Snapshot, error) {
	return s.edit(ctx, userID, func(store *Store) error {
		f := store.FormData()
		html, err := s.docs.GenerateFromTemplate(f.ProjectName, f.ProjectOverview, f.DevelopmentAreas)
		if err != nil {
			return err
		}
		store.SetDocumentation(GeneratedDocumentation(html))
		return nil
	})
}

// UploadDocumentation hosts a client document and keeps its text
func (s *Service) UploadDocumentation(ctx context.Context, userID, fileName string, content []byte) (Snapshot, error) {
	if len(content) == 0 {
		return Snapshot{}, docs.ErrEmptyUpload
	}
	return s.edit(ctx, userID, func(store *Store) error {
		text, err := s.extractor.Extract(content)
		if err != nil {
			return err
		}
		file, err := s.files.Put(ctx, userID, storage.KindUpload, fileName, content)
		if err != nil {
			s.logger.Error("Failed to host documentation upload", zap.String("user_id", userID), zap.Error(err))
			return fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}
		store.SetDocumentation(UploadedDocumentation(file, text))
		return nil
	})
}

// ImproveDocumentation rewrites an uploaded document with the text model.
// On failure the previous documentation is kept.
func (s *Service) ImproveDocumentation(ctx context.Context, userID, fileName string, content []byte) (Snapshot, error) {
	if len(content) == 0 {
		return Snapshot{}, docs.ErrEmptyUpload
	}
	return s.edit(ctx, userID, func(store *Store) error {
		improved, err := s.docs.Improve(ctx, userID, fileName, content)
		if err != nil {
			return err
		}
		store.SetDocumentation(ImprovedDocumentation(improved.HTML, improved.Source))
		return nil
	})
}

// ============================================================================
// Export
// ============================================================================

// ExportQuotation renders the current quotation as a PDF
func (s *Service) ExportQuotation(ctx context.Context, userID string) ([]byte, error) {
	snap, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !snap.FormData.HasQuotation() {
		return nil, ErrNoQuotation
	}
	return s.renderer.Render(snap.FormData.QuotationPDF)
}

// DocumentExport is either a rendered PDF or a hosted upload streamed from
// storage. The caller closes Body when it is set.
type DocumentExport struct {
	PDF         []byte
	Body        io.ReadCloser
	ContentType string
	FileName    string
}

// ExportDocumentation renders generated or improved documentation as a PDF.
// Uploaded documents are streamed back as they were hosted.
func (s *Service) ExportDocumentation(ctx context.Context, userID string) (*DocumentExport, error) {
	snap, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	f := snap.FormData
	doc := f.Documentation
	if doc.IsEmpty() {
		return nil, ErrNoDocumentation
	}
	if !doc.RendersHTML() {
		body, err := s.files.Open(ctx, doc.File.Key)
		if err != nil {
			s.logger.Error("Failed to open hosted documentation", zap.String("key", doc.File.Key), zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrDocumentMissing, err)
		}
		return &DocumentExport{
			Body:        body,
			ContentType: contentType(doc.File.OriginalName),
			FileName:    doc.File.OriginalName,
		}, nil
	}

	out, err := s.renderer.Render(doc.Content)
	if err != nil {
		return nil, err
	}
	return &DocumentExport{PDF: out, FileName: exportName(f.ProjectName, doc.Kind)}, nil
}

func contentType(fileName string) string {
	if ct := mime.TypeByExtension(path.Ext(fileName)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func exportName(projectName string, kind DocumentationKind) string {
	name := strings.TrimSpace(projectName)
	if name == "" {
		name = "project"
	}
	if kind == DocumentationImproved {
		return name + "-improved-documentation.pdf"
	}
	return name + "-documentation.pdf"
}

// ============================================================================
// Submission
// ============================================================================

// Submit validates the whole form, hosts the quotation and documentation and
// creates the project. A draft can be submitted once.
func (s *Service) Submit(ctx context.Context, userID string) (*projects.Project, error) {
	unlock := s.lock(userID)
	defer unlock()

	store, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := editable(store); err != nil {
		metrics.IncrementSubmission("rejected")
		return nil, err
	}

	if errs := ValidateAll(store.FormData()); !errs.OK() {
		return nil, &ValidationError{Fields: errs}
	}
	if _, err := store.GenerateQuotation(s.now()); err != nil {
		return nil, err
	}

	token := userID + ":" + strconv.FormatInt(store.Revision(), 10)
	if s.guard != nil && !s.guard.AcquireOnce(ctx, submitScope, token) {
		metrics.IncrementSubmission("duplicate")
		return nil, ErrSubmissionInProgress
	}

	if err := store.BeginUpload(s.now()); err != nil {
		s.release(ctx, token)
		return nil, err
	}
	if err := s.save(ctx, userID, store); err != nil {
		s.release(ctx, token)
		return nil, err
	}

	project, err := s.upload(ctx, userID, store.FormData())
	if err != nil {
		s.abandon(ctx, userID, token, store)
		metrics.IncrementSubmission("failed")
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	if q := store.FormData().Quotation(); q != nil {
		if err := s.ledger.Record(ctx, quotation.NewRecord(q, project.ID.Hex(), project.ClientEmail)); err != nil {
			s.logger.Warn("Failed to record quotation",
				zap.String("project_id", project.ID.Hex()),
				zap.String("quotation_number", q.Number),
				zap.Error(err),
			)
		}
	}

	if err := store.CompleteUpload(project.ID.Hex()); err != nil {
		return nil, err
	}
	saveCtx, cancel := detached(ctx)
	defer cancel()
	if err := s.save(saveCtx, userID, store); err != nil {
		s.logger.Error("Project created but draft not marked submitted",
			zap.String("project_id", project.ID.Hex()),
			zap.Error(err),
		)
	}

	metrics.IncrementSubmission("success")
	return project, nil
}

// abandon returns the draft to idle after a failed upload. It runs on a
// detached context; if the save still fails the draft goes stale after
// staleUpload.
func (s *Service) abandon(ctx context.Context, userID, token string, store *Store) {
	ctx, cancel := detached(ctx)
	defer cancel()

	store.FailUpload()
	if err := s.save(ctx, userID, store); err != nil {
		s.logger.Error("Wizard draft left uploading after failed submission",
			zap.String("user_id", userID),
			zap.Duration("stale_after", s.staleUpload),
			zap.Error(err),
		)
	}
	s.release(ctx, token)
}

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), detachedTimeout)
}

func (s *Service) release(ctx context.Context, token string) {
	if s.guard != nil {
		s.guard.Release(ctx, submitScope, token)
	}
}

// upload hosts the documents and creates the project record. Files hosted
// here are removed again when a later step fails.
func (s *Service) upload(ctx context.Context, userID string, f FormData) (*projects.Project, error) {
	quotationPDF, err := s.renderer.Render(f.QuotationPDF)
	if err != nil {
		return nil, fmt.Errorf("render quotation: %w", err)
	}
	quotationFile, err := s.files.Put(ctx, userID, storage.KindQuotation, f.ProjectName+"-quotation.pdf", quotationPDF)
	if err != nil {
		return nil, fmt.Errorf("store quotation: %w", err)
	}

	orphans := []string{quotationFile.Key}

	docKey, hosted, err := s.hostDocumentation(ctx, userID, f)
	if err != nil {
		docs.Discard(ctx, s.files, s.logger, orphans...)
		return nil, err
	}
	if hosted {
		orphans = append(orphans, docKey)
	}

	project := &projects.Project{
		ProjectName:       f.ProjectName,
		ClientID:          userID,
		ClientName:        f.ClientName,
		ClientEmail:       f.ClientEmail,
		ClientPhoneNumber: f.ClientPhoneNumber,
		ProjectBudget:     f.ProjectBudget,
		Currency:          string(f.Currency),
		ProjectOverview:   f.ProjectOverview,
		DevelopmentAreas:  append([]string{}, f.DevelopmentAreas...),
		SeniorDevelopers:  f.SeniorDevelopers,
		JuniorDevelopers:  f.JuniorDevelopers,
		UIUXDesigners:     f.UIUXDesigners,
		QuotationNumber:   f.QuotationNumber,
		QuotationKey:      quotationFile.Key,
		DocumentationKey:  docKey,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		docs.Discard(ctx, s.files, s.logger, orphans...)
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.logger.Info("Wizard submitted",
		zap.String("user_id", userID),
		zap.String("project_id", project.ID.Hex()),
		zap.String("quotation_number", f.QuotationNumber),
	)
	return project, nil
}

// hostDocumentation returns the key of the documentation to attach, and
// whether it was hosted by this call
func (s *Service) hostDocumentation(ctx context.Context, userID string, f FormData) (string, bool, error) {
	doc := f.Documentation
	if !doc.RendersHTML() {
		return doc.File.Key, false, nil
	}

	out, err := s.renderer.Render(doc.Content)
	if err != nil {
		return "", false, fmt.Errorf("render documentation: %w", err)
	}
	file, err := s.files.Put(ctx, userID, storage.KindDocumentation, exportName(f.ProjectName, doc.Kind), out)
	if err != nil {
		return "", false, fmt.Errorf("store documentation: %w", err)
	}
	return file.Key, true, nil
}
