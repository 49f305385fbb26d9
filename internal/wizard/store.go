package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cehpoint/project-portal/project-portal-backend/internal/quotation"
	"cehpoint/project-portal/project-portal-backend/pkg/workflows"
)

var (
	ErrSubmissionInProgress = errors.New("submission already in progress")
	ErrAlreadySubmitted     = errors.New("project already submitted")
	ErrInvalidSnapshot      = errors.New("invalid wizard snapshot")
)

// Store is the state of one user's project wizard. It is not safe for
// concurrent use; callers load, mutate and save it per request.
type Store struct {
	quotations *quotation.Generator
	submission *workflows.StateMachine

	step      int
	form      FormData
	errors    FieldErrors
	state     string
	revision  int64
	projectID string
	// set while uploading
	uploadStartedAt time.Time
}

func NewStore(quotations *quotation.Generator) *Store {
	return &Store{
		quotations: quotations,
		submission: workflows.NewSubmissionStateMachine(),
		step:       FirstStep,
		form:       defaultFormData(),
		errors:     FieldErrors{},
		state:      workflows.SubmissionIdle,
	}
}

func (s *Store) Step() int                  { return s.step }
func (s *Store) FormData() FormData         { return s.form }
func (s *Store) Errors() FieldErrors        { return s.errors }
func (s *Store) Revision() int64            { return s.revision }
func (s *Store) SubmissionState() string    { return s.state }
func (s *Store) SubmittedProjectID() string { return s.projectID }

// UpdateFormData merges the non-nil fields of patch. Nothing is validated here
// apart from clamping negative head counts.
func (s *Store) UpdateFormData(patch FormPatch) {
	f := &s.form
	if patch.ClientName != nil {
		f.ClientName = *patch.ClientName
	}
	if patch.ClientEmail != nil {
		f.ClientEmail = *patch.ClientEmail
	}
	if patch.ClientPhoneNumber != nil {
		f.ClientPhoneNumber = *patch.ClientPhoneNumber
	}
	if patch.ProjectName != nil {
		f.ProjectName = *patch.ProjectName
	}
	if patch.ProjectOverview != nil {
		f.ProjectOverview = *patch.ProjectOverview
	}
	if patch.DevelopmentAreas != nil {
		f.DevelopmentAreas = append([]string{}, patch.DevelopmentAreas...)
	}
	if patch.SeniorDevelopers != nil {
		f.SeniorDevelopers = nonNegative(*patch.SeniorDevelopers)
	}
	if patch.JuniorDevelopers != nil {
		f.JuniorDevelopers = nonNegative(*patch.JuniorDevelopers)
	}
	if patch.UIUXDesigners != nil {
		f.UIUXDesigners = nonNegative(*patch.UIUXDesigners)
	}
	if patch.Currency != nil && patch.Currency.Valid() {
		f.Currency = *patch.Currency
	}
	s.revision++
}

// SetDocumentation replaces the active documentation variant
func (s *Store) SetDocumentation(doc Documentation) {
	s.form.Documentation = doc
	s.revision++
}

// NextStep advances one step, never past the review step
func (s *Store) NextStep() {
	s.step = clampStep(s.step + 1)
}

// PrevStep goes back one step, never before the first
func (s *Store) PrevStep() {
	s.step = clampStep(s.step - 1)
}

// ValidateCurrentStep records the errors of the current step and reports success
func (s *Store) ValidateCurrentStep(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	errs := ValidateStep(s.step, s.form)
	s.errors = errs
	return errs.OK()
}

// SyncUserData copies the signed-in profile into the client fields
func (s *Store) SyncUserData(profile *Profile) {
	if profile == nil {
		return
	}
	s.form.ClientName = profile.Name
	s.form.ClientEmail = profile.Email
	s.form.ClientPhoneNumber = profile.Phone
}

// GenerateQuotation renders the quotation once. It reports false without
// recomputing when a quotation is already present.
func (s *Store) GenerateQuotation(now time.Time) (bool, error) {
	if s.form.HasQuotation() {
		return false, nil
	}
	if err := s.RegenerateQuotation(now); err != nil {
		return false, err
	}
	return true, nil
}

// RegenerateQuotation recomputes the quotation from the current team
func (s *Store) RegenerateQuotation(now time.Time) error {
	f := s.form
	q, err := s.quotations.Generate(quotation.Input{
		Client: quotation.Client{
			Name:  f.ClientName,
			Email: f.ClientEmail,
			Phone: f.ClientPhoneNumber,
		},
		ProjectName:      f.ProjectName,
		ProjectOverview:  f.ProjectOverview,
		DevelopmentAreas: f.DevelopmentAreas,
		Team:             f.Team(),
		Currency:         f.Currency,
	}, now)
	if err != nil {
		return fmt.Errorf("generate quotation: %w", err)
	}

	breakdown := q.Breakdown
	s.form.QuotationPDF = q.HTML
	s.form.ProjectBudget = breakdown.Total
	s.form.QuotationNumber = q.Number
	s.form.Breakdown = &breakdown
	s.form.QuotedAt = q.IssuedAt
	s.revision++
	return nil
}

// ResetForm restores the defaults and returns to step 1
func (s *Store) ResetForm() {
	s.step = FirstStep
	s.form = defaultFormData()
	s.errors = FieldErrors{}
	s.state = workflows.SubmissionIdle
	s.projectID = ""
	s.uploadStartedAt = time.Time{}
	s.revision++
}

// BeginUpload moves the draft into uploading; it fails unless the draft is idle
func (s *Store) BeginUpload(now time.Time) error {
	if s.state == workflows.SubmissionUploaded {
		return ErrAlreadySubmitted
	}
	if err := s.submission.Validate(s.state, workflows.SubmissionUploading); err != nil {
		return ErrSubmissionInProgress
	}
	s.state = workflows.SubmissionUploading
	s.uploadStartedAt = now.UTC()
	return nil
}

// CompleteUpload marks the draft as submitted under projectID
func (s *Store) CompleteUpload(projectID string) error {
	if err := s.submission.Validate(s.state, workflows.SubmissionUploaded); err != nil {
		return err
	}
	s.state = workflows.SubmissionUploaded
	s.projectID = projectID
	s.uploadStartedAt = time.Time{}
	return nil
}

// FailUpload returns an uploading draft to idle so it can be submitted again
func (s *Store) FailUpload() {
	if s.submission.CanTransition(s.state, workflows.SubmissionIdle) {
		s.state = workflows.SubmissionIdle
		s.uploadStartedAt = time.Time{}
	}
}

// ExpireUpload fails an upload that began more than after ago. Drafts saved
// without a start time count as expired.
func (s *Store) ExpireUpload(now time.Time, after time.Duration) bool {
	if s.state != workflows.SubmissionUploading {
		return false
	}
	if !s.uploadStartedAt.IsZero() && now.Sub(s.uploadStartedAt) < after {
		return false
	}
	s.FailUpload()
	return true
}

// Snapshot captures the state for persistence
func (s *Store) Snapshot() Snapshot {
	form := s.form
	form.DevelopmentAreas = append([]string{}, s.form.DevelopmentAreas...)
	errs := make(FieldErrors, len(s.errors))
	for k, v := range s.errors {
		errs[k] = v
	}
	snap := Snapshot{
		Step:       s.step,
		FormData:   form,
		Errors:     errs,
		Submission: s.state,
		Revision:   s.revision,
		ProjectID:  s.projectID,
	}
	if !s.uploadStartedAt.IsZero() {
		started := s.uploadStartedAt
		snap.UploadStartedAt = &started
	}
	return snap
}

// Restore replaces the state with a previously captured snapshot
func (s *Store) Restore(snap Snapshot) error {
	if snap.Step < FirstStep || snap.Step > LastStep {
		return fmt.Errorf("%w: step %d", ErrInvalidSnapshot, snap.Step)
	}
	if !s.submission.IsKnown(snap.Submission) {
		return fmt.Errorf("%w: submission state %q", ErrInvalidSnapshot, snap.Submission)
	}

	form := snap.FormData
	if form.DevelopmentAreas == nil {
		form.DevelopmentAreas = []string{}
	}
	if !form.Currency.Valid() {
		form.Currency = quotation.CurrencyINR
	}
	if form.Documentation.Kind == "" {
		form.Documentation = NoDocumentation()
	}
	errs := snap.Errors
	if errs == nil {
		errs = FieldErrors{}
	}

	s.step = snap.Step
	s.form = form
	s.errors = errs
	s.state = snap.Submission
	s.revision = snap.Revision
	s.projectID = snap.ProjectID
	s.uploadStartedAt = time.Time{}
	if snap.UploadStartedAt != nil {
		s.uploadStartedAt = snap.UploadStartedAt.UTC()
	}
	return nil
}

func clampStep(step int) int {
	if step < FirstStep {
		return FirstStep
	}
	if step > LastStep {
		return LastStep
	}
	return step
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
