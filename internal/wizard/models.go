package wizard

import (
	"time"

	"cehpoint/project-portal/project-portal-backend/internal/quotation"
	"cehpoint/project-portal/project-portal-backend/pkg/storage"
)

// Wizard steps
const (
	StepProjectDetails = 1
	StepPreferences    = 2
	StepDocumentation  = 3
	StepReview         = 4

	FirstStep = StepProjectDetails
	LastStep  = StepReview
)

// DocumentationKind tags the active documentation variant
type DocumentationKind string

const (
	DocumentationNone      DocumentationKind = "none"
	DocumentationUploaded  DocumentationKind = "uploaded"
	DocumentationGenerated DocumentationKind = "generated"
	DocumentationImproved  DocumentationKind = "improved"
)

// Documentation holds exactly one of the documentation alternatives.
// Build it with the constructors below; the zero value is DocumentationNone.
type Documentation struct {
	Kind DocumentationKind `json:"kind"`
	// extracted text for uploads, HTML otherwise
	Content string              `json:"content,omitempty"`
	File    *storage.HostedFile `json:"file,omitempty"`
}

func NoDocumentation() Documentation {
	return Documentation{Kind: DocumentationNone}
}

func UploadedDocumentation(file *storage.HostedFile, extractedText string) Documentation {
	return Documentation{Kind: DocumentationUploaded, Content: extractedText, File: file}
}

func GeneratedDocumentation(html string) Documentation {
	return Documentation{Kind: DocumentationGenerated, Content: html}
}

// ImprovedDocumentation keeps a reference to the upload it was produced from
func ImprovedDocumentation(html string, source *storage.HostedFile) Documentation {
	return Documentation{Kind: DocumentationImproved, Content: html, File: source}
}

// IsEmpty reports whether no documentation variant is active
func (d Documentation) IsEmpty() bool {
	switch d.Kind {
	case DocumentationUploaded:
		return d.File == nil
	case DocumentationGenerated, DocumentationImproved:
		return d.Content == ""
	default:
		return true
	}
}

// RendersHTML is true for variants that need the export pipeline
func (d Documentation) RendersHTML() bool {
	return d.Kind == DocumentationGenerated || d.Kind == DocumentationImproved
}

// FormData is the accumulated wizard submission
type FormData struct {
	ClientName        string `json:"clientName"`
	ClientEmail       string `json:"clientEmail"`
	ClientPhoneNumber string `json:"clientPhoneNumber"`

	ProjectName      string   `json:"projectName"`
	ProjectOverview  string   `json:"projectOverview"`
	DevelopmentAreas []string `json:"developmentAreas"`

	SeniorDevelopers int `json:"seniorDevelopers"`
	JuniorDevelopers int `json:"juniorDevelopers"`
	UIUXDesigners    int `json:"uiUxDesigners"`

	Currency      quotation.Currency `json:"currency"`
	Documentation Documentation      `json:"documentation"`

	QuotationPDF    string               `json:"quotationPdf,omitempty"`
	ProjectBudget   int64                `json:"projectBudget"`
	QuotationNumber string               `json:"quotationNumber,omitempty"`
	Breakdown       *quotation.Breakdown `json:"breakdown,omitempty"`
	QuotedAt        time.Time            `json:"quotedAt,omitempty"`
}

func defaultFormData() FormData {
	return FormData{
		DevelopmentAreas: []string{},
		Currency:         quotation.CurrencyINR,
		Documentation:    NoDocumentation(),
	}
}

// Team returns the requested team composition
func (f FormData) Team() quotation.Team {
	return quotation.Team{
		SeniorDevelopers: f.SeniorDevelopers,
		JuniorDevelopers: f.JuniorDevelopers,
		UIUXDesigners:    f.UIUXDesigners,
	}
}

// HasQuotation reports whether a quotation has been rendered into the form
func (f FormData) HasQuotation() bool {
	return f.QuotationPDF != ""
}

// Quotation rebuilds the issued quotation from the stored fields
func (f FormData) Quotation() *quotation.Quotation {
	if !f.HasQuotation() {
		return nil
	}
	q := &quotation.Quotation{
		Number:   f.QuotationNumber,
		IssuedAt: f.QuotedAt,
		HTML:     f.QuotationPDF,
	}
	if f.Breakdown != nil {
		q.Breakdown = *f.Breakdown
	}
	return q
}

// FormPatch carries the fields a client may change; nil fields are left alone
type FormPatch struct {
	ClientName        *string `json:"clientName,omitempty"`
	ClientEmail       *string `json:"clientEmail,omitempty"`
	ClientPhoneNumber *string `json:"clientPhoneNumber,omitempty"`

	ProjectName      *string  `json:"projectName,omitempty"`
	ProjectOverview  *string  `json:"projectOverview,omitempty"`
	DevelopmentAreas []string `json:"developmentAreas,omitempty"`

	SeniorDevelopers *int `json:"seniorDevelopers,omitempty"`
	JuniorDevelopers *int `json:"juniorDevelopers,omitempty"`
	UIUXDesigners    *int `json:"uiUxDesigners,omitempty"`

	Currency *quotation.Currency `json:"currency,omitempty"`
}

// Profile is the part of the signed-in user copied into the form
type Profile struct {
	Name  string
	Email string
	Phone string
}

// Snapshot is the serialisable state of a Store
type Snapshot struct {
	Step       int         `json:"step"`
	FormData   FormData    `json:"formData"`
	Errors     FieldErrors `json:"validationErrors"`
	Submission string      `json:"submission"`
	Revision   int64       `json:"revision"`
	ProjectID  string      `json:"projectId,omitempty"`

	UploadStartedAt *time.Time `json:"uploadStartedAt,omitempty"`
}
