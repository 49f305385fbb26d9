package quotation

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"time"
)

//go:embed templates/quotation.html
var templateFS embed.FS

var quotationTemplate = template.Must(template.ParseFS(templateFS, "templates/quotation.html"))

// Company is the issuer printed in the quotation header
type Company struct {
	Name    string
	Website string
	Email   string
	Phone   string
}

var DefaultCompany = Company{
	Name:    "CEHPOINT",
	Website: "services.cehpoint.co.in",
	Email:   "info@cehpoint.co.in",
	Phone:   "+91 33 6902 9331",
}

const overviewWordLimit = 20

type itemView struct {
	Description string
	Quantity    string
	Rate        string
	Total       string
}

type documentView struct {
	Company     Company
	Number      string
	Date        string
	Currency    Currency
	Client      Client
	ProjectName string
	Overview    string
	Areas       []string
	Items       []itemView
	Total       string
}

// Generator computes and renders quotations
type Generator struct {
	calculator *Calculator
	company    Company
}

func NewGenerator(calculator *Calculator, company Company) *Generator {
	return &Generator{
		calculator: calculator,
		company:    company,
	}
}

// Generate prices the input and renders a self-contained HTML document
func (g *Generator) Generate(input Input, now time.Time) (*Quotation, error) {
	breakdown := g.calculator.Calculate(input.Team, input.Currency)
	number := NewNumber(now)

	view := documentView{
		Company:     g.company,
		Number:      number,
		Date:        FormatDate(now),
		Currency:    breakdown.Currency,
		Client:      input.Client,
		ProjectName: input.ProjectName,
		Overview:    TruncateWords(input.ProjectOverview, overviewWordLimit),
		Areas:       input.DevelopmentAreas,
		Total:       FormatAmount(breakdown.Total, breakdown.Currency),
	}
	for _, item := range breakdown.LineItems {
		view.Items = append(view.Items, itemView{
			Description: item.Description,
			Quantity:    strconv.Itoa(item.Quantity),
			Rate:        FormatAmount(item.Rate, breakdown.Currency),
			Total:       FormatAmount(item.Total, breakdown.Currency),
		})
	}

	var buf bytes.Buffer
	if err := quotationTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("failed to render quotation: %w", err)
	}

	return &Quotation{
		Number:    number,
		IssuedAt:  now,
		Breakdown: breakdown,
		HTML:      buf.String(),
	}, nil
}
