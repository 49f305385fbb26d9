package quotation

import "time"

// Currency of a quotation
type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
)

// Valid reports whether c is a supported currency
func (c Currency) Valid() bool {
	return c == CurrencyINR || c == CurrencyUSD
}

// Symbol returns the display symbol
func (c Currency) Symbol() string {
	if c == CurrencyUSD {
		return "$"
	}
	return "₹"
}

// RateTable holds monthly rates in INR
type RateTable struct {
	SeniorDeveloper   int64 `json:"senior_developer"`
	JuniorDeveloper   int64 `json:"junior_developer"`
	UIUXDesigner      int64 `json:"ui_ux_designer"`
	ProjectManagement int64 `json:"project_management"`
}

// DefaultRates are the published INR rates
var DefaultRates = RateTable{
	SeniorDeveloper:   75000,
	JuniorDeveloper:   30000,
	UIUXDesigner:      8000,
	ProjectManagement: 50000,
}

// USDFactor converts an INR figure to USD
const USDFactor = 0.04

// Team is the requested team composition
type Team struct {
	SeniorDevelopers int `json:"senior_developers"`
	JuniorDevelopers int `json:"junior_developers"`
	UIUXDesigners    int `json:"ui_ux_designers"`
}

// Size is the total head count
func (t Team) Size() int {
	return t.SeniorDevelopers + t.JuniorDevelopers + t.UIUXDesigners
}

// LineItem is one row of the pricing table
type LineItem struct {
	Description string `json:"description" dynamodbav:"description"`
	Quantity    int    `json:"quantity" dynamodbav:"quantity"`
	Rate        int64  `json:"rate" dynamodbav:"rate"`
	Total       int64  `json:"total" dynamodbav:"total"`
}

// Breakdown is the itemised cost of a team
type Breakdown struct {
	Currency  Currency   `json:"currency"`
	LineItems []LineItem `json:"line_items"`
	Total     int64      `json:"total"`
}

// Client identifies who the quotation is addressed to
type Client struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Input is everything needed to issue a quotation
type Input struct {
	Client           Client   `json:"client"`
	ProjectName      string   `json:"project_name"`
	ProjectOverview  string   `json:"project_overview"`
	DevelopmentAreas []string `json:"development_areas"`
	Team             Team     `json:"team"`
	Currency         Currency `json:"currency"`
}

// Quotation is a rendered, numbered quotation document
type Quotation struct {
	Number    string    `json:"number"`
	IssuedAt  time.Time `json:"issued_at"`
	Breakdown Breakdown `json:"breakdown"`
	HTML      string    `json:"html"`
}
