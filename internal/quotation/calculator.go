package quotation

import "math"

// Calculator turns team composition into a cost breakdown
type Calculator struct {
	rates RateTable
}

func NewCalculator(rates RateTable) *Calculator {
	return &Calculator{rates: rates}
}

// Calculate prices the team. Roles with a zero count are left out; the
// project management fee is always charged once.
func (c *Calculator) Calculate(team Team, currency Currency) Breakdown {
	if !currency.Valid() {
		currency = CurrencyINR
	}

	rows := []struct {
		description string
		count       int
		rate        int64
	}{
		{"Senior Developer", team.SeniorDevelopers, c.rates.SeniorDeveloper},
		{"Junior Developer", team.JuniorDevelopers, c.rates.JuniorDeveloper},
		{"UI/UX Designer", team.UIUXDesigners, c.rates.UIUXDesigner},
	}

	b := Breakdown{Currency: currency}
	for _, row := range rows {
		if row.count <= 0 {
			continue
		}
		rate := convert(row.rate, currency)
		item := LineItem{
			Description: row.description,
			Quantity:    row.count,
			Rate:        rate,
			Total:       rate * int64(row.count),
		}
		b.LineItems = append(b.LineItems, item)
		b.Total += item.Total
	}

	fee := convert(c.rates.ProjectManagement, currency)
	b.LineItems = append(b.LineItems, LineItem{
		Description: "Project Management",
		Quantity:    1,
		Rate:        fee,
		Total:       fee,
	})
	b.Total += fee

	return b
}

func convert(inr int64, currency Currency) int64 {
	if currency == CurrencyUSD {
		return int64(math.Round(float64(inr) * USDFactor))
	}
	return inr
}
