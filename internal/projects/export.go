package projects

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Projects"

var exportColumns = []string{
	"ID", "Project Name", "Client Name", "Client Email", "Client Phone",
	"Status", "Progress", "Budget", "Final Cost", "Currency",
	"Submitted At", "Start Date", "End Date", "Deadline",
	"Development Areas", "Quotation Number", "Quotation Key", "Documentation Key",
}

// WriteXLSX renders projects as a single-sheet workbook with a frozen,
// filterable header row.
func WriteXLSX(w io.Writer, projects []*Project) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    borders(),
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	dateStyle, err := file.NewStyle(&excelize.Style{NumFmt: 14, Border: borders()})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}
	dataStyle, err := file.NewStyle(&excelize.Style{Border: borders()})
	if err != nil {
		return fmt.Errorf("failed to create data style: %w", err)
	}

	widths := make([]float64, len(exportColumns))
	for i, col := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		file.SetCellValue(exportSheet, cell, col)
		file.SetCellStyle(exportSheet, cell, cell, headerStyle)
		widths[i] = estimateWidth(col)
	}

	for rowIdx, p := range projects {
		for colIdx, val := range exportRow(p) {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			style := dataStyle
			switch v := val.(type) {
			case time.Time:
				style = dateStyle
				file.SetCellValue(exportSheet, cell, v)
			case nil:
				file.SetCellValue(exportSheet, cell, "")
			default:
				file.SetCellValue(exportSheet, cell, v)
			}
			file.SetCellStyle(exportSheet, cell, cell, style)

			if width := estimateWidth(val); width > widths[colIdx] {
				widths[colIdx] = width
			}
		}
	}

	if err := file.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	lastCol, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
	if err := file.AutoFilter(exportSheet, "A1:"+lastCol, nil); err != nil {
		return fmt.Errorf("failed to add filter: %w", err)
	}

	for i, width := range widths {
		name, _ := excelize.ColumnNumberToName(i + 1)
		// Min width 10, max width 50
		file.SetColWidth(exportSheet, name, name, min(max(width, 10), 50))
	}

	return file.Write(w)
}

func exportRow(p *Project) []interface{} {
	var finalCost interface{}
	if p.FinalCost != nil {
		finalCost = *p.FinalCost
	}
	return []interface{}{
		p.ID.Hex(), p.ProjectName, p.ClientName, p.ClientEmail, p.ClientPhoneNumber,
		p.Status, p.Progress, p.ProjectBudget, finalCost, p.Currency,
		p.SubmittedAt, timeOrNil(p.StartDate), timeOrNil(p.EndDate), timeOrNil(p.Deadline),
		strings.Join(p.DevelopmentAreas, ", "), p.QuotationNumber, p.QuotationKey, p.DocumentationKey,
	}
}

func timeOrNil(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}

func borders() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
}

func estimateWidth(val interface{}) float64 {
	if val == nil {
		return 0
	}
	if t, ok := val.(time.Time); ok {
		val = t.Format("2006-01-02")
	}
	return float64(len(fmt.Sprintf("%v", val))) * 1.2
}
