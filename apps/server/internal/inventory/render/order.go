// Package render produces printable documents for inventory records.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/tilsley/stockroom/pkg/api"
)

type column struct {
	title string
	width float64
	align string
}

// A4 portrait with 10mm margins leaves 190mm.
var lineColumns = []column{
	{"Part no.", 32, "L"},
	{"Description", 68, "L"},
	{"Qty", 18, "R"},
	{"Unit", 16, "L"},
	{"Unit cost", 26, "R"},
	{"Total", 30, "R"},
}

// OrderPDF renders a purchase order as an A4 PDF.
func OrderPDF(o api.Order, company api.CompanyInfo, generatedAt time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle("Purchase order "+o.Number, true)
	pdf.SetAuthor(company.Name, true)
	pdf.SetCreator("stockroom", false)
	pdf.SetCreationDate(generatedAt)
	pdf.SetCatalogSort(true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10,
			tr(fmt.Sprintf("%s - generated %s - page %d/{nb}", o.Number, generatedAt.Format("2006-01-02 15:04 MST"), pdf.PageNo())),
			"", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	header(pdf, tr, o, company)
	supplier(pdf, tr, o)
	lines(pdf, tr, o)
	notes(pdf, tr, o)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render order %s: %w", o.Number, err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write order %s: %w", o.Number, err)
	}
	return buf.Bytes(), nil
}

func header(pdf *fpdf.Fpdf, tr func(string) string, o api.Order, company api.CompanyInfo) {
	top := pdf.GetY()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(110, 8, tr(company.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, line := range []*string{company.Address, company.Phone, company.Email} {
		if line == nil || *line == "" {
			continue
		}
		for _, part := range strings.Split(*line, "\n") {
			pdf.CellFormat(110, 4.5, tr(part), "", 1, "L", false, 0, "")
		}
	}
	bottom := pdf.GetY()

	pdf.SetXY(120, top)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(80, 8, "PURCHASE ORDER", "", 2, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	meta := [][2]string{
		{"Number", o.Number},
		{"Date", o.CreatedAt.Format("2 Jan 2006")},
		{"Status", strings.ToUpper(string(o.Status))},
	}
	if o.SubmittedAt != nil {
		meta = append(meta, [2]string{"Submitted", o.SubmittedAt.Format("2 Jan 2006")})
	}
	for _, m := range meta {
		pdf.SetX(120)
		pdf.CellFormat(40, 5, m[0]+":", "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 5, tr(m[1]), "", 1, "R", false, 0, "")
	}

	pdf.SetY(max(bottom, pdf.GetY()) + 6)
}

func supplier(pdf *fpdf.Fpdf, tr func(string) string, o api.Order) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, "Supplier", "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 7, tr(o.Supplier), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func lines(pdf *fpdf.Fpdf, tr func(string) string, o api.Order) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range lineColumns {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetFillColor(245, 245, 245)
	for i, l := range o.Lines {
		cells := []string{
			l.PartNumber,
			truncate(l.Name, 42),
			fmt.Sprintf("%d", l.Quantity),
			l.Unit,
			formatMoney(l.UnitCost),
			formatMoney(l.LineTotal),
		}
		fill := i%2 == 1
		for j, c := range lineColumns {
			pdf.CellFormat(c.width, 6, tr(cells[j]), "LR", 0, c.align, fill, 0, "")
		}
		pdf.Ln(-1)
	}

	var width float64
	for _, c := range lineColumns[:len(lineColumns)-1] {
		width += c.width
	}
	last := lineColumns[len(lineColumns)-1]
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(width, 8, "Total", "T", 0, "R", false, 0, "")
	pdf.CellFormat(last.width, 8, formatMoney(o.Total), "1", 1, "R", false, 0, "")
	pdf.Ln(4)
}

func notes(pdf *fpdf.Fpdf, tr func(string) string, o api.Order) {
	if o.Notes == nil || strings.TrimSpace(*o.Notes) == "" {
		return
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, "Notes", "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 5, tr(*o.Notes), "", "L", false)
}

func formatMoney(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
