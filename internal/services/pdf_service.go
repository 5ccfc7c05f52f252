package services

import (
	"bytes"
	"fmt"
	"image/png"
	"strings"
	"time"

	"go-agency-billing/internal/config"
	"go-agency-billing/internal/models"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
)

// PDFService renders quotations and invoices as PDF documents. Invoices
// additionally carry a Code128 barcode of their number for filing and, when
// banking details are configured, an EPC payment QR code.
type PDFService struct {
	cfg *config.BillingConfig
}

func NewPDFService(cfg *config.BillingConfig) *PDFService {
	return &PDFService{cfg: cfg}
}

// GenerateInvoicePDF renders an invoice.
func (s *PDFService) GenerateInvoicePDF(invoice *models.Invoice, company *models.CompanySettings) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetMargins(20, 20, 20)

	s.renderCompanyHeader(pdf, company)

	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(37, 99, 235)
	pdf.Cell(0, 15, "INVOICE")
	pdf.Ln(15)

	// Metadata table
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(248, 249, 250)

	colWidth := 40.0
	pdf.CellFormat(colWidth, 8, "Invoice #:", "1", 0, "", true, 0, "")
	pdf.CellFormat(colWidth, 8, invoice.InvoiceNumber, "1", 1, "", false, 0, "")
	pdf.CellFormat(colWidth, 8, "Issue Date:", "1", 0, "", true, 0, "")
	pdf.CellFormat(colWidth, 8, invoice.IssueDate.Format("02.01.2006"), "1", 1, "", false, 0, "")
	if invoice.DueDate != nil {
		pdf.CellFormat(colWidth, 8, "Due Date:", "1", 0, "", true, 0, "")
		pdf.CellFormat(colWidth, 8, invoice.DueDate.Format("02.01.2006"), "1", 1, "", false, 0, "")
	}
	pdf.CellFormat(colWidth, 8, "Status:", "1", 0, "", true, 0, "")
	pdf.CellFormat(colWidth, 8, strings.ToUpper(invoice.DisplayStatus(time.Now())), "1", 1, "", false, 0, "")

	pdf.Ln(5)

	s.renderProjectBlock(pdf, invoice.Title, invoice.Description, invoice.Project)
	s.renderLineItems(pdf, invoice.LineItems)
	s.renderTotals(pdf, invoice.Amount, invoice.TaxAmount, invoice.TotalAmount)

	if s.cfg.ShowBarcodeOnInvoice {
		if err := s.renderBarcode(pdf, invoice.InvoiceNumber); err != nil {
			return nil, err
		}
	}
	if company != nil && company.IBAN != nil && *company.IBAN != "" {
		if err := s.renderPaymentQR(pdf, invoice, company); err != nil {
			return nil, err
		}
	}

	s.renderFooter(pdf, company)

	return outputPDF(pdf)
}

// GenerateQuotationPDF renders a quotation.
func (s *PDFService) GenerateQuotationPDF(quotation *models.Quotation, company *models.CompanySettings) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetMargins(20, 20, 20)

	s.renderCompanyHeader(pdf, company)

	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(37, 99, 235)
	pdf.Cell(0, 15, "QUOTATION")
	pdf.Ln(15)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(248, 249, 250)

	colWidth := 40.0
	pdf.CellFormat(colWidth, 8, "Quotation #:", "1", 0, "", true, 0, "")
	pdf.CellFormat(colWidth, 8, quotation.QuotationNumber, "1", 1, "", false, 0, "")
	pdf.CellFormat(colWidth, 8, "Date:", "1", 0, "", true, 0, "")
	pdf.CellFormat(colWidth, 8, quotation.CreatedAt.Format("02.01.2006"), "1", 1, "", false, 0, "")
	if quotation.ValidUntil != nil {
		pdf.CellFormat(colWidth, 8, "Valid Until:", "1", 0, "", true, 0, "")
		pdf.CellFormat(colWidth, 8, quotation.ValidUntil.Format("02.01.2006"), "1", 1, "", false, 0, "")
	}
	pdf.CellFormat(colWidth, 8, "Status:", "1", 0, "", true, 0, "")
	pdf.CellFormat(colWidth, 8, strings.ToUpper(quotation.DisplayStatus(time.Now())), "1", 1, "", false, 0, "")

	pdf.Ln(5)

	s.renderProjectBlock(pdf, quotation.Title, quotation.Description, quotation.Project)
	s.renderLineItems(pdf, quotation.LineItems)
	s.renderTotals(pdf, quotation.NetAmount, quotation.TaxAmount, quotation.TotalAmount)

	// Validity note
	if quotation.ValidUntil != nil {
		pdf.Ln(10)
		pdf.SetFont("Arial", "I", 9)
		pdf.SetTextColor(100, 100, 100)
		pdf.Cell(0, 5, fmt.Sprintf("This offer is valid until %s.", quotation.ValidUntil.Format("02.01.2006")))
		pdf.Ln(5)
	}

	s.renderFooter(pdf, company)

	return outputPDF(pdf)
}

func (s *PDFService) renderCompanyHeader(pdf *gofpdf.Fpdf, company *models.CompanySettings) {
	if company == nil {
		return
	}

	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(37, 99, 235)
	pdf.Cell(0, 10, company.CompanyName)
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(0, 0, 0)
	if company.AddressLine1 != nil {
		pdf.Cell(0, 5, *company.AddressLine1)
		pdf.Ln(5)
	}
	address := ""
	if company.PostalCode != nil {
		address += *company.PostalCode + " "
	}
	if company.City != nil {
		address += *company.City
	}
	if address != "" {
		pdf.Cell(0, 5, address)
		pdf.Ln(5)
	}
	if company.Phone != nil {
		pdf.Cell(0, 5, "Phone: "+*company.Phone)
		pdf.Ln(5)
	}
	if company.Email != nil {
		pdf.Cell(0, 5, "Email: "+*company.Email)
		pdf.Ln(5)
	}

	pdf.Ln(10)
}

func (s *PDFService) renderProjectBlock(pdf *gofpdf.Fpdf, title string, description *string, project *models.ProjectRef) {
	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(37, 99, 235)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(0, 0, 0)
	if project != nil {
		pdf.Cell(0, 5, "Project: "+project.Name)
		pdf.Ln(5)
	}
	if description != nil && *description != "" {
		pdf.MultiCell(0, 5, *description, "", "", false)
	}

	pdf.Ln(8)
}

func (s *PDFService) renderLineItems(pdf *gofpdf.Fpdf, items []models.LineItem) {
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFillColor(37, 99, 235)

	pdf.CellFormat(70, 10, "Description", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 10, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 10, "Unit Price", "1", 0, "C", true, 0, "")
	pdf.CellFormat(15, 10, "Tax", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 10, "Total", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(248, 249, 250)

	fill := false
	for i := range items {
		item := &items[i]
		qty := fmt.Sprintf("%s %s", item.Quantity.StringFixed(2), item.UnitName)
		pdf.CellFormat(70, 8, item.Name, "1", 0, "", fill, 0, "")
		pdf.CellFormat(25, 8, qty, "1", 0, "C", fill, 0, "")
		pdf.CellFormat(30, 8, s.money(item.UnitPrice), "1", 0, "R", fill, 0, "")
		pdf.CellFormat(15, 8, fmt.Sprintf("%d%%", item.TaxRate), "1", 0, "C", fill, 0, "")
		pdf.CellFormat(30, 8, s.money(item.LineTotal()), "1", 1, "R", fill, 0, "")
		fill = !fill
	}

	pdf.Ln(8)
}

func (s *PDFService) renderTotals(pdf *gofpdf.Fpdf, net, tax, total decimal.Decimal) {
	totalsX := 110.0

	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetX(totalsX)
	pdf.CellFormat(40, 8, "Net Amount:", "", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, s.money(net), "", 1, "R", false, 0, "")

	pdf.SetX(totalsX)
	pdf.CellFormat(40, 8, "Tax:", "", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, s.money(tax), "", 1, "R", false, 0, "")

	pdf.SetX(totalsX)
	pdf.SetFont("Arial", "B", 12)
	pdf.SetFillColor(37, 99, 235)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(40, 10, "TOTAL:", "1", 0, "R", true, 0, "")
	pdf.CellFormat(30, 10, s.money(total), "1", 1, "R", true, 0, "")
}

// renderBarcode embeds a Code128 of the invoice number for document filing.
func (s *PDFService) renderBarcode(pdf *gofpdf.Fpdf, invoiceNumber string) error {
	code, err := code128.Encode(invoiceNumber)
	if err != nil {
		return fmt.Errorf("failed to encode barcode: %v", err)
	}
	scaled, err := barcode.Scale(code, 300, 60)
	if err != nil {
		return fmt.Errorf("failed to scale barcode: %v", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return fmt.Errorf("failed to render barcode: %v", err)
	}

	name := "barcode-" + invoiceNumber
	pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, &buf)

	pdf.Ln(10)
	y := pdf.GetY()
	pdf.ImageOptions(name, 20, y, 50, 10, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	pdf.SetY(y + 11)
	pdf.SetFont("Arial", "", 7)
	pdf.SetTextColor(100, 100, 100)
	pdf.Cell(0, 4, invoiceNumber)
	pdf.Ln(4)

	return nil
}

// renderPaymentQR embeds an EPC069-12 QR code so the total can be paid by
// scanning with a banking app.
func (s *PDFService) renderPaymentQR(pdf *gofpdf.Fpdf, invoice *models.Invoice, company *models.CompanySettings) error {
	holder := company.CompanyName
	if company.AccountHolder != nil && *company.AccountHolder != "" {
		holder = *company.AccountHolder
	}
	bic := ""
	if company.BIC != nil {
		bic = *company.BIC
	}

	// EPC QR payload, one field per line, empty fields kept
	payload := strings.Join([]string{
		"BCD",
		"002",
		"1",
		"SCT",
		bic,
		holder,
		strings.ReplaceAll(*company.IBAN, " ", ""),
		fmt.Sprintf("%s%s", invoice.Currency, invoice.TotalAmount.StringFixed(2)),
		"",
		invoice.InvoiceNumber,
		"",
	}, "\n")

	qrPNG, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("failed to encode payment QR: %v", err)
	}

	name := "payment-qr-" + invoice.InvoiceNumber
	pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qrPNG))

	y := pdf.GetY() - 15
	pdf.ImageOptions(name, 160, y, 30, 30, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	pdf.SetY(y + 31)
	pdf.SetX(160)
	pdf.SetFont("Arial", "", 7)
	pdf.SetTextColor(100, 100, 100)
	pdf.Cell(30, 4, "Scan to pay")
	pdf.Ln(6)

	return nil
}

func (s *PDFService) renderFooter(pdf *gofpdf.Fpdf, company *models.CompanySettings) {
	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(100, 100, 100)
	footerText := fmt.Sprintf("Generated on %s", time.Now().Format("02.01.2006 15:04:05"))
	if company != nil && company.TaxNumber != nil {
		footerText += fmt.Sprintf(" | Tax Number: %s", *company.TaxNumber)
	}
	if company != nil && company.IBAN != nil {
		footerText += fmt.Sprintf(" | IBAN: %s", *company.IBAN)
	}
	pdf.Cell(0, 5, footerText)
}

func (s *PDFService) money(amount decimal.Decimal) string {
	return fmt.Sprintf("%s%s", s.cfg.CurrencySymbol, amount.StringFixed(2))
}

func outputPDF(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %v", err)
	}

	pdfBytes := buf.Bytes()
	if len(pdfBytes) < 4 || string(pdfBytes[:4]) != "%PDF" {
		return nil, fmt.Errorf("PDF generation produced invalid content")
	}

	return pdfBytes, nil
}
