package services

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go-agency-billing/internal/config"
	"go-agency-billing/internal/models"
)

// NotificationService sends internal billing notifications by email: a
// quotation went out, the sweep generated an invoice. Recipients are the
// agency's own staff (notify_email), not customers.
type NotificationService struct {
	config *config.EmailConfig
}

func NewNotificationService(emailConfig *config.EmailConfig) *NotificationService {
	return &NotificationService{
		config: emailConfig,
	}
}

type notificationData struct {
	Invoice    *models.Invoice
	Quotation  *models.Quotation
	Definition *models.RecurringInvoice
	Symbol     string
}

// NotifyInvoiceGenerated tells the team that the sweep materialized an
// invoice from a recurring definition.
func (s *NotificationService) NotifyInvoiceGenerated(invoice *models.Invoice, definition *models.RecurringInvoice) error {
	if s.config.NotifyEmail == "" {
		return fmt.Errorf("notify_email not configured")
	}

	subject := fmt.Sprintf("Invoice %s generated from recurring schedule", invoice.InvoiceNumber)
	data := &notificationData{Invoice: invoice, Definition: definition, Symbol: "€"}

	htmlBody, err := renderTemplate("invoice_generated_html", invoiceGeneratedHTML, data)
	if err != nil {
		return fmt.Errorf("failed to render notification: %v", err)
	}
	textBody, err := renderTemplate("invoice_generated_text", invoiceGeneratedText, data)
	if err != nil {
		return fmt.Errorf("failed to render notification: %v", err)
	}

	return s.sendEmail([]string{s.config.NotifyEmail}, subject, textBody, htmlBody, nil, "")
}

// NotifyQuotationSent tells the team that a quotation was dispatched.
func (s *NotificationService) NotifyQuotationSent(quotation *models.Quotation) error {
	if s.config.NotifyEmail == "" {
		return fmt.Errorf("notify_email not configured")
	}

	subject := fmt.Sprintf("Quotation %s sent", quotation.QuotationNumber)
	data := &notificationData{Quotation: quotation, Symbol: "€"}

	htmlBody, err := renderTemplate("quotation_sent_html", quotationSentHTML, data)
	if err != nil {
		return fmt.Errorf("failed to render notification: %v", err)
	}
	textBody, err := renderTemplate("quotation_sent_text", quotationSentText, data)
	if err != nil {
		return fmt.Errorf("failed to render notification: %v", err)
	}

	return s.sendEmail([]string{s.config.NotifyEmail}, subject, textBody, htmlBody, nil, "")
}

func renderTemplate(name, text string, data *notificationData) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const invoiceGeneratedHTML = `
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Invoice {{.Invoice.InvoiceNumber}}</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2563eb;">Invoice {{.Invoice.InvoiceNumber}} generated</h2>
        <p>The recurring schedule <strong>{{.Definition.Title}}</strong> produced a new invoice.</p>
        <div style="background-color: #f8f9fa; border-left: 4px solid #2563eb; padding: 15px; margin: 20px 0;">
            <table style="width: 100%; border-collapse: collapse;">
                <tr><td><strong>Invoice Number:</strong></td><td>{{.Invoice.InvoiceNumber}}</td></tr>
                <tr><td><strong>Issue Date:</strong></td><td>{{.Invoice.IssueDate.Format "January 2, 2006"}}</td></tr>
                {{if .Invoice.DueDate}}<tr><td><strong>Due Date:</strong></td><td>{{.Invoice.DueDate.Format "January 2, 2006"}}</td></tr>{{end}}
                <tr><td><strong>Status:</strong></td><td>{{.Invoice.Status}}</td></tr>
                <tr><td><strong>Total:</strong></td><td>{{.Symbol}}{{.Invoice.TotalAmount.StringFixed 2}}</td></tr>
            </table>
        </div>
        <p>Next invoice for this schedule: {{.Definition.NextInvoiceDate.Format "January 2, 2006"}}</p>
    </div>
</body>
</html>
`

const invoiceGeneratedText = `
Invoice {{.Invoice.InvoiceNumber}} generated

The recurring schedule "{{.Definition.Title}}" produced a new invoice.

- Invoice Number: {{.Invoice.InvoiceNumber}}
- Issue Date: {{.Invoice.IssueDate.Format "January 2, 2006"}}
{{if .Invoice.DueDate}}- Due Date: {{.Invoice.DueDate.Format "January 2, 2006"}}
{{end}}- Status: {{.Invoice.Status}}
- Total: {{.Symbol}}{{.Invoice.TotalAmount.StringFixed 2}}

Next invoice for this schedule: {{.Definition.NextInvoiceDate.Format "January 2, 2006"}}
`

const quotationSentHTML = `
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Quotation {{.Quotation.QuotationNumber}}</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2563eb;">Quotation {{.Quotation.QuotationNumber}} sent</h2>
        <div style="background-color: #f8f9fa; border-left: 4px solid #2563eb; padding: 15px; margin: 20px 0;">
            <table style="width: 100%; border-collapse: collapse;">
                <tr><td><strong>Title:</strong></td><td>{{.Quotation.Title}}</td></tr>
                <tr><td><strong>Total:</strong></td><td>{{.Symbol}}{{.Quotation.TotalAmount.StringFixed 2}}</td></tr>
                {{if .Quotation.ValidUntil}}<tr><td><strong>Valid Until:</strong></td><td>{{.Quotation.ValidUntil.Format "January 2, 2006"}}</td></tr>{{end}}
            </table>
        </div>
    </div>
</body>
</html>
`

const quotationSentText = `
Quotation {{.Quotation.QuotationNumber}} sent

- Title: {{.Quotation.Title}}
- Total: {{.Symbol}}{{.Quotation.TotalAmount.StringFixed 2}}
{{if .Quotation.ValidUntil}}- Valid Until: {{.Quotation.ValidUntil.Format "January 2, 2006"}}
{{end}}
`

// sendEmail sends an email with optional PDF attachment
func (s *NotificationService) sendEmail(to []string, subject, textBody, htmlBody string, attachment []byte, attachmentName string) error {
	if s.config.SMTPHost == "" || (s.config.SMTPHost == "localhost" && s.config.SMTPUsername == "") {
		return fmt.Errorf("SMTP not configured - set smtp_host, smtp_port, smtp_username, smtp_password")
	}

	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)

	var auth smtp.Auth
	if s.config.SMTPUsername != "" && s.config.SMTPPassword != "" {
		auth = smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
	}

	tlsConfig := &tls.Config{
		ServerName: s.config.SMTPHost,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		// Try without TLS
		return s.sendEmailPlain(to, subject, textBody, htmlBody, attachment, attachmentName)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %v", err)
	}
	defer client.Quit()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %v", err)
		}
	}

	if err := client.Mail(s.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %v", err)
	}
	for _, recipient := range to {
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("failed to set recipient %s: %v", recipient, err)
		}
	}

	message := s.createMIMEMessage(to, subject, textBody, htmlBody, attachment, attachmentName)

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte(message)); err != nil {
		return fmt.Errorf("failed to write message: %v", err)
	}

	return nil
}

// sendEmailPlain sends email without TLS (fallback)
func (s *NotificationService) sendEmailPlain(to []string, subject, textBody, htmlBody string, attachment []byte, attachmentName string) error {
	message := s.createMIMEMessage(to, subject, textBody, htmlBody, attachment, attachmentName)

	var auth smtp.Auth
	if s.config.SMTPUsername != "" && s.config.SMTPPassword != "" {
		auth = smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
	}

	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.FromEmail, to, []byte(message))
}

// createMIMEMessage creates a MIME message with optional attachment
func (s *NotificationService) createMIMEMessage(to []string, subject, textBody, htmlBody string, attachment []byte, attachmentName string) string {
	boundary := "boundary-" + strconv.FormatInt(time.Now().UnixNano(), 16)

	var message strings.Builder

	message.WriteString(fmt.Sprintf("From: %s <%s>\r\n", s.config.FromName, s.config.FromEmail))
	message.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	message.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	message.WriteString("MIME-Version: 1.0\r\n")

	if attachment != nil {
		message.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%s\r\n", boundary))
	} else {
		message.WriteString("Content-Type: multipart/alternative; boundary=" + boundary + "\r\n")
	}
	message.WriteString("\r\n")

	message.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	message.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	message.WriteString("Content-Transfer-Encoding: 7bit\r\n\r\n")
	message.WriteString(textBody)
	message.WriteString("\r\n\r\n")

	message.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	message.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	message.WriteString("Content-Transfer-Encoding: 7bit\r\n\r\n")
	message.WriteString(htmlBody)
	message.WriteString("\r\n\r\n")

	if attachment != nil && attachmentName != "" {
		message.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		message.WriteString(fmt.Sprintf("Content-Type: application/pdf; name=\"%s\"\r\n", attachmentName))
		message.WriteString("Content-Transfer-Encoding: base64\r\n")
		message.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n\r\n", attachmentName))
		message.WriteString(encodeAttachment(attachment))
		message.WriteString("\r\n")
	}

	message.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return message.String()
}

// encodeAttachment encodes data as base64 with line breaks every 76 characters
func encodeAttachment(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)

	var wrapped strings.Builder
	for i := 0; i < len(encoded); i += 76 {
		end := i + 76
		if end > len(encoded) {
			end = len(encoded)
		}
		wrapped.WriteString(encoded[i:end])
		wrapped.WriteString("\r\n")
	}
	return wrapped.String()
}
