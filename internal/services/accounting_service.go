package services

import (
	"context"
	"fmt"

	"go-agency-billing/internal/config"
	"go-agency-billing/internal/models"

	"github.com/go-resty/resty/v2"
)

// AccountingService pushes financial documents to the external accounting
// system. Pushes are best-effort: a failure never blocks or rolls back the
// local transition that triggered it, callers retry on a later invocation.
type AccountingService struct {
	cfg    *config.AccountingConfig
	client *resty.Client
}

func NewAccountingService(cfg *config.AccountingConfig) *AccountingService {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &AccountingService{
		cfg:    cfg,
		client: client,
	}
}

// Enabled reports whether a sync target is configured.
func (s *AccountingService) Enabled() bool {
	return s.cfg.Enabled && s.cfg.BaseURL != ""
}

type accountingDocument struct {
	Number      string  `json:"number"`
	Title       string  `json:"title"`
	ProjectID   string  `json:"project_id"`
	NetAmount   string  `json:"net_amount"`
	TaxAmount   string  `json:"tax_amount"`
	TotalAmount string  `json:"total_amount"`
	Currency    string  `json:"currency"`
	ValidUntil  *string `json:"valid_until,omitempty"`
}

type accountingPushResponse struct {
	ID string `json:"id"`
}

// PushQuotation mirrors a quotation to the accounting system and returns the
// external document id. Idempotent: when the quotation already carries an
// external id, the push is skipped and the existing id is returned.
func (s *AccountingService) PushQuotation(ctx context.Context, quotation *models.Quotation) (string, error) {
	if quotation.ExternalAccountingID != nil && *quotation.ExternalAccountingID != "" {
		return *quotation.ExternalAccountingID, nil
	}

	doc := accountingDocument{
		Number:      quotation.QuotationNumber,
		Title:       quotation.Title,
		ProjectID:   quotation.ProjectID,
		NetAmount:   quotation.NetAmount.StringFixed(2),
		TaxAmount:   quotation.TaxAmount.StringFixed(2),
		TotalAmount: quotation.TotalAmount.StringFixed(2),
		Currency:    quotation.Currency,
	}
	if quotation.ValidUntil != nil {
		validUntil := quotation.ValidUntil.Format("2006-01-02")
		doc.ValidUntil = &validUntil
	}

	var result accountingPushResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(doc).
		SetResult(&result).
		Post("/api/v1/quotations")
	if err != nil {
		return "", models.NewExternalServiceError("accounting", err)
	}
	if resp.IsError() {
		return "", models.NewExternalServiceError("accounting",
			fmt.Errorf("push rejected with status %d", resp.StatusCode()))
	}
	if result.ID == "" {
		return "", models.NewExternalServiceError("accounting",
			fmt.Errorf("push response carried no document id"))
	}

	return result.ID, nil
}
