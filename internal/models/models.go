package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is a read-only reference record. Project management lives in a
// separate service; this backend only resolves id -> name for display.
type Project struct {
	ID        string    `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	Name      string    `gorm:"not null;column:name" json:"name"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Project) TableName() string {
	return "projects"
}

// ProjectRef is the lookup shape handed to API responses.
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CompanySettings holds the issuing company's details used on documents and
// for the EPC payment QR code.
type CompanySettings struct {
	ID           uint    `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	CompanyName  string  `gorm:"not null;column:company_name" json:"companyName"`
	AddressLine1 *string `gorm:"column:address_line1" json:"addressLine1"`
	City         *string `gorm:"column:city" json:"city"`
	PostalCode   *string `gorm:"column:postal_code" json:"postalCode"`
	Country      *string `gorm:"column:country" json:"country"`
	Phone        *string `gorm:"column:phone" json:"phone"`
	Email        *string `gorm:"column:email" json:"email"`
	TaxNumber    *string `gorm:"column:tax_number" json:"taxNumber"`
	VATNumber    *string `gorm:"column:vat_number" json:"vatNumber"`

	// Banking information for the payment QR on invoices
	BankName      *string `gorm:"column:bank_name" json:"bankName"`
	IBAN          *string `gorm:"column:iban" json:"iban"`
	BIC           *string `gorm:"column:bic" json:"bic"`
	AccountHolder *string `gorm:"column:account_holder" json:"accountHolder"`

	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (CompanySettings) TableName() string {
	return "company_settings"
}

// newDocumentID assigns a UUID primary key before insert.
func newDocumentID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}
