package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func item(qty, price string, taxRate int) LineItem {
	return LineItem{
		Name:      "Design work",
		Quantity:  dec(qty),
		UnitName:  "h",
		UnitPrice: dec(price),
		TaxRate:   taxRate,
	}
}

func TestLineItemMath(t *testing.T) {
	li := item("2", "100.00", 19)
	assert.True(t, li.LineNet().Equal(dec("200.00")))
	assert.True(t, li.LineTax().Equal(dec("38.00")))
	assert.True(t, li.LineTotal().Equal(dec("238.00")))
}

func TestLineItemRoundsHalfToEven(t *testing.T) {
	// 0.5 * 0.25 = 0.125 rounds down to the even cent
	down := item("0.5", "0.25", 0)
	assert.True(t, down.LineNet().Equal(dec("0.12")), "got %s", down.LineNet())

	// 0.5 * 0.27 = 0.135 rounds up to the even cent
	up := item("0.5", "0.27", 0)
	assert.True(t, up.LineNet().Equal(dec("0.14")), "got %s", up.LineNet())
}

func TestLineItemTaxRoundsOnRoundedNet(t *testing.T) {
	// net 33.33 at 19% is 6.3327, tax must come out as 6.33
	li := item("1", "33.33", 19)
	assert.True(t, li.LineTax().Equal(dec("6.33")), "got %s", li.LineTax())
	assert.True(t, li.LineTotal().Equal(dec("39.66")))
}

func TestComputeTotalsMixedRates(t *testing.T) {
	items := []LineItem{
		item("10", "85.00", 19), // net 850.00, tax 161.50
		item("1", "120.00", 7),  // net 120.00, tax 8.40
		item("2", "40.00", 0),   // net 80.00, tax 0
	}

	totals, err := ComputeTotals(items)
	require.NoError(t, err)

	assert.True(t, totals.Net.Equal(dec("1050.00")), "net %s", totals.Net)
	assert.True(t, totals.Tax.Equal(dec("169.90")), "tax %s", totals.Tax)
	assert.True(t, totals.Total.Equal(dec("1219.90")), "total %s", totals.Total)
}

func TestComputeTotalsIsStable(t *testing.T) {
	items := []LineItem{
		item("0.5", "0.25", 19),
		item("3.33", "99.99", 7),
	}

	first, err := ComputeTotals(items)
	require.NoError(t, err)
	second, err := ComputeTotals(items)
	require.NoError(t, err)

	assert.True(t, first.Net.Equal(second.Net))
	assert.True(t, first.Tax.Equal(second.Tax))
	assert.True(t, first.Total.Equal(second.Total))
}

func TestComputeTotalsOrderInsensitive(t *testing.T) {
	items := []LineItem{
		item("0.5", "0.25", 19),
		item("3.33", "99.99", 7),
		item("10", "85.00", 19),
		item("2", "40.00", 0),
	}

	forward, err := ComputeTotals(items)
	require.NoError(t, err)

	reversed := make([]LineItem, len(items))
	for i, li := range items {
		reversed[len(items)-1-i] = li
	}
	backward, err := ComputeTotals(reversed)
	require.NoError(t, err)

	assert.True(t, forward.Net.Equal(backward.Net), "net %s vs %s", forward.Net, backward.Net)
	assert.True(t, forward.Tax.Equal(backward.Tax), "tax %s vs %s", forward.Tax, backward.Tax)
	assert.True(t, forward.Total.Equal(backward.Total), "total %s vs %s", forward.Total, backward.Total)

	rotated := append(items[2:], items[:2]...)
	shifted, err := ComputeTotals(rotated)
	require.NoError(t, err)
	assert.True(t, forward.Total.Equal(shifted.Total))
}

func TestComputeTotalsRejections(t *testing.T) {
	tests := []struct {
		name  string
		items []LineItem
	}{
		{"no items", nil},
		{"zero quantity", []LineItem{item("0", "10.00", 19)}},
		{"negative quantity", []LineItem{item("-1", "10.00", 19)}},
		{"negative price", []LineItem{item("1", "-10.00", 19)}},
		{"unknown tax rate", []LineItem{item("1", "10.00", 10)}},
		{"blank name", []LineItem{{Name: "  ", Quantity: dec("1"), UnitPrice: dec("1")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeTotals(tt.items)
			require.Error(t, err)
			assert.True(t, IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestComputeTotalsZeroPriceAllowed(t *testing.T) {
	totals, err := ComputeTotals([]LineItem{item("1", "0.00", 19)})
	require.NoError(t, err)
	assert.True(t, totals.Total.IsZero())
}

func TestQuotationIsExpired(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	tomorrow := now.AddDate(0, 0, 1)

	tests := []struct {
		name       string
		status     string
		validUntil *time.Time
		expired    bool
	}{
		{"sent past valid_until", QuotationStatusSent, &yesterday, true},
		{"sent still valid", QuotationStatusSent, &tomorrow, false},
		{"sent without valid_until", QuotationStatusSent, nil, false},
		{"draft past valid_until", QuotationStatusDraft, &yesterday, false},
		{"accepted past valid_until", QuotationStatusAccepted, &yesterday, false},
		{"rejected past valid_until", QuotationStatusRejected, &yesterday, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &Quotation{Status: tt.status, ValidUntil: tt.validUntil}
			assert.Equal(t, tt.expired, q.IsExpired(now))
			if tt.expired {
				assert.Equal(t, QuotationStatusExpired, q.DisplayStatus(now))
			} else {
				assert.Equal(t, tt.status, q.DisplayStatus(now))
			}
		})
	}
}

func TestQuotationIsConvertible(t *testing.T) {
	assert.False(t, (&Quotation{Status: QuotationStatusDraft}).IsConvertible())
	assert.True(t, (&Quotation{Status: QuotationStatusSent}).IsConvertible())
	assert.True(t, (&Quotation{Status: QuotationStatusAccepted}).IsConvertible())
	assert.False(t, (&Quotation{Status: QuotationStatusRejected}).IsConvertible())
}

func TestExpiredQuotationStaysConvertible(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -10)

	q := &Quotation{Status: QuotationStatusSent, ValidUntil: &past}
	assert.True(t, q.IsExpired(now))
	assert.True(t, q.IsConvertible())
}

func TestInvoiceIsOverdue(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	tomorrow := now.AddDate(0, 0, 1)

	tests := []struct {
		name    string
		status  string
		dueDate *time.Time
		overdue bool
	}{
		{"sent past due", InvoiceStatusSent, &yesterday, true},
		{"draft past due", InvoiceStatusDraft, &yesterday, true},
		{"sent not yet due", InvoiceStatusSent, &tomorrow, false},
		{"sent without due date", InvoiceStatusSent, nil, false},
		{"paid past due", InvoiceStatusPaid, &yesterday, false},
		{"cancelled past due", InvoiceStatusCancelled, &yesterday, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &Invoice{Status: tt.status, DueDate: tt.dueDate}
			assert.Equal(t, tt.overdue, inv.IsOverdue(now))
			if tt.overdue {
				assert.Equal(t, InvoiceStatusOverdue, inv.DisplayStatus(now))
			} else {
				assert.Equal(t, tt.status, inv.DisplayStatus(now))
			}
		})
	}
}

func TestRecurringInvoiceIsDue(t *testing.T) {
	asOf := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	before := asOf.AddDate(0, 0, -5)
	after := asOf.AddDate(0, 0, 5)

	active := RecurringInvoice{IsActive: true, NextInvoiceDate: before}
	assert.True(t, active.IsDue(asOf))

	onTheDay := RecurringInvoice{IsActive: true, NextInvoiceDate: asOf}
	assert.True(t, onTheDay.IsDue(asOf))

	paused := RecurringInvoice{IsActive: false, NextInvoiceDate: before}
	assert.False(t, paused.IsDue(asOf))

	future := RecurringInvoice{IsActive: true, NextInvoiceDate: after}
	assert.False(t, future.IsDue(asOf))

	ended := RecurringInvoice{IsActive: true, NextInvoiceDate: before, EndDate: &before}
	assert.True(t, ended.IsDue(asOf), "next date on end date is still due")

	pastEnd := before.AddDate(0, 0, -1)
	expired := RecurringInvoice{IsActive: true, NextInvoiceDate: before, EndDate: &pastEnd}
	assert.False(t, expired.IsDue(asOf))
}

func TestRecurringInvoiceCreateRequestValidate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	valid := RecurringInvoiceCreateRequest{
		Title:         "Hosting",
		ProjectID:     "p1",
		IntervalType:  IntervalMonthly,
		IntervalValue: 1,
		StartDate:     start,
		LineItems:     []LineItemRequest{{Name: "Hosting", Quantity: dec("1"), UnitPrice: dec("49.00"), TaxRate: 19}},
	}
	require.NoError(t, valid.Validate())

	badInterval := valid
	badInterval.IntervalType = "weekly"
	assert.True(t, IsValidation(badInterval.Validate()))

	badValue := valid
	badValue.IntervalValue = 0
	assert.True(t, IsValidation(badValue.Validate()))

	endBeforeStart := valid
	end := start.AddDate(0, 0, -1)
	endBeforeStart.EndDate = &end
	assert.True(t, IsValidation(endBeforeStart.Validate()))
}

func TestQuotationCreateRequestStatus(t *testing.T) {
	base := QuotationCreateRequest{
		QuotationNumber: "Q-2024-001",
		Title:           "Website relaunch",
		ProjectID:       "p1",
		LineItems:       []LineItemRequest{{Name: "Design", Quantity: dec("1"), UnitPrice: dec("100"), TaxRate: 19}},
	}

	for _, status := range []string{"", QuotationStatusDraft, QuotationStatusSent} {
		req := base
		req.Status = status
		assert.NoError(t, req.Validate(), "status %q", status)
	}
	for _, status := range []string{QuotationStatusAccepted, QuotationStatusRejected, "bogus"} {
		req := base
		req.Status = status
		assert.True(t, IsValidation(req.Validate()), "status %q", status)
	}
}
