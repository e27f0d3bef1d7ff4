package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdeblander/billing-engine/internal/domain"
	"github.com/shopspring/decimal"
)

const defaultCurrency = "EUR"

// Builder is a stepwise accumulator for one invoice. Inputs are collected
// through the chainable setters and validated in Build; nothing is clamped
// silently and nothing is persisted.
type Builder struct {
	rates *StrategyFactory

	recipientType     domain.RecipientType
	recipientID       string
	recipientConflict bool
	periodStart       time.Time
	periodEnd         time.Time
	periodSet         bool
	country           string
	currency          string
	vatOverride       *decimal.Decimal
	items             []pendingItem
}

type pendingItem struct {
	itemType      domain.ItemType
	moduleID      *string
	adjustmentID  *string
	label         map[string]string
	beneficiaries *int
	quantity      int
	unitPriceHtva int64
	prorata       Prorata
}

func NewBuilder(rates *StrategyFactory) *Builder {
	return &Builder{rates: rates, currency: defaultCurrency}
}

func (b *Builder) ForDivision(id string) *Builder {
	return b.setRecipient(domain.RecipientDivision, id)
}

func (b *Builder) ForFinancer(id string) *Builder {
	return b.setRecipient(domain.RecipientFinancer, id)
}

func (b *Builder) setRecipient(rt domain.RecipientType, id string) *Builder {
	if b.recipientID != "" {
		b.recipientConflict = true
		return b
	}
	b.recipientType = rt
	b.recipientID = strings.TrimSpace(id)
	return b
}

func (b *Builder) ForPeriod(start, end time.Time) *Builder {
	b.periodStart = start
	b.periodEnd = end
	b.periodSet = true
	return b
}

func (b *Builder) WithCountry(countryCode string) *Builder {
	b.country = strings.ToUpper(strings.TrimSpace(countryCode))
	return b
}

func (b *Builder) WithCurrency(currency string) *Builder {
	if trimmed := strings.ToUpper(strings.TrimSpace(currency)); trimmed != "" {
		b.currency = trimmed
	}
	return b
}

// WithVatRate overrides the country-resolved VAT rate, e.g. for recipients
// with a contractual rate.
func (b *Builder) WithVatRate(rate decimal.Decimal) *Builder {
	b.vatOverride = &rate
	return b
}

func (b *Builder) AddCorePackageItem(unitPriceHtva int64, quantity int, prorata Prorata, label map[string]string, beneficiaries int) *Builder {
	b.items = append(b.items, pendingItem{
		itemType:      domain.ItemCorePackage,
		label:         label,
		beneficiaries: &beneficiaries,
		quantity:      quantity,
		unitPriceHtva: unitPriceHtva,
		prorata:       prorata,
	})
	return b
}

func (b *Builder) AddModuleItem(moduleID string, unitPriceHtva int64, quantity int, prorata Prorata, label map[string]string, beneficiaries int) *Builder {
	id := strings.TrimSpace(moduleID)
	b.items = append(b.items, pendingItem{
		itemType:      domain.ItemModule,
		moduleID:      &id,
		label:         label,
		beneficiaries: &beneficiaries,
		quantity:      quantity,
		unitPriceHtva: unitPriceHtva,
		prorata:       prorata,
	})
	return b
}

// AddCreditAdjustment appends a credit line reducing the invoice. Amount is
// positive minor units; the line's subtotal is the negated amount and its VAT
// follows the negative base.
func (b *Builder) AddCreditAdjustment(adjustmentID string, amount int64, label map[string]string) *Builder {
	id := strings.TrimSpace(adjustmentID)
	prorata := Prorata{Percentage: decimal.NewFromInt(1)}
	b.items = append(b.items, pendingItem{
		itemType:      domain.ItemCreditAdjustment,
		adjustmentID:  &id,
		label:         label,
		quantity:      1,
		unitPriceHtva: -amount,
		prorata:       prorata,
	})
	return b
}

// Build validates the accumulated inputs and computes every line and the
// invoice totals. Validation failures wrap domain.ErrValidation and identify
// the offending item; values are never clamped.
func (b *Builder) Build() (*domain.CreateInvoice, error) {
	if b.recipientConflict {
		return nil, fmt.Errorf("%w: invoice recipient set more than once", domain.ErrValidation)
	}
	if b.recipientID == "" {
		return nil, fmt.Errorf("%w: invoice recipient is required", domain.ErrValidation)
	}
	if !b.periodSet {
		return nil, fmt.Errorf("%w: billing period is required", domain.ErrValidation)
	}
	if b.periodEnd.Before(b.periodStart) {
		return nil, fmt.Errorf("%w: billing period end precedes start", domain.ErrValidation)
	}
	if len(b.items) == 0 {
		return nil, fmt.Errorf("%w: invoice requires at least one item", domain.ErrValidation)
	}

	vatRate := b.resolveVatRate()

	invoice := &domain.CreateInvoice{
		RecipientType:      b.recipientType,
		RecipientID:        b.recipientID,
		BillingPeriodStart: b.periodStart,
		BillingPeriodEnd:   b.periodEnd,
		Currency:           b.currency,
		VatRate:            vatRate,
		Items:              make([]domain.CreateInvoiceItem, 0, len(b.items)),
	}

	one := decimal.NewFromInt(1)
	for i, item := range b.items {
		if err := validateItem(i, item, one); err != nil {
			return nil, err
		}

		subtotal := ItemSubtotal(item.unitPriceHtva, item.quantity, item.prorata.Percentage)
		vatAmount := VatOf(subtotal, vatRate)

		computed := domain.CreateInvoiceItem{
			ItemType:           item.itemType,
			ModuleID:           item.moduleID,
			AdjustmentID:       item.adjustmentID,
			Label:              item.label,
			BeneficiariesCount: item.beneficiaries,
			Quantity:           item.quantity,
			UnitPriceHtva:      item.unitPriceHtva,
			ProrataPercentage:  item.prorata.Percentage,
			SubtotalHtva:       subtotal,
			VatRate:            vatRate,
			VatAmount:          vatAmount,
			TotalTtc:           subtotal + vatAmount,
		}
		if item.prorata.TotalDays > 0 {
			days := item.prorata.Days
			totalDays := item.prorata.TotalDays
			computed.ProrataDays = &days
			computed.TotalDays = &totalDays
		}

		invoice.Items = append(invoice.Items, computed)
		invoice.SubtotalHtva += subtotal
		invoice.VatAmount += vatAmount
		invoice.TotalTtc += subtotal + vatAmount
	}

	return invoice, nil
}

func (b *Builder) resolveVatRate() decimal.Decimal {
	if b.vatOverride != nil {
		return *b.vatOverride
	}
	if b.rates == nil {
		return fallbackVatRate
	}
	return b.rates.StrategyFor(b.country).Rate()
}

func validateItem(index int, item pendingItem, one decimal.Decimal) error {
	if item.quantity < 0 {
		return fmt.Errorf("%w: item %d (%s): quantity must be non-negative, got %d",
			domain.ErrValidation, index, item.itemType, item.quantity)
	}
	if item.prorata.Percentage.IsNegative() || item.prorata.Percentage.GreaterThan(one) {
		return fmt.Errorf("%w: item %d (%s): prorata percentage %s outside [0, 1]",
			domain.ErrValidation, index, item.itemType, item.prorata.Percentage)
	}
	if item.itemType == domain.ItemCreditAdjustment && item.unitPriceHtva >= 0 {
		return fmt.Errorf("%w: item %d (%s): credit amount must be positive",
			domain.ErrValidation, index, item.itemType)
	}
	return nil
}
