package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ModulePricing is one active module billed to a financer: unit price per
// beneficiary plus the activation window used for prorata.
type ModulePricing struct {
	ModuleID            string
	Label               map[string]string
	PricePerBeneficiary int64
	ActivatedAt         *time.Time
	DeactivatedAt       *time.Time
}

// Recipient is the already-resolved snapshot of a billable entity for one
// billing period, as provided by the tenant directory: identity, jurisdiction
// and pricing inputs. Beneficiary headcount arrives pre-counted.
type Recipient struct {
	Type              RecipientType
	ID                string
	Name              string
	Country           string
	Currency          string
	VatRateOverride   *decimal.Decimal
	CorePackagePrice  int64
	BeneficiaryCount  int
	ContractStartDate *time.Time
	Modules           []ModulePricing
}

// LockKey builds the mutual-exclusion key guarding invoice generation for
// this recipient in a given batch month.
func (r Recipient) LockKey(monthYear string) string {
	return "invoicing:lock:" + string(r.Type) + ":" + r.ID + ":" + monthYear
}
