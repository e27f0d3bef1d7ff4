package repository

import (
	"context"
	"fmt"

	"github.com/gdeblander/billing-engine/internal/domain"
	"gorm.io/gorm"
)

const statusActive = "active"

// RecipientFilter narrows the recipient set resolved for a batch run.
type RecipientFilter struct {
	DivisionID *string
	FinancerID *string
}

// RecipientDirectory resolves the billable recipients for a period: active
// divisions and financers with their jurisdiction and pricing snapshot.
type RecipientDirectory interface {
	ActiveRecipients(ctx context.Context, filter RecipientFilter) ([]domain.Recipient, error)
}

type GormRecipientDirectory struct {
	db *gorm.DB
}

func NewGormRecipientDirectory(db *gorm.DB) *GormRecipientDirectory {
	return &GormRecipientDirectory{db: db}
}

// ActiveRecipients returns financers first, then divisions, so a division's
// invoice lands after its financers' in a sequential run. A division's
// beneficiary headcount is the sum over its active financers.
func (d *GormRecipientDirectory) ActiveRecipients(ctx context.Context, filter RecipientFilter) ([]domain.Recipient, error) {
	financerQuery := d.db.WithContext(ctx).Where("status = ?", statusActive)
	if filter.FinancerID != nil {
		financerQuery = financerQuery.Where("id = ?", *filter.FinancerID)
	}
	if filter.DivisionID != nil {
		financerQuery = financerQuery.Where("division_id = ?", *filter.DivisionID)
	}

	var financers []FinancerModel
	if err := financerQuery.Order("created_at ASC").Find(&financers).Error; err != nil {
		return nil, fmt.Errorf("failed to load financers: %w", err)
	}

	divisionByID := make(map[string]*DivisionModel)
	loadDivision := func(id string) (*DivisionModel, error) {
		if div, ok := divisionByID[id]; ok {
			return div, nil
		}
		var div DivisionModel
		if err := d.db.WithContext(ctx).First(&div, "id = ?", id).Error; err != nil {
			return nil, fmt.Errorf("failed to load division %s: %w", id, err)
		}
		divisionByID[id] = &div
		return &div, nil
	}

	recipients := make([]domain.Recipient, 0, len(financers)+1)
	beneficiariesByDivision := make(map[string]int)

	for i := range financers {
		fin := &financers[i]
		division, err := loadDivision(fin.DivisionID)
		if err != nil {
			return nil, err
		}
		beneficiariesByDivision[fin.DivisionID] += fin.BeneficiaryCount

		modules, err := d.activeModules(ctx, fin.ID)
		if err != nil {
			return nil, err
		}

		corePrice := division.CorePackagePrice
		if fin.CorePackagePrice != nil {
			corePrice = *fin.CorePackagePrice
		}

		recipients = append(recipients, domain.Recipient{
			Type:              domain.RecipientFinancer,
			ID:                fin.ID,
			Name:              fin.Name,
			Country:           fin.Country,
			Currency:          fin.Currency,
			VatRateOverride:   fin.VatRateOverride,
			CorePackagePrice:  corePrice,
			BeneficiaryCount:  fin.BeneficiaryCount,
			ContractStartDate: fin.ContractStartDate,
			Modules:           modules,
		})
	}

	// A financer-only run does not invoice the enclosing division.
	if filter.FinancerID != nil {
		return recipients, nil
	}

	divisionQuery := d.db.WithContext(ctx).Where("status = ?", statusActive)
	if filter.DivisionID != nil {
		divisionQuery = divisionQuery.Where("id = ?", *filter.DivisionID)
	}

	var divisions []DivisionModel
	if err := divisionQuery.Order("created_at ASC").Find(&divisions).Error; err != nil {
		return nil, fmt.Errorf("failed to load divisions: %w", err)
	}

	for i := range divisions {
		div := &divisions[i]
		recipients = append(recipients, domain.Recipient{
			Type:              domain.RecipientDivision,
			ID:                div.ID,
			Name:              div.Name,
			Country:           div.Country,
			Currency:          div.Currency,
			VatRateOverride:   div.VatRateOverride,
			CorePackagePrice:  div.CorePackagePrice,
			BeneficiaryCount:  beneficiariesByDivision[div.ID],
			ContractStartDate: div.ContractStartDate,
		})
	}

	return recipients, nil
}

func (d *GormRecipientDirectory) activeModules(ctx context.Context, financerID string) ([]domain.ModulePricing, error) {
	var pivots []FinancerModuleModel
	err := d.db.WithContext(ctx).
		Where("financer_id = ? AND active = ?", financerID, true).
		Order("created_at ASC").
		Find(&pivots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load modules for financer %s: %w", financerID, err)
	}

	modules := make([]domain.ModulePricing, 0, len(pivots))
	for i := range pivots {
		pivot := &pivots[i]
		modules = append(modules, domain.ModulePricing{
			ModuleID:            pivot.ModuleID,
			Label:               map[string]string{"en": pivot.LabelEn, "fr": pivot.LabelFr},
			PricePerBeneficiary: pivot.PricePerBeneficiary,
			ActivatedAt:         pivot.ActivatedAt,
			DeactivatedAt:       pivot.DeactivatedAt,
		})
	}
	return modules, nil
}
