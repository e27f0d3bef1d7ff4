package billing

import (
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Strategy resolves the VAT rate for one jurisdiction.
type Strategy interface {
	Country() string
	Rate() decimal.Decimal
}

type fixedRateStrategy struct {
	country string
	rate    decimal.Decimal
}

func (s fixedRateStrategy) Country() string       { return s.country }
func (s fixedRateStrategy) Rate() decimal.Decimal { return s.rate }

var fallbackVatRate = decimal.New(20, -2)

// supported jurisdictions and their fixed rates
var vatRates = map[string]decimal.Decimal{
	"FR": decimal.New(20, -2),
	"BE": decimal.New(21, -2),
	"PT": decimal.New(23, -2),
}

// StrategyFactory maps country codes to VAT strategies. Unknown countries
// resolve to a fallback rate with a warning; a rate gap must never abort
// invoice generation.
type StrategyFactory struct {
	logger *zap.Logger
}

func NewStrategyFactory(logger *zap.Logger) *StrategyFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StrategyFactory{logger: logger}
}

func (f *StrategyFactory) StrategyFor(countryCode string) Strategy {
	country := strings.ToUpper(strings.TrimSpace(countryCode))
	if rate, ok := vatRates[country]; ok {
		return fixedRateStrategy{country: country, rate: rate}
	}

	f.logger.Warn("no vat rate configured for country, using fallback",
		zap.String("country", country),
		zap.String("fallback_rate", fallbackVatRate.String()),
	)
	return fixedRateStrategy{country: country, rate: fallbackVatRate}
}
