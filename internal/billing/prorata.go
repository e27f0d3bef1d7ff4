package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const prorataCacheTTL = time.Hour

// Cache memoizes prorata results. Lookups are best-effort: a miss or a cache
// error only costs a recomputation.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, ttl time.Duration)
}

// Prorata is the fraction of a billing period actually charged, with the day
// counts it was derived from.
type Prorata struct {
	Percentage decimal.Decimal `json:"percentage"`
	Days       int             `json:"days"`
	TotalDays  int             `json:"totalDays"`
}

// FullPeriod returns a prorata of 1 spanning the whole period.
func FullPeriod(periodStart, periodEnd time.Time) Prorata {
	days := daysInclusive(periodStart, periodEnd)
	return Prorata{Percentage: decimal.NewFromInt(1), Days: days, TotalDays: days}
}

// ProrataCalculator computes partial-period fractions with optional
// memoization.
type ProrataCalculator struct {
	cache  Cache
	logger *zap.Logger
}

func NewProrataCalculator(cache Cache, logger *zap.Logger) *ProrataCalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProrataCalculator{cache: cache, logger: logger}
}

// ContractProrata charges the fraction of the period a contract was active:
// 1 when the contract predates the period, 0 when it starts after the period
// ends, otherwise active days over total days (inclusive counts).
func (c *ProrataCalculator) ContractProrata(ctx context.Context, contractDate, periodStart, periodEnd time.Time) Prorata {
	key := fmt.Sprintf("prorata:contract:%s:%s:%s",
		contractDate.Format(time.DateOnly),
		periodStart.Format(time.DateOnly),
		periodEnd.Format(time.DateOnly),
	)
	if cached, ok := c.cachedProrata(ctx, key); ok {
		return cached
	}

	totalDays := daysInclusive(periodStart, periodEnd)
	var result Prorata
	switch {
	case !contractDate.After(periodStart):
		result = Prorata{Percentage: decimal.NewFromInt(1), Days: totalDays, TotalDays: totalDays}
	case contractDate.After(periodEnd):
		result = Prorata{Percentage: decimal.Zero, Days: 0, TotalDays: totalDays}
	default:
		activeDays := daysInclusive(contractDate, periodEnd)
		result = Prorata{Percentage: ratio(activeDays, totalDays), Days: activeDays, TotalDays: totalDays}
	}

	c.storeProrata(ctx, key, result)
	return result
}

// ModuleProrata charges the overlap between a module's activation window and
// the billing period. A nil activation bound means active since before the
// period; a nil deactivation bound means still active.
func (c *ProrataCalculator) ModuleProrata(ctx context.Context, activatedAt, deactivatedAt *time.Time, periodStart, periodEnd time.Time) Prorata {
	key := fmt.Sprintf("prorata:module:%s:%s:%s:%s",
		formatOptionalDate(activatedAt),
		formatOptionalDate(deactivatedAt),
		periodStart.Format(time.DateOnly),
		periodEnd.Format(time.DateOnly),
	)
	if cached, ok := c.cachedProrata(ctx, key); ok {
		return cached
	}

	totalDays := daysInclusive(periodStart, periodEnd)

	effectiveStart := periodStart
	if activatedAt != nil && activatedAt.After(periodStart) {
		effectiveStart = *activatedAt
	}
	effectiveEnd := periodEnd
	if deactivatedAt != nil && deactivatedAt.Before(periodEnd) {
		effectiveEnd = *deactivatedAt
	}

	var result Prorata
	if effectiveStart.After(effectiveEnd) || effectiveStart.After(periodEnd) || effectiveEnd.Before(periodStart) {
		result = Prorata{Percentage: decimal.Zero, Days: 0, TotalDays: totalDays}
	} else {
		activeDays := daysInclusive(effectiveStart, effectiveEnd)
		result = Prorata{Percentage: ratio(activeDays, totalDays), Days: activeDays, TotalDays: totalDays}
	}

	c.storeProrata(ctx, key, result)
	return result
}

func (c *ProrataCalculator) cachedProrata(ctx context.Context, key string) (Prorata, bool) {
	if c.cache == nil {
		return Prorata{}, false
	}
	raw, ok := c.cache.Get(ctx, key)
	if !ok {
		return Prorata{}, false
	}
	var result Prorata
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.logger.Warn("discarding malformed prorata cache entry",
			zap.String("key", key),
			zap.Error(err),
		)
		return Prorata{}, false
	}
	return result, true
}

func (c *ProrataCalculator) storeProrata(ctx context.Context, key string, result Prorata) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	c.cache.Set(ctx, key, string(raw), prorataCacheTTL)
}

// daysInclusive counts calendar days from start to end, both included.
// Inputs are normalized to UTC dates.
func daysInclusive(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if s.After(e) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}

// ratio quantizes numerator/denominator to two decimal places and clamps the
// result into [0, 1].
func ratio(numerator, denominator int) decimal.Decimal {
	if denominator <= 0 {
		return decimal.Zero
	}

	value := decimal.NewFromInt(int64(numerator)).
		DivRound(decimal.NewFromInt(int64(denominator)), 6).
		Round(2)

	one := decimal.NewFromInt(1)
	if value.GreaterThan(one) {
		return one
	}
	if value.IsNegative() {
		return decimal.Zero
	}
	return value
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}
