package display

import (
	"context"
	"fmt"
	"strings"

	"github.com/AlexJ236/Impulso-Digital/middleware"
	"github.com/AlexJ236/Impulso-Digital/rates"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var symbols = map[string]string{
	"CLP": "$",
	"PEN": "S/",
	"MXN": "$",
	"ARS": "$",
	"COP": "$",
	"USD": "$",
	"EUR": "€",
}

// NormalizeCurrency upper-cases code and treats an empty code as USD.
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return rates.BaseCurrency
	}
	return code
}

// Format renders a USD price, adding a rounded local estimate when table has
// a rate for currency.
func Format(usd decimal.Decimal, currency string, table rates.Table) string {
	base := fmt.Sprintf("$%s USD", usd.StringFixed(2))

	currency = NormalizeCurrency(currency)
	if currency == rates.BaseCurrency {
		return base
	}
	rate, ok := table[currency]
	if !ok {
		return base
	}

	symbol, ok := symbols[currency]
	if !ok {
		symbol = currency
	}
	local := usd.Mul(rate).Round(0)
	return fmt.Sprintf("%s (approx. %s%s %s)", base, symbol, groupThousands(local.String()), currency)
}

// groupThousands inserts "." between groups of three digits.
func groupThousands(digits string) string {
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	if len(digits) <= 3 {
		return sign + digits
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return sign + b.String()
}

type TableSource interface {
	Table(ctx context.Context) (rates.Table, error)
}

type RateCache interface {
	GetRates(ctx context.Context, base string) (rates.Table, bool)
	SetRates(ctx context.Context, base string, table rates.Table) error
}

// Estimator serves display strings. The rate table comes from cache when
// one is configured and is refetched after the cache entry expires.
type Estimator struct {
	source TableSource
	cache  RateCache
	logger *zap.Logger
}

// NewEstimator accepts a nil cache, in which case every estimate fetches.
func NewEstimator(source TableSource, cache RateCache, logger *zap.Logger) *Estimator {
	return &Estimator{source: source, cache: cache, logger: logger}
}

func (e *Estimator) Estimate(ctx context.Context, usd decimal.Decimal, currency string) string {
	currency = NormalizeCurrency(currency)
	if currency == rates.BaseCurrency {
		return Format(usd, currency, nil)
	}

	table, err := e.table(ctx)
	if err != nil {
		middleware.RecordRateLookup("fallback")
		e.logger.Warn("Showing USD only, rate table unavailable",
			zap.String("currency", currency),
			zap.Error(err),
		)
		return Format(usd, rates.BaseCurrency, nil)
	}
	middleware.RecordRateLookup("success")
	return Format(usd, currency, table)
}

func (e *Estimator) table(ctx context.Context) (rates.Table, error) {
	if e.cache != nil {
		if table, ok := e.cache.GetRates(ctx, rates.BaseCurrency); ok {
			return table, nil
		}
	}

	table, err := e.source.Table(ctx)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.SetRates(ctx, rates.BaseCurrency, table); err != nil {
			e.logger.Warn("Failed to cache rate table", zap.Error(err))
		}
	}
	return table, nil
}
