package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BaseCurrency anchors every table; it never appears as a key.
const BaseCurrency = "USD"

var ErrRateUnavailable = errors.New("exchange rate unavailable")

// Table maps a currency code to how many units of it one USD buys.
type Table map[string]decimal.Decimal

type latestResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Source queries a frankfurter-style latest-rates endpoint. Failures are
// always reported as ErrRateUnavailable so callers can fall back to USD.
type Source struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewSource(baseURL string, timeout time.Duration, logger *zap.Logger) *Source {
	s := &Source{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "rates",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return s
}

// Table fetches the full USD rate table.
func (s *Source) Table(ctx context.Context) (Table, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
		}
		return nil, err
	}
	return result.(Table), nil
}

// Rate returns the USD→currency multiplier.
func (s *Source) Rate(ctx context.Context, currency string) (decimal.Decimal, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == BaseCurrency {
		return decimal.NewFromInt(1), nil
	}

	table, err := s.Table(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	rate, ok := table[currency]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no rate for %q", ErrRateUnavailable, currency)
	}
	return rate, nil
}

func (s *Source) fetch(ctx context.Context) (Table, error) {
	url := fmt.Sprintf("%s/latest?from=%s", s.baseURL, BaseCurrency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: rate source returned status %d", ErrRateUnavailable, resp.StatusCode)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrRateUnavailable, err)
	}
	if len(body.Rates) == 0 {
		return nil, fmt.Errorf("%w: empty rate table", ErrRateUnavailable)
	}

	s.logger.Debug("Fetched exchange rates", zap.String("date", body.Date), zap.Int("count", len(body.Rates)))
	return Table(body.Rates), nil
}
