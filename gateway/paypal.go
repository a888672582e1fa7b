package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/AlexJ236/Impulso-Digital/config"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const intentCapture = "CAPTURE"

var (
	ErrMissingCredentials = errors.New("paypal client credentials are not configured")
	ErrNoAccessToken      = errors.New("paypal token response carried no access token")
)

// UpstreamError carries a non-success PayPal response. Body is the raw
// response text and must never be echoed to a buyer.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("paypal %s returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// zeroDecimalCurrencies are the PayPal currencies that reject fractional amounts.
var zeroDecimalCurrencies = map[string]bool{"HUF": true, "JPY": true, "TWD": true}

func currencyPlaces(currency string) int32 {
	if zeroDecimalCurrencies[currency] {
		return 0
	}
	return 2
}

// RoundAmount rounds amount to the precision PayPal accepts for currency.
func RoundAmount(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(currencyPlaces(currency))
}

// FormatAmount renders amount the way PayPal expects it for currency.
func FormatAmount(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(currencyPlaces(currency))
}

type createOrderPayload struct {
	Intent        string                       `json:"intent"`
	PurchaseUnits []paypal.PurchaseUnitRequest `json:"purchase_units"`
}

// PayPal talks to the Orders v2 API. Every operation exchanges the client
// credentials for a fresh token; no token outlives the call that fetched it.
type PayPal struct {
	clientID   string
	secret     string
	apiBase    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewPayPal(cfg config.PayPalConfig, timeout time.Duration, logger *zap.Logger) *PayPal {
	return &PayPal{
		clientID:   cfg.ClientID,
		secret:     cfg.ClientSecret,
		apiBase:    cfg.APIBase,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// AccessToken performs the client_credentials exchange.
func (p *PayPal) AccessToken(ctx context.Context) (string, error) {
	_, token, err := p.authorize(ctx)
	return token, err
}

func (p *PayPal) authorize(ctx context.Context) (*paypal.Client, string, error) {
	if p.clientID == "" || p.secret == "" {
		return nil, "", ErrMissingCredentials
	}

	client, err := paypal.NewClient(p.clientID, p.secret, p.apiBase)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create paypal client: %w", err)
	}
	client.Client = p.httpClient

	resp, err := client.GetAccessToken(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to obtain access token: %w", err)
	}
	if resp == nil || resp.Token == "" {
		return nil, "", ErrNoAccessToken
	}
	return client, resp.Token, nil
}

// CreateOrder creates a single-unit CAPTURE order and returns PayPal's order document verbatim.
func (p *PayPal) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, description string) (json.RawMessage, error) {
	client, token, err := p.authorize(ctx)
	if err != nil {
		return nil, err
	}

	payload := createOrderPayload{
		Intent: intentCapture,
		PurchaseUnits: []paypal.PurchaseUnitRequest{
			{
				Amount: &paypal.PurchaseUnitAmount{
					Currency: currency,
					Value:    FormatAmount(amount, currency),
				},
				Description: description,
			},
		},
	}

	return p.send(ctx, client, token, "create order", fmt.Sprintf("%s/v2/checkout/orders", p.apiBase), payload)
}

// CaptureOrder captures a previously approved order. The status inside the
// returned document is left for the caller to interpret.
func (p *PayPal) CaptureOrder(ctx context.Context, orderID string) (json.RawMessage, error) {
	client, token, err := p.authorize(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v2/checkout/orders/%s/capture", p.apiBase, url.PathEscape(orderID))
	return p.send(ctx, client, token, "capture order", endpoint, struct{}{})
}

func (p *PayPal) send(ctx context.Context, client *paypal.Client, token, op, endpoint string, payload any) (json.RawMessage, error) {
	req, err := client.NewRequest(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal %s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("paypal %s returned a non-JSON body", op)
	}

	p.logger.Debug("PayPal call succeeded", zap.String("op", op), zap.Int("status", resp.StatusCode))
	return json.RawMessage(body), nil
}
