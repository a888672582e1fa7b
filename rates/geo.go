package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type geoResponse struct {
	Status   string `json:"status"`
	Currency string `json:"currency"`
}

// Locator resolves a client IP to the currency used where it is located.
type Locator struct {
	baseURL    string
	httpClient *http.Client
}

func NewLocator(baseURL string, timeout time.Duration) *Locator {
	return &Locator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (l *Locator) Currency(ctx context.Context, ip string) (string, error) {
	endpoint := fmt.Sprintf("%s/json/%s?fields=status,currency", l.baseURL, url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("geo lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geo lookup returned status %d", resp.StatusCode)
	}

	var body geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode geo response: %w", err)
	}
	if body.Status != "success" || body.Currency == "" {
		return "", fmt.Errorf("geo lookup unresolved for %s", ip)
	}
	return strings.ToUpper(body.Currency), nil
}
