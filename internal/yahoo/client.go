// Package yahoo provides a client for the Yahoo Finance quote and chart APIs.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ct-trading/moverwatch/internal/models"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

// ClientConfig holds transport tuning knobs.
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
}

// Client provides access to the Yahoo Finance API.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Yahoo Finance client with a bounded request timeout.
func NewClient(baseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	return &Client{
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// quoteResult mirrors one entry of the v7 quote endpoint payload.
type quoteResult struct {
	Symbol                     string  `json:"symbol"`
	ShortName                  string  `json:"shortName"`
	RegularMarketPrice         float64 `json:"regularMarketPrice"`
	RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
	RegularMarketVolume        int64   `json:"regularMarketVolume"`
	AverageDailyVolume10Day    int64   `json:"averageDailyVolume10Day"`
}

type quoteEnvelope struct {
	QuoteResponse struct {
		Result []quoteResult   `json:"result"`
		Error  json.RawMessage `json:"error"`
	} `json:"quoteResponse"`
}

// GetQuote fetches the current snapshot for one symbol: last price, previous
// close, last volume, and the trailing 10-day average volume.
func (c *Client) GetQuote(ctx context.Context, symbol string) (models.Quote, error) {
	u, err := url.Parse(c.baseURL + "/v7/finance/quote")
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("symbols", symbol)
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	var envelope quoteEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return models.Quote{}, fmt.Errorf("failed to decode quote for %s: %w", symbol, err)
	}
	if len(envelope.QuoteResponse.Result) == 0 {
		return models.Quote{}, fmt.Errorf("no quote data for %s", symbol)
	}

	r := envelope.QuoteResponse.Result[0]
	quote := models.Quote{
		Symbol:        symbol,
		Name:          r.ShortName,
		LastPrice:     r.RegularMarketPrice,
		PreviousClose: r.RegularMarketPreviousClose,
		LastVolume:    r.RegularMarketVolume,
		AverageVolume: r.AverageDailyVolume10Day,
	}
	if err := quote.Validate(); err != nil {
		return models.Quote{}, fmt.Errorf("unusable quote for %s: %w", symbol, err)
	}
	return quote, nil
}

type chartEnvelope struct {
	Chart struct {
		Result []struct {
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error json.RawMessage `json:"error"`
	} `json:"chart"`
}

// GetHistory fetches up to days daily closing prices for symbol, oldest
// first. Null bars (holidays, halts) are skipped.
func (c *Client) GetHistory(ctx context.Context, symbol string, days int) ([]float64, error) {
	if days <= 0 {
		days = 2
	}
	u, err := url.Parse(c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("range", fmt.Sprintf("%dd", days))
	q.Set("interval", "1d")
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	var envelope chartEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode history for %s: %w", symbol, err)
	}
	if len(envelope.Chart.Result) == 0 || len(envelope.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no history data for %s", symbol)
	}

	var closes []float64
	for _, bar := range envelope.Chart.Result[0].Indicators.Quote[0].Close {
		if bar != nil {
			closes = append(closes, *bar)
		}
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("no usable closes for %s", symbol)
	}
	return closes, nil
}

// doRequest issues a GET with linear-backoff retry on transport errors and
// 5xx responses. 4xx responses fail immediately; retrying them is pointless.
func (c *Client) doRequest(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelayBase * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", "moverwatch/1.0")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			lastErr = fmt.Errorf("server returned %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return resp, nil
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries, lastErr)
}
