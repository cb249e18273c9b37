// Package broker wraps the OANDA v20 REST API. Read calls are retried with
// exponential backoff on transient failures; order placement and position
// closes are deliberately excluded from blind retry — see PlaceOrder.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"oanda-trading-bot/config"
)

// maxAttempts is the total attempt ceiling for retryable read calls.
const maxAttempts = 3

// ErrOrderStateUnknown marks a mutating call whose outcome is ambiguous:
// the request may or may not have reached the broker before the transport
// failed. Callers must reconcile against broker state before resubmitting;
// a blind retry here risks a duplicate order.
var ErrOrderStateUnknown = errors.New("order state unknown after transport failure")

// APIError is a non-2xx response from the OANDA API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("oanda api error: status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the response indicates a transient condition:
// rate limiting or one of the standard gateway-unavailable statuses.
func (e *APIError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Client is the live OANDA v20 REST client. Safe for concurrent use by all
// stream goroutines: the only mutable state is inside http.Client.
type Client struct {
	baseURL    string
	accountID  string
	token      string
	httpClient *http.Client
	retryDelay time.Duration
	logger     zerolog.Logger
}

// NewClient builds a client from the OANDA section of the config.
func NewClient(cfg config.OandaConfig, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL(),
		accountID:  cfg.AccountID,
		token:      cfg.APIToken,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

// GetCandles fetches candlestick data, ordered oldest-first.
func (c *Client) GetCandles(ctx context.Context, instrument, granularity string, count int) ([]Candle, error) {
	params := url.Values{}
	params.Set("granularity", granularity)
	params.Set("count", strconv.Itoa(count))
	params.Set("price", "M")

	body, err := c.getWithRetry(ctx, fmt.Sprintf("/v3/instruments/%s/candles", instrument), params)
	if err != nil {
		return nil, fmt.Errorf("error fetching candles for %s: %w", instrument, err)
	}

	var resp struct {
		Candles []struct {
			Time     string `json:"time"`
			Volume   int    `json:"volume"`
			Complete bool   `json:"complete"`
			Mid      struct {
				O float64 `json:"o,string"`
				H float64 `json:"h,string"`
				L float64 `json:"l,string"`
				C float64 `json:"c,string"`
			} `json:"mid"`
		} `json:"candles"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("error parsing candles: %w", err)
	}

	candles := make([]Candle, 0, len(resp.Candles))
	for _, raw := range resp.Candles {
		ts, err := time.Parse(time.RFC3339Nano, raw.Time)
		if err != nil {
			return nil, fmt.Errorf("error parsing candle time %q: %w", raw.Time, err)
		}
		candles = append(candles, Candle{
			Time:     ts,
			Open:     raw.Mid.O,
			High:     raw.Mid.H,
			Low:      raw.Mid.L,
			Close:    raw.Mid.C,
			Volume:   raw.Volume,
			Complete: raw.Complete,
		})
	}
	return candles, nil
}

// GetAccountSummary queries balance, equity (NAV), and open position count.
func (c *Client) GetAccountSummary(ctx context.Context) (*AccountSummary, error) {
	body, err := c.getWithRetry(ctx, fmt.Sprintf("/v3/accounts/%s/summary", c.accountID), nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching account summary: %w", err)
	}

	var resp struct {
		Account struct {
			ID                string  `json:"id"`
			Balance           float64 `json:"balance,string"`
			NAV               float64 `json:"NAV,string"`
			OpenPositionCount int     `json:"openPositionCount"`
			Currency          string  `json:"currency"`
		} `json:"account"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("error parsing account summary: %w", err)
	}

	return &AccountSummary{
		AccountID:         resp.Account.ID,
		Balance:           resp.Account.Balance,
		Equity:            resp.Account.NAV,
		OpenPositionCount: resp.Account.OpenPositionCount,
		Currency:          resp.Account.Currency,
	}, nil
}

// PlaceOrder submits a market order with stop-loss and take-profit on fill.
//
// Retry policy differs from the read calls on purpose. A rejected status
// (429/5xx) means the broker did not accept the order, so those are retried
// with the same backoff as reads — and the same client extension ID, which
// OANDA rejects as a duplicate if the first submission did land. A transport
// failure, however, leaves the outcome ambiguous: the request may have been
// filled even though we never saw the response. That case returns
// ErrOrderStateUnknown immediately instead of resubmitting.
func (c *Client) PlaceOrder(ctx context.Context, order OrderRequest) (*OrderResponse, error) {
	clientID := uuid.NewString()
	payload := map[string]any{
		"order": map[string]any{
			"type":       "MARKET",
			"instrument": order.Instrument,
			"units":      strconv.Itoa(order.Units),
			"stopLossOnFill": map[string]string{
				"price": fmt.Sprintf("%.5f", order.StopLossPrice),
			},
			"takeProfitOnFill": map[string]string{
				"price": fmt.Sprintf("%.5f", order.TakeProfitPrice),
			},
			"clientExtensions": map[string]string{
				"id": clientID,
			},
		},
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error encoding order: %w", err)
	}

	path := fmt.Sprintf("/v3/accounts/%s/orders", c.accountID)
	var body []byte
	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		body, err = c.do(ctx, http.MethodPost, path, nil, reqBody)
		if err == nil {
			break
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s %s: %v", ErrOrderStateUnknown, order.Instrument, clientID, err)
		}
		if !apiErr.Retryable() || attempt >= maxAttempts {
			return nil, fmt.Errorf("error placing order: %w", err)
		}

		c.logger.Warn().
			Str("instrument", order.Instrument).
			Int("attempt", attempt).
			Int("status", apiErr.StatusCode).
			Dur("delay", delay).
			Msg("order rejected with transient status, retrying")
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}

	var resp struct {
		OrderFillTransaction struct {
			ID         string  `json:"id"`
			Instrument string  `json:"instrument"`
			Units      float64 `json:"units,string"`
			Price      float64 `json:"price,string"`
			Time       string  `json:"time"`
		} `json:"orderFillTransaction"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("error parsing order response: %w", err)
	}
	if resp.OrderFillTransaction.ID == "" {
		return nil, fmt.Errorf("order for %s was accepted but not filled", order.Instrument)
	}

	return &OrderResponse{
		OrderID:    resp.OrderFillTransaction.ID,
		Instrument: resp.OrderFillTransaction.Instrument,
		Units:      resp.OrderFillTransaction.Units,
		FillPrice:  resp.OrderFillTransaction.Price,
		FillTime:   resp.OrderFillTransaction.Time,
	}, nil
}

// ListOpenPositions returns all open per-instrument net positions.
func (c *Client) ListOpenPositions(ctx context.Context) ([]Position, error) {
	body, err := c.getWithRetry(ctx, fmt.Sprintf("/v3/accounts/%s/openPositions", c.accountID), nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching open positions: %w", err)
	}

	var resp struct {
		Positions []struct {
			Instrument   string `json:"instrument"`
			UnrealizedPL string `json:"unrealizedPL"`
			Long         struct {
				Units        string `json:"units"`
				AveragePrice string `json:"averagePrice"`
			} `json:"long"`
			Short struct {
				Units        string `json:"units"`
				AveragePrice string `json:"averagePrice"`
			} `json:"short"`
		} `json:"positions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("error parsing open positions: %w", err)
	}

	positions := make([]Position, 0, len(resp.Positions))
	for _, raw := range resp.Positions {
		longUnits := parseFloat(raw.Long.Units)
		shortUnits := parseFloat(raw.Short.Units)
		avg := parseFloat(raw.Long.AveragePrice)
		if longUnits == 0 && shortUnits != 0 {
			avg = parseFloat(raw.Short.AveragePrice)
		}
		positions = append(positions, Position{
			Instrument:    raw.Instrument,
			LongUnits:     longUnits,
			ShortUnits:    shortUnits,
			UnrealizedPnL: parseFloat(raw.UnrealizedPL),
			AveragePrice:  avg,
		})
	}
	return positions, nil
}

// ListOpenTrades returns all open trades on the account.
func (c *Client) ListOpenTrades(ctx context.Context) ([]Trade, error) {
	body, err := c.getWithRetry(ctx, fmt.Sprintf("/v3/accounts/%s/openTrades", c.accountID), nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching open trades: %w", err)
	}
	return parseTrades(body)
}

// ListClosedTrades returns up to count most recently closed trades.
func (c *Client) ListClosedTrades(ctx context.Context, count int) ([]Trade, error) {
	params := url.Values{}
	params.Set("state", "CLOSED")
	params.Set("count", strconv.Itoa(count))

	body, err := c.getWithRetry(ctx, fmt.Sprintf("/v3/accounts/%s/trades", c.accountID), params)
	if err != nil {
		return nil, fmt.Errorf("error fetching closed trades: %w", err)
	}
	return parseTrades(body)
}

// ClosePosition closes all units of the instrument's position. Mutating, so
// the PlaceOrder ambiguity rule applies: transport failures are not retried.
func (c *Client) ClosePosition(ctx context.Context, instrument string) error {
	reqBody, _ := json.Marshal(map[string]string{
		"longUnits":  "ALL",
		"shortUnits": "ALL",
	})

	path := fmt.Sprintf("/v3/accounts/%s/positions/%s/close", c.accountID, instrument)
	if _, err := c.do(ctx, http.MethodPut, path, nil, reqBody); err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) && ctx.Err() == nil {
			return fmt.Errorf("%w: close %s: %v", ErrOrderStateUnknown, instrument, err)
		}
		return fmt.Errorf("error closing position %s: %w", instrument, err)
	}
	return nil
}

// getWithRetry performs a GET with up to maxAttempts tries. Backoff doubles
// from the configured base delay, unjittered, so cycle timing stays
// predictable in tests and in the logs.
func (c *Client) getWithRetry(ctx context.Context, path string, params url.Values) ([]byte, error) {
	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		body, err := c.do(ctx, http.MethodGet, path, params, nil)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return nil, backoff.Permanent(err)
		}
		c.logger.Warn().
			Str("path", path).
			Int("attempt", attempt).
			Err(err).
			Msg("transient broker error, retrying")
		return nil, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0

	return backoff.RetryWithData(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, maxAttempts-1), ctx))
}

// do performs one HTTP request and returns the body, or *APIError on a
// non-2xx status.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func parseTrades(body []byte) ([]Trade, error) {
	var resp struct {
		Trades []struct {
			ID           string `json:"id"`
			Instrument   string `json:"instrument"`
			CurrentUnits string `json:"currentUnits"`
			Price        string `json:"price"`
			RealizedPL   string `json:"realizedPL"`
			UnrealizedPL string `json:"unrealizedPL"`
			State        string `json:"state"`
			OpenTime     string `json:"openTime"`
		} `json:"trades"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("error parsing trades: %w", err)
	}

	trades := make([]Trade, 0, len(resp.Trades))
	for _, raw := range resp.Trades {
		trades = append(trades, Trade{
			TradeID:       raw.ID,
			Instrument:    raw.Instrument,
			Units:         parseFloat(raw.CurrentUnits),
			Price:         parseFloat(raw.Price),
			RealizedPnL:   parseFloat(raw.RealizedPL),
			UnrealizedPnL: parseFloat(raw.UnrealizedPL),
			State:         raw.State,
			OpenTime:      raw.OpenTime,
		})
	}
	return trades, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
