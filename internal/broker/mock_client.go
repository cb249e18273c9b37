package broker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// MockClient is an in-memory Broker for tests and dry runs. Behaviour is
// configured per call site: seed candles per granularity, set the account
// summary, and inject errors. All methods are safe for concurrent use.
type MockClient struct {
	mu sync.Mutex

	Candles       map[string][]Candle // keyed by granularity
	Summary       AccountSummary
	Positions     []Position
	OpenTrades    []Trade
	ClosedTrades  []Trade
	nextOrderID   int
	PlacedOrders  []OrderRequest
	SummaryCalls  int
	CandleCalls   int
	PositionCalls int

	// Error injection; nil means the call succeeds.
	CandlesErr   error
	SummaryErr   error
	PlaceErr     error
	PositionsErr error
}

// NewMockClient returns a mock seeded with a flat 10k account.
func NewMockClient() *MockClient {
	return &MockClient{
		Candles: make(map[string][]Candle),
		Summary: AccountSummary{
			AccountID: "mock-001",
			Balance:   10000,
			Equity:    10000,
			Currency:  "USD",
		},
		nextOrderID: 1000,
	}
}

// SeedTrend populates count candles for granularity drifting from start by
// step per bar, enough shape for indicator and zone code to chew on.
func (m *MockClient) SeedTrend(granularity string, count int, start, step float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]Candle, count)
	price := start
	for i := range candles {
		candles[i] = Candle{
			Time:     base.Add(time.Duration(i) * time.Hour),
			Open:     price,
			High:     price + 0.0012,
			Low:      price - 0.0012,
			Close:    price + step,
			Volume:   1000,
			Complete: true,
		}
		price += step
	}
	m.Candles[granularity] = candles
}

func (m *MockClient) GetCandles(_ context.Context, _, granularity string, count int) ([]Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CandleCalls++
	if m.CandlesErr != nil {
		return nil, m.CandlesErr
	}
	candles := m.Candles[granularity]
	if len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	out := make([]Candle, len(candles))
	copy(out, candles)
	return out, nil
}

func (m *MockClient) GetAccountSummary(_ context.Context) (*AccountSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummaryCalls++
	if m.SummaryErr != nil {
		return nil, m.SummaryErr
	}
	summary := m.Summary
	return &summary, nil
}

func (m *MockClient) SetEquity(equity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Summary.Equity = equity
}

func (m *MockClient) PlaceOrder(_ context.Context, order OrderRequest) (*OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PlaceErr != nil {
		return nil, m.PlaceErr
	}
	m.PlacedOrders = append(m.PlacedOrders, order)
	m.nextOrderID++
	return &OrderResponse{
		OrderID:    strconv.Itoa(m.nextOrderID),
		Instrument: order.Instrument,
		Units:      float64(order.Units),
		FillPrice:  1.0850,
		FillTime:   time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (m *MockClient) ListOpenPositions(_ context.Context) ([]Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PositionCalls++
	if m.PositionsErr != nil {
		return nil, m.PositionsErr
	}
	out := make([]Position, len(m.Positions))
	copy(out, m.Positions)
	return out, nil
}

func (m *MockClient) ListOpenTrades(_ context.Context) ([]Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Trade, len(m.OpenTrades))
	copy(out, m.OpenTrades)
	return out, nil
}

func (m *MockClient) ListClosedTrades(_ context.Context, count int) ([]Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trades := m.ClosedTrades
	if len(trades) > count {
		trades = trades[:count]
	}
	out := make([]Trade, len(trades))
	copy(out, trades)
	return out, nil
}

func (m *MockClient) ClosePosition(_ context.Context, instrument string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.Positions {
		if p.Instrument == instrument {
			m.Positions = append(m.Positions[:i], m.Positions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no open position for %s", instrument)
}

// OrderCount returns how many orders have been placed.
func (m *MockClient) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.PlacedOrders)
}
