package broker

import "context"

// Broker is the capability the engine and strategies depend on. The live
// implementation is *Client; tests use *MockClient. All methods may block on
// the network and honour context cancellation.
type Broker interface {
	GetCandles(ctx context.Context, instrument, granularity string, count int) ([]Candle, error)
	GetAccountSummary(ctx context.Context) (*AccountSummary, error)
	PlaceOrder(ctx context.Context, order OrderRequest) (*OrderResponse, error)
	ListOpenPositions(ctx context.Context) ([]Position, error)
	ListOpenTrades(ctx context.Context) ([]Trade, error)
	ListClosedTrades(ctx context.Context, count int) ([]Trade, error)
	ClosePosition(ctx context.Context, instrument string) error
}
