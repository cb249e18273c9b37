package broker

import "time"

// Candle is one completed (or forming) price bar, mid prices.
type Candle struct {
	Time     time.Time `json:"time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   int       `json:"volume"`
	Complete bool      `json:"complete"`
}

// AccountSummary is the account-level snapshot used for sizing and
// drawdown tracking.
type AccountSummary struct {
	AccountID         string  `json:"account_id"`
	Balance           float64 `json:"balance"`
	Equity            float64 `json:"equity"` // OANDA NAV
	OpenPositionCount int     `json:"open_position_count"`
	Currency          string  `json:"currency"`
}

// OrderRequest is a market order with attached stop-loss and take-profit.
// Units are signed: positive = buy, negative = sell.
type OrderRequest struct {
	Instrument      string  `json:"instrument"`
	Units           int     `json:"units"`
	StopLossPrice   float64 `json:"stop_loss_price"`
	TakeProfitPrice float64 `json:"take_profit_price"`
}

// OrderResponse carries the fill details of a placed order.
type OrderResponse struct {
	OrderID    string  `json:"order_id"`
	Instrument string  `json:"instrument"`
	Units      float64 `json:"units"`
	FillPrice  float64 `json:"fill_price"`
	FillTime   string  `json:"fill_time"`
}

// Position is a per-instrument net position.
type Position struct {
	Instrument    string  `json:"instrument"`
	LongUnits     float64 `json:"long_units"`
	ShortUnits    float64 `json:"short_units"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	AveragePrice  float64 `json:"average_price"`
}

// Trade is a single open or closed trade on the account.
type Trade struct {
	TradeID      string  `json:"trade_id"`
	Instrument   string  `json:"instrument"`
	Units        float64 `json:"units"`
	Price        float64 `json:"price"`
	RealizedPnL  float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	State        string  `json:"state"`
	OpenTime     string  `json:"open_time"`
}
