// trade-report prints per-instrument win/loss statistics from the account's
// closed trade history.
//
// Usage: trade-report [-count 200]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/logging"
)

type instrumentStats struct {
	Instrument    string
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	TotalPnL      float64
	TotalWins     float64
	TotalLosses   float64
}

func main() {
	count := flag.Int("count", 200, "number of closed trades to fetch")
	flag.Parse()

	godotenv.Load()
	godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	client := broker.NewClient(cfg.OandaConfig, logging.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	trades, err := client.ListClosedTrades(ctx, *count)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch closed trades: %v\n", err)
		os.Exit(1)
	}
	if len(trades) == 0 {
		fmt.Println("No closed trades found.")
		return
	}

	byInstrument := make(map[string]*instrumentStats)
	for _, trade := range trades {
		stats, ok := byInstrument[trade.Instrument]
		if !ok {
			stats = &instrumentStats{Instrument: trade.Instrument}
			byInstrument[trade.Instrument] = stats
		}
		stats.TotalTrades++
		stats.TotalPnL += trade.RealizedPnL
		if trade.RealizedPnL >= 0 {
			stats.WinningTrades++
			stats.TotalWins += trade.RealizedPnL
		} else {
			stats.LosingTrades++
			stats.TotalLosses += trade.RealizedPnL
		}
	}

	all := make([]*instrumentStats, 0, len(byInstrument))
	for _, stats := range byInstrument {
		all = append(all, stats)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TotalPnL > all[j].TotalPnL })

	fmt.Printf("Closed trades analyzed: %d\n\n", len(trades))
	fmt.Printf("%-12s %7s %6s %6s %9s %12s\n", "INSTRUMENT", "TRADES", "WINS", "LOSSES", "WIN%", "NET PNL")
	var netTotal float64
	for _, stats := range all {
		winRate := 0.0
		if stats.TotalTrades > 0 {
			winRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100
		}
		fmt.Printf("%-12s %7d %6d %6d %8.1f%% %12.2f\n",
			stats.Instrument, stats.TotalTrades, stats.WinningTrades, stats.LosingTrades, winRate, stats.TotalPnL)
		netTotal += stats.TotalPnL
	}
	fmt.Printf("\nNet PnL across instruments: %.2f\n", netTotal)
}
