// zone-report fetches recent candles for an instrument and prints the
// support/resistance zones, the daily ATR, and whether the latest H4 candle
// prints a rejection setup. Useful for eyeballing what the sr_rejection
// strategy would see right now.
//
// Usage: zone-report [-instrument EUR_USD]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/broker"
	"oanda-trading-bot/internal/logging"
	"oanda-trading-bot/internal/strategy"
)

func main() {
	instrument := flag.String("instrument", "EUR_USD", "instrument to analyze")
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

	daily, err := client.GetCandles(ctx, *instrument, "D", 50)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch daily candles: %v\n", err)
		os.Exit(1)
	}

	zones := strategy.DetectZones(daily)
	fmt.Printf("%s: %d zone(s) from %d daily candles\n\n", *instrument, len(zones), len(daily))
	for _, zone := range zones {
		fmt.Printf("  %-10s %.5f  strength %d\n", zone.Type, zone.Price, zone.Strength)
	}

	if atr, err := strategy.CalculateATR(daily, 14); err == nil {
		fmt.Printf("\nDaily ATR(14): %.5f\n", atr)
	}

	h4, err := client.GetCandles(ctx, *instrument, "H4", 20)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch h4 candles: %v\n", err)
		os.Exit(1)
	}
	if len(h4) == 0 {
		return
	}
	latest := h4[len(h4)-1]
	fmt.Printf("Latest H4: O %.5f H %.5f L %.5f C %.5f\n", latest.Open, latest.High, latest.Low, latest.Close)

	signal, zone := strategy.EvaluateSignal(h4, zones)
	if signal == nil {
		fmt.Println("No rejection setup on the latest H4 candle.")
		return
	}
	fmt.Printf("Setup: %s at %.5f (zone %.5f) - %s\n", signal.Direction, signal.EntryPrice, zone.Price, signal.Reason)
}
