package bybit

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Intervals accepted by /v5/market/kline.
var klineIntervals = map[string]string{
	"1m": "1", "3m": "3", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "2h": "120", "4h": "240", "6h": "360", "12h": "720",
	"1d": "D", "1w": "W",
}

// KlineInterval maps a timeframe like 15m onto Bybit's interval code.
func KlineInterval(timeframe string) (string, error) {
	if v, ok := klineIntervals[strings.ToLower(timeframe)]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unsupported timeframe %q", timeframe)
}

// GetKlines returns up to limit candles in ascending time order.
func (c *Client) GetKlines(ctx context.Context, category, symbol, interval string, limit int) ([]Kline, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}

	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
		"interval": interval,
		"limit":    limit,
	}

	var klines []Kline
	err := c.retryRead(ctx, func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
		if err != nil {
			return fmt.Errorf("failed to get klines: %w", err)
		}
		klines, err = parseKlines(result)
		return err
	})
	if err != nil {
		return nil, err
	}
	return klines, nil
}

func parseKlines(response interface{}) ([]Kline, error) {
	var result struct {
		Symbol string     `json:"symbol"`
		List   [][]string `json:"list"`
	}
	if err := decodeResult(response, &result); err != nil {
		return nil, err
	}

	klines := make([]Kline, 0, len(result.List))
	for _, row := range result.List {
		if len(row) < 6 {
			continue
		}
		k := Kline{
			StartTime:  parseTimestamp(row[0]),
			OpenPrice:  parseFloat64(row[1]),
			HighPrice:  parseFloat64(row[2]),
			LowPrice:   parseFloat64(row[3]),
			ClosePrice: parseFloat64(row[4]),
			Volume:     parseFloat64(row[5]),
		}
		if len(row) > 6 {
			k.Turnover = parseFloat64(row[6])
		}
		klines = append(klines, k)
	}

	// Bybit lists newest first.
	sort.Slice(klines, func(i, j int) bool {
		return klines[i].StartTime.Before(klines[j].StartTime)
	})
	return klines, nil
}

// GetTickers returns last prices keyed by venue symbol. An empty symbol list fetches the
// whole category in one request.
func (c *Client) GetTickers(ctx context.Context, category string, symbols ...string) (map[string]float64, error) {
	params := map[string]interface{}{
		"category": category,
	}
	if len(symbols) == 1 {
		params["symbol"] = symbols[0]
	}

	var prices map[string]float64
	err := c.retryRead(ctx, func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
		if err != nil {
			return fmt.Errorf("failed to get tickers: %w", err)
		}
		prices, err = parseTickers(result)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(symbols) > 1 {
		wanted := make(map[string]float64, len(symbols))
		for _, s := range symbols {
			if p, ok := prices[s]; ok {
				wanted[s] = p
			}
		}
		prices = wanted
	}
	return prices, nil
}

// GetLatestPrice returns the last traded price of one symbol.
func (c *Client) GetLatestPrice(ctx context.Context, category, symbol string) (float64, error) {
	prices, err := c.GetTickers(ctx, category, symbol)
	if err != nil {
		return 0, err
	}
	price, ok := prices[symbol]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return price, nil
}

func parseTickers(response interface{}) (map[string]float64, error) {
	var result struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	if err := decodeResult(response, &result); err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(result.List))
	for _, t := range result.List {
		if p := parseFloat64(t.LastPrice); p > 0 {
			prices[t.Symbol] = p
		}
	}
	return prices, nil
}
