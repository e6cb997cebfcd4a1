package bybit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InstrumentInfo holds the lot size rules of one symbol.
type InstrumentInfo struct {
	Symbol      string
	Category    string
	Status      string
	BaseCoin    string
	QuoteCoin   string
	MinOrderQty float64
	MaxOrderQty float64
	// QtyStep is qtyStep for contracts and basePrecision for spot.
	QtyStep float64
	// MinNotional is minNotionalValue for contracts and minOrderAmt for spot.
	MinNotional float64
	MaxLeverage float64
}

// InstrumentManager caches instrument rules for an hour.
type InstrumentManager struct {
	client         *Client
	instruments    map[string]*InstrumentInfo
	fetchedAt      map[string]time.Time
	mutex          sync.RWMutex
	updateInterval time.Duration
}

func NewInstrumentManager(client *Client) *InstrumentManager {
	return &InstrumentManager{
		client:         client,
		instruments:    make(map[string]*InstrumentInfo),
		fetchedAt:      make(map[string]time.Time),
		updateInterval: time.Hour,
	}
}

func cacheKey(category, symbol string) string {
	return category + ":" + symbol
}

// GetInstrumentInfo returns cached rules or fetches them.
func (im *InstrumentManager) GetInstrumentInfo(ctx context.Context, category, symbol string) (*InstrumentInfo, error) {
	key := cacheKey(category, symbol)

	im.mutex.RLock()
	instrument, exists := im.instruments[key]
	fresh := exists && time.Since(im.fetchedAt[key]) < im.updateInterval
	im.mutex.RUnlock()
	if fresh {
		return instrument, nil
	}

	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	var fetched *InstrumentInfo
	err := im.client.retryRead(ctx, func() error {
		result, err := im.client.httpClient.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch instrument info: %w", err)
		}
		fetched, err = parseInstrumentInfo(result, category, symbol)
		return err
	})
	if err != nil {
		return nil, err
	}

	im.mutex.Lock()
	im.instruments[key] = fetched
	im.fetchedAt[key] = time.Now()
	im.mutex.Unlock()

	return fetched, nil
}

func parseInstrumentInfo(response interface{}, category, targetSymbol string) (*InstrumentInfo, error) {
	var result struct {
		List []struct {
			Symbol         string `json:"symbol"`
			Status         string `json:"status"`
			BaseCoin       string `json:"baseCoin"`
			QuoteCoin      string `json:"quoteCoin"`
			LeverageFilter struct {
				MaxLeverage string `json:"maxLeverage"`
			} `json:"leverageFilter"`
			LotSizeFilter struct {
				BasePrecision    string `json:"basePrecision"`
				MinOrderAmt      string `json:"minOrderAmt"`
				MinNotionalValue string `json:"minNotionalValue"`
				MaxOrderQty      string `json:"maxOrderQty"`
				MinOrderQty      string `json:"minOrderQty"`
				QtyStep          string `json:"qtyStep"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	}
	if err := decodeResult(response, &result); err != nil {
		return nil, err
	}

	for _, item := range result.List {
		if item.Symbol != targetSymbol {
			continue
		}
		lot := item.LotSizeFilter
		info := &InstrumentInfo{
			Symbol:      item.Symbol,
			Category:    category,
			Status:      item.Status,
			BaseCoin:    item.BaseCoin,
			QuoteCoin:   item.QuoteCoin,
			MinOrderQty: parseFloat64(lot.MinOrderQty),
			MaxOrderQty: parseFloat64(lot.MaxOrderQty),
			QtyStep:     parseFloat64(lot.QtyStep),
			MinNotional: parseFloat64(lot.MinNotionalValue),
			MaxLeverage: parseFloat64(item.LeverageFilter.MaxLeverage),
		}
		if category == CategorySpot {
			info.QtyStep = parseFloat64(lot.BasePrecision)
			info.MinNotional = parseFloat64(lot.MinOrderAmt)
		}
		return info, nil
	}
	return nil, fmt.Errorf("instrument %s not found in %s", targetSymbol, category)
}
