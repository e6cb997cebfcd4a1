package bybit

import (
	"context"
	"fmt"
	"strconv"
)

// MarketOrderParams describes a market order. Qty is in base coin, already
// formatted to the instrument's step.
type MarketOrderParams struct {
	Category    string
	Symbol      string
	Side        string // Buy or Sell
	Qty         string
	ReduceOnly  bool
	OrderLinkID string
}

// OrderAck is the immediate placement response.
type OrderAck struct {
	OrderID     string
	OrderLinkID string
}

// PlaceMarketOrder submits a market order once. Placement is not retried.
func (c *Client) PlaceMarketOrder(ctx context.Context, p MarketOrderParams) (*OrderAck, error) {
	params := map[string]interface{}{
		"category":  p.Category,
		"symbol":    p.Symbol,
		"side":      p.Side,
		"orderType": "Market",
		"qty":       p.Qty,
	}
	if p.OrderLinkID != "" {
		params["orderLinkId"] = p.OrderLinkID
	}
	if p.Category == CategorySpot {
		// Spot market buys default to a quote-coin qty.
		params["marketUnit"] = "baseCoin"
	}
	if p.ReduceOnly && p.Category != CategorySpot {
		params["reduceOnly"] = true
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}
	return parseOrderAck(result)
}

func parseOrderAck(response interface{}) (*OrderAck, error) {
	var result struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := decodeResult(response, &result); err != nil {
		return nil, err
	}
	if result.OrderID == "" {
		return nil, fmt.Errorf("order response without orderId")
	}
	return &OrderAck{OrderID: result.OrderID, OrderLinkID: result.OrderLinkID}, nil
}

// GetOrder looks an order up by id, first among realtime orders and then in history.
func (c *Client) GetOrder(ctx context.Context, category, symbol, orderID string) (*Order, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	var found *Order
	err := c.retryRead(ctx, func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOpenOrders(ctx)
		if err != nil {
			return fmt.Errorf("failed to get order: %w", err)
		}
		orders, err := parseOrders(result)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			result, err = c.httpClient.NewUtaBybitServiceWithParams(params).GetOrderHistory(ctx)
			if err != nil {
				return fmt.Errorf("failed to get order history: %w", err)
			}
			if orders, err = parseOrders(result); err != nil {
				return err
			}
		}
		for i := range orders {
			if orders[i].OrderID == orderID {
				found = &orders[i]
				return nil
			}
		}
		return &APIError{Code: ErrCodeOrderNotFound, Message: "order not found", Details: orderID}
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// GetOrderHistory returns recent orders, newest first.
func (c *Client) GetOrderHistory(ctx context.Context, category, symbol string, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
		"limit":    limit,
	}

	var orders []Order
	err := c.retryRead(ctx, func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOrderHistory(ctx)
		if err != nil {
			return fmt.Errorf("failed to get order history: %w", err)
		}
		orders, err = parseOrders(result)
		return err
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func parseOrders(response interface{}) ([]Order, error) {
	var result struct {
		List []struct {
			OrderID      string `json:"orderId"`
			OrderLinkID  string `json:"orderLinkId"`
			Symbol       string `json:"symbol"`
			Side         string `json:"side"`
			OrderType    string `json:"orderType"`
			Qty          string `json:"qty"`
			CumExecQty   string `json:"cumExecQty"`
			CumExecValue string `json:"cumExecValue"`
			AvgPrice     string `json:"avgPrice"`
			OrderStatus  string `json:"orderStatus"`
			CreatedTime  string `json:"createdTime"`
			UpdatedTime  string `json:"updatedTime"`
		} `json:"list"`
	}
	if err := decodeResult(response, &result); err != nil {
		return nil, err
	}

	orders := make([]Order, 0, len(result.List))
	for _, o := range result.List {
		orders = append(orders, Order{
			OrderID:      o.OrderID,
			OrderLinkID:  o.OrderLinkID,
			Symbol:       o.Symbol,
			Side:         o.Side,
			OrderType:    o.OrderType,
			Qty:          parseFloat64(o.Qty),
			CumExecQty:   parseFloat64(o.CumExecQty),
			CumExecValue: parseFloat64(o.CumExecValue),
			AvgPrice:     parseFloat64(o.AvgPrice),
			OrderStatus:  o.OrderStatus,
			CreatedTime:  parseTimestamp(o.CreatedTime),
			UpdatedTime:  parseTimestamp(o.UpdatedTime),
		})
	}
	return orders, nil
}

// GetPositions returns open linear positions. An empty symbol lists all USDT-settled positions.
func (c *Client) GetPositions(ctx context.Context, symbol string) ([]PositionInfo, error) {
	params := map[string]interface{}{
		"category": CategoryLinear,
	}
	if symbol != "" {
		params["symbol"] = symbol
	} else {
		params["settleCoin"] = "USDT"
	}

	var positions []PositionInfo
	err := c.retryRead(ctx, func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
		if err != nil {
			return fmt.Errorf("failed to get positions: %w", err)
		}
		positions, err = parsePositions(result)
		return err
	})
	if err != nil {
		return nil, err
	}
	return positions, nil
}

func parsePositions(response interface{}) ([]PositionInfo, error) {
	var result struct {
		List []struct {
			Symbol        string `json:"symbol"`
			Side          string `json:"side"`
			Size          string `json:"size"`
			AvgPrice      string `json:"avgPrice"`
			EntryPrice    string `json:"entryPrice"`
			MarkPrice     string `json:"markPrice"`
			UnrealisedPnl string `json:"unrealisedPnl"`
			Leverage      string `json:"leverage"`
			PositionIdx   int    `json:"positionIdx"`
			TradeMode     int    `json:"tradeMode"`
		} `json:"list"`
	}
	if err := decodeResult(response, &result); err != nil {
		return nil, err
	}

	var positions []PositionInfo
	for _, p := range result.List {
		size := parseFloat64(p.Size)
		if size == 0 || p.Side == "" || p.Side == "None" {
			continue
		}
		entry := parseFloat64(p.AvgPrice)
		if entry == 0 {
			entry = parseFloat64(p.EntryPrice)
		}
		positions = append(positions, PositionInfo{
			Symbol:        p.Symbol,
			Side:          p.Side,
			Size:          size,
			AvgPrice:      entry,
			MarkPrice:     parseFloat64(p.MarkPrice),
			UnrealisedPnl: parseFloat64(p.UnrealisedPnl),
			Leverage:      parseFloat64(p.Leverage),
			PositionIdx:   p.PositionIdx,
			TradeMode:     p.TradeMode,
		})
	}
	return positions, nil
}

// SetLeverage sets buy and sell leverage. "leverage not modified" counts as success.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	lev := strconv.Itoa(leverage)
	params := map[string]interface{}{
		"category":     CategoryLinear,
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).SetPositionLeverage(ctx)
	if err != nil {
		return fmt.Errorf("failed to set leverage: %w", err)
	}
	if err := decodeResult(result, nil); err != nil {
		if code, _ := apiCode(err); code == ErrCodeLeverageNotModified {
			return nil
		}
		return err
	}
	return nil
}
