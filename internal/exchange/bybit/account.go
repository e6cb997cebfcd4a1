package bybit

import (
	"context"
	"fmt"
	"math"
)

// GetWalletBalance returns per-coin balances of the unified trading account.
func (c *Client) GetWalletBalance(ctx context.Context) ([]CoinBalance, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
	}

	var balances []CoinBalance
	err := c.retryRead(ctx, func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
		if err != nil {
			return fmt.Errorf("failed to get account balance: %w", err)
		}
		balances, err = parseWalletBalance(result)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

func parseWalletBalance(response interface{}) ([]CoinBalance, error) {
	var result struct {
		List []struct {
			AccountType string `json:"accountType"`
			Coin        []struct {
				Coin                string `json:"coin"`
				Equity              string `json:"equity"`
				UsdValue            string `json:"usdValue"`
				WalletBalance       string `json:"walletBalance"`
				AvailableToWithdraw string `json:"availableToWithdraw"`
				Locked              string `json:"locked"`
				TotalOrderIM        string `json:"totalOrderIM"`
				TotalPositionIM     string `json:"totalPositionIM"`
				UnrealisedPnl       string `json:"unrealisedPnl"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := decodeResult(response, &result); err != nil {
		return nil, err
	}
	if len(result.List) == 0 {
		return nil, fmt.Errorf("no account data found")
	}

	coins := result.List[0].Coin
	balances := make([]CoinBalance, 0, len(coins))
	for _, coin := range coins {
		wallet := parseFloat64(coin.WalletBalance)
		locked := parseFloat64(coin.Locked) + parseFloat64(coin.TotalOrderIM) + parseFloat64(coin.TotalPositionIM)

		// availableToWithdraw is deprecated on unified accounts and often empty.
		free := parseFloat64(coin.AvailableToWithdraw)
		if coin.AvailableToWithdraw == "" {
			free = math.Max(0, wallet-locked)
		}

		balances = append(balances, CoinBalance{
			Coin:          coin.Coin,
			Equity:        parseFloat64(coin.Equity),
			WalletBalance: wallet,
			Free:          free,
			Locked:        locked,
			UsdValue:      parseFloat64(coin.UsdValue),
			UnrealisedPnl: parseFloat64(coin.UnrealisedPnl),
		})
	}
	return balances, nil
}

// GetFeeRate returns the account's taker and maker rates for a symbol.
func (c *Client) GetFeeRate(ctx context.Context, category, symbol string) (*FeeRate, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetFeeRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get fee rate: %w", err)
	}
	return parseFeeRate(result, symbol)
}

func parseFeeRate(response interface{}, symbol string) (*FeeRate, error) {
	var result struct {
		List []struct {
			Symbol       string `json:"symbol"`
			TakerFeeRate string `json:"takerFeeRate"`
			MakerFeeRate string `json:"makerFeeRate"`
		} `json:"list"`
	}
	if err := decodeResult(response, &result); err != nil {
		return nil, err
	}

	for _, r := range result.List {
		if r.Symbol == symbol || symbol == "" {
			return &FeeRate{
				Symbol:       r.Symbol,
				TakerFeeRate: parseFloat64(r.TakerFeeRate),
				MakerFeeRate: parseFloat64(r.MakerFeeRate),
			}, nil
		}
	}
	return nil, fmt.Errorf("no fee rate for %s", symbol)
}
