package advisor

import (
	"fmt"
	"strings"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/regime"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/signal"
)

// Persona returns the system role for a market regime.
func Persona(r regime.Regime) string {
	switch r {
	case regime.HighTrend:
		return "You are an aggressive trend-following trader. The market is moving hard in one direction " +
			"and ADX confirms a strong trend. Ride the trend decisively and do not try to pick tops or bottoms."
	case regime.HighChoppy:
		return "You are a calm, risk-averse trader. The market is swinging violently without a clear direction. " +
			"Be extremely cautious, prefer to wait, and only take very short reversals at Bollinger extremes."
	case regime.Low:
		return "You are a patient range trader. The market is flat and quiet. Look for buy-low sell-high " +
			"opportunities inside the range and never chase moves."
	default:
		return "You are a steady swing trader. Volatility is normal. Balance risk and reward and only act on " +
			"high-probability patterns."
	}
}

const candleWindow = 5

// BuildPrompt renders the user message for one analysis cycle.
func BuildPrompt(c Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Role\n%s\n\n", Persona(c.Regime.Regime))

	fmt.Fprintf(&b, "# Market\nSymbol: %s\nTimeframe: %s\nPrice: %.4f\nTime: %s\nChange: %+.2f%%\nRegime: %s\n\n",
		c.Symbol, c.Timeframe, c.Price, c.At.Format("2006-01-02 15:04:05"), c.PriceChange, c.Regime)

	b.WriteString("# Account\n")
	fmt.Fprintf(&b, "Position: %s\n", positionText(c))
	if pnl := holdingPnLText(c); pnl != "" {
		fmt.Fprintf(&b, "%s\n", pnl)
	}
	fmt.Fprintf(&b, "Available balance: %.2f USDT\n", c.Balance)
	fmt.Fprintf(&b, "Max buyable amount: %.4f (reference only)\n", c.MaxBuyable())
	amountNote := ""
	if c.AutoAmount {
		amountNote = " (auto-sized)"
	}
	fmt.Fprintf(&b, "Configured trade amount: %.6g%s\n\n", c.ConfigAmount, amountNote)

	b.WriteString(candleText(c))
	b.WriteString(indicatorText(c))
	if c.LastSignal != nil {
		fmt.Fprintf(&b, "\n# Last signal\nSignal: %s\nConfidence: %s\n", c.LastSignal.Action, c.LastSignal.Confidence)
	}

	minProfit := signal.MinProfit(c.TakerFee)
	fmt.Fprintf(&b, `
# Task
1. Judge the trend with ADX and the bands. If the open position fights a strong trend, recommend SELL to exit.
2. Cut losses: if the position is down more than 3%% and the trend has not turned, recommend SELL.
3. Taker fee is %.3f%% per side. Never recommend selling a position whose profit is below %.2f%%.
   Prefer taking profit above %.2f%% and only when momentum fades.
4. Recommend BUY when reward/risk exceeds 1.2. Mark confidence HIGH only for very clear setups.
5. If the max buyable amount is below the configured amount, suggest the max buyable amount.

# Output
Reply with JSON only, no markdown:
{"signal": "BUY|SELL|HOLD", "reason": "short rationale", "stop_loss": number, "take_profit": number, "confidence": "HIGH|MEDIUM|LOW", "amount": number}
`, c.TakerFee*100, minProfit*100, c.TakerFee*6*100)

	return b.String()
}

func positionText(c Context) string {
	if c.Margin {
		p := c.Holding.Position
		if p == nil || p.Size <= 0 {
			return "flat"
		}
		return fmt.Sprintf("%s %.6g, unrealized %.2f USDT", p.Side, p.Size, p.UnrealizedPnL)
	}
	if c.Holding.SpotAmount > 0 {
		return fmt.Sprintf("spot %.6g held (can sell)", c.Holding.SpotAmount)
	}
	return "none (buy only)"
}

func holdingPnLText(c Context) string {
	entry := c.Holding.EntryPrice
	if c.Margin && c.Holding.Position != nil {
		entry = c.Holding.Position.EntryPrice
	}
	if entry <= 0 || c.Price <= 0 {
		return ""
	}
	held := c.Holding.SpotAmount > 0 || (c.Holding.Position != nil && c.Holding.Position.Size > 0)
	if !held {
		return ""
	}
	pnl := (c.Price - entry) / entry * 100
	if c.Margin && c.Holding.Position != nil {
		pnl = c.Holding.Position.PnLPercent(c.Price) * 100
	}
	return fmt.Sprintf("Holding PnL: %+.2f%% (cost %.4f)", pnl, entry)
}

func candleText(c Context) string {
	candles := c.Candles
	if len(candles) > candleWindow {
		candles = candles[len(candles)-candleWindow:]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Last %d %s candles\n", len(candles), c.Timeframe)
	for i, k := range candles {
		kind := "bear"
		if k.Close > k.Open {
			kind = "bull"
		}
		change := 0.0
		if k.Open > 0 {
			change = (k.Close - k.Open) / k.Open * 100
		}
		fmt.Fprintf(&b, "%d: %s open %.4f close %.4f change %+.2f%%\n", i+1, kind, k.Open, k.Close, change)
	}
	return b.String()
}

func indicatorText(c Context) string {
	s := c.Indicators
	var b strings.Builder
	b.WriteString("\n# Indicators\n")
	fmt.Fprintf(&b, "RSI (14): %s\n", optional(s.RSI, "%.2f"))
	if s.MACD != nil && s.MACDSignal != nil && s.MACDHist != nil {
		fmt.Fprintf(&b, "MACD (12,26,9): MACD %.4f, Signal %.4f, Hist %.4f\n", *s.MACD, *s.MACDSignal, *s.MACDHist)
	} else {
		b.WriteString("MACD (12,26,9): N/A\n")
	}
	if s.BBUpper != nil && s.BBMiddle != nil && s.BBLower != nil {
		fmt.Fprintf(&b, "Bollinger (20,2): upper %.4f, middle %.4f, lower %.4f\n", *s.BBUpper, *s.BBMiddle, *s.BBLower)
	} else {
		b.WriteString("Bollinger (20,2): N/A\n")
	}
	fmt.Fprintf(&b, "ADX (14): %s (trend strength)\n", optional(s.ADX, "%.2f"))

	if sma, ok := indicators.SMA(c.PriceHistory, 5); ok && sma > 0 {
		fmt.Fprintf(&b, "SMA5: %.4f\nPrice vs SMA5: %+.2f%%\n", sma, (c.Price-sma)/sma*100)
	}
	return b.String()
}

func optional(v *float64, format string) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf(format, *v)
}
