package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/logger"
)

// Bybit v5 public stream endpoints.
const (
	BybitPublicSpotURL          = "wss://stream.bybit.com/v5/public/spot"
	BybitPublicLinearURL        = "wss://stream.bybit.com/v5/public/linear"
	BybitTestnetPublicSpotURL   = "wss://stream-testnet.bybit.com/v5/public/spot"
	BybitTestnetPublicLinearURL = "wss://stream-testnet.bybit.com/v5/public/linear"
)

type pricePoint struct {
	price float64
	at    time.Time
}

// TickerStream keeps the last traded price of subscribed symbols from a
// Bybit public "tickers.<SYMBOL>" feed. It reconnects until its context ends.
type TickerStream struct {
	url     string
	topics  []string
	maxAge  time.Duration
	logger  *logger.Logger
	dialer  *websocket.Dialer
	backoff time.Duration
	ping    time.Duration

	mu     sync.RWMutex
	prices map[string]pricePoint
	now    func() time.Time
}

// NewTickerStream subscribes to venue symbols (BTCUSDT form). Prices older than maxAge are ignored.
func NewTickerStream(url string, venueSymbols []string, maxAge time.Duration, log *logger.Logger) *TickerStream {
	topics := make([]string, 0, len(venueSymbols))
	for _, s := range venueSymbols {
		topics = append(topics, "tickers."+strings.ToUpper(s))
	}
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	return &TickerStream{
		url:     url,
		topics:  topics,
		maxAge:  maxAge,
		logger:  log,
		dialer:  &dialer,
		backoff: 5 * time.Second,
		ping:    20 * time.Second,
		prices:  make(map[string]pricePoint),
		now:     time.Now,
	}
}

// Price returns a fresh streamed price for a venue symbol.
func (s *TickerStream) Price(venueSymbol string) (float64, bool) {
	s.mu.RLock()
	p, ok := s.prices[strings.ToUpper(venueSymbol)]
	s.mu.RUnlock()
	if !ok || p.price <= 0 {
		return 0, false
	}
	if s.maxAge > 0 && s.now().Sub(p.at) > s.maxAge {
		return 0, false
	}
	return p.price, true
}

// Run connects and reads until ctx is cancelled, reconnecting after failures.
func (s *TickerStream) Run(ctx context.Context) {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.LogWarning("ticker stream", "disconnected from %s: %v, reconnecting in %s", s.url, err, s.backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.backoff):
		}
	}
}

func (s *TickerStream) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	if err := write(map[string]interface{}{"op": "subscribe", "args": s.topics}); err != nil {
		return fmt.Errorf("failed to send subscribe message: %w", err)
	}
	s.logger.Info("ticker stream subscribed: %s", strings.Join(s.topics, ","))

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.ping)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := write(map[string]string{"op": "ping"}); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}
		s.handleMessage(message)
	}
}

type tickerMessage struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	Ts    int64  `json:"ts"`
	Data  struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"data"`
}

// handleMessage stores lastPrice from ticker snapshots and deltas. Deltas without a
// lastPrice leave the cached value untouched. Control frames (pong, subscribe acks) are ignored.
func (s *TickerStream) handleMessage(message []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if !strings.HasPrefix(msg.Topic, "tickers.") || msg.Data.LastPrice == "" {
		return
	}
	price, err := strconv.ParseFloat(msg.Data.LastPrice, 64)
	if err != nil || price <= 0 {
		return
	}
	symbol := msg.Data.Symbol
	if symbol == "" {
		symbol = strings.TrimPrefix(msg.Topic, "tickers.")
	}

	s.mu.Lock()
	s.prices[strings.ToUpper(symbol)] = pricePoint{price: price, at: s.now()}
	s.mu.Unlock()
}
