package bybit

import (
	"encoding/json"
	"fmt"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/ducminhle1904/crypto-oracle-bot/internal/safety"
)

// DemoURL is Bybit's demo trading REST endpoint.
const DemoURL = "https://api-demo.bybit.com"

// DefaultRequestsPerSecond keeps the client under the venue's per-IP limits.
const DefaultRequestsPerSecond = 10

// Client wraps the Bybit v5 API client.
type Client struct {
	httpClient  *bybit_api.Client
	instruments *InstrumentManager
	testnet     bool
	demo        bool
	retry       RetryConfig
	limiter     *safety.RateLimiter
}

type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool
	// BaseURL overrides the environment endpoint.
	BaseURL string
	// RequestsPerSecond caps REST calls; 0 uses DefaultRequestsPerSecond.
	RequestsPerSecond int
}

func NewClient(config Config) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		switch {
		case config.Demo:
			baseURL = DemoURL
		case config.Testnet:
			baseURL = bybit_api.TESTNET
		default:
			baseURL = bybit_api.MAINNET
		}
	}

	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	c := &Client{
		httpClient: httpClient,
		testnet:    config.Testnet,
		demo:       config.Demo,
		retry:      DefaultRetryConfig(),
		limiter:    safety.NewRateLimiter(rps, float64(rps)),
	}
	c.instruments = NewInstrumentManager(c)
	return c
}

func (c *Client) IsTestnet() bool {
	return c.testnet
}

func (c *Client) IsDemo() bool {
	return c.demo
}

// Environment returns demo, testnet or mainnet.
func (c *Client) Environment() string {
	switch {
	case c.demo:
		return "demo"
	case c.testnet:
		return "testnet"
	default:
		return "mainnet"
	}
}

func (c *Client) Instruments() *InstrumentManager {
	return c.instruments
}

// decodeResult checks the envelope of an SDK response and unmarshals its result into out.
func decodeResult(response interface{}, out interface{}) error {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok || serverResp == nil {
		return fmt.Errorf("invalid response type %T", response)
	}
	if err := ParseAPIError(serverResp.RetCode, serverResp.RetMsg); err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(resultBytes, out); err != nil {
		return fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return nil
}
