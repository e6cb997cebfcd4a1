package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	boterrors "github.com/ducminhle1904/crypto-oracle-bot/internal/errors"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/config"
	"github.com/ducminhle1904/crypto-oracle-bot/internal/signal"
)

const component = "ADVISOR"

// ChatClient talks to an OpenAI-compatible chat completions endpoint
// (DeepSeek by default).
type ChatClient struct {
	baseURL     string
	model       string
	apiKey      string
	temperature float64
	timeout     time.Duration
	http        *http.Client
	now         func() time.Time
}

func NewChatClient(cfg config.AdvisorConfig) (*ChatClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, boterrors.NewCredentialsError(component, "new_client", "advisor API key is not set (DEEPSEEK_API_KEY)")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		timeout:     timeout,
		http:        &http.Client{},
		now:         time.Now,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Propose asks the model for a signal. Timeouts, transport errors and
// unparseable replies are returned as advisor errors.
func (c *ChatClient) Propose(ctx context.Context, in Context) (*signal.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.complete(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: Persona(in.Regime.Regime)},
			{Role: "user", Content: BuildPrompt(in)},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		cat := boterrors.ErrorCategoryAdvisor
		if errors.Is(err, context.DeadlineExceeded) {
			cat = boterrors.ErrorCategoryTimeout
		}
		return nil, boterrors.WrapError(err, cat, component, "propose").WithContext("symbol", in.Symbol)
	}

	s, err := signal.Parse(reply, c.now())
	if err != nil {
		return nil, boterrors.NewAdvisorError(component, "parse", err).
			WithContext("symbol", in.Symbol).
			WithContext("reply", truncate(reply, 200))
	}
	return s, nil
}

// Ping sends a minimal completion to verify key and connectivity.
func (c *ChatClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.complete(ctx, chatRequest{
		Model:     c.model,
		Messages:  []chatMessage{{Role: "user", Content: "ping"}},
		MaxTokens: 5,
	})
	if err != nil {
		return boterrors.NewAdvisorError(component, "ping", err)
	}
	return nil
}

func (c *ChatClient) complete(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(raw, &parsed)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && parsed.Error != nil {
			return "", fmt.Errorf("advisor returned %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("advisor returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode advisor response: %w", decodeErr)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("advisor response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
