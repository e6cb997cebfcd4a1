package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookNotifier posts text messages to a chat webhook (Feishu/Lark style
// msg_type payload, with a top-level text field for Slack-like receivers).
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(webhookURL string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    webhookURL,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type webhookContent struct {
	Text string `json:"text"`
}

type webhookPayload struct {
	MsgType string         `json:"msg_type"`
	Content webhookContent `json:"content"`
	Text    string         `json:"text"`
}

func (w *WebhookNotifier) SendAlert(level, message string) error {
	if isPlaceholder(w.url) {
		return nil
	}

	text := fmt.Sprintf("%s %s", levelPrefix(level), message)
	body, err := json.Marshal(webhookPayload{
		MsgType: "text",
		Content: webhookContent{Text: text},
		Text:    text,
	})
	if err != nil {
		return err
	}

	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
