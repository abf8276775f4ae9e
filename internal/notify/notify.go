package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// UpdatePublishedEvent is posted to the configured webhook after a bundle
// is ingested, so the release pipeline can pick it up.
type UpdatePublishedEvent struct {
	Channel        string `json:"channel"`
	RuntimeVersion string `json:"runtimeVersion"`
	UpdateId       string `json:"updateId"`
}

type Notifier struct {
	WebhookURL string
	Client     *http.Client
}

func New(webhookURL string) *Notifier {
	return &Notifier{
		WebhookURL: webhookURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// UpdatePublished posts the event to the webhook. A nil receiver or empty
// URL is a no-op so callers never need to guard the call.
func (n *Notifier) UpdatePublished(ctx context.Context, event UpdatePublishedEvent) error {
	if n == nil || n.WebhookURL == "" {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error serializing webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
