package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/klokku/appointments/internal/config"
)

// WebhookNotifier posts messages as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	url   string
	token string
	http  *http.Client
}

func NewWebhookNotifier(cfg config.Webhook) *WebhookNotifier {
	return &WebhookNotifier{
		url:   strings.TrimSpace(cfg.URL),
		token: strings.TrimSpace(cfg.Token),
		http:  &http.Client{},
	}
}

func (s *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	if s.url == "" {
		return errors.New("notification webhook url not configured")
	}
	raw, err := json.Marshal(map[string]string{
		"subject": msg.Subject,
		"body":    msg.Body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned %s", resp.Status)
	}
	return nil
}
