// Package notify sends applicant-facing emails through a GOV.UK
// Notify-compatible HTTP API. Delivery is best-effort: callers treat send
// failures as warnings, never as transition failures.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bops-digital/bops/modules/bops/services"
	"github.com/bops-digital/bops/pkg/configuration"
)

type Client struct {
	apiKey    string
	baseURL   string
	replyToID string
	http      *http.Client
}

// NewNotifier returns the HTTP client when an API key is configured and the
// log-only fallback otherwise, so development environments never need
// credentials.
func NewNotifier(conf *configuration.Configuration, logger *logrus.Logger) services.Notifier {
	if conf.Notify.APIKey == "" {
		return &services.LogNotifier{Logger: logger}
	}
	return &Client{
		apiKey:    conf.Notify.APIKey,
		baseURL:   conf.Notify.BaseURL,
		replyToID: conf.Notify.ReplyToID,
		http:      &http.Client{Timeout: conf.Notify.SendTimeout},
	}
}

type sendRequest struct {
	TemplateID      string            `json:"template_id"`
	EmailAddress    string            `json:"email_address"`
	Personalisation map[string]string `json:"personalisation,omitempty"`
	Reference       string            `json:"reference"`
	ReplyToID       string            `json:"email_reply_to_id,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

func (c *Client) Send(ctx context.Context, template, recipient string, personalisation map[string]string) (string, error) {
	payload := sendRequest{
		TemplateID:      template,
		EmailAddress:    recipient,
		Personalisation: personalisation,
		Reference:       uuid.NewString(),
		ReplyToID:       c.replyToID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "marshal notify payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/notifications/email", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build notify request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "send notification")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("notify returned status %d", resp.StatusCode)
	}
	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode notify response")
	}
	return out.ID, nil
}

var _ services.Notifier = (*Client)(nil)
