package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"assetflow/internal/config"
)

const userAgent = "assetflow/0.1.0"

// Message is one logical notification addressed to a full recipient set.
type Message struct {
	From      string   `json:"from"`
	To        []string `json:"to"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	Event     string   `json:"event"`
	VersionID string   `json:"assetVersionId"`
}

// Mailer submits messages to the external mail collaborator.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewMailer builds a mail relay client when an endpoint is configured and a
// noop mailer otherwise.
func NewMailer(cfg *config.Config) Mailer {
	endpoint := strings.TrimSpace(cfg.Notifications.MailEndpoint)
	if endpoint == "" {
		return noopMailer{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &relayMailer{
		endpoint: endpoint,
		token:    cfg.Notifications.MailToken,
		client:   &http.Client{Timeout: timeout},
	}
}

type relayMailer struct {
	endpoint string
	token    string
	client   *http.Client
}

func (r *relayMailer) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode mail message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("mail relay returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopMailer struct{}

func (noopMailer) Send(context.Context, Message) error { return nil }
