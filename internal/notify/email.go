package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPEmailSender delivers mail through an HTTP email provider. It
// implements common.EmailSender. Requests carry the provider API key as a
// bearer token and are traced via otelhttp.
type HTTPEmailSender struct {
	ProviderURL string
	APIKey      string
	From        string
	Client      *http.Client
}

// NewHTTPEmailSender builds a sender with a traced HTTP client.
func NewHTTPEmailSender(providerURL, apiKey, from string, timeout time.Duration) *HTTPEmailSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPEmailSender{
		ProviderURL: providerURL,
		APIKey:      apiKey,
		From:        from,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type emailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Send posts one message to the provider. Non-2xx responses are errors so
// asynq retries the task.
func (s *HTTPEmailSender) Send(to, subject, html string) error {
	if s == nil || s.ProviderURL == "" {
		return errors.New("email sender not configured")
	}
	body, err := json.Marshal(emailRequest{From: s.From, To: to, Subject: subject, HTML: html})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, s.ProviderURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("send email: provider returned %d", resp.StatusCode)
	}
	return nil
}
