// Package mailer delivers verification-code emails through the Resend HTTP
// API. It implements the auth package's MailSender contract.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Resend sends transactional mail via the Resend REST API. An unconfigured
// client (missing key or sender) reports itself as such instead of failing
// at send time.
type Resend struct {
	baseURL string
	apiKey  string
	from    string
	client  *http.Client
}

// NewResend creates a Resend mailer. baseURL lets tests point the client at
// a local stub.
func NewResend(baseURL, apiKey, from string) *Resend {
	return &Resend{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		from:    from,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// IsConfigured reports whether the client holds enough configuration to send.
func (r *Resend) IsConfigured() bool {
	return r.apiKey != "" && r.from != ""
}

// sendRequest is the Resend /emails payload.
type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendCode emails a verification code to the given address.
func (r *Resend) SendCode(ctx context.Context, to, code string) error {
	payload, err := json.Marshal(sendRequest{
		From:    r.from,
		To:      []string{to},
		Subject: "Your FitForge verification code",
		HTML: fmt.Sprintf(
			"<p>Your FitForge verification code is:</p><p style=\"font-size:24px;font-weight:bold;letter-spacing:4px\">%s</p><p>It expires in 10 minutes. If you did not request it, ignore this email.</p>",
			code,
		),
	})
	if err != nil {
		return fmt.Errorf("encoding mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
