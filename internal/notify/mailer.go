package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Niiaks/ticketcore/internal/config"
	"github.com/pkg/errors"
)

// Mailer sends one transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

type ResendMailer struct {
	httpClient *http.Client
	apiKey     string
	url        string
	from       string
}

func NewResendMailer(cfg config.NotifyConfig) *ResendMailer {
	return &ResendMailer{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     cfg.ResendAPIKey,
		url:        cfg.ResendURL,
		from:       cfg.SenderEmail,
	}
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (m *ResendMailer) Send(ctx context.Context, to, subject, html string) error {
	body, err := json.Marshal(resendEmail{From: m.from, To: []string{to}, Subject: subject, HTML: html})
	if err != nil {
		return errors.Wrap(err, "failed to marshal email")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "resend request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("resend error: status=%d body=%s", resp.StatusCode, msg)
	}
	return nil
}
