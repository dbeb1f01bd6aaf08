// Package sms defines the outbound SMS delivery interface and an HTTP
// gateway implementation.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var ErrSendFailed = errors.New("sms delivery failed")

// Sender delivers a one-time code to a phone number. Implementations must
// honor the context deadline.
type Sender interface {
	Send(ctx context.Context, phone, code string) error
}

// HTTPSender posts codes to a JSON SMS gateway.
type HTTPSender struct {
	endpoint string
	apiKey   string
	sender   string
	client   *http.Client
}

func NewHTTPSender(endpoint, apiKey, sender string, timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSender{
		endpoint: endpoint,
		apiKey:   apiKey,
		sender:   sender,
		client:   &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

func (s *HTTPSender) Send(ctx context.Context, phone, code string) error {
	payload, err := json.Marshal(sendRequest{
		To:      phone,
		From:    s.sender,
		Message: "Your verification code is " + code,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: gateway returned %d", ErrSendFailed, resp.StatusCode)
	}
	return nil
}

// MaskPhone renders a phone number with only its last four digits visible.
func MaskPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if len(digits) < 4 {
		return "****"
	}
	return "******" + digits[len(digits)-4:]
}
