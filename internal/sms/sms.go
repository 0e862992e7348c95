// Package sms delivers clip links over SMS through the Twilio
// Messages API.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/danschewy/twelvesocial/internal/apperr"
)

const defaultBaseURL = "https://api.twilio.com"

// E.164: plus sign, then 2 to 15 digits not starting with zero.
var e164RE = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// Sender posts messages from one configured phone number.
type Sender struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	client     *http.Client
	logger     *slog.Logger
}

func NewSender(accountSID, authToken, from string, logger *slog.Logger) *Sender {
	return &Sender{
		baseURL:    defaultBaseURL,
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// ValidPhoneNumber reports whether s is a plausible E.164 number.
func ValidPhoneNumber(s string) bool {
	return e164RE.MatchString(s)
}

// Send delivers body to the recipient and returns the provider's
// message SID. Both ends of the conversation are validated; a
// misconfigured sender number fails the same way a bad recipient does,
// just with a different error kind.
func (s *Sender) Send(ctx context.Context, to, body string) (string, error) {
	if s.accountSID == "" || s.authToken == "" {
		return "", apperr.Configuration("SMS credentials are not configured")
	}
	if !ValidPhoneNumber(s.from) {
		return "", apperr.Configuration("SMS sender number is not a valid E.164 number")
	}
	if !ValidPhoneNumber(to) {
		return "", apperr.InvalidInput("recipient must be an E.164 phone number, e.g. +15551234567")
	}
	if strings.TrimSpace(body) == "" {
		return "", apperr.InvalidInput("message body is required")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperr.Transport("SMS provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var errBody struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		message := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &errBody) == nil && errBody.Message != "" {
			message = errBody.Message
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return "", apperr.Vendor(message, resp.StatusCode, string(raw))
	}

	var out struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.Vendor("malformed SMS provider response", resp.StatusCode, "")
	}
	if out.SID == "" {
		return "", apperr.Vendor("message SID missing from provider response", resp.StatusCode, "")
	}

	s.logger.Info("sms sent",
		"message_sid", out.SID,
		"status", out.Status,
	)
	return out.SID, nil
}
