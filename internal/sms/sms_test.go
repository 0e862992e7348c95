package sms

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/danschewy/twelvesocial/internal/apperr"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestValidPhoneNumber(t *testing.T) {
	tests := []struct {
		number string
		want   bool
	}{
		{"+15551234567", true},
		{"+442071838750", true},
		{"+12", true},
		{"15551234567", false},
		{"+05551234567", false},
		{"+1555123456789012", false},
		{"+1 555 123 4567", false},
		{"", false},
		{"+", false},
	}
	for _, tt := range tests {
		if got := ValidPhoneNumber(tt.number); got != tt.want {
			t.Errorf("ValidPhoneNumber(%q) = %v, want %v", tt.number, got, tt.want)
		}
	}
}

func TestSend(t *testing.T) {
	var receivedForm map[string]string
	var gotUser, gotPass string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotUser, gotPass, _ = r.BasicAuth()
		r.ParseForm()
		receivedForm = map[string]string{
			"To":   r.PostFormValue("To"),
			"From": r.PostFormValue("From"),
			"Body": r.PostFormValue("Body"),
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM999","status":"queued"}`))
	}))
	defer server.Close()

	sender := NewSender("AC123", "token-abc", "+15550001111", testLogger())
	sender.baseURL = server.URL

	sid, err := sender.Send(context.Background(), "+15551234567", "Your clip: https://example.com/c.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sid != "SM999" {
		t.Errorf("sid = %q, want SM999", sid)
	}
	if gotUser != "AC123" || gotPass != "token-abc" {
		t.Errorf("basic auth = %q/%q", gotUser, gotPass)
	}
	if receivedForm["To"] != "+15551234567" {
		t.Errorf("To = %q", receivedForm["To"])
	}
	if receivedForm["From"] != "+15550001111" {
		t.Errorf("From = %q", receivedForm["From"])
	}
	if receivedForm["Body"] == "" {
		t.Error("Body should be set")
	}
}

func TestSend_Validation(t *testing.T) {
	sender := NewSender("AC123", "token", "+15550001111", testLogger())

	if _, err := sender.Send(context.Background(), "5551234567", "hi"); apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Errorf("bad recipient kind = %v, want %v", apperr.KindOf(err), apperr.KindInvalidInput)
	}
	if _, err := sender.Send(context.Background(), "+15551234567", "  "); apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Errorf("empty body kind = %v, want %v", apperr.KindOf(err), apperr.KindInvalidInput)
	}

	noCreds := NewSender("", "", "+15550001111", testLogger())
	if _, err := noCreds.Send(context.Background(), "+15551234567", "hi"); apperr.KindOf(err) != apperr.KindConfiguration {
		t.Errorf("missing creds kind = %v, want %v", apperr.KindOf(err), apperr.KindConfiguration)
	}

	badFrom := NewSender("AC123", "token", "5550001111", testLogger())
	if _, err := badFrom.Send(context.Background(), "+15551234567", "hi"); apperr.KindOf(err) != apperr.KindConfiguration {
		t.Errorf("bad sender kind = %v, want %v", apperr.KindOf(err), apperr.KindConfiguration)
	}
}

func TestSend_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"The 'To' number is not a valid phone number."}`))
	}))
	defer server.Close()

	sender := NewSender("AC123", "token", "+15550001111", testLogger())
	sender.baseURL = server.URL

	_, err := sender.Send(context.Background(), "+15551234567", "hi")
	appErr, ok := apperr.As(err)
	if !ok {
		t.Fatalf("error %v is not an apperr.Error", err)
	}
	if appErr.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", appErr.Status)
	}
	if appErr.Message != "The 'To' number is not a valid phone number." {
		t.Errorf("message = %q", appErr.Message)
	}
}

func TestSend_Unreachable(t *testing.T) {
	sender := NewSender("AC123", "token", "+15550001111", testLogger())
	sender.baseURL = "http://127.0.0.1:1"

	_, err := sender.Send(context.Background(), "+15551234567", "hi")
	if apperr.KindOf(err) != apperr.KindTransport {
		t.Errorf("kind = %v, want %v", apperr.KindOf(err), apperr.KindTransport)
	}
}
