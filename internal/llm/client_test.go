package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/danschewy/twelvesocial/internal/apperr"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func TestComplete_Success(t *testing.T) {
	var receivedAuth string
	var receivedPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		receivedAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&receivedPayload)
		w.Write([]byte(completionBody("hello there")))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test", "gpt-3.5-turbo", testLogger())
	out, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out != "hello there" {
		t.Errorf("content = %q, want %q", out, "hello there")
	}
	if receivedAuth != "Bearer sk-test" {
		t.Errorf("auth = %q, want %q", receivedAuth, "Bearer sk-test")
	}
	if receivedPayload["model"] != "gpt-3.5-turbo" {
		t.Errorf("model = %v, want gpt-3.5-turbo", receivedPayload["model"])
	}
	if _, ok := receivedPayload["temperature"]; ok {
		t.Error("temperature should be omitted when nil")
	}
}

func TestComplete_MissingKey(t *testing.T) {
	client := NewClient("http://unused", "", "gpt-3.5-turbo", testLogger())
	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if apperr.KindOf(err) != apperr.KindConfiguration {
		t.Errorf("kind = %v, want %v", apperr.KindOf(err), apperr.KindConfiguration)
	}
}

func TestComplete_VendorError_Redacted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`rate limit exceeded for key sk-test-12345`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test-12345", "gpt-3.5-turbo", testLogger())
	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)

	appErr, ok := apperr.As(err)
	if !ok {
		t.Fatalf("error %v is not an apperr.Error", err)
	}
	if appErr.Status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", appErr.Status)
	}
	if strings.Contains(appErr.Message, "sk-test-12345") {
		t.Errorf("message leaks the API key: %q", appErr.Message)
	}
	if !strings.Contains(appErr.Message, "[REDACTED]") {
		t.Errorf("message = %q, want redaction marker", appErr.Message)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test", "gpt-3.5-turbo", testLogger())
	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if apperr.KindOf(err) != apperr.KindVendor {
		t.Errorf("kind = %v, want %v", apperr.KindOf(err), apperr.KindVendor)
	}
}

func TestComplete_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "sk-test", "gpt-3.5-turbo", testLogger())
	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if apperr.KindOf(err) != apperr.KindTransport {
		t.Errorf("kind = %v, want %v", apperr.KindOf(err), apperr.KindTransport)
	}
}

func TestRefineCaption(t *testing.T) {
	var receivedPayload struct {
		Messages []Message `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&receivedPayload)
		w.Write([]byte(completionBody("  Check out this moment! #golang  ")))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test", "gpt-3.5-turbo", testLogger())
	out, err := client.RefineCaption(context.Background(), "look at this moment", "twitter", "playful")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out != "Check out this moment! #golang" {
		t.Errorf("caption = %q, want trimmed reply", out)
	}
	if len(receivedPayload.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(receivedPayload.Messages))
	}
	if receivedPayload.Messages[0].Role != "system" {
		t.Errorf("first message role = %q, want system", receivedPayload.Messages[0].Role)
	}
	if !strings.Contains(receivedPayload.Messages[0].Content, "twitter") {
		t.Errorf("system prompt should name the platform: %q", receivedPayload.Messages[0].Content)
	}
	if !strings.Contains(receivedPayload.Messages[0].Content, "playful") {
		t.Errorf("system prompt should name the tone: %q", receivedPayload.Messages[0].Content)
	}
}

func TestRefineCaption_EmptyCaption(t *testing.T) {
	client := NewClient("http://unused", "sk-test", "gpt-3.5-turbo", testLogger())
	_, err := client.RefineCaption(context.Background(), "   ", "twitter", "")
	if apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Errorf("kind = %v, want %v", apperr.KindOf(err), apperr.KindInvalidInput)
	}
}
