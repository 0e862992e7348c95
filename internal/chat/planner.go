// Package chat plans clip searches from a natural-language
// conversation. The language model is asked to answer in prose until
// it knows enough, then emit a fenced JSON plan of search queries.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/danschewy/twelvesocial/internal/apperr"
	"github.com/danschewy/twelvesocial/internal/llm"
	"github.com/danschewy/twelvesocial/internal/store"
)

// SearchQuery is one video search the planner wants run. SearchOptions
// only ever holds values from the vendor's modality vocabulary.
type SearchQuery struct {
	ID            string   `json:"id"`
	QueryText     string   `json:"queryText"`
	SearchOptions []string `json:"searchOptions"`
}

// Response is what a chat turn produces. SearchQueries is empty while
// the planner is still gathering requirements.
type Response struct {
	SessionID     string        `json:"sessionId"`
	Message       string        `json:"message"`
	SearchQueries []SearchQuery `json:"searchQueries,omitempty"`
}

// VideoContext is what the planner knows about the video under
// discussion. All fields optional.
type VideoContext struct {
	VideoID  string  `json:"videoId,omitempty"`
	Filename string  `json:"filename,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Summary  string  `json:"summary,omitempty"`
}

// completer is the slice of the language model client the planner uses.
type completer interface {
	Complete(ctx context.Context, messages []llm.Message, temperature *float64) (string, error)
}

// Planner drives the clip-planning conversation.
type Planner struct {
	llm      completer
	sessions store.SessionStore
	logger   *slog.Logger
}

func NewPlanner(llm completer, sessions store.SessionStore, logger *slog.Logger) *Planner {
	return &Planner{llm: llm, sessions: sessions, logger: logger}
}

// Respond appends the user's message to the session, asks the model,
// and returns either a plain reply or an extracted search plan. Model
// failures degrade to an apology so the conversation can continue; the
// caller never sees a 5xx for them.
func (p *Planner) Respond(ctx context.Context, sessionID, userMessage string, video *VideoContext) (Response, error) {
	if strings.TrimSpace(userMessage) == "" {
		return Response{}, apperr.InvalidInput("message is required")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if err := p.sessions.AppendTurn(ctx, sessionID, "user", userMessage); err != nil {
		return Response{}, fmt.Errorf("record user turn: %w", err)
	}

	history, err := p.sessions.ListTurns(ctx, sessionID)
	if err != nil {
		return Response{}, fmt.Errorf("load session history: %w", err)
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt(video)})
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}

	temp := 0.7
	reply, err := p.llm.Complete(ctx, messages, &temp)
	if err != nil {
		apology := apologyFor(err)
		p.logger.Warn("planner model call failed",
			"session_id", sessionID,
			"error", err,
		)
		// Keep the apology in history so the model sees it next turn.
		if err := p.sessions.AppendTurn(ctx, sessionID, "assistant", apology); err != nil {
			return Response{}, fmt.Errorf("record apology turn: %w", err)
		}
		return Response{SessionID: sessionID, Message: apology}, nil
	}

	message, queries := extractPlan(reply)

	// Record the cleaned-up message, not the raw reply, so the JSON
	// block is not fed back to the model as context next turn.
	if err := p.sessions.AppendTurn(ctx, sessionID, "assistant", message); err != nil {
		return Response{}, fmt.Errorf("record assistant turn: %w", err)
	}

	if len(queries) > 0 {
		p.logger.Info("search plan produced",
			"session_id", sessionID,
			"queries", len(queries),
		)
	}

	return Response{SessionID: sessionID, Message: message, SearchQueries: queries}, nil
}

func systemPrompt(video *VideoContext) string {
	var b strings.Builder
	b.WriteString("You help users find moments in their uploaded video to turn into social media clips. ")
	b.WriteString("Ask clarifying questions until you understand what they want. ")
	b.WriteString("When you know enough, reply with a fenced JSON block:\n")
	b.WriteString("```json\n{\"searchQueries\":[{\"id\":\"q1\",\"queryText\":\"...\",\"searchOptions\":[\"visual\",\"audio\"]}],\"notesForUser\":\"...\"}\n```\n")
	b.WriteString("searchOptions may only contain \"visual\" and \"audio\". ")
	b.WriteString("queryText must describe observable content, not editing instructions.")

	if video != nil {
		b.WriteString("\n\nThe video under discussion:")
		if video.Filename != "" {
			fmt.Fprintf(&b, "\n- file: %s", video.Filename)
		}
		if video.Duration > 0 {
			fmt.Fprintf(&b, "\n- duration: %.0f seconds", video.Duration)
		}
		if video.Summary != "" {
			fmt.Fprintf(&b, "\n- summary: %s", video.Summary)
		}
	}
	return b.String()
}

var fencedJSONRE = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n\\s*```")

type planPayload struct {
	SearchQueries []struct {
		ID            string   `json:"id"`
		QueryText     string   `json:"queryText"`
		SearchOptions []string `json:"searchOptions"`
	} `json:"searchQueries"`
	NotesForUser string `json:"notesForUser"`
}

// extractPlan pulls a fenced JSON plan out of the model's reply. A
// reply without a parseable plan is treated as plain conversation.
func extractPlan(reply string) (string, []SearchQuery) {
	match := fencedJSONRE.FindStringSubmatch(reply)
	if match == nil {
		return strings.TrimSpace(reply), nil
	}

	var plan planPayload
	if err := json.Unmarshal([]byte(match[1]), &plan); err != nil {
		return strings.TrimSpace(reply), nil
	}

	queries := make([]SearchQuery, 0, len(plan.SearchQueries))
	for _, q := range plan.SearchQueries {
		text := strings.TrimSpace(q.QueryText)
		if text == "" {
			continue
		}
		id := q.ID
		if id == "" {
			id = uuid.NewString()
		}
		queries = append(queries, SearchQuery{
			ID:            id,
			QueryText:     text,
			SearchOptions: filterOptions(q.SearchOptions),
		})
	}
	if len(queries) == 0 {
		return strings.TrimSpace(reply), nil
	}

	message := strings.TrimSpace(plan.NotesForUser)
	if message == "" {
		message = "Here is the search plan for your clips."
	}
	return message, queries
}

// filterOptions keeps only the modalities the search endpoint accepts.
func filterOptions(options []string) []string {
	out := make([]string, 0, 2)
	for _, o := range options {
		switch strings.ToLower(strings.TrimSpace(o)) {
		case "visual":
			if !contains(out, "visual") {
				out = append(out, "visual")
			}
		case "audio":
			if !contains(out, "audio") {
				out = append(out, "audio")
			}
		}
	}
	if len(out) == 0 {
		out = append(out, "visual")
	}
	return out
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// apologyFor maps a model failure to a user-facing sentence.
func apologyFor(err error) string {
	if apperr.KindOf(err) == apperr.KindConfiguration {
		return "Chat is not configured on this server yet. Please add a language model API key and try again."
	}
	if appErr, ok := apperr.As(err); ok && appErr.Status == http.StatusTooManyRequests {
		return "I'm being rate limited right now. Give it a moment and send your message again."
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "timeout") {
		return "That took too long to process. Please try again."
	}
	return "I couldn't reach the language model. Check your connection and try again."
}
