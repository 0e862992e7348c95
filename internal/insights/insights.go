// Package insights derives structured hints from a video summary with
// plain keyword heuristics. Good enough to steer the UI; never a
// substitute for a real search.
package insights

import "strings"

// Insights is what the analyze endpoint returns alongside the raw
// summary text.
type Insights struct {
	ContentType        string   `json:"contentType"`
	KeyTopics          []string `json:"keyTopics"`
	SuggestedClips     []string `json:"suggestedClips"`
	HasQuotes          bool     `json:"hasQuotes"`
	HasVisualElements  bool     `json:"hasVisualElements"`
	EstimatedClipCount int      `json:"estimatedClipCount"`
}

// AnalysisPrompt is the summarize prompt the analyze endpoint uses to
// get a summary rich enough for the heuristics below.
const AnalysisPrompt = "Provide a comprehensive analysis of this video including: " +
	"1) Main topics and themes, 2) Key moments or highlights, " +
	"3) Type of content (tutorial, interview, presentation, etc.), " +
	"4) Potential social media clip opportunities, 5) Notable quotes or statements, " +
	"6) Visual elements or scenes that stand out. Be specific and detailed."

// AnalysisTemperature keeps analysis runs consistent across polls.
const AnalysisTemperature = 0.3

var topicKeywords = []string{
	"innovation", "technology", "business", "marketing", "sales", "product", "feature",
	"strategy", "growth", "success", "tips", "advice", "insights", "experience",
	"project", "development", "design", "process", "method", "technique",
}

// Extract classifies a summary and proposes clip themes for it.
func Extract(summary string) Insights {
	lower := strings.ToLower(summary)

	out := Insights{
		ContentType:        "general",
		EstimatedClipCount: 3,
	}

	switch {
	case containsAny(lower, "tutorial", "how to", "step"):
		out.ContentType = "tutorial"
		out.EstimatedClipCount = 4
	case containsAny(lower, "interview", "conversation", "discussion"):
		out.ContentType = "interview"
		out.EstimatedClipCount = 5
	case containsAny(lower, "presentation", "demo", "product"):
		out.ContentType = "presentation"
		out.EstimatedClipCount = 4
	}

	out.HasQuotes = containsAny(lower, "quote", "says", "mentions")
	out.HasVisualElements = containsAny(lower, "shows", "displays", "visual")

	for _, keyword := range topicKeywords {
		if strings.Contains(lower, keyword) {
			out.KeyTopics = append(out.KeyTopics, keyword)
			if len(out.KeyTopics) == 5 {
				break
			}
		}
	}

	out.SuggestedClips = suggestedClips(out.ContentType)
	return out
}

func suggestedClips(contentType string) []string {
	switch contentType {
	case "tutorial":
		return []string{
			"Introduction and overview",
			"Key steps and process",
			"Tips and best practices",
			"Final results and conclusion",
		}
	case "interview":
		return []string{
			"Best quotes and insights",
			"Key discussion points",
			"Personal stories or examples",
			"Advice and recommendations",
			"Most engaging moments",
		}
	case "presentation":
		return []string{
			"Main value proposition",
			"Key features or benefits",
			"Compelling statistics or data",
			"Call to action",
		}
	default:
		return []string{
			"Most engaging moments",
			"Key highlights",
			"Notable quotes or statements",
			"Visual highlights",
		}
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
