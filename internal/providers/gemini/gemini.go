// Package gemini provides Google Gemini integration for the gateway via
// Google's OpenAI-compatible endpoint. Native Gemini error payloads still
// leak through (error.status, RetryInfo details); the classifier handles them.
package gemini

import (
	"net/http"

	"modelgate/internal/core"
	"modelgate/internal/providers/openaicompat"
)

// Gemini provides an OpenAI-compatible endpoint
const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// New creates a Gemini invoker bound to the given credential.
// baseURL overrides the production endpoint when non-empty.
func New(apiKey, baseURL string) core.Invoker {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return openaicompat.New(core.ProviderGemini, baseURL, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	})
}
