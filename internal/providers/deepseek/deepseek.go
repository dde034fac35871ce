// Package deepseek provides DeepSeek API integration for the gateway.
// DeepSeek exposes an OpenAI-compatible chat API; the only differences are
// the endpoint and the billing failure mode (402 Insufficient Balance).
package deepseek

import (
	"net/http"

	"modelgate/internal/core"
	"modelgate/internal/providers/openaicompat"
)

const defaultBaseURL = "https://api.deepseek.com"

// New creates a DeepSeek invoker bound to the given credential.
// baseURL overrides the production endpoint when non-empty.
func New(apiKey, baseURL string) core.Invoker {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return openaicompat.New(core.ProviderDeepSeek, baseURL, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	})
}
