// Package openai provides OpenAI API integration for the gateway.
package openai

import (
	"net/http"

	"modelgate/internal/core"
	"modelgate/internal/providers/openaicompat"
)

const defaultBaseURL = "https://api.openai.com/v1"

// New creates an OpenAI invoker bound to the given credential.
// baseURL overrides the production endpoint when non-empty.
func New(apiKey, baseURL string) core.Invoker {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return openaicompat.New(core.ProviderOpenAI, baseURL, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+apiKey)

		// Forward the request ID using OpenAI's X-Client-Request-Id header.
		// OpenAI requires ASCII-only characters and max 512 bytes, otherwise returns 400.
		if requestID := core.GetRequestID(req.Context()); requestID != "" && isValidClientRequestID(requestID) {
			req.Header.Set("X-Client-Request-Id", requestID)
		}
	})
}

// isValidClientRequestID checks if the request ID is valid for OpenAI's X-Client-Request-Id header.
// OpenAI requires: ASCII characters only, max 512 characters.
func isValidClientRequestID(id string) bool {
	if len(id) > 512 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] > 127 {
			return false
		}
	}
	return true
}
