// Package core defines the request/response contract and error taxonomy
// shared by the gateway, the provider registry, and the HTTP surface.
package core

import (
	"context"
	"encoding/json"
	"io"
)

// Provider identifiers. The set is closed: new backends are added in code,
// never registered at runtime.
const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderGemini   = "gemini"
)

// GenerationRequest is the incoming generation request. Shape validation is
// the transport's job; semantic validation happens in gateway.Normalize.
type GenerationRequest struct {
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	System      string   `json:"system,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *float64 `json:"max_tokens,omitempty"`
	Stream      bool     `json:"stream,omitempty"`
}

// CanonicalRequest is the normalized form of a GenerationRequest: strings
// trimmed, temperature clamped into [0,2], max tokens floored to a positive
// integer. Absent optional fields stay nil so provider payloads can omit them.
type CanonicalRequest struct {
	Provider    string
	Model       string
	Prompt      string
	System      string
	Temperature *float64
	MaxTokens   *int
	Stream      bool
}

// GenerationResult is the shaped outcome of one non-streaming call.
type GenerationResult struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}

// Usage holds token accounting as reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamFragment is one element of a streamed generation. Exactly one of the
// three shapes is populated: a content fragment, the terminal sentinel, or an
// error fragment. The sequence is finite, ordered, and consumed at most once.
type StreamFragment struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	done    bool
}

// DoneFragment is the terminal sentinel ending a successful stream.
var DoneFragment = StreamFragment{done: true}

// Done reports whether this fragment is the terminal sentinel.
func (f StreamFragment) Done() bool { return f.done }

// StreamPayload returns the wire payload for one SSE data line. The literal
// terminal marker and the content/error field names are part of the contract
// with existing clients and must not change.
func (f StreamFragment) StreamPayload() string {
	if f.done {
		return "[DONE]"
	}
	if f.Error != "" {
		return `{"error":` + jsonString(f.Error) + `}`
	}
	return `{"content":` + jsonString(f.Content) + `}`
}

// jsonString marshals s as a JSON string literal.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// Sink is the transport-side consumer of a fragment stream. Accept reports
// whether the consumer is still taking fragments; a write after cancellation
// is a no-op for the producer, not an error. Cancelled must be cheap: the
// stream executor checks it at every fragment.
type Sink interface {
	Accept(StreamFragment) bool
	Cancelled() bool
}

// ProviderInfo describes one supported backend for listing endpoints.
type ProviderInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// ModelInfo describes one model a provider exposes.
type ModelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Invoker is a per-request capability bound to one resolved credential and
// one provider. It performs exactly one generation call and is discarded
// after use; invokers are never pooled across requests.
type Invoker interface {
	// Complete executes a non-streaming generation call.
	Complete(ctx context.Context, req *CanonicalRequest) (*GenerationResult, error)

	// Stream opens a streaming generation call and returns the raw SSE body.
	// The caller owns the ReadCloser and must close it; cancelling ctx
	// releases the upstream connection.
	Stream(ctx context.Context, req *CanonicalRequest) (io.ReadCloser, error)
}
