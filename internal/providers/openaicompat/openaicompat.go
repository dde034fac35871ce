// Package openaicompat implements the generation invoker for backends that
// speak the OpenAI chat-completions wire format. All three supported
// providers do: OpenAI natively, DeepSeek by design, and Gemini through its
// OpenAI-compatible endpoint.
package openaicompat

import (
	"context"
	"io"
	"net/http"

	"modelgate/internal/core"
	"modelgate/internal/pkg/llmclient"
)

// Invoker performs chat-completion calls against one compatible backend.
// It is bound to a single credential and discarded after one request.
type Invoker struct {
	provider string
	client   *llmclient.Client
}

// New creates an invoker for the named provider.
func New(provider, baseURL string, headers llmclient.HeaderSetter) *Invoker {
	return &Invoker{
		provider: provider,
		client: llmclient.New(llmclient.Config{
			ProviderName: provider,
			BaseURL:      baseURL,
		}, headers),
	}
}

// NewWithHTTPClient creates an invoker with a custom HTTP client, for tests.
func NewWithHTTPClient(provider, baseURL string, httpClient *http.Client, headers llmclient.HeaderSetter) *Invoker {
	return &Invoker{
		provider: provider,
		client: llmclient.NewWithHTTPClient(httpClient, llmclient.Config{
			ProviderName: provider,
			BaseURL:      baseURL,
		}, headers),
	}
}

// message is one chat message on the wire.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the JSON body for /chat/completions. Optional fields are
// pointers with omitempty: some backends reject explicit nulls, so absent
// means absent.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// chatResponse is the non-streaming completion response.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// buildBody assembles the provider payload from a canonical request,
// including only the fields that are actually present.
func buildBody(req *core.CanonicalRequest, stream bool) *chatRequest {
	body := &chatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, message{Role: "system", Content: req.System})
	}
	if req.Prompt != "" {
		body.Messages = append(body.Messages, message{Role: "user", Content: req.Prompt})
	}
	return body
}

// Complete executes a non-streaming generation call.
func (i *Invoker) Complete(ctx context.Context, req *core.CanonicalRequest) (*core.GenerationResult, error) {
	var resp chatResponse
	err := i.client.Do(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     buildBody(req, false),
	}, &resp)
	if err != nil {
		return nil, err
	}

	result := &core.GenerationResult{
		Provider: i.provider,
		Model:    req.Model,
	}
	if resp.Model != "" {
		result.Model = resp.Model
	}
	if len(resp.Choices) > 0 {
		result.Text = resp.Choices[0].Message.Content
		result.FinishReason = resp.Choices[0].FinishReason
	}
	if resp.Usage != nil {
		result.Usage = &core.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return result, nil
}

// Stream opens a streaming generation call and returns the raw SSE body
// (caller must close). Cancelling ctx tears down the upstream connection.
func (i *Invoker) Stream(ctx context.Context, req *core.CanonicalRequest) (io.ReadCloser, error) {
	return i.client.DoStream(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/chat/completions",
		Body:     buildBody(req, true),
	})
}
