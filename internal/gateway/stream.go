package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"modelgate/internal/core"
	"modelgate/internal/pkg/llmclient"
	"modelgate/internal/providers"
)

// streamState tracks where a relay is in its lifecycle. The terminal states
// are mutually exclusive: a stream completes, is cancelled, or fails, never
// more than one.
type streamState int

const (
	streamIdle streamState = iota
	streamActive
	streamCompleted
	streamCancelled
	streamFailed
)

// streamChunk mirrors the OpenAI-compatible SSE chunk shape. Providers that
// surface mid-stream failures embed an error object in place of choices.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateStream executes one streaming generation call, relaying content
// fragments into sink. Failures before the first upstream byte are returned
// as classified errors so the transport can answer with a plain error
// response; once relaying has begun, failures become a single best-effort
// error fragment and the return value is nil.
func (s *Service) GenerateStream(ctx context.Context, req *core.GenerationRequest, sink core.Sink) error {
	canonical, err := Normalize(s.registry, req)
	if err != nil {
		return err
	}
	canonical.Stream = true

	invoker, desc, err := s.registry.CreateInvoker(canonical.Provider)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	body, err := invoker.Stream(ctx, canonical)
	if err != nil {
		classified := providers.Classify(desc, err)
		slog.Error("stream open failed",
			"provider", desc.ID,
			"model", canonical.Model,
			"category", classified.Category,
			"request_id", core.GetRequestID(ctx),
		)
		return classified
	}
	defer body.Close()

	relay := newStreamRelay(desc, sink, cancel)
	relay.run(ctx, body)

	slog.Info("stream finished",
		"provider", desc.ID,
		"model", canonical.Model,
		"state", relay.stateName(),
		"fragments", relay.fragments,
		"request_id", core.GetRequestID(ctx),
	)
	return nil
}

// streamRelay pumps SSE data lines from an upstream body into a sink,
// enforcing the fragment contract: no fragment and no sentinel after
// cancellation, exactly one sentinel on success, at most one error fragment
// on failure.
type streamRelay struct {
	desc      *providers.Descriptor
	sink      core.Sink
	cancel    context.CancelFunc
	state     streamState
	fragments int
}

func newStreamRelay(desc *providers.Descriptor, sink core.Sink, cancel context.CancelFunc) *streamRelay {
	return &streamRelay{desc: desc, sink: sink, cancel: cancel, state: streamIdle}
}

func (r *streamRelay) run(ctx context.Context, body io.Reader) {
	r.state = streamActive
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if r.checkCancelled(ctx) {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			r.finish()
			return
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			r.fail(&llmclient.UpstreamError{Provider: r.desc.ID, Body: []byte(data)})
			return
		}
		if chunk.Error != nil {
			r.fail(&llmclient.UpstreamError{Provider: r.desc.ID, Body: []byte(data)})
			return
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			if !r.emit(core.StreamFragment{Content: content}) {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil || r.sink.Cancelled() {
			r.markCancelled()
			return
		}
		r.fail(err)
		return
	}

	// Upstream closed without a terminal marker. The output produced so far
	// is all there is; clients still get a well-formed end of stream.
	r.finish()
}

// emit hands one content fragment to the sink. It returns false when the
// relay must stop because the consumer has gone away.
func (r *streamRelay) emit(f core.StreamFragment) bool {
	if r.sink.Cancelled() {
		r.markCancelled()
		return false
	}
	if !r.sink.Accept(f) {
		r.markCancelled()
		return false
	}
	r.fragments++
	return true
}

// finish emits the terminal sentinel unless the consumer has cancelled.
func (r *streamRelay) finish() {
	if r.sink.Cancelled() {
		r.markCancelled()
		return
	}
	r.sink.Accept(core.DoneFragment)
	r.state = streamCompleted
}

// fail classifies err and makes one best-effort attempt to surface it as an
// error fragment. No sentinel follows a failure.
func (r *streamRelay) fail(err error) {
	r.state = streamFailed
	classified := providers.Classify(r.desc, err)
	if r.sink.Cancelled() {
		r.state = streamCancelled
		r.cancel()
		return
	}
	r.sink.Accept(core.StreamFragment{Error: classified.Message})
	r.cancel()
}

func (r *streamRelay) checkCancelled(ctx context.Context) bool {
	if ctx.Err() != nil || r.sink.Cancelled() {
		r.markCancelled()
		return true
	}
	return false
}

// markCancelled records consumer departure and releases the upstream
// connection. Nothing may be written to the sink after this point.
func (r *streamRelay) markCancelled() {
	r.state = streamCancelled
	r.cancel()
}

func (r *streamRelay) stateName() string {
	switch r.state {
	case streamCompleted:
		return "completed"
	case streamCancelled:
		return "cancelled"
	case streamFailed:
		return "failed"
	case streamActive:
		return "active"
	default:
		return "idle"
	}
}
