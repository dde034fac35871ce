package gateway

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelgate/internal/core"
	"modelgate/internal/providers"
)

// recordingSink captures every fragment the relay writes and can simulate a
// departed consumer either through Cancelled or by refusing Accept.
type recordingSink struct {
	fragments []core.StreamFragment
	cancelAt  int // Cancelled reports true once this many fragments were taken, 0 = never
	rejectAt  int // Accept refuses once this many fragments were taken, 0 = never
}

func (s *recordingSink) Accept(f core.StreamFragment) bool {
	if s.rejectAt > 0 && len(s.fragments) >= s.rejectAt {
		return false
	}
	s.fragments = append(s.fragments, f)
	return true
}

func (s *recordingSink) Cancelled() bool {
	return s.cancelAt > 0 && len(s.fragments) >= s.cancelAt
}

func (s *recordingSink) contents() []string {
	var out []string
	for _, f := range s.fragments {
		if !f.Done() && f.Error == "" {
			out = append(out, f.Content)
		}
	}
	return out
}

func (s *recordingSink) doneCount() int {
	n := 0
	for _, f := range s.fragments {
		if f.Done() {
			n++
		}
	}
	return n
}

func (s *recordingSink) errors() []string {
	var out []string
	for _, f := range s.fragments {
		if f.Error != "" {
			out = append(out, f.Error)
		}
	}
	return out
}

func sseBody(payloads ...string) io.Reader {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString("data: " + p + "\n\n")
	}
	return strings.NewReader(b.String())
}

func testDescriptor() *providers.Descriptor {
	return &providers.Descriptor{
		ID:               core.ProviderOpenAI,
		DisplayName:      "OpenAI",
		CredentialEnvKey: "OPENAI_API_KEY",
	}
}

func runRelay(t *testing.T, sink *recordingSink, body io.Reader) *streamRelay {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay := newStreamRelay(testDescriptor(), sink, cancel)
	relay.run(ctx, body)
	return relay
}

func TestStreamRelay_CompletesWithSingleSentinel(t *testing.T) {
	sink := &recordingSink{}
	relay := runRelay(t, sink, sseBody(
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`{"choices":[{"delta":{"content":"!"}}]}`,
		`[DONE]`,
	))

	assert.Equal(t, []string{"Hel", "lo", "!"}, sink.contents())
	assert.Equal(t, 1, sink.doneCount())
	assert.Empty(t, sink.errors())
	assert.Equal(t, streamCompleted, relay.state)
	assert.Equal(t, 3, relay.fragments)

	// The sentinel must be the last fragment.
	require.NotEmpty(t, sink.fragments)
	assert.True(t, sink.fragments[len(sink.fragments)-1].Done())
}

func TestStreamRelay_EOFWithoutDoneStillEndsStream(t *testing.T) {
	sink := &recordingSink{}
	relay := runRelay(t, sink, sseBody(
		`{"choices":[{"delta":{"content":"partial"}}]}`,
	))

	assert.Equal(t, []string{"partial"}, sink.contents())
	assert.Equal(t, 1, sink.doneCount())
	assert.Equal(t, streamCompleted, relay.state)
}

func TestStreamRelay_SkipsEmptyDeltasAndNonDataLines(t *testing.T) {
	body := strings.NewReader(strings.Join([]string{
		": keep-alive comment",
		"",
		`data: {"choices":[{"delta":{}}]}`,
		"",
		`data: {"choices":[{"delta":{"content":"only"}}]}`,
		"",
		`data: {"choices":[{"delta":{"content":""},"finish_reason":"stop"}]}`,
		"",
		"data: [DONE]",
		"",
	}, "\n"))

	sink := &recordingSink{}
	relay := runRelay(t, sink, body)

	assert.Equal(t, []string{"only"}, sink.contents())
	assert.Equal(t, 1, sink.doneCount())
	assert.Equal(t, streamCompleted, relay.state)
}

func TestStreamRelay_CancellationStopsAllOutput(t *testing.T) {
	sink := &recordingSink{cancelAt: 2}
	relay := runRelay(t, sink, sseBody(
		`{"choices":[{"delta":{"content":"a"}}]}`,
		`{"choices":[{"delta":{"content":"b"}}]}`,
		`{"choices":[{"delta":{"content":"c"}}]}`,
		`[DONE]`,
	))

	assert.Equal(t, []string{"a", "b"}, sink.contents())
	assert.Zero(t, sink.doneCount())
	assert.Empty(t, sink.errors())
	assert.Equal(t, streamCancelled, relay.state)
}

func TestStreamRelay_RejectedAcceptStopsWithoutSentinel(t *testing.T) {
	sink := &recordingSink{rejectAt: 1}
	relay := runRelay(t, sink, sseBody(
		`{"choices":[{"delta":{"content":"a"}}]}`,
		`{"choices":[{"delta":{"content":"b"}}]}`,
		`[DONE]`,
	))

	assert.Equal(t, []string{"a"}, sink.contents())
	assert.Zero(t, sink.doneCount())
	assert.Equal(t, streamCancelled, relay.state)
}

func TestStreamRelay_ContextCancellationBeforeFirstFragment(t *testing.T) {
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	relay := newStreamRelay(testDescriptor(), sink, cancel)
	relay.run(ctx, sseBody(`{"choices":[{"delta":{"content":"a"}}]}`, `[DONE]`))

	assert.Empty(t, sink.fragments)
	assert.Equal(t, streamCancelled, relay.state)
}

func TestStreamRelay_MidStreamErrorBecomesOneErrorFragment(t *testing.T) {
	sink := &recordingSink{}
	relay := runRelay(t, sink, sseBody(
		`{"choices":[{"delta":{"content":"one"}}]}`,
		`{"choices":[{"delta":{"content":"two"}}]}`,
		`{"choices":[{"delta":{"content":"three"}}]}`,
		`{"error":{"message":"Rate limit reached for gpt-4o. Please retry in 20s."}}`,
		`[DONE]`,
	))

	assert.Equal(t, []string{"one", "two", "three"}, sink.contents())
	assert.Zero(t, sink.doneCount(), "no sentinel after a failure")
	require.Len(t, sink.errors(), 1)
	assert.Contains(t, sink.errors()[0], "rate limit or quota exceeded")
	assert.Contains(t, sink.errors()[0], "retry after 20 seconds")
	assert.Equal(t, streamFailed, relay.state)
}

func TestStreamRelay_MalformedChunkFails(t *testing.T) {
	sink := &recordingSink{}
	relay := runRelay(t, sink, sseBody(
		`{"choices":[{"delta":{"content":"ok"}}]}`,
		`{not json`,
	))

	assert.Equal(t, []string{"ok"}, sink.contents())
	assert.Zero(t, sink.doneCount())
	require.Len(t, sink.errors(), 1)
	assert.Equal(t, streamFailed, relay.state)
}

func TestStreamRelay_ErrorAfterCancellationIsSilent(t *testing.T) {
	sink := &recordingSink{cancelAt: 1}
	relay := runRelay(t, sink, sseBody(
		`{"choices":[{"delta":{"content":"a"}}]}`,
		`{"error":{"message":"boom"}}`,
	))

	assert.Equal(t, []string{"a"}, sink.contents())
	assert.Empty(t, sink.errors())
	assert.Zero(t, sink.doneCount())
	assert.Equal(t, streamCancelled, relay.state)
}
