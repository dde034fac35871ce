package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"modelgate/internal/core"
)

// sseSink bridges the gateway's fragment stream onto an SSE response.
// Headers are written lazily on the first fragment so that failures before
// any output still get a plain JSON error response.
type sseSink struct {
	c       echo.Context
	started bool
}

func newSSESink(c echo.Context) *sseSink {
	return &sseSink{c: c}
}

// Accept writes one fragment as an SSE event and flushes it immediately.
// It reports false once the client connection is gone.
func (s *sseSink) Accept(f core.StreamFragment) bool {
	if s.Cancelled() {
		return false
	}
	if !s.started {
		h := s.c.Response().Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		s.c.Response().WriteHeader(http.StatusOK)
		// Comment line so proxies and clients see bytes immediately.
		if _, err := s.c.Response().Write([]byte(": ok\n\n")); err != nil {
			return false
		}
		s.started = true
	}

	if _, err := s.c.Response().Write([]byte("data: " + f.StreamPayload() + "\n\n")); err != nil {
		return false
	}
	s.c.Response().Flush()
	return true
}

// Cancelled reports whether the client has disconnected.
func (s *sseSink) Cancelled() bool {
	select {
	case <-s.c.Request().Context().Done():
		return true
	default:
		return false
	}
}
