package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"modelgate/internal/core"
	"modelgate/internal/gateway"
	"modelgate/internal/observability"
)

// Handler holds the HTTP handlers.
type Handler struct {
	svc *gateway.Service
}

// NewHandler creates a handler over the gateway service.
func NewHandler(svc *gateway.Service) *Handler {
	return &Handler{svc: svc}
}

// Health handles GET /health.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ListProviders handles GET /v1/providers.
func (h *Handler) ListProviders(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"providers": h.svc.ListProviders(),
	})
}

// ListModels handles GET /v1/providers/:provider/models.
func (h *Handler) ListModels(c echo.Context) error {
	models, err := h.svc.ListModels(c.Param("provider"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"provider": c.Param("provider"),
		"models":   models,
	})
}

// Generate handles POST /v1/generate, dispatching on the stream flag.
func (h *Handler) Generate(c echo.Context) error {
	var req core.GenerationRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewBadRequestError("invalid request body: "+err.Error()))
	}

	if req.Stream {
		return h.generateStream(c, &req)
	}
	return h.generateSync(c, &req)
}

func (h *Handler) generateSync(c echo.Context, req *core.GenerationRequest) error {
	start := time.Now()

	result, err := h.svc.Generate(c.Request().Context(), req)
	if err != nil {
		observability.ObserveGeneration(req.Provider, "sync", outcome(err), start)
		return handleError(c, err)
	}

	observability.ObserveGeneration(result.Provider, "sync", "ok", start)
	if result.Usage != nil {
		observability.ObserveTokens(result.Provider, result.Usage.PromptTokens, result.Usage.CompletionTokens)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) generateStream(c echo.Context, req *core.GenerationRequest) error {
	start := time.Now()
	observability.ActiveStreams.Inc()
	defer observability.ActiveStreams.Dec()

	sink := newSSESink(c)
	err := h.svc.GenerateStream(c.Request().Context(), req, sink)
	if err != nil {
		// Failures before the first upstream byte get a plain error response;
		// nothing has been written to the wire yet.
		observability.ObserveGeneration(req.Provider, "stream", outcome(err), start)
		return handleError(c, err)
	}

	observability.ObserveGeneration(req.Provider, "stream", "ok", start)
	return nil
}

// outcome labels a failed generation for metrics.
func outcome(err error) string {
	var gwErr *core.Error
	if errors.As(err, &gwErr) {
		return string(gwErr.Category)
	}
	return "error"
}

// handleError converts gateway errors to HTTP responses.
func handleError(c echo.Context, err error) error {
	var gwErr *core.Error
	if errors.As(err, &gwErr) {
		return c.JSON(gwErr.HTTPStatusCode(), gwErr.ToJSON())
	}

	// Fallback for unexpected errors.
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"category": core.CategoryInternal,
			"message":  "an unexpected error occurred",
		},
	})
}
