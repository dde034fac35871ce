// Package gateway drives generation requests end to end: normalization,
// invoker construction, the sync and streaming executors, and classification
// of every failure before it leaves the package.
package gateway

import (
	"context"
	"log/slog"

	"modelgate/internal/core"
	"modelgate/internal/providers"
)

// Service is the gateway's outbound surface, consumed by the transport layer.
type Service struct {
	registry *providers.Registry
}

// New creates a Service over the given registry.
func New(registry *providers.Registry) *Service {
	return &Service{registry: registry}
}

// ListProviders returns the supported backends.
func (s *Service) ListProviders() []core.ProviderInfo {
	return s.registry.Providers()
}

// ListModels returns the valid models of one provider.
func (s *Service) ListModels(providerID string) ([]core.ModelInfo, error) {
	return s.registry.Models(providerID)
}

// Generate executes one non-streaming generation call. Any error returned is
// a *core.Error: validation failures directly, upstream failures after
// classification.
func (s *Service) Generate(ctx context.Context, req *core.GenerationRequest) (*core.GenerationResult, error) {
	canonical, err := Normalize(s.registry, req)
	if err != nil {
		return nil, err
	}

	invoker, desc, err := s.registry.CreateInvoker(canonical.Provider)
	if err != nil {
		return nil, err
	}

	result, err := invoker.Complete(ctx, canonical)
	if err != nil {
		classified := providers.Classify(desc, err)
		slog.Error("generation failed",
			"provider", desc.ID,
			"model", canonical.Model,
			"category", classified.Category,
			"request_id", core.GetRequestID(ctx),
		)
		return nil, classified
	}

	slog.Info("generation completed",
		"provider", desc.ID,
		"model", result.Model,
		"finish_reason", result.FinishReason,
		"request_id", core.GetRequestID(ctx),
	)
	return result, nil
}
