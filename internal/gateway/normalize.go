package gateway

import (
	"fmt"
	"math"
	"strings"

	"modelgate/internal/core"
	"modelgate/internal/providers"
)

const maxTokensCeiling = 1_000_000

// Normalize validates a generation request and coerces it into canonical
// form. The check order is part of the contract: provider, model presence,
// model membership, prompt/system, max tokens, temperature. When several
// fields are wrong the caller sees the first failure in this order.
//
// Numeric coercion is deliberately permissive: a negative max_tokens has its
// sign flipped rather than being rejected, and an out-of-range temperature is
// clamped to the nearest bound. Existing clients depend on clamp-not-reject;
// do not tighten this without confirming intent.
func Normalize(registry *providers.Registry, req *core.GenerationRequest) (*core.CanonicalRequest, error) {
	desc, err := registry.DescriptorFor(req.Provider)
	if err != nil {
		return nil, err
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		return nil, core.NewBadRequestError("model name empty")
	}
	if !desc.HasModel(model) {
		return nil, core.NewBadRequestError(fmt.Sprintf(
			"model %q is not available for provider %s; valid models: %s",
			model, desc.ID, strings.Join(desc.Models, ", ")))
	}

	prompt := strings.TrimSpace(req.Prompt)
	system := strings.TrimSpace(req.System)
	if prompt == "" && system == "" {
		return nil, core.NewBadRequestError("at least one of prompt or system must be non-empty")
	}

	canonical := &core.CanonicalRequest{
		Provider: desc.ID,
		Model:    model,
		Prompt:   prompt,
		System:   system,
		Stream:   req.Stream,
	}

	if req.MaxTokens != nil {
		tokens, err := normalizeMaxTokens(*req.MaxTokens)
		if err != nil {
			return nil, err
		}
		canonical.MaxTokens = &tokens
	}

	if req.Temperature != nil {
		temp, err := normalizeTemperature(*req.Temperature)
		if err != nil {
			return nil, err
		}
		canonical.Temperature = &temp
	}

	return canonical, nil
}

// normalizeMaxTokens applies the abs/floor coercion, then enforces the
// [1, 1_000_000] range. The violated bound is named in the error.
func normalizeMaxTokens(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, core.NewBadRequestError("max_tokens must be a finite number")
	}
	tokens := int(math.Floor(math.Abs(v)))
	if tokens < 1 {
		return 0, core.NewBadRequestError("max_tokens must be at least 1")
	}
	if tokens > maxTokensCeiling {
		return 0, core.NewBadRequestError(fmt.Sprintf("max_tokens must not exceed %d", maxTokensCeiling))
	}
	return tokens, nil
}

// normalizeTemperature clamps into [0,2] instead of rejecting.
func normalizeTemperature(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, core.NewBadRequestError("temperature must be a finite number")
	}
	if v < 0 {
		return 0, nil
	}
	if v > 2 {
		return 2, nil
	}
	return v, nil
}
