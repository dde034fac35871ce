package providers

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"modelgate/internal/core"
	"modelgate/internal/pkg/llmclient"
)

// retryHintPattern matches the "retry in N seconds" phrasing providers embed
// in quota errors, e.g. "Please retry in 26.33s" or "retry in 7 seconds".
var retryHintPattern = regexp.MustCompile(`(?i)retry in ([0-9]+(?:\.[0-9]+)?)\s*s`)

// rawError is the dissected form of an upstream failure: whatever the
// transport and payload revealed, normalized for the classifier chain.
type rawError struct {
	status     int    // HTTP status, 0 if the call never completed
	message    string // best available human message
	rpcStatus  string // Gemini-style status string (RESOURCE_EXHAUSTED, ...)
	retryDelay string // RetryInfo delay, e.g. "26s", when present
}

// Classify folds a raw upstream error into the gateway taxonomy. The chain is
// priority-ordered and first-match-wins: a 403 that also mentions an invalid
// key must classify as Forbidden, not Unauthorized, or operators are told to
// rotate the wrong control. Reordering these checks changes behavior.
func Classify(d *Descriptor, err error) *core.Error {
	// Already classified errors pass through untouched.
	var classified *core.Error
	if errors.As(err, &classified) {
		return classified
	}

	raw := dissect(err)
	lower := strings.ToLower(raw.message)

	switch {
	case isParameterError(raw, lower):
		return &core.Error{
			Category: core.CategoryBadRequest,
			Message:  raw.message,
			Provider: d.ID,
			Cause:    err,
		}

	case raw.status == 402 ||
		strings.Contains(lower, "insufficient balance") ||
		strings.Contains(lower, "insufficient funds") ||
		strings.Contains(lower, "insufficient credit"):
		return &core.Error{
			Category: core.CategoryInsufficientBalance,
			Message:  balanceMessage(d),
			Provider: d.ID,
			Cause:    err,
		}

	case raw.status == 429 ||
		raw.rpcStatus == "RESOURCE_EXHAUSTED" ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "quota"):
		return &core.Error{
			Category:          core.CategoryRateLimited,
			Message:           rateLimitMessage(d, raw),
			Provider:          d.ID,
			RetryAfterSeconds: retryAfterSeconds(raw),
			Cause:             err,
		}

	case raw.status == 403 ||
		raw.rpcStatus == "PERMISSION_DENIED" ||
		strings.Contains(lower, "leaked"):
		if strings.Contains(lower, "leaked") {
			return &core.Error{
				Category: core.CategoryForbiddenLeaked,
				Message: fmt.Sprintf("%s API key was reported as leaked and has been blocked - rotate the key and update %s",
					d.DisplayName, d.CredentialEnvKey),
				Provider: d.ID,
				Cause:    err,
			}
		}
		return &core.Error{
			Category: core.CategoryForbiddenOther,
			Message: fmt.Sprintf("%s rejected the credential (forbidden) - verify the key in %s is active and has access to this model",
				d.DisplayName, d.CredentialEnvKey),
			Provider: d.ID,
			Cause:    err,
		}

	case raw.status == 401 ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid") ||
		strings.Contains(lower, "api key"):
		return &core.Error{
			Category: core.CategoryUnauthorized,
			Message: fmt.Sprintf("%s authentication failed - check that %s holds a valid API key",
				d.DisplayName, d.CredentialEnvKey),
			Provider: d.ID,
			Cause:    err,
		}

	default:
		return &core.Error{
			Category: core.CategoryInternal,
			Message:  fmt.Sprintf("%s error: %s", d.DisplayName, raw.message),
			Provider: d.ID,
			Cause:    err,
		}
	}
}

// isParameterError detects validation-shaped upstream complaints, which pass
// through as caller errors with the original message intact.
func isParameterError(raw rawError, lower string) bool {
	if raw.rpcStatus == "INVALID_ARGUMENT" {
		return true
	}
	return strings.Contains(lower, "invalid argument") ||
		strings.Contains(lower, "invalid parameter") ||
		strings.Contains(lower, "unsupported parameter") ||
		strings.Contains(lower, "invalid value for parameter")
}

func balanceMessage(d *Descriptor) string {
	switch d.ID {
	case core.ProviderDeepSeek:
		return "DeepSeek account balance is exhausted - top up at https://platform.deepseek.com/top_up"
	case core.ProviderOpenAI:
		return "OpenAI credit balance is exhausted - review billing at https://platform.openai.com/settings/organization/billing"
	default:
		return fmt.Sprintf("%s account balance is exhausted - top up the account linked to %s", d.DisplayName, d.CredentialEnvKey)
	}
}

func rateLimitMessage(d *Descriptor, raw rawError) string {
	msg := fmt.Sprintf("%s rate limit or quota exceeded", d.DisplayName)
	if d.ID == core.ProviderGemini {
		// Preview models carry much tighter free-tier quotas than GA models;
		// operators routinely mistake this for an outage.
		msg += " (note: gemini preview models have significantly lower quota limits than stable models)"
	}
	if secs := retryAfterSeconds(raw); secs > 0 {
		msg += fmt.Sprintf(" - retry after %d seconds", secs)
	}
	return msg
}

// retryAfterSeconds extracts a retry-delay hint from either a structured
// RetryInfo detail or "retry in N seconds" phrasing in the message.
func retryAfterSeconds(raw rawError) int {
	if raw.retryDelay != "" {
		if secs, err := strconv.ParseFloat(strings.TrimSuffix(raw.retryDelay, "s"), 64); err == nil && secs > 0 {
			return int(math.Ceil(secs))
		}
	}
	if m := retryHintPattern.FindStringSubmatch(raw.message); m != nil {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil && secs > 0 {
			return int(math.Ceil(secs))
		}
	}
	return 0
}

// dissect pulls the status code and nested payload fields out of an upstream
// error. Providers disagree on shape: OpenAI and DeepSeek nest under
// error.message/error.code, Gemini adds error.status and RetryInfo details.
func dissect(err error) rawError {
	raw := rawError{message: err.Error()}

	var upstream *llmclient.UpstreamError
	if !errors.As(err, &upstream) {
		return raw
	}

	raw.status = upstream.StatusCode
	raw.message = string(upstream.Body)

	body := gjson.ParseBytes(upstream.Body)
	if msg := body.Get("error.message"); msg.Exists() && msg.String() != "" {
		raw.message = msg.String()
	}
	if st := body.Get("error.status"); st.Exists() {
		raw.rpcStatus = st.String()
	}

	// Gemini attaches machine-readable retry hints as a RetryInfo detail:
	// {"error":{"details":[{"@type":".../RetryInfo","retryDelay":"26s"}]}}
	body.Get("error.details").ForEach(func(_, detail gjson.Result) bool {
		if strings.Contains(detail.Get("@type").String(), "RetryInfo") {
			raw.retryDelay = detail.Get("retryDelay").String()
			return false
		}
		return true
	})

	return raw
}
