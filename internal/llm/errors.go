package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoProviders is returned when a gateway call has nothing to try.
	ErrNoProviders = errors.New("no LLM providers configured")
	// ErrCredentialsExhausted means every credential of a provider hit a rate limit.
	ErrCredentialsExhausted = errors.New("all credentials rate limited")
	// ErrEmptyResponse is returned when a provider answers with no text.
	ErrEmptyResponse = errors.New("empty response")
)

// rateLimitPhrases are matched case-insensitively against error text.
var rateLimitPhrases = []string{
	"rate limit",
	"ratelimit",
	"rate_limit",
	"429",
	"too many requests",
	"quota",
	"resource_exhausted",
	"resource exhausted",
	"throttl",
}

// ProviderError is a failure reported by a single provider call.
type ProviderError struct {
	Provider    string
	Err         error
	RateLimited bool
}

// NewProviderError wraps err and classifies it.
func NewProviderError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Err: err, RateLimited: IsRateLimit(err)}
}

func (e *ProviderError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("%s: rate limited: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// FallbackError is returned by the gateway when every ranked provider failed.
// Attempts is in rank order.
type FallbackError struct {
	Attempts []error
}

func (e *FallbackError) Error() string {
	msgs := make([]string, len(e.Attempts))
	for i, err := range e.Attempts {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("all %d providers failed: %s", len(e.Attempts), strings.Join(msgs, "; "))
}

func (e *FallbackError) Unwrap() []error { return e.Attempts }

// Last returns the error of the lowest-ranked provider.
func (e *FallbackError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1]
}

// IsRateLimit reports whether err is a rate-limit class failure, either
// tagged as such or recognisable by its message.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.RateLimited {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
