package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
)

// CredentialRotator owns the set of API keys for one provider and the index
// of the key currently in use. The index only moves forward and survives
// across requests; a success never resets it.
type CredentialRotator struct {
	name string

	mu        sync.Mutex
	keys      []string
	current   int
	rotations int
}

// NewCredentialRotator creates a rotator over keys. Empty keys are dropped.
func NewCredentialRotator(name string, keys []string) *CredentialRotator {
	var kept []string
	for _, k := range keys {
		if k != "" {
			kept = append(kept, k)
		}
	}
	return &CredentialRotator{name: name, keys: kept}
}

// Len returns the number of usable keys.
func (r *CredentialRotator) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// Current returns the active key and its index.
func (r *CredentialRotator) Current() (int, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.keys) == 0 {
		return -1, ""
	}
	return r.current, r.keys[r.current]
}

// Rotations returns how many times the active key has changed.
func (r *CredentialRotator) Rotations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rotations
}

// advanceFrom moves past idx unless another caller already did.
func (r *CredentialRotator) advanceFrom(idx int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.keys) == 0 || r.current != idx {
		return
	}
	r.current = (idx + 1) % len(r.keys)
	r.rotations++
}

// Do runs fn with the active key. A rate-limit error advances to the next key
// and retries the same call; any other error is returned at once. After one
// attempt per key the call gives up with ErrCredentialsExhausted.
func (r *CredentialRotator) Do(ctx context.Context, fn func(idx int, key string) error) error {
	n := r.Len()
	if n == 0 {
		return fmt.Errorf("%s: no API key configured", r.name)
	}

	var lastErr error
	for attempt := 0; attempt < n; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		idx, key := r.Current()
		err := fn(idx, key)
		if err == nil {
			return nil
		}
		if !IsRateLimit(err) {
			return err
		}

		lastErr = err
		r.advanceFrom(idx)
		logger.Log.WithField("provider", r.name).
			Warnf("credential %d/%d rate limited, rotating", idx+1, n)
	}
	return fmt.Errorf("%s: %w after %d attempts: %w", r.name, ErrCredentialsExhausted, n, lastErr)
}
