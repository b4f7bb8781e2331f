package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoProviders is returned when the filtered provider chain is empty, before
// any call is attempted.
var ErrNoProviders = errors.New("llm: no enabled provider matches the request")

// ProviderAttempt records one failed link of the fallback chain.
type ProviderAttempt struct {
	Key string
	Err error
}

// AllProvidersFailedError aggregates the per-provider failures once the whole
// chain is exhausted. Individual provider errors are swallowed during the
// fallback walk; only this aggregate surfaces to the caller.
type AllProvidersFailedError struct {
	Attempts []ProviderAttempt
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Key, a.Err))
	}
	return fmt.Sprintf("all %d providers failed: [%s]", len(e.Attempts), strings.Join(parts, "; "))
}
