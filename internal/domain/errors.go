package domain

import (
	"fmt"
	"time"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// ConfigurationError marks a wiring problem such as an unknown platform.
// It is fatal and never retried.
type ConfigurationError struct {
	Detail string
}

func (e ConfigurationError) Error() string {
	if e.Detail == "" {
		return "configuration error"
	}
	return fmt.Sprintf("configuration error: %s", e.Detail)
}

func (e ConfigurationError) Is(target error) bool {
	_, ok := target.(ConfigurationError)
	if ok {
		return true
	}
	_, ok = target.(*ConfigurationError)
	return ok
}

var ErrConfiguration = ConfigurationError{}

// CredentialError marks an invalid or expired credential bundle.
// Recovery requires external re-authorization.
type CredentialError struct {
	Detail string
}

func (e CredentialError) Error() string {
	if e.Detail == "" {
		return "credential error"
	}
	return fmt.Sprintf("credential error: %s", e.Detail)
}

func (e CredentialError) Is(target error) bool {
	_, ok := target.(CredentialError)
	if ok {
		return true
	}
	_, ok = target.(*CredentialError)
	return ok
}

var ErrCredential = CredentialError{}

// RateLimitError marks a 429-class platform response. ResetAt, when
// known, tells the scheduler when the quota recovers.
type RateLimitError struct {
	ResetAt *time.Time
}

func (e RateLimitError) Error() string {
	if e.ResetAt != nil {
		return fmt.Sprintf("rate limited until %s", e.ResetAt.Format(time.RFC3339))
	}
	return "rate limited"
}

func (e RateLimitError) Is(target error) bool {
	_, ok := target.(RateLimitError)
	if ok {
		return true
	}
	_, ok = target.(*RateLimitError)
	return ok
}

var ErrRateLimited = RateLimitError{}

// ValidationError marks caller input rejected synchronously.
type ValidationError struct {
	Detail string
}

func (e ValidationError) Error() string {
	if e.Detail == "" {
		return "validation error"
	}
	return e.Detail
}

func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	if ok {
		return true
	}
	_, ok = target.(*ValidationError)
	return ok
}

var ErrValidation = ValidationError{}
