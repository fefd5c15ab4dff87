package domain

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestErrorClassMatching(t *testing.T) {
	resetAt := time.Now()

	cases := []struct {
		err      error
		sentinel error
	}{
		{NotFoundError{Resource: "source"}, ErrNotFound},
		{ConfigurationError{Detail: "no connector"}, ErrConfiguration},
		{CredentialError{Detail: "expired"}, ErrCredential},
		{RateLimitError{ResetAt: &resetAt}, ErrRateLimited},
		{ValidationError{Detail: "bad limit"}, ErrValidation},
	}

	for _, tc := range cases {
		if !errors.Is(tc.err, tc.sentinel) {
			t.Fatalf("%T did not match its sentinel", tc.err)
		}
		wrapped := errors.Wrap(tc.err, "context")
		if !errors.Is(wrapped, tc.sentinel) {
			t.Fatalf("wrapped %T did not match its sentinel", tc.err)
		}
	}

	if errors.Is(ValidationError{}, ErrNotFound) {
		t.Fatalf("error classes must not cross-match")
	}
}

func TestRateLimitErrorAs(t *testing.T) {
	resetAt := time.Now().Add(time.Minute)
	wrapped := errors.Wrap(RateLimitError{ResetAt: &resetAt}, "twitter request failed")

	var rateErr RateLimitError
	if !errors.As(wrapped, &rateErr) {
		t.Fatalf("expected errors.As to recover the rate limit error")
	}
	if rateErr.ResetAt == nil || !rateErr.ResetAt.Equal(resetAt) {
		t.Fatalf("expected reset time to survive wrapping")
	}
}
