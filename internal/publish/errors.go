package publish

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks requests the platform rejected as malformed.
	// Retrying without changing the post will not help.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or unusable credentials.
	ErrConfiguration = errors.New("configuration error")
	// ErrDuplicate marks posts the platform refused as duplicate content.
	ErrDuplicate = errors.New("duplicate content")
	// ErrRateLimited marks a platform rate limit response.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransient marks failures that may clear on a later attempt.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes adapter context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, platform, operation, message string, err error) error {
	detail := buildDetail(platform, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether an error is worth another attempt at a later
// slot. Validation, configuration, and duplicate failures are final.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrDuplicate):
		return false
	default:
		return true
	}
}

func buildDetail(platform, operation, message string) string {
	parts := make([]string, 0, 3)
	if platform = strings.TrimSpace(platform); platform != "" {
		parts = append(parts, platform)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "publish failure"
	}
	return strings.Join(parts, ": ")
}
