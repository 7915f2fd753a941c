package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks out-of-range parameters or malformed inputs caught
	// before any stage executes.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or inconsistent configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrResource marks device capacity failures (e.g. insufficient GPU
	// memory). Separation retries exactly once on the CPU for these.
	ErrResource = errors.New("resource error")
	// ErrUnavailable marks a collaborator that is not installed or whose
	// model could not be fetched. Diarization falls back on these.
	ErrUnavailable = errors.New("collaborator unavailable")
	// ErrAuth marks a missing or rejected collaborator credential.
	// Diarization falls back on these.
	ErrAuth = errors.New("authorization error")
	// ErrModelLoad marks a corrupt or unloadable model. Fatal in any stage.
	ErrModelLoad = errors.New("model load error")
	// ErrIO marks filesystem read/write/permission failures. Fatal.
	ErrIO = errors.New("io error")
	// ErrTransient marks failures with no better classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FallbackEligible reports whether a diarization failure should switch the
// run onto the heuristic segmenter instead of failing the run.
func FallbackEligible(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrAuth)
}

// ResourceClass reports whether a separation failure qualifies for the single
// GPU-to-CPU device retry.
func ResourceClass(err error) bool {
	return errors.Is(err, ErrResource)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// Details extracts the human-readable portion of a wrapped service error,
// stripping the marker prefix when present.
func Details(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{
		ErrValidation, ErrConfiguration, ErrResource, ErrUnavailable,
		ErrAuth, ErrModelLoad, ErrIO, ErrTransient,
	} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}
