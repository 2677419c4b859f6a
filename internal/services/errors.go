package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reframe/internal/registry"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")

	// ErrNoSubject marks a subject reference with nothing detectable in it.
	ErrNoSubject = errors.New("no subject detected")
	// ErrIncomplete marks a drain where at least one chunk failed.
	ErrIncomplete = errors.New("frames outstanding")
	// ErrAudioPending marks a job whose video is assembled but audio reattachment failed.
	ErrAudioPending = errors.New("video ready, audio pending")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later state classification. The marker should be one
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

// FailureState maps a pipeline error to the registry state the job is left in.
func FailureState(err error) registry.State {
	switch {
	case errors.Is(err, ErrAudioPending):
		return registry.StateAudioPending
	case errors.Is(err, context.Canceled), errors.Is(err, ErrIncomplete):
		return registry.StateInterrupted
	default:
		return registry.StateFailed
	}
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
