package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransient      = errors.New("transient failure")
	ErrTimeout        = errors.New("timeout")
	ErrValidation     = errors.New("validation error")
	ErrConfiguration  = errors.New("configuration error")
	ErrNotFound       = errors.New("not found")
	ErrPrecondition   = errors.New("precondition not met")
	ErrRender         = errors.New("render failure")
	ErrAlreadyRunning = errors.New("run already active")
	ErrQuota          = errors.New("quota exhausted")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later retry classification. The marker should be one
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

// Recoverable reports whether the orchestrator should retry the stage that
// produced err. Only transport-level failures are retried; everything else is
// either a bug in the inputs or a problem retries cannot fix.
func Recoverable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
}

// ErrorDetails carries the classified pieces of a wrapped stage error.
type ErrorDetails struct {
	Kind    string
	Message string
}

var markerKinds = []struct {
	marker error
	kind   string
}{
	{ErrTimeout, "timeout"},
	{ErrValidation, "validation"},
	{ErrConfiguration, "configuration"},
	{ErrNotFound, "not_found"},
	{ErrPrecondition, "precondition"},
	{ErrRender, "render"},
	{ErrAlreadyRunning, "already_running"},
	{ErrQuota, "quota"},
	{ErrTransient, "transient"},
}

// Details classifies err against the sentinel markers and strips the marker
// prefix from the message so logs and persisted error records stay readable.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: "unknown", Message: err.Error()}
	for _, entry := range markerKinds {
		if errors.Is(err, entry.marker) {
			details.Kind = entry.kind
			prefix := entry.marker.Error() + ": "
			details.Message = strings.TrimPrefix(details.Message, prefix)
			break
		}
	}
	return details
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
