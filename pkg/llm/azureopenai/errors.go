package azureopenai

import (
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v2"
)

var (
	// ErrContentFiltered is returned when Azure content management rejects a prompt or completion
	ErrContentFiltered = errors.New("azure openai: content filtered")
	// ErrNoChoices is returned when the service answers without a completion
	ErrNoChoices = errors.New("azure openai: no choices in response")
)

var contentFilterMarkers = []string{
	"content_filter",
	"content_management_policy",
	"content management policy",
	"ResponsibleAIPolicyViolation",
	"content_policy_violation",
}

// IsContentFiltered reports whether err comes from a content-policy
// rejection. The service answers those with 400 Bad Request, so any 400 from
// the API counts, whatever its message.
func IsContentFiltered(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContentFiltered) {
		return true
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusBadRequest
	}
	msg := err.Error()
	for _, marker := range contentFilterMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// classifyError wraps content-policy failures with ErrContentFiltered
func classifyError(op string, err error) error {
	if IsContentFiltered(err) && !errors.Is(err, ErrContentFiltered) {
		return &filteredError{op: op, cause: err}
	}
	return err
}

// isRetryable keeps content filter and client errors out of the retry loop
func isRetryable(err error) bool {
	if IsContentFiltered(err) {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}

type filteredError struct {
	op    string
	cause error
}

func (e *filteredError) Error() string {
	return e.op + ": " + ErrContentFiltered.Error() + ": " + e.cause.Error()
}

func (e *filteredError) Is(target error) bool {
	return target == ErrContentFiltered
}

func (e *filteredError) Unwrap() error {
	return e.cause
}
