package stylegen

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass is the outcome category Classify assigns to one
// failed attempt.
type ErrorClass int

const (
	// ClassSoftFailure covers abnormal finish reasons, responses without an
	// image and any non-2xx status with no more specific class.
	ClassSoftFailure ErrorClass = iota

	// ClassRateLimited is a 429 without a zero-quota signature. Quota is
	// assumed to be per credential.
	ClassRateLimited

	// ClassQuotaExhausted is a 429 with a zero-quota signature. The backend is
	// disabled for the capability for the rest of the process.
	ClassQuotaExhausted

	// ClassUnsupportedParameter is a 400 naming a request field.
	ClassUnsupportedParameter

	// ClassOrgVerificationRequired is a 403 asking for organization verification.
	ClassOrgVerificationRequired

	// ClassAuthFailure is a 401.
	ClassAuthFailure
)

func (c ErrorClass) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassQuotaExhausted:
		return "quota_exhausted"
	case ClassUnsupportedParameter:
		return "unsupported_parameter"
	case ClassOrgVerificationRequired:
		return "org_verification_required"
	case ClassAuthFailure:
		return "auth_failure"
	default:
		return "soft_failure"
	}
}

var (
	// ErrEmptySourceURL is returned when a style transfer request has no source image.
	ErrEmptySourceURL = errors.New("source image URL cannot be empty")

	// ErrEmptyPrompt is returned when a text-to-image request has no user prompt.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrTooManyReferences is returned when a request carries more reference
	// images than any backend accepts.
	ErrTooManyReferences = errors.New("too many reference images")

	// ErrNoBackendAttempted is wrapped by ExhaustedError when no backend in the
	// queue produced a single attempt (missing credentials, disabled backends).
	ErrNoBackendAttempted = errors.New("no image backend attempted")

	// ErrStorageNotConfigured is returned when storage operations are attempted
	// without a configured storage backend.
	ErrStorageNotConfigured = errors.New("storage not configured")
)

// maxErrorBodyLen bounds how much of a provider response body is kept in
// error messages.
const maxErrorBodyLen = 512

// AttemptError describes one failed attempt. Backends return it from
// Attempt.Run; the driver reads Class to decide what happens next.
type AttemptError struct {
	Backend BackendID
	Pathway string
	Model   string
	Class   ErrorClass
	Status  int
	Body    string
	Err     error
}

func (e *AttemptError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Backend))
	if e.Pathway != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Pathway)
	}
	if e.Model != "" {
		fmt.Fprintf(&sb, " (%s)", e.Model)
	}
	if e.Status != 0 {
		fmt.Fprintf(&sb, ": status %d", e.Status)
	}
	switch {
	case e.Body != "":
		sb.WriteString(": ")
		sb.WriteString(truncateBody(e.Body))
	case e.Err != nil:
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// ExhaustedError is returned when every backend, strategy and model failed.
// Failures holds the last failure of each distinct pathway in the order the
// pathways were first attempted.
type ExhaustedError struct {
	Failures []*AttemptError
}

func (e *ExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return "image generation exhausted: " + ErrNoBackendAttempted.Error()
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return "image generation exhausted: " + strings.Join(parts, "; ")
}

func (e *ExhaustedError) Unwrap() []error {
	if len(e.Failures) == 0 {
		return []error{ErrNoBackendAttempted}
	}
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

// IsExhausted checks if an error is an ExhaustedError.
func IsExhausted(err error) bool {
	var exErr *ExhaustedError
	return errors.As(err, &exErr)
}

// IsQuotaExhausted checks if an error is an AttemptError classified as QuotaExhausted.
func IsQuotaExhausted(err error) bool {
	return classOf(err) == ClassQuotaExhausted
}

// IsRateLimited checks if an error is an AttemptError classified as RateLimited.
func IsRateLimited(err error) bool {
	return classOf(err) == ClassRateLimited
}

// IsAuthFailure checks if an error is an AttemptError classified as AuthFailure.
func IsAuthFailure(err error) bool {
	return classOf(err) == ClassAuthFailure
}

func classOf(err error) ErrorClass {
	var attErr *AttemptError
	if errors.As(err, &attErr) {
		return attErr.Class
	}
	return -1
}

func truncateBody(body string) string {
	body = strings.TrimSpace(body)
	if len(body) <= maxErrorBodyLen {
		return body
	}
	return TruncateUTF8(body, maxErrorBodyLen) + "..."
}
