package stylegen

import (
	"context"
	"fmt"
	"slices"
)

// Outcome is the result of one attempt: exactly one of Image or Err is set.
type Outcome struct {
	Image EncodedImage
	Err   *AttemptError
}

// Success wraps a generated image.
func Success(img EncodedImage) Outcome {
	return Outcome{Image: img}
}

// Failure wraps a classified failure.
func Failure(err *AttemptError) Outcome {
	return Outcome{Err: err}
}

// OK reports whether the attempt produced an image.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Attempt describes one step of a backend's plan. The driver runs attempts
// strictly in order and stops at the first success.
type Attempt struct {
	Backend BackendID
	Pathway string
	Model   string

	// Credential is the 1-based credential index, 0 when the backend has a
	// single credential.
	Credential int

	// When, if set, is evaluated against the backend's most recent failure
	// (nil when nothing failed yet); the attempt is skipped when it returns
	// false.
	When func(prev *AttemptError) bool

	// StopOn lists failure classes that end the backend's remaining plan.
	// ClassQuotaExhausted always does, and also disables the backend.
	StopOn []ErrorClass

	Run func(ctx context.Context) Outcome
}

// String renders the attempt for logs and plan inspection.
func (a Attempt) String() string {
	s := fmt.Sprintf("%s/%s", a.Backend, a.Pathway)
	if a.Model != "" {
		s += "@" + a.Model
	}
	if a.Credential > 0 {
		s += fmt.Sprintf("#key%d", a.Credential)
	}
	return s
}

func (a Attempt) stops(class ErrorClass) bool {
	return class == ClassQuotaExhausted || slices.Contains(a.StopOn, class)
}

// Backend is one image generation backend. Plan must not perform network
// calls; all I/O happens inside Attempt.Run.
type Backend interface {
	ID() BackendID
	Plan(job *Job) []Attempt
}

// TextBackend is a network text generator used by the enhancement stage.
type TextBackend interface {
	ID() BackendID
	Credentials() []Credential
	GenerateText(ctx context.Context, cred Credential, prompt string) (string, error)
}
