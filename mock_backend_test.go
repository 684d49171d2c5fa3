package stylegen

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// MockBackend is a mock implementation of Backend.
type MockBackend struct {
	IDValue  BackendID
	PlanFunc func(job *Job) []Attempt
}

func (m *MockBackend) ID() BackendID {
	return m.IDValue
}

func (m *MockBackend) Plan(job *Job) []Attempt {
	if m.PlanFunc != nil {
		return m.PlanFunc(job)
	}
	return nil
}

// MockTextBackend is a mock implementation of TextBackend that records the
// credentials it was called with.
type MockTextBackend struct {
	IDValue          BackendID
	Creds            []Credential
	GenerateTextFunc func(ctx context.Context, cred Credential, prompt string) (string, error)

	mu    sync.Mutex
	calls []Credential
}

func (m *MockTextBackend) ID() BackendID {
	return m.IDValue
}

func (m *MockTextBackend) Credentials() []Credential {
	return m.Creds
}

func (m *MockTextBackend) GenerateText(ctx context.Context, cred Credential, prompt string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, cred)
	m.mu.Unlock()

	if m.GenerateTextFunc != nil {
		return m.GenerateTextFunc(ctx, cred, prompt)
	}
	return "", nil
}

func (m *MockTextBackend) Calls() []Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Credential(nil), m.calls...)
}

// callLog records attempt executions in order.
type callLog struct {
	mu    sync.Mutex
	names []string
}

func (c *callLog) record(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = append(c.names, name)
}

func (c *callLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.names...)
}

func (c *callLog) count(name string) int {
	n := 0
	for _, got := range c.list() {
		if got == name {
			n++
		}
	}
	return n
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPNG(t *testing.T) EncodedImage {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 1, color.RGBA{B: 255, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test png: %v", err)
	}
	return NewEncodedImage(buf.Bytes(), MIMETypePNG)
}

func failed(backend BackendID, pathway string, class ErrorClass, status int, body string) Outcome {
	return Failure(&AttemptError{
		Backend: backend,
		Pathway: pathway,
		Class:   class,
		Status:  status,
		Body:    body,
	})
}

// keyedBackend plans one attempt per credential on a single pathway, the way
// a multi-key backend does. run receives the 1-based credential index.
func keyedBackend(id BackendID, pathway string, keys int, log *callLog, run func(key int) Outcome) *MockBackend {
	return &MockBackend{
		IDValue: id,
		PlanFunc: func(job *Job) []Attempt {
			attempts := make([]Attempt, 0, keys)
			for i := 1; i <= keys; i++ {
				key := i
				attempts = append(attempts, Attempt{
					Backend:    id,
					Pathway:    pathway,
					Credential: key,
					Run: func(ctx context.Context) Outcome {
						log.record(fmt.Sprintf("%s#%d", id, key))
						return run(key)
					},
				})
			}
			return attempts
		},
	}
}
