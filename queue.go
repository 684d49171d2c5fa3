package stylegen

import "strings"

// BackendID identifies one generation backend.
type BackendID string

const (
	BackendGemini BackendID = "gemini"
	BackendOpenAI BackendID = "openai"

	// BackendLocal is the deterministic, network-free text stage fallback.
	BackendLocal BackendID = "local"
)

var (
	// DefaultTextQueue is used when the text-stage queue setting is empty or
	// names no known provider.
	DefaultTextQueue = []BackendID{BackendGemini, BackendLocal}

	// DefaultImageQueue is used when the image-stage queue setting is empty
	// or names no known backend.
	DefaultImageQueue = []BackendID{BackendGemini}
)

// ParseQueue resolves a comma-separated provider list. Entries are trimmed and
// lower-cased, entries outside known are dropped, repeats after the first
// occurrence are dropped, and order is preserved. When nothing survives, a
// copy of def is returned, so the result is never empty as long as def is not.
func ParseQueue(raw string, known []BackendID, def []BackendID) []BackendID {
	allowed := make(map[BackendID]bool, len(known))
	for _, id := range known {
		allowed[id] = true
	}

	var queue []BackendID
	seen := make(map[BackendID]bool)
	for _, part := range strings.Split(raw, ",") {
		id := BackendID(strings.ToLower(strings.TrimSpace(part)))
		if !allowed[id] || seen[id] {
			continue
		}
		seen[id] = true
		queue = append(queue, id)
	}

	if len(queue) == 0 {
		return append([]BackendID(nil), def...)
	}
	return queue
}
