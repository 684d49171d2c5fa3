package stylegen

import (
	"context"
	"log/slog"
)

// Param is one optional request field.
type Param struct {
	Key   string
	Value string
}

// ParameterSet is the ordered set of optional fields sent with one attempt.
// Required fields (model, prompt, image payloads) never belong to it. The set
// is seeded once and can only shrink afterwards.
type ParameterSet struct {
	params []Param
}

// NewParameterSet seeds a set. Params with an empty value and repeated keys
// are skipped.
func NewParameterSet(params ...Param) *ParameterSet {
	ps := &ParameterSet{}
	for _, p := range params {
		if p.Key == "" || p.Value == "" || ps.Has(p.Key) {
			continue
		}
		ps.params = append(ps.params, p)
	}
	return ps
}

// Has reports whether key is present.
func (ps *ParameterSet) Has(key string) bool {
	_, ok := ps.Get(key)
	return ok
}

// Get returns the value for key.
func (ps *ParameterSet) Get(key string) (string, bool) {
	for _, p := range ps.params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Remove deletes key and reports whether it was present.
func (ps *ParameterSet) Remove(key string) bool {
	for i, p := range ps.params {
		if p.Key == key {
			ps.params = append(ps.params[:i:i], ps.params[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of fields.
func (ps *ParameterSet) Len() int {
	return len(ps.params)
}

// Keys returns the field names in seed order.
func (ps *ParameterSet) Keys() []string {
	keys := make([]string, 0, len(ps.params))
	for _, p := range ps.params {
		keys = append(keys, p.Key)
	}
	return keys
}

// Params returns a copy of the fields in seed order.
func (ps *ParameterSet) Params() []Param {
	return append([]Param(nil), ps.params...)
}

// Clone returns an independent copy.
func (ps *ParameterSet) Clone() *ParameterSet {
	return &ParameterSet{params: ps.Params()}
}

// NegotiationStep performs one network call with the current parameters.
type NegotiationStep func(ctx context.Context, params *ParameterSet) Outcome

// RejectedField names the optional field a failed step rejected, if any.
type RejectedField func(err *AttemptError) (string, bool)

// Negotiate runs step until it succeeds, fails with anything other than an
// unsupported-parameter error, names a field that is not in params, or
// maxRounds calls have been made. Each unsupported-parameter failure strips
// exactly one field before the next call.
func Negotiate(ctx context.Context, params *ParameterSet, maxRounds int, step NegotiationStep, rejected RejectedField, logger *slog.Logger) Outcome {
	if logger == nil {
		logger = slog.Default()
	}

	var last Outcome
	for round := 0; round < maxRounds; round++ {
		last = step(ctx, params)
		if last.OK() {
			return last
		}
		if last.Err.Class != ClassUnsupportedParameter {
			return last
		}

		field, ok := rejected(last.Err)
		if !ok || !params.Remove(field) {
			return last
		}

		logger.Warn("backend rejected parameter, retrying without it",
			"backend", string(last.Err.Backend),
			"pathway", last.Err.Pathway,
			"parameter", field,
			"round", round+1,
		)
	}
	return last
}
