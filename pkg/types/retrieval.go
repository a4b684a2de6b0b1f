// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "encoding/json"

// RetrievalResult is the outcome of one retrieval run. Exactly one shape is
// populated: Papers on normal completion (possibly empty), Message when the
// batch failed outside the per-candidate scope.
type RetrievalResult struct {
	Query   string  `json:"-" yaml:"query,omitempty"`
	Papers  []Paper `json:"papers,omitempty" yaml:"papers,omitempty"`
	Message string  `json:"message,omitempty" yaml:"message,omitempty"`
}

// RetrievalFailure builds the batch-failure shape.
func RetrievalFailure(err error) RetrievalResult {
	return RetrievalResult{Message: err.Error()}
}

// Failed reports whether the result carries the error shape.
func (r RetrievalResult) Failed() bool {
	return r.Message != ""
}

// MarshalJSON emits {"papers": [...]} or {"message": "..."}. An empty
// success still carries the papers key so callers can branch on it.
func (r RetrievalResult) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(struct {
			Message string `json:"message"`
		}{r.Message})
	}
	papers := r.Papers
	if papers == nil {
		papers = []Paper{}
	}
	return json.Marshal(struct {
		Papers []Paper `json:"papers"`
	}{papers})
}
