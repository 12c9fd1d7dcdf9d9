// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package corpus

import (
	"context"
	"errors"
	"fmt"
)

// SearchProvider defines the contract for relevance-ranked keyword search
// over the book corpus.
//
// # Description
//
// Implementations return the chunks most relevant to a free-text query,
// best match first. Results must be deterministic for identical inputs
// against an unchanged corpus: the QA pipeline relies on stable ordering
// to produce reproducible contexts.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. The QA core issues one
// Search call per assembled context and never caches results across
// requests.
type SearchProvider interface {
	// Search returns up to limit chunks ranked best-first for the query.
	//
	// An empty result slice means the corpus holds nothing relevant; that
	// is a normal outcome, not an error. A non-nil error always means the
	// store itself could not be queried (connectivity, malformed query)
	// and must never be collapsed into "no results" by callers.
	Search(ctx context.Context, query string, limit int) ([]Chunk, error)
}

// ReadinessChecker is implemented by providers that can probe their
// backing store. The health endpoint type-asserts for it; providers
// without a meaningful probe simply don't implement it.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// RetrievalError wraps failures from the corpus store.
//
// The QA core does not retry retrieval internally; it surfaces this error
// to the caller, which decides whether to retry or return a service-level
// error. Refusals are never modeled as RetrievalError.
type RetrievalError struct {
	// Op names the failed operation, e.g. "search" or "schema".
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("corpus %s failed: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// IsRetrievalError reports whether err is (or wraps) a *RetrievalError.
//
// Handlers use this to map corpus outages to 503 instead of 500.
func IsRetrievalError(err error) bool {
	var re *RetrievalError
	return errors.As(err, &re)
}
