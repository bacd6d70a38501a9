// Package usecase implements the live ranking board: snapshot loading,
// partial-update reconciliation and subscription lifecycle.
package usecase

import (
	"errors"
	"fmt"

	"stock_board/internal/feature/ranking/domain/entity"
)

var (
	// ErrFetch matches every *FetchError via errors.Is.
	ErrFetch = errors.New("snapshot fetch failed")

	// ErrMalformedUpdate is logged when a stream message cannot be interpreted.
	// It is never returned to callers.
	ErrMalformedUpdate = errors.New("malformed update event")

	// ErrInvalidSelection is returned when the market filter or sort mode is unknown.
	ErrInvalidSelection = errors.New("invalid selection")

	// errStaleResult marks a load that was superseded while its fetch was in flight.
	errStaleResult = errors.New("stale load result discarded")
)

// FetchError is returned by Load when the snapshot source failed or
// returned an unexpected shape. The working set is left empty.
type FetchError struct {
	Selection entity.Selection
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s/%s snapshot: %v", e.Selection.Filter, e.Selection.Mode, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports ErrFetch as a match so callers need not use errors.As.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }
