package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rkuchma96/rcoffee/internal/domain"
)

// Engine defines the four operations the coordinator delegates to the
// external transfer command. Implementations never retry; retry policy
// belongs to the caller.
type Engine interface {
	// List returns a recursive listing of the remote path, sorted by path.
	// Returns domain.ErrMalformedListing if the output cannot be parsed.
	List(ctx context.Context) (domain.Snapshot, error)

	// CopyUpdate performs a one-way update-copy from source to dest.
	// Destination-only files are never deleted; files are only overwritten
	// by newer versions within the modify-window.
	CopyUpdate(ctx context.Context, source, dest string) error

	// MirrorSync performs a one-way mirrored sync from source to dest with
	// delete-before semantics: destination extras are removed before any
	// transfer starts. Changes written to dest between the listing read and
	// the end of deletion are lost; that window is inherent to
	// delete-before mirroring.
	MirrorSync(ctx context.Context, source, dest string) error

	// Dedupe collapses duplicate-named entries under path, keeping the
	// newest version of each.
	Dedupe(ctx context.Context, path string) error
}

// EngineError wraps a failed engine invocation with enough detail for the
// caller to distinguish transient failures (nonzero exit, unparseable
// output) from fatal ones (binary missing).
type EngineError struct {
	Op       string
	ExitCode int
	Fatal    bool
	Err      error
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("engine %s: exit code %d: %v", e.Op, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is expected to be recoverable on a
// later invocation
func (e *EngineError) Transient() bool {
	return !e.Fatal
}

// AsEngineError extracts an *EngineError from an error chain
func AsEngineError(err error) (*EngineError, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}
