// Package group defines the collective primitives a benchmark run needs
// across its participating ranks: identity, a barrier and a collective abort.
//
// Implementations:
//   - pkg/group/local: ranks are goroutines inside one process
//   - pkg/group/tcp: ranks are processes coordinated by rank 0 over TCP
package group

import (
	"context"
	"errors"
)

// ErrAborted is returned by Barrier once the group has been aborted.
var ErrAborted = errors.New("process group aborted")

// Group is one rank's view of the participating processes.
type Group interface {
	// Rank returns this participant's index in [0, Size).
	Rank() int

	// Size returns the number of participants.
	Size() int

	// Barrier blocks until every participant has entered it.
	Barrier(ctx context.Context) error

	// Abort terminates every participant with the given status code.
	//
	// Implementations normally do not return. When the configured abort
	// hook returns (tests, embedded use) Abort returns and the group is
	// left in the aborted state.
	Abort(ctx context.Context, code int) error
}

// AbortFunc is invoked once per process when the group is aborted.
type AbortFunc func(code int)
