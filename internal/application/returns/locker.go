package returns

import (
	"context"

	"github.com/google/uuid"
)

// TransitionLocker serializes lifecycle actions on one return across instances.
// It narrows the race window in front of the conditional status write; it does
// not replace it.
type TransitionLocker interface {
	// Acquire returns a release function, or shared.ErrAlreadyProcessed when
	// another caller holds the lock
	Acquire(ctx context.Context, returnID uuid.UUID) (release func(), err error)
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, uuid.UUID) (func(), error) {
	return func() {}, nil
}
