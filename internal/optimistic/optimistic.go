// Package optimistic runs a local change ahead of the remote call that
// confirms it and undoes the change when the call fails.
package optimistic

import "context"

// Mutation describes one optimistic update. Apply and Remote are required.
type Mutation[T any] struct {
	// Apply changes local state and returns what Revert needs to undo it.
	Apply func() T
	// Remote performs the authoritative change.
	Remote func(ctx context.Context) error
	// Revert undoes Apply using its snapshot.
	Revert func(snapshot T)
	// OnSuccess runs after Remote succeeds, e.g. to refresh cached reads.
	OnSuccess func()
	// OnFailure runs after Revert with the remote error.
	OnFailure func(err error)
}

// Do applies m, calls the remote and settles the outcome. It returns the
// remote error, if any.
func Do[T any](ctx context.Context, m Mutation[T]) error {
	snapshot := m.Apply()

	if err := m.Remote(ctx); err != nil {
		if m.Revert != nil {
			m.Revert(snapshot)
		}
		if m.OnFailure != nil {
			m.OnFailure(err)
		}
		return err
	}

	if m.OnSuccess != nil {
		m.OnSuccess()
	}
	return nil
}
