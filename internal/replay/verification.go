package replay

import (
	"errors"
	"fmt"
)

// ErrMismatch reports that the service counters disagree with what was sent.
var ErrMismatch = errors.New("replay verification failed")

// Verify compares the counter deltas between before and after with the
// number of datagrams sent. Every sent datagram must have been received,
// published and either persisted or reported as failed.
func Verify(before, after Status, sent int) error {
	want := uint64(sent)
	received := after.Received - before.Received
	published := after.Published - before.Published
	settled := (after.Persisted + after.Failed) - (before.Persisted + before.Failed)

	var errs []error
	if received != want {
		errs = append(errs, fmt.Errorf("received %d of %d", received, want))
	}
	if published != received {
		errs = append(errs, fmt.Errorf("published %d of %d received", published, received))
	}
	if settled != received {
		errs = append(errs, fmt.Errorf("settled %d of %d received", settled, received))
	}
	if failed := after.Failed - before.Failed; failed > 0 {
		errs = append(errs, fmt.Errorf("%d events failed to persist", failed))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrMismatch, errors.Join(errs...))
	}
	return nil
}

// settled reports whether everything received since before has been
// persisted or failed.
func settled(before, now Status, sent int) bool {
	return now.Received-before.Received >= uint64(sent) &&
		(now.Persisted+now.Failed)-(before.Persisted+before.Failed) >= now.Received-before.Received
}
