package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/yairfalse/palautus/internal/cloud"
	"github.com/yairfalse/palautus/pkg/types"
)

// TransitionTimeoutError is returned when a polled resource does not reach
// the expected status within the configured number of attempts.
type TransitionTimeoutError struct {
	Kind       types.Kind
	ResourceID string
	Expected   Status
	Observed   Status
	Attempts   int
}

func (e *TransitionTimeoutError) Error() string {
	return fmt.Sprintf("%s %s did not reach status %s after %d attempts (last observed %s)",
		e.Kind, e.ResourceID, e.Expected, e.Attempts, e.Observed)
}

type poller struct {
	interval time.Duration
	attempts int
}

// waitFor polls getter until the resource reports expected. Client errors are
// returned as they are; running out of attempts yields *TransitionTimeoutError.
func (p poller) waitFor(ctx context.Context, kind types.Kind, id string, getter cloud.Getter, expected Status) error {
	attempts := p.attempts
	if attempts < 1 {
		attempts = 1
	}

	var observed Status
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := getter.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to poll %s %s: %w", kind, id, err)
		}
		observed = ParseStatus(raw["status"])
		if observed == expected {
			return nil
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, p.interval); err != nil {
			return err
		}
	}

	return &TransitionTimeoutError{
		Kind:       kind,
		ResourceID: id,
		Expected:   expected,
		Observed:   observed,
		Attempts:   attempts,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
