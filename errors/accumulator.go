package errors

import (
	"fmt"
	"sync"
)

// DefaultThreshold is the number of recoverable errors that ends a run.
const DefaultThreshold = 5

// Accumulator counts recoverable errors for one run. Add returns a
// ThresholdExceeded error once the count reaches the limit; the caller decides
// what aborting means.
type Accumulator struct {
	mu        sync.Mutex
	component string
	limit     int
	errs      []error
}

// NewAccumulator creates an accumulator that trips after limit errors.
// A limit <= 0 uses DefaultThreshold.
func NewAccumulator(component string, limit int) *Accumulator {
	if limit <= 0 {
		limit = DefaultThreshold
	}
	return &Accumulator{component: component, limit: limit}
}

// Add records err. It returns nil while the run may continue and a fatal
// error wrapping ErrThresholdExceeded once the limit is reached.
func (a *Accumulator) Add(err error) error {
	if err == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.errs = append(a.errs, err)
	if len(a.errs) < a.limit {
		return nil
	}
	return a.exceededLocked()
}

// Check returns the threshold error if the limit has been reached.
func (a *Accumulator) Check() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.errs) < a.limit {
		return nil
	}
	return a.exceededLocked()
}

func (a *Accumulator) exceededLocked() error {
	cause := fmt.Errorf("%w: %d errors (limit %d), last: %v",
		ErrThresholdExceeded, len(a.errs), a.limit, a.errs[len(a.errs)-1])
	return WrapFatal(cause, a.component, "Add", "error accumulation")
}

// Count returns how many errors have been recorded.
func (a *Accumulator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.errs)
}

// Errors returns a copy of the recorded errors in order.
func (a *Accumulator) Errors() []error {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]error, len(a.errs))
	copy(out, a.errs)
	return out
}

// Limit returns the configured threshold.
func (a *Accumulator) Limit() int {
	return a.limit
}
