// Package retry bounds how many failed verification cycles a run tolerates.
package retry

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration is the parent condition for run settings that cannot
// be honored.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ErrInvalidPatience is returned for patience values outside the supported set.
var ErrInvalidPatience = fmt.Errorf("%w: patience must be one of 0, 0.5 or 1", ErrInvalidConfiguration)

// ceilings maps the supported patience levels to their retry ceilings.
var ceilings = []struct {
	patience float64
	max      int
}{
	{0, 3},
	{0.5, 6},
	{1, 9},
}

// MaxRetries resolves the retry ceiling for a patience level. Intermediate
// values are rejected rather than rounded.
func MaxRetries(patience float64) (int, error) {
	for _, c := range ceilings {
		if patience == c.patience {
			return c.max, nil
		}
	}
	return 0, fmt.Errorf("%w (got %v)", ErrInvalidPatience, patience)
}

// Controller tracks failed verification cycles for a single run.
type Controller struct {
	max   int
	count int
}

// NewController validates patience and returns a controller with a zero count.
func NewController(patience float64) (*Controller, error) {
	max, err := MaxRetries(patience)
	if err != nil {
		return nil, err
	}
	return &Controller{max: max}, nil
}

// CanRetry reports whether another cycle is allowed.
func (c *Controller) CanRetry() bool {
	return c.count < c.max
}

// Increment records one failed cycle.
func (c *Controller) Increment() int {
	c.count++
	return c.count
}

// Count is the number of failed cycles recorded so far.
func (c *Controller) Count() int { return c.count }

// Max is the resolved ceiling.
func (c *Controller) Max() int { return c.max }
