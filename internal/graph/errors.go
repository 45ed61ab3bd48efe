package graph

import (
	"errors"

	"github.com/xkilldash9x/uxpilot/internal/retry"
)

var (
	// ErrStepBudgetExceeded aborts a run that executed more nodes than its
	// budget allows.
	ErrStepBudgetExceeded = errors.New("step budget exceeded")
	// ErrEmptyRanking is raised when there is no action left to select.
	ErrEmptyRanking = errors.New("ranking produced no selectable action")
	// ErrInvalidPatience rejects a run whose patience has no retry ceiling.
	ErrInvalidPatience = retry.ErrInvalidPatience
	// ErrBrowserUnavailable is raised when no page could be obtained.
	ErrBrowserUnavailable = errors.New("browser unavailable")
	// ErrUnknownNode means the transition table has no entry for a node.
	ErrUnknownNode = errors.New("unknown graph node")
)
