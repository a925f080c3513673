package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownMethodology  = errors.New("unknown methodology")
	ErrUnknownPhase        = errors.New("unknown phase")
	ErrUnknownProject      = errors.New("unknown project")
	ErrNoTransitionDefined = errors.New("no transition defined")
	// ErrInvalidTransitionOption means the caller passed an option that did not
	// come from the rule table for the phase's methodology and name.
	ErrInvalidTransitionOption = errors.New("invalid transition option")
	ErrInvalidStatusValue      = errors.New("invalid status value")
	ErrUnknownBlocker          = errors.New("unknown blocker")
	ErrUnknownRisk             = errors.New("unknown risk")
)

// IncompleteRequirementsError lists the requirements a caller did not acknowledge,
// in the option's original order.
type IncompleteRequirementsError struct {
	Missing []string
}

func (e *IncompleteRequirementsError) Error() string {
	return fmt.Sprintf("incomplete requirements: %s", strings.Join(e.Missing, ", "))
}
