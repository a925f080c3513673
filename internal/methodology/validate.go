package methodology

import "phaseline/internal/domain"

// Acknowledged builds the set Validate expects from a caller's checklist.
func Acknowledged(items ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

// Validate checks that every requirement of option was acknowledged, matching
// strings exactly. Missing requirements are reported in option order.
func Validate(option domain.TransitionOption, acknowledged map[string]struct{}) error {
	var missing []string
	for _, req := range option.Requirements {
		if _, ok := acknowledged[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return &domain.IncompleteRequirementsError{Missing: missing}
	}
	return nil
}
