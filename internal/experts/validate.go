package experts

import (
	"fmt"

	"github.com/steveyegge/clewcrew/internal/types"
)

// Validation splits findings into well-formed ones and the errors that
// disqualified the rest.
type Validation struct {
	Valid   []types.Finding
	Invalid []error
}

// OK reports whether every finding passed.
func (v Validation) OK() bool {
	return len(v.Invalid) == 0
}

// ValidateFindings checks findings produced outside the engine, such as
// those loaded from a saved report, before they are passed to SuggestFixes.
func ValidateFindings(findings []types.Finding) Validation {
	v := Validation{Valid: []types.Finding{}}
	for i := range findings {
		f := findings[i]
		if err := f.Validate(); err != nil {
			v.Invalid = append(v.Invalid, fmt.Errorf("finding %d (%s): %w", i, f.Location, err))
			continue
		}
		v.Valid = append(v.Valid, f)
	}
	return v
}
