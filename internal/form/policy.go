package form

import (
	"fmt"

	"github.com/autobrr/autobrr-sub001/model"
)

// TypeChangePolicy decides what happens to the rest of the form when the
// discriminant changes. The resolver itself never clears values.
type TypeChangePolicy int

const (
	// KeepValues changes only the discriminant. Fields of the previous type
	// stay in the values, unrendered, and are still submitted.
	KeepValues TypeChangePolicy = iota
	// ResetToDefaults restores the baseline (screen defaults when creating,
	// the opened entity when updating) and then sets the discriminant.
	ResetToDefaults
)

func (p TypeChangePolicy) String() string {
	switch p {
	case KeepValues:
		return "keep_values"
	case ResetToDefaults:
		return "reset_to_defaults"
	}
	return fmt.Sprintf("TypeChangePolicy(%d)", int(p))
}

// Apply returns the values after setting path to value under the policy.
// Resending the current value is not a change and keeps every other field.
// Neither current nor baseline is modified.
func (p TypeChangePolicy) Apply(current, baseline model.Values, path string, value any) model.Values {
	var next model.Values
	old, _ := current.Get(path)
	if p == ResetToDefaults && !model.SameValue(old, value) {
		next = baseline.Clone()
	} else {
		next = current.Clone()
	}
	next.Set(path, value)
	return next
}
