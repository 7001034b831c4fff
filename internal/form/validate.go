package form

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/autobrr/autobrr-sub001/model"
)

// Validator checks form values against field rules.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a Validator with the form-specific tags registered.
func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("notblank", validateNotBlank)
	return &Validator{v: v}
}

// validateNotBlank rejects strings made only of whitespace.
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Check validates values against rules and returns one error per failing
// path, in rule order. Absent values only fail rules that require them.
func (val *Validator) Check(values model.Values, rules []Rule) []model.FieldError {
	var out []model.FieldError
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if seen[r.Path] {
			continue
		}
		raw, present := values.Get(r.Path)
		if !present || raw == nil {
			if requires(r.Tag) {
				seen[r.Path] = true
				out = append(out, model.FieldError{Field: r.Path, Code: model.FieldRequired, Message: "Required"})
			}
			continue
		}
		if err := val.check(raw, presentTag(raw, r.Tag)); err != nil {
			seen[r.Path] = true
			out = append(out, fieldError(r.Path, err))
		}
	}
	return out
}

// check runs one tag set. validator panics on tags that do not apply to the
// value's kind (a number sent for a url field); that is reported as invalid.
func (val *Validator) check(raw any, tag string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("form: %v", r)
		}
	}()
	return val.v.Var(raw, tag)
}

// presentTag drops "required" for numbers and booleans, where zero and
// false are real answers rather than missing ones.
func presentTag(raw any, tag string) string {
	switch raw.(type) {
	case float64, bool:
	default:
		return tag
	}
	parts := strings.Split(tag, ",")
	kept := parts[:0]
	for _, t := range parts {
		if t != "required" {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, ",")
}

func requires(tag string) bool {
	for _, t := range strings.Split(tag, ",") {
		if t == "required" {
			return true
		}
	}
	return false
}

func fieldError(path string, err error) model.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return model.FieldError{Field: path, Code: model.FieldInvalid, Message: "Invalid value"}
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required", "notblank":
		return model.FieldError{Field: path, Code: model.FieldRequired, Message: "Required"}
	case "min", "gte":
		return model.FieldError{Field: path, Code: model.FieldInvalid, Message: "Must be at least " + fe.Param()}
	case "max", "lte":
		return model.FieldError{Field: path, Code: model.FieldInvalid, Message: "Must be at most " + fe.Param()}
	case "url", "http_url":
		return model.FieldError{Field: path, Code: model.FieldInvalid, Message: "Must be a valid URL"}
	case "hostname_rfc1123", "hostname":
		return model.FieldError{Field: path, Code: model.FieldInvalid, Message: "Must be a valid hostname"}
	}
	return model.FieldError{Field: path, Code: model.FieldInvalid, Message: "Invalid value"}
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
