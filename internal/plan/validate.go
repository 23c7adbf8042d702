package plan

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/labseq/internal/schedule"
	"github.com/roach88/labseq/internal/value"
)

var planValidate *validator.Validate

func init() {
	planValidate = validator.New()
	planValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := planValidate.RegisterValidation("label", validateLabel); err != nil {
		panic(err)
	}
}

// validateLabel accepts names usable as coordinate and variable labels:
// no surrounding whitespace and no control characters.
func validateLabel(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s != strings.TrimSpace(s) {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// ValidationError reports one problem with a plan field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err contains a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks the plan's structure, then its references: trigger
// conditions, row columns, recorded conditions and scalar values. Every
// problem found is returned, joined.
func (p *Plan) Validate() error {
	var errs []error
	if err := planValidate.Struct(p); err != nil {
		var fields validator.ValidationErrors
		if !errors.As(err, &fields) {
			return err
		}
		for _, fe := range fields {
			errs = append(errs, &ValidationError{Field: fe.Namespace(), Message: describe(fe)})
		}
	}

	invalid := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	conds := make(map[string]bool)
	for i, c := range p.Conditions {
		field := fmt.Sprintf("Plan.conditions[%d]", i)
		name := value.NormalizeName(c.Name)
		if conds[name] && name != "" {
			invalid(field+".name", "duplicate condition %q", c.Name)
		}
		conds[name] = true
		if _, err := value.List(c.Values...); err != nil {
			invalid(field+".values", "%v", err)
		}
		if c.FailOn != nil {
			if _, err := value.Of(c.FailOn); err != nil {
				invalid(field+".fail_on", "%v", err)
			}
		}
	}

	meas := make(map[string]bool)
	for i, m := range p.Measurements {
		field := fmt.Sprintf("Plan.measurements[%d]", i)
		name := value.NormalizeName(m.Name)
		if meas[name] && name != "" {
			invalid(field+".name", "duplicate measurement %q", m.Name)
		}
		meas[name] = true

		for _, stage := range []struct {
			name  string
			rules map[string]any
		}{{"setup", m.Stages.Setup}, {"after", m.Stages.After}} {
			for _, cond := range sortedKeys(stage.rules) {
				trig := stage.rules[cond]
				at := fmt.Sprintf("%s.stages.%s.%s", field, stage.name, cond)
				if !conds[value.NormalizeName(cond)] {
					invalid(at, "unknown condition %q", cond)
				}
				if _, err := schedule.ParseTrigger(trig); err != nil {
					invalid(at, "%v", err)
				}
			}
		}
		for j, cond := range m.Record {
			if !conds[value.NormalizeName(cond)] {
				invalid(fmt.Sprintf("%s.record[%d]", field, j), "unknown condition %q", cond)
			}
		}
		for _, cond := range sortedKeys(m.FailAt) {
			x := m.FailAt[cond]
			at := fmt.Sprintf("%s.fail_at.%s", field, cond)
			if !conds[value.NormalizeName(cond)] {
				invalid(at, "unknown condition %q", cond)
			}
			if _, err := value.Of(x); err != nil {
				invalid(at, "%v", err)
			}
		}
	}

	for _, name := range sortedKeys(p.Information) {
		if _, err := value.Of(p.Information[name]); err != nil {
			invalid("Plan.information."+name, "%v", err)
		}
	}
	for i, row := range p.Rows {
		for _, cond := range sortedKeys(row) {
			if !conds[value.NormalizeName(cond)] {
				invalid(fmt.Sprintf("Plan.rows[%d].%s", i, cond), "unknown condition %q", cond)
			}
		}
	}

	return errors.Join(errs...)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("needs at least %s entries", fe.Param())
	case "label":
		return fmt.Sprintf("%q has surrounding whitespace or control characters", fe.Value())
	default:
		return fmt.Sprintf("failed %q", fe.Tag())
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
