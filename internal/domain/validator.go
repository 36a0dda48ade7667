package domain

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const (
	DefaultMaxProjectNameLength = 20
	DefaultMaxIdentifierLength  = 30
)

// NameValidator checks requested names against identifier and length rules
type NameValidator struct {
	validate         *validator.Validate
	maxProjectLength int
	maxIdentLength   int
}

// NewNameValidator creates a validator; non-positive limits fall back to the defaults
func NewNameValidator(maxProjectLength, maxIdentLength int) *NameValidator {
	if maxProjectLength <= 0 {
		maxProjectLength = DefaultMaxProjectNameLength
	}
	if maxIdentLength <= 0 {
		maxIdentLength = DefaultMaxIdentifierLength
	}

	v := validator.New()
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("ue_identifier", func(fl validator.FieldLevel) bool {
		return identifierPattern.MatchString(fl.Field().String())
	})

	return &NameValidator{
		validate:         v,
		maxProjectLength: maxProjectLength,
		maxIdentLength:   maxIdentLength,
	}
}

// IsIdentifier reports whether name is a valid identifier
func IsIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// ValidateNewName rejects empty names, unchanged names, bad characters and names over the length limit
func (v *NameValidator) ValidateNewName(kind SessionKind, current, newName string) error {
	limit := v.maxIdentLength
	if kind == SessionProject {
		limit = v.maxProjectLength
	}

	details := map[string]any{"kind": kind, "current": current, "new_name": newName}

	if newName == current {
		details["reason"] = "unchanged"
		return NewAppError(ErrInvalidName, fmt.Sprintf("new name %q equals the current name", newName), 422, details)
	}

	err := v.validate.Var(newName, fmt.Sprintf("required,max=%d,ue_identifier", limit))
	if err == nil {
		return nil
	}

	reason := "invalid"
	message := fmt.Sprintf("new name %q is invalid", newName)
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		switch errs[0].Tag() {
		case "required":
			reason = "empty"
			message = "new name must not be empty"
		case "max":
			reason = "too_long"
			message = fmt.Sprintf("new name %q exceeds %d characters", newName, limit)
		case "ue_identifier":
			reason = "invalid_characters"
			message = fmt.Sprintf("new name %q must start with a letter or underscore and contain only letters, digits and underscores", newName)
		}
	}
	details["reason"] = reason
	return NewAppErrorWithCause(ErrInvalidName, message, 422, err, details)
}
