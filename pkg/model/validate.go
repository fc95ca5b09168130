package model

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

// minPasswordLength mirrors the minimum the node accepts for built-in users.
const minPasswordLength = 6

var validate = validator.New()

// Validate checks every field and returns all failures at once as a
// *multierror.Error. It returns nil when the installation is valid.
func (m *Installation) Validate() error {
	var result *multierror.Error

	if err := validate.Struct(m); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("failed to validate installation: %w", err)
		}
		for _, fe := range fieldErrs {
			result = multierror.Append(result, fieldError(fe))
		}
	}

	for _, err := range m.semanticFailures() {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

func fieldError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Errorf("%s is required", fe.Namespace())
	case "file":
		return fmt.Errorf("%s must point to an existing file: %v", fe.Namespace(), fe.Value())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %v", fe.Namespace(), fe.Param(), fe.Value())
	case "semver":
		return fmt.Errorf("%s is not a valid version: %v", fe.Namespace(), fe.Value())
	default:
		return fmt.Errorf("%s failed %s=%s validation", fe.Namespace(), fe.Tag(), fe.Param())
	}
}

// semanticFailures covers rules spanning several fields.
func (m *Installation) semanticFailures() []error {
	var errs []error

	if m.NeedsPasswords() {
		passwords := []struct {
			field string
			value string
		}{
			{"XPack.ElasticUserPassword", m.XPack.ElasticUserPassword},
			{"XPack.KibanaUserPassword", m.XPack.KibanaUserPassword},
			{"XPack.LogstashSystemUserPassword", m.XPack.LogstashSystemUserPassword},
		}
		for _, p := range passwords {
			switch {
			case p.value == "":
				errs = append(errs, fmt.Errorf("%s is required when passwords are set during install", p.field))
			case len(p.value) < minPasswordLength:
				errs = append(errs, fmt.Errorf("%s must be at least %d characters", p.field, minPasswordLength))
			}
		}
	}

	if m.Service.StartAfterInstall && !m.Service.Install {
		errs = append(errs, errors.New("Service.StartAfterInstall requires Service.Install"))
	}

	if m.Certificates.Generate && !m.XPack.SecurityEnabled {
		errs = append(errs, errors.New("Certificates.Generate requires XPack.SecurityEnabled"))
	}

	return errs
}
