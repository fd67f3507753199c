package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mutik-labs/mutik/internal/docpath"
	mutikerrors "github.com/mutik-labs/mutik/pkg/mutik/v1/errors"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateScenarioStructure checks the rules the JSON schema cannot express
// and returns every violation found.
func ValidateScenarioStructure(s *Scenario) []error {
	var errs []error

	if len(s.Steps) == 0 {
		errs = append(errs, mutikerrors.NewValidationError("scenario must contain at least one step in 'steps' list", nil))
	}

	if s.Store != nil {
		if s.Store.Name != "" && !nameRegex.MatchString(s.Store.Name) {
			errs = append(errs, mutikerrors.NewValidationError(fmt.Sprintf("store name '%s' contains invalid characters (allowed: alphanumeric, underscore, hyphen)", s.Store.Name), nil))
		}
		if s.Store.MaxReentrancy != nil && *s.Store.MaxReentrancy < 1 {
			errs = append(errs, mutikerrors.NewValidationError("store max_reentrancy must be at least 1", nil))
		}
	}
	if s.Host != nil {
		if s.Host.MaxPassRestarts != nil && *s.Host.MaxPassRestarts < 0 {
			errs = append(errs, mutikerrors.NewValidationError("host max_pass_restarts cannot be negative", nil))
		}
		if s.Host.MaxRounds != nil && *s.Host.MaxRounds < 1 {
			errs = append(errs, mutikerrors.NewValidationError("host max_rounds must be at least 1", nil))
		}
	}

	viewNames := make(map[string]struct{})
	for i, v := range s.Views {
		display := fmt.Sprintf("view %d ('%s')", i, v.Name)
		if !nameRegex.MatchString(v.Name) {
			errs = append(errs, mutikerrors.NewValidationError(fmt.Sprintf("%s: name contains invalid characters (allowed: alphanumeric, underscore, hyphen)", display), nil))
		}
		if _, exists := viewNames[v.Name]; exists {
			errs = append(errs, mutikerrors.NewValidationError(fmt.Sprintf("%s: duplicate view name found", display), nil))
		}
		viewNames[v.Name] = struct{}{}

		if !v.WholeDocument() {
			if _, err := docpath.Split(v.Select); err != nil {
				errs = append(errs, mutikerrors.NewValidationError(fmt.Sprintf("%s: invalid 'select'", display), err))
			}
		}
		if v.Format != "" && strings.Count(strings.ReplaceAll(v.Format, "%%", ""), "%") != 1 {
			errs = append(errs, mutikerrors.NewValidationError(fmt.Sprintf("%s: 'format' must contain exactly one verb", display), nil))
		}
		if !v.Equality.Valid() {
			errs = append(errs, mutikerrors.NewValidationError(fmt.Sprintf("%s: invalid equality '%s'", display, v.Equality), nil))
		}
	}

	stepNames := make(map[string]struct{})
	for i, step := range s.Steps {
		display := step.DisplayName(i)
		if step.Action == "" {
			errs = append(errs, mutikerrors.NewValidationError(fmt.Sprintf("%s: 'action' is required", display), nil))
		}
		if step.Name != "" {
			if !nameRegex.MatchString(step.Name) {
				errs = append(errs, mutikerrors.NewValidationError(fmt.Sprintf("%s: name contains invalid characters", display), nil))
			}
			if _, exists := stepNames[step.Name]; exists {
				errs = append(errs, mutikerrors.NewValidationError(fmt.Sprintf("%s: duplicate step name found", display), nil))
			}
			stepNames[step.Name] = struct{}{}
		}
	}

	return errs
}
