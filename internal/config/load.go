package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mutikerrors "github.com/mutik-labs/mutik/pkg/mutik/v1/errors"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// SupportedSchemaVersionConstraint is the schemaVersion major accepted by
// this build.
const SupportedSchemaVersionConstraint = "v1"

// LoadScenario validates scenarioYAML against the embedded JSON schema,
// decodes it strictly, checks schemaVersion compatibility and performs
// logical validation.
func LoadScenario(scenarioYAML []byte, filePathHint string) (*Scenario, error) {
	if len(scenarioYAML) == 0 {
		return nil, mutikerrors.NewConfigError("scenario content cannot be empty", nil)
	}

	if err := ValidateWithSchema(scenarioYAML); err != nil {
		return nil, mutikerrors.NewConfigError(fmt.Sprintf("scenario '%s' failed schema validation", filePathHint), err)
	}

	var scenario Scenario
	if err := yamlUnmarshalStrict(scenarioYAML, &scenario); err != nil {
		return nil, mutikerrors.NewConfigError(fmt.Sprintf("failed to parse scenario YAML '%s'", filePathHint), err)
	}
	scenario.FilePath = filePathHint

	if scenario.SchemaVersion == "" {
		return nil, mutikerrors.NewValidationError(fmt.Sprintf("scenario '%s' is missing required 'schemaVersion' field", filePathHint), nil)
	}
	version := scenario.SchemaVersion
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	if !semver.IsValid(version) {
		return nil, mutikerrors.NewValidationError(fmt.Sprintf("scenario '%s' has invalid 'schemaVersion' format: '%s'", filePathHint, scenario.SchemaVersion), nil)
	}
	if semver.Major(version) != SupportedSchemaVersionConstraint {
		return nil, mutikerrors.NewValidationError(
			fmt.Sprintf("scenario '%s' schemaVersion '%s' is not compatible with requirement '%s'",
				filePathHint, scenario.SchemaVersion, SupportedSchemaVersionConstraint),
			nil,
		)
	}

	validationErrs := ValidateScenarioStructure(&scenario)
	if len(validationErrs) > 0 {
		var messages []string
		for _, vErr := range validationErrs {
			messages = append(messages, vErr.Error())
		}
		combined := fmt.Sprintf("scenario '%s' has %d validation error(s):\n- %s",
			filePathHint, len(messages), strings.Join(messages, "\n- "))
		return nil, mutikerrors.NewValidationError(combined, validationErrs[0])
	}

	applyDefaults(&scenario)
	return &scenario, nil
}

// LoadScenarioFromFile reads and loads a scenario from disk.
func LoadScenarioFromFile(filePath string) (*Scenario, error) {
	if filePath == "" {
		return nil, mutikerrors.NewConfigError("scenario file path cannot be empty", nil)
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, mutikerrors.NewConfigError(fmt.Sprintf("failed to get absolute path for '%s'", filePath), err)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, mutikerrors.NewConfigError(fmt.Sprintf("failed to read scenario file '%s'", absPath), err)
	}
	return LoadScenario(content, absPath)
}

func applyDefaults(s *Scenario) {
	if s.Initial == nil {
		s.Initial = map[string]interface{}{}
	}
	for i := range s.Views {
		if s.Views[i].Format == "" {
			s.Views[i].Format = "%v"
		}
		if s.Views[i].Equality == "" {
			s.Views[i].Equality = EqualityReference
		}
	}
}

// yamlUnmarshalStrict rejects fields the target struct does not define.
func yamlUnmarshalStrict(in []byte, out interface{}) error {
	decoder := yaml.NewDecoder(bytes.NewReader(in))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("YAML parsing error: %w", err)
	}
	return nil
}
