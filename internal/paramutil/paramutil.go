// Package paramutil validates and converts action parameters decoded from
// scenario YAML.
package paramutil

import (
	"fmt"
	"math"

	mutikerrors "github.com/mutik-labs/mutik/pkg/mutik/v1/errors"
)

// GetRequired returns the value stored under key, which may be of any type
// including nil.
func GetRequired(params map[string]interface{}, key string) (interface{}, error) {
	value, exists := params[key]
	if !exists {
		return nil, mutikerrors.NewValidationError(fmt.Sprintf("missing required parameter '%s'", key), nil)
	}
	return value, nil
}

// GetRequiredString returns the string parameter under key.
func GetRequiredString(params map[string]interface{}, key string) (string, error) {
	value, err := GetRequired(params, key)
	if err != nil {
		return "", err
	}
	strValue, ok := value.(string)
	if !ok {
		return "", mutikerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be a string, got %T", key, value), nil)
	}
	return strValue, nil
}

// GetOptionalString returns the string parameter under key and whether it
// was present. A present value of another type is an error.
func GetOptionalString(params map[string]interface{}, key string) (string, bool, error) {
	value, exists := params[key]
	if !exists {
		return "", false, nil
	}
	strValue, ok := value.(string)
	if !ok {
		return "", false, mutikerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be a string, got %T", key, value), nil)
	}
	return strValue, true, nil
}

// GetOptionalMap returns the map parameter under key. YAML's
// map[interface{}]interface{} is converted when all keys are strings.
func GetOptionalMap(params map[string]interface{}, key string) (map[string]interface{}, bool, error) {
	value, exists := params[key]
	if !exists {
		return nil, false, nil
	}
	m, err := ToStringMap(value)
	if err != nil {
		return nil, false, mutikerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be a map with string keys", key), err)
	}
	return m, true, nil
}

// ToStringMap converts map[string]interface{} and string-keyed
// map[interface{}]interface{} values to map[string]interface{}.
func ToStringMap(value interface{}) (map[string]interface{}, error) {
	switch m := value.(type) {
	case map[string]interface{}:
		return m, nil
	case map[interface{}]interface{}:
		converted := make(map[string]interface{}, len(m))
		for k, v := range m {
			strKey, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("found key of type %T", k)
			}
			converted[strKey] = v
		}
		return converted, nil
	default:
		return nil, fmt.Errorf("got %T", value)
	}
}

// GetOptionalInt returns the integer parameter under key. Whole floats are
// accepted; fractional floats and other types are errors.
func GetOptionalInt(params map[string]interface{}, key string) (int, bool, error) {
	value, exists := params[key]
	if !exists {
		return 0, false, nil
	}
	n, err := toInt(value)
	if err != nil {
		return 0, false, mutikerrors.NewValidationError(fmt.Sprintf("parameter '%s' %s", key, err), nil)
	}
	return n, true, nil
}

func toInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		if int64(int(v)) != v {
			return 0, fmt.Errorf("value %v overflows standard int type", v)
		}
		return int(v), nil
	case uint:
		if v > math.MaxInt {
			return 0, fmt.Errorf("value %v overflows standard int type", v)
		}
		return int(v), nil
	case float32:
		if v == float32(int(v)) {
			return int(v), nil
		}
		return 0, fmt.Errorf("is a non-integer float (%v), cannot convert to int", v)
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
		return 0, fmt.Errorf("is a non-integer float (%v), cannot convert to int", v)
	default:
		return 0, fmt.Errorf("must be an integer or whole number, got %T", value)
	}
}

// GetOptionalNumber returns the numeric parameter under key as an int when
// it is integral and as a float64 otherwise.
func GetOptionalNumber(params map[string]interface{}, key string) (interface{}, bool, error) {
	value, exists := params[key]
	if !exists {
		return nil, false, nil
	}
	switch v := value.(type) {
	case float32:
		if v != float32(int(v)) {
			return float64(v), true, nil
		}
	case float64:
		if v != float64(int(v)) {
			return v, true, nil
		}
	}
	n, err := toInt(value)
	if err != nil {
		return nil, false, mutikerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be a number, got %T", key, value), nil)
	}
	return n, true, nil
}

// GetOptionalBool returns the boolean parameter under key.
func GetOptionalBool(params map[string]interface{}, key string) (bool, bool, error) {
	value, exists := params[key]
	if !exists {
		return false, false, nil
	}
	boolValue, ok := value.(bool)
	if !ok {
		return false, false, mutikerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be a boolean, got %T", key, value), nil)
	}
	return boolValue, true, nil
}

// CheckRequired fails on the first key of required missing from params.
func CheckRequired(params map[string]interface{}, required []string) error {
	for _, key := range required {
		if _, exists := params[key]; !exists {
			return mutikerrors.NewValidationError(fmt.Sprintf("missing required parameter '%s'", key), nil)
		}
	}
	return nil
}

// CheckAllowed fails on the first key of params not listed in allowed. An
// empty allowed list allows everything.
func CheckAllowed(params map[string]interface{}, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, key := range allowed {
		allowedSet[key] = struct{}{}
	}
	for key := range params {
		if _, isAllowed := allowedSet[key]; !isAllowed {
			return mutikerrors.NewValidationError(fmt.Sprintf("unknown parameter '%s' provided", key), nil)
		}
	}
	return nil
}
