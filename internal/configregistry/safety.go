package configregistry

import (
	"fmt"

	"github.com/aristath/titan-brain/internal/brain"
)

// checkSafety enforces the direction/shape constraint a catalog entry's
// safety classification implies.
func checkSafety(item brain.ConfigItem, previous, next interface{}) error {
	switch item.Safety {
	case brain.SafetyImmutable:
		return fmt.Errorf("%w: %s is immutable", ErrSafetyViolation, item.Key)

	case brain.SafetyTightenOnly:
		prevF, ok1 := asFloat(previous)
		nextF, ok2 := asFloat(next)
		if !ok1 || !ok2 {
			return fmt.Errorf("%w: %s tighten_only requires numeric values", ErrSafetyViolation, item.Key)
		}
		if item.RiskDirection == nil {
			return fmt.Errorf("%w: %s has no risk_direction", ErrSafetyViolation, item.Key)
		}
		switch *item.RiskDirection {
		case brain.RiskDirectionHigherIsRiskier:
			if nextF > prevF {
				return fmt.Errorf("%w: %s may only decrease (higher is riskier)", ErrSafetyViolation, item.Key)
			}
		case brain.RiskDirectionLowerIsRiskier:
			if nextF < prevF {
				return fmt.Errorf("%w: %s may only increase (lower is riskier)", ErrSafetyViolation, item.Key)
			}
		}
		return nil

	case brain.SafetyRaiseOnly:
		prevF, ok1 := asFloat(previous)
		nextF, ok2 := asFloat(next)
		if !ok1 || !ok2 {
			return fmt.Errorf("%w: %s raise_only requires numeric values", ErrSafetyViolation, item.Key)
		}
		if nextF < prevF {
			return fmt.Errorf("%w: %s may only increase", ErrSafetyViolation, item.Key)
		}
		return nil

	case brain.SafetyAppendOnly:
		prevArr, ok1 := asStringSlice(previous)
		nextArr, ok2 := asStringSlice(next)
		if !ok1 || !ok2 {
			return fmt.Errorf("%w: %s append_only requires array values", ErrSafetyViolation, item.Key)
		}
		have := make(map[string]bool, len(nextArr))
		for _, v := range nextArr {
			have[v] = true
		}
		for _, v := range prevArr {
			if !have[v] {
				return fmt.Errorf("%w: %s new value must be a superset of the previous value", ErrSafetyViolation, item.Key)
			}
		}
		return nil

	case brain.SafetyTunable:
		return nil

	default:
		return fmt.Errorf("%w: %s has unknown safety classification %q", ErrSafetyViolation, item.Key, item.Safety)
	}
}

// validateSchema checks type/bounds/enum constraints.
func validateSchema(schema brain.ValueSchema, value interface{}) error {
	switch schema.Type {
	case "number":
		f, ok := asFloat(value)
		if !ok {
			return fmt.Errorf("expected a number, got %T", value)
		}
		if schema.Min != nil && f < *schema.Min {
			return fmt.Errorf("value %v below minimum %v", f, *schema.Min)
		}
		if schema.Max != nil && f > *schema.Max {
			return fmt.Errorf("value %v above maximum %v", f, *schema.Max)
		}
		return nil

	case "bool":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected a bool, got %T", value)
		}
		return nil

	case "string":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected a string, got %T", value)
		}
		if len(schema.Enum) > 0 {
			for _, e := range schema.Enum {
				if e == s {
					return nil
				}
			}
			return fmt.Errorf("value %q not in enum %v", s, schema.Enum)
		}
		return nil

	case "array":
		if _, ok := asStringSlice(value); !ok {
			return fmt.Errorf("expected an array, got %T", value)
		}
		return nil

	default:
		return nil
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asStringSlice(v interface{}) ([]string, bool) {
	switch arr := v.(type) {
	case []string:
		return arr, true
	case []interface{}:
		out := make([]string, 0, len(arr))
		for _, e := range arr {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
