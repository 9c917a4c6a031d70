package ai

import "fmt"

// extractRequiredFields are the fields every extraction response must carry.
var extractRequiredFields = []string{
	"problem_statement",
	"input_format",
	"output_format",
	"complexity",
	"test_cases",
	"validation_type",
	"difficulty",
}

// solutionRequiredFields are the fields every generation/debug response must
// carry.
var solutionRequiredFields = []string{
	"code",
	"thoughts",
	"time_complexity",
	"space_complexity",
}

// requireFields checks structural presence only: a field is rejected when it
// is absent or falsy, matching the contract the upstream prompt promises.
// Types beyond that are not enforced here.
func requireFields(obj map[string]any, fields ...string) error {
	for _, field := range fields {
		v, ok := obj[field]
		if !ok || isFalsy(v) {
			return fmt.Errorf("%w: %s", ErrMissingField, field)
		}
	}
	return nil
}

func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	default:
		return false
	}
}

// validateSolution checks the generation/debug contract, including the
// thoughts field being a sequence.
func validateSolution(obj map[string]any) error {
	if err := requireFields(obj, solutionRequiredFields...); err != nil {
		return err
	}
	if _, ok := obj["thoughts"].([]any); !ok {
		return fmt.Errorf("%w: thoughts must be an array of strings", ErrInvalidField)
	}
	return nil
}
