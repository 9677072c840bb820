package registry

import (
	"fmt"

	"github.com/itchyny/gojq"
)

// JQ compiles a jq predicate into a validator. Data is valid when the
// predicate's first output is true; errors, no output and non-boolean
// outputs are invalid.
func JQ(expr string) (Validator, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing jq predicate %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compiling jq predicate %q: %w", expr, err)
	}

	return func(data any) bool {
		iter := code.Run(data)
		v, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := v.(error); isErr {
			return false
		}
		b, ok := v.(bool)
		return ok && b
	}, nil
}
