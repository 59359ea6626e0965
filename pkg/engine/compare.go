// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/tombee/graphexec/pkg/errors"
)

// Compare evaluates `left op right` for conditional and loop nodes.
//
// Equality ("==", "!=") compares values directly, including against nil.
// Ordering operators (">", ">=", "<", "<=") evaluate to false when either
// operand is nil; they never treat an absent state key as an error. Numbers
// compare across concrete types (an int state value against a float64 graph
// value), strings compare lexicographically. An unsupported operator or
// unorderable operand pair is a config error: it terminates the run.
func Compare(left any, op string, right any) (bool, error) {
	switch op {
	case "==":
		return valuesEqual(left, right), nil
	case "!=":
		return !valuesEqual(left, right), nil
	case ">", ">=", "<", "<=":
		if left == nil || right == nil {
			return false, nil
		}
		cmp, ok := orderValues(left, right)
		if !ok {
			return false, &errors.ConfigError{
				Key:    "value",
				Reason: fmt.Sprintf("cannot order %T against %T", left, right),
			}
		}
		switch op {
		case ">":
			return cmp > 0, nil
		case ">=":
			return cmp >= 0, nil
		case "<":
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	default:
		return false, &errors.ConfigError{
			Key:    "op",
			Reason: fmt.Sprintf("unsupported comparison operator %q", op),
		}
	}
}

// valuesEqual treats numbers of different concrete types as comparable, so a
// YAML-decoded int matches a JSON-decoded float64 of the same value.
func valuesEqual(left, right any) bool {
	if lf, ok := numericValue(left); ok {
		if rf, ok := numericValue(right); ok {
			return lf == rf
		}
		return false
	}
	return reflect.DeepEqual(left, right)
}

// orderValues returns -1/0/+1 for operand pairs with a defined ordering. The
// bool reports whether the pair is orderable at all.
func orderValues(left, right any) (int, bool) {
	if lf, ok := numericValue(left); ok {
		if rf, ok := numericValue(right); ok {
			switch {
			case lf < rf:
				return -1, true
			case lf > rf:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			return strings.Compare(ls, rs), true
		}
	}
	return 0, false
}

// numericValue widens any numeric concrete type to float64. Booleans are not
// numbers here.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
