package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/banerjixplores/climacrop/pkg/errors"
)

// ParamSep separates a step name from a nested parameter, as in
// "preprocessor__clim__spline__n_knots".
const ParamSep = "__"

// SplitParams divides params into keys owned by the receiver and keys routed
// to named children. "clim__spline__degree" becomes nested["clim"]["spline__degree"].
func SplitParams(params map[string]interface{}) (own map[string]interface{}, nested map[string]map[string]interface{}) {
	own = make(map[string]interface{})
	nested = make(map[string]map[string]interface{})
	for k, v := range params {
		head, rest, ok := strings.Cut(k, ParamSep)
		if !ok {
			own[k] = v
			continue
		}
		if nested[head] == nil {
			nested[head] = make(map[string]interface{})
		}
		nested[head][rest] = v
	}
	return own, nested
}

// PrefixParams copies child params into dst under "name__".
func PrefixParams(dst map[string]interface{}, name string, child map[string]interface{}) {
	for k, v := range child {
		dst[name+ParamSep+k] = v
	}
}

// UnknownParam returns the error reported for a key an estimator does not own.
func UnknownParam(estimator, key string) error {
	return errors.NewValidationError(key, "unknown parameter for "+estimator, key)
}

// SortedKeys returns the keys of params in lexical order.
func SortedKeys(params map[string]interface{}) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParamInt converts a grid value to int. Whole float64 values are accepted.
func ParamInt(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case int32:
		return int(x), nil
	case float64:
		if x == float64(int(x)) {
			return int(x), nil
		}
	}
	return 0, errors.NewValidationError(name, "expected an integer", v)
}

// ParamInt64 is ParamInt for seeds.
func ParamInt64(name string, v interface{}) (int64, error) {
	n, err := ParamInt(name, v)
	return int64(n), err
}

// ParamFloat converts a grid value to float64.
func ParamFloat(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, errors.NewValidationError(name, "expected a number", v)
}

// ParamFloats converts a grid value to []float64.
func ParamFloats(name string, v interface{}) ([]float64, error) {
	switch x := v.(type) {
	case []float64:
		return append([]float64(nil), x...), nil
	case []interface{}:
		out := make([]float64, len(x))
		for i, e := range x {
			f, err := ParamFloat(name, e)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, errors.NewValidationError(name, "expected a list of numbers", v)
}

// ParamString converts a grid value to string.
func ParamString(name string, v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", errors.NewValidationError(name, "expected a string", v)
}

// FormatParams renders params as "k=v, ..." in key order, for logs and result tables.
func FormatParams(params map[string]interface{}) string {
	keys := SortedKeys(params)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, ", ")
}
