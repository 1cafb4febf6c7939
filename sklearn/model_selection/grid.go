package model_selection

import (
	"sort"

	"github.com/banerjixplores/climacrop/pkg/errors"
)

// ParamGrid maps a "step__param" path to its candidate values.
type ParamGrid map[string][]interface{}

// Candidates expands the grid into every combination. Keys are iterated in
// sorted order with the last key varying fastest.
func (g ParamGrid) Candidates() ([]map[string]interface{}, error) {
	keys := make([]string, 0, len(g))
	for k, vals := range g {
		if len(vals) == 0 {
			return nil, errors.NewValidationError(k, "grid entry has no values", vals)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []map[string]interface{}{{}}
	for _, k := range keys {
		next := make([]map[string]interface{}, 0, len(out)*len(g[k]))
		for _, partial := range out {
			for _, v := range g[k] {
				c := make(map[string]interface{}, len(partial)+1)
				for pk, pv := range partial {
					c[pk] = pv
				}
				c[k] = v
				next = append(next, c)
			}
		}
		out = next
	}
	return out, nil
}

// Size returns the number of candidates.
func (g ParamGrid) Size() int {
	n := 1
	for _, vals := range g {
		n *= len(vals)
	}
	return n
}
