package orchestrator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
)

var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Substitute replaces ${name} placeholders with values from vars.
// Names that are absent or nil are left as the literal placeholder.
func Substitute(template string, vars map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[2 : len(match)-1]
		v, ok := vars[name]
		if !ok || v == nil {
			return match
		}
		return formatValue(v)
	})
}

// Extract applies an extractor to output. It yields the first capture group
// when the pattern has one, else the whole match, else nil when nothing
// matches.
func Extract(re *regexp.Regexp, output string) any {
	m := re.FindStringSubmatch(output)
	if m == nil {
		return nil
	}
	if len(m) > 1 {
		return m[1]
	}
	return m[0]
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

// valuesEqual compares a variable with a condition value. nil only equals
// nil; anything else compares by its printed form, so a JSON number 3 and
// the string "3" are equal.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return formatValue(a) == formatValue(b)
}

// variableSet is the mutable variable namespace of one execution.
type variableSet struct {
	mu     sync.RWMutex
	values map[string]any
}

func newVariableSet(layers ...map[string]any) *variableSet {
	vs := &variableSet{values: make(map[string]any)}
	for _, layer := range layers {
		for k, v := range layer {
			vs.values[k] = v
		}
	}
	return vs
}

func (vs *variableSet) Get(name string) (any, bool) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	v, ok := vs.values[name]
	return v, ok
}

func (vs *variableSet) Set(name string, value any) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.values[name] = value
}

// Snapshot returns a copy of the current values.
func (vs *variableSet) Snapshot() map[string]any {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	out := make(map[string]any, len(vs.values))
	for k, v := range vs.values {
		out[k] = v
	}
	return out
}
