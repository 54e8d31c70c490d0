package formula

import (
	"maps"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Context is the flat resolution context of a character: dotted key -> number or string.
// It is rebuilt once per recompute pass.
type Context map[string]any

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reserved words cannot be declared as CEL variables.
var reserved = map[string]bool{
	"true": true, "false": true, "null": true, "in": true, "as": true, "break": true,
	"const": true, "continue": true, "else": true, "for": true, "function": true, "if": true,
	"import": true, "let": true, "loop": true, "package": true, "namespace": true,
	"return": true, "var": true, "void": true, "while": true,
}

// Clone returns a shallow copy of the context.
func (c Context) Clone() Context {
	if c == nil {
		return Context{}
	}
	return maps.Clone(c)
}

// Equal reports whether both contexts hold the same keys and values.
func (c Context) Equal(other Context) bool {
	return maps.Equal(c, other)
}

// Number returns the numeric value at key, or 0 when absent or not numeric.
func (c Context) Number(key string) float64 {
	switch v := c[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// Nest expands dotted keys into nested maps so CEL field selection works.
// Integral numbers become int64 so mixed int arithmetic type-checks.
// Keys whose segments are not identifiers, and leaves shadowed by a deeper key, are dropped.
func (c Context) Nest() map[string]any {
	root := make(map[string]any, len(c))
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	// Longer paths first so a leaf never blocks a branch.
	sort.Slice(keys, func(i, j int) bool {
		di, dj := strings.Count(keys[i], "."), strings.Count(keys[j], ".")
		if di != dj {
			return di > dj
		}
		return keys[i] < keys[j]
	})

	for _, key := range keys {
		parts := strings.Split(key, ".")
		if !validPath(parts) {
			continue
		}
		node := root
		ok := true
		for _, part := range parts[:len(parts)-1] {
			next, exists := node[part]
			if !exists {
				child := make(map[string]any)
				node[part] = child
				node = child
				continue
			}
			child, isMap := next.(map[string]any)
			if !isMap {
				ok = false
				break
			}
			node = child
		}
		leaf := parts[len(parts)-1]
		if !ok {
			continue
		}
		if _, exists := node[leaf]; exists {
			continue
		}
		node[leaf] = celValue(c[key])
	}
	return root
}

func validPath(parts []string) bool {
	if reserved[parts[0]] {
		return false
	}
	for _, p := range parts {
		if !identifier.MatchString(p) {
			return false
		}
	}
	return true
}

// celValue converts context scalars into the types CEL expects.
func celValue(v any) any {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) && math.Abs(n) < 1<<53 {
			return int64(n)
		}
		return n
	case int:
		return int64(n)
	case bool:
		if n {
			return int64(1)
		}
		return int64(0)
	}
	return v
}
