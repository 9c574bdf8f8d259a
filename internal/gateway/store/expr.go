package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadExpression indicates an expression that does not resolve against its
// alias maps.
var ErrBadExpression = errors.New("bad expression")

// resolveAssignments interprets a "SET #n = :v, ..." update expression into
// concrete field/value pairs using the alias maps.
func resolveAssignments(expr string, names map[string]string, values map[string]any) (map[string]any, error) {
	const prefix = "SET "
	if !strings.HasPrefix(expr, prefix) {
		return nil, fmt.Errorf("%w: expected SET expression, got %q", ErrBadExpression, expr)
	}
	return resolvePairs(strings.Split(expr[len(prefix):], ", "), names, values)
}

// resolveConditions interprets a "#n = :v AND ..." equality expression into
// concrete field/value pairs. An empty expression resolves to no conditions.
func resolveConditions(expr string, names map[string]string, values map[string]any) (map[string]any, error) {
	if strings.TrimSpace(expr) == "" {
		return map[string]any{}, nil
	}
	return resolvePairs(strings.Split(expr, " AND "), names, values)
}

func resolvePairs(fragments []string, names map[string]string, values map[string]any) (map[string]any, error) {
	resolved := make(map[string]any, len(fragments))
	for _, frag := range fragments {
		parts := strings.SplitN(frag, " = ", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: fragment %q", ErrBadExpression, frag)
		}
		field, ok := names[strings.TrimSpace(parts[0])]
		if !ok {
			return nil, fmt.Errorf("%w: unresolved name alias %q", ErrBadExpression, parts[0])
		}
		value, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return nil, fmt.Errorf("%w: unresolved value alias %q", ErrBadExpression, parts[1])
		}
		resolved[field] = value
	}
	return resolved, nil
}

// matches reports whether an item satisfies every equality condition.
func matches(item map[string]any, conditions map[string]any) bool {
	for field, want := range conditions {
		got, ok := item[field]
		if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}
