package gateway

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
)

// aliasFields maps every field of a flat map through an indexed alias pair, so
// field names never appear literally inside a native expression. A field
// named like a reserved word in the store's expression language (for example
// "status") is therefore always safe. Shared by Update, Query and Scan.
func aliasFields(fields map[string]any) (fragments []string, names map[string]string, values map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names = make(map[string]string, len(keys))
	values = make(map[string]any, len(keys))
	for i, k := range keys {
		name := fmt.Sprintf("#f%d", i)
		value := fmt.Sprintf(":v%d", i)
		fragments = append(fragments, name+" = "+value)
		names[name] = k
		values[value] = fields[k]
	}
	return fragments, names, values
}

// encodeCursor wraps a native resume key into an opaque cursor.
func encodeCursor(lastKey map[string]any) (string, error) {
	if lastKey == nil {
		return "", nil
	}
	raw, err := json.Marshal(lastKey)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// decodeCursor recovers the native resume key from an opaque cursor.
func decodeCursor(cursor string) (map[string]any, error) {
	if cursor == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidRequest)
	}
	var key map[string]any
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidRequest)
	}
	return key, nil
}
