package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

type memoryEntry struct {
	key  map[string]any
	item map[string]any
}

type memoryExecutor struct {
	mu     sync.RWMutex
	tables map[string]map[string]memoryEntry
}

// NewMemory creates a concurrency-safe in-memory executor for unit tests and
// development mode.
func NewMemory() Executor {
	return &memoryExecutor{tables: make(map[string]map[string]memoryEntry)}
}

// canonicalKey serialises a key map into a stable representation.
// encoding/json sorts map keys, which gives scans a deterministic order.
func canonicalKey(key map[string]any) string {
	raw, _ := json.Marshal(key)
	return string(raw)
}

// cloneItem deep-copies an item so callers never share map state with the
// store.
func cloneItem(item map[string]any) map[string]any {
	out := make(map[string]any, len(item))
	for k, v := range item {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneItem(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func (m *memoryExecutor) PutItem(_ context.Context, in PutInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	table, ok := m.tables[in.Table]
	if !ok {
		table = make(map[string]memoryEntry)
		m.tables[in.Table] = table
	}
	table[canonicalKey(in.Key)] = memoryEntry{key: cloneItem(in.Key), item: cloneItem(in.Item)}
	return nil
}

func (m *memoryExecutor) GetItem(_ context.Context, in GetInput) (GetOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.tables[in.Table][canonicalKey(in.Key)]
	if !ok {
		return GetOutput{}, nil
	}
	return GetOutput{Item: cloneItem(entry.item), Found: true}, nil
}

func (m *memoryExecutor) UpdateItem(_ context.Context, in UpdateInput) error {
	assignments, err := resolveAssignments(in.UpdateExpression, in.ExpressionNames, in.ExpressionValues)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	table, ok := m.tables[in.Table]
	if !ok {
		table = make(map[string]memoryEntry)
		m.tables[in.Table] = table
	}

	ck := canonicalKey(in.Key)
	entry, ok := table[ck]
	if !ok {
		// Update on an absent key creates the item, matching the engine.
		entry = memoryEntry{key: cloneItem(in.Key), item: map[string]any{}}
		for field, value := range in.Key {
			entry.item[field] = cloneValue(value)
		}
	}
	for field, value := range assignments {
		entry.item[field] = cloneValue(value)
	}
	table[ck] = entry
	return nil
}

func (m *memoryExecutor) DeleteItem(_ context.Context, in DeleteInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables[in.Table], canonicalKey(in.Key))
	return nil
}

func (m *memoryExecutor) Query(_ context.Context, in QueryInput) (Page, error) {
	conditions, err := resolveConditions(in.KeyCondition, in.ExpressionNames, in.ExpressionValues)
	if err != nil {
		return Page{}, err
	}
	// The in-memory engine has no materialised secondary indexes; an index
	// query degrades to a filtered walk over the table.
	return m.walk(in.Table, conditions, in.Limit, in.StartKey)
}

func (m *memoryExecutor) Scan(_ context.Context, in ScanInput) (Page, error) {
	conditions, err := resolveConditions(in.Filter, in.ExpressionNames, in.ExpressionValues)
	if err != nil {
		return Page{}, err
	}
	return m.walk(in.Table, conditions, in.Limit, in.StartKey)
}

// walk iterates a table in canonical key order, applying equality conditions
// and page bounds.
func (m *memoryExecutor) walk(table string, conditions map[string]any, limit int, startKey map[string]any) (Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.tables[table]
	keys := make([]string, 0, len(entries))
	for ck := range entries {
		keys = append(keys, ck)
	}
	sort.Strings(keys)

	start := ""
	if startKey != nil {
		start = canonicalKey(startKey)
	}

	var page Page
	for _, ck := range keys {
		if start != "" && ck <= start {
			continue
		}
		entry := entries[ck]
		if !matches(entry.item, conditions) {
			continue
		}
		page.Items = append(page.Items, cloneItem(entry.item))
		if limit > 0 && len(page.Items) == limit {
			page.LastKey = cloneItem(entry.key)
			break
		}
	}
	return page, nil
}
