// Package store defines the native request contract of the managed key-value
// store behind the data gateway, plus local executors used for tests,
// development and self-hosted deployments. Native expressions reference
// attributes only through #name / :value aliases supplied alongside the
// expression, never by interpolating field names directly.
package store

import "context"

// PutInput writes an item unconditionally; last writer wins.
type PutInput struct {
	Table string
	Key   map[string]any
	Item  map[string]any
}

// GetInput reads a single item by primary key. ConsistentRead requests a
// strongly-consistent read on engines with an eventually-consistent default.
type GetInput struct {
	Table          string
	Key            map[string]any
	ConsistentRead bool
}

// GetOutput carries the item when present. An absent item is not an error.
type GetOutput struct {
	Item  map[string]any
	Found bool
}

// UpdateInput applies a SET expression to an item, creating it when absent.
type UpdateInput struct {
	Table            string
	Key              map[string]any
	UpdateExpression string
	ExpressionNames  map[string]string
	ExpressionValues map[string]any
}

// DeleteInput removes an item unconditionally.
type DeleteInput struct {
	Table string
	Key   map[string]any
}

// QueryInput evaluates an equality key-condition expression, optionally
// against a secondary index. StartKey resumes a prior page.
type QueryInput struct {
	Table            string
	Index            string
	KeyCondition     string
	ExpressionNames  map[string]string
	ExpressionValues map[string]any
	Limit            int
	StartKey         map[string]any
}

// ScanInput walks a whole table with an optional filter expression.
type ScanInput struct {
	Table            string
	Filter           string
	ExpressionNames  map[string]string
	ExpressionValues map[string]any
	Limit            int
	StartKey         map[string]any
}

// Page is a bounded slice of items plus the key to resume from, nil when the
// result set is exhausted.
type Page struct {
	Items   []map[string]any
	LastKey map[string]any
}

// Executor is the native interface of the underlying store. Operations are
// independent and stateless; no call carries transaction state into the next.
type Executor interface {
	PutItem(ctx context.Context, in PutInput) error
	GetItem(ctx context.Context, in GetInput) (GetOutput, error)
	UpdateItem(ctx context.Context, in UpdateInput) error
	DeleteItem(ctx context.Context, in DeleteInput) error
	Query(ctx context.Context, in QueryInput) (Page, error)
	Scan(ctx context.Context, in ScanInput) (Page, error)
}
