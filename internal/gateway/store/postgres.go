package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresExecutor is a self-hosted implementation of the native store
// contract on a single JSONB relation. Items are keyed by table name plus the
// canonical form of their primary key.
type PostgresExecutor struct {
	db *pgxpool.Pool
}

// NewPostgres builds a Postgres-backed executor.
func NewPostgres(db *pgxpool.Pool) *PostgresExecutor {
	return &PostgresExecutor{db: db}
}

// EnsureSchema creates the backing relation when missing.
func (p *PostgresExecutor) EnsureSchema(ctx context.Context) error {
	_, err := p.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS items (
        table_name text NOT NULL,
        item_key   text NOT NULL,
        key_attrs  jsonb NOT NULL,
        item       jsonb NOT NULL,
        PRIMARY KEY (table_name, item_key)
    )`)
	return err
}

func (p *PostgresExecutor) PutItem(ctx context.Context, in PutInput) error {
	itemJSON, err := json.Marshal(in.Item)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	keyJSON, err := json.Marshal(in.Key)
	if err != nil {
		return fmt.Errorf("encode key: %w", err)
	}
	_, err = p.db.Exec(ctx, `INSERT INTO items (table_name, item_key, key_attrs, item)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (table_name, item_key) DO UPDATE SET item = EXCLUDED.item`,
		in.Table, canonicalKey(in.Key), keyJSON, itemJSON)
	return err
}

func (p *PostgresExecutor) GetItem(ctx context.Context, in GetInput) (GetOutput, error) {
	// Postgres reads are strongly consistent, so ConsistentRead needs no
	// special handling here.
	var item map[string]any
	err := p.db.QueryRow(ctx, `SELECT item FROM items WHERE table_name = $1 AND item_key = $2`,
		in.Table, canonicalKey(in.Key)).Scan(&item)
	if errors.Is(err, pgx.ErrNoRows) {
		return GetOutput{}, nil
	}
	if err != nil {
		return GetOutput{}, err
	}
	return GetOutput{Item: item, Found: true}, nil
}

func (p *PostgresExecutor) UpdateItem(ctx context.Context, in UpdateInput) error {
	assignments, err := resolveAssignments(in.UpdateExpression, in.ExpressionNames, in.ExpressionValues)
	if err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	ck := canonicalKey(in.Key)
	var item map[string]any
	err = tx.QueryRow(ctx, `SELECT item FROM items WHERE table_name = $1 AND item_key = $2 FOR UPDATE`,
		in.Table, ck).Scan(&item)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Update on an absent key creates the item, matching the engine.
		item = map[string]any{}
		for field, value := range in.Key {
			item[field] = value
		}
	case err != nil:
		return err
	}

	for field, value := range assignments {
		item[field] = value
	}

	itemJSON, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	keyJSON, err := json.Marshal(in.Key)
	if err != nil {
		return fmt.Errorf("encode key: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO items (table_name, item_key, key_attrs, item)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (table_name, item_key) DO UPDATE SET item = EXCLUDED.item`,
		in.Table, ck, keyJSON, itemJSON); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *PostgresExecutor) DeleteItem(ctx context.Context, in DeleteInput) error {
	_, err := p.db.Exec(ctx, `DELETE FROM items WHERE table_name = $1 AND item_key = $2`,
		in.Table, canonicalKey(in.Key))
	return err
}

func (p *PostgresExecutor) Query(ctx context.Context, in QueryInput) (Page, error) {
	conditions, err := resolveConditions(in.KeyCondition, in.ExpressionNames, in.ExpressionValues)
	if err != nil {
		return Page{}, err
	}
	return p.walk(ctx, in.Table, conditions, in.Limit, in.StartKey)
}

func (p *PostgresExecutor) Scan(ctx context.Context, in ScanInput) (Page, error) {
	conditions, err := resolveConditions(in.Filter, in.ExpressionNames, in.ExpressionValues)
	if err != nil {
		return Page{}, err
	}
	return p.walk(ctx, in.Table, conditions, in.Limit, in.StartKey)
}

// walk pages through a table in canonical key order, pushing equality
// conditions down as JSONB containment.
func (p *PostgresExecutor) walk(ctx context.Context, table string, conditions map[string]any, limit int, startKey map[string]any) (Page, error) {
	condJSON, err := json.Marshal(conditions)
	if err != nil {
		return Page{}, fmt.Errorf("encode conditions: %w", err)
	}

	start := ""
	if startKey != nil {
		start = canonicalKey(startKey)
	}

	query := `SELECT key_attrs, item FROM items
        WHERE table_name = $1 AND item @> $2::jsonb AND item_key > $3
        ORDER BY item_key`
	args := []any{table, condJSON, start}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	var page Page
	var lastKey map[string]any
	for rows.Next() {
		var key, item map[string]any
		if err := rows.Scan(&key, &item); err != nil {
			return Page{}, err
		}
		page.Items = append(page.Items, item)
		lastKey = key
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}
	if limit > 0 && len(page.Items) == limit {
		page.LastKey = lastKey
	}
	return page, nil
}
