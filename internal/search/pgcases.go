package search

import (
	"context"
	"database/sql"
	"fmt"
)

// PgCases is the Postgres fallback: ILIKE matching over argument bodies and
// decision text. Good enough when Meilisearch is absent or down.
type PgCases struct {
	db *sql.DB
}

func NewPgCases(db *sql.DB) *PgCases {
	return &PgCases{db: db}
}

func (p *PgCases) Search(ctx context.Context, q Query) ([]Result, int64, error) {
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}
	pattern := "%" + q.Text + "%"

	const query = `
		SELECT case_id, 'argument' AS kind, side, body AS snippet, created_at
		FROM case_arguments
		WHERE body ILIKE $1
		UNION ALL
		SELECT case_id, 'decision' AS kind, '' AS side, verdict || ': ' || reasoning AS snippet, created_at
		FROM case_decisions
		WHERE verdict ILIKE $1 OR reasoning ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := p.db.QueryContext(ctx, query, pattern, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("search cases: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.CaseID, &r.Kind, &r.Side, &r.Snippet, &r.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate search results: %w", err)
	}
	return results, int64(len(results)), nil
}
