package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for the audit trail.
// Only insert and read operations exist; the append-only invariant is
// structural, not conventional.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends an entry and returns its assigned id.
func (r *Repository) Insert(ctx context.Context, entry Entry) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO audit_entries (at, actor_name, module, action, details, outcome)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		entry.At, entry.ActorName, entry.Module, entry.Action, entry.Details, string(entry.Outcome)).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ListEntries returns a most-recent-first window of entries matching the
// filters, plus one extra row when more pages exist.
func (r *Repository) ListEntries(ctx context.Context, f Filters, offset, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, at, actor_name, module, action, details, outcome
		 FROM audit_entries
		 WHERE ($1 = '' OR actor_name = $1)
		   AND ($2 = '' OR module = $2)
		   AND ($3 = '' OR outcome = $3)
		   AND ($4::timestamptz IS NULL OR at >= $4)
		   AND ($5::timestamptz IS NULL OR at <= $5)
		 ORDER BY id DESC
		 OFFSET $6 LIMIT $7`,
		f.Actor, f.Module, string(f.Outcome), nullableTime(f.From), nullableTime(f.To), offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var entry Entry
		var outcome string
		if err := rows.Scan(&entry.ID, &entry.At, &entry.ActorName, &entry.Module, &entry.Action, &entry.Details, &outcome); err != nil {
			return nil, err
		}
		entry.Outcome = Outcome(outcome)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// PurgeOlderThan removes entries past the retention window. This is the
// data-retention job's entry point, not an API operation.
func (r *Repository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_entries WHERE at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
