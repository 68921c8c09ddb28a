package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"tank_edge/internal/models"

	"github.com/google/uuid"
)

type JournalSQLite struct {
	db *sql.DB
}

func NewJournalSQLite(db *sql.DB) *JournalSQLite { return &JournalSQLite{db: db} }

const (
	sqliteTimeLayout = "2006-01-02 15:04:05.000"

	insertSyncRunSQL = `
		INSERT INTO sync_runs (id, started_at, stream, batch_size, status, error, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	defaultListLimit = 200
)

// Append inserts one batch attempt. RunID and StartedAt are filled when empty.
func (r *JournalSQLite) Append(ctx context.Context, run models.SyncRun) error {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	var errPtr *string
	if run.Error != "" {
		errPtr = &run.Error
	}

	_, err := r.db.ExecContext(ctx, insertSyncRunSQL,
		run.RunID,
		run.StartedAt.UTC().Format(sqliteTimeLayout),
		strings.ToUpper(strings.TrimSpace(run.Stream)),
		run.BatchSize,
		run.Status,
		errPtr,
		int64(run.Duration),
	)
	return err
}

// List returns runs within [from, to] (zero bounds are open) for the given
// stream ("" for all), newest first, at most limit rows.
func (r *JournalSQLite) List(ctx context.Context, from, to time.Time, stream string, limit int) ([]models.SyncRun, error) {
	var (
		conds []string
		args  []any
	)

	if !from.IsZero() {
		conds = append(conds, "started_at >= ?")
		args = append(args, from.UTC().Format(sqliteTimeLayout))
	}
	if !to.IsZero() {
		conds = append(conds, "started_at <= ?")
		args = append(args, to.UTC().Format(sqliteTimeLayout))
	}
	if stream = strings.ToUpper(strings.TrimSpace(stream)); stream != "" {
		conds = append(conds, "stream = ?")
		args = append(args, stream)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	q := `SELECT id, started_at, stream, batch_size, status, error, duration_ns FROM sync_runs`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.SyncRun, 0, 64)
	for rows.Next() {
		var (
			run       models.SyncRun
			startedAt string
			errStr    sql.NullString
			duration  int64
		)
		if err := rows.Scan(&run.RunID, &startedAt, &run.Stream, &run.BatchSize, &run.Status, &errStr, &duration); err != nil {
			return nil, err
		}
		ts, err := time.Parse(sqliteTimeLayout, startedAt)
		if err != nil {
			return nil, err
		}
		run.StartedAt = ts.UTC()
		run.Duration = time.Duration(duration)
		if errStr.Valid {
			run.Error = errStr.String
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
