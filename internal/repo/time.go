package repo

import (
	"context"
	"database/sql"
	"strings"

	"exitframe/internal/domain"
)

const timeEntryColumns = `id,domain,module,client_id,project_id,activity_description,started_at,ended_at,duration_minutes,source`

func scanTimeEntry(scan func(dest ...any) error) (domain.TimeEntry, error) {
	var e domain.TimeEntry
	var clientID, projectID, endedAt sql.NullString
	err := scan(&e.ID, &e.Domain, &e.Module, &clientID, &projectID, &e.ActivityDescription, &e.StartedAt, &endedAt, &e.DurationMinutes, &e.Source)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if clientID.Valid {
		e.ClientID = &clientID.String
	}
	if projectID.Valid {
		e.ProjectID = &projectID.String
	}
	if endedAt.Valid {
		e.EndedAt = &endedAt.String
	}
	return e, err
}

func (r Repo) InsertTimeEntry(ctx context.Context, e domain.TimeEntry) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO time_entries(id,domain,module,client_id,project_id,activity_description,started_at,ended_at,duration_minutes,source) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.Domain, e.Module, nullableStringPtr(e.ClientID), nullableStringPtr(e.ProjectID), e.ActivityDescription, e.StartedAt, nullableStringPtr(e.EndedAt), e.DurationMinutes, e.Source)
	return err
}

func (r Repo) InsertTimeEntryTx(ctx context.Context, tx *sql.Tx, e domain.TimeEntry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO time_entries(id,domain,module,client_id,project_id,activity_description,started_at,ended_at,duration_minutes,source) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.Domain, e.Module, nullableStringPtr(e.ClientID), nullableStringPtr(e.ProjectID), e.ActivityDescription, e.StartedAt, nullableStringPtr(e.EndedAt), e.DurationMinutes, e.Source)
	return err
}

// RecentEntryTx returns the most recently ended entry for the (module,
// clientID) context whose end time is at or after the cutoff.
func (r Repo) RecentEntryTx(ctx context.Context, tx *sql.Tx, module string, clientID *string, cutoff string) (domain.TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries WHERE module=? AND ended_at IS NOT NULL AND ended_at>=?`
	args := []any{module, cutoff}
	if clientID != nil && *clientID != "" {
		query += ` AND client_id=?`
		args = append(args, *clientID)
	} else {
		query += ` AND client_id IS NULL`
	}
	query += ` ORDER BY ended_at DESC LIMIT 1`
	row := tx.QueryRowContext(ctx, query, args...)
	return scanTimeEntry(row.Scan)
}

// ExtendEntryTx moves an entry's end time forward and rewrites its duration.
func (r Repo) ExtendEntryTx(ctx context.Context, tx *sql.Tx, id, endedAt string, durationMinutes int) error {
	res, err := tx.ExecContext(ctx, `UPDATE time_entries SET ended_at=?, duration_minutes=? WHERE id=?`, endedAt, durationMinutes, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CloseOpenEntriesTx force-closes every entry with no end time. Only one
// activity is ever open at a time, so a new context starts by sealing the rest.
func (r Repo) CloseOpenEntriesTx(ctx context.Context, tx *sql.Tx, endedAt string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE time_entries SET ended_at=? WHERE ended_at IS NULL`, endedAt)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type TimeEntryFilters struct {
	ClientID string
	DateFrom string
	DateTo   string
}

func (r Repo) ListTimeEntries(ctx context.Context, f TimeEntryFilters) ([]domain.TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries`
	var (
		clauses []string
		args    []any
	)
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.DateFrom != "" {
		clauses = append(clauses, "started_at>=?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		clauses = append(clauses, "started_at<=?")
		args = append(args, f.DateTo)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY started_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TimeEntry
	for rows.Next() {
		e, err := scanTimeEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// SummarizeTimeByModule totals tracked minutes per module inside the window.
func (r Repo) SummarizeTimeByModule(ctx context.Context, dateFrom, dateTo string) (map[string]int, error) {
	query := `SELECT module, COALESCE(SUM(duration_minutes),0) FROM time_entries`
	var (
		clauses []string
		args    []any
	)
	if dateFrom != "" {
		clauses = append(clauses, "started_at>=?")
		args = append(args, dateFrom)
	}
	if dateTo != "" {
		clauses = append(clauses, "started_at<=?")
		args = append(args, dateTo)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` GROUP BY module`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := map[string]int{}
	for rows.Next() {
		var module string
		var minutes int
		if err := rows.Scan(&module, &minutes); err != nil {
			return nil, err
		}
		totals[module] = minutes
	}
	return totals, rows.Err()
}
