package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"exitframe/internal/domain"
)

const taskColumns = `id,title,project_id,status,priority,sort_order,due_date,created_at,updated_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var projectID, dueDate sql.NullString
	err := scan(&t.ID, &t.Title, &projectID, &t.Status, &t.Priority, &t.SortOrder, &dueDate, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if projectID.Valid {
		t.ProjectID = &projectID.String
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.String
	}
	return t, err
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO tasks(id,title,project_id,status,priority,sort_order,due_date,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, nullableStringPtr(t.ProjectID), t.Status, t.Priority, t.SortOrder, nullableStringPtr(t.DueDate), t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

type TaskFilters struct {
	Status    string
	ProjectID string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var (
		clauses []string
		args    []any
	)
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY sort_order ASC, created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

type TaskUpdate struct {
	Title     *string
	ProjectID *string
	Status    *string
	Priority  *string
	SortOrder *int
	DueDate   *string
}

func (r Repo) UpdateTask(ctx context.Context, id string, u TaskUpdate, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if u.Title != nil {
		fields = append(fields, "title=?")
		args = append(args, *u.Title)
	}
	if u.ProjectID != nil {
		fields = append(fields, "project_id=?")
		args = append(args, nullable(*u.ProjectID))
	}
	if u.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, *u.Status)
	}
	if u.Priority != nil {
		fields = append(fields, "priority=?")
		args = append(args, *u.Priority)
	}
	if u.SortOrder != nil {
		fields = append(fields, "sort_order=?")
		args = append(args, *u.SortOrder)
	}
	if u.DueDate != nil {
		fields = append(fields, "due_date=?")
		args = append(args, nullable(*u.DueDate))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE tasks SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReorderTaskTx moves one task inside an enclosing reorder transaction.
func (r Repo) ReorderTaskTx(ctx context.Context, tx *sql.Tx, id string, sortOrder int, status *string, updatedAt string) error {
	query := `UPDATE tasks SET sort_order=?, updated_at=? WHERE id=?`
	args := []any{sortOrder, updatedAt, id}
	if status != nil {
		query = `UPDATE tasks SET sort_order=?, status=?, updated_at=? WHERE id=?`
		args = []any{sortOrder, *status, updatedAt, id}
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r Repo) DeleteTask(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) queryTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// DueTasks returns open tasks due inside [from, to], soonest first.
func (r Repo) DueTasks(ctx context.Context, from, to string, limit int) ([]domain.Task, error) {
	return r.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE due_date IS NOT NULL AND due_date>=? AND due_date<=? AND status<>'done' ORDER BY due_date ASC LIMIT ?`,
		from, to, limit)
}

// OverdueTasks returns open tasks whose due date passed before the given day.
func (r Repo) OverdueTasks(ctx context.Context, before string, limit int) ([]domain.Task, error) {
	return r.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE due_date IS NOT NULL AND due_date<? AND status<>'done' ORDER BY due_date ASC LIMIT ?`,
		before, limit)
}

func (r Repo) CountTasksByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
