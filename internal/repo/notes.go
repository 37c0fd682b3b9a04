package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"exitframe/internal/domain"
)

func scanNote(scan func(dest ...any) error) (domain.Note, error) {
	var n domain.Note
	var clientID sql.NullString
	err := scan(&n.ID, &n.Title, &n.Content, &clientID, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	if clientID.Valid {
		n.ClientID = &clientID.String
	}
	return n, err
}

func (r Repo) InsertNote(ctx context.Context, n domain.Note) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO notes(id,title,content,client_id,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		n.ID, n.Title, n.Content, nullableStringPtr(n.ClientID), n.CreatedAt, n.UpdatedAt)
	return err
}

// InsertNoteTx inserts a note inside a bulk-import transaction.
func (r Repo) InsertNoteTx(ctx context.Context, tx *sql.Tx, n domain.Note) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO notes(id,title,content,client_id,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		n.ID, n.Title, n.Content, nullableStringPtr(n.ClientID), n.CreatedAt, n.UpdatedAt)
	return err
}

func (r Repo) GetNote(ctx context.Context, id string) (domain.Note, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,title,content,client_id,created_at,updated_at FROM notes WHERE id=?`, id)
	return scanNote(row.Scan)
}

func (r Repo) ListNotes(ctx context.Context, clientID string) ([]domain.Note, error) {
	query := `SELECT id,title,content,client_id,created_at,updated_at FROM notes`
	var args []any
	if clientID != "" {
		query += ` WHERE client_id=?`
		args = append(args, clientID)
	}
	query += ` ORDER BY updated_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Note
	for rows.Next() {
		n, err := scanNote(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) UpdateNote(ctx context.Context, id string, title, content, clientID *string, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if title != nil {
		fields = append(fields, "title=?")
		args = append(args, *title)
	}
	if content != nil {
		fields = append(fields, "content=?")
		args = append(args, *content)
	}
	if clientID != nil {
		fields = append(fields, "client_id=?")
		args = append(args, nullable(*clientID))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE notes SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteNote(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM notes WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Note actions

func (r Repo) InsertNoteAction(ctx context.Context, a domain.NoteAction) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO note_actions(id,note_id,description,status,created_at) VALUES (?,?,?,?,?)`,
		a.ID, a.NoteID, a.Description, a.Status, a.CreatedAt)
	return err
}

func (r Repo) GetNoteAction(ctx context.Context, id string) (domain.NoteAction, error) {
	var a domain.NoteAction
	err := r.DB.QueryRowContext(ctx, `SELECT id,note_id,description,status,created_at FROM note_actions WHERE id=?`, id).
		Scan(&a.ID, &a.NoteID, &a.Description, &a.Status, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) ListNoteActions(ctx context.Context, noteID, status string) ([]domain.NoteAction, error) {
	query := `SELECT id,note_id,description,status,created_at FROM note_actions`
	var (
		clauses []string
		args    []any
	)
	if noteID != "" {
		clauses = append(clauses, "note_id=?")
		args = append(args, noteID)
	}
	if status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, status)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.NoteAction
	for rows.Next() {
		var a domain.NoteAction
		if err := rows.Scan(&a.ID, &a.NoteID, &a.Description, &a.Status, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) SetNoteActionStatus(ctx context.Context, id, status string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE note_actions SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
