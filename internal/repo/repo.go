package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"exitframe/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

const clientColumns = `id,name,email,company,status,COALESCE(notes,'') AS notes,created_at,updated_at`

func scanClient(scan func(dest ...any) error) (domain.Client, error) {
	var c domain.Client
	var email, company sql.NullString
	var notes string
	err := scan(&c.ID, &c.Name, &email, &company, &c.Status, &notes, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if email.Valid {
		c.Email = &email.String
	}
	if company.Valid {
		c.Company = &company.String
	}
	if notes != "" {
		c.Notes = &notes
	}
	return c, nil
}

func (r Repo) InsertClient(ctx context.Context, c domain.Client) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO clients(id,name,email,company,status,notes,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		c.ID, c.Name, nullableStringPtr(c.Email), nullableStringPtr(c.Company), c.Status, nullableStringPtr(c.Notes), c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetClient(ctx context.Context, id string) (domain.Client, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=?`, id)
	return scanClient(row.Scan)
}

func (r Repo) ListClients(ctx context.Context, status string) ([]domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY name ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Client
	for rows.Next() {
		c, err := scanClient(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

type ClientUpdate struct {
	Name    *string
	Email   *string
	Company *string
	Status  *string
	Notes   *string
}

func (r Repo) UpdateClient(ctx context.Context, id string, u ClientUpdate, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if u.Name != nil {
		fields = append(fields, "name=?")
		args = append(args, *u.Name)
	}
	if u.Email != nil {
		fields = append(fields, "email=?")
		args = append(args, nullable(*u.Email))
	}
	if u.Company != nil {
		fields = append(fields, "company=?")
		args = append(args, nullable(*u.Company))
	}
	if u.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, *u.Status)
	}
	if u.Notes != nil {
		fields = append(fields, "notes=?")
		args = append(args, nullable(*u.Notes))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE clients SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteClient(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM clients WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountClients(ctx context.Context, status string) (int, error) {
	query := `SELECT COUNT(*) FROM clients`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	var n int
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// Client services

func scanClientService(scan func(dest ...any) error) (domain.ClientService, error) {
	var s domain.ClientService
	var active int
	err := scan(&s.ID, &s.ClientID, &s.ServiceType, &active, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	s.IsActive = active != 0
	return s, err
}

func (r Repo) GetClientService(ctx context.Context, clientID, serviceType string) (domain.ClientService, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,client_id,service_type,is_active,created_at FROM client_services WHERE client_id=? AND service_type=?`, clientID, serviceType)
	return scanClientService(row.Scan)
}

func (r Repo) InsertClientService(ctx context.Context, s domain.ClientService) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO client_services(id,client_id,service_type,is_active,created_at) VALUES (?,?,?,?,?)`,
		s.ID, s.ClientID, s.ServiceType, boolInt(s.IsActive), s.CreatedAt)
	return err
}

func (r Repo) SetClientServiceActive(ctx context.Context, id string, active bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE client_services SET is_active=? WHERE id=?`, boolInt(active), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListClientServices(ctx context.Context, clientID string) ([]domain.ClientService, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,client_id,service_type,is_active,created_at FROM client_services WHERE client_id=? ORDER BY service_type ASC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ClientService
	for rows.Next() {
		s, err := scanClientService(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) DeleteClientService(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM client_services WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type TableCount struct {
	Table string `json:"table"`
	Count int    `json:"count"`
}

// entityTables is the fixed list reported by diagnostics; counting arbitrary
// table names would mean interpolating identifiers into SQL.
var entityTables = []string{
	"clients", "client_services", "products", "product_modules",
	"projects", "project_phases", "tasks", "notes", "note_actions",
	"onboarding_templates", "onboarding_runs", "time_entries", "activity_entries",
}

// TableCounts reports per-table row counts. A table that cannot be counted
// reports -1 rather than failing the whole diagnostic.
func (r Repo) TableCounts(ctx context.Context) []TableCount {
	counts := make([]TableCount, 0, len(entityTables))
	for _, table := range entityTables {
		var n int
		if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			n = -1
		}
		counts = append(counts, TableCount{Table: table, Count: n})
	}
	return counts
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
