package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"exitframe/internal/domain"
)

func scanProduct(scan func(dest ...any) error) (domain.Product, error) {
	var p domain.Product
	var desc sql.NullString
	err := scan(&p.ID, &p.Name, &desc, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if desc.Valid {
		p.Description = &desc.String
	}
	return p, err
}

func (r Repo) InsertProduct(ctx context.Context, p domain.Product) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO products(id,name,description,status,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.Name, nullableStringPtr(p.Description), p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,name,description,status,created_at,updated_at FROM products WHERE id=?`, id)
	return scanProduct(row.Scan)
}

func (r Repo) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,description,status,created_at,updated_at FROM products ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProduct(ctx context.Context, id string, name, description, status *string, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*description))
	}
	if status != nil {
		fields = append(fields, "status=?")
		args = append(args, *status)
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE products SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProduct(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM products WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertProductModule(ctx context.Context, m domain.ProductModule) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO product_modules(id,product_id,name,status,sort_order,created_at) VALUES (?,?,?,?,?,?)`,
		m.ID, m.ProductID, m.Name, m.Status, m.SortOrder, m.CreatedAt)
	return err
}

func (r Repo) ListProductModules(ctx context.Context, productID string) ([]domain.ProductModule, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,product_id,name,status,sort_order,created_at FROM product_modules WHERE product_id=? ORDER BY sort_order ASC, name ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ProductModule
	for rows.Next() {
		var m domain.ProductModule
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Name, &m.Status, &m.SortOrder, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProductModule(ctx context.Context, id string, name, status *string, sortOrder *int) error {
	var (
		fields []string
		args   []any
	)
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if status != nil {
		fields = append(fields, "status=?")
		args = append(args, *status)
	}
	if sortOrder != nil {
		fields = append(fields, "sort_order=?")
		args = append(args, *sortOrder)
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE product_modules SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProductModule(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM product_modules WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Projects

const projectColumns = `id,name,domain,domain_ref_id,project_type,status,priority,created_at,updated_at`

func scanProject(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	var ref sql.NullString
	err := scan(&p.ID, &p.Name, &p.Domain, &ref, &p.ProjectType, &p.Status, &p.Priority, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if ref.Valid {
		p.DomainRefID = &ref.String
	}
	return p, err
}

func (r Repo) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO projects(id,name,domain,domain_ref_id,project_type,status,priority,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Domain, nullableStringPtr(p.DomainRefID), p.ProjectType, p.Status, p.Priority, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id)
	return scanProject(row.Scan)
}

// FindProjectByName returns the first project with the given name linked to
// the client, or ErrNotFound.
func (r Repo) FindProjectByName(ctx context.Context, clientID, name string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE domain_ref_id=? AND name=? LIMIT 1`, clientID, name)
	return scanProject(row.Scan)
}

type ProjectFilters struct {
	Status      string
	DomainRefID string
}

func (r Repo) ListProjects(ctx context.Context, f ProjectFilters) ([]domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	var (
		clauses []string
		args    []any
	)
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.DomainRefID != "" {
		clauses = append(clauses, "domain_ref_id=?")
		args = append(args, f.DomainRefID)
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
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

type ProjectUpdate struct {
	Name        *string
	ProjectType *string
	Status      *string
	Priority    *string
	DomainRefID *string
}

func (r Repo) UpdateProject(ctx context.Context, id string, u ProjectUpdate, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if u.Name != nil {
		fields = append(fields, "name=?")
		args = append(args, *u.Name)
	}
	if u.ProjectType != nil {
		fields = append(fields, "project_type=?")
		args = append(args, *u.ProjectType)
	}
	if u.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, *u.Status)
	}
	if u.Priority != nil {
		fields = append(fields, "priority=?")
		args = append(args, *u.Priority)
	}
	if u.DomainRefID != nil {
		fields = append(fields, "domain_ref_id=?")
		args = append(args, nullable(*u.DomainRefID))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE projects SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProject(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertProjectPhase(ctx context.Context, p domain.ProjectPhase) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO project_phases(id,project_id,name,status,sort_order,created_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.ProjectID, p.Name, p.Status, p.SortOrder, p.CreatedAt)
	return err
}

func (r Repo) ListProjectPhases(ctx context.Context, projectID string) ([]domain.ProjectPhase, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,name,status,sort_order,created_at FROM project_phases WHERE project_id=? ORDER BY sort_order ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ProjectPhase
	for rows.Next() {
		var p domain.ProjectPhase
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Name, &p.Status, &p.SortOrder, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProjectPhase(ctx context.Context, id string, name, status *string, sortOrder *int) error {
	var (
		fields []string
		args   []any
	)
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if status != nil {
		fields = append(fields, "status=?")
		args = append(args, *status)
	}
	if sortOrder != nil {
		fields = append(fields, "sort_order=?")
		args = append(args, *sortOrder)
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE project_phases SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProjectPhase(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM project_phases WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
