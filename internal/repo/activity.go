package repo

import (
	"context"
	"database/sql"
	"strings"

	"exitframe/internal/domain"
)

func (r Repo) InsertActivityEntry(ctx context.Context, e domain.ActivityEntry) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO activity_entries(id,domain,domain_ref_id,module,activity_type,title,description,ref_type,ref_id,created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.Domain, nullableStringPtr(e.DomainRefID), e.Module, e.ActivityType, e.Title,
		nullableStringPtr(e.Description), nullableStringPtr(e.RefType), nullableStringPtr(e.RefID), e.CreatedAt)
	return err
}

type ActivityFilters struct {
	Domain string
	Module string
	Limit  int
}

func (r Repo) ListActivity(ctx context.Context, f ActivityFilters) ([]domain.ActivityEntry, error) {
	query := `SELECT id,domain,domain_ref_id,module,activity_type,title,description,ref_type,ref_id,created_at FROM activity_entries`
	var (
		clauses []string
		args    []any
	)
	if f.Domain != "" {
		clauses = append(clauses, "domain=?")
		args = append(args, f.Domain)
	}
	if f.Module != "" {
		clauses = append(clauses, "module=?")
		args = append(args, f.Module)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		var domainRef, desc, refType, refID sql.NullString
		if err := rows.Scan(&e.ID, &e.Domain, &domainRef, &e.Module, &e.ActivityType, &e.Title, &desc, &refType, &refID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if domainRef.Valid {
			e.DomainRefID = &domainRef.String
		}
		if desc.Valid {
			e.Description = &desc.String
		}
		if refType.Valid {
			e.RefType = &refType.String
		}
		if refID.Valid {
			e.RefID = &refID.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
