package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"exitframe/internal/domain"
)

func marshalSteps(steps []domain.Step) (string, error) {
	if steps == nil {
		steps = []domain.Step{}
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("marshal steps: %w", err)
	}
	return string(data), nil
}

func scanTemplate(scan func(dest ...any) error) (domain.OnboardingTemplate, error) {
	var t domain.OnboardingTemplate
	var desc sql.NullString
	var stepsJSON string
	var isDefault int
	err := scan(&t.ID, &t.Name, &desc, &stepsJSON, &isDefault, &t.RunCount, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	t.IsDefault = isDefault != 0
	if err := json.Unmarshal([]byte(stepsJSON), &t.Steps); err != nil {
		return t, fmt.Errorf("decode template steps: %w", err)
	}
	return t, nil
}

const templateColumns = `t.id,t.name,t.description,t.steps_json,t.is_default,
(SELECT COUNT(*) FROM onboarding_runs r WHERE r.template_id=t.id) AS run_count,
t.created_at,t.updated_at`

// InsertTemplate creates a template. When the template is marked default the
// flag is cleared on every other template in the same transaction.
func (r Repo) InsertTemplate(ctx context.Context, t domain.OnboardingTemplate) error {
	stepsJSON, err := marshalSteps(t.Steps)
	if err != nil {
		return err
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if t.IsDefault {
		if _, err := tx.ExecContext(ctx, `UPDATE onboarding_templates SET is_default=0 WHERE is_default=1`); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO onboarding_templates(id,name,description,steps_json,is_default,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		t.ID, t.Name, nullableStringPtr(t.Description), stepsJSON, boolInt(t.IsDefault), t.CreatedAt, t.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) GetTemplate(ctx context.Context, id string) (domain.OnboardingTemplate, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM onboarding_templates t WHERE t.id=?`, id)
	return scanTemplate(row.Scan)
}

func (r Repo) ListTemplates(ctx context.Context) ([]domain.OnboardingTemplate, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+templateColumns+` FROM onboarding_templates t ORDER BY t.is_default DESC, t.name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.OnboardingTemplate
	for rows.Next() {
		t, err := scanTemplate(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

type TemplateUpdate struct {
	Name        *string
	Description *string
	Steps       []domain.Step
	StepsSet    bool
	IsDefault   *bool
}

// UpdateTemplate applies a partial update; promoting a template to default
// demotes all others atomically.
func (r Repo) UpdateTemplate(ctx context.Context, id string, u TemplateUpdate, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if u.Name != nil {
		fields = append(fields, "name=?")
		args = append(args, *u.Name)
	}
	if u.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*u.Description))
	}
	if u.StepsSet {
		stepsJSON, err := marshalSteps(u.Steps)
		if err != nil {
			return err
		}
		fields = append(fields, "steps_json=?")
		args = append(args, stepsJSON)
	}
	if u.IsDefault != nil {
		fields = append(fields, "is_default=?")
		args = append(args, boolInt(*u.IsDefault))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if u.IsDefault != nil && *u.IsDefault {
		if _, err := tx.ExecContext(ctx, `UPDATE onboarding_templates SET is_default=0 WHERE is_default=1 AND id<>?`, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE onboarding_templates SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// DeleteTemplate refuses to delete a template with dependent runs.
func (r Repo) DeleteTemplate(ctx context.Context, id string) error {
	var runs int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM onboarding_runs WHERE template_id=?`, id).Scan(&runs); err != nil {
		return err
	}
	if runs > 0 {
		return fmt.Errorf("template has %d dependent run(s); delete refused", runs)
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM onboarding_templates WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRun(scan func(dest ...any) error) (domain.OnboardingRun, error) {
	var run domain.OnboardingRun
	var completedAt sql.NullString
	var resultsJSON string
	err := scan(&run.ID, &run.TemplateID, &run.ClientID, &run.Status, &resultsJSON, &run.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return run, ErrNotFound
	}
	if err != nil {
		return run, err
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.String
	}
	if err := json.Unmarshal([]byte(resultsJSON), &run.Results); err != nil {
		return run, fmt.Errorf("decode run results: %w", err)
	}
	return run, nil
}

func (r Repo) InsertRun(ctx context.Context, run domain.OnboardingRun) error {
	results := run.Results
	if results == nil {
		results = []domain.StepResult{}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal run results: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO onboarding_runs(id,template_id,client_id,status,results_json,started_at,completed_at) VALUES (?,?,?,?,?,?,?)`,
		run.ID, run.TemplateID, run.ClientID, run.Status, string(resultsJSON), run.StartedAt, nullableStringPtr(run.CompletedAt))
	return err
}

func (r Repo) GetRun(ctx context.Context, id string) (domain.OnboardingRun, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,template_id,client_id,status,results_json,started_at,completed_at FROM onboarding_runs WHERE id=?`, id)
	return scanRun(row.Scan)
}

func (r Repo) ListRuns(ctx context.Context, clientID string) ([]domain.OnboardingRun, error) {
	query := `SELECT id,template_id,client_id,status,results_json,started_at,completed_at FROM onboarding_runs`
	var args []any
	if clientID != "" {
		query += ` WHERE client_id=?`
		args = append(args, clientID)
	}
	query += ` ORDER BY started_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.OnboardingRun
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, run)
	}
	return res, rows.Err()
}
