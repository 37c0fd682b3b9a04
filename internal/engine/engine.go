package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"exitframe/internal/activity"
	"exitframe/internal/domain"
	"exitframe/internal/repo"
)

// DefaultDomain tags entities created by this deployment's workflows.
const DefaultDomain = "mlc"

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Activity activity.Writer
	Now      func() time.Time
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Activity: activity.Writer{DB: db},
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// Timestamp returns the current time in the canonical storage format.
func (e Engine) Timestamp() string {
	return e.timestamp()
}

type ClientCreateOptions struct {
	Name    string
	Email   string
	Company string
	Status  string
	Notes   string
}

func (e Engine) CreateClient(ctx context.Context, opts ClientCreateOptions) (domain.Client, error) {
	if opts.Name == "" {
		return domain.Client{}, errors.New("name is required")
	}
	if opts.Status == "" {
		opts.Status = "active"
	}
	now := e.timestamp()
	c := domain.Client{
		ID:        uuid.NewString(),
		Name:      opts.Name,
		Status:    opts.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if opts.Email != "" {
		c.Email = &opts.Email
	}
	if opts.Company != "" {
		c.Company = &opts.Company
	}
	if opts.Notes != "" {
		c.Notes = &opts.Notes
	}
	if err := e.Repo.InsertClient(ctx, c); err != nil {
		return domain.Client{}, err
	}
	e.Activity.Log(ctx, activity.Entry{
		Domain:       DefaultDomain,
		DomainRefID:  c.ID,
		Module:       "clients",
		ActivityType: "created",
		Title:        fmt.Sprintf("Created client '%s'", c.Name),
		RefType:      "client",
		RefID:        c.ID,
	})
	return c, nil
}

// EnableClientService activates the (client, serviceType) pair, creating it
// when missing. Enabling an already-active service is a no-op, not an error.
func (e Engine) EnableClientService(ctx context.Context, clientID, serviceType string) (domain.ClientService, bool, error) {
	existing, err := e.Repo.GetClientService(ctx, clientID, serviceType)
	if err == nil {
		if !existing.IsActive {
			if err := e.Repo.SetClientServiceActive(ctx, existing.ID, true); err != nil {
				return domain.ClientService{}, false, err
			}
			existing.IsActive = true
		}
		return existing, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.ClientService{}, false, err
	}
	s := domain.ClientService{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		ServiceType: serviceType,
		IsActive:    true,
		CreatedAt:   e.timestamp(),
	}
	if err := e.Repo.InsertClientService(ctx, s); err != nil {
		return domain.ClientService{}, false, err
	}
	return s, true, nil
}

type ProjectCreateOptions struct {
	Name        string
	Domain      string
	DomainRefID string
	ProjectType string
	Status      string
	Priority    string
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if opts.Name == "" {
		return domain.Project{}, errors.New("name is required")
	}
	if opts.Domain == "" {
		opts.Domain = DefaultDomain
	}
	if opts.ProjectType == "" {
		opts.ProjectType = "general"
	}
	if opts.Status == "" {
		opts.Status = "active"
	}
	if opts.Priority == "" {
		opts.Priority = "medium"
	}
	now := e.timestamp()
	p := domain.Project{
		ID:          uuid.NewString(),
		Name:        opts.Name,
		Domain:      opts.Domain,
		ProjectType: opts.ProjectType,
		Status:      opts.Status,
		Priority:    opts.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if opts.DomainRefID != "" {
		p.DomainRefID = &opts.DomainRefID
	}
	if err := e.Repo.InsertProject(ctx, p); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

type TaskCreateOptions struct {
	Title     string
	ProjectID string
	Status    string
	Priority  string
	SortOrder int
	DueDate   string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	if opts.Status == "" {
		opts.Status = "todo"
	}
	if opts.Priority == "" {
		opts.Priority = "medium"
	}
	if opts.ProjectID != "" {
		if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
			return domain.Task{}, err
		}
	}
	now := e.timestamp()
	t := domain.Task{
		ID:        uuid.NewString(),
		Title:     opts.Title,
		Status:    opts.Status,
		Priority:  opts.Priority,
		SortOrder: opts.SortOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if opts.ProjectID != "" {
		t.ProjectID = &opts.ProjectID
	}
	if opts.DueDate != "" {
		t.DueDate = &opts.DueDate
	}
	if err := e.Repo.InsertTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

type TaskReorder struct {
	ID        string
	SortOrder int
	Status    *string
}

// ReorderTasks applies a batch of position updates atomically: all rows move
// together or none do.
func (e Engine) ReorderTasks(ctx context.Context, moves []TaskReorder) (int, error) {
	if len(moves) == 0 {
		return 0, errors.New("tasks are required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	now := e.timestamp()
	for _, m := range moves {
		if err := e.Repo.ReorderTaskTx(ctx, tx, m.ID, m.SortOrder, m.Status, now); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(moves), nil
}

type NoteImport struct {
	Title    string
	Content  string
	ClientID string
}

// ImportNotes inserts a batch of notes in one transaction.
func (e Engine) ImportNotes(ctx context.Context, notes []NoteImport) (int, error) {
	if len(notes) == 0 {
		return 0, errors.New("notes are required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	now := e.timestamp()
	for i, in := range notes {
		if in.Title == "" {
			return 0, fmt.Errorf("note %d: title is required", i)
		}
		n := domain.Note{
			ID:        uuid.NewString(),
			Title:     in.Title,
			Content:   in.Content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if in.ClientID != "" {
			n.ClientID = &in.ClientID
		}
		if err := e.Repo.InsertNoteTx(ctx, tx, n); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(notes), nil
}
