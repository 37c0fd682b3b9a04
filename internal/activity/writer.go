// Package activity records domain events for the dashboard feed. Logging is
// strictly best-effort: Log never returns an error and never panics, so
// callers do not have to guard call sites.
package activity

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/google/uuid"

	"exitframe/internal/domain"
	"exitframe/internal/repo"
)

type Writer struct {
	DB     *sql.DB
	Logger *log.Logger
	Now    func() time.Time
}

type Entry struct {
	Domain       string
	DomainRefID  string
	Module       string
	ActivityType string
	Title        string
	Description  string
	RefType      string
	RefID        string
}

func (w Writer) logger() *log.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return log.Default()
}

// Log persists one activity entry. Failures are logged server-side and
// swallowed; the parent operation must not observe them.
func (w Writer) Log(ctx context.Context, e Entry) {
	defer func() {
		if r := recover(); r != nil {
			w.logger().Printf("activity log panic recovered: %v", r)
		}
	}()
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	entry := domain.ActivityEntry{
		ID:           uuid.NewString(),
		Domain:       e.Domain,
		Module:       e.Module,
		ActivityType: e.ActivityType,
		Title:        e.Title,
		CreatedAt:    now().UTC().Format(time.RFC3339),
	}
	if e.DomainRefID != "" {
		entry.DomainRefID = &e.DomainRefID
	}
	if e.Description != "" {
		entry.Description = &e.Description
	}
	if e.RefType != "" {
		entry.RefType = &e.RefType
	}
	if e.RefID != "" {
		entry.RefID = &e.RefID
	}
	r := repo.Repo{DB: w.DB}
	if err := r.InsertActivityEntry(ctx, entry); err != nil {
		w.logger().Printf("activity log failed (type=%s title=%q): %v", e.ActivityType, e.Title, err)
	}
}
