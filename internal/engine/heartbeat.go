package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"exitframe/internal/domain"
	"exitframe/internal/repo"
)

// CoalesceWindow is how recently an entry must have ended for a new
// heartbeat in the same context to extend it instead of opening a new one.
const CoalesceWindow = 2 * time.Minute

// Heartbeat actions.
const (
	HeartbeatExtended = "extended"
	HeartbeatCreated  = "created"
)

type HeartbeatOptions struct {
	Module              string
	Domain              string
	ClientID            *string
	ProjectID           *string
	ActivityDescription string
}

type TimeEntryOptions struct {
	Domain              string
	Module              string
	ClientID            string
	ProjectID           string
	ActivityDescription string
	StartedAt           string
	EndedAt             string
	DurationMinutes     int
}

// RecordTimeEntry stores a manually captured entry. When the duration is
// omitted but both endpoints are present it is derived from them.
func (e Engine) RecordTimeEntry(ctx context.Context, opts TimeEntryOptions) (domain.TimeEntry, error) {
	if opts.Module == "" {
		return domain.TimeEntry{}, errors.New("module is required")
	}
	if opts.StartedAt == "" {
		return domain.TimeEntry{}, errors.New("started_at is required")
	}
	started, err := time.Parse(time.RFC3339, opts.StartedAt)
	if err != nil {
		return domain.TimeEntry{}, fmt.Errorf("invalid started_at: %w", err)
	}
	if opts.Domain == "" {
		opts.Domain = DefaultDomain
	}
	entry := domain.TimeEntry{
		ID:                  uuid.NewString(),
		Domain:              opts.Domain,
		Module:              opts.Module,
		ActivityDescription: opts.ActivityDescription,
		StartedAt:           opts.StartedAt,
		DurationMinutes:     opts.DurationMinutes,
		Source:              "manual",
	}
	if opts.ClientID != "" {
		entry.ClientID = &opts.ClientID
	}
	if opts.ProjectID != "" {
		entry.ProjectID = &opts.ProjectID
	}
	if opts.EndedAt != "" {
		ended, err := time.Parse(time.RFC3339, opts.EndedAt)
		if err != nil {
			return domain.TimeEntry{}, fmt.Errorf("invalid ended_at: %w", err)
		}
		entry.EndedAt = &opts.EndedAt
		if entry.DurationMinutes == 0 {
			entry.DurationMinutes = int(math.Round(ended.Sub(started).Minutes()))
		}
	}
	if err := e.Repo.InsertTimeEntry(ctx, entry); err != nil {
		return domain.TimeEntry{}, err
	}
	return entry, nil
}

// Heartbeat records a pulse of activity in a (module, client) context. A
// pulse close on the heels of the previous one in the same context extends
// that entry; otherwise every open entry is sealed and a fresh zero-length
// entry opens the new context. The whole decision runs in one transaction
// so concurrent pulses cannot both create.
func (e Engine) Heartbeat(ctx context.Context, opts HeartbeatOptions) (string, string, error) {
	if opts.Module == "" {
		return "", "", errors.New("module is required")
	}
	if opts.Domain == "" {
		opts.Domain = DefaultDomain
	}

	now := e.now().UTC()
	nowStr := now.Format(time.RFC3339)
	cutoff := now.Add(-CoalesceWindow).Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", "", err
	}
	defer tx.Rollback()

	recent, err := e.Repo.RecentEntryTx(ctx, tx, opts.Module, opts.ClientID, cutoff)
	if err == nil {
		started, perr := time.Parse(time.RFC3339, recent.StartedAt)
		if perr != nil {
			return "", "", fmt.Errorf("parse started_at: %w", perr)
		}
		minutes := int(math.Round(now.Sub(started).Minutes()))
		if err := e.Repo.ExtendEntryTx(ctx, tx, recent.ID, nowStr, minutes); err != nil {
			return "", "", err
		}
		if err := tx.Commit(); err != nil {
			return "", "", err
		}
		return HeartbeatExtended, recent.ID, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return "", "", err
	}

	if _, err := e.Repo.CloseOpenEntriesTx(ctx, tx, nowStr); err != nil {
		return "", "", err
	}
	entry := domain.TimeEntry{
		ID:                  uuid.NewString(),
		Domain:              opts.Domain,
		Module:              opts.Module,
		ClientID:            opts.ClientID,
		ProjectID:           opts.ProjectID,
		ActivityDescription: opts.ActivityDescription,
		StartedAt:           nowStr,
		EndedAt:             &nowStr,
		DurationMinutes:     0,
		Source:              "auto",
	}
	if err := e.Repo.InsertTimeEntryTx(ctx, tx, entry); err != nil {
		return "", "", err
	}
	if err := tx.Commit(); err != nil {
		return "", "", err
	}
	return HeartbeatCreated, entry.ID, nil
}
