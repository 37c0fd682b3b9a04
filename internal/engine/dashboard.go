package engine

import (
	"context"
	"math"
	"time"

	"exitframe/internal/domain"
	"exitframe/internal/repo"
)

const widgetLimit = 10

type TaskList struct {
	Count int           `json:"count"`
	Items []domain.Task `json:"items"`
}

type ProjectList struct {
	Count int              `json:"count"`
	Items []domain.Project `json:"items"`
}

// DashboardWidgets is the day's working set: what is due, what slipped, what
// is in flight, and how much time the tracker has banked today.
type DashboardWidgets struct {
	TasksDueToday    TaskList               `json:"tasks_due_today"`
	OverdueTasks     TaskList               `json:"overdue_tasks"`
	ActiveProjects   ProjectList            `json:"active_projects"`
	RecentActivity   []domain.ActivityEntry `json:"recent_activity"`
	TimeTrackedToday int                    `json:"time_tracked_today"`
}

func (e Engine) DashboardWidgets(ctx context.Context) (DashboardWidgets, error) {
	now := e.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	dayEnd := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, time.UTC).Format(time.RFC3339)

	due, err := e.Repo.DueTasks(ctx, dayStart, dayEnd, widgetLimit)
	if err != nil {
		return DashboardWidgets{}, err
	}
	overdue, err := e.Repo.OverdueTasks(ctx, dayStart, widgetLimit)
	if err != nil {
		return DashboardWidgets{}, err
	}
	projects, err := e.Repo.ListProjects(ctx, repo.ProjectFilters{Status: "active"})
	if err != nil {
		return DashboardWidgets{}, err
	}
	if len(projects) > widgetLimit {
		projects = projects[:widgetLimit]
	}
	recent, err := e.Repo.ListActivity(ctx, repo.ActivityFilters{Limit: widgetLimit})
	if err != nil {
		return DashboardWidgets{}, err
	}
	entries, err := e.Repo.ListTimeEntries(ctx, repo.TimeEntryFilters{DateFrom: dayStart})
	if err != nil {
		return DashboardWidgets{}, err
	}
	total := 0
	for _, entry := range entries {
		total += trackedMinutes(entry, now)
	}

	return DashboardWidgets{
		TasksDueToday:    TaskList{Count: len(due), Items: due},
		OverdueTasks:     TaskList{Count: len(overdue), Items: overdue},
		ActiveProjects:   ProjectList{Count: len(projects), Items: projects},
		RecentActivity:   recent,
		TimeTrackedToday: total,
	}, nil
}

// trackedMinutes values an entry's recorded duration first, then its
// endpoints; an entry still open counts up to now.
func trackedMinutes(entry domain.TimeEntry, now time.Time) int {
	if entry.DurationMinutes > 0 {
		return entry.DurationMinutes
	}
	started, err := time.Parse(time.RFC3339, entry.StartedAt)
	if err != nil {
		return 0
	}
	end := now
	if entry.EndedAt != nil {
		parsed, err := time.Parse(time.RFC3339, *entry.EndedAt)
		if err != nil {
			return 0
		}
		end = parsed
	}
	return int(math.Round(end.Sub(started).Minutes()))
}
