package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"exitframe/internal/activity"
	"exitframe/internal/db"
	"exitframe/internal/domain"
	"exitframe/internal/engine"
	"exitframe/internal/migrate"
	"exitframe/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Now    *time.Time
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	eng := engine.New(conn)
	eng.Now = func() time.Time { return now }
	eng.Activity.Now = eng.Now
	return testEnv{Engine: eng, Ctx: context.Background(), Now: &now}
}

func (env testEnv) mustClient(t *testing.T, name string) domain.Client {
	t.Helper()
	c, err := env.Engine.CreateClient(env.Ctx, engine.ClientCreateOptions{Name: name})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return c
}

func (env testEnv) mustTemplate(t *testing.T, name string, steps []domain.Step) domain.OnboardingTemplate {
	t.Helper()
	tpl, err := env.Engine.CreateTemplate(env.Ctx, engine.TemplateCreateOptions{Name: name, Steps: steps})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	return tpl
}

func TestRunOnboardingResultsMatchSteps(t *testing.T) {
	env := newTestEnv(t)
	client := env.mustClient(t, "Acme")
	tpl := env.mustTemplate(t, "Standard", []domain.Step{
		{ActionType: engine.ActionEnableService, Label: "Enable notes"},
		{ActionType: engine.ActionCreateProject, Label: "Kickoff project"},
		{ActionType: engine.ActionCreateTasks, Label: "Kickoff tasks"},
		{ActionType: engine.ActionSendWelcomeEmail, Label: "Welcome email"},
	})

	run, err := env.Engine.RunOnboarding(env.Ctx, tpl.ID, client.ID)
	if err != nil {
		t.Fatalf("run onboarding: %v", err)
	}
	if len(run.Results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(run.Results))
	}
	for i, res := range run.Results {
		if res.StepIndex != i {
			t.Errorf("result %d has step index %d", i, res.StepIndex)
		}
		if res.Label != tpl.Steps[i].Label {
			t.Errorf("result %d label %q, want %q", i, res.Label, tpl.Steps[i].Label)
		}
	}
	if run.Status != "completed" {
		t.Fatalf("status %q, want completed", run.Status)
	}
	if run.CompletedAt == nil {
		t.Fatal("completed_at not stamped")
	}
	for _, i := range []int{0, 1, 2} {
		if run.Results[i].Status != engine.StepSuccess {
			t.Errorf("step %d status %q, want success (%s)", i, run.Results[i].Status, run.Results[i].Message)
		}
	}
	if run.Results[3].Status != engine.StepManual {
		t.Errorf("welcome email status %q, want manual", run.Results[3].Status)
	}

	// create_project defaults
	p, err := env.Engine.Repo.FindProjectByName(env.Ctx, client.ID, "Acme - New Project")
	if err != nil {
		t.Fatalf("default project missing: %v", err)
	}
	if p.ProjectType != "general" || p.Status != "active" || p.Priority != "medium" {
		t.Errorf("unexpected project defaults: %+v", p)
	}
	// empty create_tasks is a success, not a failure
	if run.Results[2].Message != "No tasks configured, skipped" {
		t.Errorf("create_tasks message %q", run.Results[2].Message)
	}
}

func TestEnableServiceIdempotent(t *testing.T) {
	env := newTestEnv(t)
	client := env.mustClient(t, "Acme")
	tpl := env.mustTemplate(t, "Services", []domain.Step{
		{ActionType: engine.ActionEnableService, Label: "Enable notes", Config: json.RawMessage(`{"service_type":"notes"}`)},
	})

	for i := 0; i < 2; i++ {
		run, err := env.Engine.RunOnboarding(env.Ctx, tpl.ID, client.ID)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if run.Results[0].Status != engine.StepSuccess {
			t.Fatalf("run %d step status %q", i, run.Results[0].Status)
		}
	}
	services, err := env.Engine.Repo.ListClientServices(env.Ctx, client.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(services) != 1 {
		t.Fatalf("expected 1 service row after two runs, got %d", len(services))
	}
	if !services[0].IsActive {
		t.Fatal("service inactive")
	}
}

func TestRunContinuesAfterStepFailure(t *testing.T) {
	env := newTestEnv(t)
	client := env.mustClient(t, "Acme")
	tpl := env.mustTemplate(t, "Flaky", []domain.Step{
		{ActionType: engine.ActionCreateTasks, Label: "Bad tasks", Config: json.RawMessage(`{"tasks":[{"title":""}]}`)},
		{ActionType: engine.ActionEnableService, Label: "Enable notes"},
	})

	run, err := env.Engine.RunOnboarding(env.Ctx, tpl.ID, client.ID)
	if err != nil {
		t.Fatalf("run onboarding: %v", err)
	}
	if run.Results[0].Status != engine.StepFailed {
		t.Fatalf("first step status %q, want failed", run.Results[0].Status)
	}
	if run.Results[0].Message == "" {
		t.Fatal("failed step carries no message")
	}
	if run.Results[1].Status != engine.StepSuccess {
		t.Fatalf("second step status %q, want success", run.Results[1].Status)
	}
	if run.Status != "failed" {
		t.Fatalf("run status %q, want failed", run.Status)
	}
	if run.CompletedAt == nil {
		t.Fatal("failed run still needs completed_at")
	}
}

func TestRunOnboardingMissingRefs(t *testing.T) {
	env := newTestEnv(t)
	client := env.mustClient(t, "Acme")
	tpl := env.mustTemplate(t, "Standard", []domain.Step{
		{ActionType: engine.ActionOther, Label: "Manual check"},
	})

	if _, err := env.Engine.RunOnboarding(env.Ctx, "nope", client.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("missing template: %v", err)
	}
	if _, err := env.Engine.RunOnboarding(env.Ctx, tpl.ID, "nope"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("missing client: %v", err)
	}
	runs, err := env.Engine.Repo.ListRuns(env.Ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Fatalf("no run should persist, got %d", len(runs))
	}
}

func TestDefaultTemplateInvariant(t *testing.T) {
	env := newTestEnv(t)
	steps := []domain.Step{{ActionType: engine.ActionOther, Label: "Manual"}}
	t1, err := env.Engine.CreateTemplate(env.Ctx, engine.TemplateCreateOptions{Name: "A", Steps: steps, IsDefault: true})
	if err != nil {
		t.Fatal(err)
	}
	t2, err := env.Engine.CreateTemplate(env.Ctx, engine.TemplateCreateOptions{Name: "B", Steps: steps, IsDefault: true})
	if err != nil {
		t.Fatal(err)
	}

	countDefaults := func() (int, string) {
		t.Helper()
		items, err := env.Engine.Repo.ListTemplates(env.Ctx)
		if err != nil {
			t.Fatal(err)
		}
		n, id := 0, ""
		for _, item := range items {
			if item.IsDefault {
				n++
				id = item.ID
			}
		}
		return n, id
	}

	if n, id := countDefaults(); n != 1 || id != t2.ID {
		t.Fatalf("after second create: %d defaults, id %s", n, id)
	}

	yes := true
	if _, err := env.Engine.UpdateTemplate(env.Ctx, t1.ID, engine.TemplateUpdateOptions{IsDefault: &yes}); err != nil {
		t.Fatal(err)
	}
	if n, id := countDefaults(); n != 1 || id != t1.ID {
		t.Fatalf("after promote: %d defaults, id %s", n, id)
	}
}

func TestDeleteTemplateBlockedByRuns(t *testing.T) {
	env := newTestEnv(t)
	client := env.mustClient(t, "Acme")
	tpl := env.mustTemplate(t, "Standard", []domain.Step{
		{ActionType: engine.ActionOther, Label: "Manual"},
	})
	if _, err := env.Engine.RunOnboarding(env.Ctx, tpl.ID, client.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.Repo.DeleteTemplate(env.Ctx, tpl.ID); err == nil {
		t.Fatal("delete should refuse while runs reference the template")
	}
	other := env.mustTemplate(t, "Unused", []domain.Step{
		{ActionType: engine.ActionOther, Label: "Manual"},
	})
	if err := env.Engine.Repo.DeleteTemplate(env.Ctx, other.ID); err != nil {
		t.Fatalf("delete unused template: %v", err)
	}
}

func TestHeartbeatCoalescesWithinWindow(t *testing.T) {
	env := newTestEnv(t)
	clientID := "c1"
	opts := engine.HeartbeatOptions{Module: "notes", ClientID: &clientID}

	action, id1, err := env.Engine.Heartbeat(env.Ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if action != engine.HeartbeatCreated {
		t.Fatalf("first pulse action %q", action)
	}

	*env.Now = env.Now.Add(30 * time.Second)
	action, id2, err := env.Engine.Heartbeat(env.Ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if action != engine.HeartbeatExtended || id2 != id1 {
		t.Fatalf("second pulse: action %q id %s (want extended %s)", action, id2, id1)
	}

	entries, err := env.Engine.Repo.ListTimeEntries(env.Ctx, repo.TimeEntryFilters{ClientID: clientID})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 coalesced entry, got %d", len(entries))
	}
	// 30 seconds rounds to 1 minute
	if entries[0].DurationMinutes != 1 {
		t.Fatalf("duration %d, want 1", entries[0].DurationMinutes)
	}
}

func TestHeartbeatStartsNewEntryAfterGap(t *testing.T) {
	env := newTestEnv(t)
	clientID := "c1"
	opts := engine.HeartbeatOptions{Module: "notes", ClientID: &clientID}

	if _, _, err := env.Engine.Heartbeat(env.Ctx, opts); err != nil {
		t.Fatal(err)
	}
	*env.Now = env.Now.Add(3 * time.Minute)
	action, _, err := env.Engine.Heartbeat(env.Ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if action != engine.HeartbeatCreated {
		t.Fatalf("action %q after 3m gap, want created", action)
	}
	entries, err := env.Engine.Repo.ListTimeEntries(env.Ctx, repo.TimeEntryFilters{ClientID: clientID})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestHeartbeatSeparatesContexts(t *testing.T) {
	env := newTestEnv(t)
	c1, c2 := "c1", "c2"
	if _, _, err := env.Engine.Heartbeat(env.Ctx, engine.HeartbeatOptions{Module: "notes", ClientID: &c1}); err != nil {
		t.Fatal(err)
	}
	*env.Now = env.Now.Add(10 * time.Second)
	action, _, err := env.Engine.Heartbeat(env.Ctx, engine.HeartbeatOptions{Module: "notes", ClientID: &c2})
	if err != nil {
		t.Fatal(err)
	}
	if action != engine.HeartbeatCreated {
		t.Fatalf("different client must start a new entry, got %q", action)
	}
}

func TestHeartbeatAcceptsUnknownContextIDs(t *testing.T) {
	env := newTestEnv(t)
	clientID := "no-such-client"
	projectID := "no-such-project"
	action, id, err := env.Engine.Heartbeat(env.Ctx, engine.HeartbeatOptions{
		Module:    "notes",
		ClientID:  &clientID,
		ProjectID: &projectID,
	})
	if err != nil {
		t.Fatalf("context ids are not references, heartbeat must accept them: %v", err)
	}
	if action != engine.HeartbeatCreated || id == "" {
		t.Fatalf("got action %q id %q", action, id)
	}
	entries, err := env.Engine.Repo.ListTimeEntries(env.Ctx, repo.TimeEntryFilters{ClientID: clientID})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ClientID == nil || *entries[0].ClientID != clientID {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestHeartbeatClosesStaleOpenEntries(t *testing.T) {
	env := newTestEnv(t)
	stale := domain.TimeEntry{
		ID:        "stale-1",
		Domain:    engine.DefaultDomain,
		Module:    "projects",
		StartedAt: env.Now.Add(-time.Hour).UTC().Format(time.RFC3339),
		Source:    "manual",
	}
	if err := env.Engine.Repo.InsertTimeEntry(env.Ctx, stale); err != nil {
		t.Fatal(err)
	}

	clientID := "c1"
	if _, _, err := env.Engine.Heartbeat(env.Ctx, engine.HeartbeatOptions{Module: "notes", ClientID: &clientID}); err != nil {
		t.Fatal(err)
	}
	entries, err := env.Engine.Repo.ListTimeEntries(env.Ctx, repo.TimeEntryFilters{})
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.EndedAt == nil {
			t.Fatalf("entry %s still open after heartbeat", e.ID)
		}
	}
}

func TestReorderTasksAtomic(t *testing.T) {
	env := newTestEnv(t)
	t1, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "one", SortOrder: 0})
	if err != nil {
		t.Fatal(err)
	}
	t2, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "two", SortOrder: 1})
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.Engine.ReorderTasks(env.Ctx, []engine.TaskReorder{
		{ID: t1.ID, SortOrder: 5},
		{ID: "missing", SortOrder: 6},
	})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	got, err := env.Engine.Repo.GetTask(env.Ctx, t1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SortOrder != 0 {
		t.Fatalf("partial reorder applied: sort order %d", got.SortOrder)
	}

	n, err := env.Engine.ReorderTasks(env.Ctx, []engine.TaskReorder{
		{ID: t1.ID, SortOrder: 1},
		{ID: t2.ID, SortOrder: 0},
	})
	if err != nil || n != 2 {
		t.Fatalf("reorder: n=%d err=%v", n, err)
	}
}

func TestImportNotesAtomic(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.ImportNotes(env.Ctx, []engine.NoteImport{
		{Title: "ok"},
		{Title: ""},
	})
	if err == nil {
		t.Fatal("expected error for untitled note")
	}
	notes, err := env.Engine.Repo.ListNotes(env.Ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 0 {
		t.Fatalf("partial import persisted %d note(s)", len(notes))
	}

	n, err := env.Engine.ImportNotes(env.Ctx, []engine.NoteImport{
		{Title: "a"}, {Title: "b"},
	})
	if err != nil || n != 2 {
		t.Fatalf("import: n=%d err=%v", n, err)
	}
}

func TestOnboardingWritesActivity(t *testing.T) {
	env := newTestEnv(t)
	client := env.mustClient(t, "Acme")
	tpl := env.mustTemplate(t, "Standard", []domain.Step{
		{ActionType: engine.ActionOther, Label: "Manual"},
	})
	if _, err := env.Engine.RunOnboarding(env.Ctx, tpl.ID, client.ID); err != nil {
		t.Fatal(err)
	}
	entries, err := env.Engine.Repo.ListActivity(env.Ctx, repo.ActivityFilters{Module: "onboarding"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("onboarding run left no activity entry")
	}
}

func TestDashboardWidgetsAggregates(t *testing.T) {
	env := newTestEnv(t)
	dueToday := env.Now.Format(time.RFC3339)
	pastDue := env.Now.AddDate(0, 0, -2).Format(time.RFC3339)

	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "ship report", DueDate: dueToday}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "late invoice", DueDate: pastDue}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "closed late", Status: "done", DueDate: pastDue}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Name: "Q3 site"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RecordTimeEntry(env.Ctx, engine.TimeEntryOptions{
		Module:    "notes",
		StartedAt: env.Now.Add(-time.Hour).Format(time.RFC3339),
		EndedAt:   env.Now.Format(time.RFC3339),
	}); err != nil {
		t.Fatal(err)
	}
	env.Engine.Activity.Log(env.Ctx, activity.Entry{
		Domain:       engine.DefaultDomain,
		Module:       "tasks",
		ActivityType: "created",
		Title:        "Created task 'ship report'",
	})

	w, err := env.Engine.DashboardWidgets(env.Ctx)
	if err != nil {
		t.Fatalf("widgets: %v", err)
	}
	if w.TasksDueToday.Count != 1 || w.TasksDueToday.Items[0].Title != "ship report" {
		t.Fatalf("due today: %+v", w.TasksDueToday)
	}
	if w.OverdueTasks.Count != 1 || w.OverdueTasks.Items[0].Title != "late invoice" {
		t.Fatalf("done tasks must not count as overdue: %+v", w.OverdueTasks)
	}
	if w.ActiveProjects.Count != 1 || w.ActiveProjects.Items[0].Name != "Q3 site" {
		t.Fatalf("active projects: %+v", w.ActiveProjects)
	}
	if w.TimeTrackedToday != 60 {
		t.Fatalf("time tracked today %d, want 60", w.TimeTrackedToday)
	}
	if len(w.RecentActivity) != 1 || w.RecentActivity[0].Module != "tasks" {
		t.Fatalf("recent activity: %+v", w.RecentActivity)
	}
}
