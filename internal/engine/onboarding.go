package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"exitframe/internal/activity"
	"exitframe/internal/domain"
	"exitframe/internal/repo"
)

// Step result statuses.
const (
	StepSuccess = "success"
	StepFailed  = "failed"
	StepManual  = "manual"
)

type TemplateCreateOptions struct {
	Name        string
	Description string
	Steps       []domain.Step
	IsDefault   bool
}

func (e Engine) CreateTemplate(ctx context.Context, opts TemplateCreateOptions) (domain.OnboardingTemplate, error) {
	if opts.Name == "" {
		return domain.OnboardingTemplate{}, errors.New("template name is required")
	}
	if err := ValidateSteps(opts.Steps); err != nil {
		return domain.OnboardingTemplate{}, err
	}
	now := e.timestamp()
	t := domain.OnboardingTemplate{
		ID:        uuid.NewString(),
		Name:      opts.Name,
		Steps:     opts.Steps,
		IsDefault: opts.IsDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if opts.Description != "" {
		t.Description = &opts.Description
	}
	if err := e.Repo.InsertTemplate(ctx, t); err != nil {
		return domain.OnboardingTemplate{}, err
	}
	return t, nil
}

type TemplateUpdateOptions struct {
	Name        *string
	Description *string
	Steps       []domain.Step
	StepsSet    bool
	IsDefault   *bool
}

func (e Engine) UpdateTemplate(ctx context.Context, id string, opts TemplateUpdateOptions) (domain.OnboardingTemplate, error) {
	if opts.StepsSet {
		if err := ValidateSteps(opts.Steps); err != nil {
			return domain.OnboardingTemplate{}, err
		}
	}
	u := repo.TemplateUpdate{
		Name:        opts.Name,
		Description: opts.Description,
		Steps:       opts.Steps,
		StepsSet:    opts.StepsSet,
		IsDefault:   opts.IsDefault,
	}
	if err := e.Repo.UpdateTemplate(ctx, id, u, e.timestamp()); err != nil {
		return domain.OnboardingTemplate{}, err
	}
	return e.Repo.GetTemplate(ctx, id)
}

// RunOnboarding executes the template's steps against the client, in order,
// one at a time. Each step is isolated: a failing step is recorded and the
// run moves on. Side effects of earlier steps are never rolled back; steps
// are designed to be idempotent and safe to re-run.
func (e Engine) RunOnboarding(ctx context.Context, templateID, clientID string) (domain.OnboardingRun, error) {
	template, err := e.Repo.GetTemplate(ctx, templateID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.OnboardingRun{}, fmt.Errorf("template: %w", repo.ErrNotFound)
		}
		return domain.OnboardingRun{}, err
	}
	client, err := e.Repo.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.OnboardingRun{}, fmt.Errorf("client: %w", repo.ErrNotFound)
		}
		return domain.OnboardingRun{}, err
	}

	startedAt := e.timestamp()
	results := make([]domain.StepResult, 0, len(template.Steps))
	for i, step := range template.Steps {
		res := e.executeStep(ctx, step, i, client)
		results = append(results, res)
	}

	status := "completed"
	for _, r := range results {
		if r.Status == StepFailed {
			status = "failed"
			break
		}
	}
	completedAt := e.timestamp()
	run := domain.OnboardingRun{
		ID:          uuid.NewString(),
		TemplateID:  templateID,
		ClientID:    clientID,
		Status:      status,
		Results:     results,
		StartedAt:   startedAt,
		CompletedAt: &completedAt,
	}
	if err := e.Repo.InsertRun(ctx, run); err != nil {
		return domain.OnboardingRun{}, err
	}

	e.Activity.Log(ctx, activity.Entry{
		Domain:       DefaultDomain,
		DomainRefID:  clientID,
		Module:       "onboarding",
		ActivityType: "completed",
		Title:        fmt.Sprintf("Ran onboarding '%s' for client '%s'", template.Name, client.Name),
		RefType:      "client",
		RefID:        clientID,
	})
	return run, nil
}

// executeStep never lets a step error escape: failures become a failed
// StepResult so the run continues.
func (e Engine) executeStep(ctx context.Context, step domain.Step, index int, client domain.Client) (result domain.StepResult) {
	result = domain.StepResult{
		StepIndex:  index,
		Label:      step.Label,
		ActionType: step.ActionType,
	}
	defer func() {
		if r := recover(); r != nil {
			result.Status = StepFailed
			result.Message = fmt.Sprintf("Failed: %v", r)
		}
	}()

	var err error
	switch step.ActionType {
	case ActionEnableService:
		err = e.stepEnableService(ctx, step, client, &result)
	case ActionCreateProject:
		err = e.stepCreateProject(ctx, step, client, &result)
	case ActionCreateTasks:
		err = e.stepCreateTasks(ctx, step, client, &result)
	case ActionSendWelcomeEmail:
		result.Status = StepManual
		result.Message = "Welcome email step logged as manual to-do (email integration comes later)"
	default:
		result.Status = StepManual
		result.Message = fmt.Sprintf("Manual step: %s", step.Label)
	}
	if err != nil {
		result.Status = StepFailed
		result.Message = fmt.Sprintf("Failed: %v", err)
	}
	return result
}

func (e Engine) stepEnableService(ctx context.Context, step domain.Step, client domain.Client, result *domain.StepResult) error {
	var cfg EnableServiceConfig
	if err := decodeStepConfig(step, &cfg); err != nil {
		return err
	}
	if cfg.ServiceType == "" {
		cfg.ServiceType = "notes"
	}
	service, created, err := e.EnableClientService(ctx, client.ID, cfg.ServiceType)
	if err != nil {
		return err
	}
	result.Status = StepSuccess
	result.CreatedID = service.ID
	if created {
		result.Message = fmt.Sprintf("Enabled service '%s'", cfg.ServiceType)
	} else {
		result.Message = fmt.Sprintf("Service '%s' already exists, ensured active", cfg.ServiceType)
	}
	return nil
}

func (e Engine) stepCreateProject(ctx context.Context, step domain.Step, client domain.Client, result *domain.StepResult) error {
	var cfg CreateProjectConfig
	if err := decodeStepConfig(step, &cfg); err != nil {
		return err
	}
	name := cfg.ProjectName
	if name == "" {
		name = client.Name + " - New Project"
	}
	project, err := e.CreateProject(ctx, ProjectCreateOptions{
		Name:        name,
		Domain:      DefaultDomain,
		DomainRefID: client.ID,
		ProjectType: cfg.ProjectType,
	})
	if err != nil {
		return err
	}
	e.Activity.Log(ctx, activity.Entry{
		Domain:       DefaultDomain,
		DomainRefID:  client.ID,
		Module:       "projects",
		ActivityType: "created",
		Title:        fmt.Sprintf("Created project '%s' via onboarding", name),
		RefType:      "project",
		RefID:        project.ID,
	})
	result.Status = StepSuccess
	result.Message = fmt.Sprintf("Created project '%s'", name)
	result.CreatedID = project.ID
	return nil
}

func (e Engine) stepCreateTasks(ctx context.Context, step domain.Step, client domain.Client, result *domain.StepResult) error {
	var cfg CreateTasksConfig
	if err := decodeStepConfig(step, &cfg); err != nil {
		return err
	}
	if len(cfg.Tasks) == 0 {
		result.Status = StepSuccess
		result.Message = "No tasks configured, skipped"
		return nil
	}
	// Best-effort project link: tasks stay unlinked when no name matches.
	projectID := ""
	if cfg.ProjectName != "" {
		if p, err := e.Repo.FindProjectByName(ctx, client.ID, cfg.ProjectName); err == nil {
			projectID = p.ID
		}
	}
	for _, spec := range cfg.Tasks {
		if _, err := e.CreateTask(ctx, TaskCreateOptions{
			Title:     spec.Title,
			ProjectID: projectID,
			Status:    "todo",
			Priority:  spec.Priority,
		}); err != nil {
			return err
		}
	}
	result.Status = StepSuccess
	result.Message = fmt.Sprintf("Created %d task(s)", len(cfg.Tasks))
	return nil
}
