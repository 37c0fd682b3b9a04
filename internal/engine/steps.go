package engine

import (
	"encoding/json"
	"fmt"

	"exitframe/internal/domain"
)

// Step action types.
const (
	ActionEnableService    = "enable_service"
	ActionCreateProject    = "create_project"
	ActionCreateTasks      = "create_tasks"
	ActionSendWelcomeEmail = "send_welcome_email"
	ActionOther            = "other"
)

// Step configs are stored as an open JSON object and decoded into the
// per-action struct only here, at the executor boundary. Unknown keys are
// ignored; missing keys fall back to the action's defaults.

type EnableServiceConfig struct {
	ServiceType string `json:"service_type"`
}

type CreateProjectConfig struct {
	ProjectName string `json:"project_name"`
	ProjectType string `json:"project_type"`
}

type TaskSpec struct {
	Title    string `json:"title"`
	Priority string `json:"priority"`
}

type CreateTasksConfig struct {
	ProjectName string     `json:"project_name"`
	Tasks       []TaskSpec `json:"tasks"`
}

func decodeStepConfig(step domain.Step, out any) error {
	if len(step.Config) == 0 {
		return nil
	}
	if err := json.Unmarshal(step.Config, out); err != nil {
		return fmt.Errorf("invalid %s config: %w", step.ActionType, err)
	}
	return nil
}

// ValidateSteps checks a template's steps before persisting: every step needs
// a known action type, a label, and a decodable config.
func ValidateSteps(steps []domain.Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	for i, s := range steps {
		if s.Label == "" {
			return fmt.Errorf("step %d: label is required", i)
		}
		switch s.ActionType {
		case ActionEnableService:
			var cfg EnableServiceConfig
			if err := decodeStepConfig(s, &cfg); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		case ActionCreateProject:
			var cfg CreateProjectConfig
			if err := decodeStepConfig(s, &cfg); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		case ActionCreateTasks:
			var cfg CreateTasksConfig
			if err := decodeStepConfig(s, &cfg); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		case ActionSendWelcomeEmail, ActionOther:
			// no config shape to enforce
		default:
			return fmt.Errorf("step %d: unknown action type %q", i, s.ActionType)
		}
	}
	return nil
}
