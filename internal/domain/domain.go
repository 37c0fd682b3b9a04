package domain

import "encoding/json"

type Client struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     *string `json:"email,omitempty"`
	Company   *string `json:"company,omitempty"`
	Status    string  `json:"status" enum:"active,paused,archived"`
	Notes     *string `json:"notes,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

type ClientService struct {
	ID          string `json:"id"`
	ClientID    string `json:"client_id"`
	ServiceType string `json:"service_type"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status" enum:"active,archived"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type ProductModule struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Status    string `json:"status" enum:"planned,building,live"`
	SortOrder int    `json:"sort_order"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Domain      string  `json:"domain"`
	DomainRefID *string `json:"domain_ref_id,omitempty"`
	ProjectType string  `json:"project_type"`
	Status      string  `json:"status" enum:"active,paused,completed,archived"`
	Priority    string  `json:"priority" enum:"low,medium,high"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type ProjectPhase struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Status    string `json:"status" enum:"pending,in_progress,done"`
	SortOrder int    `json:"sort_order"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Task struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	ProjectID *string `json:"project_id,omitempty"`
	Status    string  `json:"status" enum:"todo,in_progress,done"`
	Priority  string  `json:"priority" enum:"low,medium,high"`
	SortOrder int     `json:"sort_order"`
	DueDate   *string `json:"due_date,omitempty" format:"date-time"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

type Note struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	ClientID  *string `json:"client_id,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

type NoteAction struct {
	ID          string `json:"id"`
	NoteID      string `json:"note_id"`
	Description string `json:"description"`
	Status      string `json:"status" enum:"pending,executed,dismissed"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type TimeEntry struct {
	ID                  string  `json:"id"`
	Domain              string  `json:"domain"`
	Module              string  `json:"module"`
	ClientID            *string `json:"client_id,omitempty"`
	ProjectID           *string `json:"project_id,omitempty"`
	ActivityDescription string  `json:"activity_description,omitempty"`
	StartedAt           string  `json:"started_at" format:"date-time"`
	EndedAt             *string `json:"ended_at,omitempty" format:"date-time"`
	DurationMinutes     int     `json:"duration_minutes"`
	Source              string  `json:"source" enum:"auto,manual"`
}

type ActivityEntry struct {
	ID           string  `json:"id"`
	Domain       string  `json:"domain"`
	DomainRefID  *string `json:"domain_ref_id,omitempty"`
	Module       string  `json:"module"`
	ActivityType string  `json:"activity_type"`
	Title        string  `json:"title"`
	Description  *string `json:"description,omitempty"`
	RefType      *string `json:"ref_type,omitempty"`
	RefID        *string `json:"ref_id,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

// Step is one unit of an onboarding template. Config stays raw JSON until the
// executor decodes it into the per-action struct.
type Step struct {
	ActionType string          `json:"action_type" enum:"enable_service,create_project,create_tasks,send_welcome_email,other"`
	Label      string          `json:"label"`
	Config     json.RawMessage `json:"config,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type OnboardingTemplate struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Steps       []Step  `json:"steps"`
	IsDefault   bool    `json:"is_default"`
	RunCount    int     `json:"run_count"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type StepResult struct {
	StepIndex  int    `json:"step_index"`
	Label      string `json:"label"`
	ActionType string `json:"action_type"`
	Status     string `json:"status" enum:"success,failed,manual"`
	Message    string `json:"message"`
	CreatedID  string `json:"created_id,omitempty"`
}

type OnboardingRun struct {
	ID          string       `json:"id"`
	TemplateID  string       `json:"template_id"`
	ClientID    string       `json:"client_id"`
	Status      string       `json:"status" enum:"in_progress,completed,failed"`
	Results     []StepResult `json:"results"`
	StartedAt   string       `json:"started_at" format:"date-time"`
	CompletedAt *string      `json:"completed_at,omitempty" format:"date-time"`
}
