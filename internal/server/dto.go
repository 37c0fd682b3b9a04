package server

import (
	"exitframe/internal/domain"
)

type CreateClientRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
	Status  string `json:"status,omitempty" enum:"active,paused,archived"`
	Notes   string `json:"notes,omitempty"`
}

type UpdateClientRequest struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Company *string `json:"company,omitempty"`
	Status  *string `json:"status,omitempty" enum:"active,paused,archived"`
	Notes   *string `json:"notes,omitempty"`
}

type CreateServiceRequest struct {
	ServiceType string `json:"service_type"`
}

type CreateProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty" enum:"active,archived"`
}

type UpdateProductRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"active,archived"`
}

type CreateModuleRequest struct {
	Name      string `json:"name"`
	Status    string `json:"status,omitempty" enum:"planned,building,live"`
	SortOrder int    `json:"sort_order,omitempty"`
}

type UpdateModuleRequest struct {
	Name      *string `json:"name,omitempty"`
	Status    *string `json:"status,omitempty" enum:"planned,building,live"`
	SortOrder *int    `json:"sort_order,omitempty"`
}

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Domain      string `json:"domain,omitempty"`
	DomainRefID string `json:"domain_ref_id,omitempty"`
	ProjectType string `json:"project_type,omitempty"`
	Status      string `json:"status,omitempty" enum:"active,paused,completed,archived"`
	Priority    string `json:"priority,omitempty" enum:"low,medium,high"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	DomainRefID *string `json:"domain_ref_id,omitempty"`
	ProjectType *string `json:"project_type,omitempty"`
	Status      *string `json:"status,omitempty" enum:"active,paused,completed,archived"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high"`
}

type CreatePhaseRequest struct {
	Name      string `json:"name"`
	Status    string `json:"status,omitempty" enum:"pending,in_progress,done"`
	SortOrder int    `json:"sort_order,omitempty"`
}

type UpdatePhaseRequest struct {
	Name      *string `json:"name,omitempty"`
	Status    *string `json:"status,omitempty" enum:"pending,in_progress,done"`
	SortOrder *int    `json:"sort_order,omitempty"`
}

type CreateTaskRequest struct {
	Title     string `json:"title"`
	ProjectID string `json:"project_id,omitempty"`
	Status    string `json:"status,omitempty" enum:"todo,in_progress,done"`
	Priority  string `json:"priority,omitempty" enum:"low,medium,high"`
	SortOrder int    `json:"sort_order,omitempty"`
	DueDate   string `json:"due_date,omitempty" format:"date-time"`
}

type UpdateTaskRequest struct {
	Title     *string `json:"title,omitempty"`
	ProjectID *string `json:"project_id,omitempty"`
	Status    *string `json:"status,omitempty" enum:"todo,in_progress,done"`
	Priority  *string `json:"priority,omitempty" enum:"low,medium,high"`
	SortOrder *int    `json:"sort_order,omitempty"`
	DueDate   *string `json:"due_date,omitempty" format:"date-time"`
}

type ReorderItem struct {
	ID        string  `json:"id"`
	SortOrder int     `json:"sort_order"`
	Status    *string `json:"status,omitempty" enum:"todo,in_progress,done"`
}

type ReorderRequest struct {
	Tasks []ReorderItem `json:"tasks"`
}

type CreateNoteRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

type UpdateNoteRequest struct {
	Title    *string `json:"title,omitempty"`
	Content  *string `json:"content,omitempty"`
	ClientID *string `json:"client_id,omitempty"`
}

type ImportNoteItem struct {
	Title    string `json:"title"`
	Content  string `json:"content,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

type ImportNotesRequest struct {
	Notes []ImportNoteItem `json:"notes"`
}

type CreateNoteActionRequest struct {
	Description string `json:"description"`
}

type CreateTimeEntryRequest struct {
	Domain              string `json:"domain,omitempty"`
	Module              string `json:"module"`
	ClientID            string `json:"client_id,omitempty"`
	ProjectID           string `json:"project_id,omitempty"`
	ActivityDescription string `json:"activity_description,omitempty"`
	StartedAt           string `json:"started_at" format:"date-time"`
	EndedAt             string `json:"ended_at,omitempty" format:"date-time"`
	DurationMinutes     int    `json:"duration_minutes,omitempty"`
}

type HeartbeatRequest struct {
	// Route identifies the page the signal came from. Accepted for
	// compatibility with the dashboard client; not stored.
	Route               string `json:"route,omitempty"`
	Module              string `json:"module"`
	Domain              string `json:"domain,omitempty"`
	ClientID            string `json:"client_id,omitempty"`
	ProjectID           string `json:"project_id,omitempty"`
	ActivityDescription string `json:"activity_description,omitempty"`
}

type HeartbeatResponse struct {
	Action string `json:"action" enum:"extended,created"`
	ID     string `json:"id"`
}

type CreateTemplateRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Steps       []domain.Step `json:"steps"`
	IsDefault   bool          `json:"is_default,omitempty"`
}

type UpdateTemplateRequest struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Steps       *[]domain.Step `json:"steps,omitempty"`
	IsDefault   *bool          `json:"is_default,omitempty"`
}

type RunOnboardingRequest struct {
	TemplateID string `json:"template_id"`
	ClientID   string `json:"client_id"`
}

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

type ChallengeRequest struct {
	FactorID string `json:"factor_id"`
}

type VerifyRequest struct {
	FactorID    string `json:"factor_id"`
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

type EnrollRequest struct {
	FriendlyName string `json:"friendly_name,omitempty"`
}
