package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"exitframe/internal/domain"
	"exitframe/internal/engine"
	"exitframe/internal/identity"
	"exitframe/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

// Env bundles what route handlers need.
type Env struct {
	Engine engine.Engine
	Auth   AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"template: not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the exitFrame API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("exitFrame API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	env := Env{Engine: cfg.Engine, Auth: cfg.Auth}
	registerDocs(router, basePath)
	registerHealth(group)
	registerAuth(group, env)
	registerClients(group, cfg.Engine)
	registerProducts(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerNotes(group, cfg.Engine)
	registerTime(group, cfg.Engine)
	registerActivity(group, cfg.Engine)
	registerDashboard(group, cfg.Engine)
	registerSystemHealth(group, env)
	registerOnboarding(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "delete refused") || strings.Contains(lowered, "already exists"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") ||
		strings.Contains(lowered, "required") || strings.Contains(lowered, "unknown"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

// handleIdentityError hides provider detail from callers; the specifics go
// to the server log via the client, not over the wire.
func handleIdentityError(err error) huma.StatusError {
	var ae *identity.APIError
	if errors.As(err, &ae) {
		return newAPIError(http.StatusBadGateway, "identity_unavailable", "identity provider error", nil)
	}
	return handleError(err)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>exitFrame API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string
	}, error) {
		return &struct {
			Body map[string]string
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerTime(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "time-heartbeat",
		Method:        http.MethodPost,
		Path:          "/time/heartbeat",
		Summary:       "Record an activity pulse",
		DefaultStatus: http.StatusOK,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body HeartbeatRequest `json:"body"`
	}) (*struct {
		Body HeartbeatResponse
	}, error) {
		opts := engine.HeartbeatOptions{
			Module:              input.Body.Module,
			Domain:              input.Body.Domain,
			ActivityDescription: input.Body.ActivityDescription,
		}
		if input.Body.ClientID != "" {
			opts.ClientID = &input.Body.ClientID
		}
		if input.Body.ProjectID != "" {
			opts.ProjectID = &input.Body.ProjectID
		}
		action, id, err := e.Heartbeat(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body HeartbeatResponse
		}{Body: HeartbeatResponse{Action: action, ID: id}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-time-entries",
		Method:      http.MethodGet,
		Path:        "/time",
		Summary:     "List time entries",
	}, func(ctx context.Context, input *struct {
		ClientID string `query:"client_id"`
		DateFrom string `query:"date_from"`
		DateTo   string `query:"date_to"`
	}) (*struct {
		Body []domain.TimeEntry
	}, error) {
		items, err := e.Repo.ListTimeEntries(ctx, repo.TimeEntryFilters{
			ClientID: input.ClientID,
			DateFrom: input.DateFrom,
			DateTo:   input.DateTo,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.TimeEntry
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-time-entry",
		Method:        http.MethodPost,
		Path:          "/time",
		Summary:       "Record a manual time entry",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateTimeEntryRequest `json:"body"`
	}) (*struct {
		Body domain.TimeEntry
	}, error) {
		entry, err := e.RecordTimeEntry(ctx, engine.TimeEntryOptions{
			Domain:              input.Body.Domain,
			Module:              input.Body.Module,
			ClientID:            input.Body.ClientID,
			ProjectID:           input.Body.ProjectID,
			ActivityDescription: input.Body.ActivityDescription,
			StartedAt:           input.Body.StartedAt,
			EndedAt:             input.Body.EndedAt,
			DurationMinutes:     input.Body.DurationMinutes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TimeEntry
		}{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "time-summary",
		Method:      http.MethodGet,
		Path:        "/time/summary",
		Summary:     "Minutes per module",
	}, func(ctx context.Context, input *struct {
		DateFrom string `query:"date_from"`
		DateTo   string `query:"date_to"`
	}) (*struct {
		Body map[string]int
	}, error) {
		summary, err := e.Repo.SummarizeTimeByModule(ctx, input.DateFrom, input.DateTo)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]int
		}{Body: summary}, nil
	})
}

func registerActivity(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "Recent activity feed",
	}, func(ctx context.Context, input *struct {
		Domain string `query:"domain"`
		Module string `query:"module"`
		Limit  int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.ActivityEntry
	}, error) {
		items, err := e.Repo.ListActivity(ctx, repo.ActivityFilters{
			Domain: input.Domain,
			Module: input.Module,
			Limit:  input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ActivityEntry
		}{Body: items}, nil
	})
}

func registerOnboarding(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "run-onboarding",
		Method:        http.MethodPost,
		Path:          "/onboarding/run",
		Summary:       "Run an onboarding template against a client",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body RunOnboardingRequest `json:"body"`
	}) (*struct {
		Body domain.OnboardingRun
	}, error) {
		if input.Body.TemplateID == "" || input.Body.ClientID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "template_id and client_id are required", nil)
		}
		run, err := e.RunOnboarding(ctx, input.Body.TemplateID, input.Body.ClientID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.OnboardingRun
		}{Body: run}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/onboarding/templates",
		Summary:     "List onboarding templates",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.OnboardingTemplate
	}, error) {
		items, err := e.Repo.ListTemplates(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.OnboardingTemplate
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-template",
		Method:        http.MethodPost,
		Path:          "/onboarding/templates",
		Summary:       "Create an onboarding template",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateTemplateRequest `json:"body"`
	}) (*struct {
		Body domain.OnboardingTemplate
	}, error) {
		t, err := e.CreateTemplate(ctx, engine.TemplateCreateOptions{
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Steps:       input.Body.Steps,
			IsDefault:   input.Body.IsDefault,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.OnboardingTemplate
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-template",
		Method:      http.MethodGet,
		Path:        "/onboarding/templates/{id}",
		Summary:     "Get an onboarding template",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.OnboardingTemplate
	}, error) {
		t, err := e.Repo.GetTemplate(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.OnboardingTemplate
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-template",
		Method:      http.MethodPut,
		Path:        "/onboarding/templates/{id}",
		Summary:     "Update an onboarding template",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body UpdateTemplateRequest `json:"body"`
	}) (*struct {
		Body domain.OnboardingTemplate
	}, error) {
		opts := engine.TemplateUpdateOptions{
			Name:        input.Body.Name,
			Description: input.Body.Description,
			IsDefault:   input.Body.IsDefault,
		}
		if input.Body.Steps != nil {
			opts.Steps = *input.Body.Steps
			opts.StepsSet = true
		}
		t, err := e.UpdateTemplate(ctx, input.ID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.OnboardingTemplate
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-template",
		Method:      http.MethodDelete,
		Path:        "/onboarding/templates/{id}",
		Summary:     "Delete an onboarding template",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteTemplate(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/onboarding/runs",
		Summary:     "List onboarding runs",
	}, func(ctx context.Context, input *struct {
		ClientID string `query:"client_id"`
	}) (*struct {
		Body []domain.OnboardingRun
	}, error) {
		items, err := e.Repo.ListRuns(ctx, input.ClientID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.OnboardingRun
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/onboarding/runs/{id}",
		Summary:     "Get an onboarding run",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.OnboardingRun
	}, error) {
		run, err := e.Repo.GetRun(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.OnboardingRun
		}{Body: run}, nil
	})
}
