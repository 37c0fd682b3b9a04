package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"exitframe/internal/domain"
	"exitframe/internal/engine"
	"exitframe/internal/repo"
)

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func registerClients(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-client",
		Method:        http.MethodPost,
		Path:          "/clients",
		Summary:       "Create client",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateClientRequest `json:"body"`
	}) (*struct {
		Body domain.Client
	}, error) {
		c, err := e.CreateClient(ctx, engine.ClientCreateOptions{
			Name:    input.Body.Name,
			Email:   input.Body.Email,
			Company: input.Body.Company,
			Status:  input.Body.Status,
			Notes:   input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-clients",
		Method:      http.MethodGet,
		Path:        "/clients",
		Summary:     "List clients",
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
	}) (*struct {
		Body []domain.Client
	}, error) {
		items, err := e.Repo.ListClients(ctx, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Client
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-client",
		Method:      http.MethodGet,
		Path:        "/clients/{id}",
		Summary:     "Get client",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Client
	}, error) {
		c, err := e.Repo.GetClient(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-client",
		Method:      http.MethodPatch,
		Path:        "/clients/{id}",
		Summary:     "Update client",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body UpdateClientRequest `json:"body"`
	}) (*struct {
		Body domain.Client
	}, error) {
		u := repo.ClientUpdate{
			Name:    input.Body.Name,
			Email:   input.Body.Email,
			Company: input.Body.Company,
			Status:  input.Body.Status,
			Notes:   input.Body.Notes,
		}
		if err := e.Repo.UpdateClient(ctx, input.ID, u, e.Timestamp()); err != nil {
			return nil, handleError(err)
		}
		c, err := e.Repo.GetClient(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-client",
		Method:      http.MethodDelete,
		Path:        "/clients/{id}",
		Summary:     "Delete client",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteClient(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-client-services",
		Method:      http.MethodGet,
		Path:        "/clients/{id}/services",
		Summary:     "List client services",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.ClientService
	}, error) {
		if _, err := e.Repo.GetClient(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListClientServices(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ClientService
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "enable-client-service",
		Method:        http.MethodPost,
		Path:          "/clients/{id}/services",
		Summary:       "Enable a service for a client",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body CreateServiceRequest `json:"body"`
	}) (*struct {
		Body domain.ClientService
	}, error) {
		if input.Body.ServiceType == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "service_type is required", nil)
		}
		if _, err := e.Repo.GetClient(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		s, _, err := e.EnableClientService(ctx, input.ID, input.Body.ServiceType)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ClientService
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-client-service",
		Method:      http.MethodPatch,
		Path:        "/clients/{id}/services/{service_id}",
		Summary:     "Toggle a client service",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID        string `path:"id"`
		ServiceID string `path:"service_id"`
		Body      struct {
			IsActive bool `json:"is_active"`
		} `json:"body"`
	}) (*struct {
		Body struct {
			Success bool `json:"success"`
		}
	}, error) {
		if err := e.Repo.SetClientServiceActive(ctx, input.ServiceID, input.Body.IsActive); err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Success bool `json:"success"`
			}
		}{}
		out.Body.Success = true
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-client-service",
		Method:      http.MethodDelete,
		Path:        "/clients/{id}/services/{service_id}",
		Summary:     "Delete a client service",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID        string `path:"id"`
		ServiceID string `path:"service_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteClientService(ctx, input.ServiceID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerProducts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-product",
		Method:        http.MethodPost,
		Path:          "/products",
		Summary:       "Create product",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateProductRequest `json:"body"`
	}) (*struct {
		Body domain.Product
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		now := e.Timestamp()
		p := domain.Product{
			ID:          uuid.NewString(),
			Name:        input.Body.Name,
			Description: optional(input.Body.Description),
			Status:      input.Body.Status,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if p.Status == "" {
			p.Status = "active"
		}
		if err := e.Repo.InsertProduct(ctx, p); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Product
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-products",
		Method:      http.MethodGet,
		Path:        "/products",
		Summary:     "List products",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Product
	}, error) {
		items, err := e.Repo.ListProducts(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Product
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-product",
		Method:      http.MethodGet,
		Path:        "/products/{id}",
		Summary:     "Get product",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Product
	}, error) {
		p, err := e.Repo.GetProduct(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Product
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-product",
		Method:      http.MethodPatch,
		Path:        "/products/{id}",
		Summary:     "Update product",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateProductRequest `json:"body"`
	}) (*struct {
		Body domain.Product
	}, error) {
		if err := e.Repo.UpdateProduct(ctx, input.ID, input.Body.Name, input.Body.Description, input.Body.Status, e.Timestamp()); err != nil {
			return nil, handleError(err)
		}
		p, err := e.Repo.GetProduct(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Product
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-product",
		Method:      http.MethodDelete,
		Path:        "/products/{id}",
		Summary:     "Delete product",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteProduct(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-product-modules",
		Method:      http.MethodGet,
		Path:        "/products/{id}/modules",
		Summary:     "List product modules",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.ProductModule
	}, error) {
		if _, err := e.Repo.GetProduct(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListProductModules(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ProductModule
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-product-module",
		Method:        http.MethodPost,
		Path:          "/products/{id}/modules",
		Summary:       "Add a product module",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body CreateModuleRequest `json:"body"`
	}) (*struct {
		Body domain.ProductModule
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if _, err := e.Repo.GetProduct(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		m := domain.ProductModule{
			ID:        uuid.NewString(),
			ProductID: input.ID,
			Name:      input.Body.Name,
			Status:    input.Body.Status,
			SortOrder: input.Body.SortOrder,
			CreatedAt: e.Timestamp(),
		}
		if m.Status == "" {
			m.Status = "planned"
		}
		if err := e.Repo.InsertProductModule(ctx, m); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProductModule
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-product-module",
		Method:      http.MethodPatch,
		Path:        "/products/{id}/modules/{module_id}",
		Summary:     "Update a product module",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID       string              `path:"id"`
		ModuleID string              `path:"module_id"`
		Body     UpdateModuleRequest `json:"body"`
	}) (*struct {
		Body struct {
			Success bool `json:"success"`
		}
	}, error) {
		if err := e.Repo.UpdateProductModule(ctx, input.ModuleID, input.Body.Name, input.Body.Status, input.Body.SortOrder); err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Success bool `json:"success"`
			}
		}{}
		out.Body.Success = true
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-product-module",
		Method:      http.MethodDelete,
		Path:        "/products/{id}/modules/{module_id}",
		Summary:     "Delete a product module",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID       string `path:"id"`
		ModuleID string `path:"module_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteProductModule(ctx, input.ModuleID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project
	}, error) {
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			Name:        input.Body.Name,
			Domain:      input.Body.Domain,
			DomainRefID: input.Body.DomainRefID,
			ProjectType: input.Body.ProjectType,
			Status:      input.Body.Status,
			Priority:    input.Body.Priority,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, input *struct {
		Status      string `query:"status"`
		DomainRefID string `query:"domain_ref_id"`
	}) (*struct {
		Body []domain.Project
	}, error) {
		items, err := e.Repo.ListProjects(ctx, repo.ProjectFilters{
			Status:      input.Status,
			DomainRefID: input.DomainRefID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Project
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Project
	}, error) {
		p, err := e.Repo.GetProject(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{id}",
		Summary:     "Update project",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project
	}, error) {
		u := repo.ProjectUpdate{
			Name:        input.Body.Name,
			ProjectType: input.Body.ProjectType,
			Status:      input.Body.Status,
			Priority:    input.Body.Priority,
			DomainRefID: input.Body.DomainRefID,
		}
		if err := e.Repo.UpdateProject(ctx, input.ID, u, e.Timestamp()); err != nil {
			return nil, handleError(err)
		}
		p, err := e.Repo.GetProject(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{id}",
		Summary:     "Delete project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteProject(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-project-phases",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/phases",
		Summary:     "List project phases",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.ProjectPhase
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListProjectPhases(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ProjectPhase
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-project-phase",
		Method:        http.MethodPost,
		Path:          "/projects/{id}/phases",
		Summary:       "Add a project phase",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body CreatePhaseRequest `json:"body"`
	}) (*struct {
		Body domain.ProjectPhase
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if _, err := e.Repo.GetProject(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		p := domain.ProjectPhase{
			ID:        uuid.NewString(),
			ProjectID: input.ID,
			Name:      input.Body.Name,
			Status:    input.Body.Status,
			SortOrder: input.Body.SortOrder,
			CreatedAt: e.Timestamp(),
		}
		if p.Status == "" {
			p.Status = "pending"
		}
		if err := e.Repo.InsertProjectPhase(ctx, p); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProjectPhase
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project-phase",
		Method:      http.MethodPatch,
		Path:        "/projects/{id}/phases/{phase_id}",
		Summary:     "Update a project phase",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID      string             `path:"id"`
		PhaseID string             `path:"phase_id"`
		Body    UpdatePhaseRequest `json:"body"`
	}) (*struct {
		Body struct {
			Success bool `json:"success"`
		}
	}, error) {
		if err := e.Repo.UpdateProjectPhase(ctx, input.PhaseID, input.Body.Name, input.Body.Status, input.Body.SortOrder); err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Success bool `json:"success"`
			}
		}{}
		out.Body.Success = true
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project-phase",
		Method:      http.MethodDelete,
		Path:        "/projects/{id}/phases/{phase_id}",
		Summary:     "Delete a project phase",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID      string `path:"id"`
		PhaseID string `path:"phase_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteProjectPhase(ctx, input.PhaseID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task
	}, error) {
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			Title:     input.Body.Title,
			ProjectID: input.Body.ProjectID,
			Status:    input.Body.Status,
			Priority:  input.Body.Priority,
			SortOrder: input.Body.SortOrder,
			DueDate:   input.Body.DueDate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		Status    string `query:"status"`
		ProjectID string `query:"project_id"`
	}) (*struct {
		Body []domain.Task
	}, error) {
		items, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
			Status:    input.Status,
			ProjectID: input.ProjectID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reorder-tasks",
		Method:      http.MethodPut,
		Path:        "/tasks/reorder",
		Summary:     "Reorder tasks",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body ReorderRequest `json:"body"`
	}) (*struct {
		Body struct {
			Updated int `json:"updated"`
		}
	}, error) {
		moves := make([]engine.TaskReorder, 0, len(input.Body.Tasks))
		for _, item := range input.Body.Tasks {
			moves = append(moves, engine.TaskReorder{
				ID:        item.ID,
				SortOrder: item.SortOrder,
				Status:    item.Status,
			})
		}
		n, err := e.ReorderTasks(ctx, moves)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Updated int `json:"updated"`
			}
		}{}
		out.Body.Updated = n
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Task
	}, error) {
		t, err := e.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task
	}, error) {
		u := repo.TaskUpdate{
			Title:     input.Body.Title,
			ProjectID: input.Body.ProjectID,
			Status:    input.Body.Status,
			Priority:  input.Body.Priority,
			SortOrder: input.Body.SortOrder,
			DueDate:   input.Body.DueDate,
		}
		if err := e.Repo.UpdateTask(ctx, input.ID, u, e.Timestamp()); err != nil {
			return nil, handleError(err)
		}
		t, err := e.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteTask(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerNotes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-note",
		Method:        http.MethodPost,
		Path:          "/notes",
		Summary:       "Create note",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateNoteRequest `json:"body"`
	}) (*struct {
		Body domain.Note
	}, error) {
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		now := e.Timestamp()
		n := domain.Note{
			ID:        uuid.NewString(),
			Title:     input.Body.Title,
			Content:   input.Body.Content,
			ClientID:  optional(input.Body.ClientID),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := e.Repo.InsertNote(ctx, n); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Note
		}{Body: n}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-notes",
		Method:      http.MethodGet,
		Path:        "/notes",
		Summary:     "List notes",
	}, func(ctx context.Context, input *struct {
		ClientID string `query:"client_id"`
	}) (*struct {
		Body []domain.Note
	}, error) {
		items, err := e.Repo.ListNotes(ctx, input.ClientID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Note
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "import-notes",
		Method:        http.MethodPost,
		Path:          "/notes/import",
		Summary:       "Bulk import notes",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ImportNotesRequest `json:"body"`
	}) (*struct {
		Body struct {
			Imported int `json:"imported"`
		}
	}, error) {
		batch := make([]engine.NoteImport, 0, len(input.Body.Notes))
		for _, item := range input.Body.Notes {
			batch = append(batch, engine.NoteImport{
				Title:    item.Title,
				Content:  item.Content,
				ClientID: item.ClientID,
			})
		}
		n, err := e.ImportNotes(ctx, batch)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Imported int `json:"imported"`
			}
		}{}
		out.Body.Imported = n
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-note",
		Method:      http.MethodGet,
		Path:        "/notes/{id}",
		Summary:     "Get note",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Note
	}, error) {
		n, err := e.Repo.GetNote(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Note
		}{Body: n}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-note",
		Method:      http.MethodPatch,
		Path:        "/notes/{id}",
		Summary:     "Update note",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateNoteRequest `json:"body"`
	}) (*struct {
		Body domain.Note
	}, error) {
		if err := e.Repo.UpdateNote(ctx, input.ID, input.Body.Title, input.Body.Content, input.Body.ClientID, e.Timestamp()); err != nil {
			return nil, handleError(err)
		}
		n, err := e.Repo.GetNote(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Note
		}{Body: n}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-note",
		Method:      http.MethodDelete,
		Path:        "/notes/{id}",
		Summary:     "Delete note",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteNote(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-note-actions",
		Method:      http.MethodGet,
		Path:        "/notes/{id}/actions",
		Summary:     "List note actions",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Status string `query:"status"`
	}) (*struct {
		Body []domain.NoteAction
	}, error) {
		if _, err := e.Repo.GetNote(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListNoteActions(ctx, input.ID, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.NoteAction
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-note-action",
		Method:        http.MethodPost,
		Path:          "/notes/{id}/actions",
		Summary:       "Add a note action",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body CreateNoteActionRequest `json:"body"`
	}) (*struct {
		Body domain.NoteAction
	}, error) {
		if input.Body.Description == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "description is required", nil)
		}
		if _, err := e.Repo.GetNote(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		a := domain.NoteAction{
			ID:          uuid.NewString(),
			NoteID:      input.ID,
			Description: input.Body.Description,
			Status:      "pending",
			CreatedAt:   e.Timestamp(),
		}
		if err := e.Repo.InsertNoteAction(ctx, a); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.NoteAction
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "execute-note-action",
		Method:      http.MethodPost,
		Path:        "/notes/{id}/actions/{action_id}/execute",
		Summary:     "Mark a note action executed",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID       string `path:"id"`
		ActionID string `path:"action_id"`
	}) (*struct {
		Body domain.NoteAction
	}, error) {
		if err := e.Repo.SetNoteActionStatus(ctx, input.ActionID, "executed"); err != nil {
			return nil, handleError(err)
		}
		a, err := e.Repo.GetNoteAction(ctx, input.ActionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.NoteAction
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dismiss-note-action",
		Method:      http.MethodPost,
		Path:        "/notes/{id}/actions/{action_id}/dismiss",
		Summary:     "Dismiss a note action",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID       string `path:"id"`
		ActionID string `path:"action_id"`
	}) (*struct {
		Body domain.NoteAction
	}, error) {
		if err := e.Repo.SetNoteActionStatus(ctx, input.ActionID, "dismissed"); err != nil {
			return nil, handleError(err)
		}
		a, err := e.Repo.GetNoteAction(ctx, input.ActionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.NoteAction
		}{Body: a}, nil
	})
}
