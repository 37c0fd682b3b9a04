package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"exitframe/internal/engine"
	"exitframe/internal/migrate"
	"exitframe/internal/repo"
	"exitframe/internal/trust"
)

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard-widgets",
		Method:      http.MethodGet,
		Path:        "/dashboard/widgets",
		Summary:     "Aggregated dashboard widgets",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.DashboardWidgets
	}, error) {
		widgets, err := e.DashboardWidgets(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.DashboardWidgets
		}{Body: widgets}, nil
	})
}

type serviceCheck struct {
	Name           string `json:"name"`
	Status         string `json:"status" enum:"healthy,degraded,down"`
	ResponseTimeMS int64  `json:"response_time_ms"`
	Details        string `json:"details,omitempty"`
}

type systemHealthBody struct {
	Status      string            `json:"status" enum:"healthy,degraded,unhealthy"`
	Timestamp   string            `json:"timestamp" format:"date-time"`
	Services    []serviceCheck    `json:"services"`
	TableCounts []repo.TableCount `json:"table_counts,omitempty"`
	Migrations  []string          `json:"migrations,omitempty"`
}

// slowCheck is the latency above which a reachable service counts as degraded.
const slowCheck = time.Second

func runCheck(name string, fn func() error) serviceCheck {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	check := serviceCheck{Name: name, ResponseTimeMS: elapsed.Milliseconds()}
	switch {
	case err != nil:
		check.Status = "down"
		check.ResponseTimeMS = -1
		check.Details = err.Error()
	case elapsed >= slowCheck:
		check.Status = "degraded"
		check.Details = "slow response"
	default:
		check.Status = "healthy"
	}
	return check
}

// registerSystemHealth wires the diagnostics endpoint: per-dependency checks,
// table row counts, and the applied migrations.
func registerSystemHealth(api huma.API, e Env) {
	huma.Register(api, huma.Operation{
		OperationID: "system-health",
		Method:      http.MethodGet,
		Path:        "/system-health",
		Summary:     "Service diagnostics",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body systemHealthBody
	}, error) {
		checks := []serviceCheck{
			runCheck("database", func() error {
				var ok int
				return e.Engine.DB.QueryRowContext(ctx, `SELECT 1`).Scan(&ok)
			}),
			runCheck("trust store", func() error {
				_, err := e.Auth.Trust.Exists(ctx, trust.HashToken("health-probe"))
				return err
			}),
			runCheck("identity provider", func() error {
				return e.Auth.Identity.Health(ctx)
			}),
		}
		status := "healthy"
		for _, c := range checks {
			if c.Status == "down" {
				status = "unhealthy"
				break
			}
			if c.Status == "degraded" {
				status = "degraded"
			}
		}
		body := systemHealthBody{
			Status:    status,
			Timestamp: e.Engine.Timestamp(),
			Services:  checks,
		}
		if checks[0].Status != "down" {
			body.TableCounts = e.Engine.Repo.TableCounts(ctx)
			if applied, err := migrate.Applied(e.Engine.DB); err == nil {
				body.Migrations = applied
			}
		}
		return &struct {
			Body systemHealthBody
		}{Body: body}, nil
	})
}
