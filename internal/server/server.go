package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"phaseline/internal/domain"
	"phaseline/internal/engine"
	"phaseline/internal/logging"
	"phaseline/internal/methodology"
	"phaseline/internal/store"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *zap.Logger
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"incomplete_requirements"`
	Message string         `json:"message" example:"incomplete requirements: Blocker documented"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"missing\":[\"Blocker documented\"]}"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the phaseline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := logging.OrNop(cfg.Logger)
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = log
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, errorDetails(errs))
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// request schema violations are client errors, not unmet requirements
			status = http.StatusBadRequest
		}
		return newAPIError(status, "", msg, errorDetails(errs))
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(log))
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Phaseline API", "0.1.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerCatalog(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerPhases(group, cfg.Engine)
	registerPhaseDetails(group, cfg.Engine)
	registerTransitions(group, cfg.Engine)
	registerAudit(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)
	if cfg.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return router, nil
}

func errorDetails(errs []error) map[string]any {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return map[string]any{"errors": msgs}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body:   apiErrorBody{Code: code, Message: message, Details: details},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	var incomplete *domain.IncompleteRequirementsError
	if errors.As(err, &incomplete) {
		return newAPIError(http.StatusUnprocessableEntity, "incomplete_requirements", msg, map[string]any{"missing": incomplete.Missing})
	}
	switch {
	case errors.Is(err, domain.ErrUnknownPhase),
		errors.Is(err, domain.ErrUnknownProject),
		errors.Is(err, domain.ErrUnknownBlocker),
		errors.Is(err, domain.ErrUnknownRisk),
		errors.Is(err, store.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, domain.ErrNoTransitionDefined):
		return newAPIError(http.StatusConflict, "terminal_phase", msg, nil)
	case errors.Is(err, domain.ErrInvalidTransitionOption):
		return newAPIError(http.StatusUnprocessableEntity, "invalid_transition_option", msg, nil)
	case errors.Is(err, domain.ErrUnknownMethodology):
		return newAPIError(http.StatusBadRequest, "unknown_methodology", msg, nil)
	case errors.Is(err, domain.ErrInvalidStatusValue):
		return newAPIError(http.StatusBadRequest, "invalid_status", msg, nil)
	}
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "already"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") ||
		strings.Contains(lowered, "must") || strings.Contains(lowered, "cannot"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
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

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			}
			if ww.Status() >= http.StatusInternalServerError {
				log.Error("request failed", fields...)
				return
			}
			log.Debug("request", fields...)
		})
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get(path.Join(basePath, "docs"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", basePath, "openapi.json")
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <title>Phaseline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => { SwaggerUIBundle({ url: '%s', dom_id: '#swagger-ui' }); };
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
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"}},
				},
			}
		}
	}
}

type projectPath struct {
	ProjectID string `path:"project_id"`
}

type phasePath struct {
	PhaseID string `path:"phase_id"`
}

func registerCatalog(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-methodologies",
		Method:      http.MethodGet,
		Path:        "/methodologies",
		Summary:     "List methodologies",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MethodologiesResponse `json:"body"`
	}, error) {
		return &struct {
			Body MethodologiesResponse `json:"body"`
		}{Body: MethodologiesResponse{Items: domain.Methodologies()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/methodologies/{methodology}/templates",
		Summary:     "List phase templates of a methodology",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Methodology string `path:"methodology"`
	}) (*struct {
		Body TemplatesResponse `json:"body"`
	}, error) {
		m, err := domain.ParseMethodology(input.Methodology)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := methodology.Templates(m)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TemplatesResponse `json:"body"`
		}{Body: TemplatesResponse{Methodology: m, Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-rule-transitions",
		Method:      http.MethodGet,
		Path:        "/methodologies/{methodology}/phases/{phase_name}/transitions",
		Summary:     "List the transitions defined out of a phase name",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Methodology string `path:"methodology"`
		PhaseName   string `path:"phase_name"`
	}) (*struct {
		Body OptionsResponse `json:"body"`
	}, error) {
		m, err := domain.ParseMethodology(input.Methodology)
		if err != nil {
			return nil, handleError(err)
		}
		name, err := url.PathUnescape(input.PhaseName)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid phase name", nil)
		}
		items, err := e.ListAvailableTransitions(m, name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OptionsResponse `json:"body"`
		}{Body: OptionsResponse{Methodology: m, Phase: name, Terminal: len(items) == 0, Items: items}}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.CreateProject(ctx, engine.ProjectInput{
			ID:          input.Body.ID,
			Name:        input.Body.Name,
			Methodology: domain.Methodology(input.Body.Methodology),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ProjectsResponse `json:"body"`
	}, error) {
		items, err := e.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectsResponse `json:"body"`
		}{Body: ProjectsResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-current-phase",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/current-phase",
		Summary:     "Point the project at one of its phases",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string                 `path:"project_id"`
		Body      SetCurrentPhaseRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.SetCurrentPhase(ctx, input.ProjectID, input.Body.PhaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})
}

func registerPhases(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-phases",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/phases",
		Summary:     "List project phases in creation order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body PhasesResponse `json:"body"`
	}, error) {
		items, err := e.ListPhases(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PhasesResponse `json:"body"`
		}{Body: PhasesResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-phase",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/phases",
		Summary:       "Create a phase from a template or by hand",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string             `path:"project_id"`
		Body      CreatePhaseRequest `json:"body"`
	}) (*struct {
		Body domain.ProjectPhase `json:"body"`
	}, error) {
		var (
			ph  domain.ProjectPhase
			err error
		)
		if input.Body.Template != "" {
			ph, err = e.CreatePhaseByName(ctx, input.ProjectID, input.Body.Template)
		} else {
			ph, err = e.CreatePhase(ctx, input.ProjectID, engine.PhaseInput{
				Name:              input.Body.Name,
				Description:       input.Body.Description,
				EstimatedDuration: input.Body.EstimatedDuration,
				Prerequisites:     input.Body.Prerequisites,
				Deliverables:      input.Body.Deliverables,
				ExitCriteria:      input.Body.ExitCriteria,
			})
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProjectPhase `json:"body"`
		}{Body: ph}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-phase",
		Method:      http.MethodGet,
		Path:        "/phases/{phase_id}",
		Summary:     "Get phase",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *phasePath) (*struct {
		Body domain.ProjectPhase `json:"body"`
	}, error) {
		ph, err := e.GetPhase(ctx, input.PhaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProjectPhase `json:"body"`
		}{Body: ph}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-phase",
		Method:      http.MethodPatch,
		Path:        "/phases/{phase_id}",
		Summary:     "Merge fields into a phase",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PhaseID string             `path:"phase_id"`
		Body    UpdatePhaseRequest `json:"body"`
	}) (*struct {
		Body domain.ProjectPhase `json:"body"`
	}, error) {
		b := input.Body
		ph, err := e.UpdatePhase(ctx, input.PhaseID, engine.PhaseUpdate{
			Name:              b.Name,
			Description:       b.Description,
			Status:            ptrPhaseStatus(b.Status),
			StartDate:         b.StartDate,
			EndDate:           b.EndDate,
			EstimatedDuration: b.EstimatedDuration,
			ActualDuration:    b.ActualDuration,
			Progress:          b.Progress,
			Prerequisites:     b.Prerequisites,
			Deliverables:      b.Deliverables,
			ExitCriteria:      b.ExitCriteria,
			AssignedTeam:      b.AssignedTeam,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProjectPhase `json:"body"`
		}{Body: ph}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-phase",
		Method:        http.MethodDelete,
		Path:          "/phases/{phase_id}",
		Summary:       "Delete phase",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *phasePath) (*struct{}, error) {
		if err := e.DeletePhase(ctx, input.PhaseID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-phase-status",
		Method:      http.MethodPut,
		Path:        "/phases/{phase_id}/status",
		Summary:     "Override a phase status outside the transition rules",
		Description: "Manual overrides bypass the rule table and are not recorded in the audit trail.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PhaseID string           `path:"phase_id"`
		Body    SetStatusRequest `json:"body"`
	}) (*struct {
		Body domain.ProjectPhase `json:"body"`
	}, error) {
		status, err := domain.ParseStatus(input.Body.Status)
		if err != nil {
			return nil, handleError(err)
		}
		ph, err := e.ManualSetStatus(ctx, input.PhaseID, status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProjectPhase `json:"body"`
		}{Body: ph}, nil
	})
}

func registerPhaseDetails(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-blocker",
		Method:        http.MethodPost,
		Path:          "/phases/{phase_id}/blockers",
		Summary:       "Record a blocker",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PhaseID string            `path:"phase_id"`
		Body    AddBlockerRequest `json:"body"`
	}) (*struct {
		Body domain.PhaseBlocker `json:"body"`
	}, error) {
		b, err := e.AddBlocker(ctx, input.PhaseID, engine.BlockerInput{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Severity:    domain.Severity(input.Body.Severity),
			AssignedTo:  input.Body.AssignedTo,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PhaseBlocker `json:"body"`
		}{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-blocker",
		Method:      http.MethodPost,
		Path:        "/phases/{phase_id}/blockers/{blocker_id}/resolve",
		Summary:     "Resolve a blocker",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		PhaseID   string                `path:"phase_id"`
		BlockerID string                `path:"blocker_id"`
		Body      ResolveBlockerRequest `json:"body"`
	}) (*struct {
		Body domain.PhaseBlocker `json:"body"`
	}, error) {
		b, err := e.ResolveBlocker(ctx, input.PhaseID, input.BlockerID, input.Body.Resolution)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PhaseBlocker `json:"body"`
		}{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-risk",
		Method:        http.MethodPost,
		Path:          "/phases/{phase_id}/risks",
		Summary:       "Record a risk",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PhaseID string         `path:"phase_id"`
		Body    AddRiskRequest `json:"body"`
	}) (*struct {
		Body domain.PhaseRisk `json:"body"`
	}, error) {
		r, err := e.AddRisk(ctx, input.PhaseID, engine.RiskInput{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Probability: domain.Level(input.Body.Probability),
			Impact:      domain.Level(input.Body.Impact),
			Mitigation:  input.Body.Mitigation,
			Owner:       input.Body.Owner,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PhaseRisk `json:"body"`
		}{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-risk-status",
		Method:      http.MethodPut,
		Path:        "/phases/{phase_id}/risks/{risk_id}/status",
		Summary:     "Update a risk status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PhaseID string               `path:"phase_id"`
		RiskID  string               `path:"risk_id"`
		Body    SetRiskStatusRequest `json:"body"`
	}) (*struct {
		Body domain.PhaseRisk `json:"body"`
	}, error) {
		r, err := e.SetRiskStatus(ctx, input.PhaseID, input.RiskID, domain.RiskStatus(input.Body.Status))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PhaseRisk `json:"body"`
		}{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-artifact",
		Method:        http.MethodPost,
		Path:          "/phases/{phase_id}/artifacts",
		Summary:       "Attach an artifact",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PhaseID string             `path:"phase_id"`
		Body    AddArtifactRequest `json:"body"`
	}) (*struct {
		Body domain.PhaseArtifact `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.AddArtifact(ctx, input.PhaseID, engine.ArtifactInput{
			Name:        input.Body.Name,
			Type:        domain.ArtifactType(input.Body.Type),
			Description: input.Body.Description,
			CreatedBy:   actorID,
			URL:         input.Body.URL,
			Size:        input.Body.Size,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PhaseArtifact `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-team",
		Method:      http.MethodPut,
		Path:        "/phases/{phase_id}/team",
		Summary:     "Replace the assigned team",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PhaseID string            `path:"phase_id"`
		Body    AssignTeamRequest `json:"body"`
	}) (*struct {
		Body domain.ProjectPhase `json:"body"`
	}, error) {
		ph, err := e.AssignTeam(ctx, input.PhaseID, input.Body.Members)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProjectPhase `json:"body"`
		}{Body: ph}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-metric",
		Method:      http.MethodPut,
		Path:        "/phases/{phase_id}/metrics/{key}",
		Summary:     "Set a phase metric",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PhaseID string           `path:"phase_id"`
		Key     string           `path:"key"`
		Body    SetMetricRequest `json:"body"`
	}) (*struct {
		Body domain.ProjectPhase `json:"body"`
	}, error) {
		ph, err := e.SetMetric(ctx, input.PhaseID, input.Key, input.Body.Value)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProjectPhase `json:"body"`
		}{Body: ph}, nil
	})
}

func registerTransitions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-phase-transitions",
		Method:      http.MethodGet,
		Path:        "/phases/{phase_id}/transitions",
		Summary:     "List the transitions available from a phase",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *phasePath) (*struct {
		Body PhaseOptionsResponse `json:"body"`
	}, error) {
		ph, m, items, err := e.PhaseTransitions(ctx, input.PhaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PhaseOptionsResponse `json:"body"`
		}{Body: PhaseOptionsResponse{Phase: ph, Methodology: m, Terminal: len(items) == 0, Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "validate-transition",
		Method:      http.MethodPost,
		Path:        "/phases/{phase_id}/transitions/validate",
		Summary:     "Check acknowledgements against a transition's requirements",
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		PhaseID string            `path:"phase_id"`
		Body    TransitionRequest `json:"body"`
	}) (*struct {
		Body ValidateResponse `json:"body"`
	}, error) {
		ph, m, _, err := e.PhaseTransitions(ctx, input.PhaseID)
		if err != nil {
			return nil, handleError(err)
		}
		option, err := methodology.FindOption(m, ph.Name, input.Body.ToPhase, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		res := ValidateResponse{Valid: true, Missing: []string{}, Option: option}
		if err := e.ValidateTransition(ph, option, input.Body.Acknowledged); err != nil {
			var incomplete *domain.IncompleteRequirementsError
			if !errors.As(err, &incomplete) {
				return nil, handleError(err)
			}
			res.Valid = false
			res.Missing = incomplete.Missing
		}
		return &struct {
			Body ValidateResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "execute-transition",
		Method:        http.MethodPost,
		Path:          "/phases/{phase_id}/transitions",
		Summary:       "Execute a rule-defined transition",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		PhaseID string            `path:"phase_id"`
		Body    TransitionRequest `json:"body"`
	}) (*struct {
		Body domain.PhaseTransition `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rec, err := e.Transition(ctx, engine.TransitionRequest{
			PhaseID:      input.PhaseID,
			ToPhase:      input.Body.ToPhase,
			Reason:       input.Body.Reason,
			Acknowledged: input.Body.Acknowledged,
			Notes:        input.Body.Notes,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PhaseTransition `json:"body"`
		}{Body: rec}, nil
	})
}

func registerAudit(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit-trail",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/audit",
		Summary:     "List executed transitions, oldest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*struct {
		Body AuditResponse `json:"body"`
	}, error) {
		items, err := e.ListAuditTrail(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.PhaseTransition{}
		}
		return &struct {
			Body AuditResponse `json:"body"`
		}{Body: AuditResponse{Items: items}}, nil
	})
}
