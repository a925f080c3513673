package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phaseline/internal/config"
	"phaseline/internal/db"
	"phaseline/internal/domain"
	"phaseline/internal/engine"
	"phaseline/internal/metrics"
	"phaseline/internal/migrate"
	"phaseline/internal/repo"
)

const testSecret = "test-secret"

type testServer struct {
	*httptest.Server
	engine engine.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn))
	r := repo.New(conn)
	cfg := config.Default("proj-1")
	reg := prometheus.NewRegistry()
	e := engine.New(r, cfg)
	e.Metrics = metrics.New(reg)
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testSecret, AllowLegacyActorHeader: true},
		Gatherer: reg,
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		_ = r.Close()
	})
	return &testServer{Server: srv, engine: e}
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

var actor = map[string]string{"X-Actor-Id": "alice"}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) kanbanProject(t *testing.T) []domain.ProjectPhase {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, s.URL+"/v0/projects", CreateProjectRequest{ID: "proj-1", Name: "Board", Methodology: "kanban"}, actor)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	resp, body = doJSON(t, http.MethodGet, s.URL+"/v0/projects/proj-1/phases", nil, actor)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	phases := decode[PhasesResponse](t, body).Items
	require.NotEmpty(t, phases)
	return phases
}

func TestHealthNeedsNoAuth(t *testing.T) {
	s := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, s.URL+"/v0/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	s := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, s.URL+"/v0/projects", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", decode[errorEnvelope](t, body).Error.Code)

	resp, _ = doJSON(t, http.MethodGet, s.URL+"/v0/projects", nil, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBearerTokenAuthenticates(t *testing.T) {
	s := newTestServer(t)
	token, err := IssueToken(testSecret, "bob", time.Hour, time.Now())
	require.NoError(t, err)
	resp, body := doJSON(t, http.MethodGet, s.URL+"/v0/projects", nil, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Empty(t, decode[ProjectsResponse](t, body).Items)

	other, err := IssueToken("another-secret", "bob", time.Hour, time.Now())
	require.NoError(t, err)
	resp, _ = doJSON(t, http.MethodGet, s.URL+"/v0/projects", nil, map[string]string{"Authorization": "Bearer " + other})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIssueTokenRequiresSecretAndActor(t *testing.T) {
	_, err := IssueToken("", "bob", 0, time.Now())
	assert.Error(t, err)
	_, err = IssueToken(testSecret, " ", 0, time.Now())
	assert.Error(t, err)
}

func TestCatalogEndpoints(t *testing.T) {
	s := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, s.URL+"/v0/methodologies", nil, actor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.Methodologies(), decode[MethodologiesResponse](t, body).Items)

	resp, body = doJSON(t, http.MethodGet, s.URL+"/v0/methodologies/waterfall/templates", nil, actor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tpls := decode[TemplatesResponse](t, body)
	require.NotEmpty(t, tpls.Items)
	assert.Equal(t, "Requirements", tpls.Items[0].Name)

	resp, body = doJSON(t, http.MethodGet, s.URL+"/v0/methodologies/kanban/phases/In%20Progress/transitions", nil, actor)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	opts := decode[OptionsResponse](t, body)
	require.Len(t, opts.Items, 2)
	assert.Equal(t, "Code Review", opts.Items[0].ToPhase)
	assert.False(t, opts.Terminal)

	resp, body = doJSON(t, http.MethodGet, s.URL+"/v0/methodologies/kanban/phases/Done/transitions", nil, actor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[OptionsResponse](t, body).Terminal)

	resp, body = doJSON(t, http.MethodGet, s.URL+"/v0/methodologies/spiral/templates", nil, actor)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unknown_methodology", decode[errorEnvelope](t, body).Error.Code)
}

func TestCreateProjectSeedsPhases(t *testing.T) {
	s := newTestServer(t)
	phases := s.kanbanProject(t)
	assert.Equal(t, "Backlog", phases[0].Name)
	for _, ph := range phases {
		assert.Equal(t, domain.StatusNotStarted, ph.Status)
	}

	resp, body := doJSON(t, http.MethodPost, s.URL+"/v0/projects", CreateProjectRequest{ID: "proj-1", Name: "Again", Methodology: "kanban"}, actor)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	resp, _ = doJSON(t, http.MethodGet, s.URL+"/v0/projects/missing", nil, actor)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTransitionValidateAndExecute(t *testing.T) {
	s := newTestServer(t)
	phases := s.kanbanProject(t)
	backlog := phases[0]
	url := s.URL + "/v0/phases/" + backlog.ID + "/transitions"

	resp, body := doJSON(t, http.MethodGet, url, nil, actor)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	opts := decode[PhaseOptionsResponse](t, body)
	require.Len(t, opts.Items, 1)
	assert.Equal(t, domain.Kanban, opts.Methodology)

	req := TransitionRequest{ToPhase: "To Do", Reason: "Prioritized", Acknowledged: []string{"Item prioritized"}}
	resp, body = doJSON(t, http.MethodPost, url+"/validate", req, actor)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	v := decode[ValidateResponse](t, body)
	assert.False(t, v.Valid)
	assert.Equal(t, []string{"WIP limit checked"}, v.Missing)

	resp, body = doJSON(t, http.MethodPost, url, req, actor)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(body))
	env := decode[errorEnvelope](t, body)
	assert.Equal(t, "incomplete_requirements", env.Error.Code)
	assert.Equal(t, []any{"WIP limit checked"}, env.Error.Details["missing"])

	req.Acknowledged = append(req.Acknowledged, "WIP limit checked")
	req.Notes = "top of the queue"
	resp, body = doJSON(t, http.MethodPost, url, req, actor)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	rec := decode[domain.PhaseTransition](t, body)
	assert.Equal(t, "Backlog", rec.FromPhase)
	assert.Equal(t, "To Do", rec.ToPhase)
	assert.Equal(t, "alice", rec.TriggeredBy)
	assert.Equal(t, []string{"Item prioritized", "WIP limit checked"}, rec.Metadata.Requirements)

	resp, body = doJSON(t, http.MethodGet, s.URL+"/v0/projects/proj-1", nil, actor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[domain.Project](t, body)
	require.NotNil(t, p.CurrentPhaseID)
	assert.Equal(t, phases[1].ID, *p.CurrentPhaseID)

	resp, body = doJSON(t, http.MethodGet, s.URL+"/v0/projects/proj-1/audit", nil, actor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	trail := decode[AuditResponse](t, body).Items
	require.Len(t, trail, 1)
	assert.Equal(t, "top of the queue", trail[0].Notes)
}

func TestTransitionErrors(t *testing.T) {
	s := newTestServer(t)
	phases := s.kanbanProject(t)
	url := s.URL + "/v0/phases/" + phases[0].ID + "/transitions"

	resp, body := doJSON(t, http.MethodPost, url, TransitionRequest{ToPhase: "Done", Reason: "Shortcut"}, actor)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "invalid_transition_option", decode[errorEnvelope](t, body).Error.Code)

	done := phases[len(phases)-1]
	require.Equal(t, "Done", done.Name)
	resp, body = doJSON(t, http.MethodPost, s.URL+"/v0/phases/"+done.ID+"/transitions", TransitionRequest{ToPhase: "Backlog", Reason: "Reopen"}, actor)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "terminal_phase", decode[errorEnvelope](t, body).Error.Code)

	resp, _ = doJSON(t, http.MethodPost, s.URL+"/v0/phases/missing/transitions", TransitionRequest{ToPhase: "To Do", Reason: "Prioritized"}, actor)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestManualStatusIsNotAudited(t *testing.T) {
	s := newTestServer(t)
	phases := s.kanbanProject(t)

	resp, body := doJSON(t, http.MethodPut, s.URL+"/v0/phases/"+phases[2].ID+"/status", SetStatusRequest{Status: "blocked"}, actor)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, domain.StatusBlocked, decode[domain.ProjectPhase](t, body).Status)

	resp, body = doJSON(t, http.MethodGet, s.URL+"/v0/projects/proj-1/audit", nil, actor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[AuditResponse](t, body).Items)

	resp, _ = doJSON(t, http.MethodPut, s.URL+"/v0/phases/"+phases[2].ID+"/status", map[string]string{"status": "done"}, actor)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPhaseDetails(t *testing.T) {
	s := newTestServer(t)
	ph := s.kanbanProject(t)[0]
	base := s.URL + "/v0/phases/" + ph.ID

	resp, body := doJSON(t, http.MethodPost, base+"/blockers", AddBlockerRequest{Title: "Waiting on API", Severity: "high"}, actor)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	blocker := decode[domain.PhaseBlocker](t, body)
	assert.False(t, blocker.Resolved())

	resp, body = doJSON(t, http.MethodPost, base+"/blockers/"+blocker.ID+"/resolve", ResolveBlockerRequest{Resolution: "API shipped"}, actor)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.True(t, decode[domain.PhaseBlocker](t, body).Resolved())

	resp, _ = doJSON(t, http.MethodPost, base+"/blockers/"+blocker.ID+"/resolve", ResolveBlockerRequest{Resolution: "again"}, actor)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, base+"/blockers/nope/resolve", ResolveBlockerRequest{Resolution: "x"}, actor)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, base+"/artifacts", AddArtifactRequest{Name: "Design doc", Type: "document"}, actor)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, "alice", decode[domain.PhaseArtifact](t, body).CreatedBy)

	resp, body = doJSON(t, http.MethodPut, base+"/metrics/velocity", SetMetricRequest{Value: 12.5}, actor)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, 12.5, decode[domain.ProjectPhase](t, body).Metrics["velocity"])

	progress := 250
	resp, body = doJSON(t, http.MethodPatch, base, UpdatePhaseRequest{Progress: &progress}, actor)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	updated := decode[domain.ProjectPhase](t, body)
	assert.Equal(t, 100, updated.Progress)
	assert.Len(t, updated.Blockers, 1)
	assert.Len(t, updated.Artifacts, 1)
}

func TestDeletePhase(t *testing.T) {
	s := newTestServer(t)
	ph := s.kanbanProject(t)[0]
	resp, body := doJSON(t, http.MethodDelete, s.URL+"/v0/phases/"+ph.ID, nil, actor)
	require.Equal(t, http.StatusNoContent, resp.StatusCode, string(body))
	resp, _ = doJSON(t, http.MethodGet, s.URL+"/v0/phases/"+ph.ID, nil, actor)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.kanbanProject(t)
	resp, body := doJSON(t, http.MethodGet, s.URL+"/metrics", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "phaseline_phases_created_total"), string(body))
}

func TestOpenAPIIsPublic(t *testing.T) {
	s := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, s.URL+"/v0/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "bearerAuth")
	assert.Contains(t, string(body), "/v0/phases/{phase_id}/transitions")
}

func TestHandleErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrUnknownPhase, http.StatusNotFound},
		{domain.ErrUnknownProject, http.StatusNotFound},
		{domain.ErrNoTransitionDefined, http.StatusConflict},
		{domain.ErrInvalidTransitionOption, http.StatusUnprocessableEntity},
		{&domain.IncompleteRequirementsError{Missing: []string{"a"}}, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, handleError(tc.err).GetStatus(), tc.err.Error())
	}
}
