package phaselinesdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phaseline/internal/config"
	"phaseline/internal/engine"
	"phaseline/internal/memstore"
	"phaseline/internal/server"
)

const secret = "sdk-secret"

func newClient(t *testing.T) *Client {
	t.Helper()
	e := engine.New(memstore.New(), config.Default(""))
	handler, err := server.New(server.Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     server.AuthConfig{JWTSecret: secret},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	token, err := server.IssueToken(secret, "sdk-user", time.Hour, time.Now())
	require.NoError(t, err)
	c := New(srv.URL)
	c.BearerToken = token
	return c
}

func TestClientTransitionFlow(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	p, err := c.CreateProject(ctx, "rel", "Release train", "waterfall")
	require.NoError(t, err)
	assert.Equal(t, "waterfall", p.Methodology)
	assert.Nil(t, p.CurrentPhaseID)

	phases, err := c.Phases(ctx, p.ID)
	require.NoError(t, err)
	require.NotEmpty(t, phases)
	first := phases[0]
	assert.Equal(t, "Requirements", first.Name)

	options, err := c.Transitions(ctx, first.ID)
	require.NoError(t, err)
	require.NotEmpty(t, options)
	opt := options[0]
	require.NotEmpty(t, opt.Requirements)

	in := TransitionInput{ToPhase: opt.ToPhase, Reason: opt.Reason}
	v, err := c.ValidateTransition(ctx, first.ID, in)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, opt.Requirements, v.Missing)

	_, err = c.Transition(ctx, first.ID, in)
	require.Error(t, err)
	assert.True(t, IsIncompleteRequirements(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, opt.Requirements, apiErr.Missing)

	in.Acknowledged = opt.Requirements
	rec, err := c.Transition(ctx, first.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "sdk-user", rec.TriggeredBy)
	assert.Equal(t, "waterfall", rec.Metadata.Methodology)

	trail, err := c.AuditTrail(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, rec.ID, trail[0].ID)

	p, err = c.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, p.CurrentPhaseID)
}

func TestClientManualStatus(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	p, err := c.CreateProject(ctx, "ops", "Ops", "lean")
	require.NoError(t, err)
	phases, err := c.Phases(ctx, p.ID)
	require.NoError(t, err)

	ph, err := c.SetStatus(ctx, phases[0].ID, "on_hold")
	require.NoError(t, err)
	assert.Equal(t, "on_hold", ph.Status)

	trail, err := c.AuditTrail(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, trail)
}

func TestClientUnauthorized(t *testing.T) {
	c := newClient(t)
	c.BearerToken = ""
	_, err := c.Phases(context.Background(), "whatever")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "unauthorized", apiErr.Code)
}
