package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phaseline/internal/config"
	"phaseline/internal/domain"
	"phaseline/internal/engine"
	"phaseline/internal/memstore"
)

func newEngine() engine.Engine {
	return engine.New(memstore.New(), config.Default(""))
}

func TestResolveProjectCreatesConfiguredProject(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	cfg := config.Default("board")
	cfg.Project.Name = "Team board"
	cfg.Project.Methodology = "kanban"

	p, err := ResolveProject(ctx, e, "", cfg)
	require.NoError(t, err)
	assert.Equal(t, "board", p.ID)
	assert.Equal(t, "Team board", p.Name)
	assert.Equal(t, domain.Kanban, p.Methodology)

	again, err := ResolveProject(ctx, e, "", cfg)
	require.NoError(t, err)
	assert.Equal(t, p.CreatedAt, again.CreatedAt)
}

func TestResolveProjectPrefersOverride(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	_, err := e.CreateProject(ctx, engine.ProjectInput{ID: "a", Name: "A", Methodology: domain.Scrum})
	require.NoError(t, err)
	_, err = e.CreateProject(ctx, engine.ProjectInput{ID: "b", Name: "B", Methodology: domain.Lean})
	require.NoError(t, err)

	p, err := ResolveProject(ctx, e, "b", config.Default("a"))
	require.NoError(t, err)
	assert.Equal(t, "b", p.ID)

	_, err = ResolveProject(ctx, e, "", config.Default(""))
	assert.ErrorContains(t, err, "use --project")

	_, err = ResolveProject(ctx, e, "zzz", config.Default(""))
	assert.ErrorIs(t, err, domain.ErrUnknownProject)
}

func TestResolveProjectSingleProject(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	_, err := ResolveProject(ctx, e, "", nil)
	assert.Error(t, err)

	_, err = e.CreateProject(ctx, engine.ProjectInput{ID: "only", Name: "Only", Methodology: domain.Waterfall})
	require.NoError(t, err)
	p, err := ResolveProject(ctx, e, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "only", p.ID)
}
