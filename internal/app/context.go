package app

import (
	"context"
	"errors"
	"fmt"

	"phaseline/internal/config"
	"phaseline/internal/domain"
	"phaseline/internal/engine"
)

// ResolveProject picks the active project: the override first, then
// project.id from config, then the only project in the workspace.
// A configured project that does not exist yet is created from the config's
// name and methodology.
func ResolveProject(ctx context.Context, e engine.Engine, override string, cfg *config.Config) (domain.Project, error) {
	if cfg == nil {
		cfg = config.Default("")
	}
	projectID := override
	if projectID == "" {
		projectID = cfg.Project.ID
	}
	if projectID == "" {
		projects, err := e.ListProjects(ctx)
		if err != nil {
			return domain.Project{}, err
		}
		switch len(projects) {
		case 1:
			return projects[0], nil
		case 0:
			return domain.Project{}, errors.New("no project in workspace; create one with pl project create")
		default:
			return domain.Project{}, fmt.Errorf("%d projects in workspace; use --project", len(projects))
		}
	}

	p, err := e.GetProject(ctx, projectID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrUnknownProject) {
		return domain.Project{}, err
	}
	if projectID != cfg.Project.ID || cfg.Project.Methodology == "" {
		return domain.Project{}, err
	}
	name := cfg.Project.Name
	if name == "" {
		name = projectID
	}
	return e.CreateProject(ctx, engine.ProjectInput{
		ID:          projectID,
		Name:        name,
		Methodology: domain.Methodology(cfg.Project.Methodology),
	})
}
