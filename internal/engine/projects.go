package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"phaseline/internal/domain"
	"phaseline/internal/methodology"
	"phaseline/internal/store"
)

type ProjectInput struct {
	ID          string
	Name        string
	Methodology domain.Methodology
}

// CreateProject stores a project and, when engine.seed_templates is set,
// instantiates one not_started phase per catalog template. The current phase
// pointer starts unset.
func (e Engine) CreateProject(ctx context.Context, in ProjectInput) (domain.Project, error) {
	if !in.Methodology.Valid() {
		return domain.Project{}, fmt.Errorf("%w %q", domain.ErrUnknownMethodology, in.Methodology)
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return domain.Project{}, errors.New("project name is required")
	}
	if in.ID == "" {
		in.ID = e.newID()
	}
	p := domain.Project{
		ID:          in.ID,
		Name:        in.Name,
		Methodology: in.Methodology,
		CreatedAt:   e.now(),
	}
	var templates []domain.PhaseTemplate
	if e.seedTemplates() {
		var err error
		if templates, err = methodology.Templates(p.Methodology); err != nil {
			return domain.Project{}, err
		}
	}
	err := e.update(ctx, p.ID, func(w store.Writer) error {
		if _, err := w.GetProject(ctx, p.ID); err == nil {
			return fmt.Errorf("project %s already exists", p.ID)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := w.InsertProject(ctx, p); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		for i, tpl := range templates {
			if err := w.InsertPhase(ctx, e.phaseFromTemplate(p.ID, i, tpl)); err != nil {
				return fmt.Errorf("seed phase %q: %w", tpl.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Project{}, err
	}
	for range templates {
		e.Metrics.PhaseCreated(string(p.Methodology))
	}
	e.log().Info("project created",
		zap.String("project_id", p.ID),
		zap.String("methodology", string(p.Methodology)),
		zap.Int("seeded_phases", len(templates)))
	return p, nil
}

func (e Engine) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	err := e.view(ctx, func(r store.Reader) error {
		var err error
		p, err = r.GetProject(ctx, id)
		return projectNotFound(err, id)
	})
	return p, err
}

func (e Engine) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var res []domain.Project
	err := e.view(ctx, func(r store.Reader) error {
		var err error
		res, err = r.ListProjects(ctx)
		return err
	})
	if res == nil {
		res = []domain.Project{}
	}
	return res, err
}

// SetCurrentPhase points the project at one of its phases without auditing.
func (e Engine) SetCurrentPhase(ctx context.Context, projectID, phaseID string) (domain.Project, error) {
	var p domain.Project
	err := e.update(ctx, projectID, func(w store.Writer) error {
		var err error
		if p, err = w.GetProject(ctx, projectID); err != nil {
			return projectNotFound(err, projectID)
		}
		ph, err := w.GetPhase(ctx, phaseID)
		if err != nil {
			return phaseNotFound(err, phaseID)
		}
		if ph.ProjectID != projectID {
			return fmt.Errorf("%w %s in project %s", domain.ErrUnknownPhase, phaseID, projectID)
		}
		if err := w.SetCurrentPhase(ctx, projectID, &ph.ID); err != nil {
			return err
		}
		p.CurrentPhaseID = &ph.ID
		return nil
	})
	return p, err
}

// CurrentPhase returns the phase the project points at, or nil when unset.
func (e Engine) CurrentPhase(ctx context.Context, projectID string) (*domain.ProjectPhase, error) {
	var cur *domain.ProjectPhase
	err := e.view(ctx, func(r store.Reader) error {
		p, err := r.GetProject(ctx, projectID)
		if err != nil {
			return projectNotFound(err, projectID)
		}
		if p.CurrentPhaseID == nil {
			return nil
		}
		ph, err := r.GetPhase(ctx, *p.CurrentPhaseID)
		if err != nil {
			return phaseNotFound(err, *p.CurrentPhaseID)
		}
		cur = &ph
		return nil
	})
	return cur, err
}
