package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"phaseline/internal/domain"
	"phaseline/internal/methodology"
	"phaseline/internal/store"
)

func (e Engine) phaseFromTemplate(projectID string, position int, tpl domain.PhaseTemplate) domain.ProjectPhase {
	tpl = methodology.CloneTemplate(tpl)
	return domain.ProjectPhase{
		ID:                e.newID(),
		ProjectID:         projectID,
		Position:          position,
		Name:              tpl.Name,
		Description:       tpl.Description,
		Status:            domain.StatusNotStarted,
		EstimatedDuration: tpl.EstimatedDuration,
		Progress:          0,
		Prerequisites:     tpl.Prerequisites,
		Deliverables:      tpl.Deliverables,
		ExitCriteria:      tpl.ExitCriteria,
		AssignedTeam:      []string{},
		Blockers:          []domain.PhaseBlocker{},
		Risks:             []domain.PhaseRisk{},
		Artifacts:         []domain.PhaseArtifact{},
		Metrics:           map[string]float64{},
	}
}

// CreatePhaseFromTemplate clones tpl into a new not_started phase appended to
// the project's phase sequence.
func (e Engine) CreatePhaseFromTemplate(ctx context.Context, projectID string, tpl domain.PhaseTemplate) (domain.ProjectPhase, error) {
	if strings.TrimSpace(tpl.Name) == "" {
		return domain.ProjectPhase{}, errors.New("phase name is required")
	}
	var (
		ph domain.ProjectPhase
		m  domain.Methodology
	)
	err := e.update(ctx, projectID, func(w store.Writer) error {
		p, err := w.GetProject(ctx, projectID)
		if err != nil {
			return projectNotFound(err, projectID)
		}
		m = p.Methodology
		pos, err := w.NextPosition(ctx, projectID)
		if err != nil {
			return err
		}
		ph = e.phaseFromTemplate(projectID, pos, tpl)
		return w.InsertPhase(ctx, ph)
	})
	if err != nil {
		return domain.ProjectPhase{}, err
	}
	e.Metrics.PhaseCreated(string(m))
	return ph, nil
}

// PhaseInput describes a manually created phase.
type PhaseInput struct {
	Name              string
	Description       string
	EstimatedDuration int
	Prerequisites     []string
	Deliverables      []string
	ExitCriteria      []string
}

func (e Engine) CreatePhase(ctx context.Context, projectID string, in PhaseInput) (domain.ProjectPhase, error) {
	if in.EstimatedDuration < 0 {
		return domain.ProjectPhase{}, errors.New("estimated duration must be >= 0")
	}
	return e.CreatePhaseFromTemplate(ctx, projectID, domain.PhaseTemplate{
		Name:              strings.TrimSpace(in.Name),
		Description:       in.Description,
		EstimatedDuration: in.EstimatedDuration,
		Prerequisites:     nonNil(in.Prerequisites),
		Deliverables:      nonNil(in.Deliverables),
		ExitCriteria:      nonNil(in.ExitCriteria),
	})
}

// CreatePhaseByName instantiates the named catalog template for the project's methodology.
func (e Engine) CreatePhaseByName(ctx context.Context, projectID, templateName string) (domain.ProjectPhase, error) {
	p, err := e.GetProject(ctx, projectID)
	if err != nil {
		return domain.ProjectPhase{}, err
	}
	tpl, err := methodology.Template(p.Methodology, templateName)
	if err != nil {
		return domain.ProjectPhase{}, err
	}
	return e.CreatePhaseFromTemplate(ctx, projectID, tpl)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func (e Engine) GetPhase(ctx context.Context, id string) (domain.ProjectPhase, error) {
	var ph domain.ProjectPhase
	err := e.view(ctx, func(r store.Reader) error {
		var err error
		ph, err = r.GetPhase(ctx, id)
		return phaseNotFound(err, id)
	})
	return ph, err
}

// ListPhases returns the project's phases in creation order.
func (e Engine) ListPhases(ctx context.Context, projectID string) ([]domain.ProjectPhase, error) {
	var res []domain.ProjectPhase
	err := e.view(ctx, func(r store.Reader) error {
		if _, err := r.GetProject(ctx, projectID); err != nil {
			return projectNotFound(err, projectID)
		}
		var err error
		res, err = r.ListPhases(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = []domain.ProjectPhase{}
	}
	return res, nil
}

// PhaseUpdate carries the fields to change; nil fields are left untouched.
type PhaseUpdate struct {
	Name              *string
	Description       *string
	Status            *domain.PhaseStatus
	StartDate         *time.Time
	EndDate           *time.Time
	EstimatedDuration *int
	ActualDuration    *int
	Progress          *int
	Prerequisites     *[]string
	Deliverables      *[]string
	ExitCriteria      *[]string
	AssignedTeam      *[]string
}

func (u PhaseUpdate) validate() error {
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("%w %q", domain.ErrInvalidStatusValue, *u.Status)
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return errors.New("phase name cannot be empty")
	}
	if u.EstimatedDuration != nil && *u.EstimatedDuration < 0 {
		return errors.New("estimated duration must be >= 0")
	}
	if u.ActualDuration != nil && *u.ActualDuration < 0 {
		return errors.New("actual duration must be >= 0")
	}
	return nil
}

func (u PhaseUpdate) apply(ph *domain.ProjectPhase) {
	if u.Name != nil {
		ph.Name = strings.TrimSpace(*u.Name)
	}
	if u.Description != nil {
		ph.Description = *u.Description
	}
	if u.Status != nil {
		ph.Status = *u.Status
	}
	if u.StartDate != nil {
		t := u.StartDate.UTC()
		ph.StartDate = &t
	}
	if u.EndDate != nil {
		t := u.EndDate.UTC()
		ph.EndDate = &t
	}
	if u.EstimatedDuration != nil {
		ph.EstimatedDuration = *u.EstimatedDuration
	}
	if u.ActualDuration != nil {
		ph.ActualDuration = *u.ActualDuration
	}
	if u.Progress != nil {
		ph.Progress = domain.ClampProgress(*u.Progress)
	}
	if u.Prerequisites != nil {
		ph.Prerequisites = nonNil(*u.Prerequisites)
	}
	if u.Deliverables != nil {
		ph.Deliverables = nonNil(*u.Deliverables)
	}
	if u.ExitCriteria != nil {
		ph.ExitCriteria = nonNil(*u.ExitCriteria)
	}
	if u.AssignedTeam != nil {
		ph.AssignedTeam = dedupe(*u.AssignedTeam)
	}
}

// UpdatePhase merges u into the stored phase. Progress is clamped to [0,100].
func (e Engine) UpdatePhase(ctx context.Context, id string, u PhaseUpdate) (domain.ProjectPhase, error) {
	if err := u.validate(); err != nil {
		return domain.ProjectPhase{}, err
	}
	return e.mutatePhase(ctx, id, func(_ store.Writer, ph *domain.ProjectPhase, _ domain.Project) error {
		u.apply(ph)
		return nil
	})
}

// DeletePhase removes a phase. Audit records naming it are kept; if it was the
// project's current phase the pointer is cleared.
func (e Engine) DeletePhase(ctx context.Context, id string) error {
	projectID, err := e.projectOf(ctx, id)
	if err != nil {
		return err
	}
	return e.update(ctx, projectID, func(w store.Writer) error {
		ph, p, err := loadPhase(ctx, w, id)
		if err != nil {
			return err
		}
		if err := w.DeletePhase(ctx, ph.ID); err != nil {
			return phaseNotFound(err, id)
		}
		if p.CurrentPhaseID != nil && *p.CurrentPhaseID == ph.ID {
			if err := w.SetCurrentPhase(ctx, p.ID, nil); err != nil {
				return err
			}
		}
		e.log().Info("phase deleted", zap.String("project_id", p.ID), zap.String("phase_id", ph.ID), zap.String("phase", ph.Name))
		return nil
	})
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
