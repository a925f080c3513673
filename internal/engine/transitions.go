package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"phaseline/internal/domain"
	"phaseline/internal/methodology"
	"phaseline/internal/store"
)

// ListAvailableTransitions returns the rule-table options out of phaseName.
// An empty result marks a terminal phase.
func (e Engine) ListAvailableTransitions(m domain.Methodology, phaseName string) ([]domain.TransitionOption, error) {
	return methodology.AvailableTransitions(m, phaseName)
}

// PhaseTransitions is ListAvailableTransitions for a stored phase; it also
// returns the phase and its project's methodology from the same snapshot.
func (e Engine) PhaseTransitions(ctx context.Context, phaseID string) (domain.ProjectPhase, domain.Methodology, []domain.TransitionOption, error) {
	var (
		ph domain.ProjectPhase
		p  domain.Project
	)
	err := e.view(ctx, func(r store.Reader) error {
		var err error
		ph, p, err = loadPhase(ctx, r, phaseID)
		return err
	})
	if err != nil {
		return ph, "", nil, err
	}
	options, err := methodology.AvailableTransitions(p.Methodology, ph.Name)
	return ph, p.Methodology, options, err
}

// ValidateTransition checks that every requirement of option is acknowledged.
// It is pure: nothing is read or written.
func (e Engine) ValidateTransition(phase domain.ProjectPhase, option domain.TransitionOption, acknowledged []string) error {
	if err := methodology.Validate(option, methodology.Acknowledged(acknowledged...)); err != nil {
		return fmt.Errorf("%s -> %s: %w", phase.Name, option.ToPhase, err)
	}
	return nil
}

// ExecuteTransition applies option to the phase and appends one audit record.
//
// option must come from the rule table for the project's methodology and the
// phase's name, or ErrInvalidTransitionOption is returned. Requirements are not
// re-validated here. When a phase named option.ToPhase exists in the project it
// becomes the current phase; a different-named target is set in_progress and
// the source completed. A missing target leaves phases untouched, but the
// audit record is still written.
func (e Engine) ExecuteTransition(ctx context.Context, phaseID string, option domain.TransitionOption, notes, actorID string) (domain.PhaseTransition, error) {
	projectID, err := e.projectOf(ctx, phaseID)
	if err != nil {
		return domain.PhaseTransition{}, err
	}
	var (
		rec      domain.PhaseTransition
		targetID string
	)
	err = e.update(ctx, projectID, func(w store.Writer) error {
		source, p, err := loadPhase(ctx, w, phaseID)
		if err != nil {
			return err
		}
		if !methodology.IsAvailable(p.Methodology, source.Name, option) {
			return fmt.Errorf("%w: %q -> %q (%s) is not a %s rule for %q",
				domain.ErrInvalidTransitionOption, source.Name, option.ToPhase, option.Reason, p.Methodology, source.Name)
		}
		now := e.now()

		target, found, err := findTarget(ctx, w, source, option.ToPhase)
		if err != nil {
			return err
		}
		if found {
			if target.ID != source.ID {
				target.Status = domain.StatusInProgress
				if target.StartDate == nil {
					start := now
					target.StartDate = &start
				}
				source.Status = domain.StatusCompleted
				if err := w.UpdatePhase(ctx, target); err != nil {
					return err
				}
				if err := w.UpdatePhase(ctx, source); err != nil {
					return err
				}
			} else if e.resetProgressOnRestart() {
				source.Progress = 0
				if err := w.UpdatePhase(ctx, source); err != nil {
					return err
				}
			}
			if err := w.SetCurrentPhase(ctx, p.ID, &target.ID); err != nil {
				return err
			}
			targetID = target.ID
		}

		rec, err = e.Audit.Append(ctx, w, domain.PhaseTransition{
			ProjectID:   p.ID,
			FromPhase:   source.Name,
			ToPhase:     option.ToPhase,
			Reason:      option.Reason,
			Timestamp:   now,
			Notes:       notes,
			TriggeredBy: actorID,
			Metadata: domain.TransitionMetadata{
				Requirements: methodology.CloneOption(option).Requirements,
				Methodology:  p.Methodology,
			},
		})
		return err
	})
	if err != nil {
		return domain.PhaseTransition{}, err
	}
	e.Metrics.TransitionExecuted(string(rec.Metadata.Methodology), rec.Reason)
	e.log().Info("transition executed",
		zap.String("project_id", rec.ProjectID),
		zap.String("from", rec.FromPhase),
		zap.String("to", rec.ToPhase),
		zap.String("reason", rec.Reason),
		zap.String("target_phase_id", targetID),
		zap.String("actor_id", rec.TriggeredBy))
	return rec, nil
}

// findTarget picks the phase a transition lands on. A self-transition lands on
// the source itself; otherwise the first phase in creation order with the name wins.
func findTarget(ctx context.Context, r store.Reader, source domain.ProjectPhase, toPhase string) (domain.ProjectPhase, bool, error) {
	if toPhase == source.Name {
		return source, true, nil
	}
	phases, err := r.ListPhases(ctx, source.ProjectID)
	if err != nil {
		return domain.ProjectPhase{}, false, err
	}
	for _, ph := range phases {
		if ph.Name == toPhase {
			return ph, true, nil
		}
	}
	return domain.ProjectPhase{}, false, nil
}

type TransitionRequest struct {
	PhaseID      string
	ToPhase      string
	Reason       string
	Acknowledged []string
	Notes        string
	ActorID      string
}

// Transition resolves the (ToPhase, Reason) selection against the rule table,
// validates the acknowledgements and executes it.
func (e Engine) Transition(ctx context.Context, req TransitionRequest) (domain.PhaseTransition, error) {
	if req.ActorID == "" {
		return domain.PhaseTransition{}, errors.New("actor id is required")
	}
	ph, m, _, err := e.PhaseTransitions(ctx, req.PhaseID)
	if err != nil {
		return domain.PhaseTransition{}, err
	}
	option, err := methodology.FindOption(m, ph.Name, req.ToPhase, req.Reason)
	if err != nil {
		return domain.PhaseTransition{}, err
	}
	if err := e.ValidateTransition(ph, option, req.Acknowledged); err != nil {
		e.Metrics.ValidationFailed(string(m))
		return domain.PhaseTransition{}, err
	}
	return e.ExecuteTransition(ctx, req.PhaseID, option, req.Notes, req.ActorID)
}

// ManualSetStatus overrides a phase's status, bypassing the rule table. It is
// never written to the audit trail.
func (e Engine) ManualSetStatus(ctx context.Context, phaseID string, status domain.PhaseStatus) (domain.ProjectPhase, error) {
	if !status.Valid() {
		return domain.ProjectPhase{}, fmt.Errorf("%w %q", domain.ErrInvalidStatusValue, status)
	}
	var previous domain.PhaseStatus
	ph, err := e.mutatePhase(ctx, phaseID, func(_ store.Writer, ph *domain.ProjectPhase, _ domain.Project) error {
		previous = ph.Status
		ph.Status = status
		return nil
	})
	if err != nil {
		return ph, err
	}
	e.Metrics.ManualStatusChanged(string(status))
	e.log().Warn("manual status override",
		zap.String("project_id", ph.ProjectID),
		zap.String("phase_id", ph.ID),
		zap.String("phase", ph.Name),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))
	return ph, nil
}

// ListAuditTrail returns the project's executed transitions, oldest first.
func (e Engine) ListAuditTrail(ctx context.Context, projectID string) ([]domain.PhaseTransition, error) {
	var recs []domain.PhaseTransition
	err := e.view(ctx, func(r store.Reader) error {
		if _, err := r.GetProject(ctx, projectID); err != nil {
			return projectNotFound(err, projectID)
		}
		var err error
		recs, err = e.Audit.List(ctx, r, projectID)
		return err
	})
	return recs, err
}
