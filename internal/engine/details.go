package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"phaseline/internal/domain"
	"phaseline/internal/store"
)

type BlockerInput struct {
	Title       string
	Description string
	Severity    domain.Severity
	AssignedTo  *string
}

func (e Engine) AddBlocker(ctx context.Context, phaseID string, in BlockerInput) (domain.PhaseBlocker, error) {
	if strings.TrimSpace(in.Title) == "" {
		return domain.PhaseBlocker{}, errors.New("blocker title is required")
	}
	if in.Severity == "" {
		in.Severity = domain.SeverityMedium
	}
	if !in.Severity.Valid() {
		return domain.PhaseBlocker{}, fmt.Errorf("invalid severity %q", in.Severity)
	}
	b := domain.PhaseBlocker{
		ID:           e.newID(),
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		Severity:     in.Severity,
		BlockedSince: e.now(),
		AssignedTo:   in.AssignedTo,
	}
	_, err := e.mutatePhase(ctx, phaseID, func(_ store.Writer, ph *domain.ProjectPhase, _ domain.Project) error {
		ph.Blockers = append(ph.Blockers, b)
		return nil
	})
	return b, err
}

// ResolveBlocker sets the resolution and its timestamp together.
func (e Engine) ResolveBlocker(ctx context.Context, phaseID, blockerID, resolution string) (domain.PhaseBlocker, error) {
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		return domain.PhaseBlocker{}, errors.New("resolution is required")
	}
	var out domain.PhaseBlocker
	_, err := e.mutatePhase(ctx, phaseID, func(_ store.Writer, ph *domain.ProjectPhase, _ domain.Project) error {
		for i := range ph.Blockers {
			b := &ph.Blockers[i]
			if b.ID != blockerID {
				continue
			}
			if b.Resolved() {
				return fmt.Errorf("blocker %s already resolved", blockerID)
			}
			now := e.now()
			b.Resolution = &resolution
			b.ResolvedAt = &now
			out = *b
			return nil
		}
		return fmt.Errorf("%w %s", domain.ErrUnknownBlocker, blockerID)
	})
	return out, err
}

type RiskInput struct {
	Title       string
	Description string
	Probability domain.Level
	Impact      domain.Level
	Mitigation  string
	Owner       string
}

func (e Engine) AddRisk(ctx context.Context, phaseID string, in RiskInput) (domain.PhaseRisk, error) {
	if strings.TrimSpace(in.Title) == "" {
		return domain.PhaseRisk{}, errors.New("risk title is required")
	}
	if !in.Probability.Valid() || !in.Impact.Valid() {
		return domain.PhaseRisk{}, fmt.Errorf("probability and impact must be low, medium or high")
	}
	r := domain.PhaseRisk{
		ID:          e.newID(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Probability: in.Probability,
		Impact:      in.Impact,
		Mitigation:  in.Mitigation,
		Owner:       in.Owner,
		Status:      domain.RiskOpen,
	}
	_, err := e.mutatePhase(ctx, phaseID, func(_ store.Writer, ph *domain.ProjectPhase, _ domain.Project) error {
		ph.Risks = append(ph.Risks, r)
		return nil
	})
	return r, err
}

func (e Engine) SetRiskStatus(ctx context.Context, phaseID, riskID string, status domain.RiskStatus) (domain.PhaseRisk, error) {
	if !status.Valid() {
		return domain.PhaseRisk{}, fmt.Errorf("invalid risk status %q", status)
	}
	var out domain.PhaseRisk
	_, err := e.mutatePhase(ctx, phaseID, func(_ store.Writer, ph *domain.ProjectPhase, _ domain.Project) error {
		for i := range ph.Risks {
			if ph.Risks[i].ID == riskID {
				ph.Risks[i].Status = status
				out = ph.Risks[i]
				return nil
			}
		}
		return fmt.Errorf("%w %s", domain.ErrUnknownRisk, riskID)
	})
	return out, err
}

type ArtifactInput struct {
	Name        string
	Type        domain.ArtifactType
	Description string
	CreatedBy   string
	URL         *string
	Size        *int64
}

func (e Engine) AddArtifact(ctx context.Context, phaseID string, in ArtifactInput) (domain.PhaseArtifact, error) {
	if strings.TrimSpace(in.Name) == "" {
		return domain.PhaseArtifact{}, errors.New("artifact name is required")
	}
	if in.Type == "" {
		in.Type = domain.ArtifactOther
	}
	if !in.Type.Valid() {
		return domain.PhaseArtifact{}, fmt.Errorf("invalid artifact type %q", in.Type)
	}
	if in.Size != nil && *in.Size < 0 {
		return domain.PhaseArtifact{}, errors.New("artifact size must be >= 0")
	}
	a := domain.PhaseArtifact{
		ID:          e.newID(),
		Name:        strings.TrimSpace(in.Name),
		Type:        in.Type,
		Description: in.Description,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   e.now(),
		URL:         in.URL,
		Size:        in.Size,
	}
	_, err := e.mutatePhase(ctx, phaseID, func(_ store.Writer, ph *domain.ProjectPhase, _ domain.Project) error {
		ph.Artifacts = append(ph.Artifacts, a)
		return nil
	})
	return a, err
}

// AssignTeam replaces the phase's team; blanks and duplicates are dropped.
func (e Engine) AssignTeam(ctx context.Context, phaseID string, members []string) (domain.ProjectPhase, error) {
	return e.mutatePhase(ctx, phaseID, func(_ store.Writer, ph *domain.ProjectPhase, _ domain.Project) error {
		ph.AssignedTeam = dedupe(members)
		return nil
	})
}

func (e Engine) SetMetric(ctx context.Context, phaseID, key string, value float64) (domain.ProjectPhase, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ProjectPhase{}, errors.New("metric key is required")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return domain.ProjectPhase{}, errors.New("metric value must be finite")
	}
	return e.mutatePhase(ctx, phaseID, func(_ store.Writer, ph *domain.ProjectPhase, _ domain.Project) error {
		if ph.Metrics == nil {
			ph.Metrics = map[string]float64{}
		}
		ph.Metrics[key] = value
		return nil
	})
}
