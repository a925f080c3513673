package store

import (
	"time"

	"phaseline/internal/domain"
)

// ClonePhase deep-copies a phase so adapters never hand out aliased slices or maps.
func ClonePhase(ph domain.ProjectPhase) domain.ProjectPhase {
	ph.StartDate = cloneTime(ph.StartDate)
	ph.EndDate = cloneTime(ph.EndDate)
	ph.Prerequisites = cloneStrings(ph.Prerequisites)
	ph.Deliverables = cloneStrings(ph.Deliverables)
	ph.ExitCriteria = cloneStrings(ph.ExitCriteria)
	ph.AssignedTeam = cloneStrings(ph.AssignedTeam)
	if ph.Blockers != nil {
		blockers := make([]domain.PhaseBlocker, len(ph.Blockers))
		for i, b := range ph.Blockers {
			b.AssignedTo = cloneString(b.AssignedTo)
			b.Resolution = cloneString(b.Resolution)
			b.ResolvedAt = cloneTime(b.ResolvedAt)
			blockers[i] = b
		}
		ph.Blockers = blockers
	}
	if ph.Risks != nil {
		ph.Risks = append([]domain.PhaseRisk(nil), ph.Risks...)
	}
	if ph.Artifacts != nil {
		artifacts := make([]domain.PhaseArtifact, len(ph.Artifacts))
		for i, a := range ph.Artifacts {
			a.URL = cloneString(a.URL)
			if a.Size != nil {
				size := *a.Size
				a.Size = &size
			}
			artifacts[i] = a
		}
		ph.Artifacts = artifacts
	}
	if ph.Metrics != nil {
		metrics := make(map[string]float64, len(ph.Metrics))
		for k, v := range ph.Metrics {
			metrics[k] = v
		}
		ph.Metrics = metrics
	}
	return ph
}

func CloneProject(p domain.Project) domain.Project {
	p.CurrentPhaseID = cloneString(p.CurrentPhaseID)
	return p
}

func CloneTransition(rec domain.PhaseTransition) domain.PhaseTransition {
	rec.Metadata.Requirements = cloneStrings(rec.Metadata.Requirements)
	return rec
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
