package engine_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phaseline/internal/config"
	"phaseline/internal/domain"
	"phaseline/internal/engine"
)

func TestPhaseDetails(t *testing.T) {
	envs := map[string]func(*testing.T, ...func(*config.Config)) testEnv{
		"memory": newTestEnv,
		"sqlite": newSQLiteEnv,
	}
	for name, newEnv := range envs {
		t.Run(name, func(t *testing.T) {
			env := newEnv(t, noSeed)
			env.project(t, domain.Scrum)
			ph := env.phase(t, domain.Scrum, "Sprint Execution")
			e := env.Engine

			owner := "dana"
			b, err := e.AddBlocker(env.Ctx, ph.ID, engine.BlockerInput{Title: " CI outage ", AssignedTo: &owner})
			require.NoError(t, err)
			assert.Equal(t, "CI outage", b.Title)
			assert.Equal(t, domain.SeverityMedium, b.Severity)
			assert.Equal(t, fixedNow, b.BlockedSince)
			assert.False(t, b.Resolved())

			resolved, err := e.ResolveBlocker(env.Ctx, ph.ID, b.ID, "runner replaced")
			require.NoError(t, err)
			require.True(t, resolved.Resolved())
			assert.Equal(t, "runner replaced", *resolved.Resolution)

			_, err = e.ResolveBlocker(env.Ctx, ph.ID, b.ID, "again")
			assert.ErrorContains(t, err, "already resolved")
			_, err = e.ResolveBlocker(env.Ctx, ph.ID, "nope", "x")
			assert.ErrorIs(t, err, domain.ErrUnknownBlocker)
			_, err = e.ResolveBlocker(env.Ctx, ph.ID, b.ID, "  ")
			assert.Error(t, err)

			r, err := e.AddRisk(env.Ctx, ph.ID, engine.RiskInput{Title: "Scope creep", Probability: domain.LevelHigh, Impact: domain.LevelMedium})
			require.NoError(t, err)
			assert.Equal(t, domain.RiskOpen, r.Status)
			_, err = e.AddRisk(env.Ctx, ph.ID, engine.RiskInput{Title: "Bad", Probability: "huge", Impact: domain.LevelLow})
			assert.Error(t, err)

			r, err = e.SetRiskStatus(env.Ctx, ph.ID, r.ID, domain.RiskMitigated)
			require.NoError(t, err)
			assert.Equal(t, domain.RiskMitigated, r.Status)
			_, err = e.SetRiskStatus(env.Ctx, ph.ID, "nope", domain.RiskClosed)
			assert.ErrorIs(t, err, domain.ErrUnknownRisk)
			_, err = e.SetRiskStatus(env.Ctx, ph.ID, r.ID, "gone")
			assert.Error(t, err)

			size := int64(2048)
			a, err := e.AddArtifact(env.Ctx, ph.ID, engine.ArtifactInput{Name: "Sprint board", CreatedBy: "dana", Size: &size})
			require.NoError(t, err)
			assert.Equal(t, domain.ArtifactOther, a.Type)
			assert.Equal(t, fixedNow, a.CreatedAt)
			neg := int64(-1)
			_, err = e.AddArtifact(env.Ctx, ph.ID, engine.ArtifactInput{Name: "x", Size: &neg})
			assert.Error(t, err)

			_, err = e.AssignTeam(env.Ctx, ph.ID, []string{"dana", " ", "lee", "dana"})
			require.NoError(t, err)

			_, err = e.SetMetric(env.Ctx, ph.ID, "velocity", 21)
			require.NoError(t, err)
			_, err = e.SetMetric(env.Ctx, ph.ID, "velocity", math.NaN())
			assert.Error(t, err)
			_, err = e.SetMetric(env.Ctx, ph.ID, "", 1)
			assert.Error(t, err)

			got, err := e.GetPhase(env.Ctx, ph.ID)
			require.NoError(t, err)
			require.Len(t, got.Blockers, 1)
			assert.True(t, got.Blockers[0].Resolved())
			require.Len(t, got.Risks, 1)
			assert.Equal(t, domain.RiskMitigated, got.Risks[0].Status)
			require.Len(t, got.Artifacts, 1)
			assert.Equal(t, size, *got.Artifacts[0].Size)
			assert.Equal(t, []string{"dana", "lee"}, got.AssignedTeam)
			assert.Equal(t, map[string]float64{"velocity": 21}, got.Metrics)

			_, err = e.AddBlocker(env.Ctx, "missing", engine.BlockerInput{Title: "x"})
			assert.ErrorIs(t, err, domain.ErrUnknownPhase)
		})
	}
}
