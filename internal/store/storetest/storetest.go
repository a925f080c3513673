// Package storetest runs the same behavioural checks against every store.Store adapter.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phaseline/internal/domain"
	"phaseline/internal/store"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// Run exercises open against the store contract. open must return an empty store.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("PhaseRoundTrip", func(t *testing.T) { testPhaseRoundTrip(t, open(t)) })
	t.Run("ListOrdering", func(t *testing.T) { testListOrdering(t, open(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, open(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("CurrentPhasePointer", func(t *testing.T) { testCurrentPhase(t, open(t)) })
	t.Run("Transitions", func(t *testing.T) { testTransitions(t, open(t)) })
	t.Run("ConcurrentWriters", func(t *testing.T) { testConcurrentWriters(t, open(t)) })
}

func seedProject(t *testing.T, s store.Store, id string) {
	t.Helper()
	err := s.Update(context.Background(), "", func(w store.Writer) error {
		return w.InsertProject(context.Background(), domain.Project{ID: id, Name: id, Methodology: domain.Kanban, CreatedAt: t0})
	})
	require.NoError(t, err)
}

func samplePhase(projectID, id string, pos int) domain.ProjectPhase {
	start := t0.Add(time.Hour)
	assignee := "u-2"
	size := int64(2048)
	url := "https://example.test/doc"
	return domain.ProjectPhase{
		ID:                id,
		ProjectID:         projectID,
		Position:          pos,
		Name:              "In Progress",
		Description:       "Active development",
		Status:            domain.StatusInProgress,
		StartDate:         &start,
		EstimatedDuration: 24,
		ActualDuration:    3,
		Progress:          40,
		Prerequisites:     []string{"Assignee set"},
		Deliverables:      []string{"Implemented change"},
		ExitCriteria:      []string{"Code committed", "Unit tests passing"},
		AssignedTeam:      []string{"u-1", "u-2"},
		Blockers: []domain.PhaseBlocker{{
			ID: "b-1", Title: "CI down", Severity: domain.SeverityHigh, BlockedSince: t0, AssignedTo: &assignee,
		}},
		Risks: []domain.PhaseRisk{{
			ID: "r-1", Title: "Scope creep", Probability: domain.LevelMedium, Impact: domain.LevelHigh, Status: domain.RiskOpen,
		}},
		Artifacts: []domain.PhaseArtifact{{
			ID: "a-1", Name: "design", Type: domain.ArtifactDocument, CreatedBy: "u-1", CreatedAt: t0, URL: &url, Size: &size,
		}},
		Metrics: map[string]float64{"velocity": 12.5},
	}
}

func getPhase(t *testing.T, s store.Store, id string) (domain.ProjectPhase, error) {
	t.Helper()
	var ph domain.ProjectPhase
	err := s.View(context.Background(), func(r store.Reader) error {
		var err error
		ph, err = r.GetPhase(context.Background(), id)
		return err
	})
	return ph, err
}

func testPhaseRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedProject(t, s, "p1")
	want := samplePhase("p1", "ph-1", 0)
	require.NoError(t, s.Update(ctx, "p1", func(w store.Writer) error { return w.InsertPhase(ctx, want) }))

	got, err := getPhase(t, s, "ph-1")
	require.NoError(t, err)
	require.NotNil(t, got.StartDate)
	assert.True(t, want.StartDate.Equal(*got.StartDate))
	got.StartDate = want.StartDate
	assert.True(t, got.Blockers[0].BlockedSince.Equal(t0))
	got.Blockers[0].BlockedSince = want.Blockers[0].BlockedSince
	got.Artifacts[0].CreatedAt = want.Artifacts[0].CreatedAt
	assert.Equal(t, want, got)

	got.Status = domain.StatusBlocked
	got.Progress = 55
	got.Metrics["defects"] = 2
	require.NoError(t, s.Update(ctx, "p1", func(w store.Writer) error { return w.UpdatePhase(ctx, got) }))
	again, err := getPhase(t, s, "ph-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBlocked, again.Status)
	assert.Equal(t, 55, again.Progress)
	assert.Equal(t, map[string]float64{"velocity": 12.5, "defects": 2}, again.Metrics)
}

func testListOrdering(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedProject(t, s, "p1")
	seedProject(t, s, "p2")
	err := s.Update(ctx, "p1", func(w store.Writer) error {
		for _, id := range []string{"c", "a", "b"} {
			pos, err := w.NextPosition(ctx, "p1")
			if err != nil {
				return err
			}
			if err := w.InsertPhase(ctx, samplePhase("p1", id, pos)); err != nil {
				return err
			}
		}
		return w.InsertPhase(ctx, samplePhase("p2", "z", 0))
	})
	require.NoError(t, err)

	var ids []string
	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		phases, err := r.ListPhases(ctx, "p1")
		for _, ph := range phases {
			ids = append(ids, ph.ID)
		}
		return err
	}))
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func testNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := getPhase(t, s, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.View(ctx, func(r store.Reader) error {
		_, err := r.GetProject(ctx, "missing")
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	seedProject(t, s, "p1")
	err = s.Update(ctx, "p1", func(w store.Writer) error { return w.UpdatePhase(ctx, samplePhase("p1", "nope", 0)) })
	assert.ErrorIs(t, err, store.ErrNotFound)
	err = s.Update(ctx, "p1", func(w store.Writer) error { return w.DeletePhase(ctx, "nope") })
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedProject(t, s, "p1")
	boom := errors.New("boom")
	err := s.Update(ctx, "p1", func(w store.Writer) error {
		if err := w.InsertPhase(ctx, samplePhase("p1", "ph-1", 0)); err != nil {
			return err
		}
		if err := w.AppendTransition(ctx, &domain.PhaseTransition{ProjectID: "p1", FromPhase: "a", ToPhase: "b", Timestamp: t0, TriggeredBy: "u", Metadata: domain.TransitionMetadata{Methodology: domain.Kanban}}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = getPhase(t, s, "ph-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		recs, err := r.ListTransitions(ctx, "p1")
		assert.Empty(t, recs)
		return err
	}))
}

func testCurrentPhase(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedProject(t, s, "p1")
	id := "ph-1"
	require.NoError(t, s.Update(ctx, "p1", func(w store.Writer) error { return w.SetCurrentPhase(ctx, "p1", &id) }))

	var p domain.Project
	require.NoError(t, s.View(ctx, func(r store.Reader) (err error) {
		p, err = r.GetProject(ctx, "p1")
		return err
	}))
	require.NotNil(t, p.CurrentPhaseID)
	assert.Equal(t, "ph-1", *p.CurrentPhaseID)
	assert.True(t, p.CreatedAt.Equal(t0))

	require.NoError(t, s.Update(ctx, "p1", func(w store.Writer) error { return w.SetCurrentPhase(ctx, "p1", nil) }))
	require.NoError(t, s.View(ctx, func(r store.Reader) (err error) {
		p, err = r.GetProject(ctx, "p1")
		return err
	}))
	assert.Nil(t, p.CurrentPhaseID)
}

func testTransitions(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedProject(t, s, "p1")
	seedProject(t, s, "p2")
	var ids []int64
	err := s.Update(ctx, "p1", func(w store.Writer) error {
		for i, to := range []string{"To Do", "In Progress"} {
			rec := &domain.PhaseTransition{
				ProjectID:   "p1",
				FromPhase:   "Backlog",
				ToPhase:     to,
				Reason:      "r",
				Timestamp:   t0.Add(time.Duration(i) * time.Minute),
				TriggeredBy: "u-1",
				Metadata:    domain.TransitionMetadata{Requirements: []string{"x"}, Methodology: domain.Kanban},
			}
			if err := w.AppendTransition(ctx, rec); err != nil {
				return err
			}
			ids = append(ids, rec.ID)
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Less(t, ids[0], ids[1])

	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		recs, err := r.ListTransitions(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "To Do", recs[0].ToPhase)
		assert.Equal(t, []string{"x"}, recs[1].Metadata.Requirements)
		assert.Equal(t, domain.Kanban, recs[1].Metadata.Methodology)
		assert.True(t, recs[1].Timestamp.Equal(t0.Add(time.Minute)))

		other, err := r.ListTransitions(ctx, "p2")
		assert.Empty(t, other)
		return err
	}))
}

func testConcurrentWriters(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedProject(t, s, "p1")
	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Update(ctx, "p1", func(w store.Writer) error {
				return w.AppendTransition(ctx, &domain.PhaseTransition{
					ProjectID: "p1", FromPhase: "a", ToPhase: "b", Timestamp: t0, TriggeredBy: "u",
					Metadata: domain.TransitionMetadata{Methodology: domain.Kanban},
				})
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		recs, err := r.ListTransitions(ctx, "p1")
		assert.Len(t, recs, n)
		return err
	}))
}
