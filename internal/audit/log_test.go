package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phaseline/internal/audit"
	"phaseline/internal/domain"
	"phaseline/internal/memstore"
	"phaseline/internal/store"
)

func TestAppendKeepsTrailNonDecreasing(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	require.NoError(t, s.Update(ctx, "", func(w store.Writer) error {
		return w.InsertProject(ctx, domain.Project{ID: "p1", Methodology: domain.Waterfall})
	}))

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Hour), base.Add(time.Minute)}
	i := 0
	log := audit.Log{Now: func() time.Time { t := clock[i]; i++; return t }}

	for _, to := range []string{"Design", "Implementation", "Testing"} {
		err := s.Update(ctx, "p1", func(w store.Writer) error {
			rec, err := log.Append(ctx, w, domain.PhaseTransition{ProjectID: "p1", FromPhase: "x", ToPhase: to, TriggeredBy: "u-1"})
			assert.NotZero(t, rec.ID)
			return err
		})
		require.NoError(t, err)
	}

	var recs []domain.PhaseTransition
	require.NoError(t, s.View(ctx, func(r store.Reader) (err error) {
		recs, err = log.List(ctx, r, "p1")
		return err
	}))
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"Design", "Implementation", "Testing"}, []string{recs[0].ToPhase, recs[1].ToPhase, recs[2].ToPhase})
	assert.True(t, recs[1].Timestamp.Equal(base), "backwards clock clamps to previous record")
	for k := 1; k < len(recs); k++ {
		assert.False(t, recs[k].Timestamp.Before(recs[k-1].Timestamp))
	}
	assert.Equal(t, []string{}, recs[0].Metadata.Requirements)
}

func TestListEmptyTrail(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		recs, err := audit.Log{}.List(ctx, r, "nobody")
		assert.NotNil(t, recs)
		assert.Empty(t, recs)
		return err
	}))
}

func TestAppendRequiresProject(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	err := s.Update(ctx, "", func(w store.Writer) error {
		_, err := audit.Log{}.Append(ctx, w, domain.PhaseTransition{})
		return err
	})
	require.Error(t, err)
}
