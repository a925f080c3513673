// Package audit appends and lists the phase transition trail of a project.
package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"phaseline/internal/domain"
	"phaseline/internal/store"
)

// Log writes PhaseTransition records through a store transaction. There is no
// update or delete: records are immutable once appended.
type Log struct {
	Now func() time.Time
}

func (l Log) now() time.Time {
	if l.Now == nil {
		return time.Now().UTC()
	}
	return l.Now().UTC()
}

// Append stores rec, stamping it when Timestamp is zero. The stored timestamp
// is never earlier than the project's previous record, so the trail stays
// non-decreasing even if the clock steps backwards.
func (l Log) Append(ctx context.Context, w store.Writer, rec domain.PhaseTransition) (domain.PhaseTransition, error) {
	if rec.ProjectID == "" {
		return rec, fmt.Errorf("audit: project id required")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now()
	}
	rec.Timestamp = rec.Timestamp.UTC()
	existing, err := w.ListTransitions(ctx, rec.ProjectID)
	if err != nil {
		return rec, fmt.Errorf("audit: read trail: %w", err)
	}
	if n := len(existing); n > 0 {
		if last := existing[n-1].Timestamp; rec.Timestamp.Before(last) {
			rec.Timestamp = last
		}
	}
	if rec.Metadata.Requirements == nil {
		rec.Metadata.Requirements = []string{}
	}
	if err := w.AppendTransition(ctx, &rec); err != nil {
		return rec, fmt.Errorf("audit: append: %w", err)
	}
	return rec, nil
}

// List returns a project's trail ascending by timestamp, ties broken by append order.
func (l Log) List(ctx context.Context, r store.Reader, projectID string) ([]domain.PhaseTransition, error) {
	recs, err := r.ListTransitions(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].Timestamp.Equal(recs[j].Timestamp) {
			return recs[i].Timestamp.Before(recs[j].Timestamp)
		}
		return recs[i].ID < recs[j].ID
	})
	if recs == nil {
		recs = []domain.PhaseTransition{}
	}
	return recs, nil
}
