// Package memstore is an in-memory store.Store.
//
// Writers run against a private copy of the state which replaces the
// committed state only when fn succeeds, so readers see snapshots and a
// failed Update leaves nothing behind.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"phaseline/internal/domain"
	"phaseline/internal/store"
)

type state struct {
	projects    map[string]domain.Project
	phases      map[string]domain.ProjectPhase
	transitions map[string][]domain.PhaseTransition
	nextSeq     int64
}

func newState() *state {
	return &state{
		projects:    make(map[string]domain.Project),
		phases:      make(map[string]domain.ProjectPhase),
		transitions: make(map[string][]domain.PhaseTransition),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.projects {
		c.projects[k] = store.CloneProject(v)
	}
	for k, v := range s.phases {
		c.phases[k] = store.ClonePhase(v)
	}
	for k, recs := range s.transitions {
		cp := make([]domain.PhaseTransition, len(recs))
		for i, r := range recs {
			cp[i] = store.CloneTransition(r)
		}
		c.transitions[k] = cp
	}
	c.nextSeq = s.nextSeq
	return c
}

// Store keeps everything in maps guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	writeMu sync.Mutex
	cur     *state
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{cur: newState()}
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) View(ctx context.Context, fn func(store.Reader) error) error {
	s.mu.RLock()
	snap := s.cur
	s.mu.RUnlock()
	// committed states are never mutated, only replaced
	return fn(tx{st: snap})
}

// Update serializes all writers; the committed state is swapped in one step.
func (s *Store) Update(ctx context.Context, projectID string, fn func(store.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	work := s.cur.clone()
	s.mu.RUnlock()

	if err := fn(tx{st: work}); err != nil {
		return err
	}
	s.mu.Lock()
	s.cur = work
	s.mu.Unlock()
	return nil
}

type tx struct {
	st *state
}

func (t tx) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, ok := t.st.projects[id]
	if !ok {
		return domain.Project{}, store.ErrNotFound
	}
	return store.CloneProject(p), nil
}

func (t tx) ListProjects(ctx context.Context) ([]domain.Project, error) {
	res := make([]domain.Project, 0, len(t.st.projects))
	for _, p := range t.st.projects {
		res = append(res, store.CloneProject(p))
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (t tx) GetPhase(ctx context.Context, id string) (domain.ProjectPhase, error) {
	ph, ok := t.st.phases[id]
	if !ok {
		return domain.ProjectPhase{}, store.ErrNotFound
	}
	return store.ClonePhase(ph), nil
}

func (t tx) ListPhases(ctx context.Context, projectID string) ([]domain.ProjectPhase, error) {
	var res []domain.ProjectPhase
	for _, ph := range t.st.phases {
		if ph.ProjectID == projectID {
			res = append(res, store.ClonePhase(ph))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Position != res[j].Position {
			return res[i].Position < res[j].Position
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (t tx) ListTransitions(ctx context.Context, projectID string) ([]domain.PhaseTransition, error) {
	recs := t.st.transitions[projectID]
	res := make([]domain.PhaseTransition, len(recs))
	for i, r := range recs {
		res[i] = store.CloneTransition(r)
	}
	return res, nil
}

func (t tx) InsertProject(ctx context.Context, p domain.Project) error {
	if _, exists := t.st.projects[p.ID]; exists {
		return fmt.Errorf("project %s already exists", p.ID)
	}
	t.st.projects[p.ID] = store.CloneProject(p)
	return nil
}

func (t tx) SetCurrentPhase(ctx context.Context, projectID string, phaseID *string) error {
	p, ok := t.st.projects[projectID]
	if !ok {
		return store.ErrNotFound
	}
	p.CurrentPhaseID = nil
	if phaseID != nil {
		id := *phaseID
		p.CurrentPhaseID = &id
	}
	t.st.projects[projectID] = p
	return nil
}

func (t tx) InsertPhase(ctx context.Context, ph domain.ProjectPhase) error {
	if _, ok := t.st.projects[ph.ProjectID]; !ok {
		return store.ErrNotFound
	}
	if _, exists := t.st.phases[ph.ID]; exists {
		return fmt.Errorf("phase %s already exists", ph.ID)
	}
	t.st.phases[ph.ID] = store.ClonePhase(ph)
	return nil
}

func (t tx) UpdatePhase(ctx context.Context, ph domain.ProjectPhase) error {
	if _, ok := t.st.phases[ph.ID]; !ok {
		return store.ErrNotFound
	}
	t.st.phases[ph.ID] = store.ClonePhase(ph)
	return nil
}

func (t tx) DeletePhase(ctx context.Context, id string) error {
	if _, ok := t.st.phases[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.st.phases, id)
	return nil
}

func (t tx) NextPosition(ctx context.Context, projectID string) (int, error) {
	next := 0
	for _, ph := range t.st.phases {
		if ph.ProjectID == projectID && ph.Position >= next {
			next = ph.Position + 1
		}
	}
	return next, nil
}

func (t tx) AppendTransition(ctx context.Context, rec *domain.PhaseTransition) error {
	if _, ok := t.st.projects[rec.ProjectID]; !ok {
		return store.ErrNotFound
	}
	t.st.nextSeq++
	rec.ID = t.st.nextSeq
	t.st.transitions[rec.ProjectID] = append(t.st.transitions[rec.ProjectID], store.CloneTransition(*rec))
	return nil
}
