// Package store defines the persistence port the engine runs against.
//
// Adapters (internal/repo for SQLite, internal/memstore for tests and
// embedding) implement Store. Writes for a project are serialized and atomic:
// fn either commits every change it made or none. Reads see a consistent
// snapshot and never observe a half-applied Update.
package store

import (
	"context"
	"errors"
	"sync"

	"phaseline/internal/domain"
)

var ErrNotFound = errors.New("not found")

type Reader interface {
	GetProject(ctx context.Context, id string) (domain.Project, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
	GetPhase(ctx context.Context, id string) (domain.ProjectPhase, error)
	// ListPhases returns a project's phases by position, then id.
	ListPhases(ctx context.Context, projectID string) ([]domain.ProjectPhase, error)
	// ListTransitions returns a project's audit records in append order.
	ListTransitions(ctx context.Context, projectID string) ([]domain.PhaseTransition, error)
}

type Writer interface {
	Reader
	InsertProject(ctx context.Context, p domain.Project) error
	SetCurrentPhase(ctx context.Context, projectID string, phaseID *string) error
	InsertPhase(ctx context.Context, ph domain.ProjectPhase) error
	UpdatePhase(ctx context.Context, ph domain.ProjectPhase) error
	DeletePhase(ctx context.Context, id string) error
	// NextPosition returns the creation ordinal for a new phase in the project.
	NextPosition(ctx context.Context, projectID string) (int, error)
	// AppendTransition stores rec and assigns rec.ID.
	AppendTransition(ctx context.Context, rec *domain.PhaseTransition) error
}

type Store interface {
	View(ctx context.Context, fn func(Reader) error) error
	// Update runs fn as the only writer for projectID. An empty projectID
	// locks the global key used for project creation.
	Update(ctx context.Context, projectID string, fn func(Writer) error) error
	Close() error
}

// Locks hands out one mutex per key. Adapters use it to serialize writers of
// the same project while letting different projects proceed in parallel.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *Locks) Lock(key string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
