package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"phaseline/internal/audit"
	"phaseline/internal/config"
	"phaseline/internal/domain"
	"phaseline/internal/logging"
	"phaseline/internal/metrics"
	"phaseline/internal/store"
)

// Engine runs phase and transition operations against a store.Store. All
// mutating operations for a project go through Store.Update, which serializes
// them; reads go through Store.View snapshots.
type Engine struct {
	Store   store.Store
	Audit   audit.Log
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
	NewID   func() string
}

func New(s store.Store, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default("")
	}
	return Engine{
		Store:  s,
		Config: cfg,
		Logger: zap.NewNop(),
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e Engine) log() *zap.Logger {
	return logging.OrNop(e.Logger)
}

func (e Engine) resetProgressOnRestart() bool {
	return e.Config != nil && e.Config.Engine.ResetProgressOnRestart
}

func (e Engine) seedTemplates() bool {
	return e.Config == nil || e.Config.Engine.SeedTemplates
}

func (e Engine) view(ctx context.Context, fn func(store.Reader) error) error {
	if e.Store == nil {
		return errors.New("engine: store not configured")
	}
	return e.Store.View(ctx, fn)
}

func (e Engine) update(ctx context.Context, projectID string, fn func(store.Writer) error) error {
	if e.Store == nil {
		return errors.New("engine: store not configured")
	}
	return e.Store.Update(ctx, projectID, fn)
}

func phaseNotFound(err error, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w %s", domain.ErrUnknownPhase, id)
	}
	return err
}

func projectNotFound(err error, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w %s", domain.ErrUnknownProject, id)
	}
	return err
}

// loadPhase reads a phase and its project in one snapshot.
func loadPhase(ctx context.Context, r store.Reader, phaseID string) (domain.ProjectPhase, domain.Project, error) {
	ph, err := r.GetPhase(ctx, phaseID)
	if err != nil {
		return ph, domain.Project{}, phaseNotFound(err, phaseID)
	}
	p, err := r.GetProject(ctx, ph.ProjectID)
	if err != nil {
		return ph, p, projectNotFound(err, ph.ProjectID)
	}
	return ph, p, nil
}

// projectOf resolves the project a phase belongs to, so the caller can take
// that project's write lock.
func (e Engine) projectOf(ctx context.Context, phaseID string) (string, error) {
	var projectID string
	err := e.view(ctx, func(r store.Reader) error {
		ph, err := r.GetPhase(ctx, phaseID)
		if err != nil {
			return phaseNotFound(err, phaseID)
		}
		projectID = ph.ProjectID
		return nil
	})
	return projectID, err
}

// mutatePhase applies fn to a fresh copy of the phase under the project's
// write lock and persists the result.
func (e Engine) mutatePhase(ctx context.Context, phaseID string, fn func(w store.Writer, ph *domain.ProjectPhase, p domain.Project) error) (domain.ProjectPhase, error) {
	projectID, err := e.projectOf(ctx, phaseID)
	if err != nil {
		return domain.ProjectPhase{}, err
	}
	var out domain.ProjectPhase
	err = e.update(ctx, projectID, func(w store.Writer) error {
		ph, p, err := loadPhase(ctx, w, phaseID)
		if err != nil {
			return err
		}
		if err := fn(w, &ph, p); err != nil {
			return err
		}
		if err := w.UpdatePhase(ctx, ph); err != nil {
			return phaseNotFound(err, phaseID)
		}
		out = ph
		return nil
	})
	return out, err
}
