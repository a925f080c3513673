package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"phaseline/internal/domain"
	"phaseline/internal/store"
)

// ErrNotFound aliases the port error so callers can match either.
var ErrNotFound = store.ErrNotFound

// Fixed-width UTC layout; stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repo is the SQLite implementation of store.Store.
type Repo struct {
	DB    *sql.DB
	locks store.Locks
}

var _ store.Store = (*Repo)(nil)

func New(db *sql.DB) *Repo {
	// modernc sqlite in shared-cache mode reports table locks instead of
	// waiting, so all access goes through one connection.
	db.SetMaxOpenConns(1)
	return &Repo{DB: db}
}

func (r *Repo) Close() error {
	return r.DB.Close()
}

func (r *Repo) View(ctx context.Context, fn func(store.Reader) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(txRepo{tx: tx})
}

func (r *Repo) Update(ctx context.Context, projectID string, fn func(store.Writer) error) error {
	unlock := r.locks.Lock(projectID)
	defer unlock()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(txRepo{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type txRepo struct {
	tx *sql.Tx
}

func formatTime(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(tsLayout, s)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r txRepo) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := r.tx.ExecContext(ctx, `INSERT INTO projects(id,name,methodology,current_phase_id,created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.Name, string(p.Methodology), nullableStringPtr(p.CurrentPhaseID), formatTime(p.CreatedAt))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (domain.Project, error) {
	var (
		p         domain.Project
		current   sql.NullString
		createdAt string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Methodology, &current, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, ErrNotFound
		}
		return p, err
	}
	if current.Valid {
		id := current.String
		p.CurrentPhaseID = &id
	}
	ts, err := parseTime(createdAt)
	if err != nil {
		return p, fmt.Errorf("project %s created_at: %w", p.ID, err)
	}
	p.CreatedAt = ts
	return p, nil
}

func (r txRepo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return scanProject(r.tx.QueryRowContext(ctx, `SELECT id,name,methodology,current_phase_id,created_at FROM projects WHERE id=?`, id))
}

func (r txRepo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT id,name,methodology,current_phase_id,created_at FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r txRepo) SetCurrentPhase(ctx context.Context, projectID string, phaseID *string) error {
	res, err := r.tx.ExecContext(ctx, `UPDATE projects SET current_phase_id=? WHERE id=?`, nullableStringPtr(phaseID), projectID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
