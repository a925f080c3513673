package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"phaseline/internal/domain"
)

const phaseColumns = `id,project_id,position,name,description,status,start_date,end_date,estimated_duration,actual_duration,progress,
prerequisites_json,deliverables_json,exit_criteria_json,assigned_team_json,blockers_json,risks_json,artifacts_json,metrics_json`

// phaseJSON holds the encoded collection columns of a phase row.
type phaseJSON struct {
	prerequisites, deliverables, exitCriteria, team, blockers, risks, artifacts, metrics string
}

func encodePhase(ph domain.ProjectPhase) (phaseJSON, error) {
	var (
		enc phaseJSON
		err error
	)
	fields := []struct {
		dst *string
		v   any
	}{
		{&enc.prerequisites, nonNilStrings(ph.Prerequisites)},
		{&enc.deliverables, nonNilStrings(ph.Deliverables)},
		{&enc.exitCriteria, nonNilStrings(ph.ExitCriteria)},
		{&enc.team, nonNilStrings(ph.AssignedTeam)},
		{&enc.blockers, nonNilSlice(ph.Blockers)},
		{&enc.risks, nonNilSlice(ph.Risks)},
		{&enc.artifacts, nonNilSlice(ph.Artifacts)},
		{&enc.metrics, nonNilMap(ph.Metrics)},
	}
	for _, f := range fields {
		if *f.dst, err = marshalJSON(f.v); err != nil {
			return enc, fmt.Errorf("encode phase %s: %w", ph.ID, err)
		}
	}
	return enc, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

func (r txRepo) InsertPhase(ctx context.Context, ph domain.ProjectPhase) error {
	enc, err := encodePhase(ph)
	if err != nil {
		return err
	}
	_, err = r.tx.ExecContext(ctx, `INSERT INTO phases(`+phaseColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		ph.ID, ph.ProjectID, ph.Position, ph.Name, ph.Description, string(ph.Status),
		nullableTime(ph.StartDate), nullableTime(ph.EndDate), ph.EstimatedDuration, ph.ActualDuration, ph.Progress,
		enc.prerequisites, enc.deliverables, enc.exitCriteria, enc.team, enc.blockers, enc.risks, enc.artifacts, enc.metrics)
	return err
}

func (r txRepo) UpdatePhase(ctx context.Context, ph domain.ProjectPhase) error {
	enc, err := encodePhase(ph)
	if err != nil {
		return err
	}
	res, err := r.tx.ExecContext(ctx, `UPDATE phases SET name=?,description=?,status=?,start_date=?,end_date=?,estimated_duration=?,actual_duration=?,progress=?,
prerequisites_json=?,deliverables_json=?,exit_criteria_json=?,assigned_team_json=?,blockers_json=?,risks_json=?,artifacts_json=?,metrics_json=? WHERE id=?`,
		ph.Name, ph.Description, string(ph.Status), nullableTime(ph.StartDate), nullableTime(ph.EndDate),
		ph.EstimatedDuration, ph.ActualDuration, ph.Progress,
		enc.prerequisites, enc.deliverables, enc.exitCriteria, enc.team, enc.blockers, enc.risks, enc.artifacts, enc.metrics,
		ph.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r txRepo) DeletePhase(ctx context.Context, id string) error {
	res, err := r.tx.ExecContext(ctx, `DELETE FROM phases WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r txRepo) NextPosition(ctx context.Context, projectID string) (int, error) {
	var next int
	err := r.tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position)+1, 0) FROM phases WHERE project_id=?`, projectID).Scan(&next)
	return next, err
}

func scanPhase(row rowScanner) (domain.ProjectPhase, error) {
	var (
		ph         domain.ProjectPhase
		start, end sql.NullString
		enc        phaseJSON
	)
	err := row.Scan(&ph.ID, &ph.ProjectID, &ph.Position, &ph.Name, &ph.Description, &ph.Status, &start, &end,
		&ph.EstimatedDuration, &ph.ActualDuration, &ph.Progress,
		&enc.prerequisites, &enc.deliverables, &enc.exitCriteria, &enc.team, &enc.blockers, &enc.risks, &enc.artifacts, &enc.metrics)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ph, ErrNotFound
		}
		return ph, err
	}
	if ph.StartDate, err = parseNullableTime(start); err != nil {
		return ph, fmt.Errorf("phase %s start_date: %w", ph.ID, err)
	}
	if ph.EndDate, err = parseNullableTime(end); err != nil {
		return ph, fmt.Errorf("phase %s end_date: %w", ph.ID, err)
	}
	decode := []struct {
		src string
		dst any
	}{
		{enc.prerequisites, &ph.Prerequisites},
		{enc.deliverables, &ph.Deliverables},
		{enc.exitCriteria, &ph.ExitCriteria},
		{enc.team, &ph.AssignedTeam},
		{enc.blockers, &ph.Blockers},
		{enc.risks, &ph.Risks},
		{enc.artifacts, &ph.Artifacts},
		{enc.metrics, &ph.Metrics},
	}
	for _, d := range decode {
		if err := json.Unmarshal([]byte(d.src), d.dst); err != nil {
			return ph, fmt.Errorf("decode phase %s: %w", ph.ID, err)
		}
	}
	return ph, nil
}

func (r txRepo) GetPhase(ctx context.Context, id string) (domain.ProjectPhase, error) {
	return scanPhase(r.tx.QueryRowContext(ctx, `SELECT `+phaseColumns+` FROM phases WHERE id=?`, id))
}

func (r txRepo) ListPhases(ctx context.Context, projectID string) ([]domain.ProjectPhase, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT `+phaseColumns+` FROM phases WHERE project_id=? ORDER BY position, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ProjectPhase
	for rows.Next() {
		ph, err := scanPhase(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, ph)
	}
	return res, rows.Err()
}
