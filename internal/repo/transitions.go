package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"phaseline/internal/domain"
)

func (r txRepo) AppendTransition(ctx context.Context, rec *domain.PhaseTransition) error {
	reqs, err := marshalJSON(nonNilStrings(rec.Metadata.Requirements))
	if err != nil {
		return err
	}
	res, err := r.tx.ExecContext(ctx, `INSERT INTO phase_transitions(project_id,from_phase,to_phase,reason,ts,notes,triggered_by,requirements_json,methodology)
VALUES (?,?,?,?,?,?,?,?,?)`,
		rec.ProjectID, rec.FromPhase, rec.ToPhase, rec.Reason, formatTime(rec.Timestamp), rec.Notes, rec.TriggeredBy, reqs, string(rec.Metadata.Methodology))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

func (r txRepo) ListTransitions(ctx context.Context, projectID string) ([]domain.PhaseTransition, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT id,project_id,from_phase,to_phase,reason,ts,notes,triggered_by,requirements_json,methodology
FROM phase_transitions WHERE project_id=? ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PhaseTransition
	for rows.Next() {
		var (
			rec  domain.PhaseTransition
			ts   string
			reqs string
		)
		if err := rows.Scan(&rec.ID, &rec.ProjectID, &rec.FromPhase, &rec.ToPhase, &rec.Reason, &ts, &rec.Notes, &rec.TriggeredBy, &reqs, &rec.Metadata.Methodology); err != nil {
			return nil, err
		}
		if rec.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("transition %d ts: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(reqs), &rec.Metadata.Requirements); err != nil {
			return nil, fmt.Errorf("transition %d requirements: %w", rec.ID, err)
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
