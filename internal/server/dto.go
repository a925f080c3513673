package server

import (
	"time"

	"phaseline/internal/domain"
)

// Request payloads

type CreateProjectRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name" minLength:"1"`
	Methodology string `json:"methodology" enum:"agile,scrum,kanban,waterfall,lean,hybrid"`
}

type SetCurrentPhaseRequest struct {
	PhaseID string `json:"phase_id" minLength:"1"`
}

// CreatePhaseRequest either names a catalog template of the project's
// methodology or describes a phase by hand.
type CreatePhaseRequest struct {
	Template          string   `json:"template,omitempty"`
	Name              string   `json:"name,omitempty"`
	Description       string   `json:"description,omitempty"`
	EstimatedDuration int      `json:"estimated_duration,omitempty" minimum:"0"`
	Prerequisites     []string `json:"prerequisites,omitempty"`
	Deliverables      []string `json:"deliverables,omitempty"`
	ExitCriteria      []string `json:"exit_criteria,omitempty"`
}

type UpdatePhaseRequest struct {
	Name              *string    `json:"name,omitempty"`
	Description       *string    `json:"description,omitempty"`
	Status            *string    `json:"status,omitempty" enum:"not_started,in_progress,completed,blocked,on_hold"`
	StartDate         *time.Time `json:"start_date,omitempty"`
	EndDate           *time.Time `json:"end_date,omitempty"`
	EstimatedDuration *int       `json:"estimated_duration,omitempty"`
	ActualDuration    *int       `json:"actual_duration,omitempty"`
	Progress          *int       `json:"progress,omitempty"`
	Prerequisites     *[]string  `json:"prerequisites,omitempty"`
	Deliverables      *[]string  `json:"deliverables,omitempty"`
	ExitCriteria      *[]string  `json:"exit_criteria,omitempty"`
	AssignedTeam      *[]string  `json:"assigned_team,omitempty"`
}

type SetStatusRequest struct {
	Status string `json:"status" enum:"not_started,in_progress,completed,blocked,on_hold"`
}

type TransitionRequest struct {
	ToPhase      string   `json:"to_phase" minLength:"1"`
	Reason       string   `json:"reason" minLength:"1"`
	Acknowledged []string `json:"acknowledged,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

type AddBlockerRequest struct {
	Title       string  `json:"title" minLength:"1"`
	Description string  `json:"description,omitempty"`
	Severity    string  `json:"severity,omitempty" enum:"low,medium,high,critical"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
}

type ResolveBlockerRequest struct {
	Resolution string `json:"resolution" minLength:"1"`
}

type AddRiskRequest struct {
	Title       string `json:"title" minLength:"1"`
	Description string `json:"description,omitempty"`
	Probability string `json:"probability" enum:"low,medium,high"`
	Impact      string `json:"impact" enum:"low,medium,high"`
	Mitigation  string `json:"mitigation,omitempty"`
	Owner       string `json:"owner,omitempty"`
}

type SetRiskStatusRequest struct {
	Status string `json:"status" enum:"open,mitigated,closed"`
}

type AddArtifactRequest struct {
	Name        string  `json:"name" minLength:"1"`
	Type        string  `json:"type,omitempty" enum:"document,code,design,test,other"`
	Description string  `json:"description,omitempty"`
	URL         *string `json:"url,omitempty"`
	Size        *int64  `json:"size,omitempty"`
}

type AssignTeamRequest struct {
	Members []string `json:"members"`
}

type SetMetricRequest struct {
	Value float64 `json:"value"`
}

// Responses

type MethodologiesResponse struct {
	Items []domain.Methodology `json:"items"`
}

type TemplatesResponse struct {
	Methodology domain.Methodology     `json:"methodology"`
	Items       []domain.PhaseTemplate `json:"items"`
}

type OptionsResponse struct {
	Methodology domain.Methodology        `json:"methodology"`
	Phase       string                    `json:"phase"`
	Terminal    bool                      `json:"terminal"`
	Items       []domain.TransitionOption `json:"items"`
}

type PhaseOptionsResponse struct {
	Phase       domain.ProjectPhase       `json:"phase"`
	Methodology domain.Methodology        `json:"methodology"`
	Terminal    bool                      `json:"terminal"`
	Items       []domain.TransitionOption `json:"items"`
}

type ValidateResponse struct {
	Valid   bool                    `json:"valid"`
	Missing []string                `json:"missing"`
	Option  domain.TransitionOption `json:"option"`
}

type ProjectsResponse struct {
	Items []domain.Project `json:"items"`
}

type PhasesResponse struct {
	Items []domain.ProjectPhase `json:"items"`
}

type AuditResponse struct {
	Items []domain.PhaseTransition `json:"items"`
}

func ptrPhaseStatus(s *string) *domain.PhaseStatus {
	if s == nil {
		return nil
	}
	st := domain.PhaseStatus(*s)
	return &st
}
