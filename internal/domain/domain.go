package domain

import (
	"fmt"
	"time"
)

// Methodology selects the phase templates and transition rules a project follows.
type Methodology string

const (
	Agile     Methodology = "agile"
	Scrum     Methodology = "scrum"
	Kanban    Methodology = "kanban"
	Waterfall Methodology = "waterfall"
	Lean      Methodology = "lean"
	Hybrid    Methodology = "hybrid"
)

// Methodologies lists every methodology in declaration order.
func Methodologies() []Methodology {
	return []Methodology{Agile, Scrum, Kanban, Waterfall, Lean, Hybrid}
}

func (m Methodology) Valid() bool {
	switch m {
	case Agile, Scrum, Kanban, Waterfall, Lean, Hybrid:
		return true
	}
	return false
}

// ParseMethodology converts free text into a Methodology.
func ParseMethodology(s string) (Methodology, error) {
	m := Methodology(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w %q: must be one of agile, scrum, kanban, waterfall, lean, hybrid", ErrUnknownMethodology, s)
	}
	return m, nil
}

// PhaseStatus is the lifecycle state of a ProjectPhase.
type PhaseStatus string

const (
	StatusNotStarted PhaseStatus = "not_started"
	StatusInProgress PhaseStatus = "in_progress"
	StatusCompleted  PhaseStatus = "completed"
	StatusBlocked    PhaseStatus = "blocked"
	StatusOnHold     PhaseStatus = "on_hold"
)

func (s PhaseStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusBlocked, StatusOnHold:
		return true
	}
	return false
}

// ParseStatus converts free text into a PhaseStatus.
func ParseStatus(s string) (PhaseStatus, error) {
	st := PhaseStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w %q: must be one of not_started, in_progress, completed, blocked, on_hold", ErrInvalidStatusValue, s)
	}
	return st, nil
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Level rates risk probability and impact.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

func (l Level) Valid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh:
		return true
	}
	return false
}

type RiskStatus string

const (
	RiskOpen      RiskStatus = "open"
	RiskMitigated RiskStatus = "mitigated"
	RiskClosed    RiskStatus = "closed"
)

func (s RiskStatus) Valid() bool {
	switch s {
	case RiskOpen, RiskMitigated, RiskClosed:
		return true
	}
	return false
}

type ArtifactType string

const (
	ArtifactDocument ArtifactType = "document"
	ArtifactCode     ArtifactType = "code"
	ArtifactDesign   ArtifactType = "design"
	ArtifactTest     ArtifactType = "test"
	ArtifactOther    ArtifactType = "other"
)

func (t ArtifactType) Valid() bool {
	switch t {
	case ArtifactDocument, ArtifactCode, ArtifactDesign, ArtifactTest, ArtifactOther:
		return true
	}
	return false
}

// PhaseTemplate is an immutable catalog entry a ProjectPhase is cloned from.
type PhaseTemplate struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	EstimatedDuration int      `json:"estimated_duration"`
	Prerequisites     []string `json:"prerequisites"`
	Deliverables      []string `json:"deliverables"`
	ExitCriteria      []string `json:"exit_criteria"`
}

type Project struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Methodology    Methodology `json:"methodology" enum:"agile,scrum,kanban,waterfall,lean,hybrid"`
	CurrentPhaseID *string     `json:"current_phase_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at" format:"date-time"`
}

type ProjectPhase struct {
	ID                string             `json:"id"`
	ProjectID         string             `json:"project_id"`
	Position          int                `json:"position"`
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	Status            PhaseStatus        `json:"status" enum:"not_started,in_progress,completed,blocked,on_hold"`
	StartDate         *time.Time         `json:"start_date,omitempty" format:"date-time"`
	EndDate           *time.Time         `json:"end_date,omitempty" format:"date-time"`
	EstimatedDuration int                `json:"estimated_duration"`
	ActualDuration    int                `json:"actual_duration"`
	Progress          int                `json:"progress" minimum:"0" maximum:"100"`
	Prerequisites     []string           `json:"prerequisites"`
	Deliverables      []string           `json:"deliverables"`
	ExitCriteria      []string           `json:"exit_criteria"`
	AssignedTeam      []string           `json:"assigned_team"`
	Blockers          []PhaseBlocker     `json:"blockers"`
	Risks             []PhaseRisk        `json:"risks"`
	Artifacts         []PhaseArtifact    `json:"artifacts"`
	Metrics           map[string]float64 `json:"metrics"`
}

type PhaseBlocker struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Severity     Severity   `json:"severity" enum:"low,medium,high,critical"`
	BlockedSince time.Time  `json:"blocked_since" format:"date-time"`
	AssignedTo   *string    `json:"assigned_to,omitempty"`
	Resolution   *string    `json:"resolution,omitempty"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty" format:"date-time"`
}

// Resolved reports whether the blocker carries both a resolution and its timestamp.
func (b PhaseBlocker) Resolved() bool {
	return b.Resolution != nil && b.ResolvedAt != nil
}

type PhaseRisk struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Probability Level      `json:"probability" enum:"low,medium,high"`
	Impact      Level      `json:"impact" enum:"low,medium,high"`
	Mitigation  string     `json:"mitigation,omitempty"`
	Owner       string     `json:"owner,omitempty"`
	Status      RiskStatus `json:"status" enum:"open,mitigated,closed"`
}

type PhaseArtifact struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        ArtifactType `json:"type" enum:"document,code,design,test,other"`
	Description string       `json:"description,omitempty"`
	CreatedBy   string       `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at" format:"date-time"`
	URL         *string      `json:"url,omitempty"`
	Size        *int64       `json:"size,omitempty"`
}

// TransitionOption is one rule-defined way out of a phase.
type TransitionOption struct {
	ToPhase      string   `json:"to_phase"`
	Reason       string   `json:"reason"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements"`
	Warning      string   `json:"warning,omitempty"`
}

// Equal compares options field by field.
func (o TransitionOption) Equal(other TransitionOption) bool {
	if o.ToPhase != other.ToPhase || o.Reason != other.Reason || o.Description != other.Description || o.Warning != other.Warning {
		return false
	}
	if len(o.Requirements) != len(other.Requirements) {
		return false
	}
	for i := range o.Requirements {
		if o.Requirements[i] != other.Requirements[i] {
			return false
		}
	}
	return true
}

type TransitionMetadata struct {
	Requirements []string    `json:"requirements"`
	Methodology  Methodology `json:"methodology"`
}

// PhaseTransition is an audit record; it is never modified once appended.
type PhaseTransition struct {
	ID          int64              `json:"id"`
	ProjectID   string             `json:"project_id"`
	FromPhase   string             `json:"from_phase"`
	ToPhase     string             `json:"to_phase"`
	Reason      string             `json:"reason"`
	Timestamp   time.Time          `json:"timestamp" format:"date-time"`
	Notes       string             `json:"notes,omitempty"`
	TriggeredBy string             `json:"triggered_by"`
	Metadata    TransitionMetadata `json:"metadata"`
}

// ClampProgress bounds a progress value to [0,100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
