// Package methodology holds the static phase catalog and transition rule
// tables for each supported methodology.
//
// Both tables are closed: every methodology is enumerated, templates are
// listed in lifecycle order, and callers only ever receive copies.
package methodology

import (
	"fmt"

	"phaseline/internal/domain"
)

var catalog = map[domain.Methodology][]domain.PhaseTemplate{
	domain.Agile: {
		{
			Name:              "Sprint Planning",
			Description:       "Select backlog items and agree on the sprint goal.",
			EstimatedDuration: 8,
			Prerequisites:     []string{"Product backlog prioritized", "Team availability known"},
			Deliverables:      []string{"Sprint backlog", "Sprint goal"},
			ExitCriteria:      []string{"Sprint backlog defined", "Team capacity confirmed"},
		},
		{
			Name:              "Sprint Active",
			Description:       "Build the increment with daily syncs.",
			EstimatedDuration: 80,
			Prerequisites:     []string{"Sprint backlog defined"},
			Deliverables:      []string{"Working increment", "Updated burndown"},
			ExitCriteria:      []string{"All sprint items addressed"},
		},
		{
			Name:              "Sprint Review",
			Description:       "Demonstrate the increment and gather stakeholder feedback.",
			EstimatedDuration: 4,
			Prerequisites:     []string{"Increment ready for demo"},
			Deliverables:      []string{"Review notes", "Updated product backlog"},
			ExitCriteria:      []string{"Stakeholder feedback captured"},
		},
		{
			Name:              "Sprint Retrospective",
			Description:       "Inspect how the team worked and pick improvements.",
			EstimatedDuration: 3,
			Prerequisites:     []string{"Sprint review held"},
			Deliverables:      []string{"Improvement action items"},
			ExitCriteria:      []string{"Action items recorded"},
		},
		{
			Name:              "Release",
			Description:       "Ship accumulated increments to users.",
			EstimatedDuration: 16,
			Prerequisites:     []string{"Release criteria met"},
			Deliverables:      []string{"Release notes", "Deployed build"},
			ExitCriteria:      []string{"Release verified in production"},
		},
	},
	domain.Scrum: {
		{
			Name:              "Backlog Refinement",
			Description:       "Clarify, split and estimate upcoming product backlog items.",
			EstimatedDuration: 6,
			Prerequisites:     []string{"Product goal defined"},
			Deliverables:      []string{"Refined backlog items", "Estimates"},
			ExitCriteria:      []string{"Top backlog items estimated", "Acceptance criteria defined"},
		},
		{
			Name:              "Sprint Planning",
			Description:       "Craft the sprint goal and sprint backlog with the Scrum Team.",
			EstimatedDuration: 8,
			Prerequisites:     []string{"Refined backlog items"},
			Deliverables:      []string{"Sprint goal", "Sprint backlog"},
			ExitCriteria:      []string{"Sprint backlog committed"},
		},
		{
			Name:              "Sprint Execution",
			Description:       "Developers work toward the sprint goal within the timebox.",
			EstimatedDuration: 80,
			Prerequisites:     []string{"Sprint goal defined"},
			Deliverables:      []string{"Done increment", "Daily scrum notes"},
			ExitCriteria:      []string{"Definition of Done applied", "Increment integrated"},
		},
		{
			Name:              "Sprint Review",
			Description:       "Inspect the increment with stakeholders and adapt the backlog.",
			EstimatedDuration: 4,
			Prerequisites:     []string{"Done increment"},
			Deliverables:      []string{"Adapted product backlog"},
			ExitCriteria:      []string{"Increment inspected", "Backlog adapted"},
		},
		{
			Name:              "Sprint Retrospective",
			Description:       "Plan ways to increase quality and effectiveness.",
			EstimatedDuration: 3,
			Prerequisites:     []string{"Sprint review held"},
			Deliverables:      []string{"Selected improvements"},
			ExitCriteria:      []string{"Improvements selected"},
		},
		{
			Name:              "Product Release",
			Description:       "Release the product increment to the market.",
			EstimatedDuration: 16,
			Prerequisites:     []string{"Product Owner sign-off"},
			Deliverables:      []string{"Released product", "Release notes"},
			ExitCriteria:      []string{"Release checklist complete"},
		},
	},
	domain.Kanban: {
		{
			Name:              "Backlog",
			Description:       "Collect and order incoming work items.",
			EstimatedDuration: 4,
			Prerequisites:     []string{},
			Deliverables:      []string{"Ordered backlog"},
			ExitCriteria:      []string{"Item prioritized"},
		},
		{
			Name:              "To Do",
			Description:       "Committed items waiting for capacity.",
			EstimatedDuration: 2,
			Prerequisites:     []string{"Item prioritized"},
			Deliverables:      []string{"Ready work item"},
			ExitCriteria:      []string{"Assignee set", "WIP limit respected"},
		},
		{
			Name:              "In Progress",
			Description:       "Active development on the work item.",
			EstimatedDuration: 24,
			Prerequisites:     []string{"Assignee set"},
			Deliverables:      []string{"Implemented change"},
			ExitCriteria:      []string{"Code committed", "Unit tests passing"},
		},
		{
			Name:              "Code Review",
			Description:       "Peer review of the implemented change.",
			EstimatedDuration: 4,
			Prerequisites:     []string{"Code committed"},
			Deliverables:      []string{"Approved change"},
			ExitCriteria:      []string{"Review approved", "Comments resolved"},
		},
		{
			Name:              "Testing",
			Description:       "Verify the change against acceptance criteria.",
			EstimatedDuration: 8,
			Prerequisites:     []string{"Review approved"},
			Deliverables:      []string{"Test report"},
			ExitCriteria:      []string{"All tests passing", "Acceptance criteria verified"},
		},
		{
			Name:              "Done",
			Description:       "Work item delivered.",
			EstimatedDuration: 0,
			Prerequisites:     []string{"Acceptance criteria verified"},
			Deliverables:      []string{"Delivered work item"},
			ExitCriteria:      []string{},
		},
	},
	domain.Waterfall: {
		{
			Name:              "Requirements",
			Description:       "Gather and document complete system requirements.",
			EstimatedDuration: 80,
			Prerequisites:     []string{"Project charter approved"},
			Deliverables:      []string{"Requirements specification", "Use case catalogue"},
			ExitCriteria:      []string{"Requirements document signed off", "Stakeholder approval obtained"},
		},
		{
			Name:              "Design",
			Description:       "Define architecture and detailed system design.",
			EstimatedDuration: 120,
			Prerequisites:     []string{"Requirements document signed off"},
			Deliverables:      []string{"Architecture document", "Detailed design"},
			ExitCriteria:      []string{"Architecture document complete", "Design review passed"},
		},
		{
			Name:              "Implementation",
			Description:       "Build the system according to the approved design.",
			EstimatedDuration: 320,
			Prerequisites:     []string{"Design review passed"},
			Deliverables:      []string{"Source code", "Unit tests"},
			ExitCriteria:      []string{"All features implemented", "Code review complete"},
		},
		{
			Name:              "Testing",
			Description:       "System, integration and user acceptance testing.",
			EstimatedDuration: 160,
			Prerequisites:     []string{"All features implemented"},
			Deliverables:      []string{"Test results", "Defect log"},
			ExitCriteria:      []string{"All test cases passed", "No critical defects open", "UAT sign-off"},
		},
		{
			Name:              "Deployment",
			Description:       "Install the system in production.",
			EstimatedDuration: 40,
			Prerequisites:     []string{"UAT sign-off"},
			Deliverables:      []string{"Production release", "Deployment runbook"},
			ExitCriteria:      []string{"Deployment verified", "Handover documentation complete"},
		},
		{
			Name:              "Maintenance",
			Description:       "Operate, support and patch the running system.",
			EstimatedDuration: 0,
			Prerequisites:     []string{"Handover documentation complete"},
			Deliverables:      []string{"Support tickets resolved", "Patch releases"},
			ExitCriteria:      []string{},
		},
	},
	domain.Lean: {
		{
			Name:              "Identify Value",
			Description:       "Define value from the customer's perspective.",
			EstimatedDuration: 16,
			Prerequisites:     []string{"Customer segment known"},
			Deliverables:      []string{"Customer value statement"},
			ExitCriteria:      []string{"Customer value statement agreed"},
		},
		{
			Name:              "Map Value Stream",
			Description:       "Map every step that delivers the value and mark waste.",
			EstimatedDuration: 24,
			Prerequisites:     []string{"Customer value statement agreed"},
			Deliverables:      []string{"Current state map", "Waste inventory"},
			ExitCriteria:      []string{"Current state map complete", "Waste identified"},
		},
		{
			Name:              "Create Flow",
			Description:       "Remove interruptions so value flows smoothly.",
			EstimatedDuration: 40,
			Prerequisites:     []string{"Waste identified"},
			Deliverables:      []string{"Future state map"},
			ExitCriteria:      []string{"Bottlenecks removed", "Batch sizes reduced"},
		},
		{
			Name:              "Establish Pull",
			Description:       "Let downstream demand pull work through the stream.",
			EstimatedDuration: 24,
			Prerequisites:     []string{"Bottlenecks removed"},
			Deliverables:      []string{"Pull signals", "WIP limits"},
			ExitCriteria:      []string{"Pull signals defined", "WIP limits set"},
		},
		{
			Name:              "Seek Perfection",
			Description:       "Continuously improve the stream.",
			EstimatedDuration: 16,
			Prerequisites:     []string{"WIP limits set"},
			Deliverables:      []string{"Improvement backlog"},
			ExitCriteria:      []string{"Improvement metrics reviewed"},
		},
	},
	domain.Hybrid: {
		{
			Name:              "Initiation",
			Description:       "Establish the business case and project charter.",
			EstimatedDuration: 24,
			Prerequisites:     []string{"Business case drafted"},
			Deliverables:      []string{"Project charter", "Stakeholder register"},
			ExitCriteria:      []string{"Project charter approved", "Stakeholders identified"},
		},
		{
			Name:              "Planning",
			Description:       "Baseline milestones and prepare the iteration backlog.",
			EstimatedDuration: 40,
			Prerequisites:     []string{"Project charter approved"},
			Deliverables:      []string{"Milestone plan", "Iteration backlog"},
			ExitCriteria:      []string{"Milestones defined", "Iteration backlog prepared"},
		},
		{
			Name:              "Iterative Development",
			Description:       "Deliver features in short iterations inside the milestone plan.",
			EstimatedDuration: 240,
			Prerequisites:     []string{"Iteration backlog prepared"},
			Deliverables:      []string{"Iteration increments", "Iteration reviews"},
			ExitCriteria:      []string{"Planned iterations delivered", "Increment demo accepted"},
		},
		{
			Name:              "Integration & Testing",
			Description:       "Integrate increments and run system-level tests.",
			EstimatedDuration: 80,
			Prerequisites:     []string{"Planned iterations delivered"},
			Deliverables:      []string{"Integrated build", "System test report"},
			ExitCriteria:      []string{"System tests passed", "Performance benchmarks met"},
		},
		{
			Name:              "Deployment",
			Description:       "Roll the integrated system out to production.",
			EstimatedDuration: 24,
			Prerequisites:     []string{"System tests passed"},
			Deliverables:      []string{"Production release", "Training material"},
			ExitCriteria:      []string{"Production deployment verified", "User training delivered"},
		},
		{
			Name:              "Closure",
			Description:       "Formally close the project and capture lessons learned.",
			EstimatedDuration: 8,
			Prerequisites:     []string{"Production deployment verified"},
			Deliverables:      []string{"Closure report", "Lessons learned"},
			ExitCriteria:      []string{"Sponsor acceptance"},
		},
	},
}

// Templates returns the ordered phase templates of a methodology.
func Templates(m domain.Methodology) ([]domain.PhaseTemplate, error) {
	templates, ok := catalog[m]
	if !ok {
		return nil, fmt.Errorf("%w %q", domain.ErrUnknownMethodology, m)
	}
	res := make([]domain.PhaseTemplate, len(templates))
	for i, t := range templates {
		res[i] = CloneTemplate(t)
	}
	return res, nil
}

// Template looks up a single template by phase name.
func Template(m domain.Methodology, name string) (domain.PhaseTemplate, error) {
	templates, ok := catalog[m]
	if !ok {
		return domain.PhaseTemplate{}, fmt.Errorf("%w %q", domain.ErrUnknownMethodology, m)
	}
	for _, t := range templates {
		if t.Name == name {
			return CloneTemplate(t), nil
		}
	}
	return domain.PhaseTemplate{}, fmt.Errorf("%w: no %s template named %q", domain.ErrUnknownPhase, m, name)
}

// CloneTemplate deep-copies a template so callers cannot mutate the catalog.
func CloneTemplate(t domain.PhaseTemplate) domain.PhaseTemplate {
	t.Prerequisites = cloneStrings(t.Prerequisites)
	t.Deliverables = cloneStrings(t.Deliverables)
	t.ExitCriteria = cloneStrings(t.ExitCriteria)
	return t
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
