package methodology

import (
	"fmt"

	"phaseline/internal/domain"
)

type ruleKey struct {
	methodology domain.Methodology
	phase       string
}

type phaseRules struct {
	phase   string
	options []domain.TransitionOption
}

// ruleTables lists, per methodology, the options out of each non-terminal phase.
// A catalog phase absent here is terminal.
var ruleTables = map[domain.Methodology][]phaseRules{
	domain.Agile: {
		{"Sprint Planning", []domain.TransitionOption{
			{
				ToPhase:      "Sprint Active",
				Reason:       "Start Sprint",
				Description:  "Commit to the sprint backlog and begin the sprint.",
				Requirements: []string{"Sprint backlog defined", "Team capacity confirmed", "Sprint goal agreed"},
			},
			{
				ToPhase:      "Sprint Planning",
				Reason:       "Restart Planning",
				Description:  "Discard the current plan and plan again.",
				Requirements: []string{"Planning issues documented"},
				Warning:      "The current sprint plan will be discarded",
			},
		}},
		{"Sprint Active", []domain.TransitionOption{
			{
				ToPhase:      "Sprint Review",
				Reason:       "Complete Sprint",
				Description:  "Close the sprint and present the increment.",
				Requirements: []string{"All sprint items addressed", "Increment ready for demo"},
			},
			{
				ToPhase:      "Sprint Planning",
				Reason:       "Abort Sprint",
				Description:  "Stop the sprint early and return to planning.",
				Requirements: []string{"Abort reason documented", "Product Owner approval"},
				Warning:      "Unfinished sprint work returns to the backlog",
			},
		}},
		{"Sprint Review", []domain.TransitionOption{
			{
				ToPhase:      "Sprint Retrospective",
				Reason:       "Review Complete",
				Description:  "Move on to the team retrospective.",
				Requirements: []string{"Increment demonstrated", "Stakeholder feedback captured"},
			},
		}},
		{"Sprint Retrospective", []domain.TransitionOption{
			{
				ToPhase:      "Sprint Planning",
				Reason:       "Start Next Sprint",
				Description:  "Begin planning the next sprint.",
				Requirements: []string{"Action items recorded"},
			},
			{
				ToPhase:      "Release",
				Reason:       "Release Increment",
				Description:  "Ship the accumulated increments.",
				Requirements: []string{"Release criteria met", "Release notes prepared"},
			},
		}},
	},
	domain.Scrum: {
		{"Backlog Refinement", []domain.TransitionOption{
			{
				ToPhase:      "Sprint Planning",
				Reason:       "Backlog Ready",
				Description:  "Enough refined work exists to plan a sprint.",
				Requirements: []string{"Top backlog items estimated", "Acceptance criteria defined"},
			},
		}},
		{"Sprint Planning", []domain.TransitionOption{
			{
				ToPhase:      "Sprint Execution",
				Reason:       "Commit to Sprint",
				Description:  "Start the sprint timebox.",
				Requirements: []string{"Sprint goal defined", "Sprint backlog committed"},
			},
			{
				ToPhase:      "Backlog Refinement",
				Reason:       "Refine Further",
				Description:  "Backlog items need more refinement before commitment.",
				Requirements: []string{"Refinement gaps identified"},
			},
		}},
		{"Sprint Execution", []domain.TransitionOption{
			{
				ToPhase:      "Sprint Review",
				Reason:       "Sprint Timebox Ended",
				Description:  "The sprint timebox is over; inspect the increment.",
				Requirements: []string{"Definition of Done applied", "Increment integrated"},
			},
			{
				ToPhase:      "Sprint Planning",
				Reason:       "Cancel Sprint",
				Description:  "The Product Owner cancels the sprint.",
				Requirements: []string{"Sprint goal obsolete", "Product Owner decision recorded"},
				Warning:      "Cancelling a sprint discards in-flight work",
			},
		}},
		{"Sprint Review", []domain.TransitionOption{
			{
				ToPhase:      "Sprint Retrospective",
				Reason:       "Review Held",
				Description:  "Proceed to the retrospective.",
				Requirements: []string{"Increment inspected", "Backlog adapted"},
			},
		}},
		{"Sprint Retrospective", []domain.TransitionOption{
			{
				ToPhase:      "Backlog Refinement",
				Reason:       "Next Sprint Cycle",
				Description:  "Start the next sprint cycle.",
				Requirements: []string{"Improvements selected"},
			},
			{
				ToPhase:      "Product Release",
				Reason:       "Release Product",
				Description:  "Release the product increment.",
				Requirements: []string{"Product Owner sign-off", "Release checklist complete"},
			},
		}},
	},
	domain.Kanban: {
		{"Backlog", []domain.TransitionOption{
			{
				ToPhase:      "To Do",
				Reason:       "Prioritized",
				Description:  "Pull the item into the To Do column.",
				Requirements: []string{"Item prioritized", "WIP limit checked"},
			},
		}},
		{"To Do", []domain.TransitionOption{
			{
				ToPhase:      "In Progress",
				Reason:       "Work Started",
				Description:  "Someone starts working on the item.",
				Requirements: []string{"Assignee set", "WIP limit respected"},
			},
		}},
		{"In Progress", []domain.TransitionOption{
			{
				ToPhase:      "Code Review",
				Reason:       "Development Complete",
				Description:  "Hand the change over for review.",
				Requirements: []string{"Code committed", "Unit tests passing"},
			},
			{
				ToPhase:      "To Do",
				Reason:       "Blocked/Paused",
				Description:  "Work cannot continue for now.",
				Requirements: []string{"Blocker documented"},
				Warning:      "Item returns to the To Do column",
			},
		}},
		{"Code Review", []domain.TransitionOption{
			{
				ToPhase:      "Testing",
				Reason:       "Review Approved",
				Description:  "The change passed review.",
				Requirements: []string{"Review approved", "Comments resolved"},
			},
			{
				ToPhase:      "In Progress",
				Reason:       "Changes Requested",
				Description:  "Reviewers asked for changes.",
				Requirements: []string{"Review feedback recorded"},
			},
		}},
		{"Testing", []domain.TransitionOption{
			{
				ToPhase:      "Done",
				Reason:       "Tests Passed",
				Description:  "The item is verified and delivered.",
				Requirements: []string{"All tests passing", "Acceptance criteria verified"},
			},
			{
				ToPhase:      "In Progress",
				Reason:       "Defects Found",
				Description:  "Testing uncovered defects to fix.",
				Requirements: []string{"Defects logged"},
			},
		}},
	},
	domain.Waterfall: {
		{"Requirements", []domain.TransitionOption{
			{
				ToPhase:      "Design",
				Reason:       "Requirements Approved",
				Description:  "Requirements are frozen; start design.",
				Requirements: []string{"Requirements document signed off", "Stakeholder approval obtained"},
			},
		}},
		{"Design", []domain.TransitionOption{
			{
				ToPhase:      "Implementation",
				Reason:       "Design Approved",
				Description:  "Design is approved; start building.",
				Requirements: []string{"Architecture document complete", "Design review passed"},
			},
			{
				ToPhase:      "Requirements",
				Reason:       "Requirements Gap",
				Description:  "Design exposed missing or wrong requirements.",
				Requirements: []string{"Gap analysis documented"},
				Warning:      "Reopening requirements delays every downstream phase",
			},
		}},
		{"Implementation", []domain.TransitionOption{
			{
				ToPhase:      "Testing",
				Reason:       "Code Complete",
				Description:  "All features are built; start system testing.",
				Requirements: []string{"All features implemented", "Code review complete"},
			},
		}},
		{"Testing", []domain.TransitionOption{
			{
				ToPhase:      "Deployment",
				Reason:       "Testing Complete",
				Description:  "The system is ready for production.",
				Requirements: []string{"All test cases passed", "No critical defects open", "UAT sign-off"},
			},
			{
				ToPhase:      "Implementation",
				Reason:       "Defects Found",
				Description:  "Send defects back to development.",
				Requirements: []string{"Defect report filed"},
			},
		}},
		{"Deployment", []domain.TransitionOption{
			{
				ToPhase:      "Maintenance",
				Reason:       "Deployed to Production",
				Description:  "The system is live and handed over to support.",
				Requirements: []string{"Deployment verified", "Handover documentation complete"},
			},
			{
				ToPhase:      "Testing",
				Reason:       "Rollback",
				Description:  "Roll back the release and retest.",
				Requirements: []string{"Rollback plan executed", "Incident report filed"},
				Warning:      "Production is reverted to the previous release",
			},
		}},
	},
	domain.Lean: {
		{"Identify Value", []domain.TransitionOption{
			{
				ToPhase:      "Map Value Stream",
				Reason:       "Value Defined",
				Description:  "Customer value is agreed; map the stream.",
				Requirements: []string{"Customer value statement agreed"},
			},
		}},
		{"Map Value Stream", []domain.TransitionOption{
			{
				ToPhase:      "Create Flow",
				Reason:       "Stream Mapped",
				Description:  "The value stream is mapped; remove waste.",
				Requirements: []string{"Current state map complete", "Waste identified"},
			},
		}},
		{"Create Flow", []domain.TransitionOption{
			{
				ToPhase:      "Establish Pull",
				Reason:       "Flow Established",
				Description:  "Work flows; let demand pull it.",
				Requirements: []string{"Bottlenecks removed", "Batch sizes reduced"},
			},
		}},
		{"Establish Pull", []domain.TransitionOption{
			{
				ToPhase:      "Seek Perfection",
				Reason:       "Pull System Active",
				Description:  "Pull is in place; start improving continuously.",
				Requirements: []string{"Pull signals defined", "WIP limits set"},
			},
		}},
		{"Seek Perfection", []domain.TransitionOption{
			{
				ToPhase:      "Identify Value",
				Reason:       "Continuous Improvement",
				Description:  "Revisit customer value with what was learned.",
				Requirements: []string{"Improvement metrics reviewed"},
			},
			{
				ToPhase:      "Seek Perfection",
				Reason:       "Kaizen Cycle",
				Description:  "Run another improvement cycle.",
				Requirements: []string{"Kaizen event completed"},
			},
		}},
	},
	domain.Hybrid: {
		{"Initiation", []domain.TransitionOption{
			{
				ToPhase:      "Planning",
				Reason:       "Project Approved",
				Description:  "The sponsor approved the project.",
				Requirements: []string{"Project charter approved", "Stakeholders identified"},
			},
		}},
		{"Planning", []domain.TransitionOption{
			{
				ToPhase:      "Iterative Development",
				Reason:       "Plan Baselined",
				Description:  "Milestones are baselined; start iterating.",
				Requirements: []string{"Milestones defined", "Iteration backlog prepared"},
			},
		}},
		{"Iterative Development", []domain.TransitionOption{
			{
				ToPhase:      "Integration & Testing",
				Reason:       "Iterations Complete",
				Description:  "All planned iterations are delivered.",
				Requirements: []string{"Planned iterations delivered", "Increment demo accepted"},
			},
			{
				ToPhase:      "Iterative Development",
				Reason:       "Next Iteration",
				Description:  "Start the next iteration.",
				Requirements: []string{"Iteration review held"},
			},
			{
				ToPhase:      "Planning",
				Reason:       "Replan",
				Description:  "Scope changed enough to rebaseline the plan.",
				Requirements: []string{"Change request approved"},
				Warning:      "Milestones will be rebaselined",
			},
		}},
		{"Integration & Testing", []domain.TransitionOption{
			{
				ToPhase:      "Deployment",
				Reason:       "Integration Verified",
				Description:  "The integrated system is ready to deploy.",
				Requirements: []string{"System tests passed", "Performance benchmarks met"},
			},
			{
				ToPhase:      "Iterative Development",
				Reason:       "Integration Issues",
				Description:  "Integration failures go back to development.",
				Requirements: []string{"Issues logged"},
			},
		}},
		{"Deployment", []domain.TransitionOption{
			{
				ToPhase:      "Closure",
				Reason:       "Go-Live Complete",
				Description:  "The system is live; close the project.",
				Requirements: []string{"Production deployment verified", "User training delivered"},
			},
		}},
	},
}

var registry = buildRegistry()

func buildRegistry() map[ruleKey][]domain.TransitionOption {
	reg := make(map[ruleKey][]domain.TransitionOption)
	for m, tables := range ruleTables {
		for _, pr := range tables {
			key := ruleKey{methodology: m, phase: pr.phase}
			if _, dup := reg[key]; dup {
				panic(fmt.Sprintf("methodology: duplicate rules for %s/%s", m, pr.phase))
			}
			reg[key] = pr.options
		}
	}
	return reg
}

// AvailableTransitions returns the ordered options out of phaseName. An empty
// result means the phase is terminal for the methodology.
func AvailableTransitions(m domain.Methodology, phaseName string) ([]domain.TransitionOption, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w %q", domain.ErrUnknownMethodology, m)
	}
	options := registry[ruleKey{methodology: m, phase: phaseName}]
	res := make([]domain.TransitionOption, len(options))
	for i, o := range options {
		res[i] = CloneOption(o)
	}
	return res, nil
}

// FindOption resolves a caller's (toPhase, reason) selection against the table.
func FindOption(m domain.Methodology, phaseName, toPhase, reason string) (domain.TransitionOption, error) {
	options, err := AvailableTransitions(m, phaseName)
	if err != nil {
		return domain.TransitionOption{}, err
	}
	if len(options) == 0 {
		return domain.TransitionOption{}, fmt.Errorf("%w: %s phase %q is terminal", domain.ErrNoTransitionDefined, m, phaseName)
	}
	for _, o := range options {
		if o.ToPhase == toPhase && o.Reason == reason {
			return o, nil
		}
	}
	return domain.TransitionOption{}, fmt.Errorf("%w: %s phase %q has no option to %q (%s)", domain.ErrInvalidTransitionOption, m, phaseName, toPhase, reason)
}

// IsAvailable reports whether option is, field for field, one of the options
// defined for phaseName.
func IsAvailable(m domain.Methodology, phaseName string, option domain.TransitionOption) bool {
	for _, o := range registry[ruleKey{methodology: m, phase: phaseName}] {
		if o.Equal(option) {
			return true
		}
	}
	return false
}

// Terminal reports whether phaseName has no outgoing options.
func Terminal(m domain.Methodology, phaseName string) bool {
	return len(registry[ruleKey{methodology: m, phase: phaseName}]) == 0
}

func CloneOption(o domain.TransitionOption) domain.TransitionOption {
	o.Requirements = cloneStrings(o.Requirements)
	return o
}
