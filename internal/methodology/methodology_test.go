package methodology_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phaseline/internal/domain"
	"phaseline/internal/methodology"
)

type pair struct{ to, reason string }

func pairs(options []domain.TransitionOption) []pair {
	out := make([]pair, 0, len(options))
	for _, o := range options {
		out = append(out, pair{o.ToPhase, o.Reason})
	}
	return out
}

func TestTemplatesOrdered(t *testing.T) {
	want := map[domain.Methodology][]string{
		domain.Agile:     {"Sprint Planning", "Sprint Active", "Sprint Review", "Sprint Retrospective", "Release"},
		domain.Scrum:     {"Backlog Refinement", "Sprint Planning", "Sprint Execution", "Sprint Review", "Sprint Retrospective", "Product Release"},
		domain.Kanban:    {"Backlog", "To Do", "In Progress", "Code Review", "Testing", "Done"},
		domain.Waterfall: {"Requirements", "Design", "Implementation", "Testing", "Deployment", "Maintenance"},
		domain.Lean:      {"Identify Value", "Map Value Stream", "Create Flow", "Establish Pull", "Seek Perfection"},
		domain.Hybrid:    {"Initiation", "Planning", "Iterative Development", "Integration & Testing", "Deployment", "Closure"},
	}
	for _, m := range domain.Methodologies() {
		templates, err := methodology.Templates(m)
		require.NoError(t, err, m)
		var names []string
		for _, tpl := range templates {
			names = append(names, tpl.Name)
		}
		assert.Equal(t, want[m], names, m)
	}
}

func TestTemplatesUnknownMethodology(t *testing.T) {
	_, err := methodology.Templates("crystal")
	require.ErrorIs(t, err, domain.ErrUnknownMethodology)

	_, err = methodology.AvailableTransitions("crystal", "Backlog")
	require.ErrorIs(t, err, domain.ErrUnknownMethodology)
}

func TestTemplatesAreCopies(t *testing.T) {
	first, err := methodology.Templates(domain.Waterfall)
	require.NoError(t, err)
	first[0].Deliverables[0] = "mutated"
	first[0].Name = "mutated"

	again, err := methodology.Templates(domain.Waterfall)
	require.NoError(t, err)
	assert.Equal(t, "Requirements", again[0].Name)
	assert.Equal(t, "Requirements specification", again[0].Deliverables[0])
}

func TestTemplateLookup(t *testing.T) {
	tpl, err := methodology.Template(domain.Kanban, "Code Review")
	require.NoError(t, err)
	assert.Equal(t, []string{"Review approved", "Comments resolved"}, tpl.ExitCriteria)

	_, err = methodology.Template(domain.Kanban, "Deploy")
	require.ErrorIs(t, err, domain.ErrUnknownPhase)
}

// Every catalog phase is either terminal on purpose or has rules, and every
// option points at a phase the same methodology defines.
func TestRuleTablesCoverCatalog(t *testing.T) {
	terminal := map[domain.Methodology]string{
		domain.Agile:     "Release",
		domain.Scrum:     "Product Release",
		domain.Kanban:    "Done",
		domain.Waterfall: "Maintenance",
		domain.Hybrid:    "Closure",
	}
	for _, m := range domain.Methodologies() {
		templates, err := methodology.Templates(m)
		require.NoError(t, err)
		names := map[string]bool{}
		for _, tpl := range templates {
			names[tpl.Name] = true
		}
		for _, tpl := range templates {
			options, err := methodology.AvailableTransitions(m, tpl.Name)
			require.NoError(t, err)
			if tpl.Name == terminal[m] {
				assert.Empty(t, options, "%s/%s should be terminal", m, tpl.Name)
				assert.True(t, methodology.Terminal(m, tpl.Name))
				continue
			}
			assert.NotEmpty(t, options, "%s/%s has no rules", m, tpl.Name)
			for _, o := range options {
				assert.True(t, names[o.ToPhase], "%s/%s -> unknown phase %q", m, tpl.Name, o.ToPhase)
				assert.NotEmpty(t, o.Reason)
				assert.NotEmpty(t, o.Description)
				assert.NotEmpty(t, o.Requirements)
			}
		}
	}
}

func TestAvailableTransitionsLiterals(t *testing.T) {
	cases := []struct {
		m     domain.Methodology
		phase string
		want  []pair
	}{
		{domain.Agile, "Sprint Planning", []pair{{"Sprint Active", "Start Sprint"}, {"Sprint Planning", "Restart Planning"}}},
		{domain.Agile, "Sprint Active", []pair{{"Sprint Review", "Complete Sprint"}, {"Sprint Planning", "Abort Sprint"}}},
		{domain.Kanban, "In Progress", []pair{{"Code Review", "Development Complete"}, {"To Do", "Blocked/Paused"}}},
		{domain.Kanban, "Testing", []pair{{"Done", "Tests Passed"}, {"In Progress", "Defects Found"}}},
		{domain.Waterfall, "Deployment", []pair{{"Maintenance", "Deployed to Production"}, {"Testing", "Rollback"}}},
		{domain.Lean, "Seek Perfection", []pair{{"Identify Value", "Continuous Improvement"}, {"Seek Perfection", "Kaizen Cycle"}}},
		{domain.Hybrid, "Iterative Development", []pair{
			{"Integration & Testing", "Iterations Complete"},
			{"Iterative Development", "Next Iteration"},
			{"Planning", "Replan"},
		}},
		{domain.Scrum, "Sprint Retrospective", []pair{{"Backlog Refinement", "Next Sprint Cycle"}, {"Product Release", "Release Product"}}},
	}
	for _, tc := range cases {
		options, err := methodology.AvailableTransitions(tc.m, tc.phase)
		require.NoError(t, err)
		assert.Equal(t, tc.want, pairs(options), "%s/%s", tc.m, tc.phase)
	}
}

func TestUnknownPhaseNameIsTerminal(t *testing.T) {
	options, err := methodology.AvailableTransitions(domain.Waterfall, "Maintenance")
	require.NoError(t, err)
	assert.Empty(t, options)

	options, err = methodology.AvailableTransitions(domain.Waterfall, "Nope")
	require.NoError(t, err)
	assert.Empty(t, options)
}

func TestKanbanBlockedPausedOption(t *testing.T) {
	opt, err := methodology.FindOption(domain.Kanban, "In Progress", "To Do", "Blocked/Paused")
	require.NoError(t, err)
	assert.Equal(t, []string{"Blocker documented"}, opt.Requirements)
	assert.NotEmpty(t, opt.Warning)
	assert.True(t, methodology.IsAvailable(domain.Kanban, "In Progress", opt))
}

func TestFindOptionErrors(t *testing.T) {
	_, err := methodology.FindOption(domain.Kanban, "Done", "Backlog", "Reopen")
	require.ErrorIs(t, err, domain.ErrNoTransitionDefined)

	_, err = methodology.FindOption(domain.Kanban, "In Progress", "Done", "Skip")
	require.ErrorIs(t, err, domain.ErrInvalidTransitionOption)
}

func TestIsAvailableRequiresExactOption(t *testing.T) {
	opt, err := methodology.FindOption(domain.Agile, "Sprint Planning", "Sprint Active", "Start Sprint")
	require.NoError(t, err)
	assert.True(t, methodology.IsAvailable(domain.Agile, "Sprint Planning", opt))

	forged := opt
	forged.Requirements = []string{"Sprint goal agreed"}
	assert.False(t, methodology.IsAvailable(domain.Agile, "Sprint Planning", forged))
	assert.False(t, methodology.IsAvailable(domain.Scrum, "Sprint Planning", opt))
}

func TestValidate(t *testing.T) {
	opt, err := methodology.FindOption(domain.Waterfall, "Testing", "Deployment", "Testing Complete")
	require.NoError(t, err)

	require.NoError(t, methodology.Validate(opt, methodology.Acknowledged(
		"UAT sign-off", "All test cases passed", "No critical defects open", "extra item",
	)))

	err = methodology.Validate(opt, methodology.Acknowledged("No critical defects open"))
	var incomplete *domain.IncompleteRequirementsError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []string{"All test cases passed", "UAT sign-off"}, incomplete.Missing)

	// exact match only
	err = methodology.Validate(opt, methodology.Acknowledged("all test cases passed", "No critical defects open", "UAT sign-off"))
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []string{"All test cases passed"}, incomplete.Missing)

	err = methodology.Validate(opt, nil)
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, opt.Requirements, incomplete.Missing)
}
