package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"phaseline/internal/app"
	"phaseline/internal/config"
	"phaseline/internal/domain"
	"phaseline/internal/engine"
)

func phaseCmd() *cobra.Command {
	ph := &cobra.Command{Use: "phase", Short: "Manage project phases"}
	ph.AddCommand(phaseListCmd())
	ph.AddCommand(phaseShowCmd())
	ph.AddCommand(phaseCreateCmd())
	ph.AddCommand(phaseUpdateCmd())
	ph.AddCommand(phaseDeleteCmd())
	ph.AddCommand(phaseStatusCmd())
	return ph
}

func phaseListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the active project's phases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, cfg *config.Config) error {
				p, err := app.ResolveProject(ctx, e, viper.GetString("project"), cfg)
				if err != nil {
					return err
				}
				phases, err := e.ListPhases(ctx, p.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(phases)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"", "ID", "Name", "Status", "Progress", "Open blockers"})
				for _, ph := range phases {
					marker := ""
					if p.CurrentPhaseID != nil && *p.CurrentPhaseID == ph.ID {
						marker = "*"
					}
					open := 0
					for _, b := range ph.Blockers {
						if !b.Resolved() {
							open++
						}
					}
					tw.AppendRow(table.Row{marker, ph.ID, ph.Name, ph.Status, fmt.Sprintf("%d%%", ph.Progress), open})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func phaseShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <phase-id>",
		Short: "Show a phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				ph, err := e.GetPhase(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(ph)
			})
		},
	}
}

func phaseCreateCmd() *cobra.Command {
	var in engine.PhaseInput
	var template string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a phase from a catalog template or by hand",
		RunE: func(cmd *cobra.Command, args []string) error {
			if template == "" && in.Name == "" {
				return fmt.Errorf("--template or --name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, cfg *config.Config) error {
				p, err := app.ResolveProject(ctx, e, viper.GetString("project"), cfg)
				if err != nil {
					return err
				}
				var ph domain.ProjectPhase
				if template != "" {
					ph, err = e.CreatePhaseByName(ctx, p.ID, template)
				} else {
					ph, err = e.CreatePhase(ctx, p.ID, in)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(ph)
			})
		},
	}
	cmd.Flags().StringVar(&template, "template", "", "catalog template name of the project's methodology")
	cmd.Flags().StringVar(&in.Name, "name", "", "phase name")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().IntVar(&in.EstimatedDuration, "estimated-hours", 0, "estimated duration in hours")
	cmd.Flags().StringSliceVar(&in.Prerequisites, "prerequisite", nil, "prerequisite (repeatable)")
	cmd.Flags().StringSliceVar(&in.Deliverables, "deliverable", nil, "deliverable (repeatable)")
	cmd.Flags().StringSliceVar(&in.ExitCriteria, "exit-criterion", nil, "exit criterion (repeatable)")
	return cmd
}

func phaseUpdateCmd() *cobra.Command {
	var (
		name, description, status, start, end string
		estimated, actual, progress           int
		prerequisites, deliverables, exit     []string
	)
	cmd := &cobra.Command{
		Use:   "update <phase-id>",
		Short: "Merge fields into a phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u engine.PhaseUpdate
			flags := cmd.Flags()
			if flags.Changed("name") {
				u.Name = &name
			}
			if flags.Changed("description") {
				u.Description = &description
			}
			if flags.Changed("status") {
				st, err := domain.ParseStatus(status)
				if err != nil {
					return err
				}
				u.Status = &st
			}
			if flags.Changed("start-date") {
				t, err := parseDate(start)
				if err != nil {
					return fmt.Errorf("--start-date: %w", err)
				}
				u.StartDate = &t
			}
			if flags.Changed("end-date") {
				t, err := parseDate(end)
				if err != nil {
					return fmt.Errorf("--end-date: %w", err)
				}
				u.EndDate = &t
			}
			if flags.Changed("estimated-hours") {
				u.EstimatedDuration = &estimated
			}
			if flags.Changed("actual-hours") {
				u.ActualDuration = &actual
			}
			if flags.Changed("progress") {
				u.Progress = &progress
			}
			if flags.Changed("prerequisite") {
				u.Prerequisites = &prerequisites
			}
			if flags.Changed("deliverable") {
				u.Deliverables = &deliverables
			}
			if flags.Changed("exit-criterion") {
				u.ExitCriteria = &exit
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				ph, err := e.UpdatePhase(ctx, args[0], u)
				if err != nil {
					return err
				}
				return printJSONOrTable(ph)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "phase name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "status (not_started, in_progress, completed, blocked, on_hold)")
	cmd.Flags().StringVar(&start, "start-date", "", "start date (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end-date", "", "end date (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&estimated, "estimated-hours", 0, "estimated duration in hours")
	cmd.Flags().IntVar(&actual, "actual-hours", 0, "actual duration in hours")
	cmd.Flags().IntVar(&progress, "progress", 0, "progress percentage, clamped to 0..100")
	cmd.Flags().StringSliceVar(&prerequisites, "prerequisite", nil, "replace prerequisites")
	cmd.Flags().StringSliceVar(&deliverables, "deliverable", nil, "replace deliverables")
	cmd.Flags().StringSliceVar(&exit, "exit-criterion", nil, "replace exit criteria")
	return cmd
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

func phaseDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <phase-id>",
		Short: "Delete a phase; its audit trail is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				if err := e.DeletePhase(ctx, args[0]); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"deleted": args[0]})
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func phaseStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <phase-id> <status>",
		Short: "Override a phase status outside the transition rules",
		Long:  "Manual overrides bypass the methodology rules and are not written to the audit trail.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := domain.ParseStatus(args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				ph, err := e.ManualSetStatus(ctx, args[0], st)
				if err != nil {
					return err
				}
				return printJSONOrTable(ph)
			})
		},
	}
}

func blockerCmd() *cobra.Command {
	b := &cobra.Command{Use: "blocker", Short: "Track phase blockers"}
	var in engine.BlockerInput
	var severity, assignee string
	add := &cobra.Command{
		Use:   "add <phase-id>",
		Short: "Record a blocker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Severity = domain.Severity(severity)
			in.AssignedTo = optionalString(assignee)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				blk, err := e.AddBlocker(ctx, args[0], in)
				if err != nil {
					return err
				}
				return printJSONOrTable(blk)
			})
		},
	}
	add.Flags().StringVar(&in.Title, "title", "", "blocker title")
	add.Flags().StringVar(&in.Description, "description", "", "description")
	add.Flags().StringVar(&severity, "severity", "medium", "low, medium, high or critical")
	add.Flags().StringVar(&assignee, "assigned-to", "", "who is unblocking it")
	_ = add.MarkFlagRequired("title")

	var resolution string
	resolve := &cobra.Command{
		Use:   "resolve <phase-id> <blocker-id>",
		Short: "Resolve a blocker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				blk, err := e.ResolveBlocker(ctx, args[0], args[1], resolution)
				if err != nil {
					return err
				}
				return printJSONOrTable(blk)
			})
		},
	}
	resolve.Flags().StringVar(&resolution, "resolution", "", "how it was resolved")
	_ = resolve.MarkFlagRequired("resolution")

	b.AddCommand(add, resolve)
	return b
}

func riskCmd() *cobra.Command {
	r := &cobra.Command{Use: "risk", Short: "Track phase risks"}
	var in engine.RiskInput
	var probability, impact string
	add := &cobra.Command{
		Use:   "add <phase-id>",
		Short: "Record a risk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Probability = domain.Level(probability)
			in.Impact = domain.Level(impact)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				risk, err := e.AddRisk(ctx, args[0], in)
				if err != nil {
					return err
				}
				return printJSONOrTable(risk)
			})
		},
	}
	add.Flags().StringVar(&in.Title, "title", "", "risk title")
	add.Flags().StringVar(&in.Description, "description", "", "description")
	add.Flags().StringVar(&probability, "probability", "medium", "low, medium or high")
	add.Flags().StringVar(&impact, "impact", "medium", "low, medium or high")
	add.Flags().StringVar(&in.Mitigation, "mitigation", "", "mitigation plan")
	add.Flags().StringVar(&in.Owner, "owner", "", "risk owner")
	_ = add.MarkFlagRequired("title")

	status := &cobra.Command{
		Use:   "status <phase-id> <risk-id> <open|mitigated|closed>",
		Short: "Update a risk status",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				risk, err := e.SetRiskStatus(ctx, args[0], args[1], domain.RiskStatus(args[2]))
				if err != nil {
					return err
				}
				return printJSONOrTable(risk)
			})
		},
	}
	r.AddCommand(add, status)
	return r
}

func artifactCmd() *cobra.Command {
	a := &cobra.Command{Use: "artifact", Short: "Attach phase artifacts"}
	var in engine.ArtifactInput
	var kind, url string
	var size int64
	add := &cobra.Command{
		Use:   "add <phase-id>",
		Short: "Attach an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Type = domain.ArtifactType(kind)
			in.URL = optionalString(url)
			in.CreatedBy = viper.GetString("actor-id")
			if cmd.Flags().Changed("size") {
				in.Size = &size
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				art, err := e.AddArtifact(ctx, args[0], in)
				if err != nil {
					return err
				}
				return printJSONOrTable(art)
			})
		},
	}
	add.Flags().StringVar(&in.Name, "name", "", "artifact name")
	add.Flags().StringVar(&kind, "type", "other", "document, code, design, test or other")
	add.Flags().StringVar(&in.Description, "description", "", "description")
	add.Flags().StringVar(&url, "url", "", "where the artifact lives")
	add.Flags().Int64Var(&size, "size", 0, "size in bytes")
	_ = add.MarkFlagRequired("name")
	a.AddCommand(add)
	return a
}

func teamCmd() *cobra.Command {
	t := &cobra.Command{Use: "team", Short: "Manage phase team assignments"}
	t.AddCommand(&cobra.Command{
		Use:   "set <phase-id> [member...]",
		Short: "Replace the phase's assigned team",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				ph, err := e.AssignTeam(ctx, args[0], args[1:])
				if err != nil {
					return err
				}
				return printJSONOrTable(ph.AssignedTeam)
			})
		},
	})
	return t
}

func metricCmd() *cobra.Command {
	m := &cobra.Command{Use: "metric", Short: "Record phase metrics"}
	m.AddCommand(&cobra.Command{
		Use:   "set <phase-id> <key> <value>",
		Short: "Set a numeric phase metric",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseFloat(strings.TrimSpace(args[2]), 64)
			if err != nil {
				return fmt.Errorf("metric value: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				ph, err := e.SetMetric(ctx, args[0], args[1], v)
				if err != nil {
					return err
				}
				return printJSONOrTable(ph.Metrics)
			})
		},
	})
	return m
}
