package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"phaseline/internal/app"
	"phaseline/internal/config"
	"phaseline/internal/domain"
	"phaseline/internal/engine"
	"phaseline/internal/methodology"
)

func methodologyCmd() *cobra.Command {
	m := &cobra.Command{Use: "methodology", Short: "Browse the methodology catalog"}
	m.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List methodologies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSONOrTable(domain.Methodologies())
		},
	})
	m.AddCommand(templateListCmd())
	return m
}

func templateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates <methodology>",
		Short: "List the phase templates of a methodology",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMethodologyFlag(args[0])
			if err != nil {
				return err
			}
			tpls, err := methodology.Templates(m)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(tpls)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"#", "Name", "Hours", "Deliverables", "Exit criteria"})
			for i, t := range tpls {
				tw.AppendRow(table.Row{i + 1, t.Name, t.EstimatedDuration, len(t.Deliverables), len(t.ExitCriteria)})
			}
			tw.Render()
			return nil
		},
	}
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUsePhaseCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var id, name, m string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project and seed its phases",
		RunE: func(cmd *cobra.Command, args []string) error {
			meth, err := parseMethodologyFlag(m)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				p, err := e.CreateProject(ctx, engine.ProjectInput{ID: id, Name: name, Methodology: meth})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&m, "methodology", "", "agile, scrum, kanban, waterfall, lean or hybrid")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("methodology")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				items, err := e.ListProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Methodology", "Current phase"})
				for _, p := range items {
					current := ""
					if p.CurrentPhaseID != nil {
						current = *p.CurrentPhaseID
					}
					tw.AppendRow(table.Row{p.ID, p.Name, p.Methodology, current})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active project and its current phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, cfg *config.Config) error {
				p, err := app.ResolveProject(ctx, e, viper.GetString("project"), cfg)
				if err != nil {
					return err
				}
				cur, err := e.CurrentPhase(ctx, p.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"project": p, "current_phase": cur})
			})
		},
	}
}

func projectUsePhaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use-phase <phase-id>",
		Short: "Point the active project at one of its phases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, cfg *config.Config) error {
				p, err := app.ResolveProject(ctx, e, viper.GetString("project"), cfg)
				if err != nil {
					return err
				}
				p, err = e.SetCurrentPhase(ctx, p.ID, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func auditCmd() *cobra.Command {
	a := &cobra.Command{Use: "audit", Short: "Inspect the transition audit trail"}
	a.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List executed transitions, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, cfg *config.Config) error {
				p, err := app.ResolveProject(ctx, e, viper.GetString("project"), cfg)
				if err != nil {
					return err
				}
				recs, err := e.ListAuditTrail(ctx, p.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(recs)
				}
				if len(recs) == 0 {
					fmt.Println("no transitions recorded")
					return nil
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"When", "From", "To", "Reason", "By", "Notes"})
				for _, r := range recs {
					tw.AppendRow(table.Row{r.Timestamp.Format("2006-01-02 15:04:05"), r.FromPhase, r.ToPhase, r.Reason, r.TriggeredBy, r.Notes})
				}
				tw.Render()
				return nil
			})
		},
	})
	return a
}
