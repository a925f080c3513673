package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"phaseline/internal/config"
	"phaseline/internal/domain"
	"phaseline/internal/engine"
	"phaseline/internal/methodology"
)

func transitionCmd() *cobra.Command {
	t := &cobra.Command{
		Use:   "transition",
		Short: "Move phases along the methodology rules",
		Long: `Transitions are defined per methodology and phase name. Each one lists the
requirements that must be acknowledged (--ack, repeatable) before it executes.`,
	}
	t.AddCommand(transitionListCmd())
	t.AddCommand(transitionValidateCmd())
	t.AddCommand(transitionExecCmd())
	return t
}

func transitionListCmd() *cobra.Command {
	var m, phaseName string
	cmd := &cobra.Command{
		Use:   "list [phase-id]",
		Short: "List the transitions out of a phase",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if m == "" || phaseName == "" {
					return errors.New("pass a phase id, or --methodology and --phase")
				}
				meth, err := parseMethodologyFlag(m)
				if err != nil {
					return err
				}
				options, err := methodology.AvailableTransitions(meth, phaseName)
				if err != nil {
					return err
				}
				return printOptions(phaseName, options)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				ph, _, options, err := e.PhaseTransitions(ctx, args[0])
				if err != nil {
					return err
				}
				return printOptions(ph.Name, options)
			})
		},
	}
	cmd.Flags().StringVar(&m, "methodology", "", "methodology of the rule table")
	cmd.Flags().StringVar(&phaseName, "phase", "", "phase name in the rule table")
	return cmd
}

func printOptions(phaseName string, options []domain.TransitionOption) error {
	if viper.GetBool("json") {
		return printJSON(options)
	}
	if len(options) == 0 {
		fmt.Printf("%s is terminal: no transitions defined\n", phaseName)
		return nil
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"To", "Reason", "Requirements", "Warning"})
	for _, o := range options {
		tw.AppendRow(table.Row{o.ToPhase, o.Reason, strings.Join(o.Requirements, "\n"), o.Warning})
	}
	tw.Render()
	return nil
}

type transitionFlags struct {
	to, reason string
	ack        []string
}

func (f *transitionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.to, "to", "", "target phase name")
	cmd.Flags().StringVar(&f.reason, "reason", "", "transition reason as listed by transition list")
	cmd.Flags().StringArrayVar(&f.ack, "ack", nil, "acknowledged requirement (repeatable)")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("reason")
}

func transitionValidateCmd() *cobra.Command {
	var f transitionFlags
	cmd := &cobra.Command{
		Use:   "validate <phase-id>",
		Short: "Report which requirements are still unacknowledged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				ph, m, _, err := e.PhaseTransitions(ctx, args[0])
				if err != nil {
					return err
				}
				option, err := methodology.FindOption(m, ph.Name, f.to, f.reason)
				if err != nil {
					return err
				}
				missing := []string{}
				if err := e.ValidateTransition(ph, option, f.ack); err != nil {
					var incomplete *domain.IncompleteRequirementsError
					if !errors.As(err, &incomplete) {
						return err
					}
					missing = incomplete.Missing
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"valid": len(missing) == 0, "missing": missing, "option": option})
				}
				if len(missing) == 0 {
					fmt.Printf("%s -> %s (%s): all requirements acknowledged\n", ph.Name, option.ToPhase, option.Reason)
					return nil
				}
				fmt.Printf("%s -> %s (%s): missing\n", ph.Name, option.ToPhase, option.Reason)
				for _, item := range missing {
					fmt.Println("  -", item)
				}
				return nil
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func transitionExecCmd() *cobra.Command {
	var f transitionFlags
	var notes string
	cmd := &cobra.Command{
		Use:   "exec <phase-id>",
		Short: "Execute a transition and record it in the audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, _ *config.Config) error {
				rec, err := e.Transition(ctx, engine.TransitionRequest{
					PhaseID:      args[0],
					ToPhase:      f.to,
					Reason:       f.reason,
					Acknowledged: f.ack,
					Notes:        notes,
					ActorID:      viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				if rec.Metadata.Methodology != "" && !viper.GetBool("json") {
					if opt, ferr := methodology.FindOption(rec.Metadata.Methodology, rec.FromPhase, rec.ToPhase, rec.Reason); ferr == nil && opt.Warning != "" {
						fmt.Fprintln(os.Stderr, "warning:", opt.Warning)
					}
				}
				return printJSONOrTable(rec)
			})
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes stored with the audit record")
	return cmd
}
