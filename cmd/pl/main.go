package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"phaseline/internal/config"
	"phaseline/internal/db"
	"phaseline/internal/domain"
	"phaseline/internal/engine"
	"phaseline/internal/logging"
	"phaseline/internal/metrics"
	"phaseline/internal/migrate"
	"phaseline/internal/repo"
	"phaseline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pl",
	Short: "Phaseline CLI",
	Long: `Phaseline tracks project phases under a delivery methodology.
- Methodology: agile, scrum, kanban, waterfall, lean or hybrid. It decides the phase templates and the transition rules.
- Phase: a working instance of a template with status, progress, blockers, risks, artifacts and metrics.
- Transition: a rule-defined move out of a phase. Every requirement must be acknowledged before it runs, and each executed transition lands in the audit trail.
- Manual status: an override outside the rules; it is logged but never audited.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PHASELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier recorded on transitions")
	rootCmd.PersistentFlags().String("project", "", "project id (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(methodologyCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(phaseCmd())
	rootCmd.AddCommand(blockerCmd())
	rootCmd.AddCommand(riskCmd())
	rootCmd.AddCommand(artifactCmd())
	rootCmd.AddCommand(teamCmd())
	rootCmd.AddCommand(metricCmd())
	rootCmd.AddCommand(transitionCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage phaseline.yml",
		Long:  "phaseline.yml holds the default project, engine switches, logging and server settings. Missing keys fall back to defaults.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var id, name, m string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default phaseline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			cfg := config.Default(id)
			cfg.Project.Name = name
			cfg.Project.Methodology = m
			if err := cfg.Validate(); err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, out, 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "project-id", "", "default project id")
	cmd.Flags().StringVar(&name, "name", "", "project name used when the project is created")
	cmd.Flags().StringVar(&m, "methodology", "", "project methodology used when the project is created")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			return yaml.NewEncoder(os.Stdout).Encode(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate phaseline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var actor string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			token, err := server.IssueToken(jwtSecret(cfg), actor, ttl, time.Now())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]string{"actor_id": actor, "token": token})
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "token subject (defaults to --actor-id)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime; 0 never expires")
	return cmd
}

func jwtSecret(cfg *config.Config) string {
	if s := viper.GetString("jwt-secret"); s != "" {
		return s
	}
	return cfg.Server.JWTSecret
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, cfg *config.Config) error {
				addr := viper.GetString("addr")
				if addr == "" {
					addr = cfg.Server.Addr
				}
				basePath := viper.GetString("base-path")
				if basePath == "" {
					basePath = cfg.Server.BasePath
				}
				authCfg := server.AuthConfig{
					JWTSecret:              jwtSecret(cfg),
					AllowLegacyActorHeader: cfg.Server.AllowActorHeader,
					Logger:                 e.Logger,
				}
				if authCfg.JWTSecret == "" && !authCfg.AllowLegacyActorHeader {
					return errors.New("server.jwt_secret (or PHASELINE_JWT_SECRET) is required when the actor header is disabled")
				}
				reg := prometheus.NewRegistry()
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				e.Metrics = metrics.New(reg)
				handler, err := server.New(server.Config{
					Engine:   e,
					BasePath: basePath,
					Auth:     authCfg,
					Logger:   e.Logger,
					Gatherer: reg,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				e.Logger.Info("serving phaseline API",
					zap.String("addr", addr),
					zap.String("base_path", basePath),
					zap.Bool("actor_header", authCfg.AllowLegacyActorHeader))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address (defaults to server.addr)")
	cmd.Flags().String("base-path", "", "API base path (defaults to server.base_path)")
	cmd.Flags().String("jwt-secret", "", "HS256 secret for bearer tokens")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("base-path", cmd.Flags().Lookup("base-path"))
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine, *config.Config) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return err
	}
	r := repo.New(conn)
	defer r.Close()
	e := engine.New(r, cfg)
	e.Logger = log
	return fn(ctx, e, cfg)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseMethodologyFlag(s string) (domain.Methodology, error) {
	return domain.ParseMethodology(strings.ToLower(strings.TrimSpace(s)))
}
