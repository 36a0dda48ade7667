package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/uerename/docs"
	"github.com/freewebtopdf/uerename/internal/api"
	"github.com/freewebtopdf/uerename/internal/config"
	"github.com/freewebtopdf/uerename/internal/conflict"
	"github.com/freewebtopdf/uerename/internal/domain"
	"github.com/freewebtopdf/uerename/internal/renamer"
)

// stdinIsTerminal decides whether rename prompts for confirmation
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

type globalFlags struct {
	backupDir      string
	historyBackend string
	historyPath    string
	rulesFile      string
	logLevel       string
}

type subjectFlags struct {
	target string
	module string
	plugin string
}

func (s subjectFlags) request(root, newName string) renamer.Request {
	req := renamer.Request{Root: root, NewName: newName, Kind: domain.SessionProject}
	switch {
	case s.target != "":
		req.Kind, req.Subject = domain.SessionTarget, s.target
	case s.module != "":
		req.Kind, req.Subject = domain.SessionModule, s.module
	case s.plugin != "":
		req.Kind, req.Subject = domain.SessionPlugin, s.plugin
	}
	return req
}

func (s *subjectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.target, "target", "", "rename the build target with this name instead of the project")
	cmd.Flags().StringVar(&s.module, "module", "", "rename the code module with this name instead of the project")
	cmd.Flags().StringVar(&s.plugin, "plugin", "", "rename the plugin with this name instead of the project")
	cmd.MarkFlagsMutuallyExclusive("target", "module", "plugin")
}

func newRootCommand() *cobra.Command {
	var (
		flags globalFlags
		cfg   *config.Config
	)

	root := &cobra.Command{
		Use:   "uerename",
		Short: "Rename Unreal Engine projects, targets, modules and plugins",
		Long: `uerename renames an Unreal-style game project consistently: the descriptor,
build targets, code modules, config keys and the project directory.

Every rename runs as one session. Each touched path is backed up first and any
failure rolls the whole session back.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			cfg = loaded
			setupLogger(cfg)
			logStartupConfig(cfg)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.backupDir, "backup-dir", "", "directory for session backups (BACKUP_DIR)")
	pf.StringVar(&flags.historyBackend, "history-backend", "", "history backend: memory, file or sqlite (HISTORY_BACKEND)")
	pf.StringVar(&flags.historyPath, "history-path", "", "history log or database path (HISTORY_PATH)")
	pf.StringVar(&flags.rulesFile, "rules", "", "YAML or TOML naming rules file (NAMING_RULES_FILE)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (LOG_LEVEL)")

	current := func() *config.Config { return cfg }

	root.AddCommand(
		newDetectCommand(current),
		newPlanCommand(current),
		newRenameCommand(current),
		newHistoryCommand(current),
		newServeCommand(current),
	)
	return root
}

func loadConfig(cmd *cobra.Command, flags globalFlags) (*config.Config, error) {
	changed := func(name string) bool { return cmd.Flags().Changed(name) }

	if changed("history-backend") {
		os.Setenv("HISTORY_BACKEND", flags.historyBackend)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if changed("backup-dir") {
		cfg.Backup.Dir = flags.backupDir
	}
	if changed("history-path") {
		cfg.History.Path = flags.historyPath
	}
	if changed("rules") {
		cfg.Naming.RulesFile = flags.rulesFile
	}
	if changed("log-level") {
		cfg.Logging.Level = flags.logLevel
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newDetectCommand(cfg func() *config.Config) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "detect <root>",
		Short: "Show the metadata detected for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := build(cfg())
			if err != nil {
				return err
			}
			defer app.Close()

			meta, err := app.service.Detect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), meta)
			}
			printMetadata(cmd.OutOrStdout(), meta)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printMetadata(w io.Writer, meta *domain.ProjectMetadata) {
	fmt.Fprintf(w, "Project:    %s\n", meta.ProjectName)
	fmt.Fprintf(w, "Root:       %s\n", meta.RootPath)
	fmt.Fprintf(w, "Descriptor: %s\n", meta.DescriptorFilePath)

	if len(meta.Targets) > 0 {
		fmt.Fprintln(w, "\nTargets:")
		for _, t := range meta.Targets {
			fmt.Fprintf(w, "  %-30s %-8s %s\n", t.Name, t.Kind, t.DeclarationFilePath)
		}
	}
	if len(meta.Modules) > 0 {
		fmt.Fprintln(w, "\nModules:")
		for _, m := range meta.Modules {
			fmt.Fprintf(w, "  %-30s %s\n", m.Name, m.Directory)
		}
	}
	if len(meta.Plugins) > 0 {
		fmt.Fprintln(w, "\nPlugins:")
		for _, p := range meta.Plugins {
			fmt.Fprintf(w, "  %-30s %s\n", p.Name, p.Directory)
		}
	}
	if len(meta.ConfigValues) > 0 {
		fmt.Fprintln(w, "\nConfig:")
		for _, cv := range meta.ConfigValues {
			fmt.Fprintf(w, "  %s [%s] %s=%s\n", cv.File, cv.Section, cv.Key, cv.Value)
		}
	}
	if len(meta.Redirects) > 0 {
		fmt.Fprintln(w, "\nRedirects:")
		for _, rd := range meta.Redirects {
			fmt.Fprintf(w, "  %s [%s] %s=%s\n", rd.File, rd.Section, rd.Key, rd.Value)
		}
	}
	if len(meta.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warn := range meta.Warnings {
			prefix := ""
			if warn.Blocking {
				prefix = "[blocking] "
			}
			if warn.Path != "" {
				fmt.Fprintf(w, "  %s%s: %s\n", prefix, warn.Path, warn.Message)
				continue
			}
			fmt.Fprintf(w, "  %s%s\n", prefix, warn.Message)
		}
	}
}

func printPlan(w io.Writer, plan *renamer.Plan) {
	subject := "project"
	if plan.Kind != domain.SessionProject {
		subject = string(plan.Kind)
	}
	fmt.Fprintf(w, "Rename %s %s -> %s (%d operations)\n", subject, plan.OldName, plan.NewName, len(plan.Operations))
	for i, op := range plan.Operations {
		fmt.Fprintf(w, "  %2d. %s\n", i+1, op.String())
	}
	if len(plan.Conflicts) > 0 {
		fmt.Fprintln(w, "\nConflicts:")
		for _, c := range plan.Conflicts {
			fmt.Fprintf(w, "  [%s] %s\n", c.Severity, c.Message)
		}
	}
}

func newPlanCommand(cfg func() *config.Config) *cobra.Command {
	var (
		subject subjectFlags
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "plan <root> <new-name>",
		Short: "Print the operations a rename would perform",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := build(cfg())
			if err != nil {
				return err
			}
			defer app.Close()

			plan, err := app.service.Plan(cmd.Context(), subject.request(args[0], args[1]))
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), plan)
			}
			printPlan(cmd.OutOrStdout(), plan)
			return nil
		},
	}
	subject.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newRenameCommand(cfg func() *config.Config) *cobra.Command {
	var (
		subject subjectFlags
		yes     bool
		retain  bool
	)

	cmd := &cobra.Command{
		Use:   "rename <root> <new-name>",
		Short: "Rename a project, or one of its targets, modules or plugins",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := cfg()
			if retain {
				conf.Backup.Retain = true
			}

			app, err := build(conf)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			plan, err := app.service.Plan(ctx, subject.request(args[0], args[1]))
			if err != nil {
				return err
			}
			printPlan(out, plan)

			// a blocking plan goes straight to ApplyPlan, which refuses it
			if !yes && !conflict.HasBlocking(plan.Conflicts) && stdinIsTerminal() {
				ok, err := confirm(cmd.InOrStdin(), out, fmt.Sprintf("\nApply %d operations? (y/N): ", len(plan.Operations)))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Cancelled")
					return nil
				}
			}

			result, err := app.service.ApplyPlan(ctx, plan)
			if err != nil {
				printFailure(cmd.ErrOrStderr(), err)
				return err
			}

			fmt.Fprintf(out, "\nRenamed %s to %s (session %s)\n", plan.OldName, plan.NewName, result.Session.SessionID)
			if result.Session.FinalRoot != plan.Root {
				fmt.Fprintf(out, "Project moved to %s\n", result.Session.FinalRoot)
			}
			if result.BackupDir != "" {
				fmt.Fprintf(out, "Backups kept in %s\n", result.BackupDir)
			}
			return nil
		},
	}
	subject.register(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "apply without asking for confirmation")
	cmd.Flags().BoolVar(&retain, "retain-backup", false, "keep the session backups after a successful rename (BACKUP_RETAIN)")
	return cmd
}

func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes", nil
}

func printFailure(w io.Writer, err error) {
	report, ok := domain.FailureReportOf(err)
	if !ok {
		return
	}
	if report.FailedIndex >= 0 {
		fmt.Fprintf(w, "Operation %d (%s %s) failed: %s\n", report.FailedIndex+1, report.FailedKind, report.FailedPath, report.Cause)
	} else {
		fmt.Fprintf(w, "Session failed: %s\n", report.Cause)
	}
	if report.RolledBack {
		fmt.Fprintln(w, "All applied operations were rolled back.")
		return
	}
	fmt.Fprintln(w, "Rollback did not complete. Restore these paths by hand:")
	for _, f := range report.RollbackFailures {
		fmt.Fprintf(w, "  %s: %s\n", f.Path, f.Error)
	}
	if report.BackupDir != "" {
		fmt.Fprintf(w, "Backups and manifest: %s\n", report.BackupDir)
	}
}

func newHistoryCommand(cfg func() *config.Config) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history [root]",
		Short: "List past rename sessions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := build(cfg())
			if err != nil {
				return err
			}
			defer app.Close()

			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			sessions, err := app.service.History(cmd.Context(), root)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, sessions)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No rename sessions recorded")
				return nil
			}
			for _, s := range sessions {
				fmt.Fprintf(out, "%s  %-7s  %s -> %s  %-11s  %s\n",
					s.FinishedAt.Local().Format(time.DateTime), s.Kind, s.OldName, s.NewName, s.Outcome, s.FinalRoot)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newServeCommand(cfg func() *config.Config) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the rename engine over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := cfg()
			if cmd.Flags().Changed("port") {
				conf.Server.Port = port
			}

			app, err := build(conf)
			if err != nil {
				return err
			}
			defer app.Close()

			docs.SwaggerInfo.Host = os.Getenv("DOMAIN")

			router := api.SetupRouter(api.RouterDependencies{
				Service:       app.service,
				Cache:         app.cache,
				HealthChecker: app.health,
			}, api.RouterConfig{
				CORSOrigins:    conf.Security.CORSOrigins,
				BodyLimit:      conf.Server.BodyLimit,
				RateLimitRPS:   conf.RateLimit.RPS,
				RateLimitBurst: conf.RateLimit.Burst,
				ReadTimeout:    conf.Server.ReadTimeout,
				WriteTimeout:   conf.Server.WriteTimeout,
			})
			defer router.Cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go func() {
				<-ctx.Done()
				log.Info().Msg("Received shutdown signal, initiating graceful shutdown")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := router.App.ShutdownWithContext(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Error during HTTP server shutdown")
				}
			}()

			addr := fmt.Sprintf(":%d", conf.Server.Port)
			log.Info().Int("port", conf.Server.Port).Str("addr", addr).Msg("Starting HTTP server")

			if err := router.App.Listen(addr); err != nil {
				return fmt.Errorf("failed to start HTTP server: %w", err)
			}
			log.Info().Msg("Graceful shutdown completed")
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "listen port (PORT)")
	return cmd
}
