// Command studytrack serves the StudyTrack API and runs its maintenance
// tasks.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/gpadva81/crystal-edu-track-now/config"
	"github.com/gpadva81/crystal-edu-track-now/internal/infrastructure/persistence/postgres"
	"github.com/gpadva81/crystal-edu-track-now/internal/interface/http/handlers"
	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "studytrack",
		Short:         "Homework tracking, achievements and AI tutoring",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to a studytrack.yaml file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(serveCmd(), migrateCmd(), hashKeyCmd(), reconcileCmd())
	return root
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG
// ══════════════════════════════════════════════════════════════════════════════

// loadConfig reads the config file and environment, then applies any flag
// bound to a config key.
func loadConfig(cmd *cobra.Command, bind map[string]string) (*config.Config, *logger.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	v, err := config.New(path)
	if err != nil {
		return nil, nil, err
	}
	bind["observability.log_level"] = "log-level"
	if err := bindFlags(cmd, v, bind); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}

	format := cfg.Observability.LogFormat
	if format == "" && cfg.IsDevelopment() {
		format = "console"
	}
	log := logger.New(logger.Options{
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    format,
		AddCaller: !cfg.IsDevelopment(),
	}).With(
		logger.String("app", cfg.App.Name),
		logger.String("version", cfg.App.Version),
		logger.String("env", string(cfg.App.Environment)))
	return cfg, log, nil
}

// bindFlags binds changed flags only, so unset flags never mask the
// environment or config file.
func bindFlags(cmd *cobra.Command, v *viper.Viper, bind map[string]string) error {
	for key, name := range bind {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVE
// ══════════════════════════════════════════════════════════════════════════════

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and background jobs",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.String("store", "", "Persistence backend (postgres, memory)")
	f.Int("port", 0, "HTTP listen port")
	f.Bool("no-scheduler", false, "Disable background jobs")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd, map[string]string{
		"app.store": "store",
		"http.port": "port",
	})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if off, _ := cmd.Flags().GetBool("no-scheduler"); off {
		cfg.Scheduler.Enabled = false
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)
	if a.scheduler != nil {
		if err := a.scheduler.Start(gctx); err != nil {
			return err
		}
	}
	g.Go(func() error {
		return a.server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if a.scheduler != nil {
			_ = a.scheduler.Stop()
		}
		return a.server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server stopped with error", logger.Err(err))
		return err
	}
	log.Info("server stopped")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATE
// ══════════════════════════════════════════════════════════════════════════════

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Manage the PostgreSQL schema",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			cfg, log, err := loadConfig(cmd, map[string]string{})
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			conn, err := connectPostgres(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer conn.Close()

			m := postgres.NewMigrator(conn, log)
			switch action {
			case "up":
				return m.Migrate(ctx)
			case "down":
				return m.Rollback(ctx)
			case "status":
				list, err := m.Status(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
				for _, mg := range list {
					applied := "-"
					if mg.IsApplied {
						applied = mg.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%d\t%s\t%s\n", mg.Version, mg.Name, applied)
				}
				return w.Flush()
			default:
				return fmt.Errorf("unknown migrate action %q", action)
			}
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HASH-KEY
// ══════════════════════════════════════════════════════════════════════════════

func hashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key [key]",
		Short: "Print the bcrypt hash of an API key for http.api_key_hashes",
		Long:  "Hashes the key given as argument, or read from stdin when omitted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read key: %w", err)
				}
				key = line
			}
			key = strings.TrimSpace(key)
			if len(key) < 16 {
				return errors.New("API keys must be at least 16 characters")
			}
			hash, err := handlers.HashKey(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE
// ══════════════════════════════════════════════════════════════════════════════

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Re-sync every student's achievements once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd, map[string]string{"app.store": "store"})
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			cfg.Scheduler.Enabled = true

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.reconcile.Run(ctx); err != nil {
				return err
			}
			stats := a.reconcile.LastStats()
			fmt.Fprintf(cmd.OutOrStdout(), "students=%d unlocked=%d failed=%d\n", stats.Students, stats.Unlocked, stats.Failed)
			return nil
		},
	}
	cmd.Flags().String("store", "", "Persistence backend (postgres, memory)")
	return cmd
}
