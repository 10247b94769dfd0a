package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go-airflow-monitor-ui/internal/config"
	"go-airflow-monitor-ui/internal/connectors/airflow"
	httpapi "go-airflow-monitor-ui/internal/http"
	"go-airflow-monitor-ui/internal/logger"
	"go-airflow-monitor-ui/internal/roster"
)

const defaultRosterPath = "dags.csv"

func newRootCmd() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:          "airflow-monitor",
		Short:        "Dashboard for DAG, run, task and log status of an Airflow deployment.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), config.Load(v))
		},
	}
	root.PersistentFlags().String("config", "", "env file with APP_* settings (default ./airflow-monitor.env)")
	root.PersistentFlags().String("airflow-url", "", "Airflow stable API base URL")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")
	root.PersistentFlags().String("log-format", "", "log format: text or json")
	root.Flags().String("listen", "", "listen address (default :8000)")
	bindFlags(v, root)

	root.AddCommand(serveCmd(v), statusCmd(v), versionCmd())
	return root
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	_ = v.BindPFlag("config_file", cmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("airflow_api_url", cmd.PersistentFlags().Lookup("airflow-url"))
	_ = v.BindPFlag("debug", cmd.PersistentFlags().Lookup("debug"))
	_ = v.BindPFlag("log_format", cmd.PersistentFlags().Lookup("log-format"))
	_ = v.BindPFlag("listen_addr", cmd.Flags().Lookup("listen"))
}

func serveCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard HTTP server",
		PreRun: func(cmd *cobra.Command, _ []string) {
			_ = v.BindPFlag("listen_addr", cmd.Flags().Lookup("listen"))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), config.Load(v))
		},
	}
	cmd.Flags().String("listen", "", "listen address (default :8000)")
	return cmd
}

func runServer(ctx context.Context, cfg config.Config) error {
	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	srv, err := httpapi.NewServer(cfg, log)
	if err != nil {
		log.Error("failed to initialize server", logger.Err(err))
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting API server",
			slog.String("version", version),
			slog.String("addr", cfg.ListenAddr),
			slog.String("airflow", cfg.AirflowBaseURL))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Error("server error", logger.Err(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", logger.Err(err))
		return err
	}
	log.Info("server closed")
	return nil
}

func statusCmd(v *viper.Viper) *cobra.Command {
	var rosterPath string
	cmd := &cobra.Command{
		Use:   "status [dag_id...]",
		Short: "Print the latest run of each DAG in the roster",
		Long: `Print the latest run of each DAG given as argument, or listed in the
roster CSV (dag_id column) when no argument is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(v)
			log, closeLog, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			dagIDs := args
			if len(dagIDs) == 0 || cmd.Flags().Changed("roster") {
				fromFile, err := roster.ReadFile(rosterPath)
				if err != nil {
					return err
				}
				dagIDs = append(dagIDs, fromFile...)
			}
			if len(dagIDs) == 0 {
				return fmt.Errorf("no DAG ids in %s", rosterPath)
			}

			ctx := logger.WithLogger(cmd.Context(), log)
			printStatuses(ctx, cmd, airflow.NewClient(cfg), airflow.Credentials{
				Username: cfg.AirflowUser,
				Password: cfg.AirflowPassword,
			}, dagIDs)
			return nil
		},
	}
	cmd.Flags().StringVar(&rosterPath, "roster", defaultRosterPath, "roster CSV file")
	return cmd
}

func printStatuses(ctx context.Context, cmd *cobra.Command, client *airflow.Client, creds airflow.Credentials, dagIDs []string) {
	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"DAG ID", "State", "Execution Date", "Run ID"})

	for _, dagID := range dagIDs {
		token, _ := creds.Token()
		status := airflow.StatusOrUnavailable(dagID, client.LatestStatus(ctx, dagID, token))
		runID := "-"
		if status.DagRunID != nil {
			runID = *status.DagRunID
		}
		tw.AppendRow(table.Row{status.DagID, status.State, status.ExecutionDate, runID})
	}
	tw.Render()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newLogger(cfg config.Config) (*slog.Logger, func(), error) {
	opts := []logger.Option{logger.WithFormat(cfg.LogFormat)}
	if cfg.Debug {
		opts = append(opts, logger.WithDebug())
	}
	closeFn := func() {}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		opts = append(opts, logger.WithWriter(f))
		closeFn = func() { _ = f.Close() }
	}
	return logger.NewLogger(opts...), closeFn, nil
}
