package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pesio-ai/be-commercial-intelligence/internal/client"
	"github.com/pesio-ai/be-commercial-intelligence/internal/config"
	"github.com/pesio-ai/be-commercial-intelligence/internal/database"
	"github.com/pesio-ai/be-commercial-intelligence/internal/logger"
	"github.com/pesio-ai/be-commercial-intelligence/internal/repository"
	"github.com/pesio-ai/be-commercial-intelligence/internal/service"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "worker",
		Short:        "Scheduled jobs of the commercial intelligence service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(patternsCmd())
	rootCmd.AddCommand(migrateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// jobEnv holds what every job needs.
type jobEnv struct {
	cfg *config.Config
	log *logger.Logger
	db  *database.DB
}

func setup(ctx context.Context) (*jobEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name + "-worker",
		Version:     cfg.Service.Version,
	})

	db, err := database.New(ctx, database.Config{
		DSN:         cfg.Database.DSN(),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
		HealthCheck: cfg.Database.HealthCheck,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	return &jobEnv{cfg: cfg, log: log, db: db}, nil
}

func patternsCmd() *cobra.Command {
	var (
		tenant      string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Aggregate commercial patterns across completed projects",
		Long: `Runs the monthly cross-project pattern aggregation.

Every active tenant is processed independently; a failing tenant is logged
and reported in the exit status without stopping the others.

Examples:
  worker patterns
  worker patterns --tenant org_123
  worker patterns --concurrency 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.db.Close()

			if !cmd.Flags().Changed("concurrency") {
				concurrency = rt.cfg.Patterns.Concurrency
			}

			events := client.NewEventPublisher(nil, rt.log.Logger)
			if rt.cfg.NATS.Enabled {
				nc, err := client.ConnectNATS(rt.cfg.NATS.URL, rt.cfg.Service.Name+"-worker", rt.log.Logger)
				if err != nil {
					rt.log.Warn().Err(err).Msg("NATS unavailable, events disabled")
				} else {
					defer nc.Drain()
					events = client.NewEventPublisher(nc, rt.log.Logger)
				}
			}

			svc := service.NewPatternService(
				repository.NewOrgRepository(rt.db),
				repository.NewProjectRepository(rt.db),
				repository.NewPatternRepository(rt.db),
				events,
				rt.log,
				concurrency,
			)

			if tenant != "" {
				created, err := svc.RunTenant(ctx, tenant)
				if err != nil {
					return fmt.Errorf("tenant %s: %w", tenant, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "tenant %s: %d patterns\n", tenant, len(created))
				return nil
			}

			summary, err := svc.RunAll(ctx)
			if summary != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "tenants: %d, patterns: %d, failed: %d\n",
					summary.Tenants, summary.Patterns, len(summary.FailedTenants))
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "run a single tenant instead of every active one")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "tenants processed in parallel")

	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.db.Close()

			if err := rt.db.Migrate(cmd.Context()); err != nil {
				return err
			}
			rt.log.Info().Msg("migrations applied")
			return nil
		},
	}
}
