package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"career-check-service/internal/catalog"
	"career-check-service/internal/config"
	pgstore "career-check-service/internal/infra/postgres"
	pgmigrations "career-check-service/internal/infra/postgres/migrations"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runMigrationsWithConfig(cmd.Context(), cfg)
		},
	}
}

// NewSeedCmd stores question banks in Postgres: the built-in catalog, or the
// YAML files in --dir.
func NewSeedCmd(configPath *string) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load question banks into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runSeed(cmd.Context(), cfg, dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of <bank>.yaml files (defaults to the built-in catalog)")
	return cmd
}

func openDB(cfg config.Config) (*bun.DB, error) {
	if cfg.Postgres.URL == "" {
		return nil, fmt.Errorf("postgres url not configured")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Printf("no new migrations")
		return nil
	}
	log.Printf("migrations applied: %s", group)
	return nil
}

func runSeed(ctx context.Context, cfg config.Config, dir string) error {
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	loader := catalog.Embedded()
	if dir != "" {
		loader = catalog.NewDirLoader(dir)
	}
	docs, err := loader.All(ctx)
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := pgstore.SeedBanks(ctx, db, docs); err != nil {
		return err
	}
	log.Printf("seeded %d question banks", len(docs))
	return nil
}
