package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"career-check-service/internal/app"
	"career-check-service/internal/catalog"
	"career-check-service/internal/domain"
	pgstore "career-check-service/internal/infra/postgres"
	pgmigrations "career-check-service/internal/infra/postgres/migrations"
	infraredis "career-check-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestCareerCheckEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedBanks(t, ctx, pgURL, sampleBank())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	// Postgres first; the built-in catalog only serves banks Postgres lacks.
	loader := catalog.Chain{pgstore.NewBankLoader(pool), catalog.Embedded()}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	bankRepo := infraredis.NewBankRepository(redisClient, loader, 5*time.Minute)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	service := app.NewCareerService(sessionStore, bankRepo, 3)

	if _, err := service.Open(ctx, "s1", "xy"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := service.Start(ctx, "s1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := service.Answer(ctx, "s1", domain.AnswerYes, nil); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
	}
	view, err := service.View(ctx, "s1")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Screen != domain.ScreenResult || len(view.Ranking) != 2 {
		t.Fatalf("expected result with 2 roles, got %+v", view)
	}
	if view.Ranking[0].Role != "y" || view.Ranking[0].RawScore != 3 || view.Ranking[1].NormalizedScore != 67 {
		t.Fatalf("unexpected ranking %+v", view.Ranking)
	}

	if _, err := service.Open(ctx, "s2", catalog.DefaultBankID); err != nil {
		t.Fatalf("open catalog bank through chain: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "career", "POSTGRES_PASSWORD": "careerpass", "POSTGRES_DB": "careerdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://career:careerpass@%s:%s/careerdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedBanks(t *testing.T, ctx context.Context, dsn string, docs ...domain.BankDocument) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := pgstore.SeedBanks(ctx, db, docs); err != nil {
		t.Fatalf("seed banks: %v", err)
	}
}

func sampleBank() domain.BankDocument {
	return domain.BankDocument{
		ID:    "xy",
		Title: "XY",
		Roles: []domain.RoleProfile{{Role: "x"}, {Role: "y"}},
		Questions: []domain.Question{
			{ID: "q1", Text: "first", Weights: map[domain.Role]int{"x": 2, "y": 1}},
			{ID: "q2", Text: "second", Weights: map[domain.Role]int{"y": 2}},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
