package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"trivia-game-service/internal/app"
	"trivia-game-service/internal/domain"
	pgstore "trivia-game-service/internal/infra/postgres"
	pgmigrations "trivia-game-service/internal/infra/postgres/migrations"
	redisstore "trivia-game-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := openBun(pgURL)
	defer db.Close()
	migrateAndSeed(t, ctx, db, sampleQuestions())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	accounts := pgstore.NewAccountStore(db)
	events := pgstore.NewEventStore(db)
	content := redisstore.NewContentStore(redisClient, pgstore.NewQuestionLoader(pool), 5*time.Minute)

	engine := app.NewSessionEngine(accounts, content, events, app.SessionConfig{
		StoreTimeout: 10 * time.Second,
	})

	if _, err := engine.Register(ctx, "alice", "s3cret!A"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := engine.StartSession(ctx); err != nil {
		t.Fatalf("start session: %v", err)
	}

	// Answer every question: the first two correctly, the third incorrectly.
	served := make(map[int64]struct{})
	for i := 0; i < 3; i++ {
		question, err := engine.NextQuestion(ctx)
		if err != nil {
			t.Fatalf("next question %d: %v", i, err)
		}
		if _, seen := served[question.ID]; seen {
			t.Fatalf("question %d served twice", question.ID)
		}
		served[question.ID] = struct{}{}

		chosen := question.CorrectIndex
		if i == 2 {
			chosen = (question.CorrectIndex + 1) % len(question.Choices)
		}
		result, err := engine.SubmitAnswer(ctx, chosen)
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if result.Correct != (i < 2) {
			t.Fatalf("turn %d: unexpected correctness %+v", i, result)
		}
	}

	if _, err := engine.NextQuestion(ctx); !errors.Is(err, domain.ErrNoQuestionsRemaining) {
		t.Fatalf("expected exhaustion, got %v", err)
	}

	stats, err := engine.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalAnswered != 3 || stats.CorrectCount != 2 {
		t.Fatalf("expected 2/3 correct, got %+v", stats)
	}
	if stats.CurrentStreak != 0 {
		t.Fatalf("expected streak 0 after trailing incorrect answer, got %d", stats.CurrentStreak)
	}
	if stats.UnansweredCount != 0 {
		t.Fatalf("expected everything answered, got %d unanswered", stats.UnansweredCount)
	}

	if _, err := engine.Register(ctx, "alice", "again!B2"); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected terminal session, got %v", err)
	}

	// The unique constraint holds across engines.
	fresh := app.NewSessionEngine(accounts, content, events, app.SessionConfig{})
	if _, err := fresh.Register(ctx, "alice", "again!B2"); !errors.Is(err, domain.ErrDuplicateUsername) {
		t.Fatalf("expected duplicate username from the store, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "triviadb"},
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
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/triviadb?sslmode=disable", host, port.Port())
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

func openBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func migrateAndSeed(t *testing.T, ctx context.Context, db *bun.DB, questions []domain.Question) {
	t.Helper()
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, q := range questions {
		data, err := json.Marshal(q)
		if err != nil {
			t.Fatalf("marshal question: %v", err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO questions (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, q.ID, string(data)); err != nil {
			t.Fatalf("insert question: %v", err)
		}
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "What is 2 + 2?", Choices: []string{"3", "4", "5", "6"}, CorrectIndex: 1, Category: "Math", Difficulty: "easy"},
		{ID: 2, Text: "What is the capital of France?", Choices: []string{"Lyon", "Nice", "Paris", "Lille"}, CorrectIndex: 2, Category: "Geography", Difficulty: "easy"},
		{ID: 3, Text: "Which planet is the Red Planet?", Choices: []string{"Mars", "Venus", "Jupiter", "Saturn"}, CorrectIndex: 0, Category: "Science", Difficulty: "easy"},
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
