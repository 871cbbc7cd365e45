package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"quiz-coordinator/internal/domain"
	"quiz-coordinator/internal/infra/memory"
	pginfra "quiz-coordinator/internal/infra/postgres"
	pgmigrations "quiz-coordinator/internal/infra/postgres/migrations"
	redisinfra "quiz-coordinator/internal/infra/redis"
	"quiz-coordinator/internal/session"
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

	seedSession(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	sets := memory.NewQuestionSetRepository(pginfra.NewQuestionSetLoader(pool), 5*time.Minute)
	provider := pginfra.NewMetadataProvider(pool, sets)
	sink := pginfra.NewResultsSink(pool)
	hub := redisinfra.NewHub(redisClient, time.Minute, 100*time.Millisecond)
	factory := session.NewFactory(hub, provider, sink, session.Settings{
		RoundDuration: 5 * time.Second,
	})

	host, err := factory.Open(ctx, "s1", "H", "Hilda")
	if err != nil {
		t.Fatalf("open host: %v", err)
	}
	defer host.Close()
	alice, err := factory.Open(ctx, "s1", "A", "Alice")
	if err != nil {
		t.Fatalf("open alice: %v", err)
	}
	defer alice.Close()

	if err := alice.MarkReady(); err != nil {
		t.Fatalf("mark ready: %v", err)
	}
	waitFor(t, "host sees ready participant", func() bool { return host.CanStart() })

	if err := host.StartSession(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "alice mirrors answering phase", func() bool {
		return alice.Snapshot().Phase == domain.PhaseAnswering
	})

	answer, err := alice.SubmitAnswer(0, "Paris")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !answer.IsCorrect {
		t.Fatalf("expected correct answer")
	}
	// The host's ledger must see the answer before it closes the round.
	waitFor(t, "host ledger received answer", func() bool {
		return host.Snapshot().AnsweredCount >= 1
	})

	if err := host.AdvanceRound(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := host.AdvanceRound(ctx); err != nil {
		t.Fatalf("finish: %v", err)
	}

	waitFor(t, "alice mirrors finished phase", func() bool {
		return alice.Snapshot().Phase == domain.PhaseFinished
	})
	snap := alice.Snapshot()
	if len(snap.RankedResults) == 0 || snap.RankedResults[0].ParticipantID != "A" {
		t.Fatalf("expected alice first in ranked results, got %+v", snap.RankedResults)
	}

	var ranked []byte
	err = pool.QueryRow(ctx, `SELECT ranked_list FROM session_results WHERE session_id=$1`, "s1").Scan(&ranked)
	if err != nil {
		t.Fatalf("read persisted results: %v", err)
	}
	var entries []domain.RankedEntry
	if err := json.Unmarshal(ranked, &entries); err != nil {
		t.Fatalf("unmarshal results: %v", err)
	}
	if len(entries) == 0 || entries[0].ParticipantID != "A" || entries[0].CorrectCount != 1 {
		t.Fatalf("unexpected persisted leaderboard: %+v", entries)
	}

	var count int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM session_results`).Scan(&count); err != nil {
		t.Fatalf("count results: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected single results row, got %d", count)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
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
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
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

func seedSession(t *testing.T, ctx context.Context, dsn string) {
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

	set := domain.QuestionSet{
		ID:     "set-1",
		DeckID: "deck-1",
		Rounds: []domain.QuestionRound{
			{Prompt: "What is the capital of France?", CorrectAnswer: "Paris", Distractors: []string{"Lyon", "Marseille"}},
		},
	}
	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal set: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO question_sets (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, set.ID, string(data)); err != nil {
		t.Fatalf("insert question set: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO sessions (id, host_id, deck_id, question_set_id) VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`, "s1", "H", "deck-1", "set-1"); err != nil {
		t.Fatalf("insert session: %v", err)
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
