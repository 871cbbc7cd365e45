package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-coordinator/internal/config"
	"quiz-coordinator/internal/domain"
	"quiz-coordinator/internal/infra/memory"
	pginfra "quiz-coordinator/internal/infra/postgres"
	redisinfra "quiz-coordinator/internal/infra/redis"
	"quiz-coordinator/internal/pubsub"
	"quiz-coordinator/internal/session"
	transport "quiz-coordinator/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the session coordinator server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	settings := session.Settings{
		LivenessWindow:    config.Duration(cfg.Session.LivenessWindow, 30*time.Second),
		HeartbeatInterval: config.Duration(cfg.Session.HeartbeatInterval, 10*time.Second),
		RoundDuration:     config.Duration(cfg.Session.RoundDuration, 30*time.Second),
		XPBase:            cfg.Session.XPBase,
		XPFloor:           cfg.Session.XPFloor,
	}

	var hub pubsub.Hub = memory.NewHub()
	if redisClient != nil {
		hub = redisinfra.NewHub(redisClient,
			config.Duration(cfg.Redis.PresenceTTL, 10*time.Minute),
			config.Duration(cfg.Redis.PollInterval, 5*time.Second))
	}

	setTTL := config.Duration(cfg.Session.QuestionSetTTL, 10*time.Minute)
	var provider session.MetadataProvider
	var sink session.ResultsSink
	if pool != nil {
		sets := memory.NewQuestionSetRepository(pginfra.NewQuestionSetLoader(pool), setTTL)
		provider = pginfra.NewMetadataProvider(pool, sets)
		sink = pginfra.NewResultsSink(pool)
	} else {
		sets := memory.NewQuestionSetRepository(memory.NewStaticQuestionSetLoader(sampleQuestionSets()), setTTL)
		memProvider := memory.NewMetadataProvider(sets)
		memProvider.Register("demo-session", memory.SessionRef{
			HostID:        "host-1",
			DeckID:        "deck-1",
			QuestionSetID: "set-1",
		})
		provider = memProvider
		sink = memory.NewResultsSink()
	}

	factory := session.NewFactory(hub, provider, sink, settings)
	wsHandler := transport.NewWSHandler(factory)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting session coordinator on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestionSets seeds the in-memory demo; production reads JSONB from Postgres.
func sampleQuestionSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"set-1": {
			ID:     "set-1",
			DeckID: "deck-1",
			Rounds: []domain.QuestionRound{
				{
					Prompt:        "What is the capital of France?",
					CorrectAnswer: "Paris",
					Distractors:   []string{"Lyon", "Marseille", "Nice"},
				},
				{
					Prompt:        "What is 2 + 2?",
					CorrectAnswer: "4",
					Distractors:   []string{"3", "5"},
				},
			},
		},
	}
}
