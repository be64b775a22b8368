package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andyyulianto77/kuis3/internal/app"
	"github.com/andyyulianto77/kuis3/internal/config"
	"github.com/andyyulianto77/kuis3/internal/domain"
	"github.com/andyyulianto77/kuis3/internal/infra/memory"
	pgloader "github.com/andyyulianto77/kuis3/internal/infra/postgres"
	redisinfra "github.com/andyyulianto77/kuis3/internal/infra/redis"
	"github.com/andyyulianto77/kuis3/internal/sender"
	"github.com/andyyulianto77/kuis3/internal/sitejson"
	transport "github.com/andyyulianto77/kuis3/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.SetLoader = memory.NewStaticSetLoader(sampleSets())
	if pool != nil {
		loader = pgloader.NewSetLoader(pool)
	}

	setTTL := config.TTLDuration(cfg.Sets.TTL, 10*time.Minute)
	var sets app.SetRepository
	if redisClient != nil {
		sets = redisinfra.NewSetRepository(redisClient, loader, setTTL)
	} else {
		sets = memory.NewSetRepository(loader, setTTL)
	}

	var snapshots app.SnapshotStore
	var sessions app.SessionRepository
	if redisClient != nil {
		snapshots = redisinfra.NewSnapshotStore(redisClient, redisTTL)
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		snapshots = memory.NewSnapshotStore()
		sessions = memory.NewSessionStore()
	}

	service := app.NewQuizService(sessions, snapshots, sets, sitejson.New(cfg.Site.URL))
	sheets := sender.New(cfg.Sheets.WebAppURL, service)
	defer sheets.Close()

	wsHandler := transport.NewWSHandler(service)

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
		log.Printf("starting quiz service on :%s", finalPort)
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

// sampleSets seeds a question set per page slug when no Postgres is
// configured; production deployments load sets from the question_sets table.
func sampleSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"welcome": {
			ID: "welcome",
			Questions: []domain.Question{
				{Question: "Siapakah presiden pertama Indonesia?", Answer: "soekarno"},
			},
		},
	}
}
