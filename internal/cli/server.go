package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"career-check-service/internal/app"
	"career-check-service/internal/catalog"
	"career-check-service/internal/config"
	"career-check-service/internal/infra/memory"
	pgstore "career-check-service/internal/infra/postgres"
	redisstore "career-check-service/internal/infra/redis"
	transport "career-check-service/internal/transport/http"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the career check server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// idleEvicter is implemented by both session stores.
type idleEvicter interface {
	EvictIdle(maxIdle time.Duration) int
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

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
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	loader := bankLoader(cfg, pool)
	bankTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var banks app.BankRepository
	if redisClient != nil {
		banks = redisstore.NewBankRepository(redisClient, loader, bankTTL)
	} else {
		banks = memory.NewBankRepository(loader, bankTTL)
	}

	defaultBank := cfg.Quiz.Bank
	if defaultBank == "" {
		defaultBank = catalog.DefaultBankID
	}
	if _, err := banks.GetBank(ctx, defaultBank); err != nil {
		return err
	}

	idle := config.TTLDuration(cfg.Quiz.Idle, 30*time.Minute)
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	var store interface {
		app.SessionRepository
		idleEvicter
	}
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, idle))
	} else {
		store = memory.NewSessionStore()
	}

	service := app.NewCareerService(store, banks, cfg.TopN())
	wsHandler := transport.NewWSHandler(service, cookieStore(cfg), cookieName(cfg), defaultBank)

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

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Printf("starting career check service on :%s (bank %s)", finalPort, defaultBank)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		ticker := time.NewTicker(idle / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := store.EvictIdle(idle); n > 0 {
					log.Printf("evicted %d idle sessions", n)
				}
			}
		}
	})
	group.Go(func() error {
		<-ctx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

// bankLoader resolves banks from the operator's YAML dir, then Postgres, then
// the built-in catalog.
func bankLoader(cfg config.Config, pool *pgxpool.Pool) catalog.Chain {
	var chain catalog.Chain
	if cfg.Quiz.BankDir != "" {
		chain = append(chain, catalog.NewDirLoader(cfg.Quiz.BankDir))
	}
	if pool != nil {
		chain = append(chain, pgstore.NewBankLoader(pool))
	}
	return append(chain, catalog.Embedded())
}

func cookieName(cfg config.Config) string {
	if cfg.Cookie.Name == "" {
		return "career-check"
	}
	return cfg.Cookie.Name
}

func cookieStore(cfg config.Config) *sessions.CookieStore {
	secret := []byte(cfg.Cookie.Secret)
	if len(secret) == 0 {
		log.Printf("cookie.secret not configured, using a random key; sessions will not survive a restart")
		secret = securecookie.GenerateRandomKey(32)
	}
	store := sessions.NewCookieStore(secret)
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode
	store.Options.MaxAge = 0
	return store
}
