package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ojinta/portfolio/go-services/handlers"
	"github.com/ojinta/portfolio/go-services/internal/activity"
	"github.com/ojinta/portfolio/go-services/internal/config"
	"github.com/ojinta/portfolio/go-services/internal/database"
	"github.com/ojinta/portfolio/go-services/internal/sessions"
	"github.com/ojinta/portfolio/go-services/internal/tokens"
	"github.com/ojinta/portfolio/go-services/internal/users"
	"github.com/ojinta/portfolio/go-services/pkg/logger"
	"github.com/ojinta/portfolio/go-services/pkg/metrics"
	"github.com/ojinta/portfolio/go-services/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: env=%s mongo=%v redis=%v secure_cookie=%v",
		cfg.Server.Environment, cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Session.SecureCookie)
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	codec, err := tokens.NewCodec([]byte(cfg.Session.Secret), tokens.WithDuration(cfg.Session.Duration))
	if err != nil {
		logger.Fatalf("session codec: %v", err)
	}
	store := sessions.NewCookieStore(cfg.Session.CookieName, cfg.Session.Duration, cfg.Session.SecureCookie)
	probes := map[string]handlers.Probe{}

	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
		} else {
			logger.Infof("Connected to Redis: %s", addr)
		}
		defer rdb.Close()
		probes["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	userRepo, mongoClient := openUsers(ctx, cfg)
	if mongoClient != nil {
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()
		probes["users"] = database.Pinger(mongoClient, cfg.MongoDB.Timeout)
	}
	userSvc := users.NewService(userRepo)

	events := openEvents(cfg, rdb)
	defer events.Close()

	var limiter gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			limiter = middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win, nil)
		} else {
			limiter = middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	r := handlers.NewRouter(handlers.RouterDeps{
		Routes:    cfg.Routes,
		Codec:     codec,
		Store:     store,
		Users:     userSvc,
		Events:    events,
		Limiter:   limiter,
		Probes:    probes,
		Metrics:   promhttp.Handler(),
		Started:   startTime,
		AccessLog: true,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("Starting admin service on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown: %v", err)
	}
}

// openUsers connects to MongoDB with retry/backoff, falling back to an
// in-memory repository when no URI is configured.
func openUsers(ctx context.Context, cfg *config.Config) (users.UserRepository, *mongo.Client) {
	if cfg.MongoDB.URI == "" {
		logger.Warnf("MONGODB_URI not set: using an empty in-memory user store")
		return users.NewMemoryUserRepository(), nil
	}
	const maxAttempts = 5
	backoff := time.Second
	var client *mongo.Client
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, err = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err == nil {
			break
		}
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, err)
		if attempt < maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	if err != nil {
		logger.Fatalf("could not connect to MongoDB after %d attempts: %v", maxAttempts, err)
	}
	repo := users.NewMongoUserRepository(client.Database(cfg.MongoDB.Database).Collection(database.UsersCollection))
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warnf("%v", err)
	}
	return repo, client
}

// openEvents picks Redis streams when Redis is available and in-process
// delivery otherwise.
func openEvents(cfg *config.Config, rdb *redis.Client) activity.Publisher {
	if !cfg.Events.Enabled {
		return activity.Nop{}
	}
	if rdb != nil {
		pub, err := activity.NewRedisStreamPublisher(rdb, cfg.Events.Topic)
		if err == nil {
			logger.Infof("activity events: redis stream %q", pub.Topic())
			return pub
		}
		logger.Warnf("%v; falling back to in-process events", err)
	}
	pub, _ := activity.NewInProcess(cfg.Events.Topic)
	logger.Infof("activity events: in-process topic %q", pub.Topic())
	return pub
}
