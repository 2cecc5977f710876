package httpapi

import (
	"context"
	"net/http"

	"github.com/redis/go-redis/v9"

	"llm_router/internal/auth"
	"llm_router/internal/catalog"
	"llm_router/internal/config"
	"llm_router/internal/logging"
	"llm_router/internal/middleware"
	"llm_router/internal/queue"
	"llm_router/internal/ratelimit"
	"llm_router/internal/storage"
	"llm_router/internal/utils"
	"llm_router/internal/vault"
)

// Dependencies aggregates the services the HTTP layer needs. cmd/router
// uses it for shutdown ordering.
type Dependencies struct {
	Verifier    auth.Verifier
	Vault       *vault.Client
	Accessor    *catalog.Accessor
	Fetcher     *catalog.Fetcher
	RateLimit   ratelimit.Limiter
	UsageWorker *storage.UsageQueueWorker
	Sink        logging.Sink
	Redis       *redis.Client
	DB          *storage.DB
}

// NewRouter creates the HTTP router with all dependencies wired up.
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	deps := &Dependencies{
		Verifier: auth.NewHTTPVerifier(cfg.Verifier.BackendURL, cfg.Verifier.Timeout),
		Vault: vault.NewClient(vault.Config{
			Address: cfg.Vault.Address,
			Token:   cfg.Vault.Token,
			Timeout: cfg.Vault.Timeout,
		}),
		Accessor: catalog.NewAccessor(cfg.Catalog.DataRoot),
		Fetcher: catalog.NewFetcher(
			cfg.Catalog.DataRoot,
			cfg.Catalog.TTL,
			cfg.Catalog.Categories,
			cfg.Catalog.Orders,
			catalog.NewOpenRouterClient(cfg.Catalog.UpstreamBaseURL, cfg.Catalog.UpstreamTimeout),
		),
		RateLimit: ratelimit.NewNoopLimiter(),
		Sink:      logging.NewNoopSink(),
	}

	if cfg.Redis.Address != "" {
		deps.Redis = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
	}

	if cfg.RateLimit.Enabled && deps.Redis != nil {
		deps.RateLimit = ratelimit.NewRedisLimiter(deps.Redis, cfg.RateLimit.RequestsPerMinute)
	}

	if cfg.Usage.Enabled && cfg.Database.URL != "" {
		db, err := storage.NewDB(storage.DBConfig{
			DSN:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, nil, err
		}
		deps.DB = db

		qConfig := queue.DefaultConfig("usage")
		qConfig.BatchSize = cfg.Usage.BatchSize
		qConfig.BatchTimeout = cfg.Usage.BatchTimeout

		var q queue.Queue
		var dlq queue.DeadLetterQueue
		if cfg.Usage.UseRedis && deps.Redis != nil {
			redisQueue, err := queue.NewRedisQueue(deps.Redis, qConfig)
			if err != nil {
				return nil, nil, err
			}
			redisDLQ, err := queue.NewRedisDeadLetterQueue(deps.Redis, qConfig)
			if err != nil {
				return nil, nil, err
			}
			q, dlq = redisQueue, redisDLQ
		} else {
			q = queue.NewMemoryQueue(qConfig)
			dlq = queue.NewMemoryDeadLetterQueue()
		}

		repo := storage.NewUsageRepository(db)
		deps.UsageWorker = storage.NewUsageQueueWorker(q, dlq, repo, qConfig)
		deps.UsageWorker.Start(context.Background())
	}

	if cfg.LoggingSink.Enabled && cfg.LoggingSink.S3Bucket != "" {
		writer, err := logging.NewS3Writer(
			context.Background(),
			cfg.LoggingSink.S3Bucket,
			cfg.LoggingSink.S3Region,
			cfg.LoggingSink.S3Prefix,
			cfg.LoggingSink.PodName,
		)
		if err != nil {
			return nil, nil, err
		}
		deps.Sink = logging.NewS3Sink(writer, logging.S3SinkConfig{
			BufferSize:    cfg.LoggingSink.BufferSize,
			FlushSize:     cfg.LoggingSink.FlushSize,
			FlushInterval: cfg.LoggingSink.FlushInterval,
		})
	}

	mux := NewMux(deps)
	return mux, deps, nil
}

// NewMux wires handlers and middleware over already-built dependencies.
// Split out from NewRouter so tests can inject fakes.
func NewMux(deps *Dependencies) *http.ServeMux {
	mux := http.NewServeMux()

	authed := middleware.AuthMiddleware(deps.Verifier)
	limited := rateLimitMiddleware(deps.RateLimit)

	recorder := &usageRecorder{worker: deps.UsageWorker, sink: deps.Sink}

	candidates := &RouteCandidatesHandler{Accessor: deps.Accessor, Recorder: recorder}
	secrets := &SecretsHandler{Store: deps.Vault, Recorder: recorder}

	// JSON body routes go through the content-type gate; body-less routes
	// skip it.
	mux.Handle("POST /v1/route/candidates",
		middleware.JSONContentTypeMiddleware(authed(limited(candidates))))
	mux.Handle("PUT /v1/secrets/{provider}",
		middleware.JSONContentTypeMiddleware(authed(limited(http.HandlerFunc(secrets.Put)))))
	mux.Handle("GET /v1/secrets/{provider}", authed(limited(http.HandlerFunc(secrets.Get))))
	mux.Handle("DELETE /v1/secrets/{provider}", authed(limited(http.HandlerFunc(secrets.Delete))))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

// rateLimitMiddleware runs after auth, so the user ID is available as the
// limit key. Limiter errors fail open: a Redis outage must not take down
// request handling.
func rateLimitMiddleware(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc, ok := middleware.GetRequestContext(r.Context())
			if !ok {
				utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			allowed, err := limiter.Allow(r.Context(), rc.UserID)
			if err != nil {
				logging.Warningf("rate limit check failed user=%s: %v", rc.UserID, err)
				allowed = true
			}
			if !allowed {
				utils.RespondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
