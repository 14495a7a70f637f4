package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/batfeed/libs/auth"
	"github.com/md-rashed-zaman/batfeed/libs/config"
	"github.com/md-rashed-zaman/batfeed/libs/httpx"
	"github.com/md-rashed-zaman/batfeed/libs/oracle"
	otelx "github.com/md-rashed-zaman/batfeed/libs/otel"
	"github.com/md-rashed-zaman/batfeed/libs/runtime"
	"github.com/md-rashed-zaman/batfeed/services/feed-service/internal/feed"
	"github.com/md-rashed-zaman/batfeed/services/feed-service/internal/handlers"
	"github.com/md-rashed-zaman/batfeed/services/feed-service/internal/policy"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Environment:
//
//	PORT                     HTTP port (default 8080)
//	ORACLE_GRPC_ADDR         calendar-service oracle address (required)
//	ORACLE_DIAL_TIMEOUT      oracle dial timeout (default 5s)
//	FEED_TIMEZONE            zone for dates without an offset (default UTC)
//	FEED_AVAILABLE_COLOR     matching feed colour when a unit matches (default green)
//	FEED_UNAVAILABLE_COLOR   matching feed colour otherwise (default red)
//	FEED_OPEN_STATE_COLOR    colour of open-state events (default #3788d8)
//	JWT_SECRET, JWKS_URL     token verification; without either every caller is anonymous
//	JWKS_CACHE_TTL           JWKS cache lifetime (default 5m)
//	ANONYMOUS_PERMISSIONS    comma separated permissions of anonymous callers
//	CORS_ALLOWED_ORIGINS     comma separated origins allowed to read the feeds
//	REDIS_ADDR               enables the shared Redis rate limiter
//	RATE_LIMIT_RPS           requests per second per client (default 20)
//	RATE_LIMIT_BURST         in-memory limiter burst (default 40)
//	REQUEST_TIMEOUT          per-request timeout (default 15s)
func main() {
	service := config.String("SERVICE_NAME", "feed-service")
	logger := runtime.NewLogger(service)

	port, err := config.Port("PORT", "8080")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	oracleAddr, err := config.RequiredString("ORACLE_GRPC_ADDR")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	loc, err := config.Location("FEED_TIMEZONE")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	dialTimeout, err := config.Duration("ORACLE_DIAL_TIMEOUT", 5*time.Second)
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	requestTimeout, err := config.Duration("REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	client, err := oracle.Dial(ctx, oracleAddr, dialTimeout)
	if err != nil {
		logger.Error("oracle dial failed", "addr", oracleAddr, "err", err)
		os.Exit(1)
	}
	defer func() { _ = client.Close() }()
	logger.Info("oracle connected", "addr", oracleAddr)

	palette := feed.DefaultPalette()
	palette.Available = config.String("FEED_AVAILABLE_COLOR", palette.Available)
	palette.Unavailable = config.String("FEED_UNAVAILABLE_COLOR", palette.Unavailable)
	palette.OpenState = config.String("FEED_OPEN_STATE_COLOR", palette.OpenState)
	builder := feed.NewBuilder(client, logger, feed.Config{Palette: palette, Location: loc})

	policyProvider, authMW, err := newPolicy(logger)
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	rateLimitMW, readyChecks, closeLimiter, err := newRateLimit(logger)
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	defer closeLimiter()
	readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "oracle", Check: client.ReadyCheck()})

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	handlers.NewFeedHandler(builder, policyProvider, logger).Register(mux)

	handler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.ReadOnlyCORS(config.List("CORS_ALLOWED_ORIGINS", nil))),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithFormat("json"),
		httpx.WithTimeout(requestTimeout),
		rateLimitMW,
		authMW,
	)
	handler = otelhttp.NewHandler(handler, "feed")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func newPolicy(logger *slog.Logger) (policy.Provider, httpx.Middleware, error) {
	anonymous := policy.NewPermissions(config.List("ANONYMOUS_PERMISSIONS", nil)...)

	var jwks *auth.JWKSClient
	if jwksURL := strings.TrimSpace(config.String("JWKS_URL", "")); jwksURL != "" {
		ttl, err := config.Duration("JWKS_CACHE_TTL", 5*time.Minute)
		if err != nil {
			return nil, nil, err
		}
		jwks = auth.NewJWKSClient(jwksURL, ttl)
	}
	verifier := auth.NewVerifier(config.String("JWT_SECRET", ""), jwks)
	if !verifier.Enabled() {
		logger.Info("token verification disabled; all callers are anonymous", "permissions", len(anonymous))
		return policy.NewStaticProvider(anonymous), func(next http.Handler) http.Handler { return next }, nil
	}
	provider := policy.NewTokenProvider(verifier, anonymous)
	return provider, provider.Middleware(), nil
}

func newRateLimit(logger *slog.Logger) (httpx.Middleware, []runtime.ReadyCheck, func(), error) {
	rps, err := config.Float("RATE_LIMIT_RPS", 20)
	if err != nil {
		return nil, nil, nil, err
	}
	burst, err := config.Int("RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, nil, nil, err
	}

	addr := strings.TrimSpace(config.String("REDIS_ADDR", ""))
	if addr == "" {
		logger.Info("rate limiting enabled (in-memory)", "rps", rps, "burst", burst)
		return httpx.NewRateLimiter(rps, burst).Middleware(), nil, func() {}, nil
	}

	redisDB, err := config.Int("REDIS_DB", 0)
	if err != nil {
		return nil, nil, nil, err
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       redisDB,
	})
	perMinute := int(rps * 60)
	if perMinute < 1 {
		perMinute = 1
	}
	rl := httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "feed:rl"))
	logger.Info("rate limiting enabled (redis)", "per_minute", perMinute, "redis_addr", addr)
	checks := []runtime.ReadyCheck{{Name: "redis", Check: httpx.RedisReadyCheck(rdb)}}
	return rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)), checks, func() { _ = rdb.Close() }, nil
}
