package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/batfeed/libs/config"
	"github.com/md-rashed-zaman/batfeed/libs/db"
	"github.com/md-rashed-zaman/batfeed/libs/grpcx"
	"github.com/md-rashed-zaman/batfeed/libs/httpx"
	"github.com/md-rashed-zaman/batfeed/libs/kafkax"
	"github.com/md-rashed-zaman/batfeed/libs/oracle"
	otelx "github.com/md-rashed-zaman/batfeed/libs/otel"
	"github.com/md-rashed-zaman/batfeed/libs/runtime"
	"github.com/md-rashed-zaman/batfeed/services/calendar-service/internal/consumer"
	"github.com/md-rashed-zaman/batfeed/services/calendar-service/internal/events"
	"github.com/md-rashed-zaman/batfeed/services/calendar-service/internal/inbox"
	"github.com/md-rashed-zaman/batfeed/services/calendar-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Environment:
//
//	PORT              HTTP port for /healthz and /readyz (default 8090)
//	ORACLE_GRPC_PORT  oracle gRPC port (default 9095)
//	DATABASE_URL      Postgres connection string (required)
//	MIGRATE_ON_START  create the schema at startup (default true)
//	KAFKA_BROKERS     comma separated brokers; empty disables the consumer
//	KAFKA_GROUP_ID    consumer group (default calendar-service)
func main() {
	service := config.String("SERVICE_NAME", "calendar-service")
	logger := runtime.NewLogger(service)

	port, err := config.Port("PORT", "8090")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	grpcPort, err := config.Port("ORACLE_GRPC_PORT", "9095")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	dbURL, err := config.RequiredString("DATABASE_URL")
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

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := storage.NewStore(pool)
	if config.Bool("MIGRATE_ON_START", true) {
		if err := store.Migrate(ctx); err != nil {
			logger.Error("migration failed", "err", err)
			os.Exit(1)
		}
	}

	brokers := config.String("KAFKA_BROKERS", "")
	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers != "" {
		eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "calendar-service"),
			Topics:  []string{oracle.TopicEventUpserted, oracle.TopicEventDeleted},
		}, events.NewHandler(store, logger).Handle)
		go eventConsumer.Run(ctx)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	} else {
		logger.Info("kafka consumer disabled")
	}

	grpcServer := grpcx.NewServer(logger)
	oracle.Register(grpcServer, store)
	healthServer := health.NewServer()
	healthServer.SetServingStatus(oracle.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
			stop()
		}
	}()

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	handler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "calendar")
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
	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcServer.GracefulStop()
	logger.Info("servers stopped")
}
