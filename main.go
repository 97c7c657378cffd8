package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mfanalytics/clients/http_client"
	kafka_client "mfanalytics/clients/kafka"
	mongo_client "mfanalytics/clients/mongo"
	rabbitmq_client "mfanalytics/clients/rabbitmq"
	"mfanalytics/config"
	"mfanalytics/controllers"
	"mfanalytics/metrics"
	"mfanalytics/middleware"
	"mfanalytics/routes"
	"mfanalytics/services"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Report-URL, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

type closer func()

// GracefulShutdown stops the scheduler, drains the server and then runs the
// closers in order once SIGINT or SIGTERM arrives. The returned channel is
// closed when the closers have finished.
func GracefulShutdown(server *http.Server, scheduler *cron.Cron, closers ...closer) <-chan struct{} {
	stopper := make(chan os.Signal, 1)
	signal.Notify(stopper, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-stopper
		zap.L().Info("Shutting down gracefully...")

		<-scheduler.Stop().Done()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			zap.L().Error("Server shutdown failed", zap.Error(err))
		}
		for _, c := range closers {
			c()
		}
		sentry.Flush(2 * time.Second)
		zap.L().Info("Server exited gracefully")
	}()
	return done
}

func setupSentry(cfg *config.Config) {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.SentrySampleRate,
	}); err != nil {
		zap.L().Error("Sentry initialization failed: ", zap.Any("error", err.Error()))
	}
}

func setupLogger(level string) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.ErrorLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zc.Build()
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	zap.ReplaceGlobals(logger)
}

func setupScreenStore(ctx context.Context, cfg *config.Config) (services.ScreenStore, closer) {
	if cfg.MongoURI == "" {
		zap.L().Warn("MONGO_URI not set, saved screens are kept in memory")
		return services.NewMemoryScreenStore(), func() {}
	}
	client, err := mongo_client.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("Error connecting to MongoDB: %v", err)
	}
	return services.NewMongoScreenStore(client, cfg.Database, cfg.ScreenCollection), func() {
		disconnect(client)
	}
}

func disconnect(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		zap.L().Error("Error disconnecting from MongoDB", zap.Error(err))
	}
}

func setupPublisher(cfg *config.Config) (services.EventPublisher, closer) {
	switch cfg.EventBackend {
	case "kafka":
		p, err := kafka_client.NewProducer(cfg.Kafka.BootstrapServers, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor)
		if err != nil {
			log.Fatalf("Error creating Kafka producer: %v", err)
		}
		return p, p.Close
	case "rabbitmq":
		p, err := rabbitmq_client.NewPublisher(cfg.RabbitMQ.Server, cfg.RabbitMQ.Port, cfg.RabbitMQ.User, cfg.RabbitMQ.Pass, cfg.RabbitMQ.Queue)
		if err != nil {
			log.Fatalf("Error connecting to RabbitMQ: %v", err)
		}
		return p, p.Close
	default:
		return services.NewNopPublisher(), func() {}
	}
}

func startScheduler(cfg *config.Config, universe services.UniverseServiceI, store services.ScreenStore, analysis services.AnalysisServiceI) *cron.Cron {
	scheduler := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))

	if _, err := scheduler.AddFunc(cfg.UniverseRefreshCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := universe.Refresh(ctx); err != nil {
			sentry.CaptureException(err)
			zap.L().Error("Scheduled universe refresh failed", zap.Error(err))
		}
	}); err != nil {
		log.Fatalf("Invalid universe refresh schedule %q: %v", cfg.UniverseRefreshCron, err)
	}

	if _, err := scheduler.AddFunc(cfg.RescreenCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		services.RescreenAll(ctx, store, analysis)
	}); err != nil {
		log.Fatalf("Invalid rescreen schedule %q: %v", cfg.RescreenCron, err)
	}

	scheduler.Start()
	return scheduler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	setupLogger(cfg.LogLevel)
	defer zap.L().Sync()

	setupSentry(cfg)

	recorder := metrics.New(prometheus.DefaultRegisterer)

	ctx := context.Background()
	mfapi := http_client.NewMFAPIClient(cfg.MFAPIURL, cfg.HTTPTimeout)

	var holdingsProvider services.HoldingsProvider
	if cfg.HoldingsAPIURL != "" {
		holdingsProvider = http_client.NewHoldingsClient(cfg.HoldingsAPIURL, cfg.HTTPTimeout)
	}

	store, closeStore := setupScreenStore(ctx, cfg)
	publisher, closePublisher := setupPublisher(cfg)

	export, err := services.NewExportService(cfg.CloudinaryURL)
	if err != nil {
		log.Fatalf("Error configuring export uploads: %v", err)
	}

	universe := services.NewUniverseService(mfapi, recorder)
	initCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	if err := universe.Init(initCtx); err != nil {
		// The scheduler and /api/universe/refresh retry later.
		sentry.CaptureException(err)
		zap.L().Error("Initial universe load failed", zap.Error(err))
	}
	cancel()

	funds := services.NewFundService(mfapi, cfg.FetchConcurrency, recorder)
	analysis := services.NewAnalysisService(funds, universe, publisher, store, recorder, services.AnalysisSettings{
		RiskFreeRate:   cfg.RiskFreeRate,
		BenchmarkCode:  cfg.BenchmarkCode,
		DefaultYears:   cfg.DefaultYears,
		MaxScreenFunds: cfg.MaxScreenFunds,
	})
	holdings := services.NewHoldingsService(holdingsProvider, recorder)

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.RequestLogger(recorder))
	router.Use(sentrygin.New(sentrygin.Options{}))
	router.Use(CORSMiddleware())

	routes.Routes(router, routes.Controllers{
		Health:   controllers.NewHealthController(universe),
		Funds:    controllers.NewFundController(universe, analysis),
		Analysis: controllers.NewAnalysisController(analysis, export),
		Holdings: controllers.NewHoldingsController(holdings),
		Screens:  controllers.NewScreenController(store, analysis),
	})

	scheduler := startScheduler(cfg, universe, store, analysis)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	done := GracefulShutdown(server, scheduler, closePublisher, closeStore)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Error starting server: %v", err)
	}
	<-done
}
