package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"bookingsync/internal/archive"
	"bookingsync/internal/config"
	"bookingsync/internal/constants"
	"bookingsync/internal/crawler"
	"bookingsync/internal/flightinfo"
	"bookingsync/internal/labels"
	"bookingsync/internal/logger"
	"bookingsync/internal/mailbox"
	"bookingsync/internal/mailsource"
	"bookingsync/internal/orchestrator"
	"bookingsync/internal/session"
	"bookingsync/internal/sink"
	"bookingsync/pkg/bootstrap"
	"bookingsync/pkg/health"
	"bookingsync/pkg/metrics"
	"bookingsync/pkg/middleware"
	"bookingsync/pkg/migrations"
)

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector
	redis       *redis.Client
	mongoClient *mongo.Client
	postgresDB  *sql.DB
	imap        mailbox.Client
	sessions    []*session.Manager
	orch        *orchestrator.Orchestrator
	server      *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("ingest-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initRedis(ctx); err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}

	if err := a.initMongoDB(ctx); err != nil {
		return fmt.Errorf("failed to initialize MongoDB: %w", err)
	}

	if err := a.initPostgreSQL(ctx); err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	if err := a.initMailbox(); err != nil {
		return fmt.Errorf("failed to initialize mailbox: %w", err)
	}

	if err := a.InitEvents(); err != nil {
		return fmt.Errorf("failed to initialize events: %w", err)
	}

	if err := a.initPipeline(); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	metrics.RegisterPipelineMetrics()
	metrics.RegisterSessionMetrics()
	if a.Config.FlightInfo.Enabled {
		metrics.RegisterFlightInfoMetrics()
		metrics.RegisterCircuitBreakerMetrics()
	}
	if a.Config.Events.Enabled {
		metrics.RegisterEventsMetrics()
	}

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initRedis(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb
	return nil
}

func (a *App) initMongoDB(ctx context.Context) error {
	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	if mongoClient == nil {
		return nil
	}
	a.mongoClient = mongoClient

	dbName := a.Config.Database.MongoDB.Database
	if dbName == "" {
		dbName = constants.DefaultMongoDBName
	}
	return migrations.EnsureMongoCollection(ctx, mongoClient.Database(dbName))
}

func (a *App) initPostgreSQL(ctx context.Context) error {
	postgresDB, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.postgresDB = postgresDB

	if a.Config.Database.Postgres.RunMigrations {
		if err := migrations.RunPostgres(postgresDB, a.Config.Database.Postgres.DBName); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return nil
}

func (a *App) initMailbox() error {
	client, err := mailbox.NewIMAPClient(a.Config.Mailbox, a.Logger)
	if err != nil {
		return err
	}
	a.imap = client
	return nil
}

func (a *App) initPipeline() error {
	if len(a.Config.Sources) == 0 {
		return fmt.Errorf("no sources configured")
	}

	sources := make([]orchestrator.Source, 0, len(a.Config.Sources))
	for _, sc := range a.Config.Sources {
		src, mgr, err := a.buildSource(sc)
		if err != nil {
			return fmt.Errorf("source %q: %w", sc.Name, err)
		}
		sources = append(sources, src)
		a.sessions = append(a.sessions, mgr)
	}

	table := a.Config.Sink.Table
	if table == "" {
		table = constants.DefaultBookingsTable
	}
	bookingSink := sink.NewPostgresSink(a.postgresDB, table, a.Logger)

	var cache orchestrator.ProcessedCache
	if a.redis != nil {
		cache = orchestrator.NewRedisCache(a.redis, a.Config.Pipeline.ProcessedTTL)
	} else {
		cache = orchestrator.NewMemoryCache(a.Config.Pipeline.ProcessedTTL)
	}

	orch := orchestrator.New(a.Config.Pipeline, sources, bookingSink, cache, a.Publisher, a.Logger)

	if a.Config.FlightInfo.Enabled {
		orch.WithFlightLookup(flightinfo.NewHTTPProvider(a.Config.FlightInfo, a.Logger))
	}
	if a.mongoClient != nil {
		dbName := a.Config.Database.MongoDB.Database
		if dbName == "" {
			dbName = constants.DefaultMongoDBName
		}
		orch.WithArchive(archive.NewRepository(a.mongoClient.Database(dbName), a.Logger))
	}

	a.orch = orch
	return nil
}

func (a *App) buildSource(sc config.SourceConfig) (orchestrator.Source, *session.Manager, error) {
	adapter, err := mailsource.NewAdapter(sc, a.imap, a.Logger)
	if err != nil {
		return orchestrator.Source{}, nil, err
	}

	var otp *session.OTPRetriever
	if sc.Session.OTP.Enabled {
		otp, err = session.NewOTPRetriever(sc.Name, sc.Session.OTP, a.imap, a.Logger)
		if err != nil {
			return orchestrator.Source{}, nil, err
		}
	}

	mgr, err := session.NewManager(sc.Name, sc.Session, otp, a.Logger)
	if err != nil {
		return orchestrator.Source{}, nil, err
	}

	var crawl crawler.Crawler
	switch strings.ToUpper(sc.Platform) {
	case "CTRIP":
		crawl = crawler.NewTripcomCrawler(sc.Name, sc.Platform, sc.Session.DetailURL, mgr, a.Logger)
	case "KKDAY":
		crawl = crawler.NewKKdayCrawler(sc.Name, sc.Platform, sc.Session.DetailURL, mgr, a.Logger)
	default:
		return orchestrator.Source{}, nil, fmt.Errorf("unknown platform %q", sc.Platform)
	}

	return orchestrator.Source{
		Adapter: adapter,
		Crawler: crawl,
		Session: mgr,
		Labels:  labels.NewStore(a.imap, a.Logger),
	}, mgr, nil
}

func (a *App) initHTTPServer() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgresChecker(a.postgresDB))
	healthRegistry.Register(health.NewFuncChecker("imap", a.imap.Ping))
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/status", func(c *gin.Context) {
		sessions := make(map[string]string, len(a.sessions))
		for _, mgr := range a.sessions {
			sessions[mgr.Source()] = string(mgr.State())
		}

		processed, err := a.orch.ProcessedCount(c.Request.Context())
		if err != nil {
			processed = -1
		}

		c.JSON(http.StatusOK, gin.H{
			"in_flight": a.orch.InFlight(),
			"processed": processed,
			"sessions":  sessions,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// ListenAndServe does not watch the context; unblock it on shutdown.
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return a.orch.Run(gCtx)
	})

	for _, mgr := range a.sessions {
		mgr := mgr
		g.Go(func() error {
			mgr.ReloginLoop(gCtx)
			return nil
		})
	}

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("Shutting down ingest service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.imap != nil {
			if err := a.imap.Close(); err != nil {
				errs = append(errs, fmt.Errorf("mailbox close error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.postgresDB, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
