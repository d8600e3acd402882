package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"                  // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // recover and CORS
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/config"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/database"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/handler"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/metrics"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/middleware"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/queue"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/repository"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/router"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/seed"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/service"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/shelter"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Dev() {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	if cfg.LogLevel != "" {
		lvl, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		zc.Level = lvl
	}
	return zc.Build()
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	persist, closeDB, err := openPersister(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	m := metrics.New()
	notifier := shelter.NewNotifier(cfg.SubscriberBuffer, log.Named("notifier"), m)
	defer notifier.Close()

	store := shelter.NewStore(persist, notifier, shelter.WithLogger(log.Named("store")), shelter.WithRecorder(m))
	n, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load shelters: %w", err)
	}
	log.Info("shelters loaded", zap.Int("count", n), zap.String("driver", cfg.StoreDriver))

	if cfg.SeedFile != "" {
		recs, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return err
		}
		created, err := seed.Apply(ctx, store, recs, log.Named("seed"))
		if err != nil {
			return err
		}
		log.Info("seed applied", zap.String("file", cfg.SeedFile), zap.Int("created", created))
	}

	gateway := shelter.NewGateway(store, notifier)
	coordinator := shelter.NewCoordinator(store, log.Named("coordinator"), m)
	h := handler.NewShelterHandler(gateway, coordinator, log.Named("http"), cfg.SSEKeepAlive)

	rdb := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unavailable, staff rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowMethods: []string{http.MethodGet, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))
	e.Use(m.Middleware())
	e.Use(middleware.RequestLogger(log.Named("http")))

	router.RegisterRoutes(e, handler.Health(store, notifier, pinger(persist)), m.Handler())
	router.RegisterPublic(e, h)
	router.RegisterStaff(e, h, router.StaffOptions{
		JWTSecret: cfg.JWTSecret,
		Roles:     cfg.StaffRoles,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log.Named("ratelimit")),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// SSE streams end when the notifier closes; close it first so
		// Shutdown is not held up by open streams.
		notifier.Close()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(sctx)
	})

	broker := config.LoadBrokerConfig()
	if broker.Enabled {
		relay := service.NewRelay(notifier, service.AMQPDialer(broker), broker, log, m)
		g.Go(func() error { return relay.Run(gctx) })
		if broker.AuditEnabled {
			g.Go(func() error { return queue.StartAuditConsumer(gctx, broker, log) })
		}
		log.Info("broker relay enabled", zap.String("exchange", broker.Exchange))
	}

	return g.Wait()
}

// pinger exposes the SQL handle behind persist, if any, to the health probe.
func pinger(persist shelter.Persister) handler.Pinger {
	if repo, ok := persist.(*repository.ShelterRepo); ok {
		return repo.DB()
	}
	return nil
}

// openPersister returns the configured backend.  The memory driver keeps
// records only for the life of the process.
func openPersister(ctx context.Context, cfg config.Config, log *zap.Logger) (shelter.Persister, func(), error) {
	var (
		db      *sql.DB
		dialect database.Dialect
		err     error
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn("memory store driver: changes are lost on restart")
		return nil, func() {}, nil
	case config.DriverMySQL:
		db, err = database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		dialect = database.MySQL
	default:
		db, err = database.OpenSQLite(cfg.SQLitePath)
		dialect = database.SQLite
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.StoreDriver, err)
	}
	if err := database.Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return repository.NewShelterRepo(db), func() { _ = db.Close() }, nil
}
