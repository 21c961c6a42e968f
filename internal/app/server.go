// internal/app/server.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"impriartex-service/internal/changefeed"
	"impriartex-service/internal/config"
	"impriartex-service/internal/db"
	"impriartex-service/internal/domain/identity"
	"impriartex-service/internal/export"
	customerHandler "impriartex-service/internal/handlers/customer"
	equipmentHandler "impriartex-service/internal/handlers/equipment"
	exportHandler "impriartex-service/internal/handlers/export"
	projectionHandler "impriartex-service/internal/handlers/projection"
	sessionHandler "impriartex-service/internal/handlers/session"
	ticketHandler "impriartex-service/internal/handlers/ticket"
	wsHandler "impriartex-service/internal/handlers/websocket"
	"impriartex-service/internal/middleware"
	"impriartex-service/internal/pkg/jwt"
	"impriartex-service/internal/pkg/session"
	"impriartex-service/internal/projection"
	"impriartex-service/internal/repository/postgres"
	customersvc "impriartex-service/internal/service/customer"
	"impriartex-service/internal/service/inventory"
	ticketsvc "impriartex-service/internal/service/ticket"
	"impriartex-service/internal/websocket"
	wsHandlers "impriartex-service/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// changeSource is implemented by changefeed.PGSource and changefeed.RedisSource.
type changeSource interface {
	Run(ctx context.Context, publish func(changefeed.Event)) error
}

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	pool   *pgxpool.Pool
	sqlDB  *sql.DB
	redis  redis.UniversalClient
	broker *changefeed.Broker

	httpServer   *http.Server
	healthServer *http.Server

	cancel  context.CancelFunc
	feedErr chan error
	hubDone <-chan struct{}
}

func NewServer() *Server {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, db.PostgresConfig{URL: s.cfg.DatabaseURL, MaxConns: 20})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.pool = pool
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Info("postgres connected")

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		ClusterMode: s.cfg.RedisCluster,
		Addresses:   s.cfg.RedisAddrs,
		Password:    s.cfg.RedisPass,
		DB:          0,
		PoolSize:    10,
	})
	if err != nil {
		return err
	}
	s.redis = redisClient
	logger.Info("redis connected", zap.Strings("addrs", s.cfg.RedisAddrs))

	// ----- JWT Verifier & Revocations -----
	verifier, err := jwt.LoadVerifier(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}
	sessionManager := session.NewManager(redisClient)

	// ----- Change Feed -----
	s.broker = changefeed.NewBroker()
	var (
		source   changeSource
		notifier changefeed.Notifier
	)
	switch s.cfg.ChangeFeed {
	case config.FeedRedis:
		source = changefeed.NewRedisSource(redisClient, changefeed.DefaultChannel, logger)
		notifier = changefeed.NewRedisPublisher(redisClient, changefeed.DefaultChannel)
	case config.FeedPostgres:
		source = changefeed.NewPGSource(s.cfg.DatabaseURL, changefeed.DefaultChannel, logger)
		notifier = changefeed.NopNotifier{}
	default:
		return fmt.Errorf("unknown CHANGE_FEED %q", s.cfg.ChangeFeed)
	}
	s.feedErr = make(chan error, 1)
	go func() {
		err := source.Run(ctx, s.broker.Publish)
		if err != nil {
			// sessions keep their last snapshot; only a restart resumes the feed
			logger.Error("change feed stopped", zap.Error(err))
		}
		s.feedErr <- err
	}()
	logger.Info("change feed started", zap.String("mode", s.cfg.ChangeFeed))

	// ----- Repositories -----
	repos := postgres.NewRepositories(pool)

	// ----- Services -----
	ticketService := ticketsvc.NewTicketService(repos.Tickets, repos.Equipment, repos.Customers, notifier, logger)
	inventoryService := inventory.NewInventoryService(repos.Equipment, repos.Customers, notifier, s.cfg.DefaultBrand, logger)
	customerService := customersvc.NewCustomerService(repos.Customers, repos.Technicians, notifier, logger)

	// ----- WebSocket Hub -----
	reloadTimeout := s.cfg.ReloadTimeout
	hub := websocket.NewHub(func(actor identity.Identity, opts projection.Options) *projection.Cache {
		opts.ReloadTimeout = reloadTimeout
		return projection.NewCache(actor, repos, s.broker, logger, opts)
	}, logger)
	hub.RegisterHandler(wsHandlers.NewProjectionHandler())
	s.hubDone = hub.Done()
	go hub.Run(ctx)

	// ----- Export Archive -----
	var archive exportHandler.Archiver
	if s.cfg.ExportBucket != "" {
		s3Archive, err := export.NewS3Archive(ctx, export.S3Config{
			Region:          s.cfg.AWSRegion,
			AccessKeyID:     s.cfg.AWSAccessKeyID,
			SecretAccessKey: s.cfg.AWSSecretAccessKey,
			Bucket:          s.cfg.ExportBucket,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to set up report archive: %w", err)
		}
		archive = s3Archive
	} else {
		logger.Warn("EXPORT_BUCKET not set, report archiving disabled")
	}

	// ----- Handlers -----
	authMiddleware := middleware.NewAuthMiddleware(verifier, sessionManager, logger)
	handlers := &Handlers{
		TicketHandler:     ticketHandler.NewTicketHandler(ticketService),
		EquipmentHandler:  equipmentHandler.NewEquipmentHandler(inventoryService),
		CustomerHandler:   customerHandler.NewCustomerHandler(customerService),
		ProjectionHandler: projectionHandler.NewProjectionHandler(repos),
		ExportHandler: exportHandler.NewExportHandler(ticketService, archive, export.Options{
			Legacy:   s.cfg.LegacyExport,
			Location: s.cfg.ReportLocation(),
		}, logger),
		SessionHandler: sessionHandler.NewSessionHandler(sessionManager, hub, logger),
		WSHandler:      wsHandler.NewWebSocketHandler(hub, s.cfg.CORSOrigins, logger),
		AuthMiddleware: authMiddleware,
	}

	// ----- Router -----
	SetupRouter(s.engine, logger, s.cfg.CORSOrigins, handlers)

	// ----- Health -----
	s.sqlDB = stdlib.OpenDBFromPool(pool)
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(5000))
	health.AddReadinessCheck("database", healthcheck.DatabasePingCheck(s.sqlDB, time.Second))
	health.AddReadinessCheck("redis", redisPingCheck(redisClient, time.Second))
	s.healthServer = &http.Server{Addr: s.cfg.HealthAddr, Handler: health}
	go func() {
		if err := s.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server stopped", zap.Error(err))
		}
	}()

	// ----- Start HTTP -----
	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("server running", zap.String("addr", s.cfg.HTTPAddr), zap.String("health_addr", s.cfg.HealthAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes every realtime session, stops the change
// feed and releases the stores.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if s.healthServer != nil {
		if err := s.healthServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("health shutdown: %w", err))
		}
	}

	if s.cancel != nil {
		s.cancel()
	}
	if s.hubDone != nil {
		select {
		case <-s.hubDone:
		case <-ctx.Done():
			errs = append(errs, errors.New("hub did not stop in time"))
		}
	}
	if s.feedErr != nil {
		select {
		case err := <-s.feedErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				errs = append(errs, fmt.Errorf("change feed: %w", err))
			}
		case <-ctx.Done():
			errs = append(errs, errors.New("change feed did not stop in time"))
		}
	}
	if s.broker != nil {
		s.broker.Close()
	}

	if s.sqlDB != nil {
		_ = s.sqlDB.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if s.logger != nil {
		_ = s.logger.Sync()
	}

	return errors.Join(errs...)
}

func redisPingCheck(client redis.UniversalClient, timeout time.Duration) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return client.Ping(ctx).Err()
	}
}
