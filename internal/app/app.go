package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/taskflowhq/taskflow/internal/auth"
	"github.com/taskflowhq/taskflow/internal/config"
	"github.com/taskflowhq/taskflow/internal/event"
	taskflowhttp "github.com/taskflowhq/taskflow/internal/handler/http"
	"github.com/taskflowhq/taskflow/internal/mailer"
	"github.com/taskflowhq/taskflow/internal/repository/postgres"
	"github.com/taskflowhq/taskflow/internal/service"
	"github.com/taskflowhq/taskflow/migrations"
	"github.com/taskflowhq/taskflow/pkg/database"
	"github.com/taskflowhq/taskflow/pkg/health"
	pkgkafka "github.com/taskflowhq/taskflow/pkg/kafka"
	"github.com/taskflowhq/taskflow/pkg/middleware"
	"github.com/taskflowhq/taskflow/pkg/tracing"
)

// sweepInterval is how often expired sessions and blacklist entries are
// cleaned up.
const sweepInterval = time.Hour

// App wires together all dependencies of the TaskFlow server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	consumers      []*pkgkafka.Consumer
	authService    *service.AuthService
	server         *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp builds the application from configuration: connections, migrations,
// repositories, services, consumers, and the HTTP server.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Tracing first so every later step is instrumented.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "taskflow",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	database.RegisterPoolMetrics(pool, "taskflow")
	database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	kafkaProducer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	producer := event.NewProducer(kafkaProducer, logger)

	accessExpiry, err := time.ParseDuration(cfg.JWTAccessExpiry)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("parse access token expiry: %w", err)
	}
	refreshExpiry, err := time.ParseDuration(cfg.JWTRefreshExpiry)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("parse refresh token expiry: %w", err)
	}
	lockoutDuration, err := time.ParseDuration(cfg.LockoutDuration)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("parse lockout duration: %w", err)
	}
	verificationExpiry, err := time.ParseDuration(cfg.VerificationExpiry)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("parse verification expiry: %w", err)
	}
	resetExpiry, err := time.ParseDuration(cfg.ResetExpiry)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("parse reset expiry: %w", err)
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, accessExpiry, refreshExpiry)
	signer := auth.NewSigner(cfg.JWTSecret)

	var mailSender mailer.Sender
	if cfg.SMTPHost != "" {
		smtpSender, err := mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("create smtp sender: %w", err)
		}
		mailSender = smtpSender
	} else {
		// Without an SMTP relay, mail goes to the log. Fine for development.
		mailSender = mailer.NewLogSender(logger)
	}

	// Repositories
	userRepo := postgres.NewUserRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	blacklistRepo := postgres.NewBlacklistRepository(pool)
	attemptRepo := postgres.NewLoginAttemptRepository(pool)
	auditRepo := postgres.NewSecurityEventRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)
	noteRepo := postgres.NewNoteRepository(pool)
	habitRepo := postgres.NewHabitRepository(pool)
	habitLogRepo := postgres.NewHabitLogRepository(pool)
	folderRepo := postgres.NewFolderRepository(pool)
	teamRepo := postgres.NewTeamRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)

	// Services
	authService := service.NewAuthService(service.AuthConfig{
		MaxLoginAttempts:   cfg.MaxLoginAttempts,
		LockoutDuration:    lockoutDuration,
		MaxDevicesPerUser:  cfg.MaxDevicesPerUser,
		VerificationExpiry: verificationExpiry,
		ResetExpiry:        resetExpiry,
		FrontendURL:        cfg.FrontendURL,
	}, userRepo, sessionRepo, blacklistRepo, attemptRepo, auditRepo, jwtManager, signer, mailSender, producer, logger)

	userService := service.NewUserService(userRepo, sessionRepo, logger)
	taskService := service.NewTaskService(taskRepo, folderRepo, teamRepo, userRepo, producer, logger)
	noteService := service.NewNoteService(noteRepo, folderRepo, userRepo, producer, logger)
	habitService := service.NewHabitService(habitRepo, habitLogRepo, userRepo, producer, logger)
	folderService := service.NewFolderService(folderRepo, logger)
	teamService := service.NewTeamService(teamRepo, userRepo, producer, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, logger)

	// Kafka consumers deliver domain events as in-app notifications.
	consumerHandler := event.NewConsumerHandler(notificationService, logger)
	consumers := event.NewConsumers(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, consumerHandler, logger)

	// Health checks
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return kafkaProducer.Ping(ctx)
	})

	router := taskflowhttp.NewRouter(taskflowhttp.RouterConfig{
		AuthService:         authService,
		UserService:         userService,
		TaskService:         taskService,
		NoteService:         noteService,
		HabitService:        habitService,
		FolderService:       folderService,
		TeamService:         teamService,
		NotificationService: notificationService,
		JWTManager:          jwtManager,
		HealthHandler:       healthHandler,
		Logger:              logger,
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
		PprofCIDRs: cfg.PprofAllowedCIDRs,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       kafkaProducer,
		consumers:      consumers,
		authService:    authService,
		server:         server,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the consumers, the maintenance sweeper, and the HTTP server,
// then blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	for _, consumer := range a.consumers {
		c := consumer
		go func() {
			if err := c.Start(ctx); err != nil && ctx.Err() == nil {
				a.logger.ErrorContext(ctx, "kafka consumer stopped", slog.String("error", err.Error()))
			}
		}()
	}

	go a.runSweeper(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.InfoContext(ctx, "http server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

// Shutdown drains the HTTP server and closes every connection in dependency
// order.
func (a *App) Shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown", slog.String("error", err.Error()))
	}

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelFlush()
	if err := a.tracerShutdown(flushCtx); err != nil {
		a.logger.Error("tracer shutdown", slog.String("error", err.Error()))
	}

	for _, consumer := range a.consumers {
		if err := consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close", slog.String("error", err.Error()))
		}
	}
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close", slog.String("error", err.Error()))
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close", slog.String("error", err.Error()))
	}
	a.pool.Close()

	a.logger.Info("shutdown complete")
}

// runSweeper periodically removes expired sessions and blacklist entries.
func (a *App) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.authService.SweepExpired(ctx)
		}
	}
}
