package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/api"
	"github.com/sahilchouksey/syllabus-sync/config"
	"github.com/sahilchouksey/syllabus-sync/database"
	chat_handlers "github.com/sahilchouksey/syllabus-sync/handlers/chat"
	syllabus_handlers "github.com/sahilchouksey/syllabus-sync/handlers/syllabus"
	task_handlers "github.com/sahilchouksey/syllabus-sync/handlers/task"
	"github.com/sahilchouksey/syllabus-sync/router"
	"github.com/sahilchouksey/syllabus-sync/services"
	"github.com/sahilchouksey/syllabus-sync/services/cron"
	"github.com/sahilchouksey/syllabus-sync/utils"
	"github.com/sahilchouksey/syllabus-sync/utils/auth"
	"github.com/sahilchouksey/syllabus-sync/utils/metrics"
	"github.com/sahilchouksey/syllabus-sync/utils/middleware"
)

const shutdownTimeout = 30 * time.Second

func SetupAndRunServer() error {

	// Load ENV; a missing .env file is fine when the environment is already set
	envErr := config.LoadENV()

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	logger, err := utils.NewLogger(getEnv.GO_ENV, getEnv.LOG_LEVEL)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Debug("no .env file loaded", zap.Error(envErr))
	}
	if getEnv.JWT_SECRET == "" {
		return errors.New("JWT_SECRET environment variable is not set")
	}

	// Initialize GORM database connection
	store, err := database.StartGORM(getEnv, logger.Named("database"))
	if err != nil {
		logger.Error("check whether Postgres is running", zap.Error(err))
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}()

	if err := store.Init(); err != nil {
		logger.Error("failed to initialize database tables", zap.Error(err))
		return err
	}

	objects, err := NewObjectStore(getEnv)
	if err != nil {
		return fmt.Errorf("failed to set up storage: %w", err)
	}
	upstreams, err := NewUpstreams(getEnv, logger)
	if err != nil {
		return err
	}
	resultCache, closeCache := NewResultCache(getEnv, logger)
	defer closeCache()

	pipelineMetrics := metrics.NewPipelineMetrics()
	pipeline := NewPipeline(upstreams, resultCache, pipelineMetrics, logger)

	// Repositories
	db := store.DB()
	users := database.NewUserRepository(db)
	documentRepo := database.NewDocumentRepository(db)
	taskRepo := database.NewTaskRepository(db)
	streakRepo := database.NewStreakRepository(db)

	// Services
	documentService := services.NewDocumentService(documentRepo, objects, pipeline, logger.Named("documents"))
	streakService := services.NewStreakService(taskRepo, streakRepo, logger.Named("streaks"))
	taskService := services.NewTaskService(taskRepo, documentService, streakService, logger.Named("tasks"))
	intentService := services.NewIntentService(upstreams.Inference, logger.Named("intent"), pipelineMetrics)
	chatService := services.NewChatService(intentService, upstreams.Inference, taskService, logger.Named("chat"))

	// Initialize Cron Manager (only if enabled via environment variable)
	if getEnv.CRON_ENABLED {
		cronManager := cron.NewCronManager(documentRepo, objects, logger.Named("cron"))
		if err := cronManager.Start(); err != nil {
			// Don't fail the app, just log the warning
			logger.Warn("failed to start cron jobs", zap.Error(err))
		} else {
			defer cronManager.Stop()
		}
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: getEnv.JWT_SECRET,
		Issuer: getEnv.JWT_ISSUER,
	})

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT), logger.Named("http"))
	router.SetupRoutes(server.GetEngine(), router.Routes{
		Store:          store,
		Auth:           middleware.NewAuthMiddleware(jwtManager, users, logger.Named("auth")),
		Syllabus:       syllabus_handlers.NewSyllabusHandler(documentService, taskService, logger.Named("syllabus")),
		Tasks:          task_handlers.NewTaskHandler(taskService, logger.Named("tasks")),
		Chat:           chat_handlers.NewChatHandler(chatService, logger.Named("chat")),
		Metrics:        pipelineMetrics,
		AllowedOrigins: getEnv.ALLOWED_ORIGINS,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
