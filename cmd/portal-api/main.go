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
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"cehpoint/project-portal/project-portal-backend/internal/auth"
	"cehpoint/project-portal/project-portal-backend/internal/config"
	"cehpoint/project-portal/project-portal-backend/internal/docs"
	"cehpoint/project-portal/project-portal-backend/internal/notifications"
	"cehpoint/project-portal/project-portal-backend/internal/notifications/websocket"
	"cehpoint/project-portal/project-portal-backend/internal/platform"
	"cehpoint/project-portal/project-portal-backend/internal/projects"
	"cehpoint/project-portal/project-portal-backend/internal/quotation"
	"cehpoint/project-portal/project-portal-backend/internal/wizard"
	"cehpoint/project-portal/project-portal-backend/pkg/metrics"
	"cehpoint/project-portal/project-portal-backend/pkg/pdf"
	"cehpoint/project-portal/project-portal-backend/pkg/textgen"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := platform.NewLogger(cfg.Logging.Level)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Document database
	mongoClient, err := platform.ConnectMongo(ctx, cfg.Mongo.URI)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoClient.Disconnect(context.Background())

	mdb := mongoClient.Database(cfg.Mongo.Database)
	projectsColl := mdb.Collection(cfg.Mongo.ProjectsCollection)
	usersColl := mdb.Collection(cfg.Mongo.UsersCollection)
	if err := auth.EnsureIndexes(ctx, usersColl); err != nil {
		logger.Warn("Failed to ensure user indexes", zap.Error(err))
	}

	history := platform.OpenHistory(cfg.Database, logger)
	rdb := platform.OpenRedis(ctx, cfg.Redis, logger)

	clients, err := platform.NewAWSClients(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to configure AWS", zap.Error(err))
	}
	if clients.Files == nil {
		logger.Fatal("S3_BUCKET is required to host quotations and documentation")
	}

	index := platform.OpenSearch(ctx, cfg.Search, logger)

	// Websocket hub and notifications
	wsManager := websocket.NewManager(cfg.Server.AllowOrigin, logger)
	defer wsManager.Close()

	notifier := notifications.NewNotifier(clients.Email, clients.Events, wsManager, notifications.Config{
		FromAddress: cfg.Email.FromAddress,
		TopicARN:    cfg.Events.TopicARN,
	}, logger)

	// Authentication
	tokens := auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	authService := auth.NewService(auth.NewMongoUserRepository(usersColl), tokens, auth.GoogleConfig{
		ClientID:     cfg.OAuth.GoogleClientID,
		ClientSecret: cfg.OAuth.GoogleClientSecret,
		RedirectURL:  cfg.OAuth.GoogleRedirectURL,
	}, logger)

	// Projects
	projectService := projects.NewService(projects.NewMongoRepository(projectsColl), history, index, notifier, logger)

	// Documentation and wizard
	generator := textgen.NewClient(textgen.Config{
		APIKey:  cfg.TextGen.APIKey,
		Model:   cfg.TextGen.Model,
		BaseURL: cfg.TextGen.BaseURL,
		Timeout: cfg.TextGen.Timeout,
	}, logger)
	extractor := docs.NewExtractor()
	docService := docs.NewService(clients.Files, extractor, generator, logger)

	ledger := quotation.NewNoopLedger()
	if clients.Dynamo != nil && cfg.Quotation.LedgerTable != "" {
		ledger = quotation.NewDynamoLedger(clients.Dynamo, cfg.Quotation.LedgerTable)
	}

	deps := wizard.Dependencies{
		Drafts:        wizard.NewMemoryRepository(),
		Quotations:    quotation.NewGenerator(quotation.NewCalculator(quotation.DefaultRates), quotation.DefaultCompany),
		Documentation: docService,
		Files:         clients.Files,
		Extractor:     extractor,
		Renderer:      pdf.NewGenerator(pdf.DefaultOptions()),
		Projects:      projectService,
		Ledger:        ledger,
		Profiles:      authService,
		Logger:        logger,

		StaleUploadAfter: cfg.Wizard.DedupTTL,
	}
	if rdb != nil {
		deps.Drafts = wizard.NewRedisRepository(rdb, cfg.Wizard.DraftTTL)
		deps.Guard = platform.NewGuard(rdb, cfg.Wizard.DedupTTL, logger)
	}
	wizardService := wizard.NewService(deps)

	router := newRouter(cfg, logger, routes{
		tokens:    tokens,
		auth:      auth.NewHandler(authService, cfg.Server.FrontendURL, logger),
		wizard:    wizard.NewHandler(wizardService, logger),
		docs:      docs.NewHandler(docService),
		projects:  projects.NewHandler(projectService, clients.Files, logger),
		websocket: wsManager,
		mongo:     mongoClient,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

type routes struct {
	tokens    *auth.TokenManager
	auth      *auth.Handler
	wizard    *wizard.Handler
	docs      *docs.Handler
	projects  *projects.Handler
	websocket *websocket.Manager
	mongo     *mongo.Client
}

func newRouter(cfg *config.Config, logger *zap.Logger, r routes) *gin.Engine {
	if cfg.Logging.Level == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), metrics.Middleware(), cors(cfg.Server.AllowOrigin))

	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{
			"status":      "healthy",
			"timestamp":   time.Now(),
			"connections": r.websocket.ConnectionCount(),
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := r.mongo.Ping(ctx, nil); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["mongo"] = err.Error()
		}
		c.JSON(status, body)
	})
	router.GET("/metrics", metrics.Handler())

	api := router.Group("/api/v1")
	auth.RegisterRoutes(api, r.auth, r.tokens)

	protected := api.Group("", auth.Middleware(r.tokens))
	protected.GET("/ws", r.websocket.Handle)

	client := protected.Group("", auth.RequireRole(auth.RoleClient))
	r.wizard.RegisterRoutes(client)
	r.docs.RegisterRoutes(client)
	r.projects.RegisterClientRoutes(client)

	r.projects.RegisterAdminRoutes(protected.Group("", auth.RequireRole(auth.RoleAdmin)))
	r.projects.RegisterDeveloperRoutes(protected.Group("", auth.RequireRole(auth.RoleDeveloper)))

	return router
}

func cors(allowOrigin string) gin.HandlerFunc {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
