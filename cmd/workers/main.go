package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"cehpoint/project-portal/project-portal-backend/internal/config"
	"cehpoint/project-portal/project-portal-backend/internal/notifications"
	"cehpoint/project-portal/project-portal-backend/internal/platform"
	"cehpoint/project-portal/project-portal-backend/internal/projects"
)

// The deadline worker marks overdue in-progress projects as delayed. It runs
// apart from the API so a single instance sweeps.
func main() {
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := platform.NewLogger(cfg.Logging.Level)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	mongoClient, err := platform.ConnectMongo(connectCtx, cfg.Mongo.URI)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoClient.Disconnect(context.Background())

	clients, err := platform.NewAWSClients(connectCtx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to configure AWS", zap.Error(err))
	}

	// No websocket hub in this process; clients hear about delays by email
	notifier := notifications.NewNotifier(clients.Email, clients.Events, nil, notifications.Config{
		FromAddress: cfg.Email.FromAddress,
		TopicARN:    cfg.Events.TopicARN,
	}, logger)

	repo := projects.NewMongoRepository(mongoClient.Database(cfg.Mongo.Database).Collection(cfg.Mongo.ProjectsCollection))
	service := projects.NewService(repo,
		platform.OpenHistory(cfg.Database, logger),
		platform.OpenSearch(connectCtx, cfg.Search, logger),
		notifier,
		logger,
	)

	sweeper := projects.NewDeadlineSweeper(service, cfg.Scheduler.DeadlineSweep, logger)
	if err := sweeper.Start(ctx); err != nil {
		logger.Fatal("Failed to start deadline sweeper", zap.Error(err))
	}

	<-ctx.Done()
	logger.Info("Deadline worker shutting down")
	sweeper.Stop()
}
