// Package platform connects the backing services shared by the binaries
package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"cehpoint/project-portal/project-portal-backend/internal/config"
	"cehpoint/project-portal/project-portal-backend/internal/notifications"
	"cehpoint/project-portal/project-portal-backend/internal/projects"
	"cehpoint/project-portal/project-portal-backend/internal/quotation"
	"cehpoint/project-portal/project-portal-backend/internal/search"
	"cehpoint/project-portal/project-portal-backend/internal/wizard"
	"cehpoint/project-portal/project-portal-backend/pkg/dedup"
	"cehpoint/project-portal/project-portal-backend/pkg/storage"
)

// NewLogger returns a JSON production logger for "production" and a
// development logger for anything else
func NewLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if level == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return client, nil
}

// OpenHistory uses Postgres when reachable and keeps history in memory otherwise
func OpenHistory(cfg config.DatabaseConfig, logger *zap.Logger) projects.HistoryRepository {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Warn("Postgres unavailable, status history kept in memory", zap.Error(err))
		return projects.NewMemoryHistoryRepository()
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(cfg.MaxConnections)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	if err := projects.Migrate(db); err != nil {
		logger.Warn("Status history migration failed, using memory", zap.Error(err))
		return projects.NewMemoryHistoryRepository()
	}
	return projects.NewGormHistoryRepository(db)
}

// OpenRedis returns nil when Redis cannot be reached
func OpenRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, wizard drafts kept in memory", zap.Error(err))
		rdb.Close()
		return nil
	}
	return rdb
}

func NewGuard(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) wizard.SubmitGuard {
	return dedup.NewDeduper(rdb, ttl, logger)
}

// AWSClients holds the SDK clients. A client is nil when its bucket, table,
// sender or topic is not configured.
type AWSClients struct {
	Files  *storage.DocumentStore
	Dynamo quotation.DynamoAPI
	Email  notifications.EmailSender
	Events notifications.EventPublisher
}

func NewAWSClients(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*AWSClients, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWS.Region)}
	if cfg.AWS.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.AWS.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.AWS.Endpoint != ""
	})

	clients := &AWSClients{}
	if cfg.Storage.Bucket != "" {
		clients.Files = storage.NewDocumentStore(storage.NewS3Client(s3Client), cfg.Storage.Bucket, cfg.Storage.URLExpiry)
	}
	if cfg.Quotation.LedgerTable != "" {
		clients.Dynamo = dynamodb.NewFromConfig(awsCfg)
	}
	if cfg.Email.FromAddress != "" {
		clients.Email = sesv2.NewFromConfig(awsCfg)
	} else {
		logger.Info("SES_FROM_ADDRESS not set, status emails disabled")
	}
	if cfg.Events.TopicARN != "" {
		clients.Events = sns.NewFromConfig(awsCfg)
	}
	return clients, nil
}

func OpenSearch(ctx context.Context, cfg config.SearchConfig, logger *zap.Logger) projects.Indexer {
	if len(cfg.Addresses) == 0 {
		return search.Noop{}
	}
	client, err := search.NewClient(cfg.Addresses, cfg.Username, cfg.Password)
	if err != nil {
		logger.Warn("Elasticsearch client failed, search disabled", zap.Error(err))
		return search.Noop{}
	}
	index := search.NewProjectIndex(client, cfg.Index, logger)
	if err := index.EnsureIndex(ctx); err != nil {
		logger.Warn("Failed to ensure search index", zap.Error(err))
	}
	return index
}
