package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Mongo     MongoConfig     `json:"mongo"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	AWS       AWSConfig       `json:"aws"`
	Storage   StorageConfig   `json:"storage"`
	Quotation QuotationConfig `json:"quotation"`
	Email     EmailConfig     `json:"email"`
	Events    EventsConfig    `json:"events"`
	Search    SearchConfig    `json:"search"`
	TextGen   TextGenConfig   `json:"text_gen"`
	Security  SecurityConfig  `json:"security"`
	OAuth     OAuthConfig     `json:"oauth"`
	Wizard    WizardConfig    `json:"wizard"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Logging   LoggingConfig   `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	AllowOrigin  string        `json:"allow_origin"`
	FrontendURL  string        `json:"frontend_url"` // OAuth callbacks redirect here
}

// MongoConfig holds the document database holding Projects and users
type MongoConfig struct {
	URI                string `json:"uri"`
	Database           string `json:"database"`
	ProjectsCollection string `json:"projects_collection"`
	UsersCollection    string `json:"users_collection"`
}

// DatabaseConfig represents the relational audit store
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// AWSConfig is shared by S3, DynamoDB, SES and SNS clients
type AWSConfig struct {
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint,omitempty"` // localstack and friends
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
}

type StorageConfig struct {
	Bucket    string        `json:"bucket"`
	URLExpiry time.Duration `json:"url_expiry"`
}

type QuotationConfig struct {
	LedgerTable string `json:"ledger_table"`
}

type EmailConfig struct {
	FromAddress string `json:"from_address"`
}

type EventsConfig struct {
	TopicARN string `json:"topic_arn"`
}

type SearchConfig struct {
	Addresses []string `json:"addresses"`
	Username  string   `json:"username,omitempty"`
	Password  string   `json:"password,omitempty"`
	Index     string   `json:"index"`
}

type TextGenConfig struct {
	APIKey  string        `json:"api_key"`
	Model   string        `json:"model"`
	BaseURL string        `json:"base_url,omitempty"`
	Timeout time.Duration `json:"timeout"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string        `json:"jwt_secret"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

type OAuthConfig struct {
	GoogleClientID     string `json:"google_client_id"`
	GoogleClientSecret string `json:"google_client_secret"`
	GoogleRedirectURL  string `json:"google_redirect_url"`
}

type WizardConfig struct {
	DraftTTL time.Duration `json:"draft_ttl"`
	DedupTTL time.Duration `json:"dedup_ttl"`
}

type SchedulerConfig struct {
	DeadlineSweep string `json:"deadline_sweep"` // cron spec with seconds
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from defaults, an optional JSON file, an
// optional .env file and finally the process environment.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	overrideWithEnv(config)

	return config, nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
			AllowOrigin:  "*",
		},
		Mongo: MongoConfig{
			URI:                "mongodb://localhost:27017",
			Database:           "project_portal",
			ProjectsCollection: "Projects",
			UsersCollection:    "users",
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "project_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    time.Hour,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		AWS: AWSConfig{
			Region: "ap-south-1",
		},
		Storage: StorageConfig{
			URLExpiry: time.Hour,
		},
		Search: SearchConfig{
			Index: "projects",
		},
		TextGen: TextGenConfig{
			Model:   "gemini-2.0-flash",
			Timeout: 90 * time.Second,
		},
		Security: SecurityConfig{
			TokenTTL: 24 * time.Hour,
		},
		Wizard: WizardConfig{
			DraftTTL: 30 * 24 * time.Hour,
			DedupTTL: 10 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			DeadlineSweep: "0 0 * * * *",
		},
		Logging: LoggingConfig{
			Level: "development",
		},
	}
}

func overrideWithEnv(config *Config) {
	setString(&config.Server.Host, "SERVER_HOST")
	setInt(&config.Server.Port, "SERVER_PORT")
	setString(&config.Server.AllowOrigin, "CORS_ALLOW_ORIGIN")
	setString(&config.Server.FrontendURL, "FRONTEND_URL")

	setString(&config.Mongo.URI, "MONGO_URI")
	setString(&config.Mongo.Database, "MONGO_DB")

	setString(&config.Database.Host, "DATABASE_HOST")
	setInt(&config.Database.Port, "DATABASE_PORT")
	setString(&config.Database.User, "DATABASE_USER")
	setString(&config.Database.Password, "DATABASE_PASSWORD")
	setString(&config.Database.DBName, "DATABASE_DBNAME")
	setString(&config.Database.SSLMode, "DATABASE_SSLMODE")

	setString(&config.Redis.Addr, "REDIS_ADDR")
	setString(&config.Redis.Password, "REDIS_PASSWORD")
	setInt(&config.Redis.DB, "REDIS_DB")

	setString(&config.AWS.Region, "AWS_REGION")
	setString(&config.AWS.Endpoint, "AWS_ENDPOINT_URL")
	setString(&config.AWS.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&config.AWS.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString(&config.Storage.Bucket, "S3_BUCKET")
	setDuration(&config.Storage.URLExpiry, "STORAGE_URL_EXPIRY")
	setString(&config.Quotation.LedgerTable, "DYNAMODB_QUOTATION_TABLE")
	setString(&config.Email.FromAddress, "SES_FROM_ADDRESS")
	setString(&config.Events.TopicARN, "SNS_TOPIC_ARN")

	if addrs := os.Getenv("ELASTICSEARCH_URL"); addrs != "" {
		config.Search.Addresses = strings.Split(addrs, ",")
	}
	setString(&config.Search.Username, "ELASTICSEARCH_USERNAME")
	setString(&config.Search.Password, "ELASTICSEARCH_PASSWORD")

	setString(&config.TextGen.APIKey, "GOOGLE_API_KEY")
	setString(&config.TextGen.Model, "TEXTGEN_MODEL")

	setString(&config.Security.JWTSecret, "JWT_SECRET")

	setString(&config.OAuth.GoogleClientID, "GOOGLE_OAUTH_CLIENT_ID")
	setString(&config.OAuth.GoogleClientSecret, "GOOGLE_OAUTH_CLIENT_SECRET")
	setString(&config.OAuth.GoogleRedirectURL, "GOOGLE_OAUTH_REDIRECT_URL")

	setDuration(&config.Wizard.DraftTTL, "WIZARD_DRAFT_TTL")
	setDuration(&config.Wizard.DedupTTL, "WIZARD_DEDUP_TTL")

	setString(&config.Scheduler.DeadlineSweep, "DEADLINE_SWEEP_CRON")
	setString(&config.Logging.Level, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// setDuration accepts time.ParseDuration syntax, e.g. "15m"
func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Enabled reports whether the relational audit store was configured
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != "" && c.DBName != ""
}
