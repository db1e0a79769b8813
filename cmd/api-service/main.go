package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/cuongbtq/jobflow/internal/api/handler"
	"github.com/cuongbtq/jobflow/internal/api/router"
	"github.com/cuongbtq/jobflow/internal/auth"
	"github.com/cuongbtq/jobflow/internal/config"
	"github.com/cuongbtq/jobflow/internal/gateway"
	"github.com/cuongbtq/jobflow/internal/queue"
	"github.com/cuongbtq/jobflow/internal/store"
	"github.com/cuongbtq/jobflow/shared/logger"
	"github.com/cuongbtq/jobflow/shared/postgresql"
	"github.com/cuongbtq/jobflow/shared/rabbitmq"
	"github.com/cuongbtq/jobflow/shared/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	workQueue, queuePing, closeQueue, err := initQueue(cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize work queue: %w", err)
	}
	defer closeQueue()

	jobStore := store.NewPostgresStore(dbClient.GetDB(), appLogger.Logger)
	jobGateway := gateway.New(jobStore, workQueue, appLogger.Logger)
	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r := router.SetupRouter(&handler.Dependencies{
		Logger:     appLogger.Logger,
		Gateway:    jobGateway,
		Auth:       authService,
		HealthPing: func(ctx context.Context) error {
			if err := dbClient.Ping(ctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			if queuePing != nil {
				if err := queuePing(ctx); err != nil {
					return fmt.Errorf("queue: %w", err)
				}
			}
			return nil
		},
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
}

// initQueue builds the configured work queue backend and returns it together
// with a connectivity ping (nil for the memory backend) and a close function
// for its underlying connection.
func initQueue(cfg *config.Config, logger *slog.Logger) (queue.Queue, func(context.Context) error, func(), error) {
	switch cfg.Queue.Backend {
	case config.QueueBackendRedis:
		client, err := redis.NewClient(&redis.Config{
			Host:        cfg.Redis.Host,
			Port:        cfg.Redis.Port,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		}, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		q := queue.NewRedisQueue(client.GetRDB(), cfg.Queue.Name, logger)
		return q, client.Ping, func() { client.Close() }, nil

	case config.QueueBackendRabbitMQ:
		client, err := rabbitmq.NewClient(&rabbitmq.Config{
			Host:               cfg.RabbitMQ.Host,
			Port:               cfg.RabbitMQ.Port,
			User:               cfg.RabbitMQ.User,
			Password:           cfg.RabbitMQ.Password,
			VHost:              cfg.RabbitMQ.VHost,
			ExchangeName:       cfg.RabbitMQ.Exchange.Name,
			ExchangeType:       cfg.RabbitMQ.Exchange.Type,
			ExchangeDurable:    cfg.RabbitMQ.Exchange.Durable,
			ExchangeAutoDelete: cfg.RabbitMQ.Exchange.AutoDelete,
			QueueName:          cfg.Queue.Name,
			RoutingKey:         cfg.RabbitMQ.RoutingKey,
			RetryAttempts:      cfg.RabbitMQ.Connection.RetryAttempts,
			RetryInterval:      cfg.RabbitMQ.Connection.RetryInterval,
			Heartbeat:          cfg.RabbitMQ.Connection.Heartbeat,
			ConnectionTimeout:  cfg.RabbitMQ.Connection.ConnectionTimeout,
		}, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		q := queue.NewRabbitQueue(client, cfg.App.Name, logger)
		ping := func(context.Context) error {
			if !client.IsConnected() {
				return fmt.Errorf("rabbitmq connection lost")
			}
			return nil
		}
		return q, ping, func() { client.Close() }, nil

	case config.QueueBackendMemory:
		return queue.NewMemoryQueue(), nil, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown queue backend: %q", cfg.Queue.Backend)
	}
}
