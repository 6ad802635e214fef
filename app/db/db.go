package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"usersvc/config"
)

const defaultRetries = 5

// Init connects a Mongo client using the configured URI.
// The caller owns the client and must Disconnect it on shutdown.
func Init(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*mongo.Client, error) {
	logger.Info("Connecting to MongoDB...", slog.String("database", cfg.Repositories.Mongo.Database))

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(cfg.Repositories.Mongo.URI).
		SetRetryWrites(true))
	if err != nil {
		logger.Error("Failed to connect to MongoDB", slog.Any("error", err))
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	return client, nil
}

// WaitForDB pings the server until it responds or retries are exhausted.
func WaitForDB(ctx context.Context, client *mongo.Client, logger *slog.Logger) bool {
	maxAttempts := defaultRetries
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err := client.Ping(ctx, nil)
		if err == nil {
			logger.InfoContext(ctx, "MongoDB connection successful")
			return true
		}

		waitDuration := time.Duration(attempts) * 200 * time.Millisecond
		logger.WarnContext(ctx, "MongoDB ping failed, retrying...",
			slog.Int("attempt", attempts),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("wait_duration", waitDuration),
			slog.String("error", err.Error()),
		)
		if attempts < maxAttempts {
			time.Sleep(waitDuration)
		}
	}
	logger.ErrorContext(ctx, "MongoDB connection failed after multiple retries")
	return false
}
