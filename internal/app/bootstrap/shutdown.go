// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown cleanly tears down realtime connections, the broker, and DB
// connections, in that order.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Sweeper != nil {
		deps.Sweeper.Stop()
	}
	if deps.Hub != nil {
		logger.Info("closing realtime connections", zap.Int("count", deps.Hub.Count()))
		deps.Hub.CloseAll("server shutting down")
	}
	if deps.LoginLimiter != nil {
		deps.LoginLimiter.Stop()
	}
	return closeBackends(ctx, deps, logger)
}

// closeBackends closes the broker and the clients it runs on, then MongoDB.
// It returns the MongoDB disconnect error, if any; the others are logged.
func closeBackends(ctx context.Context, deps DBDeps, logger *zap.Logger) error {
	if deps.Broker != nil {
		if err := deps.Broker.Close(); err != nil {
			logger.Warn("broker close failed", zap.Error(err))
		}
	}
	if deps.Redis != nil {
		if err := deps.Redis.Close(); err != nil {
			logger.Warn("Redis close failed", zap.Error(err))
		}
	}
	if deps.AMQP != nil && !deps.AMQP.IsClosed() {
		if err := deps.AMQP.Close(); err != nil {
			logger.Warn("AMQP close failed", zap.Error(err))
		}
	}
	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
