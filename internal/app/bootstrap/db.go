// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/voluntahub/internal/app/features/realtime"
	userstore "github.com/dalemusser/voluntahub/internal/app/store/users"
	"github.com/dalemusser/voluntahub/internal/app/system/indexes"
	"github.com/dalemusser/voluntahub/internal/app/system/pubsub"
	"github.com/dalemusser/voluntahub/internal/app/system/ratelimit"
	"github.com/dalemusser/voluntahub/internal/app/system/timeouts"
	"github.com/dalemusser/voluntahub/internal/app/system/validators"
	"github.com/dalemusser/voluntahub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB opens MongoDB and the configured realtime broker, and builds the
// in-process pieces that depend on them (connection hub, sweeper, login
// limiter). On any failure, whatever was already opened is closed again.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (deps DBDeps, err error) {
	defer func() {
		if err != nil {
			closeBackends(context.Background(), deps, logger)
		}
	}()

	deps.MongoClient, err = connectMongo(ctx, appCfg, logger)
	if err != nil {
		return deps, err
	}
	deps.MongoDatabase = deps.MongoClient.Database(appCfg.MongoDatabase)

	if err = connectBroker(ctx, appCfg, &deps, logger); err != nil {
		return deps, err
	}

	deps.Hub = realtime.NewHub(logger)
	deps.Sweeper = workers.NewConnectionSweeper(deps.Hub, userstore.NewFetcher(deps.MongoDatabase), logger, appCfg.RealtimeSweepInterval)
	deps.LoginLimiter = ratelimit.NewLoginLimiter(ratelimit.LoginLimits{
		PerIP:         appCfg.LoginIPLimit,
		IPPeriod:      time.Minute,
		PerAccount:    appCfg.LoginEmailLimit,
		AccountPeriod: 5 * time.Minute,
	})
	return deps, nil
}

func connectMongo(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(appCfg.MongoURI)
	if appCfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(appCfg.MongoMaxPoolSize)
	}
	if appCfg.MongoMinPoolSize > 0 {
		opts.SetMinPoolSize(appCfg.MongoMinPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		logger.Error("MongoDB connect failed", zap.Error(err))
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), logger, "mongo startup ping")
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		logger.Error("MongoDB ping failed", zap.Error(err))
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool", appCfg.MongoMaxPoolSize),
		zap.Uint64("min_pool", appCfg.MongoMinPoolSize),
	)
	return client, nil
}

func connectBroker(ctx context.Context, appCfg AppConfig, deps *DBDeps, logger *zap.Logger) error {
	switch appCfg.BrokerType {
	case pubsub.KindRedis:
		deps.Redis = redis.NewClient(&redis.Options{
			Addr:     appCfg.RedisAddr,
			Password: appCfg.RedisPassword,
			DB:       appCfg.RedisDB,
		})
		pingCtx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), logger, "redis startup ping")
		defer cancel()
		if err := deps.Redis.Ping(pingCtx).Err(); err != nil {
			logger.Error("Redis ping failed", zap.String("addr", appCfg.RedisAddr), zap.Error(err))
			return fmt.Errorf("ping redis: %w", err)
		}
		b, err := pubsub.NewRedis(ctx, deps.Redis, appCfg.RedisChannelPrefix, logger)
		if err != nil {
			return fmt.Errorf("redis broker: %w", err)
		}
		deps.Broker = b

	case pubsub.KindAMQP:
		conn, err := amqp.Dial(appCfg.AMQPURL)
		if err != nil {
			logger.Error("AMQP dial failed", zap.Error(err))
			return fmt.Errorf("dial amqp: %w", err)
		}
		deps.AMQP = conn
		b, err := pubsub.NewAMQP(conn, appCfg.AMQPExchange, logger)
		if err != nil {
			return fmt.Errorf("amqp broker: %w", err)
		}
		deps.Broker = b

	default:
		deps.Broker = pubsub.NewMemory(pubsub.DefaultBuffer, logger)
	}

	logger.Info("realtime broker ready", zap.String("kind", deps.Broker.Kind()))
	return nil
}

// EnsureSchema creates the collections with their JSON-Schema validators,
// then the unique email index, the posting indexes, and the audit indexes.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), logger, "ensure schema")
	defer cancel()
	if err := validators.EnsureAll(ctx, deps.MongoDatabase, logger); err != nil {
		logger.Error("collection validator setup failed", zap.Error(err))
		return err
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase, logger); err != nil {
		logger.Error("index setup failed", zap.Error(err))
		return err
	}
	return nil
}
