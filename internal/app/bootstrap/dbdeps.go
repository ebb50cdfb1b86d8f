// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/voluntahub/internal/app/features/realtime"
	"github.com/dalemusser/voluntahub/internal/app/system/pubsub"
	"github.com/dalemusser/voluntahub/internal/app/system/ratelimit"
	"github.com/dalemusser/voluntahub/internal/app/system/workers"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// Redis and AMQP are set only when the matching broker type is configured.
// Broker is always set; it fans posting events out to realtime connections.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Redis *redis.Client
	AMQP  *amqp.Connection

	Broker       pubsub.Broker
	Hub          *realtime.Hub
	Sweeper      *workers.ConnectionSweeper
	LoginLimiter *ratelimit.LoginLimiter
}
