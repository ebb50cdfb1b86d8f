package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// service is a lazily started container shared by every test in a package.
// Ryuk reaps it when the test binary exits.
type service struct {
	once sync.Once
	addr string
	err  error
}

// get starts the service once. testcontainers panics when it cannot find a
// Docker host; that panic is kept as the service error so every caller skips.
func (s *service) get(start func(ctx context.Context) (string, error)) (string, error) {
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				s.addr, s.err = "", fmt.Errorf("container runtime unavailable: %v", r)
			}
		}()
		s.addr, s.err = start(ctx)
	})
	return s.addr, s.err
}

// requireDocker skips t unless a healthy container runtime is reachable.
func requireDocker(t *testing.T) {
	t.Helper()
	tc.SkipIfProviderIsNotHealthy(t)
}

// startContainer starts req and returns the host:port of its single exposed port.
func startContainer(ctx context.Context, req tc.ContainerRequest) (string, error) {
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start %s: %w", req.Image, err)
	}
	endpoint, err := c.Endpoint(ctx, "")
	if err != nil {
		return "", fmt.Errorf("container endpoint: %w", err)
	}
	return endpoint, nil
}

var (
	mongoSvc  service
	redisSvc  service
	rabbitSvc service
)

// MongoURI returns a MongoDB URI for tests: VOLUNTAHUB_TEST_MONGO_URI if set,
// otherwise a shared mongo:7 container. Skips the test if neither is
// available, or in -short mode.
func MongoURI(t *testing.T) string {
	t.Helper()
	if uri := os.Getenv("VOLUNTAHUB_TEST_MONGO_URI"); uri != "" {
		return uri
	}
	if testing.Short() {
		t.Skip("skipping MongoDB-backed test in short mode")
	}
	requireDocker(t)
	uri, err := mongoSvc.get(func(ctx context.Context) (string, error) {
		endpoint, err := startContainer(ctx, tc.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(90 * time.Second),
		})
		if err != nil {
			return "", err
		}
		return "mongodb://" + endpoint + "/?directConnection=true", nil
	})
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}
	return uri
}

// RedisAddr returns a Redis host:port for tests: VOLUNTAHUB_TEST_REDIS_ADDR if
// set, otherwise a shared redis:7 container. Skips when unavailable.
func RedisAddr(t *testing.T) string {
	t.Helper()
	if addr := os.Getenv("VOLUNTAHUB_TEST_REDIS_ADDR"); addr != "" {
		return addr
	}
	if testing.Short() {
		t.Skip("skipping Redis-backed test in short mode")
	}
	requireDocker(t)
	addr, err := redisSvc.get(func(ctx context.Context) (string, error) {
		return startContainer(ctx, tc.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		})
	})
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return addr
}

// AMQPURL returns an AMQP URL for tests: VOLUNTAHUB_TEST_AMQP_URL if set,
// otherwise a shared RabbitMQ container. Skips when unavailable.
func AMQPURL(t *testing.T) string {
	t.Helper()
	if u := os.Getenv("VOLUNTAHUB_TEST_AMQP_URL"); u != "" {
		return u
	}
	if testing.Short() {
		t.Skip("skipping RabbitMQ-backed test in short mode")
	}
	requireDocker(t)
	u, err := rabbitSvc.get(func(ctx context.Context) (string, error) {
		endpoint, err := startContainer(ctx, tc.ContainerRequest{
			Image:        "rabbitmq:3.13-alpine",
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor:   wait.ForLog("Server startup complete").WithStartupTimeout(2 * time.Minute),
		})
		if err != nil {
			return "", err
		}
		return "amqp://guest:guest@" + endpoint + "/", nil
	})
	if err != nil {
		t.Skipf("RabbitMQ not available: %v", err)
	}
	return u
}
