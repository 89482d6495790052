//go:build integration

package cache

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func newIntegrationRedis(t *testing.T) *RedisCache {
	t.Helper()

	dockerCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(dockerCtx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("failed to start redis: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to read host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("failed to read port: %v", err)
	}

	c, err := NewRedisCache(CacheConfig{Host: host, Port: port.Int()}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRedisCache returned error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisCacheRoundTripAndPrefixInvalidation(t *testing.T) {
	c := newIntegrationRedis(t)
	ctx := context.Background()

	type payload struct {
		Views int64 `json:"views"`
	}

	for _, key := range []string{"videos_all_7", "videos_shorts_7", "channels_all"} {
		if err := c.Set(ctx, key, payload{Views: 42}, time.Minute); err != nil {
			t.Fatalf("Set(%s) returned error: %v", key, err)
		}
	}

	var got payload
	found, err := c.Get(ctx, "videos_all_7", &got)
	if err != nil || !found || got.Views != 42 {
		t.Fatalf("Get = (%v, %v, %+v)", found, err, got)
	}

	if err := c.InvalidatePrefix(ctx, "videos_"); err != nil {
		t.Fatalf("InvalidatePrefix returned error: %v", err)
	}
	if found, _ := c.Get(ctx, "videos_shorts_7", &got); found {
		t.Fatal("videos_shorts_7 survived prefix invalidation")
	}
	if found, _ := c.Get(ctx, "channels_all", &got); !found {
		t.Fatal("channels_all should not match the videos_ prefix")
	}
	if !c.IsConnected(ctx) {
		t.Fatal("IsConnected = false")
	}
}

func TestRedisCacheMissIsNotAnError(t *testing.T) {
	c := newIntegrationRedis(t)

	var dest map[string]any
	found, err := c.Get(context.Background(), "absent", &dest)
	if err != nil || found {
		t.Fatalf("Get(absent) = (%v, %v), want (false, nil)", found, err)
	}
}
