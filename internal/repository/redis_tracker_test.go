package repository

import (
	"context"
	"fmt"
	"redemption-gate/pkg/config"
	"redemption-gate/pkg/database"
	"testing"
	"time"
)

func TestRedisTrackerContract(t *testing.T) {
	addr := config.GetEnv("TEST_REDIS_ADDR", "")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	runTrackerContract(t, func(t *testing.T) AbuseTracker {
		client, err := database.ConnectRedis(context.Background(), addr, "", 0)
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		t.Cleanup(func() { _ = client.Close() })
		return NewRedisTracker(client, fmt.Sprintf("test:%d:", time.Now().UnixNano()))
	})
}
