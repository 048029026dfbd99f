//go:build integration

package commands

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dyluth/datahub/internal/config"
	"github.com/dyluth/datahub/internal/logging"
	"github.com/dyluth/datahub/pkg/client"
	"github.com/dyluth/datahub/pkg/events"
	"github.com/dyluth/datahub/pkg/hub"
)

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start Redis container")

	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)

	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s", host, port.Port())
}

// TestServeHub_HandOffWithRedis runs the two-party exchange against a hub
// publishing to a real Redis: Client B waits for Y_Data, Client A supplies it
// and then waits for X_Data, which B answers.
func TestServeHub_HandOffWithRedis(t *testing.T) {
	redisURL := setupRedis(t)

	cfg := config.Default()
	cfg.Instance = "it-" + uuid.NewString()[:8]
	cfg.RedisURL = redisURL
	cfg.MaxWait = config.Duration(10 * time.Second)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := "http://" + l.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveHub(ctx, cfg, l, addr, logging.Discard())
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	ec, err := events.NewClientFromURL(redisURL, cfg.Instance)
	require.NoError(t, err)
	defer ec.Close()

	// Clients find the hub through its presence record.
	require.Eventually(t, func() bool {
		got, err := ec.LookupHub(ctx)
		return err == nil && got == addr
	}, 5*time.Second, 50*time.Millisecond)

	sub, err := ec.SubscribeWrites(ctx)
	require.NoError(t, err)
	defer sub.Close()

	clientA, err := client.New(addr, client.WithClientID("A"))
	require.NoError(t, err)
	clientB, err := client.New(addr, client.WithClientID("B"))
	require.NoError(t, err)

	bDone := make(chan error, 1)
	go func() {
		v, ok, err := clientB.Receive(ctx, "Y_Data", 5*time.Second)
		if err != nil {
			bDone <- err
			return
		}
		if !ok || v != "100" {
			bDone <- fmt.Errorf("B got %q ok=%v", v, ok)
			return
		}
		bDone <- clientB.Send(ctx, "X_Data", 50)
	}()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, clientA.Send(ctx, "Y_Data", 100))

	res, err := clientA.ReadOrWait(ctx, "X_Data", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, hub.StatusReady, res.Status)
	assert.Equal(t, "50", string(res.Value))
	require.NoError(t, <-bDone)

	var keys []string
	timeout := time.After(5 * time.Second)
	for len(keys) < 2 {
		select {
		case ev := <-sub.Events():
			keys = append(keys, ev.Key)
		case <-timeout:
			t.Fatalf("expected 2 write events, got %v", keys)
		}
	}
	assert.Equal(t, []string{"Y_Data", "X_Data"}, keys)
}
