package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/datahub/internal/config"
	"github.com/dyluth/datahub/internal/logging"
	"github.com/dyluth/datahub/pkg/client"
	"github.com/dyluth/datahub/pkg/events"
	"github.com/dyluth/datahub/pkg/hub"
	"github.com/dyluth/datahub/pkg/wire"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "put", "get", "list", "watch", "stats", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Usage:")
	assert.Contains(t, buf.String(), "datahub")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 2, ExitCode(&ExitError{Code: 2, Err: errors.New("timeout")}))
	assert.Equal(t, 2, ExitCode(fmt.Errorf("wrapped: %w", &ExitError{Code: 2, Err: errors.New("timeout")})))
}

func TestResultError(t *testing.T) {
	assert.NoError(t, resultError(hub.Result{Key: "k", Status: hub.StatusReady}, time.Second))

	err := resultError(hub.Result{Key: "k", Status: hub.StatusTimeout}, time.Second)
	assert.Equal(t, 2, ExitCode(err))

	err = resultError(hub.Result{Key: "k", Status: hub.StatusCancelled}, time.Second)
	assert.Equal(t, 1, ExitCode(err))
}

func TestWriteResult(t *testing.T) {
	ready := hub.Result{Key: "X_Data", Status: hub.StatusReady, Value: []byte("50"), Version: 1}
	timeout := hub.Result{Key: "X_Data", Status: hub.StatusTimeout}

	t.Run("default", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResult(&buf, ready, "default"))
		assert.Equal(t, "50\n", buf.String())

		buf.Reset()
		require.NoError(t, writeResult(&buf, timeout, "default"))
		assert.Empty(t, buf.String())
	})

	t.Run("raw", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResult(&buf, ready, "raw"))
		assert.Equal(t, "50", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResult(&buf, timeout, "json"))

		var resp wire.ReadResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, hub.StatusTimeout, resp.Status)
		assert.Nil(t, resp.Value)
	})
}

func TestResolveHubAddr(t *testing.T) {
	ctx := context.Background()

	t.Run("flag wins", func(t *testing.T) {
		addr := resolveHubAddr(ctx, "http://flag:1", envMap(map[string]string{"DATAHUB_ADDR": "http://env:2"}))
		assert.Equal(t, "http://flag:1", addr)
	})

	t.Run("env", func(t *testing.T) {
		addr := resolveHubAddr(ctx, "", envMap(map[string]string{"DATAHUB_ADDR": "http://env:2"}))
		assert.Equal(t, "http://env:2", addr)
	})

	t.Run("default", func(t *testing.T) {
		assert.Equal(t, defaultHubAddr, resolveHubAddr(ctx, "", envMap(nil)))
	})

	t.Run("redis presence", func(t *testing.T) {
		mr := miniredis.RunT(t)
		ec, err := events.NewClientFromURL("redis://"+mr.Addr(), "prod")
		require.NoError(t, err)
		defer ec.Close()
		require.NoError(t, ec.Announce(ctx, "http://hub-host:8000", time.Minute))

		addr := resolveHubAddr(ctx, "", envMap(map[string]string{
			"REDIS_URL":        "redis://" + mr.Addr(),
			"DATAHUB_INSTANCE": "prod",
		}))
		assert.Equal(t, "http://hub-host:8000", addr)

		// Another instance has no hub announced.
		addr = resolveHubAddr(ctx, "", envMap(map[string]string{"REDIS_URL": "redis://" + mr.Addr()}))
		assert.Equal(t, defaultHubAddr, addr)
	})
}

func TestAdvertiseURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:8000", advertiseURL(&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8000}))
	assert.Equal(t, "http://[::1]:9000", advertiseURL(&net.TCPAddr{IP: net.ParseIP("::1"), Port: 9000}))
	assert.NotContains(t, advertiseURL(&net.TCPAddr{IP: net.IPv4zero, Port: 8000}), "0.0.0.0")
}

func TestServeHub(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Instance = "test"
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.MaxWait = config.Duration(5 * time.Second)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := "http://" + l.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- serveHub(ctx, cfg, l, "", logging.Discard())
	}()

	c, err := client.New(addr)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Ping(ctx) == nil }, 5*time.Second, 20*time.Millisecond)

	ec, err := events.NewClientFromURL(cfg.RedisURL, cfg.Instance)
	require.NoError(t, err)
	defer ec.Close()

	t.Run("announces its address", func(t *testing.T) {
		require.Eventually(t, func() bool {
			got, err := ec.LookupHub(ctx)
			return err == nil && got == addr
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("publishes writes", func(t *testing.T) {
		sub, err := ec.SubscribeWrites(ctx, "X_Data")
		require.NoError(t, err)
		defer sub.Close()

		_, err = c.Write(ctx, "X_Data", []byte("50"))
		require.NoError(t, err)

		select {
		case ev := <-sub.Events():
			assert.Equal(t, "X_Data", ev.Key)
			assert.Equal(t, "50", ev.Value)
			assert.Equal(t, "test", ev.Instance)
		case <-time.After(2 * time.Second):
			t.Fatal("write event not published")
		}
	})

	t.Run("shutdown cancels waiting readers", func(t *testing.T) {
		reads := make(chan error, 1)
		go func() {
			_, err := c.ReadOrWait(context.Background(), "never", 4*time.Second)
			reads <- err
		}()

		require.Eventually(t, func() bool {
			st, err := c.Stats(ctx)
			return err == nil && st.Waiters == 1
		}, 2*time.Second, 20*time.Millisecond)

		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("serveHub did not return after cancel")
		}

		select {
		case err := <-reads:
			// The hub answers 503 when it closes under a reader.
			assert.ErrorIs(t, err, client.ErrConnection)
		case <-time.After(2 * time.Second):
			t.Fatal("reader was not released")
		}

		_, err := ec.LookupHub(context.Background())
		assert.True(t, events.IsNotFound(err), "presence should be withdrawn")
	})
}
