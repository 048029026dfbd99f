package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/datahub/pkg/events"
	"github.com/dyluth/datahub/pkg/wire"
)

type fakeSource struct {
	events chan *wire.WriteEvent
	errors chan error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		events: make(chan *wire.WriteEvent, 10),
		errors: make(chan error, 10),
	}
}

func (s *fakeSource) Events() <-chan *wire.WriteEvent { return s.events }
func (s *fakeSource) Errors() <-chan error             { return s.errors }

// syncBuffer is a bytes.Buffer safe to read while StreamWrites writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFormatters(t *testing.T) {
	t.Run("defaultFormatter formats text values", func(t *testing.T) {
		var buf bytes.Buffer
		f := &defaultFormatter{writer: &buf}

		err := f.FormatWrite(&wire.WriteEvent{Key: "X_Data", Value: "50", Encoding: wire.EncodingUTF8, Version: 2, Notified: 1})
		require.NoError(t, err)

		out := buf.String()
		require.Contains(t, out, "Write key=X_Data")
		require.Contains(t, out, "version=2")
		require.Contains(t, out, `value="50"`)
		require.Contains(t, out, "woke=1")
	})

	t.Run("defaultFormatter omits woke when nobody waited", func(t *testing.T) {
		var buf bytes.Buffer
		f := &defaultFormatter{writer: &buf}

		require.NoError(t, f.FormatWrite(&wire.WriteEvent{Key: "k", Value: "v", Version: 1}))
		require.NotContains(t, buf.String(), "woke=")
	})

	t.Run("defaultFormatter shows binary size", func(t *testing.T) {
		var buf bytes.Buffer
		f := &defaultFormatter{writer: &buf}

		v, enc := wire.EncodeValue([]byte{0xff, 0x00, 0x01})
		require.NoError(t, f.FormatWrite(&wire.WriteEvent{Key: "bin", Value: v, Encoding: enc, Version: 1}))
		require.Contains(t, buf.String(), "value=<3 bytes>")
	})

	t.Run("defaultFormatter truncates long and multi-line values", func(t *testing.T) {
		var buf bytes.Buffer
		f := &defaultFormatter{writer: &buf}

		require.NoError(t, f.FormatWrite(&wire.WriteEvent{Key: "a", Value: strings.Repeat("x", 100), Version: 1}))
		require.Contains(t, buf.String(), strings.Repeat("x", 57)+"...")
		require.NotContains(t, buf.String(), strings.Repeat("x", 58))

		buf.Reset()
		require.NoError(t, f.FormatWrite(&wire.WriteEvent{Key: "b", Value: "first\nsecond", Version: 1}))
		require.Contains(t, buf.String(), `value="first..."`)
	})

	t.Run("jsonFormatter writes one object per line", func(t *testing.T) {
		var buf bytes.Buffer
		f := &jsonFormatter{encoder: json.NewEncoder(&buf)}

		require.NoError(t, f.FormatWrite(&wire.WriteEvent{Instance: "default", Key: "a", Value: "1", Version: 1}))
		require.NoError(t, f.FormatWrite(&wire.WriteEvent{Instance: "default", Key: "b", Value: "2", Version: 1}))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)

		var ev wire.WriteEvent
		require.NoError(t, json.Unmarshal([]byte(lines[1]), &ev))
		require.Equal(t, "b", ev.Key)
	})
}

func TestStreamWrites(t *testing.T) {
	t.Run("stops when source closes", func(t *testing.T) {
		src := newFakeSource()
		src.events <- &wire.WriteEvent{Key: "a", Value: "1", Version: 1}
		src.errors <- errors.New("bad payload")
		close(src.events)

		var out, errOut bytes.Buffer
		err := StreamWrites(context.Background(), src, OutputFormatDefault, &out, &errOut)
		require.NoError(t, err)
		require.Contains(t, out.String(), "key=a")
	})

	t.Run("drops events older than the last shown for a key", func(t *testing.T) {
		src := newFakeSource()
		src.events <- &wire.WriteEvent{Key: "k", Value: "v2", Encoding: wire.EncodingUTF8, Version: 2}
		src.events <- &wire.WriteEvent{Key: "k", Value: "v1", Encoding: wire.EncodingUTF8, Version: 1}
		src.events <- &wire.WriteEvent{Key: "other", Value: "o1", Encoding: wire.EncodingUTF8, Version: 1}
		src.events <- &wire.WriteEvent{Key: "k", Value: "v2", Encoding: wire.EncodingUTF8, Version: 2}
		src.events <- &wire.WriteEvent{Key: "k", Value: "v3", Encoding: wire.EncodingUTF8, Version: 3}
		close(src.events)

		var out bytes.Buffer
		require.NoError(t, StreamWrites(context.Background(), src, OutputFormatDefault, &out, &bytes.Buffer{}))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 3)
		require.Contains(t, lines[0], `value="v2"`)
		require.Contains(t, lines[1], "key=other")
		require.Contains(t, lines[2], `value="v3"`)
		require.NotContains(t, out.String(), `"v1"`)
	})

	t.Run("stops on context cancel", func(t *testing.T) {
		src := newFakeSource()
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- StreamWrites(ctx, src, OutputFormatJSON, &bytes.Buffer{}, &bytes.Buffer{})
		}()

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("StreamWrites did not return after cancel")
		}
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		err := StreamWrites(context.Background(), newFakeSource(), "yaml", &bytes.Buffer{}, &bytes.Buffer{})
		require.Error(t, err)
	})
}

func TestStreamWritesFromRedis(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := events.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := client.SubscribeWrites(ctx)
	require.NoError(t, err)
	defer sub.Close()

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- StreamWrites(ctx, sub, OutputFormatDefault, out, &bytes.Buffer{})
	}()

	err = client.PublishWrite(ctx, &wire.WriteEvent{
		Instance:    "test-instance",
		Key:         "X_Data",
		Value:       "50",
		Encoding:    wire.EncodingUTF8,
		Version:     1,
		WrittenAtMs: time.Now().UnixMilli(),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "key=X_Data")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
