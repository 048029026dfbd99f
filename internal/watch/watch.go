// Package watch streams a hub's write events to a terminal or a pipe.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/datahub/pkg/wire"
)

// OutputFormat specifies how events are written.
type OutputFormat string

const (
	// OutputFormatDefault is one human-readable line per event.
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is line-delimited JSON, one event per line.
	OutputFormatJSON OutputFormat = "json"
)

const maxPreview = 60

// EventSource is satisfied by events.Subscription.
type EventSource interface {
	Events() <-chan *wire.WriteEvent
	Errors() <-chan error
}

type formatter interface {
	FormatWrite(ev *wire.WriteEvent) error
}

func newFormatter(format OutputFormat, w io.Writer) (formatter, error) {
	switch format {
	case OutputFormatDefault, "":
		return &defaultFormatter{writer: w}, nil
	case OutputFormatJSON:
		return &jsonFormatter{encoder: json.NewEncoder(w)}, nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// StreamWrites copies events from src to w until ctx ends or the source
// closes. Malformed events are reported to errW and skipped.
//
// The hub publishes after releasing the key's lock, so two racing writes to
// one key can arrive out of order. An event at or below the last version
// shown for its key is stale and is dropped; the newest value is always the
// last line printed for a key.
func StreamWrites(ctx context.Context, src EventSource, format OutputFormat, w, errW io.Writer) error {
	f, err := newFormatter(format, w)
	if err != nil {
		return err
	}

	seen := make(map[string]uint64)
	events, errs := src.Events(), src.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Version <= seen[ev.Key] {
				continue
			}
			seen[ev.Key] = ev.Version
			if err := f.FormatWrite(ev); err != nil {
				return err
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fmt.Fprintf(errW, "warning: %v\n", err)
		}
	}
}

type defaultFormatter struct {
	writer io.Writer
}

func (f *defaultFormatter) FormatWrite(ev *wire.WriteEvent) error {
	ts := time.UnixMilli(ev.WrittenAtMs).Format("15:04:05")

	line := fmt.Sprintf("[%s] ✏️  Write key=%s version=%d value=%s", ts, ev.Key, ev.Version, preview(ev))
	if ev.Notified > 0 {
		line += fmt.Sprintf(" woke=%d", ev.Notified)
	}

	_, err := fmt.Fprintln(f.writer, line)
	return err
}

type jsonFormatter struct {
	encoder *json.Encoder
}

func (f *jsonFormatter) FormatWrite(ev *wire.WriteEvent) error {
	return f.encoder.Encode(ev)
}

// preview renders the value on one line: text is quoted and truncated,
// binary values show only their size.
func preview(ev *wire.WriteEvent) string {
	value, err := wire.DecodeValue(ev.Value, ev.Encoding)
	if err != nil {
		return "<undecodable>"
	}
	if ev.Encoding == wire.EncodingBase64 {
		return fmt.Sprintf("<%d bytes>", len(value))
	}

	s := string(value)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + "..."
	}
	if len(s) > maxPreview {
		s = s[:maxPreview-3] + "..."
	}
	return fmt.Sprintf("%q", s)
}
