// Package listing renders a hub's key inventory for the CLI.
package listing

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/dyluth/datahub/pkg/hub"
)

// OutputFormat specifies how the key list is written.
type OutputFormat string

const (
	// OutputFormatDefault is a human-readable table.
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is a JSON array of key records.
	OutputFormatJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// KeyLister is satisfied by client.Client.
type KeyLister interface {
	Keys(ctx context.Context) ([]hub.KeyInfo, error)
}

// Filter narrows the listing. Zero value matches everything.
type Filter struct {
	Pattern   string // path.Match glob on the key, empty = no filter
	ReadyOnly bool
}

// Validate checks the glob pattern.
func (f Filter) Validate() error {
	if f.Pattern == "" {
		return nil
	}
	if _, err := path.Match(f.Pattern, ""); err != nil {
		return fmt.Errorf("invalid key pattern %q: %w", f.Pattern, err)
	}
	return nil
}

func (f Filter) matches(k hub.KeyInfo) bool {
	if f.ReadyOnly && !k.Ready {
		return false
	}
	if f.Pattern != "" {
		ok, _ := path.Match(f.Pattern, k.Key)
		return ok
	}
	return true
}

// ListKeys fetches the key inventory and writes it in the requested format.
func ListKeys(ctx context.Context, src KeyLister, hubAddr string, format OutputFormat, filter Filter, w io.Writer) error {
	if err := filter.Validate(); err != nil {
		return err
	}

	keys, err := src.Keys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}

	matched := make([]hub.KeyInfo, 0, len(keys))
	for _, k := range keys {
		if filter.matches(k) {
			matched = append(matched, k)
		}
	}

	switch format {
	case OutputFormatJSON:
		return FormatJSON(w, matched)
	default:
		FormatTable(w, matched, hubAddr)
		return nil
	}
}
