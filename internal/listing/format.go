package listing

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dyluth/datahub/pkg/hub"
)

// FormatTable writes keys as a table with columns KEY, STATE, VER, WAITERS
// and AGE. Returns the number of keys written.
func FormatTable(w io.Writer, keys []hub.KeyInfo, hubAddr string) int {
	if len(keys) == 0 {
		fmt.Fprintf(w, "No keys on hub %s\n", hubAddr)
		return 0
	}

	fmt.Fprintf(w, "Keys on hub %s:\n\n", hubAddr)

	fmt.Fprintf(w, "%-32s %-7s %-6s %-7s %s\n", "KEY", "STATE", "VER", "WAITERS", "AGE")
	fmt.Fprintf(w, "%-32s %-7s %-6s %-7s %s\n",
		strings.Repeat("-", 32), "-------", "------", "-------", "--------")

	for _, k := range keys {
		fmt.Fprintf(w, "%-32s %-7s %-6s %-7d %s\n",
			formatKey(k.Key),
			formatState(k.Ready),
			formatVersion(k.Version),
			k.Waiters,
			formatAge(k.UpdatedAt, time.Now()),
		)
	}

	noun := "key"
	if len(keys) != 1 {
		noun = "keys"
	}
	fmt.Fprintf(w, "\n%d %s\n", len(keys), noun)

	return len(keys)
}

// FormatJSON writes keys as one pretty-printed JSON array.
func FormatJSON(w io.Writer, keys []hub.KeyInfo) error {
	if keys == nil {
		keys = []hub.KeyInfo{}
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal keys to JSON: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}

// formatKey shortens keys longer than the column.
func formatKey(key string) string {
	if utf8.RuneCountInString(key) <= 32 {
		return key
	}
	runes := []rune(key)
	return string(runes[:29]) + "..."
}

func formatState(ready bool) string {
	if ready {
		return string(hub.StatusReady)
	}
	return "EMPTY"
}

// formatVersion shows "v1", "v2"... and "-" for a key that was never written.
func formatVersion(version uint64) string {
	if version == 0 {
		return "-"
	}
	return fmt.Sprintf("v%d", version)
}

// formatAge renders the time since the last write relative to now.
func formatAge(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "-"
	}

	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
