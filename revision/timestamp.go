package revision

import (
	"fmt"
	"strings"
	"time"
)

const (
	// artifactLayout drops the fractional part when it is zero.
	artifactLayout = "2006-01-02T15:04:05.999999"

	// LedgerLayout is fixed width so that lexical order equals chronological order.
	LedgerLayout = "2006-01-02T15:04:05.000000"
)

var timestampLayouts = []string{ //nolint:gochecknoglobals
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// FormatTimestamp renders t in the canonical artifact form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(artifactLayout)
}

// ParseTimestamp accepts ISO-8601 timestamps with or without fraction and zone.
// Timestamps without a zone are UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: \"%s\"", ErrInvalidTimestamp, value)
}

// FormatLedgerTimestamp renders t the way adapters store it in the ledger table.
func FormatLedgerTimestamp(t time.Time) string {
	return t.UTC().Format(LedgerLayout)
}
