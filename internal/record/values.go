package record

import (
	"fmt"
	"time"
)

// normalizeValue converts a scanned database value into a JSON-safe form so
// that snapshots round-trip through JSONB without loss. Timestamps become
// RFC 3339 strings in UTC with nanosecond precision; byte slices become
// strings; integer widths collapse to int64 and floats to float64.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case bool:
		return t
	case string:
		return t
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case uint:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	case float64:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// normalizeSnapshot applies normalizeValue to every field of the row.
func normalizeSnapshot(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = normalizeValue(v)
	}
	return out
}
