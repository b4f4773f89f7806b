package record

import (
	"testing"
	"time"
)

func TestNormalizeValue(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	stamp := time.Date(2026, 3, 14, 10, 30, 0, 123456789, loc)

	testCases := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bytes", []byte("hello"), "hello"},
		{"time to UTC RFC3339Nano", stamp, "2026-03-14T05:00:00.123456789Z"},
		{"bool", true, true},
		{"string", "x", "x"},
		{"int", int(7), int64(7)},
		{"int32", int32(7), int64(7)},
		{"int64", int64(7), int64(7)},
		{"uint16", uint16(7), int64(7)},
		{"float32", float32(1.5), float64(1.5)},
		{"float64", 2.5, 2.5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := normalizeValue(tc.in)
			if got != tc.want {
				t.Errorf("normalizeValue(%v) = %v (%T), want %v (%T)", tc.in, got, got, tc.want, tc.want)
			}
		})
	}
}

func TestNormalizeValue_RoundTripsThroughTime(t *testing.T) {
	// The normalized form must parse back to the same instant so snapshots
	// written before a restore compare equal to freshly read rows.
	stamp := time.Date(2026, 1, 2, 3, 4, 5, 600000000, time.UTC)
	s, ok := normalizeValue(stamp).(string)
	if !ok {
		t.Fatal("normalized time should be a string")
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	if !parsed.Equal(stamp) {
		t.Errorf("round trip = %v, want %v", parsed, stamp)
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent("title"); got != `"title"` {
		t.Errorf("quoteIdent = %s", got)
	}
	if got := quoteIdent(`we"ird`); got != `"we""ird"` {
		t.Errorf("quoteIdent escape = %s", got)
	}
}

func TestEscapeLike(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "qa", "qa"},
		{"underscore", "sample_data", `sample\_data`},
		{"percent", "100%", `100\%`},
		{"backslash", `back\slash`, `back\\slash`},
		{"only wildcard", "%", `\%`},
		{"mixed", `a_b%c\d`, `a\_b\%c\\d`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := escapeLike(tc.in); got != tc.want {
				t.Errorf("escapeLike(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
