package codec

import (
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
)

func TestDate_ParseAndString(t *testing.T) {
	d, err := ParseDate("2025-01-15")
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if d != (Date{Year: 2025, Month: time.January, Day: 15}) {
		t.Fatalf("unexpected date: %+v", d)
	}
	if s := d.String(); s != "2025-01-15" {
		t.Fatalf("roundtrip mismatch: %s", s)
	}
	if _, err := ParseDate("2025-13-01"); err == nil {
		t.Fatalf("expected error for month 13")
	}
}

func TestNewDate_Normalizes(t *testing.T) {
	if d := NewDate(2024, time.February, 30); d.String() != "2024-03-01" {
		t.Fatalf("unexpected normalization: %s", d)
	}
}

func TestTimeOfDay_Forms(t *testing.T) {
	cases := map[string]string{
		"10:30":              "10:30:00",
		"10:30:05":           "10:30:05",
		"10:30:05.250":       "10:30:05.250",
		"10:30:05.5":         "10:30:05.500",
		"23:59:59.000000001": "23:59:59.000000001",
	}
	for in, want := range cases {
		td, err := ParseTimeOfDay(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got := td.String(); got != want {
			t.Fatalf("%q: got %q want %q", in, got, want)
		}
	}
	for _, bad := range []string{"", "10", "24:00:00", "10:60", "1:2:3", "10:30.5"} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestTimestamp_CanonicalUTC(t *testing.T) {
	in := "2025-01-01T00:00:00Z"
	got, err := ParseTimestamp(in)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if !got.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time: %v", got)
	}
	if out := FormatTimestamp(got); out != in {
		t.Fatalf("roundtrip mismatch: %s != %s", out, in)
	}

	zoned, err := ParseTimestamp("2025-01-01T02:00:00+02:00")
	if err != nil {
		t.Fatalf("parse zoned: %v", err)
	}
	if out := FormatTimestamp(zoned); out != in {
		t.Fatalf("zoned should normalize to UTC, got %s", out)
	}
}

func TestTimestamp_NaiveIsUTC(t *testing.T) {
	for _, in := range []string{"2025-01-15T10:30:00", "2025-01-15 10:30:00", "2025-01-15T10:30"} {
		got, err := ParseNaiveTimestamp(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if !got.Equal(time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)) {
			t.Fatalf("%q: unexpected instant %v", in, got)
		}
	}
	// DHZ parsing falls back to naive forms.
	got, err := ParseTimestamp("2025-01-15T10:30:00.5")
	if err != nil {
		t.Fatalf("parse naive via DHZ: %v", err)
	}
	if FormatTimestamp(got) != "2025-01-15T10:30:00.5Z" {
		t.Fatalf("unexpected canonical form: %s", FormatTimestamp(got))
	}
}

func TestTemporal_TextMarshaling(t *testing.T) {
	in := struct {
		D Date      `json:"d"`
		T TimeOfDay `json:"t"`
	}{NewDate(2025, time.January, 15), TimeOfDay{Hour: 9, Minute: 5, Nanosecond: 500_000_000}}
	b, err := gojson.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"d":"2025-01-15","t":"09:05:00.500"}` {
		t.Fatalf("json = %s", b)
	}
	var out struct {
		D Date      `json:"d"`
		T TimeOfDay `json:"t"`
	}
	if err := gojson.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.D != in.D || out.T != in.T {
		t.Fatalf("round trip = %+v", out)
	}
	var d Date
	if err := d.UnmarshalText([]byte("2025-13-01")); err == nil {
		t.Fatalf("bad date accepted")
	}
}
