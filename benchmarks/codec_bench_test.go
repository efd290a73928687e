package benchmarks_test

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	tytx "github.com/genropy/genro-tytx-sub000"
	tytxjson "github.com/genropy/genro-tytx-sub000/format/json"
)

// ---- Helpers ----

func benchRegistry(tb testing.TB) *tytx.Registry {
	tb.Helper()
	reg := tytx.NewRegistry()
	err := reg.RegisterStruct("ITEM", map[string]any{
		"id":      "T",
		"qty":     "L",
		"price":   "N",
		"active":  "B",
		"created": "D",
		"meta":    "@META",
	})
	if err != nil {
		tb.Fatalf("register ITEM: %v", err)
	}
	if err := reg.RegisterStruct("META", map[string]any{"score": "R"}); err != nil {
		tb.Fatalf("register META: %v", err)
	}
	if err := reg.RegisterStruct("ROW", "id:T,qty:L,price:N"); err != nil {
		tb.Fatalf("register ROW: %v", err)
	}
	for name, def := range map[string]any{
		"upper": `reg:"[A-Z]+"`,
		"short": "max:8",
		"code":  "len:3",
	} {
		if err := reg.RegisterValidation(name, def); err != nil {
			tb.Fatalf("register %s: %v", name, err)
		}
	}
	return reg
}

// generateItems returns a JSON array of untyped ITEM objects:
// [{"id":"obj_0","qty":"0","price":"0.50","active":"true","created":"2025-01-15","meta":{"score":"0.5"}}, ...]
func generateItems(n int) []byte {
	var buf bytes.Buffer
	buf.Grow(n * 112)
	buf.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, `{"id":"obj_%d","qty":"%d","price":"%d.50","active":"%t","created":"2025-01-15","meta":{"score":"%d.5"}}`,
			i, i, i, i%2 == 0, i)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

// generateRows returns a batch of ROW rows: [["r0","0","0.25"], ...].
func generateRows(n int) string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, `["r%d","%d","%d.25"]`, i, i, i)
	}
	buf.WriteByte(']')
	return buf.String()
}

// 10k items, roughly 1MB of JSON
const hugeItems = 10000

// ---- Micro benchmarks (single values) ----

func Benchmark_Decode_Scalar_Decimal(b *testing.B) {
	reg := benchRegistry(b)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := reg.Decode("1234.50::N"); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_Decode_Untyped(b *testing.B) {
	reg := benchRegistry(b)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := reg.Decode("just some text"); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_Encode_Scalar_Timestamp(b *testing.B) {
	reg := benchRegistry(b)
	ts := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := reg.Encode(ts); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_Decode_CompactArray_Small(b *testing.B) {
	reg := benchRegistry(b)
	text := `[["1","2"],["3","4"],["5","6"]]::#L`
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		if _, err := reg.Decode(text); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_Decode_Struct_Small(b *testing.B) {
	reg := benchRegistry(b)
	text := `{"id":"a","qty":"2","price":"9.90","active":"true","created":"2025-01-15","meta":{"score":"1.5"}}::@ITEM`
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		if _, err := reg.Decode(text); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_Validate_Expression(b *testing.B) {
	reg := benchRegistry(b)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := reg.Validate("ABC", "upper&code|!short", nil, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_Envelope_Process(b *testing.B) {
	reg := benchRegistry(b)
	env := `XTYTX://{"gstruct":{},"lstruct":{"P":"x:R,y:R"},"lvalidation":{"pos":"min:1"},"data":"TYTX://[\"1.5\",\"2.5\"]::@P"}`
	b.ReportAllocs()
	b.SetBytes(int64(len(env)))
	for i := 0; i < b.N; i++ {
		if _, err := reg.ProcessEnvelopeText(env); err != nil {
			b.Fatal(err)
		}
	}
}

// ---- Macro benchmarks (large payloads) ----

func Benchmark_Decode_HugeArray_Items(b *testing.B) {
	reg := benchRegistry(b)
	text := string(generateItems(hugeItems)) + "::#@ITEM"
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := reg.Decode(text); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_HydrateText_Batch_Rows(b *testing.B) {
	reg := benchRegistry(b)
	data := generateRows(hugeItems)
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := reg.HydrateText(data, "ROW", nil); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_EncodeArray_Huge_Decimal(b *testing.B) {
	reg := benchRegistry(b)
	seq := make([]decimal.Decimal, hugeItems)
	for i := range seq {
		seq[i] = decimal.New(int64(i), -2)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := reg.EncodeArray(seq); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_TypedJSON_RoundTrip_Huge(b *testing.B) {
	reg := benchRegistry(b)
	items, err := reg.Decode(string(generateItems(hugeItems)) + "::#@ITEM")
	if err != nil {
		b.Fatal(err)
	}
	raw, err := tytxjson.Marshal(reg, items)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.SetBytes(int64(len(raw)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out, err := tytxjson.Marshal(reg, items)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := tytxjson.Unmarshal(reg, out); err != nil {
			b.Fatal(err)
		}
	}
}
