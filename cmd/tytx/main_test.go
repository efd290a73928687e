package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const testConfig = `
logging:
  level: error
locales: [it]
structs:
  PERSON:
    name: {type: T, validate: "required,min:2"}
    age: L
  POINT: [R, R]
validations:
  short: "max:3"
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tytx.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// resetFlags puts every flag back to its default; cobra keeps flag values
// in package variables across Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_Decode(t *testing.T) {
	out, err := run(t, "", "decode", "-t", "42::L", `["1","2"]::#L`, "TYTX://2025-01-15::D", "plain")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := "int64\t42\n[]interface {}\t[1,2]\ncodec.Date\t\"2025-01-15\"\nstring\t\"plain\"\n"
	if out != want {
		t.Fatalf("out = %q, want %q", out, want)
	}

	out, err = run(t, "1.50\n\n2.00\n", "decode", "--code", "N", "--typed")
	if err != nil || out != "\"1.50::N\"\n\"2.00::N\"\n" {
		t.Fatalf("stdin decode = %q, %v", out, err)
	}

	if _, err := run(t, "", "decode", "abc::L"); err == nil {
		t.Fatalf("invalid value accepted")
	}
}

func TestCLI_Encode(t *testing.T) {
	out, err := run(t, "", "encode", `{"price":"9.99::N","qty":2}`, "[1,2,3]")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"price":"9.99::N","qty":"2::L"}::J` + "\n" + `["1","2","3"]::#L` + "\n"
	if out != want {
		t.Fatalf("out = %q, want %q", out, want)
	}

	out, err = run(t, "", "encode", "--as", "D", "--prefix", "2025-01-15")
	if err != nil || out != "TYTX://2025-01-15::D\n" {
		t.Fatalf("encode --as = %q, %v", out, err)
	}
	if _, err := run(t, "", "encode", "--as", "D", "not-a-date"); err == nil {
		t.Fatalf("bad date accepted")
	}
}

func TestCLI_HydrateAndStructs(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, `{"name":"Ann","age":"30"}`, "-c", cfg, "hydrate", "--struct", "PERSON", "--typed")
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if out != `{"age":"30::L","name":"Ann"}`+"\n" {
		t.Fatalf("out = %q", out)
	}

	out, err = run(t, "", "-c", cfg, "hydrate", "-s", "PERSON", "--check", `{"name":"A","age":"3"}`)
	if !errors.Is(err, errIssues) {
		t.Fatalf("check error = %v", err)
	}
	if !strings.Contains(out, "/name\tname\ttoo_short\t") {
		t.Fatalf("issues = %q", out)
	}

	if _, err := run(t, "", "hydrate", `{}`); err == nil {
		t.Fatalf("missing --struct accepted")
	}

	out, err = run(t, "", "-c", cfg, "structs")
	if err != nil || out != "PERSON\nPOINT\n" {
		t.Fatalf("structs = %q, %v", out, err)
	}
	out, err = run(t, "", "-c", cfg, "structs", "POINT")
	if err != nil || out != `["R","R"]`+"\n" {
		t.Fatalf("structs POINT = %q, %v", out, err)
	}
	out, err = run(t, "", "-c", cfg, "structs", "--json-schema", "PERSON")
	if err != nil || !strings.Contains(out, `"$ref":"#/$defs/PERSON"`) {
		t.Fatalf("structs --json-schema = %q, %v", out, err)
	}
}

func TestCLI_Validate(t *testing.T) {
	cfg := writeConfig(t)
	out, err := run(t, "", "-c", cfg, "validate", "upper&short", "ABC", "abc", "ABCD")
	if !errors.Is(err, errIssues) {
		t.Fatalf("validate error = %v", err)
	}
	if out != "ok\tABC\nfail\tabc\nfail\tABCD\n" {
		t.Fatalf("out = %q", out)
	}

	out, err = run(t, "ab1\n", "-c", cfg, "validate", "--explain", "digits")
	if !errors.Is(err, errIssues) || !strings.Contains(out, "  digits: ") {
		t.Fatalf("explain = %q, %v", out, err)
	}

	if _, err := run(t, "", "validate", "a||b", "x"); err == nil {
		t.Fatalf("syntax error accepted")
	}
	if _, err := run(t, "", "validate", "nope", "x"); err == nil {
		t.Fatalf("unknown rule accepted")
	}

	out, err = run(t, "", "-c", cfg, "rules")
	if err != nil || !strings.Contains(out, "short\tmax:3\n") || !strings.Contains(out, "cf\t") {
		t.Fatalf("rules = %q, %v", out, err)
	}
}

func TestCLI_Facets(t *testing.T) {
	out, err := run(t, "", "facets", `min:1, reg:"[A-Z],x"`)
	if err != nil || out != `{"min":"1","reg":"[A-Z],x"}`+"\n" {
		t.Fatalf("facets = %q, %v", out, err)
	}
	out, err = run(t, "", "facets", "--format", `reg:"[A-Z],x",min:1`)
	if err != nil || out != `min:1,reg:"[A-Z],x"`+"\n" {
		t.Fatalf("facets --format = %q, %v", out, err)
	}
	if _, err := run(t, "", "facets", `reg:"open`); err == nil {
		t.Fatalf("bad facets accepted")
	}
}

func TestCLI_Envelope(t *testing.T) {
	env := `XTYTX://{"gstruct":{},"lstruct":{"P":{"x":"L"}},"gvalidation":{"g":"len:1"},"data":"TYTX://{\"x\":\"5\"}::@P"}`
	out, err := run(t, env, "envelope")
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if out != `{"x":5}`+"\nglobal validation\tg\n" {
		t.Fatalf("out = %q", out)
	}

	cfg := writeConfig(t)
	built, err := run(t, "", "-c", cfg, "envelope", "--build", "--structs", "POINT", `["1.5","2"]::@POINT`)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.HasPrefix(built, "XTYTX://") || !strings.Contains(built, `"POINT":["R","R"]`) {
		t.Fatalf("built = %q", built)
	}
	// a receiver without the config learns POINT from the envelope
	out, err = run(t, strings.TrimSpace(built), "envelope")
	if err != nil || out != "[1.5,2]\n" {
		t.Fatalf("round trip = %q, %v", out, err)
	}

	if _, err := run(t, "", "envelope", `XTYTX://{"data":""}`); err == nil {
		t.Fatalf("incomplete envelope accepted")
	}
}
