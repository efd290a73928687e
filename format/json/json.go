// Package json frames typed text inside JSON documents: scalar leaves are
// typed strings ("9.99::N") and containers stay plain JSON, so any JSON
// consumer can read the document while a tytx peer recovers the types.
package json

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	gojson "github.com/goccy/go-json"

	tytx "github.com/genropy/genro-tytx-sub000"
)

// Option configures Marshal.
type Option func(*options)

type options struct {
	prefix bool
	indent string
}

// WithPrefix prepends the TYTX:// transport marker.
func WithPrefix() Option { return func(o *options) { o.prefix = true } }

// WithIndent pretty-prints the document.
func WithIndent(indent string) Option { return func(o *options) { o.indent = indent } }

// Marshal renders v as a JSON document with typed leaves.
func Marshal(reg *tytx.Registry, v any, opts ...Option) ([]byte, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	tree, err := reg.TypedTree(v)
	if err != nil {
		return nil, err
	}
	var b []byte
	if o.indent != "" {
		b, err = gojson.MarshalIndent(tree, "", o.indent)
	} else {
		b, err = gojson.Marshal(tree)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal typed json: %w", err)
	}
	if o.prefix {
		b = append([]byte(tytx.DataPrefix), b...)
	}
	return b, nil
}

// Unmarshal reads a JSON document (optionally prefixed with TYTX://) and
// decodes its typed leaves. A document that is itself typed text, such as
// `{"a":"1"}::@ROW` or `["1","2"]::#L`, goes through the codec as a whole.
func Unmarshal(reg *tytx.Registry, data []byte, opts ...tytx.DecodeOption) (any, error) {
	text := strings.TrimSpace(string(data))
	text, _ = tytx.StripPrefix(text, tytx.DataPrefix)
	if reg.IsTyped(text) {
		return reg.Decode(text, opts...)
	}
	dec := gojson.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return reg.DecodeTree(numbers(v), opts...)
}

// numbers turns json.Number leaves into int64 or float64.
func numbers(v any) any {
	switch t := v.(type) {
	case gojson.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		for i, e := range t {
			t[i] = numbers(e)
		}
		return t
	case map[string]any:
		for k, e := range t {
			t[k] = numbers(e)
		}
		return t
	}
	return v
}

// Encoder writes one typed JSON document per line.
type Encoder struct {
	w    io.Writer
	reg  *tytx.Registry
	opts []Option
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer, reg *tytx.Registry, opts ...Option) *Encoder {
	return &Encoder{w: w, reg: reg, opts: opts}
}

// Encode writes v followed by a newline.
func (e *Encoder) Encode(v any) error {
	b, err := Marshal(e.reg, v, e.opts...)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = e.w.Write(b)
	return err
}

// Decoder reads newline-delimited typed JSON documents.
type Decoder struct {
	r   *bufio.Reader
	reg *tytx.Registry
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader, reg *tytx.Registry) *Decoder {
	return &Decoder{r: bufio.NewReader(r), reg: reg}
}

// Decode reads the next document, skipping blank lines. It returns io.EOF
// when the input is exhausted.
func (d *Decoder) Decode() (any, error) {
	for {
		line, err := d.r.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			return Unmarshal(d.reg, line)
		}
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read typed json: %w", err)
		}
	}
}
