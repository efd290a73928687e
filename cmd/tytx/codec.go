package main

import (
	"fmt"

	"github.com/spf13/cobra"

	tytx "github.com/genropy/genro-tytx-sub000"
	tytxjson "github.com/genropy/genro-tytx-sub000/format/json"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [TEXT...]",
	Short: "Decode typed text",
	Long: `Decode typed text and print the value as JSON.

Each argument is decoded on its own; with no arguments every non-blank line
of stdin is. Unknown suffixes pass through unchanged.

Examples:
  tytx decode 42::L '2025-01-15::D'
  tytx decode '["1","2"]::#L'
  tytx decode --code N 1.50
  tytx decode --type '{"a":"1::L"}::J'`,
	RunE: runDecode,
}

var encodeCmd = &cobra.Command{
	Use:   "encode [DOCUMENT...]",
	Short: "Encode values as typed text",
	Long: `Encode JSON documents as typed text.

Input documents may already carry typed leaves ("9.99::N"); plain JSON
numbers become L or R. With --as, each input is a raw value checked and
tagged with the given code.

Examples:
  tytx encode '{"price":"9.99::N","qty":2}'
  tytx encode '[1,2,3]'
  tytx encode --as D 2025-01-15`,
	RunE: runEncode,
}

var (
	decodeCode  string
	decodeType  bool
	decodeTyped bool

	encodeAs     string
	encodePrefix bool
)

func init() {
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(encodeCmd)

	decodeCmd.Flags().StringVar(&decodeCode, "code", "", "decode untagged input with this type code")
	decodeCmd.Flags().BoolVarP(&decodeType, "type", "t", false, "print the Go type before each value")
	decodeCmd.Flags().BoolVar(&decodeTyped, "typed", false, "print JSON with typed leaves instead of plain JSON")

	encodeCmd.Flags().StringVar(&encodeAs, "as", "", "treat each input as a raw value of this type code")
	encodeCmd.Flags().BoolVar(&encodePrefix, "prefix", false, "prepend the TYTX:// transport marker")
}

func runDecode(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd, "console")
	if err != nil {
		return err
	}
	texts, err := inputs(cmd, args)
	if err != nil {
		return err
	}
	var opts []tytx.DecodeOption
	if decodeCode != "" {
		opts = append(opts, tytx.WithCode(decodeCode))
	}
	for _, text := range texts {
		text, _ = tytx.StripPrefix(text, tytx.DataPrefix)
		v, err := e.reg.Decode(text, opts...)
		if err != nil {
			return fmt.Errorf("decode %q: %w", text, err)
		}
		if decodeType {
			fmt.Fprintf(cmd.OutOrStdout(), "%T\t", v)
		}
		if err := printValue(cmd, e.reg, v, decodeTyped); err != nil {
			return err
		}
	}
	return nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd, "console")
	if err != nil {
		return err
	}
	docs, err := inputs(cmd, args)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		var v any
		if encodeAs != "" {
			v, err = e.reg.Decode(doc, tytx.WithCode(encodeAs))
		} else {
			v, err = tytxjson.Unmarshal(e.reg, []byte(doc))
		}
		if err != nil {
			return fmt.Errorf("read %q: %w", doc, err)
		}
		text, err := e.reg.Encode(v)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		if encodePrefix {
			text = tytx.DataPrefix + text
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
	}
	return nil
}
