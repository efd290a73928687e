package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	tytx "github.com/genropy/genro-tytx-sub000"
	tytxjson "github.com/genropy/genro-tytx-sub000/format/json"
)

var envelopeCmd = &cobra.Command{
	Use:   "envelope [ENVELOPE]",
	Short: "Process or build an XTYTX envelope",
	Long: `Process an XTYTX envelope (argument or stdin): install its global structs
and validations, decode its data with the local structs, and print the data
as JSON followed by the carried validation names.

With --build, the input is a JSON document (typed leaves allowed) and the
output is an envelope carrying it, with the structs named by --structs
taken from the config as global structs.

Examples:
  tytx envelope 'XTYTX://{"gstruct":{},"lstruct":{"P":{"x":"L"}},"data":"TYTX://{\"x\":\"5\"}::@P"}'
  tytx -c schemas.yaml envelope --build --structs PERSON '{"name":"Ann"}'`,
	RunE: runEnvelope,
}

var (
	envelopeBuild   bool
	envelopeStructs string
	envelopeTyped   bool
)

func init() {
	rootCmd.AddCommand(envelopeCmd)

	envelopeCmd.Flags().BoolVar(&envelopeBuild, "build", false, "wrap a JSON document in an envelope instead of processing one")
	envelopeCmd.Flags().StringVar(&envelopeStructs, "structs", "", "comma-separated struct codes to ship as gstruct (with --build)")
	envelopeCmd.Flags().BoolVar(&envelopeTyped, "typed", false, "print data as JSON with typed leaves")
}

func runEnvelope(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd, "console")
	if err != nil {
		return err
	}
	doc, err := document(cmd, args)
	if err != nil {
		return err
	}
	if envelopeBuild {
		return buildEnvelope(cmd, e.reg, doc)
	}
	res, err := e.reg.ProcessEnvelopeText(doc)
	if err != nil {
		return fmt.Errorf("envelope: %w", err)
	}
	if err := printValue(cmd, e.reg, res.Data, envelopeTyped); err != nil {
		return err
	}
	for _, set := range []struct {
		scope string
		vals  tytx.ValidationSet
	}{{"global", res.GlobalValidations}, {"local", res.LocalValidations}} {
		for _, name := range sortedNames(set.vals) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s validation\t%s\n", set.scope, name)
		}
	}
	return nil
}

func buildEnvelope(cmd *cobra.Command, reg *tytx.Registry, doc string) error {
	v, err := tytxjson.Unmarshal(reg, []byte(doc))
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	gstruct := map[string]any{}
	if envelopeStructs != "" {
		for _, code := range strings.Split(envelopeStructs, ",") {
			code = strings.TrimSpace(code)
			s, ok := reg.Struct(code)
			if !ok {
				return fmt.Errorf("unknown struct %q", code)
			}
			gstruct[code] = s
		}
	}
	text, err := reg.EncodeEnvelope(v, gstruct, map[string]any{}, nil, nil)
	if err != nil {
		return fmt.Errorf("build envelope: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}

func sortedNames(set tytx.ValidationSet) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
