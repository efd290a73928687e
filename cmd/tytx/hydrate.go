package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/genropy/genro-tytx-sub000/jsonschema"
)

var hydrateCmd = &cobra.Command{
	Use:   "hydrate --struct CODE [JSON]",
	Short: "Apply a registered struct schema to a JSON document",
	Long: `Hydrate a JSON document (argument or stdin) with a struct schema from
the config and print the typed result.

With --check, the validate facets of the schema fields are applied to the
result and any issues are printed one per line as path, rule, code and
message; the command then exits non-zero.

Examples:
  tytx -c schemas.yaml hydrate --struct PERSON '{"name":"Ann","age":"30"}'
  tytx -c schemas.yaml hydrate --struct POINT --check '[["1","2"],["3","4"]]'`,
	RunE: runHydrate,
}

var structsCmd = &cobra.Command{
	Use:   "structs [CODE]",
	Short: "List registered struct schemas, or print one",
	Long: `Without arguments, list the registered struct codes. With a code,
print its definition, or with --json-schema the JSON Schema of the
payload it hydrates.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStructs,
}

var (
	hydrateStruct string
	hydrateCheck  bool
	hydrateTyped  bool

	structsJSONSchema bool
)

var errIssues = errors.New("validation failed")

func init() {
	rootCmd.AddCommand(hydrateCmd)
	rootCmd.AddCommand(structsCmd)

	hydrateCmd.Flags().StringVarP(&hydrateStruct, "struct", "s", "", "struct code (required)")
	hydrateCmd.Flags().BoolVar(&hydrateCheck, "check", false, "apply field validate facets to the result")
	hydrateCmd.Flags().BoolVar(&hydrateTyped, "typed", false, "print JSON with typed leaves instead of plain JSON")
	_ = hydrateCmd.MarkFlagRequired("struct")

	structsCmd.Flags().BoolVar(&structsJSONSchema, "json-schema", false, "print the struct as a JSON Schema document")
}

func runHydrate(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd, "console")
	if err != nil {
		return err
	}
	doc, err := document(cmd, args)
	if err != nil {
		return err
	}
	v, err := e.reg.HydrateText(doc, hydrateStruct, nil)
	if err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}
	if hydrateCheck {
		iss, err := e.reg.CheckStruct(v, hydrateStruct, nil)
		if err != nil {
			return fmt.Errorf("check: %w", err)
		}
		if len(iss) > 0 {
			printIssues(cmd, iss)
			return errIssues
		}
	}
	return printValue(cmd, e.reg, v, hydrateTyped)
}

func runStructs(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd, "console")
	if err != nil {
		return err
	}
	if len(args) == 0 {
		for _, code := range e.reg.StructCodes() {
			fmt.Fprintln(cmd.OutOrStdout(), code)
		}
		return nil
	}
	if structsJSONSchema {
		doc, err := jsonschema.FromStruct(e.reg, args[0])
		if err != nil {
			return err
		}
		return printValue(cmd, e.reg, doc, false)
	}
	s, ok := e.reg.Struct(args[0])
	if !ok {
		return fmt.Errorf("unknown struct %q", args[0])
	}
	return printValue(cmd, e.reg, s.Def(), false)
}
