package main

import (
	"fmt"

	"github.com/spf13/cobra"

	tytx "github.com/genropy/genro-tytx-sub000"
)

var validateCmd = &cobra.Command{
	Use:   "validate EXPR [VALUE...]",
	Short: "Check values against a validation expression",
	Long: `Evaluate a validation expression such as 'upper&!short|digits' against each
value (arguments, or stdin lines). Rule names come from the config.

Each value is printed with ok or fail; with --explain the failing rules are
listed under it. The command exits non-zero when any value fails.

Examples:
  tytx -c rules.yaml validate 'email' ann@example.com
  tytx -c rules.yaml validate --explain 'cf' RSSMRA85T10A562S`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

var facetsCmd = &cobra.Command{
	Use:   "facets METADATA",
	Short: "Parse a metadata facet string",
	Long: `Parse metadata such as 'min:1,max:10,reg:"[A-Z]+"' and print it as JSON.
With --format the canonical facet string is printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runFacets,
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List registered validation rules",
	Args:  cobra.NoArgs,
	RunE:  runRules,
}

var (
	validateExplain bool
	facetsFormat    bool
)

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(facetsCmd)
	rootCmd.AddCommand(rulesCmd)

	validateCmd.Flags().BoolVar(&validateExplain, "explain", false, "list the failing rules of each failing value")
	facetsCmd.Flags().BoolVar(&facetsFormat, "format", false, "print the canonical facet string")
}

func runValidate(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd, "console")
	if err != nil {
		return err
	}
	expr := args[0]
	if _, err := tytx.ParseExpr(expr); err != nil {
		return err
	}
	values, err := inputs(cmd, args[1:])
	if err != nil {
		return err
	}
	failed := false
	for _, value := range values {
		iss, err := e.reg.Check(value, expr, nil, nil)
		if err != nil {
			return err
		}
		if len(iss) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "ok\t%s\n", value)
			continue
		}
		failed = true
		fmt.Fprintf(cmd.OutOrStdout(), "fail\t%s\n", value)
		if validateExplain {
			for _, is := range iss {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", is.Rule, is.Message)
			}
		}
	}
	if failed {
		return errIssues
	}
	return nil
}

func runFacets(cmd *cobra.Command, args []string) error {
	f, err := tytx.ParseFacets(args[0])
	if err != nil {
		return err
	}
	if facetsFormat {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), tytx.FormatFacets(f))
		return err
	}
	return printValue(cmd, nil, map[string]string(f), false)
}

func runRules(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd, "console")
	if err != nil {
		return err
	}
	for _, name := range e.reg.Validations() {
		d, _ := e.reg.Validation(name)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, tytx.FormatFacets(facetsOf(d)))
	}
	return nil
}

func facetsOf(d *tytx.ValidationDef) tytx.Facets {
	f := tytx.Facets{}
	for k, v := range d.Def() {
		f[k] = fmt.Sprint(v)
	}
	return f
}
