package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	tytx "github.com/genropy/genro-tytx-sub000"
	"github.com/genropy/genro-tytx-sub000/config"
	tytxjson "github.com/genropy/genro-tytx-sub000/format/json"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
	strict   bool
)

var rootCmd = &cobra.Command{
	Use:   "tytx",
	Short: "Typed text codec: decode, encode, hydrate and validate TYTX values",
	Long: `tytx works with typed text, strings of the form value::CODE.

Struct schemas and validation rules come from the config file (--config),
which may be YAML or TOML.

Examples:
  tytx decode '100.50::N'
  tytx encode '{"price":"9.99::N","qty":2}'
  tytx hydrate --struct PERSON '{"name":"Ann","age":"30"}'
  tytx validate 'upper&!short' ABC
  tytx serve --addr :8080`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (.yaml or .toml) with structs and validations")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides the config)")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "reject values of unregistered Go types instead of encoding them as plain text")
}

// env is what every command needs: the loaded config, a logger and a
// registry with the config's schema pack installed.
type env struct {
	cfg    *config.Config
	logger zerolog.Logger
	reg    *tytx.Registry
}

func newEnv(cmd *cobra.Command, format string) (*env, error) {
	cfg := config.Default()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	e, err := buildEnv(cmd, cfg, format)
	if err != nil {
		return nil, err
	}
	if err := config.Install(e.reg, cfg); err != nil {
		return nil, fmt.Errorf("install config: %w", err)
	}
	return e, nil
}

// buildEnv makes the logger and an empty registry for cfg.
func buildEnv(cmd *cobra.Command, cfg *config.Config, format string) (*env, error) {
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	if format == "" {
		format = cfg.Logging.Format
	}
	logger, err := newLogger(cmd.ErrOrStderr(), level, format)
	if err != nil {
		return nil, err
	}
	opts := []tytx.Option{tytx.WithLogger(logger)}
	if strict {
		opts = append(opts, tytx.WithStrictEncoding())
	}
	return &env{cfg: cfg, logger: logger, reg: tytx.NewRegistry(opts...)}, nil
}

func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("app", "tytx").Logger(), nil
}

// inputs returns the arguments, or the non-blank lines of stdin when there
// are none or the only one is "-".
func inputs(cmd *cobra.Command, args []string) ([]string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return args, nil
	}
	var out []string
	sc := bufio.NewScanner(cmd.InOrStdin())
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return out, nil
}

// document returns the single argument, or all of stdin.
func document(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// printValue writes v as JSON: plain, or with typed leaves when typed is set.
func printValue(cmd *cobra.Command, reg *tytx.Registry, v any, typed bool) error {
	var (
		b   []byte
		err error
	)
	if typed {
		b, err = tytxjson.Marshal(reg, v)
	} else {
		b, err = gojson.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

func printIssues(cmd *cobra.Command, iss tytx.Issues) {
	for _, is := range iss {
		path := is.Path
		if path == "" {
			path = "-"
		}
		rule := is.Rule
		if rule == "" {
			rule = "-"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", path, rule, is.Code, is.Message)
	}
}
