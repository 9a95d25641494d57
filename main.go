package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dianpeng/colgen/exec"
	"github.com/dianpeng/colgen/options"
	"github.com/dianpeng/colgen/vector"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose    bool
	configPath string
	schemaText string
	plainGo    bool
	persistDir string
	fieldSep   string
	skipHeader bool

	logger *zap.Logger
	opts   *options.OptionSet
)

var rootCmd = &cobra.Command{
	Use:   "colgen",
	Short: "colgen - runtime specialized filters and comparators",
	Long: `colgen renders Go code specialized for one expression over a columnar
batch schema, loads it at runtime and runs it.

Schemas are written "name:type[?], ..." where a trailing '?' marks the
column nullable, types are bigint, int, float4, float8, bit and varchar.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return loadOptions(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// loadOptions reads the option file then applies the flags given on the
// command line.
func loadOptions(cmd *cobra.Command) error {
	opts = options.Default()
	if configPath != "" {
		o, err := options.Load(configPath)
		if err != nil {
			return err
		}
		opts = o
	}

	flags := cmd.Flags()
	set := func(flag, key string, value interface{}) error {
		if !flags.Changed(flag) {
			return nil
		}
		o, err := opts.With(key, value)
		if err != nil {
			return fmt.Errorf("--%s: %w", flag, err)
		}
		opts = o
		return nil
	}
	if err := set("plain-go", options.PreferPlainGo, plainGo); err != nil {
		return err
	}
	if err := set("persist-dir", options.PersistDir, persistDir); err != nil {
		return err
	}
	if err := set("fs", options.FieldSeparator, fieldSep); err != nil {
		return err
	}
	return set("header", options.SkipHeader, skipHeader)
}

func newEnv() (*exec.Env, error) {
	return exec.NewEnv(opts, logger)
}

func loadSchema() (*vector.Schema, error) {
	if strings.TrimSpace(schemaText) == "" {
		return nil, fmt.Errorf("--schema is required")
	}
	return vector.ParseSchema(schemaText)
}

var errColor = color.New(color.FgRed, color.Bold)

func oops(stage string, err error) {
	errColor.Fprintf(os.Stderr, "ERROR [%s]", stage)
	fmt.Fprintf(os.Stderr, " %s\n", err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Option file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().StringVarP(&schemaText, "schema", "s", "", `Batch schema, ie "a:bigint, b:varchar?"`)
	rootCmd.PersistentFlags().BoolVar(&plainGo, "plain-go", false, "Prefer the plain Go strategy when the unit allows it")
	rootCmd.PersistentFlags().StringVar(&persistDir, "persist-dir", "", "Keep every loaded unit under this directory")

	for _, c := range []*cobra.Command{filterCmd, sortCmd} {
		c.Flags().StringVarP(&fieldSep, "fs", "F", "", "Field separator, awk FS semantics")
		c.Flags().BoolVar(&skipHeader, "header", false, "Skip the first line of the input")
	}

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(sortCmd)
	rootCmd.AddCommand(functionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		oops(stageOf(err), err)
	}
}
