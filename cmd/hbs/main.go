package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v4"

	"github.com/neurodesk/handlebars/pkg/config"
	"github.com/neurodesk/handlebars/pkg/handlebars"
	"github.com/neurodesk/handlebars/pkg/logging"
)

var (
	configPath string
	logLevel   string
	verbose    bool
)

var rootCmd = cobra.Command{
	Use:           "hbs",
	Short:         "Compile and render Handlebars templates",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// setup loads the configuration and builds the logger and engine shared by
// all commands.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, *handlebars.Engine, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, nil, nil, fmt.Errorf("loading config: %w", err)
		}
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if verbose {
		level = "debug"
	}
	logger, err := logging.NewLogger(level, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, err
	}
	e, err := cfg.NewEngine(logger, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("building engine: %w", err)
	}
	return cfg, logger, e, nil
}

// compileTemplate compiles name as a file path when such a file exists and
// through the loader otherwise.
func compileTemplate(e *handlebars.Engine, name string) (*handlebars.Template, error) {
	if st, err := os.Stat(name); err == nil && !st.IsDir() {
		b, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		return e.CompileNamed(name, string(b), e.Delims)
	}
	return e.CompileFile(name)
}

// loadData decodes a YAML or JSON document. "-" reads standard input.
func loadData(path string, stdin io.Reader) (any, error) {
	if path == "" {
		return nil, nil
	}
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var data any
	if err := yaml.NewDecoder(bytes.NewReader(b)).Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding data %s: %w", path, err)
	}
	return data, nil
}

var renderCmd = cobra.Command{
	Use:   "render TEMPLATE",
	Short: "Render a template with a data file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, e, err := setup(cmd)
		if err != nil {
			return err
		}
		dataPath, _ := cmd.Flags().GetString("data")
		outPath, _ := cmd.Flags().GetString("output")

		data, err := loadData(dataPath, cmd.InOrStdin())
		if err != nil {
			return err
		}
		t, err := compileTemplate(e, args[0])
		if err != nil {
			return err
		}

		var out bytes.Buffer
		if err := e.Render(&out, t, handlebars.Context{Model: data}); err != nil {
			return err
		}
		if outPath == "" {
			_, err = cmd.OutOrStdout().Write(out.Bytes())
			return err
		}
		if err := os.WriteFile(outPath, out.Bytes(), 0o644); err != nil {
			return err
		}
		logger.Info("rendered template", "template", args[0], "output", outPath, "bytes", out.Len())
		return nil
	},
}

var checkCmd = cobra.Command{
	Use:   "check TEMPLATE...",
	Short: "Compile templates and report errors",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, e, err := setup(cmd)
		if err != nil {
			return err
		}
		failed := 0
		for _, name := range args {
			if _, err := compileTemplate(e, name); err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", name, err)
				continue
			}
			logger.Debug("template ok", "template", name)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d templates failed to compile", failed, len(args))
		}
		return nil
	},
}

var treeCmd = cobra.Command{
	Use:   "tree TEMPLATE",
	Short: "Print the syntax tree of a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, e, err := setup(cmd)
		if err != nil {
			return err
		}
		t, err := compileTemplate(e, args[0])
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), handlebars.Pretty(t))
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to hbs configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	renderCmd.Flags().StringP("data", "d", "", "YAML or JSON data file, - for stdin")
	renderCmd.Flags().StringP("output", "o", "", "Write the output to a file")
	rootCmd.AddCommand(&renderCmd)
	rootCmd.AddCommand(&checkCmd)
	rootCmd.AddCommand(&treeCmd)

	testCmd.Flags().StringSlice("run", nil, "Only run cases whose name or file/name matches")
	rootCmd.AddCommand(&testCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
