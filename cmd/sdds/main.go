package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sdds/pkg/config"
	"github.com/ajitpratap0/sdds/pkg/logger"
	"github.com/ajitpratap0/sdds/pkg/observability"
	"github.com/ajitpratap0/sdds/pkg/sdds"
)

var version = "0.1.0"

// cli holds the global flags and the state they set up
type cli struct {
	configFile string
	logLevel   string
	trace      bool

	cfg *config.Config
	log *zap.Logger
}

// options returns the dataset options every command uses
func (c *cli) options() []sdds.Option {
	cfg := *c.cfg
	return []sdds.Option{sdds.WithConfig(&cfg), sdds.WithLogger(c.log)}
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	if c.configFile != "" {
		loaded, err := config.Load(c.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	} else if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return err
	}
	c.cfg = cfg
	c.log = logger.With(zap.String("component", "sdds-cli"), zap.String("command", cmd.Name()))

	if c.trace {
		tc := observability.DefaultTracingConfig(version)
		tc.Writer = cmd.ErrOrStderr()
		if err := observability.InitStdout(tc); err != nil {
			return err
		}
	}
	return nil
}

func (c *cli) teardown() error {
	_ = logger.Sync()
	if c.trace {
		return observability.Shutdown(context.Background())
	}
	return nil
}

// newRootCommand builds the command tree writing results to out
func newRootCommand(out io.Writer) *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "sdds",
		Short: "Inspect and convert SDDS self-describing data files",
		Long: `sdds reads and writes SDDS files: self-describing tables made of a
header and a sequence of pages holding parameters, arrays and columns.
Files ending in .gz, .xz, .lzma, .zst, .lz4, .sz or .s2 are decompressed on
the fly
and "-" stands for standard input or output.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.teardown()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&c.trace, "trace", false, "Export a span per layout and page operation to stderr")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "sdds v%s\n", version)
			fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newInfoCommand(c), newDumpCommand(c), newConvertCommand(c))
	return root
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
