// Package cli implements the morphir command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/engine"
	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/runner"
	"github.com/albertocavalcante/morphir-make/internal/errs"
	"github.com/albertocavalcante/morphir-make/internal/log"
	"github.com/albertocavalcante/morphir-make/pkg/config"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// globalOptions holds persistent flags that apply to all commands.
type globalOptions struct {
	verbosity    int
	logFormat    string
	engine       string
	engineSocket string
}

// connectEngine starts or dials the compilation engine. Tests replace it.
var connectEngine = func(ctx context.Context, cfg *config.Config) (engine.Engine, io.Closer, error) {
	client, err := runner.New(
		runner.WithEnginePath(cfg.Engine.Path),
		runner.WithEngineArgs(cfg.Engine.Args),
		runner.WithSocket(cfg.Engine.Socket),
	).Start(ctx)
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "morphir",
		Short: "Build Morphir IR and generate code from it",
		Long: `Morphir compiles a project's sources into a Morphir IR file and
generates target code from that IR.

'morphir make' only sends changed files to the engine when a previous IR and
its hash file exist. 'morphir gen' keeps the output directory in sync with
what the engine generates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			log.Init(g.verbosity, g.logFormat)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	root.PersistentFlags().IntVarP(&g.verbosity, "verbosity", "v", 1,
		"Verbosity level (0=error, 1=warn, 2=info, 3=debug, 4=trace)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "text",
		"Log format (text, json)")
	root.PersistentFlags().StringVar(&g.engine, "engine", "",
		"Path to the morphir-engine binary")
	root.PersistentFlags().StringVar(&g.engineSocket, "engine-socket", "",
		"Unix socket of a running engine (skips spawning one)")

	root.AddCommand(
		newMakeCmd(g),
		newGenCmd(g),
		newStatusCmd(g),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "morphir %s (%s)\n", Version, GitCommit)
		},
	}
}

// loadConfig layers config files and env vars found from dir, then the
// global engine flags on top. An empty dir searches from the working
// directory.
func (g *globalOptions) loadConfig(dir string) *config.Config {
	var cfg *config.Config
	if dir == "" {
		cfg = config.Load()
	} else {
		cfg = config.LoadFrom(dir)
	}
	if g.engine != "" {
		cfg.Engine.Path = g.engine
	}
	if g.engineSocket != "" {
		cfg.Engine.Socket = g.engineSocket
	}
	return cfg
}

// Execute runs the root command and exits 1 on failure.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes args and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		v, _ := root.PersistentFlags().GetInt("verbosity")
		fmt.Fprintln(stderr, errs.Format(err, v >= log.VerbosityDebug))
		return 1
	}
	return 0
}
