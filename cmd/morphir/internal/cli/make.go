package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/build"
	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/changes"
	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/manifest"
	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/watch"
	"github.com/albertocavalcante/morphir-make/internal/errs"
	"github.com/albertocavalcante/morphir-make/pkg/config"
)

type makeOptions struct {
	projectDir string
	output     string
	typesOnly  bool
	force      bool
	watch      bool
	verbose    bool
	json       bool
	noColor    bool
}

func newMakeCmd(g *globalOptions) *cobra.Command {
	o := &makeOptions{}

	cmd := &cobra.Command{
		Use:   "make",
		Short: "Translate the project's sources into Morphir IR",
		Long: `Builds the Morphir IR for the project described by morphir.json.

When a previous IR and its hash file exist, only the files that changed since
the last build are sent to the engine. With no changes nothing is rebuilt.

With --watch, make keeps running and rebuilds whenever a source file changes.
Press Ctrl+C to stop watching.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMake(cmd, g, o)
		},
	}

	cmd.Flags().StringVarP(&o.projectDir, "project-dir", "p", ".",
		"Root directory of the project where morphir.json is located")
	cmd.Flags().StringVarP(&o.output, "output", "o", config.NewConfig().Make.Output,
		"Target file location where the Morphir IR will be saved")
	cmd.Flags().BoolVarP(&o.typesOnly, "types-only", "t", false,
		"Only include type information in the IR, no values")
	cmd.Flags().BoolVar(&o.force, "force", false,
		"Ignore recorded hashes and build from scratch")
	cmd.Flags().BoolVar(&o.watch, "watch", false,
		"Rebuild whenever a source file changes")
	cmd.Flags().BoolVar(&o.verbose, "verbose", false,
		"Show file-level changes in watch mode")
	cmd.Flags().BoolVar(&o.json, "json", false,
		"Stream watch events as JSON")
	cmd.Flags().BoolVar(&o.noColor, "no-color", false,
		"Disable colored watch output")

	return cmd
}

func runMake(cmd *cobra.Command, g *globalOptions, o *makeOptions) error {
	cfg := g.loadConfig(o.projectDir)
	if cmd.Flags().Changed("output") {
		cfg.Make.Output = o.output
	}
	if cmd.Flags().Changed("types-only") {
		cfg.Make.TypesOnly = &o.typesOnly
	}

	eng := newLazyEngine(cfg)
	defer func() { _ = eng.Close() }()

	opts := build.MakeOptions{
		ProjectDir: o.projectDir,
		Output:     cfg.Make.Output,
		TypesOnly:  cfg.IsTypesOnly(),
		Force:      o.force,
	}

	var out io.Writer = cmd.OutOrStdout()
	if o.watch && o.json {
		out = io.Discard
	}
	maker := build.NewMaker(eng, build.WithScan(scanConfig(cfg)), build.WithOutput(out))

	if !o.watch {
		_, err := maker.Make(cmd.Context(), opts)
		return err
	}
	return watchMake(cmd, cfg, o, maker, opts)
}

// watchMake builds once, then rebuilds on every debounced batch of changes
// until interrupted.
func watchMake(cmd *cobra.Command, cfg *config.Config, o *makeOptions, maker *build.Maker, opts build.MakeOptions) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	man, err := manifest.Load(o.projectDir)
	if err != nil {
		return err
	}

	// A failed first build is reported; the next change retries.
	if _, err := maker.Make(ctx, opts); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errs.Format(err, false))
	}
	opts.Force = false

	w, err := watch.New(watch.Config{
		Root: man.SourceRoot(o.projectDir),
		Scan: scanConfig(cfg),
		Exclude: []string{
			opts.Output,
			changes.NewProjectStore(o.projectDir).Path(),
		},
		Debounce: cfg.Debounce(),
		Rebuild: func(ctx context.Context, _ []string) (string, error) {
			res, err := maker.Make(ctx, opts)
			if err != nil {
				return "", err
			}
			return summarize(res), nil
		},
		Writer:  cmd.OutOrStdout(),
		Verbose: o.verbose,
		NoColor: o.noColor,
		JSON:    o.json,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	return w.Run(ctx)
}

// summarize renders a make result as one line.
func summarize(res *build.MakeResult) string {
	if res.Mode == build.ModeUpToDate {
		return "IR is up to date"
	}
	s := res.Stats
	return fmt.Sprintf("%s build wrote %s (%d inserted, %d updated, %d deleted)",
		res.Mode, filepath.Base(res.ArtifactPath), s.Inserted, s.Updated, s.Deleted)
}
