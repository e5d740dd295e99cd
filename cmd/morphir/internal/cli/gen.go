package cli

import (
	"github.com/spf13/cobra"

	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/generate"
)

type genOptions struct {
	input              string
	output             string
	modulesToInclude   string
	targetVersion      string
	redistributableDir string
}

func newGenCmd(g *globalOptions) *cobra.Command {
	o := &genOptions{}

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate code from Morphir IR",
		Long: `Generates code from a Morphir IR file into the output directory.

The output directory is reconciled with the generated files: new files are
inserted, existing ones updated and files the engine no longer produces are
deleted. Each action is printed as "ACTION - path".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGen(cmd, g, o)
		},
	}

	cmd.Flags().StringVarP(&o.input, "input", "i", generate.DefaultInput,
		"Source location where the Morphir IR will be loaded from")
	cmd.Flags().StringVarP(&o.output, "output", "o", generate.DefaultOutput,
		"Target location where the generated code will be saved")
	cmd.Flags().StringVarP(&o.modulesToInclude, "modules-to-include", "m", "",
		"Limit the set of modules that will be included (comma-separated)")
	cmd.Flags().StringVarP(&o.targetVersion, "target-version", "s", generate.DefaultTargetVersion,
		"Scala version of the redistributable sources to copy")
	cmd.Flags().StringVar(&o.redistributableDir, "redistributable-dir", "",
		"Directory holding Scala/sdk redistributable sources")

	return cmd
}

func runGen(cmd *cobra.Command, g *globalOptions, o *genOptions) error {
	cfg := g.loadConfig("")

	opts := generate.Options{
		Input:              o.input,
		Output:             cfg.Generate.Output,
		ModulesToInclude:   o.modulesToInclude,
		TargetVersion:      cfg.Generate.TargetVersion,
		RedistributableDir: cfg.Generate.RedistributableDir,
	}
	if cmd.Flags().Changed("output") {
		opts.Output = o.output
	}
	if cmd.Flags().Changed("target-version") {
		opts.TargetVersion = o.targetVersion
	}
	if cmd.Flags().Changed("redistributable-dir") {
		opts.RedistributableDir = o.redistributableDir
	}

	eng := newLazyEngine(cfg)
	defer func() { _ = eng.Close() }()

	gen := generate.New(eng,
		generate.WithOutput(cmd.OutOrStdout()),
		generate.WithWorkers(cfg.Scan.Workers))
	_, err := gen.Run(cmd.Context(), opts)
	return err
}
