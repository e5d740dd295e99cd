package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/build"
	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/changes"
	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/manifest"
	"github.com/albertocavalcante/morphir-make/pkg/config"
)

type statusOptions struct {
	projectDir string
	output     string
	verbose    bool
	json       bool
}

func newStatusCmd(g *globalOptions) *cobra.Command {
	o := &statusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show source changes since the last make",
		Long: `Compares the project's sources against the hashes recorded by the last
'morphir make' and reports what the next make would do. The engine is not
started.

The --verbose flag lists individual file changes.
The --json flag outputs the result as JSON for scripting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, g, o)
		},
	}

	cmd.Flags().StringVarP(&o.projectDir, "project-dir", "p", ".",
		"Root directory of the project where morphir.json is located")
	cmd.Flags().StringVarP(&o.output, "output", "o", config.NewConfig().Make.Output,
		"Location of the Morphir IR written by make")
	cmd.Flags().BoolVar(&o.verbose, "verbose", false,
		"Show individual file changes")
	cmd.Flags().BoolVar(&o.json, "json", false,
		"Output as JSON")

	return cmd
}

// StatusOutput is the JSON output format for morphir status.
type StatusOutput struct {
	Stale    bool           `json:"stale"`
	Mode     build.Mode     `json:"mode"`
	Stats    *changes.Stats `json:"stats,omitempty"`
	Inserted []string       `json:"inserted,omitempty"`
	Updated  []string       `json:"updated,omitempty"`
	Deleted  []string       `json:"deleted,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

func runStatus(cmd *cobra.Command, g *globalOptions, o *statusOptions) error {
	cfg := g.loadConfig(o.projectDir)
	if cmd.Flags().Changed("output") {
		cfg.Make.Output = o.output
	}

	status, err := projectStatus(cmd, cfg, o.projectDir)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if o.json {
		return outputJSON(w, status)
	}
	printStatus(w, status, o.verbose)
	return nil
}

func projectStatus(cmd *cobra.Command, cfg *config.Config, projectDir string) (*StatusOutput, error) {
	man, err := manifest.Load(projectDir)
	if err != nil {
		return nil, err
	}

	var store changes.Store = changes.NewProjectStore(projectDir)
	var prior changes.Hashes
	reason := ""
	switch {
	case !store.Exists():
		reason = "no hash file"
	case !fileExists(cfg.Make.Output):
		reason = "no existing IR"
	default:
		prior, err = store.Load()
		if err != nil {
			reason = "unreadable hash file"
			prior = nil
		}
	}

	cs, err := changes.NewDetector(scanConfig(cfg)).Detect(cmd.Context(), prior, man.SourceRoot(projectDir))
	if err != nil {
		return nil, err
	}
	stats := cs.Stats()

	status := &StatusOutput{
		Stats:    &stats,
		Inserted: cs.PathsOf(changes.KindInsert),
		Updated:  cs.PathsOf(changes.KindUpdate),
		Deleted:  cs.PathsOf(changes.KindDelete),
		Reason:   reason,
	}
	switch {
	case reason != "":
		status.Mode = build.ModeFull
		status.Stale = true
	case stats.HasChanges():
		status.Mode = build.ModeIncremental
		status.Stale = true
	default:
		status.Mode = build.ModeUpToDate
	}
	return status, nil
}

func printStatus(w io.Writer, s *StatusOutput, verbose bool) {
	switch s.Mode {
	case build.ModeUpToDate:
		fmt.Fprintln(w, "Morphir IR is up to date")
		return
	case build.ModeFull:
		fmt.Fprintf(w, "Next make builds from scratch (%s).\n", s.Reason)
	default:
		fmt.Fprintf(w, "The following file changes were detected:\n  %s\n", s.Stats)
	}

	if verbose {
		for _, group := range []struct {
			mark  string
			paths []string
		}{
			{"+", s.Inserted},
			{"~", s.Updated},
			{"-", s.Deleted},
		} {
			for _, p := range group.paths {
				fmt.Fprintf(w, "  %s %s\n", group.mark, p)
			}
		}
	}

	fmt.Fprintln(w, "\nRun 'morphir make' to update the IR")
}

func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
