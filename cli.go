package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/chazu/alucad/pkg/assembly"
	"github.com/chazu/alucad/pkg/config"
	"github.com/chazu/alucad/pkg/hardware"
	"github.com/chazu/alucad/pkg/kernel"
)

// newRootCmd builds the alucad command tree. Extra options are applied to
// the App after the configuration has been loaded.
func newRootCmd(opts ...AppOption) *cobra.Command {
	var (
		verbose bool
		cfgFile string
		app     *App
	)

	root := &cobra.Command{
		Use:           "alucad",
		Short:         "alucad composes aluminium gates and roller shutters",
		Long:          `alucad generates parametric aluminium gates and roller shutters, lays them out with a manifest or a Lisp script, and exports the result as STL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			level := cfg.Level()
			if verbose {
				level = log.DebugLevel
			}
			logger := newLogger(cmd.ErrOrStderr(), level)
			cmd.SetContext(withLogger(cmd.Context(), logger))

			appOpts := append([]AppOption{WithConfig(cfg), WithAppLogger(logger)}, opts...)
			app = NewApp(appOpts...)
			app.startup(cmd.Context())
			logger.Debug("configured", "meshCells", cfg.Kernel.MeshCells, "workers", cfg.Workers(),
				"timeout", cfg.Engine.Timeout)
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./"+config.DefaultFile+")")

	getApp := func() *App { return app }
	root.AddCommand(newModelsCmd(getApp))
	root.AddCommand(newGenerateCmd(getApp))
	root.AddCommand(newComposeCmd(getApp))
	root.AddCommand(newScriptCmd(getApp))
	return root
}

func newModelsCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the model catalogue with default parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDEFAULTS")
			for _, e := range app().Registry().List() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, e.Name, formatParams(e.Defaults))
			}
			return w.Flush()
		},
	}
}

func newGenerateCmd(app func() *App) *cobra.Command {
	var (
		sets   []string
		output string
	)
	cmd := &cobra.Command{
		Use:   "generate <model>",
		Short: "Build one model at the origin and export it as STL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseSets(sets)
			if err != nil {
				return err
			}
			origin := kernel.Vec3{}
			strategy := assembly.Manual{Entries: []assembly.ManualEntry{
				{Model: args[0], Enabled: true, Params: params, Position: &origin},
			}}
			if output == "" {
				output = args[0] + ".stl"
			}
			return export(cmd, app(), strategy, output)
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override a parameter, e.g. --set width=1200 (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output STL path (default <model>.stl)")
	return cmd
}

func newComposeCmd(app func() *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "compose <manifest.yaml>",
		Short: "Compose the assembly described by a YAML manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := assembly.ReadManifest(args[0])
			if err != nil {
				return err
			}
			strategy, err := m.StrategyWith(app().Defaults())
			if err != nil {
				return err
			}
			return export(cmd, app(), strategy, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "assembly.stl", "output STL path")
	return cmd
}

func newScriptCmd(app func() *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "script <file.zy>",
		Short: "Evaluate a layout script and export the assembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			strategy, evalErrs, err := app().Engine().Evaluate(string(source))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if len(evalErrs) > 0 {
				for _, e := range evalErrs {
					loggerFromContext(cmd.Context()).Error(e.Message, "file", args[0], "line", e.Line)
				}
				return fmt.Errorf("%s: %s", args[0], evalErrs[0].Error())
			}
			if strategy == nil {
				return fmt.Errorf("%s: script is empty", args[0])
			}
			return export(cmd, app(), strategy, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "assembly.stl", "output STL path")
	return cmd
}

func export(cmd *cobra.Command, app *App, strategy assembly.LayoutStrategy, output string) error {
	if err := cmd.Context().Err(); err != nil {
		return err
	}
	if err := app.Export(strategy, output); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}

// parseSets turns repeated name=value flags into parameters.
func parseSets(sets []string) (hardware.Params, error) {
	if len(sets) == 0 {
		return nil, nil
	}
	p := make(hardware.Params, len(sets))
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("--set %q: expected name=value", s)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("--set %q: %w", s, err)
		}
		p[name] = f
	}
	return p, nil
}

func formatParams(p hardware.Params) string {
	keys := p.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, " ")
}
