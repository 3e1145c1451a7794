// Package cli contains all commands of the nuupdater binary
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Ning0612/NuUpdater/internal/config"
	"github.com/Ning0612/NuUpdater/internal/daemon"
	"github.com/Ning0612/NuUpdater/internal/logger"
	"github.com/Ning0612/NuUpdater/internal/output"
	"github.com/Ning0612/NuUpdater/internal/service"
	"github.com/Ning0612/NuUpdater/internal/settings"
)

// app carries the global flags and what PersistentPreRunE builds from them
type app struct {
	cfgFile string
	verbose bool
	quiet   bool
	color   string

	cfg     *config.Config
	printer *output.Printer
	fs      afero.Fs
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	a := &app{fs: afero.NewOsFs()}

	root := &cobra.Command{
		Use:   "nuupdater",
		Short: "Keep a TLE file current from per-satellite URLs",
		Long: `nuupdater periodically downloads two-line element sets for a catalog of
satellites and merges them into a single text file.

Example usage:
  nuupdater run --create-output    # Start the auto-update schedule in the foreground
  nuupdater fetch                  # Run one cycle now (signals a running daemon)
  nuupdater sat add "NOAA 21" URL  # Add a satellite to the catalog
  nuupdater select "NOAA 20" AQUA  # Choose which satellites are fetched
  nuupdater interval 6 hours       # Change the update interval
  nuupdater status                 # Show settings, daemon and last cycle`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Shutdown()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default searches for config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "mirror the structured log on stderr at debug level")
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "only print errors")
	root.PersistentFlags().StringVar(&a.color, "color", "auto", "color output: auto, always or never")

	root.AddCommand(
		newRunCmd(a),
		newFetchCmd(a),
		newStopCmd(a),
		newStatusCmd(a),
		newHistoryCmd(a),
		newSatCmd(a),
		newSelectCmd(a),
		newIntervalCmd(a),
		newOutputCmd(a),
		newVersionCmd(a),
	)

	return root
}

// Execute runs the command tree against os.Args
func Execute() error {
	return NewRootCommand().Execute()
}

func (a *app) initPrinter(cmd *cobra.Command) error {
	mode, err := output.ParseColorMode(a.color)
	if err != nil {
		return err
	}
	a.printer = output.NewPrinterWithOptions(output.PrinterOptions{
		ColorMode: mode,
		Quiet:     a.quiet,
		Out:       cmd.OutOrStdout(),
		Err:       cmd.ErrOrStderr(),
	})
	return nil
}

// init loads the configuration and installs the global logger. The console
// log is only attached with --verbose; commands talk to the user through
// the printer.
func (a *app) init(cmd *cobra.Command) error {
	if err := a.initPrinter(cmd); err != nil {
		return err
	}

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	lc := cfg.LoggerConfig()
	if a.verbose {
		lc.Level = logger.LevelDebug
		lc.Outputs[0].Writer = cmd.ErrOrStderr()
	} else {
		lc.Outputs[0].Writer = io.Discard
	}

	_ = logger.Shutdown()
	if err := logger.Init(lc); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	logger.Get().Debug("configuration loaded",
		"source", cfg.Source,
		"settings", cfg.Settings.Path,
		"state_dir", cfg.State.Dir,
	)
	return nil
}

func (a *app) store() *settings.Store {
	return settings.NewStore(a.cfg.Settings.Path, a.fs)
}

func (a *app) controller() *service.Controller {
	return service.NewController(a.store(), a.fs)
}

func (a *app) pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(a.cfg.PIDPath())
}
