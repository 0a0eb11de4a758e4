package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dt/internal/config"
)

// ConfigResult is the JSON payload of the config subcommands.
type ConfigResult struct {
	Path    string         `json:"path"`
	DataDir string         `json:"data_dir"`
	Config  *config.Config `json:"config,omitempty"`
}

// NewConfigCommand creates the config command and its subcommands.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
		Long: `Inspect or create <data-dir>/config.yaml.

Settings resolve from built-in defaults, then the config file, then DT_*
environment variables (DT_STORAGE_MAX_RETENTION_DAYS, DT_DISPLAY_COLOR,
...), then command-line flags.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "path",
		Short:         "Print the config file path",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigPath(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Print the resolved configuration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(rootOpts, cmd)
		},
	})
	cmd.AddCommand(newConfigInitCommand(rootOpts))

	return cmd
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:           "init",
		Short:         "Write a config file with the default settings",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(rootOpts, cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}

func runConfigPath(opts *RootOptions, cmd *cobra.Command) error {
	setupLogging(opts, cmd.ErrOrStderr())
	out := newFormatter(opts, cmd)

	dataDir, err := config.ResolveDataDir(opts.DataDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot resolve data directory", err)
	}

	if out.JSON() {
		return out.Success(ConfigResult{Path: config.Path(dataDir), DataDir: dataDir})
	}
	return out.Success(config.Path(dataDir))
}

func runConfigShow(opts *RootOptions, cmd *cobra.Command) error {
	setupLogging(opts, cmd.ErrOrStderr())
	out := newFormatter(opts, cmd)

	dataDir, cfg, err := loadConfig(opts, nil)
	if err != nil {
		return err
	}

	if out.JSON() {
		return out.Success(ConfigResult{Path: config.Path(dataDir), DataDir: dataDir, Config: &cfg})
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		return WrapExitError(ExitFailure, "cannot encode config", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigInit(opts *RootOptions, cmd *cobra.Command, force bool) error {
	setupLogging(opts, cmd.ErrOrStderr())
	out := newFormatter(opts, cmd)

	dataDir, err := config.ResolveDataDir(opts.DataDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot resolve data directory", err)
	}

	path, err := config.Write(dataDir, config.Default(), force)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot write config (use --force to overwrite)", err)
	}

	if out.JSON() {
		return out.Success(ConfigResult{Path: path, DataDir: dataDir})
	}
	return out.Success(fmt.Sprintf("wrote %s", path))
}
