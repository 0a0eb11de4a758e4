package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/dt/internal/config"
	"github.com/roach88/dt/internal/render"
	"github.com/roach88/dt/internal/store"
)

// session is the per-invocation state shared by the store-backed commands.
type session struct {
	dataDir string
	cfg     config.Config
	store   *store.Store
	out     *OutputFormatter
	color   bool
}

// binder attaches command flags to config keys before the config loads.
type binder func(l *config.Loader) error

// setupLogging routes slog to w: warnings by default, everything with --verbose.
func setupLogging(opts *RootOptions, w io.Writer) {
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Diagnostics go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// loadConfig resolves the data directory and configuration without
// touching the store.
func loadConfig(opts *RootOptions, bind binder) (string, config.Config, error) {
	dataDir, err := config.ResolveDataDir(opts.DataDir)
	if err != nil {
		return "", config.Config{}, WrapExitError(ExitCommandError, "cannot resolve data directory", err)
	}

	loader := config.NewLoader(dataDir)
	if bind != nil {
		if err := bind(loader); err != nil {
			return "", config.Config{}, WrapExitError(ExitCommandError, "bind flags", err)
		}
	}
	cfg, err := loader.Load()
	if err != nil {
		return "", config.Config{}, WrapExitError(ExitCommandError, "cannot load config", err)
	}
	return dataDir, cfg, nil
}

// openSession sets up logging, loads the config and opens the store.
// The caller must close the session.
func openSession(opts *RootOptions, cmd *cobra.Command, bind binder) (*session, error) {
	setupLogging(opts, cmd.ErrOrStderr())
	out := newFormatter(opts, cmd)

	dataDir, cfg, err := loadConfig(opts, bind)
	if err != nil {
		if out.JSON() {
			_ = out.Error(ErrCodeGeneric, err.Error(), nil)
		}
		return nil, err
	}

	storeOpts := append([]store.Option{store.WithAutoArchive(cfg.Storage.AutoArchive)}, opts.StoreOptions...)
	slog.Debug("opening store", "dir", dataDir)
	st, err := store.Open(dataDir, storeOpts...)
	if err != nil {
		return nil, out.Fail("cannot open data directory", err)
	}

	return &session{
		dataDir: dataDir,
		cfg:     cfg,
		store:   st,
		out:     out,
		color:   render.ColorEnabled(cfg.Display.Color, cmd.OutOrStdout()),
	}, nil
}

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		slog.Error("error closing store", "error", err)
	}
}

// printer renders human-readable output to w with the session's color mode.
func (s *session) printer(w io.Writer) *render.Printer {
	return render.NewPrinter(w, s.color)
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// signalContext derives a context that is cancelled on SIGINT or SIGTERM.
// The returned stop function releases the signal handler.
func signalContext(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, interrupting command", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}
