package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/absfs/deniable"
	"github.com/spf13/cobra"
)

// app is the state shared by all subcommands of one invocation
type app struct {
	configPath string
	verbose    bool

	fs     *osFS
	config *deniable.Config
	log    *slog.Logger
}

// Execute runs the root command with signal handling
func Execute(ctx context.Context) error {
	ctx, cancel := interruptContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return newRootCmd().ExecuteContext(ctx)
}

// interruptContext is cancelled by the first of sigs. The handler is
// released on cancellation, so a second signal terminates the process even
// while a prompt is waiting for input.
func interruptContext(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, sigs...)
	context.AfterFunc(ctx, stop)
	return ctx, stop
}

func newRootCmd() *cobra.Command {
	a := &app{fs: newOSFS()}

	cmd := &cobra.Command{
		Use:   "deniable",
		Short: "Deniable full-disk encryption with password-derived offsets",
		Long: `deniable places several encrypted volumes on one raw block device.
Each password derives its own starting block and key, so revealing one
password says nothing about whether others exist.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log search progress")

	cmd.AddCommand(
		newPrepareCmd(a),
		newUnlockCmd(a),
		newDeriveCmd(a),
	)
	return cmd
}

// setup configures logging and loads the config before any command runs
func (a *app) setup(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	if a.configPath == "" {
		a.config = deniable.DefaultConfig()
		return nil
	}

	cfg, err := deniable.LoadConfig(a.fs, a.configPath)
	if err != nil {
		return err
	}
	a.log.Debug("config loaded", "path", a.configPath)
	a.config = cfg
	return nil
}
