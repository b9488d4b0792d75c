package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/cfboot/pkg/engine"
)

const shutdownTimeout = 30 * time.Second

type bootOpts struct {
	host  string
	once  bool
	grace time.Duration
}

func (c *CLI) bootCommand() *cobra.Command {
	opts := bootOpts{host: "cli", grace: engine.DefaultGrace}
	cmd := &cobra.Command{
		Use:   "boot",
		Short: "Boot the engine and keep it running",
		Long: `Boot resolves the core module named by cfboot.core.name, starts the engine and
waits for a signal. SIGHUP restarts the engine with cfboot.restart.password,
SIGINT and SIGTERM shut it down.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd.Context(), func(rt *runtime) error {
				return c.runBoot(cmd.Context(), rt, opts)
			})
		},
	}
	cmd.Flags().StringVar(&opts.host, "host", opts.host, "name of the host configuration handed to the engine")
	cmd.Flags().BoolVar(&opts.once, "once", false, "shut down right after a successful boot")
	cmd.Flags().DurationVar(&opts.grace, "grace", opts.grace, "how long shutdown waits for modules to settle")
	return cmd
}

func (c *CLI) runBoot(ctx context.Context, rt *runtime, opts bootOpts) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)
	boot := engine.New(rt.cfg, rt.resolver, nil,
		engine.WithLogger(logger.WithPrefix("engine")),
		engine.WithGrace(opts.grace),
	)

	sp := newSpinner(ctx, os.Stderr, "Booting "+rt.cfg.CoreName())
	sp.Start()
	rc, err := boot.GetOrStart(ctx, &engine.HostConfig{Name: opts.host, Props: map[string]string{}})
	sp.Stop()
	if err != nil {
		return err
	}
	prog.done("Booted " + rc.Core.Key())
	printEngineInfo(os.Stdout, rc)

	if !opts.once {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
	wait:
		for {
			select {
			case <-ctx.Done():
				break wait
			case <-hup:
				ok, err := boot.Restart(ctx, rt.cfg.RestartPassword())
				if err != nil {
					logger.Error("restart failed", "error", err)
					continue
				}
				if ok {
					printEngineInfo(os.Stdout, boot.Current())
				}
			}
		}
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := boot.Shutdown(sctx); err != nil {
		return err
	}
	printSuccess(os.Stdout, "Engine stopped")
	return nil
}

func printEngineInfo(w io.Writer, rc *engine.RuntimeContext) {
	info := rc.Engine.Info()
	printSuccess(w, "Engine running")
	printKeyValue(w, "core", rc.Core.Key())
	printKeyValue(w, "version", info.Version)
	if !info.BuildTime.IsZero() {
		printKeyValue(w, "built", info.BuildTime.Format(time.DateTime))
	}
	for _, h := range rc.Hosts {
		printKeyValue(w, "host", h.Name)
	}
}
