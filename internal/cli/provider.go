package cli

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/cfboot/pkg/provider"
	"github.com/matzehuels/cfboot/pkg/store"
)

type serveOpts struct {
	addr      string
	dir       string
	redirects bool
}

func (c *CLI) providerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Run an update provider mirror",
	}
	cmd.AddCommand(c.providerServeCommand())
	return cmd
}

func (c *CLI) providerServeCommand() *cobra.Command {
	opts := serveOpts{addr: ":8888", redirects: true}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a bundle directory over the update provider protocol",
		Long: `Serve answers the download requests cfboot and engines send to an update
provider, from a local bundle directory. Point cfboot.update.location at it to
boot machines without internet access.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if err := c.configureLogging(cfg); err != nil {
				return err
			}
			ch, err := newCache(ctx, cfg)
			if err != nil {
				return err
			}
			defer ch.Close()

			dir := opts.dir
			if dir == "" {
				dir = cfg.BundlesDir()
			}
			logger := loggerFromContext(ctx).WithPrefix("provider")
			st := store.New(dir, store.WithCache(ch), store.WithLogger(logger))
			srv := provider.New(st, provider.WithLogger(logger), provider.WithRedirects(opts.redirects))
			return serve(ctx, opts.addr, srv.Handler(), func(addr string) {
				printSuccess(os.Stdout, "Serving %s", dir)
				printKeyValue(os.Stdout, "address", addr)
			})
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "bundle directory to serve (default cfboot.bundles.dir)")
	cmd.Flags().BoolVar(&opts.redirects, "redirects", opts.redirects, "redirect downloads to /files/{file}")
	return cmd
}

// serve runs h on addr until ctx is cancelled, then shuts down gracefully.
func serve(ctx context.Context, addr string, h http.Handler, ready func(addr string)) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	ready(addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
