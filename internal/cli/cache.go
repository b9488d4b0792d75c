package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/cfboot/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the module descriptor cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop all cached module descriptors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			backend, err := cfg.CacheBackend()
			if err != nil {
				return err
			}
			if backend == config.CacheFile {
				if _, err := os.Stat(cfg.CacheDir()); os.IsNotExist(err) {
					printInfo(os.Stdout, "Cache is empty")
					return nil
				}
			}

			ch, err := newCache(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer ch.Close()
			if err := ch.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear %s cache: %w", backend, err)
			}
			printSuccess(os.Stdout, "Cleared %s cache", backend)
			if backend == config.CacheFile {
				printDetail(os.Stdout, "Directory: %s", cfg.CacheDir())
			}
			return nil
		},
	}
}

func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where descriptors are cached",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			backend, err := cfg.CacheBackend()
			if err != nil {
				return err
			}
			switch backend {
			case config.CacheRedis:
				fmt.Println(cfg.RedisURL())
			case config.CacheNone:
				printInfo(os.Stdout, "Caching is disabled")
			default:
				fmt.Println(cfg.CacheDir())
			}
			return nil
		},
	}
}
