package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/cfboot/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "cfboot boots a CFML engine from versioned modules",
		Long: `cfboot locates, downloads, installs and starts the modules a CFML engine is
made of. Modules are jars with OSGi-style manifests kept in a local bundle
directory; missing ones are fetched from an update provider.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
			installHooks(c.Logger)
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVarP(&c.configPath, "config", "c", "", "config file (default ~/.config/cfboot/cfboot.toml)")
	flags.StringArrayVar(&c.overrides, "set", nil, "override a config property, key=value (repeatable)")
	flags.BoolVar(&c.trace, "trace", false, "print the full error cause chain")

	root.AddCommand(c.bootCommand())
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.findCommand())
	root.AddCommand(c.fetchCommand())
	root.AddCommand(c.listCommand())
	root.AddCommand(c.removeCommand())
	root.AddCommand(c.classCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.providerCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())

	return root
}
