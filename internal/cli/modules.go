package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/cfboot/pkg/bundle"
	"github.com/matzehuels/cfboot/pkg/errors"
	"github.com/matzehuels/cfboot/pkg/fetch"
	"github.com/matzehuels/cfboot/pkg/resolver"
	"github.com/matzehuels/cfboot/pkg/version"
)

// parseModuleArgs accepts "name", "name:version" or "name version".
func parseModuleArgs(args []string) (string, *version.Version, error) {
	name, text := args[0], ""
	if len(args) > 1 {
		text = args[1]
	} else if n, v, ok := strings.Cut(name, ":"); ok {
		name, text = n, v
	}
	if err := errors.ValidateModuleName(name); err != nil {
		return "", nil, err
	}
	if text == "" {
		return name, nil, nil
	}
	v, err := version.ParseStrict(text)
	if err != nil {
		return "", nil, err
	}
	return name, &v, nil
}

// withRuntime builds the runtime for one command and tears it down after.
func (c *CLI) withRuntime(ctx context.Context, fn func(rt *runtime) error) error {
	rt, err := c.newRuntime(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(context.WithoutCancel(ctx)); err != nil {
			c.Logger.Warn("runtime close failed", "error", err)
		}
	}()
	return fn(rt)
}

type resolveOpts struct {
	noStart       bool
	noDownload    bool
	anyInstalled  bool
	showModuleDir bool
}

func (c *CLI) resolveCommand() *cobra.Command {
	var opts resolveOpts
	cmd := &cobra.Command{
		Use:   "resolve <name>[:version] [version]",
		Short: "Install and start a module with its requirements",
		Long: `Resolve makes a module available: it is installed from the bundle directory
or downloaded from the update provider, then started. Modules it requires are
resolved the same way.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, v, err := parseModuleArgs(args)
			if err != nil {
				return err
			}
			return c.withRuntime(cmd.Context(), func(rt *runtime) error {
				return runResolve(cmd.Context(), rt, name, v, opts)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.noStart, "no-start", false, "install without starting")
	cmd.Flags().BoolVar(&opts.noDownload, "no-download", false, "only use modules from the bundle directory")
	cmd.Flags().BoolVar(&opts.anyInstalled, "any-installed", false, "accept any installed version, the version only matters for downloads")
	cmd.Flags().BoolVar(&opts.showModuleDir, "show-dir", false, "print the bundle directory")
	return cmd
}

func runResolve(ctx context.Context, rt *runtime, name string, v *version.Version, opts resolveOpts) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)
	sp := newSpinner(ctx, os.Stderr, "Resolving "+name)
	sp.Start()
	res := rt.resolver.Resolve(ctx, resolver.Request{
		Name:                          name,
		Version:                       v,
		StartIfNecessary:              !opts.noStart,
		DownloadIfMissing:             !opts.noDownload,
		VersionOnlyMattersForDownload: opts.anyInstalled,
		Identity:                      rt.id,
	}, resolver.NewVisiting())
	sp.Stop()

	if res.Status == resolver.Failed {
		return res.Err
	}
	out := os.Stdout
	if res.Status == resolver.PartiallyResolved {
		printWarning(out, "%s installed but not started", res.Module.Key())
		for _, u := range res.Unmet {
			printDetail(out, "unmet: %s", u)
		}
		return res.Err
	}
	prog.done("Resolved " + res.Module.Key())
	seen := map[string]bool{}
	for _, dep := range rt.resolver.Graph().Children(res.Module.Key()) {
		if !seen[dep] {
			seen[dep] = true
			printDetail(out, "requires %s", dep)
		}
	}
	printSuccess(out, "%s is %s", res.Module.Key(), rt.fw.State(res.Module))
	if opts.showModuleDir {
		printFile(out, rt.store.Dir())
	}
	return nil
}

func (c *CLI) findCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "find <name>[:version] [version]",
		Short: "Find a module file in the bundle directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, v, err := parseModuleArgs(args)
			if err != nil {
				return err
			}
			return c.withRuntime(cmd.Context(), func(rt *runtime) error {
				d, found := rt.store.FindWithVersions(cmd.Context(), name, v)
				if d == nil {
					printWarning(os.Stdout, "no local file for %s", bundle.Key(name, versionOrZero(v)))
					if len(found) > 0 {
						printDetail(os.Stdout, "available: %s", strings.Join(found, ", "))
					}
					return errors.New(errors.ErrCodeModuleNotFound, "module [%s] is not available locally [%s]", name, rt.store.Dir())
				}
				printSuccess(os.Stdout, "%s", bundle.Key(d.SymbolicName, d.Version))
				printFile(os.Stdout, d.Path)
				return nil
			})
		},
	}
}

func versionOrZero(v *version.Version) version.Version {
	if v == nil {
		return version.Version{}
	}
	return *v
}

func (c *CLI) fetchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <name>[:version] [version]",
		Short: "Download a module from the update provider",
		Long:  "Fetch downloads a module into the bundle directory without installing it. Without a version the newest one is fetched.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, v, err := parseModuleArgs(args)
			if err != nil {
				return err
			}
			ver := fetch.Latest
			if v != nil {
				ver = v.String()
			}
			return c.withRuntime(cmd.Context(), func(rt *runtime) error {
				sp := newSpinner(cmd.Context(), os.Stderr, "Downloading "+name)
				sp.Start()
				path, err := rt.fetch.Download(cmd.Context(), name, ver, rt.id)
				sp.Stop()
				if err != nil {
					return err
				}
				printSuccess(os.Stdout, "Downloaded %s", name)
				printFile(os.Stdout, path)
				return nil
			})
		},
	}
}

func (c *CLI) listCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the modules in the bundle directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd.Context(), func(rt *runtime) error {
				mods := rt.store.List(cmd.Context())
				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(mods)
				}
				if len(mods) == 0 {
					printInfo(os.Stdout, "No modules in %s", rt.store.Dir())
					return nil
				}
				rows := make([][]string, 0, len(mods))
				for _, d := range mods {
					kind := "bundle"
					if d.FragmentHost != "" {
						kind = "fragment of " + d.FragmentHost
					}
					rows = append(rows, []string{d.SymbolicName, d.Version.String(), kind, filepath.Base(d.Path)})
				}
				printTable(os.Stdout, []string{"name", "version", "kind", "file"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print descriptors as JSON")
	return cmd
}

func (c *CLI) removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>[:version] [version]",
		Short: "Delete a module file from the bundle directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, v, err := parseModuleArgs(args)
			if err != nil {
				return err
			}
			if v == nil {
				return errors.New(errors.ErrCodeInvalidInput, "remove needs a version for [%s]", name)
			}
			return c.withRuntime(cmd.Context(), func(rt *runtime) error {
				path, err := rt.resolver.Remove(cmd.Context(), name, *v, true)
				if err != nil {
					return err
				}
				printSuccess(os.Stdout, "Removed %s", bundle.Key(name, *v))
				printFile(os.Stdout, path)
				return nil
			})
		},
	}
}

func (c *CLI) classCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "class <class-name>",
		Short: "Find the module that provides a class",
		Long: `Class looks a class up in the active modules first, then installs and
starts the first local module that contains it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd.Context(), func(rt *runtime) error {
				classes := resolver.Classes{
					resolver.ActiveSource{Framework: rt.fw},
					resolver.LocalSource{Resolver: rt.resolver},
				}
				data, ok := classes.Load(cmd.Context(), args[0])
				if !ok {
					return errors.New(errors.ErrCodeModuleNotFound, "no module provides class [%s]", args[0])
				}
				printSuccess(os.Stdout, "%s (%d bytes)", args[0], len(data))
				for _, d := range rt.resolver.Definitions() {
					if d.State == "active" && d.ID != 0 {
						printDetail(os.Stdout, "%s:%s", d.Name, d.Version)
					}
				}
				return nil
			})
		},
	}
}
