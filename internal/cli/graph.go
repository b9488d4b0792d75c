package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/cfboot/pkg/dag"
	"github.com/matzehuels/cfboot/pkg/render"
	"github.com/matzehuels/cfboot/pkg/resolver"
)

// validFormats is the set of supported graph output formats.
var validFormats = map[string]bool{"dot": true, "json": true, "svg": true, "pdf": true, "png": true}

type graphOpts struct {
	output     string
	format     string
	detailed   bool
	noDownload bool
	scale      float64
}

func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{scale: 2}
	cmd := &cobra.Command{
		Use:   "graph [<name>[:version] [version]]",
		Short: "Render the requirement graph of a module",
		Long: `Graph resolves a module and renders the requirement graph of every module it
pulled in. Without a module, all modules of the bundle directory are installed
and graphed. SVG output uses Graphviz; PDF and PNG need rsvg-convert.`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.format = strings.ToLower(opts.format)
			if opts.format == "" {
				opts.format = formatFor(opts.output)
			}
			if !validFormats[opts.format] {
				return fmt.Errorf("invalid format: %s (must be 'dot', 'json', 'svg', 'pdf' or 'png')", opts.format)
			}
			return c.withRuntime(cmd.Context(), func(rt *runtime) error {
				return runGraph(cmd.Context(), rt, args, opts)
			})
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: dot, json, svg, pdf, png (default from --output, else dot)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "label nodes with their state and install id")
	cmd.Flags().BoolVar(&opts.noDownload, "no-download", false, "only use modules from the bundle directory")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "PNG scale factor")
	return cmd
}

func runGraph(ctx context.Context, rt *runtime, args []string, opts graphOpts) error {
	logger := loggerFromContext(ctx)

	if len(args) > 0 {
		name, v, err := parseModuleArgs(args)
		if err != nil {
			return err
		}
		res := rt.resolver.Resolve(ctx, resolver.Request{
			Name:              name,
			Version:           v,
			StartIfNecessary:  true,
			DownloadIfMissing: !opts.noDownload,
			Identity:          rt.id,
		}, resolver.NewVisiting())
		if res.Status == resolver.Failed {
			return res.Err
		}
		if res.Err != nil {
			logger.Warn("module did not start, graphing what was installed", "module", res.Module.Key(), "error", res.Err)
		}
	} else {
		for _, d := range rt.store.List(ctx) {
			v := d.Version
			if _, err := rt.resolver.Load(ctx, resolver.Request{Name: d.SymbolicName, Version: &v, Extra: []string{d.Path}}); err != nil {
				logger.Warn("skipping module", "file", filepath.Base(d.Path), "error", err)
			}
		}
	}

	g := rt.resolver.Graph()
	logger.Infof("Graph: %d modules, %d requirements", g.NodeCount(), g.EdgeCount())
	logger.Debug("graph ends", "roots", dag.NodeIDs(g.Sources()), "leaves", dag.NodeIDs(g.Sinks()))

	data, err := renderGraph(ctx, g, opts)
	if err != nil {
		return err
	}
	out, err := openOutput(opts.output)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := out.Write(data); err != nil {
		return err
	}
	if opts.output != "" {
		logger.Infof("Generated %s", opts.output)
	}
	return nil
}

func renderGraph(ctx context.Context, g *dag.DAG, opts graphOpts) ([]byte, error) {
	if opts.format == "json" {
		var buf bytes.Buffer
		err := render.WriteJSON(g, &buf)
		return buf.Bytes(), err
	}
	dot := render.ToDOT(g, render.Options{Detailed: opts.detailed})
	if opts.format == "dot" {
		return []byte(dot), nil
	}
	svg, err := render.RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	switch opts.format {
	case "pdf":
		return render.ToPDF(ctx, svg)
	case "png":
		return render.ToPNG(ctx, svg, opts.scale)
	default:
		return svg, nil
	}
}

// formatFor derives the format from an output file extension.
func formatFor(output string) string {
	if ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(output), ".")); validFormats[ext] {
		return ext
	}
	return "dot"
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput opens path for writing, or stdout for an empty path.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}
