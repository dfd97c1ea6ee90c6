package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/body-chart/internal/adapter/fs"
	"github.com/couchcryptid/body-chart/internal/adapter/raster"
	"github.com/couchcryptid/body-chart/internal/assets"
	"github.com/couchcryptid/body-chart/internal/config"
	"github.com/couchcryptid/body-chart/internal/domain"
	"github.com/couchcryptid/body-chart/internal/observability"
	"github.com/couchcryptid/body-chart/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// app carries the configuration and logger shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	logLevel   string
	logFormat  string
	rasterizer string
	width      int
}

// renderOptions holds the flags of the root render command.
type renderOptions struct {
	variants string
	extreme  bool
	output   string
	format   string
}

func newRootCommand() *cobra.Command {
	a := &app{}
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "bodychart [flags] <INPUT_FILE>...",
		Short: "Render body-map pain charts from survey exports",
		Long: `bodychart reads survey exports (CSV, one respondent per row, the first
field an id and then one field per body zone) and colors each zone by how
many respondents reported pain there.

Each input renders one chart per variant: "any" counts every reported pain,
"worst" only the worst pain. Charts are written next to the input as
<name>.any.png and <name>.worst.png.`,
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("please specify an input file")
			}
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.render(cmd.Context(), args, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	pf.StringVar(&a.logFormat, "log-format", "", "log format (json, text); overrides LOG_FORMAT")
	pf.StringVar(&a.rasterizer, "rasterizer", "", "PNG rasterizer (exec, native); overrides RASTERIZER")
	pf.IntVar(&a.width, "width", 0, "PNG width in pixels, 0 keeps the template size; overrides RENDER_WIDTH")

	f := cmd.Flags()
	f.StringVar(&opts.variants, "variant", "", "comma-separated variants to render (any, worst); overrides CHART_VARIANTS")
	f.BoolVar(&opts.extreme, "extreme", false, "render only the worst-pain variant")
	f.StringVarP(&opts.output, "output", "o", "", "output file; only for a single input and a single variant")
	f.StringVar(&opts.format, "format", pipeline.FormatPNG, "output format (png, svg)")
	cmd.MarkFlagsMutuallyExclusive("variant", "extreme")

	cmd.AddCommand(newServeCommand(a), newStreamCommand(a))
	return cmd
}

// setup loads the environment configuration and applies flag overrides.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	switch {
	case a.logFormat != "":
		cfg.LogFormat = a.logFormat
	case cmd.Parent() == nil && os.Getenv("LOG_FORMAT") == "":
		// One-off renders are read by people, services by collectors.
		cfg.LogFormat = "text"
	}
	if a.rasterizer != "" {
		cfg.Rasterizer = a.rasterizer
	}
	if cmd.Flags().Changed("width") {
		if a.width < 0 {
			return errors.New("--width must not be negative")
		}
		cfg.RenderWidth = a.width
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = observability.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	return nil
}

// rasterizer renders PNGs and reports whether it can run.
type rasterizer interface {
	domain.Rasterizer
	sharedobs.ReadinessChecker
}

func (a *app) newRasterizer(bundle *assets.Bundle) (rasterizer, error) {
	if a.cfg.Rasterizer == config.RasterizerNative {
		return raster.NewNative(bundle.Image, a.cfg.RenderWidth)
	}
	return raster.NewExec(a.cfg.RasterizerCmd, a.cfg.RasterizerTimeout, a.cfg.RenderWidth)
}

func (a *app) loadBundle() (*assets.Bundle, error) {
	return assets.Load(a.cfg.Layout(), a.cfg.TemplatePath, a.cfg.ImagePath)
}

// render runs the file pipeline over the inputs. Any input or chart that
// fails makes the whole run fail after the rest have been written.
func (a *app) render(ctx context.Context, inputs []string, opts *renderOptions) error {
	variants := a.cfg.Variants
	switch {
	case opts.extreme:
		variants = []domain.Variant{domain.VariantWorst}
	case opts.variants != "":
		v, err := domain.ParseVariants(opts.variants)
		if err != nil {
			return fmt.Errorf("--variant: %w", err)
		}
		variants = v
	}

	if opts.format != pipeline.FormatPNG && opts.format != pipeline.FormatSVG {
		return fmt.Errorf("--format: unsupported format %q", opts.format)
	}

	if err := checkInputs(inputs); err != nil {
		return err
	}

	bundle, err := a.loadBundle()
	if err != nil {
		return err
	}

	var r rasterizer
	if opts.format == pipeline.FormatPNG {
		r, err = a.newRasterizer(bundle)
		if err != nil {
			return err
		}
		if err := r.CheckReadiness(ctx); err != nil {
			return err
		}
	}

	src, err := fs.NewSource(inputs, variants, opts.format, opts.output)
	if err != nil {
		return err
	}

	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	tr := pipeline.NewTransformer(bundle, r, variants, opts.format, a.logger, metrics)
	p := pipeline.New(src, tr, fs.NewSink(a.logger), a.logger, metrics, a.cfg.BatchSize, pipeline.WithLoadAttempts(1))

	if err := p.Run(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	failed := p.Failures() + int64(src.Skipped())
	if failed > 0 {
		return fmt.Errorf("%d failures rendering %d inputs, %d charts written", failed, len(inputs), p.Loaded())
	}
	return nil
}

// checkInputs fails before any chart is written if an input cannot be opened.
func checkInputs(inputs []string) error {
	for _, path := range inputs {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		f.Close()
	}
	return nil
}
