package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pixelworldai/alphaflatten/exrio"
	"github.com/pixelworldai/alphaflatten/flatten"
	"github.com/pixelworldai/alphaflatten/internal/config"
	"github.com/pixelworldai/alphaflatten/layerio"
)

type flattenOptions struct {
	output      string
	background  string
	color       string
	rgb         string
	stack       string
	pixelType   string
	compression string
	workers     int
	jobs        int
}

func (a *app) flattenCommand() *cobra.Command {
	var opts flattenOptions

	cmd := &cobra.Command{
		Use:   "flatten [layers...]",
		Short: "Composite layers, bottom first, into one image",
		Long: `Composite layers, bottom first, into one image.

Opaque backgrounds produce RGB output; --background transparent keeps the
accumulated alpha. Output format follows the extension of --output: .exr
keeps the full float range, .png and .tif/.tiff are written as 16-bit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			s, err := opts.stackFor(cmd, args)
			if err != nil {
				return err
			}
			return a.runFlatten(ctx, s, opts.jobs)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "output file (.exr, .png, .tif)")
	flags.StringVarP(&opts.background, "background", "b", "black", "background: black, white, transparent or custom")
	flags.StringVar(&opts.color, "color", "", "custom background as hex, e.g. #336699")
	flags.StringVar(&opts.rgb, "rgb", "", "custom background as r,g,b floats")
	flags.StringVar(&opts.stack, "stack", "", "YAML stack manifest")
	flags.StringVar(&opts.pixelType, "pixel-type", "half", "EXR output pixel type (half, float)")
	flags.StringVar(&opts.compression, "compression", "zip", "EXR output compression (none, rle, zips, zip)")
	flags.IntVar(&opts.workers, "workers", 0, "compositing goroutines (0 = GOMAXPROCS)")
	flags.IntVar(&opts.jobs, "jobs", 0, "layer files decoded at once (0 = GOMAXPROCS)")
	return cmd
}

// stackFor merges the manifest, positional layers and explicit flags.
func (o *flattenOptions) stackFor(cmd *cobra.Command, args []string) (*config.Stack, error) {
	s := &config.Stack{}
	if o.stack != "" {
		var err error
		if s, err = config.Read(o.stack); err != nil {
			return nil, err
		}
	}
	for _, arg := range args {
		src := parseSource(arg)
		s.Layers = append(s.Layers, config.Layer{Path: src.Path, Layer: src.Layer})
	}

	changed := cmd.Flags().Changed
	if changed("output") || s.Output == "" {
		s.Output = o.output
	}
	if changed("background") {
		s.Background = o.background
	}
	if changed("color") {
		s.Color = o.color
	}
	if changed("rgb") {
		rgb, err := parseRGB(o.rgb)
		if err != nil {
			return nil, err
		}
		s.Custom = rgb
		if !changed("background") && s.Color == "" {
			s.Background = "custom"
		}
	}
	if changed("pixel-type") || s.PixelType == "" {
		s.PixelType = o.pixelType
	}
	if changed("compression") || s.Compression == "" {
		s.Compression = o.compression
	}
	if changed("workers") {
		s.Workers = o.workers
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Output == "" {
		return nil, fmt.Errorf("%w: no output file, use -o", config.ErrInvalid)
	}
	return s, nil
}

// parseSource splits "fx.exr:smoke" into a path and an EXR layer.
func parseSource(arg string) layerio.Source {
	i := strings.LastIndexByte(arg, ':')
	if i < 0 {
		return layerio.Source{Path: arg}
	}
	path, layer := arg[:i], arg[i+1:]
	if layerio.FormatOf(path) != layerio.FormatEXR || strings.ContainsAny(layer, `/\`) {
		return layerio.Source{Path: arg}
	}
	return layerio.Source{Path: path, Layer: layer}
}

// parseRGB parses "r,g,b" floats.
func parseRGB(s string) (*config.RGB, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("--rgb wants r,g,b, got %q", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("--rgb component %d: %w", i, err)
		}
		v[i] = f
	}
	return &config.RGB{R: v[0], G: v[1], B: v[2]}, nil
}

func (a *app) runFlatten(ctx context.Context, s *config.Stack, jobs int) error {
	start := time.Now()
	for _, w := range s.Warnings() {
		a.log.Warn(w)
	}

	bg, err := s.BackgroundValue()
	if err != nil {
		return err
	}
	pt, err := exrio.ParsePixelType(s.PixelType)
	if err != nil {
		return err
	}
	comp, err := exrio.ParseCompression(s.Compression)
	if err != nil {
		return err
	}

	pc := flatten.DefaultParallelConfig()
	pc.NumWorkers = s.Workers
	flatten.SetParallelConfig(pc)

	loader := &layerio.Loader{Logger: a.log, Concurrency: jobs}
	batch, err := loader.Load(ctx, s.Sources())
	if err != nil {
		return err
	}

	compositeStart := time.Now()
	result, err := flatten.Flatten(batch, bg)
	if err != nil {
		return err
	}
	a.log.WithFields(logrus.Fields{
		"event":      "flattened",
		"layers":     batch.Dim(0),
		"width":      batch.Dim(2),
		"height":     batch.Dim(1),
		"background": bg.String(),
		"duration":   time.Since(compositeStart).String(),
	}).Debug("Composited layers")

	if dir := filepath.Dir(s.Output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	saver := &layerio.Saver{
		Logger:      a.log,
		PixelType:   pt,
		Compression: comp,
		Comments:    fmt.Sprintf("alphaflatten %s: %d layers over %s", Version, batch.Dim(0), bg),
	}
	if err := saver.Save(s.Output, result); err != nil {
		return err
	}

	a.log.WithFields(logrus.Fields{
		"event":    "done",
		"output":   s.Output,
		"layers":   batch.Dim(0),
		"duration": time.Since(start).String(),
	}).Info("Flatten complete")
	return nil
}
