package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dunamismax/mediaproc/internal/domain"
	"github.com/dunamismax/mediaproc/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type options struct {
	input        string
	output       string
	width        int
	height       int
	format       string
	quality      int
	maxDimension int
	timeout      time.Duration
}

func newRootCommand(logger zerolog.Logger) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "transform -i INPUT -o OUTPUT|DIR [flags]",
		Short: "Resize and re-encode a local image with the mediaproc pipeline",
		Long: "Reads an image from disk (or stdin with -i -), applies the same orientation, " +
			"resize and encode steps as the HTTP service, and writes the result (or stdout with -o -).",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := opts.params(cmd)
			if err != nil {
				return err
			}
			ctx := logger.WithContext(cmd.Context())
			return run(ctx, opts, params, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", "", "input image path, or - for stdin")
	flags.StringVarP(&opts.output, "output", "o", "", "output image path, existing directory, or - for stdout")
	flags.IntVarP(&opts.width, "width", "w", 0, "maximum output width")
	flags.IntVarP(&opts.height, "height", "H", 0, "maximum output height")
	flags.StringVarP(&opts.format, "format", "f", "", "output format: jpg, png, webp or avif (default: from output extension, else source format)")
	flags.IntVarP(&opts.quality, "quality", "q", domain.DefaultQuality, "encoder quality 1-100 (ignored for png)")
	flags.IntVar(&opts.maxDimension, "max-dimension", domain.MaxDimension, "maximum output width or height")
	flags.DurationVar(&opts.timeout, "timeout", 0, "abort the transform after this long (0 means no limit)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	cmd.AddCommand(newBackendCommand())
	return cmd
}

func newBackendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backend",
		Short: "Print the pixel backend compiled into this binary",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), pipeline.Backend())
		},
	}
}

// params converts flags to transform parameters. Width, height and quality
// only count when set explicitly.
func (o *options) params(cmd *cobra.Command) (domain.TransformParams, error) {
	flags := cmd.Flags()

	var width, height, quality *int
	if flags.Changed("width") {
		width = domain.Int(o.width)
	}
	if flags.Changed("height") {
		height = domain.Int(o.height)
	}
	if flags.Changed("quality") {
		quality = domain.Int(o.quality)
	}

	var format domain.OutputFormat
	token := o.format
	if token == "" && o.output != "-" {
		token = strings.TrimPrefix(strings.ToLower(filepath.Ext(o.output)), ".")
		if _, err := domain.ParseOutputFormat(token); err != nil {
			token = ""
		}
	}
	if token != "" {
		f, err := domain.ParseOutputFormat(token)
		if err != nil {
			return domain.TransformParams{}, err
		}
		format = f
	}

	return domain.NewTransformParams(width, height, format, quality), nil
}

func run(ctx context.Context, opts *options, params domain.TransformParams, stdin io.Reader, stdout io.Writer) error {
	logger := zerolog.Ctx(ctx)

	input, err := readInput(opts.input, stdin)
	if err != nil {
		return err
	}

	if err := pipeline.Startup(); err != nil {
		return fmt.Errorf("start image backend: %w", err)
	}
	defer pipeline.Shutdown()

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	transformer := pipeline.NewTransformer(domain.Limits{MaxDimension: opts.maxDimension})
	start := time.Now()
	res, err := transformer.Transform(ctx, input, params)
	if err != nil {
		return fmt.Errorf("transform %s: %w", opts.input, err)
	}

	output := outputPath(opts.output, opts.input, res.Format)
	if err := writeOutput(output, res.Data, stdout); err != nil {
		return err
	}

	logger.Info().
		Str("input", opts.input).
		Str("output", output).
		Str("source_format", res.SourceFormat).
		Str("format", string(res.Format)).
		Str("source", fmt.Sprintf("%dx%d", res.SourceWidth, res.SourceHeight)).
		Str("result", fmt.Sprintf("%dx%d", res.Width, res.Height)).
		Int("source_bytes", len(input)).
		Int("output_bytes", len(res.Data)).
		Str("orientation", res.Orientation.String()).
		Dur("elapsed", time.Since(start)).
		Msg("transformed")
	return nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

// outputPath names the file inside output when output is an existing
// directory, using the input's base name and the encoded format's extension.
func outputPath(output, input string, format domain.OutputFormat) string {
	if output == "-" {
		return output
	}
	info, err := os.Stat(output)
	if err != nil || !info.IsDir() {
		return output
	}
	name := "stdin"
	if input != "-" {
		base := filepath.Base(input)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return filepath.Join(output, name+"."+format.Extension())
}

func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
