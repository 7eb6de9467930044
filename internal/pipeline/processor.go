package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/mediaproc/internal/domain"
	"github.com/dunamismax/mediaproc/internal/id"
	"github.com/dunamismax/mediaproc/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Request asks for one object to be fetched and transformed. Key may still
// be percent-encoded.
type Request struct {
	Key    string
	Params domain.TransformParams
}

// Fetcher loads source bytes for an already validated key.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Runner executes CPU-bound work off the caller's goroutine.
type Runner interface {
	Run(ctx context.Context, fn func(context.Context) error) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, fn func(context.Context) error) error

func (f RunnerFunc) Run(ctx context.Context, fn func(context.Context) error) error {
	return f(ctx, fn)
}

type inlineRunner struct{}

func (inlineRunner) Run(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

type ProcessorConfig struct {
	Fetcher     Fetcher
	Transformer *Transformer
	// Runner defaults to running on the calling goroutine.
	Runner Runner
	// Usage is optional; write failures are logged and never fail a request.
	Usage store.UsageStore
	// Timeout bounds the compute stage. Zero means no limit beyond ctx.
	Timeout    time.Duration
	Registerer prometheus.Registerer
}

// Processor validates a request, fetches the source, runs the transform on
// the compute runner and records usage.
type Processor struct {
	fetcher     Fetcher
	transformer *Transformer
	runner      Runner
	usage       store.UsageStore
	timeout     time.Duration
	metrics     *metrics
	now         func() time.Time
}

func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if cfg.Transformer == nil {
		return nil, errors.New("transformer is required")
	}

	runner := cfg.Runner
	if runner == nil {
		runner = inlineRunner{}
	}
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m, err := newMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register pipeline metrics: %w", err)
	}

	return &Processor{
		fetcher:     cfg.Fetcher,
		transformer: cfg.Transformer,
		runner:      runner,
		usage:       cfg.Usage,
		timeout:     cfg.Timeout,
		metrics:     m,
		now:         time.Now,
	}, nil
}

// Validate checks the key and parameters without touching storage, and
// returns the decoded key.
func (p *Processor) Validate(req Request) (string, error) {
	key, err := domain.NormalizeKey(req.Key)
	if err != nil {
		return "", err
	}
	if err := req.Params.Validate(p.transformer.Limits()); err != nil {
		return "", err
	}
	return key, nil
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	format := string(req.Params.Format)
	if format == "" {
		format = "source"
	}

	key, err := p.Validate(req)
	if err != nil {
		p.metrics.transformsTotal.WithLabelValues(format, outcomeLabel(err)).Inc()
		return Result{}, err
	}

	logger := zerolog.Ctx(ctx).With().Str("key", key).Logger()

	fetchStart := p.now()
	source, err := p.fetcher.Fetch(ctx, key)
	p.metrics.fetchDuration.Observe(p.now().Sub(fetchStart).Seconds())
	if err != nil {
		p.metrics.transformsTotal.WithLabelValues(format, outcomeLabel(err)).Inc()
		logger.Warn().Err(err).Msg("fetch failed")
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}
	p.metrics.sourceBytes.Observe(float64(len(source)))

	computeCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		computeCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := p.now()
	var res Result
	err = p.runner.Run(computeCtx, func(ctx context.Context) error {
		out, err := p.transformer.Transform(ctx, source, req.Params)
		if err != nil {
			return err
		}
		res = out
		return nil
	})
	elapsed := p.now().Sub(start)
	if err != nil {
		p.metrics.transformsTotal.WithLabelValues(format, outcomeLabel(err)).Inc()
		logger.Warn().Err(err).Int("source_bytes", len(source)).Dur("elapsed", elapsed).Msg("transform failed")
		return Result{}, fmt.Errorf("transform stage: %w", err)
	}

	p.metrics.transformsTotal.WithLabelValues(string(res.Format), outcomeLabel(nil)).Inc()
	p.metrics.transformDuration.WithLabelValues(string(res.Format)).Observe(elapsed.Seconds())
	p.recordUsage(ctx, logger, key, len(source), res, elapsed)

	logger.Info().
		Str("format", string(res.Format)).
		Int("width", res.Width).
		Int("height", res.Height).
		Int("source_bytes", len(source)).
		Int("output_bytes", len(res.Data)).
		Bool("resized", res.Resized).
		Dur("elapsed", elapsed).
		Msg("transformed")
	return res, nil
}

func (p *Processor) recordUsage(ctx context.Context, logger zerolog.Logger, key string, sourceBytes int, res Result, elapsed time.Duration) {
	computeTimeMS := elapsed.Milliseconds()
	if computeTimeMS < 1 {
		computeTimeMS = 1
	}

	usage := domain.UsageLog{
		ID:              id.New(),
		ObjectKey:       key,
		Format:          res.Format,
		SourceBytes:     int64(sourceBytes),
		OutputBytes:     int64(len(res.Data)),
		PixelsProcessed: int64(res.Width) * int64(res.Height),
		ComputeTimeMS:   computeTimeMS,
		CreatedAt:       p.now().UTC(),
	}

	p.metrics.pixelsProcessedTotal.Add(float64(usage.PixelsProcessed))
	p.metrics.bytesSavedTotal.Add(float64(usage.BytesSaved()))
	p.metrics.computeTimeMSTotal.Add(float64(usage.ComputeTimeMS))

	if p.usage == nil {
		return
	}
	if err := p.usage.CreateUsageLog(ctx, usage); err != nil {
		logger.Error().Err(err).Str("usage_id", usage.ID).Msg("usage log write failed")
	}
}
