package pipeline

import (
	"context"
	"testing"

	"github.com/dunamismax/mediaproc/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

func BenchmarkProcessorResize(b *testing.B) {
	benchmarkProcessor(b, domain.NewTransformParams(domain.Int(640), nil, domain.FormatJPEG, domain.Int(82)))
}

func BenchmarkProcessorReencode(b *testing.B) {
	benchmarkProcessor(b, domain.NewTransformParams(nil, nil, domain.FormatPNG, nil))
}

func BenchmarkProcessorWebP(b *testing.B) {
	benchmarkProcessor(b, domain.NewTransformParams(domain.Int(800), domain.Int(600), domain.FormatWebP, nil))
}

func benchmarkProcessor(b *testing.B, params domain.TransformParams) {
	source := encodePNG(b, gradientImage(1920, 1080))
	processor, err := NewProcessor(ProcessorConfig{
		Fetcher:     &staticFetcher{data: source},
		Transformer: NewTransformer(domain.DefaultLimits()),
		Registerer:  prometheus.NewRegistry(),
	})
	if err != nil {
		b.Fatalf("new processor: %v", err)
	}

	req := Request{Key: "bench/source.png", Params: params}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := processor.Process(context.Background(), req); err != nil {
			b.Fatalf("process: %v", err)
		}
	}
}
