package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusOK       = "ok"
	statusError    = "error"
	statusCanceled = "canceled"
)

// Pool runs CPU-bound work on a fixed number of goroutines so that request
// handlers only block on a channel while pixels are being pushed around.
type Pool struct {
	pool    pond.Pool
	metrics *metrics
}

// NewPool builds a pool with the given concurrency. Zero or less means one
// worker per CPU. A nil registerer gets a private registry.
func NewPool(concurrency int, reg prometheus.Registerer) (*Pool, error) {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	p := &Pool{pool: pond.NewPool(concurrency)}
	m, err := newMetrics(reg, func() float64 { return float64(p.pool.WaitingTasks()) })
	if err != nil {
		p.pool.StopAndWait()
		return nil, fmt.Errorf("register worker metrics: %w", err)
	}
	p.metrics = m
	return p, nil
}

// Run submits fn and blocks until it finishes or ctx is done. A task whose
// context ends while it is still queued is dropped without running. When ctx
// ends mid-run, Run returns immediately and fn is left to observe ctx itself.
func (p *Pool) Run(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	queuedAt := time.Now()
	task := p.pool.SubmitErr(func() error {
		if err := ctx.Err(); err != nil {
			p.metrics.tasksTotal.WithLabelValues(statusCanceled).Inc()
			return err
		}
		p.metrics.queueWait.Observe(time.Since(queuedAt).Seconds())

		p.metrics.activeTasks.Inc()
		defer p.metrics.activeTasks.Dec()

		start := time.Now()
		err := fn(ctx)
		status := statusLabel(err)
		p.metrics.tasksTotal.WithLabelValues(status).Inc()
		p.metrics.taskDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
		return err
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-task.Done():
		return task.Wait()
	}
}

func (p *Pool) Concurrency() int {
	return p.pool.MaxConcurrency()
}

func (p *Pool) Waiting() uint64 {
	return p.pool.WaitingTasks()
}

func (p *Pool) Running() int64 {
	return p.pool.RunningWorkers()
}

// Stop waits for queued and running tasks to finish.
func (p *Pool) Stop() {
	p.pool.StopAndWait()
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return statusCanceled
	default:
		return statusError
	}
}
