package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	queueWait    prometheus.Histogram
	activeTasks  prometheus.Gauge
	waitingTasks prometheus.GaugeFunc
}

func newMetrics(reg prometheus.Registerer, waiting func() float64) (*metrics, error) {
	m := &metrics{
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediaproc_worker_tasks_total",
			Help: "Total compute tasks by final status.",
		}, []string{"status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mediaproc_worker_task_duration_seconds",
			Help:    "Time spent running each compute task.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mediaproc_worker_queue_wait_seconds",
			Help:    "Time compute tasks spent waiting for a free worker.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mediaproc_worker_active_tasks",
			Help: "Current number of compute tasks running.",
		}),
		waitingTasks: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mediaproc_worker_waiting_tasks",
			Help: "Current number of compute tasks queued for a worker.",
		}, waiting),
	}

	for _, c := range []prometheus.Collector{
		m.tasksTotal,
		m.taskDuration,
		m.queueWait,
		m.activeTasks,
		m.waitingTasks,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
