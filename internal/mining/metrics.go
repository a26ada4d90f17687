package mining

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics — Prometheus-метрики оркестратора.
// Регистрация глобальная и одноразовая: оркестраторов может быть
// несколько (по туртлу на каждого), метрики у них общие.
type metrics struct {
	runsTotal       *prometheus.CounterVec
	voxelsProcessed prometheus.Counter
	voxelsFailed    prometheus.Counter
	voxelsDeferred  prometheus.Counter
	runDuration     prometheus.Histogram
}

var (
	metricsOnce   sync.Once
	sharedMetrics *metrics
)

func getMetrics() *metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &metrics{
			runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mining",
				Name:      "runs_total",
				Help:      "Число прогонов по результату.",
			}, []string{"result"}),
			voxelsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "mining",
				Name:      "voxels_processed_total",
				Help:      "Успешно выкопанные воксели.",
			}),
			voxelsFailed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "mining",
				Name:      "voxels_failed_total",
				Help:      "Воксели, завершившиеся отказом.",
			}),
			voxelsDeferred: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "mining",
				Name:      "voxels_deferred_total",
				Help:      "Отложенные воксели (могут повторяться между проходами).",
			}),
			runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "mining",
				Name:      "run_duration_seconds",
				Help:      "Длительность прогона.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			}),
		}
		prometheus.MustRegister(
			sharedMetrics.runsTotal,
			sharedMetrics.voxelsProcessed,
			sharedMetrics.voxelsFailed,
			sharedMetrics.voxelsDeferred,
			sharedMetrics.runDuration,
		)
	})
	return sharedMetrics
}
