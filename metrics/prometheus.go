package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusMetricsService struct {
	queueDepth                *prometheus.GaugeVec
	cyclesTotal               *prometheus.CounterVec
	cycleDuration             prometheus.Histogram
	queuesCreatedTotal        prometheus.Counter
	ownersAssignedTotal       prometheus.Counter
	queuesDeletedTotal        *prometheus.CounterVec
	warningsTotal             prometheus.Counter
	notificationsTotal        *prometheus.CounterVec
	notificationsDroppedTotal prometheus.Counter
	directoryErrorsTotal      prometheus.Counter
	warnedQueues              prometheus.Gauge
}

func newPrometheusMetricsService(registerer prometheus.Registerer) *PrometheusMetricsService {
	srv := &PrometheusMetricsService{
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "guardian_queue_ready_messages",
				Help: "Number of ready messages in the queue, as seen by the last poll cycle",
			},
			[]string{"queue_name", "vhost"},
		),

		cyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guardian_cycles_total",
				Help: "Total number of poll cycles, by result. A failed cycle is the one that could not fetch the broker snapshot",
			},
			[]string{"result"},
		),

		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "guardian_cycle_duration_seconds",
				Help:    "Duration of a poll cycle, including the snapshot fetch",
				Buckets: prometheus.DefBuckets,
			},
		),

		queuesCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "guardian_queues_created_total",
				Help: "Total number of queue records created for newly seen queues",
			},
		),

		ownersAssignedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "guardian_owners_assigned_total",
				Help: "Total number of queues attributed to a user via their consumer",
			},
		),

		// no queue name label here, as deleted queues are gone for good and would leave stale series behind.
		queuesDeletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guardian_queues_deleted_total",
				Help: "Total number of queue deletions requested because of the delete threshold, by result",
			},
			[]string{"result"},
		),

		warningsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "guardian_warnings_total",
				Help: "Total number of queues that crossed the warn threshold",
			},
		),

		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guardian_notifications_total",
				Help: "Total number of notifications sent to queue owners, by kind and result",
			},
			[]string{"kind", "result"},
		),

		notificationsDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "guardian_notifications_dropped_total",
				Help: "Total number of notifications dropped because the outbox was full",
			},
		),

		directoryErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "guardian_directory_errors_total",
				Help: "Total number of failed reads or writes of queue and user records",
			},
		),

		warnedQueues: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "guardian_warned_queues",
				Help: "Number of queues currently above the warn threshold",
			},
		),
	}

	registerer.MustRegister(
		srv.queueDepth,
		srv.cyclesTotal,
		srv.cycleDuration,
		srv.queuesCreatedTotal,
		srv.ownersAssignedTotal,
		srv.queuesDeletedTotal,
		srv.warningsTotal,
		srv.notificationsTotal,
		srv.notificationsDroppedTotal,
		srv.directoryErrorsTotal,
		srv.warnedQueues,
	)

	return srv
}

func (pms *PrometheusMetricsService) SetQueueDepth(queueName string, vhost string, depth int64) {
	pms.queueDepth.WithLabelValues(queueName, vhost).Set(float64(depth))
}

func (pms *PrometheusMetricsService) DeleteQueueDepth(queueName string, vhost string) {
	pms.queueDepth.DeleteLabelValues(queueName, vhost)
}

func (pms *PrometheusMetricsService) IncCyclesTotal(result string) {
	pms.cyclesTotal.WithLabelValues(result).Inc()
}

func (pms *PrometheusMetricsService) ObserveCycleDuration(seconds float64) {
	pms.cycleDuration.Observe(seconds)
}

func (pms *PrometheusMetricsService) IncQueuesCreatedTotal() {
	pms.queuesCreatedTotal.Inc()
}

func (pms *PrometheusMetricsService) IncOwnersAssignedTotal() {
	pms.ownersAssignedTotal.Inc()
}

func (pms *PrometheusMetricsService) IncQueuesDeletedTotal(result string) {
	pms.queuesDeletedTotal.WithLabelValues(result).Inc()
}

func (pms *PrometheusMetricsService) IncWarningsTotal() {
	pms.warningsTotal.Inc()
}

func (pms *PrometheusMetricsService) IncNotificationsTotal(kind string, result string) {
	pms.notificationsTotal.WithLabelValues(kind, result).Inc()
}

func (pms *PrometheusMetricsService) IncNotificationsDroppedTotal() {
	pms.notificationsDroppedTotal.Inc()
}

func (pms *PrometheusMetricsService) IncDirectoryErrorsTotal() {
	pms.directoryErrorsTotal.Inc()
}

func (pms *PrometheusMetricsService) SetWarnedQueues(count int) {
	pms.warnedQueues.Set(float64(count))
}
