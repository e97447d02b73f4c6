package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	SucceededResult = "succeeded"
	FailedResult    = "failed"

	WarningNotification  = "warning"
	DeletionNotification = "deletion"
)

type Service interface {
	SetQueueDepth(queueName string, vhost string, depth int64)
	DeleteQueueDepth(queueName string, vhost string)
	IncCyclesTotal(result string)
	ObserveCycleDuration(seconds float64)
	IncQueuesCreatedTotal()
	IncOwnersAssignedTotal()
	IncQueuesDeletedTotal(result string)
	IncWarningsTotal()
	IncNotificationsTotal(kind string, result string)
	IncNotificationsDroppedTotal()
	IncDirectoryErrorsTotal()
	SetWarnedQueues(count int)
}

// NewMetricsService returns the Prometheus implementation registered with the given registerer if metrics are enabled.
func NewMetricsService(metricsEnabled bool, registerer prometheus.Registerer) Service {
	if metricsEnabled {
		return newPrometheusMetricsService(registerer)
	}
	return newNoopMetricsService()
}
