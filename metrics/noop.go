package metrics

type NoopMetricsService struct {
}

func newNoopMetricsService() *NoopMetricsService {
	return &NoopMetricsService{}
}

func (nms *NoopMetricsService) SetQueueDepth(queueName string, vhost string, depth int64) {
	// no-op
}

func (nms *NoopMetricsService) DeleteQueueDepth(queueName string, vhost string) {
	// no-op
}

func (nms *NoopMetricsService) IncCyclesTotal(result string) {
	// no-op
}

func (nms *NoopMetricsService) ObserveCycleDuration(seconds float64) {
	// no-op
}

func (nms *NoopMetricsService) IncQueuesCreatedTotal() {
	// no-op
}

func (nms *NoopMetricsService) IncOwnersAssignedTotal() {
	// no-op
}

func (nms *NoopMetricsService) IncQueuesDeletedTotal(result string) {
	// no-op
}

func (nms *NoopMetricsService) IncWarningsTotal() {
	// no-op
}

func (nms *NoopMetricsService) IncNotificationsTotal(kind string, result string) {
	// no-op
}

func (nms *NoopMetricsService) IncNotificationsDroppedTotal() {
	// no-op
}

func (nms *NoopMetricsService) IncDirectoryErrorsTotal() {
	// no-op
}

func (nms *NoopMetricsService) SetWarnedQueues(count int) {
	// no-op
}
