package guardian

import (
	"context"
	"errors"
	"time"

	"github.com/n0rdy/guardian/broker"
	"github.com/n0rdy/guardian/db"
	"github.com/n0rdy/guardian/metrics"
	"github.com/n0rdy/guardian/notifier"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Directory is the persistent store of queue and user records.
type Directory interface {
	GetQueue(name string, ctx context.Context) (*db.QueueRecord, error)
	CreateQueue(newQueue *db.NewQueue, ctx context.Context) (*db.QueueRecord, error)
	UpdateQueueOwner(name string, owner string, ctx context.Context) error
	GetUser(username string, ctx context.Context) (*db.User, error)
}

type Broker interface {
	Queues(ctx context.Context) ([]broker.QueueSnapshot, error)
	DeleteQueue(vhost string, name string, ctx context.Context) error
	QueueExchange(vhost string, name string, ctx context.Context) (string, error)
	ConsumerIdentity(snapshot broker.QueueSnapshot, ctx context.Context) (string, error)
}

type Outbox interface {
	Enqueue(notification notifier.Notification) bool
}

type Thresholds struct {
	Warn    int
	Archive int // reserved: no transition uses it
	Delete  int
}

type EngineConfigs struct {
	Thresholds          Thresholds
	EmailsEnabled       bool
	CollaboratorTimeout time.Duration
}

// Engine decides what happens to every queue of a broker snapshot.
// It is not safe to run two cycles of the same engine concurrently.
type Engine struct {
	directory      Directory
	broker         Broker
	outbox         Outbox
	metricsService metrics.Service
	configs        EngineConfigs
	warned         *WarnedSet
}

func NewEngine(directory Directory, broker Broker, outbox Outbox, metricsService metrics.Service, configs EngineConfigs) *Engine {
	return &Engine{
		directory:      directory,
		broker:         broker,
		outbox:         outbox,
		metricsService: metricsService,
		configs:        configs,
		warned:         NewWarnedSet(),
	}
}

func (e *Engine) Warned() *WarnedSet {
	return e.warned
}

func (e *Engine) Thresholds() Thresholds {
	return e.configs.Thresholds
}

// RunCycle fetches a snapshot of all queues and evaluates them one by one.
// Notifications decided during the pass are handed over to the outbox only after the whole snapshot has been evaluated.
// A snapshot fetch failure is returned as is: retrying is up to the caller.
func (e *Engine) RunCycle(ctx context.Context) (*CycleReport, error) {
	start := time.Now()
	cycleId := uuid.NewString()

	callCtx, cancelFunc := e.callContext(ctx)
	snapshots, err := e.broker.Queues(callCtx)
	cancelFunc()
	if err != nil {
		log.Error().Err(err).Str("cycle_id", cycleId).Msg("failed to fetch queues snapshot")
		e.metricsService.IncCyclesTotal(metrics.FailedResult)
		return nil, err
	}

	report := &CycleReport{
		CycleId:   cycleId,
		Decisions: make([]Decision, 0, len(snapshots)),
	}
	for _, snapshot := range snapshots {
		if err := ctx.Err(); err != nil {
			log.Warn().Str("cycle_id", cycleId).Msg("cycle interrupted, remaining queues are left for the next one")
			e.dispatch(report)
			return report, err
		}
		report.Decisions = append(report.Decisions, e.Evaluate(snapshot, ctx))
	}

	e.dispatch(report)

	e.metricsService.SetWarnedQueues(e.warned.Len())
	e.metricsService.IncCyclesTotal(metrics.SucceededResult)
	e.metricsService.ObserveCycleDuration(time.Since(start).Seconds())

	log.Debug().
		Str("cycle_id", cycleId).
		Int("queues", len(snapshots)).
		Int("notifications", report.Notifications).
		Dur("took", time.Since(start)).
		Msg("cycle done")
	return report, nil
}

// Evaluate runs the decision steps for a single queue: record resolution, deletion check, ownership resolution
// and warning check, in that order. Directory writes and deletions are executed right away,
// notifications are only returned as commands.
func (e *Engine) Evaluate(snapshot broker.QueueSnapshot, ctx context.Context) Decision {
	decision := Decision{
		Queue: snapshot.Name,
		Vhost: snapshot.Vhost,
		Size:  snapshot.MessagesReady,
	}
	e.metricsService.SetQueueDepth(snapshot.Name, snapshot.Vhost, int64(snapshot.MessagesReady))

	record, err := e.resolveRecord(snapshot, &decision, ctx)
	if err != nil {
		decision.Err = err
		return decision
	}

	if snapshot.MessagesReady > e.configs.Thresholds.Delete {
		e.deleteQueue(snapshot, record, &decision, ctx)
		return decision
	}

	if !record.HasOwner() {
		owner, err := e.resolveOwner(snapshot, &decision, ctx)
		if err != nil {
			decision.Err = err
			return decision
		}
		if owner == nil {
			decision.State = Unresolved
			return decision
		}
		record.Owner = owner
	}

	e.checkWarning(snapshot, record, &decision, ctx)
	return decision
}

func (e *Engine) resolveRecord(snapshot broker.QueueSnapshot, decision *Decision, ctx context.Context) (*db.QueueRecord, error) {
	callCtx, cancelFunc := e.callContext(ctx)
	defer cancelFunc()

	record, err := e.directory.GetQueue(snapshot.Name, callCtx)
	if err != nil {
		log.Error().Err(err).Str("queue", snapshot.Name).Msg("failed to look up queue record, skipping the queue")
		e.metricsService.IncDirectoryErrorsTotal()
		return nil, err
	}
	if record != nil {
		return record, nil
	}

	log.Warn().Str("queue", snapshot.Name).Str("vhost", snapshot.Vhost).Msg("new queue encountered, adding it to the database")
	record, err = e.directory.CreateQueue(&db.NewQueue{
		Name:      snapshot.Name,
		Vhost:     snapshot.Vhost,
		CreatedAt: time.Now().UnixMilli(),
	}, callCtx)
	if err != nil {
		log.Error().Err(err).Str("queue", snapshot.Name).Msg("failed to create queue record, skipping the queue")
		e.metricsService.IncDirectoryErrorsTotal()
		return nil, err
	}
	e.metricsService.IncQueuesCreatedTotal()
	decision.Commands = append(decision.Commands, Command{
		Type:  CreateRecordCommand,
		Queue: snapshot.Name,
		Vhost: snapshot.Vhost,
	})
	return record, nil
}

func (e *Engine) deleteQueue(snapshot broker.QueueSnapshot, record *db.QueueRecord, decision *Decision, ctx context.Context) {
	log.Warn().
		Str("queue", snapshot.Name).
		Str("vhost", snapshot.Vhost).
		Int("size", snapshot.MessagesReady).
		Int("delete_threshold", e.configs.Thresholds.Delete).
		Msg("queue is going to be deleted")

	decision.Commands = append(decision.Commands, Command{
		Type:  DeleteCommand,
		Queue: snapshot.Name,
		Vhost: snapshot.Vhost,
	})

	callCtx, cancelFunc := e.callContext(ctx)
	err := e.broker.DeleteQueue(snapshot.Vhost, snapshot.Name, callCtx)
	cancelFunc()
	if err != nil {
		// still oversized on the broker: the next cycle will try again
		log.Error().Err(err).Str("queue", snapshot.Name).Msg("failed to delete queue")
		e.metricsService.IncQueuesDeletedTotal(metrics.FailedResult)
		decision.Err = err
		decision.State = e.stateOf(record)
		return
	}

	e.metricsService.IncQueuesDeletedTotal(metrics.SucceededResult)
	e.metricsService.DeleteQueueDepth(snapshot.Name, snapshot.Vhost)
	if e.warned.Remove(snapshot.Name) {
		log.Info().Str("queue", snapshot.Name).Msg("deleted queue removed from the warned ones")
	}
	decision.State = Deleted

	if record.HasOwner() && e.configs.EmailsEnabled {
		exchange := e.queueExchange(snapshot, ctx)
		decision.addNotification(notifier.NewDeletionNotification(record.Owner.Email, snapshot.Name, exchange), record.Owner.Username)
	}
}

// resolveOwner returns nil without an error if the queue can't be attributed to a registered user in this cycle.
func (e *Engine) resolveOwner(snapshot broker.QueueSnapshot, decision *Decision, ctx context.Context) (*db.User, error) {
	if snapshot.Consumers == 0 {
		log.Debug().Str("queue", snapshot.Name).Msg("queue skipped: no owner, no current consumer")
		return nil, nil
	}

	callCtx, cancelFunc := e.callContext(ctx)
	defer cancelFunc()

	username, err := e.broker.ConsumerIdentity(snapshot, callCtx)
	if err != nil {
		if errors.Is(err, broker.ErrNoConsumer) {
			log.Debug().Str("queue", snapshot.Name).Msg("queue skipped: consumer is gone")
		} else {
			log.Warn().Err(err).Str("queue", snapshot.Name).Msg("failed to resolve queue consumer, skipping the queue")
		}
		return nil, nil
	}

	user, err := e.directory.GetUser(username, callCtx)
	if err != nil {
		log.Error().Err(err).Str("queue", snapshot.Name).Str("username", username).Msg("failed to look up user, skipping the queue")
		e.metricsService.IncDirectoryErrorsTotal()
		return nil, err
	}
	if user == nil {
		log.Warn().Str("queue", snapshot.Name).Str("username", username).Msg("queue owner is not registered, skipping the queue")
		return nil, nil
	}

	if err := e.directory.UpdateQueueOwner(snapshot.Name, user.Username, callCtx); err != nil {
		log.Error().Err(err).Str("queue", snapshot.Name).Str("owner", user.Username).Msg("failed to assign queue owner, skipping the queue")
		e.metricsService.IncDirectoryErrorsTotal()
		return nil, err
	}

	log.Warn().Str("queue", snapshot.Name).Str("owner", user.Username).Msg("queue assigned to user")
	e.metricsService.IncOwnersAssignedTotal()
	decision.Commands = append(decision.Commands, Command{
		Type:  AssignOwnerCommand,
		Queue: snapshot.Name,
		Vhost: snapshot.Vhost,
		Owner: user.Username,
	})
	return user, nil
}

func (e *Engine) checkWarning(snapshot broker.QueueSnapshot, record *db.QueueRecord, decision *Decision, ctx context.Context) {
	if snapshot.MessagesReady <= e.configs.Thresholds.Warn {
		if e.warned.Remove(snapshot.Name) {
			log.Info().Str("queue", snapshot.Name).Int("size", snapshot.MessagesReady).Msg("queue was in the warning zone but is OK now")
		}
		decision.State = OwnedNormal
		return
	}

	decision.State = OwnedWarned
	if !e.warned.Add(snapshot.Name) {
		return
	}

	log.Warn().
		Str("queue", snapshot.Name).
		Str("owner", record.Owner.Username).
		Int("size", snapshot.MessagesReady).
		Int("warn_threshold", e.configs.Thresholds.Warn).
		Msg("queue crossed the warn threshold")
	e.metricsService.IncWarningsTotal()

	if e.configs.EmailsEnabled {
		exchange := e.queueExchange(snapshot, ctx)
		decision.addNotification(notifier.NewWarningNotification(record.Owner.Email, snapshot.Name, exchange), record.Owner.Username)
	}
}

// queueExchange is best effort: an empty string means the notification mentions an unknown exchange.
func (e *Engine) queueExchange(snapshot broker.QueueSnapshot, ctx context.Context) string {
	callCtx, cancelFunc := e.callContext(ctx)
	defer cancelFunc()

	exchange, err := e.broker.QueueExchange(snapshot.Vhost, snapshot.Name, callCtx)
	if err != nil {
		log.Warn().Err(err).Str("queue", snapshot.Name).Msg("failed to look up queue exchange")
		return ""
	}
	return exchange
}

func (e *Engine) dispatch(report *CycleReport) {
	for _, decision := range report.Decisions {
		for _, cmd := range decision.Commands {
			if cmd.Type != NotifyCommand {
				continue
			}
			if e.outbox.Enqueue(cmd.Notification) {
				report.Notifications++
			}
		}
	}
}

func (e *Engine) stateOf(record *db.QueueRecord) State {
	switch {
	case !record.HasOwner():
		return Unresolved
	case e.warned.Contains(record.Name):
		return OwnedWarned
	default:
		return OwnedNormal
	}
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.configs.CollaboratorTimeout)
}
