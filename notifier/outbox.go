package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/n0rdy/guardian/metrics"

	"github.com/rs/zerolog/log"
)

// Outbox delivers notifications on its own goroutine, one at a time and in the order they were enqueued,
// so that a slow mail server never stalls a poll cycle.
type Outbox struct {
	sender         Sender
	metricsService metrics.Service
	sendTimeout    time.Duration
	queue          chan Notification
	done           chan struct{}
	closeOnce      sync.Once
	wg             sync.WaitGroup
}

func NewOutbox(sender Sender, metricsService metrics.Service, size int, sendTimeout time.Duration) *Outbox {
	o := &Outbox{
		sender:         sender,
		metricsService: metricsService,
		sendTimeout:    sendTimeout,
		queue:          make(chan Notification, size),
		done:           make(chan struct{}),
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			select {
			case n := <-o.queue:
				o.deliver(n)
			case <-o.done:
				o.drain()
				return
			}
		}
	}()

	return o
}

// Enqueue never blocks: if the outbox is full or closed, the notification is dropped and false is returned.
func (o *Outbox) Enqueue(notification Notification) bool {
	select {
	case <-o.done:
		log.Warn().Str("queue", notification.Queue).Str("kind", notification.Kind).Msg("outbox is closed, notification dropped")
		o.metricsService.IncNotificationsDroppedTotal()
		return false
	default:
	}

	select {
	case o.queue <- notification:
		return true
	default:
		log.Warn().Str("queue", notification.Queue).Str("kind", notification.Kind).Msg("outbox is full, notification dropped")
		o.metricsService.IncNotificationsDroppedTotal()
		return false
	}
}

// Close stops accepting notifications and waits for the already enqueued ones to be delivered.
func (o *Outbox) Close() error {
	o.closeOnce.Do(func() {
		close(o.done)
	})
	o.wg.Wait()
	return nil
}

func (o *Outbox) drain() {
	for {
		select {
		case n := <-o.queue:
			o.deliver(n)
		default:
			return
		}
	}
}

func (o *Outbox) deliver(notification Notification) {
	ctx, cancelFunc := context.WithTimeout(context.Background(), o.sendTimeout)
	defer cancelFunc()

	err := o.sender.Send(notification, ctx)
	if err != nil {
		log.Error().Err(err).
			Str("queue", notification.Queue).
			Str("kind", notification.Kind).
			Str("to", notification.To).
			Msg("failed to send notification")
		o.metricsService.IncNotificationsTotal(notification.Kind, metrics.FailedResult)
		return
	}

	log.Info().
		Str("queue", notification.Queue).
		Str("kind", notification.Kind).
		Str("to", notification.To).
		Msg("notification sent")
	o.metricsService.IncNotificationsTotal(notification.Kind, metrics.SucceededResult)
}
