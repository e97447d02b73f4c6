package guard

import (
	"context"
	"sync"
	"time"

	"github.com/n0rdy/guardian/guardian"

	"github.com/rs/zerolog/log"
)

type Cycler interface {
	RunCycle(ctx context.Context) (*guardian.CycleReport, error)
}

// GuardJob runs one guardian cycle per tick. Ticks that fire while a cycle is still running are dropped by the ticker,
// so there is never more than one cycle in flight.
type GuardJob struct {
	cycler     Cycler
	ticker     *time.Ticker
	done       chan struct{}
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

func NewGuardJob(cycler Cycler, interval time.Duration) *GuardJob {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	ctx, cancelFunc := context.WithCancel(context.Background())

	j := &GuardJob{
		cycler:     cycler,
		ticker:     ticker,
		done:       done,
		cancelFunc: cancelFunc,
	}

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		for {
			select {
			case <-ticker.C:
				j.RunOnce(ctx)
			case <-done:
				return
			}
		}
	}()

	return j
}

// RunOnce runs a single cycle. A failed snapshot fetch is only logged: the next tick tries again, without any backoff.
func (j *GuardJob) RunOnce(ctx context.Context) {
	report, err := j.cycler.RunCycle(ctx)
	if err != nil {
		log.Error().Err(err).Msg("guardian cycle failed")
		return
	}

	failed := 0
	for _, d := range report.Decisions {
		if d.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		log.Warn().Str("cycle_id", report.CycleId).Int("failed_queues", failed).Msg("some queues could not be evaluated, they will be retried next cycle")
	}
}

func (j *GuardJob) Close() error {
	j.closeOnce.Do(func() {
		j.ticker.Stop()
		j.cancelFunc()
		close(j.done)
	})
	j.wg.Wait()
	return nil
}
