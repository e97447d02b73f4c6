package maintenance

import (
	"context"
	"time"
)

type Optimizer interface {
	Optimize(ctx context.Context)
}

// DbOptimizationJob keeps the queue and user directory fast by letting SQLite refresh its planner statistics.
type DbOptimizationJob struct {
	ticker *time.Ticker
	done   chan struct{}
}

func NewDbOptimizationJob(optimizer Optimizer, intervalMs int64, maxDurationMs int64) *DbOptimizationJob {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				ctx, cancelFunc := context.WithTimeout(context.Background(), time.Duration(maxDurationMs)*time.Millisecond)
				optimizer.Optimize(ctx)
				cancelFunc()
			case <-done:
				return
			}
		}
	}()

	return &DbOptimizationJob{
		ticker: ticker,
		done:   done,
	}
}

func (j *DbOptimizationJob) Close() error {
	j.ticker.Stop()
	close(j.done)
	return nil
}
