package guardian

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/n0rdy/guardian/broker"
	"github.com/n0rdy/guardian/db"
	"github.com/n0rdy/guardian/metrics"
)

const benchmarkQueues = 1000

func benchmarkSnapshot() []broker.QueueSnapshot {
	snapshots := make([]broker.QueueSnapshot, 0, benchmarkQueues)
	for i := 0; i < benchmarkQueues; i++ {
		// a mix of idle, warned and consumed queues, nothing gets deleted so every cycle sees the same snapshot
		snapshots = append(snapshots, queue(fmt.Sprintf("queue-%04d", i), i%10, i%2))
	}
	return snapshots
}

func reportCycles(b *testing.B, name string, start time.Time) {
	duration := time.Since(start)
	queuesPerSec := float64(b.N*benchmarkQueues) / duration.Seconds()

	fmt.Printf("\n=== %s ===\n", name)
	fmt.Printf("Cycles: %d of %d queues\n", b.N, benchmarkQueues)
	fmt.Printf("Duration: %v\n", duration)
	fmt.Printf("Throughput: %.2f queues/sec\n", queuesPerSec)
	fmt.Printf("Avg Cycle: %v\n", duration/time.Duration(b.N))
}

// BenchmarkCycleInMemory measures the decision logic alone
func BenchmarkCycleInMemory(b *testing.B) {
	f := newFixture(true, userOne)
	f.broker.snapshots = benchmarkSnapshot()
	for _, s := range f.broker.snapshots {
		if s.Consumers > 0 {
			f.broker.consumers[s.Name] = userOne.Username
		}
	}

	b.ResetTimer()
	start := time.Now()

	for i := 0; i < b.N; i++ {
		if _, err := f.engine.RunCycle(context.Background()); err != nil {
			b.Fatal("Cycle error:", err)
		}
	}

	reportCycles(b, "Cycle with in-memory directory", start)
}

// BenchmarkCycleSQLite measures a cycle against the real SQLite directory
func BenchmarkCycleSQLite(b *testing.B) {
	dbPath := filepath.Join(b.TempDir(), "guardian.db")
	if err := db.RunMigrations(dbPath); err != nil {
		b.Fatal("Failed to run migrations:", err)
	}
	repo, err := db.NewSQLiteRepo(dbPath)
	if err != nil {
		b.Fatal("Failed to open repo:", err)
	}
	defer repo.Close()

	ctx := context.Background()
	if err := repo.InsertUser(&db.NewUser{Username: userOne.Username, Email: userOne.Email, CreatedAt: 1}, ctx); err != nil {
		b.Fatal("Failed to insert user:", err)
	}

	fb := newFakeBroker()
	fb.snapshots = benchmarkSnapshot()
	for _, s := range fb.snapshots {
		if s.Consumers > 0 {
			fb.consumers[s.Name] = userOne.Username
		}
	}

	engine := NewEngine(repo, fb, &fakeOutbox{}, metrics.NewMetricsService(false, nil), EngineConfigs{
		Thresholds:          Thresholds{Warn: 2, Archive: 15, Delete: 20},
		EmailsEnabled:       true,
		CollaboratorTimeout: time.Second,
	})

	// first cycle creates the records, the measured ones only read and refresh owners
	if _, err := engine.RunCycle(ctx); err != nil {
		b.Fatal("Warm-up cycle error:", err)
	}

	b.ResetTimer()
	start := time.Now()

	for i := 0; i < b.N; i++ {
		if _, err := engine.RunCycle(ctx); err != nil {
			b.Fatal("Cycle error:", err)
		}
	}

	reportCycles(b, "Cycle with SQLite directory", start)
}
