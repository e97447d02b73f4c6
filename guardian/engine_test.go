package guardian

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/n0rdy/guardian/broker"
	"github.com/n0rdy/guardian/common"
	"github.com/n0rdy/guardian/db"
	"github.com/n0rdy/guardian/metrics"
	"github.com/n0rdy/guardian/notifier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	queues      map[string]*db.QueueRecord
	users       map[string]*db.User
	createCalls int
	createErrs  map[string]error
	updateErr   error
}

func newFakeDirectory(users ...db.User) *fakeDirectory {
	fd := &fakeDirectory{
		queues:     make(map[string]*db.QueueRecord),
		users:      make(map[string]*db.User),
		createErrs: make(map[string]error),
	}
	for _, u := range users {
		user := u
		fd.users[u.Username] = &user
	}
	return fd
}

func (fd *fakeDirectory) GetQueue(name string, ctx context.Context) (*db.QueueRecord, error) {
	record, ok := fd.queues[name]
	if !ok {
		return nil, nil
	}
	cp := *record
	return &cp, nil
}

func (fd *fakeDirectory) CreateQueue(newQueue *db.NewQueue, ctx context.Context) (*db.QueueRecord, error) {
	fd.createCalls++
	if err := fd.createErrs[newQueue.Name]; err != nil {
		return nil, err
	}
	if _, ok := fd.queues[newQueue.Name]; !ok {
		fd.queues[newQueue.Name] = &db.QueueRecord{Name: newQueue.Name, Vhost: newQueue.Vhost, CreatedAt: newQueue.CreatedAt}
	}
	return fd.GetQueue(newQueue.Name, ctx)
}

func (fd *fakeDirectory) UpdateQueueOwner(name string, owner string, ctx context.Context) error {
	if fd.updateErr != nil {
		return fd.updateErr
	}
	record, ok := fd.queues[name]
	if !ok {
		return common.ErrNotFoundQueue
	}
	record.Owner = fd.users[owner]
	return nil
}

func (fd *fakeDirectory) GetUser(username string, ctx context.Context) (*db.User, error) {
	return fd.users[username], nil
}

type fakeBroker struct {
	snapshots       []broker.QueueSnapshot
	snapshotErr     error
	deleted         []string
	deleteErrs      map[string]error
	exchanges       map[string]string
	consumers       map[string]string
	identityCalls   int
	identityErr     error
	exchangeFailure bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		deleteErrs: make(map[string]error),
		exchanges:  make(map[string]string),
		consumers:  make(map[string]string),
	}
}

func (fb *fakeBroker) Queues(ctx context.Context) ([]broker.QueueSnapshot, error) {
	return fb.snapshots, fb.snapshotErr
}

func (fb *fakeBroker) DeleteQueue(vhost string, name string, ctx context.Context) error {
	if err := fb.deleteErrs[name]; err != nil {
		return err
	}
	fb.deleted = append(fb.deleted, vhost+"/"+name)
	return nil
}

func (fb *fakeBroker) QueueExchange(vhost string, name string, ctx context.Context) (string, error) {
	if fb.exchangeFailure {
		return "", errors.New("management api is down")
	}
	return fb.exchanges[name], nil
}

func (fb *fakeBroker) ConsumerIdentity(snapshot broker.QueueSnapshot, ctx context.Context) (string, error) {
	fb.identityCalls++
	if fb.identityErr != nil {
		return "", fb.identityErr
	}
	username, ok := fb.consumers[snapshot.Name]
	if !ok {
		return "", broker.ErrNoConsumer
	}
	return username, nil
}

type fakeOutbox struct {
	notifications []notifier.Notification
}

func (fo *fakeOutbox) Enqueue(notification notifier.Notification) bool {
	fo.notifications = append(fo.notifications, notification)
	return true
}

type engineFixture struct {
	directory *fakeDirectory
	broker    *fakeBroker
	outbox    *fakeOutbox
	engine    *Engine
}

var (
	userOne = db.User{Username: "U1", Email: "u1@example.com", CreatedAt: 1}
)

func newFixture(emailsEnabled bool, users ...db.User) *engineFixture {
	f := &engineFixture{
		directory: newFakeDirectory(users...),
		broker:    newFakeBroker(),
		outbox:    &fakeOutbox{},
	}
	f.engine = NewEngine(f.directory, f.broker, f.outbox, metrics.NewMetricsService(false, nil), EngineConfigs{
		Thresholds:          Thresholds{Warn: 2, Archive: 15, Delete: 20},
		EmailsEnabled:       emailsEnabled,
		CollaboratorTimeout: time.Second,
	})
	return f
}

func (f *engineFixture) ownQueue(name string, user db.User) {
	u := user
	f.directory.queues[name] = &db.QueueRecord{Name: name, Vhost: "/", Owner: &u}
}

func (f *engineFixture) cycle(t *testing.T, snapshots ...broker.QueueSnapshot) *CycleReport {
	t.Helper()
	f.broker.snapshots = snapshots
	before := len(f.outbox.notifications)

	report, err := f.engine.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Decisions, len(snapshots))
	assert.Equal(t, len(f.outbox.notifications)-before, report.Notifications)
	return report
}

func queue(name string, size int, consumers int) broker.QueueSnapshot {
	return broker.QueueSnapshot{Name: name, Vhost: "/", MessagesReady: size, Consumers: consumers}
}

func TestOwnedQueueLifecycle(t *testing.T) {
	f := newFixture(true, userOne)
	f.ownQueue("q", userOne)

	// cycle 1: crosses the warn threshold
	report := f.cycle(t, queue("q", 3, 1))
	assert.Equal(t, OwnedWarned, report.Decisions[0].State)
	assert.True(t, f.engine.Warned().Contains("q"))
	require.Len(t, f.outbox.notifications, 1)
	assert.Equal(t, metrics.WarningNotification, f.outbox.notifications[0].Kind)
	assert.Equal(t, userOne.Email, f.outbox.notifications[0].To)

	// cycle 2: still above, no new warning
	report = f.cycle(t, queue("q", 3, 1))
	assert.Equal(t, OwnedWarned, report.Decisions[0].State)
	assert.Equal(t, 0, report.Notifications)

	// cycle 3: silent recovery
	report = f.cycle(t, queue("q", 1, 1))
	assert.Equal(t, OwnedNormal, report.Decisions[0].State)
	assert.False(t, f.engine.Warned().Contains("q"))
	assert.Equal(t, 0, report.Notifications)

	// cycle 4: deletion, no warn processing
	report = f.cycle(t, queue("q", 25, 1))
	decision := report.Decisions[0]
	assert.Equal(t, Deleted, decision.State)
	assert.Len(t, decision.CommandsOf(DeleteCommand), 1)
	assert.Empty(t, decision.CommandsOf(AssignOwnerCommand))
	assert.Equal(t, []string{"//q"}, f.broker.deleted)
	require.Equal(t, 1, report.Notifications)
	assert.Equal(t, metrics.DeletionNotification, f.outbox.notifications[1].Kind)
	assert.False(t, f.engine.Warned().Contains("q"))
}

func TestWarningAgainAfterRecovery(t *testing.T) {
	f := newFixture(true, userOne)
	f.ownQueue("q", userOne)

	f.cycle(t, queue("q", 5, 1))
	f.cycle(t, queue("q", 10, 1))
	f.cycle(t, queue("q", 2, 1))
	report := f.cycle(t, queue("q", 3, 1))

	assert.Equal(t, 1, report.Notifications)
	assert.Len(t, f.outbox.notifications, 2)
}

func TestNewQueueCreatedOnce(t *testing.T) {
	f := newFixture(true, userOne)

	report := f.cycle(t, queue("foo", 1, 0))
	assert.Equal(t, Unresolved, report.Decisions[0].State)
	assert.Len(t, report.Decisions[0].CommandsOf(CreateRecordCommand), 1)

	report = f.cycle(t, queue("foo", 1, 0))
	assert.Equal(t, Unresolved, report.Decisions[0].State)
	assert.Empty(t, report.Decisions[0].CommandsOf(CreateRecordCommand))

	assert.Equal(t, 1, f.directory.createCalls)
	assert.Equal(t, "/", f.directory.queues["foo"].Vhost)
}

func TestNoConsumerSkipsOwnershipResolution(t *testing.T) {
	f := newFixture(true, userOne)
	f.broker.consumers["foo"] = userOne.Username

	report := f.cycle(t, queue("foo", 10, 0))

	assert.Equal(t, Unresolved, report.Decisions[0].State)
	assert.Equal(t, 0, f.broker.identityCalls)
	assert.Empty(t, f.outbox.notifications)
	assert.False(t, f.engine.Warned().Contains("foo"))
}

func TestUnknownConsumerLeavesQueueOwnerless(t *testing.T) {
	f := newFixture(true, userOne)
	f.broker.consumers["foo"] = "stranger"

	report := f.cycle(t, queue("foo", 10, 1))

	assert.Equal(t, Unresolved, report.Decisions[0].State)
	assert.NoError(t, report.Decisions[0].Err)
	assert.Equal(t, 1, f.broker.identityCalls)
	assert.Nil(t, f.directory.queues["foo"].Owner)
	assert.False(t, f.engine.Warned().Contains("foo"))
	assert.Empty(t, f.outbox.notifications)
}

func TestConsumerLookupFailureLeavesQueueOwnerless(t *testing.T) {
	f := newFixture(true, userOne)
	f.broker.consumers["foo"] = userOne.Username
	f.broker.identityErr = errors.New("management api is down")

	report := f.cycle(t, queue("foo", 10, 1))

	decision := report.Decisions[0]
	assert.Equal(t, Unresolved, decision.State)
	assert.NoError(t, decision.Err)
	assert.Empty(t, decision.CommandsOf(AssignOwnerCommand))
	assert.Nil(t, f.directory.queues["foo"].Owner)
	assert.False(t, f.engine.Warned().Contains("foo"))
	assert.Empty(t, f.outbox.notifications)

	// resolved once the management API answers again
	f.broker.identityErr = nil
	report = f.cycle(t, queue("foo", 10, 1))
	assert.Equal(t, OwnedWarned, report.Decisions[0].State)
	assert.Len(t, report.Decisions[0].CommandsOf(AssignOwnerCommand), 1)
}

func TestOwnershipResolvedAndWarnedInSameCycle(t *testing.T) {
	f := newFixture(true, userOne)
	f.broker.consumers["foo"] = userOne.Username
	f.broker.exchanges["foo"] = "exchange/builds"

	report := f.cycle(t, queue("foo", 10, 1))
	decision := report.Decisions[0]

	assert.Equal(t, OwnedWarned, decision.State)
	assert.Equal(t, []CommandType{CreateRecordCommand, AssignOwnerCommand, NotifyCommand}, commandTypes(decision))
	assert.Equal(t, userOne.Username, f.directory.queues["foo"].Owner.Username)
	require.Len(t, f.outbox.notifications, 1)
	assert.Contains(t, f.outbox.notifications[0].Body, "exchange/builds")

	// owner is known from now on, the consumer is not asked again
	f.cycle(t, queue("foo", 1, 1))
	assert.Equal(t, 1, f.broker.identityCalls)
}

func TestOwnershipResolvedBelowWarnThreshold(t *testing.T) {
	f := newFixture(true, userOne)
	f.broker.consumers["foo"] = userOne.Username

	report := f.cycle(t, queue("foo", 2, 1))

	assert.Equal(t, OwnedNormal, report.Decisions[0].State)
	assert.Empty(t, f.outbox.notifications)
}

func TestDeletionIndependentOfState(t *testing.T) {
	tests := []struct {
		name              string
		owned             bool
		warned            bool
		emailsEnabled     bool
		wantNotifications int
	}{
		{name: "ownerless", owned: false, emailsEnabled: true, wantNotifications: 0},
		{name: "owned", owned: true, emailsEnabled: true, wantNotifications: 1},
		{name: "owned and warned", owned: true, warned: true, emailsEnabled: true, wantNotifications: 1},
		{name: "owned, emails disabled", owned: true, emailsEnabled: false, wantNotifications: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.emailsEnabled, userOne)
			if tt.owned {
				f.ownQueue("big", userOne)
			}
			if tt.warned {
				f.engine.Warned().Add("big")
			}

			report := f.cycle(t, queue("big", 21, 0))
			decision := report.Decisions[0]

			assert.Equal(t, Deleted, decision.State)
			assert.Len(t, decision.CommandsOf(DeleteCommand), 1)
			assert.Equal(t, []string{"//big"}, f.broker.deleted)
			assert.Len(t, f.outbox.notifications, tt.wantNotifications)
			assert.False(t, f.engine.Warned().Contains("big"))
			assert.Equal(t, 0, f.broker.identityCalls)
		})
	}
}

func TestDeletionNotificationWithUnknownExchange(t *testing.T) {
	f := newFixture(true, userOne)
	f.ownQueue("big", userOne)
	f.broker.exchangeFailure = true

	f.cycle(t, queue("big", 100, 1))

	require.Len(t, f.outbox.notifications, 1)
	assert.Contains(t, f.outbox.notifications[0].Body, common.UnknownExchange)
}

func TestDeletionFailureIsRetriedNextCycle(t *testing.T) {
	f := newFixture(true, userOne)
	f.ownQueue("big", userOne)
	f.engine.Warned().Add("big")
	f.broker.deleteErrs["big"] = errors.New("broker said no")

	report := f.cycle(t, queue("big", 30, 1))
	decision := report.Decisions[0]

	assert.Error(t, decision.Err)
	assert.Equal(t, OwnedWarned, decision.State)
	assert.True(t, f.engine.Warned().Contains("big"))
	assert.Empty(t, f.outbox.notifications)

	delete(f.broker.deleteErrs, "big")
	report = f.cycle(t, queue("big", 30, 1))

	assert.Equal(t, Deleted, report.Decisions[0].State)
	assert.Equal(t, []string{"//big"}, f.broker.deleted)
	assert.Len(t, f.outbox.notifications, 1)
}

func TestDirectoryFailureIsIsolatedToTheQueue(t *testing.T) {
	f := newFixture(true, userOne)
	f.ownQueue("ok", userOne)
	f.directory.createErrs["broken"] = common.ErrInternal

	report := f.cycle(t, queue("broken", 5, 1), queue("ok", 5, 1))

	assert.ErrorIs(t, report.Decisions[0].Err, common.ErrInternal)
	assert.Equal(t, Unresolved, report.Decisions[0].State)
	assert.Empty(t, report.Decisions[0].Commands)
	assert.NotContains(t, f.directory.queues, "broken")
	assert.NoError(t, report.Decisions[1].Err)
	assert.Equal(t, OwnedWarned, report.Decisions[1].State)
	assert.Len(t, f.outbox.notifications, 1)
}

func TestOwnerUpdateFailure(t *testing.T) {
	f := newFixture(true, userOne)
	f.broker.consumers["foo"] = userOne.Username
	f.directory.updateErr = common.ErrInternal

	report := f.cycle(t, queue("foo", 10, 1))

	assert.ErrorIs(t, report.Decisions[0].Err, common.ErrInternal)
	assert.Equal(t, Unresolved, report.Decisions[0].State)
	assert.False(t, f.engine.Warned().Contains("foo"))
	assert.Empty(t, f.outbox.notifications)
}

func TestSnapshotFailure(t *testing.T) {
	f := newFixture(true, userOne)
	f.broker.snapshotErr = errors.New("connection refused")

	report, err := f.engine.RunCycle(context.Background())
	assert.Error(t, err)
	assert.Nil(t, report)
}

func TestEmailsDisabledStillTracksWarnings(t *testing.T) {
	f := newFixture(false, userOne)
	f.ownQueue("q", userOne)

	report := f.cycle(t, queue("q", 3, 1))

	assert.Equal(t, OwnedWarned, report.Decisions[0].State)
	assert.True(t, f.engine.Warned().Contains("q"))
	assert.Empty(t, f.outbox.notifications)
}

func TestNotificationsAreDispatchedAfterThePass(t *testing.T) {
	f := newFixture(true, userOne)
	f.ownQueue("a", userOne)
	f.ownQueue("b", userOne)
	f.ownQueue("c", userOne)

	f.cycle(t, queue("a", 3, 1), queue("b", 50, 1), queue("c", 3, 1))

	require.Len(t, f.outbox.notifications, 3)
	assert.Equal(t, "a", f.outbox.notifications[0].Queue)
	assert.Equal(t, "b", f.outbox.notifications[1].Queue)
	assert.Equal(t, metrics.DeletionNotification, f.outbox.notifications[1].Kind)
	assert.Equal(t, "c", f.outbox.notifications[2].Queue)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	snapshots := []broker.QueueSnapshot{
		queue("new", 1, 0),
		queue("owned", 4, 1),
		queue("attributed", 5, 2),
		queue("stranger", 5, 1),
		queue("big", 99, 1),
	}

	run := func() []Decision {
		f := newFixture(true, userOne)
		f.ownQueue("owned", userOne)
		f.ownQueue("big", userOne)
		f.broker.consumers["attributed"] = userOne.Username
		f.broker.consumers["stranger"] = "nobody"
		return f.cycle(t, snapshots...).Decisions
	}

	assert.Equal(t, run(), run())
}

func TestArchiveThresholdIsInert(t *testing.T) {
	f := newFixture(true, userOne)
	f.ownQueue("q", userOne)

	report := f.cycle(t, queue("q", 16, 1))

	assert.Equal(t, OwnedWarned, report.Decisions[0].State)
	assert.Equal(t, []CommandType{NotifyCommand}, commandTypes(report.Decisions[0]))
}

func TestCancelledCycle(t *testing.T) {
	f := newFixture(true, userOne)
	f.broker.snapshots = []broker.QueueSnapshot{queue("a", 1, 0)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.directory.createCalls)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unresolved", Unresolved.String())
	assert.Equal(t, "owned-normal", OwnedNormal.String())
	assert.Equal(t, "owned-warned", OwnedWarned.String())
	assert.Equal(t, "deleted", Deleted.String())
}

func commandTypes(decision Decision) []CommandType {
	var types []CommandType
	for _, cmd := range decision.Commands {
		types = append(types, cmd.Type)
	}
	return types
}
