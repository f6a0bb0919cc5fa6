package dispatch_test

import (
	"errors"
	"testing"
	"time"

	"civictrack/backend/internal/config"
	"civictrack/backend/internal/dispatch"
	"civictrack/backend/internal/domain"
	"civictrack/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore is a testify mock of the dispatcher's storage surface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) UnrelayedEvents(limit int) ([]models.EventOutbox, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EventOutbox), args.Error(1)
}

func (m *MockStore) MarkEventRelayed(seq int64) error {
	args := m.Called(seq)
	return args.Error(0)
}

func (m *MockStore) CreateNotification(n *models.Notification) error {
	args := m.Called(n)
	return args.Error(0)
}

func (m *MockStore) PruneNotifications(recipientID string, keep int) (int64, error) {
	args := m.Called(recipientID, keep)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) PublishEvent(ev models.StatusEvent) error {
	args := m.Called(ev)
	return args.Error(0)
}

func (m *MockStore) GetUserByID(id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockTelegram struct {
	mock.Mock
}

func (m *MockTelegram) Push(chatID int64, text string) error {
	args := m.Called(chatID, text)
	return args.Error(0)
}

func event(kind models.EventKind) models.StatusEvent {
	return models.StatusEvent{
		Kind:           kind,
		ComplaintID:    "c1",
		ComplaintTitle: "Broken streetlight",
		RecipientID:    "alice",
		AuthorityName:  "Road Works",
		OccurredAt:     time.Now(),
	}
}

func outboxRow(seq int64, kind models.EventKind) models.EventOutbox {
	return models.EventOutbox{
		Seq:            seq,
		Kind:           kind,
		ComplaintID:    "c1",
		ComplaintTitle: "Broken streetlight",
		RecipientID:    "alice",
		AuthorityName:  "Road Works",
	}
}

// TestDispatcher_RelaysOutboxInSequenceOrder feeds the full transition
// chain of one complaint through the relay and checks the durable rows
// land in exactly that order, each marked relayed after its write.
func TestDispatcher_RelaysOutboxInSequenceOrder(t *testing.T) {
	store := new(MockStore)
	d := dispatch.NewDispatcher(store, nil)

	batch := []models.EventOutbox{
		outboxRow(1, models.EventAssigned),
		outboxRow(2, models.EventInProgress),
		outboxRow(3, models.EventResolved),
	}
	store.On("UnrelayedEvents", config.EventRelayBatch).Return(batch, nil).Once()

	var persisted []models.EventKind
	store.On("CreateNotification", mock.AnythingOfType("*models.Notification")).
		Run(func(args mock.Arguments) {
			persisted = append(persisted, args.Get(0).(*models.Notification).Kind)
		}).Return(nil)
	store.On("PruneNotifications", "alice", mock.AnythingOfType("int")).Return(int64(0), nil)
	store.On("PublishEvent", mock.AnythingOfType("models.StatusEvent")).Return(nil)
	store.On("MarkEventRelayed", mock.AnythingOfType("int64")).Return(nil)

	assert.Equal(t, 3, d.RunOnce())
	assert.Equal(t, []models.EventKind{models.EventAssigned, models.EventInProgress, models.EventResolved}, persisted)
	store.AssertCalled(t, "MarkEventRelayed", int64(1))
	store.AssertCalled(t, "MarkEventRelayed", int64(3))
}

// TestDispatcher_FailedWriteLeavesEventQueued: an event whose durable
// write fails stays in the outbox; nothing behind it is skipped past it.
func TestDispatcher_FailedWriteLeavesEventQueued(t *testing.T) {
	store := new(MockStore)
	d := dispatch.NewDispatcher(store, nil)

	batch := []models.EventOutbox{
		outboxRow(1, models.EventAssigned),
		outboxRow(2, models.EventInProgress),
	}
	store.On("UnrelayedEvents", config.EventRelayBatch).Return(batch, nil).Once()
	store.On("CreateNotification", mock.AnythingOfType("*models.Notification")).Return(errors.New("db down"))

	assert.Equal(t, 0, d.RunOnce())
	store.AssertNotCalled(t, "MarkEventRelayed", mock.Anything)
}

func TestDispatcher_KickWakesRelay(t *testing.T) {
	store := new(MockStore)
	d := dispatch.NewDispatcher(store, nil)
	store.On("UnrelayedEvents", config.EventRelayBatch).Return([]models.EventOutbox(nil), nil)

	go d.Run()
	d.Kick()
	d.Kick() // kicking an already-awake relay must not block
	time.Sleep(50 * time.Millisecond)

	store.AssertCalled(t, "UnrelayedEvents", config.EventRelayBatch)
}

func TestDispatcher_NotificationAddressesReporter(t *testing.T) {
	store := new(MockStore)
	d := dispatch.NewDispatcher(store, nil)

	var got *models.Notification
	store.On("CreateNotification", mock.AnythingOfType("*models.Notification")).
		Run(func(args mock.Arguments) { got = args.Get(0).(*models.Notification) }).Return(nil)
	store.On("PruneNotifications", "alice", mock.AnythingOfType("int")).Return(int64(0), nil)
	store.On("PublishEvent", mock.AnythingOfType("models.StatusEvent")).Return(nil)

	require.NoError(t, d.Handle(event(models.EventResolved)))

	assert.Equal(t, "alice", got.RecipientID)
	assert.Equal(t, models.EventResolved, got.Kind)
	assert.Equal(t, `Your complaint "Broken streetlight" has been resolved.`, got.Message)
	assert.False(t, got.Read)
	if assert.NotNil(t, got.ComplaintID) {
		assert.Equal(t, "c1", *got.ComplaintID)
	}
}

// TestDispatcher_PushFailureIsNotAnError: the recipient being offline or
// redis being down must not lose the durable copy.
func TestDispatcher_PushFailureIsNotAnError(t *testing.T) {
	store := new(MockStore)
	d := dispatch.NewDispatcher(store, nil)

	store.On("CreateNotification", mock.AnythingOfType("*models.Notification")).Return(nil)
	store.On("PruneNotifications", "alice", mock.AnythingOfType("int")).Return(int64(0), nil)
	store.On("PublishEvent", mock.AnythingOfType("models.StatusEvent")).Return(errors.New("redis down"))

	assert.NoError(t, d.Handle(event(models.EventAssigned)))
	store.AssertCalled(t, "CreateNotification", mock.AnythingOfType("*models.Notification"))
}

func TestDispatcher_TelegramPush(t *testing.T) {
	chatID := int64(42)

	store := new(MockStore)
	tg := new(MockTelegram)
	d := dispatch.NewDispatcher(store, tg)

	store.On("CreateNotification", mock.AnythingOfType("*models.Notification")).Return(nil)
	store.On("PruneNotifications", "alice", mock.AnythingOfType("int")).Return(int64(0), nil)
	store.On("PublishEvent", mock.AnythingOfType("models.StatusEvent")).Return(nil)
	store.On("GetUserByID", "alice").Return(&models.User{ID: "alice", TelegramChatID: &chatID}, nil)
	tg.On("Push", chatID, mock.AnythingOfType("string")).Return(nil)

	require.NoError(t, d.Handle(event(models.EventInProgress)))
	tg.AssertCalled(t, "Push", chatID, `Work on your complaint "Broken streetlight" is now in progress.`)

	// no linked chat: the bridge stays quiet
	store.On("GetUserByID", "bob").Return(&models.User{ID: "bob"}, nil)
	ev := event(models.EventInProgress)
	ev.RecipientID = "bob"
	store.On("PruneNotifications", "bob", mock.AnythingOfType("int")).Return(int64(0), nil)
	require.NoError(t, d.Handle(ev))
	tg.AssertNumberOfCalls(t, "Push", 1)

	// unknown recipient: durable write already happened, push is skipped
	store.On("GetUserByID", "ghost").Return(nil, domain.ErrNotFound)
	ev.RecipientID = "ghost"
	store.On("PruneNotifications", "ghost", mock.AnythingOfType("int")).Return(int64(0), nil)
	require.NoError(t, d.Handle(ev))
	tg.AssertNumberOfCalls(t, "Push", 1)
}

func TestMessageFor(t *testing.T) {
	ev := event(models.EventAssigned)
	assert.Equal(t, `Your complaint "Broken streetlight" has been assigned to Road Works.`, dispatch.MessageFor(ev))

	ev.AuthorityName = ""
	assert.Equal(t, `Your complaint "Broken streetlight" has been assigned to an authority.`, dispatch.MessageFor(ev))
}
