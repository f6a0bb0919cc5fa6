package lifecycle_test

import (
	"sync"
	"testing"
	"time"

	"civictrack/backend/internal/authority"
	"civictrack/backend/internal/domain"
	"civictrack/backend/internal/lifecycle"
	"civictrack/backend/internal/models"
	"civictrack/backend/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore keeps complaints, authorities and the event outbox in maps
// and serializes transactions with a mutex, standing in for the
// postgres row locks.
type fakeStore struct {
	mu          sync.Mutex
	complaints  map[string]*models.Complaint
	authorities map[string]*models.Authority
	events      []models.StatusEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		complaints:  make(map[string]*models.Complaint),
		authorities: make(map[string]*models.Authority),
	}
}

func (f *fakeStore) addAuthority(id, name string) {
	f.authorities[id] = &models.Authority{ID: id, Name: name, Department: models.DepartmentRoads}
}

func (f *fakeStore) removeAuthority(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.authorities, id)
}

// eventLog snapshots the recorded outbox in append order.
func (f *fakeStore) eventLog() []models.StatusEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.StatusEvent, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeStore) eventKinds() []models.EventKind {
	var kinds []models.EventKind
	for _, ev := range f.eventLog() {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func (f *fakeStore) InTx(fn func(storage.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(&fakeTx{s: f})
}

func (f *fakeStore) CreateComplaint(c *models.Complaint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	cp := *c
	f.complaints[c.ID] = &cp
	return nil
}

func (f *fakeStore) GetComplaintByID(id string) (*models.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.complaints[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) UpdatePendingComplaint(id, reporterID string, fields map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.complaints[id]
	if !ok || c.ReporterID != reporterID || c.Status != models.StatusPending {
		return false, nil
	}
	if v, ok := fields["title"]; ok {
		c.Title = v.(string)
	}
	if v, ok := fields["description"]; ok {
		c.Description = v.(string)
	}
	if v, ok := fields["location"]; ok {
		c.Location = v.(string)
	}
	return true, nil
}

func (f *fakeStore) DeletePendingComplaint(id, reporterID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.complaints[id]
	if !ok || c.ReporterID != reporterID || c.Status != models.StatusPending {
		return false, nil
	}
	delete(f.complaints, id)
	return true, nil
}

func (f *fakeStore) GetAuthorityByID(id string) (*models.Authority, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.authorities[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) ActiveComplaintsFor(authorityID string) ([]models.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&fakeTx{s: f}).ActiveComplaintsFor(authorityID)
}

func (f *fakeStore) casLocked(id string, from, to models.ComplaintStatus, authorityID *string) (bool, error) {
	c, ok := f.complaints[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	if authorityID != nil {
		v := *authorityID
		c.AuthorityID = &v
	}
	return true, nil
}

// fakeTx reuses the store maps; the store mutex is already held.
type fakeTx struct {
	s *fakeStore
}

func (t *fakeTx) GetComplaint(id string) (*models.Complaint, error) {
	c, ok := t.s.complaints[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (t *fakeTx) LockAuthority(id string) (*models.Authority, error) {
	a, ok := t.s.authorities[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (t *fakeTx) ActiveComplaintsFor(authorityID string) ([]models.Complaint, error) {
	var out []models.Complaint
	for _, c := range t.s.complaints {
		if c.AuthorityID != nil && *c.AuthorityID == authorityID &&
			(c.Status == models.StatusAssigned || c.Status == models.StatusInProgress) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (t *fakeTx) CompareAndSwapStatus(id string, from, to models.ComplaintStatus, authorityID *string) (bool, error) {
	return t.s.casLocked(id, from, to, authorityID)
}

func (t *fakeTx) AppendEvent(ev models.StatusEvent) error {
	t.s.events = append(t.s.events, ev)
	return nil
}

func (t *fakeTx) GetVoteForUpdate(complaintID, voterID string) (*models.Vote, error) {
	return nil, domain.ErrNotFound
}
func (t *fakeTx) CreateVote(v *models.Vote) error                          { return nil }
func (t *fakeTx) SetVotePolarity(complaintID, voterID string, p int) error { return nil }
func (t *fakeTx) DeleteVote(complaintID, voterID string) error             { return nil }
func (t *fakeTx) BumpTallies(complaintID string, up, down int64) error     { return nil }
func (t *fakeTx) TallyOf(complaintID string) (models.Tally, error)         { return models.Tally{}, nil }

func newService(store *fakeStore) *lifecycle.Service {
	return lifecycle.NewService(store, nil)
}

func submitOne(t *testing.T, svc *lifecycle.Service, reporter string) *models.Complaint {
	t.Helper()
	c, err := svc.Submit(reporter, lifecycle.SubmitInput{
		Title:       "Broken streetlight",
		Description: "Dark corner at night",
		Location:    "5th and Main",
		Severity:    models.SeverityMedium,
		Category:    "electricity",
	})
	require.NoError(t, err)
	return c
}

func TestSubmit(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)

	c := submitOne(t, svc, "alice")
	assert.Equal(t, models.StatusPending, c.Status)
	assert.Nil(t, c.AuthorityID)
	assert.Zero(t, c.Upvotes)
	assert.Zero(t, c.Downvotes)
	assert.Empty(t, store.eventLog(), "submission must not notify the reporter")

	_, err := svc.Submit("alice", lifecycle.SubmitInput{Title: "   "})
	assert.ErrorIs(t, err, lifecycle.ErrBadInput)

	_, err = svc.Submit("alice", lifecycle.SubmitInput{
		Title: "t", Description: "d", Location: "l", Category: "c",
		Severity: models.Severity("catastrophic"),
	})
	assert.ErrorIs(t, err, lifecycle.ErrBadInput)
}

func TestEdit_GuardsAndBlankFields(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)
	c := submitOne(t, svc, "alice")

	_, err := svc.Edit(c.ID, "mallory", lifecycle.EditInput{Title: "hijacked"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// blank values are ignored, not applied
	updated, err := svc.Edit(c.ID, "alice", lifecycle.EditInput{Title: "Flickering streetlight", Description: "   "})
	require.NoError(t, err)
	assert.Equal(t, "Flickering streetlight", updated.Title)
	assert.Equal(t, "Dark corner at night", updated.Description)

	// an edit with nothing to change is a no-op, not an error
	updated, err = svc.Edit(c.ID, "alice", lifecycle.EditInput{})
	require.NoError(t, err)
	assert.Equal(t, "Flickering streetlight", updated.Title)

	// once the complaint leaves pending the text is immutable
	store.addAuthority("auth1", "Road Works")
	_, err = svc.Assign(c.ID, "auth1")
	require.NoError(t, err)
	_, err = svc.Edit(c.ID, "alice", lifecycle.EditInput{Title: "too late"})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestWithdraw(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)
	c := submitOne(t, svc, "alice")

	assert.ErrorIs(t, svc.Withdraw(c.ID, "mallory"), domain.ErrForbidden)
	require.NoError(t, svc.Withdraw(c.ID, "alice"))

	_, err := store.GetComplaintByID(c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, svc.Withdraw(c.ID, "alice"), domain.ErrNotFound)
}

func TestAssign_GuardsAndConflicts(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)
	store.addAuthority("auth1", "Road Works")

	c1 := submitOne(t, svc, "alice")
	c2 := submitOne(t, svc, "bob")

	assigned, err := svc.Assign(c1.ID, "auth1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, assigned.Status)
	require.NotNil(t, assigned.AuthorityID)
	assert.Equal(t, "auth1", *assigned.AuthorityID)

	log := store.eventLog()
	require.Len(t, log, 1)
	assert.Equal(t, models.EventAssigned, log[0].Kind)
	assert.Equal(t, "alice", log[0].RecipientID)
	assert.Equal(t, "Road Works", log[0].AuthorityName)

	// the authority is no longer Free, so a second binding must lose
	_, err = svc.Assign(c2.ID, "auth1")
	assert.ErrorIs(t, err, domain.ErrConflict)

	// re-assigning an already assigned complaint is a state error
	_, err = svc.Assign(c1.ID, "auth1")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = svc.Assign("missing", "auth1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Assign(c2.ID, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdvance_GuardsAndOrder(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)
	store.addAuthority("auth1", "Road Works")
	c := submitOne(t, svc, "alice")

	// pending cannot be advanced, not even by its future authority
	_, err := svc.Advance(c.ID, "auth1")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = svc.Assign(c.ID, "auth1")
	require.NoError(t, err)

	// only the bound authority may advance
	store.addAuthority("auth2", "Water Board")
	_, err = svc.Advance(c.ID, "auth2")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	advanced, err := svc.Advance(c.ID, "auth1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, advanced.Status)

	// a failed name lookup degrades the message, never the transition
	store.removeAuthority("auth1")
	advanced, err = svc.Advance(c.ID, "auth1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, advanced.Status)

	// resolved is terminal
	_, err = svc.Advance(c.ID, "auth1")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	kinds := store.eventKinds()
	assert.Equal(t, []models.EventKind{models.EventAssigned, models.EventInProgress, models.EventResolved}, kinds)
	assert.Empty(t, store.eventLog()[2].AuthorityName)
}

// TestAssignmentLifecycleScenario walks an authority through the full
// Free -> Assigned -> Busy -> Free cycle, checking the derived
// availability after every committed transition.
func TestAssignmentLifecycleScenario(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)
	resolver := authority.NewResolver(store)
	store.addAuthority("authX", "Sanitation East")

	availability := func() models.Availability {
		a, err := resolver.Availability("authX")
		require.NoError(t, err)
		return a
	}

	c1 := submitOne(t, svc, "alice")
	c2 := submitOne(t, svc, "bob")
	assert.Equal(t, models.AvailabilityFree, availability())

	_, err := svc.Assign(c1.ID, "authX")
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityAssigned, availability())

	_, err = svc.Assign(c2.ID, "authX")
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = svc.Advance(c1.ID, "authX")
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityBusy, availability())

	_, err = svc.Advance(c1.ID, "authX")
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityFree, availability())

	assert.Equal(t, []models.EventKind{models.EventAssigned, models.EventInProgress, models.EventResolved}, store.eventKinds())
}

// laggingStore commits instantly but returns late, like a caller
// goroutine descheduled right after its transaction commits.
type laggingStore struct {
	*fakeStore
	delay time.Duration
}

func (l *laggingStore) InTx(fn func(storage.Tx) error) error {
	err := l.fakeStore.InTx(fn)
	time.Sleep(l.delay)
	return err
}

// TestTransitionEventsRecordCommitOrder: once an assignment commit is
// visible, the bound authority can advance before the assigner's call
// even returns. The recorded events must still be in commit order,
// because each row is written inside the transaction that commits the
// flip, not after it.
func TestTransitionEventsRecordCommitOrder(t *testing.T) {
	store := newFakeStore()
	lagging := &laggingStore{fakeStore: store, delay: 150 * time.Millisecond}
	svc := lifecycle.NewService(lagging, nil)
	store.addAuthority("auth1", "Road Works")
	c := submitOne(t, svc, "alice")

	assignDone := make(chan error, 1)
	go func() {
		_, err := svc.Assign(c.ID, "auth1")
		assignDone <- err
	}()

	// wait until the assignment is committed and visible
	deadline := time.Now().Add(2 * time.Second)
	for {
		cur, err := store.GetComplaintByID(c.ID)
		require.NoError(t, err)
		if cur.Status == models.StatusAssigned {
			break
		}
		require.True(t, time.Now().Before(deadline), "assignment never became visible")
		time.Sleep(5 * time.Millisecond)
	}

	// the assigner is still parked between commit and return; the
	// authority advances against the visible state
	_, err := svc.Advance(c.ID, "auth1")
	require.NoError(t, err)
	require.NoError(t, <-assignDone)

	assert.Equal(t, []models.EventKind{models.EventAssigned, models.EventInProgress}, store.eventKinds())
}
