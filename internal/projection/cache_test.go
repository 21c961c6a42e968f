package projection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"impriartex-service/internal/changefeed"
	"impriartex-service/internal/domain/customer"
	"impriartex-service/internal/domain/equipment"
	"impriartex-service/internal/domain/identity"
	"impriartex-service/internal/domain/technician"
	"impriartex-service/internal/domain/ticket"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLoader struct {
	mu      sync.Mutex
	tickets []ticket.View
	err     error
	gate    chan struct{}
	calls   atomic.Int32
	filters []ticket.Filter
}

func (f *fakeLoader) ListCustomers(context.Context) ([]customer.Customer, error) {
	return []customer.Customer{{ID: uuid.New(), Name: "City Hall"}}, nil
}

func (f *fakeLoader) ListEquipment(context.Context) ([]equipment.View, error) {
	return []equipment.View{
		{Equipment: equipment.Equipment{ID: uuid.New(), Serial: "SN-1"}},
		{Equipment: equipment.Equipment{ID: uuid.New(), Serial: "SN-2"}},
	}, nil
}

func (f *fakeLoader) ListTechnicians(context.Context) ([]technician.Profile, error) {
	return []technician.Profile{{ID: uuid.New(), FullName: "Ana Tech", Role: technician.RoleTag}}, nil
}

func (f *fakeLoader) ListTickets(ctx context.Context, filter ticket.Filter) ([]ticket.View, error) {
	f.calls.Add(1)
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]ticket.View, 0, len(f.tickets))
	for _, t := range f.tickets {
		if filter.TechnicianID != nil && !t.AssignedTo(*filter.TechnicianID) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeLoader) setTickets(tickets ...ticket.View) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets = tickets
}

func (f *fakeLoader) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func view(status ticket.Status, tech uuid.UUID) ticket.View {
	return ticket.View{Ticket: ticket.Ticket{
		ID:           uuid.New(),
		TechnicianID: &tech,
		Status:       status,
		CreatedAt:    time.Now(),
	}}
}

var supervisor = identity.Identity{ID: uuid.New(), Role: identity.RoleSupervisor}

func newTestCache(t *testing.T, actor identity.Identity, loader Loader, broker *changefeed.Broker) (*Cache, chan *Snapshot) {
	t.Helper()
	refreshed := make(chan *Snapshot, 16)
	c := NewCache(actor, loader, broker, zap.NewNop(), Options{
		ReloadTimeout: time.Second,
		OnRefresh:     func(s *Snapshot) { refreshed <- s },
	})
	t.Cleanup(c.Close)
	return c, refreshed
}

func waitRefresh(t *testing.T, ch <-chan *Snapshot) *Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for projection refresh")
		return nil
	}
}

func TestCache_StartLoadsSynchronously(t *testing.T) {
	tech := uuid.New()
	loader := &fakeLoader{}
	loader.setTickets(view(ticket.StatusOpen, tech))
	broker := changefeed.NewBroker()

	c, refreshed := newTestCache(t, supervisor, loader, broker)
	require.NoError(t, c.Start(context.Background()))

	snap, ok := c.Snapshot()
	require.True(t, ok)
	assert.Len(t, snap.Customers, 1)
	assert.Len(t, snap.Equipment, 2)
	assert.Len(t, snap.Technicians, 1)
	assert.Len(t, snap.Tickets, 1)
	assert.Equal(t, 1, broker.Subscribers())

	first := waitRefresh(t, refreshed)
	assert.Len(t, first.Tickets, 1)
}

func TestCache_ReloadsOnAnyWatchedChange(t *testing.T) {
	tech := uuid.New()
	loader := &fakeLoader{}
	broker := changefeed.NewBroker()

	c, refreshed := newTestCache(t, supervisor, loader, broker)
	require.NoError(t, c.Start(context.Background()))
	waitRefresh(t, refreshed)

	for _, table := range WatchedTables {
		loader.setTickets(view(ticket.StatusOpen, tech), view(ticket.StatusCompleted, tech))
		broker.Publish(changefeed.NewEvent(table, changefeed.OpUpdate, ""))

		snap := waitRefresh(t, refreshed)
		assert.Len(t, snap.Tickets, 2, "table %s", table)
	}
}

func TestCache_TechnicianSeesOnlyOwnTickets(t *testing.T) {
	me := identity.Identity{ID: uuid.New(), Role: identity.RoleTechnician}
	other := uuid.New()

	loader := &fakeLoader{}
	loader.setTickets(view(ticket.StatusOpen, me.ID), view(ticket.StatusOpen, other), view(ticket.StatusAssigned, me.ID))
	broker := changefeed.NewBroker()

	c, _ := newTestCache(t, me, loader, broker)
	require.NoError(t, c.Start(context.Background()))

	snap, _ := c.Snapshot()
	require.Len(t, snap.Tickets, 2)
	for _, v := range snap.Tickets {
		assert.True(t, v.AssignedTo(me.ID))
	}

	loader.mu.Lock()
	require.NotEmpty(t, loader.filters)
	require.NotNil(t, loader.filters[0].TechnicianID)
	assert.Equal(t, me.ID, *loader.filters[0].TechnicianID)
	loader.mu.Unlock()
}

func TestCache_FailedReloadKeepsLastKnownGood(t *testing.T) {
	tech := uuid.New()
	loader := &fakeLoader{}
	loader.setTickets(view(ticket.StatusOpen, tech))
	broker := changefeed.NewBroker()

	c, refreshed := newTestCache(t, supervisor, loader, broker)
	require.NoError(t, c.Start(context.Background()))
	waitRefresh(t, refreshed)

	loader.setErr(errors.New("network down"))
	before := loader.calls.Load()
	broker.Publish(changefeed.NewEvent(changefeed.TableTickets, changefeed.OpInsert, ""))

	assert.Eventually(t, func() bool {
		return loader.calls.Load() > before && c.LastError() != nil
	}, 2*time.Second, 10*time.Millisecond)

	snap, ok := c.Snapshot()
	require.True(t, ok)
	assert.Len(t, snap.Tickets, 1)

	// no retry until the next event
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before+1, loader.calls.Load())

	loader.setErr(nil)
	broker.Publish(changefeed.NewEvent(changefeed.TableTickets, changefeed.OpInsert, ""))
	waitRefresh(t, refreshed)
	assert.NoError(t, c.LastError())
}

func TestCache_StartFailureReleasesSubscription(t *testing.T) {
	loader := &fakeLoader{}
	loader.setErr(errors.New("permission denied for table tickets"))
	broker := changefeed.NewBroker()

	c, refreshed := newTestCache(t, supervisor, loader, broker)
	err := c.Start(context.Background())
	assert.Error(t, err)

	_, ok := c.Snapshot()
	assert.False(t, ok)
	assert.Equal(t, 0, broker.Subscribers())
	assert.Empty(t, refreshed)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("cache did not stop")
	}
}

func TestCache_CloseIsIdempotentAndStopsReloads(t *testing.T) {
	loader := &fakeLoader{}
	broker := changefeed.NewBroker()

	c, refreshed := newTestCache(t, supervisor, loader, broker)
	require.NoError(t, c.Start(context.Background()))
	waitRefresh(t, refreshed)

	c.Close()
	c.Close()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("cache did not stop")
	}
	assert.Equal(t, 0, broker.Subscribers())

	calls := loader.calls.Load()
	broker.Publish(changefeed.NewEvent(changefeed.TableTickets, changefeed.OpInsert, ""))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, loader.calls.Load())

	assert.ErrorIs(t, c.Start(context.Background()), ErrClosed)
}

func TestCache_EventsDuringReloadCoalesce(t *testing.T) {
	loader := &fakeLoader{}
	broker := changefeed.NewBroker()

	c, refreshed := newTestCache(t, supervisor, loader, broker)
	require.NoError(t, c.Start(context.Background()))
	waitRefresh(t, refreshed)

	gate := make(chan struct{})
	loader.mu.Lock()
	loader.gate = gate
	loader.mu.Unlock()
	before := loader.calls.Load()

	broker.Publish(changefeed.NewEvent(changefeed.TableTickets, changefeed.OpInsert, ""))
	assert.Eventually(t, func() bool { return loader.calls.Load() == before+1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < 10; i++ {
		broker.Publish(changefeed.NewEvent(changefeed.TableEquipment, changefeed.OpUpdate, ""))
	}
	close(gate)

	waitRefresh(t, refreshed)
	waitRefresh(t, refreshed)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before+2, loader.calls.Load())
}

func TestSnapshot_Summary(t *testing.T) {
	tech := uuid.New()
	snap := &Snapshot{
		Equipment: make([]equipment.View, 3),
		Tickets: []ticket.View{
			view(ticket.StatusOpen, tech),
			view(ticket.StatusOpen, tech),
			view(ticket.StatusAssigned, tech),
			view(ticket.StatusCompleted, tech),
		},
	}

	assert.Equal(t, Summary{Open: 2, InAttention: 1, Completed: 1, Tickets: 4, Fleet: 3}, snap.Summary())
}

func TestSnapshot_CloneIsIndependent(t *testing.T) {
	tech := uuid.New()
	snap := &Snapshot{Tickets: []ticket.View{view(ticket.StatusOpen, tech)}}

	cp := snap.Clone()
	cp.Tickets[0].Status = ticket.StatusCompleted
	cp.Tickets = append(cp.Tickets, view(ticket.StatusOpen, tech))

	assert.Equal(t, ticket.StatusOpen, snap.Tickets[0].Status)
	assert.Len(t, snap.Tickets, 1)
}

func TestSnapshot_CloneCopiesPointerFields(t *testing.T) {
	tech := uuid.New()
	owner := uuid.New()
	done := time.Now().UTC()
	notes := "toner replaced"
	techName := "Ana Tech"
	ownerName := "City Hall"

	tv := view(ticket.StatusCompleted, tech)
	tv.CompletedAt = &done
	tv.ResolutionNotes = &notes
	tv.TechnicianName = &techName
	tv.Equipment.CustomerID = &owner
	tv.Customer = customer.Customer{ID: owner, Name: ownerName, AssignedTechID: &tech}

	snap := &Snapshot{
		Customers: []customer.Customer{{ID: owner, Name: ownerName, AssignedTechID: &tech}},
		Equipment: []equipment.View{{Equipment: equipment.Equipment{CustomerID: &owner}, CustomerName: &ownerName}},
		Tickets:   []ticket.View{tv},
	}

	cp := snap.Clone()
	*cp.Tickets[0].TechnicianID = uuid.Nil
	*cp.Tickets[0].CompletedAt = time.Time{}
	*cp.Tickets[0].ResolutionNotes = "changed"
	*cp.Tickets[0].TechnicianName = "changed"
	*cp.Tickets[0].Equipment.CustomerID = uuid.Nil
	*cp.Tickets[0].Customer.AssignedTechID = uuid.Nil
	*cp.Customers[0].AssignedTechID = uuid.Nil
	*cp.Equipment[0].CustomerID = uuid.Nil
	*cp.Equipment[0].CustomerName = "changed"

	orig := snap.Tickets[0]
	assert.Equal(t, tech, *orig.TechnicianID)
	assert.Equal(t, done, *orig.CompletedAt)
	assert.Equal(t, "toner replaced", *orig.ResolutionNotes)
	assert.Equal(t, "Ana Tech", *orig.TechnicianName)
	assert.Equal(t, owner, *orig.Equipment.CustomerID)
	assert.Equal(t, tech, *orig.Customer.AssignedTechID)
	assert.Equal(t, tech, *snap.Customers[0].AssignedTechID)
	assert.Equal(t, owner, *snap.Equipment[0].CustomerID)
	assert.Equal(t, "City Hall", *snap.Equipment[0].CustomerName)
}
