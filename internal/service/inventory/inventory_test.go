package inventory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"impriartex-service/internal/changefeed"
	"impriartex-service/internal/domain/customer"
	"impriartex-service/internal/domain/equipment"
	"impriartex-service/internal/domain/identity"
	xerrors "impriartex-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore mimics the all-or-nothing behaviour of the batch insert.
type fakeStore struct {
	rows        map[uuid.UUID]equipment.Equipment
	serials     map[string]bool
	customers   map[uuid.UUID]bool
	batchCalls  int
	createCalls int
}

func newFakeStore(customers ...uuid.UUID) *fakeStore {
	s := &fakeStore{
		rows:      map[uuid.UUID]equipment.Equipment{},
		serials:   map[string]bool{},
		customers: map[uuid.UUID]bool{},
	}
	for _, id := range customers {
		s.customers[id] = true
	}
	return s
}

func (s *fakeStore) check(eq equipment.Equipment, pending map[string]bool) error {
	if s.serials[eq.Serial] || pending[eq.Serial] {
		return fmt.Errorf("%w: %s", xerrors.ErrDuplicateSerial, eq.Serial)
	}
	if eq.CustomerID != nil && !s.customers[*eq.CustomerID] {
		return fmt.Errorf("%w: unknown customer", xerrors.ErrConstraintViolation)
	}
	return nil
}

func (s *fakeStore) Create(_ context.Context, eq *equipment.Equipment) error {
	s.createCalls++
	if err := s.check(*eq, nil); err != nil {
		return err
	}
	s.rows[eq.ID] = *eq
	s.serials[eq.Serial] = true
	return nil
}

func (s *fakeStore) InsertBatch(_ context.Context, rows []equipment.Equipment) (int64, error) {
	s.batchCalls++
	pending := map[string]bool{}
	for _, eq := range rows {
		if err := s.check(eq, pending); err != nil {
			return 0, err
		}
		pending[eq.Serial] = true
	}
	for _, eq := range rows {
		eq.ID = uuid.New()
		s.rows[eq.ID] = eq
		s.serials[eq.Serial] = true
	}
	return int64(len(rows)), nil
}

func (s *fakeStore) FindByID(_ context.Context, id uuid.UUID) (*equipment.Equipment, error) {
	eq, ok := s.rows[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return &eq, nil
}

func (s *fakeStore) UpdateCustomer(_ context.Context, id uuid.UUID, customerID *uuid.UUID) error {
	eq, ok := s.rows[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	if customerID != nil && !s.customers[*customerID] {
		return xerrors.ErrConstraintViolation
	}
	eq.CustomerID = customerID
	s.rows[id] = eq
	return nil
}

func (s *fakeStore) ListEquipment(_ context.Context) ([]equipment.View, error) {
	out := make([]equipment.View, 0, len(s.rows))
	for _, eq := range s.rows {
		out = append(out, equipment.View{Equipment: eq})
	}
	return out, nil
}

type fakeCustomers struct {
	list  []customer.Customer
	err   error
	calls int
}

func (f *fakeCustomers) ListCustomers(context.Context) ([]customer.Customer, error) {
	f.calls++
	return f.list, f.err
}

var supervisor = identity.Identity{ID: uuid.New(), Role: identity.RoleSupervisor, FullName: "Boss"}

func newService(store *fakeStore) *InventoryService {
	return NewInventoryService(store, &fakeCustomers{}, changefeed.NopNotifier{}, "", zap.NewNop())
}

func TestImport(t *testing.T) {
	inst := uuid.New()
	store := newFakeStore(inst)
	svc := newService(store)

	text := "location,model,brand,serial,ip,details,institution\n" +
		"Lobby,IM 430,,SN-1,10.0.0.1,Front desk," + inst.String() + "\n" +
		"Annex,MP 2014,RICOH,SN-2,10.0.0.2,Copy room,\n" +
		"broken,row\n"

	res, err := svc.Import(context.Background(), supervisor, text)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Len(t, store.rows, 2)
	assert.Equal(t, 1, store.batchCalls)

	for _, eq := range store.rows {
		assert.Equal(t, "RICOH", eq.Brand)
	}
}

func TestImport_InstitutionByName(t *testing.T) {
	cityHall := customer.Customer{ID: uuid.New(), Name: "City Hall"}
	store := newFakeStore(cityHall.ID)
	customers := &fakeCustomers{list: []customer.Customer{cityHall}}
	svc := NewInventoryService(store, customers, changefeed.NopNotifier{}, "", zap.NewNop())

	text := "header\n" +
		"Lobby,IM550,RICOH,SN1,10.0.0.1,Floor1,INST1\n" +
		"Annex,IM550,RICOH,SN2,10.0.0.2,Floor2,city hall\n" +
		"bad,row"

	res, err := svc.Import(context.Background(), supervisor, text)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Unlinked)
	assert.Equal(t, 1, customers.calls)

	owners := map[string]*uuid.UUID{}
	for _, eq := range store.rows {
		owners[eq.Serial] = eq.CustomerID
	}
	assert.Nil(t, owners["SN1"])
	require.NotNil(t, owners["SN2"])
	assert.Equal(t, cityHall.ID, *owners["SN2"])
}

func TestImport_CustomersLoadedOnlyForNamedInstitutions(t *testing.T) {
	inst := uuid.New()
	store := newFakeStore(inst)
	customers := &fakeCustomers{}
	svc := NewInventoryService(store, customers, changefeed.NopNotifier{}, "", zap.NewNop())

	_, err := svc.Import(context.Background(), supervisor, "h\nLobby,IM 430,,SN-1,,,"+inst.String()+"\nAnnex,IM 430,,SN-2,,,\n")
	require.NoError(t, err)
	assert.Zero(t, customers.calls)

	customers.err = errors.New("connection reset")
	_, err = svc.Import(context.Background(), supervisor, "h\nLobby,IM 430,,SN-3,,,City Hall\n")
	assert.Error(t, err)
	assert.Equal(t, 1, store.batchCalls)
}

func TestImport_NoCustomerListerImportsUnlinked(t *testing.T) {
	store := newFakeStore()
	svc := NewInventoryService(store, nil, nil, "", zap.NewNop())

	res, err := svc.Import(context.Background(), supervisor, "h\nLobby,IM 430,,SN-1,,,INST1\n")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Unlinked)
}

func TestImport_EmptyPayloadSkipsStore(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)

	for _, text := range []string{"", "header only", "header\n\n"} {
		res, err := svc.Import(context.Background(), supervisor, text)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Imported)
	}
	assert.Equal(t, 0, store.batchCalls)
}

func TestImport_AllOrNothing(t *testing.T) {
	inst := uuid.New()

	tests := []struct {
		name   string
		text   string
		expect error
	}{
		{
			name: "duplicate against existing serial",
			text: "h\n" +
				"Lobby,IM 430,,SN-NEW,,,\n" +
				"Lobby,IM 430,,SN-OLD,,,\n",
			expect: xerrors.ErrDuplicateSerial,
		},
		{
			name: "duplicate within batch",
			text: "h\n" +
				"Lobby,IM 430,,SN-A,,,\n" +
				"Lobby,IM 430,,SN-A,,,\n",
			expect: xerrors.ErrDuplicateSerial,
		},
		{
			name: "unknown institution",
			text: "h\n" +
				"Lobby,IM 430,,SN-B,,," + inst.String() + "\n",
			expect: xerrors.ErrConstraintViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.rows[uuid.New()] = equipment.Equipment{Serial: "SN-OLD"}
			store.serials["SN-OLD"] = true
			svc := newService(store)

			_, err := svc.Import(context.Background(), supervisor, tt.text)
			assert.ErrorIs(t, err, tt.expect)
			assert.Len(t, store.rows, 1)
		})
	}
}

func TestImport_RequiresSupervisor(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)
	tech := identity.Identity{ID: uuid.New(), Role: identity.RoleTechnician}

	_, err := svc.Import(context.Background(), tech, "h\nLobby,IM 430,,SN-1,,,\n")
	assert.ErrorIs(t, err, xerrors.ErrPermissionDenied)
	assert.Equal(t, 0, store.batchCalls)
}

func TestCreateEquipment(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)

	eq, err := svc.CreateEquipment(context.Background(), supervisor, &equipment.CreateEquipmentRequest{
		Model:  " IM 430 ",
		Serial: "SN-77",
	})
	require.NoError(t, err)
	assert.Equal(t, "IM 430", eq.Model)
	assert.Equal(t, equipment.DefaultBrand, eq.Brand)
	assert.Equal(t, equipment.DefaultStatus, eq.Status)
	assert.Nil(t, eq.CustomerID)

	_, err = svc.CreateEquipment(context.Background(), supervisor, &equipment.CreateEquipmentRequest{
		Model:  "IM 430",
		Serial: "SN-77",
	})
	assert.ErrorIs(t, err, xerrors.ErrDuplicateSerial)

	_, err = svc.CreateEquipment(context.Background(), supervisor, &equipment.CreateEquipmentRequest{
		Model:  "IM 430",
		Serial: "   ",
	})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	assert.Equal(t, 2, store.createCalls)
}

func TestLinkEquipment(t *testing.T) {
	inst := uuid.New()
	store := newFakeStore(inst)
	svc := newService(store)

	eq, err := svc.CreateEquipment(context.Background(), supervisor, &equipment.CreateEquipmentRequest{Model: "IM 550", Serial: "SN-5"})
	require.NoError(t, err)

	linked, err := svc.LinkEquipment(context.Background(), supervisor, eq.ID, &inst)
	require.NoError(t, err)
	require.NotNil(t, linked.CustomerID)
	assert.Equal(t, inst, *linked.CustomerID)

	nilID := uuid.Nil
	unlinked, err := svc.LinkEquipment(context.Background(), supervisor, eq.ID, &nilID)
	require.NoError(t, err)
	assert.Nil(t, unlinked.CustomerID)

	client := identity.Identity{ID: uuid.New(), Role: identity.RoleClient}
	_, err = svc.LinkEquipment(context.Background(), client, eq.ID, &inst)
	assert.ErrorIs(t, err, xerrors.ErrPermissionDenied)
}
