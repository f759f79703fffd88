package integration

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/perundhu/perundhu-backend/internal/domain"
)

// Hand-rolled mocks. Nil Func fields fall back to empty-store behavior
// (lookups miss, writes succeed) so tests only wire what they assert on.

type timingRepoMock struct {
	FindByKeyFunc func(ctx context.Context, key domain.TimingKey) (*domain.TimingRecord, error)
	CreateFunc    func(ctx context.Context, rec *domain.TimingRecord) error
	LinkBusFunc   func(ctx context.Context, recordID, busID uuid.UUID) error

	calls struct {
		Create  []*domain.TimingRecord
		LinkBus []struct {
			RecordID uuid.UUID
			BusID    uuid.UUID
		}
	}
	lock sync.RWMutex
}

func (m *timingRepoMock) FindByKey(ctx context.Context, key domain.TimingKey) (*domain.TimingRecord, error) {
	if m.FindByKeyFunc == nil {
		return nil, domain.ErrNotFound
	}
	return m.FindByKeyFunc(ctx, key)
}

func (m *timingRepoMock) Create(ctx context.Context, rec *domain.TimingRecord) error {
	m.lock.Lock()
	m.calls.Create = append(m.calls.Create, rec)
	m.lock.Unlock()
	if m.CreateFunc == nil {
		return nil
	}
	return m.CreateFunc(ctx, rec)
}

func (m *timingRepoMock) LinkBus(ctx context.Context, recordID, busID uuid.UUID) error {
	m.lock.Lock()
	m.calls.LinkBus = append(m.calls.LinkBus, struct {
		RecordID uuid.UUID
		BusID    uuid.UUID
	}{recordID, busID})
	m.lock.Unlock()
	if m.LinkBusFunc == nil {
		return nil
	}
	return m.LinkBusFunc(ctx, recordID, busID)
}

func (m *timingRepoMock) CreateCalls() []*domain.TimingRecord {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.calls.Create
}

func (m *timingRepoMock) LinkBusCalls() []struct {
	RecordID uuid.UUID
	BusID    uuid.UUID
} {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.calls.LinkBus
}

type skipRepoMock struct {
	AppendFunc func(ctx context.Context, rec *domain.SkippedTimingRecord) error

	calls struct {
		Append []*domain.SkippedTimingRecord
	}
	lock sync.RWMutex
}

func (m *skipRepoMock) Append(ctx context.Context, rec *domain.SkippedTimingRecord) error {
	m.lock.Lock()
	m.calls.Append = append(m.calls.Append, rec)
	m.lock.Unlock()
	if m.AppendFunc == nil {
		return nil
	}
	return m.AppendFunc(ctx, rec)
}

func (m *skipRepoMock) AppendCalls() []*domain.SkippedTimingRecord {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.calls.Append
}

type scheduleRepoMock struct {
	GetLocationByNameFunc     func(ctx context.Context, name string) (*domain.Location, error)
	GetLocationByNameFoldFunc func(ctx context.Context, name string) (*domain.Location, error)
	SearchLocationsFunc       func(ctx context.Context, fragment string, limit int) ([]*domain.Location, error)
	CreateLocationFunc        func(ctx context.Context, loc *domain.Location) error
	CreateBusFunc             func(ctx context.Context, bus *domain.Bus) error
	GetBusByRouteFunc         func(ctx context.Context, fromID, toID uuid.UUID, departure domain.TimeOfDay) (*domain.Bus, error)
	CountBusesBetweenFunc     func(ctx context.Context, fromID, toID uuid.UUID) (int, error)
	CreateStopsFunc           func(ctx context.Context, stops []domain.Stop) error

	calls struct {
		CreateLocation []*domain.Location
		CreateBus      []*domain.Bus
		CreateStops    [][]domain.Stop
	}
	lock sync.RWMutex
}

func (m *scheduleRepoMock) GetLocationByName(ctx context.Context, name string) (*domain.Location, error) {
	if m.GetLocationByNameFunc == nil {
		return nil, domain.ErrNotFound
	}
	return m.GetLocationByNameFunc(ctx, name)
}

func (m *scheduleRepoMock) GetLocationByNameFold(ctx context.Context, name string) (*domain.Location, error) {
	if m.GetLocationByNameFoldFunc == nil {
		return nil, domain.ErrNotFound
	}
	return m.GetLocationByNameFoldFunc(ctx, name)
}

func (m *scheduleRepoMock) SearchLocations(ctx context.Context, fragment string, limit int) ([]*domain.Location, error) {
	if m.SearchLocationsFunc == nil {
		return nil, nil
	}
	return m.SearchLocationsFunc(ctx, fragment, limit)
}

func (m *scheduleRepoMock) CreateLocation(ctx context.Context, loc *domain.Location) error {
	m.lock.Lock()
	m.calls.CreateLocation = append(m.calls.CreateLocation, loc)
	m.lock.Unlock()
	if m.CreateLocationFunc == nil {
		return nil
	}
	return m.CreateLocationFunc(ctx, loc)
}

func (m *scheduleRepoMock) CreateBus(ctx context.Context, bus *domain.Bus) error {
	m.lock.Lock()
	m.calls.CreateBus = append(m.calls.CreateBus, bus)
	m.lock.Unlock()
	if m.CreateBusFunc == nil {
		return nil
	}
	return m.CreateBusFunc(ctx, bus)
}

func (m *scheduleRepoMock) GetBusByRoute(ctx context.Context, fromID, toID uuid.UUID, departure domain.TimeOfDay) (*domain.Bus, error) {
	if m.GetBusByRouteFunc == nil {
		return nil, domain.ErrNotFound
	}
	return m.GetBusByRouteFunc(ctx, fromID, toID, departure)
}

func (m *scheduleRepoMock) CountBusesBetween(ctx context.Context, fromID, toID uuid.UUID) (int, error) {
	if m.CountBusesBetweenFunc == nil {
		return 0, nil
	}
	return m.CountBusesBetweenFunc(ctx, fromID, toID)
}

func (m *scheduleRepoMock) CreateStops(ctx context.Context, stops []domain.Stop) error {
	m.lock.Lock()
	m.calls.CreateStops = append(m.calls.CreateStops, stops)
	m.lock.Unlock()
	if m.CreateStopsFunc == nil {
		return nil
	}
	return m.CreateStopsFunc(ctx, stops)
}

func (m *scheduleRepoMock) CreateLocationCalls() []*domain.Location {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.calls.CreateLocation
}

func (m *scheduleRepoMock) CreateBusCalls() []*domain.Bus {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.calls.CreateBus
}

func (m *scheduleRepoMock) CreateStopsCalls() [][]domain.Stop {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.calls.CreateStops
}

type busMatcherMock struct {
	MatchBusFunc func(ctx context.Context, origin, destination string, departure domain.TimeOfDay) (*domain.Bus, error)
}

func (m *busMatcherMock) MatchBus(ctx context.Context, origin, destination string, departure domain.TimeOfDay) (*domain.Bus, error) {
	if m.MatchBusFunc == nil {
		return nil, nil
	}
	return m.MatchBusFunc(ctx, origin, destination, departure)
}

type txManagerMock struct {
	RunInTxFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *txManagerMock) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.RunInTxFunc == nil {
		return fn(ctx)
	}
	return m.RunInTxFunc(ctx, fn)
}
