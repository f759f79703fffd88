package dedup

import (
	"context"
	"sync"

	"github.com/perundhu/perundhu-backend/internal/domain"
)

// busRepoMock is a hand-rolled mock of busRepo. Nil Func fields behave
// like an empty bus table.
type busRepoMock struct {
	ListBusesByRouteNamesFunc func(ctx context.Context, origins, destinations []string) ([]*domain.Bus, error)
	ListBusesFunc             func(ctx context.Context, limit int) ([]*domain.Bus, error)

	calls struct {
		ListBusesByRouteNames []struct {
			Origins      []string
			Destinations []string
		}
		ListBuses []struct {
			Limit int
		}
	}
	lock sync.RWMutex
}

func (m *busRepoMock) ListBusesByRouteNames(ctx context.Context, origins, destinations []string) ([]*domain.Bus, error) {
	m.lock.Lock()
	m.calls.ListBusesByRouteNames = append(m.calls.ListBusesByRouteNames, struct {
		Origins      []string
		Destinations []string
	}{origins, destinations})
	m.lock.Unlock()
	if m.ListBusesByRouteNamesFunc == nil {
		return nil, nil
	}
	return m.ListBusesByRouteNamesFunc(ctx, origins, destinations)
}

func (m *busRepoMock) ListBusesByRouteNamesCalls() []struct {
	Origins      []string
	Destinations []string
} {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.calls.ListBusesByRouteNames
}

func (m *busRepoMock) ListBuses(ctx context.Context, limit int) ([]*domain.Bus, error) {
	m.lock.Lock()
	m.calls.ListBuses = append(m.calls.ListBuses, struct {
		Limit int
	}{limit})
	m.lock.Unlock()
	if m.ListBusesFunc == nil {
		return nil, nil
	}
	return m.ListBusesFunc(ctx, limit)
}

func (m *busRepoMock) ListBusesCalls() []struct {
	Limit int
} {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.calls.ListBuses
}

// routeContribRepoMock is a hand-rolled mock of routeContribRepo.
type routeContribRepoMock struct {
	ListByStatusFunc func(ctx context.Context, status domain.RouteStatus, limit, offset int) ([]*domain.RouteContribution, int, error)

	calls struct {
		ListByStatus []struct {
			Status domain.RouteStatus
		}
	}
	lock sync.RWMutex
}

func (m *routeContribRepoMock) ListByStatus(ctx context.Context, status domain.RouteStatus, limit, offset int) ([]*domain.RouteContribution, int, error) {
	m.lock.Lock()
	m.calls.ListByStatus = append(m.calls.ListByStatus, struct {
		Status domain.RouteStatus
	}{status})
	m.lock.Unlock()
	if m.ListByStatusFunc == nil {
		return nil, 0, nil
	}
	return m.ListByStatusFunc(ctx, status, limit, offset)
}
