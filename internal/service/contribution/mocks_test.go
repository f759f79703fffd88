package contribution

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/perundhu/perundhu-backend/internal/adapter/vision"
	"github.com/perundhu/perundhu-backend/internal/domain"
	"github.com/perundhu/perundhu-backend/internal/service/integration"
)

type contribRepoMock struct {
	GetByIDFunc                func(ctx context.Context, id uuid.UUID) (*domain.ImageContribution, error)
	CreateFunc                 func(ctx context.Context, c *domain.ImageContribution) error
	UpdateFunc                 func(ctx context.Context, c *domain.ImageContribution) error
	ListByStatusFunc           func(ctx context.Context, status domain.ImageStatus, limit, offset int) ([]*domain.ImageContribution, int, error)
	ListPendingIntegrationFunc func(ctx context.Context) ([]*domain.ImageContribution, error)
	CountByStatusFunc          func(ctx context.Context) (map[domain.ImageStatus]int, error)

	calls struct {
		Create []*domain.ImageContribution
		Update []domain.ImageContribution
	}
	lock sync.RWMutex
}

func (m *contribRepoMock) GetByID(ctx context.Context, id uuid.UUID) (*domain.ImageContribution, error) {
	if m.GetByIDFunc == nil {
		return nil, domain.ErrNotFound
	}
	return m.GetByIDFunc(ctx, id)
}

func (m *contribRepoMock) Create(ctx context.Context, c *domain.ImageContribution) error {
	m.lock.Lock()
	m.calls.Create = append(m.calls.Create, c)
	m.lock.Unlock()
	if m.CreateFunc == nil {
		return nil
	}
	return m.CreateFunc(ctx, c)
}

func (m *contribRepoMock) Update(ctx context.Context, c *domain.ImageContribution) error {
	m.lock.Lock()
	m.calls.Update = append(m.calls.Update, *c)
	m.lock.Unlock()
	if m.UpdateFunc == nil {
		return nil
	}
	return m.UpdateFunc(ctx, c)
}

func (m *contribRepoMock) ListByStatus(ctx context.Context, status domain.ImageStatus, limit, offset int) ([]*domain.ImageContribution, int, error) {
	if m.ListByStatusFunc == nil {
		return nil, 0, nil
	}
	return m.ListByStatusFunc(ctx, status, limit, offset)
}

func (m *contribRepoMock) ListPendingIntegration(ctx context.Context) ([]*domain.ImageContribution, error) {
	if m.ListPendingIntegrationFunc == nil {
		return nil, nil
	}
	return m.ListPendingIntegrationFunc(ctx)
}

func (m *contribRepoMock) CountByStatus(ctx context.Context) (map[domain.ImageStatus]int, error) {
	if m.CountByStatusFunc == nil {
		return nil, nil
	}
	return m.CountByStatusFunc(ctx)
}

func (m *contribRepoMock) CreateCalls() []*domain.ImageContribution {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.calls.Create
}

// UpdateCalls returns snapshots of the contribution at each Update call.
func (m *contribRepoMock) UpdateCalls() []domain.ImageContribution {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.calls.Update
}

type skipRepoMock struct {
	ListByContributionFunc func(ctx context.Context, contributionID uuid.UUID) ([]*domain.SkippedTimingRecord, error)
	CountByReasonFunc      func(ctx context.Context) (map[domain.SkipReason]int, error)
}

func (m *skipRepoMock) ListByContribution(ctx context.Context, contributionID uuid.UUID) ([]*domain.SkippedTimingRecord, error) {
	if m.ListByContributionFunc == nil {
		return nil, nil
	}
	return m.ListByContributionFunc(ctx, contributionID)
}

func (m *skipRepoMock) CountByReason(ctx context.Context) (map[domain.SkipReason]int, error) {
	if m.CountByReasonFunc == nil {
		return nil, nil
	}
	return m.CountByReasonFunc(ctx)
}

type blobStoreMock struct {
	StoreFunc  func(ctx context.Context, r io.Reader, ownerID, filename string) (string, error)
	RemoveFunc func(ctx context.Context, url string) error

	calls struct {
		Store  int
		Remove []string
	}
	lock sync.RWMutex
}

func (m *blobStoreMock) Store(ctx context.Context, r io.Reader, ownerID, filename string) (string, error) {
	m.lock.Lock()
	m.calls.Store++
	m.lock.Unlock()
	if m.StoreFunc == nil {
		return "/uploads/" + ownerID + "/" + filename, nil
	}
	return m.StoreFunc(ctx, r, ownerID, filename)
}

func (m *blobStoreMock) Remove(ctx context.Context, url string) error {
	m.lock.Lock()
	m.calls.Remove = append(m.calls.Remove, url)
	m.lock.Unlock()
	if m.RemoveFunc == nil {
		return nil
	}
	return m.RemoveFunc(ctx, url)
}

func (m *blobStoreMock) StoreCalls() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.calls.Store
}

func (m *blobStoreMock) RemoveCalls() []string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.calls.Remove
}

type extractionGatewayMock struct {
	AvailableFunc func(ctx context.Context) bool
	ExtractFunc   func(ctx context.Context, imageURL string) (*vision.Extraction, error)
}

func (m *extractionGatewayMock) Available(ctx context.Context) bool {
	if m.AvailableFunc == nil {
		return true
	}
	return m.AvailableFunc(ctx)
}

func (m *extractionGatewayMock) Extract(ctx context.Context, imageURL string) (*vision.Extraction, error) {
	if m.ExtractFunc == nil {
		return &vision.Extraction{}, nil
	}
	return m.ExtractFunc(ctx, imageURL)
}

type integratorMock struct {
	IntegrateContributionFunc func(ctx context.Context, c *domain.ImageContribution) (*integration.Result, error)

	calls struct {
		IntegrateContribution []*domain.ImageContribution
	}
	lock sync.RWMutex
}

func (m *integratorMock) IntegrateContribution(ctx context.Context, c *domain.ImageContribution) (*integration.Result, error) {
	m.lock.Lock()
	m.calls.IntegrateContribution = append(m.calls.IntegrateContribution, c)
	m.lock.Unlock()
	if m.IntegrateContributionFunc == nil {
		return &integration.Result{}, nil
	}
	return m.IntegrateContributionFunc(ctx, c)
}

func (m *integratorMock) IntegrateContributionCalls() []*domain.ImageContribution {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.calls.IntegrateContribution
}
