package usecases_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"chainhub.backend/internal/domain/entities"
	"chainhub.backend/internal/domain/providers"
)

// Mock ProfileRepository
type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) Create(ctx context.Context, profile *entities.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Profile), args.Error(1)
}

func (m *MockProfileRepository) SetClusterID(ctx context.Context, id uuid.UUID, clusterID string) error {
	args := m.Called(ctx, id, clusterID)
	return args.Error(0)
}

func (m *MockProfileRepository) ClearClusterID(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockProfileRepository) AddLinkedAccount(ctx context.Context, account *entities.LinkedAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockProfileRepository) SetLinkedAccountActive(ctx context.Context, accountID uuid.UUID, active bool) error {
	args := m.Called(ctx, accountID, active)
	return args.Error(0)
}

// Mock VirtualSessionRepository
type MockVirtualSessionRepository struct {
	mock.Mock
}

func (m *MockVirtualSessionRepository) Upsert(ctx context.Context, session *entities.VirtualSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockVirtualSessionRepository) GetByProfile(ctx context.Context, profileID uuid.UUID) ([]*entities.VirtualSession, error) {
	args := m.Called(ctx, profileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.VirtualSession), args.Error(1)
}

// Mock OperationRepository
type MockOperationRepository struct {
	mock.Mock
}

func (m *MockOperationRepository) Create(ctx context.Context, op *entities.Operation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *MockOperationRepository) GetBySetID(ctx context.Context, operationSetID string) (*entities.Operation, error) {
	args := m.Called(ctx, operationSetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Operation), args.Error(1)
}

func (m *MockOperationRepository) GetByBatchID(ctx context.Context, batchID uuid.UUID) ([]*entities.Operation, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Operation), args.Error(1)
}

func (m *MockOperationRepository) DeleteByBatchID(ctx context.Context, batchID uuid.UUID) error {
	args := m.Called(ctx, batchID)
	return args.Error(0)
}

func (m *MockOperationRepository) TransitionStatus(ctx context.Context, operationSetID string, from, to entities.OperationStatus) error {
	args := m.Called(ctx, operationSetID, from, to)
	return args.Error(0)
}

func (m *MockOperationRepository) SetSignedPayload(ctx context.Context, operationSetID, payload string) error {
	args := m.Called(ctx, operationSetID, payload)
	return args.Error(0)
}

func (m *MockOperationRepository) Complete(ctx context.Context, operationSetID string, from, to entities.OperationStatus, errorMessage string, completedAt time.Time) error {
	args := m.Called(ctx, operationSetID, from, to, errorMessage, completedAt)
	return args.Error(0)
}

// Mock TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) CreateAll(ctx context.Context, txs []*entities.Transaction) error {
	args := m.Called(ctx, txs)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByOperationID(ctx context.Context, operationID uuid.UUID) ([]*entities.Transaction, error) {
	args := m.Called(ctx, operationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Transaction), args.Error(1)
}

// Mock BatchRepository
type MockBatchRepository struct {
	mock.Mock
}

func (m *MockBatchRepository) Create(ctx context.Context, batch *entities.Batch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockBatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Batch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Batch), args.Error(1)
}

func (m *MockBatchRepository) UpdateEntries(ctx context.Context, id uuid.UUID, entries []entities.BatchEntry, status entities.BatchStatus) error {
	args := m.Called(ctx, id, entries, status)
	return args.Error(0)
}

func (m *MockBatchRepository) Promote(ctx context.Context, id uuid.UUID, status entities.BatchStatus, completedAt time.Time) error {
	args := m.Called(ctx, id, status, completedAt)
	return args.Error(0)
}

// Mock UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Do(ctx context.Context, fn func(context.Context) error) error {
	m.Called(ctx, fn)
	return fn(ctx)
}

// Mock ChainAbstractionClient
type MockChainClient struct {
	mock.Mock
}

func (m *MockChainClient) CreateCluster(ctx context.Context, accounts []providers.AccountDescriptor) (string, error) {
	args := m.Called(ctx, accounts)
	return args.String(0), args.Error(1)
}

func (m *MockChainClient) GetVirtualSessionEndpoint(ctx context.Context, clusterID string, chainID uint64, address string) (string, error) {
	args := m.Called(ctx, clusterID, chainID, address)
	return args.String(0), args.Error(1)
}

func (m *MockChainClient) GetPortfolio(ctx context.Context, session *entities.VirtualSession) ([]entities.TokenBalance, error) {
	args := m.Called(ctx, session)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.TokenBalance), args.Error(1)
}

func (m *MockChainClient) BuildTransferOps(ctx context.Context, req *providers.BuildTransferRequest) (*providers.BuildResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.BuildResult), args.Error(1)
}

func (m *MockChainClient) BuildSwapOps(ctx context.Context, req *providers.BuildSwapRequest) (*providers.BuildResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.BuildResult), args.Error(1)
}

func (m *MockChainClient) ResolveStandardTokenIDs(ctx context.Context, tokens []entities.TokenRef) ([]string, error) {
	args := m.Called(ctx, tokens)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockChainClient) Submit(ctx context.Context, clusterID, operationSetID string, signed []entities.SignedOperation) (*providers.SubmitResult, error) {
	args := m.Called(ctx, clusterID, operationSetID, signed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.SubmitResult), args.Error(1)
}

func (m *MockChainClient) SubscribeStatus(ctx context.Context, operationSetID string, handler func(providers.StatusUpdate)) error {
	args := m.Called(ctx, operationSetID, handler)
	return args.Error(0)
}
