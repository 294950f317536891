package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"chainhub.backend/internal/domain/entities"
	domainerrors "chainhub.backend/internal/domain/errors"
	"chainhub.backend/internal/domain/providers"
	"chainhub.backend/internal/infrastructure/cache"
	"chainhub.backend/internal/usecases"
)

type orchestratorFixture struct {
	orchestrator *usecases.BatchOrchestrator
	client       *MockChainClient
	profileRepo  *MockProfileRepository
	opRepo       *MockOperationRepository
	batchRepo    *MockBatchRepository
	uow          *MockUnitOfWork
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	f := &orchestratorFixture{
		client:      new(MockChainClient),
		profileRepo: new(MockProfileRepository),
		opRepo:      new(MockOperationRepository),
		batchRepo:   new(MockBatchRepository),
		uow:         new(MockUnitOfWork),
	}
	f.uow.On("Do", mock.Anything, mock.Anything).Return(nil).Maybe()

	sessionRepo := new(MockVirtualSessionRepository)
	sessionRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Maybe()
	pool := usecases.NewSessionPool(f.client, sessionRepo)

	clusters := usecases.NewClusterManager(f.profileRepo, f.client, cache.New(nil), pool, 1)
	builder := usecases.NewOperationBuilder(pool, f.client, cache.New(nil), f.opRepo, 24*time.Hour)
	monitor := usecases.NewSubmissionMonitor(f.client, f.opRepo, new(MockTransactionRepository), nil)
	t.Cleanup(monitor.Close)

	f.orchestrator = usecases.NewBatchOrchestrator(clusters, builder, monitor, f.profileRepo, f.opRepo, f.batchRepo, f.uow)
	return f
}

func transferEnvelope(amount string) entities.IntentEnvelope {
	return entities.IntentEnvelope{
		Type: entities.OperationTypeTransfer,
		From: entities.IntentAsset{Token: "0xtokenaddr", ChainID: 1, Amount: amount},
		To:   entities.IntentTarget{Address: "0x9999999999999999999999999999999999999999"},
	}
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestCreateBatch_AllOperationsSucceed(t *testing.T) {
	f := newOrchestratorFixture(t)
	profile := testProfile()
	stubSession(f.client, profile, 1)
	f.profileRepo.On("GetByID", mock.Anything, profile.ID).Return(profile, nil).Once()

	f.client.On("BuildTransferOps", mock.Anything, mock.Anything).
		Return(&providers.BuildResult{Status: "success", OperationSetID: "set-a"}, nil).Once()
	f.client.On("BuildTransferOps", mock.Anything, mock.Anything).
		Return(&providers.BuildResult{Status: "success", OperationSetID: "set-b"}, nil).Once()

	var created []*entities.Operation
	f.opRepo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { created = append(created, args.Get(1).(*entities.Operation)) }).
		Return(nil)
	var persisted *entities.Batch
	f.batchRepo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { persisted = args.Get(1).(*entities.Batch) }).
		Return(nil).Once()

	result, err := f.orchestrator.CreateBatch(context.Background(), profile.ID,
		[]entities.IntentEnvelope{transferEnvelope("100"), transferEnvelope("200")}, true)
	require.NoError(t, err)

	require.Equal(t, entities.BatchStatusCreated, result.Status)
	require.Equal(t, 2, result.TotalOperations)
	require.Equal(t, 0, result.FailedOperations)
	require.Equal(t, "set-a", result.Entries[0].OperationSetID)
	require.Equal(t, "set-b", result.Entries[1].OperationSetID)

	// Every member row is tagged with the batch and its position.
	require.Len(t, created, 2)
	for i, op := range created {
		require.Equal(t, persisted.ID, *op.Metadata.BatchID)
		require.Equal(t, i, *op.Metadata.BatchIndex)
		require.False(t, op.Metadata.IsRetry)
	}
	require.True(t, persisted.AtomicExecution)
}

func TestCreateBatch_NonAtomicKeepsGoingAfterFailure(t *testing.T) {
	f := newOrchestratorFixture(t)
	profile := testProfile()
	stubSession(f.client, profile, 1)
	f.profileRepo.On("GetByID", mock.Anything, profile.ID).Return(profile, nil).Once()

	f.client.On("BuildTransferOps", mock.Anything, mock.Anything).
		Return(&providers.BuildResult{Status: "success", OperationSetID: "set-a"}, nil).Once()
	f.opRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.batchRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	bad := transferEnvelope("100")
	bad.To.Address = "not-an-address"

	result, err := f.orchestrator.CreateBatch(context.Background(), profile.ID,
		[]entities.IntentEnvelope{bad, transferEnvelope("200")}, false)
	require.NoError(t, err)

	require.Equal(t, entities.BatchStatusPartial, result.Status)
	require.Equal(t, 1, result.FailedOperations)
	require.Equal(t, 1, result.SuccessfulOperations)
	require.Equal(t, entities.OperationStatusFailed, result.Entries[0].Status)
	require.NotEmpty(t, result.Entries[0].Error)
	require.Equal(t, entities.OperationStatusCreated, result.Entries[1].Status)
}

func TestCreateBatch_AtomicFailureRollsBack(t *testing.T) {
	f := newOrchestratorFixture(t)
	profile := testProfile()
	f.profileRepo.On("GetByID", mock.Anything, profile.ID).Return(profile, nil).Once()

	f.opRepo.On("DeleteByBatchID", mock.Anything, mock.Anything).Return(nil).Once()

	bad := transferEnvelope("100")
	bad.To.Address = "not-an-address"

	_, err := f.orchestrator.CreateBatch(context.Background(), profile.ID,
		[]entities.IntentEnvelope{bad, transferEnvelope("200")}, true)
	require.ErrorIs(t, err, domainerrors.ErrBatchFailed)

	var appErr *domainerrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.Code)

	// The failure stops processing: the second intent is never built and no
	// batch record is written.
	f.client.AssertNotCalled(t, "BuildTransferOps", mock.Anything, mock.Anything)
	f.batchRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.opRepo.AssertExpectations(t)
}

func TestCreateBatch_SizeLimits(t *testing.T) {
	f := newOrchestratorFixture(t)

	_, err := f.orchestrator.CreateBatch(context.Background(), uuid.New(), nil, false)
	require.ErrorIs(t, err, domainerrors.ErrValidation)

	oversized := make([]entities.IntentEnvelope, usecases.MaxBatchOperations+1)
	for i := range oversized {
		oversized[i] = transferEnvelope("1")
	}
	_, err = f.orchestrator.CreateBatch(context.Background(), uuid.New(), oversized, false)
	require.ErrorIs(t, err, domainerrors.ErrValidation)

	f.profileRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestCreateBatch_UnknownProfile(t *testing.T) {
	f := newOrchestratorFixture(t)
	profileID := uuid.New()
	f.profileRepo.On("GetByID", mock.Anything, profileID).Return(nil, domainerrors.ErrNotFound).Once()

	_, err := f.orchestrator.CreateBatch(context.Background(), profileID,
		[]entities.IntentEnvelope{transferEnvelope("1")}, false)
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func executableBatch(profile *entities.Profile, atomic bool) *entities.Batch {
	return &entities.Batch{
		ID:              uuid.New(),
		ProfileID:       profile.ID,
		AtomicExecution: atomic,
		Status:          entities.BatchStatusCreated,
		Entries: []entities.BatchEntry{
			{Index: 0, Type: entities.OperationTypeTransfer, Status: entities.OperationStatusCreated, OperationSetID: "set-a"},
			{Index: 1, Type: entities.OperationTypeTransfer, Status: entities.OperationStatusCreated, OperationSetID: "set-b"},
		},
	}
}

func expectSubmitAccepted(f *orchestratorFixture, setID string) {
	f.opRepo.On("GetBySetID", mock.Anything, setID).
		Return(&entities.Operation{OperationSetID: setID, Status: entities.OperationStatusCreated}, nil).Once()
	f.client.On("Submit", mock.Anything, "cluster-1", setID, mock.Anything).
		Return(&providers.SubmitResult{Success: true, OperationSetID: setID}, nil).Once()
	f.opRepo.On("SetSignedPayload", mock.Anything, setID, mock.Anything).Return(nil).Once()
	f.opRepo.On("TransitionStatus", mock.Anything, setID, entities.OperationStatusCreated, entities.OperationStatusPending).
		Return(nil).Once()
	f.client.On("SubscribeStatus", mock.Anything, setID, mock.Anything).Return(nil).Once()
}

func TestExecuteBatch_SubmitsEveryCreatedEntry(t *testing.T) {
	f := newOrchestratorFixture(t)
	profile := testProfile()
	batch := executableBatch(profile, false)

	f.batchRepo.On("GetByID", mock.Anything, batch.ID).Return(batch, nil).Once()
	f.profileRepo.On("GetByID", mock.Anything, profile.ID).Return(profile, nil).Once()
	expectSubmitAccepted(f, "set-a")
	expectSubmitAccepted(f, "set-b")
	f.batchRepo.On("UpdateEntries", mock.Anything, batch.ID, mock.Anything, entities.BatchStatusSubmitted).
		Return(nil).Once()

	result, err := f.orchestrator.ExecuteBatch(context.Background(), batch.ID, []entities.SignedOperation{
		{OperationSetID: "set-a", SignedPayload: "0xsig-a"},
		{OperationSetID: "set-b", SignedPayload: "0xsig-b"},
	})
	require.NoError(t, err)

	require.Equal(t, entities.BatchStatusSubmitted, result.Status)
	require.Equal(t, entities.OperationStatusPending, result.Entries[0].Status)
	require.Equal(t, entities.OperationStatusPending, result.Entries[1].Status)
	f.batchRepo.AssertExpectations(t)
	f.client.AssertExpectations(t)
}

func TestExecuteBatch_RejectsAlreadyProcessedBatch(t *testing.T) {
	f := newOrchestratorFixture(t)
	profile := testProfile()
	batch := executableBatch(profile, false)
	batch.Status = entities.BatchStatusSubmitted

	f.batchRepo.On("GetByID", mock.Anything, batch.ID).Return(batch, nil).Once()

	_, err := f.orchestrator.ExecuteBatch(context.Background(), batch.ID, nil)
	require.ErrorIs(t, err, domainerrors.ErrAlreadyProcessed)
	f.client.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecuteBatch_AtomicStopsAtFirstSubmissionFailure(t *testing.T) {
	f := newOrchestratorFixture(t)
	profile := testProfile()
	batch := executableBatch(profile, true)

	f.batchRepo.On("GetByID", mock.Anything, batch.ID).Return(batch, nil).Once()
	f.profileRepo.On("GetByID", mock.Anything, profile.ID).Return(profile, nil).Once()

	f.opRepo.On("GetBySetID", mock.Anything, "set-a").
		Return(&entities.Operation{OperationSetID: "set-a", Status: entities.OperationStatusCreated}, nil).Once()
	boom := errors.New("network error: rpc down")
	f.client.On("Submit", mock.Anything, "cluster-1", "set-a", mock.Anything).Return(nil, boom).Once()
	f.opRepo.On("Complete", mock.Anything, "set-a",
		entities.OperationStatusCreated, entities.OperationStatusFailed,
		boom.Error(), mock.Anything).Return(nil).Once()

	f.batchRepo.On("UpdateEntries", mock.Anything, batch.ID, mock.Anything, entities.BatchStatusFailed).
		Return(nil).Once()

	result, err := f.orchestrator.ExecuteBatch(context.Background(), batch.ID, []entities.SignedOperation{
		{OperationSetID: "set-a", SignedPayload: "0xsig-a"},
		{OperationSetID: "set-b", SignedPayload: "0xsig-b"},
	})
	require.NoError(t, err)

	require.Equal(t, entities.BatchStatusFailed, result.Status)
	require.Equal(t, entities.OperationStatusFailed, result.Entries[0].Status)
	require.Equal(t, boom.Error(), result.Entries[0].Error)
	// The second member is never touched.
	require.Equal(t, entities.OperationStatusCreated, result.Entries[1].Status)
	f.opRepo.AssertNotCalled(t, "GetBySetID", mock.Anything, "set-b")
}

func TestExecuteBatch_NonAtomicContinuesPastFailure(t *testing.T) {
	f := newOrchestratorFixture(t)
	profile := testProfile()
	batch := executableBatch(profile, false)

	f.batchRepo.On("GetByID", mock.Anything, batch.ID).Return(batch, nil).Once()
	f.profileRepo.On("GetByID", mock.Anything, profile.ID).Return(profile, nil).Once()

	f.opRepo.On("GetBySetID", mock.Anything, "set-a").
		Return(&entities.Operation{OperationSetID: "set-a", Status: entities.OperationStatusCreated}, nil).Once()
	f.client.On("Submit", mock.Anything, "cluster-1", "set-a", mock.Anything).
		Return(nil, errors.New("timeout")).Once()
	f.opRepo.On("Complete", mock.Anything, "set-a",
		entities.OperationStatusCreated, entities.OperationStatusFailed,
		"timeout", mock.Anything).Return(nil).Once()
	expectSubmitAccepted(f, "set-b")

	f.batchRepo.On("UpdateEntries", mock.Anything, batch.ID, mock.Anything, entities.BatchStatusPartial).
		Return(nil).Once()

	result, err := f.orchestrator.ExecuteBatch(context.Background(), batch.ID, []entities.SignedOperation{
		{OperationSetID: "set-a", SignedPayload: "0xsig-a"},
		{OperationSetID: "set-b", SignedPayload: "0xsig-b"},
	})
	require.NoError(t, err)

	require.Equal(t, entities.BatchStatusPartial, result.Status)
	require.Equal(t, entities.OperationStatusFailed, result.Entries[0].Status)
	require.Equal(t, entities.OperationStatusPending, result.Entries[1].Status)
}

func TestGetStatus_ReconcilesEntriesAndPromotes(t *testing.T) {
	f := newOrchestratorFixture(t)
	profile := testProfile()
	batch := executableBatch(profile, false)
	batch.Status = entities.BatchStatusSubmitted
	batch.Entries[0].Status = entities.OperationStatusPending
	batch.Entries[1].Status = entities.OperationStatusPending

	f.batchRepo.On("GetByID", mock.Anything, batch.ID).Return(batch, nil).Once()
	f.opRepo.On("GetByBatchID", mock.Anything, batch.ID).Return([]*entities.Operation{
		{OperationSetID: "set-a", Status: entities.OperationStatusSuccessful},
		{OperationSetID: "set-b", Status: entities.OperationStatusFailed, ErrorMessage: null.StringFrom("insufficient balance")},
	}, nil).Once()
	f.batchRepo.On("Promote", mock.Anything, batch.ID, entities.BatchStatusFailed, mock.Anything).
		Return(nil).Once()
	f.batchRepo.On("UpdateEntries", mock.Anything, batch.ID, mock.Anything, entities.BatchStatusFailed).
		Return(nil).Once()

	report, err := f.orchestrator.GetStatus(context.Background(), batch.ID)
	require.NoError(t, err)

	require.Equal(t, entities.BatchStatusFailed, report.Status)
	require.NotNil(t, report.CompletedAt)
	require.Equal(t, entities.OperationStatusSuccessful, report.Entries[0].Status)
	require.Equal(t, entities.OperationStatusFailed, report.Entries[1].Status)
	require.Equal(t, "insufficient balance", report.Entries[1].Error)
	f.batchRepo.AssertExpectations(t)
}

func TestGetStatus_AllSuccessfulPromotesToCompleted(t *testing.T) {
	f := newOrchestratorFixture(t)
	profile := testProfile()
	batch := executableBatch(profile, false)
	batch.Status = entities.BatchStatusSubmitted
	batch.Entries[0].Status = entities.OperationStatusPending
	batch.Entries[1].Status = entities.OperationStatusPending

	f.batchRepo.On("GetByID", mock.Anything, batch.ID).Return(batch, nil).Once()
	f.opRepo.On("GetByBatchID", mock.Anything, batch.ID).Return([]*entities.Operation{
		{OperationSetID: "set-a", Status: entities.OperationStatusSuccessful},
		{OperationSetID: "set-b", Status: entities.OperationStatusSuccessful},
	}, nil).Once()
	f.batchRepo.On("Promote", mock.Anything, batch.ID, entities.BatchStatusCompleted, mock.Anything).
		Return(nil).Once()
	f.batchRepo.On("UpdateEntries", mock.Anything, batch.ID, mock.Anything, entities.BatchStatusCompleted).
		Return(nil).Once()

	report, err := f.orchestrator.GetStatus(context.Background(), batch.ID)
	require.NoError(t, err)
	require.Equal(t, entities.BatchStatusCompleted, report.Status)
	require.NotNil(t, report.CompletedAt)
}

func TestGetStatus_LostPromoteRaceUsesStampedCompletion(t *testing.T) {
	f := newOrchestratorFixture(t)
	profile := testProfile()
	batch := executableBatch(profile, false)
	batch.Status = entities.BatchStatusSubmitted
	batch.Entries[0].Status = entities.OperationStatusPending
	batch.Entries[1].Status = entities.OperationStatusPending

	stamped := time.Now().Add(-time.Minute)
	winner := executableBatch(profile, false)
	winner.ID = batch.ID
	winner.Status = entities.BatchStatusCompleted
	winner.CompletedAt = &stamped

	f.batchRepo.On("GetByID", mock.Anything, batch.ID).Return(batch, nil).Once()
	f.opRepo.On("GetByBatchID", mock.Anything, batch.ID).Return([]*entities.Operation{
		{OperationSetID: "set-a", Status: entities.OperationStatusSuccessful},
		{OperationSetID: "set-b", Status: entities.OperationStatusSuccessful},
	}, nil).Once()
	f.batchRepo.On("Promote", mock.Anything, batch.ID, entities.BatchStatusCompleted, mock.Anything).
		Return(domainerrors.ErrAlreadyProcessed).Once()
	f.batchRepo.On("GetByID", mock.Anything, batch.ID).Return(winner, nil).Once()

	report, err := f.orchestrator.GetStatus(context.Background(), batch.ID)
	require.NoError(t, err)

	// The completion time is the one the winning promoter stamped.
	require.Equal(t, entities.BatchStatusCompleted, report.Status)
	require.Equal(t, &stamped, report.CompletedAt)
}

func TestGetStatus_NonTerminalMembersDoNotPromote(t *testing.T) {
	f := newOrchestratorFixture(t)
	profile := testProfile()
	batch := executableBatch(profile, false)
	batch.Status = entities.BatchStatusSubmitted
	batch.Entries[0].Status = entities.OperationStatusPending
	batch.Entries[1].Status = entities.OperationStatusPending

	f.batchRepo.On("GetByID", mock.Anything, batch.ID).Return(batch, nil).Once()
	f.opRepo.On("GetByBatchID", mock.Anything, batch.ID).Return([]*entities.Operation{
		{OperationSetID: "set-a", Status: entities.OperationStatusSuccessful},
		{OperationSetID: "set-b", Status: entities.OperationStatusPending},
	}, nil).Once()
	f.batchRepo.On("UpdateEntries", mock.Anything, batch.ID, mock.Anything, entities.BatchStatusSubmitted).
		Return(nil).Once()

	report, err := f.orchestrator.GetStatus(context.Background(), batch.ID)
	require.NoError(t, err)

	require.Equal(t, entities.BatchStatusSubmitted, report.Status)
	require.Nil(t, report.CompletedAt)
	f.batchRepo.AssertNotCalled(t, "Promote", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRetryFailedOperations_RetriesOnlyRetryableMembers(t *testing.T) {
	f := newOrchestratorFixture(t)
	profile := testProfile()
	stubSession(f.client, profile, 1)

	batch := &entities.Batch{
		ID:        uuid.New(),
		ProfileID: profile.ID,
		Status:    entities.BatchStatusFailed,
		Entries: []entities.BatchEntry{
			{Index: 0, Type: entities.OperationTypeTransfer, Status: entities.OperationStatusFailed, OperationSetID: "set-a", Error: "insufficient balance"},
			{Index: 1, Type: entities.OperationTypeTransfer, Status: entities.OperationStatusFailed, OperationSetID: "set-b", Error: "invalid recipient"},
			{Index: 2, Type: entities.OperationTypeTransfer, Status: entities.OperationStatusSuccessful, OperationSetID: "set-c"},
		},
	}
	f.batchRepo.On("GetByID", mock.Anything, batch.ID).Return(batch, nil).Once()
	f.opRepo.On("GetByBatchID", mock.Anything, batch.ID).Return([]*entities.Operation{
		{OperationSetID: "set-a", Status: entities.OperationStatusFailed,
			ErrorMessage: null.StringFrom("insufficient balance"),
			Intent:       mustJSON(t, transferEnvelope("100"))},
		{OperationSetID: "set-b", Status: entities.OperationStatusFailed,
			ErrorMessage: null.StringFrom("invalid recipient"),
			Intent:       mustJSON(t, transferEnvelope("200"))},
		{OperationSetID: "set-c", Status: entities.OperationStatusSuccessful,
			Intent: mustJSON(t, transferEnvelope("300"))},
	}, nil).Once()

	f.profileRepo.On("GetByID", mock.Anything, profile.ID).Return(profile, nil).Once()
	f.client.On("BuildTransferOps", mock.Anything, mock.Anything).
		Return(&providers.BuildResult{Status: "success", OperationSetID: "set-retry"}, nil).Once()

	var retried *entities.Operation
	f.opRepo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { retried = args.Get(1).(*entities.Operation) }).
		Return(nil).Once()
	var newBatch *entities.Batch
	f.batchRepo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { newBatch = args.Get(1).(*entities.Batch) }).
		Return(nil).Once()

	result, err := f.orchestrator.RetryFailedOperations(context.Background(), batch.ID, nil)
	require.NoError(t, err)

	// One new best-effort batch carrying only the retryable member.
	require.Equal(t, entities.BatchStatusCreated, result.Status)
	require.Equal(t, 1, result.TotalOperations)
	require.NotEqual(t, batch.ID, result.BatchID)
	require.False(t, newBatch.AtomicExecution)

	require.True(t, retried.Metadata.IsRetry)
	require.Equal(t, batch.ID, *retried.Metadata.OriginalBatchID)
	require.Equal(t, newBatch.ID, *retried.Metadata.BatchID)
	f.client.AssertExpectations(t)
}

func TestRetryFailedOperations_IndicesFilter(t *testing.T) {
	f := newOrchestratorFixture(t)
	profile := testProfile()
	stubSession(f.client, profile, 1)

	batch := &entities.Batch{
		ID:        uuid.New(),
		ProfileID: profile.ID,
		Status:    entities.BatchStatusFailed,
		Entries: []entities.BatchEntry{
			{Index: 0, Status: entities.OperationStatusFailed, OperationSetID: "set-a", Error: "timeout"},
			{Index: 1, Status: entities.OperationStatusFailed, OperationSetID: "set-b", Error: "network error"},
		},
	}
	f.batchRepo.On("GetByID", mock.Anything, batch.ID).Return(batch, nil).Once()
	f.opRepo.On("GetByBatchID", mock.Anything, batch.ID).Return([]*entities.Operation{
		{OperationSetID: "set-a", Status: entities.OperationStatusFailed,
			ErrorMessage: null.StringFrom("timeout"), Intent: mustJSON(t, transferEnvelope("111"))},
		{OperationSetID: "set-b", Status: entities.OperationStatusFailed,
			ErrorMessage: null.StringFrom("network error"), Intent: mustJSON(t, transferEnvelope("222"))},
	}, nil).Once()

	f.profileRepo.On("GetByID", mock.Anything, profile.ID).Return(profile, nil).Once()
	var req *providers.BuildTransferRequest
	f.client.On("BuildTransferOps", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { req = args.Get(1).(*providers.BuildTransferRequest) }).
		Return(&providers.BuildResult{Status: "success", OperationSetID: "set-retry"}, nil).Once()
	f.opRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	f.batchRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := f.orchestrator.RetryFailedOperations(context.Background(), batch.ID, []int{0})
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalOperations)
	require.Equal(t, "111", req.Amount)
}

func TestRetryFailedOperations_NothingRetryable(t *testing.T) {
	f := newOrchestratorFixture(t)
	profile := testProfile()

	batch := &entities.Batch{
		ID:        uuid.New(),
		ProfileID: profile.ID,
		Status:    entities.BatchStatusFailed,
		Entries: []entities.BatchEntry{
			{Index: 0, Status: entities.OperationStatusFailed, OperationSetID: "set-a", Error: "invalid recipient"},
		},
	}
	f.batchRepo.On("GetByID", mock.Anything, batch.ID).Return(batch, nil).Once()
	f.opRepo.On("GetByBatchID", mock.Anything, batch.ID).Return([]*entities.Operation{
		{OperationSetID: "set-a", Status: entities.OperationStatusFailed,
			ErrorMessage: null.StringFrom("invalid recipient"), Intent: mustJSON(t, transferEnvelope("1"))},
	}, nil).Once()

	_, err := f.orchestrator.RetryFailedOperations(context.Background(), batch.ID, nil)
	require.ErrorIs(t, err, domainerrors.ErrValidation)
	f.batchRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestHandlePartialFailure_ClassifiesFailedMembers(t *testing.T) {
	f := newOrchestratorFixture(t)
	batch := &entities.Batch{
		ID:     uuid.New(),
		Status: entities.BatchStatusPartial,
		Entries: []entities.BatchEntry{
			{Index: 0, Status: entities.OperationStatusSuccessful, OperationSetID: "set-a"},
			{Index: 1, Status: entities.OperationStatusFailed, OperationSetID: "set-b", Error: "network error: rpc unreachable"},
			{Index: 2, Status: entities.OperationStatusFailed, OperationSetID: "set-c", Error: "invalid recipient"},
			{Index: 3, Status: entities.OperationStatusFailed, OperationSetID: "set-d", Error: "gas estimation failed"},
		},
	}
	f.batchRepo.On("GetByID", mock.Anything, batch.ID).Return(batch, nil).Once()

	report, err := f.orchestrator.HandlePartialFailure(context.Background(), batch.ID)
	require.NoError(t, err)

	require.Len(t, report.Retryable, 2)
	require.Equal(t, 1, report.Retryable[0].Index)
	require.Equal(t, 3, report.Retryable[1].Index)
	require.Equal(t, entities.FailureClassRetryable, report.Retryable[0].Class)

	require.Len(t, report.Permanent, 1)
	require.Equal(t, 2, report.Permanent[0].Index)
	require.Equal(t, entities.FailureClassPermanent, report.Permanent[0].Class)
}

func TestHandlePartialFailure_UnknownBatch(t *testing.T) {
	f := newOrchestratorFixture(t)
	batchID := uuid.New()
	f.batchRepo.On("GetByID", mock.Anything, batchID).Return(nil, domainerrors.ErrNotFound).Once()

	_, err := f.orchestrator.HandlePartialFailure(context.Background(), batchID)
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}
