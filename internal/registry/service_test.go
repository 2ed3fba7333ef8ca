package registry

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/concave-dev/trail/internal/batch"
	"github.com/concave-dev/trail/internal/database"
	"github.com/concave-dev/trail/internal/logging"
)

const (
	author    = "0x0000000000000000000000000000000000000001"
	recipient = "0x0000000000000000000000000000000000000002"

	// IPFS hash of the sha256 of the empty string.
	pinnedHash   = "QmdfTbBqBPQ7VNxZEYEj14VmRuZBkqFbiwReogJgS1zR1n"
	pinnedSha256 = "0xe3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) RegisterMember(ctx context.Context, address, name, app2app, docExchange string) (string, error) {
	args := m.Called(ctx, address, name, app2app, docExchange)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CreateAssetDefinition(ctx context.Context, author, hash string) (string, error) {
	args := m.Called(ctx, author, hash)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CreatePaymentDefinition(ctx context.Context, author, id, name, schemaHash string) (string, error) {
	args := m.Called(ctx, author, id, name, schemaHash)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CreatePaymentInstance(ctx context.Context, author, id, defID, recipient string, amount int64, descHash string) (string, error) {
	args := m.Called(ctx, author, id, defID, recipient, amount, descHash)
	return args.String(0), args.Error(1)
}

type fakeContent struct {
	mu      sync.Mutex
	pinned  []any
	failure error
}

func (f *fakeContent) UploadJSON(ctx context.Context, v any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failure != nil {
		return "", f.failure
	}
	f.pinned = append(f.pinned, v)
	return pinnedHash, nil
}

type fixture struct {
	svc      *Service
	db       *database.Database
	gateway  *mockGateway
	content  *fakeContent
	manager  *batch.Manager
	dispatch *dispatchRecorder
}

type dispatchRecorder struct {
	mu      sync.Mutex
	batches []*batch.Batch
}

func (r *dispatchRecorder) dispatch(ctx context.Context, b *batch.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.batches = append(r.batches, &cp)
	b.BatchHash = pinnedSha256
	b.Receipt = "batch-receipt"
	return nil
}

func (r *dispatchRecorder) all() []*batch.Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*batch.Batch(nil), r.batches...)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db := database.New(database.NewMemProvider(), nil)
	require.NoError(t, db.Init(ctx))

	cfg := batch.DefaultConfig()
	cfg.BatchMaxRecords = 1
	cfg.RetryInitialDelayMs = 1

	rec := &dispatchRecorder{}
	manager := batch.NewManager(db, rec.dispatch, cfg)
	require.NoError(t, manager.Start(ctx))
	t.Cleanup(func() {
		manager.Stop()
		_ = db.Close()
	})

	f := &fixture{
		db:       db,
		gateway:  &mockGateway{},
		content:  &fakeContent{},
		manager:  manager,
		dispatch: rec,
	}
	f.svc = NewService(db, f.content, f.gateway, manager)
	return f
}

func (f *fixture) assetDefinition(t *testing.T, req *CreateAssetDefinitionRequest) string {
	t.Helper()
	f.gateway.On("CreateAssetDefinition", mock.Anything, req.Author, pinnedSha256).Return("def-receipt", nil).Once()
	res, err := f.svc.CreateAssetDefinition(context.Background(), req)
	require.NoError(t, err)
	return res.ID
}

func TestRegisterMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.gateway.On("RegisterMember", mock.Anything, author, "node-1", "app2app://1", "docexchange://1").
		Return("member-receipt", nil).Once()

	res, err := f.svc.RegisterMember(ctx, &RegisterMemberRequest{
		Address:                author,
		Name:                   "node-1",
		App2AppDestination:     "app2app://1",
		DocExchangeDestination: "docexchange://1",
	})
	require.NoError(t, err)
	assert.Equal(t, "submitted", res.Status)
	f.gateway.AssertExpectations(t)

	m, err := f.svc.GetMember(ctx, author)
	require.NoError(t, err)
	assert.True(t, m.Owned)
	assert.Equal(t, "member-receipt", m.Receipt)
	assert.NotNil(t, m.Submitted)
}

func TestRegisterMemberValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RegisterMember(context.Background(), &RegisterMemberRequest{Address: "0x01", Name: "x"})
	assert.True(t, IsValidation(err))
	f.gateway.AssertNotCalled(t, "RegisterMember", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterMemberGatewayFailure(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("RegisterMember", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("gateway down"))

	_, err := f.svc.RegisterMember(context.Background(), &RegisterMemberRequest{Address: author, Name: "n"})
	require.Error(t, err)

	_, err = f.svc.GetMember(context.Background(), author)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestCreateAssetDefinition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.assetDefinition(t, &CreateAssetDefinitionRequest{
		Author:        author,
		Name:          "widgets",
		ContentSchema: json.RawMessage(`{"type":"object"}`),
	})

	def, err := f.svc.GetAssetDefinition(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "widgets", def.Name)
	assert.Equal(t, pinnedSha256, def.AssetDefinitionHash)
	assert.Equal(t, "def-receipt", def.Receipt)

	require.Len(t, f.content.pinned, 1)
	pinned := f.content.pinned[0].(*assetDefinitionDocument)
	assert.Equal(t, id, pinned.AssetDefinitionID)

	_, err = f.svc.CreateAssetDefinition(ctx, &CreateAssetDefinitionRequest{Author: author, Name: "widgets"})
	assert.True(t, IsConflict(err))

	_, err = f.svc.CreateAssetDefinition(ctx, &CreateAssetDefinitionRequest{
		Author: author, Name: "broken", ContentSchema: json.RawMessage(`{`),
	})
	assert.True(t, IsValidation(err))

	defs, err := f.svc.ListAssetDefinitions(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}

func TestCreateAssetInstanceIsBatched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	defID := f.assetDefinition(t, &CreateAssetDefinitionRequest{Author: author, Name: "public"})

	content := json.RawMessage(`{"serial": "A-1",  "weight": 3}`)
	res, err := f.svc.CreateAssetInstance(ctx, &CreateAssetInstanceRequest{
		Author:            author,
		AssetDefinitionID: defID,
		Content:           content,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.BatchID)

	inst, err := f.svc.GetAssetInstance(ctx, defID, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.BatchID, inst.BatchID)
	sum := sha256.Sum256([]byte(`{"serial":"A-1","weight":3}`))
	assert.Equal(t, "0x"+hex.EncodeToString(sum[:]), inst.ContentHash)

	assert.Eventually(t, func() bool {
		b, err := f.svc.GetBatch(ctx, res.BatchID)
		return err == nil && b.IsCompleted()
	}, time.Second, time.Millisecond)

	b, err := f.svc.GetBatchByHash(ctx, pinnedSha256)
	require.NoError(t, err)
	assert.Equal(t, res.BatchID, b.BatchID)
	assert.Equal(t, "batch-receipt", b.Receipt)

	dispatched := f.dispatch.all()
	require.Len(t, dispatched, 1)
	require.Len(t, dispatched[0].Records, 1)
	assert.Equal(t, res.ID, dispatched[0].Records[0].ID)
	assert.JSONEq(t, string(content), string(dispatched[0].Records[0].Content), "public content travels with the batch")
}

func TestCreateAssetInstancePrivateContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	defID := f.assetDefinition(t, &CreateAssetDefinitionRequest{Author: author, Name: "private", IsContentPrivate: true})

	_, err := f.svc.CreateAssetInstance(ctx, &CreateAssetInstanceRequest{
		Author: author, AssetDefinitionID: defID, Content: json.RawMessage(`{"secret":true}`),
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(f.dispatch.all()) == 1 }, time.Second, time.Millisecond)
	rec := f.dispatch.all()[0].Records[0]
	assert.True(t, rec.IsContentPrivate)
	assert.Empty(t, rec.Content)
}

func TestCreateAssetInstanceUniqueContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	defID := f.assetDefinition(t, &CreateAssetDefinitionRequest{Author: author, Name: "unique", IsContentUnique: true})

	req := &CreateAssetInstanceRequest{Author: author, AssetDefinitionID: defID, Content: json.RawMessage(`{"a":1}`)}
	_, err := f.svc.CreateAssetInstance(ctx, req)
	require.NoError(t, err)

	_, err = f.svc.CreateAssetInstance(ctx, req)
	assert.True(t, IsConflict(err))
}

func TestCreateAssetInstanceErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	defID := f.assetDefinition(t, &CreateAssetDefinitionRequest{
		Author: author, Name: "described", DescriptionSchema: json.RawMessage(`{"type":"object"}`),
	})

	_, err := f.svc.CreateAssetInstance(ctx, &CreateAssetInstanceRequest{
		Author: author, AssetDefinitionID: "missing", Content: json.RawMessage(`{}`),
	})
	assert.ErrorIs(t, err, database.ErrNotFound)

	_, err = f.svc.CreateAssetInstance(ctx, &CreateAssetInstanceRequest{
		Author: author, AssetDefinitionID: defID, Content: json.RawMessage(`{}`),
	})
	assert.True(t, IsValidation(err), "description is required by the definition")

	_, err = f.svc.CreateAssetInstance(ctx, &CreateAssetInstanceRequest{
		Author: author, AssetDefinitionID: defID, Description: json.RawMessage(`{}`), Content: json.RawMessage(`{bad`),
	})
	assert.True(t, IsValidation(err))

	_, err = f.svc.CreateAssetInstance(ctx, &CreateAssetInstanceRequest{Author: author, AssetDefinitionID: defID})
	assert.True(t, IsValidation(err))
}

type stubBatcher struct {
	batchID string
	err     error
}

func (s stubBatcher) Add(ctx context.Context, author, typ string, rec *batch.Record) (string, error) {
	return s.batchID, s.err
}

// failingInstanceStore rejects asset instance writes once fail is set.
type failingInstanceStore struct {
	database.Provider
	fail atomic.Bool
}

func (s *failingInstanceStore) UpdateOne(ctx context.Context, collection string, query database.Query, update database.Update, upsert bool) error {
	if s.fail.Load() && strings.HasPrefix(collection, database.AssetInstanceCollection("")) {
		return errors.New("disk full")
	}
	return s.Provider.UpdateOne(ctx, collection, query, update, upsert)
}

func TestCreateAssetInstanceAdmissionTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	defID := f.assetDefinition(t, &CreateAssetDefinitionRequest{Author: author, Name: "busy"})

	timeout := &batch.AdmissionTimeoutError{Author: author, Type: "instance", Timeout: time.Second}
	svc := NewService(f.db, f.content, f.gateway, stubBatcher{err: timeout})

	_, err := svc.CreateAssetInstance(ctx, &CreateAssetInstanceRequest{
		Author: author, AssetDefinitionID: defID, Content: json.RawMessage(`{}`),
	})
	assert.True(t, batch.IsAdmissionTimeout(err))

	count, err := f.db.CountAssetInstances(ctx, defID)
	require.NoError(t, err)
	assert.Zero(t, count, "nothing is stored for a record that was not admitted")
}

func TestAdmittedRecordNotStoredIsReported(t *testing.T) {
	ctx := context.Background()
	store := &failingInstanceStore{Provider: database.NewMemProvider()}
	db := database.New(store, nil)
	require.NoError(t, db.Init(ctx))
	defer db.Close()

	f := &fixture{db: db, gateway: &mockGateway{}, content: &fakeContent{}}
	f.svc = NewService(db, f.content, f.gateway, stubBatcher{batchID: "batch-1"})
	defID := f.assetDefinition(t, &CreateAssetDefinitionRequest{Author: author, Name: "ledger"})

	stored, err := f.svc.CreateAssetInstance(ctx, &CreateAssetInstanceRequest{
		Author: author, AssetDefinitionID: defID, Content: json.RawMessage(`{"n":1}`),
	})
	require.NoError(t, err)

	var logs bytes.Buffer
	logging.SetOutput(&logs)
	defer logging.RestoreOutput()
	store.fail.Store(true)

	_, err = f.svc.CreateAssetInstance(ctx, &CreateAssetInstanceRequest{
		Author: author, AssetDefinitionID: defID, Content: json.RawMessage(`{"n":2}`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admitted to batch batch-1 but not stored")
	assert.Contains(t, logs.String(), "admitted to batch batch-1 but not stored")

	logs.Reset()
	_, err = f.svc.SetAssetInstanceProperty(ctx, &SetAssetInstancePropertyRequest{
		Author: author, AssetDefinitionID: defID, AssetInstanceID: stored.ID, Key: "owner", Value: "bob",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "asset instance "+stored.ID+" admitted to batch batch-1")
	assert.Contains(t, logs.String(), stored.ID)
	assert.Contains(t, logs.String(), "batch-1")
}

func TestSetAssetInstanceProperty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	defID := f.assetDefinition(t, &CreateAssetDefinitionRequest{Author: author, Name: "props"})

	created, err := f.svc.CreateAssetInstance(ctx, &CreateAssetInstanceRequest{
		Author: author, AssetDefinitionID: defID, Content: json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	res, err := f.svc.SetAssetInstanceProperty(ctx, &SetAssetInstancePropertyRequest{
		Author: recipient, AssetDefinitionID: defID, AssetInstanceID: created.ID, Key: "color", Value: "red",
	})
	require.NoError(t, err)
	assert.NotEqual(t, created.BatchID, res.BatchID)

	inst, err := f.svc.GetAssetInstance(ctx, defID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "red", inst.Properties[recipient]["color"].Value)
	assert.Equal(t, res.BatchID, inst.Properties[recipient]["color"].BatchID)

	_, err = f.svc.SetAssetInstanceProperty(ctx, &SetAssetInstancePropertyRequest{
		Author: author, AssetDefinitionID: defID, AssetInstanceID: created.ID, Key: "a.b", Value: "x",
	})
	assert.True(t, IsValidation(err))

	_, err = f.svc.SetAssetInstanceProperty(ctx, &SetAssetInstancePropertyRequest{
		Author: author, AssetDefinitionID: defID, AssetInstanceID: "missing", Key: "k", Value: "x",
	})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.gateway.On("RegisterMember", mock.Anything, recipient, "bob", "", "").Return("r", nil)
	_, err := f.svc.RegisterMember(ctx, &RegisterMemberRequest{Address: recipient, Name: "bob"})
	require.NoError(t, err)

	f.gateway.On("CreatePaymentDefinition", mock.Anything, author, mock.Anything, "invoice", "").
		Return("pd-receipt", nil).Once()
	def, err := f.svc.CreatePaymentDefinition(ctx, &CreatePaymentDefinitionRequest{Author: author, Name: "invoice"})
	require.NoError(t, err)

	f.gateway.On("CreatePaymentInstance", mock.Anything, author, mock.Anything, def.ID, recipient, int64(50), mock.Anything).
		Return("pi-receipt", nil).Once()
	pay, err := f.svc.CreatePaymentInstance(ctx, &CreatePaymentInstanceRequest{
		Author:              author,
		PaymentDefinitionID: def.ID,
		Recipient:           recipient,
		Amount:              50,
		Description:         json.RawMessage(`{"ref":"INV-1"}`),
	})
	require.NoError(t, err)
	f.gateway.AssertExpectations(t)

	got, err := f.svc.GetPaymentInstance(ctx, pay.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.Amount)
	assert.Equal(t, "pi-receipt", got.Receipt)
	assert.NotEmpty(t, got.DescriptionHash)

	_, err = f.svc.CreatePaymentInstance(ctx, &CreatePaymentInstanceRequest{
		Author: author, PaymentDefinitionID: def.ID, Recipient: "0x0000000000000000000000000000000000000009", Amount: 1,
	})
	assert.ErrorIs(t, err, database.ErrNotFound)

	_, err = f.svc.CreatePaymentInstance(ctx, &CreatePaymentInstanceRequest{
		Author: author, PaymentDefinitionID: def.ID, Recipient: author, Amount: 1,
	})
	assert.True(t, IsValidation(err), "paying yourself is rejected")

	_, err = f.svc.CreatePaymentInstance(ctx, &CreatePaymentInstanceRequest{
		Author: author, PaymentDefinitionID: def.ID, Recipient: recipient, Amount: 0,
	})
	assert.True(t, IsValidation(err))

	defs, err := f.svc.ListPaymentDefinitions(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}

func TestListBatchesFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	defID := f.assetDefinition(t, &CreateAssetDefinitionRequest{Author: author, Name: "listing"})

	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateAssetInstance(ctx, &CreateAssetInstanceRequest{
			Author: author, AssetDefinitionID: defID, Content: json.RawMessage(`{}`),
		})
		require.NoError(t, err)
	}
	assert.Eventually(t, func() bool { return len(f.dispatch.all()) == 3 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool {
		pending, err := f.svc.ListBatches(ctx, BatchFilter{PendingOnly: true}, 0, 0)
		return err == nil && len(pending) == 0
	}, time.Second, time.Millisecond)

	all, err := f.svc.ListBatches(ctx, BatchFilter{Author: author, Type: "instance"}, 0, 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := f.svc.ListBatches(ctx, BatchFilter{Type: "property"}, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.svc.GetBatchByHash(ctx, "not-a-hash")
	assert.True(t, IsValidation(err))
}
