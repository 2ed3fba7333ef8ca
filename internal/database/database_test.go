package database

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concave-dev/trail/internal/batch"
)

type capturedEvent struct {
	eventType string
	content   any
}

type eventSink struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (s *eventSink) listen(eventType string, content any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, capturedEvent{eventType, content})
}

func (s *eventSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.eventType
	}
	return out
}

func newTestDatabase(t *testing.T) (*Database, *eventSink) {
	t.Helper()
	sink := &eventSink{}
	db := New(NewMemProvider(), sink.listen)
	require.NoError(t, db.Init(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	return db, sink
}

func TestDatabaseMembers(t *testing.T) {
	ctx := context.Background()
	db, sink := newTestDatabase(t)

	require.NoError(t, db.UpsertMember(ctx, &Member{Address: "0xb", Name: "bravo"}))
	require.NoError(t, db.UpsertMember(ctx, &Member{Address: "0xa", Name: "alpha", Owned: true}))
	require.NoError(t, db.UpsertMember(ctx, &Member{Address: "0xb", Name: "bravo-renamed"}))

	m, err := db.RetrieveMemberByAddress(ctx, "0xb")
	require.NoError(t, err)
	assert.Equal(t, "bravo-renamed", m.Name)

	all, err := db.RetrieveMembers(ctx, false, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name)

	owned, err := db.RetrieveMembers(ctx, true, 0, 0)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "0xa", owned[0].Address)

	_, err = db.RetrieveMemberByAddress(ctx, "0xz")
	assert.True(t, IsNotFound(err))

	assert.Equal(t, []string{EventMemberRegistered, EventMemberRegistered, EventMemberRegistered}, sink.types())
}

func TestDatabaseAssets(t *testing.T) {
	ctx := context.Background()
	db, sink := newTestDatabase(t)

	def := &AssetDefinition{
		AssetDefinitionID: "def-1",
		Author:            "0xa",
		Name:              "widgets",
		ContentSchema:     json.RawMessage(`{"type":"object"}`),
		Created:           time.Now().UTC(),
	}
	require.NoError(t, db.UpsertAssetDefinition(ctx, def))

	dup := *def
	dup.AssetDefinitionID = "def-2"
	assert.ErrorIs(t, db.UpsertAssetDefinition(ctx, &dup), ErrDuplicateKey)

	byName, err := db.RetrieveAssetDefinitionByName(ctx, "widgets")
	require.NoError(t, err)
	assert.Equal(t, "def-1", byName.AssetDefinitionID)
	assert.JSONEq(t, `{"type":"object"}`, string(byName.ContentSchema))

	inst := &AssetInstance{
		AssetInstanceID:   "inst-1",
		AssetDefinitionID: "def-1",
		Author:            "0xa",
		ContentHash:       "0xc0ffee",
		Created:           time.Now().UTC(),
	}
	require.NoError(t, db.UpsertAssetInstance(ctx, inst))

	require.NoError(t, db.SetAssetInstanceProperty(ctx, "def-1", "inst-1", "0xa", "color",
		PropertyValue{Value: "red", BatchID: "b1"}))
	require.NoError(t, db.SetAssetInstanceProperty(ctx, "def-1", "inst-1", "0xb", "color",
		PropertyValue{Value: "blue"}))

	got, err := db.RetrieveAssetInstanceByID(ctx, "def-1", "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "red", got.Properties["0xa"]["color"].Value)
	assert.Equal(t, "b1", got.Properties["0xa"]["color"].BatchID)
	assert.Equal(t, "blue", got.Properties["0xb"]["color"].Value)

	err = db.SetAssetInstanceProperty(ctx, "def-1", "missing", "0xa", "color", PropertyValue{Value: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := db.CountAssetInstances(ctx, "def-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	assert.Equal(t, []string{
		EventAssetDefinitionSubmitted,
		EventAssetInstanceSubmitted,
		EventAssetInstancePropertySubmitted,
		EventAssetInstancePropertySubmitted,
	}, sink.types())
}

func TestDatabasePayments(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDatabase(t)

	base := time.Now().UTC()
	require.NoError(t, db.UpsertPaymentDefinition(ctx, &PaymentDefinition{
		PaymentDefinitionID: "pd-1", Author: "0xa", Name: "invoice", Created: base,
	}))
	for i, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, db.UpsertPaymentInstance(ctx, &PaymentInstance{
			PaymentInstanceID:   id,
			PaymentDefinitionID: "pd-1",
			Author:              "0xa",
			Recipient:           "0xb",
			Amount:              int64(10 * (i + 1)),
			Created:             base.Add(time.Duration(i) * time.Second),
		}))
	}

	def, err := db.RetrievePaymentDefinitionByID(ctx, "pd-1")
	require.NoError(t, err)
	assert.Equal(t, "invoice", def.Name)

	page, err := db.RetrievePaymentInstances(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "p2", page[0].PaymentInstanceID)

	p, err := db.RetrievePaymentInstanceByID(ctx, "p3")
	require.NoError(t, err)
	assert.Equal(t, int64(30), p.Amount)

	count, err := db.CountPaymentInstances(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestDatabaseBatchPersistence(t *testing.T) {
	ctx := context.Background()
	db, sink := newTestDatabase(t)

	created := time.Now().UTC()
	older := &batch.Batch{BatchID: "b-old", Type: "property", Author: "0xa", Created: created.Add(-time.Second),
		Records: []*batch.Record{batch.NewPropertyRecord("def-1", "inst-1", "k", "v")}}
	newer := &batch.Batch{BatchID: "b-new", Type: "property", Author: "0xa", Created: created}
	done := &batch.Batch{BatchID: "b-done", Type: "instance", Author: "0xb", Created: created}

	require.NoError(t, db.UpsertBatch(ctx, newer))
	require.NoError(t, db.UpsertBatch(ctx, older))
	require.NoError(t, db.UpsertBatch(ctx, done))

	completed := time.Now().UTC()
	done.Completed = &completed
	done.BatchHash = "0xhash"
	require.NoError(t, db.UpsertBatch(ctx, done))

	pending, err := db.RetrievePendingBatches(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "b-old", pending[0].BatchID)
	assert.Equal(t, "b-new", pending[1].BatchID)
	require.Len(t, pending[0].Records, 1)
	assert.Equal(t, "v", pending[0].Records[0].Value)

	byHash, err := db.RetrieveBatchByHash(ctx, "0xhash")
	require.NoError(t, err)
	assert.Equal(t, "b-done", byHash.BatchID)
	assert.True(t, byHash.IsCompleted())

	// Rewriting a batch replaces its records rather than adding a document.
	older.Records = append(older.Records, batch.NewPropertyRecord("def-1", "inst-1", "k2", "v2"))
	require.NoError(t, db.UpsertBatch(ctx, older))
	got, err := db.RetrieveBatchByID(ctx, "b-old")
	require.NoError(t, err)
	assert.Len(t, got.Records, 2)

	all, err := db.RetrieveBatches(ctx, nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.Equal(t, []string{EventBatchCompleted}, sink.types())
}
