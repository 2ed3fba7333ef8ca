package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/concave-dev/trail/internal/batch"
	"github.com/concave-dev/trail/internal/logging"
)

// Client event types emitted after successful writes.
const (
	EventMemberRegistered               = "member-registered"
	EventAssetDefinitionSubmitted       = "asset-definition-submitted"
	EventAssetInstanceSubmitted         = "asset-instance-submitted"
	EventAssetInstancePropertySubmitted = "asset-instance-property-submitted"
	EventPaymentDefinitionSubmitted     = "payment-definition-submitted"
	EventPaymentInstanceSubmitted       = "payment-instance-submitted"
	EventBatchCompleted                 = "batch-completed"
)

// EventListener receives client events after the write that produced them
// has landed. It must not block.
type EventListener func(eventType string, content any)

// Database is the typed query layer over a Provider.
type Database struct {
	provider Provider
	listener EventListener
}

var _ batch.Persistence = (*Database)(nil)

// New wraps provider. listener may be nil.
func New(provider Provider, listener EventListener) *Database {
	if listener == nil {
		listener = func(string, any) {}
	}
	return &Database{provider: provider, listener: listener}
}

// Provider returns the underlying document store.
func (d *Database) Provider() Provider {
	return d.provider
}

// Init prepares the backend and creates the fixed collections.
func (d *Database) Init(ctx context.Context) error {
	if err := d.provider.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	collections := []struct {
		name    string
		indexes []Index
	}{
		{CollectionMembers, []Index{{Fields: []string{"address"}, Unique: true}}},
		{CollectionAssetDefinitions, []Index{
			{Fields: []string{"assetDefinitionID"}, Unique: true},
			{Fields: []string{"name"}, Unique: true},
		}},
		{CollectionPaymentDefinitions, []Index{
			{Fields: []string{"paymentDefinitionID"}, Unique: true},
			{Fields: []string{"name"}, Unique: true},
		}},
		{CollectionPaymentInstances, []Index{{Fields: []string{"paymentInstanceID"}, Unique: true}}},
		{CollectionBatches, []Index{
			{Fields: []string{"batchID"}, Unique: true},
			{Fields: []string{"batchHash"}},
		}},
	}
	for _, c := range collections {
		if err := d.provider.CreateCollection(ctx, c.name, c.indexes); err != nil {
			return err
		}
	}
	logging.Debug("Database: Initialized %d collections", len(collections))
	return nil
}

// Close closes the provider.
func (d *Database) Close() error {
	return d.provider.Close()
}

func findAll[T any](ctx context.Context, p Provider, collection string, q Query, opts FindOptions) ([]*T, error) {
	docs, err := p.Find(ctx, collection, q, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(docs))
	for _, raw := range docs {
		v := new(T)
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, fmt.Errorf("failed to decode %s document: %w", collection, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func findOne[T any](ctx context.Context, p Provider, collection string, q Query) (*T, error) {
	raw, err := p.FindOne(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("failed to decode %s document: %w", collection, err)
	}
	return v, nil
}

// upsert writes v in full as the document matched by q.
func (d *Database) upsert(ctx context.Context, collection string, q Query, v any) error {
	doc, err := toDocument(v)
	if err != nil {
		return err
	}
	return d.provider.UpdateOne(ctx, collection, q, Update(doc), true)
}

// ============================================================================
// MEMBERS
// ============================================================================

// UpsertMember creates or replaces a member.
func (d *Database) UpsertMember(ctx context.Context, m *Member) error {
	if err := d.upsert(ctx, CollectionMembers, Query{"address": m.Address}, m); err != nil {
		return err
	}
	d.listener(EventMemberRegistered, m)
	return nil
}

// RetrieveMemberByAddress returns one member.
func (d *Database) RetrieveMemberByAddress(ctx context.Context, address string) (*Member, error) {
	return findOne[Member](ctx, d.provider, CollectionMembers, Query{"address": address})
}

// RetrieveMembers lists members, optionally only those owned by this node.
func (d *Database) RetrieveMembers(ctx context.Context, ownedOnly bool, skip, limit int) ([]*Member, error) {
	q := Query{}
	if ownedOnly {
		q["owned"] = true
	}
	return findAll[Member](ctx, d.provider, CollectionMembers, q, FindOptions{
		Skip: skip, Limit: limit, Sort: []SortField{{Field: "name"}},
	})
}

// ============================================================================
// ASSET DEFINITIONS
// ============================================================================

// UpsertAssetDefinition creates or replaces a definition and makes sure the
// collection for its instances exists.
func (d *Database) UpsertAssetDefinition(ctx context.Context, def *AssetDefinition) error {
	err := d.upsert(ctx, CollectionAssetDefinitions, Query{"assetDefinitionID": def.AssetDefinitionID}, def)
	if err != nil {
		return err
	}
	err = d.provider.CreateCollection(ctx, AssetInstanceCollection(def.AssetDefinitionID), []Index{
		{Fields: []string{"assetInstanceID"}, Unique: true},
	})
	if err != nil {
		return err
	}
	d.listener(EventAssetDefinitionSubmitted, def)
	return nil
}

// RetrieveAssetDefinitionByID returns one definition.
func (d *Database) RetrieveAssetDefinitionByID(ctx context.Context, id string) (*AssetDefinition, error) {
	return findOne[AssetDefinition](ctx, d.provider, CollectionAssetDefinitions, Query{"assetDefinitionID": id})
}

// RetrieveAssetDefinitionByName returns one definition by its unique name.
func (d *Database) RetrieveAssetDefinitionByName(ctx context.Context, name string) (*AssetDefinition, error) {
	return findOne[AssetDefinition](ctx, d.provider, CollectionAssetDefinitions, Query{"name": name})
}

// RetrieveAssetDefinitions lists definitions, newest first.
func (d *Database) RetrieveAssetDefinitions(ctx context.Context, skip, limit int) ([]*AssetDefinition, error) {
	return findAll[AssetDefinition](ctx, d.provider, CollectionAssetDefinitions, Query{}, FindOptions{
		Skip: skip, Limit: limit, Sort: []SortField{{Field: "created", Descending: true}},
	})
}

// ============================================================================
// ASSET INSTANCES
// ============================================================================

// UpsertAssetInstance creates or replaces an instance.
func (d *Database) UpsertAssetInstance(ctx context.Context, inst *AssetInstance) error {
	coll := AssetInstanceCollection(inst.AssetDefinitionID)
	if err := d.upsert(ctx, coll, Query{"assetInstanceID": inst.AssetInstanceID}, inst); err != nil {
		return err
	}
	d.listener(EventAssetInstanceSubmitted, inst)
	return nil
}

// SetAssetInstanceProperty records author's value for key on an existing
// instance, leaving other authors' and keys' values untouched.
func (d *Database) SetAssetInstanceProperty(ctx context.Context, assetDefinitionID, assetInstanceID, author, key string, value PropertyValue) error {
	coll := AssetInstanceCollection(assetDefinitionID)
	path := fmt.Sprintf("properties.%s.%s", author, key)

	err := d.provider.UpdateOne(ctx, coll, Query{"assetInstanceID": assetInstanceID}, Update{path: value}, false)
	if err != nil {
		return err
	}
	d.listener(EventAssetInstancePropertySubmitted, map[string]any{
		"assetDefinitionID": assetDefinitionID,
		"assetInstanceID":   assetInstanceID,
		"author":            author,
		"key":               key,
		"value":             value.Value,
		"batchID":           value.BatchID,
	})
	return nil
}

// RetrieveAssetInstanceByID returns one instance.
func (d *Database) RetrieveAssetInstanceByID(ctx context.Context, assetDefinitionID, assetInstanceID string) (*AssetInstance, error) {
	return findOne[AssetInstance](ctx, d.provider, AssetInstanceCollection(assetDefinitionID),
		Query{"assetInstanceID": assetInstanceID})
}

// RetrieveAssetInstanceByContentHash returns an instance of the definition
// with the given content hash.
func (d *Database) RetrieveAssetInstanceByContentHash(ctx context.Context, assetDefinitionID, contentHash string) (*AssetInstance, error) {
	return findOne[AssetInstance](ctx, d.provider, AssetInstanceCollection(assetDefinitionID),
		Query{"contentHash": contentHash})
}

// RetrieveAssetInstances lists instances of one definition, newest first.
func (d *Database) RetrieveAssetInstances(ctx context.Context, assetDefinitionID string, skip, limit int) ([]*AssetInstance, error) {
	return findAll[AssetInstance](ctx, d.provider, AssetInstanceCollection(assetDefinitionID), Query{}, FindOptions{
		Skip: skip, Limit: limit, Sort: []SortField{{Field: "created", Descending: true}},
	})
}

// CountAssetInstances counts instances of one definition.
func (d *Database) CountAssetInstances(ctx context.Context, assetDefinitionID string) (int64, error) {
	return d.provider.Count(ctx, AssetInstanceCollection(assetDefinitionID), Query{})
}

// ============================================================================
// PAYMENTS
// ============================================================================

// UpsertPaymentDefinition creates or replaces a payment definition.
func (d *Database) UpsertPaymentDefinition(ctx context.Context, def *PaymentDefinition) error {
	err := d.upsert(ctx, CollectionPaymentDefinitions, Query{"paymentDefinitionID": def.PaymentDefinitionID}, def)
	if err != nil {
		return err
	}
	d.listener(EventPaymentDefinitionSubmitted, def)
	return nil
}

// RetrievePaymentDefinitionByID returns one payment definition.
func (d *Database) RetrievePaymentDefinitionByID(ctx context.Context, id string) (*PaymentDefinition, error) {
	return findOne[PaymentDefinition](ctx, d.provider, CollectionPaymentDefinitions, Query{"paymentDefinitionID": id})
}

// RetrievePaymentDefinitions lists payment definitions, newest first.
func (d *Database) RetrievePaymentDefinitions(ctx context.Context, skip, limit int) ([]*PaymentDefinition, error) {
	return findAll[PaymentDefinition](ctx, d.provider, CollectionPaymentDefinitions, Query{}, FindOptions{
		Skip: skip, Limit: limit, Sort: []SortField{{Field: "created", Descending: true}},
	})
}

// UpsertPaymentInstance creates or replaces a payment.
func (d *Database) UpsertPaymentInstance(ctx context.Context, inst *PaymentInstance) error {
	err := d.upsert(ctx, CollectionPaymentInstances, Query{"paymentInstanceID": inst.PaymentInstanceID}, inst)
	if err != nil {
		return err
	}
	d.listener(EventPaymentInstanceSubmitted, inst)
	return nil
}

// RetrievePaymentInstanceByID returns one payment.
func (d *Database) RetrievePaymentInstanceByID(ctx context.Context, id string) (*PaymentInstance, error) {
	return findOne[PaymentInstance](ctx, d.provider, CollectionPaymentInstances, Query{"paymentInstanceID": id})
}

// RetrievePaymentInstances lists payments, newest first.
func (d *Database) RetrievePaymentInstances(ctx context.Context, skip, limit int) ([]*PaymentInstance, error) {
	return findAll[PaymentInstance](ctx, d.provider, CollectionPaymentInstances, Query{}, FindOptions{
		Skip: skip, Limit: limit, Sort: []SortField{{Field: "created", Descending: true}},
	})
}

// CountPaymentInstances counts payments.
func (d *Database) CountPaymentInstances(ctx context.Context) (int64, error) {
	return d.provider.Count(ctx, CollectionPaymentInstances, Query{})
}

// ============================================================================
// BATCHES
// ============================================================================

// UpsertBatch writes the full batch document, replacing what is stored.
// Replaying the same snapshot, or a superset of it, is harmless. Writing an
// older snapshot over a newer one would drop records, so callers must
// serialize writes per batch; the batching engine coalesces them and only
// ever writes its latest state.
func (d *Database) UpsertBatch(ctx context.Context, b *batch.Batch) error {
	if err := d.upsert(ctx, CollectionBatches, Query{"batchID": b.BatchID}, b); err != nil {
		return err
	}
	if b.IsCompleted() {
		d.listener(EventBatchCompleted, b)
	}
	return nil
}

// RetrievePendingBatches returns batches not yet completed, oldest first.
func (d *Database) RetrievePendingBatches(ctx context.Context) ([]*batch.Batch, error) {
	return findAll[batch.Batch](ctx, d.provider, CollectionBatches, Query{"completed": nil}, FindOptions{
		Sort: []SortField{{Field: "created"}},
	})
}

// RetrieveBatches lists batches matching q, newest first.
func (d *Database) RetrieveBatches(ctx context.Context, q Query, skip, limit int) ([]*batch.Batch, error) {
	if q == nil {
		q = Query{}
	}
	return findAll[batch.Batch](ctx, d.provider, CollectionBatches, q, FindOptions{
		Skip: skip, Limit: limit, Sort: []SortField{{Field: "created", Descending: true}},
	})
}

// RetrieveBatchByID returns one batch.
func (d *Database) RetrieveBatchByID(ctx context.Context, batchID string) (*batch.Batch, error) {
	return findOne[batch.Batch](ctx, d.provider, CollectionBatches, Query{"batchID": batchID})
}

// RetrieveBatchByHash returns the batch submitted with batchHash.
func (d *Database) RetrieveBatchByHash(ctx context.Context, batchHash string) (*batch.Batch, error) {
	return findOne[batch.Batch](ctx, d.provider, CollectionBatches, Query{"batchHash": batchHash})
}

// IsNotFound reports whether err means a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
