// Package batch implements trail's batch accumulation and dispatch engine.
//
// High-frequency asset mutations (instance creation and property updates) are
// not submitted as one blockchain transaction each. Instead every record for
// the same (author, type) pair is accumulated into a Batch which is persisted
// as it grows and flushed as a single transaction once it is full or its
// timers expire.
//
// COMPONENTS:
//   - Processor: owns the open batch for one key, its timers, coalesced
//     persistence writes and the in-order dispatch loop
//   - Manager: the registry of active processors, recovery of unfinished
//     batches at startup and retirement of idle processors
//
// BATCH LIFECYCLE:
//
//	OPEN -> CLOSING -> DISPATCHING -> COMPLETED
//
// DISPATCHING loops on failure with exponential backoff and never gives up.
// A batch leaves the "needs dispatch" set only once its completed timestamp
// has been persisted, so every accepted record eventually reaches the chain,
// across restarts included.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RecordType discriminates the variants of Record.
type RecordType string

const (
	// RecordTypeInstance creates an asset instance.
	RecordTypeInstance RecordType = "instance"

	// RecordTypeProperty sets a property on an existing asset instance.
	RecordTypeProperty RecordType = "property"
)

// Record is one mutation awaiting batching. The RecordType discriminator
// selects which fields are meaningful:
//
//	instance: ID, AssetDefinitionID, DescriptionHash, ContentHash, IsContentPrivate, Participants,
//	          Description and Content (public content travels with the batch)
//	property: AssetDefinitionID, AssetInstanceID, Key, Value
//
// Records are immutable once appended to a batch.
type Record struct {
	RecordType        RecordType      `json:"recordType"`
	ID                string          `json:"id,omitempty"`
	AssetDefinitionID string          `json:"assetDefinitionID,omitempty"`
	AssetInstanceID   string          `json:"assetInstanceID,omitempty"`
	DescriptionHash   string          `json:"descriptionHash,omitempty"`
	ContentHash       string          `json:"contentHash,omitempty"`
	IsContentPrivate  bool            `json:"isContentPrivate,omitempty"`
	Participants      []string        `json:"participants,omitempty"`
	Description       json.RawMessage `json:"description,omitempty"`
	Content           json.RawMessage `json:"content,omitempty"`
	Key               string          `json:"key,omitempty"`
	Value             string          `json:"value,omitempty"`
}

// NewInstanceRecord builds an instance record.
func NewInstanceRecord(id, assetDefinitionID, descriptionHash, contentHash string) *Record {
	return &Record{
		RecordType:        RecordTypeInstance,
		ID:                id,
		AssetDefinitionID: assetDefinitionID,
		DescriptionHash:   descriptionHash,
		ContentHash:       contentHash,
	}
}

// NewPropertyRecord builds a property record.
func NewPropertyRecord(assetDefinitionID, assetInstanceID, key, value string) *Record {
	return &Record{
		RecordType:        RecordTypeProperty,
		AssetDefinitionID: assetDefinitionID,
		AssetInstanceID:   assetInstanceID,
		Key:               key,
		Value:             value,
	}
}

// Validate rejects unknown discriminators and records missing the fields
// their variant requires.
func (r *Record) Validate() error {
	if r == nil {
		return &InvalidRecordError{Reason: "record is nil"}
	}

	switch r.RecordType {
	case RecordTypeInstance:
		if r.ID == "" {
			return &InvalidRecordError{RecordType: r.RecordType, Reason: "id is required"}
		}
		if r.Key != "" || r.Value != "" {
			return &InvalidRecordError{RecordType: r.RecordType, Reason: "key/value are only valid on property records"}
		}
	case RecordTypeProperty:
		if r.Key == "" {
			return &InvalidRecordError{RecordType: r.RecordType, Reason: "key is required"}
		}
		if r.AssetInstanceID == "" {
			return &InvalidRecordError{RecordType: r.RecordType, Reason: "assetInstanceID is required"}
		}
		if r.ID != "" {
			return &InvalidRecordError{RecordType: r.RecordType, Reason: "id is only valid on instance records"}
		}
	default:
		return &InvalidRecordError{RecordType: r.RecordType, Reason: "unknown record type"}
	}
	return nil
}

// Batch is the unit of durable and transactional state: an ordered group of
// records from one author and type, submitted as one transaction.
type Batch struct {
	BatchID   string     `json:"batchID"`
	Type      string     `json:"type"`
	Author    string     `json:"author"`
	Created   time.Time  `json:"created"`
	Completed *time.Time `json:"completed"`
	Records   []*Record  `json:"records"`

	// Set by the dispatcher when the batch is submitted.
	BatchHash string     `json:"batchHash,omitempty"`
	Receipt   string     `json:"receipt,omitempty"`
	Submitted *time.Time `json:"submitted,omitempty"`

	// Set once the transaction is confirmed on-chain.
	TransactionHash string `json:"transactionHash,omitempty"`
	BlockNumber     int64  `json:"blockNumber,omitempty"`
	Timestamp       int64  `json:"timestamp,omitempty"`
}

// Key returns the (author, type) partition key of the batch.
func (b *Batch) Key() Key {
	return Key{Author: b.Author, Type: b.Type}
}

// IsCompleted reports whether dispatch has succeeded.
func (b *Batch) IsCompleted() bool {
	return b.Completed != nil
}

// snapshot copies the batch so a persistence write or dispatch can run
// outside the processor lock while records keep arriving.
func (b *Batch) snapshot() *Batch {
	cp := *b
	cp.Records = make([]*Record, len(b.Records))
	copy(cp.Records, b.Records)
	return &cp
}

// Key identifies a batch partition.
type Key struct {
	Author string
	Type   string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Author, k.Type)
}

// Persistence is the durable store that backs batch state.
type Persistence interface {
	// UpsertBatch writes the full batch document keyed by BatchID. Writes
	// must be idempotent: replaying a superset of records is harmless.
	UpsertBatch(ctx context.Context, b *Batch) error

	// RetrievePendingBatches returns batches whose completed field is null,
	// oldest first.
	RetrievePendingBatches(ctx context.Context) ([]*Batch, error)
}

// DispatchFunc submits a closed batch downstream. It may set dispatch result
// fields (BatchHash, Receipt, Submitted) on the batch; they are persisted with
// the completion write.
type DispatchFunc func(ctx context.Context, b *Batch) error

// CompleteFunc is called when a processor has drained all of its batches.
type CompleteFunc func(p *Processor)
