package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/concave-dev/trail/internal/batch"
	"github.com/concave-dev/trail/internal/logging"
)

// ContentStore pins JSON documents and returns their IPFS hash.
type ContentStore interface {
	UploadJSON(ctx context.Context, v any) (string, error)
}

// BatchSubmitter anchors a pinned batch on-chain and returns the receipt.
type BatchSubmitter interface {
	CreateAssetInstanceBatch(ctx context.Context, author, batchHash string) (string, error)
}

// pinnedBatch is the document written to IPFS for a batch. Dispatch results
// are left out so the hash depends only on the batch contents.
type pinnedBatch struct {
	BatchID string          `json:"batchID"`
	Type    string          `json:"type"`
	Author  string          `json:"author"`
	Created time.Time       `json:"created"`
	Records []*batch.Record `json:"records"`
}

// BatchDispatcher is the dispatch function of the batching engine: it pins
// a batch to IPFS and submits its hash to the gateway.
type BatchDispatcher struct {
	content ContentStore
	chain   BatchSubmitter
	now     func() time.Time
}

// NewBatchDispatcher creates a dispatcher over the given clients.
func NewBatchDispatcher(content ContentStore, chain BatchSubmitter) *BatchDispatcher {
	return &BatchDispatcher{
		content: content,
		chain:   chain,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch uploads and submits b, recording batchHash, receipt and
// submitted on it. A failure leaves b untouched apart from batchHash, so a
// retry submits the same hash.
func (d *BatchDispatcher) Dispatch(ctx context.Context, b *batch.Batch) error {
	ipfsHash, err := d.content.UploadJSON(ctx, &pinnedBatch{
		BatchID: b.BatchID,
		Type:    b.Type,
		Author:  b.Author,
		Created: b.Created,
		Records: b.Records,
	})
	if err != nil {
		return err
	}

	batchHash, err := IPFSHashToSha256(ipfsHash)
	if err != nil {
		return err
	}
	b.BatchHash = batchHash

	receipt, err := d.chain.CreateAssetInstanceBatch(ctx, b.Author, batchHash)
	if err != nil {
		return fmt.Errorf("failed to submit batch %s: %w", b.BatchID, err)
	}

	submitted := d.now()
	b.Receipt = receipt
	b.Submitted = &submitted

	logging.Debug("Dispatch: Batch %s submitted as %s (receipt %s)",
		logging.FormatID(b.BatchID), batchHash, receipt)
	return nil
}

var _ batch.DispatchFunc = (*BatchDispatcher)(nil).Dispatch
