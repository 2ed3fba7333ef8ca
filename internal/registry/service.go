// Package registry is trail's mutation and query service. Definitions,
// members and payments are submitted to the gateway one transaction each;
// asset instances and property updates go through the batching engine.
package registry

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/concave-dev/trail/internal/batch"
	"github.com/concave-dev/trail/internal/database"
	"github.com/concave-dev/trail/internal/dispatch"
	"github.com/concave-dev/trail/internal/logging"
	"github.com/concave-dev/trail/internal/utils"
	"github.com/concave-dev/trail/internal/validate"
)

// Gateway is the subset of dispatch.GatewayClient used for direct
// transactions.
type Gateway interface {
	RegisterMember(ctx context.Context, address, name, app2appDestination, docExchangeDestination string) (string, error)
	CreateAssetDefinition(ctx context.Context, author, assetDefinitionHash string) (string, error)
	CreatePaymentDefinition(ctx context.Context, author, paymentDefinitionID, name, descriptionSchemaHash string) (string, error)
	CreatePaymentInstance(ctx context.Context, author, paymentInstanceID, paymentDefinitionID, recipient string, amount int64, descriptionHash string) (string, error)
}

// Batcher admits records into batches.
type Batcher interface {
	Add(ctx context.Context, author, typ string, rec *batch.Record) (string, error)
}

// Service implements the registry operations.
//
// Members, definitions and payments go straight to the gateway as one
// transaction each. Asset instances and their properties are high volume
// and go through the batching engine instead; the Service only admits them
// and records the pending state locally.
type Service struct {
	db      *database.Database    // Local view of members, assets, payments and batches
	content dispatch.ContentStore // IPFS pinning for definitions and descriptions
	gateway Gateway               // Direct on-chain transactions
	batches Batcher               // Admission for batched records
	now     func() time.Time      // Submission timestamps
}

// NewService wires the service.
//
// db must already be initialized. batches is normally the batch.Manager
// whose Dispatch Port anchors the records this Service admits.
func NewService(db *database.Database, content dispatch.ContentStore, gateway Gateway, batches Batcher) *Service {
	return &Service{
		db:      db,
		content: content,
		gateway: gateway,
		batches: batches,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// hashJSON returns the 0x-prefixed sha256 of the compact form of raw. Key
// order is preserved, so the hash matches what the author serialized.
func hashJSON(raw json.RawMessage) (string, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return "", invalid("invalid JSON: %v", err)
	}
	sum := sha256.Sum256(compact.Bytes())
	return "0x" + hex.EncodeToString(sum[:]), nil
}

// pin uploads v to IPFS and returns its sha256 form.
func (s *Service) pin(ctx context.Context, v any) (string, error) {
	ipfsHash, err := s.content.UploadJSON(ctx, v)
	if err != nil {
		return "", err
	}
	return dispatch.IPFSHashToSha256(ipfsHash)
}

// ============================================================================
// MEMBERS
// ============================================================================

// RegisterMember publishes the member on-chain and records it as owned.
//
// The member document is written only after the gateway accepts the
// transaction, stamped with the submission time and receipt.
func (s *Service) RegisterMember(ctx context.Context, req *RegisterMemberRequest) (*SubmitResult, error) {
	if err := validate.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	receipt, err := s.gateway.RegisterMember(ctx, req.Address, req.Name, req.App2AppDestination, req.DocExchangeDestination)
	if err != nil {
		return nil, err
	}

	submitted := s.now()
	member := &database.Member{
		Address:                req.Address,
		Name:                   req.Name,
		App2AppDestination:     req.App2AppDestination,
		DocExchangeDestination: req.DocExchangeDestination,
		Owned:                  true,
		BlockchainData:         database.BlockchainData{Submitted: &submitted, Receipt: receipt},
	}
	if err := s.db.UpsertMember(ctx, member); err != nil {
		return nil, err
	}

	logging.Info("Registry: Registered member %s (%s)", req.Address, req.Name)
	return &SubmitResult{Status: statusSubmitted, ID: req.Address}, nil
}

// ListMembers lists members.
func (s *Service) ListMembers(ctx context.Context, ownedOnly bool, skip, limit int) ([]*database.Member, error) {
	return s.db.RetrieveMembers(ctx, ownedOnly, skip, limit)
}

// GetMember returns one member.
func (s *Service) GetMember(ctx context.Context, address string) (*database.Member, error) {
	return s.db.RetrieveMemberByAddress(ctx, address)
}

// ============================================================================
// ASSET DEFINITIONS
// ============================================================================

// assetDefinitionDocument is the definition as pinned to IPFS.
type assetDefinitionDocument struct {
	AssetDefinitionID string          `json:"assetDefinitionID"`
	Name              string          `json:"name"`
	IsContentPrivate  bool            `json:"isContentPrivate"`
	IsContentUnique   bool            `json:"isContentUnique"`
	DescriptionSchema json.RawMessage `json:"descriptionSchema,omitempty"`
	ContentSchema     json.RawMessage `json:"contentSchema,omitempty"`
}

// CreateAssetDefinition pins the definition and anchors its hash.
func (s *Service) CreateAssetDefinition(ctx context.Context, req *CreateAssetDefinitionRequest) (*SubmitResult, error) {
	if err := validate.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	for name, schema := range map[string]json.RawMessage{"descriptionSchema": req.DescriptionSchema, "contentSchema": req.ContentSchema} {
		if len(schema) > 0 && !json.Valid(schema) {
			return nil, invalid("%s is not valid JSON", name)
		}
	}

	if _, err := s.db.RetrieveAssetDefinitionByName(ctx, req.Name); err == nil {
		return nil, &ConflictError{Message: fmt.Sprintf("asset definition name %q is already in use", req.Name)}
	} else if !database.IsNotFound(err) {
		return nil, err
	}

	id := utils.GenerateID()
	hash, err := s.pin(ctx, &assetDefinitionDocument{
		AssetDefinitionID: id,
		Name:              req.Name,
		IsContentPrivate:  req.IsContentPrivate,
		IsContentUnique:   req.IsContentUnique,
		DescriptionSchema: req.DescriptionSchema,
		ContentSchema:     req.ContentSchema,
	})
	if err != nil {
		return nil, err
	}

	receipt, err := s.gateway.CreateAssetDefinition(ctx, req.Author, hash)
	if err != nil {
		return nil, err
	}

	submitted := s.now()
	def := &database.AssetDefinition{
		AssetDefinitionID:   id,
		Author:              req.Author,
		Name:                req.Name,
		IsContentPrivate:    req.IsContentPrivate,
		IsContentUnique:     req.IsContentUnique,
		DescriptionSchema:   req.DescriptionSchema,
		ContentSchema:       req.ContentSchema,
		AssetDefinitionHash: hash,
		Created:             submitted,
		BlockchainData:      database.BlockchainData{Submitted: &submitted, Receipt: receipt},
	}
	if err := s.db.UpsertAssetDefinition(ctx, def); err != nil {
		return nil, err
	}

	logging.Info("Registry: Created asset definition %s (%s)", logging.FormatID(id), req.Name)
	return &SubmitResult{Status: statusSubmitted, ID: id}, nil
}

// ListAssetDefinitions lists asset definitions.
func (s *Service) ListAssetDefinitions(ctx context.Context, skip, limit int) ([]*database.AssetDefinition, error) {
	return s.db.RetrieveAssetDefinitions(ctx, skip, limit)
}

// GetAssetDefinition returns one asset definition.
func (s *Service) GetAssetDefinition(ctx context.Context, id string) (*database.AssetDefinition, error) {
	return s.db.RetrieveAssetDefinitionByID(ctx, id)
}

// ============================================================================
// ASSET INSTANCES (batched)
// ============================================================================

// CreateAssetInstance admits an instance record into the author's instance
// batch and stores the instance with the batch ID it was admitted to.
//
// Content and description are hashed in the compact form the author sent.
// For definitions with unique content an existing instance with the same
// content hash is a ConflictError. Private content is hashed but left out of
// the batch record, so only the hash is anchored.
//
// Admission comes first: a record that times out is not stored at all. If
// admission succeeds but the local write fails, the record is still
// anchored with its batch; the error names both IDs and is logged at ERROR.
func (s *Service) CreateAssetInstance(ctx context.Context, req *CreateAssetInstanceRequest) (*SubmitResult, error) {
	if err := validate.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	def, err := s.db.RetrieveAssetDefinitionByID(ctx, req.AssetDefinitionID)
	if err != nil {
		return nil, fmt.Errorf("asset definition %s: %w", req.AssetDefinitionID, err)
	}
	if len(def.DescriptionSchema) > 0 && len(req.Description) == 0 {
		return nil, invalid("asset definition %s requires a description", def.Name)
	}

	contentHash, err := hashJSON(req.Content)
	if err != nil {
		return nil, err
	}
	var descriptionHash string
	if len(req.Description) > 0 {
		if descriptionHash, err = hashJSON(req.Description); err != nil {
			return nil, err
		}
	}

	if def.IsContentUnique {
		_, err := s.db.RetrieveAssetInstanceByContentHash(ctx, def.AssetDefinitionID, contentHash)
		if err == nil {
			return nil, &ConflictError{Message: fmt.Sprintf("asset instance with content hash %s already exists", contentHash)}
		}
		if !database.IsNotFound(err) {
			return nil, err
		}
	}

	id := utils.GenerateID()
	rec := batch.NewInstanceRecord(id, def.AssetDefinitionID, descriptionHash, contentHash)
	rec.IsContentPrivate = def.IsContentPrivate
	rec.Participants = req.Participants
	rec.Description = req.Description
	if !def.IsContentPrivate {
		rec.Content = req.Content
	}

	batchID, err := s.batches.Add(ctx, req.Author, string(batch.RecordTypeInstance), rec)
	if err != nil {
		return nil, err
	}

	submitted := s.now()
	inst := &database.AssetInstance{
		AssetInstanceID:   id,
		AssetDefinitionID: def.AssetDefinitionID,
		Author:            req.Author,
		DescriptionHash:   descriptionHash,
		Description:       req.Description,
		ContentHash:       contentHash,
		Content:           req.Content,
		IsContentPrivate:  def.IsContentPrivate,
		BatchID:           batchID,
		Created:           submitted,
		BlockchainData:    database.BlockchainData{Submitted: &submitted},
	}
	if err := s.db.UpsertAssetInstance(ctx, inst); err != nil {
		// The record is already in batch batchID and will be anchored
		// without a local instance document.
		logging.Error("Registry: Asset instance %s admitted to batch %s but not stored: %v", id, batchID, err)
		return nil, fmt.Errorf("asset instance %s admitted to batch %s but not stored: %w", id, batchID, err)
	}

	logging.Debug("Registry: Asset instance %s admitted to batch %s", logging.FormatID(id), logging.FormatID(batchID))
	return &SubmitResult{Status: statusSubmitted, ID: id, BatchID: batchID}, nil
}

// SetAssetInstanceProperty admits a property record into the author's
// property batch and records the pending value.
//
// Each author holds an independent value per key on an instance. Keys must
// be printable and free of '.' and '$', which the document store treats as
// path syntax. As with instances, a value admitted but not stored is
// logged at ERROR with its batch ID.
func (s *Service) SetAssetInstanceProperty(ctx context.Context, req *SetAssetInstancePropertyRequest) (*SubmitResult, error) {
	if err := validate.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if err := validate.ValidateField(req.Key, "printascii,excludesall=.$"); err != nil {
		return nil, invalid("property key %q must be printable and must not contain '.' or '$'", req.Key)
	}

	if _, err := s.db.RetrieveAssetInstanceByID(ctx, req.AssetDefinitionID, req.AssetInstanceID); err != nil {
		return nil, fmt.Errorf("asset instance %s: %w", req.AssetInstanceID, err)
	}

	rec := batch.NewPropertyRecord(req.AssetDefinitionID, req.AssetInstanceID, req.Key, req.Value)
	batchID, err := s.batches.Add(ctx, req.Author, string(batch.RecordTypeProperty), rec)
	if err != nil {
		return nil, err
	}

	submitted := s.now()
	err = s.db.SetAssetInstanceProperty(ctx, req.AssetDefinitionID, req.AssetInstanceID, req.Author, req.Key,
		database.PropertyValue{Value: req.Value, BatchID: batchID, Submitted: &submitted})
	if err != nil {
		logging.Error("Registry: Property %s of asset instance %s admitted to batch %s but not stored: %v",
			req.Key, req.AssetInstanceID, batchID, err)
		return nil, fmt.Errorf("property %s of asset instance %s admitted to batch %s but not stored: %w",
			req.Key, req.AssetInstanceID, batchID, err)
	}
	return &SubmitResult{Status: statusSubmitted, ID: req.AssetInstanceID, BatchID: batchID}, nil
}

// ListAssetInstances lists instances of one definition.
func (s *Service) ListAssetInstances(ctx context.Context, assetDefinitionID string, skip, limit int) ([]*database.AssetInstance, error) {
	if _, err := s.db.RetrieveAssetDefinitionByID(ctx, assetDefinitionID); err != nil {
		return nil, fmt.Errorf("asset definition %s: %w", assetDefinitionID, err)
	}
	return s.db.RetrieveAssetInstances(ctx, assetDefinitionID, skip, limit)
}

// GetAssetInstance returns one instance.
func (s *Service) GetAssetInstance(ctx context.Context, assetDefinitionID, assetInstanceID string) (*database.AssetInstance, error) {
	return s.db.RetrieveAssetInstanceByID(ctx, assetDefinitionID, assetInstanceID)
}

// ============================================================================
// PAYMENTS
// ============================================================================

// CreatePaymentDefinition pins the optional description schema and anchors
// the definition.
func (s *Service) CreatePaymentDefinition(ctx context.Context, req *CreatePaymentDefinitionRequest) (*SubmitResult, error) {
	if err := validate.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if len(req.DescriptionSchema) > 0 && !json.Valid(req.DescriptionSchema) {
		return nil, invalid("descriptionSchema is not valid JSON")
	}

	id := utils.GenerateID()
	var schemaHash string
	if len(req.DescriptionSchema) > 0 {
		var err error
		if schemaHash, err = s.pin(ctx, req.DescriptionSchema); err != nil {
			return nil, err
		}
	}

	receipt, err := s.gateway.CreatePaymentDefinition(ctx, req.Author, id, req.Name, schemaHash)
	if err != nil {
		return nil, err
	}

	submitted := s.now()
	def := &database.PaymentDefinition{
		PaymentDefinitionID:   id,
		Author:                req.Author,
		Name:                  req.Name,
		DescriptionSchema:     req.DescriptionSchema,
		DescriptionSchemaHash: schemaHash,
		Created:               submitted,
		BlockchainData:        database.BlockchainData{Submitted: &submitted, Receipt: receipt},
	}
	if err := s.db.UpsertPaymentDefinition(ctx, def); err != nil {
		if errors.Is(err, database.ErrDuplicateKey) {
			return nil, &ConflictError{Message: fmt.Sprintf("payment definition name %q is already in use", req.Name)}
		}
		return nil, err
	}

	logging.Info("Registry: Created payment definition %s (%s)", logging.FormatID(id), req.Name)
	return &SubmitResult{Status: statusSubmitted, ID: id}, nil
}

// CreatePaymentInstance anchors a payment against an existing definition.
func (s *Service) CreatePaymentInstance(ctx context.Context, req *CreatePaymentInstanceRequest) (*SubmitResult, error) {
	if err := validate.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	def, err := s.db.RetrievePaymentDefinitionByID(ctx, req.PaymentDefinitionID)
	if err != nil {
		return nil, fmt.Errorf("payment definition %s: %w", req.PaymentDefinitionID, err)
	}
	if _, err := s.db.RetrieveMemberByAddress(ctx, req.Recipient); err != nil {
		return nil, fmt.Errorf("recipient %s: %w", req.Recipient, err)
	}
	if len(def.DescriptionSchema) > 0 && len(req.Description) == 0 {
		return nil, invalid("payment definition %s requires a description", def.Name)
	}

	var descriptionHash string
	if len(req.Description) > 0 {
		if descriptionHash, err = hashJSON(req.Description); err != nil {
			return nil, err
		}
	}

	id := utils.GenerateID()
	receipt, err := s.gateway.CreatePaymentInstance(ctx, req.Author, id, def.PaymentDefinitionID, req.Recipient, req.Amount, descriptionHash)
	if err != nil {
		return nil, err
	}

	submitted := s.now()
	inst := &database.PaymentInstance{
		PaymentInstanceID:   id,
		PaymentDefinitionID: def.PaymentDefinitionID,
		Author:              req.Author,
		Recipient:           req.Recipient,
		Amount:              req.Amount,
		DescriptionHash:     descriptionHash,
		Description:         req.Description,
		Created:             submitted,
		BlockchainData:      database.BlockchainData{Submitted: &submitted, Receipt: receipt},
	}
	if err := s.db.UpsertPaymentInstance(ctx, inst); err != nil {
		return nil, err
	}
	return &SubmitResult{Status: statusSubmitted, ID: id}, nil
}

// ListPaymentDefinitions lists payment definitions.
func (s *Service) ListPaymentDefinitions(ctx context.Context, skip, limit int) ([]*database.PaymentDefinition, error) {
	return s.db.RetrievePaymentDefinitions(ctx, skip, limit)
}

// GetPaymentDefinition returns one payment definition.
func (s *Service) GetPaymentDefinition(ctx context.Context, id string) (*database.PaymentDefinition, error) {
	return s.db.RetrievePaymentDefinitionByID(ctx, id)
}

// ListPaymentInstances lists payments.
func (s *Service) ListPaymentInstances(ctx context.Context, skip, limit int) ([]*database.PaymentInstance, error) {
	return s.db.RetrievePaymentInstances(ctx, skip, limit)
}

// GetPaymentInstance returns one payment.
func (s *Service) GetPaymentInstance(ctx context.Context, id string) (*database.PaymentInstance, error) {
	return s.db.RetrievePaymentInstanceByID(ctx, id)
}

// ============================================================================
// BATCHES
// ============================================================================

// BatchFilter narrows ListBatches.
type BatchFilter struct {
	Author      string
	Type        string
	PendingOnly bool
}

// ListBatches lists batches, newest first.
func (s *Service) ListBatches(ctx context.Context, f BatchFilter, skip, limit int) ([]*batch.Batch, error) {
	q := database.Query{}
	if f.Author != "" {
		q["author"] = f.Author
	}
	if f.Type != "" {
		q["type"] = f.Type
	}
	if f.PendingOnly {
		q["completed"] = nil
	}
	return s.db.RetrieveBatches(ctx, q, skip, limit)
}

// GetBatch returns one batch. Batch IDs are UUIDs; anything else is a
// ValidationError rather than a lookup miss.
func (s *Service) GetBatch(ctx context.Context, batchID string) (*batch.Batch, error) {
	if !utils.IsValidID(batchID) {
		return nil, invalid("invalid batch ID '%s'", batchID)
	}
	return s.db.RetrieveBatchByID(ctx, batchID)
}

// GetBatchByHash returns the batch submitted under batchHash.
func (s *Service) GetBatchByHash(ctx context.Context, batchHash string) (*batch.Batch, error) {
	if err := validate.ContentHash(batchHash); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	return s.db.RetrieveBatchByHash(ctx, batchHash)
}
