package database

import (
	"encoding/json"
	"time"
)

// Collection names.
const (
	CollectionMembers            = "members"
	CollectionAssetDefinitions   = "asset-definitions"
	CollectionPaymentDefinitions = "payment-definitions"
	CollectionPaymentInstances   = "payment-instances"
	CollectionBatches            = "batches"
	assetInstancePrefix          = "asset-instance-"
)

// AssetInstanceCollection returns the collection holding instances of one
// asset definition.
func AssetInstanceCollection(assetDefinitionID string) string {
	return assetInstancePrefix + assetDefinitionID
}

// BlockchainData tracks a document's submission and confirmation on-chain.
type BlockchainData struct {
	Submitted       *time.Time `json:"submitted,omitempty"`
	Receipt         string     `json:"receipt,omitempty"`
	TransactionHash string     `json:"transactionHash,omitempty"`
	BlockNumber     int64      `json:"blockNumber,omitempty"`
	Timestamp       int64      `json:"timestamp,omitempty"`
}

// Member is a registered participant identified by its account address.
type Member struct {
	Address                string `json:"address"`
	Name                   string `json:"name"`
	App2AppDestination     string `json:"app2appDestination,omitempty"`
	DocExchangeDestination string `json:"docExchangeDestination,omitempty"`
	Owned                  bool   `json:"owned"`
	BlockchainData
}

// AssetDefinition describes a class of assets and their schemas.
type AssetDefinition struct {
	AssetDefinitionID string          `json:"assetDefinitionID"`
	Author            string          `json:"author"`
	Name              string          `json:"name"`
	IsContentPrivate  bool            `json:"isContentPrivate"`
	IsContentUnique   bool            `json:"isContentUnique"`
	DescriptionSchema json.RawMessage `json:"descriptionSchema,omitempty"`
	ContentSchema     json.RawMessage `json:"contentSchema,omitempty"`
	// AssetDefinitionHash is the sha256 of the definition document pinned
	// to IPFS.
	AssetDefinitionHash string    `json:"assetDefinitionHash,omitempty"`
	Created             time.Time `json:"created"`
	BlockchainData
}

// PropertyValue is one author's value for an asset instance property.
type PropertyValue struct {
	Value     string     `json:"value"`
	BatchID   string     `json:"batchID,omitempty"`
	Submitted *time.Time `json:"submitted,omitempty"`
}

// AssetInstance is an asset created through a batch. Properties are keyed
// by author address, then property key.
type AssetInstance struct {
	AssetInstanceID   string                              `json:"assetInstanceID"`
	AssetDefinitionID string                              `json:"assetDefinitionID"`
	Author            string                              `json:"author"`
	DescriptionHash   string                              `json:"descriptionHash,omitempty"`
	Description       json.RawMessage                     `json:"description,omitempty"`
	ContentHash       string                              `json:"contentHash"`
	Content           json.RawMessage                     `json:"content,omitempty"`
	IsContentPrivate  bool                                `json:"isContentPrivate"`
	BatchID           string                              `json:"batchID,omitempty"`
	Created           time.Time                           `json:"created"`
	Properties        map[string]map[string]PropertyValue `json:"properties,omitempty"`
	BlockchainData
}

// PaymentDefinition describes a class of payments.
type PaymentDefinition struct {
	PaymentDefinitionID   string          `json:"paymentDefinitionID"`
	Author                string          `json:"author"`
	Name                  string          `json:"name"`
	DescriptionSchema     json.RawMessage `json:"descriptionSchema,omitempty"`
	DescriptionSchemaHash string          `json:"descriptionSchemaHash,omitempty"`
	Created               time.Time       `json:"created"`
	BlockchainData
}

// PaymentInstance is a payment between two members.
type PaymentInstance struct {
	PaymentInstanceID   string          `json:"paymentInstanceID"`
	PaymentDefinitionID string          `json:"paymentDefinitionID"`
	Author              string          `json:"author"`
	Recipient           string          `json:"recipient"`
	Amount              int64           `json:"amount"`
	DescriptionHash     string          `json:"descriptionHash,omitempty"`
	Description         json.RawMessage `json:"description,omitempty"`
	Created             time.Time       `json:"created"`
	BlockchainData
}
