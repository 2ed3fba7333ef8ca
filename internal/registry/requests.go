package registry

import "encoding/json"

// RegisterMemberRequest registers or updates a member owned by this node.
type RegisterMemberRequest struct {
	Address                string `json:"address" validate:"required,eth_addr"`
	Name                   string `json:"name" validate:"required"`
	App2AppDestination     string `json:"app2appDestination"`
	DocExchangeDestination string `json:"docExchangeDestination"`
}

// CreateAssetDefinitionRequest defines a new class of assets.
type CreateAssetDefinitionRequest struct {
	Author            string          `json:"author" validate:"required,eth_addr"`
	Name              string          `json:"name" validate:"required"`
	IsContentPrivate  bool            `json:"isContentPrivate"`
	IsContentUnique   bool            `json:"isContentUnique"`
	DescriptionSchema json.RawMessage `json:"descriptionSchema,omitempty"`
	ContentSchema     json.RawMessage `json:"contentSchema,omitempty"`
}

// CreateAssetInstanceRequest creates an asset through a batch.
type CreateAssetInstanceRequest struct {
	Author            string          `json:"author" validate:"required,eth_addr"`
	AssetDefinitionID string          `json:"-"`
	Description       json.RawMessage `json:"description,omitempty"`
	Content           json.RawMessage `json:"content" validate:"required"`
	Participants      []string        `json:"participants,omitempty" validate:"omitempty,dive,eth_addr"`
}

// SetAssetInstancePropertyRequest sets one property through a batch.
type SetAssetInstancePropertyRequest struct {
	Author            string `json:"author" validate:"required,eth_addr"`
	AssetDefinitionID string `json:"-"`
	AssetInstanceID   string `json:"-"`
	Key               string `json:"key" validate:"required"`
	Value             string `json:"value"`
}

// CreatePaymentDefinitionRequest defines a new class of payments.
type CreatePaymentDefinitionRequest struct {
	Author            string          `json:"author" validate:"required,eth_addr"`
	Name              string          `json:"name" validate:"required"`
	DescriptionSchema json.RawMessage `json:"descriptionSchema,omitempty"`
}

// CreatePaymentInstanceRequest records a payment to another member.
type CreatePaymentInstanceRequest struct {
	Author              string          `json:"author" validate:"required,eth_addr"`
	PaymentDefinitionID string          `json:"paymentDefinitionID" validate:"required"`
	Recipient           string          `json:"recipient" validate:"required,eth_addr,nefield=Author"`
	Amount              int64           `json:"amount" validate:"min=1"`
	Description         json.RawMessage `json:"description,omitempty"`
}

// SubmitResult is returned by every mutation: the ID of the created object
// and, for batched mutations, the batch it was admitted to.
type SubmitResult struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	BatchID string `json:"batchID,omitempty"`
}

const statusSubmitted = "submitted"
