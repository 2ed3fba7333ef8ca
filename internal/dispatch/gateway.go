package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/concave-dev/trail/internal/logging"
	"github.com/go-resty/resty/v2"
)

// Gateway methods.
const (
	MethodRegisterMember           = "registerMember"
	MethodCreateAssetDefinition    = "createAssetDefinition"
	MethodCreateAssetInstanceBatch = "createAssetInstanceBatch"
	MethodCreatePaymentDefinition  = "createPaymentDefinition"
	MethodCreatePaymentInstance    = "createPaymentInstance"
)

// GatewayClient submits asynchronous transactions through the ledger's
// REST API gateway. Every call returns the gateway's receipt ID; the
// transaction itself is confirmed later.
type GatewayClient struct {
	client *resty.Client
}

// NewGatewayClient creates a client for cfg.GatewayURL. Submissions are
// never retried by the client; callers decide whether a resend is safe.
func NewGatewayClient(cfg *Config) *GatewayClient {
	client := newRestyClient("Gateway", cfg.GatewayURL, cfg).
		SetHeader("Content-Type", "application/json")
	if cfg.GatewayUsername != "" {
		client.SetBasicAuth(cfg.GatewayUsername, cfg.GatewayPassword)
	}
	return &GatewayClient{client: client}
}

type gatewayResponse struct {
	ID string `json:"id"`
}

// submit posts body to method on behalf of author and returns the receipt.
func (c *GatewayClient) submit(ctx context.Context, method, author string, body map[string]any) (string, error) {
	var result gatewayResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"kld-from": author,
			"kld-sync": "false",
		}).
		SetBody(body).
		SetResult(&result).
		Post("/" + method)
	if err != nil {
		return "", fmt.Errorf("failed to submit %s: %w", method, err)
	}
	if err := checkResponse("gateway "+method, resp); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("gateway %s returned no receipt id", method)
	}
	logging.Debug("Gateway: Submitted %s from %s, receipt %s", method, author, result.ID)
	return result.ID, nil
}

// RegisterMember publishes a member's name and messaging destinations.
func (c *GatewayClient) RegisterMember(ctx context.Context, address, name, app2appDestination, docExchangeDestination string) (string, error) {
	return c.submit(ctx, MethodRegisterMember, address, map[string]any{
		"name":                   name,
		"app2appDestination":     app2appDestination,
		"docExchangeDestination": docExchangeDestination,
	})
}

// CreateAssetDefinition anchors a definition whose full document was pinned
// under assetDefinitionHash.
func (c *GatewayClient) CreateAssetDefinition(ctx context.Context, author, assetDefinitionHash string) (string, error) {
	return c.submit(ctx, MethodCreateAssetDefinition, author, map[string]any{
		"assetDefinitionHash": assetDefinitionHash,
	})
}

// CreateAssetInstanceBatch anchors a batch of asset records.
func (c *GatewayClient) CreateAssetInstanceBatch(ctx context.Context, author, batchHash string) (string, error) {
	return c.submit(ctx, MethodCreateAssetInstanceBatch, author, map[string]any{
		"batchHash": batchHash,
	})
}

// CreatePaymentDefinition anchors a payment definition. descriptionSchemaHash
// may be empty.
func (c *GatewayClient) CreatePaymentDefinition(ctx context.Context, author, paymentDefinitionID, name, descriptionSchemaHash string) (string, error) {
	body := map[string]any{
		"paymentDefinitionID": uuidToHex(paymentDefinitionID),
		"name":                name,
	}
	if descriptionSchemaHash != "" {
		body["descriptionSchemaHash"] = descriptionSchemaHash
	}
	return c.submit(ctx, MethodCreatePaymentDefinition, author, body)
}

// CreatePaymentInstance anchors a payment between author and recipient.
// descriptionHash may be empty.
func (c *GatewayClient) CreatePaymentInstance(ctx context.Context, author, paymentInstanceID, paymentDefinitionID, recipient string, amount int64, descriptionHash string) (string, error) {
	body := map[string]any{
		"paymentInstanceID":   uuidToHex(paymentInstanceID),
		"paymentDefinitionID": uuidToHex(paymentDefinitionID),
		"recipient":           recipient,
		"amount":              amount,
	}
	if descriptionHash != "" {
		body["descriptionHash"] = descriptionHash
	}
	return c.submit(ctx, MethodCreatePaymentInstance, author, body)
}

// uuidToHex encodes a UUID as the 0x-prefixed 32 byte value the contract
// stores, left-aligned and zero padded.
func uuidToHex(id string) string {
	h := strings.ReplaceAll(id, "-", "")
	return "0x" + h + strings.Repeat("0", 64-min(len(h), 64))
}
