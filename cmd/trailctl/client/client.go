// Package client is the trailctl HTTP client for the traild API.
//
// Responses arrive in the API envelope {"status":"success","data":...}, with
// a "count" on lists, and failures as {"error":...,"details":...}. The
// types below mirror the fields trailctl displays; unknown fields are
// ignored so the client keeps working against newer daemons.
package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/concave-dev/trail/cmd/trailctl/config"
	"github.com/concave-dev/trail/cmd/trailctl/utils"
	"github.com/concave-dev/trail/internal/logging"
)

// envelope is the success body of every API response.
type envelope[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
	Count  int    `json:"count,omitempty"`
}

// APIError is a non-2xx API response.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Details    string `json:"details"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("API request failed with status %d: %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// ProcessorStats describes one open batch processor on the daemon.
type ProcessorStats struct {
	Author      string `json:"author"`
	Type        string `json:"type"`
	OpenBatchID string `json:"openBatchID,omitempty"`
	OpenRecords int    `json:"openRecords"`
	Queued      int    `json:"queued"`
	Dispatching string `json:"dispatching,omitempty"`
}

// Health is the response of GET /health.
type Health struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Uptime    string           `json:"uptime"`
	Batches   []ProcessorStats `json:"batches"`
}

// Record is one entry of a batch.
type Record struct {
	RecordType        string          `json:"recordType"`
	ID                string          `json:"id,omitempty"`
	AssetDefinitionID string          `json:"assetDefinitionID,omitempty"`
	AssetInstanceID   string          `json:"assetInstanceID,omitempty"`
	ContentHash       string          `json:"contentHash,omitempty"`
	IsContentPrivate  bool            `json:"isContentPrivate,omitempty"`
	Key               string          `json:"key,omitempty"`
	Value             string          `json:"value,omitempty"`
	Content           json.RawMessage `json:"content,omitempty"`
}

// Batch is a group of records anchored on chain in one transaction.
type Batch struct {
	BatchID         string     `json:"batchID"`
	Type            string     `json:"type"`
	Author          string     `json:"author"`
	Created         time.Time  `json:"created"`
	Completed       *time.Time `json:"completed"`
	Records         []Record   `json:"records"`
	BatchHash       string     `json:"batchHash,omitempty"`
	Receipt         string     `json:"receipt,omitempty"`
	Submitted       *time.Time `json:"submitted,omitempty"`
	TransactionHash string     `json:"transactionHash,omitempty"`
	BlockNumber     int64      `json:"blockNumber,omitempty"`
}

// Pending reports whether the batch has not been anchored yet.
func (b Batch) Pending() bool {
	return b.Completed == nil
}

// Member is a registered network participant.
type Member struct {
	Address                string `json:"address"`
	Name                   string `json:"name"`
	App2AppDestination     string `json:"app2appDestination,omitempty"`
	DocExchangeDestination string `json:"docExchangeDestination,omitempty"`
	Owned                  bool   `json:"owned"`
	Receipt                string `json:"receipt,omitempty"`
	TransactionHash        string `json:"transactionHash,omitempty"`
	BlockNumber            int64  `json:"blockNumber,omitempty"`
}

// Peer is a trail node found through gossip.
type Peer struct {
	ID                     string            `json:"id"`
	Name                   string            `json:"name"`
	Addr                   string            `json:"addr"`
	Port                   int               `json:"port"`
	Status                 string            `json:"status"`
	MemberAddress          string            `json:"memberAddress,omitempty"`
	App2AppDestination     string            `json:"app2appDestination,omitempty"`
	DocExchangeDestination string            `json:"docExchangeDestination,omitempty"`
	APIPort                string            `json:"apiPort,omitempty"`
	Tags                   map[string]string `json:"tags"`
	LastSeen               time.Time         `json:"lastSeen"`
}

// BatchFilter narrows ListBatches.
type BatchFilter struct {
	Author  string
	Type    string
	Pending bool
	Limit   int
}

// TrailAPIClient talks to one traild API server.
type TrailAPIClient struct {
	client  *resty.Client
	baseURL string
}

// NewTrailAPIClient creates a client for the API at apiAddr (host:port).
// Connection errors are retried; HTTP errors are returned as *APIError.
func NewTrailAPIClient(apiAddr string, timeout int) *TrailAPIClient {
	client := resty.New()
	baseURL := fmt.Sprintf("http://%s/api/v1", apiAddr)

	client.SetLogger(utils.RestyLogger{})

	client.
		SetTimeout(time.Duration(timeout)*time.Second).
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", fmt.Sprintf("trailctl/%s", config.Version))

	client.
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Only retry on connection errors, not HTTP errors
			return err != nil
		})

	client.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		logging.Debug("Making API request: %s %s", req.Method, req.URL)
		return nil
	})
	client.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logging.Debug("API response: %d %s (took %v)", resp.StatusCode(), resp.Status(), resp.Time())
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		logging.Debug("API request failed: %s %s - %v", req.Method, req.URL, err)
	})

	return &TrailAPIClient{client: client, baseURL: baseURL}
}

// CreateAPIClient creates a client from the global flags.
func CreateAPIClient() *TrailAPIClient {
	return NewTrailAPIClient(config.Global.APIAddr, config.Global.Timeout)
}

// get issues a GET and decodes the envelope into result.
func get[T any](api *TrailAPIClient, path string, query map[string]string) (*envelope[T], error) {
	var result envelope[T]
	var apiErr APIError

	resp, err := api.client.R().
		SetQueryParams(query).
		SetResult(&result).
		SetError(&apiErr).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to API server at %s: %w", api.baseURL, err)
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = resp.String()
		}
		return nil, &apiErr
	}
	return &result, nil
}

// GetHealth fetches node health and open batch processors.
func (api *TrailAPIClient) GetHealth() (*Health, error) {
	resp, err := get[Health](api, "/health", nil)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// GetBatches lists batches, newest first.
func (api *TrailAPIClient) GetBatches(filter BatchFilter) ([]Batch, error) {
	query := map[string]string{}
	if filter.Author != "" {
		query["author"] = filter.Author
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.Pending {
		query["pending"] = "true"
	}
	if filter.Limit > 0 {
		query["limit"] = strconv.Itoa(filter.Limit)
	}

	resp, err := get[[]Batch](api, "/batches", query)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetBatch fetches a batch by ID.
func (api *TrailAPIClient) GetBatch(batchID string) (*Batch, error) {
	resp, err := get[Batch](api, "/batches/"+batchID, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// GetBatchByHash fetches a batch by the hash it was pinned under.
func (api *TrailAPIClient) GetBatchByHash(batchHash string) (*Batch, error) {
	resp, err := get[Batch](api, "/batches/hash/"+batchHash, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// GetMembers lists registered members.
func (api *TrailAPIClient) GetMembers(ownedOnly bool, limit int) ([]Member, error) {
	query := map[string]string{}
	if ownedOnly {
		query["owned"] = "true"
	}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}

	resp, err := get[[]Member](api, "/members", query)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetPeers lists gossip peers, including the node itself.
func (api *TrailAPIClient) GetPeers() ([]Peer, error) {
	resp, err := get[[]Peer](api, "/peers", nil)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetPeer fetches one peer by ID or name.
func (api *TrailAPIClient) GetPeer(idOrName string) (*Peer, error) {
	resp, err := get[Peer](api, "/peers/"+idOrName, nil)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
