package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/concave-dev/trail/internal/logging"
)

// GatewayError is a non-2xx response from IPFS or the API gateway.
type GatewayError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.Status, e.Body)
}

func checkResponse(endpoint string, resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}
	return &GatewayError{Endpoint: endpoint, Status: resp.StatusCode(), Body: resp.String()}
}

// newRestyClient applies the logging hooks shared by both clients.
func newRestyClient(name, baseURL string, cfg *Config) *resty.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Accept", "application/json")

	client.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		logging.Debug("%s: Request %s %s", name, req.Method, req.URL)
		return nil
	})
	client.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logging.Debug("%s: Response %d (took %v)", name, resp.StatusCode(), resp.Time())
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		logging.Debug("%s: Request %s %s failed: %v", name, req.Method, req.URL, err)
	})
	return client
}

// IPFSClient pins and fetches JSON documents through the IPFS HTTP API.
type IPFSClient struct {
	client *resty.Client
}

// NewIPFSClient creates a client for cfg.IPFSURL. Uploads are content
// addressed, so connection failures are retried.
func NewIPFSClient(cfg *Config) *IPFSClient {
	client := newRestyClient("IPFS", cfg.IPFSURL, cfg).
		SetRetryCount(2).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil
		})
	return &IPFSClient{client: client}
}

type ipfsAddResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// UploadJSON pins v and returns its IPFS hash.
func (c *IPFSClient) UploadJSON(ctx context.Context, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode IPFS document: %w", err)
	}

	var result ipfsAddResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetFileReader("document", "document.json", bytes.NewReader(data)).
		SetResult(&result).
		Post("/api/v0/add")
	if err != nil {
		return "", fmt.Errorf("failed to upload to IPFS: %w", err)
	}
	if err := checkResponse("IPFS add", resp); err != nil {
		return "", err
	}
	if result.Hash == "" {
		return "", fmt.Errorf("IPFS add returned no hash")
	}
	return result.Hash, nil
}

// DownloadJSON fetches the document stored under ipfsHash into out.
func (c *IPFSClient) DownloadJSON(ctx context.Context, ipfsHash string, out any) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("arg", ipfsHash).
		Post("/api/v0/cat")
	if err != nil {
		return fmt.Errorf("failed to download %s from IPFS: %w", ipfsHash, err)
	}
	if err := checkResponse("IPFS cat", resp); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("IPFS document %s is not valid JSON: %w", ipfsHash, err)
	}
	return nil
}
