package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concave-dev/trail/internal/batch"
	"github.com/concave-dev/trail/internal/database"
	"github.com/concave-dev/trail/internal/dispatch"
	"github.com/concave-dev/trail/internal/gossip"
	"github.com/concave-dev/trail/internal/registry"
)

const (
	author    = "0x0000000000000000000000000000000000000001"
	recipient = "0x0000000000000000000000000000000000000002"
	ipfsHash  = "QmdfTbBqBPQ7VNxZEYEj14VmRuZBkqFbiwReogJgS1zR1n"
)

// stubGateway accepts every transaction, or fails them all with err.
type stubGateway struct {
	err error
}

func (g stubGateway) RegisterMember(ctx context.Context, address, name, app2app, docExchange string) (string, error) {
	return "receipt", g.err
}

func (g stubGateway) CreateAssetDefinition(ctx context.Context, author, hash string) (string, error) {
	return "receipt", g.err
}

func (g stubGateway) CreatePaymentDefinition(ctx context.Context, author, id, name, schemaHash string) (string, error) {
	return "receipt", g.err
}

func (g stubGateway) CreatePaymentInstance(ctx context.Context, author, id, defID, recipient string, amount int64, descHash string) (string, error) {
	return "receipt", g.err
}

type stubContent struct{}

func (stubContent) UploadJSON(ctx context.Context, v any) (string, error) {
	return ipfsHash, nil
}

type stubBatcher struct {
	err error
}

func (s stubBatcher) Add(ctx context.Context, author, typ string, rec *batch.Record) (string, error) {
	return "", s.err
}

type harness struct {
	router  *gin.Engine
	svc     *registry.Service
	db      *database.Database
	manager *batch.Manager
}

func newHarness(t *testing.T, gateway registry.Gateway, batcher registry.Batcher) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := database.New(database.NewMemProvider(), nil)
	require.NoError(t, db.Init(context.Background()))

	cfg := batch.DefaultConfig()
	cfg.BatchMaxRecords = 1
	manager := batch.NewManager(db, func(ctx context.Context, b *batch.Batch) error { return nil }, cfg)
	t.Cleanup(manager.Stop)

	if batcher == nil {
		batcher = manager
	}
	h := &harness{
		router:  gin.New(),
		svc:     registry.NewService(db, stubContent{}, gateway, batcher),
		db:      db,
		manager: manager,
	}

	v1 := h.router.Group("/api/v1")
	v1.GET("/health", HandleHealth("1.0.0", time.Now().Add(-time.Minute), manager))
	v1.GET("/members", HandleListMembers(h.svc))
	v1.GET("/members/:address", HandleGetMember(h.svc))
	v1.PUT("/members", HandleRegisterMember(h.svc))
	v1.GET("/assets/definitions", HandleListAssetDefinitions(h.svc))
	v1.POST("/assets/definitions", HandleCreateAssetDefinition(h.svc))
	v1.GET("/assets/definitions/:id", HandleGetAssetDefinition(h.svc))
	v1.GET("/assets/:definitionID", HandleListAssetInstances(h.svc))
	v1.POST("/assets/:definitionID", HandleCreateAssetInstance(h.svc))
	v1.GET("/assets/:definitionID/:instanceID", HandleGetAssetInstance(h.svc))
	v1.PUT("/assets/:definitionID/:instanceID/properties", HandleSetAssetInstanceProperty(h.svc))
	v1.GET("/payments/definitions", HandleListPaymentDefinitions(h.svc))
	v1.POST("/payments/definitions", HandleCreatePaymentDefinition(h.svc))
	v1.GET("/payments/definitions/:id", HandleGetPaymentDefinition(h.svc))
	v1.GET("/payments/instances", HandleListPaymentInstances(h.svc))
	v1.POST("/payments/instances", HandleCreatePaymentInstance(h.svc))
	v1.GET("/payments/instances/:id", HandleGetPaymentInstance(h.svc))
	v1.GET("/batches", HandleListBatches(h.svc))
	v1.GET("/batches/hash/:hash", HandleGetBatchByHash(h.svc))
	v1.GET("/batches/:id", HandleGetBatch(h.svc))
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Count   int             `json:"count"`
	Error   string          `json:"error"`
	Details string          `json:"details"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func (h *harness) createDefinition(t *testing.T, name string) string {
	t.Helper()
	w := h.do(t, http.MethodPost, "/api/v1/assets/definitions", gin.H{"author": author, "name": name})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var result registry.SubmitResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
	return result.ID
}

func TestHandleHealth(t *testing.T) {
	h := newHarness(t, stubGateway{}, nil)

	w := h.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, "1.0.0", response.Version)
	assert.Equal(t, "1m0s", response.Uptime)
	assert.Empty(t, response.Batches)
	assert.WithinDuration(t, time.Now(), response.Timestamp, 5*time.Second)
}

func TestMembersEndpoints(t *testing.T) {
	h := newHarness(t, stubGateway{}, nil)

	w := h.do(t, http.MethodPut, "/api/v1/members", gin.H{"address": author, "name": "node-a"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(t, http.MethodGet, "/api/v1/members?owned=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, 1, env.Count)

	w = h.do(t, http.MethodGet, "/api/v1/members/"+author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var member database.Member
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &member))
	assert.Equal(t, "node-a", member.Name)
	assert.True(t, member.Owned)

	w = h.do(t, http.MethodGet, "/api/v1/members/"+recipient, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/members?owned=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestErrors(t *testing.T) {
	h := newHarness(t, stubGateway{}, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"malformed body", http.MethodPut, "/api/v1/members", "{", http.StatusBadRequest},
		{"invalid address", http.MethodPut, "/api/v1/members", gin.H{"address": "0x1", "name": "x"}, http.StatusBadRequest},
		{"negative skip", http.MethodGet, "/api/v1/batches?skip=-1", nil, http.StatusBadRequest},
		{"limit too large", http.MethodGet, "/api/v1/batches?limit=5000", nil, http.StatusBadRequest},
		{"zero limit", http.MethodGet, "/api/v1/batches?limit=0", nil, http.StatusBadRequest},
		{"unknown definition", http.MethodGet, "/api/v1/assets/missing", nil, http.StatusNotFound},
		{"bad batch hash", http.MethodGet, "/api/v1/batches/hash/nothex", nil, http.StatusBadRequest},
		{"malformed batch ID", http.MethodGet, "/api/v1/batches/missing", nil, http.StatusBadRequest},
		{"unknown batch", http.MethodGet, "/api/v1/batches/6f1c2a4e-5b7d-4c1e-9a3f-0d2b8e7c6a51", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, decode(t, w).Error)
		})
	}
}

func TestAssetEndpoints(t *testing.T) {
	h := newHarness(t, stubGateway{}, nil)
	defID := h.createDefinition(t, "widgets")

	w := h.do(t, http.MethodPost, "/api/v1/assets/definitions", gin.H{"author": author, "name": "widgets"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/assets/definitions/"+defID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/assets/"+defID, gin.H{"author": author, "content": gin.H{"serial": 1}})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var created registry.SubmitResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	assert.Equal(t, "submitted", created.Status)
	assert.NotEmpty(t, created.BatchID)

	w = h.do(t, http.MethodPut, "/api/v1/assets/"+defID+"/"+created.ID+"/properties",
		gin.H{"author": author, "key": "color", "value": "blue"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = h.do(t, http.MethodGet, "/api/v1/assets/"+defID+"/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var inst database.AssetInstance
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &inst))
	assert.Equal(t, "blue", inst.Properties[author]["color"].Value)

	w = h.do(t, http.MethodGet, "/api/v1/assets/"+defID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode(t, w).Count)

	assert.Eventually(t, func() bool {
		w := h.do(t, http.MethodGet, "/api/v1/batches?pending=true", nil)
		return w.Code == http.StatusOK && decode(t, w).Count == 0
	}, time.Second, 10*time.Millisecond)

	w = h.do(t, http.MethodGet, "/api/v1/batches?type=instance&author="+author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode(t, w).Count)

	w = h.do(t, http.MethodGet, "/api/v1/batches/"+created.BatchID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var b batch.Batch
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &b))
	assert.True(t, b.IsCompleted())
	require.Len(t, b.Records, 1)
	assert.Equal(t, created.ID, b.Records[0].ID)
}

func TestAdmissionTimeoutReturns503(t *testing.T) {
	timeout := &batch.AdmissionTimeoutError{Author: author, Type: "instance", Timeout: 1500 * time.Millisecond}
	h := newHarness(t, stubGateway{}, stubBatcher{err: timeout})
	defID := h.createDefinition(t, "busy")

	w := h.do(t, http.MethodPost, "/api/v1/assets/"+defID, gin.H{"author": author, "content": gin.H{}})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Contains(t, decode(t, w).Details, "timed out add of record")
}

func TestGatewayFailureReturns502(t *testing.T) {
	h := newHarness(t, stubGateway{err: &dispatch.GatewayError{Endpoint: "registerMember", Status: 500, Body: "boom"}}, nil)

	w := h.do(t, http.MethodPut, "/api/v1/members", gin.H{"address": author, "name": "node-a"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestUnexpectedErrorReturns500(t *testing.T) {
	h := newHarness(t, stubGateway{err: errors.New("connection reset")}, nil)

	w := h.do(t, http.MethodPut, "/api/v1/members", gin.H{"address": author, "name": "node-a"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "connection reset", decode(t, w).Details)
}

func TestPaymentEndpoints(t *testing.T) {
	h := newHarness(t, stubGateway{}, nil)

	w := h.do(t, http.MethodPut, "/api/v1/members", gin.H{"address": recipient, "name": "node-b"})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/payments/definitions", gin.H{"author": author, "name": "invoice"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var def registry.SubmitResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &def))

	w = h.do(t, http.MethodPost, "/api/v1/payments/instances", gin.H{
		"author": author, "paymentDefinitionID": def.ID, "recipient": recipient, "amount": 10,
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var pay registry.SubmitResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &pay))

	w = h.do(t, http.MethodGet, "/api/v1/payments/instances/"+pay.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var inst database.PaymentInstance
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &inst))
	assert.Equal(t, int64(10), inst.Amount)

	w = h.do(t, http.MethodGet, "/api/v1/payments/definitions/"+def.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/payments/instances?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode(t, w).Count)

	w = h.do(t, http.MethodPost, "/api/v1/payments/instances", gin.H{
		"author": author, "paymentDefinitionID": def.ID, "recipient": recipient, "amount": 0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type stubPeers struct {
	peers []*gossip.Peer
}

func (s stubPeers) Peers() []*gossip.Peer { return s.peers }

func (s stubPeers) Peer(id string) (*gossip.Peer, bool) {
	for _, p := range s.peers {
		if p.ID == id || p.Name == id {
			return p, true
		}
	}
	return nil, false
}

func TestPeerHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/peers", HandlePeers(stubPeers{peers: []*gossip.Peer{{ID: "abc", Name: "node-a", Status: "alive"}}}))
	router.GET("/peers/:id", HandlePeerByID(stubPeers{peers: []*gossip.Peer{{ID: "abc", Name: "node-a"}}}))
	router.GET("/nopeers", HandlePeers(nil))

	for _, tt := range []struct {
		path   string
		status int
		want   string
	}{
		{"/peers", http.StatusOK, `"count":1`},
		{"/peers/node-a", http.StatusOK, `"id":"abc"`},
		{"/peers/missing", http.StatusNotFound, "missing"},
		{"/nopeers", http.StatusOK, `"count":0`},
	} {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.want), w.Body.String())
		})
	}
}
