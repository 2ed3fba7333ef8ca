// Package gossip provides serf based peer discovery for trail nodes.
//
// Every node advertises the member it acts for (its on-chain address) and the
// app2app and document exchange destinations other members use to reach it
// for private content. Membership events keep a local peer table that the
// API serves at /peers.
//
// SWIM PROTOCOL OVERVIEW:
// serf implements SWIM (Scalable Weakly-consistent Infection-style Process
// Group Membership): constant per-node message load, randomized probing with
// indirect probes for failure detection and epidemic spread of tag updates.
package gossip

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/serf/serf"

	"github.com/concave-dev/trail/internal/logging"
)

// Peer is a trail node known through gossip.
type Peer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Addr   net.IP `json:"addr"`
	Port   uint16 `json:"port"`
	Status string `json:"status"`

	MemberAddress          string `json:"memberAddress,omitempty"`
	App2AppDestination     string `json:"app2appDestination,omitempty"`
	DocExchangeDestination string `json:"docExchangeDestination,omitempty"`
	APIPort                string `json:"apiPort,omitempty"`

	Tags     map[string]string `json:"tags"`
	LastSeen time.Time         `json:"lastSeen"`
}

// Manager manages serf membership for a trail node.
type Manager struct {
	serf      *serf.Serf
	NodeID    string
	NodeName  string
	startTime time.Time

	// Serf writes into eventQueue, which is always drained to keep the peer
	// table current. EventCh is an optional best-effort copy for consumers.
	EventCh    chan serf.Event
	eventQueue chan serf.Event

	logWriter io.WriteCloser

	peerLock sync.RWMutex
	peers    map[string]*Peer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	config *Config
}

// NewManager creates a new Manager instance
func NewManager(config *Config) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	nodeID, err := generateNodeID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate node ID: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		NodeID:     nodeID,
		NodeName:   config.NodeName,
		EventCh:    make(chan serf.Event, config.EventBufferSize),
		eventQueue: make(chan serf.Event, config.EventBufferSize*2),
		peers:      make(map[string]*Peer),
		ctx:        ctx,
		cancel:     cancel,
		config:     config,
	}, nil
}

// Start creates the serf instance and begins processing membership events.
func (m *Manager) Start() error {
	m.startTime = time.Now()
	logging.Info("Gossip: Starting on %s:%d as %s (%s)",
		m.config.BindAddr, m.config.BindPort, m.NodeName, m.NodeID)

	serfConfig := serf.DefaultConfig()

	// Logging must be configured before Init
	if m.config.LogLevel == "ERROR" {
		serfConfig.LogOutput = io.Discard
		serfConfig.MemberlistConfig.LogOutput = io.Discard
	} else {
		w := logging.NewSerfLogWriter()
		m.logWriter = w
		serfConfig.LogOutput = w
		serfConfig.MemberlistConfig.LogOutput = w
	}

	serfConfig.Init()
	serfConfig.NodeName = m.NodeName
	serfConfig.MemberlistConfig.BindAddr = m.config.BindAddr
	serfConfig.MemberlistConfig.BindPort = m.config.BindPort
	serfConfig.MemberlistConfig.DeadNodeReclaimTime = m.config.DeadNodeReclaimTime
	serfConfig.EventCh = m.eventQueue
	serfConfig.Tags = m.buildNodeTags()

	var err error
	m.serf, err = serf.Create(serfConfig)
	if err != nil {
		m.closeLogWriter()
		return fmt.Errorf("failed to create serf instance: %w", err)
	}

	m.wg.Add(1)
	go m.processEvents()

	m.addPeer(m.serf.LocalMember())
	m.updatePeerGauge()

	logging.Success("Gossip: Started on %s", m.LocalAddr())

	if len(m.config.JoinAddrs) > 0 {
		if err := m.Join(m.config.JoinAddrs); err != nil {
			logging.Warn("Gossip: %v", err)
		}
	}
	return nil
}

// LocalAddr returns the address serf is actually bound to.
func (m *Manager) LocalAddr() string {
	if m.serf == nil {
		return ""
	}
	local := m.serf.LocalMember()
	return net.JoinHostPort(local.Addr.String(), fmt.Sprintf("%d", local.Port))
}

// Join attempts to join a cluster through one or more seed addresses,
// retrying the whole list up to JoinRetries times.
func (m *Manager) Join(addresses []string) error {
	if len(addresses) == 0 {
		return fmt.Errorf("no join addresses provided")
	}

	logging.Info("Gossip: Attempting to join via %v", addresses)

	var lastErr error
	for attempt := 1; attempt <= m.config.JoinRetries; attempt++ {
		ctx, cancel := context.WithTimeout(m.ctx, m.config.JoinTimeout)

		type joinResult struct {
			n   int
			err error
		}
		joinDone := make(chan joinResult, 1)
		go func() {
			n, err := m.serf.Join(addresses, false)
			joinDone <- joinResult{n, err}
		}()

		select {
		case result := <-joinDone:
			cancel()
			if result.err == nil {
				logging.Success("Gossip: Joined cluster, contacted %d nodes", result.n)
				return nil
			}
			lastErr = result.err
			logging.Warn("Gossip: Join attempt %d/%d failed: %v", attempt, m.config.JoinRetries, result.err)

		case <-ctx.Done():
			cancel()
			lastErr = fmt.Errorf("join attempt timed out after %v", m.config.JoinTimeout)
			logging.Warn("Gossip: Join attempt %d/%d timed out after %v", attempt, m.config.JoinRetries, m.config.JoinTimeout)
		}

		if attempt < m.config.JoinRetries {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-m.ctx.Done():
				return fmt.Errorf("join cancelled: %w", m.ctx.Err())
			}
		}
	}

	return fmt.Errorf("failed to join cluster after %d attempts: %w", m.config.JoinRetries, lastErr)
}

// Leave gracefully leaves the cluster
func (m *Manager) Leave() error {
	if m.serf == nil {
		return nil
	}
	logging.Info("Gossip: Leaving cluster")
	if err := m.serf.Leave(); err != nil {
		return fmt.Errorf("failed to leave cluster: %w", err)
	}
	return nil
}

// Shutdown leaves the cluster and stops serf and the event processor.
func (m *Manager) Shutdown() error {
	logging.Info("Gossip: Shutting down")

	m.cancel()

	if err := m.Leave(); err != nil {
		logging.Warn("Gossip: Error during graceful leave: %v", err)
	}
	if m.serf != nil {
		if err := m.serf.Shutdown(); err != nil {
			logging.Error("Gossip: Error shutting down serf: %v", err)
		}
	}

	m.wg.Wait()
	m.closeLogWriter()

	logging.Success("Gossip: Shutdown completed")
	return nil
}

func (m *Manager) closeLogWriter() {
	if m.logWriter != nil {
		_ = m.logWriter.Close()
		m.logWriter = nil
	}
}

// Peers returns a copy of the peer table sorted by name.
func (m *Manager) Peers() []*Peer {
	m.peerLock.RLock()
	defer m.peerLock.RUnlock()

	peers := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, copyPeer(p))
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].Name < peers[j].Name })
	return peers
}

// Peer returns one peer by node ID or name.
func (m *Manager) Peer(idOrName string) (*Peer, bool) {
	m.peerLock.RLock()
	defer m.peerLock.RUnlock()

	if p, ok := m.peers[idOrName]; ok {
		return copyPeer(p), true
	}
	for _, p := range m.peers {
		if p.Name == idOrName {
			return copyPeer(p), true
		}
	}
	return nil, false
}

// PeerForMember returns the alive peer advertising memberAddress.
func (m *Manager) PeerForMember(memberAddress string) (*Peer, bool) {
	m.peerLock.RLock()
	defer m.peerLock.RUnlock()

	for _, p := range m.peers {
		if p.MemberAddress == memberAddress && p.Status == serf.StatusAlive.String() {
			return copyPeer(p), true
		}
	}
	return nil, false
}

// Uptime returns how long the manager has been running.
func (m *Manager) Uptime() time.Duration {
	if m.startTime.IsZero() {
		return 0
	}
	return time.Since(m.startTime)
}

// copyPeer only needs to copy the reference types.
func copyPeer(p *Peer) *Peer {
	cp := *p
	cp.Tags = make(map[string]string, len(p.Tags))
	for k, v := range p.Tags {
		cp.Tags[k] = v
	}
	return &cp
}

// buildNodeTags merges user tags with the identity tags and node ID.
func (m *Manager) buildNodeTags() map[string]string {
	identity := m.config.identityTags()
	tags := make(map[string]string, len(m.config.Tags)+len(identity)+1)
	for k, v := range m.config.Tags {
		tags[k] = v
	}
	for k, v := range identity {
		tags[k] = v
	}
	tags[TagNodeID] = m.NodeID
	return tags
}

// generateNodeID generates a random 12 hex character node identifier.
func generateNodeID() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
