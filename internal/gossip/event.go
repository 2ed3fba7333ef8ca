package gossip

import (
	"time"

	"github.com/hashicorp/serf/serf"

	"github.com/concave-dev/trail/internal/logging"
	"github.com/concave-dev/trail/internal/metrics"
)

// processEvents always applies an event to the peer table first, then
// forwards it to EventCh without blocking.
func (m *Manager) processEvents() {
	defer m.wg.Done()

	for {
		select {
		case event := <-m.eventQueue:
			m.handleEvent(event)

			select {
			case m.EventCh <- event:
			default:
				logging.Debug("Gossip: Event channel full, dropping event: %T", event)
			}

		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) handleEvent(event serf.Event) {
	switch e := event.(type) {
	case serf.MemberEvent:
		m.handleMemberEvent(e)
	default:
		logging.Debug("Gossip: Received unhandled event type: %T", event)
	}
}

// ============================================================================
// MEMBER EVENTS - join/leave/fail/update/reap
// ============================================================================

func (m *Manager) handleMemberEvent(event serf.MemberEvent) {
	for _, member := range event.Members {
		switch event.EventType() {
		case serf.EventMemberJoin:
			logging.Info("Gossip: Peer joined: %s (%s:%d) member=%s",
				member.Name, member.Addr, member.Port, member.Tags[TagMemberAddress])
			m.addPeer(member)

		case serf.EventMemberUpdate:
			logging.Info("Gossip: Peer updated: %s (%s:%d)", member.Name, member.Addr, member.Port)
			m.addPeer(member)

		case serf.EventMemberFailed:
			logging.Warn("Gossip: Peer failed: %s (%s:%d)", member.Name, member.Addr, member.Port)
			m.setPeerStatus(member, serf.StatusFailed)

		case serf.EventMemberLeave, serf.EventMemberReap:
			logging.Info("Gossip: Peer left: %s (%s:%d)", member.Name, member.Addr, member.Port)
			m.removePeer(member)
		}
	}
	m.updatePeerGauge()
}

func (m *Manager) addPeer(member serf.Member) {
	p := peerFromMember(member)

	m.peerLock.Lock()
	m.peers[p.ID] = p
	m.peerLock.Unlock()
}

func (m *Manager) setPeerStatus(member serf.Member, status serf.MemberStatus) {
	m.peerLock.Lock()
	defer m.peerLock.Unlock()

	if p, ok := m.peers[peerID(member)]; ok {
		p.Status = status.String()
	}
}

func (m *Manager) removePeer(member serf.Member) {
	m.peerLock.Lock()
	delete(m.peers, peerID(member))
	m.peerLock.Unlock()
}

func (m *Manager) updatePeerGauge() {
	m.peerLock.RLock()
	alive := 0
	for _, p := range m.peers {
		if p.Status == serf.StatusAlive.String() {
			alive++
		}
	}
	m.peerLock.RUnlock()
	metrics.GossipPeers.Set(float64(alive))
}

// peerID prefers the advertised node ID and falls back to the serf name for
// nodes that do not advertise one.
func peerID(member serf.Member) string {
	if id := member.Tags[TagNodeID]; id != "" {
		return id
	}
	return member.Name
}

func peerFromMember(member serf.Member) *Peer {
	p := &Peer{
		ID:                     peerID(member),
		Name:                   member.Name,
		Addr:                   member.Addr,
		Port:                   member.Port,
		Status:                 member.Status.String(),
		MemberAddress:          member.Tags[TagMemberAddress],
		App2AppDestination:     member.Tags[TagApp2AppDestination],
		DocExchangeDestination: member.Tags[TagDocExchangeDestination],
		APIPort:                member.Tags[TagAPIPort],
		Tags:                   make(map[string]string, len(member.Tags)),
		LastSeen:               time.Now(),
	}
	for k, v := range member.Tags {
		p.Tags[k] = v
	}
	return p
}
