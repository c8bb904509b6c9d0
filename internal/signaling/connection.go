package signaling

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"

	"afps-server/internal/protocol"
)

// candidate mirrors the wire shape of a trickled ICE candidate.
type candidate struct {
	Candidate string
	Mid       string
}

// Connection is one client's WebRTC peer plus the handshake/rate-limit
// bookkeeping layered on top. Every mutable field below is guarded by mu;
// callbacks registered with the pion peer connection take this mutex. The
// message callbacks may also take the Store's registry mutex briefly (profile
// broadcast, CloseConnection), but never while holding this one.
type Connection struct {
	id           string
	sessionToken string

	peer        *webrtc.PeerConnection
	reliable    *webrtc.DataChannel
	unreliable  *webrtc.DataChannel

	mu                sync.Mutex
	localCandidates   []candidate
	localDescription  *webrtc.SessionDescription
	descriptionReady  chan struct{}
	channelOpen       bool
	handshakeComplete bool
	handshakeAttempts int
	nickname          string
	characterID       string
	pendingInputs     []protocol.InputCmd
	lastInputSeq      int64
	invalidInputCount int
	rateLimitCount    int
	closed            bool
}

func (c *Connection) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.peer != nil {
		_ = c.peer.Close()
	}
}

func (c *Connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connection) isReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handshakeComplete && !c.closed
}

// ConnectionOffer is returned to the HTTP caller after a local description
// becomes available (or the offer times out).
type ConnectionOffer struct {
	ConnectionID string
	Offer        webrtc.SessionDescription
}

// CreateConnection validates the session, builds a pion peer connection
// with the two named data channels, registers its callbacks, and blocks up
// to the configured offer timeout for a local description — mirroring the
// reference's condition-variable wait in create_connection.
func (s *Store) CreateConnection(sessionToken string) (ConnectionOffer, error) {
	s.mu.Lock()
	s.pruneExpiredSessionsLocked()
	if err := s.isSessionValidLocked(sessionToken); err != nil {
		s.mu.Unlock()
		return ConnectionOffer{}, err
	}
	s.mu.Unlock()

	peer, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return ConnectionOffer{}, errors.Wrap(err, "create peer connection")
	}

	// Connection ids only need to be unique, not unguessable like session
	// tokens, so uuid stands in for generateToken's crypto/rand here.
	conn := &Connection{
		id:               uuid.NewString(),
		sessionToken:     sessionToken,
		peer:             peer,
		descriptionReady: make(chan struct{}),
	}

	ordered := true
	reliable, err := peer.CreateDataChannel(protocol.ChannelReliable, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		_ = peer.Close()
		return ConnectionOffer{}, errors.Wrap(err, "create reliable data channel")
	}
	conn.reliable = reliable

	unordered := false
	zeroRetransmits := uint16(0)
	unreliable, err := peer.CreateDataChannel(protocol.ChannelUnreliable, &webrtc.DataChannelInit{
		Ordered:        &unordered,
		MaxRetransmits: &zeroRetransmits,
	})
	if err != nil {
		_ = peer.Close()
		return ConnectionOffer{}, errors.Wrap(err, "create unreliable data channel")
	}
	conn.unreliable = unreliable

	s.wireCallbacks(conn)

	offer, err := peer.CreateOffer(nil)
	if err != nil {
		_ = peer.Close()
		return ConnectionOffer{}, errors.Wrap(err, "create offer")
	}
	gatherComplete := webrtc.GatheringCompletePromise(peer)
	if err := peer.SetLocalDescription(offer); err != nil {
		_ = peer.Close()
		return ConnectionOffer{}, errors.Wrap(err, "set local description")
	}

	select {
	case <-gatherComplete:
	case <-time.After(s.config.OfferTimeout):
	}

	conn.mu.Lock()
	local := peer.LocalDescription()
	if local != nil {
		conn.localDescription = local
	}
	conn.mu.Unlock()

	if conn.localDescription == nil {
		_ = peer.Close()
		return ConnectionOffer{}, ErrOfferTimeout
	}

	s.mu.Lock()
	s.connections[conn.id] = conn
	s.mu.Unlock()

	return ConnectionOffer{ConnectionID: conn.id, Offer: *conn.localDescription}, nil
}

// wireCallbacks registers the connection's callbacks: the local ICE
// candidate observer, the connection-state observer, and OnOpen and
// OnMessage on both data channels. Each takes conn.mu; the message
// callbacks may take s.mu briefly, never while holding conn.mu.
func (s *Store) wireCallbacks(conn *Connection) {
	conn.peer.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init, err := c.ToJSON()
		if err != nil {
			return
		}
		mid := ""
		if init.SDPMid != nil {
			mid = *init.SDPMid
		}
		conn.mu.Lock()
		conn.localCandidates = append(conn.localCandidates, candidate{Candidate: init.Candidate, Mid: mid})
		conn.mu.Unlock()
	})

	conn.peer.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateClosed || state == webrtc.PeerConnectionStateFailed {
			conn.markClosed()
		}
	})

	onOpen := func(label string) func() {
		return func() {
			conn.mu.Lock()
			conn.channelOpen = true
			conn.mu.Unlock()
		}
	}
	conn.reliable.OnOpen(onOpen(protocol.ChannelReliable))
	conn.unreliable.OnOpen(onOpen(protocol.ChannelUnreliable))

	conn.reliable.OnMessage(func(msg webrtc.DataChannelMessage) {
		s.handleReliableMessage(conn, msg.Data)
	})
	conn.unreliable.OnMessage(func(msg webrtc.DataChannelMessage) {
		s.handleUnreliableMessage(conn, msg.Data, s.inputLimiter, s.nowSeconds())
	})
}

// ApplyAnswer sets the client's SDP answer as the peer's remote description.
func (s *Store) ApplyAnswer(sessionToken, connectionID, sdp string) error {
	conn, err := s.lookupConnection(sessionToken, connectionID)
	if err != nil {
		return err
	}
	return conn.peer.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	})
}

// AddRemoteCandidate feeds a trickled ICE candidate from the client into the
// peer connection.
func (s *Store) AddRemoteCandidate(sessionToken, connectionID, candidateStr, mid string) error {
	conn, err := s.lookupConnection(sessionToken, connectionID)
	if err != nil {
		return err
	}
	return conn.peer.AddICECandidate(webrtc.ICECandidateInit{Candidate: candidateStr, SDPMid: &mid})
}

// DrainLocalCandidates atomically swaps a connection's buffered local
// candidates for an empty slice and returns the drained ones.
func (s *Store) DrainLocalCandidates(sessionToken, connectionID string) ([]candidate, error) {
	conn, err := s.lookupConnection(sessionToken, connectionID)
	if err != nil {
		return nil, err
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	drained := conn.localCandidates
	conn.localCandidates = nil
	return drained, nil
}

// lookupConnection briefly locks the registry to fetch a shared handle,
// then releases it — never holding the registry mutex while touching
// per-connection state, per spec.md §5.
func (s *Store) lookupConnection(sessionToken, connectionID string) (*Connection, error) {
	s.mu.Lock()
	s.pruneExpiredSessionsLocked()
	if err := s.isSessionValidLocked(sessionToken); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	conn, ok := s.connections[connectionID]
	s.mu.Unlock()
	if !ok || conn.sessionToken != sessionToken {
		return nil, ErrConnectionNotFound
	}
	return conn, nil
}

// ReadyConnectionIds lists connections with handshake_complete && !closed,
// matching the reference's ready_connection_ids.
func (s *Store) ReadyConnectionIds() []string {
	s.mu.Lock()
	s.pruneExpiredSessionsLocked()
	conns := make([]*Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	ids := make([]string, 0, len(conns))
	for _, conn := range conns {
		if conn.isReady() {
			ids = append(ids, conn.id)
		}
	}
	return ids
}

// ConnectionCount reports the number of registered connections.
func (s *Store) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

// CloseConnection marks a connection closed and tears down its peer.
func (s *Store) CloseConnection(connectionID string) {
	s.mu.Lock()
	conn, ok := s.connections[connectionID]
	s.mu.Unlock()
	if !ok {
		return
	}
	conn.markClosed()
}

// SendUnreliable sends a pre-encoded payload on the unreliable channel if
// the connection is still open; failures are swallowed per the SendFailure
// taxonomy entry (spec.md §7) — a torn-down transport mid-send must never
// abort the tick loop.
func (s *Store) SendUnreliable(connectionID string, payload []byte) bool {
	s.mu.Lock()
	conn, ok := s.connections[connectionID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if closed {
		return false
	}
	if err := conn.unreliable.Send(payload); err != nil {
		return false
	}
	return true
}
