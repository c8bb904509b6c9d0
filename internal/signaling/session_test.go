package signaling

import (
	"testing"
	"time"
)

func newTestStore(ttl time.Duration) *Store {
	return New(Config{
		SessionTTL:             ttl,
		OfferTimeout:           50 * time.Millisecond,
		InputMaxTokens:         10,
		InputRefillPerSecond:   10,
		MaxInvalidInputs:       5,
		MaxRateLimitDrops:      5,
		MaxClientHelloAttempts: 3,
		MaxPendingInputs:       8,
	})
}

func TestCreateSessionReturnsUniqueTokens(t *testing.T) {
	store := newTestStore(time.Minute)

	a := store.CreateSession()
	b := store.CreateSession()

	if a == "" || b == "" {
		t.Fatal("CreateSession returned an empty token")
	}
	if a == b {
		t.Errorf("expected distinct tokens, got %q twice", a)
	}
	if len(store.sessions) != 2 {
		t.Errorf("expected 2 registered sessions, got %d", len(store.sessions))
	}
}

func TestIsSessionValidLockedUnknownToken(t *testing.T) {
	store := newTestStore(time.Minute)

	store.mu.Lock()
	err := store.isSessionValidLocked("does-not-exist")
	store.mu.Unlock()

	if err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestIsSessionValidLockedExpired(t *testing.T) {
	store := newTestStore(time.Minute)
	token := store.CreateSession()

	store.mu.Lock()
	store.sessions[token].expiresAt = time.Now().Add(-time.Second)
	err := store.isSessionValidLocked(token)
	store.mu.Unlock()

	if err != ErrSessionExpired {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}

func TestPruneExpiredSessionsLockedCascadesToConnections(t *testing.T) {
	store := newTestStore(time.Minute)
	token := store.CreateSession()

	store.mu.Lock()
	store.sessions[token].expiresAt = time.Now().Add(-time.Second)
	store.connections["conn-1"] = &Connection{id: "conn-1", sessionToken: token}
	store.pruneExpiredSessionsLocked()
	_, sessionStillThere := store.sessions[token]
	_, connStillThere := store.connections["conn-1"]
	store.mu.Unlock()

	if sessionStillThere {
		t.Error("expired session was not pruned")
	}
	if connStillThere {
		t.Error("connection belonging to an expired session was not pruned")
	}
}

func TestPruneExpiredSessionsLockedKeepsLiveSessions(t *testing.T) {
	store := newTestStore(time.Minute)
	token := store.CreateSession()

	store.mu.Lock()
	store.pruneExpiredSessionsLocked()
	_, ok := store.sessions[token]
	store.mu.Unlock()

	if !ok {
		t.Error("live session was pruned too early")
	}
}

func TestGenerateTokenLength(t *testing.T) {
	token := generateToken(16)
	if len(token) != 32 { // hex-encoded, 2 chars per byte
		t.Errorf("expected a 32-character hex token, got %d chars (%q)", len(token), token)
	}
}
