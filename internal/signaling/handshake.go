package signaling

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"regexp"
	"strings"

	"afps-server/internal/protocol"
)

var (
	nicknamePattern    = regexp.MustCompile(`^[A-Za-z0-9 _-]{3,16}$`)
	characterIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)
)

// handleReliableMessage dispatches a reliable-channel message: before the
// handshake completes, only ClientHello is accepted (capped at
// MaxClientHelloAttempts); this package does not yet track post-handshake
// reliable traffic beyond the hello itself, since spec.md names no other
// reliable-channel client message.
func (s *Store) handleReliableMessage(conn *Connection, data []byte) {
	conn.mu.Lock()
	alreadyDone := conn.handshakeComplete
	conn.mu.Unlock()
	if alreadyDone {
		return
	}

	hello, err := protocol.ParseClientHello(data)
	if err != nil {
		s.failHandshakeAttempt(conn, err)
		return
	}
	if hello.ProtocolVersion != protocol.ProtocolVersion {
		s.failHandshakeAttempt(conn, fmt.Errorf("protocol mismatch"))
		return
	}
	if hello.SessionToken != conn.sessionToken || hello.ConnectionID != conn.id {
		s.failHandshakeAttempt(conn, fmt.Errorf("id mismatch"))
		return
	}

	nickname := normalizeNickname(hello.Nickname, conn.id)
	characterID := normalizeCharacterID(hello.CharacterID, s.config.AllowedCharacterIDs)

	conn.mu.Lock()
	conn.handshakeComplete = true
	conn.nickname = nickname
	conn.characterID = characterID
	conn.mu.Unlock()

	serverHello := protocol.BuildServerHello(conn.id, conn.id)
	sendReliableJSON(conn, serverHello)

	s.broadcastNewPlayer(conn, nickname, characterID)
}

func (s *Store) failHandshakeAttempt(conn *Connection, cause error) {
	conn.mu.Lock()
	conn.handshakeAttempts++
	attempts := conn.handshakeAttempts
	conn.mu.Unlock()

	errMsg := protocol.BuildError(protocol.ErrProtocolMismatch, cause.Error())
	sendReliableJSON(conn, errMsg)

	if attempts >= protocol.MaxClientHelloAttempts {
		s.CloseConnection(conn.id)
	}
}

// broadcastNewPlayer sends the new player's profile to every other ready
// connection first, then sends existing profiles to the new connection,
// finally echoing the new connection's own profile to itself last —
// matching the reference's broadcast ordering.
func (s *Store) broadcastNewPlayer(conn *Connection, nickname, characterID string) {
	newProfile := protocol.PlayerProfile{
		Type:        protocol.TypePlayerProfile,
		ClientID:    conn.id,
		Nickname:    nickname,
		CharacterID: characterID,
	}

	s.mu.Lock()
	others := make([]*Connection, 0, len(s.connections))
	for id, c := range s.connections {
		if id != conn.id {
			others = append(others, c)
		}
	}
	s.mu.Unlock()

	for _, other := range others {
		if !other.isReady() {
			continue
		}
		sendReliableJSON(other, newProfile)
	}

	for _, other := range others {
		if !other.isReady() {
			continue
		}
		other.mu.Lock()
		profile := protocol.PlayerProfile{
			Type:        protocol.TypePlayerProfile,
			ClientID:    other.id,
			Nickname:    other.nickname,
			CharacterID: other.characterID,
		}
		other.mu.Unlock()
		sendReliableJSON(conn, profile)
	}

	sendReliableJSON(conn, newProfile)
}

func sendReliableJSON(conn *Connection, v any) {
	data, err := marshalJSON(v)
	if err != nil {
		return
	}
	_ = conn.reliable.Send(data)
}

func normalizeNickname(raw, connectionID string) string {
	trimmed := strings.TrimSpace(raw)
	if nicknamePattern.MatchString(trimmed) {
		return trimmed
	}
	h := sha1.Sum([]byte(connectionID))
	n := binary.BigEndian.Uint16(h[:2]) % 10000
	return fmt.Sprintf("Player%04d", n)
}

func normalizeCharacterID(raw string, allowed map[string]bool) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "default"
	}
	if !characterIDPattern.MatchString(trimmed) {
		return "default"
	}
	if len(allowed) == 0 {
		return trimmed
	}
	if trimmed == "default" || allowed[trimmed] {
		return trimmed
	}
	return "default"
}
