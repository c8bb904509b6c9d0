package signaling

import (
	"encoding/json"

	"afps-server/internal/protocol"
	"afps-server/internal/ratelimit"
)

func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// handleUnreliableMessage dispatches a post-handshake unreliable-channel
// message: Ping/Pong, or an InputCmd gated by the per-connection token
// bucket and strictly-increasing seq check. Counters accumulate toward the
// configured close thresholds, per spec.md §4.H's handshake/rate-limit
// section.
func (s *Store) handleUnreliableMessage(conn *Connection, data []byte, limiter *ratelimit.Limiter, now float64) {
	conn.mu.Lock()
	ready := conn.handshakeComplete && !conn.closed
	conn.mu.Unlock()
	if !ready {
		s.bumpInvalid(conn)
		return
	}

	if !limiter.Allow(conn.id, now) {
		s.bumpRateLimit(conn)
		return
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		s.bumpInvalid(conn)
		return
	}

	switch probe.Type {
	case protocol.TypePing:
		ping, err := protocol.ParsePing(data)
		if err != nil {
			s.bumpInvalid(conn)
			return
		}
		pong := protocol.BuildPong(ping.ClientTimeMs)
		if payload, err := marshalJSON(pong); err == nil {
			_ = conn.unreliable.Send(payload)
		}
	case protocol.TypeInputCmd:
		cmd, err := protocol.ParseInputCmd(data)
		if err != nil {
			s.bumpInvalid(conn)
			return
		}
		conn.mu.Lock()
		if cmd.InputSeq <= conn.lastInputSeq {
			conn.mu.Unlock()
			s.bumpInvalid(conn)
			return
		}
		conn.lastInputSeq = cmd.InputSeq
		conn.pendingInputs = append(conn.pendingInputs, cmd)
		if max := s.config.MaxPendingInputs; max > 0 && len(conn.pendingInputs) > max {
			conn.pendingInputs = conn.pendingInputs[len(conn.pendingInputs)-max:]
		}
		conn.mu.Unlock()
	default:
		s.bumpInvalid(conn)
	}
}

func (s *Store) bumpInvalid(conn *Connection) {
	conn.mu.Lock()
	conn.invalidInputCount++
	exceeded := s.config.MaxInvalidInputs > 0 && conn.invalidInputCount >= s.config.MaxInvalidInputs
	conn.mu.Unlock()
	if exceeded {
		s.CloseConnection(conn.id)
	}
}

func (s *Store) bumpRateLimit(conn *Connection) {
	conn.mu.Lock()
	conn.rateLimitCount++
	exceeded := s.config.MaxRateLimitDrops > 0 && conn.rateLimitCount >= s.config.MaxRateLimitDrops
	conn.mu.Unlock()
	if exceeded {
		s.CloseConnection(conn.id)
	}
}

// DrainAllInputs atomically swaps every connection's pending queue for an
// empty one and returns the drained batches, matching the reference's
// drain_all_inputs: snapshot shared handles under the registry lock,
// release it, then swap per-connection queues under their own locks.
func (s *Store) DrainAllInputs() []protocol.InputBatch {
	s.mu.Lock()
	s.pruneExpiredSessionsLocked()
	conns := make([]*Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	batches := make([]protocol.InputBatch, 0, len(conns))
	for _, conn := range conns {
		conn.mu.Lock()
		pending := conn.pendingInputs
		conn.pendingInputs = nil
		conn.mu.Unlock()
		if len(pending) == 0 {
			continue
		}
		batches = append(batches, protocol.InputBatch{ConnectionID: conn.id, Inputs: pending})
	}
	return batches
}
