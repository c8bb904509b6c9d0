package tickloop

import (
	"sync"
	"testing"

	"afps-server/internal/protocol"
	"afps-server/internal/ratelimit"
	"afps-server/internal/sim"
)

type fakeStore struct {
	mu      sync.Mutex
	ready   []string
	pending map[string][]protocol.InputCmd
	sent    map[string]int
	closed  map[string]bool
}

func newFakeStore(ids ...string) *fakeStore {
	return &fakeStore{
		ready:   ids,
		pending: make(map[string][]protocol.InputCmd),
		sent:    make(map[string]int),
		closed:  make(map[string]bool),
	}
}

func (f *fakeStore) ReadyConnectionIds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ready))
	copy(out, f.ready)
	return out
}

func (f *fakeStore) queueInput(id string, cmd protocol.InputCmd) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[id] = append(f.pending[id], cmd)
}

func (f *fakeStore) DrainAllInputs() []protocol.InputBatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	var batches []protocol.InputBatch
	for id, inputs := range f.pending {
		if len(inputs) == 0 {
			continue
		}
		batches = append(batches, protocol.InputBatch{ConnectionID: id, Inputs: inputs})
		delete(f.pending, id)
	}
	return batches
}

func (f *fakeStore) SendUnreliable(id string, payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[id]++
	return true
}

func (f *fakeStore) ConnectionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ready)
}

func (f *fakeStore) CloseConnection(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed[id] = true
}

func TestStepMovesPlayerFromInput(t *testing.T) {
	store := newFakeStore("conn1")
	store.queueInput("conn1", protocol.InputCmd{Type: protocol.TypeInputCmd, InputSeq: 1, MoveX: 1, MoveY: 0})

	loop := New(store, 60, 20, 5, sim.DefaultConfig(), sim.NewCollisionWorld(nil), ratelimit.New(40, 30))
	loop.Step()

	cs := loop.conns["conn1"]
	if cs == nil {
		t.Fatal("expected connection state to exist after Step")
	}
	if cs.player.X <= 0 {
		t.Fatalf("expected player to have moved in +X, got %v", cs.player.X)
	}
	if cs.lastInputSeq != 1 {
		t.Fatalf("expected lastInputSeq 1, got %d", cs.lastInputSeq)
	}
}

func TestStepPrunesDisconnectedConnections(t *testing.T) {
	store := newFakeStore("conn1")
	loop := New(store, 60, 20, 5, sim.DefaultConfig(), sim.NewCollisionWorld(nil), ratelimit.New(40, 30))
	loop.Step()
	if _, ok := loop.conns["conn1"]; !ok {
		t.Fatal("expected conn1 to be tracked")
	}

	store.mu.Lock()
	store.ready = nil
	store.mu.Unlock()

	loop.Step()
	if _, ok := loop.conns["conn1"]; ok {
		t.Fatal("expected conn1 to be pruned after disconnect")
	}
}

func TestStepEmitsSnapshotAtCadence(t *testing.T) {
	store := newFakeStore("conn1")
	loop := New(store, 60, 60, 5, sim.DefaultConfig(), sim.NewCollisionWorld(nil), ratelimit.New(40, 30))

	for i := 0; i < 3; i++ {
		loop.Step()
	}
	store.mu.Lock()
	sent := store.sent["conn1"]
	store.mu.Unlock()
	if sent != 3 {
		t.Fatalf("expected a snapshot every tick at 1:1 cadence, got %d sends for 3 ticks", sent)
	}
}

func TestResolveFireAppliesDamage(t *testing.T) {
	store := newFakeStore("shooter", "target")
	loop := New(store, 60, 20, 5, sim.DefaultConfig(), sim.NewCollisionWorld(nil), ratelimit.New(40, 30))

	loop.Step() // seed connState for both

	shooter := loop.conns["shooter"]
	target := loop.conns["target"]
	shooter.player.X, shooter.player.Y, shooter.player.Z = 0, 0, 0
	target.player.X, target.player.Y, target.player.Z = 0, -5, 0
	shooter.history.Push(int(loop.serverTick), shooter.player)
	target.history.Push(int(loop.serverTick), target.player)
	shooter.lastInput = protocol.InputCmd{Fire: true, ViewYaw: 0, ViewPitch: 0}
	shooter.weaponSlot = 1 // blaster, hitscan

	loop.Step()

	if target.combat.Health >= 100 {
		t.Fatalf("expected target to take damage, health=%v", target.combat.Health)
	}
}
