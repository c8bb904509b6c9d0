package snapshot

import (
	"math"
	"testing"

	"afps-server/internal/protocol"
)

func TestFirstEmissionNeedsFull(t *testing.T) {
	var b Baseline
	if !b.NeedsFull(5) {
		t.Fatal("expected the first emission to require a full snapshot")
	}
}

func TestKeyframeCadence(t *testing.T) {
	var b Baseline
	full := protocol.StateSnapshot{ServerTick: 1}
	b.RecordFull(full)

	fullCount := 1
	for tick := 2; tick <= 25; tick++ {
		if b.NeedsFull(5) {
			fullCount++
			b.RecordFull(protocol.StateSnapshot{ServerTick: int64(tick)})
		} else {
			b.RecordDelta()
		}
	}
	if fullCount != 5 {
		t.Fatalf("expected exactly 5 full snapshots in a 25-tick span, got %d", fullCount)
	}
}

func TestDiffProducesExpectedMask(t *testing.T) {
	var b Baseline
	base := protocol.StateSnapshot{ServerTick: 1, PosX: 1, PosY: 2, Health: 100}
	b.RecordFull(base)

	current := protocol.StateSnapshot{ServerTick: 2, PosX: 5, PosY: 2, Health: 90}
	delta := b.Diff(current)

	if delta.Mask&MaskPosX == 0 {
		t.Fatal("expected PosX bit set")
	}
	if delta.Mask&MaskPosY != 0 {
		t.Fatal("expected PosY bit unset since it did not change")
	}
	if delta.Mask&MaskHealth == 0 {
		t.Fatal("expected Health bit set")
	}
	if delta.BaseTick != 1 {
		t.Fatalf("expected base tick 1, got %d", delta.BaseTick)
	}
}

func TestDiffTreatsNegativeZeroAsUnchanged(t *testing.T) {
	var b Baseline
	b.RecordFull(protocol.StateSnapshot{ServerTick: 1, VelX: 0})

	current := protocol.StateSnapshot{ServerTick: 2, VelX: math.Copysign(0, -1)}
	delta := b.Diff(current)

	if delta.Mask&MaskVelX != 0 {
		t.Fatal("expected -0.0 vs +0.0 to not set the VelX bit")
	}
}

func TestApplyDeltaRoundTrip(t *testing.T) {
	base := protocol.StateSnapshot{ServerTick: 1, PosX: 1, PosY: 2, PosZ: 3, Health: 100, Kills: 2}
	var b Baseline
	b.RecordFull(base)

	current := protocol.StateSnapshot{ServerTick: 2, PosX: 10, PosY: 2, PosZ: 3, Health: 80, Kills: 3, LastProcessedInputSeq: 7}
	delta := b.Diff(current)

	reconstructed := ApplyDelta(base, delta)
	if reconstructed.PosX != current.PosX || reconstructed.Health != current.Health || reconstructed.Kills != current.Kills {
		t.Fatalf("round-trip mismatch: got %+v want %+v", reconstructed, current)
	}
	if reconstructed.PosY != base.PosY {
		t.Fatalf("expected unchanged PosY to carry over from base, got %v", reconstructed.PosY)
	}
}
