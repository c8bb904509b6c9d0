// Package snapshot builds the per-connection StateSnapshot/StateSnapshotDelta
// pair the tick loop emits each snapshot tick, and tracks the per-connection
// baseline needed to diff against.
//
// Grounded on the reference's StateSnapshot/StateSnapshotDelta encoding in
// tick.cpp (field-by-field inequality building a bitmask) and on the
// teacher's game_snapshot.go triple-buffer idiom, adapted here to a
// single-struct-per-connection baseline since each connection's snapshot is
// one small fixed-shape record rather than a collection of render entities.
package snapshot

import "afps-server/internal/protocol"

// Bitmask field identities. spec.md §4.E fixes this exact bit-to-field
// assignment as part of the wire contract — not a free implementation
// choice — since any client decodes a delta's mask against this layout.
const (
	MaskPosX         uint32 = 1 << 0
	MaskPosY         uint32 = 1 << 1
	MaskPosZ         uint32 = 1 << 2
	MaskVelX         uint32 = 1 << 3
	MaskVelY         uint32 = 1 << 4
	MaskVelZ         uint32 = 1 << 5
	MaskDashCooldown uint32 = 1 << 6
	MaskHealth       uint32 = 1 << 7
	MaskKills        uint32 = 1 << 8
	MaskDeaths       uint32 = 1 << 9
	MaskWeaponSlot   uint32 = 1 << 10
)

// Baseline tracks the last full snapshot emitted to one connection plus the
// keyframe cadence counter that decides when the next one must be full
// again.
type Baseline struct {
	last     protocol.StateSnapshot
	hasLast  bool
	sequence int
}

// NeedsFull reports whether the next emission must be a full StateSnapshot:
// true on the very first emission, whenever the keyframe interval is
// disabled (<=0), or every Nth emission per spec.md's keyframe cadence.
func (b *Baseline) NeedsFull(keyframeInterval int) bool {
	if !b.hasLast || keyframeInterval <= 0 {
		return true
	}
	return b.sequence%keyframeInterval == 0
}

// RecordFull stores a newly emitted full snapshot as the new baseline and
// advances the cadence counter.
func (b *Baseline) RecordFull(full protocol.StateSnapshot) {
	b.last = full
	b.hasLast = true
	b.sequence++
}

// RecordDelta advances the cadence counter without changing the baseline
// (a delta does not replace the reference snapshot it was diffed against).
func (b *Baseline) RecordDelta() {
	b.sequence++
}

// BaseTick returns the tick of the currently held baseline, or 0 if none.
func (b *Baseline) BaseTick() int64 {
	return b.last.ServerTick
}

// Diff compares current against the held baseline field-by-field and
// returns a StateSnapshotDelta carrying only the changed fields, selected by
// mask. Equality uses ordinary float64 comparison, under which -0.0 and
// +0.0 compare equal and so do not set a bit — matching spec.md §4.D's
// "even a -0.0 vs +0.0 difference is considered unchanged" rule.
func (b *Baseline) Diff(current protocol.StateSnapshot) protocol.StateSnapshotDelta {
	base := b.last
	delta := protocol.StateSnapshotDelta{
		Type:                  protocol.TypeStateSnapshotDelta,
		ServerTick:            current.ServerTick,
		BaseTick:              base.ServerTick,
		LastProcessedInputSeq: current.LastProcessedInputSeq,
	}

	if current.PosX != base.PosX {
		delta.Mask |= MaskPosX
		delta.PosX = current.PosX
	}
	if current.PosY != base.PosY {
		delta.Mask |= MaskPosY
		delta.PosY = current.PosY
	}
	if current.PosZ != base.PosZ {
		delta.Mask |= MaskPosZ
		delta.PosZ = current.PosZ
	}
	if current.VelX != base.VelX {
		delta.Mask |= MaskVelX
		delta.VelX = current.VelX
	}
	if current.VelY != base.VelY {
		delta.Mask |= MaskVelY
		delta.VelY = current.VelY
	}
	if current.VelZ != base.VelZ {
		delta.Mask |= MaskVelZ
		delta.VelZ = current.VelZ
	}
	if current.WeaponSlot != base.WeaponSlot {
		delta.Mask |= MaskWeaponSlot
		delta.WeaponSlot = current.WeaponSlot
	}
	if current.DashCooldown != base.DashCooldown {
		delta.Mask |= MaskDashCooldown
		delta.DashCooldown = current.DashCooldown
	}
	if current.Health != base.Health {
		delta.Mask |= MaskHealth
		delta.Health = current.Health
	}
	if current.Kills != base.Kills {
		delta.Mask |= MaskKills
		delta.Kills = current.Kills
	}
	if current.Deaths != base.Deaths {
		delta.Mask |= MaskDeaths
		delta.Deaths = current.Deaths
	}

	return delta
}

// ApplyDelta reconstructs the snapshot a delta represents by overlaying its
// masked fields onto the base snapshot it was diffed against. Used by tests
// (and by any client-side reference implementation) to verify the round-trip
// invariant in spec.md §8.7.
func ApplyDelta(base protocol.StateSnapshot, delta protocol.StateSnapshotDelta) protocol.StateSnapshot {
	result := base
	result.ServerTick = delta.ServerTick
	result.LastProcessedInputSeq = delta.LastProcessedInputSeq

	if delta.Mask&MaskPosX != 0 {
		result.PosX = delta.PosX
	}
	if delta.Mask&MaskPosY != 0 {
		result.PosY = delta.PosY
	}
	if delta.Mask&MaskPosZ != 0 {
		result.PosZ = delta.PosZ
	}
	if delta.Mask&MaskVelX != 0 {
		result.VelX = delta.VelX
	}
	if delta.Mask&MaskVelY != 0 {
		result.VelY = delta.VelY
	}
	if delta.Mask&MaskVelZ != 0 {
		result.VelZ = delta.VelZ
	}
	if delta.Mask&MaskWeaponSlot != 0 {
		result.WeaponSlot = delta.WeaponSlot
	}
	if delta.Mask&MaskDashCooldown != 0 {
		result.DashCooldown = delta.DashCooldown
	}
	if delta.Mask&MaskHealth != 0 {
		result.Health = delta.Health
	}
	if delta.Mask&MaskKills != 0 {
		result.Kills = delta.Kills
	}
	if delta.Mask&MaskDeaths != 0 {
		result.Deaths = delta.Deaths
	}
	return result
}
