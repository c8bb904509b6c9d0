package tickloop

import "afps-server/internal/sim"

// PickupKind is a tagged variant, not an inheritance hierarchy, matching the
// design note on WeaponKind/PickupKind polymorphism. Grounded on the
// reference's afps::world::PickupKind (map_world.h).
type PickupKind int

const (
	PickupHealth PickupKind = iota
	PickupWeapon
)

func (k PickupKind) String() string {
	switch k {
	case PickupHealth:
		return "health"
	case PickupWeapon:
		return "weapon"
	default:
		return "unknown"
	}
}

// pickupRadius is the horizontal collection radius, matching the reference's
// kPickupRadius (map_world.cpp).
const pickupRadius = 1.2

// pickupState is one spawn point's runtime bookkeeping: whether it currently
// holds an item and, while depleted, how many ticks remain until it
// respawns. Grounded on the reference's tick.h PickupState (definition,
// active, respawn_tick), adapted from an absolute tick number to a
// decrementing countdown to match this package's dt-driven cooldown idiom
// used elsewhere (fireCooldown, ShockwaveCooldown).
type pickupState struct {
	Kind         PickupKind
	Position     sim.Vec3
	WeaponSlot   int // PickupWeapon only
	HealAmount   float64 // PickupHealth only
	RespawnTicks int
	active       bool
	respawnCountdown int
}

// defaultPickups lays out a small fixed ring of health and weapon pickups
// around the arena center, since loading spawn points from a map asset is an
// out-of-scope external collaborator per spec.md §3 (the same boundary that
// keeps weapon-definition loading out of internal/weapons).
func defaultPickups() []pickupState {
	const z = 0.2
	return []pickupState{
		{Kind: PickupHealth, Position: sim.Vec3{X: -6, Y: -6, Z: z}, HealAmount: 25, RespawnTicks: 600, active: true},
		{Kind: PickupHealth, Position: sim.Vec3{X: 6, Y: 6, Z: z}, HealAmount: 25, RespawnTicks: 600, active: true},
		{Kind: PickupHealth, Position: sim.Vec3{X: 0, Y: 8, Z: z}, HealAmount: 25, RespawnTicks: 600, active: true},
		{Kind: PickupWeapon, Position: sim.Vec3{X: 6, Y: -6, Z: z}, WeaponSlot: 1, RespawnTicks: 900, active: true},
		{Kind: PickupWeapon, Position: sim.Vec3{X: -6, Y: 6, Z: z}, WeaponSlot: 2, RespawnTicks: 900, active: true},
		{Kind: PickupWeapon, Position: sim.Vec3{X: 0, Y: -8, Z: z}, WeaponSlot: 3, RespawnTicks: 900, active: true},
	}
}

// withinPickupRange reports whether a player at (x, y, z) is standing close
// enough to collect the pickup: horizontal distance within pickupRadius and
// a generous vertical band, since pickups have no real collision volume.
func withinPickupRange(p *pickupState, x, y, z float64) bool {
	dx := x - p.Position.X
	dy := y - p.Position.Y
	dz := z - p.Position.Z
	if dz < -2 || dz > 2 {
		return false
	}
	return dx*dx+dy*dy <= pickupRadius*pickupRadius
}

// stepPickup advances one pickup's respawn countdown by one tick, matching
// step 6 of the per-tick procedure (spec.md §4.D): a depleted pickup simply
// counts down until it reactivates.
func stepPickup(p *pickupState) {
	if p.active {
		return
	}
	if p.respawnCountdown > 0 {
		p.respawnCountdown--
		return
	}
	p.active = true
}
