// Package combat resolves hit detection and health/kill bookkeeping: hitscan
// rays against rewound poses, swept projectile impacts, and area-effect
// falloff, plus the CombatState each player carries between hits.
//
// Grounded on the reference afps::combat (combat.cpp/.h) for the geometry and
// damage rules, and on the teacher's internal/game/combat.go for the
// tick-countdown idiom (decrement-then-clamp-at-zero) applied to
// respawn_timer here.
package combat

import (
	"math"

	"afps-server/internal/posehistory"
	"afps-server/internal/sim"
)

const (
	maxHealth          = 100.0
	respawnDelaySeconds = 3.0
	playerEyeHeight    = 1.6
	shieldBlockDot     = 0.2

	// PlayerEyeHeight is playerEyeHeight exported for callers outside this
	// package that need to build a firing origin, e.g. the tick loop when
	// spawning a projectile from a player's viewpoint.
	PlayerEyeHeight = playerEyeHeight

	// MaxHealth is maxHealth exported for callers outside this package that
	// need to clamp a heal (e.g. the tick loop applying a health pickup).
	MaxHealth = maxHealth
)

// State is the per-player combat bookkeeping named in spec.md §3. Health is
// monotonically non-increasing within a life; on reaching zero, alive flips
// false, respawn_timer is armed, and the kill/death counters update exactly
// once.
type State struct {
	Health       float64
	Kills        int
	Deaths       int
	Alive        bool
	RespawnTimer float64
}

// New returns a freshly spawned CombatState at full health.
func New() State {
	return State{Health: maxHealth, Alive: true}
}

// ApplyDamage applies damage to target, crediting attacker with a kill if the
// hit is lethal and attacker is a distinct combatant. Returns true if this
// call was the killing blow. A dead target, non-finite, or non-positive
// damage is a no-op that returns false.
func ApplyDamage(target *State, attacker *State, damage float64) bool {
	if !target.Alive {
		return false
	}
	if !finite(damage) || damage <= 0 {
		return false
	}
	target.Health = math.Max(0, target.Health-damage)
	if target.Health > 0 {
		return false
	}
	target.Alive = false
	target.RespawnTimer = respawnDelaySeconds
	target.Deaths++
	if attacker != nil && attacker != target {
		attacker.Kills++
	}
	return true
}

// ApplyShieldMultiplier scales damage by a clamped [0,1] multiplier when the
// target's shield is active; damage is returned unchanged otherwise, and
// non-finite damage passes through untouched (ApplyDamage rejects it anyway).
func ApplyShieldMultiplier(damage float64, shieldActive bool, multiplier float64) float64 {
	if !finite(damage) || damage <= 0 {
		return damage
	}
	if !shieldActive {
		return damage
	}
	m := 1.0
	if finite(multiplier) {
		m = clamp01(multiplier)
	}
	return damage * m
}

// ApplyDamageWithShield scales damage by the shield multiplier, then applies
// it exactly as ApplyDamage does.
func ApplyDamageWithShield(target *State, attacker *State, damage float64, shieldActive bool, multiplier float64) bool {
	adjusted := ApplyShieldMultiplier(damage, shieldActive, multiplier)
	return ApplyDamage(target, attacker, adjusted)
}

// UpdateRespawn counts down a dead player's respawn timer and revives them at
// full health once it reaches zero. Returns true the tick a respawn occurs.
func UpdateRespawn(state *State, dt float64) bool {
	if state.Alive {
		return false
	}
	if !finite(dt) || dt <= 0 {
		return false
	}
	state.RespawnTimer = math.Max(0, state.RespawnTimer-dt)
	if state.RespawnTimer > 0 {
		return false
	}
	state.Alive = true
	state.Health = maxHealth
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// HitResult is the outcome of a hitscan resolution.
type HitResult struct {
	Hit      bool
	TargetID string
	Distance float64
	Position sim.Vec3
}

// ResolveHitscan rewinds the shooter's own pose to rewindTick (lag
// compensation applies to the shooter's vantage point too, matching the
// reference), then finds the nearest rewound target cylinder the view ray
// strikes before any world geometry occludes it.
//
// Tie-break is strictly-lower t; iteration order over histories does not
// matter because Go map iteration order is already unspecified and the spec
// only requires the minimum, not a stable tie-break among equal distances.
func ResolveHitscan(
	shooterID string,
	histories map[string]*posehistory.History[sim.PlayerState],
	rewindTick int,
	view sim.ViewAngles,
	cfg sim.Config,
	world *sim.CollisionWorld,
	rng float64,
) HitResult {
	var result HitResult

	shooterHistory, ok := histories[shooterID]
	if !ok {
		return result
	}
	shooterState, ok := shooterHistory.SampleAtOrBefore(rewindTick)
	if !ok {
		return result
	}

	safeView := sim.SanitizeViewAngles(view.Yaw, view.Pitch)
	dir := sim.ViewDirection(safeView)
	if !finite(dir.X) || !finite(dir.Y) || !finite(dir.Z) {
		return result
	}

	origin := sim.Vec3{X: shooterState.X, Y: shooterState.Y, Z: shooterState.Z + playerEyeHeight}
	maxRange := math.Inf(1)
	if finite(rng) && rng > 0 {
		maxRange = rng
	}

	worldDistance := worldRayDistance(origin, dir, cfg, world)

	radius := resolveRadius(cfg)
	height := resolveHeight(cfg)

	bestT := math.Inf(1)
	bestTarget := ""
	for id, history := range histories {
		if id == shooterID {
			continue
		}
		targetState, ok := history.SampleAtOrBefore(rewindTick)
		if !ok {
			continue
		}
		base := sim.Vec3{X: targetState.X, Y: targetState.Y, Z: targetState.Z}
		t, ok := raycastCylinder(origin, dir, base, height, radius)
		if !ok || t < 0 || t > maxRange {
			continue
		}
		if t < bestT {
			bestT = t
			bestTarget = id
		}
	}

	if bestTarget == "" {
		return result
	}
	if finite(worldDistance) && worldDistance >= 0 && bestT >= worldDistance {
		return result
	}

	result.Hit = true
	result.TargetID = bestTarget
	result.Distance = bestT
	result.Position = sim.Vec3{X: origin.X + dir.X*bestT, Y: origin.Y + dir.Y*bestT, Z: origin.Z + dir.Z*bestT}
	return result
}

func resolveRadius(cfg sim.Config) float64 {
	if finite(cfg.PlayerRadius) && cfg.PlayerRadius > 0 {
		return cfg.PlayerRadius
	}
	return 0.5
}

func resolveHeight(cfg sim.Config) float64 {
	if finite(cfg.PlayerHeight) && cfg.PlayerHeight > 0 {
		return cfg.PlayerHeight
	}
	return 1.7
}
