package combat

import (
	"math"

	"afps-server/internal/posehistory"
	"afps-server/internal/sim"
)

// ProjectileState is an in-flight projectile advanced tick by tick, grounded
// on the reference's ProjectileState plus Advance/IsExpired.
type ProjectileState struct {
	ID        int64
	OwnerID   string
	Position  sim.Vec3
	Velocity  sim.Vec3
	Radius    float64
	TTL       float64
	Damage    float64
	Explosion float64 // explosion radius; 0 means a direct-impact-only projectile
}

// ImpactResult is the outcome of sweeping a projectile for one tick.
type ImpactResult struct {
	Hit      bool
	TargetID string // empty if the impact was against world geometry, not a player
	Position sim.Vec3
}

// AdvanceProjectile moves a projectile by dt and reports whether it expired
// (TTL exhausted) without being consumed by ResolveProjectileImpact. Callers
// are expected to check ResolveProjectileImpact before discarding on expiry.
func AdvanceProjectile(p *ProjectileState, dt float64) bool {
	if !finite(dt) || dt <= 0 {
		return false
	}
	p.TTL -= dt
	p.Position.X += p.Velocity.X * dt
	p.Position.Y += p.Velocity.Y * dt
	p.Position.Z += p.Velocity.Z * dt
	return p.TTL <= 0
}

// ResolveProjectileImpact sweeps a projectile's motion this tick against
// rewound player cylinders and static world geometry, returning the first
// thing it hit (nearest along the sweep). World geometry always wins a tie
// against a player cylinder at the same point, matching the reference's
// "solid beats flesh" resolution order.
func ResolveProjectileImpact(
	p ProjectileState,
	from sim.Vec3,
	histories map[string]*posehistory.History[sim.PlayerState],
	rewindTick int,
	cfg sim.Config,
	world *sim.CollisionWorld,
) ImpactResult {
	var result ImpactResult

	dx := p.Position.X - from.X
	dy := p.Position.Y - from.Y
	dz := p.Position.Z - from.Z
	length := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if length < 1e-9 {
		return result
	}
	dir := sim.Vec3{X: dx / length, Y: dy / length, Z: dz / length}

	worldHit := sim.RaycastWorld(from, dir, cfg, world)
	worldFrac := math.Inf(1)
	if worldHit.Hit && worldHit.T <= length {
		worldFrac = worldHit.T / length
	}

	height := resolveHeight(cfg)

	bestFrac := worldFrac
	bestTarget := ""
	for id, history := range histories {
		if id == p.OwnerID {
			continue
		}
		targetState, ok := history.SampleAtOrBefore(rewindTick)
		if !ok {
			continue
		}
		center := sim.Vec3{X: targetState.X, Y: targetState.Y, Z: targetState.Z}
		frac, ok := segmentCylinder(from, p.Position, center, height, p.Radius+resolveRadius(cfg))
		if !ok {
			continue
		}
		if frac < bestFrac {
			bestFrac = frac
			bestTarget = id
		}
	}

	if math.IsInf(bestFrac, 1) {
		return result
	}

	result.Hit = true
	result.TargetID = bestTarget
	result.Position = sim.Vec3{
		X: from.X + dx*bestFrac,
		Y: from.Y + dy*bestFrac,
		Z: from.Z + dz*bestFrac,
	}
	return result
}

// ExplosionHit is one player's share of area-effect damage.
type ExplosionHit struct {
	TargetID string
	Damage   float64
}

// ComputeExplosionDamage applies linear falloff from full damage at the
// center to zero at radius, per the reference's ComputeExplosionDamage. It
// deliberately performs no line-of-sight check — a blast radius reaches
// anything within it regardless of intervening geometry.
func ComputeExplosionDamage(
	center sim.Vec3,
	damage, radius float64,
	histories map[string]*posehistory.History[sim.PlayerState],
	rewindTick int,
) []ExplosionHit {
	var hits []ExplosionHit
	if !finite(damage) || damage <= 0 || !finite(radius) || radius <= 0 {
		return hits
	}

	for id, history := range histories {
		targetState, ok := history.SampleAtOrBefore(rewindTick)
		if !ok {
			continue
		}
		eye := sim.Vec3{X: targetState.X, Y: targetState.Y, Z: targetState.Z + playerEyeHeight}
		dx := eye.X - center.X
		dy := eye.Y - center.Y
		dz := eye.Z - center.Z
		dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
		if dist > radius {
			continue
		}
		falloff := 1.0 - dist/radius
		dealt := damage * falloff
		if dealt <= 0 {
			continue
		}
		hits = append(hits, ExplosionHit{TargetID: id, Damage: dealt})
	}
	return hits
}

// ShockwaveHit is one player's share of a shockwave pulse: linear-falloff
// damage plus a physical push vector, per the reference's ComputeShockwaveHits.
type ShockwaveHit struct {
	TargetID string
	Damage   float64
	Impulse  sim.Vec3
}

// ComputeShockwaveHits is the line-of-sight-gated variant of area effect used
// by the shockwave ability: same linear falloff as ComputeExplosionDamage,
// but a target whose line to the center is blocked by world geometry is
// dropped entirely (it's a physical shove along a clear line, not a blast),
// and surviving hits also carry an impulse vector scaled by the falloff.
func ComputeShockwaveHits(
	center sim.Vec3,
	maxImpulse, damage, radius float64,
	histories map[string]*posehistory.History[sim.PlayerState],
	rewindTick int,
	cfg sim.Config,
	world *sim.CollisionWorld,
) []ShockwaveHit {
	var hits []ShockwaveHit
	if !finite(damage) || damage < 0 || !finite(radius) || radius <= 0 {
		return hits
	}
	for id, history := range histories {
		targetState, ok := history.SampleAtOrBefore(rewindTick)
		if !ok {
			continue
		}
		eye := sim.Vec3{X: targetState.X, Y: targetState.Y, Z: targetState.Z + playerEyeHeight}
		dx := eye.X - center.X
		dy := eye.Y - center.Y
		dz := eye.Z - center.Z
		dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
		if dist > radius {
			continue
		}

		dir := sim.Vec3{X: 0, Y: 0, Z: 1}
		if dist > 1e-6 {
			dir = sim.Vec3{X: dx / dist, Y: dy / dist, Z: dz / dist}
		}
		if blockHit := sim.RaycastWorld(center, dir, cfg, world); blockHit.Hit && blockHit.T+1e-4 < dist {
			continue
		}

		falloff := 1.0 - dist/radius
		impulse := sim.Vec3{X: dir.X * falloff * maxImpulse, Y: dir.Y * falloff * maxImpulse, Z: dir.Z * falloff * maxImpulse}
		impulse = sanitizeVec3(impulse)
		hits = append(hits, ShockwaveHit{TargetID: id, Damage: damage * falloff, Impulse: impulse})
	}
	return hits
}

// sanitizeVec3 zeroes any non-finite component, matching the reference's
// per-component NaN guard on computed impulses.
func sanitizeVec3(v sim.Vec3) sim.Vec3 {
	if !finite(v.X) {
		v.X = 0
	}
	if !finite(v.Y) {
		v.Y = 0
	}
	if !finite(v.Z) {
		v.Z = 0
	}
	return v
}
