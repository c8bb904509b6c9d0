package sim

import "math"

// stepGrapple implements the full grapple lifecycle: edge-triggered attach
// via a raycast on press, and — while attached — per-tick line-of-sight and
// distance checks that detach the rope, or a spring-like pull toward the
// anchor when the rope has gone taut. See SPEC_FULL.md's "Grapple full
// lifecycle" note: this is carried from the original implementation in full,
// since spec.md's §4.A step 3 only summarizes it.
func stepGrapple(state *PlayerState, input Input, cfg Config, dt float64, world *CollisionWorld) {
	cooldown := nonNeg(cfg.GrappleCooldown)
	if !finite(state.GrappleCooldown) || state.GrappleCooldown < 0 {
		state.GrappleCooldown = 0
	} else if state.GrappleCooldown > 0 {
		state.GrappleCooldown = math.Max(0, state.GrappleCooldown-dt)
	}

	pressed := input.Grapple && !state.GrappleInput
	released := !input.Grapple && state.GrappleInput
	state.GrappleInput = input.Grapple

	releaseGrapple := func(startCooldown bool) {
		state.GrappleActive = false
		if startCooldown {
			state.GrappleCooldown = cooldown
		}
	}

	maxDistance := nonNeg(cfg.GrappleMaxDistance)

	if pressed && !state.GrappleActive && state.GrappleCooldown <= 0 && maxDistance > 0 {
		tryAttachGrapple(state, input, cfg, world, maxDistance)
	}

	if !state.GrappleActive {
		return
	}

	if released {
		releaseGrapple(true)
		return
	}

	eyeHeight := ResolveEyeHeight(cfg)
	origin := Vec3{X: state.X, Y: state.Y, Z: state.Z + eyeHeight}
	dx := state.GrappleAnchor.X - origin.X
	dy := state.GrappleAnchor.Y - origin.Y
	dz := state.GrappleAnchor.Z - origin.Z
	dist := math.Sqrt(dx*dx + dy*dy + dz*dz)

	if !finite(dist) || dist <= 0 {
		releaseGrapple(true)
		return
	}

	ropeSlack := nonNeg(cfg.GrappleRopeSlack)
	if maxDistance > 0 && dist > maxDistance+ropeSlack {
		releaseGrapple(true)
		return
	}

	dir := Vec3{X: dx / dist, Y: dy / dist, Z: dz / dist}
	losHit := RaycastWorld(origin, dir, cfg, world)
	if !losHit.Hit || losHit.T+1e-4 < dist {
		releaseGrapple(true)
		return
	}

	if dist > state.GrappleLength+ropeSlack {
		stretch := dist - state.GrappleLength - ropeSlack
		pullStrength := nonNeg(cfg.GrapplePullStrength)
		damping := nonNeg(cfg.GrappleDamping)
		velAlong := state.VelX*dir.X + state.VelY*dir.Y + state.VelZ*dir.Z
		accel := pullStrength*stretch - damping*velAlong
		if finite(accel) && accel > 0 {
			state.VelX += dir.X * accel * dt
			state.VelY += dir.Y * accel * dt
			state.VelZ += dir.Z * accel * dt
		}
	}
}

func tryAttachGrapple(state *PlayerState, input Input, cfg Config, world *CollisionWorld, maxDistance float64) {
	eyeHeight := ResolveEyeHeight(cfg)
	origin := Vec3{X: state.X, Y: state.Y, Z: state.Z + eyeHeight}
	view := SanitizeViewAngles(input.ViewYaw, input.ViewPitch)
	dir := ViewDirection(view)

	hit := RaycastWorld(origin, dir, cfg, world)
	if !hit.Hit || hit.T < 0 || hit.T > maxDistance {
		return
	}

	anchor := Vec3{X: origin.X + dir.X*hit.T, Y: origin.Y + dir.Y*hit.T, Z: origin.Z + dir.Z*hit.T}
	ceiling := math.Inf(1)
	if finite(cfg.ArenaHalfSize) && cfg.ArenaHalfSize > 0 {
		ceiling = math.Max(0, cfg.ArenaHalfSize-ResolvePlayerHeight(cfg))
	}
	anchor.Z = clamp(anchor.Z, 0, ceiling)

	dx := anchor.X - origin.X
	dy := anchor.Y - origin.Y
	dz := anchor.Z - origin.Z
	anchorDist := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if !finite(anchorDist) {
		return
	}

	minAttachNormalY := cfg.GrappleMinAttachNormalY
	flatSurface := math.Abs(hit.NormalZ) < 1e-6
	allowAttach := flatSurface || !finite(minAttachNormalY) || minAttachNormalY <= 0 || math.Abs(hit.NormalZ) >= minAttachNormalY
	if !allowAttach {
		return
	}

	state.GrappleActive = true
	state.GrappleAnchor = anchor
	state.GrappleLength = anchorDist
}
