package sim

import "math"

// Step advances one PlayerState by dt under the given sanitized Input,
// Config, and optional CollisionWorld. It is a pure function: no clock, no
// randomness, no global state. A non-finite or non-positive dt is a no-op,
// per the determinism contract — the accumulator decides how many times to
// call Step, Step itself never looks at wall time.
//
// The eight-step order below is fixed and is itself part of the contract:
// reordering steps changes outcomes even when each step is individually
// correct.
func Step(state *PlayerState, input Input, cfg Config, dt float64, world *CollisionWorld) {
	if !finite(dt) || dt <= 0 {
		return
	}
	if world == nil {
		world = emptyWorld
	}

	stepHorizontal(state, input, cfg, dt)
	stepDash(state, input, cfg, dt)
	stepGrapple(state, input, cfg, dt, world)
	stepShield(state, input, cfg, dt)
	stepShockwave(state, input, cfg, dt)
	stepJumpGravity(state, input, cfg, dt)

	advanceWithCollisions(state, cfg, dt, world)

	stepVertical(state, cfg, dt)
}

var emptyWorld = NewCollisionWorld(nil)

func stepHorizontal(state *PlayerState, input Input, cfg Config, dt float64) {
	accel := nonNeg(cfg.Accel)
	friction := nonNeg(cfg.Friction)

	wishX, wishY := input.MoveX, input.MoveY
	wishMag := math.Sqrt(wishX*wishX + wishY*wishY)
	if wishMag > 1 {
		wishX /= wishMag
		wishY /= wishMag
		wishMag = 1
	}

	maxSpeed := nonNeg(cfg.MoveSpeed)
	if input.Sprint && cfg.SprintMultiplier > 0 {
		maxSpeed = maxSpeed * cfg.SprintMultiplier
	}

	if wishMag > 0 && maxSpeed > 0 && accel > 0 {
		state.VelX += wishX * accel * dt
		state.VelY += wishY * accel * dt
		speed := math.Sqrt(state.VelX*state.VelX + state.VelY*state.VelY)
		if speed > maxSpeed && speed > 0 {
			scale := maxSpeed / speed
			state.VelX *= scale
			state.VelY *= scale
		}
	} else if friction > 0 {
		speed := math.Sqrt(state.VelX*state.VelX + state.VelY*state.VelY)
		if speed > 0 {
			newSpeed := math.Max(0, speed-friction*dt)
			scale := newSpeed / speed
			state.VelX *= scale
			state.VelY *= scale
		}
	}
}

func stepDash(state *PlayerState, input Input, cfg Config, dt float64) {
	if !finite(state.DashCooldown) || state.DashCooldown < 0 {
		state.DashCooldown = 0
	} else if state.DashCooldown > 0 {
		state.DashCooldown = math.Max(0, state.DashCooldown-dt)
	}

	if !input.Dash || state.DashCooldown > 0 {
		return
	}
	impulse := nonNeg(cfg.DashImpulse)
	if impulse <= 0 {
		return
	}

	dirX, dirY := input.MoveX, input.MoveY
	mag := math.Sqrt(dirX*dirX + dirY*dirY)
	if mag <= 0 {
		dirX, dirY = state.VelX, state.VelY
		mag = math.Sqrt(dirX*dirX + dirY*dirY)
	}
	if mag <= 0 {
		return
	}
	dirX /= mag
	dirY /= mag

	state.VelX += dirX * impulse
	state.VelY += dirY * impulse
	state.DashCooldown = nonNeg(cfg.DashCooldown)
}

func stepShield(state *PlayerState, input Input, cfg Config, dt float64) {
	cooldown := nonNeg(cfg.ShieldCooldown)
	if !finite(state.ShieldCooldown) || state.ShieldCooldown < 0 {
		state.ShieldCooldown = 0
	} else if state.ShieldCooldown > 0 {
		state.ShieldCooldown = math.Max(0, state.ShieldCooldown-dt)
	}

	duration := nonNeg(cfg.ShieldDuration)
	if !finite(state.ShieldTimer) || state.ShieldTimer < 0 {
		state.ShieldTimer = 0
	}

	pressed := input.Shield && !state.ShieldInput
	released := !input.Shield && state.ShieldInput
	state.ShieldInput = input.Shield

	release := func() {
		state.ShieldActive = false
		state.ShieldTimer = 0
		state.ShieldCooldown = cooldown
	}

	if pressed && state.ShieldCooldown <= 0 && duration > 0 {
		state.ShieldActive = true
		state.ShieldTimer = duration
	}

	if state.ShieldActive {
		if released {
			release()
		} else {
			state.ShieldTimer = math.Max(0, state.ShieldTimer-dt)
			if state.ShieldTimer <= 0 {
				release()
			}
		}
	}
}

func stepShockwave(state *PlayerState, input Input, cfg Config, dt float64) {
	cooldown := nonNeg(cfg.ShockwaveCooldown)
	if !finite(state.ShockwaveCooldown) || state.ShockwaveCooldown < 0 {
		state.ShockwaveCooldown = 0
	} else if state.ShockwaveCooldown > 0 {
		state.ShockwaveCooldown = math.Max(0, state.ShockwaveCooldown-dt)
	}
	state.ShockwaveTriggered = false
	pressed := input.Shockwave && !state.ShockwaveInput
	state.ShockwaveInput = input.Shockwave

	radius := nonNeg(cfg.ShockwaveRadius)
	impulse := nonNeg(cfg.ShockwaveImpulse)
	damage := nonNeg(cfg.ShockwaveDamage)
	ready := radius > 0 && (impulse > 0 || damage > 0)

	if pressed && state.ShockwaveCooldown <= 0 && ready {
		state.ShockwaveTriggered = true
		state.ShockwaveCooldown = cooldown
	}
}

func stepJumpGravity(state *PlayerState, input Input, cfg Config, dt float64) {
	jumpVelocity := nonNeg(cfg.JumpVelocity)
	if state.Grounded {
		if input.Jump && jumpVelocity > 0 {
			state.VelZ = jumpVelocity
			state.Grounded = false
		} else if state.VelZ < 0 {
			state.VelZ = 0
		}
	}

	gravity := nonNeg(cfg.Gravity)
	if !state.Grounded && gravity > 0 {
		state.VelZ -= gravity * dt
	}
}

func stepVertical(state *PlayerState, cfg Config, dt float64) {
	height := ResolvePlayerHeight(cfg)
	ceiling := math.Inf(1)
	if finite(cfg.ArenaHalfSize) && cfg.ArenaHalfSize > 0 {
		ceiling = math.Max(0, cfg.ArenaHalfSize-height)
	}

	state.Z += state.VelZ * dt
	switch {
	case !finite(state.Z):
		state.Z = 0
		state.VelZ = 0
		state.Grounded = true
	case state.Z > ceiling:
		state.Z = ceiling
		if state.VelZ > 0 {
			state.VelZ = 0
		}
	case state.Z <= 0:
		state.Z = 0
		if state.VelZ < 0 {
			state.VelZ = 0
		}
		const groundNormalZ = 1.0
		state.Grounded = groundNormalZ >= walkableNormalZ
	default:
		state.Grounded = false
	}
}
