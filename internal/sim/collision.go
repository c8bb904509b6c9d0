package sim

import "math"

// expandedAabb2D is a collider (or the single configured rectangular
// obstacle) already grown by the player radius on X/Y, used for both the
// overlap-resolution pass and the swept test.
type expandedAabb2D struct {
	minX, maxX, minY, maxY float64
}

// obstacleAabb returns the single optional rectangular obstacle from config,
// or ok=false if it is disabled (min >= max on either axis, or non-finite).
func obstacleAabb(cfg Config) (minX, maxX, minY, maxY float64, ok bool) {
	if !finite(cfg.ObstacleMinX) || !finite(cfg.ObstacleMaxX) || !finite(cfg.ObstacleMinY) || !finite(cfg.ObstacleMaxY) {
		return 0, 0, 0, 0, false
	}
	if cfg.ObstacleMinX >= cfg.ObstacleMaxX || cfg.ObstacleMinY >= cfg.ObstacleMaxY {
		return 0, 0, 0, 0, false
	}
	return cfg.ObstacleMinX, cfg.ObstacleMaxX, cfg.ObstacleMinY, cfg.ObstacleMaxY, true
}

// buildExpandedAabbs gathers every box a player at the given z with the given
// height could be colliding with horizontally: world colliders whose vertical
// slab [z, z+height] overlaps the collider's Z extent, plus the configured
// obstacle (unconditionally, since it has no Z extent in this model), all
// grown by player radius on X/Y.
func buildExpandedAabbs(state PlayerState, cfg Config, world *CollisionWorld) []expandedAabb2D {
	radius := math.Max(0, cfg.PlayerRadius)
	height := ResolvePlayerHeight(cfg)
	var out []expandedAabb2D

	colliders := world.Colliders()
	if len(colliders) > 0 {
		// Narrow X-window first via broad phase, then a precise Z-slab test
		// per candidate, matching the reference's per-collider vertical check.
		margin := maxColliderHalfWidth(colliders)
		candidates := world.broad.candidatesX(colliders, state.X-radius-margin, state.X+radius+margin)
		for _, i := range candidates {
			c := colliders[i]
			if state.Z+height < c.MinZ || state.Z > c.MaxZ {
				continue
			}
			out = append(out, expandedAabb2D{
				minX: c.MinX - radius,
				maxX: c.MaxX + radius,
				minY: c.MinY - radius,
				maxY: c.MaxY + radius,
			})
		}
	}

	if minX, maxX, minY, maxY, ok := obstacleAabb(cfg); ok {
		out = append(out, expandedAabb2D{
			minX: minX - radius,
			maxX: maxX + radius,
			minY: minY - radius,
			maxY: maxY + radius,
		})
	}
	return out
}

// maxColliderHalfWidth is a conservative over-estimate used only to widen the
// broad-phase query window so no true candidate is missed; a generous bound
// is cheap because the X-sweep is already narrowed by MinX sorting.
func maxColliderHalfWidth(colliders []AabbCollider) float64 {
	max := 0.0
	for _, c := range colliders {
		if w := (c.MaxX - c.MinX) / 2; w > max {
			max = w
		}
	}
	return max
}

func insideExpanded(x, y float64, box expandedAabb2D) bool {
	return x > box.minX && x < box.maxX && y > box.minY && y < box.maxY
}

// resolvePenetration pushes (x,y) out of box along the minimum-penetration
// axis and zeroes the velocity component opposing that plane, matching the
// reference's ResolveAabbPenetration.
func resolvePenetration(x, y, vx, vy float64, box expandedAabb2D) (nx, ny, nvx, nvy float64) {
	left := x - box.minX
	right := box.maxX - x
	down := y - box.minY
	up := box.maxY - y

	min := left
	axis := 0
	if right < min {
		min = right
		axis = 1
	}
	if down < min {
		min = down
		axis = 2
	}
	if up < min {
		min = up
		axis = 3
	}

	nx, ny, nvx, nvy = x, y, vx, vy
	switch axis {
	case 0:
		nx = box.minX
		if nvx > 0 {
			nvx = 0
		}
	case 1:
		nx = box.maxX
		if nvx < 0 {
			nvx = 0
		}
	case 2:
		ny = box.minY
		if nvy > 0 {
			nvy = 0
		}
	case 3:
		ny = box.maxY
		if nvy < 0 {
			nvy = 0
		}
	}
	return nx, ny, nvx, nvy
}

// resolveOverlaps repeatedly resolves any box the player currently sits
// inside, up to 4 passes, matching the reference's bounded fixed-point loop.
func resolveOverlaps(state *PlayerState, boxes []expandedAabb2D) {
	for pass := 0; pass < 4; pass++ {
		resolved := false
		for _, box := range boxes {
			if insideExpanded(state.X, state.Y, box) {
				state.X, state.Y, state.VelX, state.VelY = resolvePenetration(state.X, state.Y, state.VelX, state.VelY, box)
				resolved = true
			}
		}
		if !resolved {
			return
		}
	}
}

// sweepHit is the earliest time-of-impact candidate found this iteration.
type sweepHit struct {
	t               float64
	normalX, normalY float64
	found           bool
}

func considerSweepHit(best *sweepHit, t, nx, ny float64) {
	if !finite(t) || t < 0 || t > 1 {
		return
	}
	if !best.found || t < best.t {
		best.t, best.normalX, best.normalY, best.found = t, nx, ny, true
	}
}

// sweepSegmentAabb runs the slab method against one axis-aligned box and
// reports the earliest entry time and its normal, or found=false if the
// segment never enters the box within [0,1].
func sweepSegmentAabb(x, y, dx, dy float64, box expandedAabb2D) (hit sweepHit) {
	tEntryX, tExitX, okX, normX := sweepAxis(x, dx, box.minX, box.maxX)
	if !okX {
		return hit
	}
	tEntryY, tExitY, okY, normY := sweepAxis(y, dy, box.minY, box.maxY)
	if !okY {
		return hit
	}

	tEntry := math.Max(tEntryX, tEntryY)
	tExit := math.Min(tExitX, tExitY)
	if tEntry > tExit || tEntry > 1 || tExit < 0 {
		return hit
	}
	if tEntry < 0 {
		// Already inside on this axis pair; resolveOverlaps handles start-inside
		// cases, so the sweep itself only reports forward-looking hits.
		return hit
	}
	nx, ny := normX, normY
	if tEntryX > tEntryY {
		ny = 0
	} else {
		nx = 0
	}
	hit.t, hit.normalX, hit.normalY, hit.found = tEntry, nx, ny, true
	return hit
}

func sweepAxis(origin, delta, min, max float64) (tEntry, tExit float64, ok bool, normal float64) {
	const epsilon = 1e-12
	if math.Abs(delta) < epsilon {
		if origin >= min && origin <= max {
			return math.Inf(-1), math.Inf(1), true, 0
		}
		return 0, 0, false, 0
	}
	t1 := (min - origin) / delta
	t2 := (max - origin) / delta
	n1, n2 := -1.0, 1.0
	if t1 > t2 {
		t1, t2 = t2, t1
		n1, n2 = n2, n1
	}
	if delta > 0 {
		return t1, t2, true, n1
	}
	return t1, t2, true, n1
}

// resolveArenaPenetration clamps (x,y) back inside the arena's allowed
// region and zeroes velocity only when it would carry the player further
// outward, matching the reference's ResolveArenaPenetration. This is
// deliberately distinct from resolvePenetration: that routine treats its
// box as a solid obstacle to be pushed out of (zero velocity heading back
// into the box), whereas the arena box is the allowed region itself, so
// each axis clamps independently and the zeroed sign is the opposite.
func resolveArenaPenetration(x, y, vx, vy, minBound, maxBound float64) (nx, ny, nvx, nvy float64) {
	nx, ny, nvx, nvy = x, y, vx, vy
	switch {
	case nx < minBound:
		nx = minBound
		if nvx < 0 {
			nvx = 0
		}
	case nx > maxBound:
		nx = maxBound
		if nvx > 0 {
			nvx = 0
		}
	}
	switch {
	case ny < minBound:
		ny = minBound
		if nvy < 0 {
			nvy = 0
		}
	case ny > maxBound:
		ny = maxBound
		if nvy > 0 {
			nvy = 0
		}
	}
	return nx, ny, nvx, nvy
}

// sweepArenaBounds tests the swept segment against the four arena planes
// independently (not as a combined box entry like sweepSegmentAabb), since
// the arena is the allowed region rather than a solid obstacle: a hit is
// only reported when the segment would cross a bound moving outward,
// matching the reference's SweepArenaBounds.
func sweepArenaBounds(x, y, dx, dy float64, minBound, maxBound float64) (hit sweepHit) {
	switch {
	case dx > 0 && x+dx > maxBound:
		considerSweepHit(&hit, (maxBound-x)/dx, -1, 0)
	case dx < 0 && x+dx < minBound:
		considerSweepHit(&hit, (minBound-x)/dx, 1, 0)
	}
	switch {
	case dy > 0 && y+dy > maxBound:
		considerSweepHit(&hit, (maxBound-y)/dy, 0, -1)
	case dy < 0 && y+dy < minBound:
		considerSweepHit(&hit, (minBound-y)/dy, 0, 1)
	}
	return hit
}

// advanceWithCollisions is the swept-AABB horizontal resolver: up to 3
// iterations of (rebuild expanded boxes, resolve starting overlaps, sweep the
// remaining delta, clamp to first TOI, zero the blocked velocity component,
// shrink the remaining delta), followed by one final overlap + arena pass.
func advanceWithCollisions(state *PlayerState, cfg Config, dt float64, world *CollisionWorld) {
	remaining := 1.0
	minX, maxX, minY, maxY, hasArena := ArenaBounds(cfg)

	for iter := 0; iter < 3; iter++ {
		boxes := buildExpandedAabbs(*state, cfg, world)

		if hasArena && (state.X < minX || state.X > maxX || state.Y < minY || state.Y > maxY) {
			state.X, state.Y, state.VelX, state.VelY = resolveArenaPenetration(state.X, state.Y, state.VelX, state.VelY, minX, maxX)
		}
		resolveOverlaps(state, boxes)

		dx := state.VelX * dt * remaining
		dy := state.VelY * dt * remaining
		if dx == 0 && dy == 0 {
			break
		}

		var best sweepHit
		if hasArena {
			if h := sweepArenaBounds(state.X, state.Y, dx, dy, minX, maxX); h.found {
				considerSweepHit(&best, h.t, h.normalX, h.normalY)
			}
		}
		for _, box := range boxes {
			if insideExpanded(state.X, state.Y, box) {
				continue // already handled by resolveOverlaps above
			}
			if h := sweepSegmentAabb(state.X, state.Y, dx, dy, box); h.found {
				considerSweepHit(&best, h.t, h.normalX, h.normalY)
			}
		}

		if !best.found {
			state.X += dx
			state.Y += dy
			break
		}

		state.X += dx * best.t
		state.Y += dy * best.t
		if best.normalX != 0 {
			state.VelX = 0
		}
		if best.normalY != 0 {
			state.VelY = 0
		}
		remaining *= 1 - best.t
	}

	finalBoxes := buildExpandedAabbs(*state, cfg, world)
	resolveOverlaps(state, finalBoxes)
	if hasArena && (state.X < minX || state.X > maxX || state.Y < minY || state.Y > maxY) {
		state.X, state.Y, state.VelX, state.VelY = resolveArenaPenetration(state.X, state.Y, state.VelX, state.VelY, minX, maxX)
	}
}
