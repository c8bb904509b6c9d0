package sim

import "math"

// ViewAngles is a sanitized yaw/pitch pair: yaw wrapped to (-pi, pi], pitch
// clamped away from the poles so ViewDirection never degenerates.
type ViewAngles struct {
	Yaw, Pitch float64
}

const pi = math.Pi
const maxPitch = (pi / 2.0) - 0.01

// WrapAngle normalizes an angle into (-pi, pi], substituting 0 for
// non-finite input.
func WrapAngle(angle float64) float64 {
	if !finite(angle) {
		return 0
	}
	wrapped := math.Mod(angle+pi, 2*pi)
	if wrapped <= 0 {
		wrapped += 2 * pi
	}
	return wrapped - pi
}

// SanitizeViewAngles wraps yaw and clamps pitch away from the vertical poles.
func SanitizeViewAngles(yaw, pitch float64) ViewAngles {
	safePitch := pitch
	if !finite(pitch) {
		safePitch = 0
	}
	return ViewAngles{Yaw: WrapAngle(yaw), Pitch: clamp(safePitch, -maxPitch, maxPitch)}
}

// ViewDirection converts sanitized view angles into a unit forward vector.
// Degenerates to looking along -Y if the resulting vector is not finite or
// has zero length (should not happen for sanitized input, but is cheap
// insurance against a malformed Config producing a NaN downstream).
func ViewDirection(v ViewAngles) Vec3 {
	cosPitch := math.Cos(v.Pitch)
	dir := Vec3{
		X: math.Sin(v.Yaw) * cosPitch,
		Y: -math.Cos(v.Yaw) * cosPitch,
		Z: math.Sin(v.Pitch),
	}
	length := math.Sqrt(dir.X*dir.X + dir.Y*dir.Y + dir.Z*dir.Z)
	if length <= 0 || !finite(length) {
		return Vec3{X: 0, Y: -1, Z: 0}
	}
	return Vec3{X: dir.X / length, Y: dir.Y / length, Z: dir.Z / length}
}

// RaycastHit describes the nearest surface a ray struck.
type RaycastHit struct {
	Hit             bool
	T               float64
	NormalX, NormalY, NormalZ float64
}

// RaycastWorld casts a ray against the arena walls, floor, ceiling, the
// configured obstacle, and every world collider, returning the nearest hit.
// Used by the grapple attach/LOS checks in Step.
func RaycastWorld(origin, dir Vec3, cfg Config, world *CollisionWorld) RaycastHit {
	var best RaycastHit
	best.T = math.Inf(1)

	minX, maxX, minY, maxY, hasArena := ArenaBounds(cfg)
	ceiling := math.Inf(1)
	if hasArena {
		ceiling = math.Max(0, cfg.ArenaHalfSize-ResolvePlayerHeight(cfg))
	}

	consider := func(t, nx, ny, nz float64) {
		if !finite(t) || t < 0 {
			return
		}
		if t < best.T {
			best = RaycastHit{Hit: true, T: t, NormalX: nx, NormalY: ny, NormalZ: nz}
		}
	}

	if hasArena {
		if t, nx, ny, ok := raySlab2D(origin.X, origin.Y, dir.X, dir.Y, minX, maxX, minY, maxY); ok {
			consider(t, nx, ny, 0)
		}
		if t, ok := rayPlane(origin.Z, dir.Z, 0, 1); ok {
			consider(t, 0, 0, 1) // floor, outward normal points up
		}
		if t, ok := rayPlane(origin.Z, dir.Z, ceiling, -1); ok {
			consider(t, 0, 0, -1)
		}
	}

	if oMinX, oMaxX, oMinY, oMaxY, ok := obstacleAabb(cfg); ok {
		if t, nx, ny, ok2 := raySlab2D(origin.X, origin.Y, dir.X, dir.Y, oMinX, oMaxX, oMinY, oMaxY); ok2 {
			consider(t, nx, ny, 0)
		}
	}

	for _, c := range world.Colliders() {
		if t, nx, ny, nz, ok := rayAabb3D(origin, dir, c); ok {
			consider(t, nx, ny, nz)
		}
	}

	return best
}

// rayPlane intersects a ray with the horizontal plane z=level, where side is
// +1 for the floor (hit only while moving down) or -1 for the ceiling (hit
// only while moving up); only a forward-facing hit (dir opposing side) is
// reported.
func rayPlane(originZ, dirZ, level, side float64) (t float64, ok bool) {
	const epsilon = 1e-8
	if math.Abs(dirZ) < epsilon {
		return 0, false
	}
	if side > 0 && dirZ >= 0 {
		return 0, false
	}
	if side < 0 && dirZ <= 0 {
		return 0, false
	}
	t = (level - originZ) / dirZ
	return t, t >= 0
}

// raySlab2D intersects a ray with a 2D axis-aligned box (ignoring Z),
// returning the entry time (or the exit time when the origin is inside the
// box) and the normal of the axis that set the entry time.
func raySlab2D(ox, oy, dx, dy, minX, maxX, minY, maxY float64) (t, nx, ny float64, ok bool) {
	const epsilon = 1e-8
	tMin, tMax := math.Inf(-1), math.Inf(1)
	normX, normY := 0.0, 0.0

	axis := func(o, d, lo, hi float64, isX bool) bool {
		if math.Abs(d) < epsilon {
			return o >= lo && o <= hi
		}
		t1 := (lo - o) / d
		t2 := (hi - o) / d
		n1, n2 := -1.0, 1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			n1, n2 = n2, n1
		}
		if t1 > tMin {
			tMin = t1
			if isX {
				normX, normY = n1, 0
			} else {
				normX, normY = 0, n1
			}
		}
		if t2 < tMax {
			tMax = t2
		}
		return tMin <= tMax
	}

	if !axis(ox, dx, minX, maxX, true) {
		return 0, 0, 0, false
	}
	if !axis(oy, dy, minY, maxY, false) {
		return 0, 0, 0, false
	}
	if tMax < 0 {
		return 0, 0, 0, false
	}
	if tMin >= 0 {
		return tMin, normX, normY, true
	}
	return tMax, normX, normY, true
}

// rayAabb3D intersects a ray with a full 3D AABB collider.
func rayAabb3D(origin, dir Vec3, c AabbCollider) (t, nx, ny, nz float64, ok bool) {
	const epsilon = 1e-8
	tMin, tMax := math.Inf(-1), math.Inf(1)
	var normX, normY, normZ float64

	type axisBound struct {
		o, d, lo, hi float64
	}
	axes := []axisBound{
		{origin.X, dir.X, c.MinX, c.MaxX},
		{origin.Y, dir.Y, c.MinY, c.MaxY},
		{origin.Z, dir.Z, c.MinZ, c.MaxZ},
	}
	for i, a := range axes {
		if math.Abs(a.d) < epsilon {
			if a.o < a.lo || a.o > a.hi {
				return 0, 0, 0, 0, false
			}
			continue
		}
		t1 := (a.lo - a.o) / a.d
		t2 := (a.hi - a.o) / a.d
		n1 := -1.0
		if t1 > t2 {
			t1, t2, n1 = t2, t1, 1.0
		}
		if t1 > tMin {
			tMin = t1
			normX, normY, normZ = 0, 0, 0
			switch i {
			case 0:
				normX = n1
			case 1:
				normY = n1
			case 2:
				normZ = n1
			}
		}
		if t2 < tMax {
			tMax = t2
		}
		if tMin > tMax {
			return 0, 0, 0, 0, false
		}
	}
	if tMax < 0 {
		return 0, 0, 0, 0, false
	}
	if tMin >= 0 {
		return tMin, normX, normY, normZ, true
	}
	return tMax, normX, normY, normZ, true
}
