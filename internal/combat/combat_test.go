package combat

import (
	"math"
	"testing"

	"afps-server/internal/posehistory"
	"afps-server/internal/sim"
)

func TestApplyDamageKillsAndCreditsKill(t *testing.T) {
	target := New()
	attacker := New()

	killed := ApplyDamage(&target, &attacker, 150)
	if !killed {
		t.Fatal("expected lethal damage to report a kill")
	}
	if target.Alive {
		t.Fatal("expected target to be dead")
	}
	if target.Deaths != 1 {
		t.Fatalf("expected 1 death, got %d", target.Deaths)
	}
	if attacker.Kills != 1 {
		t.Fatalf("expected 1 kill, got %d", attacker.Kills)
	}
	if target.RespawnTimer <= 0 {
		t.Fatal("expected respawn timer to be armed")
	}
}

func TestApplyDamageSelfDamageNoKillCredit(t *testing.T) {
	self := New()
	ApplyDamage(&self, &self, 150)
	if self.Kills != 0 {
		t.Fatalf("expected self-damage to not credit a kill, got %d", self.Kills)
	}
	if self.Deaths != 1 {
		t.Fatalf("expected 1 death, got %d", self.Deaths)
	}
}

func TestApplyDamageOnDeadTargetIsNoop(t *testing.T) {
	target := New()
	target.Alive = false
	before := target
	ApplyDamage(&target, nil, 10)
	if target != before {
		t.Fatalf("expected no-op on dead target, got %+v", target)
	}
}

func TestApplyDamageRejectsNonFiniteAndNonPositive(t *testing.T) {
	target := New()
	before := target
	ApplyDamage(&target, nil, 0)
	ApplyDamage(&target, nil, -5)
	ApplyDamage(&target, nil, math.NaN())
	ApplyDamage(&target, nil, math.Inf(1))
	if target != before {
		t.Fatalf("expected no-op on non-finite or non-positive damage, got %+v", target)
	}
}

func TestApplyDamageWithShieldReducesDamage(t *testing.T) {
	full := New()
	ApplyDamage(&full, nil, 40)

	shielded := New()
	ApplyDamageWithShield(&shielded, nil, 40, true, 0.5)

	if shielded.Health <= full.Health {
		t.Fatalf("expected shielded target to take less damage: full=%v shielded=%v", full.Health, shielded.Health)
	}
	if shielded.Health != 80 {
		t.Fatalf("expected 20 effective damage, got health %v", shielded.Health)
	}
}

func TestUpdateRespawnRevivesAfterTimer(t *testing.T) {
	state := New()
	ApplyDamage(&state, nil, 1000)
	if state.Alive {
		t.Fatal("expected state to be dead")
	}

	for i := 0; i < 2; i++ {
		if UpdateRespawn(&state, 1.0) {
			t.Fatal("expected no respawn yet")
		}
	}
	if !UpdateRespawn(&state, 1.0) {
		t.Fatal("expected respawn on third second")
	}
	if !state.Alive || state.Health != maxHealth {
		t.Fatalf("expected full-health revival, got %+v", state)
	}
}

func TestResolveHitscanHitsNearestTarget(t *testing.T) {
	cfg := sim.DefaultConfig()
	world := sim.NewCollisionWorld(nil)

	shooterHistory := posehistory.New[sim.PlayerState](10)
	shooterHistory.Push(0, sim.PlayerState{X: 0, Y: 0, Z: 0})

	nearHistory := posehistory.New[sim.PlayerState](10)
	nearHistory.Push(0, sim.PlayerState{X: 0, Y: -5, Z: 0})

	farHistory := posehistory.New[sim.PlayerState](10)
	farHistory.Push(0, sim.PlayerState{X: 0, Y: -10, Z: 0})

	histories := map[string]*posehistory.History[sim.PlayerState]{
		"shooter": shooterHistory,
		"near":    nearHistory,
		"far":     farHistory,
	}

	view := sim.ViewAngles{Yaw: 0, Pitch: 0}
	result := ResolveHitscan("shooter", histories, 0, view, cfg, world, 0)

	if !result.Hit {
		t.Fatal("expected a hit")
	}
	if result.TargetID != "near" {
		t.Fatalf("expected nearest target 'near', got %q", result.TargetID)
	}
}

func TestResolveHitscanMissesOutOfRange(t *testing.T) {
	cfg := sim.DefaultConfig()
	world := sim.NewCollisionWorld(nil)

	shooterHistory := posehistory.New[sim.PlayerState](10)
	shooterHistory.Push(0, sim.PlayerState{X: 0, Y: 0, Z: 0})

	farHistory := posehistory.New[sim.PlayerState](10)
	farHistory.Push(0, sim.PlayerState{X: 0, Y: -50, Z: 0})

	histories := map[string]*posehistory.History[sim.PlayerState]{
		"shooter": shooterHistory,
		"far":     farHistory,
	}

	view := sim.ViewAngles{Yaw: 0, Pitch: 0}
	result := ResolveHitscan("shooter", histories, 0, view, cfg, world, 10)

	if result.Hit {
		t.Fatalf("expected a range-limited miss, got %+v", result)
	}
}

func TestComputeExplosionDamageFalloff(t *testing.T) {
	closeHistory := posehistory.New[sim.PlayerState](10)
	closeHistory.Push(0, sim.PlayerState{X: 1, Y: 0, Z: 0})

	farHistory := posehistory.New[sim.PlayerState](10)
	farHistory.Push(0, sim.PlayerState{X: 4, Y: 0, Z: 0})

	outsideHistory := posehistory.New[sim.PlayerState](10)
	outsideHistory.Push(0, sim.PlayerState{X: 20, Y: 0, Z: 0})

	histories := map[string]*posehistory.History[sim.PlayerState]{
		"close":   closeHistory,
		"far":     farHistory,
		"outside": outsideHistory,
	}

	hits := ComputeExplosionDamage(sim.Vec3{X: 0, Y: 0, Z: 0}, 100, 5, histories, 0)

	byID := map[string]float64{}
	for _, h := range hits {
		byID[h.TargetID] = h.Damage
	}
	if _, ok := byID["outside"]; ok {
		t.Fatal("expected outside-radius target to take no damage")
	}
	if byID["close"] <= byID["far"] {
		t.Fatalf("expected closer target to take more damage: close=%v far=%v", byID["close"], byID["far"])
	}
}

func TestComputeShockwaveHitsFalloffAndImpulse(t *testing.T) {
	cfg := sim.DefaultConfig()
	world := sim.NewCollisionWorld(nil)

	closeHistory := posehistory.New[sim.PlayerState](10)
	closeHistory.Push(0, sim.PlayerState{X: 1, Y: 0, Z: -playerEyeHeight})

	histories := map[string]*posehistory.History[sim.PlayerState]{
		"near": closeHistory,
	}

	hits := ComputeShockwaveHits(sim.Vec3{}, 20, 10, 6, histories, 0, cfg, world)
	if len(hits) != 1 {
		t.Fatalf("expected one hit, got %+v", hits)
	}
	wantFalloff := 1.0 - 1.0/6.0
	wantDamage := 10 * wantFalloff
	if math.Abs(hits[0].Damage-wantDamage) > 1e-9 {
		t.Fatalf("expected falloff damage %v, got %v", wantDamage, hits[0].Damage)
	}
	wantImpulseX := wantFalloff * 20
	if math.Abs(hits[0].Impulse.X-wantImpulseX) > 1e-9 {
		t.Fatalf("expected impulse.X %v, got %v", wantImpulseX, hits[0].Impulse.X)
	}
}

func TestComputeShockwaveHitsBlockedByWorldGeometry(t *testing.T) {
	cfg := sim.DefaultConfig()
	world := sim.NewCollisionWorld([]sim.AabbCollider{
		{MinX: 2, MaxX: 3, MinY: -0.5, MaxY: 0.5, MinZ: -0.5, MaxZ: 0.5},
	})

	behindHistory := posehistory.New[sim.PlayerState](10)
	behindHistory.Push(0, sim.PlayerState{X: 5, Y: 0, Z: -playerEyeHeight})

	histories := map[string]*posehistory.History[sim.PlayerState]{
		"behind": behindHistory,
	}

	hits := ComputeShockwaveHits(sim.Vec3{}, 20, 10, 6, histories, 0, cfg, world)
	if len(hits) != 0 {
		t.Fatalf("expected los-blocked target to take no hit, got %+v", hits)
	}
}

func TestResolveProjectileImpactHitsTarget(t *testing.T) {
	cfg := sim.DefaultConfig()
	world := sim.NewCollisionWorld(nil)

	targetHistory := posehistory.New[sim.PlayerState](10)
	targetHistory.Push(0, sim.PlayerState{X: 10, Y: 0, Z: 0})

	histories := map[string]*posehistory.History[sim.PlayerState]{
		"target": targetHistory,
	}

	p := ProjectileState{
		OwnerID:  "shooter",
		Position: sim.Vec3{X: 10.2, Y: 0, Z: 0},
		Radius:   0.2,
	}
	from := sim.Vec3{X: 0, Y: 0, Z: 0}

	result := ResolveProjectileImpact(p, from, histories, 0, cfg, world)
	if !result.Hit || result.TargetID != "target" {
		t.Fatalf("expected projectile to hit 'target', got %+v", result)
	}
}
