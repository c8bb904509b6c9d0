package tickloop

import (
	"encoding/json"
	"log"
	"math"
	"strconv"
	"sync"
	"time"

	"afps-server/internal/combat"
	"afps-server/internal/posehistory"
	"afps-server/internal/protocol"
	"afps-server/internal/ratelimit"
	"afps-server/internal/sim"
	"afps-server/internal/snapshot"
	"afps-server/internal/weapons"
)

// Store is the subset of the signaling registry the tick loop needs: the
// set of ready connections, an atomic drain of their pending inputs, and
// unreliable delivery. Kept as a narrow interface here (rather than
// importing the signaling package directly) to avoid a dependency cycle,
// since signaling in turn needs protocol types this package also uses.
type Store interface {
	ReadyConnectionIds() []string
	DrainAllInputs() []protocol.InputBatch
	SendUnreliable(connectionID string, payload []byte) bool
	ConnectionCount() int
	CloseConnection(connectionID string)
}

const (
	maxPoseHistorySamples = 64 // ~1s of history at 60Hz, matches the rewind window combat needs
	historyBytesCap       = protocol.MaxClientMessageBytes
)

// connState is the tick loop's private per-connection bookkeeping, pruned
// each tick to exactly the currently ready connection set.
type connState struct {
	player       sim.PlayerState
	combat       combat.State
	history      *posehistory.History[sim.PlayerState]
	lastInput    protocol.InputCmd
	lastInputSeq int64
	weaponSlot   int
	fireCooldown float64
	baseline     snapshot.Baseline
	invalidCount int
	rateLimitCount int
}

// Loop runs the fixed-rate authoritative simulation described in spec.md
// §4.D: prune stale per-connection state, drain inputs, step every ready
// player's physics, resolve fire input against the pose histories sampled at
// the current server tick (no per-shooter rewind), and
// emit full/delta snapshots at the configured cadence.
type Loop struct {
	store          Store
	accumulator    *Accumulator
	simConfig      sim.Config
	world          *sim.CollisionWorld
	snapshotRate   int
	keyframeInterval int
	rewindTicks    int
	inputLimiter   *ratelimit.Limiter

	mu          sync.Mutex
	conns       map[string]*connState
	serverTick  int64

	projectiles      []combat.ProjectileState
	nextProjectileID int64
	pickups          []pickupState
	activeIDs        []string // this tick's ready-connection ids, for broadcasting events

	snapshotAccumulator float64

	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}

	tickCount     int
	batchCount    int
	inputCount    int
	snapshotCount int
	lastLogTime   time.Time
}

// New builds a Loop. rewindTicks is set to the retained pose-history length
// but is not read: fire is resolved at the current server tick.
func New(store Store, tickRate, snapshotRate, keyframeInterval int, simConfig sim.Config, world *sim.CollisionWorld, inputLimiter *ratelimit.Limiter) *Loop {
	return &Loop{
		store:            store,
		accumulator:      NewAccumulator(tickRate),
		simConfig:        simConfig,
		world:            world,
		snapshotRate:     snapshotRate,
		keyframeInterval: keyframeInterval,
		rewindTicks:      maxPoseHistorySamples,
		inputLimiter:     inputLimiter,
		conns:            make(map[string]*connState),
		pickups:          defaultPickups(),
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}
}

// Start launches the loop on its own goroutine, mirroring the reference's
// dedicated tick thread.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	go l.run()
}

// Stop signals the loop to exit and blocks until it has.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.mu.Unlock()

	close(l.stopCh)
	<-l.doneCh
}

func (l *Loop) run() {
	defer close(l.doneCh)
	l.lastLogTime = time.Now()

	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		now := time.Now()
		ticks := l.accumulator.Advance(now)
		if ticks == 0 {
			sleepFor := time.Until(l.accumulator.NextTickTime())
			if sleepFor <= 0 {
				continue
			}
			select {
			case <-l.stopCh:
				return
			case <-time.After(sleepFor):
			}
			continue
		}

		for i := 0; i < ticks; i++ {
			l.Step()
			l.tickCount++
		}

		now = time.Now()
		if now.Sub(l.lastLogTime) >= time.Second {
			log.Printf("[tick] rate=%d ticks=%d conns=%d batches=%d inputs=%d snapshots=%d",
				l.accumulator.TickRate(), l.tickCount, l.store.ConnectionCount(), l.batchCount, l.inputCount, l.snapshotCount)
			l.tickCount, l.batchCount, l.inputCount, l.snapshotCount = 0, 0, 0, 0
			l.lastLogTime = now
		}
	}
}

// Step runs exactly one fixed-duration tick: prune, drain, simulate,
// resolve fire, and (at cadence) emit snapshots. Exported so tests and a
// manual-stepping harness can drive it without the wall-clock goroutine.
func (l *Loop) Step() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.serverTick++

	active := l.store.ReadyConnectionIds()
	l.activeIDs = active
	activeSet := make(map[string]struct{}, len(active))
	for _, id := range active {
		activeSet[id] = struct{}{}
	}
	for id := range l.conns {
		if _, ok := activeSet[id]; !ok {
			delete(l.conns, id)
			l.inputLimiter.Forget(id)
		}
	}
	for _, id := range active {
		if _, ok := l.conns[id]; !ok {
			l.conns[id] = &connState{
				combat:  combat.New(),
				history: posehistory.New[sim.PlayerState](maxPoseHistorySamples),
			}
		}
	}

	batches := l.store.DrainAllInputs()
	for _, batch := range batches {
		cs, ok := l.conns[batch.ConnectionID]
		if !ok || len(batch.Inputs) == 0 {
			continue
		}
		l.batchCount++
		l.inputCount += len(batch.Inputs)

		maxSeq := cs.lastInputSeq
		last := cs.lastInput
		found := false
		for _, cmd := range batch.Inputs {
			if cmd.InputSeq > maxSeq || !found {
				maxSeq = cmd.InputSeq
				last = cmd
				found = true
			}
		}
		if found {
			cs.lastInputSeq = maxSeq
			cs.lastInput = last
			if last.WeaponSlot > 0 {
				cs.weaponSlot = last.WeaponSlot
			}
		}
	}

	dt := l.accumulator.TickDuration().Seconds()

	histories := make(map[string]*posehistory.History[sim.PlayerState], len(active))
	for id, cs := range l.conns {
		histories[id] = cs.history
	}

	for _, id := range active {
		cs := l.conns[id]
		simInput := sim.MakeInput(
			cs.lastInput.MoveX, cs.lastInput.MoveY,
			cs.lastInput.Sprint, cs.lastInput.Jump, cs.lastInput.Dash,
			cs.lastInput.Grapple, cs.lastInput.Shield, cs.lastInput.Shockwave,
			cs.lastInput.ViewYaw, cs.lastInput.ViewPitch,
		)
		sim.Step(&cs.player, simInput, l.simConfig, dt, l.world)
		cs.history.Push(int(l.serverTick), cs.player)
		if cs.fireCooldown > 0 {
			cs.fireCooldown -= dt
		}
		combat.UpdateRespawn(&cs.combat, dt)

		if cs.lastInput.Fire && cs.combat.Alive && cs.fireCooldown <= 0 {
			l.resolveFire(id, cs, histories)
		}
	}

	// Step 5: spawn/advance/impact projectiles, then the current tick's
	// shockwave pulses (sim.Step already computed ShockwaveTriggered above).
	l.stepProjectiles(histories, dt)
	for _, id := range active {
		cs := l.conns[id]
		if cs.player.ShockwaveTriggered {
			l.resolveShockwave(id, cs, histories)
		}
	}

	// Step 6: respawn timers were already updated per-player above; pickup
	// respawn countdowns and collection run here.
	l.stepPickups(active)

	if l.accumulator.TickRate() > 0 {
		l.snapshotAccumulator += float64(l.snapshotRate) / float64(l.accumulator.TickRate())
	}
	if l.snapshotAccumulator < 1.0 {
		return
	}
	l.snapshotAccumulator -= 1.0

	for _, id := range active {
		cs := l.conns[id]
		full := protocol.StateSnapshot{
			Type:                  protocol.TypeStateSnapshot,
			ServerTick:            l.serverTick,
			LastProcessedInputSeq: cs.lastInputSeq,
			ClientID:              id,
			PosX:                  cs.player.X,
			PosY:                  cs.player.Y,
			PosZ:                  cs.player.Z,
			VelX:                  cs.player.VelX,
			VelY:                  cs.player.VelY,
			VelZ:                  cs.player.VelZ,
			WeaponSlot:            cs.weaponSlot,
			DashCooldown:          cs.player.DashCooldown,
			Health:                cs.combat.Health,
			Kills:                 cs.combat.Kills,
			Deaths:                cs.combat.Deaths,
		}

		if cs.baseline.NeedsFull(l.keyframeInterval) {
			payload, err := json.Marshal(full)
			if err != nil {
				continue
			}
			if l.store.SendUnreliable(id, payload) {
				l.snapshotCount++
				cs.baseline.RecordFull(full)
			}
			continue
		}

		delta := cs.baseline.Diff(full)
		payload, err := json.Marshal(delta)
		if err != nil {
			continue
		}
		if l.store.SendUnreliable(id, payload) {
			l.snapshotCount++
			cs.baseline.RecordDelta()
		}
	}
}

// resolveFire dispatches the current weapon's fire effect: hitscan/melee
// resolve instantly against poses sampled at the current server tick;
// projectile weapons spawn a
// ProjectileState that the tick loop advances and resolves every tick
// thereafter via stepProjectiles.
func (l *Loop) resolveFire(shooterID string, cs *connState, histories map[string]*posehistory.History[sim.PlayerState]) {
	def := weapons.BySlot(cs.weaponSlot)
	cs.fireCooldown = def.FireCooldown

	if def.Kind == weapons.KindProjectile {
		l.spawnProjectile(shooterID, cs, def)
		return
	}

	view := sim.ViewAngles{Yaw: cs.lastInput.ViewYaw, Pitch: cs.lastInput.ViewPitch}
	rewindTick := int(l.serverTick)
	result := combat.ResolveHitscan(shooterID, histories, rewindTick, view, l.simConfig, l.world, def.Range)
	if !result.Hit {
		return
	}
	target, ok := l.conns[result.TargetID]
	if !ok {
		return
	}
	killed := combat.ApplyDamageWithShield(&target.combat, &cs.combat, def.Damage, target.player.ShieldActive, l.simConfig.ShieldDamageMultiplier)
	evt := protocol.BuildHitEvent(protocol.EventHitscanHit, result.TargetID, def.Damage, killed)
	if payload, err := json.Marshal(evt); err == nil {
		l.store.SendUnreliable(shooterID, payload)
		l.store.SendUnreliable(result.TargetID, payload)
	}
}

// spawnProjectile creates a ProjectileState from the shooter's current
// position and view direction and appends it to the loop's projectile list,
// matching spec.md §4.D step 5 ("spawn projectiles on projectile-weapon
// fires"). A ProjectileSpawn event is broadcast so every client can render
// the in-flight projectile.
func (l *Loop) spawnProjectile(shooterID string, cs *connState, def weapons.Definition) {
	view := sim.SanitizeViewAngles(cs.lastInput.ViewYaw, cs.lastInput.ViewPitch)
	dir := sim.ViewDirection(view)
	origin := sim.Vec3{X: cs.player.X, Y: cs.player.Y, Z: cs.player.Z + combat.PlayerEyeHeight}

	l.nextProjectileID++
	proj := combat.ProjectileState{
		ID:        l.nextProjectileID,
		OwnerID:   shooterID,
		Position:  origin,
		Velocity:  sim.Vec3{X: dir.X * def.ProjectileSpeed, Y: dir.Y * def.ProjectileSpeed, Z: dir.Z * def.ProjectileSpeed},
		Radius:    def.ProjectileRadius,
		TTL:       def.ProjectileTTL,
		Damage:    def.Damage,
		Explosion: def.ExplosionRadius,
	}
	l.projectiles = append(l.projectiles, proj)

	l.broadcast(protocol.GameEvent{
		Type:         protocol.TypeGameEvent,
		Event:        protocol.EventProjectileSpawn,
		OwnerID:      shooterID,
		ProjectileID: strconv.FormatInt(proj.ID, 10),
		PosX:         proj.Position.X, PosY: proj.Position.Y, PosZ: proj.Position.Z,
		VelX: proj.Velocity.X, VelY: proj.Velocity.Y, VelZ: proj.Velocity.Z,
		TTL: proj.TTL,
	})
}

// stepProjectiles advances every in-flight projectile by dt and resolves its
// impact against the swept segment, matching spec.md §4.D step 5. A hit
// applies direct or (for splash-radius weapons) explosion damage and removes
// the projectile; a projectile that neither hits nor expires survives to the
// next tick.
func (l *Loop) stepProjectiles(histories map[string]*posehistory.History[sim.PlayerState], dt float64) {
	if len(l.projectiles) == 0 {
		return
	}
	rewindTick := int(l.serverTick)
	survivors := l.projectiles[:0]
	for _, proj := range l.projectiles {
		from := proj.Position
		expired := combat.AdvanceProjectile(&proj, dt)
		impact := combat.ResolveProjectileImpact(proj, from, histories, rewindTick, l.simConfig, l.world)

		if !impact.Hit {
			if expired {
				l.emitProjectileRemove(proj)
				continue
			}
			survivors = append(survivors, proj)
			continue
		}

		l.applyProjectileImpact(proj, impact, histories, rewindTick)
		l.emitProjectileRemove(proj)
	}
	l.projectiles = survivors
}

// applyProjectileImpact applies the damage a projectile's impact causes:
// explosion falloff to every player in blast radius for splash weapons
// (the shooter excluded), otherwise direct damage to the struck player.
func (l *Loop) applyProjectileImpact(proj combat.ProjectileState, impact combat.ImpactResult, histories map[string]*posehistory.History[sim.PlayerState], rewindTick int) {
	var shooterCombat *combat.State
	if shooter, ok := l.conns[proj.OwnerID]; ok {
		shooterCombat = &shooter.combat
	}

	if proj.Explosion > 0 {
		hits := combat.ComputeExplosionDamage(impact.Position, proj.Damage, proj.Explosion, histories, rewindTick)
		for _, hit := range hits {
			if hit.TargetID == proj.OwnerID {
				continue
			}
			target, ok := l.conns[hit.TargetID]
			if !ok {
				continue
			}
			killed := combat.ApplyDamageWithShield(&target.combat, shooterCombat, hit.Damage, target.player.ShieldActive, l.simConfig.ShieldDamageMultiplier)
			l.broadcast(protocol.BuildHitEvent(protocol.EventExplosionHit, hit.TargetID, hit.Damage, killed))
		}
		return
	}

	if impact.TargetID == "" {
		return
	}
	target, ok := l.conns[impact.TargetID]
	if !ok {
		return
	}
	killed := combat.ApplyDamageWithShield(&target.combat, shooterCombat, proj.Damage, target.player.ShieldActive, l.simConfig.ShieldDamageMultiplier)
	l.broadcast(protocol.BuildHitEvent(protocol.EventProjectileHit, impact.TargetID, proj.Damage, killed))
}

// emitProjectileRemove broadcasts that a projectile left play, whether by
// impact or TTL expiry.
func (l *Loop) emitProjectileRemove(proj combat.ProjectileState) {
	l.broadcast(protocol.GameEvent{
		Type:         protocol.TypeGameEvent,
		Event:        protocol.EventProjectileRemove,
		OwnerID:      proj.OwnerID,
		ProjectileID: strconv.FormatInt(proj.ID, 10),
	})
}

// resolveShockwave applies the current tick's edge-triggered shockwave pulse
// (sim.PlayerState.ShockwaveTriggered, computed by sim.Step) centered on the
// triggering player: falloff damage plus a physical impulse to every
// line-of-sight-clear player in radius, excluding the player who triggered
// it.
func (l *Loop) resolveShockwave(shooterID string, cs *connState, histories map[string]*posehistory.History[sim.PlayerState]) {
	center := sim.Vec3{X: cs.player.X, Y: cs.player.Y, Z: cs.player.Z + combat.PlayerEyeHeight}
	rewindTick := int(l.serverTick)
	hits := combat.ComputeShockwaveHits(center, l.simConfig.ShockwaveImpulse, l.simConfig.ShockwaveDamage, l.simConfig.ShockwaveRadius, histories, rewindTick, l.simConfig, l.world)
	for _, hit := range hits {
		if hit.TargetID == shooterID {
			continue
		}
		target, ok := l.conns[hit.TargetID]
		if !ok {
			continue
		}
		target.player.VelX += hit.Impulse.X
		target.player.VelY += hit.Impulse.Y
		target.player.VelZ += hit.Impulse.Z

		var killed bool
		if hit.Damage > 0 {
			killed = combat.ApplyDamageWithShield(&target.combat, &cs.combat, hit.Damage, target.player.ShieldActive, l.simConfig.ShieldDamageMultiplier)
		}
		l.broadcast(protocol.BuildHitEvent(protocol.EventShockwaveHit, hit.TargetID, hit.Damage, killed))
	}
}

// stepPickups resolves pickup collection for every active player against
// every active pickup, then advances the respawn countdown of every
// depleted pickup, matching spec.md §4.D step 6.
func (l *Loop) stepPickups(active []string) {
	for i := range l.pickups {
		p := &l.pickups[i]
		if !p.active {
			stepPickup(p)
			continue
		}
		for _, id := range active {
			cs := l.conns[id]
			if !cs.combat.Alive {
				continue
			}
			if !withinPickupRange(p, cs.player.X, cs.player.Y, cs.player.Z) {
				continue
			}
			l.collectPickup(p, cs)
			break
		}
	}
}

// collectPickup applies one pickup's effect to the collecting player and
// arms its respawn countdown.
func (l *Loop) collectPickup(p *pickupState, cs *connState) {
	switch p.Kind {
	case PickupHealth:
		cs.combat.Health = math.Min(combat.MaxHealth, cs.combat.Health+p.HealAmount)
	case PickupWeapon:
		cs.weaponSlot = p.WeaponSlot
	}
	p.active = false
	p.respawnCountdown = p.RespawnTicks
}

// broadcast marshals one GameEvent and sends it to every connection active
// this tick, matching the reference's fire-and-forget unreliable fan-out.
func (l *Loop) broadcast(evt protocol.GameEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	for _, id := range l.activeIDs {
		l.store.SendUnreliable(id, payload)
	}
}

// ServerTick reports the current authoritative tick number.
func (l *Loop) ServerTick() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.serverTick
}
