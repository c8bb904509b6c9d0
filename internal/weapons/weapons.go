// Package weapons supplies the fixed weapon-definition table the combat
// resolver and snapshot encoder need for weaponSlot/damage/range lookups.
// Loading weapon definitions from an asset file is an out-of-scope external
// collaborator per spec.md §3; this package only carries the shape, grounded
// on the teacher's internal/game/weapons.go map-of-structs idiom and the
// cached per-weapon config map in internal/game/hitbox.go, generalized from
// 2D angle hitboxes to 3D cylinder/segment tests (see internal/combat).
package weapons

// Kind is a tagged variant, not an inheritance hierarchy, per the design
// note on WeaponKind/PickupKind polymorphism.
type Kind int

const (
	// KindHitscan resolves instantly via a rewound ray (internal/combat.ResolveHitscan).
	KindHitscan Kind = iota
	// KindProjectile spawns a ProjectileState advanced tick by tick.
	KindProjectile
	// KindMeleeArc is a short-range hitscan with a tight implicit range,
	// distinguished only by its tuning, not by separate resolution logic.
	KindMeleeArc
)

func (k Kind) String() string {
	switch k {
	case KindHitscan:
		return "hitscan"
	case KindProjectile:
		return "projectile"
	case KindMeleeArc:
		return "melee"
	default:
		return "unknown"
	}
}

// Definition is one weapon's fixed tuning. Slot is the stable wire identifier
// used in InputCmd.weaponSlot and StateSnapshot.weaponSlot.
type Definition struct {
	Slot            int
	Name            string
	Kind            Kind
	Damage          float64
	Range           float64 // hitscan/melee max range; ignored for projectiles
	ProjectileSpeed float64 // units/second, projectile kinds only
	ProjectileTTL   float64 // seconds, projectile kinds only
	ProjectileRadius float64
	ExplosionRadius float64 // >0 for splash-damage projectiles
	FireCooldown    float64
}

// Table is the fixed, in-process weapon set. Index 0 is the default
// always-available melee weapon; later slots are unlocked by out-of-scope
// external game rules (purchase/pickup), not by this package.
var Table = []Definition{
	{Slot: 0, Name: "fists", Kind: KindMeleeArc, Damage: 8, Range: 2.0, FireCooldown: 0.4},
	{Slot: 1, Name: "blaster", Kind: KindHitscan, Damage: 18, Range: 60.0, FireCooldown: 0.2},
	{Slot: 2, Name: "railgun", Kind: KindHitscan, Damage: 60, Range: 120.0, FireCooldown: 1.2},
	{Slot: 3, Name: "launcher", Kind: KindProjectile, Damage: 45, ProjectileSpeed: 28.0, ProjectileTTL: 4.0, ProjectileRadius: 0.25, ExplosionRadius: 4.0, FireCooldown: 1.5},
	{Slot: 4, Name: "shockmine", Kind: KindProjectile, Damage: 0, ProjectileSpeed: 14.0, ProjectileTTL: 6.0, ProjectileRadius: 0.3, ExplosionRadius: 6.0, FireCooldown: 2.0},
}

// ByName finds a definition by its stable name.
func ByName(name string) (Definition, bool) {
	for _, d := range Table {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// BySlot finds a definition by its wire slot id. Slots outside the table
// resolve to the default (slot 0) weapon rather than an error, since an
// out-of-range weaponSlot on the wire is a client quirk, not a protocol
// violation — the parser only requires weaponSlot >= 0.
func BySlot(slot int) Definition {
	for _, d := range Table {
		if d.Slot == slot {
			return d
		}
	}
	return Table[0]
}
