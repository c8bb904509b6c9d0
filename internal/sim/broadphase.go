package sim

import "sort"

// broadphase is a 1-axis broad-phase index over a CollisionWorld's colliders,
// used by the collision sweep step to avoid a narrow-phase test against
// every collider on every iteration of every player's step.
//
// Adapted from the teacher's internal/game/spatial.SweepAndPrune (Baraff &
// Witkin, SIGGRAPH 1992 broad phase): there it indexed circular entities on
// the X axis for player-vs-player push-apart; here it sorts AabbCollider
// X-intervals so candidatesX can return only the colliders whose X-extent can
// possibly overlap a query interval, letting the caller skip disjoint boxes
// without an O(n) scan.
type broadphase struct {
	byMinX []int // collider indices sorted by MinX ascending
}

func newBroadphase(colliders []AabbCollider) *broadphase {
	idx := make([]int, len(colliders))
	for i := range colliders {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return colliders[idx[a]].MinX < colliders[idx[b]].MinX })
	return &broadphase{byMinX: idx}
}

// candidatesX returns the indices (into the world's Colliders() slice) of
// every collider whose X-interval overlaps [minX, maxX]. Order is not
// meaningful; callers still run a narrow-phase (Y/Z slab) test on the result.
func (b *broadphase) candidatesX(colliders []AabbCollider, minX, maxX float64) []int {
	if b == nil {
		return nil
	}
	// All colliders with MinX > maxX (and everything after them, since
	// byMinX is sorted) cannot overlap the query interval.
	cutoff := sort.Search(len(b.byMinX), func(i int) bool {
		return colliders[b.byMinX[i]].MinX > maxX
	})
	out := make([]int, 0, cutoff)
	for _, i := range b.byMinX[:cutoff] {
		if colliders[i].MaxX >= minX {
			out = append(out, i)
		}
	}
	return out
}
