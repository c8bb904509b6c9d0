// Package tickloop drives the authoritative simulation at a fixed rate
// decoupled from wall-clock jitter, and folds per-connection input, combat,
// and snapshot emission into one per-tick procedure.
//
// Grounded directly on the reference's TickAccumulator/TickLoop (tick.cpp):
// the accumulator anchors a next-tick deadline on first use and thereafter
// computes how many ticks have elapsed since that deadline, so simulation
// steps are a pure function of tick count rather than wall-clock drift.
package tickloop

import "time"

// Accumulator decides how many fixed-duration ticks have elapsed since it
// was last asked, anchoring itself to "now" on first use rather than to a
// fixed epoch.
type Accumulator struct {
	tickRate     int
	tickDuration time.Duration
	initialized  bool
	nextTickTime time.Time
}

// NewAccumulator creates an Accumulator for the given tick rate (ticks per
// second). A non-positive rate is clamped to 1.
func NewAccumulator(tickRate int) *Accumulator {
	if tickRate <= 0 {
		tickRate = 1
	}
	duration := time.Duration(float64(time.Second) / float64(tickRate))
	if duration <= 0 {
		duration = time.Nanosecond
	}
	return &Accumulator{tickRate: tickRate, tickDuration: duration}
}

// Advance reports how many ticks should run now. The first call always
// returns 0 and anchors next_tick_time to now+tick_duration; subsequent
// calls return 1+floor(elapsed/tick_duration) once now has passed the
// deadline, advancing the deadline by that many tick durations.
func (a *Accumulator) Advance(now time.Time) int {
	if !a.initialized {
		a.initialized = true
		a.nextTickTime = now.Add(a.tickDuration)
		return 0
	}
	if now.Before(a.nextTickTime) {
		return 0
	}
	elapsed := now.Sub(a.nextTickTime)
	ticks := 1 + int(elapsed/a.tickDuration)
	a.nextTickTime = a.nextTickTime.Add(a.tickDuration * time.Duration(ticks))
	return ticks
}

// TickRate reports the configured ticks-per-second.
func (a *Accumulator) TickRate() int { return a.tickRate }

// TickDuration reports the fixed per-tick duration.
func (a *Accumulator) TickDuration() time.Duration { return a.tickDuration }

// NextTickTime reports the deadline the next Advance call will compare
// against; used by the loop to know how long it may sleep.
func (a *Accumulator) NextTickTime() time.Time { return a.nextTickTime }
