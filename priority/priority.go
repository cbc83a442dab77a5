// Package priority defines the two priority models the runtime exposes:
// the canonical 3-level SchedPriority the scheduler itself understands, and
// an optional 32-level Priority a caller may use for finer-grained hints
// that get mapped down onto SchedPriority at spawn time.
package priority

// SchedPriority is the priority class the scheduler's Worker queues are
// keyed by. There are exactly three classes; nothing in this core schedules
// at finer granularity than this.
type SchedPriority uint8

const (
	SchedLow SchedPriority = iota
	SchedNormal
	SchedHigh

	numClasses = 3
)

func (p SchedPriority) String() string {
	switch p {
	case SchedHigh:
		return "High"
	case SchedNormal:
		return "Normal"
	case SchedLow:
		return "Low"
	default:
		return "Invalid"
	}
}

// Priority is a finer-grained 0..=31 priority hint, for callers that want
// more resolution than the three scheduler classes. It is never consulted
// directly by the scheduler; ToSchedPriority maps it down at spawn time.
type Priority uint8

const (
	maxVal uint8 = 31
	midVal uint8 = 16
	minVal uint8 = 0
)

const (
	// Highest is the maximum priority value.
	Highest Priority = Priority(maxVal)
	// High is a relatively high priority.
	High Priority = Priority((maxVal + midVal) / 2)
	// Normal is the normal priority.
	Normal Priority = Priority(midVal)
	// Low is a relatively low priority.
	Low Priority = Priority((midVal + minVal) / 2)
	// Lowest is the minimum priority value.
	Lowest Priority = Priority(minVal)
)

// New constructs a Priority, clamping val into the valid [0,31] range
// rather than panicking: a caller-facing constructor has no debug_assert to
// fall back on, so clamping is the safe idiomatic substitute.
func New(val uint8) Priority {
	if val > maxVal {
		val = maxVal
	}
	return Priority(val)
}

// Val returns the raw 0..=31 value.
func (p Priority) Val() uint8 { return uint8(p) }

// Inc increases the priority by one, saturating at Highest.
func (p Priority) Inc() Priority {
	if uint8(p) < maxVal {
		return p + 1
	}
	return p
}

// Dec decreases the priority by one, saturating at Lowest.
func (p Priority) Dec() Priority {
	if uint8(p) > minVal {
		return p - 1
	}
	return p
}

// Add adds a signed delta, saturating at the type's bounds rather than
// wrapping or overflowing — mirrors the original source's Add<i8> impl,
// which widens to i16 internally to rule out overflow before clamping.
func (p Priority) Add(delta int8) Priority {
	v := int16(p) + int16(delta)
	if v > int16(maxVal) {
		v = int16(maxVal)
	}
	if v < int16(minVal) {
		v = int16(minVal)
	}
	return Priority(v)
}

// ToSchedPriority maps the 32-level value onto the canonical 3-level model:
// [0,11) -> Low, [11,21) -> Normal, [21,32) -> High. The split points are
// chosen so that Low (8), Normal (16) and High (23) each map to the
// same-named SchedPriority class.
func (p Priority) ToSchedPriority() SchedPriority {
	switch {
	case uint8(p) < 11:
		return SchedLow
	case uint8(p) < 21:
		return SchedNormal
	default:
		return SchedHigh
	}
}
