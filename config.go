package kiln

import "github.com/TheBitDrifter/bark"

// EventHooks are the synchronous callbacks the event/observer layer
// (events.go) invokes within the same logical tick a mutation occurs.
type EventHooks struct {
	OnComponentAdded   func(Entity, Component)
	OnComponentRemoved func(Entity, Component)
	OnEntityParentSet  func(child, parent Entity)
}

// Config holds the settings a World is constructed with: allocator size,
// fixed-timestep tuning, and the event hooks. Mirrors warehouse's own
// config.go, generalized from a single table-event callback to the full
// set kiln's scheduler and event layer need.
type Config struct {
	// PoolSize is the size, in bytes, of the single mem.Pool backing every
	// component allocation in the World.
	PoolSize int
	// TickRate is the fixed-timestep rate, in Hz, the scheduler's fixed
	// phase group runs at.
	TickRate float64
	// MaxDeltaTimeSec clamps a single frame's elapsed time before feeding it
	// to the fixed-timestep accumulator, guarding against the spiral of
	// death after a stall.
	MaxDeltaTimeSec float64
	// YieldThresholdMs is the wall-clock budget a single Tick call may spend
	// draining the fixed-timestep accumulator before yielding to the caller
	// regardless of remaining accumulated time.
	YieldThresholdMs float64
	Hooks            EventHooks
	Logger           bark.Logger
}

// DefaultConfig returns kiln's baseline tuning: a 1MiB pool, a 60Hz fixed
// tick, a quarter-second delta clamp, and an 8ms yield threshold.
func DefaultConfig() Config {
	return Config{
		PoolSize:         1 << 20,
		TickRate:         60,
		MaxDeltaTimeSec:  0.25,
		YieldThresholdMs: 8,
	}
}
