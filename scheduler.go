package kiln

import (
	"context"
	"sort"
	"time"
)

// Phase names one of the scheduler's named schedule phases (spec.md §4.7).
type Phase string

const (
	FirstStartup Phase = "FirstStartup"
	PreStartup   Phase = "PreStartup"
	Startup      Phase = "Startup"
	PostStartup  Phase = "PostStartup"
	LastStartup  Phase = "LastStartup"

	First      Phase = "First"
	PreUpdate  Phase = "PreUpdate"
	Update     Phase = "Update"
	PostUpdate Phase = "PostUpdate"
	Last       Phase = "Last"

	FixedFirst      Phase = "FixedFirst"
	FixedPreUpdate  Phase = "FixedPreUpdate"
	FixedUpdate     Phase = "FixedUpdate"
	FixedPostUpdate Phase = "FixedPostUpdate"
	FixedLast       Phase = "FixedLast"
	FixedFlush      Phase = "FixedFlush"
)

var startupPhases = []Phase{FirstStartup, PreStartup, Startup, PostStartup, LastStartup}
var renderPhases = []Phase{First, PreUpdate, Update, PostUpdate, Last}
var fixedPhases = []Phase{FixedFirst, FixedPreUpdate, FixedUpdate, FixedPostUpdate, FixedLast, FixedFlush}

// SystemDependencies declares a system's ordering requirements: other
// systems it must run after, and the component names it reads and writes
// (used to derive implicit writer-before-reader edges within a phase).
type SystemDependencies struct {
	Systems []string
	Reads   []string
	Writes  []string
}

// System is one unit of per-phase work. Update is called once per phase
// invocation the system is bound to, unless a RunCriteria implementation
// skips it.
type System interface {
	Name() string
	Update(w *World) error
}

// Initializer, if implemented, runs once before a system's first Update.
type Initializer interface {
	Initialize(w *World) error
}

// Cleaner, if implemented, runs once at world teardown.
type Cleaner interface {
	Cleanup(w *World) error
}

// RunCriteria, if implemented, gates whether Update runs for a given phase
// invocation.
type RunCriteria interface {
	ShouldRun(w *World) bool
}

type systemEntry struct {
	system      System
	order       int
	deps        SystemDependencies
	seq         int
	initialized bool
}

// Scheduler tracks systems bound to phases, resolves each phase's
// dependency DAG, and drives the fixed-timestep/render loop described in
// spec.md §4.7.
type Scheduler struct {
	world    *World
	entries  map[Phase][]*systemEntry
	resolved map[Phase][]*systemEntry
	sequence int

	accumulator float64
}

// NewScheduler returns a Scheduler bound to w, with no systems registered.
func NewScheduler(w *World) *Scheduler {
	return &Scheduler{
		world:    w,
		entries:  make(map[Phase][]*systemEntry),
		resolved: make(map[Phase][]*systemEntry),
	}
}

// AddSystem binds sys to phase with the given tie-break order and
// dependency declarations.
func (s *Scheduler) AddSystem(phase Phase, sys System, order int, deps SystemDependencies) {
	s.sequence++
	s.entries[phase] = append(s.entries[phase], &systemEntry{
		system: sys,
		order:  order,
		deps:   deps,
		seq:    s.sequence,
	})
	delete(s.resolved, phase)
}

// resolve builds phase's dependency DAG and returns its systems in
// topological order, breaking ties by declared order then insertion
// sequence. Cached until AddSystem next touches the phase.
func (s *Scheduler) resolve(phase Phase) ([]*systemEntry, error) {
	if cached, ok := s.resolved[phase]; ok {
		return cached, nil
	}
	nodes := s.entries[phase]
	byName := make(map[string]*systemEntry, len(nodes))
	for _, n := range nodes {
		byName[n.system.Name()] = n
	}

	indegree := make(map[*systemEntry]int, len(nodes))
	edges := make(map[*systemEntry][]*systemEntry, len(nodes))
	addEdge := func(before, after *systemEntry) {
		edges[before] = append(edges[before], after)
		indegree[after]++
	}

	for _, n := range nodes {
		for _, depName := range n.deps.Systems {
			if prereq, ok := byName[depName]; ok {
				addEdge(prereq, n)
			}
		}
	}
	for _, writer := range nodes {
		for _, reader := range nodes {
			if writer == reader {
				continue
			}
			for _, w := range writer.deps.Writes {
				if containsName(reader.deps.Reads, w) {
					addEdge(writer, reader)
				}
			}
		}
	}

	ready := make([]*systemEntry, 0, len(nodes))
	for _, n := range nodes {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	var out []*systemEntry
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			if ready[i].order != ready[j].order {
				return ready[i].order < ready[j].order
			}
			return ready[i].seq < ready[j].seq
		})
		next := ready[0]
		ready = ready[1:]
		out = append(out, next)
		for _, dependent := range edges[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(out) != len(nodes) {
		var path []string
		for _, n := range nodes {
			path = append(path, n.system.Name())
		}
		return nil, CycleDetectedError{Path: path}
	}

	s.resolved[phase] = out
	return out, nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// RunPhase resolves and runs every system bound to phase, in dependency
// order. FixedFlush additionally drains the World's command buffer after
// its systems run.
func (s *Scheduler) RunPhase(phase Phase) error {
	entries, err := s.resolve(phase)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.initialized {
			if init, ok := e.system.(Initializer); ok {
				if err := init.Initialize(s.world); err != nil {
					return err
				}
			}
			e.initialized = true
		}
		if rc, ok := e.system.(RunCriteria); ok && !rc.ShouldRun(s.world) {
			continue
		}
		if err := e.system.Update(s.world); err != nil {
			return err
		}
	}
	if phase == FixedFlush {
		return s.world.commands.Flush()
	}
	return nil
}

// RunStartup runs every startup-group phase, once each, in order.
func (s *Scheduler) RunStartup() error {
	for _, phase := range startupPhases {
		if err := s.RunPhase(phase); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup runs every registered system's Cleanup, for systems that
// implement Cleaner, across every phase.
func (s *Scheduler) Cleanup() error {
	for _, entries := range s.entries {
		for _, e := range entries {
			if cleaner, ok := e.system.(Cleaner); ok {
				if err := cleaner.Cleanup(s.world); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Tick advances the scheduler by renderDeltaSec of wall-clock time:
// clamps the delta, accumulates it, drains as many fixed ticks as the
// accumulator allows (bailing out once YieldThresholdMs of wall-clock
// budget is spent, to guard against the spiral of death), then runs the
// render-group phases once. ctx is checked between fixed-phase
// iterations and before the render group, so a long-running host loop
// can cancel a tick already in flight instead of blocking shutdown on
// whichever phase happens to be running.
func (s *Scheduler) Tick(ctx context.Context, renderDeltaSec float64) error {
	cfg := s.world.cfg
	if cfg.MaxDeltaTimeSec > 0 && renderDeltaSec > cfg.MaxDeltaTimeSec {
		renderDeltaSec = cfg.MaxDeltaTimeSec
	}
	s.accumulator += renderDeltaSec

	fixedStep := 1.0 / cfg.TickRate
	start := time.Now()
	for s.accumulator >= fixedStep {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.world.AdvanceTick()
		for _, phase := range fixedPhases {
			if err := s.RunPhase(phase); err != nil {
				return err
			}
		}
		s.accumulator -= fixedStep
		if cfg.YieldThresholdMs > 0 && float64(time.Since(start).Milliseconds()) >= cfg.YieldThresholdMs {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	for _, phase := range renderPhases {
		if err := s.RunPhase(phase); err != nil {
			return err
		}
	}
	return nil
}
