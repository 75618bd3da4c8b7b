package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gridlink-core/internal/href"
	"github.com/nerrad567/gridlink-core/internal/observability"
	"github.com/nerrad567/gridlink-core/internal/resource"
	"github.com/nerrad567/gridlink-core/internal/store"
)

// Logger defines the logging interface used by the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Event names published for a transition.
const (
	EventStarted = "started"
	EventEnded   = "ended"
)

// Transition is one control status change applied by a tick.
type Transition struct {
	Program int
	Href    string
	MRID    string
	From    resource.EventState
	To      resource.EventState
	Tick    int64
}

// Event returns EventStarted for a transition into Active, EventEnded
// otherwise.
func (t Transition) Event() string {
	if t.To == resource.EventActive {
		return EventStarted
	}
	return EventEnded
}

// Observer is told about each transition after the program's edits have
// been committed to the list store.
type Observer interface {
	Transitioned(ctx context.Context, t Transition)
}

// Engine moves DER controls through Scheduled → Active → terminal states
// as the clock passes their windows, and keeps each program's active
// control list equal to the set of its Active controls.
//
// Programs are read from the "/derp" list. For each program the canonical
// control list and the active projection are edited inside one
// ListStore.Update, so readers never see one without the other and each
// program that changes produces a single persistence notification.
//
// Thread Safety: Tick and Run may be called concurrently; ticks are
// serialised.
type Engine struct {
	lists  *store.ListStore
	clock  Clock
	logger Logger

	mu        sync.Mutex
	observers []Observer
	current   atomic.Int64
}

// NewEngine creates an engine over lists. A nil clock means WallClock and a
// nil logger discards output.
func NewEngine(lists *store.ListStore, clock Clock, logger Logger) *Engine {
	if clock == nil {
		clock = WallClock{}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	e := &Engine{lists: lists, clock: clock, logger: logger}
	e.current.Store(clock.Now())
	return e
}

// AddObserver registers o for every later transition.
func (e *Engine) AddObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// Clock returns the clock the engine reads in Run.
func (e *Engine) Clock() Clock { return e.clock }

// CurrentTick returns the most recently processed tick, or the clock
// reading at construction if no tick has run yet.
func (e *Engine) CurrentTick() int64 { return e.current.Load() }

// Run ticks once immediately and then every interval until ctx is
// cancelled. A Stepper clock is stepped before each ticker-driven tick.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("control lifecycle started", "interval", interval.String(), "tick", e.clock.Now())
	e.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("control lifecycle stopped", "tick", e.CurrentTick())
			return nil
		case <-ticker.C:
			if s, ok := e.clock.(Stepper); ok {
				s.Step()
			}
			e.runOnce(ctx)
		}
	}
}

func (e *Engine) runOnce(ctx context.Context) {
	if _, err := e.Tick(ctx, e.clock.Now()); err != nil && ctx.Err() == nil {
		e.logger.Error("control lifecycle tick failed", "error", err)
	}
}

// Tick evaluates every control of every program against tick and returns
// the transitions it applied. Re-running the same tick applies nothing.
//
// A program whose control list is missing is skipped and logged; it does
// not stop the remaining programs. Tick only returns an error when ctx is
// cancelled part way through.
func (e *Engine) Tick(ctx context.Context, tick int64) ([]Transition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	observability.RecordTick()
	e.current.Store(tick)

	var applied []Transition
	for _, r := range e.lists.Values(href.DERProgramRoot) {
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		program, ok := r.(*resource.DERProgram)
		if !ok {
			continue
		}
		index, err := href.ParseProgram(program.Href)
		if err != nil {
			observability.RecordSkipped("bad_program_href")
			e.logger.Error("program skipped", "program", program.Href, "error", err)
			continue
		}

		var out []Transition
		err = e.lists.Update(func(tx *store.ListTx) error {
			p := &pass{
				tx:      tx,
				program: index,
				lists:   listsOf(index, program),
				tick:    tick,
				logger:  e.logger,
				ended:   make(map[string]bool),
			}
			err := p.run()
			out = p.out
			return err
		})
		if err != nil {
			e.logger.Error("program skipped", "program", program.Href, "tick", tick, "error", err)
		}

		for _, t := range out {
			observability.RecordTransition(t.To.String())
			e.logger.Info("control transition",
				"program", t.Program, "control", t.Href, "mrid", t.MRID,
				"from", t.From.String(), "to", t.To.String(), "tick", t.Tick)
			for _, o := range e.observers {
				o.Transitioned(ctx, t)
			}
		}
		applied = append(applied, out...)
	}
	return applied, nil
}

// programLists names the two containers a program's pass edits.
type programLists struct {
	controls string
	active   string
}

// listsOf prefers the links carried by the program and falls back to the
// conventional addresses.
func listsOf(index int, p *resource.DERProgram) programLists {
	conv := href.Program(index)
	out := programLists{controls: conv.ControlList, active: conv.ActiveControlList}
	if p.DERControlListLink != nil && p.DERControlListLink.Href != "" {
		out.controls = p.DERControlListLink.Href
	}
	if p.ActiveDERControlListLink != nil && p.ActiveDERControlListLink.Href != "" {
		out.active = p.ActiveDERControlListLink.Href
	}
	return out
}

// pass is one program's share of a tick. It runs inside Update.
type pass struct {
	tx      *store.ListTx
	program int
	lists   programLists
	tick    int64
	logger  Logger

	out   []Transition
	ended map[string]bool // mRIDs that left Active during this pass
}

func (p *pass) run() error {
	if !p.tx.HasList(p.lists.controls) {
		observability.RecordSkipped("missing_control_list")
		return fmt.Errorf("%w: %s", ErrMissingControlList, p.lists.controls)
	}
	if !p.tx.HasList(p.lists.active) {
		if err := p.tx.InitializeURI(p.lists.active, resource.KindDERControl); err != nil {
			return err
		}
	}

	// Ends first, so a control finishing on this tick no longer competes
	// with one starting on it.
	for _, key := range p.tx.Keys(p.lists.controls) {
		ctl, ok := p.control(key)
		if !ok || ctl.Interval == nil {
			continue
		}
		st := ctl.Status()
		if (st == resource.EventActive || st == resource.EventScheduled) && p.tick >= ctl.Interval.End() {
			p.set(key, ctl, resource.EventCompleted, "")
		}
	}

	for _, key := range p.tx.Keys(p.lists.controls) {
		ctl, ok := p.control(key)
		if !ok {
			continue
		}
		if ctl.Interval == nil {
			if !ctl.Status().Terminal() {
				observability.RecordSkipped("no_interval")
				p.logger.Warn("control skipped", "control", ctl.Href, "error", ErrNoInterval)
			}
			continue
		}
		if ctl.Status() == resource.EventScheduled && ctl.Interval.Contains(p.tick) {
			p.start(key, ctl)
		}
	}

	return p.reconcile()
}

// control returns the canonical control at key.
func (p *pass) control(key int) (*resource.DERControl, bool) {
	r, err := p.tx.Get(p.lists.controls, key)
	if err != nil {
		return nil, false
	}
	ctl, err := resource.As[*resource.DERControl](r)
	if err != nil {
		observability.RecordSkipped("not_a_control")
		p.logger.Error("control skipped", "list", p.lists.controls, "key", key, "error", err)
		return nil, false
	}
	return ctl, true
}

// set writes a copy of ctl with state to the canonical list. Stored
// elements are never edited in place; readers may still hold them.
func (p *pass) set(key int, ctl *resource.DERControl, state resource.EventState, reason string) (*resource.DERControl, bool) {
	next, err := store.Clone(ctl)
	if err != nil {
		p.logger.Error("control copy failed", "control", ctl.Href, "error", err)
		return nil, false
	}
	next.SetStatus(state, p.tick, reason)
	if state == resource.EventSuperseded {
		next.EventStatus.PotentiallySuperseded = true
		next.EventStatus.PotentiallySupersededTime = p.tick
	}
	if err := p.tx.Set(p.lists.controls, key, next, true); err != nil {
		p.logger.Error("control update failed", "control", ctl.Href, "error", err)
		return nil, false
	}

	if state != resource.EventActive {
		p.ended[ctl.MRID] = true
	}
	p.out = append(p.out, Transition{
		Program: p.program,
		Href:    ctl.Href,
		MRID:    ctl.MRID,
		From:    ctl.Status(),
		To:      state,
		Tick:    p.tick,
	})
	return next, true
}

// start activates the control at key, first resolving overlap with any
// control of the program that is already Active.
func (p *pass) start(key int, ctl *resource.DERControl) {
	if ctl.MRID == "" {
		observability.RecordSkipped("no_mrid")
		p.logger.Warn("control without mRID not started", "control", ctl.Href)
		return
	}

	for _, other := range p.tx.Keys(p.lists.controls) {
		if other == key {
			continue
		}
		running, ok := p.control(other)
		if !ok || running.Status() != resource.EventActive || running.Interval == nil ||
			!running.Interval.Overlaps(*ctl.Interval) {
			continue
		}
		if !supersedes(ctl, running) {
			p.set(key, ctl, resource.EventSuperseded, "superseded by "+running.MRID)
			return
		}
		p.set(other, running, resource.EventSuperseded, "superseded by "+ctl.MRID)
	}

	if _, ok := p.set(key, ctl, resource.EventActive, ""); !ok {
		return
	}

	stored, ok := p.control(key)
	if !ok || stored.Status() != resource.EventActive {
		observability.RecordSkipped("status_not_applied")
		p.logger.Error("control not projected", "control", ctl.Href, "error", ErrStatusNotApplied)
		return
	}

	entry, err := store.Clone(stored)
	if err != nil {
		p.logger.Error("control copy failed", "control", ctl.Href, "error", err)
		return
	}
	if at, _, lookupErr := p.tx.GetByMRID(p.lists.active, ctl.MRID); lookupErr == nil {
		err = p.tx.Set(p.lists.active, at, entry, true)
	} else {
		_, err = p.tx.Append(p.lists.active, store.Single(entry))
	}
	if err != nil {
		p.logger.Error("active list update failed", "list", p.lists.active, "control", ctl.Href, "error", err)
	}
}

// reconcile removes every projection entry whose canonical control is no
// longer Active, plus duplicate entries for one mRID, highest key first.
func (p *pass) reconcile() error {
	keys := p.tx.Keys(p.lists.active)

	first := make(map[string]int, len(keys))
	for _, key := range keys {
		r, _ := p.tx.Get(p.lists.active, key) //nolint:errcheck // key was just listed
		if _, seen := first[r.GetMRID()]; !seen {
			first[r.GetMRID()] = key
		}
	}

	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		r, _ := p.tx.Get(p.lists.active, key) //nolint:errcheck // key was just listed
		mrid := r.GetMRID()

		state := resource.EventCompleted
		if _, canon, err := p.tx.GetByMRID(p.lists.controls, mrid); err == nil {
			if ctl, asErr := resource.As[*resource.DERControl](canon); asErr == nil {
				state = ctl.Status()
			}
		}
		if state == resource.EventActive && first[mrid] == key {
			continue
		}

		if err := p.tx.Remove(p.lists.active, key); err != nil {
			return err
		}
		if state != resource.EventActive && !p.ended[mrid] {
			// Moved off Active by someone other than the engine.
			p.ended[mrid] = true
			p.out = append(p.out, Transition{
				Program: p.program,
				Href:    r.GetHref(),
				MRID:    mrid,
				From:    resource.EventActive,
				To:      state,
				Tick:    p.tick,
			})
		}
	}
	return nil
}

// supersedes reports whether a wins over b when their windows overlap: the
// later creation time wins, ties go to the greater mRID.
func supersedes(a, b *resource.DERControl) bool {
	if a.CreationTime != b.CreationTime {
		return a.CreationTime > b.CreationTime
	}
	return a.MRID > b.MRID
}
