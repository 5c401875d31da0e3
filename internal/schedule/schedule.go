// Package schedule implements the Schedule abstraction (calendar, interval,
// manual) and the scheduler fan-in that multiplexes schedule firings into a
// uniform per-task event stream.
package schedule

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind identifies which underlying scheduler owns a Schedule.
type Kind int

const (
	KindCalendar Kind = iota
	KindInterval
	KindManual
)

func (k Kind) String() string {
	switch k {
	case KindCalendar:
		return "calendar"
	case KindInterval:
		return "interval"
	case KindManual:
		return "manual"
	default:
		return "unknown"
	}
}

// EventKind is one of a Schedule's lifecycle events.
type EventKind int

const (
	EventNext EventKind = iota
	EventError
	EventComplete
)

// Event is one lifecycle transition of a Schedule's event stream.
type Event struct {
	Kind EventKind
	At   time.Time
	Err  error
}

// ErrScheduleUnsupported is raised for an unrecognized Schedule kind; fatal
// at load.
var ErrScheduleUnsupported = errors.New("schedule: unsupported kind")

// Schedule produces an event stream of next/error/complete firings. Calendar,
// Interval, and Manual are the three concrete implementations.
type Schedule interface {
	Kind() Kind
	// Subscribe returns a channel of this schedule's firings and an
	// unsubscribe function that releases the subscription. The channel is
	// closed once unsubscribe runs; never read from it after calling the
	// returned func.
	Subscribe() (<-chan Event, func())
}

// subHub is the shared non-blocking fan-out plumbing used by all three
// Schedule kinds: a map of per-subscriber buffered channels guarded by a
// mutex, matching the event-bus non-blocking-publish pattern.
type subHub struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func newSubHub() *subHub {
	return &subHub{subs: map[int]chan Event{}}
}

func (h *subHub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	ch := make(chan Event, 8)
	h.subs[id] = ch
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		if existing, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(existing)
		}
		h.mu.Unlock()
	}
}

func (h *subHub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop rather than block the scheduler loop.
		}
	}
}

// ---- Calendar ----

// Calendar is a cron-spec-driven Schedule with a bounded look-ahead window:
// outside that window it produces no firings.
type Calendar struct {
	spec      string
	sched     cron.Schedule
	lookAhead time.Duration // 0 = unbounded

	hub  *subHub
	stop chan struct{}
	once sync.Once
}

// NewCalendar parses a standard (optionally seconds-extended) cron spec.
func NewCalendar(spec string, lookAhead time.Duration) (*Calendar, error) {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScheduleUnsupported, err)
	}
	c := &Calendar{spec: spec, sched: sched, lookAhead: lookAhead, hub: newSubHub(), stop: make(chan struct{})}
	go c.run()
	return c, nil
}

func (c *Calendar) Kind() Kind { return KindCalendar }

func (c *Calendar) Subscribe() (<-chan Event, func()) { return c.hub.subscribe() }

func (c *Calendar) run() {
	for {
		now := time.Now()
		at := c.sched.Next(now)
		if c.lookAhead > 0 && at.Sub(now) > c.lookAhead {
			select {
			case <-time.After(c.lookAhead):
				continue
			case <-c.stop:
				return
			}
		}
		tmr := time.NewTimer(time.Until(at))
		select {
		case fired := <-tmr.C:
			c.hub.publish(Event{Kind: EventNext, At: fired})
		case <-c.stop:
			tmr.Stop()
			return
		}
	}
}

// Close stops the calendar's internal ticking. It does not emit Complete: a
// cron calendar fires indefinitely, so Close is a teardown, not a
// schedule-driven completion. The engine's ClearTasks and Shutdown only
// unsubscribe from a calendar; they do not call Close.
func (c *Calendar) Close() {
	c.once.Do(func() { close(c.stop) })
}

// ---- Interval ----

// Interval fires at a fixed period for a bounded number of triggers and then
// emits Complete; maxTriggers < 0 is unbounded, matching a plain periodic
// task schedule.
type Interval struct {
	period             time.Duration
	maxTriggers        int
	triggerImmediately bool

	hub  *subHub
	stop chan struct{}
	once sync.Once

	mu      sync.Mutex
	armed   bool
	count   int
	stopped bool
}

func NewInterval(period time.Duration, maxTriggers int, triggerImmediately bool) *Interval {
	return &Interval{
		period:             period,
		maxTriggers:        maxTriggers,
		triggerImmediately: triggerImmediately,
		hub:                newSubHub(),
		stop:               make(chan struct{}),
	}
}

func (iv *Interval) Kind() Kind { return KindInterval }

func (iv *Interval) Subscribe() (<-chan Event, func()) { return iv.hub.subscribe() }

// Arm starts the interval ticking. A second call is a no-op: an interval is
// armed exactly once per recovery loop.
func (iv *Interval) Arm() {
	iv.mu.Lock()
	if iv.armed {
		iv.mu.Unlock()
		return
	}
	iv.armed = true
	iv.mu.Unlock()
	go iv.run()
}

func (iv *Interval) run() {
	if iv.triggerImmediately {
		if !iv.fire() {
			return
		}
	}
	tk := time.NewTicker(iv.period)
	defer tk.Stop()
	for {
		select {
		case <-tk.C:
			if !iv.fire() {
				return
			}
		case <-iv.stop:
			return
		}
	}
}

func (iv *Interval) fire() bool {
	iv.mu.Lock()
	if iv.stopped {
		iv.mu.Unlock()
		return false
	}
	iv.count++
	count, maxT := iv.count, iv.maxTriggers
	iv.mu.Unlock()

	iv.hub.publish(Event{Kind: EventNext, At: time.Now()})

	if maxT >= 0 && count >= maxT {
		iv.hub.publish(Event{Kind: EventComplete})
		iv.Disarm()
		return false
	}
	return true
}

// Disarm stops the ticking without emitting Complete: used when a consumer
// (e.g. a successful recovery attempt) no longer needs further firings.
func (iv *Interval) Disarm() {
	iv.mu.Lock()
	iv.stopped = true
	iv.mu.Unlock()
	iv.once.Do(func() { close(iv.stop) })
}

// ---- Manual ----

// Manual is driven entirely by external Trigger/TriggerError/Complete calls;
// it is the preferred fixture for deterministic tests.
type Manual struct {
	hub *subHub
}

func NewManual() *Manual {
	return &Manual{hub: newSubHub()}
}

func (m *Manual) Kind() Kind { return KindManual }

func (m *Manual) Subscribe() (<-chan Event, func()) { return m.hub.subscribe() }

func (m *Manual) Trigger() {
	m.hub.publish(Event{Kind: EventNext, At: time.Now()})
}

func (m *Manual) TriggerError(err error) {
	m.hub.publish(Event{Kind: EventError, At: time.Now(), Err: err})
}

func (m *Manual) Complete() {
	m.hub.publish(Event{Kind: EventComplete, At: time.Now()})
}
