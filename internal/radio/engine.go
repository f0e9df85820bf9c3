package radio

import (
	"context"
	"time"

	applog "epdradio/internal/log"
	"epdradio/internal/model"
)

// Event is one input to the engine loop.
type Event int

const (
	Clockwise Event = iota
	Counterclockwise
	Button
	Cancel
	Menu
	Stop
	Maintain
)

func (ev Event) String() string {
	switch ev {
	case Clockwise:
		return "clockwise"
	case Counterclockwise:
		return "counterclockwise"
	case Button:
		return "button"
	case Cancel:
		return "cancel"
	case Menu:
		return "menu"
	case Stop:
		return "stop"
	case Maintain:
		return "maintain"
	default:
		return "unknown"
	}
}

// View is the drawing surface the engine repaints. *Screen implements it.
type View interface {
	SetTitle(text string, align Align) error
	ShowClock(t time.Time) error
	ShowStation(name string, clearAll bool) error
	ShowSelector(prev, cur, next string) error
	Maintain() error
}

// Player is the external playback collaborator. *mpc.Client implements it.
type Player interface {
	Current() int
	Stations() []model.Station
	Name(position int) string
	Select(position int) error
	Stop() error
}

// eventQueueDepth bounds the input queue. Events beyond it are stale by
// definition and dropped.
const eventQueueDepth = 16

// Opts tunes the loop timing. Zero values take the production defaults.
type Opts struct {
	// IdleClock is the quiet interval before the title-bar clock repaints.
	IdleClock time.Duration
	// Coalesce is the settle interval after a rotation event, during which
	// further queued same-direction steps merge into one redraw.
	Coalesce time.Duration
}

// Engine runs the two-state selector loop. It is the sole writer of the
// canvas and the panel session; producers only ever call Post.
type Engine struct {
	view   View
	player Player
	events chan Event

	waitTick  time.Duration
	idleClock time.Duration
	coalesce  time.Duration
}

func NewEngine(view View, player Player, o Opts) *Engine {
	if o.IdleClock <= 0 {
		o.IdleClock = 30 * time.Second
	}
	if o.Coalesce <= 0 {
		o.Coalesce = 200 * time.Millisecond
	}
	return &Engine{
		view:      view,
		player:    player,
		events:    make(chan Event, eventQueueDepth),
		waitTick:  100 * time.Millisecond,
		idleClock: o.IdleClock,
		coalesce:  o.Coalesce,
	}
}

// Post queues one event without blocking. Safe from any goroutine.
func (e *Engine) Post(ev Event) {
	select {
	case e.events <- ev:
	default:
		applog.Debug("event dropped, queue full", "event", ev)
	}
}

// Run drives the loop until a Stop event or context cancellation, stopping
// playback on the way out. Panel and player errors are fatal; the caller
// decides whether to restart.
func (e *Engine) Run(ctx context.Context) error {
	cursor := newRing(e.player.Stations())
	cursor.alignTo(e.player.Current())
	if err := e.view.ShowStation(e.player.Name(e.player.Current()), false); err != nil {
		return err
	}

	edit := false
	// The zero value makes the first idle tick paint the clock right away.
	var last time.Time

	tick := time.NewTicker(e.waitTick)
	defer tick.Stop()

	for {
		var ev Event
		select {
		case <-ctx.Done():
			return e.player.Stop()
		case ev = <-e.events:
		case <-tick.C:
			if !edit && time.Since(last) >= e.idleClock {
				if err := e.view.ShowClock(time.Now()); err != nil {
					return err
				}
				last = time.Now()
			}
			continue
		}

		switch ev {
		case Clockwise, Counterclockwise:
			if !edit {
				break
			}
			time.Sleep(e.coalesce)
			count := 1 + e.drainCount(ev)
			if ev == Counterclockwise {
				count = -count
			}
			cursor.move(count)
			if err := e.showSelector(cursor); err != nil {
				return err
			}
		case Button:
			edit = !edit
			if edit {
				cursor.alignTo(e.player.Current())
				if err := e.showSelector(cursor); err != nil {
					return err
				}
				break
			}
			if cursor.current() != e.player.Current() {
				if err := e.player.Select(cursor.current()); err != nil {
					return err
				}
			}
			if err := e.view.ShowStation(e.player.Name(e.player.Current()), true); err != nil {
				return err
			}
		case Cancel:
			if !edit {
				break
			}
			edit = false
			cursor.alignTo(e.player.Current())
			if err := e.view.ShowStation(e.player.Name(e.player.Current()), true); err != nil {
				return err
			}
		case Menu:
			applog.Info("menu pressed, not assigned")
		case Maintain:
			if err := e.view.Maintain(); err != nil {
				return err
			}
			var err error
			if edit {
				err = e.showSelector(cursor)
			} else {
				err = e.view.ShowStation(e.player.Name(e.player.Current()), true)
			}
			if err != nil {
				return err
			}
			last = time.Time{}
		case Stop:
			return e.player.Stop()
		}

		// Anything queued while the panel was refreshing is stale input.
		e.drain()
	}
}

func (e *Engine) showSelector(r *ring) error {
	prev, next := "", ""
	if p, ok := r.prev(); ok {
		prev = e.player.Name(p)
	}
	if n, ok := r.next(); ok {
		next = e.player.Name(n)
	}
	return e.view.ShowSelector(prev, e.player.Name(r.current()), next)
}

// drainCount empties the queue, counting events matching ev and discarding
// the rest.
func (e *Engine) drainCount(match Event) int {
	count := 0
	for {
		select {
		case ev := <-e.events:
			if ev == match {
				count++
			}
		default:
			return count
		}
	}
}

func (e *Engine) drain() {
	for {
		select {
		case ev := <-e.events:
			applog.Debug("stale event discarded", "event", ev)
		default:
			return
		}
	}
}

// ring is the edit cursor over the ordered station positions. Movement
// wraps at both ends; prev and next report list neighbors, absent at the
// edges, which is what the selector rows show.
type ring struct {
	positions []int
	index     int
}

func newRing(stations []model.Station) *ring {
	r := &ring{positions: make([]int, len(stations))}
	for i, st := range stations {
		r.positions[i] = st.Position
	}
	return r
}

func (r *ring) alignTo(position int) {
	for i, p := range r.positions {
		if p == position {
			r.index = i
			return
		}
	}
	r.index = 0
}

func (r *ring) move(delta int) {
	n := len(r.positions)
	if n == 0 {
		return
	}
	r.index = ((r.index+delta)%n + n) % n
}

func (r *ring) current() int {
	if len(r.positions) == 0 {
		return 0
	}
	return r.positions[r.index]
}

func (r *ring) prev() (int, bool) {
	if r.index == 0 || len(r.positions) == 0 {
		return 0, false
	}
	return r.positions[r.index-1], true
}

func (r *ring) next() (int, bool) {
	if r.index >= len(r.positions)-1 {
		return 0, false
	}
	return r.positions[r.index+1], true
}
