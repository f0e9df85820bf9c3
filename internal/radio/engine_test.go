package radio

import (
	"context"
	"testing"
	"time"

	"epdradio/internal/model"
)

type stationCall struct {
	name     string
	clearAll bool
}

// fakeView records every repaint. Reads must happen after the engine
// goroutine has been joined.
type fakeView struct {
	titles    []string
	clocks    int
	stations  []stationCall
	selectors [][3]string
	maintains int
}

func (v *fakeView) SetTitle(text string, align Align) error {
	v.titles = append(v.titles, text)
	return nil
}

func (v *fakeView) ShowClock(t time.Time) error {
	v.clocks++
	return nil
}

func (v *fakeView) ShowStation(name string, clearAll bool) error {
	v.stations = append(v.stations, stationCall{name: name, clearAll: clearAll})
	return nil
}

func (v *fakeView) ShowSelector(prev, cur, next string) error {
	v.selectors = append(v.selectors, [3]string{prev, cur, next})
	return nil
}

func (v *fakeView) Maintain() error {
	v.maintains++
	return nil
}

type fakePlayer struct {
	stations []model.Station
	current  int
	selected []int
	stopped  bool
}

func (p *fakePlayer) Current() int {
	return p.current
}

func (p *fakePlayer) Stations() []model.Station {
	return p.stations
}

func (p *fakePlayer) Name(position int) string {
	for _, st := range p.stations {
		if st.Position == position {
			return st.Name
		}
	}
	return ""
}

func (p *fakePlayer) Select(position int) error {
	p.selected = append(p.selected, position)
	p.current = position
	return nil
}

func (p *fakePlayer) Stop() error {
	p.stopped = true
	return nil
}

func testStations(n int) []model.Station {
	names := []string{"One", "Two", "Three", "Four", "Five"}
	st := make([]model.Station, n)
	for i := range st {
		st[i] = model.Station{Position: i + 1, Name: names[i]}
	}
	return st
}

// newTestEngine builds an engine with fast timings over fresh fakes.
func newTestEngine(n int) (*Engine, *fakeView, *fakePlayer) {
	player := &fakePlayer{stations: testStations(n), current: 1}
	view := &fakeView{}
	e := NewEngine(view, player, Opts{
		IdleClock: time.Hour,
		Coalesce:  20 * time.Millisecond,
	})
	e.waitTick = time.Millisecond
	return e, view, player
}

// start runs the engine loop and returns a stop function that cancels it
// and joins, failing the test on a hang.
func start(t *testing.T, e *Engine) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("engine did not stop")
			return nil
		}
	}
}

// settle gives the loop time to finish handling the previous event.
const settle = 60 * time.Millisecond

func TestInitialDrawAndShutdown(t *testing.T) {
	e, view, player := newTestEngine(3)
	stop := start(t, e)
	time.Sleep(settle)
	if err := stop(); err != nil {
		t.Fatal(err)
	}

	if len(view.stations) != 1 {
		t.Fatalf("stations = %v, want one initial draw", view.stations)
	}
	if got := view.stations[0]; got.name != "One" || got.clearAll {
		t.Errorf("initial draw = %+v, want {One false}", got)
	}
	if !player.stopped {
		t.Error("cancellation did not stop the player")
	}
}

func TestEditCommit(t *testing.T) {
	e, view, player := newTestEngine(3)
	stop := start(t, e)
	time.Sleep(settle)

	e.Post(Button)
	time.Sleep(settle)
	e.Post(Clockwise)
	time.Sleep(settle)
	e.Post(Button)
	time.Sleep(settle)
	if err := stop(); err != nil {
		t.Fatal(err)
	}

	if len(view.selectors) != 2 {
		t.Fatalf("selectors = %v, want 2 repaints", view.selectors)
	}
	if got := view.selectors[0]; got != [3]string{"", "One", "Two"} {
		t.Errorf("edit entry selector = %v", got)
	}
	if got := view.selectors[1]; got != [3]string{"One", "Two", "Three"} {
		t.Errorf("post-rotation selector = %v", got)
	}
	if len(player.selected) != 1 || player.selected[0] != 2 {
		t.Errorf("selected = %v, want [2]", player.selected)
	}
	// Commit redraw wipes the selector rows.
	last := view.stations[len(view.stations)-1]
	if last.name != "Two" || !last.clearAll {
		t.Errorf("commit redraw = %+v, want {Two true}", last)
	}
}

func TestEditToggleOffUnchanged(t *testing.T) {
	e, view, player := newTestEngine(3)
	stop := start(t, e)
	time.Sleep(settle)

	e.Post(Button)
	time.Sleep(settle)
	e.Post(Button)
	time.Sleep(settle)
	if err := stop(); err != nil {
		t.Fatal(err)
	}

	if len(player.selected) != 0 {
		t.Errorf("selected = %v, want none for an unchanged cursor", player.selected)
	}
	last := view.stations[len(view.stations)-1]
	if last.name != "One" || !last.clearAll {
		t.Errorf("redraw = %+v, want {One true}", last)
	}
}

func TestRotationCoalescing(t *testing.T) {
	e, view, _ := newTestEngine(5)
	stop := start(t, e)
	time.Sleep(settle)

	e.Post(Button)
	time.Sleep(settle)
	// Three steps inside one settle interval: one repaint, cursor +3.
	e.Post(Clockwise)
	e.Post(Clockwise)
	e.Post(Clockwise)
	time.Sleep(settle)
	if err := stop(); err != nil {
		t.Fatal(err)
	}

	if len(view.selectors) != 2 {
		t.Fatalf("selectors = %v, want entry + one coalesced repaint", view.selectors)
	}
	if got := view.selectors[1]; got != [3]string{"Three", "Four", "Five"} {
		t.Errorf("coalesced selector = %v, want cursor at Four", got)
	}
}

func TestOppositeRotationDiscardedDuringCoalesce(t *testing.T) {
	e, view, _ := newTestEngine(5)
	stop := start(t, e)
	time.Sleep(settle)

	e.Post(Button)
	time.Sleep(settle)
	e.Post(Clockwise)
	e.Post(Counterclockwise)
	e.Post(Clockwise)
	time.Sleep(settle)
	if err := stop(); err != nil {
		t.Fatal(err)
	}

	// The counter-rotation is stale input: only same-direction steps
	// count, so the cursor moves +2.
	if got := view.selectors[len(view.selectors)-1]; got != [3]string{"Two", "Three", "Four"} {
		t.Errorf("selector = %v, want cursor at Three", got)
	}
}

func TestRingWrapAndEdgeBlanks(t *testing.T) {
	e, view, _ := newTestEngine(3)
	stop := start(t, e)
	time.Sleep(settle)

	e.Post(Button)
	time.Sleep(settle)
	e.Post(Counterclockwise)
	time.Sleep(settle)
	if err := stop(); err != nil {
		t.Fatal(err)
	}

	// One step back from the first entry wraps to the last, whose next
	// row shows blank at the list edge.
	if got := view.selectors[len(view.selectors)-1]; got != [3]string{"Two", "Three", ""} {
		t.Errorf("selector = %v, want wrap to Three with blank next", got)
	}
}

func TestCancelReverts(t *testing.T) {
	e, view, player := newTestEngine(3)
	stop := start(t, e)
	time.Sleep(settle)

	e.Post(Button)
	time.Sleep(settle)
	e.Post(Clockwise)
	time.Sleep(settle)
	e.Post(Cancel)
	time.Sleep(settle)
	// Re-entering editing must start from the committed station, not the
	// abandoned cursor.
	e.Post(Button)
	time.Sleep(settle)
	if err := stop(); err != nil {
		t.Fatal(err)
	}

	if len(player.selected) != 0 {
		t.Errorf("selected = %v, want none after cancel", player.selected)
	}
	cancelDraw := view.stations[len(view.stations)-1]
	if cancelDraw.name != "One" || !cancelDraw.clearAll {
		t.Errorf("cancel redraw = %+v, want {One true}", cancelDraw)
	}
	if got := view.selectors[len(view.selectors)-1]; got != [3]string{"", "One", "Two"} {
		t.Errorf("re-entry selector = %v, want cursor back on One", got)
	}
}

func TestRotationIgnoredWhileBrowsing(t *testing.T) {
	e, view, _ := newTestEngine(3)
	stop := start(t, e)
	time.Sleep(settle)

	e.Post(Clockwise)
	time.Sleep(settle)
	if err := stop(); err != nil {
		t.Fatal(err)
	}

	if len(view.selectors) != 0 {
		t.Errorf("selectors = %v, want none while browsing", view.selectors)
	}
}

func TestStopEvent(t *testing.T) {
	e, _, player := newTestEngine(3)
	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	time.Sleep(settle)

	e.Post(Stop)
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stop event did not end the loop")
	}
	if !player.stopped {
		t.Error("player still running after stop")
	}
}

func TestMaintainRedrawsState(t *testing.T) {
	e, view, _ := newTestEngine(3)
	stop := start(t, e)
	time.Sleep(settle)

	e.Post(Maintain)
	time.Sleep(settle)
	e.Post(Button)
	time.Sleep(settle)
	e.Post(Maintain)
	time.Sleep(settle)
	if err := stop(); err != nil {
		t.Fatal(err)
	}

	if view.maintains != 2 {
		t.Fatalf("maintains = %d, want 2", view.maintains)
	}
	// Browsing maintenance repaints the station with a full lower clear.
	if got := view.stations[len(view.stations)-1]; got.name != "One" || !got.clearAll {
		t.Errorf("browsing maintain redraw = %+v, want {One true}", got)
	}
	// Editing maintenance repaints the selector.
	if len(view.selectors) != 2 {
		t.Errorf("selectors = %v, want edit entry + maintain repaint", view.selectors)
	}
}

func TestIdleClockRepaints(t *testing.T) {
	e, view, _ := newTestEngine(3)
	e.idleClock = 5 * time.Millisecond
	stop := start(t, e)
	time.Sleep(80 * time.Millisecond)
	if err := stop(); err != nil {
		t.Fatal(err)
	}
	if view.clocks < 2 {
		t.Errorf("clocks = %d, want periodic repaints", view.clocks)
	}
}

func TestIdleClockSuppressedWhileEditing(t *testing.T) {
	e, view, _ := newTestEngine(3)
	e.idleClock = 30 * time.Millisecond
	stop := start(t, e)

	e.Post(Button)
	time.Sleep(80 * time.Millisecond)
	if err := stop(); err != nil {
		t.Fatal(err)
	}
	// At most one repaint can slip in before the button is handled.
	if view.clocks > 1 {
		t.Errorf("clocks = %d while editing, want at most 1", view.clocks)
	}
}
