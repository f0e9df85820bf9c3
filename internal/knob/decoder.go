// Package knob decodes a mechanical rotary encoder with push switch.
//
// The quadrature decoder is a fixed full-step state machine: seven states,
// indexed by the two-bit channel sample, total over every (state, sample)
// pair. A completed step is reported only when the canonical four-phase
// sequence lands back on the detent code, which makes contact bounce flip
// between substates without emitting. There are no timers; the table is
// the only debounce the rotation channels get. The tradeoff is that
// pathologically fast rotation can merge or skip steps.
package knob

// Event is a discrete control input.
type Event int

const (
	None Event = iota
	Clockwise
	Counterclockwise
	ButtonDown
	ButtonUp
)

func (e Event) String() string {
	switch e {
	case Clockwise:
		return "clockwise"
	case Counterclockwise:
		return "counterclockwise"
	case ButtonDown:
		return "button-down"
	case ButtonUp:
		return "button-up"
	default:
		return "none"
	}
}

// Decoder states. The zero value is the detent state, so a zero Decoder is
// ready to use.
const (
	stateStart byte = iota
	stateCWFinal
	stateCWBegin
	stateCWNext
	stateCCWBegin
	stateCCWFinal
	stateCCWNext
)

// Completed-step entries carry a direction flag above the state bits; Feed
// strips the flag before storing the next state.
const (
	stateMask byte = 0x0F
	flagCW    byte = 0x10
	flagCCW   byte = 0x20
)

// table maps (state, sample) to the next state. The sample is (A<<1)|B
// with both channels active-high and the detent reading 00, so a full
// clockwise step is the sample sequence 00,10,11,01,00. Out-of-sequence
// samples route back to the detent state or to a valid adjacent substate.
var table = [7][4]byte{
	// stateStart
	{stateStart, stateCCWBegin, stateCWBegin, stateStart},
	// stateCWFinal
	{stateStart | flagCW, stateCWFinal, stateStart, stateCWNext},
	// stateCWBegin
	{stateStart, stateStart, stateCWBegin, stateCWNext},
	// stateCWNext
	{stateStart, stateCWFinal, stateCWBegin, stateCWNext},
	// stateCCWBegin
	{stateStart, stateCCWBegin, stateStart, stateCCWNext},
	// stateCCWFinal
	{stateStart | flagCCW, stateStart, stateCCWFinal, stateCCWNext},
	// stateCCWNext
	{stateStart, stateCCWBegin, stateCCWFinal, stateCCWNext},
}

// Decoder consumes raw two-bit channel samples and emits rotation steps.
// The zero value is ready to use. It is not safe for concurrent use;
// callers serialize Feed.
type Decoder struct {
	state byte
}

// Feed advances the state machine with one (A<<1)|B sample and returns the
// completed step, if any.
func (d *Decoder) Feed(sample byte) Event {
	next := table[d.state&stateMask][sample&3]
	d.state = next & stateMask
	switch next & (flagCW | flagCCW) {
	case flagCW:
		return Clockwise
	case flagCCW:
		return Counterclockwise
	default:
		return None
	}
}

// Reset returns the decoder to the detent state.
func (d *Decoder) Reset() {
	d.state = stateStart
}
