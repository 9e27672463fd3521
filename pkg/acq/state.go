package acq

// State is the state of a Session.
type State int

// States.
const (
	StateIdle State = iota
	StateArmed
	StateCapturing
	StateResynchronizing
	StateDrained
)

var stateNames = [...]string{"idle", "armed", "capturing", "resynchronizing", "drained"}

// String implements fmt.Stringer.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "invalid"
}

// Active reports whether events are handled in this state.
func (s State) Active() bool {
	return s == StateArmed || s == StateCapturing
}

type eventKind int

const (
	eventInterrupt eventKind = iota
	eventWatchdog
)

type event struct {
	kind eventKind
	tick uint32
}
