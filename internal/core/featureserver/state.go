package featureserver

// State is the liveness of the single warehouse connection.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Failed
)

var allStates = []State{Disconnected, Connecting, Connected, Failed}

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func stateNames() []string {
	out := make([]string, len(allStates))
	for i, s := range allStates {
		out[i] = s.String()
	}
	return out
}
