package worker

// State is a step of the pipeline run by an Orchestrator.
type State int

// The states follow each other in this order, except Failed which can be
// entered from any state that is neither Done nor Failed.
const (
	Idle State = iota
	Fetching
	Decoding
	Proving
	Hashing
	Encoding
	Submitting
	Done
	Failed
)

var stateNames = [...]string{
	"idle",
	"fetching",
	"decoding",
	"proving",
	"hashing",
	"encoding",
	"submitting",
	"done",
	"failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}
