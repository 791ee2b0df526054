// Package voice turns voice-presence updates into closed sessions.
//
// Every gateway update carries the channel a user was in before and the
// channel they are in now. Classify reduces that pair to a Transition,
// and the Recorder applies it to the user's join marker: a join opens a
// marker, a leave closes it into a VoiceSession, and a move does both at
// the same instant.
package voice

// Transition is the shape of a presence change.
type Transition int

const (
	// None covers updates that do not change channel membership, such as
	// mute or deafen toggles.
	None Transition = iota
	Join
	Leave
	Move
)

func (t Transition) String() string {
	switch t {
	case Join:
		return "join"
	case Leave:
		return "leave"
	case Move:
		return "move"
	default:
		return "none"
	}
}

// Classify maps the before/after channel IDs of an update to a
// Transition. An empty ID means "not in a voice channel".
func Classify(before, after string) Transition {
	switch {
	case before == "" && after != "":
		return Join
	case before != "" && after == "":
		return Leave
	case before != "" && after != "" && before != after:
		return Move
	default:
		return None
	}
}
