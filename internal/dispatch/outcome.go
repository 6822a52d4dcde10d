package dispatch

// Outcome tells the dispatcher how handling of the current update should
// proceed. End skips any remaining handler logic for this update; it is a
// control signal, not an error, and never skips the middleware after-phase.
type Outcome int

const (
	Continue Outcome = iota
	End
)

func (o Outcome) String() string {
	if o == End {
		return "end"
	}
	return "continue"
}
