package steploop

const alternativeDirective = "IMPORTANT: your last actions repeated without changing the page. " +
	"Try an alternative approach: a different element, a different page, or a search."

// stallTracker counts consecutive turns that repeated the same action without changing the state.
type stallTracker struct {
	prevSig string
	streak  int
}

// observe records one executed turn and returns the current streak length.
// A turn that changed the state resets the streak. A turn that left it unchanged
// extends the streak if it repeated the previous action, and starts a new one otherwise.
func (s *stallTracker) observe(sig, before, after string) int {
	switch {
	case before != after:
		s.streak = 0
	case sig == s.prevSig && s.streak > 0:
		s.streak++
	default:
		s.streak = 1
	}
	s.prevSig = sig
	return s.streak
}
