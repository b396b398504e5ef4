package algorithm

// Status classifies the result of an exploration along two independent
// axes.
type Status struct {
	// Complete is false if the exploration stopped before the waitlist was
	// empty.
	Complete bool
	// Sound is false if the analysis deliberately gave up soundness.
	Sound bool
}

// Done is the status of a finished exploration with a sound analysis.
var Done = Status{Complete: true, Sound: true}

// Update combines the status of two explorations contributing to one result.
func (s Status) Update(o Status) Status {
	return Status{
		Complete: s.Complete && o.Complete,
		Sound:    s.Sound && o.Sound,
	}
}

func (s Status) String() string {
	switch {
	case s.Complete && s.Sound:
		return "complete"
	case s.Complete:
		return "complete, unsound"
	case s.Sound:
		return "incomplete"
	default:
		return "incomplete, unsound"
	}
}
